// Package neomapper maps entities and relationships onto a Neo4j graph. It
// compiles node and edge operations into parametrized Cypher, keeps edge
// direction consistent across create, read, update and delete, and rebuilds
// typed objects out of the heterogeneous rows a Cypher query returns.
package neomapper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// DBRunner defines the interface for a generic query executor.
// It abstracts the execution of a Cypher query, allowing for different implementations
// or mocking in tests.
type DBRunner interface {
	// Run executes a given Cypher query with parameters and returns a fully-buffered result.
	Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error)
}

type routingKey struct{}

// WithReadRouting marks ctx so that Neo4jExecutor sends the statement to a
// reader of the cluster. Statements default to writer routing.
func WithReadRouting(ctx context.Context) context.Context {
	return context.WithValue(ctx, routingKey{}, neo4j.Read)
}

func routingFrom(ctx context.Context) neo4j.RoutingControl {
	if r, ok := ctx.Value(routingKey{}).(neo4j.RoutingControl); ok {
		return r
	}
	return neo4j.Write
}

func routingOption(r neo4j.RoutingControl) neo4j.ExecuteQueryConfigurationOption {
	if r == neo4j.Read {
		return neo4j.ExecuteQueryWithReadersRouting()
	}
	return neo4j.ExecuteQueryWithWritersRouting()
}

//---

// Neo4jExecutor is a concrete implementation of the DBRunner interface that uses the
// official Neo4j Go driver. It manages the driver instance and the target database name.
type Neo4jExecutor struct {
	Driver neo4j.DriverWithContext
	DBName string
	logger *zap.Logger
}

// NewNeo4jExecutor creates and initializes a new Neo4jExecutor.
// It establishes a connection driver with the provided credentials.
//
// Parameters:
//   - uri: The connection URI for the Neo4j instance (e.g., "neo4j://localhost:7687").
//   - username: The username for authentication.
//   - password: The password for authentication.
//   - dbName: The name of the database to connect to (e.g., "neo4j").
//
// Returns:
//
//	A pointer to the newly created Neo4jExecutor or an error if the driver creation fails.
func NewNeo4jExecutor(uri, username, password, dbName string) (*Neo4jExecutor, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("could not create Neo4j driver: %w", err)
	}
	return &Neo4jExecutor{Driver: driver, DBName: dbName, logger: zap.NewNop()}, nil
}

// NewNeo4jExecutorFromConfig creates an executor applying the pool and timeout
// settings of cfg. A nil logger disables logging.
func NewNeo4jExecutorFromConfig(cfg Config, logger *zap.Logger) (*Neo4jExecutor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *neo4j.Config) {
			if cfg.MaxConnectionPoolSize > 0 {
				c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
			}
			c.ConnectionAcquisitionTimeout = cfg.ConnectionTimeout
			c.MaxTransactionRetryTime = cfg.MaxTransactionRetryTime
		})
	if err != nil {
		return nil, fmt.Errorf("could not create Neo4j driver: %w", err)
	}
	return &Neo4jExecutor{
		Driver: driver,
		DBName: cfg.Database,
		logger: logger.With(zap.String("component", "neo4j-executor")),
	}, nil
}

// Verify checks the connectivity to the Neo4j database.
//
// Returns:
//
//	An error if the connection cannot be established.
func (e *Neo4jExecutor) Verify(ctx context.Context) error {
	return e.Driver.VerifyConnectivity(ctx)
}

// Close releases the driver and its connection pool.
func (e *Neo4jExecutor) Close(ctx context.Context) error {
	return e.Driver.Close(ctx)
}

// Run executes a Cypher query using the modern ExecuteQuery function, which handles
// session and transaction management automatically for robust and simple execution.
// Statements are routed to the writer unless ctx was marked with WithReadRouting.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - query: The Cypher query string to execute.
//   - params: A map of parameters to be used in the query.
//
// Returns:
//
//	An EagerResult containing all buffered records from the query, or an error if
//	the execution fails.
func (e *Neo4jExecutor) Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	statementID := uuid.NewString()
	start := time.Now()
	routing := routingFrom(ctx)

	result, err := neo4j.ExecuteQuery(
		ctx,
		e.Driver,
		query,
		params,
		neo4j.EagerResultTransformer, // Buffers all results in memory before returning.
		neo4j.ExecuteQueryWithDatabase(e.DBName),
		routingOption(routing),
	)
	if err != nil {
		e.logger.Debug("statement failed",
			zap.String("statement_id", statementID),
			zap.String("query", query),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return nil, fmt.Errorf("error executing neo4j query: %w", err)
	}

	e.logger.Debug("statement executed",
		zap.String("statement_id", statementID),
		zap.String("query", query),
		zap.Bool("read", routing == neo4j.Read),
		zap.Int("records", len(result.Records)),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}
