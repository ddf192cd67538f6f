package neomapper

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/saulfrancisco-ruizacevedo/gocypher"
	"go.uber.org/zap"
)

// PersistenceManager is the central orchestrator for the persistence layer.
// It executes compiled statements, parses their rows and provides access to
// the entity and edge drivers, repositories and cross-entity operations like
// creating relationships.
//
// A PersistenceManager holds no per-call state and may be shared between
// goroutines. The entities and edges it returns belong to the caller.
type PersistenceManager struct {
	runner     DBRunner
	logger     *zap.Logger
	parser     *ResultSetParser
	timestamps bool
	morphType  string
	now        func() time.Time

	entities *EntityDriver
	edges    *EdgeDriver
}

// Option configures a PersistenceManager.
type Option func(*PersistenceManager)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(pm *PersistenceManager) {
		if logger != nil {
			pm.logger = logger
		}
	}
}

// WithRelationshipTimestamps enables created_at and updated_at on saved edges.
func WithRelationshipTimestamps(enabled bool) Option {
	return func(pm *PersistenceManager) { pm.timestamps = enabled }
}

// WithMorphTypeProperty sets the relationship property read by Morph and
// MorphEager shapes that do not name their own discriminator.
func WithMorphTypeProperty(name string) Option {
	return func(pm *PersistenceManager) {
		if name != "" {
			pm.morphType = name
		}
	}
}

// WithClock replaces the time source used for relationship timestamps.
func WithClock(now func() time.Time) Option {
	return func(pm *PersistenceManager) { pm.now = now }
}

// WithConfig applies the mapping options of cfg.
func WithConfig(cfg Config) Option {
	return func(pm *PersistenceManager) {
		WithRelationshipTimestamps(cfg.RelationshipTimestamps)(pm)
		WithMorphTypeProperty(cfg.MorphTypeProperty)(pm)
	}
}

// NewPersistenceManager creates a new instance of the PersistenceManager.
func NewPersistenceManager(runner DBRunner, opts ...Option) *PersistenceManager {
	pm := &PersistenceManager{
		runner:    runner,
		logger:    zap.NewNop(),
		parser:    NewResultSetParser(),
		morphType: DefaultMorphTypeProperty,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(pm)
	}
	pm.entities = &EntityDriver{pm: pm}
	pm.edges = &EdgeDriver{pm: pm}
	return pm
}

// Entities returns the driver persisting nodes.
func (pm *PersistenceManager) Entities() *EntityDriver { return pm.entities }

// Edges returns the driver persisting relationships.
func (pm *PersistenceManager) Edges() *EdgeDriver { return pm.edges }

// NewEntity returns an unsaved entity carrying labels.
func (pm *PersistenceManager) NewEntity(labels ...string) *Entity {
	return NewEntity(labels...)
}

// NewEdge returns an unsaved edge of typ from start to end.
func (pm *PersistenceManager) NewEdge(typ string, start, end *Entity) *Edge {
	return NewEdge(typ, start, end)
}

// GetEntity loads a node by identity, or fails with ErrNotFound.
func (pm *PersistenceManager) GetEntity(ctx context.Context, id Identity) (*Entity, error) {
	return pm.entities.Fetch(ctx, id)
}

// run executes a statement and wraps any failure in an *ExecutionError.
func (pm *PersistenceManager) run(ctx context.Context, stmt Statement) (*neo4j.EagerResult, error) {
	result, err := pm.runner.Run(ctx, stmt.Text, stmt.Params)
	if err != nil {
		return nil, &ExecutionError{Query: stmt.Text, Params: stmt.Params, Err: err}
	}
	if result == nil {
		result = &neo4j.EagerResult{}
	}
	return result, nil
}

// Execute runs a statement and parses its rows.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - stmt: A compiled statement, or any Cypher text with its parameters.
//
// Returns:
//
//	The parsed rows, or an *ExecutionError if the database rejected the statement.
func (pm *PersistenceManager) Execute(ctx context.Context, stmt Statement) ([]ParsedRow, error) {
	result, err := pm.run(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return pm.parser.Parse(result.Records), nil
}

// Select runs a statement and reshapes its rows through the given placeholder
// shapes. Columns without a shape are passed through as parsed.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - stmt: The statement to run. Its RETURN aliases name the placeholders.
//   - shapes: One shape per placeholder to resolve.
//
// Returns:
//
//	One resolved row per result row, or the first *ResolutionError.
func (pm *PersistenceManager) Select(ctx context.Context, stmt Statement, shapes ...Shape) ([]ResolvedRow, error) {
	shapes = append([]Shape(nil), shapes...)
	for i := range shapes {
		if shapes[i].Cardinality.isMorph() && shapes[i].Discriminator == "" {
			shapes[i].Discriminator = pm.morphType
		}
	}
	mutations, err := NewMutations(shapes...)
	if err != nil {
		return nil, err
	}
	rows, err := pm.Execute(ctx, stmt)
	if err != nil {
		return nil, err
	}
	resolved, err := mutations.Resolve(rows)
	if err != nil {
		var rerr *ResolutionError
		if errors.As(err, &rerr) && errors.Is(rerr.Kind, ErrUnknownMorphTarget) {
			pm.logger.Warn("no target registered for morph type",
				zap.String("placeholder", rerr.Placeholder),
				zap.String("morph_type", rerr.Detail))
		}
		return nil, err
	}
	return resolved, nil
}

// RepositoryFor is a generic function that creates and returns a repository
// for a specific struct type T, managed by the given PersistenceManager.
func RepositoryFor[T any](pm *PersistenceManager) (*Repository[T], error) {
	return NewRepository[T](pm)
}

// CreateRelation creates a directed relationship between two persisted
// structs mapped with crud tags. Both must carry their identity.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - fromEntity: A pointer to the struct the relationship starts from.
//   - toEntity: A pointer to the struct the relationship points to.
//   - relType: The relationship type.
//   - relProps: Properties of the relationship, may be nil.
//
// Returns:
//
//	The saved edge, or an error if either struct is unsaved or the statement fails.
func (pm *PersistenceManager) CreateRelation(ctx context.Context, fromEntity any, toEntity any, relType string, relProps map[string]any) (*Edge, error) {
	from, err := entityRefOf(fromEntity)
	if err != nil {
		return nil, err
	}
	to, err := entityRefOf(toEntity)
	if err != nil {
		return nil, err
	}
	return pm.edges.Relate(ctx, relType, from, to, Out, relProps)
}

// entityRefOf is an internal helper that reads the identity of a tagged struct
// into an entity reference carrying its label.
func entityRefOf(entity any) (*Entity, error) {
	val := reflect.ValueOf(entity)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return nil, fmt.Errorf("entity must be a non-nil pointer")
	}
	meta, err := metadataFor(val.Elem().Type())
	if err != nil {
		return nil, err
	}
	if meta.IDField == "" {
		return nil, fmt.Errorf("%s has no crud:\"id\" field", meta.Label)
	}
	id, ok := identityOf(val.Elem().FieldByName(meta.IDField))
	if !ok {
		return nil, compileErr("create-relation", ErrMissingEndpointIdentity, meta.Label)
	}
	ref := EntityRef(id)
	ref.Labels = []string{meta.Label}
	return ref, nil
}

// FindGraph executes a graph query defined by a gocypher.QueryBuilder and maps the result
// into a generic graph structure composed of nodes and edges.
//
// This method is domain-agnostic; it does not need to know about specific Go structs.
// Its primary role is to translate the raw graph elements returned by a Cypher query
// into a clean, serializable format suitable for frontends or other services.
//
// The caller is responsible for constructing a valid query via the QueryBuilder, including
// a RETURN clause that specifies which nodes and relationships should be included in the
// final graph. For example, `RETURN u, r, p`. Paths and lists of nodes or relationships
// are unpacked as well.
//
// Nodes and relationships are de-duplicated by identity, so an element returned
// in several rows appears once in the final GraphResult.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - qb: A pointer to a configured gocypher.QueryBuilder instance that defines the graph to retrieve.
//
// Returns:
//   - A pointer to a GraphResult containing the de-duplicated nodes and edges from the query.
//   - An ErrNotFound error if the query executes successfully but returns zero records.
//   - Any other error encountered during query building or execution.
func (pm *PersistenceManager) FindGraph(ctx context.Context, qb *gocypher.QueryBuilder) (*GraphResult, error) {
	// 1. Build and execute the query provided by the client.
	query, params, err := qb.Build()
	if err != nil {
		return nil, fmt.Errorf("could not build query: %w", err)
	}

	result, err := pm.run(WithReadRouting(ctx), Statement{Text: query, Params: params})
	if err != nil {
		return nil, err
	}
	if len(result.Records) == 0 {
		return nil, ErrNotFound
	}

	// 2. Collect every graph element of every row.
	g := &graphCollector{
		graph: &GraphResult{
			Nodes: make([]*GraphNode, 0),
			Edges: make([]*GraphEdge, 0),
		},
		seenNodes: make(map[Identity]bool),
		seenEdges: make(map[Identity]bool),
	}
	for _, record := range result.Records {
		for _, value := range record.Values {
			g.add(value)
		}
	}
	return g.graph, nil
}

type graphCollector struct {
	graph     *GraphResult
	seenNodes map[Identity]bool
	seenEdges map[Identity]bool
}

func (g *graphCollector) add(value any) {
	switch v := value.(type) {
	case neo4j.Node:
		if g.seenNodes[v.Id] {
			return
		}
		g.seenNodes[v.Id] = true
		g.graph.Nodes = append(g.graph.Nodes, &GraphNode{
			ID:         v.Id,
			Labels:     v.Labels,
			Properties: normalizeProperties(v.Props),
		})
	case neo4j.Relationship:
		if g.seenEdges[v.Id] {
			return
		}
		g.seenEdges[v.Id] = true
		g.graph.Edges = append(g.graph.Edges, &GraphEdge{
			ID:         v.Id,
			Source:     v.StartId,
			Target:     v.EndId,
			Type:       v.Type,
			Properties: normalizeProperties(v.Props),
		})
	case neo4j.Path:
		for _, n := range v.Nodes {
			g.add(n)
		}
		for _, r := range v.Relationships {
			g.add(r)
		}
	case []any:
		for _, item := range v {
			g.add(item)
		}
	}
}
