package neomapper

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Relationship timestamp properties, written when the manager is configured
// with relationship timestamps.
const (
	CreatedAtProperty = "created_at"
	UpdatedAtProperty = "updated_at"
)

// EdgeQuery describes a traversal of relationships of Type around the
// reference endpoint Start. End optionally narrows the traversal to one
// counterpart. Direction is relative to Start.
type EdgeQuery struct {
	Type      string
	Direction Direction
	Start     *Entity
	End       *Entity
}

// EdgeDriver persists and traverses relationships.
type EdgeDriver struct {
	pm *PersistenceManager
}

// Save creates the edge when it has no identity yet, otherwise it runs the
// two-phase property update. An Undirected edge is stored from Start to End
// and reports Out once created.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - e: The edge to save. Both endpoints must be persisted.
//
// Returns:
//
//	A *CompileError for an incomplete edge, or an *ExecutionError.
func (d *EdgeDriver) Save(ctx context.Context, e *Edge) error {
	if e.HasID() {
		return d.update(ctx, e)
	}

	// Stamps go on a copy; e only takes them once the edge is stored.
	var stamps Properties
	if d.pm.timestamps {
		now := d.pm.now().UTC().Format(time.RFC3339)
		stamps = Properties{CreatedAtProperty: now, UpdatedAtProperty: now}
	}
	stmt, err := CompileCreateEdge(withProperties(e, stamps))
	if err != nil {
		return err
	}
	rows, err := d.pm.Execute(ctx, stmt)
	if err != nil {
		return err
	}
	id, err := identityFromRows(rows)
	if err != nil {
		return unexpectedResult(stmt, fmt.Errorf("create edge: %w", err))
	}
	if err := e.assignID(id); err != nil {
		return err
	}
	for k, v := range stamps {
		e.Set(k, v)
	}
	if e.Direction == Undirected {
		e.Direction = Out
	}
	pruneEdgeNulls(e)

	d.pm.logger.Info("edge created",
		zap.Int64("id", id),
		zap.String("type", e.Type),
		zap.Stringer("direction", e.Direction))
	return nil
}

func (d *EdgeDriver) update(ctx context.Context, e *Edge) error {
	var stamps Properties
	if d.pm.timestamps {
		stamps = Properties{UpdatedAtProperty: d.pm.now().UTC().Format(time.RFC3339)}
	}
	stmts, err := CompileUpdateEdge(withProperties(e, stamps))
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := d.pm.Execute(ctx, stmt); err != nil {
			return err
		}
	}
	for k, v := range stamps {
		e.Set(k, v)
	}
	pruneEdgeNulls(e)
	return nil
}

// withProperties returns a shallow copy of e whose properties also hold
// extra. e itself is returned when extra is empty.
func withProperties(e *Edge, extra Properties) *Edge {
	if len(extra) == 0 {
		return e
	}
	cp := *e
	cp.Properties = make(Properties, len(e.Properties)+len(extra))
	for k, v := range e.Properties {
		cp.Properties[k] = v
	}
	for k, v := range extra {
		cp.Properties[k] = v
	}
	return &cp
}

func pruneEdgeNulls(e *Edge) {
	nulls, _ := e.Properties.split()
	for _, k := range nulls {
		delete(e.Properties, k)
	}
}

// Relate builds and saves an edge of typ between two persisted entities.
func (d *EdgeDriver) Relate(ctx context.Context, typ string, start, end *Entity, direction Direction, props Properties) (*Edge, error) {
	e := NewEdge(typ, start, end)
	e.Direction = direction
	for k, v := range props {
		e.Set(k, v)
	}
	if err := d.Save(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Delete removes the relationship, by identity when the edge has one and by
// endpoints and type otherwise. It returns the number of relationships
// removed; deleting an edge that is already gone removes zero.
func (d *EdgeDriver) Delete(ctx context.Context, e *Edge) (int64, error) {
	stmt, err := CompileDeleteEdge(e)
	if err != nil {
		return 0, err
	}
	rows, err := d.pm.Execute(ctx, stmt)
	if err != nil {
		return 0, err
	}
	var deleted int64
	if len(rows) > 0 {
		if v, ok := rows[0].Value("deleted"); ok {
			deleted, _ = v.(int64)
		}
	}
	d.pm.logger.Info("edge deleted", zap.String("type", e.Type), zap.Int64("deleted", deleted))
	return deleted, nil
}

// FetchAll runs the traversal once and returns a cursor over its edges. Every
// call runs the statement again.
func (d *EdgeDriver) FetchAll(ctx context.Context, q EdgeQuery) (*EdgeCursor, error) {
	stmt, err := CompileFetchEdges(q)
	if err != nil {
		return nil, err
	}
	result, err := d.pm.run(WithReadRouting(ctx), stmt)
	if err != nil {
		return nil, err
	}
	ref, _ := q.Start.ID()
	return &EdgeCursor{
		stmt:      stmt,
		direction: q.Direction,
		reference: ref,
		records:   result.Records,
		parser:    d.pm.parser,
	}, nil
}

// EdgeCursor iterates the edges of one traversal. Rows are parsed as the
// cursor advances; it cannot be rewound.
//
//	cur, err := pm.Edges().FetchAll(ctx, q)
//	for cur.Next() {
//		e := cur.Edge()
//	}
//	if err := cur.Err(); err != nil { ... }
type EdgeCursor struct {
	stmt      Statement
	direction Direction
	reference Identity
	records   []*neo4j.Record
	parser    *ResultSetParser

	pos     int
	current *Edge
	err     error
}

// Next advances to the next edge. It returns false when the rows are
// exhausted or a row could not be read; see Err.
func (c *EdgeCursor) Next() bool {
	c.current = nil
	if c.err != nil || c.pos >= len(c.records) {
		return false
	}
	row := c.parser.ParseRecord(c.records[c.pos])
	c.pos++

	edge, err := inferEdge(row, c.direction, c.reference)
	if err != nil {
		c.err = unexpectedResult(c.stmt, err)
		return false
	}
	c.current = edge
	return true
}

// Edge returns the edge Next advanced to.
func (c *EdgeCursor) Edge() *Edge { return c.current }

// Err returns the error that stopped the iteration, if any.
func (c *EdgeCursor) Err() error { return c.err }

// Collect drains the remaining edges.
func (c *EdgeCursor) Collect() ([]*Edge, error) {
	var edges []*Edge
	for c.Next() {
		edges = append(edges, c.current)
	}
	return edges, c.err
}

// inferEdge builds an edge from a row holding a, r and b.
//
// When the traversal asked for Out or In the direction is kept as requested
// and the endpoint matching the reference identity becomes Start, whatever
// the physical start node of r is. When it asked for no direction, Start is a
// and End is b, and the direction is read off r: Out when r starts at a, In
// otherwise.
func inferEdge(row ParsedRow, direction Direction, reference Identity) (*Edge, error) {
	a, okA := fieldAs[*Entity](row, "a")
	b, okB := fieldAs[*Entity](row, "b")
	r, okR := fieldAs[*RelationshipView](row, "r")
	if !okA || !okB || !okR {
		return nil, fmt.Errorf("edge row must hold a, r and b, got columns %v", row.Columns)
	}

	aID, _ := a.ID()
	bID, _ := b.ID()
	edge := &Edge{
		Type:       r.Type,
		Properties: r.Properties,
	}
	id := r.ID
	edge.id = &id

	switch direction {
	case Out, In:
		edge.Direction = direction
		switch reference {
		case aID:
			edge.Start, edge.End = a, b
		case bID:
			edge.Start, edge.End = b, a
		default:
			return nil, fmt.Errorf("edge %d does not touch reference node %d", r.ID, reference)
		}
	default:
		edge.Start, edge.End = a, b
		if r.StartID == aID {
			edge.Direction = Out
		} else {
			edge.Direction = In
		}
	}
	return edge, nil
}

func fieldAs[T any](row ParsedRow, key string) (T, bool) {
	v, _ := row.Value(key)
	t, ok := v.(T)
	return t, ok
}
