package neomapper

import (
	"context"
	"fmt"
	"reflect"

	"github.com/saulfrancisco-ruizacevedo/gocypher"
)

// Repository provides a generic abstraction for CRUD operations for a specific
// entity type T. It relies on struct tags to map struct fields to node properties.
//
//	type User struct {
//		ID    *int64 `crud:"id,label:User"`
//		Name  string `crud:"property:name"`
//		Email string `crud:"property:email"`
//	}
type Repository[T any] struct {
	pm   *PersistenceManager
	meta *entityMetadata
}

// NewRepository creates a new generic repository for the type T.
// It parses the struct tags of T to understand its mapping to a Neo4j node.
//
// Parameters:
//   - pm: The PersistenceManager used to execute all Cypher queries.
//
// Returns:
//
//	A new Repository instance or an error if the struct tags are invalid.
func NewRepository[T any](pm *PersistenceManager) (*Repository[T], error) {
	meta, err := parseTags[T]()
	if err != nil {
		return nil, err
	}
	if meta.IDField == "" {
		return nil, fmt.Errorf("%s has no crud:\"id\" field", meta.Label)
	}
	return &Repository[T]{
		pm:   pm,
		meta: meta,
	}, nil
}

// Save creates a new node or updates an existing one.
// A struct whose id field is nil is created and receives its identity. Otherwise
// the mapped fields are written to the node, and nil pointer fields are removed
// from it.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - entity: A pointer to the struct instance to be saved.
//
// Returns:
//
//	An error if the query building or execution fails.
func (r *Repository[T]) Save(ctx context.Context, entity *T) error {
	e, err := structToEntity(entity, r.meta)
	if err != nil {
		return err
	}
	created := !e.HasID()
	if err := r.pm.Entities().Save(ctx, e); err != nil {
		return err
	}
	if created {
		id, _ := e.ID()
		setIdentity(reflect.ValueOf(entity).Elem().FieldByName(r.meta.IDField), id)
	}
	return nil
}

// FindByID retrieves a single entity from the database by its identity.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - id: The identity of the node to find.
//
// Returns:
//
//	A pointer to the found entity, ErrNotFound if no node carrying the label of T
//	has that identity, or another error if the query or mapping fails.
func (r *Repository[T]) FindByID(ctx context.Context, id Identity) (*T, error) {
	e, err := r.pm.Entities().Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.HasLabel(r.meta.Label) {
		return nil, ErrNotFound
	}
	return r.decode(e)
}

// Find executes a query built by the caller and maps every returned node of
// the first entity column onto T. Rows without a node are skipped.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - qb: A configured gocypher.QueryBuilder whose RETURN clause names the node.
//
// Returns:
//
//	The mapped entities, possibly empty, or an error if the query or mapping fails.
func (r *Repository[T]) Find(ctx context.Context, qb *gocypher.QueryBuilder) ([]*T, error) {
	query, params, err := qb.Build()
	if err != nil {
		return nil, fmt.Errorf("could not build query: %w", err)
	}
	rows, err := r.pm.Execute(WithReadRouting(ctx), Statement{Text: query, Params: params})
	if err != nil {
		return nil, err
	}

	out := make([]*T, 0, len(rows))
	for _, row := range rows {
		e := firstEntity(row)
		if e == nil {
			continue
		}
		item, err := r.decode(e)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// FindOne is Find for queries expected to match exactly one node.
//
// Returns:
//
//	The entity, ErrNotFound when nothing matched, or an error when several did.
func (r *Repository[T]) FindOne(ctx context.Context, qb *gocypher.QueryBuilder) (*T, error) {
	found, err := r.Find(ctx, qb)
	if err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return found[0], nil
	default:
		// This indicates a data integrity issue for a lookup meant to be unique.
		return nil, fmt.Errorf("expected 1 record but found %d", len(found))
	}
}

// FindBy retrieves the nodes carrying the label of T whose properties equal props.
func (r *Repository[T]) FindBy(ctx context.Context, props map[string]any) ([]*T, error) {
	return r.Find(ctx, r.matchBy(props))
}

// FindOneBy retrieves the single node carrying the label of T whose properties
// equal props.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - props: Property names and values to match.
//
// Returns:
//
//	A pointer to the found entity, ErrNotFound if nothing matches, or another
//	error if several nodes match or the query fails.
func (r *Repository[T]) FindOneBy(ctx context.Context, props map[string]any) (*T, error) {
	return r.FindOne(ctx, r.matchBy(props))
}

func (r *Repository[T]) matchBy(props map[string]any) *gocypher.QueryBuilder {
	return gocypher.NewQueryBuilder().
		Match(gocypher.N("n", r.meta.Label).WithProperties(props)).
		Return("n")
}

// Count returns the number of nodes carrying the label of T.
func (r *Repository[T]) Count(ctx context.Context) (int64, error) {
	return r.count(ctx, nil)
}

// CountBy returns the number of nodes carrying the label of T whose
// properties equal props.
func (r *Repository[T]) CountBy(ctx context.Context, props map[string]any) (int64, error) {
	return r.count(ctx, props)
}

func (r *Repository[T]) count(ctx context.Context, props Properties) (int64, error) {
	const op = "count"
	if err := checkIdentifier(op, "label", r.meta.Label); err != nil {
		return 0, err
	}
	params := map[string]any{}
	text := "MATCH (n:" + r.meta.Label + ")"
	if len(props) > 0 {
		inline, err := renderProperties(op, "n", props, inlineMap, nil, params)
		if err != nil {
			return 0, err
		}
		text = "MATCH (n:" + r.meta.Label + inline + ")"
	}
	rows, err := r.pm.Execute(WithReadRouting(ctx), Statement{Text: text + " RETURN count(n) AS total", Params: params})
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	v, _ := rows[0].Value("total")
	total, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("count is a %T, not an int64", v)
	}
	return total, nil
}

// Delete removes a node from the database by its identity.
// It uses a DETACH DELETE query to also remove any relationships connected to the node.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - id: The identity of the node to delete.
//
// Returns:
//
//	An error if the query execution fails.
func (r *Repository[T]) Delete(ctx context.Context, id Identity) error {
	return r.pm.Entities().Delete(ctx, EntityRef(id))
}

// firstEntity returns the node of a single-node row, or the first node column
// of a multi-column row.
func firstEntity(row ParsedRow) *Entity {
	if row.Shape == ShapeEntity {
		return row.Entity
	}
	for _, col := range row.Columns {
		if e, ok := row.Fields[col].(*Entity); ok {
			return e
		}
	}
	return nil
}

func (r *Repository[T]) decode(e *Entity) (*T, error) {
	out := new(T)
	if err := mapNodeToStruct(e, out, r.meta); err != nil {
		return nil, err
	}
	return out, nil
}
