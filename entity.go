package neomapper

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// EntityDriver persists nodes through compiled statements.
type EntityDriver struct {
	pm *PersistenceManager
}

// Save creates the entity when it has no identity yet and assigns the identity
// returned by the database. A persisted entity is updated instead: keys set to
// nil are removed, the others are set.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - e: The entity to save. It receives its identity on creation.
//
// Returns:
//
//	An error if compilation or execution fails.
func (d *EntityDriver) Save(ctx context.Context, e *Entity) error {
	if e.HasID() {
		stmts, err := CompileUpdateEntity(e)
		if err != nil {
			return err
		}
		for _, stmt := range stmts {
			if _, err := d.pm.Execute(ctx, stmt); err != nil {
				return err
			}
		}
		d.pruneNulls(e)
		return nil
	}

	stmt, err := CompileCreateEntity(e)
	if err != nil {
		return err
	}
	rows, err := d.pm.Execute(ctx, stmt)
	if err != nil {
		return err
	}
	id, err := identityFromRows(rows)
	if err != nil {
		return unexpectedResult(stmt, fmt.Errorf("create entity: %w", err))
	}
	if err := e.assignID(id); err != nil {
		return err
	}
	d.pruneNulls(e)
	d.pm.logger.Info("entity created", zap.Int64("id", id), zap.Strings("labels", e.Labels))
	return nil
}

// pruneNulls drops the keys the last save removed, so the in-memory entity
// matches what was stored.
func (d *EntityDriver) pruneNulls(e *Entity) {
	nulls, _ := e.Properties.split()
	for _, k := range nulls {
		delete(e.Properties, k)
	}
}

// Fetch loads a node by identity. It returns ErrNotFound when no node has
// that identity.
func (d *EntityDriver) Fetch(ctx context.Context, id Identity) (*Entity, error) {
	stmt := CompileFetchEntity(id)
	rows, err := d.pm.Execute(WithReadRouting(ctx), stmt)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	row := rows[0]
	if row.Shape != ShapeEntity {
		return nil, unexpectedResult(stmt, fmt.Errorf("fetch entity %d: %s row", id, row.Shape))
	}
	return row.Entity, nil
}

// Labels returns the labels of a stored node.
func (d *EntityDriver) Labels(ctx context.Context, id Identity) ([]string, error) {
	stmt := CompileFetchLabels(id)
	rows, err := d.pm.Execute(WithReadRouting(ctx), stmt)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	raw, _ := rows[0].Value("labels")
	list, ok := raw.([]any)
	if !ok {
		return nil, unexpectedResult(stmt, fmt.Errorf("fetch labels %d: labels column is a %T", id, raw))
	}
	labels := make([]string, 0, len(list))
	for _, l := range list {
		s, ok := l.(string)
		if !ok {
			return nil, unexpectedResult(stmt, fmt.Errorf("fetch labels %d: label is a %T", id, l))
		}
		labels = append(labels, s)
	}
	return labels, nil
}

// AddLabels adds labels to a persisted entity, in the database and on e.
func (d *EntityDriver) AddLabels(ctx context.Context, e *Entity, labels ...string) error {
	id, ok := e.ID()
	if !ok {
		return compileErr("add-labels", ErrMissingIdentity, "entity")
	}
	stmt, err := CompileAddLabels(id, labels)
	if err != nil {
		return err
	}
	if _, err := d.pm.Execute(ctx, stmt); err != nil {
		return err
	}
	for _, l := range labels {
		if !e.HasLabel(l) {
			e.Labels = append(e.Labels, l)
		}
	}
	return nil
}

// Delete removes a persisted entity and every relationship attached to it.
// Deleting a node that no longer exists is not an error.
func (d *EntityDriver) Delete(ctx context.Context, e *Entity) error {
	id, ok := e.ID()
	if !ok {
		return compileErr("delete-entity", ErrMissingIdentity, "entity")
	}
	if _, err := d.pm.Execute(ctx, CompileDeleteEntity(id)); err != nil {
		return err
	}
	d.pm.logger.Info("entity deleted", zap.Int64("id", id))
	return nil
}

// identityFromRows reads the identity returned by a create statement.
func identityFromRows(rows []ParsedRow) (Identity, error) {
	if len(rows) != 1 {
		return 0, fmt.Errorf("expected 1 row, got %d", len(rows))
	}
	v, ok := rows[0].Value("id")
	if !ok {
		return 0, fmt.Errorf("row has no id column")
	}
	id, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("id is a %T, not an int64", v)
	}
	return id, nil
}
