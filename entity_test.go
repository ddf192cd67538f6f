package neomapper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityDriver_SaveCreates(t *testing.T) {
	ctx := t.Context()
	runner := NewMockRunner()
	runner.AddRecords(NewRecord([]string{"id(n)"}, int64(5)))
	pm := NewPersistenceManager(runner)

	e := pm.NewEntity("User").Set("name", "Mulkave").Set("nickname", nil)
	require.NoError(t, pm.Entities().Save(ctx, e))

	id, ok := e.ID()
	require.True(t, ok)
	assert.Equal(t, Identity(5), id)
	assert.NotContains(t, e.Properties, "nickname")

	calls := runner.GetCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "CREATE (n:User {name: $name}) RETURN id(n)", calls[0].Query)
	assert.Equal(t, map[string]any{"name": "Mulkave"}, calls[0].Params)
	assert.False(t, calls[0].Read)
}

func TestEntityDriver_SaveUpdatesInTwoPhases(t *testing.T) {
	ctx := t.Context()
	runner := NewMockRunner()
	pm := NewPersistenceManager(runner)

	e := EntityRef(5).Set("a", 1).Set("b", nil)
	require.NoError(t, pm.Entities().Save(ctx, e))

	assert.Equal(t, []string{
		"MATCH (n) WHERE id(n) = $id REMOVE n.b",
		"MATCH (n) WHERE id(n) = $id SET n.a = $a",
	}, runner.Queries())
	assert.Equal(t, Properties{"a": 1}, e.Properties)
}

func TestEntityDriver_SaveWithNothingToWrite(t *testing.T) {
	runner := NewMockRunner()
	pm := NewPersistenceManager(runner)

	require.NoError(t, pm.Entities().Save(t.Context(), EntityRef(5)))
	assert.Zero(t, runner.CallCount())
}

func TestEntityDriver_SaveCreateWithoutIdentityRow(t *testing.T) {
	runner := NewMockRunner()
	pm := NewPersistenceManager(runner)

	e := NewEntity("User")
	err := pm.Entities().Save(t.Context(), e)
	require.Error(t, err)
	assert.False(t, e.HasID())

	var eerr *ExecutionError
	require.True(t, errors.As(err, &eerr))
	assert.ErrorIs(t, err, ErrUnexpectedResult)
	assert.Equal(t, "CREATE (n:User) RETURN id(n)", eerr.Query)
}

func TestEntityDriver_FetchUnexpectedRow(t *testing.T) {
	runner := NewMockRunner()
	runner.AddRecords(NewRecord([]string{"n"}, "not a node"))
	pm := NewPersistenceManager(runner)

	_, err := pm.GetEntity(t.Context(), 5)
	var eerr *ExecutionError
	require.True(t, errors.As(err, &eerr))
	assert.ErrorIs(t, err, ErrUnexpectedResult)
	assert.Equal(t, "MATCH (n) WHERE id(n) = $id RETURN n", eerr.Query)
	assert.Equal(t, map[string]any{"id": int64(5)}, eerr.Params)
}

func TestEntityDriver_ExecutionError(t *testing.T) {
	boom := errors.New("connection reset")
	runner := NewMockRunner()
	runner.AddError(boom)
	pm := NewPersistenceManager(runner)

	err := pm.Entities().Save(t.Context(), NewEntity("User").Set("name", "x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var eerr *ExecutionError
	require.True(t, errors.As(err, &eerr))
	assert.Equal(t, "CREATE (n:User {name: $name}) RETURN id(n)", eerr.Query)
	assert.Equal(t, `connection reset - Query: CREATE (n:User {name: $name}) RETURN id(n) - Bindings: {"name":"x"}`, err.Error())
}

func TestEntityDriver_Fetch(t *testing.T) {
	ctx := t.Context()
	runner := NewMockRunner()
	runner.AddRecords(NewRecord([]string{"n"}, NewNode(5, []string{"User"}, map[string]any{"name": "Mulkave"})))
	pm := NewPersistenceManager(runner)

	e, err := pm.GetEntity(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": int64(5), "name": "Mulkave"}, e.Attributes())
	assert.Equal(t, []string{"User"}, e.Labels)

	calls := runner.GetCalls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Read)
	assert.Equal(t, map[string]any{"id": int64(5)}, calls[0].Params)
}

func TestEntityDriver_FetchNotFound(t *testing.T) {
	pm := NewPersistenceManager(NewMockRunner())

	_, err := pm.GetEntity(t.Context(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEntityDriver_Labels(t *testing.T) {
	runner := NewMockRunner()
	runner.AddRecords(NewRecord([]string{"labels"}, []any{"User", "Admin"}))
	pm := NewPersistenceManager(runner)

	labels, err := pm.Entities().Labels(t.Context(), 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"User", "Admin"}, labels)

	_, err = pm.Entities().Labels(t.Context(), 6)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEntityDriver_AddLabels(t *testing.T) {
	runner := NewMockRunner()
	pm := NewPersistenceManager(runner)

	e := EntityRef(5)
	e.Labels = []string{"User"}
	require.NoError(t, pm.Entities().AddLabels(t.Context(), e, "User", "Admin"))

	assert.Equal(t, []string{"MATCH (n) WHERE id(n) = $id SET n:User:Admin"}, runner.Queries())
	assert.Equal(t, []string{"User", "Admin"}, e.Labels)

	err := pm.Entities().AddLabels(t.Context(), NewEntity(), "Admin")
	assert.ErrorIs(t, err, ErrMissingIdentity)
}

func TestEntityDriver_Delete(t *testing.T) {
	runner := NewMockRunner()
	pm := NewPersistenceManager(runner)

	require.NoError(t, pm.Entities().Delete(t.Context(), EntityRef(5)))
	require.NoError(t, pm.Entities().Delete(t.Context(), EntityRef(5)))
	assert.Equal(t, 2, runner.CallCount())

	err := pm.Entities().Delete(t.Context(), NewEntity("User"))
	assert.ErrorIs(t, err, ErrMissingIdentity)
	assert.Equal(t, 2, runner.CallCount())
}

func TestEntity_IdentityIsWriteOnce(t *testing.T) {
	e := NewEntity("User")
	require.NoError(t, e.assignID(1))
	assert.ErrorIs(t, e.assignID(2), ErrIdentityImmutable)

	id, _ := e.ID()
	assert.Equal(t, Identity(1), id)
}

func TestEntity_MarshalJSON(t *testing.T) {
	e := EntityRef(5)
	e.Labels = []string{"User"}
	e.Set("name", "Mulkave")

	out, err := e.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"labels":["User"],"properties":{"id":5,"name":"Mulkave"}}`, string(out))

	out, err = NewEntity().MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"labels":[],"properties":{}}`, string(out))
}

// Create {name: "Mulkave"}, then fetch it back by the returned identity.
func TestEntityDriver_MulkaveScenario(t *testing.T) {
	ctx := t.Context()
	runner := NewMockRunner()
	runner.AddRecords(NewRecord([]string{"id(n)"}, int64(12)))
	runner.AddRecords(NewRecord([]string{"n"}, NewNode(12, []string{"User"}, map[string]any{"name": "Mulkave"})))
	pm := NewPersistenceManager(runner)

	e := pm.NewEntity("User").Set("name", "Mulkave")
	stmt, err := CompileCreateEntity(e)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Mulkave"}, stmt.Params)

	require.NoError(t, pm.Entities().Save(ctx, e))
	id, ok := e.ID()
	require.True(t, ok)
	assert.Positive(t, id)

	fetched, err := pm.GetEntity(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Mulkave", "id": id}, fetched.Attributes())
}
