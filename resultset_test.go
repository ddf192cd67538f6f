package neomapper

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var entityCmp = cmp.AllowUnexported(Entity{})

func TestNormalizeColumn(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"id(n)", "id"},
		{"id( user )", "id"},
		{"elementId(n)", "id"},
		{"n.name", "name"},
		{"post.created_at", "created_at"},
		{"n.address.city", "address"},
		{"a..b", "a..b"},
		{"count", "count"},
		{"count(n)", "count(n)"},
		{"ids", "ids"},
		{"n.", "n."},
		{"labels", "labels"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeColumn(tt.label))
		})
	}
}

func TestParseRecord_SingleEntity(t *testing.T) {
	node := NewNode(4, []string{"User"}, map[string]any{
		"name": "Alice",
		"tags": []string{"a", "b"},
		"address": map[string]any{
			"city":  "Lyon",
			"lines": []any{"1 rue", int64(2)},
		},
	})

	row := NewResultSetParser().ParseRecord(NewRecord([]string{"n"}, node))
	require.Equal(t, ShapeEntity, row.Shape)
	assert.Equal(t, []string{"n"}, row.Columns)

	want := EntityRef(4)
	want.Labels = []string{"User"}
	want.Properties = Properties{
		"name": "Alice",
		"tags": []any{"a", "b"},
		"address": map[string]any{
			"city":  "Lyon",
			"lines": []any{"1 rue", int64(2)},
		},
	}
	if diff := cmp.Diff(want, row.Entity, entityCmp); diff != "" {
		t.Errorf("entity mismatch (-want +got):\n%s", diff)
	}

	v, ok := row.Value("n")
	require.True(t, ok)
	assert.Same(t, row.Entity, v)

	assert.Equal(t, map[string]any{
		"id":      int64(4),
		"name":    "Alice",
		"tags":    []any{"a", "b"},
		"address": map[string]any{"city": "Lyon", "lines": []any{"1 rue", int64(2)}},
	}, row.Record())
}

func TestParseRecord_Scalar(t *testing.T) {
	row := NewResultSetParser().ParseRecord(NewRecord([]string{"count(n)", "u.name"}, int64(3), "Bob"))
	require.Equal(t, ShapeScalar, row.Shape)
	assert.Equal(t, []string{"count(n)", "name"}, row.Columns)
	assert.Equal(t, map[string]any{"count(n)": int64(3), "name": "Bob"}, row.Fields)
}

func TestParseRecord_ScalarFirstColumnWithNode(t *testing.T) {
	node := NewNode(9, []string{"Post"}, map[string]any{"title": "Hi"})
	row := NewResultSetParser().ParseRecord(NewRecord([]string{"id(p)", "p"}, int64(9), node))

	require.Equal(t, ShapeScalar, row.Shape)
	assert.Equal(t, int64(9), row.Fields["id"])
	post, ok := row.Fields["p"].(*Entity)
	require.True(t, ok)
	assert.Equal(t, "Hi", post.Properties["title"])
}

func TestParseRecord_Columns(t *testing.T) {
	a := NewNode(1, []string{"User"}, map[string]any{"name": "A"})
	b := NewNode(2, []string{"User"}, map[string]any{"name": "B"})
	r := NewRelationship(7, "FOLLOWS", 1, 2, map[string]any{"since": int64(2020)})

	row := NewResultSetParser().ParseRecord(NewRecord([]string{"a", "r", "b"}, a, r, b))
	require.Equal(t, ShapeColumns, row.Shape)
	assert.Equal(t, []string{"a", "r", "b"}, row.Columns)

	want := map[string]any{
		"a": &Entity{id: ptr(Identity(1)), Labels: []string{"User"}, Properties: Properties{"name": "A"}},
		"r": &RelationshipView{ID: 7, Type: "FOLLOWS", StartID: 1, EndID: 2, Properties: Properties{"since": int64(2020)}},
		"b": &Entity{id: ptr(Identity(2)), Labels: []string{"User"}, Properties: Properties{"name": "B"}},
	}
	if diff := cmp.Diff(want, row.Fields, entityCmp); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}

	record := row.Record()
	assert.Equal(t, map[string]any{"id": int64(1), "name": "A"}, record["a"])
}

func TestParseRecord_Lists(t *testing.T) {
	n1 := NewNode(1, []string{"Tag"}, nil)
	n2 := NewNode(2, []string{"Tag"}, nil)
	owner := NewNode(3, []string{"Post"}, nil)

	row := NewResultSetParser().ParseRecord(NewRecord([]string{"p", "tags"}, owner, []any{n1, n2}))
	require.Equal(t, ShapeColumns, row.Shape)

	tags, ok := row.Fields["tags"].([]any)
	require.True(t, ok)
	require.Len(t, tags, 2)
	for i, tag := range tags {
		e, ok := tag.(*Entity)
		require.True(t, ok)
		id, _ := e.ID()
		assert.Equal(t, Identity(i+1), id)
	}
}

func TestParse_BuildsFreshObjects(t *testing.T) {
	node := NewNode(1, []string{"User"}, map[string]any{"name": "A"})
	records := []*neo4j.Record{NewRecord([]string{"n"}, node)}

	parser := NewResultSetParser()
	first := parser.Parse(records)
	second := parser.Parse(records)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.NotSame(t, first[0].Entity, second[0].Entity)
	if diff := cmp.Diff(first[0].Entity, second[0].Entity, entityCmp); diff != "" {
		t.Errorf("entities differ (-first +second):\n%s", diff)
	}

	first[0].Entity.Set("name", "changed")
	assert.Equal(t, "A", second[0].Entity.Properties["name"])
}

func TestParse_EmptyRecord(t *testing.T) {
	row := NewResultSetParser().ParseRecord(NewRecord(nil))
	assert.Equal(t, ShapeScalar, row.Shape)
	assert.Empty(t, row.Fields)
}

func TestRecords(t *testing.T) {
	rows := NewResultSetParser().Parse([]*neo4j.Record{
		NewRecord([]string{"n"}, NewNode(1, []string{"User"}, map[string]any{"name": "Mulkave"})),
		NewRecord([]string{"n"}, NewNode(2, []string{"User"}, map[string]any{"name": "Other"})),
	})

	assert.Equal(t, []map[string]any{
		{"id": int64(1), "name": "Mulkave"},
		{"id": int64(2), "name": "Other"},
	}, Records(rows))
}

func ptr[T any](v T) *T { return &v }
