package neomapper

import (
	"errors"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCat struct {
	ID    int64
	Name  string
	Lives int
}

type testDog struct {
	ID    int64
	Name  string
	Breed string
}

type testOwner struct {
	ID   int64
	Name string
}

func parseOne(t *testing.T, keys []string, values ...any) ParsedRow {
	t.Helper()
	rows := NewResultSetParser().Parse([]*neo4j.Record{NewRecord(keys, values...)})
	require.Len(t, rows, 1)
	return rows[0]
}

func petTargets() MorphTargets {
	return MorphTargets{
		"Cat": Decode[testCat](),
		"Dog": Decode[testDog](),
	}
}

func TestNewMutations_Validation(t *testing.T) {
	_, err := NewMutations(ResolveOne("a", Decode[testOwner]()), ResolveMany("a", Decode[testOwner]()))
	assert.ErrorIs(t, err, ErrDuplicatePlaceholder)

	_, err = NewMutations(ResolveOne("a", nil))
	assert.Error(t, err)

	_, err = NewMutations(ResolveMorph("pet", "", nil))
	assert.Error(t, err)

	_, err = NewMutations(Shape{Placeholder: "x", Cardinality: Cardinality(42), Target: Decode[testOwner]()})
	assert.Error(t, err)
}

func TestMutations_ShouldMutate(t *testing.T) {
	m, err := NewMutations(ResolveOne("owner", Decode[testOwner]()))
	require.NoError(t, err)

	assert.True(t, m.ShouldMutate("owner"))
	assert.True(t, m.ShouldMutate("x.owner"))
	assert.False(t, m.ShouldMutate("pet"))
}

func TestResolve_One(t *testing.T) {
	m, err := NewMutations(ResolveOne("owner", Decode[testOwner]()))
	require.NoError(t, err)

	row := parseOne(t, []string{"owner"}, NewNode(3, []string{"Owner"}, map[string]any{"name": "Ann"}))
	resolved, err := m.ResolveRow(row)
	require.NoError(t, err)
	assert.Equal(t, ResolvedRow{"owner": &testOwner{ID: 3, Name: "Ann"}}, resolved)
}

func TestResolve_OneCardinalityMismatch(t *testing.T) {
	m, err := NewMutations(ResolveOne("owners", Decode[testOwner]()))
	require.NoError(t, err)

	row := parseOne(t, []string{"p", "owners"},
		NewNode(1, []string{"Pet"}, nil),
		[]any{NewNode(2, []string{"Owner"}, nil), NewNode(3, []string{"Owner"}, nil)})

	_, err = m.ResolveRow(row)
	assert.ErrorIs(t, err, ErrCardinalityMismatch)

	var rerr *ResolutionError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "owners", rerr.Placeholder)
}

func TestResolve_ManyPassesOtherColumnsThrough(t *testing.T) {
	m, err := NewMutations(
		ResolveMany("owner", Decode[testOwner]()),
		ResolveMany("vet", Decode[testOwner]()),
	)
	require.NoError(t, err)

	row := parseOne(t, []string{"p", "owner", "vet", "visits"},
		NewNode(1, []string{"Pet"}, map[string]any{"name": "Rex"}),
		[]any{NewNode(2, []string{"Owner"}, map[string]any{"name": "Ann"}), NewNode(4, []string{"Owner"}, nil)},
		NewNode(3, []string{"Vet"}, map[string]any{"name": "Dr. Who"}),
		int64(12))

	resolved, err := m.ResolveRow(row)
	require.NoError(t, err)

	assert.Equal(t, &testOwner{ID: 2, Name: "Ann"}, resolved["owner"])
	assert.Equal(t, &testOwner{ID: 3, Name: "Dr. Who"}, resolved["vet"])
	assert.Equal(t, int64(12), resolved["visits"])

	pet, ok := resolved["p"].(*Entity)
	require.True(t, ok)
	assert.Equal(t, "Rex", pet.Properties["name"])
}

func TestResolve_Morph(t *testing.T) {
	m, err := NewMutations(ResolveMorph("pet", "target_type", petTargets()))
	require.NoError(t, err)

	row := parseOne(t, []string{"o", "r", "pet"},
		NewNode(1, []string{"Owner"}, map[string]any{"name": "Ann"}),
		NewRelationship(10, "OWNS", 1, 2, map[string]any{"target_type": "Cat"}),
		NewNode(2, []string{"Cat"}, map[string]any{"name": "Tom", "lives": int64(9)}))

	resolved, err := m.ResolveRow(row)
	require.NoError(t, err)
	assert.Equal(t, &testCat{ID: 2, Name: "Tom", Lives: 9}, resolved["pet"])
}

func TestResolve_MorphDefaultDiscriminator(t *testing.T) {
	m, err := NewMutations(ResolveMorph("pet", "", petTargets()))
	require.NoError(t, err)

	row := parseOne(t, []string{"o", "r", "pet"},
		NewNode(1, []string{"Owner"}, nil),
		NewRelationship(10, "OWNS", 1, 2, map[string]any{DefaultMorphTypeProperty: "Dog"}),
		NewNode(2, []string{"Dog"}, map[string]any{"name": "Rex", "breed": "Collie"}))

	resolved, err := m.ResolveRow(row)
	require.NoError(t, err)
	assert.Equal(t, &testDog{ID: 2, Name: "Rex", Breed: "Collie"}, resolved["pet"])
}

func TestResolve_MorphErrors(t *testing.T) {
	owner := NewNode(1, []string{"Owner"}, nil)
	cat := NewNode(2, []string{"Cat"}, map[string]any{"name": "Tom"})

	tests := []struct {
		name string
		row  ParsedRow
		kind error
	}{
		{
			name: "no relationship in the row",
			row:  parseOne(t, []string{"o", "pet"}, owner, cat),
			kind: ErrMissingDiscriminatorSource,
		},
		{
			name: "relationship without discriminator",
			row:  parseOne(t, []string{"o", "r", "pet"}, owner, NewRelationship(10, "OWNS", 1, 2, nil), cat),
			kind: ErrMissingDiscriminator,
		},
		{
			name: "discriminator that is not a string",
			row:  parseOne(t, []string{"o", "r", "pet"}, owner, NewRelationship(10, "OWNS", 1, 2, map[string]any{"target_type": int64(1)}), cat),
			kind: ErrMissingDiscriminator,
		},
		{
			name: "unregistered type",
			row:  parseOne(t, []string{"o", "r", "pet"}, owner, NewRelationship(10, "OWNS", 1, 2, map[string]any{"target_type": "Parrot"}), cat),
			kind: ErrUnknownMorphTarget,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMutations(ResolveMorph("pet", "target_type", petTargets()))
			require.NoError(t, err)

			_, err = m.ResolveRow(tt.row)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestResolve_MorphEager(t *testing.T) {
	m, err := NewMutations(ResolveMorphEager("pets", "target_type", petTargets()))
	require.NoError(t, err)

	row := parseOne(t, []string{"o", "rels", "pets"},
		NewNode(1, []string{"Owner"}, nil),
		[]any{
			NewRelationship(10, "OWNS", 1, 2, map[string]any{"target_type": "Cat"}),
			NewRelationship(11, "OWNS", 1, 3, map[string]any{"target_type": "Dog"}),
		},
		[]any{
			NewNode(2, []string{"Cat"}, map[string]any{"name": "Tom"}),
			NewNode(3, []string{"Dog"}, map[string]any{"name": "Rex"}),
		})

	resolved, err := m.ResolveRow(row)
	require.NoError(t, err)
	assert.Equal(t, []any{
		&testCat{ID: 2, Name: "Tom"},
		&testDog{ID: 3, Name: "Rex"},
	}, resolved["pets"])
}

func TestResolve_MorphEagerSingleRelationship(t *testing.T) {
	m, err := NewMutations(ResolveMorphEager("pet", "target_type", petTargets()))
	require.NoError(t, err)

	row := parseOne(t, []string{"o", "r", "pet"},
		NewNode(1, []string{"Owner"}, nil),
		NewRelationship(10, "OWNS", 1, 2, map[string]any{"target_type": "Cat"}),
		NewNode(2, []string{"Cat"}, map[string]any{"name": "Tom"}))

	resolved, err := m.ResolveRow(row)
	require.NoError(t, err)
	assert.Equal(t, []any{&testCat{ID: 2, Name: "Tom"}}, resolved["pet"])
}

func TestResolve_MorphEagerPairingMismatch(t *testing.T) {
	m, err := NewMutations(ResolveMorphEager("pets", "target_type", petTargets()))
	require.NoError(t, err)

	row := parseOne(t, []string{"o", "rels", "pets"},
		NewNode(1, []string{"Owner"}, nil),
		[]any{
			NewRelationship(10, "OWNS", 1, 2, map[string]any{"target_type": "Cat"}),
			NewRelationship(11, "OWNS", 1, 3, map[string]any{"target_type": "Dog"}),
		},
		[]any{NewNode(2, []string{"Cat"}, nil), NewNode(3, []string{"Dog"}, nil), NewNode(4, []string{"Dog"}, nil)})

	_, err = m.ResolveRow(row)
	assert.ErrorIs(t, err, ErrCardinalityMismatch)
}

func TestResolve_AllRows(t *testing.T) {
	m, err := NewMutations(ResolveOne("owner", Decode[testOwner]()))
	require.NoError(t, err)

	rows := NewResultSetParser().Parse([]*neo4j.Record{
		NewRecord([]string{"owner"}, NewNode(1, []string{"Owner"}, map[string]any{"name": "A"})),
		NewRecord([]string{"owner"}, NewNode(2, []string{"Owner"}, map[string]any{"name": "B"})),
	})

	resolved, err := m.Resolve(rows)
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, &testOwner{ID: 2, Name: "B"}, resolved[1]["owner"])
}

func TestCardinality_String(t *testing.T) {
	assert.Equal(t, "one", One.String())
	assert.Equal(t, "many", Many.String())
	assert.Equal(t, "morph", Morph.String())
	assert.Equal(t, "morphEager", MorphEager.String())
}
