package neomapper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirection(t *testing.T) {
	tests := []struct {
		token string
		want  Direction
	}{
		{"out", Out},
		{"OUT", Out},
		{" in ", In},
		{"In", In},
		{"", Undirected},
		{"any", Undirected},
		{"all", Undirected},
		{"both", Undirected},
		{"Undirected", Undirected},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ParseDirection(tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDirection_Unknown(t *testing.T) {
	for _, token := range []string{"sideways", "->", "outgoing"} {
		_, err := ParseDirection(token)
		var derr *UnknownDirectionError
		require.True(t, errors.As(err, &derr), token)
		assert.Equal(t, token, derr.Token)
		assert.Contains(t, err.Error(), token)
	}
}

func TestDirection_Reverse(t *testing.T) {
	assert.Equal(t, In, Out.Reverse())
	assert.Equal(t, Out, In.Reverse())
	assert.Equal(t, Undirected, Undirected.Reverse())
}

func TestDirection_String(t *testing.T) {
	for _, d := range []Direction{Out, In, Undirected} {
		parsed, err := ParseDirection(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, parsed)
	}
	assert.Equal(t, "Direction(7)", Direction(7).String())
}

func TestRenderPattern(t *testing.T) {
	assert.Equal(t, "(a)-[r:KNOWS]->(b)", renderPattern(Out, "KNOWS", ""))
	assert.Equal(t, "(a)<-[r:KNOWS]-(b)", renderPattern(In, "KNOWS", ""))
	assert.Equal(t, "(a)-[r:KNOWS]-(b)", renderPattern(Undirected, "KNOWS", ""))
	assert.Equal(t, "(a)-[r]-(b)", renderPattern(Undirected, "", ""))
	assert.Equal(t, "(a)-[r:KNOWS {since: $since}]->(b)", renderPattern(Out, "KNOWS", " {since: $since}"))
}
