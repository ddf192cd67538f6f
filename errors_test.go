package neomapper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompileError(t *testing.T) {
	err := compileErr("create-edge", ErrMissingType, "")
	assert.Equal(t, "compile create-edge: edge type is not set", err.Error())
	assert.ErrorIs(t, err, ErrMissingType)

	err = compileErr("create-edge", ErrMissingEndpointIdentity, "start")
	assert.Equal(t, "compile create-edge: edge endpoint has no persisted identity: start", err.Error())
}

func TestResolutionError(t *testing.T) {
	err := &ResolutionError{Placeholder: "pet", Kind: ErrUnknownMorphTarget, Detail: "Parrot"}
	assert.Equal(t, `resolve placeholder "pet": no target registered for morph type: Parrot`, err.Error())
	assert.ErrorIs(t, err, ErrUnknownMorphTarget)
	assert.NotErrorIs(t, err, ErrMissingDiscriminator)
}

func TestExecutionError(t *testing.T) {
	cause := errors.New("Neo.ClientError.Statement.SyntaxError")
	err := &ExecutionError{
		Query:  "MATCH (n) WHERE id(n) = $id RETURN n",
		Params: map[string]any{"id": int64(4)},
		Err:    cause,
	}
	assert.Equal(t, `Neo.ClientError.Statement.SyntaxError - Query: MATCH (n) WHERE id(n) = $id RETURN n - Bindings: {"id":4}`, err.Error())
	assert.ErrorIs(t, err, cause)
}
