package neomapper

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is a sentinel error returned by Find operations when no record
// matching the criteria is found in the database.
var ErrNotFound = errors.New("record not found")

// ErrUnexpectedResult is wrapped in an *ExecutionError when a statement ran
// but its rows do not have the count or shape the operation needs, such as a
// create whose MATCH found no endpoint.
var ErrUnexpectedResult = errors.New("unexpected result")

// ErrIdentityImmutable is returned when an identity is assigned to an entity or
// edge that already carries one.
var ErrIdentityImmutable = errors.New("identity already assigned")

// Compile error kinds. A *CompileError matches its kind with errors.Is.
var (
	ErrMissingType             = errors.New("edge type is not set")
	ErrMissingEndpointIdentity = errors.New("edge endpoint has no persisted identity")
	ErrMissingIdentity         = errors.New("operation requires a persisted identity")
	ErrEmptyWrite              = errors.New("write clause has no fields")
	ErrInvalidIdentifier       = errors.New("invalid identifier")
	ErrReservedProperty        = errors.New("property name is reserved")
)

// Resolution error kinds. A *ResolutionError matches its kind with errors.Is.
var (
	ErrMissingDiscriminatorSource = errors.New("row has no relationship to read the morph type from")
	ErrMissingDiscriminator       = errors.New("relationship does not carry the morph type property")
	ErrUnknownMorphTarget         = errors.New("no target registered for morph type")
	ErrCardinalityMismatch        = errors.New("column does not match the placeholder cardinality")
	ErrDuplicatePlaceholder       = errors.New("placeholder registered twice")
)

// CompileError reports a statement that could not be compiled. These are
// programmer errors and are never worth retrying.
type CompileError struct {
	Op     string
	Kind   error
	Detail string
}

func (e *CompileError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("compile %s: %v: %s", e.Op, e.Kind, e.Detail)
	}
	return fmt.Sprintf("compile %s: %v", e.Op, e.Kind)
}

func (e *CompileError) Unwrap() error { return e.Kind }

func compileErr(op string, kind error, detail string) *CompileError {
	return &CompileError{Op: op, Kind: kind, Detail: detail}
}

// ResolutionError reports a result row that could not be reshaped into the
// registered placeholder shapes.
type ResolutionError struct {
	Placeholder string
	Kind        error
	Detail      string
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("resolve placeholder %q: %v", e.Placeholder, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ResolutionError) Unwrap() error { return e.Kind }

// ExecutionError wraps a failure returned by the database together with the
// statement and bindings that produced it.
type ExecutionError struct {
	Query  string
	Params map[string]any
	Err    error
}

func (e *ExecutionError) Error() string {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	msg += " - Query: " + e.Query
	if len(e.Params) > 0 {
		bindings, err := json.Marshal(e.Params)
		if err != nil {
			bindings = []byte(fmt.Sprintf("%v", e.Params))
		}
		msg += " - Bindings: " + string(bindings)
	}
	return msg
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// unexpectedResult attaches stmt to a failure found while reading its rows.
func unexpectedResult(stmt Statement, err error) error {
	return &ExecutionError{
		Query:  stmt.Text,
		Params: stmt.Params,
		Err:    fmt.Errorf("%w: %w", ErrUnexpectedResult, err),
	}
}

// UnknownDirectionError is returned by ParseDirection for tokens outside of
// out, in and the undirected spellings.
type UnknownDirectionError struct {
	Token string
}

func (e *UnknownDirectionError) Error() string {
	return fmt.Sprintf("unknown direction %q", e.Token)
}
