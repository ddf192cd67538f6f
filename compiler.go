package neomapper

import (
	"fmt"
	"regexp"
	"strings"
)

// Statement is a compiled Cypher query and its named parameters. Values are
// always bound as parameters; only validated identifiers (labels, types and
// property names) are written into the text.
type Statement struct {
	Text   string
	Params map[string]any
}

func (s Statement) String() string { return s.Text }

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var (
	entityReserved = []string{"id"}
	edgeReserved   = []string{"id", "start", "end"}
)

// clauseMode selects how renderProperties writes a property set.
type clauseMode int

const (
	// inlineMap renders "{k: $k, ...}" for a CREATE pattern. Nil values are
	// left out: a key absent from a create pattern is simply never set.
	inlineMap clauseMode = iota
	// setClause renders "SET x.k = $k, ..." for the non-nil values.
	setClause
	// removeClause renders "REMOVE x.k, ..." for the nil values.
	removeClause
)

// renderProperties is the single property clause renderer shared by create and
// update compilation. Bound values are added to params. An empty SET or REMOVE
// clause is ErrEmptyWrite; an empty inline map renders as "".
func renderProperties(op, alias string, props Properties, mode clauseMode, reserved []string, params map[string]any) (string, error) {
	nulls, values := props.split()
	for _, k := range props.Keys() {
		if err := checkIdentifier(op, "property", k); err != nil {
			return "", err
		}
		for _, r := range reserved {
			if k == r {
				return "", compileErr(op, ErrReservedProperty, k)
			}
		}
	}

	switch mode {
	case inlineMap:
		if len(values) == 0 {
			return "", nil
		}
		parts := make([]string, 0, len(values))
		for _, k := range values.Keys() {
			parts = append(parts, k+": $"+k)
			params[k] = values[k]
		}
		return " {" + strings.Join(parts, ", ") + "}", nil

	case setClause:
		if len(values) == 0 {
			return "", compileErr(op, ErrEmptyWrite, "no values to set")
		}
		parts := make([]string, 0, len(values))
		for _, k := range values.Keys() {
			parts = append(parts, alias+"."+k+" = $"+k)
			params[k] = values[k]
		}
		return "SET " + strings.Join(parts, ", "), nil

	case removeClause:
		if len(nulls) == 0 {
			return "", compileErr(op, ErrEmptyWrite, "no keys to remove")
		}
		parts := make([]string, 0, len(nulls))
		for _, k := range nulls {
			parts = append(parts, alias+"."+k)
		}
		return "REMOVE " + strings.Join(parts, ", "), nil
	}
	return "", fmt.Errorf("unknown clause mode %d", mode)
}

func checkIdentifier(op, what, name string) error {
	if !identifierPattern.MatchString(name) {
		return compileErr(op, ErrInvalidIdentifier, fmt.Sprintf("%s %q", what, name))
	}
	return nil
}

func renderLabels(op string, labels []string) (string, error) {
	var b strings.Builder
	for _, l := range labels {
		if err := checkIdentifier(op, "label", l); err != nil {
			return "", err
		}
		b.WriteString(":" + l)
	}
	return b.String(), nil
}

// CompileCreateEntity compiles the creation of a node with its labels and
// non-nil properties. The statement returns the new identity as id(n).
func CompileCreateEntity(e *Entity) (Statement, error) {
	const op = "create-entity"
	params := map[string]any{}
	labels, err := renderLabels(op, e.Labels)
	if err != nil {
		return Statement{}, err
	}
	props, err := renderProperties(op, "n", e.Properties, inlineMap, entityReserved, params)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		Text:   "CREATE (n" + labels + props + ") RETURN id(n)",
		Params: params,
	}, nil
}

// CompileFetchEntity compiles the lookup of a single node by identity.
func CompileFetchEntity(id Identity) Statement {
	return Statement{
		Text:   "MATCH (n) WHERE id(n) = $id RETURN n",
		Params: map[string]any{"id": id},
	}
}

// CompileFetchLabels compiles the lookup of a node's labels.
func CompileFetchLabels(id Identity) Statement {
	return Statement{
		Text:   "MATCH (n) WHERE id(n) = $id RETURN labels(n) AS labels",
		Params: map[string]any{"id": id},
	}
}

// CompileAddLabels compiles adding labels to an existing node.
func CompileAddLabels(id Identity, labels []string) (Statement, error) {
	const op = "add-labels"
	if len(labels) == 0 {
		return Statement{}, compileErr(op, ErrEmptyWrite, "no labels")
	}
	rendered, err := renderLabels(op, labels)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		Text:   "MATCH (n) WHERE id(n) = $id SET n" + rendered,
		Params: map[string]any{"id": id},
	}, nil
}

// CompileUpdateEntity compiles the update of a persisted node in up to two
// statements: one removing the keys set to nil, then one setting the others.
// A phase with nothing to write is left out, so an update with no properties
// compiles to no statement at all.
func CompileUpdateEntity(e *Entity) ([]Statement, error) {
	const op = "update-entity"
	id, ok := e.ID()
	if !ok {
		return nil, compileErr(op, ErrMissingIdentity, "entity")
	}
	match := "MATCH (n) WHERE id(n) = $id "
	return compileUpdate(op, "n", match, map[string]any{"id": id}, e.Properties, entityReserved)
}

func compileUpdate(op, alias, match string, base map[string]any, props Properties, reserved []string) ([]Statement, error) {
	nulls, values := props.split()
	var stmts []Statement

	if len(nulls) > 0 {
		params := copyParams(base)
		clause, err := renderProperties(op, alias, props, removeClause, reserved, params)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, Statement{Text: match + clause, Params: params})
	}
	if len(values) > 0 {
		params := copyParams(base)
		clause, err := renderProperties(op, alias, props, setClause, reserved, params)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, Statement{Text: match + clause, Params: params})
	}
	return stmts, nil
}

func copyParams(base map[string]any) map[string]any {
	params := make(map[string]any, len(base))
	for k, v := range base {
		params[k] = v
	}
	return params
}

// CompileDeleteEntity compiles the removal of a node and its relationships.
func CompileDeleteEntity(id Identity) Statement {
	return Statement{
		Text:   "MATCH (n) WHERE id(n) = $id DETACH DELETE n",
		Params: map[string]any{"id": id},
	}
}

func edgeEndpoints(op string, e *Edge) (start, end Identity, err error) {
	if e.Type == "" {
		return 0, 0, compileErr(op, ErrMissingType, "")
	}
	if err := checkIdentifier(op, "type", e.Type); err != nil {
		return 0, 0, err
	}
	if !e.Direction.valid() {
		return 0, 0, &UnknownDirectionError{Token: e.Direction.String()}
	}
	start, ok := e.Start.ID()
	if !ok {
		return 0, 0, compileErr(op, ErrMissingEndpointIdentity, "start")
	}
	end, ok = e.End.ID()
	if !ok {
		return 0, 0, compileErr(op, ErrMissingEndpointIdentity, "end")
	}
	return start, end, nil
}

// CompileCreateEdge compiles the creation of a relationship between the two
// persisted endpoints of e. A relationship must be stored with a direction, so
// an Undirected edge is created from Start to End.
func CompileCreateEdge(e *Edge) (Statement, error) {
	const op = "create-edge"
	start, end, err := edgeEndpoints(op, e)
	if err != nil {
		return Statement{}, err
	}
	params := map[string]any{"start": start, "end": end}
	inline, err := renderProperties(op, "r", e.Properties, inlineMap, edgeReserved, params)
	if err != nil {
		return Statement{}, err
	}
	direction := e.Direction
	if direction == Undirected {
		direction = Out
	}
	return Statement{
		Text: "MATCH (a), (b) WHERE id(a) = $start AND id(b) = $end CREATE " +
			renderPattern(direction, e.Type, inline) + " RETURN id(r)",
		Params: params,
	}, nil
}

// CompileUpdateEdge compiles the two-phase property update of a persisted
// relationship, see CompileUpdateEntity.
func CompileUpdateEdge(e *Edge) ([]Statement, error) {
	const op = "update-edge"
	if _, _, err := edgeEndpoints(op, e); err != nil {
		return nil, err
	}
	id, ok := e.ID()
	if !ok {
		return nil, compileErr(op, ErrMissingIdentity, "edge")
	}
	match := "MATCH " + renderPattern(e.Direction, e.Type, "") + " WHERE id(r) = $id "
	return compileUpdate(op, "r", match, map[string]any{"id": id}, e.Properties, edgeReserved)
}

// CompileDeleteEdge compiles the removal of a relationship, by identity when
// it is known and by endpoints and type otherwise. The statement reports the
// number of deleted relationships, which is zero when it is run again.
func CompileDeleteEdge(e *Edge) (Statement, error) {
	const op = "delete-edge"
	start, end, err := edgeEndpoints(op, e)
	if err != nil {
		return Statement{}, err
	}
	pattern := renderPattern(e.Direction, e.Type, "")
	if id, ok := e.ID(); ok {
		return Statement{
			Text:   "MATCH " + pattern + " WHERE id(r) = $id DELETE r RETURN count(r) AS deleted",
			Params: map[string]any{"id": id},
		}, nil
	}
	return Statement{
		Text:   "MATCH " + pattern + " WHERE id(a) = $start AND id(b) = $end DELETE r RETURN count(r) AS deleted",
		Params: map[string]any{"start": start, "end": end},
	}, nil
}

// CompileFetchEdges compiles the traversal of relationships of q.Type around
// the reference endpoint q.Start, optionally narrowed to q.End. Rows carry the
// reference node as a, the relationship as r and the other node as b.
func CompileFetchEdges(q EdgeQuery) (Statement, error) {
	const op = "fetch-edges"
	if q.Type == "" {
		return Statement{}, compileErr(op, ErrMissingType, "")
	}
	if err := checkIdentifier(op, "type", q.Type); err != nil {
		return Statement{}, err
	}
	if !q.Direction.valid() {
		return Statement{}, &UnknownDirectionError{Token: q.Direction.String()}
	}
	start, ok := q.Start.ID()
	if !ok {
		return Statement{}, compileErr(op, ErrMissingEndpointIdentity, "start")
	}

	params := map[string]any{"start": start}
	where := "id(a) = $start"
	if q.End != nil {
		end, ok := q.End.ID()
		if !ok {
			return Statement{}, compileErr(op, ErrMissingEndpointIdentity, "end")
		}
		params["end"] = end
		where += " AND id(b) = $end"
	}
	return Statement{
		Text:   "MATCH " + renderPattern(q.Direction, q.Type, "") + " WHERE " + where + " RETURN a, r, b",
		Params: params,
	}, nil
}
