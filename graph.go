package neomapper

import (
	"encoding/json"
	"sort"
)

// Identity is the internal identifier Neo4j assigns to nodes and
// relationships, as returned by the Cypher id() function.
type Identity = int64

// Properties holds the key-value properties of a node or relationship. A nil
// value is meaningful: on update it removes the key from the stored element.
type Properties map[string]any

// Keys returns the property names in ascending order.
func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// split separates the properties into the keys holding nil and the properties
// holding a value.
func (p Properties) split() (nulls []string, values Properties) {
	values = make(Properties, len(p))
	for _, k := range p.Keys() {
		if p[k] == nil {
			nulls = append(nulls, k)
			continue
		}
		values[k] = p[k]
	}
	return nulls, values
}

// Entity is a graph node: an identity, a set of labels and a property map.
// An Entity without an identity has never been persisted; once assigned, the
// identity never changes.
type Entity struct {
	id     *Identity
	Labels []string
	// Properties never contains the identity; see Attributes.
	Properties Properties
}

// NewEntity creates an unsaved entity carrying the given labels.
func NewEntity(labels ...string) *Entity {
	return &Entity{Labels: labels, Properties: Properties{}}
}

// EntityRef returns a handle for an already persisted node, typically to be
// used as an edge endpoint.
func EntityRef(id Identity) *Entity {
	e := NewEntity()
	e.id = &id
	return e
}

// ID returns the entity identity and whether one has been assigned.
func (e *Entity) ID() (Identity, bool) {
	if e == nil || e.id == nil {
		return 0, false
	}
	return *e.id, true
}

// HasID reports whether the entity has been persisted.
func (e *Entity) HasID() bool {
	_, ok := e.ID()
	return ok
}

func (e *Entity) assignID(id Identity) error {
	if e.id != nil {
		return ErrIdentityImmutable
	}
	e.id = &id
	return nil
}

// Set sets a property. A nil value marks the key for removal on the next save.
func (e *Entity) Set(key string, value any) *Entity {
	if e.Properties == nil {
		e.Properties = Properties{}
	}
	e.Properties[key] = value
	return e
}

// Get returns the value of a property.
func (e *Entity) Get(key string) (any, bool) {
	v, ok := e.Properties[key]
	return v, ok
}

// HasLabel reports whether the entity carries the given label.
func (e *Entity) HasLabel(label string) bool {
	for _, l := range e.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Attributes returns the entity properties merged with its identity under the
// "id" key, the flat shape callers map onto their own types.
func (e *Entity) Attributes() map[string]any {
	attrs := make(map[string]any, len(e.Properties)+1)
	for k, v := range e.Properties {
		attrs[k] = v
	}
	if id, ok := e.ID(); ok {
		attrs["id"] = id
	}
	return attrs
}

// MarshalJSON renders the entity as {"labels": [...], "properties": {"id": ..., ...}}.
func (e *Entity) MarshalJSON() ([]byte, error) {
	labels := e.Labels
	if labels == nil {
		labels = []string{}
	}
	return json.Marshal(struct {
		Labels     []string       `json:"labels"`
		Properties map[string]any `json:"properties"`
	}{Labels: labels, Properties: e.Attributes()})
}

// Edge is a graph relationship between two persisted entities.
//
// Direction is a query-time annotation: Out means the stored relationship
// points from Start to End, In means it points from End to Start.
type Edge struct {
	id         *Identity
	Type       string
	Direction  Direction
	Start      *Entity
	End        *Entity
	Properties Properties
}

// NewEdge creates an unsaved edge of the given type from start to end.
func NewEdge(typ string, start, end *Entity) *Edge {
	return &Edge{
		Type:       typ,
		Direction:  Out,
		Start:      start,
		End:        end,
		Properties: Properties{},
	}
}

// ID returns the edge identity and whether one has been assigned.
func (e *Edge) ID() (Identity, bool) {
	if e == nil || e.id == nil {
		return 0, false
	}
	return *e.id, true
}

// HasID reports whether the edge has been persisted.
func (e *Edge) HasID() bool {
	_, ok := e.ID()
	return ok
}

func (e *Edge) assignID(id Identity) error {
	if e.id != nil {
		return ErrIdentityImmutable
	}
	e.id = &id
	return nil
}

// Set sets a relationship property. A nil value removes it on the next save.
func (e *Edge) Set(key string, value any) *Edge {
	if e.Properties == nil {
		e.Properties = Properties{}
	}
	e.Properties[key] = value
	return e
}

// Get returns the value of a relationship property.
func (e *Edge) Get(key string) (any, bool) {
	v, ok := e.Properties[key]
	return v, ok
}

// MarshalJSON renders the edge with its endpoints reduced to their identities.
func (e *Edge) MarshalJSON() ([]byte, error) {
	out := struct {
		ID         *Identity      `json:"id,omitempty"`
		Type       string         `json:"type"`
		Direction  string         `json:"direction"`
		Start      *Identity      `json:"start,omitempty"`
		End        *Identity      `json:"end,omitempty"`
		Properties map[string]any `json:"properties"`
	}{
		ID:         e.id,
		Type:       e.Type,
		Direction:  e.Direction.String(),
		Properties: e.Properties,
	}
	if out.Properties == nil {
		out.Properties = map[string]any{}
	}
	if id, ok := e.Start.ID(); ok {
		out.Start = &id
	}
	if id, ok := e.End.ID(); ok {
		out.End = &id
	}
	return json.Marshal(out)
}

// RelationshipView is a relationship cell as read from a result row. StartID
// is the physical start node, which is what direction inference relies on.
type RelationshipView struct {
	ID         Identity
	Type       string
	StartID    Identity
	EndID      Identity
	Properties Properties
}

// GraphNode represents a generic node from a Neo4j graph.
// It is a domain-agnostic representation, capturing the essential components of any node:
// its unique internal ID, its labels, and its properties. This struct is designed to be
// easily serialized to JSON.
type GraphNode struct {
	ID         Identity       `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
}

// GraphEdge represents a generic relationship between two nodes of a
// GraphResult, referencing its endpoints by identity.
type GraphEdge struct {
	ID         Identity       `json:"id"`
	Source     Identity       `json:"source"`
	Target     Identity       `json:"target"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// GraphResult is a top-level container for a generic graph query result.
// It is composed of a list of nodes and a list of edges, which is a standard
// format consumed by most frontend graph visualization libraries (e.g., D3.js, Cytoscape.js).
type GraphResult struct {
	Nodes []*GraphNode `json:"nodes"`
	Edges []*GraphEdge `json:"edges"`
}
