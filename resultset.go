package neomapper

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// RowShape classifies a parsed result row.
type RowShape int

const (
	// ShapeScalar is a flat record of scalar values, e.g. an aggregate.
	ShapeScalar RowShape = iota
	// ShapeEntity is a single-column row holding one node.
	ShapeEntity
	// ShapeColumns is a multi-column row whose first column is a node.
	ShapeColumns
)

func (s RowShape) String() string {
	switch s {
	case ShapeScalar:
		return "scalar"
	case ShapeEntity:
		return "entity"
	case ShapeColumns:
		return "columns"
	default:
		return "unknown"
	}
}

// ParsedRow is one result row after classification. Columns lists the
// normalized column keys in result order for every shape. Entity is set for
// ShapeEntity; Fields holds the normalized key to parsed value mapping for the
// two other shapes.
type ParsedRow struct {
	Shape   RowShape
	Columns []string
	Entity  *Entity
	Fields  map[string]any
}

// Value returns the parsed value of a normalized column.
func (r ParsedRow) Value(key string) (any, bool) {
	if r.Shape == ShapeEntity {
		if len(r.Columns) == 1 && r.Columns[0] == key {
			return r.Entity, true
		}
		return nil, false
	}
	v, ok := r.Fields[key]
	return v, ok
}

// Record flattens the row into attributes: a single entity yields its
// attributes including its id, other rows their fields with every entity
// flattened the same way.
func (r ParsedRow) Record() map[string]any {
	if r.Shape == ShapeEntity {
		return r.Entity.Attributes()
	}
	out := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		if e, ok := v.(*Entity); ok {
			out[k] = e.Attributes()
			continue
		}
		out[k] = v
	}
	return out
}

// Records flattens every row with Record.
func Records(rows []ParsedRow) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = r.Record()
	}
	return out
}

var idAccessorPattern = regexp.MustCompile(`^(?:id|elementId)\(\s*[A-Za-z_][A-Za-z0-9_]*\s*\)$`)

// NormalizeColumn maps a result column label to the key callers see: an id
// accessor such as id(n) becomes "id" and alias.property becomes "property".
// The alias only exists to tell several returned nodes apart in one statement.
// Only the segment after the alias is kept, so n.address.city becomes
// "address".
func NormalizeColumn(label string) string {
	if idAccessorPattern.MatchString(label) {
		return "id"
	}
	parts := strings.SplitN(label, ".", 3)
	if len(parts) >= 2 && parts[1] != "" {
		return parts[1]
	}
	return label
}

// ResultSetParser turns raw records into parsed rows. Every call builds fresh
// values; nothing is shared between parses.
type ResultSetParser struct{}

// NewResultSetParser returns a parser.
func NewResultSetParser() *ResultSetParser {
	return &ResultSetParser{}
}

// Parse classifies every record independently.
func (p *ResultSetParser) Parse(records []*neo4j.Record) []ParsedRow {
	rows := make([]ParsedRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, p.ParseRecord(record))
	}
	return rows
}

// ParseRecord classifies one record:
//   - when the first value is not a node the record is a flat scalar record;
//   - a single node column yields the entity itself;
//   - several columns yield a map from normalized column label to value.
func (p *ResultSetParser) ParseRecord(record *neo4j.Record) ParsedRow {
	columns := make([]string, len(record.Keys))
	for i, k := range record.Keys {
		columns[i] = NormalizeColumn(k)
	}

	if len(record.Values) == 0 {
		return ParsedRow{Shape: ShapeScalar, Columns: columns, Fields: map[string]any{}}
	}

	first, isNode := record.Values[0].(neo4j.Node)
	if isNode && len(record.Values) == 1 {
		return ParsedRow{Shape: ShapeEntity, Columns: columns, Entity: entityFromNode(first)}
	}

	shape := ShapeColumns
	if !isNode {
		shape = ShapeScalar
	}
	fields := make(map[string]any, len(record.Values))
	for i, v := range record.Values {
		if i >= len(columns) {
			break
		}
		fields[columns[i]] = normalizeValue(v)
	}
	return ParsedRow{Shape: shape, Columns: columns, Fields: fields}
}

func entityFromNode(node neo4j.Node) *Entity {
	labels := make([]string, len(node.Labels))
	copy(labels, node.Labels)
	e := &Entity{Labels: labels, Properties: normalizeProperties(node.Props)}
	id := node.Id
	e.id = &id
	return e
}

func relationshipFromDriver(rel neo4j.Relationship) *RelationshipView {
	return &RelationshipView{
		ID:         rel.Id,
		Type:       rel.Type,
		StartID:    rel.StartId,
		EndID:      rel.EndId,
		Properties: normalizeProperties(rel.Props),
	}
}

func normalizeProperties(props map[string]any) Properties {
	out := make(Properties, len(props))
	for k, v := range props {
		out[k] = normalizeValue(v)
	}
	return out
}

// normalizeValue copies driver values into plain Go values: nodes become
// entities, relationships become views and any list-like value becomes a
// plain []any, eagerly and recursively.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case neo4j.Node:
		return entityFromNode(val)
	case *neo4j.Node:
		return entityFromNode(*val)
	case neo4j.Relationship:
		return relationshipFromDriver(val)
	case *neo4j.Relationship:
		return relationshipFromDriver(*val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeValue(item)
		}
		return out
	case string, []byte:
		return val
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = normalizeValue(rv.Index(i).Interface())
		}
		return out
	}
	return v
}
