package neomapper

import (
	"fmt"
	"reflect"
)

// DefaultMorphTypeProperty is the relationship property read to pick the
// concrete type of a polymorphic endpoint when a shape does not name one.
const DefaultMorphTypeProperty = "morph_type"

// Cardinality tells the resolver how a placeholder column is reshaped.
type Cardinality int

const (
	// One resolves the single entity under the placeholder column.
	One Cardinality = iota
	// Many resolves the first entity of the placeholder column; used when one
	// query loads several one-to-one relations in parallel columns.
	Many
	// Morph resolves a polymorphic endpoint whose type is read from the row's
	// relationship, producing a single value.
	Morph
	// MorphEager is Morph producing a collection, for eager loading many
	// polymorphic endpoints at once.
	MorphEager
)

func (c Cardinality) String() string {
	switch c {
	case One:
		return "one"
	case Many:
		return "many"
	case Morph:
		return "morph"
	case MorphEager:
		return "morphEager"
	default:
		return fmt.Sprintf("Cardinality(%d)", int(c))
	}
}

func (c Cardinality) isMorph() bool { return c == Morph || c == MorphEager }

// Target builds a caller-level object out of a parsed entity.
type Target func(*Entity) (any, error)

// MorphTargets maps a morph type name, as stored on the relationship, to the
// Target that builds it.
type MorphTargets map[string]Target

// Shape registers how a placeholder column of a result set is to be resolved.
type Shape struct {
	Placeholder string
	Cardinality Cardinality
	// Target is used by One and Many.
	Target Target
	// Discriminator is the relationship property naming the morph type.
	// Defaults to DefaultMorphTypeProperty.
	Discriminator string
	// Targets is used by Morph and MorphEager.
	Targets MorphTargets
}

// ResolveOne registers a placeholder holding exactly one entity.
func ResolveOne(placeholder string, target Target) Shape {
	return Shape{Placeholder: placeholder, Cardinality: One, Target: target}
}

// ResolveMany registers a placeholder resolved from the first entity of its
// column group.
func ResolveMany(placeholder string, target Target) Shape {
	return Shape{Placeholder: placeholder, Cardinality: Many, Target: target}
}

// ResolveMorph registers a polymorphic placeholder. An empty discriminator
// selects DefaultMorphTypeProperty.
func ResolveMorph(placeholder, discriminator string, targets MorphTargets) Shape {
	return Shape{Placeholder: placeholder, Cardinality: Morph, Discriminator: discriminator, Targets: targets}
}

// ResolveMorphEager registers a polymorphic placeholder resolved into a
// collection.
func ResolveMorphEager(placeholder, discriminator string, targets MorphTargets) Shape {
	return Shape{Placeholder: placeholder, Cardinality: MorphEager, Discriminator: discriminator, Targets: targets}
}

// Decode returns a Target building a *T from the entity attributes. Fields are
// matched through their crud struct tags, see RepositoryFor.
func Decode[T any]() Target {
	return func(e *Entity) (any, error) {
		out := new(T)
		meta, err := metadataFor(reflect.TypeOf(out))
		if err != nil {
			return nil, err
		}
		if err := mapNodeToStruct(e, out, meta); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// ResolvedRow is a row reshaped by Mutations, keyed by normalized column.
// Registered placeholders hold the resolved objects, other columns their
// parsed values.
type ResolvedRow map[string]any

// Mutations is the set of placeholder shapes registered for one query. It is
// consumed by Resolve and should not be reused for another result set.
type Mutations struct {
	shapes map[string]Shape
}

// NewMutations validates and registers the shapes.
func NewMutations(shapes ...Shape) (*Mutations, error) {
	m := &Mutations{shapes: make(map[string]Shape, len(shapes))}
	for _, s := range shapes {
		if _, dup := m.shapes[s.Placeholder]; dup {
			return nil, &ResolutionError{Placeholder: s.Placeholder, Kind: ErrDuplicatePlaceholder}
		}
		switch {
		case s.Cardinality.isMorph():
			if len(s.Targets) == 0 {
				return nil, fmt.Errorf("placeholder %q: %s shape needs morph targets", s.Placeholder, s.Cardinality)
			}
			if s.Discriminator == "" {
				s.Discriminator = DefaultMorphTypeProperty
			}
		case s.Cardinality == One || s.Cardinality == Many:
			if s.Target == nil {
				return nil, fmt.Errorf("placeholder %q: %s shape needs a target", s.Placeholder, s.Cardinality)
			}
		default:
			return nil, fmt.Errorf("placeholder %q: unknown cardinality %s", s.Placeholder, s.Cardinality)
		}
		m.shapes[s.Placeholder] = s
	}
	return m, nil
}

// ShouldMutate reports whether a column label, after normalization, matches a
// registered placeholder.
func (m *Mutations) ShouldMutate(column string) bool {
	_, ok := m.shapes[NormalizeColumn(column)]
	return ok
}

// Resolve reshapes every row. The first failing row aborts the resolution.
func (m *Mutations) Resolve(rows []ParsedRow) ([]ResolvedRow, error) {
	out := make([]ResolvedRow, 0, len(rows))
	for i, row := range rows {
		resolved, err := m.ResolveRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, resolved)
	}
	return out, nil
}

// ResolveRow reshapes a single row.
func (m *Mutations) ResolveRow(row ParsedRow) (ResolvedRow, error) {
	out := make(ResolvedRow, len(row.Columns))
	for _, col := range row.Columns {
		value, _ := row.Value(col)
		shape, ok := m.shapes[col]
		if !ok {
			out[col] = value
			continue
		}

		var (
			resolved any
			err      error
		)
		switch shape.Cardinality {
		case One:
			resolved, err = resolveOne(shape, value)
		case Many:
			resolved, err = resolveMany(shape, value)
		case Morph:
			resolved, err = resolveMorph(shape, value, row)
		case MorphEager:
			resolved, err = resolveMorphEager(shape, value, row)
		}
		if err != nil {
			return nil, err
		}
		out[col] = resolved
	}
	return out, nil
}

func resolveOne(shape Shape, value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case *Entity:
		return shape.Target(v)
	case []any:
		if len(v) == 1 {
			if e, ok := v[0].(*Entity); ok {
				return shape.Target(e)
			}
		}
		return nil, &ResolutionError{Placeholder: shape.Placeholder, Kind: ErrCardinalityMismatch,
			Detail: fmt.Sprintf("expected one entity, got a list of %d", len(v))}
	}
	return nil, &ResolutionError{Placeholder: shape.Placeholder, Kind: ErrCardinalityMismatch,
		Detail: fmt.Sprintf("expected an entity, got %T", value)}
}

func resolveMany(shape Shape, value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case *Entity:
		return shape.Target(v)
	case []any:
		if len(v) == 0 || v[0] == nil {
			return nil, nil
		}
		if e, ok := v[0].(*Entity); ok {
			return shape.Target(e)
		}
	}
	return nil, &ResolutionError{Placeholder: shape.Placeholder, Kind: ErrCardinalityMismatch,
		Detail: fmt.Sprintf("expected entities, got %T", value)}
}

// relationshipComponents returns the relationships present in a row, either a
// relationship column or a list of relationships, in column order.
func relationshipComponents(row ParsedRow) []*RelationshipView {
	for _, col := range row.Columns {
		v, _ := row.Value(col)
		switch val := v.(type) {
		case *RelationshipView:
			return []*RelationshipView{val}
		case []any:
			var rels []*RelationshipView
			for _, item := range val {
				if r, ok := item.(*RelationshipView); ok {
					rels = append(rels, r)
				}
			}
			if len(rels) > 0 {
				return rels
			}
		}
	}
	return nil
}

func morphTarget(shape Shape, rel *RelationshipView) (Target, error) {
	raw, ok := rel.Properties[shape.Discriminator]
	if !ok || raw == nil {
		return nil, &ResolutionError{Placeholder: shape.Placeholder, Kind: ErrMissingDiscriminator,
			Detail: fmt.Sprintf("relationship %d has no %q property", rel.ID, shape.Discriminator)}
	}
	name, ok := raw.(string)
	if !ok {
		return nil, &ResolutionError{Placeholder: shape.Placeholder, Kind: ErrMissingDiscriminator,
			Detail: fmt.Sprintf("%q is a %T, not a string", shape.Discriminator, raw)}
	}
	target, ok := shape.Targets[name]
	if !ok {
		return nil, &ResolutionError{Placeholder: shape.Placeholder, Kind: ErrUnknownMorphTarget, Detail: name}
	}
	return target, nil
}

func resolveMorph(shape Shape, value any, row ParsedRow) (any, error) {
	rels := relationshipComponents(row)
	if len(rels) == 0 {
		return nil, &ResolutionError{Placeholder: shape.Placeholder, Kind: ErrMissingDiscriminatorSource}
	}
	entity, ok := value.(*Entity)
	if !ok {
		if list, isList := value.([]any); isList && len(list) == 1 {
			entity, ok = list[0].(*Entity)
		}
	}
	if !ok {
		return nil, &ResolutionError{Placeholder: shape.Placeholder, Kind: ErrCardinalityMismatch,
			Detail: fmt.Sprintf("expected one entity, got %T", value)}
	}
	target, err := morphTarget(shape, rels[0])
	if err != nil {
		return nil, err
	}
	return target(entity)
}

func resolveMorphEager(shape Shape, value any, row ParsedRow) (any, error) {
	rels := relationshipComponents(row)
	if len(rels) == 0 {
		return nil, &ResolutionError{Placeholder: shape.Placeholder, Kind: ErrMissingDiscriminatorSource}
	}

	var entities []*Entity
	switch v := value.(type) {
	case *Entity:
		entities = []*Entity{v}
	case []any:
		for _, item := range v {
			e, ok := item.(*Entity)
			if !ok {
				return nil, &ResolutionError{Placeholder: shape.Placeholder, Kind: ErrCardinalityMismatch,
					Detail: fmt.Sprintf("list holds a %T", item)}
			}
			entities = append(entities, e)
		}
	case nil:
	default:
		return nil, &ResolutionError{Placeholder: shape.Placeholder, Kind: ErrCardinalityMismatch,
			Detail: fmt.Sprintf("expected entities, got %T", value)}
	}
	if len(rels) != 1 && len(rels) != len(entities) {
		return nil, &ResolutionError{Placeholder: shape.Placeholder, Kind: ErrCardinalityMismatch,
			Detail: fmt.Sprintf("%d entities paired with %d relationships", len(entities), len(rels))}
	}

	out := make([]any, 0, len(entities))
	for i, e := range entities {
		rel := rels[0]
		if len(rels) > 1 {
			rel = rels[i]
		}
		target, err := morphTarget(shape, rel)
		if err != nil {
			return nil, err
		}
		obj, err := target(e)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}
