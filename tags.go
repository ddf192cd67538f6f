package neomapper

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// entityMetadata holds the parsed `crud` tag information for a specific struct type.
// This metadata is cached to avoid costly reflection on every operation.
type entityMetadata struct {
	// Label is the graph node label, defaulting to the struct's name.
	Label string
	// IDField is the name of the struct field receiving the node identity.
	IDField string
	// Mappings maps struct field names to their corresponding database property names.
	Mappings map[string]string
}

// metaCache is shared by repositories and Decode targets.
var metaCache sync.Map

func metadataFor(typ reflect.Type) (*entityMetadata, error) {
	if cached, ok := metaCache.Load(typ); ok {
		return cached.(*entityMetadata), nil
	}
	meta, err := parseTagsFromType(typ)
	if err != nil {
		return nil, err
	}
	metaCache.Store(typ, meta)
	return meta, nil
}

// parseTagsFromType inspects a struct type and extracts persistence metadata
// from `crud` struct tags. A tag is a comma separated list of:
//
//	id             the field receives the node identity
//	label:Name     overrides the node label (only meaningful once per struct)
//	property:name  maps the field to a node property
func parseTagsFromType(typ reflect.Type) (*entityMetadata, error) {
	// If the type is a pointer, get the underlying element's type.
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("type %s is not a struct", typ.Name())
	}

	meta := &entityMetadata{
		Label:    typ.Name(),
		Mappings: make(map[string]string),
	}

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tag := field.Tag.Get("crud")

		// Skip fields that are not part of the persistence mapping.
		if tag == "" {
			continue
		}

		isID := false
		propName := ""

		for _, part := range strings.Split(tag, ",") {
			part = strings.TrimSpace(part)
			switch {
			case part == "id":
				isID = true
			case strings.HasPrefix(part, "property:"):
				propName = strings.TrimPrefix(part, "property:")
			case strings.HasPrefix(part, "label:"):
				meta.Label = strings.TrimPrefix(part, "label:")
			}
		}

		if isID {
			if !isIdentityType(field.Type) {
				return nil, fmt.Errorf("id field %s must be a pointer to an integer, got %s", field.Name, field.Type)
			}
			if meta.IDField != "" {
				return nil, fmt.Errorf("struct %s declares more than one id field", typ.Name())
			}
			meta.IDField = field.Name
			continue
		}
		if propName == "" {
			return nil, fmt.Errorf("field %s is missing 'property' tag component", field.Name)
		}
		meta.Mappings[field.Name] = propName
	}

	return meta, nil
}

// parseTags is a generic convenience wrapper around metadataFor.
func parseTags[T any]() (*entityMetadata, error) {
	var instance T
	return metadataFor(reflect.TypeOf(instance))
}

// mapNodeToStruct populates a struct from an entity. Tagged structs are
// filled through their mappings; structs without any tag are filled from the
// entity attributes by field name. Values are weakly typed, so an int64 read
// from the database lands in an int field.
func mapNodeToStruct(e *Entity, dst any, meta *entityMetadata) error {
	input := make(map[string]any, len(meta.Mappings)+1)
	if len(meta.Mappings) == 0 && meta.IDField == "" {
		input = e.Attributes()
	} else {
		for fieldName, propName := range meta.Mappings {
			if v, ok := e.Properties[propName]; ok {
				input[fieldName] = v
			}
		}
		if id, ok := e.ID(); ok && meta.IDField != "" {
			input[meta.IDField] = id
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("failed to decode %s: %w", meta.Label, err)
	}
	return nil
}

// structToEntity reads the mapped fields of a struct into an entity. Nil
// pointer fields become nil properties, which removes them on update.
func structToEntity(src any, meta *entityMetadata) (*Entity, error) {
	val := reflect.ValueOf(src)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return nil, fmt.Errorf("entity must be a non-nil pointer")
	}
	val = val.Elem()

	e := NewEntity(meta.Label)
	for fieldName, propName := range meta.Mappings {
		field := val.FieldByName(fieldName)
		if field.Kind() == reflect.Ptr {
			if field.IsNil() {
				e.Properties[propName] = nil
				continue
			}
			field = field.Elem()
		}
		e.Properties[propName] = field.Interface()
	}

	if meta.IDField != "" {
		if id, ok := identityOf(val.FieldByName(meta.IDField)); ok {
			e.id = &id
		}
	}
	return e, nil
}

func isIdentityType(t reflect.Type) bool {
	if t.Kind() != reflect.Ptr {
		return false
	}
	switch t.Elem().Kind() {
	case reflect.Int, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

// identityOf reads an identity out of a pointer-to-integer field. Node ids
// start at zero, so only a nil pointer means the struct was never persisted.
func identityOf(field reflect.Value) (Identity, bool) {
	if field.Kind() != reflect.Ptr || field.IsNil() {
		return 0, false
	}
	return field.Elem().Int(), true
}

// setIdentity writes an identity back into the struct's id field.
func setIdentity(field reflect.Value, id Identity) {
	v := reflect.New(field.Type().Elem())
	v.Elem().SetInt(id)
	field.Set(v)
}
