package meta

import (
	"fmt"
	"reflect"
)

// StructField is an accessor entry for one field of an arbitrary struct.
type StructField struct {
	// Name is the logical field name shared with transfer objects.
	Name string
	// GoName is the name of the field in the Go struct.
	GoName string
	// Index is the 0-based index of the field in the Go struct.
	Index int
	// Type is the declared reflection type of the field.
	Type reflect.Type
}

// StructFields is the accessor table of a persistent entity type. Unlike a
// Descriptor it carries no relation semantics: entities are addressed purely
// by logical field name.
type StructFields struct {
	GoType  reflect.Type
	IDField string

	byName map[string]StructField
	names  []string
}

// Field retrieves a StructField by logical name.
func (s *StructFields) Field(name string) (StructField, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// Names returns the logical field names in declaration order.
func (s *StructFields) Names() []string {
	return s.names
}

// ID returns the identifier field, if the struct declares one.
func (s *StructFields) ID() (StructField, bool) {
	if s.IDField == "" {
		return StructField{}, false
	}
	return s.Field(s.IDField)
}

// Get returns the value of the named field on v (a struct or pointer to struct).
func (s *StructFields) Get(v reflect.Value, name string) (reflect.Value, bool) {
	f, ok := s.byName[name]
	if !ok {
		return reflect.Value{}, false
	}
	v = reflect.Indirect(v)
	if !v.IsValid() {
		return reflect.Value{}, false
	}
	return v.Field(f.Index), true
}

// IDOf returns the identifier value of v, or an invalid Value when v is nil
// or the struct has no identifier.
func (s *StructFields) IDOf(v reflect.Value) reflect.Value {
	if s.IDField == "" {
		return reflect.Value{}
	}
	id, _ := s.Get(v, s.IDField)
	return id
}

// Fields returns the accessor table of t, building and caching it on first use.
// Field names come from the first element of a `dto` tag when present and
// otherwise from the lower-camel Go name. The identifier is the field tagged
// `id`, or else the field named "id".
func (r *Registry) Fields(t reflect.Type) (*StructFields, error) {
	t = indirectType(t)

	r.mu.RLock()
	sf, ok := r.fields[t]
	r.mu.RUnlock()
	if ok {
		return sf, nil
	}

	sf, err := extractFields(t)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.fields[t]; ok {
		return existing, nil
	}
	r.fields[t] = sf
	return sf, nil
}

func extractFields(t reflect.Type) (*StructFields, error) {
	if t.Kind() != reflect.Struct {
		return nil, &NotStructError{Type: t}
	}

	sf := &StructFields{
		GoType: t,
		byName: make(map[string]StructField),
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() || field.Anonymous {
			continue
		}
		tag, err := ParseTag(field.Tag.Get("dto"))
		if err != nil {
			return nil, &TagError{TypeName: t.Name(), Field: field.Name, Cause: err}
		}
		if tag.Skip {
			continue
		}
		name := tag.Name
		if name == "" {
			name = toLowerCamel(field.Name)
		}
		if _, dup := sf.byName[name]; dup {
			return nil, &TagError{TypeName: t.Name(), Field: field.Name,
				Cause: fmt.Errorf("duplicate field name %q", name)}
		}
		if tag.ID {
			sf.IDField = name
		}
		sf.byName[name] = StructField{Name: name, GoName: field.Name, Index: i, Type: field.Type}
		sf.names = append(sf.names, name)
	}
	if _, ok := sf.byName["id"]; ok && sf.IDField == "" {
		sf.IDField = "id"
	}
	return sf, nil
}
