package meta

import (
	"fmt"
	"reflect"
	"sync"
)

var globalRegistry = NewRegistry()

// Registry is a compute-once cache of type metadata. Descriptors are built
// lazily on first reference and never invalidated; concurrent first callers
// for the same type may race to build, but all of them observe the single
// descriptor that was committed first.
type Registry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*Descriptor
	byID   map[TypeID]*Descriptor
	fields map[reflect.Type]*StructFields
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[reflect.Type]*Descriptor),
		byID:   make(map[TypeID]*Descriptor),
		fields: make(map[reflect.Type]*StructFields),
	}
}

// Default returns the process-wide registry used by the package-level helpers.
func Default() *Registry {
	return globalRegistry
}

// Describe returns the Descriptor of t, building and caching it on first use.
// Relations are described transitively; a relation to a type that cannot be
// described is reported as a *RelationError.
func (r *Registry) Describe(t reflect.Type) (*Descriptor, error) {
	t = indirectType(t)

	r.mu.RLock()
	d, ok := r.byType[t]
	r.mu.RUnlock()
	if ok {
		return d, nil
	}

	pending := make(map[reflect.Type]*Descriptor)
	if _, err := r.build(t, pending); err != nil {
		return nil, err
	}
	if err := r.commit(pending); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byType[t], nil
}

// Lookup retrieves the Descriptor registered under a TypeID.
func (r *Registry) Lookup(id TypeID) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	return d, ok
}

// LookupType retrieves the Descriptor of t without building it.
func (r *Registry) LookupType(t reflect.Type) (*Descriptor, bool) {
	t = indirectType(t)
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byType[t]
	return d, ok
}

// IDFieldName returns the wire name of the identifier field of t.
func (r *Registry) IDFieldName(t reflect.Type) (string, error) {
	d, err := r.Describe(t)
	if err != nil {
		return "", err
	}
	return d.IDField, nil
}

// IsCollectionField reports whether field of t is a to-many relation.
func (r *Registry) IsCollectionField(t reflect.Type, field string) (bool, error) {
	d, err := r.describeField(t, field)
	if err != nil {
		return false, err
	}
	return d.IsCollectionField(field), nil
}

// IsExternalRelation reports whether field of t points to an external type.
func (r *Registry) IsExternalRelation(t reflect.Type, field string) (bool, error) {
	d, err := r.describeField(t, field)
	if err != nil {
		return false, err
	}
	return d.IsExternalRelation(field), nil
}

// ExternalTypeName returns the logical type name of an external relation,
// or "" when field is not an external relation.
func (r *Registry) ExternalTypeName(t reflect.Type, field string) (string, error) {
	d, err := r.describeField(t, field)
	if err != nil {
		return "", err
	}
	name, _ := d.ExternalTypeName(field)
	return name, nil
}

// Registered returns all descriptors built so far, in no particular order.
func (r *Registry) Registered() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Descriptor, 0, len(r.byType))
	for _, d := range r.byType {
		out = append(out, d)
	}
	return out
}

// Clear resets the registry. It is intended for tests only.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byType = make(map[reflect.Type]*Descriptor)
	r.byID = make(map[TypeID]*Descriptor)
	r.fields = make(map[reflect.Type]*StructFields)
}

func (r *Registry) describeField(t reflect.Type, field string) (*Descriptor, error) {
	d, err := r.Describe(t)
	if err != nil {
		return nil, err
	}
	if _, ok := d.Field(field); !ok {
		return nil, &UnknownFieldError{TypeID: d.TypeID, Field: field}
	}
	return d, nil
}

// build describes t and every type reachable through its relations that is
// not yet committed. pending doubles as the in-progress set, which stops
// recursion on cyclic schemas.
func (r *Registry) build(t reflect.Type, pending map[reflect.Type]*Descriptor) (*Descriptor, error) {
	if d, ok := pending[t]; ok {
		return d, nil
	}
	if d, ok := r.LookupType(t); ok {
		return d, nil
	}

	d, err := extractDescriptor(t)
	if err != nil {
		return nil, err
	}
	pending[t] = d

	for i := range d.Fields {
		f := &d.Fields[i]
		if !f.IsRelation() || f.External || f.Ignored {
			continue
		}
		related, err := r.build(f.RelatedType, pending)
		if err != nil {
			return nil, &RelationError{TypeName: t.Name(), Field: f.GoName, Cause: err}
		}
		f.RelatedTypeID = related.TypeID
	}
	return d, nil
}

func (r *Registry) commit(pending map[reflect.Type]*Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	claimed := make(map[TypeID]reflect.Type, len(pending))
	for t, d := range pending {
		if _, ok := r.byType[t]; ok {
			continue
		}
		if existing, ok := r.byID[d.TypeID]; ok && existing.GoType != t {
			return &TypeIDConflictError{TypeID: d.TypeID, Existing: existing.GoType, Type: t}
		}
		if other, ok := claimed[d.TypeID]; ok {
			return &TypeIDConflictError{TypeID: d.TypeID, Existing: other, Type: t}
		}
		claimed[d.TypeID] = t
	}
	for t, d := range pending {
		if _, ok := r.byType[t]; ok {
			// another caller committed first; keep its descriptor
			continue
		}
		r.byType[t] = d
		r.byID[d.TypeID] = d
	}
	return nil
}

// extractDescriptor analyzes the fields of a struct type without following
// relations.
func extractDescriptor(t reflect.Type) (*Descriptor, error) {
	if t.Kind() != reflect.Struct {
		return nil, &NotStructError{Type: t}
	}

	d := &Descriptor{
		GoType: t,
		TypeID: defaultTypeID(t.Name()),
		byName: make(map[string]int),
	}

	idCount := 0
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() || field.Anonymous {
			continue
		}

		tag, err := ParseTag(field.Tag.Get("dto"))
		if err != nil {
			return nil, &TagError{TypeName: t.Name(), Field: field.Name, Cause: err}
		}
		if tag.TypeID != "" {
			d.TypeID = TypeID(tag.TypeID)
		}

		fd := FieldDescriptor{
			Name:     tag.Name,
			GoName:   field.Name,
			Index:    i,
			Type:     field.Type,
			Ignored:  tag.Skip,
			ReadOnly: tag.ReadOnly,
		}
		if fd.Name == "" {
			fd.Name = toLowerCamel(field.Name)
		}
		if _, dup := d.byName[fd.Name]; dup {
			return nil, &TagError{TypeName: t.Name(), Field: field.Name,
				Cause: fmt.Errorf("duplicate field name %q", fd.Name)}
		}

		if tag.Relation {
			if err := classifyRelation(&fd, tag); err != nil {
				return nil, &TagError{TypeName: t.Name(), Field: field.Name, Cause: err}
			}
		}

		if tag.ID {
			idCount++
			d.IDField = fd.Name
		}

		d.byName[fd.Name] = len(d.Fields)
		d.Fields = append(d.Fields, fd)
	}

	if idCount == 0 {
		// Fall back to a field conventionally named "id".
		if f, ok := d.Field("id"); ok && !f.IsRelation() && !f.Ignored {
			d.IDField = "id"
			idCount = 1
		}
	}
	if idCount != 1 {
		return nil, &MissingIDError{TypeName: t.Name(), Count: idCount}
	}
	return d, nil
}

// classifyRelation infers the cardinality of a relation from its declared
// container type. Internal relations must point at a struct (or pointer to
// struct); external relations may hold any identifier type. Collections are
// declared as plain slices; a pointer to a slice is refused.
func classifyRelation(fd *FieldDescriptor, tag FieldTag) error {
	ft := fd.Type
	if ft.Kind() == reflect.Ptr {
		ft = ft.Elem()
		if ft.Kind() == reflect.Slice {
			return fmt.Errorf("collection relation must be a slice, not %v", fd.Type)
		}
	}

	fd.Kind = KindRelationSingle
	if ft.Kind() == reflect.Slice {
		fd.Kind = KindRelationCollection
		ft = indirectType(ft.Elem())
	}

	if tag.External != "" {
		fd.External = true
		fd.ExternalTypeName = tag.External
		return nil
	}

	if ft.Kind() != reflect.Struct {
		return &NotStructError{Type: ft}
	}
	fd.RelatedType = ft
	return nil
}

func indirectType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// Describe returns the Descriptor of t from the default registry.
func Describe(t reflect.Type) (*Descriptor, error) {
	return globalRegistry.Describe(t)
}

// DescribeOf returns the Descriptor of T from the default registry.
func DescribeOf[T any]() (*Descriptor, error) {
	return globalRegistry.Describe(reflect.TypeOf((*T)(nil)).Elem())
}

// Register eagerly describes T in the default registry.
func Register[T any]() error {
	_, err := globalRegistry.Describe(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return fmt.Errorf("registering %s: %w", reflect.TypeOf((*T)(nil)).Elem().Name(), err)
	}
	return nil
}

// MustRegister is a helper that calls Register and panics if an error occurs.
// It is intended for use during application initialization.
func MustRegister[T any]() {
	if err := Register[T](); err != nil {
		panic(err)
	}
}

// Lookup retrieves a Descriptor by TypeID from the default registry.
func Lookup(id TypeID) (*Descriptor, bool) {
	return globalRegistry.Lookup(id)
}

// LookupType retrieves the Descriptor of t from the default registry.
func LookupType(t reflect.Type) (*Descriptor, bool) {
	return globalRegistry.LookupType(t)
}

// ClearRegistry resets the default registry. It is intended for tests only.
func ClearRegistry() {
	globalRegistry.Clear()
}
