// Package meta builds and caches per-type metadata for transfer objects.
//
// A Descriptor is derived once from the `dto` struct tags of a Go type and
// lives for the lifetime of the process. Types are static, so descriptors are
// never invalidated.
package meta

import (
	"reflect"
)

// TypeID is the stable, wire-level identifier of a described type.
type TypeID string

// FieldKind specifies how a described field participates in mapping.
type FieldKind int

const (
	// KindAttribute is a plain value copied field by field.
	KindAttribute FieldKind = iota
	// KindRelationSingle is a to-one relationship.
	KindRelationSingle
	// KindRelationCollection is a to-many relationship.
	KindRelationCollection
)

// String returns the name of the field kind.
func (k FieldKind) String() string {
	switch k {
	case KindAttribute:
		return "attribute"
	case KindRelationSingle:
		return "relation-single"
	case KindRelationCollection:
		return "relation-collection"
	default:
		return "unknown"
	}
}

// FieldDescriptor contains metadata about a single field of a described type.
type FieldDescriptor struct {
	// Name is the wire-level field name used by selections.
	Name string
	// GoName is the name of the field in the Go struct.
	GoName string
	// Index is the 0-based index of the field in the Go struct.
	Index int
	// Type is the declared reflection type of the field.
	Type reflect.Type
	// Kind is the relation cardinality, or KindAttribute.
	Kind FieldKind
	// RelatedType is the struct type at the other end of an internal relation.
	RelatedType reflect.Type
	// RelatedTypeID is the TypeID of RelatedType.
	RelatedTypeID TypeID
	// External is true for relations to types owned by another system.
	External bool
	// ExternalTypeName is the logical type name of an external relation.
	ExternalTypeName string
	// Ignored excludes the field from every mapping path.
	Ignored bool
	// ReadOnly excludes the field from DTO → entity application.
	ReadOnly bool
}

// IsRelation reports whether the field is a relationship of either cardinality.
func (f FieldDescriptor) IsRelation() bool {
	return f.Kind != KindAttribute
}

// IsCollection reports whether the field is a to-many relationship.
func (f FieldDescriptor) IsCollection() bool {
	return f.Kind == KindRelationCollection
}

// IsValueCopy reports whether the mapper copies the field as an opaque value.
// Attributes and external relations are copied; internal relations recurse.
func (f FieldDescriptor) IsValueCopy() bool {
	return !f.Ignored && (f.Kind == KindAttribute || f.External)
}

// Descriptor is the immutable metadata of a transfer-object type.
type Descriptor struct {
	// TypeID is the wire-level identifier of the type.
	TypeID TypeID
	// GoType is the reflection type of the struct.
	GoType reflect.Type
	// IDField is the wire name of the identifier field.
	IDField string
	// Fields lists every exported, tagged or untagged field in declaration order.
	Fields []FieldDescriptor

	byName map[string]int
}

// Field retrieves a FieldDescriptor by wire name.
func (d *Descriptor) Field(name string) (FieldDescriptor, bool) {
	i, ok := d.byName[name]
	if !ok {
		return FieldDescriptor{}, false
	}
	return d.Fields[i], true
}

// ID returns the identifier field.
func (d *Descriptor) ID() FieldDescriptor {
	return d.Fields[d.byName[d.IDField]]
}

// Attributes returns the fields copied by value, in declaration order.
func (d *Descriptor) Attributes() []FieldDescriptor {
	var out []FieldDescriptor
	for _, f := range d.Fields {
		if f.IsValueCopy() {
			out = append(out, f)
		}
	}
	return out
}

// Relations returns the internal, non-ignored relation fields.
func (d *Descriptor) Relations() []FieldDescriptor {
	var out []FieldDescriptor
	for _, f := range d.Fields {
		if f.IsRelation() && !f.External && !f.Ignored {
			out = append(out, f)
		}
	}
	return out
}

// IsCollectionField reports whether name is a to-many relation.
func (d *Descriptor) IsCollectionField(name string) bool {
	f, ok := d.Field(name)
	return ok && f.IsCollection()
}

// IsExternalRelation reports whether name is a relation to an external type.
func (d *Descriptor) IsExternalRelation(name string) bool {
	f, ok := d.Field(name)
	return ok && f.External
}

// ExternalTypeName returns the logical type name of an external relation.
func (d *Descriptor) ExternalTypeName(name string) (string, bool) {
	f, ok := d.Field(name)
	if !ok || !f.External {
		return "", false
	}
	return f.ExternalTypeName, true
}

// IDOf returns the identifier value of an instance of the described type.
// v may be a struct or a pointer to one; a nil pointer yields an invalid Value.
func (d *Descriptor) IDOf(v reflect.Value) reflect.Value {
	v = reflect.Indirect(v)
	if !v.IsValid() {
		return v
	}
	return v.Field(d.ID().Index)
}
