package mapper

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/CaliLuke/go-dtograph/meta"
	"github.com/CaliLuke/go-dtograph/resolve"
	"github.com/CaliLuke/go-dtograph/selection"
)

// CollectionChange is the target child set of one to-many relation,
// expressed as child identifiers. An empty IDs slice means "no children".
type CollectionChange struct {
	// Field is the logical relation name.
	Field string
	// ChildType is the entity struct type of the children.
	ChildType reflect.Type
	// IDs are the natural identifiers of the incoming children, in DTO order.
	IDs []any
}

// Changes reports the relation changes Apply could not perform itself.
type Changes struct {
	Collections []CollectionChange
}

// Collection returns the change for field, if the field was included.
func (c *Changes) Collection(field string) (CollectionChange, bool) {
	if c == nil {
		return CollectionChange{}, false
	}
	for _, cc := range c.Collections {
		if cc.Field == field {
			return cc, true
		}
	}
	return CollectionChange{}, false
}

// Apply copies the selected fields of dto onto entity, which must be a
// pointer to a struct.
//
// Selected attributes are copied verbatim, so a nil DTO value clears the
// entity field. The identifier is copied like any other attribute; read-only
// fields are never written. Singular relations named by a root-level include
// path are resolved through the loader; a nil DTO relation, or a value-typed
// one with a zero identifier, clears the entity relation. Included
// collections are not modified: their target identifiers are returned in
// Changes for the caller to reconcile. Fields outside the selection are left
// untouched.
func (m *Mapper) Apply(ctx context.Context, dto any, entity any, spec *selection.Spec) (*Changes, error) {
	target := reflect.ValueOf(entity)
	if target.Kind() != reflect.Ptr || target.IsNil() || target.Elem().Kind() != reflect.Struct {
		return nil, &TargetError{Type: reflect.TypeOf(entity)}
	}
	src := reflect.ValueOf(dto)
	if isNil(src) {
		return nil, fmt.Errorf("mapper: apply nil dto onto %v", target.Type())
	}
	src = addressable(src)

	d, err := m.reg.Describe(src.Type())
	if err != nil {
		return nil, err
	}
	ef, err := m.reg.Fields(target.Type())
	if err != nil {
		return nil, err
	}

	selected := spec.FieldsFor(d.TypeID)
	for _, f := range d.Fields {
		if f.Ignored || !selected.Has(f.Name) {
			continue
		}
		if f.ReadOnly {
			continue
		}
		if fn, ok := m.resolver(d, f.Name, resolve.ToEntity); ok {
			val, err := fn(ctx, src.Interface())
			if err != nil {
				return nil, &FieldError{TypeID: d.TypeID, Field: f.Name, Op: "resolve", Cause: err}
			}
			if err := m.setEntityField(target, ef, d, f.Name, reflect.ValueOf(val)); err != nil {
				return nil, err
			}
			continue
		}
		if !f.IsValueCopy() {
			continue
		}
		if err := m.setEntityField(target, ef, d, f.Name, src.Elem().Field(f.Index)); err != nil {
			return nil, err
		}
	}

	changes := &Changes{}
	tree := spec.IncludeTree()
	for _, f := range d.Relations() {
		if _, ok := tree.Child(f.Name); !ok {
			continue
		}
		if _, resolved := m.resolver(d, f.Name, resolve.ToEntity); resolved && selected.Has(f.Name) {
			continue
		}
		dst, ok := ef.Get(target, f.Name)
		if !ok {
			m.logger.Debug("entity has no relation",
				zap.String("type", string(d.TypeID)), zap.String("field", f.Name))
			continue
		}
		rd, err := m.reg.Describe(f.RelatedType)
		if err != nil {
			return nil, err
		}
		dv := src.Elem().Field(f.Index)

		if f.Kind == meta.KindRelationSingle {
			if err := m.applySingle(ctx, d, f, rd, dst, dv); err != nil {
				return nil, err
			}
			continue
		}

		cc := CollectionChange{Field: f.Name, ChildType: elemStruct(dst.Type()), IDs: []any{}}
		for i := 0; i < dv.Len(); i++ {
			elem := dv.Index(i)
			if isNil(elem) {
				continue
			}
			cc.IDs = append(cc.IDs, rd.IDOf(elem).Interface())
		}
		changes.Collections = append(changes.Collections, cc)
		m.logger.Debug("collection change",
			zap.String("type", string(d.TypeID)), zap.String("field", f.Name), zap.Int("ids", len(cc.IDs)))
	}
	return changes, nil
}

func (m *Mapper) applySingle(ctx context.Context, d *meta.Descriptor, f meta.FieldDescriptor, rd *meta.Descriptor, dst, dv reflect.Value) error {
	id := rd.IDOf(dv)
	if isNil(dv) || (dv.Kind() != reflect.Ptr && id.IsZero()) {
		dst.SetZero()
		m.logger.Debug("relation cleared",
			zap.String("type", string(d.TypeID)), zap.String("field", f.Name))
		return nil
	}
	if m.loader == nil {
		return ErrNoLoader
	}
	loaded, err := m.loader.LoadByID(ctx, elemStruct(dst.Type()), id.Interface())
	if err != nil {
		return fmt.Errorf("mapper: resolve %s.%s %v: %w", d.TypeID, f.Name, id.Interface(), err)
	}
	if err := assign(dst, reflect.ValueOf(loaded)); err != nil {
		return &FieldError{TypeID: d.TypeID, Field: f.Name, Op: "link", Cause: err}
	}
	return nil
}

func (m *Mapper) setEntityField(target reflect.Value, ef *meta.StructFields, d *meta.Descriptor, name string, v reflect.Value) error {
	dst, ok := ef.Get(target, name)
	if !ok {
		m.logger.Debug("entity has no field",
			zap.String("type", string(d.TypeID)), zap.String("field", name))
		return nil
	}
	if err := assign(dst, v); err != nil {
		return &FieldError{TypeID: d.TypeID, Field: name, Op: "apply", Cause: err}
	}
	return nil
}

// elemStruct strips pointers and one level of slice from a field type.
func elemStruct(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
