package mapper

import (
	"context"
	"reflect"

	"go.uber.org/zap"

	"github.com/CaliLuke/go-dtograph/meta"
	"github.com/CaliLuke/go-dtograph/resolve"
	"github.com/CaliLuke/go-dtograph/selection"
)

// ToDTO materializes a new transfer object of dtoType from entity. Only the
// fields selected for dtoType are populated; relations are followed only
// along the include paths of spec. The result is a pointer to dtoType, or nil
// when entity is nil.
//
// Recursion is bounded by the include tree, so cyclic entity graphs are safe
// and a type reached by two paths is mapped independently on each.
func (m *Mapper) ToDTO(ctx context.Context, entity any, dtoType reflect.Type, spec *selection.Spec) (any, error) {
	d, err := m.reg.Describe(dtoType)
	if err != nil {
		return nil, err
	}
	src := reflect.ValueOf(entity)
	if isNil(src) {
		return nil, nil
	}
	out, err := m.toDTO(ctx, src, d, spec, spec.IncludeTree(), "")
	if err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

func (m *Mapper) toDTO(ctx context.Context, src reflect.Value, d *meta.Descriptor, spec *selection.Spec, tree selection.Tree, path string) (reflect.Value, error) {
	src = addressable(src)
	ef, err := m.reg.Fields(src.Type())
	if err != nil {
		return reflect.Value{}, err
	}

	out := reflect.New(d.GoType)
	selected := spec.FieldsFor(d.TypeID)
	if selected == nil {
		selected = selection.NewFieldSet(d.IDField)
	}

	for _, f := range d.Fields {
		if f.Ignored || !selected.Has(f.Name) {
			continue
		}
		dst := out.Elem().Field(f.Index)

		if fn, ok := m.resolver(d, f.Name, resolve.ToDTO); ok {
			val, err := fn(ctx, src.Interface())
			if err != nil {
				return reflect.Value{}, &FieldError{TypeID: d.TypeID, Field: f.Name, Op: "resolve", Cause: err}
			}
			if err := assign(dst, reflect.ValueOf(val)); err != nil {
				return reflect.Value{}, &FieldError{TypeID: d.TypeID, Field: f.Name, Op: "assign", Cause: err}
			}
			m.logger.Debug("field resolved",
				zap.String("type", string(d.TypeID)), zap.String("field", f.Name))
			continue
		}

		if !f.IsValueCopy() {
			continue
		}
		v, ok := ef.Get(src, f.Name)
		if !ok {
			m.logger.Debug("entity has no field",
				zap.String("type", string(d.TypeID)), zap.String("field", f.Name))
			continue
		}
		if isNil(v) {
			continue
		}
		if err := assign(dst, v); err != nil {
			return reflect.Value{}, &FieldError{TypeID: d.TypeID, Field: f.Name, Op: "copy", Cause: err}
		}
	}

	for _, f := range d.Relations() {
		if _, resolved := m.resolver(d, f.Name, resolve.ToDTO); resolved && selected.Has(f.Name) {
			continue
		}
		child, included := tree.Child(f.Name)
		if !included && !(selected.Has(f.Name) && f.Kind == meta.KindRelationSingle) {
			continue
		}
		v, ok := ef.Get(src, f.Name)
		if !ok || isNil(v) {
			// A nil relation stays nil; no placeholder is created.
			continue
		}
		rd, err := m.reg.Describe(f.RelatedType)
		if err != nil {
			return reflect.Value{}, err
		}
		dst := out.Elem().Field(f.Index)
		relPath := joinPath(path, f.Name)

		if !included {
			stub, err := m.linkStub(v, rd)
			if err != nil {
				return reflect.Value{}, &FieldError{TypeID: d.TypeID, Field: f.Name, Op: "link", Cause: err}
			}
			setRelation(dst, stub)
			continue
		}

		if f.Kind == meta.KindRelationSingle {
			nested, err := m.toDTO(ctx, v, rd, spec, child, relPath)
			if err != nil {
				return reflect.Value{}, err
			}
			setRelation(dst, nested)
			continue
		}

		v = reflect.Indirect(v)
		if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			return reflect.Value{}, &FieldError{TypeID: d.TypeID, Field: f.Name, Op: "map",
				Cause: &ConversionError{From: v.Type(), To: dst.Type()}}
		}
		items := reflect.MakeSlice(dst.Type(), 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			elem := v.Index(i)
			if isNil(elem) {
				// Nil children are dropped rather than mapped to placeholders.
				continue
			}
			nested, err := m.toDTO(ctx, elem, rd, spec, child, relPath)
			if err != nil {
				return reflect.Value{}, err
			}
			slot := reflect.New(dst.Type().Elem()).Elem()
			setRelation(slot, nested)
			items = reflect.Append(items, slot)
		}
		dst.Set(items)
	}

	m.logger.Debug("dto materialized",
		zap.String("type", string(d.TypeID)), zap.String("path", path))
	return out, nil
}

// linkStub builds a transfer object of rd carrying only the identifier of
// the related entity.
func (m *Mapper) linkStub(related reflect.Value, rd *meta.Descriptor) (reflect.Value, error) {
	rf, err := m.reg.Fields(related.Type())
	if err != nil {
		return reflect.Value{}, err
	}
	stub := reflect.New(rd.GoType)
	id := rf.IDOf(related)
	if !id.IsValid() {
		return stub, nil
	}
	if err := assign(stub.Elem().Field(rd.ID().Index), id); err != nil {
		return reflect.Value{}, err
	}
	return stub, nil
}

// setRelation stores a materialized *DTO into a field declared as *DTO or DTO.
func setRelation(dst, ptr reflect.Value) {
	if dst.Kind() == reflect.Ptr {
		dst.Set(ptr)
		return
	}
	dst.Set(ptr.Elem())
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
