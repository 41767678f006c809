// Package wire renders materialized transfer objects as sparse resource
// documents: selected attributes only, relationship linkage, and a
// deduplicated list of included resources.
package wire

import (
	"fmt"
	"reflect"

	"github.com/CaliLuke/go-dtograph/meta"
	"github.com/CaliLuke/go-dtograph/selection"
)

// Document is the top-level wire document. Data holds a *Resource or a
// []*Resource.
type Document struct {
	Data     any         `json:"data"`
	Included []*Resource `json:"included,omitempty"`
}

// Resource is one transfer object on the wire.
type Resource struct {
	Type          string                   `json:"type"`
	ID            any                      `json:"id"`
	Attributes    map[string]any           `json:"attributes,omitempty"`
	Relationships map[string]*Relationship `json:"relationships,omitempty"`
}

// Relationship holds linkage: nil, an *Identifier or an []*Identifier.
type Relationship struct {
	Data any `json:"data"`
}

// Identifier references a resource by type and id.
type Identifier struct {
	Type string `json:"type"`
	ID   any    `json:"id"`
}

type resourceKey struct {
	typ string
	id  any
}

type projector struct {
	reg      *meta.Registry
	spec     *selection.Spec
	primary  map[resourceKey]bool
	seen     map[resourceKey]bool
	included []*Resource
}

// Project renders dto, a transfer object (or slice of them) materialized
// under spec. A selected attribute that is nil renders as null; an
// unselected one is omitted.
func Project(reg *meta.Registry, dto any, spec *selection.Spec) (*Document, error) {
	if reg == nil {
		reg = meta.Default()
	}
	p := &projector{
		reg:     reg,
		spec:    spec,
		primary: make(map[resourceKey]bool),
		seen:    make(map[resourceKey]bool),
	}
	tree := spec.IncludeTree()

	v := reflect.ValueOf(dto)
	if v.Kind() == reflect.Slice {
		if v.Len() == 0 {
			return &Document{Data: []*Resource{}}, nil
		}
		d, err := reg.Describe(v.Type().Elem())
		if err != nil {
			return nil, err
		}
		for i := 0; i < v.Len(); i++ {
			if elem := v.Index(i); !isNil(elem) {
				p.primary[p.key(d, elem)] = true
			}
		}
		data := make([]*Resource, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			elem := v.Index(i)
			if isNil(elem) {
				continue
			}
			r, err := p.resource(elem, d, tree)
			if err != nil {
				return nil, err
			}
			data = append(data, r)
		}
		return &Document{Data: data, Included: p.included}, nil
	}

	if isNil(v) {
		return &Document{Data: nil}, nil
	}
	d, err := reg.Describe(v.Type())
	if err != nil {
		return nil, err
	}
	p.primary[p.key(d, v)] = true
	r, err := p.resource(v, d, tree)
	if err != nil {
		return nil, err
	}
	return &Document{Data: r, Included: p.included}, nil
}

func (p *projector) resource(v reflect.Value, d *meta.Descriptor, tree selection.Tree) (*Resource, error) {
	v = reflect.Indirect(v)
	r := &Resource{Type: string(d.TypeID), ID: d.IDOf(v).Interface()}
	selected := p.spec.FieldsFor(d.TypeID)

	for _, f := range d.Fields {
		if f.Ignored || f.Name == d.IDField {
			continue
		}
		fv := v.Field(f.Index)

		if f.IsValueCopy() {
			if !selected.Has(f.Name) {
				continue
			}
			if r.Attributes == nil {
				r.Attributes = make(map[string]any)
			}
			r.Attributes[f.Name] = plain(fv)
			continue
		}

		child, included := tree.Child(f.Name)
		if !included && !(selected.Has(f.Name) && f.Kind == meta.KindRelationSingle) {
			continue
		}
		rd, err := p.reg.Describe(f.RelatedType)
		if err != nil {
			return nil, err
		}
		rel, err := p.relationship(fv, f, rd, child, included)
		if err != nil {
			return nil, fmt.Errorf("wire: %s.%s: %w", d.TypeID, f.Name, err)
		}
		if r.Relationships == nil {
			r.Relationships = make(map[string]*Relationship)
		}
		r.Relationships[f.Name] = rel
	}
	return r, nil
}

func (p *projector) relationship(fv reflect.Value, f meta.FieldDescriptor, rd *meta.Descriptor, child selection.Tree, included bool) (*Relationship, error) {
	if f.Kind == meta.KindRelationSingle {
		if isNil(fv) {
			return &Relationship{Data: nil}, nil
		}
		if included {
			if err := p.include(fv, rd, child); err != nil {
				return nil, err
			}
		}
		return &Relationship{Data: p.identifier(rd, fv)}, nil
	}

	ids := make([]*Identifier, 0, fv.Len())
	for i := 0; i < fv.Len(); i++ {
		elem := fv.Index(i)
		if isNil(elem) {
			continue
		}
		if err := p.include(elem, rd, child); err != nil {
			return nil, err
		}
		ids = append(ids, p.identifier(rd, elem))
	}
	return &Relationship{Data: ids}, nil
}

// include adds the resource for v once. Later visits still walk the
// subtree so deeper include paths reached through another route are kept.
func (p *projector) include(v reflect.Value, d *meta.Descriptor, tree selection.Tree) error {
	k := p.key(d, v)
	r, err := p.resource(v, d, tree)
	if err != nil {
		return err
	}
	if p.seen[k] || p.primary[k] {
		return nil
	}
	p.seen[k] = true
	p.included = append(p.included, r)
	return nil
}

func (p *projector) identifier(d *meta.Descriptor, v reflect.Value) *Identifier {
	return &Identifier{Type: string(d.TypeID), ID: d.IDOf(v).Interface()}
}

func (p *projector) key(d *meta.Descriptor, v reflect.Value) resourceKey {
	return resourceKey{typ: string(d.TypeID), id: d.IDOf(v).Interface()}
}

// plain dereferences pointers so nil pointers render as null.
func plain(v reflect.Value) any {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	return v.Interface()
}

func isNil(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map:
		return v.IsNil()
	}
	return false
}
