package selection

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/CaliLuke/go-dtograph/meta"
)

// Request is the raw selection handed over by the query layer.
type Request struct {
	// Fields lists the requested fields per type (sparse fieldsets).
	Fields map[meta.TypeID][]string
	// Attributes lists dot-separated attribute paths relative to the root type,
	// e.g. "name" or "department.title".
	Attributes []string
	// Include lists dot-separated relation paths relative to the root type.
	Include []string
}

// Resolve turns a Request into a Spec for the transfer type root.
//
// A type without explicitly requested fields defaults to all of its attributes
// plus its singular relations; the related type of each such relation receives
// just its identifier. Included relations resolve their target types by the
// same rule and are merged as an additive union. The identifier of every
// resolved type is always selected.
func Resolve(reg *meta.Registry, root reflect.Type, req Request) (*Spec, error) {
	if reg == nil {
		reg = meta.Default()
	}
	rootDesc, err := reg.Describe(root)
	if err != nil {
		return nil, fmt.Errorf("selection: %w", err)
	}

	explicit := make(map[meta.TypeID]FieldSet)
	for id, fields := range req.Fields {
		d, ok := reg.Lookup(id)
		if !ok {
			return nil, &meta.UnknownTypeError{TypeID: id}
		}
		for _, f := range fields {
			if err := checkField(d, f); err != nil {
				return nil, err
			}
			addTo(explicit, id, f)
		}
	}

	for _, path := range req.Attributes {
		d, field, err := walkAttributePath(reg, rootDesc, path)
		if err != nil {
			return nil, err
		}
		addTo(explicit, d.TypeID, field)
	}

	spec := New()
	for _, path := range req.Include {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if err := checkIncludePath(reg, rootDesc, path); err != nil {
			return nil, err
		}
		spec.Include(path)
	}

	r := resolver{reg: reg, explicit: explicit, spec: spec}
	if err := r.visit(rootDesc, spec.IncludeTree()); err != nil {
		return nil, err
	}

	for id, set := range explicit {
		d, _ := reg.Lookup(id)
		spec.Add(id, set.Names()...)
		spec.Add(id, d.IDField)
	}
	return spec, nil
}

type resolver struct {
	reg      *meta.Registry
	explicit map[meta.TypeID]FieldSet
	spec     *Spec
}

func (r *resolver) visit(d *meta.Descriptor, tree Tree) error {
	fields := r.fieldsFor(d)
	r.spec.Add(d.TypeID, fields...)
	r.spec.Add(d.TypeID, d.IDField)

	// Singular relations that are selected but not included surface as
	// identifier-only links.
	for _, name := range fields {
		f, _ := d.Field(name)
		if f.Kind != meta.KindRelationSingle || f.External || f.Ignored {
			continue
		}
		if _, included := tree[name]; included {
			continue
		}
		related, err := r.reg.Describe(f.RelatedType)
		if err != nil {
			return err
		}
		r.spec.Add(related.TypeID, related.IDField)
	}

	for name, sub := range tree {
		f, _ := d.Field(name)
		related, err := r.reg.Describe(f.RelatedType)
		if err != nil {
			return err
		}
		if err := r.visit(related, sub); err != nil {
			return err
		}
	}
	return nil
}

// fieldsFor returns the explicit fields of d, or the default selection.
func (r *resolver) fieldsFor(d *meta.Descriptor) []string {
	if set, ok := r.explicit[d.TypeID]; ok && len(set) > 0 {
		return set.Names()
	}
	var out []string
	for _, f := range d.Fields {
		if f.Ignored {
			continue
		}
		if f.IsValueCopy() || f.Kind == meta.KindRelationSingle {
			out = append(out, f.Name)
		}
	}
	return out
}

func checkField(d *meta.Descriptor, name string) error {
	f, ok := d.Field(name)
	if !ok || f.Ignored {
		return &meta.UnknownFieldError{TypeID: d.TypeID, Field: name}
	}
	return nil
}

// walkAttributePath follows the relation segments of path and returns the
// descriptor owning the final attribute segment.
func walkAttributePath(reg *meta.Registry, root *meta.Descriptor, path string) (*meta.Descriptor, string, error) {
	segs := strings.Split(path, ".")
	d := root
	for _, seg := range segs[:len(segs)-1] {
		next, err := relationTarget(reg, d, path, seg)
		if err != nil {
			return nil, "", err
		}
		d = next
	}
	last := segs[len(segs)-1]
	if _, ok := d.Field(last); !ok {
		return nil, "", &PathError{Path: path, Segment: last, Reason: "is not a field of " + string(d.TypeID)}
	}
	if err := checkField(d, last); err != nil {
		return nil, "", &PathError{Path: path, Segment: last, Reason: "is ignored for mapping"}
	}
	return d, last, nil
}

func checkIncludePath(reg *meta.Registry, root *meta.Descriptor, path string) error {
	d := root
	for _, seg := range strings.Split(path, ".") {
		next, err := relationTarget(reg, d, path, seg)
		if err != nil {
			return err
		}
		d = next
	}
	return nil
}

func relationTarget(reg *meta.Registry, d *meta.Descriptor, path, seg string) (*meta.Descriptor, error) {
	f, ok := d.Field(seg)
	if !ok {
		return nil, &PathError{Path: path, Segment: seg, Reason: "is not a field of " + string(d.TypeID)}
	}
	if !f.IsRelation() || f.External || f.Ignored {
		return nil, &PathError{Path: path, Segment: seg, Reason: "is not an includable relation"}
	}
	return reg.Describe(f.RelatedType)
}

func addTo(m map[meta.TypeID]FieldSet, id meta.TypeID, field string) {
	set, ok := m[id]
	if !ok {
		set = FieldSet{}
		m[id] = set
	}
	set[field] = struct{}{}
}
