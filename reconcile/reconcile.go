// Package reconcile aligns the persisted children of a one-to-many
// association with a newly supplied child list.
//
// The caller sets the incoming children on the in-memory parent first, then
// calls OnCreate, OnUpdate or OnDelete. Children are matched by a
// caller-supplied equality (usually natural identifier), never by object
// identity.
package reconcile

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/CaliLuke/go-dtograph/meta"
)

// Reconciler is the type-erased view of a one-to-many association of P,
// allowing a service to hold reconcilers for several child types.
type Reconciler[P any] interface {
	// OnCreate links every child on a new parent.
	OnCreate(ctx context.Context, parent *P) error
	// OnUpdate orphans persisted children absent from the parent and links
	// the incoming ones.
	OnUpdate(ctx context.Context, parent *P) error
	// OnDelete orphans every child on a parent being removed.
	OnDelete(ctx context.Context, parent *P) error
	// Load sets the persisted children of parent on it.
	Load(ctx context.Context, parent *P) error
	// Replace sets children (each a *C) as the incoming list of parent.
	Replace(parent *P, children []any) error
	// Linked returns the children currently held by parent.
	Linked(parent *P) []any
	// ChildType returns the entity struct type of the children.
	ChildType() reflect.Type
}

// OneToMany describes one parent/child association. All function fields
// except Set are required; Set is needed only by Replace.
type OneToMany[P, C any] struct {
	// Child is the type identifier of the children, used in logs and errors.
	Child meta.TypeID
	// ParentField is the name of the back-reference on the child.
	ParentField string

	// Link points child at parent.
	Link func(child *C, parent *P)
	// Children returns the incoming children held by parent.
	Children func(parent *P) []*C
	// Set replaces the children held by parent.
	Set func(parent *P, children []*C)
	// Current loads the persisted children of parent.
	Current func(ctx context.Context, parentField string, parent *P) ([]*C, error)
	// Equal reports whether a persisted and an incoming child are the same.
	Equal func(current, incoming *C) bool
	// Orphan severs a child from its former parent.
	Orphan func(ctx context.Context, child *C) error

	Logger *zap.Logger
}

var _ Reconciler[struct{}] = (*OneToMany[struct{}, struct{}])(nil)

// Validate reports a configuration error for missing functions.
func (r *OneToMany[P, C]) Validate() error {
	missing := func(name string) error {
		return &ConfigError{Child: r.Child, Field: name}
	}
	switch {
	case r.Link == nil:
		return missing("Link")
	case r.Children == nil:
		return missing("Children")
	case r.Current == nil:
		return missing("Current")
	case r.Equal == nil:
		return missing("Equal")
	case r.Orphan == nil:
		return missing("Orphan")
	}
	return nil
}

// OnCreate links every child supplied on parent. There is no prior state,
// so nothing is diffed.
func (r *OneToMany[P, C]) OnCreate(ctx context.Context, parent *P) error {
	if err := r.Validate(); err != nil {
		return err
	}
	incoming := r.Children(parent)
	if err := r.checkDistinct(incoming); err != nil {
		return err
	}
	for _, child := range incoming {
		r.Link(child, parent)
	}
	r.logger().Debug("children linked",
		zap.String("child", string(r.Child)), zap.Int("count", len(incoming)))
	return nil
}

// OnUpdate loads the persisted children of parent and invokes Orphan once
// for each one that has no equal among the incoming children. It then links
// every incoming child to parent.
func (r *OneToMany[P, C]) OnUpdate(ctx context.Context, parent *P) error {
	if err := r.Validate(); err != nil {
		return err
	}
	incoming := r.Children(parent)
	if err := r.checkDistinct(incoming); err != nil {
		return err
	}
	current, err := r.Current(ctx, r.ParentField, parent)
	if err != nil {
		return fmt.Errorf("reconcile %s: load current: %w", r.Child, err)
	}

	orphans := 0
	for _, c := range current {
		if r.contains(incoming, c) {
			continue
		}
		if err := r.Orphan(ctx, c); err != nil {
			return fmt.Errorf("reconcile %s: orphan: %w", r.Child, err)
		}
		orphans++
	}
	for _, child := range incoming {
		r.Link(child, parent)
	}
	r.logger().Debug("children reconciled",
		zap.String("child", string(r.Child)),
		zap.Int("current", len(current)),
		zap.Int("incoming", len(incoming)),
		zap.Int("orphaned", orphans))
	return nil
}

// OnDelete treats every child on parent as orphaned.
func (r *OneToMany[P, C]) OnDelete(ctx context.Context, parent *P) error {
	if err := r.Validate(); err != nil {
		return err
	}
	children := r.Children(parent)
	for _, c := range children {
		if err := r.Orphan(ctx, c); err != nil {
			return fmt.Errorf("reconcile %s: orphan: %w", r.Child, err)
		}
	}
	r.logger().Debug("children orphaned",
		zap.String("child", string(r.Child)), zap.Int("count", len(children)))
	return nil
}

// Load reads the persisted children of parent through Current and sets them
// with Set, typically before OnDelete.
func (r *OneToMany[P, C]) Load(ctx context.Context, parent *P) error {
	if r.Current == nil {
		return &ConfigError{Child: r.Child, Field: "Current"}
	}
	if r.Set == nil {
		return &ConfigError{Child: r.Child, Field: "Set"}
	}
	current, err := r.Current(ctx, r.ParentField, parent)
	if err != nil {
		return fmt.Errorf("reconcile %s: load current: %w", r.Child, err)
	}
	r.Set(parent, current)
	return nil
}

// Replace sets children as the incoming list of parent.
func (r *OneToMany[P, C]) Replace(parent *P, children []any) error {
	if r.Set == nil {
		return &ConfigError{Child: r.Child, Field: "Set"}
	}
	typed := make([]*C, 0, len(children))
	for _, v := range children {
		c, ok := v.(*C)
		if !ok {
			return fmt.Errorf("reconcile %s: child has type %T, want %v", r.Child, v, reflect.TypeOf((**C)(nil)).Elem())
		}
		typed = append(typed, c)
	}
	r.Set(parent, typed)
	return nil
}

// Linked returns the children held by parent as *C values.
func (r *OneToMany[P, C]) Linked(parent *P) []any {
	if r.Children == nil {
		return nil
	}
	children := r.Children(parent)
	out := make([]any, len(children))
	for i, c := range children {
		out[i] = c
	}
	return out
}

// ChildType returns the struct type C.
func (r *OneToMany[P, C]) ChildType() reflect.Type {
	return reflect.TypeOf((*C)(nil)).Elem()
}

func (r *OneToMany[P, C]) contains(incoming []*C, current *C) bool {
	for _, in := range incoming {
		if r.Equal(current, in) {
			return true
		}
	}
	return false
}

// checkDistinct rejects incoming lists holding two equal children.
func (r *OneToMany[P, C]) checkDistinct(incoming []*C) error {
	for i := range incoming {
		for j := i + 1; j < len(incoming); j++ {
			if r.Equal(incoming[i], incoming[j]) {
				return &DuplicateIncomingError{Child: r.Child, First: i, Second: j}
			}
		}
	}
	return nil
}

func (r *OneToMany[P, C]) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
