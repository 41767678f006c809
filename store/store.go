// Package store defines the persistence collaborator consumed by the mapper,
// the reconciler and the service layer.
//
// Entities are addressed by their Go type and natural identifier. Loaders
// return a pointer to the entity (*E) boxed in an any.
package store

import (
	"context"
	"fmt"
	"reflect"
)

// Loader resolves persistent entities by identifier.
type Loader interface {
	// LoadByID returns a pointer to the entity of type typ with the given id,
	// or a *NotFoundError.
	LoadByID(ctx context.Context, typ reflect.Type, id any) (any, error)
}

// Store is the full persistence collaborator.
type Store interface {
	Loader
	// LoadChildren returns the entities of childType whose parentField refers
	// to parent.
	LoadChildren(ctx context.Context, childType reflect.Type, parentField string, parent any) ([]any, error)
	// Persist stores a new entity.
	Persist(ctx context.Context, entity any) error
	// Merge stores the current state of an existing entity.
	Merge(ctx context.Context, entity any) error
	// Remove deletes an entity.
	Remove(ctx context.Context, entity any) error
}

// Transactor runs work against a Store inside one unit of work. The Store
// handed to fn is valid only until fn returns.
type Transactor interface {
	Do(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}

// Hydrator is implemented by stores that can load collection relations
// along dot-separated include paths.
type Hydrator interface {
	Hydrate(ctx context.Context, entity any, paths ...string) error
}

// NotFoundError is returned when no entity of the requested type has the id.
type NotFoundError struct {
	Type reflect.Type
	ID   any
}

// Error returns the error message for NotFoundError.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("store: %s %v not found", typeName(e.Type), e.ID)
}

// TypeError is returned when a loader produces a value of an unexpected type.
type TypeError struct {
	Want reflect.Type
	Got  reflect.Type
}

// Error returns the error message for TypeError.
func (e *TypeError) Error() string {
	return fmt.Sprintf("store: expected %v, got %v", e.Want, e.Got)
}

// LoadByID is the typed form of Loader.LoadByID.
func LoadByID[E any](ctx context.Context, l Loader, id any) (*E, error) {
	v, err := l.LoadByID(ctx, reflect.TypeOf((*E)(nil)).Elem(), id)
	if err != nil {
		return nil, err
	}
	e, ok := v.(*E)
	if !ok {
		return nil, &TypeError{Want: reflect.TypeOf((**E)(nil)).Elem(), Got: reflect.TypeOf(v)}
	}
	return e, nil
}

// LoadChildren is the typed form of Store.LoadChildren.
func LoadChildren[C any](ctx context.Context, s Store, parentField string, parent any) ([]*C, error) {
	vals, err := s.LoadChildren(ctx, reflect.TypeOf((*C)(nil)).Elem(), parentField, parent)
	if err != nil {
		return nil, err
	}
	out := make([]*C, 0, len(vals))
	for _, v := range vals {
		c, ok := v.(*C)
		if !ok {
			return nil, &TypeError{Want: reflect.TypeOf((**C)(nil)).Elem(), Got: reflect.TypeOf(v)}
		}
		out = append(out, c)
	}
	return out, nil
}

// EntityType returns the struct type of an entity pointer, struct value or type.
func EntityType(v any) reflect.Type {
	var t reflect.Type
	if rt, ok := v.(reflect.Type); ok {
		t = rt
	} else {
		t = reflect.TypeOf(v)
	}
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.Name()
}
