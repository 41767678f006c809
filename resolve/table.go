// Package resolve holds the per-type table of custom field resolvers used
// for fields that cannot be copied reflectively.
package resolve

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/CaliLuke/go-dtograph/meta"
)

// Direction specifies which way a resolver maps.
type Direction int

const (
	// ToDTO resolvers compute a transfer-object field from an entity.
	ToDTO Direction = iota
	// ToEntity resolvers compute an entity field from a transfer object.
	ToEntity
)

// String returns the name of the direction.
func (d Direction) String() string {
	if d == ToEntity {
		return "to-entity"
	}
	return "to-dto"
}

// Func computes a field value from its source object. For ToDTO the source
// is the entity; for ToEntity it is the transfer object.
type Func func(ctx context.Context, source any) (any, error)

type key struct {
	typeID meta.TypeID
	field  string
	dir    Direction
}

// Table maps (type, field, direction) to at most one resolver. It is
// assembled at startup and frozen before use; lookups are safe for
// concurrent use.
type Table struct {
	reg     *meta.Registry
	mu      sync.RWMutex
	entries map[key]Func
	frozen  bool
}

// NewTable creates an empty Table validated against reg. A nil reg uses the
// default registry.
func NewTable(reg *meta.Registry) *Table {
	if reg == nil {
		reg = meta.Default()
	}
	return &Table{reg: reg, entries: make(map[key]Func)}
}

// Add registers fn for a field of the type identified by typeID. The type
// must already be described and must declare field.
func (t *Table) Add(typeID meta.TypeID, field string, dir Direction, fn Func) error {
	if fn == nil {
		return fmt.Errorf("resolve: nil resolver for %s.%s", typeID, field)
	}
	d, ok := t.reg.Lookup(typeID)
	if !ok {
		return &meta.UnknownTypeError{TypeID: typeID}
	}
	if _, ok := d.Field(field); !ok {
		return &meta.UnknownFieldError{TypeID: typeID, Field: field}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frozen {
		return ErrFrozen
	}
	k := key{typeID: typeID, field: field, dir: dir}
	if _, dup := t.entries[k]; dup {
		return &DuplicateResolverError{TypeID: typeID, Field: field, Direction: dir}
	}
	t.entries[k] = fn
	return nil
}

// Lookup returns the resolver registered for (typeID, field, dir).
func (t *Table) Lookup(typeID meta.TypeID, field string, dir Direction) (Func, bool) {
	if t == nil {
		return nil, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn, ok := t.entries[key{typeID: typeID, field: field, dir: dir}]
	return fn, ok
}

// Freeze makes the table immutable. Later registrations fail with ErrFrozen.
func (t *Table) Freeze() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frozen = true
}

// Len returns the number of registered resolvers.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Register describes the transfer type D and adds fn for its field.
func Register[D any](t *Table, field string, dir Direction, fn Func) error {
	d, err := t.reg.Describe(reflect.TypeOf((*D)(nil)).Elem())
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	return t.Add(d.TypeID, field, dir, fn)
}

// MustRegister is a helper that calls Register and panics if an error occurs.
// It is intended for use during application initialization.
func MustRegister[D any](t *Table, field string, dir Direction, fn Func) {
	if err := Register[D](t, field, dir, fn); err != nil {
		panic(err)
	}
}

// FromEntity adapts a typed entity function into a ToDTO resolver.
func FromEntity[E any](fn func(ctx context.Context, entity *E) (any, error)) Func {
	return func(ctx context.Context, source any) (any, error) {
		e, err := asPointer[E](source)
		if err != nil {
			return nil, err
		}
		return fn(ctx, e)
	}
}

// FromDTO adapts a typed transfer-object function into a ToEntity resolver.
func FromDTO[D any](fn func(ctx context.Context, dto *D) (any, error)) Func {
	return func(ctx context.Context, source any) (any, error) {
		d, err := asPointer[D](source)
		if err != nil {
			return nil, err
		}
		return fn(ctx, d)
	}
}

func asPointer[T any](source any) (*T, error) {
	switch v := source.(type) {
	case *T:
		return v, nil
	case T:
		return &v, nil
	default:
		return nil, &SourceTypeError{Want: reflect.TypeOf((**T)(nil)).Elem(), Got: reflect.TypeOf(source)}
	}
}
