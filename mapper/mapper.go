// Package mapper materializes transfer objects from persistent entities and
// applies transfer objects back onto entities, driven by a selection.Spec.
//
// Entities are plain structs addressed by logical field name (see
// meta.Registry.Fields); transfer objects are described by their `dto` tags.
// A field with the same logical name on both sides is copied reflectively
// unless a resolver is registered for it.
package mapper

import (
	"context"
	"reflect"

	"go.uber.org/zap"

	"github.com/CaliLuke/go-dtograph/meta"
	"github.com/CaliLuke/go-dtograph/resolve"
	"github.com/CaliLuke/go-dtograph/selection"
	"github.com/CaliLuke/go-dtograph/store"
)

// Mapper converts between entities and transfer objects. It holds no
// per-request state and is safe for concurrent use.
type Mapper struct {
	reg       *meta.Registry
	resolvers *resolve.Table
	loader    store.Loader
	logger    *zap.Logger
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithRegistry sets the type registry. The default registry is used otherwise.
func WithRegistry(reg *meta.Registry) Option {
	return func(m *Mapper) { m.reg = reg }
}

// WithResolvers sets the custom field resolver table.
func WithResolvers(t *resolve.Table) Option {
	return func(m *Mapper) { m.resolvers = t }
}

// WithLoader sets the loader used to resolve singular relations in Apply.
func WithLoader(l store.Loader) Option {
	return func(m *Mapper) { m.loader = l }
}

// WithLogger sets the logger. Mapping decisions are logged at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(m *Mapper) { m.logger = l }
}

// New creates a Mapper.
func New(opts ...Option) *Mapper {
	m := &Mapper{}
	for _, opt := range opts {
		opt(m)
	}
	if m.reg == nil {
		m.reg = meta.Default()
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	return m
}

// Registry returns the type registry used by the mapper.
func (m *Mapper) Registry() *meta.Registry {
	return m.reg
}

// WithLoader returns a copy of m that resolves relations through l. Services
// use it to bind a mapper to a transaction-scoped loader.
func (m *Mapper) WithLoader(l store.Loader) *Mapper {
	cp := *m
	cp.loader = l
	return &cp
}

// ToDTO is the typed form of Mapper.ToDTO.
func ToDTO[D any](ctx context.Context, m *Mapper, entity any, spec *selection.Spec) (*D, error) {
	out, err := m.ToDTO(ctx, entity, reflect.TypeOf((*D)(nil)).Elem(), spec)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	return out.(*D), nil
}

func (m *Mapper) resolver(d *meta.Descriptor, field string, dir resolve.Direction) (resolve.Func, bool) {
	if m.resolvers == nil {
		return nil, false
	}
	return m.resolvers.Lookup(d.TypeID, field, dir)
}

// addressable returns a pointer to the struct held by v, copying a struct
// value so resolvers always receive *E.
func addressable(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if v.Kind() == reflect.Ptr {
		return v
	}
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	return p
}

func isNil(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
