// Package service ties the mapper, a store and the reconcilers of an
// aggregate together into get/create/update/delete operations on transfer
// objects.
package service

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CaliLuke/go-dtograph/mapper"
	"github.com/CaliLuke/go-dtograph/meta"
	"github.com/CaliLuke/go-dtograph/reconcile"
	"github.com/CaliLuke/go-dtograph/selection"
	"github.com/CaliLuke/go-dtograph/store"
)

// CollectionFunc builds the reconciler of one collection relation against
// the store of the current unit of work.
type CollectionFunc[E any] func(s store.Store) reconcile.Reconciler[E]

// Resource serves transfer objects of type D backed by entities of type E.
type Resource[E, D any] struct {
	mapper      *mapper.Mapper
	backend     store.Transactor
	collections map[string]CollectionFunc[E]
	newID       func() string
	logger      *zap.Logger

	fields *meta.StructFields
	dto    *meta.Descriptor
}

// Option configures a Resource.
type Option[E, D any] func(*Resource[E, D])

// WithCollection registers the reconciler for a collection relation of the
// transfer object, keyed by its wire name.
func WithCollection[E, D any](field string, fn CollectionFunc[E]) Option[E, D] {
	return func(r *Resource[E, D]) { r.collections[field] = fn }
}

// WithIDGenerator replaces the random UUID generator used by Create.
func WithIDGenerator[E, D any](fn func() string) Option[E, D] {
	return func(r *Resource[E, D]) { r.newID = fn }
}

// WithLogger sets the logger.
func WithLogger[E, D any](l *zap.Logger) Option[E, D] {
	return func(r *Resource[E, D]) { r.logger = l }
}

// NewResource creates a Resource. Every registered collection must be a
// collection relation of D.
func NewResource[E, D any](m *mapper.Mapper, backend store.Transactor, opts ...Option[E, D]) (*Resource[E, D], error) {
	r := &Resource[E, D]{
		mapper:      m,
		backend:     backend,
		collections: make(map[string]CollectionFunc[E]),
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}

	var err error
	if r.dto, err = m.Registry().Describe(reflect.TypeOf((*D)(nil)).Elem()); err != nil {
		return nil, err
	}
	if r.fields, err = m.Registry().Fields(reflect.TypeOf((*E)(nil)).Elem()); err != nil {
		return nil, err
	}
	if _, ok := r.fields.ID(); !ok {
		return nil, fmt.Errorf("service: %s has no identifier", reflect.TypeOf((*E)(nil)).Elem().Name())
	}
	for field := range r.collections {
		if !r.dto.IsCollectionField(field) {
			return nil, &meta.UnknownFieldError{TypeID: r.dto.TypeID, Field: field}
		}
	}
	return r, nil
}

// Get loads the entity with id and materializes it under spec.
func (r *Resource[E, D]) Get(ctx context.Context, id any, spec *selection.Spec) (*D, error) {
	var out *D
	err := r.backend.Do(ctx, func(ctx context.Context, s store.Store) error {
		e, err := r.load(ctx, s, id, spec)
		if err != nil {
			return err
		}
		out, err = mapper.ToDTO[D](ctx, r.mapper, e, spec)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get %s %v: %w", r.dto.TypeID, id, err)
	}
	return out, nil
}

// Create builds a new entity from dto. The identifier of dto is used when
// set; otherwise a new one is generated. Included collections are linked
// to the new entity.
func (r *Resource[E, D]) Create(ctx context.Context, dto *D, spec *selection.Spec) (*D, error) {
	var out *D
	err := r.backend.Do(ctx, func(ctx context.Context, s store.Store) error {
		e := new(E)
		m := r.mapper.WithLoader(s)
		changes, err := m.Apply(ctx, dto, e, spec)
		if err != nil {
			return err
		}
		id, err := r.assignID(e, dto)
		if err != nil {
			return err
		}
		linked, err := r.reconcile(ctx, s, e, changes, reconcile.Reconciler[E].OnCreate)
		if err != nil {
			return err
		}
		if err := s.Persist(ctx, e); err != nil {
			return err
		}
		if err := mergeAll(ctx, s, linked); err != nil {
			return err
		}
		r.logger.Info("created", zap.String("type", string(r.dto.TypeID)), zap.Any("id", id))
		out, err = mapper.ToDTO[D](ctx, m, e, spec)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", r.dto.TypeID, err)
	}
	return out, nil
}

// Update applies dto to the entity with id. Fields outside spec are left
// untouched; included collections are reconciled against storage. The
// identifier never changes: a zero DTO identifier is ignored and a different
// one is rejected with an *IdentifierMismatchError.
func (r *Resource[E, D]) Update(ctx context.Context, id any, dto *D, spec *selection.Spec) (*D, error) {
	var out *D
	err := r.backend.Do(ctx, func(ctx context.Context, s store.Store) error {
		e, err := store.LoadByID[E](ctx, s, id)
		if err != nil {
			return err
		}
		key := r.fields.IDOf(reflect.ValueOf(e))
		loaded := reflect.New(key.Type()).Elem()
		loaded.Set(key)
		if in := r.dto.IDOf(reflect.ValueOf(dto)); in.IsValid() && !in.IsZero() && !sameID(in, loaded) {
			return &IdentifierMismatchError{TypeID: r.dto.TypeID, ID: loaded.Interface(), Got: in.Interface()}
		}
		m := r.mapper.WithLoader(s)
		changes, err := m.Apply(ctx, dto, e, spec)
		if err != nil {
			return err
		}
		key.Set(loaded)
		linked, err := r.reconcile(ctx, s, e, changes, reconcile.Reconciler[E].OnUpdate)
		if err != nil {
			return err
		}
		if err := s.Merge(ctx, e); err != nil {
			return err
		}
		if err := mergeAll(ctx, s, linked); err != nil {
			return err
		}
		r.logger.Info("updated", zap.String("type", string(r.dto.TypeID)), zap.Any("id", id))
		out, err = mapper.ToDTO[D](ctx, m, e, spec)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update %s %v: %w", r.dto.TypeID, id, err)
	}
	return out, nil
}

// Delete orphans the children of every registered collection, then removes
// the entity with id.
func (r *Resource[E, D]) Delete(ctx context.Context, id any) error {
	err := r.backend.Do(ctx, func(ctx context.Context, s store.Store) error {
		e, err := store.LoadByID[E](ctx, s, id)
		if err != nil {
			return err
		}
		for field, build := range r.collections {
			rc := build(s)
			if err := rc.Load(ctx, e); err != nil {
				return fmt.Errorf("%s: %w", field, err)
			}
			if err := rc.OnDelete(ctx, e); err != nil {
				return fmt.Errorf("%s: %w", field, err)
			}
		}
		if err := s.Remove(ctx, e); err != nil {
			return err
		}
		r.logger.Info("deleted", zap.String("type", string(r.dto.TypeID)), zap.Any("id", id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s %v: %w", r.dto.TypeID, id, err)
	}
	return nil
}

func (r *Resource[E, D]) load(ctx context.Context, s store.Store, id any, spec *selection.Spec) (*E, error) {
	e, err := store.LoadByID[E](ctx, s, id)
	if err != nil {
		return nil, err
	}
	if h, ok := s.(store.Hydrator); ok && spec != nil && len(spec.Includes) > 0 {
		if err := h.Hydrate(ctx, e, spec.Includes...); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// reconcile resolves the incoming children of each collection change, sets
// them on e and runs step. It returns every child to be merged.
func (r *Resource[E, D]) reconcile(ctx context.Context, s store.Store, e *E, changes *mapper.Changes,
	step func(reconcile.Reconciler[E], context.Context, *E) error) ([]any, error) {
	var linked []any
	for _, cc := range changes.Collections {
		build, ok := r.collections[cc.Field]
		if !ok {
			return nil, &UnreconciledError{TypeID: r.dto.TypeID, Field: cc.Field}
		}
		rc := build(s)
		children := make([]any, 0, len(cc.IDs))
		for _, id := range cc.IDs {
			child, err := s.LoadByID(ctx, cc.ChildType, id)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", cc.Field, err)
			}
			children = append(children, child)
		}
		if err := rc.Replace(e, children); err != nil {
			return nil, err
		}
		if err := step(rc, ctx, e); err != nil {
			return nil, fmt.Errorf("%s: %w", cc.Field, err)
		}
		linked = append(linked, rc.Linked(e)...)
		r.logger.Debug("collection reconciled",
			zap.String("type", string(r.dto.TypeID)), zap.String("field", cc.Field), zap.Int("children", len(children)))
	}
	return linked, nil
}

// assignID sets the identifier of e from dto, or generates one.
func (r *Resource[E, D]) assignID(e *E, dto *D) (any, error) {
	dst := r.fields.IDOf(reflect.ValueOf(e))
	src := r.dto.IDOf(reflect.ValueOf(dto))
	if src.IsValid() && !src.IsZero() {
		if !src.Type().ConvertibleTo(dst.Type()) {
			return nil, fmt.Errorf("service: cannot use %v identifier for %v", src.Type(), dst.Type())
		}
		dst.Set(src.Convert(dst.Type()))
		return dst.Interface(), nil
	}
	switch {
	case dst.Type() == reflect.TypeOf((*uuid.UUID)(nil)).Elem():
		dst.Set(reflect.ValueOf(uuid.New()))
	case dst.Kind() == reflect.String:
		dst.SetString(r.newID())
	default:
		return nil, fmt.Errorf("service: cannot generate %v identifier", dst.Type())
	}
	return dst.Interface(), nil
}

func sameID(in, id reflect.Value) bool {
	if !in.Type().ConvertibleTo(id.Type()) {
		return false
	}
	return in.Convert(id.Type()).Equal(id)
}

func mergeAll(ctx context.Context, s store.Store, entities []any) error {
	for _, e := range entities {
		if err := s.Merge(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// UnreconciledError is returned when an update includes a collection that
// has no registered reconciler.
type UnreconciledError struct {
	TypeID meta.TypeID
	Field  string
}

// Error returns the error message for UnreconciledError.
func (e *UnreconciledError) Error() string {
	return fmt.Sprintf("service: no reconciler for %s.%s", e.TypeID, e.Field)
}

// IdentifierMismatchError is returned when an update carries an identifier
// other than the one of the entity being updated.
type IdentifierMismatchError struct {
	TypeID meta.TypeID
	ID     any
	Got    any
}

// Error returns the error message for IdentifierMismatchError.
func (e *IdentifierMismatchError) Error() string {
	return fmt.Sprintf("service: %s %v cannot change identifier to %v", e.TypeID, e.ID, e.Got)
}
