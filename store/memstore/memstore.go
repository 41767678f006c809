// Package memstore is an in-process store.Store keyed by entity type and
// natural identifier. Entities are held by pointer, so loaded values share
// identity with the stored ones.
package memstore

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/CaliLuke/go-dtograph/meta"
	"github.com/CaliLuke/go-dtograph/store"
)

// Store is safe for concurrent use.
type Store struct {
	reg *meta.Registry

	mu    sync.RWMutex
	byID  map[reflect.Type]map[any]any
	order map[reflect.Type][]any
}

var (
	_ store.Store      = (*Store)(nil)
	_ store.Transactor = (*Store)(nil)
)

// New creates an empty Store. A nil reg uses the default registry.
func New(reg *meta.Registry) *Store {
	if reg == nil {
		reg = meta.Default()
	}
	return &Store{
		reg:   reg,
		byID:  make(map[reflect.Type]map[any]any),
		order: make(map[reflect.Type][]any),
	}
}

// Do runs fn against s directly; memstore has no transactions.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, s store.Store) error) error {
	return fn(ctx, s)
}

// LoadByID returns the stored pointer for (typ, id).
func (s *Store) LoadByID(_ context.Context, typ reflect.Type, id any) (any, error) {
	typ = store.EntityType(typ)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[typ][id]
	if !ok {
		return nil, &store.NotFoundError{Type: typ, ID: id}
	}
	return e, nil
}

// LoadChildren returns the entities of childType whose parentField refers to
// parent, in insertion order. The field may hold a pointer to the parent or
// the parent's identifier.
func (s *Store) LoadChildren(_ context.Context, childType reflect.Type, parentField string, parent any) ([]any, error) {
	childType = store.EntityType(childType)
	pid, err := s.idOf(parent)
	if err != nil {
		return nil, err
	}
	cf, err := s.reg.Fields(childType)
	if err != nil {
		return nil, err
	}
	if _, ok := cf.Field(parentField); !ok {
		return nil, fmt.Errorf("memstore: %s has no field %q", childType.Name(), parentField)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []any
	for _, id := range s.order[childType] {
		child := s.byID[childType][id]
		ref, _ := cf.Get(reflect.ValueOf(child), parentField)
		refID, ok := s.refID(ref)
		if ok && refID == pid {
			out = append(out, child)
		}
	}
	return out, nil
}

// Persist stores a new entity. entity must be a pointer to a struct with a
// non-zero identifier.
func (s *Store) Persist(_ context.Context, entity any) error {
	typ, id, err := s.key(entity)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[typ][id]; exists {
		return &DuplicateError{Type: typ, ID: id}
	}
	s.put(typ, id, entity)
	return nil
}

// Merge stores entity, replacing any entity with the same identifier.
func (s *Store) Merge(_ context.Context, entity any) error {
	typ, id, err := s.key(entity)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[typ][id]; exists {
		s.byID[typ][id] = entity
		return nil
	}
	s.put(typ, id, entity)
	return nil
}

// Remove deletes entity.
func (s *Store) Remove(_ context.Context, entity any) error {
	typ, id, err := s.key(entity)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[typ][id]; !exists {
		return &store.NotFoundError{Type: typ, ID: id}
	}
	delete(s.byID[typ], id)
	ids := s.order[typ]
	for i, v := range ids {
		if v == id {
			s.order[typ] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// Len returns the number of stored entities of typ.
func (s *Store) Len(typ reflect.Type) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID[store.EntityType(typ)])
}

func (s *Store) put(typ reflect.Type, id, entity any) {
	m, ok := s.byID[typ]
	if !ok {
		m = make(map[any]any)
		s.byID[typ] = m
	}
	m[id] = entity
	s.order[typ] = append(s.order[typ], id)
}

func (s *Store) key(entity any) (reflect.Type, any, error) {
	v := reflect.ValueOf(entity)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf("memstore: entity must be a non-nil struct pointer, got %T", entity)
	}
	id, err := s.idOf(entity)
	if err != nil {
		return nil, nil, err
	}
	return v.Elem().Type(), id, nil
}

func (s *Store) idOf(entity any) (any, error) {
	v := reflect.ValueOf(entity)
	sf, err := s.reg.Fields(v.Type())
	if err != nil {
		return nil, err
	}
	id := sf.IDOf(v)
	if !id.IsValid() || id.IsZero() {
		return nil, fmt.Errorf("memstore: %s has no identifier", sf.GoType.Name())
	}
	return id.Interface(), nil
}

// refID extracts the referenced identifier from a back-reference field.
func (s *Store) refID(ref reflect.Value) (any, bool) {
	if !ref.IsValid() {
		return nil, false
	}
	if ref.Kind() == reflect.Ptr {
		if ref.IsNil() {
			return nil, false
		}
		if ref.Elem().Kind() != reflect.Struct {
			return ref.Elem().Interface(), true
		}
	}
	if reflect.Indirect(ref).Kind() == reflect.Struct {
		id, err := s.idOf(ref.Interface())
		return id, err == nil
	}
	return ref.Interface(), true
}

// DuplicateError is returned by Persist when the identifier is taken.
type DuplicateError struct {
	Type reflect.Type
	ID   any
}

// Error returns the error message for DuplicateError.
func (e *DuplicateError) Error() string {
	return fmt.Sprintf("memstore: %s %v already exists", e.Type.Name(), e.ID)
}
