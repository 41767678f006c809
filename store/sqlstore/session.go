package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/CaliLuke/go-dtograph/selection"
	"github.com/CaliLuke/go-dtograph/store"
)

// Session is a unit of work bound to one transaction. It is not safe for
// concurrent use.
type Session struct {
	store    *Store
	tx       *sqlx.Tx
	identity map[reflect.Type]map[any]reflect.Value
	closed   bool
}

var (
	_ store.Store    = (*Session)(nil)
	_ store.Hydrator = (*Session)(nil)
)

// Commit commits the transaction. Committing a closed session is a no-op.
func (s *Session) Commit() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards the transaction. Rolling back a closed session is a no-op.
func (s *Session) Rollback() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// LoadByID returns the entity of typ with the given id. Singular relations
// are loaded eagerly through the identity map.
func (s *Session) LoadByID(ctx context.Context, typ reflect.Type, id any) (any, error) {
	tbl, err := s.store.table(typ)
	if err != nil {
		return nil, err
	}
	if v, ok := s.cached(tbl.Entity, id); ok {
		return v.Interface(), nil
	}

	sb := s.store.flavor.NewSelectBuilder()
	sb.Select(tbl.st.Columns()...)
	sb.From(tbl.Name)
	sb.Where(sb.Equal(tbl.key, id))
	query, args := sb.Build()
	s.logQuery(query)

	dest := reflect.New(tbl.Entity)
	if err := s.tx.GetContext(ctx, dest.Interface(), query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &store.NotFoundError{Type: tbl.Entity, ID: id}
		}
		return nil, fmt.Errorf("load %s %v: %w", tbl.Name, id, err)
	}
	return s.attach(ctx, tbl, dest)
}

// LoadChildren returns the entities of childType whose parentField refers to
// parent, ordered by key. parentField is either a Ref of the child table or
// a plain foreign-key field.
func (s *Session) LoadChildren(ctx context.Context, childType reflect.Type, parentField string, parent any) ([]any, error) {
	tbl, err := s.store.table(childType)
	if err != nil {
		return nil, err
	}
	col, err := tbl.column(childKey(tbl, parentField))
	if err != nil {
		return nil, err
	}
	pv := reflect.ValueOf(parent)
	pf, err := s.store.reg.Fields(pv.Type())
	if err != nil {
		return nil, err
	}
	pid := pf.IDOf(pv)
	if !pid.IsValid() {
		return nil, fmt.Errorf("sqlstore: parent %T has no identifier", parent)
	}

	sb := s.store.flavor.NewSelectBuilder()
	sb.Select(tbl.st.Columns()...)
	sb.From(tbl.Name)
	sb.Where(sb.Equal(col, pid.Interface()))
	sb.OrderBy(tbl.key)
	query, args := sb.Build()
	s.logQuery(query)

	rows := reflect.New(reflect.SliceOf(tbl.Entity))
	if err := s.tx.SelectContext(ctx, rows.Interface(), query, args...); err != nil {
		return nil, fmt.Errorf("load %s by %s: %w", tbl.Name, parentField, err)
	}
	out := make([]any, 0, rows.Elem().Len())
	for i := 0; i < rows.Elem().Len(); i++ {
		row := reflect.New(tbl.Entity)
		row.Elem().Set(rows.Elem().Index(i))
		child, err := s.attach(ctx, tbl, row)
		if err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	return out, nil
}

// Persist inserts a new entity. Foreign keys are synchronized from the
// relation pointers first.
func (s *Session) Persist(ctx context.Context, entity any) error {
	tbl, v, err := s.target(entity)
	if err != nil {
		return err
	}
	if err := s.syncRefs(tbl, v); err != nil {
		return err
	}
	query, args := tbl.st.InsertInto(tbl.Name, entity).Build()
	s.logQuery(query)
	if _, err := s.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", tbl.Name, err)
	}
	s.remember(tbl.Entity, tbl.fields.IDOf(v).Interface(), v)
	return nil
}

// Merge updates an existing entity, inserting it when no row matches.
func (s *Session) Merge(ctx context.Context, entity any) error {
	tbl, v, err := s.target(entity)
	if err != nil {
		return err
	}
	if err := s.syncRefs(tbl, v); err != nil {
		return err
	}
	id := tbl.fields.IDOf(v).Interface()

	ub := tbl.st.Update(tbl.Name, entity)
	ub.Where(ub.Equal(tbl.key, id))
	query, args := ub.Build()
	s.logQuery(query)
	res, err := s.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", tbl.Name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		query, args = tbl.st.InsertInto(tbl.Name, entity).Build()
		s.logQuery(query)
		if _, err := s.tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert %s: %w", tbl.Name, err)
		}
	}
	s.remember(tbl.Entity, id, v)
	return nil
}

// Remove deletes an entity.
func (s *Session) Remove(ctx context.Context, entity any) error {
	tbl, v, err := s.target(entity)
	if err != nil {
		return err
	}
	id := tbl.fields.IDOf(v).Interface()

	db := tbl.st.DeleteFrom(tbl.Name)
	db.Where(db.Equal(tbl.key, id))
	query, args := db.Build()
	s.logQuery(query)
	res, err := s.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", tbl.Name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &store.NotFoundError{Type: tbl.Entity, ID: id}
	}
	delete(s.identity[tbl.Entity], id)
	return nil
}

// Hydrate loads the collection relations of entity along dot-separated
// include paths. Singular relations are already loaded and are traversed.
func (s *Session) Hydrate(ctx context.Context, entity any, paths ...string) error {
	return s.hydrate(ctx, reflect.ValueOf(entity), selection.ParseTree(paths))
}

func (s *Session) hydrate(ctx context.Context, v reflect.Value, tree selection.Tree) error {
	if len(tree) == 0 || !v.IsValid() || (v.Kind() == reflect.Ptr && v.IsNil()) {
		return nil
	}
	tbl, err := s.store.table(v.Type())
	if err != nil {
		return err
	}
	for name, sub := range tree {
		if c, ok := tbl.collection(name); ok {
			children, err := s.LoadChildren(ctx, c.Child, c.MappedBy, v.Interface())
			if err != nil {
				return err
			}
			field, _ := tbl.fields.Get(v, name)
			byValue := field.Type().Elem().Kind() != reflect.Ptr
			items := reflect.MakeSlice(field.Type(), 0, len(children))
			for _, child := range children {
				cv := reflect.ValueOf(child)
				if byValue {
					cv = cv.Elem()
				}
				items = reflect.Append(items, cv)
			}
			field.Set(items)
			for _, child := range children {
				if err := s.hydrate(ctx, reflect.ValueOf(child), sub); err != nil {
					return err
				}
			}
			continue
		}
		if _, ok := tbl.ref(name); ok {
			rel, _ := tbl.fields.Get(v, name)
			if err := s.hydrate(ctx, rel, sub); err != nil {
				return err
			}
			continue
		}
		return fmt.Errorf("sqlstore: %s has no relation %q", tbl.Entity.Name(), name)
	}
	return nil
}

// attach registers a freshly scanned row in the identity map, returning the
// already materialized instance when there is one, and resolves its refs.
func (s *Session) attach(ctx context.Context, tbl *Table, v reflect.Value) (any, error) {
	id := tbl.fields.IDOf(v).Interface()
	if existing, ok := s.cached(tbl.Entity, id); ok {
		return existing.Interface(), nil
	}
	s.remember(tbl.Entity, id, v)
	for _, r := range tbl.Refs {
		key, _ := tbl.fields.Get(v, r.Key)
		rel, _ := tbl.fields.Get(v, r.Field)
		fk, ok := keyValue(key)
		if !ok {
			rel.SetZero()
			continue
		}
		loaded, err := s.LoadByID(ctx, rel.Type().Elem(), fk)
		if err != nil {
			return nil, fmt.Errorf("load %s.%s: %w", tbl.Name, r.Field, err)
		}
		rel.Set(reflect.ValueOf(loaded))
	}
	return v.Interface(), nil
}

// syncRefs copies the identifier of each related entity into its foreign key.
func (s *Session) syncRefs(tbl *Table, v reflect.Value) error {
	for _, r := range tbl.Refs {
		rel, _ := tbl.fields.Get(v, r.Field)
		key, _ := tbl.fields.Get(v, r.Key)
		if rel.IsNil() {
			key.SetZero()
			continue
		}
		rt, err := s.store.table(rel.Type())
		if err != nil {
			return err
		}
		if err := setKey(key, rt.fields.IDOf(rel)); err != nil {
			return fmt.Errorf("sqlstore: %s.%s: %w", tbl.Name, r.Key, err)
		}
	}
	return nil
}

func (s *Session) target(entity any) (*Table, reflect.Value, error) {
	v := reflect.ValueOf(entity)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return nil, v, fmt.Errorf("sqlstore: entity must be a non-nil pointer, got %T", entity)
	}
	tbl, err := s.store.table(v.Type())
	if err != nil {
		return nil, v, err
	}
	return tbl, v, nil
}

func (s *Session) cached(t reflect.Type, id any) (reflect.Value, bool) {
	v, ok := s.identity[t][id]
	return v, ok
}

func (s *Session) remember(t reflect.Type, id any, v reflect.Value) {
	m, ok := s.identity[t]
	if !ok {
		m = make(map[any]reflect.Value)
		s.identity[t] = m
	}
	m[id] = v
}

func (s *Session) logQuery(query string) {
	s.store.logger.Debug("sql", zap.String("query", query))
}

// keyValue returns the foreign key held by a field, or false when it is
// nil or zero.
func keyValue(key reflect.Value) (any, bool) {
	if key.Kind() == reflect.Ptr {
		if key.IsNil() {
			return nil, false
		}
		key = key.Elem()
	}
	if key.IsZero() {
		return nil, false
	}
	return key.Interface(), true
}

func setKey(key, id reflect.Value) error {
	target := key.Type()
	if target.Kind() == reflect.Ptr {
		target = target.Elem()
	}
	if !id.Type().ConvertibleTo(target) {
		return fmt.Errorf("cannot store %v in %v", id.Type(), key.Type())
	}
	val := id.Convert(target)
	if key.Kind() == reflect.Ptr {
		p := reflect.New(target)
		p.Elem().Set(val)
		key.Set(p)
		return nil
	}
	key.Set(val)
	return nil
}
