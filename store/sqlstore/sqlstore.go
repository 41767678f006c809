// Package sqlstore implements store.Store on a SQL database through sqlx,
// building statements with go-sqlbuilder.
//
// Each entity type is mapped by a Table. Work happens inside a Session bound
// to one transaction; the session keeps an identity map so an entity is
// materialized at most once and cyclic singular relations terminate.
package sqlstore

import (
	"context"
	"fmt"
	"reflect"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/CaliLuke/go-dtograph/meta"
	"github.com/CaliLuke/go-dtograph/store"
)

var _ store.Transactor = (*Store)(nil)

// Store owns the database handle and the table mapping.
type Store struct {
	db     *sqlx.DB
	reg    *meta.Registry
	flavor sqlbuilder.Flavor
	logger *zap.Logger
	tables map[reflect.Type]*Table
}

// Option configures a Store.
type Option func(*Store)

// WithRegistry sets the registry used to address entity fields.
func WithRegistry(reg *meta.Registry) Option {
	return func(s *Store) { s.reg = reg }
}

// WithFlavor sets the SQL dialect. The default is SQLite.
func WithFlavor(f sqlbuilder.Flavor) Option {
	return func(s *Store) { s.flavor = f }
}

// WithLogger sets the logger. Statements are logged at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open connects to dsn with driver and maps tables. The flavor follows the
// driver unless overridden with WithFlavor. SQLite handles are limited to a
// single connection.
func Open(driver, dsn string, tables []Table, opts ...Option) (*Store, error) {
	flavor, err := FlavorFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	s, err := New(db, tables, append([]Option{WithFlavor(flavor)}, opts...)...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New maps tables onto an existing handle.
func New(db *sqlx.DB, tables []Table, opts ...Option) (*Store, error) {
	s := &Store{
		db:     db,
		flavor: sqlbuilder.SQLite,
		tables: make(map[reflect.Type]*Table, len(tables)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.reg == nil {
		s.reg = meta.Default()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	for i := range tables {
		t := tables[i]
		if err := t.prepare(s.reg, s.flavor); err != nil {
			return nil, err
		}
		if _, dup := s.tables[t.Entity]; dup {
			return nil, fmt.Errorf("sqlstore: %s mapped twice", t.Entity.Name())
		}
		s.tables[t.Entity] = &t
	}
	for _, t := range s.tables {
		for _, c := range t.Collections {
			child, ok := s.tables[c.Child]
			if !ok {
				return nil, fmt.Errorf("sqlstore: table %s: collection %q: %v is not mapped", t.Name, c.Field, c.Child)
			}
			if _, err := child.column(childKey(child, c.MappedBy)); err != nil {
				return nil, fmt.Errorf("sqlstore: table %s: collection %q: %w", t.Name, c.Field, err)
			}
		}
		for _, r := range t.Refs {
			f, _ := t.fields.Field(r.Field)
			if _, ok := s.tables[f.Type.Elem()]; !ok {
				return nil, fmt.Errorf("sqlstore: table %s: ref %q: %v is not mapped", t.Name, r.Field, f.Type.Elem())
			}
		}
	}
	return s, nil
}

// DB returns the underlying handle.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate executes DDL statements in order.
func (s *Store) Migrate(ctx context.Context, statements ...string) error {
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			s.logger.Error("migration failed", zap.Error(err), zap.String("statement", stmt))
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Begin opens a Session on a new transaction. The caller must Commit or
// Rollback it.
func (s *Store) Begin(ctx context.Context) (*Session, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Session{
		store:    s,
		tx:       tx,
		identity: make(map[reflect.Type]map[any]reflect.Value),
	}, nil
}

// InTx runs fn in a Session, committing when fn succeeds and rolling back
// otherwise.
func (s *Store) InTx(ctx context.Context, fn func(*Session) error) error {
	sess, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(sess); err != nil {
		if rbErr := sess.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	return sess.Commit()
}

// Do implements store.Transactor on top of InTx.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, st store.Store) error) error {
	return s.InTx(ctx, func(sess *Session) error {
		return fn(ctx, sess)
	})
}

func (s *Store) table(t reflect.Type) (*Table, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	tbl, ok := s.tables[t]
	if !ok {
		return nil, fmt.Errorf("sqlstore: %v is not mapped", t)
	}
	return tbl, nil
}

// childKey returns the logical column field through which a child refers
// to its parent: the foreign key of a Ref, or the field itself.
func childKey(child *Table, mappedBy string) string {
	if r, ok := child.ref(mappedBy); ok {
		return r.Key
	}
	return mappedBy
}
