package sqlstore

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/huandu/go-sqlbuilder"

	"github.com/CaliLuke/go-dtograph/meta"
)

// Table maps an entity struct to a SQL table. Columns come from `db` tags;
// relation fields must be tagged `db:"-"`.
type Table struct {
	// Name is the SQL table name.
	Name string
	// Entity is the entity struct type.
	Entity reflect.Type
	// Refs are the singular relations stored as foreign keys.
	Refs []Ref
	// Collections are the to-many relations owned by the child side.
	Collections []Collection

	key    string
	fields *meta.StructFields
	st     *sqlbuilder.Struct
}

// Ref is a singular relation held in a pointer field and persisted through
// a foreign-key field on the same struct.
type Ref struct {
	// Field is the logical name of the relation field (a *Related).
	Field string
	// Key is the logical name of the foreign-key field.
	Key string
}

// Collection is a to-many relation whose children point back at the parent
// through MappedBy.
type Collection struct {
	// Field is the logical name of the slice field on the parent.
	Field string
	// Child is the child entity struct type.
	Child reflect.Type
	// MappedBy is the logical name of the back-reference on the child.
	MappedBy string
}

// TableFor returns a Table for entity type E.
func TableFor[E any](name string) Table {
	return Table{Name: name, Entity: reflect.TypeOf((*E)(nil)).Elem()}
}

// WithRef returns a copy of t with a singular relation added.
func (t Table) WithRef(field, key string) Table {
	t.Refs = append(append([]Ref(nil), t.Refs...), Ref{Field: field, Key: key})
	return t
}

// WithCollection returns a copy of t with a to-many relation added.
func (t Table) WithCollection(field string, child reflect.Type, mappedBy string) Table {
	t.Collections = append(append([]Collection(nil), t.Collections...),
		Collection{Field: field, Child: child, MappedBy: mappedBy})
	return t
}

func (t *Table) ref(field string) (Ref, bool) {
	for _, r := range t.Refs {
		if r.Field == field {
			return r, true
		}
	}
	return Ref{}, false
}

func (t *Table) collection(field string) (Collection, bool) {
	for _, c := range t.Collections {
		if c.Field == field {
			return c, true
		}
	}
	return Collection{}, false
}

// column returns the SQL column of a logical field.
func (t *Table) column(field string) (string, error) {
	f, ok := t.fields.Field(field)
	if !ok {
		return "", fmt.Errorf("sqlstore: %s has no field %q", t.Entity.Name(), field)
	}
	sf := t.Entity.Field(f.Index)
	col, _, _ := strings.Cut(sf.Tag.Get("db"), ",")
	if col == "-" {
		return "", fmt.Errorf("sqlstore: %s.%s is not a column", t.Entity.Name(), field)
	}
	if col == "" {
		col = strings.ToLower(sf.Name)
	}
	return col, nil
}

func (t *Table) prepare(reg *meta.Registry, flavor sqlbuilder.Flavor) error {
	if t.Name == "" {
		return fmt.Errorf("sqlstore: table for %v has no name", t.Entity)
	}
	if t.Entity == nil || t.Entity.Kind() != reflect.Struct {
		return fmt.Errorf("sqlstore: table %s: entity must be a struct type, got %v", t.Name, t.Entity)
	}
	fields, err := reg.Fields(t.Entity)
	if err != nil {
		return fmt.Errorf("sqlstore: table %s: %w", t.Name, err)
	}
	if fields.IDField == "" {
		return fmt.Errorf("sqlstore: table %s: %s has no identifier", t.Name, t.Entity.Name())
	}
	t.fields = fields
	if t.key, err = t.column(fields.IDField); err != nil {
		return err
	}
	for _, r := range t.Refs {
		f, ok := fields.Field(r.Field)
		if !ok || f.Type.Kind() != reflect.Ptr || f.Type.Elem().Kind() != reflect.Struct {
			return fmt.Errorf("sqlstore: table %s: ref %q must be a struct pointer field", t.Name, r.Field)
		}
		if _, err := t.column(r.Key); err != nil {
			return err
		}
	}
	for _, c := range t.Collections {
		f, ok := fields.Field(c.Field)
		if !ok || f.Type.Kind() != reflect.Slice {
			return fmt.Errorf("sqlstore: table %s: collection %q must be a slice field", t.Name, c.Field)
		}
	}
	t.st = sqlbuilder.NewStruct(reflect.New(t.Entity).Interface()).For(flavor)
	return nil
}
