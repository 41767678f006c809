package mapper

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/CaliLuke/go-dtograph/meta"
	"github.com/CaliLuke/go-dtograph/resolve"
	"github.com/CaliLuke/go-dtograph/selection"
	"github.com/CaliLuke/go-dtograph/store"
)

// --- Entities ---

type TestPerson struct {
	ID         string `dto:"id"`
	Name       string
	Email      *string
	Age        int
	Nickname   string
	Department *TestDepartment
	Tasks      []*TestTask
	Account    string
}

type TestDepartment struct {
	ID      string `dto:"id"`
	Title   string
	Budget  int64
	Head    *TestPerson
	Members []*TestPerson
}

type TestTask struct {
	UUID    string `dto:"uuid,id"`
	Summary string
	Owner   *TestPerson
}

// --- Transfer objects ---

type TestPersonDTO struct {
	ID         string             `dto:"id"`
	Name       *string            `dto:"name"`
	Email      *string            `dto:"email"`
	Age        *int32             `dto:"age"`
	Nickname   string             `dto:"nickname"`
	FullName   string             `dto:"fullName,readonly"`
	Secret     string             `dto:"-"`
	Department *TestDepartmentDTO `dto:"department,rel"`
	Tasks      []*TestTaskDTO     `dto:"tasks,rel"`
	Account    *string            `dto:"account,external=BillingAccount"`
}

type TestDepartmentDTO struct {
	ID      string          `dto:"id,type:department"`
	Title   string          `dto:"title"`
	Budget  int64           `dto:"budget"`
	Head    *TestPersonDTO  `dto:"head,rel"`
	Members []TestPersonDTO `dto:"members,rel"`
}

type TestTaskDTO struct {
	UUID    string         `dto:"uuid,id"`
	Summary *string        `dto:"summary"`
	Owner   *TestPersonDTO `dto:"owner,rel"`
}

// fakeLoader serves entities keyed by "<TypeName>/<id>".
type fakeLoader struct {
	entities map[string]any
	err      error
	calls    int
}

func (l *fakeLoader) LoadByID(_ context.Context, typ reflect.Type, id any) (any, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	e, ok := l.entities[fmt.Sprintf("%s/%v", typ.Name(), id)]
	if !ok {
		return nil, &store.NotFoundError{Type: typ, ID: id}
	}
	return e, nil
}

func ptr[T any](v T) *T { return &v }

func newTestMapper(t *testing.T, opts ...Option) (*Mapper, *meta.Registry) {
	t.Helper()
	reg := meta.NewRegistry()
	m := New(append([]Option{WithRegistry(reg)}, opts...)...)
	return m, reg
}

func mustResolve(t *testing.T, reg *meta.Registry, req selection.Request) *selection.Spec {
	t.Helper()
	spec, err := selection.Resolve(reg, reflect.TypeOf((*TestPersonDTO)(nil)).Elem(), req)
	if err != nil {
		t.Fatalf("resolve selection: %v", err)
	}
	return spec
}

// sampleGraph returns a person in a department she heads, with two tasks.
func sampleGraph() *TestPerson {
	dept := &TestDepartment{ID: "d1", Title: "Research", Budget: 1200}
	p := &TestPerson{
		ID:         "p1",
		Name:       "Ada",
		Email:      ptr("ada@example.com"),
		Age:        36,
		Nickname:   "countess",
		Department: dept,
		Account:    "acct-9",
	}
	dept.Head = p
	dept.Members = []*TestPerson{p}
	p.Tasks = []*TestTask{
		{UUID: "t1", Summary: "notes", Owner: p},
		{UUID: "t2", Summary: "engine", Owner: p},
	}
	return p
}

func newTable(t *testing.T, reg *meta.Registry) *resolve.Table {
	t.Helper()
	table := resolve.NewTable(reg)
	if _, err := reg.Describe(reflect.TypeOf((*TestPersonDTO)(nil)).Elem()); err != nil {
		t.Fatalf("describe: %v", err)
	}
	return table
}
