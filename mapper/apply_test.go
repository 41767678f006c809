package mapper

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/CaliLuke/go-dtograph/meta"
	"github.com/CaliLuke/go-dtograph/resolve"
	"github.com/CaliLuke/go-dtograph/selection"
	"github.com/CaliLuke/go-dtograph/store"
)

func TestApply_RoundTrip(t *testing.T) {
	m, reg := newTestMapper(t)
	spec := mustResolve(t, reg, selection.Request{
		Fields: map[meta.TypeID][]string{"test-person": {"name", "email", "age", "nickname", "account"}},
	})
	src := sampleGraph()

	dto, err := ToDTO[TestPersonDTO](context.Background(), m, src, spec)
	if err != nil {
		t.Fatalf("ToDTO: %v", err)
	}
	var fresh TestPerson
	if _, err := m.Apply(context.Background(), dto, &fresh, spec); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if fresh.Name != src.Name {
		t.Errorf("Name: got %q, want %q", fresh.Name, src.Name)
	}
	if fresh.Email == nil || *fresh.Email != *src.Email {
		t.Errorf("Email: got %v, want %q", fresh.Email, *src.Email)
	}
	if fresh.Age != src.Age {
		t.Errorf("Age: got %d, want %d", fresh.Age, src.Age)
	}
	if fresh.Nickname != src.Nickname {
		t.Errorf("Nickname: got %q, want %q", fresh.Nickname, src.Nickname)
	}
	if fresh.Account != src.Account {
		t.Errorf("Account: got %q, want %q", fresh.Account, src.Account)
	}
	if fresh.ID != src.ID {
		t.Errorf("ID: got %q, want %q", fresh.ID, src.ID)
	}
}

func TestApply_NullVersusAbsent(t *testing.T) {
	m, reg := newTestMapper(t)
	spec := mustResolve(t, reg, selection.Request{
		Fields: map[meta.TypeID][]string{"test-person": {"name", "email"}},
	})

	p := sampleGraph()
	dto := &TestPersonDTO{ID: "p1", Name: nil, Email: ptr("new@example.com"), Nickname: "ignored"}
	if _, err := m.Apply(context.Background(), dto, p, spec); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if p.Name != "" {
		t.Errorf("selected nil must clear: got %q", p.Name)
	}
	if p.Email == nil || *p.Email != "new@example.com" {
		t.Errorf("Email: got %v", p.Email)
	}
	if p.Nickname != "countess" || p.Age != 36 {
		t.Errorf("unselected fields modified: nickname %q, age %d", p.Nickname, p.Age)
	}
	if p.Department == nil {
		t.Error("relation outside the include paths was touched")
	}
}

func TestApply_SkipsReadOnly(t *testing.T) {
	type entity struct {
		ID       string `dto:"id"`
		FullName string
	}
	m, reg := newTestMapper(t)
	spec := mustResolve(t, reg, selection.Request{
		Fields: map[meta.TypeID][]string{"test-person": {"fullName"}},
	})

	e := &entity{ID: "p1", FullName: "kept"}
	if _, err := m.Apply(context.Background(), &TestPersonDTO{FullName: "changed"}, e, spec); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if e.FullName != "kept" {
		t.Errorf("read-only field written: got %q", e.FullName)
	}
}

func TestApply_ToEntityResolver(t *testing.T) {
	m, reg := newTestMapper(t)
	table := newTable(t, reg)
	resolve.MustRegister[TestPersonDTO](table, "nickname", resolve.ToEntity,
		resolve.FromDTO(func(_ context.Context, d *TestPersonDTO) (any, error) {
			return strings.ToLower(d.Nickname), nil
		}))
	m = New(WithRegistry(reg), WithResolvers(table))

	spec := mustResolve(t, reg, selection.Request{
		Fields: map[meta.TypeID][]string{"test-person": {"nickname"}},
	})
	p := &TestPerson{ID: "p1"}
	if _, err := m.Apply(context.Background(), TestPersonDTO{Nickname: "LOUD"}, p, spec); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if p.Nickname != "loud" {
		t.Errorf("Nickname: got %q, want %q", p.Nickname, "loud")
	}
}

func TestApply_SingularRelation(t *testing.T) {
	d2 := &TestDepartment{ID: "d2", Title: "Ops"}
	loader := &fakeLoader{entities: map[string]any{"TestDepartment/d2": d2}}
	m, reg := newTestMapper(t, WithLoader(loader))
	spec := mustResolve(t, reg, selection.Request{Include: []string{"department"}})

	p := sampleGraph()
	dto := &TestPersonDTO{Name: ptr("Ada"), Department: &TestDepartmentDTO{ID: "d2"}}
	if _, err := m.Apply(context.Background(), dto, p, spec); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if p.Department != d2 {
		t.Errorf("Department: got %+v, want loaded d2", p.Department)
	}

	dto.Department = nil
	if _, err := m.Apply(context.Background(), dto, p, spec); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if p.Department != nil {
		t.Errorf("explicit nil must clear the relation, got %+v", p.Department)
	}
	if loader.calls != 1 {
		t.Errorf("loader calls: got %d, want 1", loader.calls)
	}
}

type testAssignment struct {
	ID    string `dto:"id"`
	Owner *TestPerson
}

type testAssignmentDTO struct {
	ID    string        `dto:"id,type:assignment"`
	Owner TestPersonDTO `dto:"owner,rel"`
}

func TestApply_ValueRelationZeroIDClears(t *testing.T) {
	p2 := &TestPerson{ID: "p2"}
	loader := &fakeLoader{entities: map[string]any{"TestPerson/p2": p2}}
	m, reg := newTestMapper(t, WithLoader(loader))
	spec, err := selection.Resolve(reg, reflect.TypeOf((*testAssignmentDTO)(nil)).Elem(), selection.Request{Include: []string{"owner"}})
	if err != nil {
		t.Fatalf("resolve selection: %v", err)
	}

	a := &testAssignment{ID: "a1", Owner: &TestPerson{ID: "p1"}}
	if _, err := m.Apply(context.Background(), &testAssignmentDTO{ID: "a1"}, a, spec); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if a.Owner != nil {
		t.Errorf("zero identifier must clear the relation, got %+v", a.Owner)
	}
	if loader.calls != 0 {
		t.Errorf("loader calls: got %d, want 0", loader.calls)
	}

	dto := &testAssignmentDTO{ID: "a1", Owner: TestPersonDTO{ID: "p2"}}
	if _, err := m.Apply(context.Background(), dto, a, spec); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if a.Owner != p2 {
		t.Errorf("Owner: got %+v, want loaded p2", a.Owner)
	}
}

func TestApply_RelationNotIncluded(t *testing.T) {
	loader := &fakeLoader{}
	m, reg := newTestMapper(t, WithLoader(loader))
	spec := mustResolve(t, reg, selection.Request{})

	p := sampleGraph()
	dto := &TestPersonDTO{Name: ptr("Ada")}
	changes, err := m.Apply(context.Background(), dto, p, spec)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if p.Department == nil || p.Department.ID != "d1" {
		t.Errorf("relation outside include paths changed: %+v", p.Department)
	}
	if _, ok := changes.Collection("tasks"); ok {
		t.Error("collection outside include paths reported")
	}
	if loader.calls != 0 {
		t.Errorf("loader calls: got %d, want 0", loader.calls)
	}
}

func TestApply_CollectionChanges(t *testing.T) {
	m, reg := newTestMapper(t)
	spec := mustResolve(t, reg, selection.Request{Include: []string{"tasks"}})

	p := sampleGraph()
	dto := &TestPersonDTO{Tasks: []*TestTaskDTO{{UUID: "t2"}, nil, {UUID: "t3"}}}
	changes, err := m.Apply(context.Background(), dto, p, spec)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	cc, ok := changes.Collection("tasks")
	if !ok {
		t.Fatal("expected tasks change")
	}
	if cc.ChildType != reflect.TypeOf((*TestTask)(nil)).Elem() {
		t.Errorf("ChildType: got %v", cc.ChildType)
	}
	if !reflect.DeepEqual(cc.IDs, []any{"t2", "t3"}) {
		t.Errorf("IDs: got %v, want [t2 t3]", cc.IDs)
	}
	// Apply does not touch collections itself.
	if len(p.Tasks) != 2 || p.Tasks[0].UUID != "t1" {
		t.Errorf("collection modified by Apply: %v", p.Tasks)
	}

	dto.Tasks = nil
	changes, err = m.Apply(context.Background(), dto, p, spec)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	cc, ok = changes.Collection("tasks")
	if !ok {
		t.Fatal("an empty collection is a change, not an absence")
	}
	if cc.IDs == nil || len(cc.IDs) != 0 {
		t.Errorf("IDs: got %v, want empty", cc.IDs)
	}
}

func TestApply_LoaderErrorPropagates(t *testing.T) {
	loader := &fakeLoader{entities: map[string]any{}}
	m, reg := newTestMapper(t, WithLoader(loader))
	spec := mustResolve(t, reg, selection.Request{Include: []string{"department"}})

	dto := &TestPersonDTO{Department: &TestDepartmentDTO{ID: "missing"}}
	_, err := m.Apply(context.Background(), dto, &TestPerson{}, spec)
	var nf *store.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.ID != "missing" {
		t.Errorf("NotFoundError.ID: got %v", nf.ID)
	}
}

func TestApply_NoLoader(t *testing.T) {
	m, reg := newTestMapper(t)
	spec := mustResolve(t, reg, selection.Request{Include: []string{"department"}})

	dto := &TestPersonDTO{Department: &TestDepartmentDTO{ID: "d1"}}
	_, err := m.Apply(context.Background(), dto, &TestPerson{}, spec)
	if !errors.Is(err, ErrNoLoader) {
		t.Errorf("expected ErrNoLoader, got %v", err)
	}
}

func TestApply_InvalidTarget(t *testing.T) {
	m, reg := newTestMapper(t)
	spec := mustResolve(t, reg, selection.Request{})

	var te *TargetError
	if _, err := m.Apply(context.Background(), &TestPersonDTO{}, TestPerson{}, spec); !errors.As(err, &te) {
		t.Errorf("value target: expected TargetError, got %v", err)
	}
	var nilPerson *TestPerson
	if _, err := m.Apply(context.Background(), &TestPersonDTO{}, nilPerson, spec); !errors.As(err, &te) {
		t.Errorf("nil target: expected TargetError, got %v", err)
	}
	if _, err := m.Apply(context.Background(), nil, &TestPerson{}, spec); err == nil {
		t.Error("nil dto: expected error")
	}
}
