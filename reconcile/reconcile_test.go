package reconcile

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"
)

type TestProject struct {
	ID    string
	Tasks []*TestTask
}

type TestTask struct {
	UUID    string
	Project *TestProject
}

type recorder struct {
	orphaned []string
	loads    int
}

// newTasks builds the project/task association. persisted holds the
// children a store would return for the project.
func newTasks(rec *recorder, persisted []*TestTask) *OneToMany[TestProject, TestTask] {
	return &OneToMany[TestProject, TestTask]{
		Child:       "task",
		ParentField: "project",
		Link:        func(c *TestTask, p *TestProject) { c.Project = p },
		Children:    func(p *TestProject) []*TestTask { return p.Tasks },
		Set:         func(p *TestProject, cs []*TestTask) { p.Tasks = cs },
		Current: func(_ context.Context, field string, _ *TestProject) ([]*TestTask, error) {
			rec.loads++
			if field != "project" {
				return nil, errors.New("unexpected parent field " + field)
			}
			return persisted, nil
		},
		Equal: func(a, b *TestTask) bool { return a.UUID == b.UUID },
		Orphan: func(_ context.Context, c *TestTask) error {
			rec.orphaned = append(rec.orphaned, c.UUID)
			c.Project = nil
			return nil
		},
	}
}

func TestOnUpdate_Scenario(t *testing.T) {
	p := &TestProject{ID: "p"}
	a := &TestTask{UUID: "A", Project: p}
	b := &TestTask{UUID: "B", Project: p}
	rec := &recorder{}
	r := newTasks(rec, []*TestTask{a, b})

	// Incoming children are materialized independently of the persisted ones.
	incomingB := &TestTask{UUID: "B", Project: p}
	c := &TestTask{UUID: "C"}
	p.Tasks = []*TestTask{incomingB, c}

	if err := r.OnUpdate(context.Background(), p); err != nil {
		t.Fatalf("OnUpdate: %v", err)
	}

	if !reflect.DeepEqual(rec.orphaned, []string{"A"}) {
		t.Errorf("orphaned: got %v, want [A]", rec.orphaned)
	}
	if incomingB.Project != p {
		t.Error("B must stay linked to the parent")
	}
	if c.Project != p {
		t.Error("C must be linked to the parent")
	}
	if a.Project != nil {
		t.Error("A must be detached")
	}
	if rec.loads != 1 {
		t.Errorf("current loads: got %d, want 1", rec.loads)
	}
}

func TestOnUpdate_EmptyIncoming(t *testing.T) {
	p := &TestProject{ID: "p"}
	rec := &recorder{}
	r := newTasks(rec, []*TestTask{{UUID: "A"}, {UUID: "B"}})

	if err := r.OnUpdate(context.Background(), p); err != nil {
		t.Fatalf("OnUpdate: %v", err)
	}
	sort.Strings(rec.orphaned)
	if !reflect.DeepEqual(rec.orphaned, []string{"A", "B"}) {
		t.Errorf("orphaned: got %v, want [A B]", rec.orphaned)
	}
}

func TestOnCreate_LinksAll(t *testing.T) {
	p := &TestProject{ID: "p", Tasks: []*TestTask{{UUID: "A"}, {UUID: "B"}}}
	rec := &recorder{}
	r := newTasks(rec, nil)

	if err := r.OnCreate(context.Background(), p); err != nil {
		t.Fatalf("OnCreate: %v", err)
	}
	for _, c := range p.Tasks {
		if c.Project != p {
			t.Errorf("task %s not linked", c.UUID)
		}
	}
	if rec.loads != 0 || len(rec.orphaned) != 0 {
		t.Errorf("create must not diff: loads %d, orphaned %v", rec.loads, rec.orphaned)
	}
}

func TestOnDelete_OrphansEachChildOnce(t *testing.T) {
	p := &TestProject{ID: "p"}
	p.Tasks = []*TestTask{{UUID: "A", Project: p}, {UUID: "B", Project: p}}
	rec := &recorder{}
	r := newTasks(rec, nil)

	if err := r.OnDelete(context.Background(), p); err != nil {
		t.Fatalf("OnDelete: %v", err)
	}
	sort.Strings(rec.orphaned)
	if !reflect.DeepEqual(rec.orphaned, []string{"A", "B"}) {
		t.Errorf("orphaned: got %v, want [A B]", rec.orphaned)
	}
	if rec.loads != 0 {
		t.Errorf("delete must not load current children, got %d loads", rec.loads)
	}
}

func TestOnUpdate_DuplicateIncoming(t *testing.T) {
	p := &TestProject{ID: "p", Tasks: []*TestTask{{UUID: "A"}, {UUID: "B"}, {UUID: "A"}}}
	rec := &recorder{}
	r := newTasks(rec, nil)

	err := r.OnUpdate(context.Background(), p)
	var dup *DuplicateIncomingError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateIncomingError, got %v", err)
	}
	if dup.First != 0 || dup.Second != 2 {
		t.Errorf("duplicate indices: got %d,%d, want 0,2", dup.First, dup.Second)
	}
	if rec.loads != 0 {
		t.Error("no storage access expected on a rejected list")
	}
}

func TestOnUpdate_Errors(t *testing.T) {
	p := &TestProject{ID: "p"}
	loadErr := errors.New("db down")
	rec := &recorder{}
	r := newTasks(rec, nil)
	r.Current = func(context.Context, string, *TestProject) ([]*TestTask, error) { return nil, loadErr }
	if err := r.OnUpdate(context.Background(), p); !errors.Is(err, loadErr) {
		t.Errorf("load error: got %v", err)
	}

	orphanErr := errors.New("locked")
	r = newTasks(rec, []*TestTask{{UUID: "A"}})
	r.Orphan = func(context.Context, *TestTask) error { return orphanErr }
	if err := r.OnUpdate(context.Background(), p); !errors.Is(err, orphanErr) {
		t.Errorf("orphan error: got %v", err)
	}
}

func TestValidate(t *testing.T) {
	r := newTasks(&recorder{}, nil)
	r.Equal = nil
	err := r.OnCreate(context.Background(), &TestProject{})
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Field != "Equal" {
		t.Errorf("expected ConfigError for Equal, got %v", err)
	}
}

func TestReplaceAndLinked(t *testing.T) {
	var rc Reconciler[TestProject] = newTasks(&recorder{}, nil)
	p := &TestProject{ID: "p"}
	a := &TestTask{UUID: "A"}

	if err := rc.Replace(p, []any{a}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if len(p.Tasks) != 1 || p.Tasks[0] != a {
		t.Errorf("Tasks: got %v", p.Tasks)
	}
	if linked := rc.Linked(p); len(linked) != 1 || linked[0] != any(a) {
		t.Errorf("Linked: got %v", linked)
	}
	if err := rc.Replace(p, []any{"not a task"}); err == nil {
		t.Error("expected type error")
	}
	if rc.ChildType() != reflect.TypeOf((*TestTask)(nil)).Elem() {
		t.Errorf("ChildType: got %v", rc.ChildType())
	}
}

func TestLoad(t *testing.T) {
	p := &TestProject{ID: "p"}
	rec := &recorder{}
	r := newTasks(rec, []*TestTask{{UUID: "A"}, {UUID: "B"}})

	if err := r.Load(context.Background(), p); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(p.Tasks) != 2 {
		t.Fatalf("Tasks: got %d, want 2", len(p.Tasks))
	}
	if err := r.OnDelete(context.Background(), p); err != nil {
		t.Fatalf("OnDelete: %v", err)
	}
	sort.Strings(rec.orphaned)
	if !reflect.DeepEqual(rec.orphaned, []string{"A", "B"}) {
		t.Errorf("orphaned: got %v, want [A B]", rec.orphaned)
	}
}
