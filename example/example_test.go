package example

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CaliLuke/go-dtograph/meta"
	"github.com/CaliLuke/go-dtograph/query"
	"github.com/CaliLuke/go-dtograph/selection"
	"github.com/CaliLuke/go-dtograph/store"
	"github.com/CaliLuke/go-dtograph/store/sqlstore"
	"github.com/CaliLuke/go-dtograph/wire"
)

type fixture struct {
	reg   *meta.Registry
	store *sqlstore.Store
	svc   *Services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	reg := meta.NewRegistry()
	s, err := OpenStore(ctx, sqlstore.DriverSQLite, ":memory:", sqlstore.WithRegistry(reg))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, Seed(ctx, s))

	svc, err := NewServices(reg, s, nil)
	require.NoError(t, err)
	return &fixture{reg: reg, store: s, svc: svc}
}

func (f *fixture) spec(t *testing.T, root any, raw string) *selection.Spec {
	t.Helper()
	spec, err := query.Resolve(f.reg, reflect.TypeOf(root), raw)
	require.NoError(t, err)
	return spec
}

func ptr[T any](v T) *T { return &v }

func TestGetDepartment_IncludesMembersAndTasks(t *testing.T) {
	f := newFixture(t)
	spec := f.spec(t, DepartmentDTO{}, "include=members.tasks")

	dept, err := f.svc.Departments.Get(context.Background(), "eng", spec)
	require.NoError(t, err)

	assert.Equal(t, "Engineering", *dept.Name)
	require.NotNil(t, dept.Head)
	assert.Equal(t, "ada", dept.Head.ID)
	assert.Nil(t, dept.Head.FirstName, "head is a link, not an included resource")

	require.Len(t, dept.Members, 2)
	ada, grace := dept.Members[0], dept.Members[1]
	assert.Equal(t, "ada", ada.ID)
	assert.Equal(t, "grace", grace.ID)
	assert.Equal(t, "Ada Lovelace", *ada.FullName)
	assert.Equal(t, "acct-100", *ada.Account)
	require.Len(t, ada.Tasks, 2)
	assert.Equal(t, "t1", ada.Tasks[0].ID)
	assert.True(t, *ada.Tasks[0].Done)
	require.Len(t, grace.Tasks, 1)
	assert.Nil(t, grace.Account)
}

func TestProject_DepartmentDocument(t *testing.T) {
	f := newFixture(t)
	spec := f.spec(t, DepartmentDTO{}, "fields[person]=fullName&include=members.tasks")

	dept, err := f.svc.Departments.Get(context.Background(), "eng", spec)
	require.NoError(t, err)
	doc, err := wire.Project(f.reg, dept, spec)
	require.NoError(t, err)

	// ada, grace and their three tasks.
	assert.Len(t, doc.Included, 5)
	for _, r := range doc.Included {
		if r.Type == "person" {
			assert.Equal(t, []string{"fullName"}, keys(r.Attributes))
		}
	}
}

func TestUpdatePerson_NormalizesEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	spec := f.spec(t, PersonDTO{}, "fields[person]=email")

	_, err := f.svc.People.Update(ctx, "ken", &PersonDTO{Email: ptr("  Ken@Example.COM ")}, spec)
	require.NoError(t, err)

	got, err := f.svc.People.Get(ctx, "ken", f.spec(t, PersonDTO{}, ""))
	require.NoError(t, err)
	assert.Equal(t, "ken@example.com", *got.Email)
	assert.Equal(t, "Ken", *got.FirstName, "unselected fields are untouched")
}

func TestUpdateDepartment_ReconcilesMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	spec := f.spec(t, DepartmentDTO{}, "fields[department]=members&include=members")

	in := &DepartmentDTO{Members: []*PersonDTO{{ID: "grace"}, {ID: "ken"}}}
	out, err := f.svc.Departments.Update(ctx, "eng", in, spec)
	require.NoError(t, err)
	require.Len(t, out.Members, 2)

	dept, err := f.svc.Departments.Get(ctx, "eng", f.spec(t, DepartmentDTO{}, "include=members"))
	require.NoError(t, err)
	assert.Equal(t, "Engineering", *dept.Name)
	assert.Equal(t, []string{"grace", "ken"}, personIDs(dept.Members))

	ada, err := f.svc.People.Get(ctx, "ada", f.spec(t, PersonDTO{}, ""))
	require.NoError(t, err)
	assert.Nil(t, ada.Department, "removed member is detached")
}

func TestUpdatePerson_DeletesRemovedTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	spec := f.spec(t, PersonDTO{}, "fields[person]=tasks&include=tasks")

	_, err := f.svc.People.Update(ctx, "ada", &PersonDTO{Tasks: []*TaskDTO{{ID: "t2"}}}, spec)
	require.NoError(t, err)

	_, err = f.svc.Tasks.Get(ctx, "t1", f.spec(t, TaskDTO{}, ""))
	var nf *store.NotFoundError
	require.True(t, errors.As(err, &nf), "got %v", err)

	task, err := f.svc.Tasks.Get(ctx, "t2", f.spec(t, TaskDTO{}, ""))
	require.NoError(t, err)
	require.NotNil(t, task.Owner)
	assert.Equal(t, "ada", task.Owner.ID)
}

func TestCreateTask_LinksOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	spec := f.spec(t, TaskDTO{}, "include=owner")

	created, err := f.svc.Tasks.Create(ctx, &TaskDTO{Title: ptr("Unix"), Owner: &PersonDTO{ID: "ken"}}, spec)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := f.svc.Tasks.Get(ctx, created.ID, spec)
	require.NoError(t, err)
	assert.Equal(t, "Unix", *got.Title)
	require.NotNil(t, got.Owner)
	assert.Equal(t, "Ken Thompson", *got.Owner.FullName)
}

func TestResolvers_Frozen(t *testing.T) {
	table, err := Resolvers(meta.NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())
	assert.Error(t, table.Add("person", "lastName", 0, nil))
}

func personIDs(ps []*PersonDTO) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
