package example

import (
	"go.uber.org/zap"

	"github.com/CaliLuke/go-dtograph/mapper"
	"github.com/CaliLuke/go-dtograph/meta"
	"github.com/CaliLuke/go-dtograph/reconcile"
	"github.com/CaliLuke/go-dtograph/service"
	"github.com/CaliLuke/go-dtograph/store"
)

// Services bundles the resources of the domain.
type Services struct {
	Mapper      *mapper.Mapper
	Departments *service.Resource[Department, DepartmentDTO]
	People      *service.Resource[Person, PersonDTO]
	Tasks       *service.Resource[Task, TaskDTO]
}

// NewServices wires the domain resources against backend.
func NewServices(reg *meta.Registry, backend store.Transactor, logger *zap.Logger) (*Services, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	resolvers, err := Resolvers(reg)
	if err != nil {
		return nil, err
	}
	m := mapper.New(
		mapper.WithRegistry(reg),
		mapper.WithResolvers(resolvers),
		mapper.WithLogger(logger.Named("mapper")),
	)

	svc := &Services{Mapper: m}
	svc.Departments, err = service.NewResource[Department, DepartmentDTO](m, backend,
		service.WithCollection[Department, DepartmentDTO]("members", departmentMembers(logger)),
		service.WithLogger[Department, DepartmentDTO](logger.Named("departments")),
	)
	if err != nil {
		return nil, err
	}
	svc.People, err = service.NewResource[Person, PersonDTO](m, backend,
		service.WithCollection[Person, PersonDTO]("tasks", personTasks(logger)),
		service.WithLogger[Person, PersonDTO](logger.Named("people")),
	)
	if err != nil {
		return nil, err
	}
	svc.Tasks, err = service.NewResource[Task, TaskDTO](m, backend,
		service.WithLogger[Task, TaskDTO](logger.Named("tasks")),
	)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// departmentMembers detaches people removed from a department; they stay
// on file without one.
func departmentMembers(logger *zap.Logger) service.CollectionFunc[Department] {
	return func(s store.Store) reconcile.Reconciler[Department] {
		return &reconcile.OneToMany[Department, Person]{
			Child:       "person",
			ParentField: "department",
			Link:        func(p *Person, d *Department) { p.Department = d },
			Children:    func(d *Department) []*Person { return d.Members },
			Set:         func(d *Department, ps []*Person) { d.Members = ps },
			Current:     reconcile.CurrentFrom[Department, Person](s),
			Equal:       func(a, b *Person) bool { return a.ID == b.ID },
			Orphan:      reconcile.Detach(s, func(p *Person) { p.Department = nil }),
			Logger:      logger.Named("members"),
		}
	}
}

// personTasks deletes tasks removed from their owner.
func personTasks(logger *zap.Logger) service.CollectionFunc[Person] {
	return func(s store.Store) reconcile.Reconciler[Person] {
		return &reconcile.OneToMany[Person, Task]{
			Child:       "task",
			ParentField: "owner",
			Link:        func(t *Task, p *Person) { t.Owner = p },
			Children:    func(p *Person) []*Task { return p.Tasks },
			Set:         func(p *Person, ts []*Task) { p.Tasks = ts },
			Current:     reconcile.CurrentFrom[Person, Task](s),
			Equal:       func(a, b *Task) bool { return a.ID == b.ID },
			Orphan:      reconcile.Delete[Task](s),
			Logger:      logger.Named("tasks"),
		}
	}
}
