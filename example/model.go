// Package example is a small staffing domain wired end to end: departments
// with members, people with tasks, a SQLite schema, resolvers and the
// reconcilers of both collections.
package example

// Department is a persistent department.
type Department struct {
	ID      string    `db:"id" dto:"id"`
	Name    string    `db:"name"`
	HeadID  *string   `db:"head_id"`
	Head    *Person   `db:"-"`
	Members []*Person `db:"-"`
}

// Person is a persistent member of staff.
type Person struct {
	ID           string      `db:"id" dto:"id"`
	FirstName    string      `db:"first_name"`
	LastName     string      `db:"last_name"`
	Email        *string     `db:"email"`
	DepartmentID *string     `db:"department_id"`
	Department   *Department `db:"-"`
	Tasks        []*Task     `db:"-"`
	Account      *string     `db:"account_ref"`
}

// Task is a unit of work owned by one person.
type Task struct {
	ID      string  `db:"id" dto:"id"`
	Title   string  `db:"title"`
	Done    bool    `db:"done"`
	OwnerID *string `db:"owner_id"`
	Owner   *Person `db:"-"`
}

// DepartmentDTO is the wire form of a Department.
type DepartmentDTO struct {
	ID      string       `dto:"id,type:department"`
	Name    *string      `dto:"name"`
	Head    *PersonDTO   `dto:"head,rel"`
	Members []*PersonDTO `dto:"members,rel"`
}

// PersonDTO is the wire form of a Person. FullName is computed; Account
// references a billing account owned by another system.
type PersonDTO struct {
	ID         string         `dto:"id,type:person"`
	FirstName  *string        `dto:"firstName"`
	LastName   *string        `dto:"lastName"`
	FullName   *string        `dto:"fullName,readonly"`
	Email      *string        `dto:"email"`
	Department *DepartmentDTO `dto:"department,rel"`
	Tasks      []*TaskDTO     `dto:"tasks,rel"`
	Account    *string        `dto:"account,external=BillingAccount"`
}

// TaskDTO is the wire form of a Task.
type TaskDTO struct {
	ID    string     `dto:"id,type:task"`
	Title *string    `dto:"title"`
	Done  *bool      `dto:"done"`
	Owner *PersonDTO `dto:"owner,rel"`
}
