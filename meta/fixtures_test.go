package meta

// --- Test fixtures ---

type TestPersonDTO struct {
	ID         string             `dto:"id"`
	Name       *string            `dto:"name"`
	Email      string             `dto:"email"`
	Age        *int               `dto:"age"`
	FullName   string             `dto:"fullName,readonly"`
	Secret     string             `dto:"-"`
	Department *TestDepartmentDTO `dto:"department,rel"`
	Tasks      []*TestTaskDTO     `dto:"tasks,rel"`
	Account    *string            `dto:"account,external=BillingAccount"`
}

type TestDepartmentDTO struct {
	ID      string          `dto:"id,type:department"`
	Title   string          `dto:"title"`
	Head    *TestPersonDTO  `dto:"head,rel"`
	Members []TestPersonDTO `dto:"members,rel"`
}

type TestTaskDTO struct {
	UUID     string         `dto:"uuid,id"`
	Summary  string         `dto:"summary"`
	Assignee *TestPersonDTO `dto:"assignee,rel"`
}

type TestPerson struct {
	ID         string `dto:"id"`
	Name       string
	Email      string
	Age        int
	Department *TestDepartment
	internal   int
}

type TestDepartment struct {
	ID    string
	Title string
}
