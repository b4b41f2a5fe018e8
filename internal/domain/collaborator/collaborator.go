package collaborator

import "time"

type Field string

const (
	FieldName  Field = "name"
	FieldEmail Field = "email"
	FieldCPF   Field = "cpf"
	FieldCity  Field = "city"
	FieldState Field = "state"
)

// CanonicalFields is the column order used for header-less files.
var CanonicalFields = []Field{FieldName, FieldEmail, FieldCPF, FieldCity, FieldState}

type Collaborator struct {
	ID        int64
	Name      string
	Email     string
	CPF       string
	City      string
	State     string
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// User is the manager that owns imports and collaborators.
type User struct {
	ID    string
	Name  string
	Email string
}
