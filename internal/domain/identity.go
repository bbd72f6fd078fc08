package domain

// Role differentiates the two kinds of registered people.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAgent    Role = "AGENT"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAgent
}

// Person is the closed set {*Customer, *Agent}.
type Person interface {
	PersonID() int64
	PersonRole() Role
	EmailAddress() string
	DisplayName() string
	Identity() Identity
	isPerson()
}

// Identity describes who is calling. It replaces a process-wide session and
// is passed explicitly into every engine operation.
type Identity struct {
	Role     Role
	ID       int64
	Email    string
	Username string
	Name     string
}

func (i Identity) IsAgent() bool { return i.Role == RoleAgent }

func (i Identity) IsCustomer() bool { return i.Role == RoleCustomer }

// SenderType maps the caller role to the message sender tag.
func (i Identity) SenderType() SenderType {
	if i.IsAgent() {
		return SenderAgent
	}
	return SenderCustomer
}
