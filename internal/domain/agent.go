package domain

import (
	"strings"
	"time"
)

// Agent models a support staff member that can be assigned tickets.
type Agent struct {
	ID           int64
	FirstName    string
	LastName     string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a *Agent) PersonID() int64 { return a.ID }

func (a *Agent) PersonRole() Role { return RoleAgent }

func (a *Agent) EmailAddress() string { return a.Email }

// DisplayName joins first and last name, falling back to the username.
func (a *Agent) DisplayName() string {
	name := strings.TrimSpace(a.FirstName + " " + a.LastName)
	if name == "" {
		return a.Username
	}
	return name
}

// Identity builds the caller identity used by engine operations.
func (a *Agent) Identity() Identity {
	return Identity{Role: RoleAgent, ID: a.ID, Email: a.Email, Username: a.Username, Name: a.DisplayName()}
}

func (*Agent) isPerson() {}
