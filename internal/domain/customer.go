package domain

import (
	"strings"
	"time"
)

// Customer is an end-user who files tickets. The email is the login identity.
type Customer struct {
	ID           int64
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (c *Customer) PersonID() int64 { return c.ID }

func (c *Customer) PersonRole() Role { return RoleCustomer }

func (c *Customer) EmailAddress() string { return c.Email }

// DisplayName joins first and last name.
func (c *Customer) DisplayName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Identity builds the caller identity used by engine operations.
func (c *Customer) Identity() Identity {
	return Identity{Role: RoleCustomer, ID: c.ID, Email: c.Email, Name: c.DisplayName()}
}

func (*Customer) isPerson() {}
