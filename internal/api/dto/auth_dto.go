package dto

import "time"

// CustomerRegisterRequest payload for new customers.
type CustomerRegisterRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// AgentRegisterRequest payload for new agents.
type AgentRegisterRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// CustomerLoginRequest payload for login.
type CustomerLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AgentLoginRequest accepts a username or an email in Login.
type AgentLoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// PasswordChangeRequest payload for authenticated password changes.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ProfileUpdateRequest edits the caller's profile. Nil fields are kept.
type ProfileUpdateRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email"`
}

// PersonResponse describes a registered customer or agent.
type PersonResponse struct {
	ID        int64  `json:"id"`
	Role      string `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionResponse pairs the person with the issued token.
type SessionResponse struct {
	Person PersonResponse `json:"person"`
	Auth   AuthResponse   `json:"auth"`
}
