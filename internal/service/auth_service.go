package service

import (
	"context"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/deskflow/service-desk/internal/auth"
	"github.com/deskflow/service-desk/internal/config"
	"github.com/deskflow/service-desk/internal/domain"
	apperrors "github.com/deskflow/service-desk/pkg/util/errorutil"
)

// Session is the result of a successful registration or login.
type Session struct {
	Person    domain.Person
	Token     string
	ExpiresAt time.Time
}

// CustomerRegistration carries sign-up fields for a customer.
type CustomerRegistration struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// AgentRegistration carries sign-up fields for an agent.
type AgentRegistration struct {
	FirstName string
	LastName  string
	Username  string
	Email     string
	Password  string
}

// ProfileUpdate carries the editable profile fields. Nil fields are left
// unchanged.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
}

// AuthService coordinates registration and login flows.
type AuthService struct {
	directory   *Directory
	tokenMgr    *auth.TokenManager
	revocations auth.RevocationStore
	bcryptCost  int
}

// AuthDependencies encapsulates collaborators of the auth service.
type AuthDependencies struct {
	Directory   *Directory
	Revocations auth.RevocationStore
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	revocations := deps.Revocations
	if revocations == nil {
		revocations = auth.NewMemoryRevocationStore()
	}
	return &AuthService{
		directory:   deps.Directory,
		tokenMgr:    auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		revocations: revocations,
		bcryptCost:  cfg.BcryptCost,
	}
}

// RegisterCustomer creates a customer account and signs it in.
func (s *AuthService) RegisterCustomer(ctx context.Context, input CustomerRegistration) (*Session, error) {
	input.FirstName = formatName(input.FirstName)
	input.LastName = formatName(input.LastName)
	input.Email = NormalizeEmail(input.Email)

	problems := validateCredentials(input.Email, input.Password)
	addRequired(problems, map[string]string{"first_name": input.FirstName, "last_name": input.LastName})
	if len(problems) > 0 {
		return nil, apperrors.NewValidationError("invalid registration", problems)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	customer := &domain.Customer{
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		PasswordHash: hash,
	}
	if _, err := s.directory.Add(ctx, customer); err != nil {
		return nil, err
	}
	return s.issue(customer)
}

// RegisterAgent creates an agent account and signs it in.
func (s *AuthService) RegisterAgent(ctx context.Context, input AgentRegistration) (*Session, error) {
	input.FirstName = formatName(input.FirstName)
	input.LastName = formatName(input.LastName)
	input.Username = strings.TrimSpace(input.Username)
	input.Email = NormalizeEmail(input.Email)

	problems := validateCredentials(input.Email, input.Password)
	addRequired(problems, map[string]string{
		"first_name": input.FirstName,
		"last_name":  input.LastName,
		"username":   input.Username,
	})
	if strings.Contains(input.Username, "@") {
		problems["username"] = "must not contain @"
	}
	if len(problems) > 0 {
		return nil, apperrors.NewValidationError("invalid registration", problems)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	agent := &domain.Agent{
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
	}
	if _, err := s.directory.Add(ctx, agent); err != nil {
		return nil, err
	}
	return s.issue(agent)
}

// LoginCustomer authenticates a customer by email.
func (s *AuthService) LoginCustomer(ctx context.Context, email, password string) (*Session, error) {
	customer, err := s.directory.FindCustomerByEmail(ctx, email)
	if err != nil {
		return nil, credentialError(err)
	}
	if err := auth.ComparePassword(customer.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	return s.issue(customer)
}

// LoginAgent authenticates an agent by username or email.
func (s *AuthService) LoginAgent(ctx context.Context, login, password string) (*Session, error) {
	var (
		agent *domain.Agent
		err   error
	)
	if strings.Contains(login, "@") {
		agent, err = s.directory.FindAgentByEmail(ctx, login)
	} else {
		agent, err = s.directory.FindByUsername(ctx, login)
	}
	if err != nil {
		return nil, credentialError(err)
	}
	if err := auth.ComparePassword(agent.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	return s.issue(agent)
}

// Logout revokes the presented token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAtTime()); err != nil {
		return apperrors.NewStoreError(err)
	}
	return nil
}

// ChangePassword verifies the current password before storing the new hash.
func (s *AuthService) ChangePassword(ctx context.Context, caller domain.Identity, currentPassword, newPassword string) error {
	if problems := auth.PasswordProblems(newPassword); len(problems) > 0 {
		return apperrors.NewValidationError("invalid password", map[string]any{"new_password": problems})
	}
	person, err := s.directory.FindByID(ctx, caller.Role, caller.ID)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	switch p := person.(type) {
	case *domain.Customer:
		if err := auth.ComparePassword(p.PasswordHash, currentPassword); err != nil {
			return apperrors.NewUnauthorized("invalid credentials")
		}
		p.PasswordHash = hash
	case *domain.Agent:
		if err := auth.ComparePassword(p.PasswordHash, currentPassword); err != nil {
			return apperrors.NewUnauthorized("invalid credentials")
		}
		p.PasswordHash = hash
	}
	return s.directory.Update(ctx, person)
}

// UpdateProfile edits the caller's names and email. A changed email must be
// free within the caller's pool.
func (s *AuthService) UpdateProfile(ctx context.Context, caller domain.Identity, update ProfileUpdate) (domain.Person, error) {
	problems := map[string]any{}
	if update.FirstName != nil {
		if *update.FirstName = formatName(*update.FirstName); *update.FirstName == "" {
			problems["first_name"] = "required"
		}
	}
	if update.LastName != nil {
		if *update.LastName = formatName(*update.LastName); *update.LastName == "" {
			problems["last_name"] = "required"
		}
	}
	if update.Email != nil {
		if *update.Email = NormalizeEmail(*update.Email); !auth.ValidEmail(*update.Email) {
			problems["email"] = "invalid email address"
		}
	}
	if len(problems) > 0 {
		return nil, apperrors.NewValidationError("invalid profile", problems)
	}

	person, err := s.directory.FindByID(ctx, caller.Role, caller.ID)
	if err != nil {
		return nil, err
	}
	switch p := person.(type) {
	case *domain.Customer:
		applyProfile(update, &p.FirstName, &p.LastName, &p.Email)
	case *domain.Agent:
		applyProfile(update, &p.FirstName, &p.LastName, &p.Email)
	}
	if err := s.directory.Update(ctx, person); err != nil {
		return nil, err
	}
	return person, nil
}

func applyProfile(update ProfileUpdate, firstName, lastName, email *string) {
	if update.FirstName != nil {
		*firstName = *update.FirstName
	}
	if update.LastName != nil {
		*lastName = *update.LastName
	}
	if update.Email != nil {
		*email = *update.Email
	}
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Revocations exposes the revocation store for middleware usage.
func (s *AuthService) Revocations() auth.RevocationStore {
	return s.revocations
}

func (s *AuthService) issue(person domain.Person) (*Session, error) {
	token, exp, err := s.tokenMgr.GenerateToken(person.PersonID(), person.PersonRole())
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Session{Person: person, Token: token, ExpiresAt: exp}, nil
}

func validateCredentials(email, password string) map[string]any {
	problems := map[string]any{}
	if !auth.ValidEmail(email) {
		problems["email"] = "invalid email address"
	}
	if list := auth.PasswordProblems(password); len(list) > 0 {
		problems["password"] = list
	}
	return problems
}

func addRequired(problems map[string]any, fields map[string]string) {
	for name, value := range fields {
		if value == "" {
			problems[name] = "required"
		}
	}
}

// formatName trims a name and title-cases each word, so "mARY jane" is
// stored as "Mary Jane".
func formatName(name string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(name))
}

// credentialError hides whether the account exists.
func credentialError(err error) error {
	if apperrors.HasCode(err, apperrors.CodeNotFound) {
		return apperrors.NewUnauthorized("invalid credentials")
	}
	return err
}
