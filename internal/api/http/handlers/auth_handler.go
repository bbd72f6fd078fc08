package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/deskflow/service-desk/internal/api/dto"
	"github.com/deskflow/service-desk/internal/auth"
	"github.com/deskflow/service-desk/internal/service"
)

// AuthHandler exposes registration, login and session endpoints for
// customers and agents.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// RegisterCustomer handles POST /auth/customers/register.
func (h *AuthHandler) RegisterCustomer(c *fiber.Ctx) error {
	var req dto.CustomerRegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	session, err := h.auth.RegisterCustomer(c.UserContext(), service.CustomerRegistration{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": sessionResponse(session)})
}

// LoginCustomer handles POST /auth/customers/login.
func (h *AuthHandler) LoginCustomer(c *fiber.Ctx) error {
	var req dto.CustomerLoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	session, err := h.auth.LoginCustomer(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": sessionResponse(session)})
}

// RegisterAgent handles POST /auth/agents/register.
func (h *AuthHandler) RegisterAgent(c *fiber.Ctx) error {
	var req dto.AgentRegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	session, err := h.auth.RegisterAgent(c.UserContext(), service.AgentRegistration{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": sessionResponse(session)})
}

// LoginAgent handles POST /auth/agents/login with a username or email.
func (h *AuthHandler) LoginAgent(c *fiber.Ctx) error {
	var req dto.AgentLoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	session, err := h.auth.LoginAgent(c.UserContext(), req.Login, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": sessionResponse(session)})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	claims, _ := auth.ClaimsFromContext(c)
	if err := h.auth.Logout(c.UserContext(), claims); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ChangePassword handles POST /auth/password/change.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	var req dto.PasswordChangeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.auth.ChangePassword(c.UserContext(), identity, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"id":       identity.ID,
		"role":     identity.Role,
		"email":    identity.Email,
		"username": identity.Username,
		"name":     identity.Name,
	}})
}

// UpdateProfile handles PATCH /auth/me. Omitted fields stay unchanged.
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	var req dto.ProfileUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	person, err := h.auth.UpdateProfile(c.UserContext(), identity, service.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": personResponse(person)})
}

func sessionResponse(session *service.Session) dto.SessionResponse {
	return dto.SessionResponse{
		Person: personResponse(session.Person),
		Auth:   dto.AuthResponse{Token: session.Token, ExpiresAt: session.ExpiresAt},
	}
}
