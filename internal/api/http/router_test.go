package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strconv"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	httptransport "github.com/deskflow/service-desk/internal/api/http"
	"github.com/deskflow/service-desk/internal/api/http/handlers"
	"github.com/deskflow/service-desk/internal/auth"
	"github.com/deskflow/service-desk/internal/config"
	"github.com/deskflow/service-desk/internal/events"
	"github.com/deskflow/service-desk/internal/idgen"
	"github.com/deskflow/service-desk/internal/observability"
	"github.com/deskflow/service-desk/internal/repository/memory"
	"github.com/deskflow/service-desk/internal/service"
)

const password = "Sup3r!secret"

type envelope struct {
	Data     json.RawMessage `json:"data"`
	Warnings []struct {
		Code string `json:"code"`
	} `json:"warnings"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newApp(unassignedPolicy string) (*fiber.App, *observability.Metrics) {
	logger := zap.NewNop()
	store := memory.NewStore(idgen.NewSequence(0))
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(dispatcher, logger, metrics, config.NotificationConfig{}).RegisterHandlers()

	directory := service.NewDirectory(service.DirectoryDependencies{
		CustomerRepo: store.Customers(),
		AgentRepo:    store.Agents(),
	})
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:       store.Tickets(),
		MessageRepo:      store.Messages(),
		HistoryRepo:      store.History(),
		Directory:        directory,
		Policy:           service.NewLeastLoadedPolicy(rand.New(rand.NewPCG(3, 4))),
		Dispatcher:       dispatcher,
		Logger:           logger,
		UnassignedPolicy: unassignedPolicy,
	})
	authService := service.NewAuthService(config.AuthConfig{JWTSecret: "test", AccessTokenTTLMinutes: 5, BcryptCost: 4},
		service.AuthDependencies{Directory: directory})

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, 0)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler("service-desk", "test", nil, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(tickets),
		AgentTickets:   handlers.NewAgentTicketsHandler(tickets),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), authService.Revocations(), directory),
	})
	return app, metrics
}

var _ = Describe("REST API", func() {
	var app *fiber.App

	BeforeEach(func() {
		app, _ = newApp(config.UnassignedPolicyAllow)
	})

	do := func(method, path, token string, body any) (int, envelope) {
		var reader io.Reader
		if body != nil {
			raw, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			reader = bytes.NewReader(raw)
		}
		req := httptest.NewRequest(method, path, reader)
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		var env envelope
		raw, _ := io.ReadAll(resp.Body)
		if len(raw) > 0 {
			Expect(json.Unmarshal(raw, &env)).To(Succeed())
		}
		return resp.StatusCode, env
	}

	decode := func(env envelope, out any) {
		Expect(json.Unmarshal(env.Data, out)).To(Succeed())
	}

	registerCustomer := func(email string) string {
		status, env := do(http.MethodPost, "/auth/customers/register", "", map[string]string{
			"first_name": "Cara", "last_name": "Customer", "email": email, "password": password,
		})
		Expect(status).To(Equal(http.StatusCreated))
		var session struct {
			Auth struct {
				Token string `json:"token"`
			} `json:"auth"`
		}
		decode(env, &session)
		return session.Auth.Token
	}

	registerAgent := func(username string) (string, int64) {
		status, env := do(http.MethodPost, "/auth/agents/register", "", map[string]string{
			"first_name": "Ann", "last_name": "Agent", "username": username,
			"email": username + "@desk.io", "password": password,
		})
		Expect(status).To(Equal(http.StatusCreated))
		var session struct {
			Person struct {
				ID int64 `json:"id"`
			} `json:"person"`
			Auth struct {
				Token string `json:"token"`
			} `json:"auth"`
		}
		decode(env, &session)
		return session.Auth.Token, session.Person.ID
	}

	type ticketBody struct {
		ID       int64  `json:"id"`
		AgentID  *int64 `json:"agent_id"`
		Status   string `json:"status"`
		Priority int    `json:"priority"`
	}

	createTicket := func(token string) (ticketBody, envelope) {
		status, env := do(http.MethodPost, "/tickets", token, map[string]string{"topic": "VPN", "content": "down"})
		Expect(status).To(Equal(http.StatusCreated))
		var ticket ticketBody
		decode(env, &ticket)
		return ticket, env
	}

	It("serves liveness and metrics", func() {
		status, _ := do(http.MethodGet, "/health/live", "", nil)
		Expect(status).To(Equal(http.StatusOK))
		status, _ = do(http.MethodGet, "/health/ready", "", nil)
		Expect(status).To(Equal(http.StatusOK))
		status, env := do(http.MethodGet, "/health/metrics", "", nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(env.Data).NotTo(BeEmpty())
	})

	It("renders validation failures in the error envelope", func() {
		status, env := do(http.MethodPost, "/auth/customers/register", "", map[string]string{"email": "bad"})
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(env.Error.Code).To(Equal("VALIDATION_FAILED"))
		Expect(env.Error.Details).To(HaveKey("email"))
	})

	It("requires a token for ticket routes", func() {
		status, env := do(http.MethodGet, "/tickets", "", nil)
		Expect(status).To(Equal(http.StatusUnauthorized))
		Expect(env.Error.Code).To(Equal("UNAUTHORIZED"))
	})

	It("warns when a ticket is filed while no agent exists", func() {
		token := registerCustomer("cara@example.com")
		ticket, env := createTicket(token)
		Expect(ticket.AgentID).To(BeNil())
		Expect(ticket.Status).To(Equal("OPEN"))
		Expect(ticket.Priority).To(Equal(1))
		Expect(env.Warnings).To(HaveLen(1))
		Expect(env.Warnings[0].Code).To(Equal("NO_AGENTS_AVAILABLE"))
	})

	It("returns 409 NO_AGENTS_AVAILABLE under the reject policy", func() {
		app, _ = newApp(config.UnassignedPolicyReject)
		token := registerCustomer("cara@example.com")
		status, env := do(http.MethodPost, "/tickets", token, map[string]string{"topic": "VPN", "content": "down"})
		Expect(status).To(Equal(http.StatusConflict))
		Expect(env.Error.Code).To(Equal("NO_AGENTS_AVAILABLE"))
	})

	It("runs the full lifecycle between a customer and the assigned agent", func() {
		agentToken, agentID := registerAgent("ann")
		customerToken := registerCustomer("cara@example.com")

		ticket, env := createTicket(customerToken)
		Expect(env.Warnings).To(BeEmpty())
		Expect(*ticket.AgentID).To(Equal(agentID))
		path := "/agent/tickets/" + strconv.FormatInt(ticket.ID, 10)

		status, _ := do(http.MethodPost, "/tickets/"+strconv.FormatInt(ticket.ID, 10)+"/messages", customerToken,
			map[string]string{"content": "still down"})
		Expect(status).To(Equal(http.StatusCreated))
		status, _ = do(http.MethodPost, path+"/messages", agentToken, map[string]string{"content": "looking"})
		Expect(status).To(Equal(http.StatusCreated))

		status, env = do(http.MethodPatch, path+"/priority", agentToken, map[string]int{"priority": 5})
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(env.Error.Code).To(Equal("VALIDATION_FAILED"))

		status, env = do(http.MethodPatch, path+"/priority", agentToken, map[string]int{"priority": 3})
		Expect(status).To(Equal(http.StatusOK))

		status, env = do(http.MethodPost, path+"/resolve", agentToken, nil)
		Expect(status).To(Equal(http.StatusOK))
		var resolved struct {
			Outcome string `json:"outcome"`
		}
		decode(env, &resolved)
		Expect(resolved.Outcome).To(Equal("resolved"))

		status, env = do(http.MethodPost, path+"/resolve", agentToken, nil)
		Expect(status).To(Equal(http.StatusOK))
		decode(env, &resolved)
		Expect(resolved.Outcome).To(Equal("already resolved"))

		status, env = do(http.MethodGet, "/tickets/"+strconv.FormatInt(ticket.ID, 10), customerToken, nil)
		Expect(status).To(Equal(http.StatusOK))
		var detail struct {
			Status   string `json:"status"`
			Messages []struct {
				SenderType string `json:"sender_type"`
			} `json:"messages"`
		}
		decode(env, &detail)
		Expect(detail.Status).To(Equal("CLOSED"))
		Expect(detail.Messages).To(HaveLen(2))
		Expect(detail.Messages[0].SenderType).To(Equal("Customer"))
		Expect(detail.Messages[1].SenderType).To(Equal("Agent"))

		status, env = do(http.MethodGet, path+"/history", agentToken, nil)
		Expect(status).To(Equal(http.StatusOK))
		var history []map[string]any
		decode(env, &history)
		Expect(history).To(HaveLen(3))
	})

	It("forbids an agent who is not assigned", func() {
		_, _ = registerAgent("ann")
		customerToken := registerCustomer("cara@example.com")
		ticket, _ := createTicket(customerToken)
		otherToken, _ := registerAgent("bob")

		status, env := do(http.MethodPatch, "/agent/tickets/"+strconv.FormatInt(ticket.ID, 10)+"/priority", otherToken,
			map[string]int{"priority": 2})
		Expect(status).To(Equal(http.StatusForbidden))
		Expect(env.Error.Code).To(Equal("FORBIDDEN"))
	})

	It("keeps customers out of agent routes and other customers' tickets", func() {
		_, _ = registerAgent("ann")
		owner := registerCustomer("cara@example.com")
		ticket, _ := createTicket(owner)
		stranger := registerCustomer("sam@example.com")

		status, _ := do(http.MethodGet, "/agent/tickets/all", owner, nil)
		Expect(status).To(Equal(http.StatusForbidden))

		status, _ = do(http.MethodGet, "/tickets/"+strconv.FormatInt(ticket.ID, 10), stranger, nil)
		Expect(status).To(Equal(http.StatusForbidden))
	})

	It("reports unknown tickets and malformed ids", func() {
		agentToken, _ := registerAgent("ann")
		status, env := do(http.MethodPost, "/agent/tickets/999/resolve", agentToken, nil)
		Expect(status).To(Equal(http.StatusNotFound))
		Expect(env.Error.Code).To(Equal("NOT_FOUND"))

		status, _ = do(http.MethodPost, "/agent/tickets/abc/resolve", agentToken, nil)
		Expect(status).To(Equal(http.StatusBadRequest))
	})

	It("lists all tickets by priority and validates the sort flag", func() {
		agentToken, _ := registerAgent("ann")
		customerToken := registerCustomer("cara@example.com")
		low, _ := createTicket(customerToken)
		high, _ := createTicket(customerToken)
		status, _ := do(http.MethodPatch, "/agent/tickets/"+strconv.FormatInt(high.ID, 10)+"/priority", agentToken,
			map[string]int{"priority": 3})
		Expect(status).To(Equal(http.StatusOK))

		status, env := do(http.MethodGet, "/agent/tickets/all", agentToken, nil)
		Expect(status).To(Equal(http.StatusOK))
		var all []ticketBody
		decode(env, &all)
		Expect(all).To(HaveLen(2))
		Expect(all[0].ID).To(Equal(high.ID))
		Expect(all[1].ID).To(Equal(low.ID))

		status, _ = do(http.MethodGet, "/agent/tickets/all?sort=sideways", agentToken, nil)
		Expect(status).To(Equal(http.StatusBadRequest))
	})

	It("filters the full list by status", func() {
		agentToken, _ := registerAgent("ann")
		customerToken := registerCustomer("cara@example.com")
		open, _ := createTicket(customerToken)
		closed, _ := createTicket(customerToken)
		status, _ := do(http.MethodPost, "/agent/tickets/"+strconv.FormatInt(closed.ID, 10)+"/resolve", agentToken, nil)
		Expect(status).To(Equal(http.StatusOK))

		status, env := do(http.MethodGet, "/agent/tickets/all?status=OPEN", agentToken, nil)
		Expect(status).To(Equal(http.StatusOK))
		var tickets []ticketBody
		decode(env, &tickets)
		Expect(tickets).To(HaveLen(1))
		Expect(tickets[0].ID).To(Equal(open.ID))

		status, env = do(http.MethodGet, "/agent/tickets/all?status=closed&sort=none", agentToken, nil)
		Expect(status).To(Equal(http.StatusOK))
		decode(env, &tickets)
		Expect(tickets).To(HaveLen(1))
		Expect(tickets[0].ID).To(Equal(closed.ID))
		Expect(tickets[0].Status).To(Equal("CLOSED"))

		status, env = do(http.MethodGet, "/agent/tickets/all?status=pending", agentToken, nil)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(env.Error.Code).To(Equal("VALIDATION_FAILED"))
	})

	It("edits the caller's profile", func() {
		registerCustomer("taken@example.com")
		token := registerCustomer("cara@example.com")

		status, env := do(http.MethodPatch, "/auth/me", token, map[string]string{"last_name": "smith", "email": "Cara.Smith@example.com"})
		Expect(status).To(Equal(http.StatusOK))
		var person struct {
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
			Email     string `json:"email"`
		}
		decode(env, &person)
		Expect(person.FirstName).To(Equal("Cara"))
		Expect(person.LastName).To(Equal("Smith"))
		Expect(person.Email).To(Equal("cara.smith@example.com"))

		status, env = do(http.MethodPatch, "/auth/me", token, map[string]string{"email": "taken@example.com"})
		Expect(status).To(Equal(http.StatusConflict))
		Expect(env.Error.Code).To(Equal("CONFLICT"))

		status, _ = do(http.MethodPost, "/auth/customers/login", "", map[string]string{"email": "cara.smith@example.com", "password": password})
		Expect(status).To(Equal(http.StatusOK))
	})

	It("ends the session on logout", func() {
		token := registerCustomer("cara@example.com")
		status, _ := do(http.MethodPost, "/auth/logout", token, nil)
		Expect(status).To(Equal(http.StatusNoContent))

		status, env := do(http.MethodGet, "/tickets", token, nil)
		Expect(status).To(Equal(http.StatusUnauthorized))
		Expect(env.Error.Code).To(Equal("UNAUTHORIZED"))
	})

	It("answers unknown routes with the error envelope", func() {
		status, env := do(http.MethodGet, "/nowhere", "", nil)
		Expect(status).To(Equal(http.StatusNotFound))
		Expect(env.Error.Code).To(Equal("NOT_FOUND"))
	})
})
