package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/deskflow/service-desk/internal/config"
	"github.com/deskflow/service-desk/internal/domain"
	"github.com/deskflow/service-desk/internal/events"
	"github.com/deskflow/service-desk/internal/repository"
	"github.com/deskflow/service-desk/internal/service"
	apperrors "github.com/deskflow/service-desk/pkg/util/errorutil"
)

var _ = Describe("TicketService", func() {
	var (
		ctx      context.Context
		f        *fixture
		customer *domain.Customer
	)

	BeforeEach(func() {
		ctx = context.Background()
		f = newFixture()
		customer = f.addCustomer("cara@example.com")
	})

	Describe("CreateTicket", func() {
		It("creates an open, low priority, unassigned ticket when no agent exists", func() {
			ticket, err := f.service.CreateTicket(ctx, customer, "Login", "password reset loop")
			Expect(err).NotTo(HaveOccurred())
			Expect(ticket.Status).To(Equal(domain.TicketStatusOpen))
			Expect(ticket.Priority).To(Equal(domain.TicketPriorityLow))
			Expect(ticket.AgentID).To(BeNil())
			Expect(ticket.CustomerID).To(Equal(customer.ID))
			Expect(ticket.CreatedAt).NotTo(BeZero())
		})

		It("fails with NO_AGENTS_AVAILABLE under the reject policy", func() {
			f = newFixture(withUnassignedPolicy(config.UnassignedPolicyReject))
			customer = f.addCustomer("cara@example.com")

			_, err := f.service.CreateTicket(ctx, customer, "Login", "password reset loop")
			Expect(apperrors.HasCode(err, apperrors.CodeNoAgents)).To(BeTrue())

			all, err := f.service.ListAllTickets(ctx, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(BeEmpty())
		})

		It("routes to the agent with fewer open tickets", func() {
			busy := f.addAgent("busy")
			idle := f.addAgent("idle")
			for i := 0; i < 3; i++ {
				Expect(f.store.Tickets().Create(ctx, &domain.Ticket{
					CustomerID: customer.ID,
					AgentID:    &busy.ID,
					Topic:      "old",
					Content:    "old",
					Priority:   domain.TicketPriorityLow,
					Status:     domain.TicketStatusOpen,
				})).To(Succeed())
			}

			ticket, err := f.service.CreateTicket(ctx, customer, "Mail", "bounces")
			Expect(err).NotTo(HaveOccurred())
			Expect(ticket.AgentID).NotTo(BeNil())
			Expect(*ticket.AgentID).To(Equal(idle.ID))
		})

		It("ignores closed tickets when measuring load", func() {
			a1 := f.addAgent("a1")
			a2 := f.addAgent("a2")
			first := f.openTicket(customer)
			owner := a1
			if *first.AgentID == a2.ID {
				owner = a2
			}
			_, _, err := f.service.ResolveTicket(ctx, first.ID, owner.Identity())
			Expect(err).NotTo(HaveOccurred())

			counts, err := f.store.Tickets().CountOpenByAgent(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(counts).To(BeEmpty())
		})

		DescribeTable("rejects blank input",
			func(topic, content string, field string) {
				_, err := f.service.CreateTicket(ctx, customer, topic, content)
				Expect(apperrors.HasCode(err, apperrors.CodeValidation)).To(BeTrue())
				Expect(apperrors.ToDomainError(err).Details["fields"]).To(ContainElement(field))
			},
			Entry("empty topic", "", "body", "topic"),
			Entry("whitespace topic", "   ", "body", "topic"),
			Entry("empty content", "topic", "", "content"),
			Entry("whitespace content", "topic", "\t\n", "content"),
		)

		It("rejects a missing or unregistered customer", func() {
			_, err := f.service.CreateTicket(ctx, nil, "a", "b")
			Expect(apperrors.HasCode(err, apperrors.CodeValidation)).To(BeTrue())

			_, err = f.service.CreateTicket(ctx, &domain.Customer{ID: 999}, "a", "b")
			Expect(apperrors.HasCode(err, apperrors.CodeValidation)).To(BeTrue())
		})

		It("trims topic and content", func() {
			ticket, err := f.service.CreateTicket(ctx, customer, "  Wifi ", " drops\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(ticket.Topic).To(Equal("Wifi"))
			Expect(ticket.Content).To(Equal("drops"))
		})

		It("surfaces store failures as STORE_ERROR and stores nothing", func() {
			f.tickets.CreateFn = func(context.Context, *domain.Ticket) error {
				return errors.New("connection reset")
			}
			_, err := f.service.CreateTicket(ctx, customer, "a", "b")
			Expect(apperrors.HasCode(err, apperrors.CodeStore)).To(BeTrue())
			Expect(apperrors.ToDomainError(err).Message).To(Equal("system error, try again"))
			Expect(f.dispatcher.types()).To(BeEmpty())
		})

		It("records history and publishes ticket_created", func() {
			ticket := f.openTicket(customer)

			history, err := f.service.ListHistory(ctx, ticket.ID, customer.Identity())
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(1))
			Expect(history[0].ChangeType).To(Equal(domain.ChangeTypeCreated))
			Expect(f.dispatcher.types()).To(Equal([]events.EventType{events.EventTicketCreated}))
		})

		It("still succeeds when the audit trail cannot be written", func() {
			f = newFixture(withHistory(&historyRepoStub{err: errors.New("disk full")}))
			customer = f.addCustomer("cara@example.com")

			_, err := f.service.CreateTicket(ctx, customer, "a", "b")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("SetPriority", func() {
		var (
			agent  *domain.Agent
			ticket *domain.Ticket
		)

		BeforeEach(func() {
			agent = f.addAgent("ann")
			ticket = f.openTicket(customer)
		})

		It("lets the assigned agent change priority", func() {
			updated, err := f.service.SetPriority(ctx, ticket.ID, agent.Identity(), domain.TicketPriorityHigh)
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Priority).To(Equal(domain.TicketPriorityHigh))
			Expect(f.dispatcher.types()).To(ContainElement(events.EventTicketPriorityChanged))
		})

		It("forbids other agents and leaves the ticket unchanged", func() {
			other := f.addAgent("bob")
			_, err := f.service.SetPriority(ctx, ticket.ID, other.Identity(), domain.TicketPriorityHigh)
			Expect(apperrors.HasCode(err, apperrors.CodeForbidden)).To(BeTrue())

			stored, _ := f.store.Tickets().GetByID(ctx, ticket.ID)
			Expect(stored.Priority).To(Equal(domain.TicketPriorityLow))
		})

		It("forbids customers", func() {
			_, err := f.service.SetPriority(ctx, ticket.ID, customer.Identity(), domain.TicketPriorityHigh)
			Expect(apperrors.HasCode(err, apperrors.CodeForbidden)).To(BeTrue())
		})

		It("compares agents by id, not by name", func() {
			impostor := agent.Identity()
			impostor.ID = agent.ID + 100
			_, err := f.service.SetPriority(ctx, ticket.ID, impostor, domain.TicketPriorityHigh)
			Expect(apperrors.HasCode(err, apperrors.CodeForbidden)).To(BeTrue())
		})

		It("rejects out of range priorities and keeps the old one", func() {
			_, err := f.service.SetPriority(ctx, ticket.ID, agent.Identity(), domain.TicketPriorityMedium)
			Expect(err).NotTo(HaveOccurred())

			for _, p := range []domain.TicketPriority{0, 4, 5, -1} {
				_, err = f.service.SetPriority(ctx, ticket.ID, agent.Identity(), p)
				Expect(apperrors.HasCode(err, apperrors.CodeValidation)).To(BeTrue())
			}
			stored, _ := f.store.Tickets().GetByID(ctx, ticket.ID)
			Expect(stored.Priority).To(Equal(domain.TicketPriorityMedium))
		})

		It("reports unknown tickets", func() {
			_, err := f.service.SetPriority(ctx, 4242, agent.Identity(), domain.TicketPriorityHigh)
			Expect(apperrors.HasCode(err, apperrors.CodeNotFound)).To(BeTrue())
		})

		It("forbids changes on an unassigned ticket", func() {
			f2 := newFixture()
			c := f2.addCustomer("solo@example.com")
			unassigned := f2.openTicket(c)
			late := f2.addAgent("late")

			_, err := f2.service.SetPriority(ctx, unassigned.ID, late.Identity(), domain.TicketPriorityHigh)
			Expect(apperrors.HasCode(err, apperrors.CodeForbidden)).To(BeTrue())
		})

		It("maps a lost optimistic update to CONFLICT", func() {
			f.tickets.UpdateFn = func(context.Context, *domain.Ticket) error {
				return repository.ErrVersionConflict
			}
			_, err := f.service.SetPriority(ctx, ticket.ID, agent.Identity(), domain.TicketPriorityHigh)
			Expect(apperrors.HasCode(err, apperrors.CodeConflict)).To(BeTrue())
		})

		It("refuses to reprioritise a resolved ticket", func() {
			_, _, err := f.service.ResolveTicket(ctx, ticket.ID, agent.Identity())
			Expect(err).NotTo(HaveOccurred())

			_, err = f.service.SetPriority(ctx, ticket.ID, agent.Identity(), domain.TicketPriorityHigh)
			Expect(apperrors.HasCode(err, apperrors.CodeConflict)).To(BeTrue())
		})
	})

	Describe("ResolveTicket", func() {
		var (
			agent  *domain.Agent
			ticket *domain.Ticket
		)

		BeforeEach(func() {
			agent = f.addAgent("ann")
			ticket = f.openTicket(customer)
		})

		It("closes the ticket once and is a no-op afterwards", func() {
			closed, outcome, err := f.service.ResolveTicket(ctx, ticket.ID, agent.Identity())
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(service.ResolveOutcomeResolved))
			Expect(closed.Status).To(Equal(domain.TicketStatusClosed))
			Expect(closed.ClosedAt).NotTo(BeNil())

			again, outcome, err := f.service.ResolveTicket(ctx, ticket.ID, agent.Identity())
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(service.ResolveOutcomeAlreadyResolved))
			Expect(again.Status).To(Equal(domain.TicketStatusClosed))
			Expect(again.Version).To(Equal(closed.Version))

			resolvedEvents := 0
			for _, t := range f.dispatcher.types() {
				if t == events.EventTicketResolved {
					resolvedEvents++
				}
			}
			Expect(resolvedEvents).To(Equal(1))
		})

		It("forbids agents other than the assignee", func() {
			other := f.addAgent("bob")
			_, _, err := f.service.ResolveTicket(ctx, ticket.ID, other.Identity())
			Expect(apperrors.HasCode(err, apperrors.CodeForbidden)).To(BeTrue())
		})

		It("reports unknown tickets", func() {
			_, _, err := f.service.ResolveTicket(ctx, 4242, agent.Identity())
			Expect(apperrors.HasCode(err, apperrors.CodeNotFound)).To(BeTrue())
		})
	})

	Describe("ClaimTicket and ReassignTicket", func() {
		It("lets an agent claim an unassigned ticket", func() {
			ticket := f.openTicket(customer)
			agent := f.addAgent("late")

			claimed, err := f.service.ClaimTicket(ctx, ticket.ID, agent.Identity())
			Expect(err).NotTo(HaveOccurred())
			Expect(claimed.IsAssignedTo(agent.ID)).To(BeTrue())
			Expect(f.dispatcher.types()).To(ContainElement(events.EventTicketAssigned))
		})

		It("refuses to claim a ticket owned by someone else", func() {
			owner := f.addAgent("owner")
			ticket := f.openTicket(customer)
			Expect(ticket.IsAssignedTo(owner.ID)).To(BeTrue())
			other := f.addAgent("other")

			_, err := f.service.ClaimTicket(ctx, ticket.ID, other.Identity())
			Expect(apperrors.HasCode(err, apperrors.CodeConflict)).To(BeTrue())
		})

		It("hands a ticket over to another agent", func() {
			owner := f.addAgent("owner")
			ticket := f.openTicket(customer)
			target := f.addAgent("target")

			moved, err := f.service.ReassignTicket(ctx, ticket.ID, owner.Identity(), target.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(moved.IsAssignedTo(target.ID)).To(BeTrue())

			_, err = f.service.SetPriority(ctx, ticket.ID, owner.Identity(), domain.TicketPriorityHigh)
			Expect(apperrors.HasCode(err, apperrors.CodeForbidden)).To(BeTrue())
		})

		It("rejects unknown target agents", func() {
			owner := f.addAgent("owner")
			ticket := f.openTicket(customer)

			_, err := f.service.ReassignTicket(ctx, ticket.ID, owner.Identity(), 999)
			Expect(apperrors.HasCode(err, apperrors.CodeNotFound)).To(BeTrue())
		})
	})

	Describe("messages", func() {
		var ticket *domain.Ticket

		BeforeEach(func() {
			f.addAgent("ann")
			ticket = f.openTicket(customer)
		})

		It("appends in order with sender metadata", func() {
			_, err := f.service.AddMessage(ctx, ticket.ID, domain.SenderCustomer, "Cara", "hello")
			Expect(err).NotTo(HaveOccurred())
			_, err = f.service.AddMessage(ctx, ticket.ID, domain.SenderAgent, "Ann", "hi there")
			Expect(err).NotTo(HaveOccurred())

			msgs, err := f.service.ListMessages(ctx, ticket.ID, customer.Identity())
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].SenderType).To(Equal(domain.SenderCustomer))
			Expect(msgs[0].Content).To(Equal("hello"))
			Expect(msgs[1].SenderType).To(Equal(domain.SenderAgent))
			Expect(msgs[1].SenderName).To(Equal("Ann"))
		})

		It("accepts messages on closed tickets", func() {
			owner := domain.Identity{Role: domain.RoleAgent, ID: *ticket.AgentID}
			_, _, err := f.service.ResolveTicket(ctx, ticket.ID, owner)
			Expect(err).NotTo(HaveOccurred())

			_, err = f.service.AddMessage(ctx, ticket.ID, domain.SenderCustomer, "Cara", "thanks")
			Expect(err).NotTo(HaveOccurred())
		})

		DescribeTable("validates input",
			func(sender domain.SenderType, name, content string) {
				_, err := f.service.AddMessage(ctx, ticket.ID, sender, name, content)
				Expect(apperrors.HasCode(err, apperrors.CodeValidation)).To(BeTrue())
			},
			Entry("blank content", domain.SenderCustomer, "Cara", "  "),
			Entry("blank sender name", domain.SenderAgent, "", "hi"),
			Entry("unknown sender type", domain.SenderType("Bot"), "x", "hi"),
		)

		It("reports unknown tickets", func() {
			_, err := f.service.AddMessage(ctx, 4242, domain.SenderCustomer, "Cara", "hi")
			Expect(apperrors.HasCode(err, apperrors.CodeNotFound)).To(BeTrue())
		})

		It("never stamps a message before the previous one", func() {
			base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
			times := []time.Time{base, base.Add(-time.Minute)}
			var mu sync.Mutex
			calls := 0
			clock := func() time.Time {
				mu.Lock()
				defer mu.Unlock()
				t := times[calls%len(times)]
				calls++
				return t
			}
			f = newFixture(withClock(clock))
			customer = f.addCustomer("cara@example.com")
			ticket = f.openTicket(customer)

			calls = 0
			first, err := f.service.AddMessage(ctx, ticket.ID, domain.SenderCustomer, "Cara", "one")
			Expect(err).NotTo(HaveOccurred())
			calls = 1
			second, err := f.service.AddMessage(ctx, ticket.ID, domain.SenderCustomer, "Cara", "two")
			Expect(err).NotTo(HaveOccurred())
			Expect(second.CreatedAt).To(BeTemporally(">=", first.CreatedAt))
		})

		It("derives the sender from the caller and guards foreign tickets", func() {
			msg, err := f.service.PostMessage(ctx, ticket.ID, customer.Identity(), "any news?")
			Expect(err).NotTo(HaveOccurred())
			Expect(msg.SenderType).To(Equal(domain.SenderCustomer))
			Expect(msg.SenderName).To(Equal(customer.DisplayName()))

			stranger := f.addCustomer("stranger@example.com")
			_, err = f.service.PostMessage(ctx, ticket.ID, stranger.Identity(), "hi")
			Expect(apperrors.HasCode(err, apperrors.CodeForbidden)).To(BeTrue())
			_, err = f.service.GetTicket(ctx, ticket.ID, stranger.Identity())
			Expect(apperrors.HasCode(err, apperrors.CodeForbidden)).To(BeTrue())
		})

		It("returns the thread with the ticket", func() {
			_, err := f.service.PostMessage(ctx, ticket.ID, customer.Identity(), "hello")
			Expect(err).NotTo(HaveOccurred())

			full, err := f.service.GetTicket(ctx, ticket.ID, customer.Identity())
			Expect(err).NotTo(HaveOccurred())
			Expect(full.Messages).To(HaveLen(1))
		})
	})

	Describe("listing", func() {
		It("returns customer and agent views in store order", func() {
			ann := f.addAgent("ann")
			other := f.addCustomer("other@example.com")
			t1 := f.openTicket(customer)
			f.openTicket(other)
			t3 := f.openTicket(customer)

			mine, err := f.service.ListTicketsForCustomer(ctx, customer.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect([]int64{mine[0].ID, mine[1].ID}).To(Equal([]int64{t1.ID, t3.ID}))

			assigned, err := f.service.ListTicketsForAgent(ctx, ann.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(assigned).To(HaveLen(3))
		})

		It("returns empty lists rather than nil", func() {
			tickets, err := f.service.ListTicketsForCustomer(ctx, customer.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(tickets).NotTo(BeNil())
			Expect(tickets).To(BeEmpty())
		})

		It("sorts by priority descending and keeps store order among ties", func() {
			ann := f.addAgent("ann")
			var ids []int64
			for i := 0; i < 4; i++ {
				ids = append(ids, f.openTicket(customer).ID)
			}
			_, err := f.service.SetPriority(ctx, ids[1], ann.Identity(), domain.TicketPriorityHigh)
			Expect(err).NotTo(HaveOccurred())
			_, err = f.service.SetPriority(ctx, ids[3], ann.Identity(), domain.TicketPriorityHigh)
			Expect(err).NotTo(HaveOccurred())
			_, err = f.service.SetPriority(ctx, ids[2], ann.Identity(), domain.TicketPriorityMedium)
			Expect(err).NotTo(HaveOccurred())

			sorted, err := f.service.ListAllTickets(ctx, true)
			Expect(err).NotTo(HaveOccurred())
			got := make([]int64, 0, len(sorted))
			for _, t := range sorted {
				got = append(got, t.ID)
			}
			Expect(got).To(Equal([]int64{ids[1], ids[3], ids[2], ids[0]}))

			unsorted, err := f.service.ListAllTickets(ctx, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(unsorted[0].ID).To(Equal(ids[0]))
		})

		It("filters by status", func() {
			ann := f.addAgent("ann")
			open := f.openTicket(customer)
			closed := f.openTicket(customer)
			_, _, err := f.service.ResolveTicket(ctx, closed.ID, ann.Identity())
			Expect(err).NotTo(HaveOccurred())

			openOnly, err := f.service.ListOpenTickets(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(openOnly).To(HaveLen(1))
			Expect(openOnly[0].ID).To(Equal(open.ID))

			closedOnly, err := f.service.ListAllTickets(ctx, false, domain.TicketStatusClosed)
			Expect(err).NotTo(HaveOccurred())
			Expect(closedOnly).To(HaveLen(1))
			Expect(closedOnly[0].ID).To(Equal(closed.ID))

			both, err := f.service.ListAllTickets(ctx, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(both).To(HaveLen(2))

			_, err = f.service.ListAllTickets(ctx, false, domain.TicketStatus("PENDING"))
			Expect(apperrors.HasCode(err, apperrors.CodeValidation)).To(BeTrue())
		})

		It("wraps listing failures", func() {
			f.tickets.ListFn = func(context.Context, repository.TicketFilter) ([]domain.Ticket, error) {
				return nil, errors.New("timeout")
			}
			_, err := f.service.ListAllTickets(ctx, true)
			Expect(apperrors.HasCode(err, apperrors.CodeStore)).To(BeTrue())
		})
	})

	Describe("store failures on existing tickets", func() {
		var (
			agent  *domain.Agent
			ticket *domain.Ticket
		)

		BeforeEach(func() {
			agent = f.addAgent("ann")
			ticket = f.openTicket(customer)
		})

		It("leaves the ticket open when saving the resolution fails", func() {
			f.tickets.UpdateFn = func(context.Context, *domain.Ticket) error {
				return errors.New("connection reset")
			}
			published := len(f.dispatcher.types())

			_, outcome, err := f.service.ResolveTicket(ctx, ticket.ID, agent.Identity())
			Expect(apperrors.HasCode(err, apperrors.CodeStore)).To(BeTrue())
			Expect(outcome).To(BeEmpty())

			stored, err := f.store.Tickets().GetByID(ctx, ticket.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(domain.TicketStatusOpen))
			Expect(stored.ClosedAt).To(BeNil())
			Expect(stored.Version).To(Equal(ticket.Version))
			Expect(f.dispatcher.types()).To(HaveLen(published))

			history, err := f.store.History().ListByTicket(ctx, ticket.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(1))
		})

		It("appends nothing when the message store fails", func() {
			f.messages.CreateFn = func(context.Context, *domain.Message) error {
				return errors.New("disk full")
			}
			published := len(f.dispatcher.types())

			_, err := f.service.AddMessage(ctx, ticket.ID, domain.SenderCustomer, "Cara", "hello?")
			Expect(apperrors.HasCode(err, apperrors.CodeStore)).To(BeTrue())

			thread, err := f.store.Messages().ListByTicket(ctx, ticket.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(thread).To(BeEmpty())
			Expect(f.dispatcher.types()).To(HaveLen(published))
		})
	})

	Describe("event publishing", func() {
		It("does not hold the ticket lock while a subscriber is slow", func() {
			blocking := newBlockingDispatcher(events.EventTicketPriorityChanged)
			f = newFixture(withDispatcher(blocking))
			customer = f.addCustomer("cara@example.com")
			agent := f.addAgent("ann")
			ticket := f.openTicket(customer)

			done := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				_, err := f.service.SetPriority(ctx, ticket.ID, agent.Identity(), domain.TicketPriorityHigh)
				done <- err
			}()
			Eventually(blocking.entered).Should(BeClosed())

			_, err := f.service.AddMessage(ctx, ticket.ID, domain.SenderAgent, "Ann", "on it")
			Expect(err).NotTo(HaveOccurred())
			Consistently(done, 50*time.Millisecond).ShouldNot(Receive())

			close(blocking.release)
			Eventually(done).Should(Receive(BeNil()))
		})
	})

	Describe("concurrent mutation", func() {
		It("serialises writes to one ticket without lost updates", func() {
			agent := f.addAgent("ann")
			ticket := f.openTicket(customer)

			const writers = 20
			var wg sync.WaitGroup
			errs := make(chan error, writers*2)
			for i := 0; i < writers; i++ {
				wg.Add(2)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					p := domain.TicketPriority(i%3 + 1)
					_, err := f.service.SetPriority(ctx, ticket.ID, agent.Identity(), p)
					errs <- err
				}(i)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := f.service.AddMessage(ctx, ticket.ID, domain.SenderCustomer, "Cara", "ping")
					errs <- err
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				Expect(err).NotTo(HaveOccurred())
			}

			msgs, err := f.service.ListMessages(ctx, ticket.ID, agent.Identity())
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(writers))
			for i := 1; i < len(msgs); i++ {
				Expect(msgs[i].CreatedAt).To(BeTemporally(">=", msgs[i-1].CreatedAt))
			}
		})
	})
})
