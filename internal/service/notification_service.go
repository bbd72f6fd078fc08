package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/deskflow/service-desk/internal/config"
	"github.com/deskflow/service-desk/internal/events"
	"github.com/deskflow/service-desk/internal/observability"
)

// NotificationService records ticket events. Delivery to people is out of
// scope; email and webhook targets are only logged.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketResolved, n.handleTicketResolved)
	n.dispatcher.Subscribe(events.EventTicketPriorityChanged, n.handleTicketPriorityChanged)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketMessageAdded, n.handleTicketMessageAdded)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.record(event, "TicketCreated")
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketResolved(ctx context.Context, event events.Event) error {
	n.record(event, "TicketResolved")
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketPriorityChanged(ctx context.Context, event events.Event) error {
	n.record(event, "TicketPriorityChanged")
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	n.record(event, "TicketAssigned")
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketMessageAdded(ctx context.Context, event events.Event) error {
	n.record(event, "TicketMessageAdded")
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) record(event events.Event, name string) {
	if n.metrics != nil {
		n.metrics.RecordTicketEvent(string(event.Type))
	}
	n.logger.Info(name,
		zap.String("event_id", event.ID),
		zap.Int64("ticket_id", event.TicketID),
		zap.String("actor_role", string(event.Actor.Role)),
		zap.Int64("actor_id", event.Actor.ID),
		zap.Any("payload", event.Payload))
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.Int64("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.Int64("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
