package worker

import (
	"github.com/deskflow/service-desk/internal/events"
	"github.com/deskflow/service-desk/internal/service"
)

// StartNotificationWorker registers the event subscribers. The Kafka sink is
// optional.
func StartNotificationWorker(dispatcher events.Dispatcher, notificationService *service.NotificationService, sink *events.KafkaSink) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if sink != nil && dispatcher != nil {
		sink.Register(dispatcher)
	}
}
