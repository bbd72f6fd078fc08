package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/deskflow/service-desk/internal/config"
)

// MessageWriter is the subset of *kafka.Writer the sink needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink exports every domain event as JSON, keyed by ticket id so that
// one ticket's events land on one partition in order.
type KafkaSink struct {
	writer MessageWriter
	logger *zap.Logger
}

// NewKafkaSink builds a sink writing to cfg.Topic on cfg.Brokers.
func NewKafkaSink(cfg config.KafkaConfig, logger *zap.Logger) *KafkaSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	return NewKafkaSinkWithWriter(writer, logger)
}

// NewKafkaSinkWithWriter builds a sink around an existing writer.
func NewKafkaSinkWithWriter(writer MessageWriter, logger *zap.Logger) *KafkaSink {
	return &KafkaSink{writer: writer, logger: logger}
}

// Register subscribes the sink to every event type.
func (s *KafkaSink) Register(dispatcher Dispatcher) {
	for _, eventType := range AllEventTypes {
		dispatcher.Subscribe(eventType, s.Handle)
	}
}

// Handle writes one event.
func (s *KafkaSink) Handle(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.ID, err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.TicketID, 10)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.logger.Warn("kafka export failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return fmt.Errorf("write event %s: %w", event.ID, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
