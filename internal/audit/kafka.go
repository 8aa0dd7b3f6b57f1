package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const kafkaWriteTimeout = 5 * time.Second

// MessageWriter is the subset of *kafka.Writer used by KafkaSink.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes events as JSON, keyed by account id so one account's
// events stay ordered within a partition.
type KafkaSink struct {
	writer MessageWriter
	log    zerolog.Logger
}

// NewKafkaWriter returns a writer for topic, or nil when brokers or topic
// are empty.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

func NewKafkaSink(writer MessageWriter, log zerolog.Logger) *KafkaSink {
	return &KafkaSink{writer: writer, log: log}
}

// Emit is called from the dispatcher goroutine, so a slow broker delays
// other events but never a request.
func (s *KafkaSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, kafkaWriteTimeout)
	defer cancel()

	err = s.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(event.AccountID),
		Value: payload,
		Time:  event.Timestamp,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("op", "audit_kafka").Str("event", event.EventType).Msg("audit publish failed")
	}
}

// Close closes the underlying writer.
func (s *KafkaSink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
