// Package notify hands out-of-band messages (verification and reset links)
// to the mail pipeline. Delivery itself happens elsewhere.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Kind names the purpose of a message.
type Kind string

const (
	KindVerifyEmail   Kind = "verify_email"
	KindPasswordReset Kind = "password_reset"
)

// Message is a request to send Token to To.
type Message struct {
	Kind      Kind      `json:"kind"`
	To        string    `json:"to"`
	AccountID string    `json:"account_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Notifier delivers messages. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier records that a message was requested. The token is never
// written to the log.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "notify").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, msg Message) error {
	n.log.Info().
		Str("kind", string(msg.Kind)).
		Str("account_id", msg.AccountID).
		Time("expires_at", msg.ExpiresAt).
		Msg("notification requested")
	return nil
}

// Writer is the subset of *kafka.Writer used by KafkaNotifier.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaNotifier publishes messages for the mail service to consume.
type KafkaNotifier struct {
	writer  Writer
	timeout time.Duration
}

func NewKafkaNotifier(writer Writer) *KafkaNotifier {
	return &KafkaNotifier{writer: writer, timeout: 5 * time.Second}
}

func (n *KafkaNotifier) Notify(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: marshal: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(msg.AccountID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(msg.Kind)},
		},
	}); err != nil {
		return fmt.Errorf("notify: publish: %w", err)
	}
	return nil
}

// Recorder keeps messages in memory. Tests read tokens back from it.
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *Recorder) Notify(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

// Last returns the most recent message of kind sent to to.
func (r *Recorder) Last(kind Kind, to string) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.msgs) - 1; i >= 0; i-- {
		if r.msgs[i].Kind == kind && r.msgs[i].To == to {
			return r.msgs[i], true
		}
	}
	return Message{}, false
}

// Count returns how many messages of kind were recorded.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.msgs {
		if m.Kind == kind {
			n++
		}
	}
	return n
}
