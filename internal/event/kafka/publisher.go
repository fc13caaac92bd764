// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package kafka exports domain events to a Kafka topic as CloudEvents.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/samber/oops"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/holomush/gatekeeper/internal/event"
	"github.com/holomush/gatekeeper/pkg/errutil"
)

// DefaultSource is the CloudEvents source attribute.
const DefaultSource = "urn:service:gatekeeper"

const specVersion = "1.0"

// Writer is the subset of *kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// envelope is the CloudEvents structured-mode representation.
type envelope struct {
	ID          string          `json:"id"`
	Source      string          `json:"source"`
	SpecVersion string          `json:"specversion"`
	Type        string          `json:"type"`
	Time        time.Time       `json:"time"`
	Subject     string          `json:"subject"`
	ContentType string          `json:"datacontenttype"`
	Data        json.RawMessage `json:"data"`
}

// payload is the account snapshot carried by every event. Password hashes
// never leave the process.
type payload struct {
	UUID        string `json:"uuid"`
	PremiumUUID string `json:"premium_uuid,omitempty"`
	Name        string `json:"name"`
	Registered  bool   `json:"registered"`
	Premium     *bool  `json:"premium_enabled,omitempty"`
}

// Publisher writes events to Kafka. It implements event.Handler.
//
// Export is best effort: write failures are logged and counted, never
// returned, so a broker outage cannot block logins.
type Publisher struct {
	writer Writer
	source string
	logger *slog.Logger
	failed func()
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithSource overrides the CloudEvents source.
func WithSource(source string) Option {
	return func(p *Publisher) { p.source = source }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// WithFailureHook is called once per failed write.
func WithFailureHook(fn func()) Option {
	return func(p *Publisher) { p.failed = fn }
}

// WriteBatchTimeout bounds how long a synchronous write waits to fill a
// batch. Writes happen on the login path, one event at a time.
const WriteBatchTimeout = 10 * time.Millisecond

// NewWriter creates a synchronous writer for topic.
func NewWriter(brokers []string, topic string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    1,
		BatchTimeout: WriteBatchTimeout,
		Async:        false,
	}
}

// NewPublisher creates a publisher over w.
func NewPublisher(w Writer, opts ...Option) (*Publisher, error) {
	if w == nil {
		return nil, oops.Code("KAFKA_INVALID_CONFIG").Errorf("writer is required")
	}
	p := &Publisher{
		writer: w,
		source: DefaultSource,
		logger: slog.Default(),
		failed: func() {},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Handle implements event.Handler.
func (p *Publisher) Handle(ctx context.Context, ev event.Event) error {
	msg, err := p.encode(ev)
	if err != nil {
		p.failed()
		errutil.LogErrorContext(ctx, p.logger, slog.LevelWarn, "event export encode failed", err)
		return nil
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.failed()
		errutil.LogErrorContext(ctx, p.logger, slog.LevelWarn, "event export failed",
			oops.Code("KAFKA_WRITE_FAILED").
				With("event_id", ev.EventID().String()).
				With("event_type", string(ev.EventType())).
				Wrap(err))
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return oops.Code("KAFKA_CLOSE_FAILED").Wrap(err)
	}
	return nil
}

func (p *Publisher) encode(ev event.Event) (kafkago.Message, error) {
	u := ev.Subject()
	if u == nil {
		return kafkago.Message{}, oops.Code("KAFKA_ENCODE_FAILED").
			With("event_type", string(ev.EventType())).
			Errorf("event has no subject")
	}

	data := payload{
		UUID:       u.UUID.String(),
		Name:       u.LastNickname,
		Registered: u.IsRegistered(),
	}
	if u.PremiumUUID != nil {
		data.PremiumUUID = u.PremiumUUID.String()
	}
	if sw, ok := ev.(event.PremiumLoginSwitch); ok {
		enabled := sw.Enabled
		data.Premium = &enabled
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return kafkago.Message{}, oops.Code("KAFKA_ENCODE_FAILED").Wrap(err)
	}

	env := envelope{
		ID:          ev.EventID().String(),
		Source:      p.source,
		SpecVersion: specVersion,
		Type:        "gatekeeper." + string(ev.EventType()),
		Time:        ev.OccurredAt(),
		Subject:     data.UUID,
		ContentType: "application/json",
		Data:        raw,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return kafkago.Message{}, oops.Code("KAFKA_ENCODE_FAILED").Wrap(err)
	}

	return kafkago.Message{
		Key:   []byte(data.UUID),
		Value: body,
		Headers: []kafkago.Header{
			{Key: "ce_id", Value: []byte(env.ID)},
			{Key: "ce_source", Value: []byte(env.Source)},
			{Key: "ce_specversion", Value: []byte(env.SpecVersion)},
			{Key: "ce_type", Value: []byte(env.Type)},
			{Key: "ce_time", Value: []byte(env.Time.Format(time.RFC3339Nano))},
		},
	}, nil
}

var _ event.Handler = (*Publisher)(nil)
