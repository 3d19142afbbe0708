package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/loandesk/loan-doc-processor/internal/core/domain"
)

// PipelineEvent is the audit record published after each completed
// application and each approved verification. Events are a side channel: a
// publish failure never fails the originating request.
type PipelineEvent struct {
	Kind           string    `json:"kind"`
	ApplicationID  string    `json:"application_id"`
	Filename       string    `json:"filename,omitempty"`
	DocumentCount  int       `json:"document_count,omitempty"`
	Recommendation string    `json:"recommendation,omitempty"`
	Degraded       bool      `json:"degraded,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

const (
	EventApplicationProcessed = "application_processed"
	EventVerificationApproved = "verification_approved"
)

type Stream struct {
	conn    *nats.Conn
	subject string
}

type Options struct {
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
}

func New(url, subject string) (*Stream, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Stream, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}

	conn, err := nats.Connect(
		url,
		nats.Name("loan-doc-processor"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("nats reconnected: %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Stream{conn: conn, subject: subject}, nil
}

func (s *Stream) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *Stream) PublishApplicationProcessed(_ context.Context, result domain.ApplicationResult) error {
	return s.publish(PipelineEvent{
		Kind:           EventApplicationProcessed,
		ApplicationID:  result.ApplicationID,
		DocumentCount:  len(result.DocumentResults),
		Recommendation: string(result.FinalSummary.FinalRecommendation),
		Degraded:       result.CrossValidation.Degraded || result.FinalSummary.Degraded,
		OccurredAt:     time.Now().UTC(),
	})
}

func (s *Stream) PublishVerificationApproved(_ context.Context, applicationID, filename string) error {
	return s.publish(PipelineEvent{
		Kind:          EventVerificationApproved,
		ApplicationID: applicationID,
		Filename:      filename,
		OccurredAt:    time.Now().UTC(),
	})
}

func (s *Stream) publish(event PipelineEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal pipeline event: %w", err)
	}
	if err := s.conn.Publish(s.subject, payload); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Subscribe delivers events to the handler until the context is cancelled.
func (s *Stream) Subscribe(ctx context.Context, handler func(context.Context, PipelineEvent) error) error {
	sub, err := s.conn.QueueSubscribe(s.subject, "audit-workers", func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		var event PipelineEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Printf("drop malformed pipeline event: %v", err)
			return
		}
		if err := handler(ctx, event); err != nil {
			log.Printf("event handler error for app=%s: %v", event.ApplicationID, err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := s.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := s.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
