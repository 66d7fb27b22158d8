package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fyrsmithlabs/stagehand/internal/config"
)

// Publisher broadcasts session history events.
type Publisher interface {
	Publish(ctx context.Context, s *Session, ev Event) error
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *Session, Event) error { return nil }

// EventMessage is the JSON body published for each event.
type EventMessage struct {
	SessionID string         `json:"session_id"`
	OwnerID   string         `json:"owner_id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// NATSPublisher publishes events to
//
//	{prefix}.{owner_id}.{session_id}.{event_type}
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSPublisher creates a publisher on nc.
func NewNATSPublisher(nc *nats.Conn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = "stagehand.sessions"
	}
	return &NATSPublisher{nc: nc, prefix: prefix}
}

// Subject returns the subject an event for s is published on.
func (p *NATSPublisher) Subject(s *Session, t EventType) string {
	return fmt.Sprintf("%s.%s.%s.%s", p.prefix, subjectToken(s.OwnerID), subjectToken(s.ID), subjectToken(string(t)))
}

func (p *NATSPublisher) Publish(_ context.Context, s *Session, ev Event) error {
	data, err := json.Marshal(EventMessage{
		SessionID: s.ID,
		OwnerID:   s.OwnerID,
		Type:      ev.Type,
		Timestamp: ev.Timestamp,
		Payload:   ev.Payload,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(p.Subject(s, ev.Type), data); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	return nil
}

// subjectToken replaces characters NATS treats as separators or wildcards.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}

// DialNATS connects to the broker described by cfg.
func DialNATS(cfg config.EventsConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("stagehand"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
	}
	if cfg.NATSToken.IsSet() {
		opts = append(opts, nats.Token(cfg.NATSToken.Value()))
	}
	nc, err := nats.Connect(cfg.NATSURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", cfg.NATSURL, err)
	}
	return nc, nil
}
