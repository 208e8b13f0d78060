package events

import (
	"context"
	"strings"
	"time"
)

const (
	SubjectSMSReceived          = "sms.received"
	SubjectRentalPartialSuccess = "rental.partial_success"
)

// Publisher emits domain events. Publishing is fire-and-forget from the
// caller's point of view: failures are returned for logging, never retried.
type Publisher interface {
	Publish(ctx context.Context, subject string, event Event) error
}

// Event is the JSON envelope written to the broker.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Provider   string         `json:"provider,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data"`
}

// SMSReceivedSubject is sms.received.<provider>.
func SMSReceivedSubject(provider string) string {
	return SubjectSMSReceived + "." + strings.ToLower(strings.TrimSpace(provider))
}

type nopPublisher struct{}

// NewNopPublisher drops every event.
func NewNopPublisher() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, string, Event) error { return nil }
