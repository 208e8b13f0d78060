package domain

import (
	"context"
	"errors"
	"net/http"

	providerdomain "github.com/smallbiznis/smsrent/internal/provider/domain"
)

const (
	OutcomeStored    = "stored"
	OutcomeDuplicate = "duplicate"
	OutcomeUnmatched = "unmatched"
	OutcomeIgnored   = "ignored"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "failed"
)

// InboundRequest is the provider-neutral webhook body.
type InboundRequest struct {
	Provider    string `json:"provider" validate:"required"`
	ExternalID  string `json:"external_id"`
	PhoneNumber string `json:"phone_number"`
	Sender      string `json:"sender"`
	Message     string `json:"message" validate:"required"`
	ReceivedAt  string `json:"received_at"`
}

// Result is always returned with HTTP 200; Outcome tells the caller what
// happened to the SMS.
type Result struct {
	Outcome       string `json:"outcome"`
	Provider      string `json:"provider,omitempty"`
	PhoneNumberID string `json:"phone_number_id,omitempty"`
	MessageID     string `json:"message_id,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Parsers hands out the webhook decoder of a provider.
type Parsers interface {
	WebhookParser(provider string) (providerdomain.WebhookParser, error)
}

type Service interface {
	Ingest(ctx context.Context, provider string, payload []byte, headers http.Header) Result
	IngestGeneric(ctx context.Context, payload []byte) Result
}

var ErrNumberNotFound = errors.New("phone_number_not_found")
