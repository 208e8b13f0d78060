package domain

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Adapter translates the normalized rental operations into one provider's
// HTTP protocol. Adapters never touch the database.
type Adapter interface {
	Provider() string
	GetServicesAndCountries(ctx context.Context, req CatalogRequest) (*Catalog, error)
	RentNumber(ctx context.Context, req RentRequest) (*Rental, error)
	GetStatus(ctx context.Context, externalID string) (*RentalStatus, error)
	Cancel(ctx context.Context, externalID string) error
	Extend(ctx context.Context, externalID string, hours int) (*Rental, error)
	ListActive(ctx context.Context) ([]Booking, error)
	Mapping() Mapping
}

// WebhookParser is implemented by adapters that accept pushed SMS.
type WebhookParser interface {
	ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*InboundSMS, error)
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (Adapter, error)
}

// Limiter blocks until the caller may issue an outbound request.
type Limiter interface {
	Wait(ctx context.Context) error
}

// CallObserver receives one record per outbound provider call. code is empty
// on success.
type CallObserver interface {
	ObserveProviderCall(ctx context.Context, provider, operation, code string, elapsed time.Duration)
}

type AdapterConfig struct {
	APIKey        string
	BaseURL       string
	Timeout       time.Duration
	WebhookSecret string

	HTTPClient   *http.Client
	Limiter      Limiter
	Observer     CallObserver
	MaxAttempts  uint
	RetryInitial time.Duration
	Logger       *zap.Logger
}

// Directory hands out the configured adapter for a provider name.
type Directory interface {
	Providers() []string
	Adapter(provider string) (Adapter, error)
}
