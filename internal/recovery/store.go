package recovery

import (
	"context"
	"encoding/json"
	"time"
)

// Record is the durable trace of a rental the provider allocated but the
// database did not accept.
type Record struct {
	Provider    string          `json:"provider"`
	ExternalID  string          `json:"external_id"`
	OrderID     string          `json:"order_id,omitempty"`
	PhoneNumber string          `json:"phone_number"`
	Service     string          `json:"service"`
	Country     string          `json:"country"`
	Cost        float64         `json:"cost"`
	Currency    string          `json:"currency"`
	EndDate     *time.Time      `json:"end_date,omitempty"`
	Reason      string          `json:"reason"`
	Raw         json.RawMessage `json:"raw,omitempty"`
	RecordedAt  time.Time       `json:"recorded_at"`
}

// Store persists recovery records outside the primary database.
type Store interface {
	Save(ctx context.Context, rec Record) (key string, err error)
}

type nopStore struct{}

func NewNopStore() Store { return nopStore{} }

func (nopStore) Save(context.Context, Record) (string, error) { return "", nil }
