package domain

import (
	"context"
	"errors"
	"time"

	phonedomain "github.com/smallbiznis/smsrent/internal/phonenumber/domain"
)

const (
	OutcomeSynced = "synced"
	OutcomeFailed = "failed"
)

// NumberResult is the outcome of reconciling one stored row.
type NumberResult struct {
	PhoneNumberID string                   `json:"phone_number_id"`
	PhoneNumber   string                   `json:"phone_number"`
	ExternalID    string                   `json:"external_id"`
	Outcome       string                   `json:"outcome"`
	State         string                   `json:"state,omitempty"`
	Resolved      bool                     `json:"resolved"`
	NewMessages   int                      `json:"new_messages"`
	Number        *phonedomain.PhoneNumber `json:"number,omitempty"`
	Messages      []phonedomain.Message    `json:"messages,omitempty"`
	Code          string                   `json:"code,omitempty"`
	Error         string                   `json:"error,omitempty"`
}

// SyncReport covers one batch run. A failed number never fails the run.
type SyncReport struct {
	RunID       string         `json:"run_id"`
	Provider    string         `json:"provider"`
	Total       int            `json:"total"`
	Synced      int            `json:"synced"`
	Failed      int            `json:"failed"`
	NewMessages int            `json:"new_messages"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Results     []NumberResult `json:"results"`
}

// Resolution compares a stored booking id against the provider's live list.
type Resolution struct {
	PhoneNumberID    string     `json:"phone_number_id"`
	PhoneNumber      string     `json:"phone_number"`
	StoredExternalID string     `json:"stored_external_id"`
	LiveExternalID   string     `json:"live_external_id,omitempty"`
	LiveOrderID      string     `json:"live_order_id,omitempty"`
	Active           bool       `json:"active"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	Found            bool       `json:"found"`
	Changed          bool       `json:"changed"`
}

type Service interface {
	SyncProvider(ctx context.Context, provider string) (*SyncReport, error)
	SyncNumber(ctx context.Context, id string) (*NumberResult, error)
	Resolve(ctx context.Context, id string) (*Resolution, error)
}

var ErrBookingNotFound = errors.New("booking_not_found")
