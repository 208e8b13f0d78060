package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	providerdomain "github.com/smallbiznis/smsrent/internal/provider/domain"
	"github.com/smallbiznis/smsrent/pkg/db/pagination"
)

const DefaultRentHours = 4

type RentOutcome string

const (
	RentCreated        RentOutcome = "created"
	RentExisting       RentOutcome = "existing"
	RentPartialSuccess RentOutcome = "partial_success"
)

type RentRequest struct {
	Provider  string `json:"provider" validate:"required"`
	Service   string `json:"service"`
	Country   string `json:"country"`
	Hours     int    `json:"hours" validate:"gte=0,lte=8760"`
	AutoRenew bool   `json:"auto_renew"`
}

// RentResult carries the stored row, or on partial_success the provider's
// raw answer plus where the recovery record was written.
type RentResult struct {
	Status      RentOutcome            `json:"status"`
	PhoneNumber *PhoneNumber           `json:"phone_number,omitempty"`
	Rental      *providerdomain.Rental `json:"rental,omitempty"`
	Raw         json.RawMessage        `json:"raw,omitempty"`
	RecoveryKey string                 `json:"recovery_key,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

type ListRequest struct {
	Provider  string
	Status    string
	Service   string
	Country   string
	PageToken string
	PageSize  int
}

type ListFilter struct {
	Provider string
	Status   Status
	Service  string
	Country  string
}

type ListResponse struct {
	pagination.PageInfo
	PhoneNumbers []PhoneNumber `json:"phone_numbers"`
}

// AppendResult reports which candidates were new.
type AppendResult struct {
	Inserted   []Message `json:"inserted"`
	Duplicates int       `json:"duplicates"`
}

type RenewReport struct {
	Renewed int      `json:"renewed"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

type Service interface {
	Rent(ctx context.Context, req RentRequest) (*RentResult, error)
	Get(ctx context.Context, id string) (*PhoneNumber, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Messages(ctx context.Context, id string) ([]Message, error)
	Cancel(ctx context.Context, id string) error
	Extend(ctx context.Context, id string, hours int) (*PhoneNumber, error)

	AppendMessages(ctx context.Context, number *PhoneNumber, candidates []providerdomain.Message, source MessageSource, policy DedupPolicy) (*AppendResult, error)
	ExpireDue(ctx context.Context, limit int) (int, error)
	RenewDue(ctx context.Context, window time.Duration, hours, limit int) (*RenewReport, error)
}

var (
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidProvider = errors.New("invalid_provider")
	ErrInvalidHours    = errors.New("invalid_hours")
	ErrInvalidStatus   = errors.New("invalid_status")
	ErrInvalidCursor   = errors.New("invalid_cursor")
	ErrNotFound        = errors.New("not_found")
	ErrNotActive       = errors.New("not_active")
	ErrPhoneExtraction = errors.New("phone_extraction_failed")
)
