package domain

import (
	"encoding/json"
	"time"
)

const (
	ProviderSMSActivate = "sms_activate"
	ProviderSMSPVA      = "smspva"
	ProviderAnosim      = "anosim"
	ProviderGoGetSMS    = "gogetsms"
)

type Mode string

const (
	ModeRent       Mode = "rent"
	ModeActivation Mode = "activation"
)

func ParseMode(raw string) (Mode, bool) {
	switch Mode(raw) {
	case "", ModeRent:
		return ModeRent, true
	case ModeActivation:
		return ModeActivation, true
	default:
		return "", false
	}
}

type CatalogSource string

const (
	CatalogSourceLive     CatalogSource = "live"
	CatalogSourceFallback CatalogSource = "fallback"
)

type CatalogRequest struct {
	Mode    Mode
	Country string
}

type Catalog struct {
	Provider  string           `json:"provider"`
	Mode      Mode             `json:"mode"`
	Source    CatalogSource    `json:"source"`
	Countries []CatalogCountry `json:"countries"`
	FetchedAt time.Time        `json:"fetched_at"`
}

type CatalogCountry struct {
	Code         string           `json:"code"`
	ProviderCode string           `json:"provider_code"`
	Name         string           `json:"name,omitempty"`
	Services     []CatalogService `json:"services"`
}

type CatalogService struct {
	Code         string  `json:"code"`
	ProviderCode string  `json:"provider_code"`
	Name         string  `json:"name,omitempty"`
	Cost         float64 `json:"cost"`
	Currency     string  `json:"currency"`
	Available    int     `json:"available"`
}

type RentRequest struct {
	Service string
	Country string
	Hours   int
}

// Rental is the normalized result of a rent or extend call.
type Rental struct {
	PhoneNumber string          `json:"phone_number"`
	RentID      string          `json:"rent_id"`
	OrderID     string          `json:"order_id,omitempty"`
	Service     string          `json:"service"`
	Country     string          `json:"country"`
	Cost        float64         `json:"cost"`
	Currency    string          `json:"currency"`
	EndDate     *time.Time      `json:"end_date,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

type RentalState string

const (
	StateActive    RentalState = "active"
	StateWaiting   RentalState = "waiting"
	StateFinished  RentalState = "finished"
	StateCancelled RentalState = "cancelled"
	StateUnknown   RentalState = "unknown"
)

type RentalStatus struct {
	State    RentalState `json:"state"`
	EndDate  *time.Time  `json:"end_date,omitempty"`
	Messages []Message   `json:"messages"`
}

type Message struct {
	Sender     string    `json:"sender"`
	Text       string    `json:"message"`
	ReceivedAt time.Time `json:"received_at"`
}

// Booking is one live rental as reported by the provider's active list.
type Booking struct {
	ExternalID  string     `json:"external_id"`
	OrderID     string     `json:"order_id,omitempty"`
	PhoneNumber string     `json:"phone_number"`
	Active      bool       `json:"active"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

type InboundSMS struct {
	Provider    string
	ExternalID  string
	PhoneNumber string
	Sender      string
	Text        string
	ReceivedAt  time.Time
	Raw         json.RawMessage
}
