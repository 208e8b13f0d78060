package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
)

type MessageSource string

const (
	SourceAPI     MessageSource = "api"
	SourceWebhook MessageSource = "webhook"
)

// PhoneNumber is one rented number. Rows are deleted on cancel.
type PhoneNumber struct {
	ID            snowflake.ID   `gorm:"primaryKey" json:"id"`
	PhoneNumber   string         `gorm:"not null" json:"phone_number"`
	Provider      string         `gorm:"not null" json:"provider"`
	ExternalID    string         `gorm:"not null" json:"external_id"`
	OrderID       *string        `json:"order_id,omitempty"`
	Service       string         `gorm:"not null" json:"service"`
	Country       string         `gorm:"not null" json:"country"`
	Status        Status         `gorm:"not null" json:"status"`
	Cost          float64        `json:"cost"`
	Currency      string         `json:"currency"`
	EndDate       *time.Time     `json:"end_date,omitempty"`
	AutoRenew     bool           `gorm:"not null" json:"auto_renew"`
	LastCheckedAt *time.Time     `json:"last_checked_at,omitempty"`
	RawResponse   datatypes.JSON `gorm:"type:jsonb" json:"raw_response,omitempty"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
}

func (PhoneNumber) TableName() string { return "phone_numbers" }

type Message struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	PhoneNumberID snowflake.ID  `gorm:"not null" json:"phone_number_id"`
	Sender        string        `json:"sender"`
	Message       string        `gorm:"not null" json:"message"`
	ReceivedAt    time.Time     `gorm:"not null" json:"received_at"`
	Source        MessageSource `gorm:"not null" json:"source"`
	CreatedAt     time.Time     `gorm:"not null" json:"created_at"`
}

func (Message) TableName() string { return "phone_messages" }
