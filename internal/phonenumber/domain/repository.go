package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/smsrent/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, number *PhoneNumber) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PhoneNumber, error)
	FindByProviderNumber(ctx context.Context, db *gorm.DB, provider, phoneNumber string) (*PhoneNumber, error)
	FindByExternalID(ctx context.Context, db *gorm.DB, provider, externalID string) (*PhoneNumber, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*PhoneNumber, error)
	ListActiveByProvider(ctx context.Context, db *gorm.DB, provider string) ([]*PhoneNumber, error)
	ListExpired(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*PhoneNumber, error)
	ListRenewable(ctx context.Context, db *gorm.DB, now, until time.Time, limit int) ([]*PhoneNumber, error)
	UpdateIdentity(ctx context.Context, db *gorm.DB, id snowflake.ID, update IdentityUpdate) error
	UpdateRental(ctx context.Context, db *gorm.DB, number *PhoneNumber) error
	MarkChecked(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time, endDate *time.Time) error
	MarkExpired(ctx context.Context, db *gorm.DB, ids []snowflake.ID, at time.Time) (int64, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	ListMessages(ctx context.Context, db *gorm.DB, phoneNumberID snowflake.ID) ([]*Message, error)
	InsertMessages(ctx context.Context, db *gorm.DB, messages []*Message) error
}

// IdentityUpdate repairs a row whose stored provider ids went stale.
type IdentityUpdate struct {
	ExternalID string
	OrderID    *string
	Status     Status
	EndDate    *time.Time
	UpdatedAt  time.Time
}
