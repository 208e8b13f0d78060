package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/smsrent/internal/phonenumber/domain"
	"github.com/smallbiznis/smsrent/pkg/db/pagination"
	"gorm.io/gorm"
)

const numberColumns = `id, phone_number, provider, external_id, order_id, service, country, status,
	cost, currency, end_date, auto_renew, last_checked_at, raw_response, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, n *domain.PhoneNumber) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO phone_numbers (`+numberColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID,
		n.PhoneNumber,
		n.Provider,
		n.ExternalID,
		n.OrderID,
		n.Service,
		n.Country,
		n.Status,
		n.Cost,
		n.Currency,
		n.EndDate,
		n.AutoRenew,
		n.LastCheckedAt,
		n.RawResponse,
		n.CreatedAt,
		n.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PhoneNumber, error) {
	return r.findOne(ctx, db, `SELECT `+numberColumns+` FROM phone_numbers WHERE id = ?`, id)
}

func (r *repo) FindByProviderNumber(ctx context.Context, db *gorm.DB, provider, phoneNumber string) (*domain.PhoneNumber, error) {
	return r.findOne(ctx, db,
		`SELECT `+numberColumns+` FROM phone_numbers WHERE provider = ? AND phone_number = ?`,
		provider, phoneNumber,
	)
}

func (r *repo) FindByExternalID(ctx context.Context, db *gorm.DB, provider, externalID string) (*domain.PhoneNumber, error) {
	return r.findOne(ctx, db,
		`SELECT `+numberColumns+` FROM phone_numbers WHERE provider = ? AND external_id = ?
		 ORDER BY created_at DESC LIMIT 1`,
		provider, externalID,
	)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.PhoneNumber, error) {
	var number domain.PhoneNumber
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&number).Error; err != nil {
		return nil, err
	}
	if number.ID == 0 {
		return nil, nil
	}
	return &number, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.PhoneNumber, error) {
	stmt := db.WithContext(ctx).Model(&domain.PhoneNumber{})
	if filter.Provider != "" {
		stmt = stmt.Where("provider = ?", filter.Provider)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Service != "" {
		stmt = stmt.Where("service = ?", filter.Service)
	}
	if filter.Country != "" {
		stmt = stmt.Where("country = ?", filter.Country)
	}
	if page.PageToken != "" {
		createdAt, id, err := decodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("(created_at < ? OR (created_at = ? AND id < ?))", createdAt, createdAt, id)
	}

	var numbers []*domain.PhoneNumber
	err := stmt.
		Order("created_at desc, id desc").
		Limit(page.Limit() + 1).
		Find(&numbers).Error
	if err != nil {
		return nil, err
	}
	return numbers, nil
}

func decodeCursor(token string) (time.Time, int64, error) {
	cursor, err := pagination.DecodeCursor(token)
	if err != nil {
		return time.Time{}, 0, domain.ErrInvalidCursor
	}
	createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
	if err != nil {
		return time.Time{}, 0, domain.ErrInvalidCursor
	}
	id, err := strconv.ParseInt(cursor.ID, 10, 64)
	if err != nil {
		return time.Time{}, 0, domain.ErrInvalidCursor
	}
	return createdAt.UTC(), id, nil
}

func (r *repo) ListActiveByProvider(ctx context.Context, db *gorm.DB, provider string) ([]*domain.PhoneNumber, error) {
	var numbers []*domain.PhoneNumber
	err := db.WithContext(ctx).Raw(
		`SELECT `+numberColumns+` FROM phone_numbers
		 WHERE provider = ? AND status = ?
		 ORDER BY id`,
		provider, domain.StatusActive,
	).Scan(&numbers).Error
	if err != nil {
		return nil, err
	}
	return numbers, nil
}

func (r *repo) ListExpired(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*domain.PhoneNumber, error) {
	var numbers []*domain.PhoneNumber
	err := db.WithContext(ctx).Raw(
		`SELECT `+numberColumns+` FROM phone_numbers
		 WHERE status = ? AND end_date IS NOT NULL AND end_date <= ?
		 ORDER BY end_date
		 LIMIT ?`,
		domain.StatusActive, now, limit,
	).Scan(&numbers).Error
	if err != nil {
		return nil, err
	}
	return numbers, nil
}

func (r *repo) ListRenewable(ctx context.Context, db *gorm.DB, now, until time.Time, limit int) ([]*domain.PhoneNumber, error) {
	var numbers []*domain.PhoneNumber
	err := db.WithContext(ctx).Raw(
		`SELECT `+numberColumns+` FROM phone_numbers
		 WHERE status = ? AND auto_renew = ? AND end_date IS NOT NULL AND end_date > ? AND end_date <= ?
		 ORDER BY end_date
		 LIMIT ?`,
		domain.StatusActive, true, now, until, limit,
	).Scan(&numbers).Error
	if err != nil {
		return nil, err
	}
	return numbers, nil
}

func (r *repo) UpdateIdentity(ctx context.Context, db *gorm.DB, id snowflake.ID, u domain.IdentityUpdate) error {
	return db.WithContext(ctx).Exec(
		`UPDATE phone_numbers
		 SET external_id = ?, order_id = ?, status = ?, end_date = COALESCE(?, end_date), updated_at = ?
		 WHERE id = ?`,
		u.ExternalID, u.OrderID, u.Status, u.EndDate, u.UpdatedAt, id,
	).Error
}

func (r *repo) UpdateRental(ctx context.Context, db *gorm.DB, n *domain.PhoneNumber) error {
	return db.WithContext(ctx).Exec(
		`UPDATE phone_numbers
		 SET status = ?, cost = ?, currency = ?, end_date = ?, auto_renew = ?, raw_response = ?, updated_at = ?
		 WHERE id = ?`,
		n.Status, n.Cost, n.Currency, n.EndDate, n.AutoRenew, n.RawResponse, n.UpdatedAt, n.ID,
	).Error
}

// MarkChecked always advances last_checked_at; endDate only overwrites when known.
func (r *repo) MarkChecked(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time, endDate *time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE phone_numbers
		 SET last_checked_at = ?, end_date = COALESCE(?, end_date), updated_at = ?
		 WHERE id = ?`,
		at, endDate, at, id,
	).Error
}

func (r *repo) MarkExpired(ctx context.Context, db *gorm.DB, ids []snowflake.ID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE phone_numbers SET status = ?, updated_at = ? WHERE status = ? AND id IN ?`,
		domain.StatusExpired, at, domain.StatusActive, ids,
	)
	return res.RowsAffected, res.Error
}

// Delete removes the number and its messages. phone_messages cascades on
// postgres; the explicit delete covers dialects without enforced foreign keys.
func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM phone_messages WHERE phone_number_id = ?`, id).Error; err != nil {
			return err
		}
		return tx.Exec(`DELETE FROM phone_numbers WHERE id = ?`, id).Error
	})
}

func (r *repo) ListMessages(ctx context.Context, db *gorm.DB, phoneNumberID snowflake.ID) ([]*domain.Message, error) {
	var messages []*domain.Message
	err := db.WithContext(ctx).Raw(
		`SELECT id, phone_number_id, sender, message, received_at, source, created_at
		 FROM phone_messages
		 WHERE phone_number_id = ?
		 ORDER BY received_at DESC, id DESC`,
		phoneNumberID,
	).Scan(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// InsertMessages writes all rows in one statement.
func (r *repo) InsertMessages(ctx context.Context, db *gorm.DB, messages []*domain.Message) error {
	if len(messages) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO phone_messages (id, phone_number_id, sender, message, received_at, source, created_at) VALUES `)
	args := make([]any, 0, len(messages)*7)
	for i, m := range messages {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, m.ID, m.PhoneNumberID, m.Sender, m.Message, m.ReceivedAt, m.Source, m.CreatedAt)
	}
	return db.WithContext(ctx).Exec(sb.String(), args...).Error
}
