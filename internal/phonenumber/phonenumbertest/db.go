// Package phonenumbertest opens an in-memory SQLite database carrying the
// phone_numbers and phone_messages schema.
package phonenumbertest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/smsrent/internal/phonenumber/domain"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

const schema = `
CREATE TABLE phone_numbers (
	id INTEGER PRIMARY KEY,
	phone_number TEXT NOT NULL,
	provider TEXT NOT NULL,
	external_id TEXT NOT NULL,
	order_id TEXT,
	service TEXT NOT NULL,
	country TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	cost REAL NOT NULL DEFAULT 0,
	currency TEXT NOT NULL DEFAULT '',
	end_date DATETIME,
	auto_renew BOOLEAN NOT NULL DEFAULT 0,
	last_checked_at DATETIME,
	raw_response TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE (provider, phone_number)
);
CREATE TABLE phone_messages (
	id INTEGER PRIMARY KEY,
	phone_number_id INTEGER NOT NULL REFERENCES phone_numbers (id) ON DELETE CASCADE,
	sender TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL,
	received_at DATETIME NOT NULL,
	source TEXT NOT NULL DEFAULT 'api',
	created_at DATETIME NOT NULL
);
CREATE INDEX idx_phone_messages_number_sender ON phone_messages (phone_number_id, sender);
`

// OpenDB returns a fresh database per call.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared&_loc=auto", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

// Seed inserts number as-is.
func Seed(t testing.TB, db *gorm.DB, number *domain.PhoneNumber) {
	t.Helper()
	if err := db.Create(number).Error; err != nil {
		t.Fatalf("seed phone number: %v", err)
	}
}

// CountMessages returns the stored message count for a phone number id.
func CountMessages(t testing.TB, db *gorm.DB, phoneNumberID int64) int64 {
	t.Helper()
	var n int64
	if err := db.Raw(`SELECT COUNT(*) FROM phone_messages WHERE phone_number_id = ?`, phoneNumberID).Scan(&n).Error; err != nil {
		t.Fatalf("count messages: %v", err)
	}
	return n
}
