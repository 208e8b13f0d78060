package service

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/smsrent/internal/clock"
	"github.com/smallbiznis/smsrent/internal/config"
	"github.com/smallbiznis/smsrent/internal/events"
	phonedomain "github.com/smallbiznis/smsrent/internal/phonenumber/domain"
	"github.com/smallbiznis/smsrent/internal/phonenumber/phonenumbertest"
	phonerepo "github.com/smallbiznis/smsrent/internal/phonenumber/repository"
	phoneservice "github.com/smallbiznis/smsrent/internal/phonenumber/service"
	"github.com/smallbiznis/smsrent/internal/provider/adapters/anosim"
	providerdomain "github.com/smallbiznis/smsrent/internal/provider/domain"
	"github.com/smallbiznis/smsrent/internal/provider/providertest"
	"github.com/smallbiznis/smsrent/internal/recovery"
	"github.com/smallbiznis/smsrent/internal/reconcile/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const smsBody = `{"messages":[{"messageSender":"1234","messageText":"code 555","messageDate":"2024-01-01T00:00:00Z"}]}`

type fixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	svc   domain.Service
}

func newFixture(t *testing.T, mux *http.ServeMux) *fixture {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	adapter, err := anosim.NewFactory().NewAdapter(providerdomain.AdapterConfig{
		APIKey:       "ano-key",
		BaseURL:      srv.URL,
		Timeout:      time.Second,
		RetryInitial: time.Millisecond,
	})
	require.NoError(t, err)

	db := phonenumbertest.OpenDB(t)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	dir := providertest.NewDirectory(adapter)
	repo := phonerepo.Provide()

	numbers := phoneservice.New(phoneservice.Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Repo:      repo,
		Providers: dir,
		Events:    events.NewNopPublisher(),
		Recovery:  recovery.NewNopStore(),
	})

	cfg := config.Config{Sync: config.SyncConfig{Concurrency: 2}}
	return &fixture{
		db:    db,
		node:  node,
		clock: clk,
		svc: New(Params{
			DB:        db,
			Log:       zap.NewNop(),
			Cfg:       cfg,
			Clock:     clk,
			Repo:      repo,
			Numbers:   numbers,
			Providers: dir,
		}),
	}
}

func (f *fixture) seed(t *testing.T, phone, externalID string) *phonedomain.PhoneNumber {
	t.Helper()
	end := f.clock.Now().Add(4 * time.Hour)
	n := &phonedomain.PhoneNumber{
		ID:          f.node.Generate(),
		PhoneNumber: phone,
		Provider:    providerdomain.ProviderAnosim,
		ExternalID:  externalID,
		Service:     "other",
		Country:     "de",
		Status:      phonedomain.StatusActive,
		EndDate:     &end,
		CreatedAt:   f.clock.Now(),
		UpdatedAt:   f.clock.Now(),
	}
	phonenumbertest.Seed(t, f.db, n)
	return n
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func bookingHandler(id, phone string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id":`+id+`,"orderId":9001,"number":"`+phone+`","endDate":"2024-01-02T00:00:00Z","state":"Active"}`)
	}
}

func TestSyncProviderStoresNewMessagesOnce(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/OrderBookings/4892693", bookingHandler("4892693", "+4915112345678"))
	mux.HandleFunc("/api/v1/Sms/4892693", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, smsBody)
	})
	f := newFixture(t, mux)
	n := f.seed(t, "+4915112345678", "4892693")

	report, err := f.svc.SyncProvider(context.Background(), "anosim")
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Synced)
	assert.Equal(t, 1, report.NewMessages)
	require.Len(t, report.Results, 1)
	assert.Equal(t, 1, report.Results[0].NewMessages)

	var stored []phonedomain.Message
	require.NoError(t, f.db.Raw(`SELECT id, phone_number_id, sender, message, received_at, source, created_at FROM phone_messages`).Scan(&stored).Error)
	require.Len(t, stored, 1)
	assert.Equal(t, "1234", stored[0].Sender)
	assert.Equal(t, "code 555", stored[0].Message)
	assert.Equal(t, n.ID, stored[0].PhoneNumberID)
	assert.Equal(t, phonedomain.SourceAPI, stored[0].Source)

	report, err = f.svc.SyncProvider(context.Background(), "anosim")
	require.NoError(t, err)
	assert.Equal(t, 0, report.NewMessages)
	assert.EqualValues(t, 1, phonenumbertest.CountMessages(t, f.db, int64(n.ID)))

	var checked sql.NullTime
	require.NoError(t, f.db.Raw(`SELECT last_checked_at FROM phone_numbers WHERE id = ?`, n.ID).Scan(&checked).Error)
	assert.True(t, checked.Valid)
}

func TestSyncProviderIsolatesFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/OrderBookings/111", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"message":"invalid api key"}`)
	})
	mux.HandleFunc("/api/v1/OrderBookings/222", bookingHandler("222", "+4915100000222"))
	mux.HandleFunc("/api/v1/Sms/222", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, smsBody)
	})
	f := newFixture(t, mux)
	a := f.seed(t, "+4915100000111", "111")
	b := f.seed(t, "+4915100000222", "222")

	report, err := f.svc.SyncProvider(context.Background(), "anosim")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Synced)
	assert.Equal(t, 1, report.Failed)

	byID := map[string]domain.NumberResult{}
	for _, r := range report.Results {
		byID[r.PhoneNumberID] = r
	}
	assert.Equal(t, domain.OutcomeFailed, byID[a.ID.String()].Outcome)
	assert.Equal(t, string(providerdomain.CodeBadKey), byID[a.ID.String()].Code)
	assert.Equal(t, domain.OutcomeSynced, byID[b.ID.String()].Outcome)
	assert.Equal(t, 1, byID[b.ID.String()].NewMessages)
	assert.EqualValues(t, 0, phonenumbertest.CountMessages(t, f.db, int64(a.ID)))
	assert.EqualValues(t, 1, phonenumbertest.CountMessages(t, f.db, int64(b.ID)))
}

func TestSyncNumberRepairsStaleBookingID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/OrderBookings/555", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"title":"Not Found"}`)
	})
	mux.HandleFunc("/api/v1/OrderBookings", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"id":4892693,"orderId":9001,"number":"4915112345678","endDate":"2024-01-02T00:00:00Z","state":"Active"}]`)
	})
	mux.HandleFunc("/api/v1/OrderBookings/4892693", bookingHandler("4892693", "+4915112345678"))
	mux.HandleFunc("/api/v1/Sms/4892693", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, smsBody)
	})
	f := newFixture(t, mux)
	n := f.seed(t, "+4915112345678", "555")

	res, err := f.svc.SyncNumber(context.Background(), n.ID.String())
	require.NoError(t, err)
	assert.True(t, res.Resolved)
	assert.Equal(t, domain.OutcomeSynced, res.Outcome)
	assert.Equal(t, "4892693", res.ExternalID)
	assert.Equal(t, 1, res.NewMessages)
	require.Len(t, res.Messages, 1)
	require.NotNil(t, res.Number)
	assert.Equal(t, "4892693", res.Number.ExternalID)
	require.NotNil(t, res.Number.OrderID)
	assert.Equal(t, "9001", *res.Number.OrderID)
}

func TestResolveReportsUnchangedBooking(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/OrderBookings", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"data":[{"id":77,"orderId":1,"number":"4915100000077","state":"Active"}]}`)
	})
	f := newFixture(t, mux)
	n := f.seed(t, "+4915100000077", "77")
	require.NoError(t, f.db.Exec(`UPDATE phone_numbers SET order_id = ? WHERE id = ?`, "1", n.ID).Error)

	res, err := f.svc.Resolve(context.Background(), n.ID.String())
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.False(t, res.Changed)
	assert.Equal(t, "77", res.LiveExternalID)

	missing := f.seed(t, "+4915100000099", "99")
	res, err = f.svc.Resolve(context.Background(), missing.ID.String())
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestSyncProviderRejectsUnknownProvider(t *testing.T) {
	f := newFixture(t, http.NewServeMux())
	_, err := f.svc.SyncProvider(context.Background(), "nope")
	assert.ErrorIs(t, err, providerdomain.ErrProviderNotFound)
}
