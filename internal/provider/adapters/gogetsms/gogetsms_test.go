package gogetsms

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smallbiznis/smsrent/internal/provider/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestAdapter(t *testing.T, handler http.HandlerFunc, secret string) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	adapter, err := NewFactory().NewAdapter(domain.AdapterConfig{
		APIKey:        "gg-key",
		BaseURL:       srv.URL,
		WebhookSecret: secret,
		Timeout:       time.Second,
		RetryInitial:  time.Millisecond,
	})
	require.NoError(t, err)
	a := adapter.(*Adapter)
	a.now = func() time.Time { return fixedNow }
	return a
}

func TestRentNumberParsesAccessNumber(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "getNumber", q.Get("action"))
		assert.Equal(t, "tg", q.Get("service"))
		assert.Equal(t, "43", q.Get("country"))
		_, _ = w.Write([]byte("ACCESS_NUMBER:555001:4915112345678"))
	}, "")

	rental, err := a.RentNumber(context.Background(), domain.RentRequest{Service: "telegram", Country: "xx"})
	require.NoError(t, err)
	assert.Equal(t, "555001", rental.RentID)
	assert.Equal(t, "4915112345678", rental.PhoneNumber)
	assert.Equal(t, "de", rental.Country)
	assert.Equal(t, fixedNow.Add(20*time.Minute), *rental.EndDate)
}

func TestRentNumberSentinels(t *testing.T) {
	cases := map[string]domain.ErrorCode{
		"NO_NUMBERS":       domain.CodeNoNumbers,
		"NO_BALANCE":       domain.CodeNoBalance,
		"BAD_KEY":          domain.CodeBadKey,
		"ACCESS_NUMBER:12": domain.CodeUnexpectedResponse,
		"SOMETHING_ELSE":   domain.CodeUnexpectedResponse,
	}
	for body, want := range cases {
		t.Run(body, func(t *testing.T) {
			a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}, "")
			_, err := a.RentNumber(context.Background(), domain.RentRequest{Service: "other"})
			assert.Equal(t, want, domain.CodeOf(err))
		})
	}
}

func TestGetStatusTokens(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("id") {
		case "wait":
			_, _ = w.Write([]byte("STATUS_WAIT_CODE"))
		case "ok":
			_, _ = w.Write([]byte("STATUS_OK:48213"))
		case "cancel":
			_, _ = w.Write([]byte("STATUS_CANCEL"))
		default:
			_, _ = w.Write([]byte("NO_ACTIVATION"))
		}
	}, "")

	status, err := a.GetStatus(context.Background(), "wait")
	require.NoError(t, err)
	assert.Equal(t, domain.StateWaiting, status.State)
	assert.Empty(t, status.Messages)

	status, err = a.GetStatus(context.Background(), "ok")
	require.NoError(t, err)
	require.Len(t, status.Messages, 1)
	assert.Equal(t, "48213", status.Messages[0].Text)

	status, err = a.GetStatus(context.Background(), "cancel")
	require.NoError(t, err)
	assert.Equal(t, domain.StateCancelled, status.State)

	_, err = a.GetStatus(context.Background(), "missing")
	assert.Equal(t, domain.CodeNotFound, domain.CodeOf(err))
}

func TestCancelAndExtend(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "8", r.URL.Query().Get("status"))
		if r.URL.Query().Get("id") == "again" {
			_, _ = w.Write([]byte("ACCESS_CANCEL_ALREADY"))
			return
		}
		_, _ = w.Write([]byte("ACCESS_CANCEL"))
	}, "")

	require.NoError(t, a.Cancel(context.Background(), "555001"))
	assert.Equal(t, domain.CodeAlreadyCancelled, domain.CodeOf(a.Cancel(context.Background(), "again")))

	_, err := a.Extend(context.Background(), "555001", 4)
	assert.Equal(t, domain.CodeUnsupported, domain.CodeOf(err))
}

func TestListActive(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":[{"activationId":555001,"phoneNumber":"+4915112345678","activationStatus":"4","activationTime":"2024-03-01 11:50:00"}]}`))
	}, "")
	bookings, err := a.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, "555001", bookings[0].ExternalID)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 10, 0, 0, time.UTC), *bookings[0].EndDate)
}

func TestParseWebhook(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {}, "whsec")
	payload := []byte(`{"activationId":"555001","phoneNumber":"4915112345678","sender":"Telegram","text":"Code 48213","receivedAt":"2024-03-01T12:01:00Z"}`)

	mac := hmac.New(sha256.New, []byte("whsec"))
	_, _ = mac.Write(payload)
	headers := http.Header{}
	headers.Set("X-Signature", hex.EncodeToString(mac.Sum(nil)))

	sms, err := a.ParseWebhook(context.Background(), payload, headers)
	require.NoError(t, err)
	assert.Equal(t, "555001", sms.ExternalID)
	assert.Equal(t, "Telegram", sms.Sender)
	assert.Equal(t, "Code 48213", sms.Text)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 1, 0, 0, time.UTC), sms.ReceivedAt)

	headers.Set("X-Signature", "deadbeef")
	_, err = a.ParseWebhook(context.Background(), payload, headers)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestParseWebhookRejectsBadPayload(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {}, "")

	_, err := a.ParseWebhook(context.Background(), []byte(`not json`), http.Header{})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	_, err = a.ParseWebhook(context.Background(), []byte(`{"activationId":"1"}`), http.Header{})
	assert.ErrorIs(t, err, domain.ErrEventIgnored)
}
