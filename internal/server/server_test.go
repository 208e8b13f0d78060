package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/smsrent/internal/clock"
	"github.com/smallbiznis/smsrent/internal/config"
	"github.com/smallbiznis/smsrent/internal/observability"
	phonedomain "github.com/smallbiznis/smsrent/internal/phonenumber/domain"
	providerdomain "github.com/smallbiznis/smsrent/internal/provider/domain"
	"github.com/smallbiznis/smsrent/internal/provider/providertest"
	providerservice "github.com/smallbiznis/smsrent/internal/provider/service"
	"github.com/smallbiznis/smsrent/internal/ratelimit"
	reconciledomain "github.com/smallbiznis/smsrent/internal/reconcile/domain"
	webhookdomain "github.com/smallbiznis/smsrent/internal/webhook/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeNumbers struct {
	phonedomain.Service
	mock.Mock
}

func (f *fakeNumbers) Rent(ctx context.Context, req phonedomain.RentRequest) (*phonedomain.RentResult, error) {
	args := f.Called(req)
	if v := args.Get(0); v != nil {
		return v.(*phonedomain.RentResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (f *fakeNumbers) List(ctx context.Context, req phonedomain.ListRequest) (phonedomain.ListResponse, error) {
	args := f.Called(req)
	return args.Get(0).(phonedomain.ListResponse), args.Error(1)
}

func (f *fakeNumbers) Messages(ctx context.Context, id string) ([]phonedomain.Message, error) {
	args := f.Called(id)
	if v := args.Get(0); v != nil {
		return v.([]phonedomain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (f *fakeNumbers) Cancel(ctx context.Context, id string) error {
	return f.Called(id).Error(0)
}

func (f *fakeNumbers) Extend(ctx context.Context, id string, hours int) (*phonedomain.PhoneNumber, error) {
	args := f.Called(id, hours)
	if v := args.Get(0); v != nil {
		return v.(*phonedomain.PhoneNumber), args.Error(1)
	}
	return nil, args.Error(1)
}

type fakeReconcile struct {
	mock.Mock
}

func (f *fakeReconcile) SyncProvider(ctx context.Context, provider string) (*reconciledomain.SyncReport, error) {
	args := f.Called(provider)
	if v := args.Get(0); v != nil {
		return v.(*reconciledomain.SyncReport), args.Error(1)
	}
	return nil, args.Error(1)
}

func (f *fakeReconcile) SyncNumber(ctx context.Context, id string) (*reconciledomain.NumberResult, error) {
	args := f.Called(id)
	if v := args.Get(0); v != nil {
		return v.(*reconciledomain.NumberResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (f *fakeReconcile) Resolve(ctx context.Context, id string) (*reconciledomain.Resolution, error) {
	args := f.Called(id)
	if v := args.Get(0); v != nil {
		return v.(*reconciledomain.Resolution), args.Error(1)
	}
	return nil, args.Error(1)
}

type fakeWebhooks struct {
	mock.Mock
}

func (f *fakeWebhooks) Ingest(ctx context.Context, provider string, payload []byte, headers http.Header) webhookdomain.Result {
	return f.Called(provider, string(payload)).Get(0).(webhookdomain.Result)
}

func (f *fakeWebhooks) IngestGeneric(ctx context.Context, payload []byte) webhookdomain.Result {
	return f.Called(string(payload)).Get(0).(webhookdomain.Result)
}

type testServer struct {
	engine    *gin.Engine
	adapter   *providertest.MockAdapter
	numbers   *fakeNumbers
	reconcile *fakeReconcile
	webhooks  *fakeWebhooks
}

func newTestServer(t *testing.T, env string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	adapter := providertest.NewMockAdapter(providerdomain.ProviderAnosim)
	providers := providerservice.NewWithAdapters(
		zap.NewNop(),
		clock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		config.NewStaticCatalogConfigHolder(config.ProviderCatalogConfig{}),
		nil,
		adapter,
	)

	ts := &testServer{
		engine:    NewEngine(observability.Config{Environment: env}, nil),
		adapter:   adapter,
		numbers:   &fakeNumbers{},
		reconcile: &fakeReconcile{},
		webhooks:  &fakeWebhooks{},
	}
	srv := NewServer(ServerParams{
		Gin:       ts.engine,
		Cfg:       config.Config{Environment: env},
		Providers: providers,
		Numbers:   ts.numbers,
		Reconcile: ts.reconcile,
		Webhooks:  ts.webhooks,
	})
	srv.RegisterRoutes()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, "test")

	rec := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListProviders(t *testing.T) {
	ts := newTestServer(t, "test")

	rec := ts.do(t, http.MethodGet, "/api/providers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[{"name":"anosim","webhooks":false}]}`, rec.Body.String())
}

func TestRentNumberStatusByOutcome(t *testing.T) {
	cases := []struct {
		outcome phonedomain.RentOutcome
		status  int
	}{
		{phonedomain.RentCreated, http.StatusCreated},
		{phonedomain.RentExisting, http.StatusOK},
		{phonedomain.RentPartialSuccess, http.StatusAccepted},
	}
	for _, tc := range cases {
		t.Run(string(tc.outcome), func(t *testing.T) {
			ts := newTestServer(t, "test")
			ts.numbers.On("Rent", phonedomain.RentRequest{Provider: "anosim", Service: "other", Country: "de", Hours: 4}).
				Return(&phonedomain.RentResult{Status: tc.outcome}, nil).Once()

			rec := ts.do(t, http.MethodPost, "/api/phone-numbers", `{"provider":" anosim ","service":"other","country":"de","hours":4}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), fmt.Sprintf(`"status":"%s"`, tc.outcome))
			ts.numbers.AssertExpectations(t)
		})
	}
}

func TestRentNumberValidationEnvelope(t *testing.T) {
	ts := newTestServer(t, "test")
	ts.numbers.On("Rent", mock.Anything).Return(nil, phonedomain.ErrInvalidProvider).Once()

	rec := ts.do(t, http.MethodPost, "/api/phone-numbers", `{"provider":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "provider", payload.Errors[0].Field)
	assert.Equal(t, "invalid_provider", payload.Errors[0].Code)
}

func TestRentNumberRejectsMalformedJSON(t *testing.T) {
	ts := newTestServer(t, "test")

	rec := ts.do(t, http.MethodPost, "/api/phone-numbers", `{`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec).Errors[0].Code)
	ts.numbers.AssertNotCalled(t, "Rent", mock.Anything)
}

func TestProviderErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		code   providerdomain.ErrorCode
		status int
	}{
		{providerdomain.CodeNoAPIKey, http.StatusBadRequest},
		{providerdomain.CodeBadKey, http.StatusUnauthorized},
		{providerdomain.CodeNoNumbers, http.StatusConflict},
		{providerdomain.CodeUnexpectedResponse, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			ts := newTestServer(t, "test")
			ts.numbers.On("Rent", mock.Anything).
				Return(nil, providerdomain.NewError("anosim", tc.code, "upstream said no")).Once()

			rec := ts.do(t, http.MethodPost, "/api/phone-numbers", `{"provider":"anosim"}`)
			require.Equal(t, tc.status, rec.Code)
			payload := decodeError(t, rec)
			assert.Equal(t, "provider_error", payload.Type)
			assert.Equal(t, string(tc.code), payload.Code)
			assert.Equal(t, "anosim", payload.Provider)
		})
	}
}

func TestListPhoneNumbersPassesFilters(t *testing.T) {
	ts := newTestServer(t, "test")
	ts.numbers.On("List", phonedomain.ListRequest{
		Provider:  "anosim",
		Status:    "active",
		PageToken: "abc",
		PageSize:  5,
	}).Return(phonedomain.ListResponse{PhoneNumbers: []phonedomain.PhoneNumber{}}, nil).Once()

	rec := ts.do(t, http.MethodGet, "/api/phone-numbers?provider=anosim&status=active&page_token=abc&page_size=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"phone_numbers":[]`)
	ts.numbers.AssertExpectations(t)
}

func TestGetPhoneNumberSyncs(t *testing.T) {
	ts := newTestServer(t, "test")
	ts.reconcile.On("SyncNumber", "42").Return(&reconciledomain.NumberResult{
		PhoneNumberID: "42",
		Outcome:       reconciledomain.OutcomeSynced,
		NewMessages:   1,
	}, nil).Once()

	rec := ts.do(t, http.MethodGet, "/api/phone-numbers/42", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"new_messages":1`)
}

func TestGetPhoneNumberNotFound(t *testing.T) {
	ts := newTestServer(t, "test")
	ts.reconcile.On("SyncNumber", "42").Return(nil, phonedomain.ErrNotFound).Once()

	rec := ts.do(t, http.MethodGet, "/api/phone-numbers/42", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Type)
}

func TestCancelAndExtend(t *testing.T) {
	ts := newTestServer(t, "test")
	ts.numbers.On("Cancel", "7").Return(nil).Once()
	ts.numbers.On("Extend", "7", 12).Return(&phonedomain.PhoneNumber{Provider: "anosim"}, nil).Once()

	rec := ts.do(t, http.MethodPost, "/api/phone-numbers/7/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"id":"7","cancelled":true}}`, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/phone-numbers/7/extend", `{"hours":12}`)
	require.Equal(t, http.StatusOK, rec.Code)
	ts.numbers.AssertExpectations(t)
}

func TestSyncProviderReportsFailuresWith200(t *testing.T) {
	ts := newTestServer(t, "test")
	ts.reconcile.On("SyncProvider", "anosim").Return(&reconciledomain.SyncReport{
		Provider: "anosim",
		Total:    2,
		Synced:   1,
		Failed:   1,
		Results: []reconciledomain.NumberResult{
			{PhoneNumberID: "1", Outcome: reconciledomain.OutcomeSynced},
			{PhoneNumberID: "2", Outcome: reconciledomain.OutcomeFailed, Code: "BAD_KEY"},
		},
	}, nil).Once()

	rec := ts.do(t, http.MethodPost, "/api/providers/anosim/sync", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"failed":1`)
	assert.Contains(t, rec.Body.String(), `"code":"BAD_KEY"`)
}

func TestSyncProviderLockHeld(t *testing.T) {
	ts := newTestServer(t, "test")
	ts.reconcile.On("SyncProvider", "anosim").Return(nil, ratelimit.ErrLockHeld).Once()

	rec := ts.do(t, http.MethodPost, "/api/providers/anosim/sync", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "sync_in_progress", decodeError(t, rec).Code)
}

func TestCatalogServesLiveAndRejectsBadMode(t *testing.T) {
	ts := newTestServer(t, "test")
	ts.adapter.On("GetServicesAndCountries", mock.Anything, providerdomain.CatalogRequest{Mode: providerdomain.ModeRent, Country: "de"}).
		Return(&providerdomain.Catalog{Provider: "anosim", Mode: providerdomain.ModeRent, Source: providerdomain.CatalogSourceLive}, nil).Once()

	rec := ts.do(t, http.MethodGet, "/api/providers/anosim/catalog?country=DE", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"source":"live"`)

	rec = ts.do(t, http.MethodGet, "/api/providers/anosim/catalog?mode=bulk", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_mode", decodeError(t, rec).Errors[0].Code)

	rec = ts.do(t, http.MethodGet, "/api/providers/nope/catalog", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListActiveReturnsEmptyArray(t *testing.T) {
	ts := newTestServer(t, "test")
	ts.adapter.On("ListActive", mock.Anything).Return(nil, nil).Once()

	rec := ts.do(t, http.MethodGet, "/api/providers/anosim/active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())
}

func TestWebhooksAlwaysAnswer200(t *testing.T) {
	ts := newTestServer(t, "test")
	ts.webhooks.On("IngestGeneric", `{"broken":`).
		Return(webhookdomain.Result{Outcome: webhookdomain.OutcomeInvalid, Error: "invalid_payload"}).Once()
	ts.webhooks.On("Ingest", "gogetsms", `{"id":1}`).
		Return(webhookdomain.Result{Outcome: webhookdomain.OutcomeFailed, Provider: "gogetsms"}).Once()

	rec := ts.do(t, http.MethodPost, "/api/webhooks/sms", `{"broken":`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"outcome":"invalid"`)

	rec = ts.do(t, http.MethodPost, "/api/webhooks/gogetsms", `{"id":1}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"outcome":"failed"`)
	ts.webhooks.AssertExpectations(t)
}

func TestDebugRoutesOnlyOutsideProduction(t *testing.T) {
	ts := newTestServer(t, "development")
	rec := ts.do(t, http.MethodGet, "/api/debug/providers/anosim/mapping?service=nope&country=zz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"service":"other"`)
	assert.Contains(t, rec.Body.String(), `"country":"de"`)
	assert.Contains(t, rec.Body.String(), `"country_fallback":true`)

	ts.adapter.On("GetStatus", mock.Anything, "4892693").
		Return(&providerdomain.RentalStatus{State: providerdomain.StateActive}, nil).Once()
	rec = ts.do(t, http.MethodPost, "/api/debug/providers/anosim/status", `{"external_id":"4892693"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"active"`)

	prod := newTestServer(t, "production")
	rec = prod.do(t, http.MethodGet, "/api/debug/providers/anosim/mapping", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRentRateLimitDisabledWithoutGuard(t *testing.T) {
	ts := newTestServer(t, "test")
	ts.numbers.On("Rent", mock.Anything).Return(&phonedomain.RentResult{Status: phonedomain.RentExisting}, nil).Times(3)

	for i := 0; i < 3; i++ {
		rec := ts.do(t, http.MethodPost, "/api/phone-numbers", `{"provider":"anosim"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestClassifyErrorForLog(t *testing.T) {
	typ, code := classifyErrorForLog(providerdomain.NewError("smspva", providerdomain.CodeBadKey, ""))
	assert.Equal(t, "provider_error", typ)
	assert.Equal(t, "BAD_KEY", code)

	typ, code = classifyErrorForLog(phonedomain.ErrInvalidHours)
	assert.Equal(t, "validation_error", typ)
	assert.Equal(t, "invalid_hours", code)
}
