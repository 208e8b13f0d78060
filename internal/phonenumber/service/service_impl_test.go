package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/smsrent/internal/clock"
	"github.com/smallbiznis/smsrent/internal/events"
	"github.com/smallbiznis/smsrent/internal/phonenumber/domain"
	"github.com/smallbiznis/smsrent/internal/phonenumber/phonenumbertest"
	"github.com/smallbiznis/smsrent/internal/phonenumber/repository"
	providerdomain "github.com/smallbiznis/smsrent/internal/provider/domain"
	"github.com/smallbiznis/smsrent/internal/provider/providertest"
	"github.com/smallbiznis/smsrent/internal/recovery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeRecovery struct {
	records []recovery.Record
}

func (f *fakeRecovery) Save(_ context.Context, rec recovery.Record) (string, error) {
	f.records = append(f.records, rec)
	return "mem://" + rec.Provider + "/" + rec.ExternalID + ".json", nil
}

type fixture struct {
	db       *gorm.DB
	svc      domain.Service
	adapter  *providertest.MockAdapter
	clock    *clock.FakeClock
	events   *events.Recorder
	recovery *fakeRecovery
	node     *snowflake.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := phonenumbertest.OpenDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	f := &fixture{
		db:       db,
		adapter:  providertest.NewMockAdapter("anosim"),
		clock:    clock.NewFakeClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)),
		events:   events.NewRecorder(),
		recovery: &fakeRecovery{},
		node:     node,
	}
	f.svc = New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     f.clock,
		Repo:      repository.Provide(),
		Providers: providertest.NewDirectory(f.adapter),
		Events:    f.events,
		Recovery:  f.recovery,
	})
	return f
}

func (f *fixture) seed(t *testing.T, phone, externalID string, end time.Time, autoRenew bool) *domain.PhoneNumber {
	t.Helper()
	now := f.clock.Now()
	n := &domain.PhoneNumber{
		ID:          f.node.Generate(),
		PhoneNumber: phone,
		Provider:    "anosim",
		ExternalID:  externalID,
		Service:     "other",
		Country:     "de",
		Status:      domain.StatusActive,
		Cost:        2.5,
		Currency:    "EUR",
		EndDate:     &end,
		AutoRenew:   autoRenew,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	phonenumbertest.Seed(t, f.db, n)
	return n
}

func rental(phone, id string) *providerdomain.Rental {
	end := time.Date(2024, 1, 1, 16, 0, 0, 0, time.UTC)
	return &providerdomain.Rental{
		PhoneNumber: phone,
		RentID:      id,
		Service:     "other",
		Country:     "de",
		Cost:        2.5,
		Currency:    "EUR",
		EndDate:     &end,
		Raw:         json.RawMessage(`{"id":` + id + `}`),
	}
}

func TestRentCreatesRow(t *testing.T) {
	f := newFixture(t)
	f.adapter.On("RentNumber", mock.Anything, providerdomain.RentRequest{Service: "other", Country: "de", Hours: 4}).
		Return(rental("+4915123456789", "4892693"), nil).Once()

	res, err := f.svc.Rent(context.Background(), domain.RentRequest{Provider: "Anosim", Service: "other", Country: "de"})
	require.NoError(t, err)
	assert.Equal(t, domain.RentCreated, res.Status)
	require.NotNil(t, res.PhoneNumber)
	assert.Equal(t, "4892693", res.PhoneNumber.ExternalID)
	assert.Equal(t, "anosim", res.PhoneNumber.Provider)

	stored, err := f.svc.Get(context.Background(), res.PhoneNumber.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "+4915123456789", stored.PhoneNumber)
	assert.Equal(t, domain.StatusActive, stored.Status)
	f.adapter.AssertExpectations(t)
}

func TestRentIsIdempotentOnExistingNumber(t *testing.T) {
	f := newFixture(t)
	existing := f.seed(t, "+4915123456789", "4892693", f.clock.Now().Add(time.Hour), false)
	f.adapter.On("RentNumber", mock.Anything, mock.Anything).
		Return(rental("+4915123456789", "4892693"), nil).Once()

	res, err := f.svc.Rent(context.Background(), domain.RentRequest{Provider: "anosim", Hours: 2})
	require.NoError(t, err)
	assert.Equal(t, domain.RentExisting, res.Status)
	assert.Equal(t, existing.ID, res.PhoneNumber.ID)

	var count int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(*) FROM phone_numbers`).Scan(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRentReturnsPartialSuccessWhenStoreFails(t *testing.T) {
	f := newFixture(t)
	f.adapter.On("RentNumber", mock.Anything, mock.Anything).
		Return(rental("+4915123456789", "4892693"), nil).Once()
	require.NoError(t, f.db.Exec(`DROP TABLE phone_messages`).Error)
	require.NoError(t, f.db.Exec(`DROP TABLE phone_numbers`).Error)

	res, err := f.svc.Rent(context.Background(), domain.RentRequest{Provider: "anosim"})
	require.NoError(t, err)
	assert.Equal(t, domain.RentPartialSuccess, res.Status)
	assert.Nil(t, res.PhoneNumber)
	assert.JSONEq(t, `{"id":4892693}`, string(res.Raw))
	assert.Equal(t, "mem://anosim/4892693.json", res.RecoveryKey)
	assert.NotEmpty(t, res.Error)

	require.Len(t, f.recovery.records, 1)
	assert.Equal(t, "+4915123456789", f.recovery.records[0].PhoneNumber)

	published := f.events.Events()
	require.Len(t, published, 1)
	assert.Equal(t, events.SubjectRentalPartialSuccess, published[0].Subject)
	assert.Equal(t, "4892693", published[0].Event.Data["external_id"])
}

func TestRentWithoutPhoneLeavesNoRow(t *testing.T) {
	f := newFixture(t)
	f.adapter.On("RentNumber", mock.Anything, mock.Anything).
		Return(&providerdomain.Rental{RentID: "1", Raw: json.RawMessage(`{}`)}, nil).Once()

	_, err := f.svc.Rent(context.Background(), domain.RentRequest{Provider: "anosim"})
	assert.ErrorIs(t, err, domain.ErrPhoneExtraction)

	var count int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(*) FROM phone_numbers`).Scan(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, f.recovery.records)
}

func TestRentPropagatesProviderError(t *testing.T) {
	f := newFixture(t)
	perr := providerdomain.NewError("anosim", providerdomain.CodeNoNumbers, "no numbers")
	f.adapter.On("RentNumber", mock.Anything, mock.Anything).Return(nil, perr).Once()

	_, err := f.svc.Rent(context.Background(), domain.RentRequest{Provider: "anosim"})
	assert.True(t, providerdomain.IsCode(err, providerdomain.CodeNoNumbers))
}

func TestRentValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Rent(context.Background(), domain.RentRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidProvider)

	_, err = f.svc.Rent(context.Background(), domain.RentRequest{Provider: "anosim", Hours: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidHours)

	_, err = f.svc.Rent(context.Background(), domain.RentRequest{Provider: "nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidProvider)
}

func TestCancelTreatsAlreadyCancelledAsSuccess(t *testing.T) {
	f := newFixture(t)
	n := f.seed(t, "+4915100000001", "77", f.clock.Now().Add(time.Hour), false)
	f.adapter.On("Cancel", mock.Anything, "77").
		Return(providerdomain.NewError("anosim", providerdomain.CodeAlreadyCancelled, "")).Once()

	require.NoError(t, f.svc.Cancel(context.Background(), n.ID.String()))

	_, err := f.svc.Get(context.Background(), n.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancelKeepsRowOnProviderFailure(t *testing.T) {
	f := newFixture(t)
	n := f.seed(t, "+4915100000001", "77", f.clock.Now().Add(time.Hour), false)
	f.adapter.On("Cancel", mock.Anything, "77").
		Return(providerdomain.NewError("anosim", providerdomain.CodeBadKey, "")).Once()

	err := f.svc.Cancel(context.Background(), n.ID.String())
	assert.True(t, providerdomain.IsCode(err, providerdomain.CodeBadKey))

	_, err = f.svc.Get(context.Background(), n.ID.String())
	assert.NoError(t, err)
}

func TestExtendAddsHoursAndCost(t *testing.T) {
	f := newFixture(t)
	end := f.clock.Now().Add(time.Hour)
	n := f.seed(t, "+4915100000001", "77", end, false)
	f.adapter.On("Extend", mock.Anything, "77", 3).
		Return(&providerdomain.Rental{RentID: "77", Cost: 1.5}, nil).Once()

	updated, err := f.svc.Extend(context.Background(), n.ID.String(), 3)
	require.NoError(t, err)
	require.NotNil(t, updated.EndDate)
	assert.True(t, updated.EndDate.Equal(end.Add(3*time.Hour)))
	assert.InDelta(t, 4.0, updated.Cost, 0.0001)

	_, err = f.svc.Extend(context.Background(), n.ID.String(), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidHours)
}

func TestAppendMessagesDedupsSenderAndText(t *testing.T) {
	f := newFixture(t)
	n := f.seed(t, "+4915100000001", "4892693", f.clock.Now().Add(time.Hour), false)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	msg := providerdomain.Message{Sender: "1234", Text: "code 555", ReceivedAt: at}

	res, err := f.svc.AppendMessages(context.Background(), n, []providerdomain.Message{msg, msg}, domain.SourceAPI, domain.DedupSenderText)
	require.NoError(t, err)
	assert.Len(t, res.Inserted, 1)
	assert.Equal(t, 1, res.Duplicates)

	later := msg
	later.ReceivedAt = at.Add(time.Minute)
	res, err = f.svc.AppendMessages(context.Background(), n, []providerdomain.Message{later}, domain.SourceAPI, domain.DedupSenderText)
	require.NoError(t, err)
	assert.Empty(t, res.Inserted)
	assert.EqualValues(t, 1, phonenumbertest.CountMessages(t, f.db, int64(n.ID)))

	published := f.events.Events()
	require.Len(t, published, 1)
	assert.Equal(t, "sms.received.anosim", published[0].Subject)
}

func TestAppendMessagesWithTimestampPolicy(t *testing.T) {
	f := newFixture(t)
	n := f.seed(t, "+4915100000001", "1", f.clock.Now().Add(time.Hour), false)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	first := providerdomain.Message{Sender: "1234", Text: "code 555", ReceivedAt: at}
	second := providerdomain.Message{Sender: "1234", Text: "code 555", ReceivedAt: at.Add(time.Hour)}

	res, err := f.svc.AppendMessages(context.Background(), n, []providerdomain.Message{first, second, first}, domain.SourceWebhook, domain.DedupSenderTextTime)
	require.NoError(t, err)
	assert.Len(t, res.Inserted, 2)
	assert.Equal(t, 1, res.Duplicates)

	msgs, err := f.svc.Messages(context.Background(), n.ID.String())
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.SourceWebhook, msgs[0].Source)
}

func TestExpireDueExpiresLapsedRows(t *testing.T) {
	f := newFixture(t)
	past := f.clock.Now().Add(-time.Hour)
	expired := f.seed(t, "+4915100000001", "1", past, false)
	lapsed := f.seed(t, "+4915100000002", "2", past, true)
	live := f.seed(t, "+4915100000003", "3", f.clock.Now().Add(time.Hour), false)
	renewing := f.seed(t, "+4915100000004", "4", f.clock.Now().Add(time.Hour), true)

	n, err := f.svc.ExpireDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []snowflake.ID{expired.ID, lapsed.ID} {
		got, err := f.svc.Get(context.Background(), id.String())
		require.NoError(t, err)
		assert.Equal(t, domain.StatusExpired, got.Status)
	}
	for _, id := range []snowflake.ID{live.ID, renewing.ID} {
		got, err := f.svc.Get(context.Background(), id.String())
		require.NoError(t, err)
		assert.Equal(t, domain.StatusActive, got.Status)
	}
}

func TestAutoRenewRowExpiresAfterFailedRenewal(t *testing.T) {
	f := newFixture(t)
	number := f.seed(t, "+4915100000001", "1", f.clock.Now().Add(30*time.Minute), true)

	f.adapter.On("Extend", mock.Anything, "1", 24).
		Return(nil, providerdomain.NewError("anosim", providerdomain.CodeUnsupported, "")).Once()

	report, err := f.svc.RenewDue(context.Background(), time.Hour, 24, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	f.clock.Advance(48 * time.Hour)

	report, err = f.svc.RenewDue(context.Background(), time.Hour, 24, 10)
	require.NoError(t, err)
	assert.Zero(t, report.Renewed+report.Failed)

	n, err := f.svc.ExpireDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.Get(context.Background(), number.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, got.Status)
	f.adapter.AssertExpectations(t)
}

func TestRenewDueContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	soon := f.clock.Now().Add(30 * time.Minute)
	ok := f.seed(t, "+4915100000001", "1", soon, true)
	bad := f.seed(t, "+4915100000002", "2", soon, true)
	f.seed(t, "+4915100000003", "3", soon, false)

	f.adapter.On("Extend", mock.Anything, "1", 24).Return(&providerdomain.Rental{RentID: "1"}, nil).Once()
	f.adapter.On("Extend", mock.Anything, "2", 24).
		Return(nil, providerdomain.NewError("anosim", providerdomain.CodeNoBalance, "")).Once()

	report, err := f.svc.RenewDue(context.Background(), time.Hour, 24, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Renewed)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], bad.ID.String())

	got, err := f.svc.Get(context.Background(), ok.ID.String())
	require.NoError(t, err)
	assert.True(t, got.EndDate.Equal(soon.Add(24*time.Hour)))
	f.adapter.AssertExpectations(t)
}

func TestListPaginates(t *testing.T) {
	f := newFixture(t)
	for i, phone := range []string{"+491", "+492", "+493"} {
		f.seed(t, phone, phone, f.clock.Now().Add(time.Hour), false)
		f.clock.Advance(time.Duration(i+1) * time.Second)
	}

	first, err := f.svc.List(context.Background(), domain.ListRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.PhoneNumbers, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, "+493", first.PhoneNumbers[0].PhoneNumber)

	second, err := f.svc.List(context.Background(), domain.ListRequest{PageSize: 2, PageToken: first.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.PhoneNumbers, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, "+491", second.PhoneNumbers[0].PhoneNumber)

	_, err = f.svc.List(context.Background(), domain.ListRequest{Status: "bogus"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = f.svc.List(context.Background(), domain.ListRequest{PageToken: "%%%"})
	assert.True(t, errors.Is(err, domain.ErrInvalidCursor))
}

func TestGetRejectsBadID(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = f.svc.Get(context.Background(), "12345")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
