package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/smsrent/internal/clock"
	"github.com/smallbiznis/smsrent/internal/config"
	obscontext "github.com/smallbiznis/smsrent/internal/observability/context"
	"github.com/smallbiznis/smsrent/internal/observability/logger"
	"github.com/smallbiznis/smsrent/internal/observability/metrics"
	"github.com/smallbiznis/smsrent/internal/observability/tracing"
	phonedomain "github.com/smallbiznis/smsrent/internal/phonenumber/domain"
	providerdomain "github.com/smallbiznis/smsrent/internal/provider/domain"
	"github.com/smallbiznis/smsrent/internal/provider/wire"
	"github.com/smallbiznis/smsrent/internal/ratelimit"
	"github.com/smallbiznis/smsrent/internal/reconcile/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const defaultConcurrency = 4

var tracer = otel.Tracer("smsrent/reconcile")

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Cfg       config.Config
	Clock     clock.Clock
	Repo      phonedomain.Repository
	Numbers   phonedomain.Service
	Providers providerdomain.Directory
	Guard     *ratelimit.Guard `optional:"true"`
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	repo        phonedomain.Repository
	numbers     phonedomain.Service
	providers   providerdomain.Directory
	guard       *ratelimit.Guard
	metrics     *metrics.Metrics
	concurrency int
}

func New(p Params) domain.Service {
	concurrency := p.Cfg.Sync.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("reconcile.service"),
		clock:       p.Clock,
		repo:        p.Repo,
		numbers:     p.Numbers,
		providers:   p.Providers,
		guard:       p.Guard,
		metrics:     p.Metrics,
		concurrency: concurrency,
	}
}

// SyncProvider reconciles every active row of provider. Rows are processed
// with bounded concurrency and each failure stays in its own result.
func (s *Service) SyncProvider(ctx context.Context, provider string) (*domain.SyncReport, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	adapter, err := s.providers.Adapter(provider)
	if err != nil {
		return nil, err
	}

	var report *domain.SyncReport
	err = s.guard.WithSyncLock(ctx, provider, func(ctx context.Context) error {
		report, err = s.syncProvider(ctx, adapter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (s *Service) syncProvider(ctx context.Context, adapter providerdomain.Adapter) (*domain.SyncReport, error) {
	provider := adapter.Provider()
	runID := ulid.Make().String()
	ctx = obscontext.WithSyncRun(ctx, runID)
	ctx = obscontext.WithProvider(ctx, provider)

	ctx, span := tracer.Start(ctx, "reconcile.sync_provider")
	span.SetAttributes(tracing.SafeAttributes(
		attribute.String("provider", provider),
		attribute.String("sync_run_id", runID),
	)...)
	defer span.End()

	log := logger.WithContext(ctx, s.log)
	report := &domain.SyncReport{RunID: runID, Provider: provider, StartedAt: s.clock.Now()}

	numbers, err := s.repo.ListActiveByProvider(ctx, s.db, provider)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "list active numbers")
		return nil, err
	}
	report.Total = len(numbers)
	report.Results = make([]domain.NumberResult, len(numbers))

	bookings := &bookingSet{adapter: adapter}
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, number := range numbers {
		g.Go(func() error {
			report.Results[i] = s.syncOne(ctx, adapter, bookings, number)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range report.Results {
		if res.Outcome == domain.OutcomeSynced {
			report.Synced++
		} else {
			report.Failed++
		}
		report.NewMessages += res.NewMessages
	}
	report.FinishedAt = s.clock.Now()
	span.SetAttributes(
		attribute.Int("sync.total", report.Total),
		attribute.Int("sync.failed", report.Failed),
	)

	log.Info("provider sync finished",
		zap.Int("total", report.Total),
		zap.Int("synced", report.Synced),
		zap.Int("failed", report.Failed),
		zap.Int("new_messages", report.NewMessages),
	)
	return report, nil
}

// SyncNumber reconciles one row and returns it with its stored messages.
func (s *Service) SyncNumber(ctx context.Context, id string) (*domain.NumberResult, error) {
	number, err := s.numbers.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	adapter, err := s.providers.Adapter(number.Provider)
	if err != nil {
		return nil, err
	}
	ctx = obscontext.WithProvider(ctx, number.Provider)

	res := s.syncOne(ctx, adapter, &bookingSet{adapter: adapter}, number)

	if refreshed, err := s.numbers.Get(ctx, id); err == nil {
		res.Number = refreshed
	}
	msgs, err := s.numbers.Messages(ctx, id)
	if err != nil {
		return nil, err
	}
	res.Messages = msgs
	return &res, nil
}

// Resolve looks the row's phone number up in the provider's live list and
// repairs external_id/order_id when they differ.
func (s *Service) Resolve(ctx context.Context, id string) (*domain.Resolution, error) {
	number, err := s.numbers.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	adapter, err := s.providers.Adapter(number.Provider)
	if err != nil {
		return nil, err
	}
	ctx = obscontext.WithProvider(ctx, number.Provider)
	return s.resolve(ctx, &bookingSet{adapter: adapter}, number)
}

func (s *Service) syncOne(ctx context.Context, adapter providerdomain.Adapter, bookings *bookingSet, number *phonedomain.PhoneNumber) (res domain.NumberResult) {
	log := logger.WithContext(ctx, s.log).With(zap.String("phone_number_id", number.ID.String()))
	res = domain.NumberResult{
		PhoneNumberID: number.ID.String(),
		PhoneNumber:   number.PhoneNumber,
		ExternalID:    number.ExternalID,
	}

	var endDate *time.Time
	defer func() {
		if err := s.repo.MarkChecked(ctx, s.db, number.ID, s.clock.Now(), endDate); err != nil {
			log.Warn("last_checked_at not updated", zap.Error(err))
		}
		s.metrics.RecordSyncedNumber(ctx, number.Provider, res.Outcome)
	}()

	status, err := adapter.GetStatus(ctx, number.ExternalID)
	if needsResolution(status, err) {
		resolution, rerr := s.resolve(ctx, bookings, number)
		switch {
		case rerr != nil:
			log.Warn("booking resolution failed", zap.Error(rerr))
		case resolution.Changed:
			res.Resolved = true
			res.ExternalID = resolution.LiveExternalID
			status, err = adapter.GetStatus(ctx, resolution.LiveExternalID)
		}
	}
	if err != nil {
		res.Outcome = domain.OutcomeFailed
		res.Code = string(providerdomain.CodeOf(err))
		res.Error = tracing.SafeError(err).Error()
		log.Warn("number sync failed", zap.String("code", res.Code), zap.Error(err))
		return res
	}
	if status == nil {
		status = &providerdomain.RentalStatus{State: providerdomain.StateUnknown}
	}
	res.State = string(status.State)
	endDate = status.EndDate

	appended, err := s.numbers.AppendMessages(ctx, number, status.Messages, phonedomain.SourceAPI, phonedomain.DedupSenderText)
	if err != nil {
		res.Outcome = domain.OutcomeFailed
		res.Error = err.Error()
		log.Error("messages not stored", zap.Error(err))
		return res
	}
	res.NewMessages = len(appended.Inserted)
	res.Outcome = domain.OutcomeSynced
	return res
}

// needsResolution is true when the stored booking id looks stale: the
// provider does not know it, or answers with nothing at all.
func needsResolution(status *providerdomain.RentalStatus, err error) bool {
	if err != nil {
		return providerdomain.IsCode(err, providerdomain.CodeNotFound, providerdomain.CodeRentInactive)
	}
	if status == nil {
		return true
	}
	return status.State == providerdomain.StateUnknown && len(status.Messages) == 0
}

func (s *Service) resolve(ctx context.Context, bookings *bookingSet, number *phonedomain.PhoneNumber) (*domain.Resolution, error) {
	out := &domain.Resolution{
		PhoneNumberID:    number.ID.String(),
		PhoneNumber:      number.PhoneNumber,
		StoredExternalID: number.ExternalID,
	}

	booking, err := bookings.find(ctx, number.PhoneNumber)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return out, nil
	}
	out.Found = true
	out.LiveExternalID = booking.ExternalID
	out.LiveOrderID = booking.OrderID
	out.Active = booking.Active
	out.EndDate = booking.EndDate

	storedOrder := ""
	if number.OrderID != nil {
		storedOrder = *number.OrderID
	}
	if booking.ExternalID == number.ExternalID && (booking.OrderID == "" || booking.OrderID == storedOrder) {
		return out, nil
	}

	update := phonedomain.IdentityUpdate{
		ExternalID: booking.ExternalID,
		OrderID:    number.OrderID,
		Status:     phonedomain.StatusActive,
		EndDate:    booking.EndDate,
		UpdatedAt:  s.clock.Now(),
	}
	if booking.OrderID != "" {
		orderID := booking.OrderID
		update.OrderID = &orderID
	}
	if !booking.Active {
		update.Status = phonedomain.StatusExpired
	}
	if err := s.repo.UpdateIdentity(ctx, s.db, number.ID, update); err != nil {
		return nil, err
	}
	out.Changed = true

	logger.WithContext(ctx, s.log).Info("booking id repaired",
		zap.String("phone_number_id", number.ID.String()),
		zap.String("stored_external_id", number.ExternalID),
		zap.String("live_external_id", booking.ExternalID),
	)
	return out, nil
}

// bookingSet fetches the provider's active list at most once per run.
type bookingSet struct {
	adapter providerdomain.Adapter

	once sync.Once
	list []providerdomain.Booking
	err  error
}

func (b *bookingSet) find(ctx context.Context, phone string) (*providerdomain.Booking, error) {
	b.once.Do(func() {
		b.list, b.err = b.adapter.ListActive(ctx)
	})
	if b.err != nil {
		return nil, b.err
	}
	for i := range b.list {
		if wire.SamePhone(b.list[i].PhoneNumber, phone) {
			return &b.list[i], nil
		}
	}
	return nil, nil
}
