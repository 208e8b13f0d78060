package service

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/smsrent/internal/events"
	"github.com/smallbiznis/smsrent/internal/observability/logger"
	"github.com/smallbiznis/smsrent/internal/phonenumber/domain"
	providerdomain "github.com/smallbiznis/smsrent/internal/provider/domain"
	"github.com/smallbiznis/smsrent/internal/recovery"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Rent runs requested -> provider order -> phone extracted -> persisted.
// Failing before extraction is a plain error and leaves no row. Failing to
// persist after extraction triggers compensation and returns partial_success.
func (s *Service) Rent(ctx context.Context, req domain.RentRequest) (*domain.RentResult, error) {
	req.Provider = strings.ToLower(strings.TrimSpace(req.Provider))
	if err := s.validate.StructCtx(ctx, req); err != nil {
		if req.Provider == "" {
			return nil, domain.ErrInvalidProvider
		}
		return nil, domain.ErrInvalidHours
	}
	if req.Hours == 0 {
		req.Hours = domain.DefaultRentHours
	}

	adapter, err := s.providers.Adapter(req.Provider)
	if err != nil {
		return nil, domain.ErrInvalidProvider
	}
	log := logger.WithProvider(logger.FromContext(ctx), req.Provider)

	rental, err := adapter.RentNumber(ctx, providerdomain.RentRequest{
		Service: req.Service,
		Country: req.Country,
		Hours:   req.Hours,
	})
	if err != nil {
		s.metrics.RecordRental(ctx, req.Provider, "failed")
		return nil, err
	}
	if rental == nil {
		s.metrics.RecordRental(ctx, req.Provider, "failed")
		return nil, errNilRental
	}

	phone := strings.TrimSpace(rental.PhoneNumber)
	if phone == "" || strings.TrimSpace(rental.RentID) == "" {
		s.metrics.RecordRental(ctx, req.Provider, "failed")
		log.Error("rental without phone number or id",
			zap.String("rent_id", rental.RentID),
			zap.ByteString("raw", rental.Raw),
		)
		return nil, domain.ErrPhoneExtraction
	}
	rental.PhoneNumber = phone

	number, outcome, err := s.persist(ctx, adapter, req, rental)
	if err != nil {
		return s.compensate(ctx, req, rental, err), nil
	}

	s.metrics.RecordRental(ctx, req.Provider, string(outcome))
	return &domain.RentResult{Status: outcome, PhoneNumber: number, Rental: rental}, nil
}

func (s *Service) persist(ctx context.Context, adapter providerdomain.Adapter, req domain.RentRequest, rental *providerdomain.Rental) (*domain.PhoneNumber, domain.RentOutcome, error) {
	codes := adapter.Mapping().Resolve(req.Service, req.Country)
	now := s.clock.Now()

	number := &domain.PhoneNumber{
		ID:          s.genID.Generate(),
		PhoneNumber: rental.PhoneNumber,
		Provider:    req.Provider,
		ExternalID:  rental.RentID,
		Service:     firstNonEmpty(rental.Service, codes.Service),
		Country:     firstNonEmpty(rental.Country, codes.Country),
		Status:      domain.StatusActive,
		Cost:        rental.Cost,
		Currency:    rental.Currency,
		EndDate:     rental.EndDate,
		AutoRenew:   req.AutoRenew,
		RawResponse: rawJSON(rental.Raw),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if id := strings.TrimSpace(rental.OrderID); id != "" {
		number.OrderID = &id
	}

	outcome := domain.RentCreated
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByProviderNumber(ctx, tx, req.Provider, rental.PhoneNumber)
		if err != nil {
			return err
		}
		if existing != nil {
			number, outcome = existing, domain.RentExisting
			return nil
		}
		return s.repo.Insert(ctx, tx, number)
	})
	if err == nil {
		return number, outcome, nil
	}

	// A concurrent insert of the same number won the unique index.
	if isDuplicate(err) {
		existing, findErr := s.repo.FindByProviderNumber(ctx, s.db, req.Provider, rental.PhoneNumber)
		if findErr == nil && existing != nil {
			return existing, domain.RentExisting, nil
		}
	}
	return nil, "", err
}

// compensate records the allocated rental outside the database and emits an
// event so an operator can reconcile it.
func (s *Service) compensate(ctx context.Context, req domain.RentRequest, rental *providerdomain.Rental, cause error) *domain.RentResult {
	log := logger.WithProvider(logger.FromContext(ctx), req.Provider)
	log.Error("rental persisted upstream but not stored",
		zap.String("external_id", rental.RentID),
		zap.Error(cause),
	)
	s.metrics.RecordRental(ctx, req.Provider, string(domain.RentPartialSuccess))

	rec := recovery.Record{
		Provider:    req.Provider,
		ExternalID:  rental.RentID,
		OrderID:     rental.OrderID,
		PhoneNumber: rental.PhoneNumber,
		Service:     firstNonEmpty(rental.Service, req.Service),
		Country:     firstNonEmpty(rental.Country, req.Country),
		Cost:        rental.Cost,
		Currency:    rental.Currency,
		EndDate:     rental.EndDate,
		Reason:      cause.Error(),
		Raw:         rental.Raw,
		RecordedAt:  s.clock.Now(),
	}
	key, err := s.recovery.Save(ctx, rec)
	if err != nil {
		log.Error("recovery record not written", zap.String("external_id", rental.RentID), zap.Error(err))
	}

	evt := events.Event{
		Type:       events.SubjectRentalPartialSuccess,
		Provider:   req.Provider,
		OccurredAt: rec.RecordedAt,
		Data: map[string]any{
			"external_id":  rental.RentID,
			"order_id":     rental.OrderID,
			"phone_number": rental.PhoneNumber,
			"recovery_key": key,
			"reason":       cause.Error(),
		},
	}
	if err := s.events.Publish(ctx, events.SubjectRentalPartialSuccess, evt); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("partial success event not published", zap.Error(err))
	}

	return &domain.RentResult{
		Status:      domain.RentPartialSuccess,
		Rental:      rental,
		Raw:         rental.Raw,
		RecoveryKey: key,
		Error:       "rental could not be stored; recorded for reconciliation",
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
