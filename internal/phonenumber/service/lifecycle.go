package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/smsrent/internal/phonenumber/domain"
	"go.uber.org/zap"
)

// ExpireDue flips active rows past end_date to expired. Auto renewal only
// acts before end_date, so an auto_renew row that reaches it lapses too.
func (s *Service) ExpireDue(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 200
	}
	now := s.clock.Now()
	due, err := s.repo.ListExpired(ctx, s.db, now, limit)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}
	ids := make([]snowflake.ID, 0, len(due))
	for _, n := range due {
		ids = append(ids, n.ID)
	}
	affected, err := s.repo.MarkExpired(ctx, s.db, ids, now)
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// RenewDue extends auto_renew rows whose end_date falls inside window.
// One failing row does not stop the others.
func (s *Service) RenewDue(ctx context.Context, window time.Duration, hours, limit int) (*domain.RenewReport, error) {
	if hours <= 0 {
		return nil, domain.ErrInvalidHours
	}
	if limit <= 0 {
		limit = 200
	}
	now := s.clock.Now()
	due, err := s.repo.ListRenewable(ctx, s.db, now, now.Add(window), limit)
	if err != nil {
		return nil, err
	}

	report := &domain.RenewReport{}
	for _, number := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if _, err := s.extend(ctx, number, hours); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, number.ID.String()+": "+err.Error())
			s.log.Warn("auto renew failed",
				zap.String("provider", number.Provider),
				zap.String("phone_number_id", number.ID.String()),
				zap.Error(err),
			)
			continue
		}
		report.Renewed++
	}
	return report, nil
}
