package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/smsrent/internal/events"
	"github.com/smallbiznis/smsrent/internal/observability/logger"
	"github.com/smallbiznis/smsrent/internal/phonenumber/domain"
	providerdomain "github.com/smallbiznis/smsrent/internal/provider/domain"
	"go.uber.org/zap"
)

// AppendMessages stores the candidates that are not already present for
// number under policy, in one batch insert, and publishes each new SMS.
func (s *Service) AppendMessages(ctx context.Context, number *domain.PhoneNumber, candidates []providerdomain.Message, source domain.MessageSource, policy domain.DedupPolicy) (*domain.AppendResult, error) {
	result := &domain.AppendResult{Inserted: []domain.Message{}}
	if number == nil || len(candidates) == 0 {
		return result, nil
	}

	existing, err := s.repo.ListMessages(ctx, s.db, number.ID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(existing)+len(candidates))
	for _, m := range existing {
		seen[policy.Key(m.Sender, m.Message, m.ReceivedAt)] = struct{}{}
	}

	now := s.clock.Now()
	batch := make([]*domain.Message, 0, len(candidates))
	for _, c := range candidates {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		received := c.ReceivedAt
		if received.IsZero() {
			received = now
		}
		key := policy.Key(c.Sender, text, received)
		if _, dup := seen[key]; dup {
			result.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		batch = append(batch, &domain.Message{
			ID:            s.genID.Generate(),
			PhoneNumberID: number.ID,
			Sender:        strings.TrimSpace(c.Sender),
			Message:       text,
			ReceivedAt:    received.UTC(),
			Source:        source,
			CreatedAt:     now,
		})
	}
	if len(batch) == 0 {
		return result, nil
	}

	if err := s.repo.InsertMessages(ctx, s.db, batch); err != nil {
		return nil, err
	}
	for _, m := range batch {
		result.Inserted = append(result.Inserted, *m)
	}
	s.metrics.RecordMessagesSynced(ctx, number.Provider, string(source), len(batch))
	s.publishReceived(ctx, number, batch)
	return result, nil
}

func (s *Service) publishReceived(ctx context.Context, number *domain.PhoneNumber, batch []*domain.Message) {
	subject := events.SMSReceivedSubject(number.Provider)
	for _, m := range batch {
		err := s.events.Publish(ctx, subject, events.Event{
			Type:       events.SubjectSMSReceived,
			Provider:   number.Provider,
			OccurredAt: m.ReceivedAt,
			Data: map[string]any{
				"phone_number_id": number.ID.String(),
				"phone_number":    number.PhoneNumber,
				"message_id":      m.ID.String(),
				"sender":          m.Sender,
				"message":         m.Message,
				"source":          string(m.Source),
			},
		})
		if err != nil {
			logger.WithProvider(logger.FromContext(ctx), number.Provider).
				Warn("sms event not published", zap.String("message_id", m.ID.String()), zap.Error(err))
		}
	}
}
