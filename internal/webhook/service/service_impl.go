package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/smsrent/internal/clock"
	"github.com/smallbiznis/smsrent/internal/config"
	"github.com/smallbiznis/smsrent/internal/observability/logger"
	"github.com/smallbiznis/smsrent/internal/observability/metrics"
	phonedomain "github.com/smallbiznis/smsrent/internal/phonenumber/domain"
	providerdomain "github.com/smallbiznis/smsrent/internal/provider/domain"
	"github.com/smallbiznis/smsrent/internal/provider/wire"
	"github.com/smallbiznis/smsrent/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Cfg     config.Config
	Clock   clock.Clock
	Repo    phonedomain.Repository
	Numbers phonedomain.Service
	Parsers domain.Parsers
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     phonedomain.Repository
	numbers  phonedomain.Service
	parsers  domain.Parsers
	metrics  *metrics.Metrics
	policy   phonedomain.DedupPolicy
	validate *validator.Validate
}

func New(p Params) domain.Service {
	policy := phonedomain.DedupSenderText
	if p.Cfg.Webhook.DedupWithTimestamp {
		policy = phonedomain.DedupSenderTextTime
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("webhook.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		numbers:  p.Numbers,
		parsers:  p.Parsers,
		metrics:  p.Metrics,
		policy:   policy,
		validate: validator.New(),
	}
}

// Ingest decodes a provider-specific payload and stores the SMS.
func (s *Service) Ingest(ctx context.Context, provider string, payload []byte, headers http.Header) domain.Result {
	provider = strings.ToLower(strings.TrimSpace(provider))
	log := logger.WithProvider(logger.WithContext(ctx, s.log), provider)

	parser, err := s.parsers.WebhookParser(provider)
	if err != nil {
		log.Warn("webhook for provider without parser", zap.Error(err))
		return s.finish(ctx, provider, domain.Result{Outcome: domain.OutcomeInvalid, Error: err.Error()})
	}
	sms, err := parser.ParseWebhook(ctx, payload, headers)
	switch {
	case errors.Is(err, providerdomain.ErrEventIgnored):
		return s.finish(ctx, provider, domain.Result{Outcome: domain.OutcomeIgnored})
	case err != nil:
		log.Warn("webhook rejected", zap.Error(err))
		return s.finish(ctx, provider, domain.Result{Outcome: domain.OutcomeInvalid, Error: err.Error()})
	}
	if sms.Provider == "" {
		sms.Provider = provider
	}
	return s.store(ctx, sms)
}

// IngestGeneric accepts the provider-neutral InboundRequest body.
func (s *Service) IngestGeneric(ctx context.Context, payload []byte) domain.Result {
	var req domain.InboundRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.log.Warn("webhook body is not json", zap.Error(err))
		return s.finish(ctx, "", domain.Result{Outcome: domain.OutcomeInvalid, Error: providerdomain.ErrInvalidPayload.Error()})
	}
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if err := s.validate.StructCtx(ctx, req); err != nil {
		s.log.Warn("webhook body failed validation", zap.String("provider", provider), zap.Error(err))
		return s.finish(ctx, provider, domain.Result{Outcome: domain.OutcomeInvalid, Error: providerdomain.ErrInvalidPayload.Error()})
	}
	if strings.TrimSpace(req.ExternalID) == "" && strings.TrimSpace(req.PhoneNumber) == "" {
		return s.finish(ctx, provider, domain.Result{Outcome: domain.OutcomeInvalid, Error: "external_id or phone_number is required"})
	}

	receivedAt, ok := wire.ParseTime(req.ReceivedAt)
	if !ok {
		receivedAt = s.clock.Now()
	}
	return s.store(ctx, &providerdomain.InboundSMS{
		Provider:    provider,
		ExternalID:  strings.TrimSpace(req.ExternalID),
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		Sender:      strings.TrimSpace(req.Sender),
		Text:        strings.TrimSpace(req.Message),
		ReceivedAt:  receivedAt,
		Raw:         json.RawMessage(payload),
	})
}

func (s *Service) store(ctx context.Context, sms *providerdomain.InboundSMS) domain.Result {
	log := logger.WithProvider(logger.WithContext(ctx, s.log), sms.Provider)

	if strings.TrimSpace(sms.Text) == "" {
		log.Info("webhook without message text", zap.String("external_id", sms.ExternalID))
		return s.finish(ctx, sms.Provider, domain.Result{Outcome: domain.OutcomeIgnored, Error: "empty message"})
	}

	number, err := s.lookup(ctx, sms)
	if err != nil {
		log.Error("webhook number lookup failed", zap.Error(err))
		return s.finish(ctx, sms.Provider, domain.Result{Outcome: domain.OutcomeFailed, Error: err.Error()})
	}
	if number == nil {
		log.Warn("webhook for unknown number", zap.String("external_id", sms.ExternalID))
		return s.finish(ctx, sms.Provider, domain.Result{Outcome: domain.OutcomeUnmatched, Error: domain.ErrNumberNotFound.Error()})
	}

	res := domain.Result{PhoneNumberID: number.ID.String()}
	appended, err := s.numbers.AppendMessages(ctx, number,
		[]providerdomain.Message{{Sender: sms.Sender, Text: sms.Text, ReceivedAt: sms.ReceivedAt}},
		phonedomain.SourceWebhook, s.policy,
	)
	switch {
	case err != nil:
		log.Error("webhook message not stored", zap.String("phone_number_id", number.ID.String()), zap.Error(err))
		res.Outcome, res.Error = domain.OutcomeFailed, err.Error()
	case len(appended.Inserted) == 0:
		res.Outcome = domain.OutcomeDuplicate
	default:
		res.Outcome = domain.OutcomeStored
		res.MessageID = appended.Inserted[0].ID.String()
	}
	return s.finish(ctx, sms.Provider, res)
}

// lookup prefers the booking id and falls back to the phone number, compared
// by digits against the provider's active rows.
func (s *Service) lookup(ctx context.Context, sms *providerdomain.InboundSMS) (*phonedomain.PhoneNumber, error) {
	if id := strings.TrimSpace(sms.ExternalID); id != "" {
		number, err := s.repo.FindByExternalID(ctx, s.db, sms.Provider, id)
		if err != nil || number != nil {
			return number, err
		}
	}
	phone := strings.TrimSpace(sms.PhoneNumber)
	if phone == "" {
		return nil, nil
	}
	number, err := s.repo.FindByProviderNumber(ctx, s.db, sms.Provider, phone)
	if err != nil || number != nil {
		return number, err
	}
	active, err := s.repo.ListActiveByProvider(ctx, s.db, sms.Provider)
	if err != nil {
		return nil, err
	}
	for _, n := range active {
		if wire.SamePhone(n.PhoneNumber, phone) {
			return n, nil
		}
	}
	return nil, nil
}

func (s *Service) finish(ctx context.Context, provider string, res domain.Result) domain.Result {
	res.Provider = provider
	s.metrics.RecordWebhookEvent(ctx, provider, res.Outcome)
	return res
}
