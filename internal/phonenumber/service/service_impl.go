package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/smsrent/internal/clock"
	"github.com/smallbiznis/smsrent/internal/events"
	"github.com/smallbiznis/smsrent/internal/observability/logger"
	"github.com/smallbiznis/smsrent/internal/observability/metrics"
	"github.com/smallbiznis/smsrent/internal/phonenumber/domain"
	providerdomain "github.com/smallbiznis/smsrent/internal/provider/domain"
	"github.com/smallbiznis/smsrent/internal/recovery"
	"github.com/smallbiznis/smsrent/pkg/db"
	"github.com/smallbiznis/smsrent/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Providers providerdomain.Directory
	Events    events.Publisher
	Recovery  recovery.Store
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	providers providerdomain.Directory
	events    events.Publisher
	recovery  recovery.Store
	metrics   *metrics.Metrics
	validate  *validator.Validate
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("phonenumber.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		providers: p.Providers,
		events:    p.Events,
		recovery:  p.Recovery,
		metrics:   p.Metrics,
		validate:  validator.New(),
	}
}

func (s *Service) Get(ctx context.Context, id string) (*domain.PhoneNumber, error) {
	numberID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, numberID)
}

func (s *Service) load(ctx context.Context, id snowflake.ID) (*domain.PhoneNumber, error) {
	number, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if number == nil {
		return nil, domain.ErrNotFound
	}
	return number, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	filter := domain.ListFilter{
		Provider: strings.ToLower(strings.TrimSpace(req.Provider)),
		Service:  strings.ToLower(strings.TrimSpace(req.Service)),
		Country:  strings.ToLower(strings.TrimSpace(req.Country)),
	}
	switch status := domain.Status(strings.ToLower(strings.TrimSpace(req.Status))); status {
	case "", domain.StatusActive, domain.StatusExpired:
		filter.Status = status
	default:
		return domain.ListResponse{}, domain.ErrInvalidStatus
	}

	page := pagination.Pagination{PageToken: strings.TrimSpace(req.PageToken), PageSize: req.PageSize}
	items, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, page.Limit(), func(n *domain.PhoneNumber) string {
		return pagination.CursorFor(int64(n.ID), n.CreatedAt)
	})

	numbers := make([]domain.PhoneNumber, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		numbers = append(numbers, *item)
	}
	return domain.ListResponse{PageInfo: *pageInfo, PhoneNumbers: numbers}, nil
}

func (s *Service) Messages(ctx context.Context, id string) ([]domain.Message, error) {
	number, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListMessages(ctx, s.db, number.ID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Message, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}

// Cancel releases the number upstream and deletes the row. A provider that
// already considers the rental over is treated as success.
func (s *Service) Cancel(ctx context.Context, id string) error {
	number, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	adapter, err := s.providers.Adapter(number.Provider)
	if err != nil {
		return err
	}

	log := logger.WithProvider(logger.FromContext(ctx), number.Provider)
	if err := adapter.Cancel(ctx, number.ExternalID); err != nil {
		if !providerdomain.IsCode(err,
			providerdomain.CodeAlreadyCancelled,
			providerdomain.CodeAlreadyFinished,
			providerdomain.CodeNotFound,
		) {
			return err
		}
		log.Info("provider already released rental",
			zap.String("phone_number_id", number.ID.String()),
			zap.String("code", string(providerdomain.CodeOf(err))),
		)
	}

	return s.repo.Delete(ctx, s.db, number.ID)
}

func (s *Service) Extend(ctx context.Context, id string, hours int) (*domain.PhoneNumber, error) {
	if hours <= 0 {
		return nil, domain.ErrInvalidHours
	}
	number, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.extend(ctx, number, hours)
}

func (s *Service) extend(ctx context.Context, number *domain.PhoneNumber, hours int) (*domain.PhoneNumber, error) {
	adapter, err := s.providers.Adapter(number.Provider)
	if err != nil {
		return nil, err
	}
	rental, err := adapter.Extend(ctx, number.ExternalID, hours)
	if err != nil {
		return nil, err
	}

	updated := *number
	updated.Status = domain.StatusActive
	if rental.EndDate != nil {
		updated.EndDate = rental.EndDate
	} else if number.EndDate != nil {
		end := number.EndDate.Add(time.Duration(hours) * time.Hour)
		updated.EndDate = &end
	}
	if rental.Cost > 0 {
		updated.Cost = number.Cost + rental.Cost
	}
	if len(rental.Raw) > 0 {
		updated.RawResponse = datatypes.JSON(rental.Raw)
	}
	updated.UpdatedAt = s.clock.Now()

	if err := s.repo.UpdateRental(ctx, s.db, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func rawJSON(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 || !json.Valid(raw) {
		return nil
	}
	return datatypes.JSON(raw)
}

func isDuplicate(err error) bool {
	return err != nil && db.IsDuplicateKeyErr(err)
}

var errNilRental = errors.New("provider returned no rental")
