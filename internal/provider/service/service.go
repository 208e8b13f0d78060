package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/smallbiznis/smsrent/internal/cache"
	"github.com/smallbiznis/smsrent/internal/clock"
	"github.com/smallbiznis/smsrent/internal/config"
	"github.com/smallbiznis/smsrent/internal/observability/metrics"
	"github.com/smallbiznis/smsrent/internal/provider/adapters"
	"github.com/smallbiznis/smsrent/internal/provider/domain"
	"github.com/smallbiznis/smsrent/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	Clock    clock.Clock
	Registry *adapters.Registry
	Limiters *ratelimit.ProviderLimiters
	Tuning   *config.CatalogConfigHolder
	Cache    cache.CatalogCache
	Metrics  *metrics.Metrics `optional:"true"`
}

// Service owns one configured adapter per registered provider.
type Service struct {
	log      *zap.Logger
	clock    clock.Clock
	adapters map[string]domain.Adapter
	names    []string
	tuning   *config.CatalogConfigHolder
	cache    cache.CatalogCache
}

func New(p Params) (*Service, error) {
	log := p.Log.Named("provider.service")
	s := &Service{
		log:      log,
		clock:    p.Clock,
		adapters: map[string]domain.Adapter{},
		tuning:   p.Tuning,
		cache:    p.Cache,
	}

	for _, name := range p.Registry.Providers() {
		pc := providerConfig(p.Cfg.Providers, name)
		cfg := domain.AdapterConfig{
			APIKey:   pc.APIKey,
			BaseURL:  pc.BaseURL,
			Timeout:  pc.Timeout,
			Limiter:  p.Limiters.Waiter(name),
			Observer: p.Metrics,
			Logger:   log.With(zap.String("provider", name)),
		}
		if name == domain.ProviderGoGetSMS {
			cfg.WebhookSecret = p.Cfg.Webhook.GoGetSMSSecret
		}
		adapter, err := p.Registry.NewAdapter(name, cfg)
		if err != nil {
			return nil, err
		}
		if pc.APIKey == "" {
			log.Warn("provider has no api key; calls will fail with NO_API_KEY", zap.String("provider", name))
		}
		s.adapters[name] = adapter
		s.names = append(s.names, name)
	}
	return s, nil
}

// NewWithAdapters builds a Service around prepared adapters.
func NewWithAdapters(log *zap.Logger, clk clock.Clock, tuning *config.CatalogConfigHolder, catalogs cache.CatalogCache, list ...domain.Adapter) *Service {
	s := &Service{
		log:      log,
		clock:    clk,
		adapters: map[string]domain.Adapter{},
		tuning:   tuning,
		cache:    catalogs,
	}
	for _, a := range list {
		s.adapters[a.Provider()] = a
		s.names = append(s.names, a.Provider())
	}
	return s
}

func (s *Service) Providers() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

func (s *Service) Adapter(provider string) (domain.Adapter, error) {
	a, ok := s.adapters[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return a, nil
}

// WebhookParser returns the adapter for provider when it accepts pushed SMS.
func (s *Service) WebhookParser(provider string) (domain.WebhookParser, error) {
	a, err := s.Adapter(provider)
	if err != nil {
		return nil, err
	}
	parser, ok := a.(domain.WebhookParser)
	if !ok {
		return nil, domain.NewError(a.Provider(), domain.CodeUnsupported, "webhooks not supported")
	}
	return parser, nil
}

// Catalog serves the live catalog, cached for a few minutes. When the live
// call fails and providers.yml has a fallback for the provider, the fallback
// is returned tagged source=fallback.
func (s *Service) Catalog(ctx context.Context, provider string, req domain.CatalogRequest) (*domain.Catalog, error) {
	a, err := s.Adapter(provider)
	if err != nil {
		return nil, err
	}
	name := a.Provider()
	if req.Mode == "" {
		req.Mode = domain.ModeRent
	}
	req.Country = strings.ToLower(strings.TrimSpace(req.Country))

	if s.cache != nil {
		if cached, ok := s.cache.GetCatalog(name, req); ok {
			return cached, nil
		}
	}

	live, err := a.GetServicesAndCountries(ctx, req)
	if err == nil {
		if s.cache != nil {
			s.cache.SetCatalog(name, req, live)
		}
		return live, nil
	}
	if errors.Is(err, context.Canceled) {
		return nil, err
	}

	fallback := s.fallbackCatalog(a, req)
	if fallback == nil {
		return nil, err
	}
	s.log.Warn("live catalog failed, serving fallback",
		zap.String("provider", name),
		zap.String("code", string(domain.CodeOf(err))),
		zap.Error(err),
	)
	return fallback, nil
}

func (s *Service) fallbackCatalog(a domain.Adapter, req domain.CatalogRequest) *domain.Catalog {
	if s.tuning == nil {
		return nil
	}
	entries := s.tuning.Get().Tuning(a.Provider()).Fallback
	if len(entries) == 0 {
		return nil
	}

	mapping := a.Mapping()
	catalog := &domain.Catalog{
		Provider:  a.Provider(),
		Mode:      req.Mode,
		Source:    domain.CatalogSourceFallback,
		FetchedAt: s.now(),
	}
	for _, entry := range entries {
		country := strings.ToLower(strings.TrimSpace(entry.Country))
		if req.Country != "" && req.Country != country {
			continue
		}
		providerCountry, _ := mapping.Countries.Resolve(country)
		cc := domain.CatalogCountry{
			Code:         country,
			ProviderCode: providerCountry,
			Name:         entry.Name,
		}
		for _, svc := range entry.Services {
			code := strings.ToLower(strings.TrimSpace(svc.Service))
			providerService, _ := mapping.Services.Resolve(code)
			cc.Services = append(cc.Services, domain.CatalogService{
				Code:         code,
				ProviderCode: providerService,
				Name:         svc.Name,
				Cost:         svc.Cost,
				Currency:     svc.Currency,
				Available:    svc.Count,
			})
		}
		catalog.Countries = append(catalog.Countries, cc)
	}
	if len(catalog.Countries) == 0 {
		return nil
	}
	return catalog
}

func (s *Service) ListActive(ctx context.Context, provider string) ([]domain.Booking, error) {
	a, err := s.Adapter(provider)
	if err != nil {
		return nil, err
	}
	return a.ListActive(ctx)
}

// RawStatus queries the provider directly without touching stored rows.
func (s *Service) RawStatus(ctx context.Context, provider, externalID string) (*domain.RentalStatus, error) {
	a, err := s.Adapter(provider)
	if err != nil {
		return nil, err
	}
	return a.GetStatus(ctx, strings.TrimSpace(externalID))
}

// ResolveMapping shows how internal codes translate for provider.
func (s *Service) ResolveMapping(provider, service, country string) (domain.ResolvedCodes, error) {
	a, err := s.Adapter(provider)
	if err != nil {
		return domain.ResolvedCodes{}, err
	}
	return a.Mapping().Resolve(service, country), nil
}

func (s *Service) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}

func providerConfig(cfg config.ProvidersConfig, name string) config.ProviderConfig {
	switch name {
	case domain.ProviderSMSActivate:
		return cfg.SMSActivate
	case domain.ProviderSMSPVA:
		return cfg.SMSPVA
	case domain.ProviderAnosim:
		return cfg.Anosim
	case domain.ProviderGoGetSMS:
		return cfg.GoGetSMS
	default:
		return config.ProviderConfig{}
	}
}
