package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/smsrent/internal/cache"
	"github.com/smallbiznis/smsrent/internal/clock"
	"github.com/smallbiznis/smsrent/internal/config"
	"github.com/smallbiznis/smsrent/internal/provider/adapters"
	"github.com/smallbiznis/smsrent/internal/provider/domain"
	"github.com/smallbiznis/smsrent/internal/provider/providertest"
	"github.com/smallbiznis/smsrent/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(adapter domain.Adapter) *Service {
	tuning := config.DefaultProviderCatalogConfig()
	return NewWithAdapters(
		zap.NewNop(),
		clock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		config.NewStaticCatalogConfigHolder(tuning),
		cache.NewCatalogCache(),
		adapter,
	)
}

func TestCatalogCachesLiveResult(t *testing.T) {
	adapter := providertest.NewMockAdapter(domain.ProviderSMSPVA)
	live := &domain.Catalog{Provider: domain.ProviderSMSPVA, Source: domain.CatalogSourceLive}
	adapter.On("GetServicesAndCountries", mock.Anything, domain.CatalogRequest{Mode: domain.ModeRent, Country: "de"}).
		Return(live, nil).Once()

	svc := newTestService(adapter)
	for i := 0; i < 2; i++ {
		got, err := svc.Catalog(context.Background(), "smspva", domain.CatalogRequest{Country: "DE"})
		require.NoError(t, err)
		assert.Same(t, live, got)
	}
	adapter.AssertExpectations(t)
}

func TestCatalogServesTaggedFallbackWhenLiveFails(t *testing.T) {
	adapter := providertest.NewMockAdapter(domain.ProviderAnosim)
	adapter.On("GetServicesAndCountries", mock.Anything, mock.Anything).
		Return(nil, domain.NewError(domain.ProviderAnosim, domain.CodeTimeout, "slow"))

	svc := newTestService(adapter)
	got, err := svc.Catalog(context.Background(), "anosim", domain.CatalogRequest{Mode: domain.ModeRent})
	require.NoError(t, err)
	assert.Equal(t, domain.CatalogSourceFallback, got.Source)
	require.Len(t, got.Countries, 1)
	assert.Equal(t, "de", got.Countries[0].Code)
	require.Len(t, got.Countries[0].Services, 1)
	assert.Equal(t, 2.5, got.Countries[0].Services[0].Cost)
	assert.Equal(t, "EUR", got.Countries[0].Services[0].Currency)
}

func TestCatalogWithoutFallbackReturnsProviderError(t *testing.T) {
	adapter := providertest.NewMockAdapter(domain.ProviderSMSPVA)
	adapter.On("GetServicesAndCountries", mock.Anything, mock.Anything).
		Return(nil, domain.NewError(domain.ProviderSMSPVA, domain.CodeBadKey, "bad key"))

	svc := newTestService(adapter)
	_, err := svc.Catalog(context.Background(), "smspva", domain.CatalogRequest{})
	assert.True(t, domain.IsCode(err, domain.CodeBadKey))
}

func TestAdapterUnknownProvider(t *testing.T) {
	svc := newTestService(providertest.NewMockAdapter(domain.ProviderSMSPVA))
	_, err := svc.Adapter("unknown")
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)

	codes, err := svc.ResolveMapping("smspva", "netflix", "zz")
	require.NoError(t, err)
	assert.Equal(t, "de", codes.Country)
	assert.Equal(t, "other", codes.Service)
	assert.True(t, codes.CountryFallback)
}

func TestNewRegistersProvidersWithoutAPIKeys(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	holder := config.NewStaticCatalogConfigHolder(config.DefaultProviderCatalogConfig())
	cfg := config.Config{Providers: config.ProvidersConfig{
		SMSActivate: config.ProviderConfig{BaseURL: "http://127.0.0.1:1"},
		SMSPVA:      config.ProviderConfig{BaseURL: "http://127.0.0.1:1"},
		Anosim:      config.ProviderConfig{BaseURL: "http://127.0.0.1:1"},
		GoGetSMS:    config.ProviderConfig{BaseURL: "http://127.0.0.1:1"},
	}}

	svc, err := New(Params{
		Cfg:      cfg,
		Log:      zap.NewNop(),
		Clock:    clk,
		Registry: adapters.NewDefaultRegistry(),
		Limiters: ratelimit.NewProviderLimiters(holder, clk),
		Tuning:   holder,
		Cache:    cache.NewCatalogCache(),
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		domain.ProviderAnosim, domain.ProviderGoGetSMS, domain.ProviderSMSActivate, domain.ProviderSMSPVA,
	}, svc.Providers())

	_, err = svc.ListActive(context.Background(), domain.ProviderSMSActivate)
	assert.Equal(t, domain.CodeNoAPIKey, domain.CodeOf(err))
}
