// Package providertest offers a testify mock adapter for packages that sit on
// top of the provider layer.
package providertest

import (
	"context"
	"strings"

	"github.com/smallbiznis/smsrent/internal/provider/domain"
	"github.com/stretchr/testify/mock"
)

var defaultMapping = domain.Mapping{
	Countries: domain.MustCodeTable(map[string]string{"de": "DE", "us": "US"}, domain.DefaultCountry),
	Services:  domain.MustCodeTable(map[string]string{"other": "other", "telegram": "tg"}, domain.DefaultService),
}

type MockAdapter struct {
	mock.Mock
	Name string
}

func NewMockAdapter(name string) *MockAdapter {
	return &MockAdapter{Name: name}
}

func (m *MockAdapter) Provider() string { return m.Name }

func (m *MockAdapter) Mapping() domain.Mapping { return defaultMapping }

func (m *MockAdapter) GetServicesAndCountries(ctx context.Context, req domain.CatalogRequest) (*domain.Catalog, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*domain.Catalog), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdapter) RentNumber(ctx context.Context, req domain.RentRequest) (*domain.Rental, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*domain.Rental), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdapter) GetStatus(ctx context.Context, externalID string) (*domain.RentalStatus, error) {
	args := m.Called(ctx, externalID)
	if v := args.Get(0); v != nil {
		return v.(*domain.RentalStatus), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdapter) Cancel(ctx context.Context, externalID string) error {
	return m.Called(ctx, externalID).Error(0)
}

func (m *MockAdapter) Extend(ctx context.Context, externalID string, hours int) (*domain.Rental, error) {
	args := m.Called(ctx, externalID, hours)
	if v := args.Get(0); v != nil {
		return v.(*domain.Rental), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdapter) ListActive(ctx context.Context) ([]domain.Booking, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]domain.Booking), args.Error(1)
	}
	return nil, args.Error(1)
}

// Directory is a fixed domain.Directory over prepared adapters.
type Directory map[string]domain.Adapter

func NewDirectory(list ...domain.Adapter) Directory {
	d := Directory{}
	for _, a := range list {
		d[a.Provider()] = a
	}
	return d
}

func (d Directory) Providers() []string {
	out := make([]string, 0, len(d))
	for name := range d {
		out = append(out, name)
	}
	return out
}

func (d Directory) Adapter(provider string) (domain.Adapter, error) {
	a, ok := d[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return a, nil
}
