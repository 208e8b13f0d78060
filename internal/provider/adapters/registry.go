package adapters

import (
	"sort"
	"strings"

	"github.com/smallbiznis/smsrent/internal/provider/adapters/anosim"
	"github.com/smallbiznis/smsrent/internal/provider/adapters/gogetsms"
	"github.com/smallbiznis/smsrent/internal/provider/adapters/smsactivate"
	"github.com/smallbiznis/smsrent/internal/provider/adapters/smspva"
	"github.com/smallbiznis/smsrent/internal/provider/domain"
)

type Registry struct {
	factories map[string]domain.AdapterFactory
}

// NewDefaultRegistry registers the four supported providers.
func NewDefaultRegistry() *Registry {
	return NewRegistry(
		smsactivate.NewFactory(),
		smspva.NewFactory(),
		anosim.NewFactory(),
		gogetsms.NewFactory(),
	)
}

func NewRegistry(factories ...domain.AdapterFactory) *Registry {
	registry := &Registry{factories: map[string]domain.AdapterFactory{}}
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		provider := strings.ToLower(strings.TrimSpace(factory.Provider()))
		if provider == "" {
			continue
		}
		registry.factories[provider] = factory
	}
	return registry
}

func (r *Registry) ProviderExists(provider string) bool {
	if r == nil {
		return false
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	_, ok := r.factories[provider]
	return ok
}

// Providers lists registered provider names in sorted order.
func (r *Registry) Providers() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) NewAdapter(provider string, cfg domain.AdapterConfig) (domain.Adapter, error) {
	if r == nil {
		return nil, domain.ErrProviderNotFound
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	factory, ok := r.factories[provider]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return factory.NewAdapter(cfg)
}
