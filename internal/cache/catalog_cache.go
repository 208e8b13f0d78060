package cache

import (
	"strings"
	"time"

	providerdomain "github.com/smallbiznis/smsrent/internal/provider/domain"
)

const defaultCatalogTTL = 5 * time.Minute

// CatalogCache stores live provider catalogs keyed by provider, mode and country.
type CatalogCache interface {
	GetCatalog(provider string, req providerdomain.CatalogRequest) (*providerdomain.Catalog, bool)
	SetCatalog(provider string, req providerdomain.CatalogRequest, catalog *providerdomain.Catalog)
}

type catalogCache struct {
	catalogs Cache[string, *providerdomain.Catalog]
	ttl      time.Duration
}

func NewCatalogCache() CatalogCache {
	return &catalogCache{
		catalogs: NewTTLCache[string, *providerdomain.Catalog](),
		ttl:      defaultCatalogTTL,
	}
}

func (c *catalogCache) GetCatalog(provider string, req providerdomain.CatalogRequest) (*providerdomain.Catalog, bool) {
	return c.catalogs.Get(cacheKey(provider, string(req.Mode), req.Country))
}

// SetCatalog ignores fallback catalogs so the next read retries the provider.
func (c *catalogCache) SetCatalog(provider string, req providerdomain.CatalogRequest, catalog *providerdomain.Catalog) {
	if catalog == nil || catalog.Source != providerdomain.CatalogSourceLive {
		return
	}
	c.catalogs.Set(cacheKey(provider, string(req.Mode), req.Country), catalog, c.ttl)
}

func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToLower(trimmed))
	}
	return strings.Join(values, "|")
}
