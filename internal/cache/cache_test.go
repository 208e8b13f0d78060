package cache

import (
	"testing"
	"time"

	providerdomain "github.com/smallbiznis/smsrent/internal/provider/domain"
	"github.com/stretchr/testify/assert"
)

func TestTTLCacheExpires(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache[string, int]()
	c.now = func() time.Time { return now }

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, 0)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)

	v, ok = c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestCatalogCacheSkipsFallback(t *testing.T) {
	c := NewCatalogCache()
	req := providerdomain.CatalogRequest{Mode: providerdomain.ModeRent, Country: "DE"}

	c.SetCatalog("anosim", req, &providerdomain.Catalog{Source: providerdomain.CatalogSourceFallback})
	_, ok := c.GetCatalog("anosim", req)
	assert.False(t, ok)

	c.SetCatalog("anosim", req, &providerdomain.Catalog{Source: providerdomain.CatalogSourceLive})
	got, ok := c.GetCatalog("ANOSIM", providerdomain.CatalogRequest{Mode: providerdomain.ModeRent, Country: "de"})
	assert.True(t, ok)
	assert.Equal(t, providerdomain.CatalogSourceLive, got.Source)
}
