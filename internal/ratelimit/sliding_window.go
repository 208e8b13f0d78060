package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/smsrent/internal/clock"
	"github.com/smallbiznis/smsrent/internal/config"
)

// SlidingWindow admits at most limit calls in any rolling window.
type SlidingWindow struct {
	mu     sync.Mutex
	clock  clock.Clock
	limit  int
	window time.Duration
	hits   []time.Time
}

func NewSlidingWindow(limit int, window time.Duration, clk clock.Clock) *SlidingWindow {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	w := &SlidingWindow{clock: clk}
	w.SetLimit(limit, window)
	return w
}

// SetLimit replaces the limit and window. Recorded hits are kept.
func (w *SlidingWindow) SetLimit(limit int, window time.Duration) {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	w.mu.Lock()
	w.limit = limit
	w.window = window
	w.mu.Unlock()
}

func (w *SlidingWindow) Limit() (int, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.limit, w.window
}

// Reserve records a hit when a slot is free. Otherwise it returns the
// duration until the oldest hit leaves the window.
func (w *SlidingWindow) Reserve() (bool, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	cutoff := now.Add(-w.window)
	drop := 0
	for drop < len(w.hits) && !w.hits[drop].After(cutoff) {
		drop++
	}
	if drop > 0 {
		w.hits = append(w.hits[:0], w.hits[drop:]...)
	}

	if len(w.hits) < w.limit {
		w.hits = append(w.hits, now)
		return true, 0
	}
	return false, w.hits[0].Add(w.window).Sub(now)
}

func (w *SlidingWindow) Allow() bool {
	ok, _ := w.Reserve()
	return ok
}

// Wait blocks until a slot frees or ctx ends.
func (w *SlidingWindow) Wait(ctx context.Context) error {
	for {
		ok, delay := w.Reserve()
		if ok {
			return nil
		}
		if delay <= 0 {
			delay = time.Millisecond
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// ProviderLimiters keeps one sliding window per provider, tuned from the
// provider catalog config on every use.
type ProviderLimiters struct {
	mu      sync.Mutex
	holder  *config.CatalogConfigHolder
	clock   clock.Clock
	windows map[string]*SlidingWindow
}

func NewProviderLimiters(holder *config.CatalogConfigHolder, clk clock.Clock) *ProviderLimiters {
	return &ProviderLimiters{
		holder:  holder,
		clock:   clk,
		windows: map[string]*SlidingWindow{},
	}
}

func (p *ProviderLimiters) For(provider string) *SlidingWindow {
	key := strings.ToLower(strings.TrimSpace(provider))
	tuning := config.DefaultProviderCatalogConfig().Tuning(key)
	if p.holder != nil {
		tuning = p.holder.Get().Tuning(key)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.windows[key]
	if !ok {
		w = NewSlidingWindow(tuning.RateLimit.Requests, tuning.RateLimit.Window, p.clock)
		p.windows[key] = w
		return w
	}
	if limit, window := w.Limit(); limit != tuning.RateLimit.Requests || window != tuning.RateLimit.Window {
		w.SetLimit(tuning.RateLimit.Requests, tuning.RateLimit.Window)
	}
	return w
}

// Waiter returns a limiter bound to provider that follows config reloads.
func (p *ProviderLimiters) Waiter(provider string) ProviderWaiter {
	return ProviderWaiter{set: p, provider: provider}
}

type ProviderWaiter struct {
	set      *ProviderLimiters
	provider string
}

func (w ProviderWaiter) Wait(ctx context.Context) error {
	return w.set.For(w.provider).Wait(ctx)
}
