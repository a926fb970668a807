// Package fxrate converts money between currencies using periodically fetched rates.
package fxrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrRatesUnavailable    = errors.New("exchange rates unavailable")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
)

// FetchFunc returns the rates of every known currency against base.
type FetchFunc func(ctx context.Context, base string) (map[string]decimal.Decimal, error)

type entry struct {
	rates     map[string]decimal.Decimal
	fetchedAt time.Time
}

// Cache keeps rates per base currency for ttl. When a refresh fails it serves the
// last known rates, however old.
type Cache struct {
	fetch FetchFunc
	ttl   time.Duration
	now   func() time.Time
	log   *zap.Logger

	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group
}

type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func NewCache(fetch FetchFunc, ttl time.Duration, log *zap.Logger, opts ...Option) *Cache {
	c := &Cache{
		fetch:   fetch,
		ttl:     ttl,
		now:     time.Now,
		log:     log.With(zap.String("component", "fxrate")),
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rate returns how many units of to one unit of from buys.
func (c *Cache) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	rates, err := c.rates(ctx, from)
	if err != nil {
		return decimal.Zero, err
	}

	rate, ok := rates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, to)
	}
	return rate, nil
}

// Convert returns amount in to, rounded to places, and the rate used.
func (c *Cache) Convert(ctx context.Context, amount decimal.Decimal, from, to string, places int32) (decimal.Decimal, decimal.Decimal, error) {
	rate, err := c.Rate(ctx, from, to)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return amount.Mul(rate).Round(places), rate, nil
}

func (c *Cache) rates(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	c.mu.RLock()
	cached, ok := c.entries[base]
	c.mu.RUnlock()

	if ok && c.now().Sub(cached.fetchedAt) < c.ttl {
		return cached.rates, nil
	}

	v, err, _ := c.group.Do(base, func() (any, error) {
		rates, err := c.fetch(ctx, base)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[base] = entry{rates: rates, fetchedAt: c.now()}
		c.mu.Unlock()
		return rates, nil
	})
	if err == nil {
		return v.(map[string]decimal.Decimal), nil
	}

	if ok {
		c.log.Warn("Rate refresh failed, serving stale rates",
			zap.Error(err),
			zap.String("base", base),
			zap.Duration("age", c.now().Sub(cached.fetchedAt)),
		)
		return cached.rates, nil
	}

	c.log.Error("Rate fetch failed", zap.Error(err), zap.String("base", base))
	return nil, fmt.Errorf("%w: %v", ErrRatesUnavailable, err)
}
