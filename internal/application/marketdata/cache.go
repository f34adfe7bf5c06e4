package marketdata

// cache.go: caché de series de precio compartida por todos los bots.
//
// Es el único estado mutable compartido entre bots. Varios bots del mismo
// activo y granularidad piden la misma serie en el mismo ciclo: singleflight
// colapsa los refresh concurrentes de una misma clave en una sola llamada al
// provider. Opcionalmente hay un segundo nivel (Redis) compartido entre
// procesos.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alejandrodnm/signalbot/internal/domain"
	"github.com/alejandrodnm/signalbot/internal/ports"
)

const (
	defaultTTL          = 30 * time.Second
	defaultFetchTimeout = 10 * time.Second
	pruneThreshold      = 1024
)

// Config contiene la configuración de la caché.
type Config struct {
	TTL          time.Duration // frescura de una serie descargada
	FetchTimeout time.Duration // límite de cada llamada al provider
}

type entry struct {
	series    domain.PriceSeries
	fetchedAt time.Time
}

// Cache implementa ports.MarketData sobre un ports.MarketDataProvider.
// Las series devueltas se comparten entre llamadas y no deben modificarse.
type Cache struct {
	provider ports.MarketDataProvider
	shared   ports.SeriesStore
	metrics  ports.Metrics
	cfg      Config
	now      func() time.Time

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]entry
}

// Option configura la Cache.
type Option func(*Cache)

// WithSharedStore añade un segundo nivel compartido entre procesos.
func WithSharedStore(s ports.SeriesStore) Option {
	return func(c *Cache) { c.shared = s }
}

// WithMetrics registra hits y misses.
func WithMetrics(m ports.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithClock sustituye time.Now. Útil en tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New crea una Cache delante de provider.
func New(provider ports.MarketDataProvider, cfg Config, opts ...Option) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	c := &Cache{
		provider: provider,
		metrics:  ports.NopMetrics{},
		cfg:      cfg,
		now:      time.Now,
		entries:  make(map[string]entry),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func cacheKey(asset string, g domain.Granularity, lookback int) string {
	return fmt.Sprintf("%s|%s|%d", asset, g, lookback)
}

// PriceSeries devuelve la serie cacheada si está fresca; si no, la descarga
// una sola vez aunque haya varios llamantes concurrentes. Cada llamante deja
// de esperar cuando su propio contexto termina.
func (c *Cache) PriceSeries(ctx context.Context, asset string, g domain.Granularity, lookback int) (domain.PriceSeries, error) {
	key := cacheKey(asset, g, lookback)

	if s, ok := c.lookup(key); ok {
		c.metrics.IncCache("hit")
		return s, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// el fetch no depende del contexto del primer llamante
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.FetchTimeout)
		defer cancel()
		return c.fetch(fetchCtx, key, asset, g, lookback)
	})

	select {
	case <-ctx.Done():
		return domain.PriceSeries{}, fmt.Errorf("marketdata.PriceSeries: %s: %w", key, ctx.Err())
	case res := <-ch:
		if res.Shared {
			c.metrics.IncCache("coalesced")
		}
		if res.Err != nil {
			return domain.PriceSeries{}, res.Err
		}
		return res.Val.(domain.PriceSeries), nil
	}
}

func (c *Cache) fetch(ctx context.Context, key, asset string, g domain.Granularity, lookback int) (domain.PriceSeries, error) {
	// otro llamante pudo completar el fetch mientras esperábamos
	if s, ok := c.lookup(key); ok {
		return s, nil
	}

	if c.shared != nil {
		s, ok, err := c.shared.GetSeries(ctx, key)
		if err != nil {
			slog.Warn("marketdata: shared store read failed", "key", key, "err", err)
		}
		if ok {
			c.metrics.IncCache("shared_hit")
			c.store(key, s)
			return s, nil
		}
	}

	c.metrics.IncCache("miss")
	s, err := c.provider.PriceSeries(ctx, asset, g, lookback)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrMarketDataUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrMarketDataUnavailable, err)
		}
		return domain.PriceSeries{}, fmt.Errorf("marketdata.fetch: %s: %w", key, err)
	}

	c.store(key, s)
	if c.shared != nil {
		if err := c.shared.SetSeries(ctx, key, s); err != nil {
			slog.Warn("marketdata: shared store write failed", "key", key, "err", err)
		}
	}
	return s, nil
}

func (c *Cache) lookup(key string) (domain.PriceSeries, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.fetchedAt) >= c.cfg.TTL {
		return domain.PriceSeries{}, false
	}
	return e.series, true
}

func (c *Cache) store(key string, s domain.PriceSeries) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if len(c.entries) >= pruneThreshold {
		for k, e := range c.entries {
			if now.Sub(e.fetchedAt) >= c.cfg.TTL {
				delete(c.entries, k)
			}
		}
	}
	c.entries[key] = entry{series: s, fetchedAt: now}
}

// Invalidate descarta todas las entradas en memoria.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}
