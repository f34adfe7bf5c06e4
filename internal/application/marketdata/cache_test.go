package marketdata_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/signalbot/internal/application/marketdata"
	"github.com/alejandrodnm/signalbot/internal/domain"
	"github.com/alejandrodnm/signalbot/internal/ports"
)

type fakeProvider struct {
	calls atomic.Int32
	gate  chan struct{}
	err   error
}

func (f *fakeProvider) PriceSeries(ctx context.Context, asset string, g domain.Granularity, lookback int) (domain.PriceSeries, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return domain.PriceSeries{}, ctx.Err()
		}
	}
	if f.err != nil {
		return domain.PriceSeries{}, f.err
	}
	return domain.PriceSeries{
		Asset: asset, Granularity: g,
		Candles: []domain.Candle{{OpenTime: time.Unix(0, 0).UTC(), Close: float64(lookback)}},
	}, nil
}

type memSeries struct {
	mu sync.Mutex
	m  map[string]domain.PriceSeries
}

func (s *memSeries) GetSeries(_ context.Context, key string) (domain.PriceSeries, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *memSeries) SetSeries(_ context.Context, key string, v domain.PriceSeries) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = v
	return nil
}

type countingMetrics struct {
	ports.NopMetrics
	mu     sync.Mutex
	counts map[string]int
}

func (m *countingMetrics) IncCache(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[result]++
}

func TestCache_CoalescesConcurrentRefreshes(t *testing.T) {
	p := &fakeProvider{gate: make(chan struct{})}
	c := marketdata.New(p, marketdata.Config{TTL: time.Minute})

	const callers = 10
	var wg sync.WaitGroup
	results := make(chan domain.PriceSeries, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := c.PriceSeries(context.Background(), "BTC-USD", domain.Granularity5m, 50)
			assert.NoError(t, err)
			results <- s
		}()
	}
	// let the callers pile up on the in-flight fetch
	require.Eventually(t, func() bool { return p.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(p.gate)
	wg.Wait()
	close(results)

	assert.Equal(t, int32(1), p.calls.Load())
	for s := range results {
		assert.Equal(t, "BTC-USD", s.Asset)
	}
}

func TestCache_KeysAreIndependent(t *testing.T) {
	p := &fakeProvider{}
	c := marketdata.New(p, marketdata.Config{TTL: time.Minute})
	ctx := context.Background()

	a, err := c.PriceSeries(ctx, "BTC-USD", domain.Granularity5m, 50)
	require.NoError(t, err)
	b, err := c.PriceSeries(ctx, "BTC-USD", domain.Granularity5m, 100)
	require.NoError(t, err)
	_, err = c.PriceSeries(ctx, "BTC-USD", domain.Granularity1h, 50)
	require.NoError(t, err)

	assert.Equal(t, int32(3), p.calls.Load())
	assert.Equal(t, 50.0, a.LastClose())
	assert.Equal(t, 100.0, b.LastClose())
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	p := &fakeProvider{}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := &countingMetrics{counts: map[string]int{}}
	c := marketdata.New(p, marketdata.Config{TTL: 30 * time.Second},
		marketdata.WithClock(func() time.Time { return now }), marketdata.WithMetrics(m))
	ctx := context.Background()

	_, err := c.PriceSeries(ctx, "ETH-USD", domain.Granularity1m, 20)
	require.NoError(t, err)
	now = now.Add(29 * time.Second)
	_, err = c.PriceSeries(ctx, "ETH-USD", domain.Granularity1m, 20)
	require.NoError(t, err)
	assert.Equal(t, int32(1), p.calls.Load())

	now = now.Add(time.Second)
	_, err = c.PriceSeries(ctx, "ETH-USD", domain.Granularity1m, 20)
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.calls.Load())

	assert.Equal(t, 1, m.counts["hit"])
	assert.Equal(t, 2, m.counts["miss"])
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	p := &fakeProvider{err: domain.ErrMarketDataUnavailable}
	c := marketdata.New(p, marketdata.Config{TTL: time.Minute})
	ctx := context.Background()

	_, err := c.PriceSeries(ctx, "BTC-USD", domain.Granularity5m, 50)
	assert.ErrorIs(t, err, domain.ErrMarketDataUnavailable)

	p.err = nil
	_, err = c.PriceSeries(ctx, "BTC-USD", domain.Granularity5m, 50)
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestCache_FetchTimeoutIsUnavailable(t *testing.T) {
	p := &fakeProvider{gate: make(chan struct{})}
	defer close(p.gate)
	c := marketdata.New(p, marketdata.Config{TTL: time.Minute, FetchTimeout: 20 * time.Millisecond})

	_, err := c.PriceSeries(context.Background(), "BTC-USD", domain.Granularity5m, 50)
	assert.ErrorIs(t, err, domain.ErrMarketDataUnavailable)
}

func TestCache_CallerContextStopsWaiting(t *testing.T) {
	p := &fakeProvider{gate: make(chan struct{})}
	defer close(p.gate)
	c := marketdata.New(p, marketdata.Config{TTL: time.Minute, FetchTimeout: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.PriceSeries(ctx, "BTC-USD", domain.Granularity5m, 50)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestCache_SharedStoreServesOtherProcesses(t *testing.T) {
	shared := &memSeries{m: map[string]domain.PriceSeries{}}
	ctx := context.Background()

	first := &fakeProvider{}
	_, err := marketdata.New(first, marketdata.Config{}, marketdata.WithSharedStore(shared)).
		PriceSeries(ctx, "SOL-USD", domain.Granularity15m, 30)
	require.NoError(t, err)
	assert.Len(t, shared.m, 1)

	second := &fakeProvider{}
	s, err := marketdata.New(second, marketdata.Config{}, marketdata.WithSharedStore(shared)).
		PriceSeries(ctx, "SOL-USD", domain.Granularity15m, 30)
	require.NoError(t, err)
	assert.Equal(t, int32(0), second.calls.Load())
	assert.Equal(t, "SOL-USD", s.Asset)
}
