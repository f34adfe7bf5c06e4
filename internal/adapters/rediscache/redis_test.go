package rediscache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/signalbot/internal/adapters/rediscache"
	"github.com/alejandrodnm/signalbot/internal/domain"
)

// Needs a live server: REDIS_ADDR=localhost:6379 go test ./internal/adapters/rediscache
func newStore(t *testing.T) *rediscache.Store {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	s, err := rediscache.New(context.Background(), rediscache.Config{
		Addr:   addr,
		Prefix: "signalbot-test-" + t.Name(),
		TTL:    time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, ok, err := s.GetSeries(ctx, "BTC-USD|1h|50")
	require.NoError(t, err)
	assert.False(t, ok)

	want := domain.PriceSeries{
		Asset: "BTC-USD", Granularity: domain.Granularity1h,
		Candles: []domain.Candle{
			{OpenTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		},
	}
	require.NoError(t, s.SetSeries(ctx, "BTC-USD|1h|50", want))

	got, ok, err := s.GetSeries(ctx, "BTC-USD|1h|50")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestNew_UnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := rediscache.New(ctx, rediscache.Config{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
