// Package rediscache shares fetched price series between processes through
// Redis. It sits under the in-process market-data cache as a second level.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// Config holds the connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// Store implements ports.SeriesStore.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New connects and pings Redis.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "signalbot"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("rediscache.New: ping %s: %w", cfg.Addr, err)
	}
	return &Store{client: client, prefix: cfg.Prefix, ttl: cfg.TTL}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) wrapKey(key string) string {
	return s.prefix + ":series:" + key
}

// GetSeries returns ok=false on a miss.
func (s *Store) GetSeries(ctx context.Context, key string) (domain.PriceSeries, bool, error) {
	data, err := s.client.Get(ctx, s.wrapKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.PriceSeries{}, false, nil
	}
	if err != nil {
		return domain.PriceSeries{}, false, fmt.Errorf("rediscache.GetSeries: %w", err)
	}
	series, err := decode(data)
	if err != nil {
		return domain.PriceSeries{}, false, fmt.Errorf("rediscache.GetSeries: %s: %w", key, err)
	}
	return series, true, nil
}

// SetSeries stores the series with the configured TTL.
func (s *Store) SetSeries(ctx context.Context, key string, series domain.PriceSeries) error {
	data, err := encode(series)
	if err != nil {
		return fmt.Errorf("rediscache.SetSeries: %w", err)
	}
	if err := s.client.Set(ctx, s.wrapKey(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("rediscache.SetSeries: %w", err)
	}
	return nil
}

func encode(series domain.PriceSeries) ([]byte, error) {
	return json.Marshal(series)
}

func decode(data []byte) (domain.PriceSeries, error) {
	var series domain.PriceSeries
	if err := json.Unmarshal(data, &series); err != nil {
		return domain.PriceSeries{}, err
	}
	return series, nil
}
