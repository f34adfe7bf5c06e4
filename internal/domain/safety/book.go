package safety

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/signalbot/internal/domain"
	"github.com/alejandrodnm/signalbot/internal/ports"
)

// Book owns the per-bot trading counters: last trade time for the cooldown
// and realized loss per UTC day for the daily cap.
type Book struct {
	store ports.CountersStore

	mu       sync.Mutex
	counters map[string]domain.TradingCounters
}

func NewBook(store ports.CountersStore) *Book {
	return &Book{store: store, counters: make(map[string]domain.TradingCounters)}
}

// get must be called with b.mu held.
func (b *Book) get(ctx context.Context, botID string) (domain.TradingCounters, error) {
	if c, ok := b.counters[botID]; ok {
		return c, nil
	}
	c, ok, err := b.store.LoadCounters(ctx, botID)
	if err != nil {
		return domain.TradingCounters{}, err
	}
	if !ok {
		c = domain.TradingCounters{BotID: botID, DailyLoss: decimal.Zero}
	}
	b.counters[botID] = c
	return c, nil
}

func (b *Book) put(ctx context.Context, c domain.TradingCounters) error {
	if err := b.store.SaveCounters(ctx, c); err != nil {
		return err
	}
	b.counters[c.BotID] = c
	return nil
}

// Counters returns a copy of the bot's counters.
func (b *Book) Counters(ctx context.Context, botID string) (domain.TradingCounters, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, err := b.get(ctx, botID)
	if err != nil {
		return domain.TradingCounters{}, fmt.Errorf("safety.Counters: %w", err)
	}
	return c, nil
}

// Consume starts the cooldown at now, before the order is sent. It returns
// the previous trade time so the caller can Restore it if the exchange
// rejects the order. ok is false when a cooldown is already running.
func (b *Book) Consume(ctx context.Context, botID string, cooldown time.Duration, now time.Time) (prev time.Time, ok bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, err := b.get(ctx, botID)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("safety.Consume: %w", err)
	}
	if !c.LastTradeAt.IsZero() && now.Sub(c.LastTradeAt) < cooldown {
		return c.LastTradeAt, false, nil
	}
	prev = c.LastTradeAt
	c.LastTradeAt = now
	if err := b.put(ctx, c); err != nil {
		return time.Time{}, false, fmt.Errorf("safety.Consume: %w", err)
	}
	return prev, true, nil
}

// Restore puts back the trade time returned by Consume.
func (b *Book) Restore(ctx context.Context, botID string, prev time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, err := b.get(ctx, botID)
	if err != nil {
		return fmt.Errorf("safety.Restore: %w", err)
	}
	c.LastTradeAt = prev
	if err := b.put(ctx, c); err != nil {
		return fmt.Errorf("safety.Restore: %w", err)
	}
	return nil
}

// RecordRealized adds a realized PnL to the bot's daily bucket. Only losses
// count; gains never offset them. The bucket rolls over at UTC midnight.
func (b *Book) RecordRealized(ctx context.Context, botID string, pnl decimal.Decimal, now time.Time) error {
	if !pnl.IsNegative() {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c, err := b.get(ctx, botID)
	if err != nil {
		return fmt.Errorf("safety.RecordRealized: %w", err)
	}
	day := domain.UTCDay(now)
	if !c.Day.Equal(day) {
		c.Day = day
		c.DailyLoss = decimal.Zero
	}
	c.DailyLoss = c.DailyLoss.Add(pnl.Neg())
	if err := b.put(ctx, c); err != nil {
		return fmt.Errorf("safety.RecordRealized: %w", err)
	}
	return nil
}

// Forget drops the cached counters of a deleted bot.
func (b *Book) Forget(botID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.counters, botID)
}
