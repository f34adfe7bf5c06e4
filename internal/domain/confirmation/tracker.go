// Package confirmation tracks how long each bot has held its current action.
//
// A bot's action is confirmed once it has been observed unchanged for the
// configured window. Any change of action restarts the window from zero and
// clears confirmation; progress never carries over between actions.
package confirmation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/signalbot/internal/domain"
	"github.com/alejandrodnm/signalbot/internal/ports"
)

// Next is the pure transition of the state machine. known is false when no
// prior state exists for the bot.
func Next(prev domain.ConfirmationState, known bool, botID string, action domain.Action, required time.Duration, now time.Time) domain.ConfirmationState {
	if required < 0 {
		required = 0
	}
	if !known || prev.Action != action {
		next := domain.ConfirmationState{BotID: botID, Action: action, Since: now, Required: required}
		if required == 0 {
			next.Confirmed = true
			next.ConfirmedAt = now
		}
		return next
	}

	next := prev
	next.BotID = botID
	next.Required = required
	if !next.Confirmed && next.Elapsed(now) >= required {
		next.Confirmed = true
		next.ConfirmedAt = now
	}
	return next
}

type entry struct {
	mu     sync.Mutex
	loaded bool
	known  bool
	state  domain.ConfirmationState
}

// Tracker owns the confirmation state of every bot. State is loaded lazily
// from the store the first time a bot is seen and written back on every
// change. Safe for concurrent use; calls for the same bot are serialized.
type Tracker struct {
	store ports.ConfirmationStore

	mu      sync.Mutex
	entries map[string]*entry
}

// NewTracker creates a tracker backed by store.
func NewTracker(store ports.ConfirmationStore) *Tracker {
	return &Tracker{store: store, entries: make(map[string]*entry)}
}

func (t *Tracker) entry(botID string) *entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[botID]
	if !ok {
		e = &entry{}
		t.entries[botID] = e
	}
	return e
}

// load fills e from the store. Must be called with e.mu held.
func (t *Tracker) load(ctx context.Context, e *entry, botID string, now time.Time) error {
	if e.loaded {
		return nil
	}
	state, ok, err := t.store.LoadConfirmation(ctx, botID)
	switch {
	case errors.Is(err, domain.ErrStateCorrupted):
		slog.Warn("confirmation: corrupted state, resetting to unconfirmed HOLD",
			"bot", botID, "err", err)
		state = domain.ConfirmationState{BotID: botID, Action: domain.ActionHold, Since: now}
		if err := t.store.SaveConfirmation(ctx, state); err != nil {
			return fmt.Errorf("confirmation.load: save reset state: %w", err)
		}
		ok = true
	case err != nil:
		return fmt.Errorf("confirmation.load: %w", err)
	}
	e.loaded, e.known, e.state = true, ok, state
	return nil
}

// Observe records that action was produced for botID at now and returns the
// resulting state. required is the bot's confirmation window.
func (t *Tracker) Observe(ctx context.Context, botID string, action domain.Action, required time.Duration, now time.Time) (domain.ConfirmationState, error) {
	e := t.entry(botID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := t.load(ctx, e, botID, now); err != nil {
		return domain.ConfirmationState{}, err
	}

	next := Next(e.state, e.known, botID, action, required, now)
	if !e.known || next != e.state {
		if err := t.store.SaveConfirmation(ctx, next); err != nil {
			return domain.ConfirmationState{}, fmt.Errorf("confirmation.Observe: %w", err)
		}
	}
	e.known, e.state = true, next
	return next, nil
}

// Snapshot returns a copy of the current state. A bot that was never
// observed reports an unconfirmed HOLD with a zero Since.
func (t *Tracker) Snapshot(ctx context.Context, botID string) (domain.ConfirmationState, error) {
	e := t.entry(botID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := t.load(ctx, e, botID, time.Now()); err != nil {
		return domain.ConfirmationState{}, err
	}
	if !e.known {
		return domain.ConfirmationState{BotID: botID, Action: domain.ActionHold}, nil
	}
	return e.state, nil
}

// Reset forgets the bot's state, in memory and in the store.
func (t *Tracker) Reset(ctx context.Context, botID string) error {
	e := t.entry(botID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := t.store.DeleteConfirmation(ctx, botID); err != nil {
		return fmt.Errorf("confirmation.Reset: %w", err)
	}
	e.loaded, e.known, e.state = true, false, domain.ConfirmationState{}
	return nil
}
