package evaluator

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// Statuses returns one row per configured bot for the operator view.
func (e *Evaluator) Statuses(ctx context.Context) ([]domain.BotStatus, error) {
	bots, err := e.deps.Bots.ListBots(ctx)
	if err != nil {
		return nil, fmt.Errorf("evaluator.Statuses: %w", err)
	}
	out := make([]domain.BotStatus, 0, len(bots))
	for _, b := range bots {
		st := domain.BotStatus{Bot: b}
		snap, ok, err := e.deps.Bots.LatestSnapshot(ctx, b.ID)
		if err != nil {
			return nil, fmt.Errorf("evaluator.Statuses: %s: %w", b.ID, err)
		}
		if ok {
			st.Snapshot = &snap
		}
		if st.Counters, err = e.deps.Book.Counters(ctx, b.ID); err != nil {
			return nil, fmt.Errorf("evaluator.Statuses: %s: %w", b.ID, err)
		}
		out = append(out, st)
	}
	return out, nil
}
