package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/signalbot/config"
	"github.com/alejandrodnm/signalbot/internal/adapters/storage"
	"github.com/alejandrodnm/signalbot/internal/application/evaluator"
)

// syncBots hace que la tabla bots refleje el YAML: upsert de los definidos y
// borrado de los que ya no aparecen. El ledger de los borrados se conserva.
func syncBots(ctx context.Context, cfg *config.Config, store *storage.SQLiteStorage, ev *evaluator.Evaluator) error {
	bots, err := cfg.DomainBots()
	if err != nil {
		return fmt.Errorf("syncBots: %w", err)
	}

	wanted := make(map[string]bool, len(bots))
	for _, b := range bots {
		wanted[b.ID] = true
		if err := store.SaveBot(ctx, b); err != nil {
			return fmt.Errorf("syncBots: %w", err)
		}
	}

	existing, err := store.ListBots(ctx)
	if err != nil {
		return fmt.Errorf("syncBots: %w", err)
	}
	for _, b := range existing {
		if wanted[b.ID] {
			continue
		}
		if err := ev.RemoveBot(ctx, b.ID); err != nil {
			return fmt.Errorf("syncBots: %w", err)
		}
	}

	slog.Info("bots loaded", "count", len(bots), "removed", len(existing)-len(bots))
	return nil
}
