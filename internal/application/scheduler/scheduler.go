// Package scheduler triggers bot evaluations on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/signalbot/internal/application/evaluator"
	"github.com/alejandrodnm/signalbot/internal/domain"
	"github.com/alejandrodnm/signalbot/internal/ports"
)

// Config contiene la configuración del scheduler.
type Config struct {
	Interval time.Duration
	Workers  int  // evaluaciones concurrentes (0 = NumCPU*2)
	Once     bool // un solo ciclo y salir
}

// BotLister devuelve los bots a evaluar en cada ciclo.
type BotLister interface {
	ListBots(ctx context.Context) ([]domain.Bot, error)
}

// BotEvaluator ejecuta un ciclo de decisión para un bot.
type BotEvaluator interface {
	Evaluate(ctx context.Context, botID string) (evaluator.Result, error)
}

// StatusSource alimenta al notifier después de cada ciclo.
type StatusSource interface {
	Statuses(ctx context.Context) ([]domain.BotStatus, error)
}

// HaltReader informa si el emergency stop está activo.
type HaltReader interface {
	Engaged(ctx context.Context) (bool, error)
}

// Report resume un ciclo.
type Report struct {
	Results   []evaluator.Result
	Evaluated int
	Skipped   int
	NoSignal  int
	Trades    int
	Failed    int
	Duration  time.Duration
}

// Scheduler es el loop principal: cada intervalo evalúa todos los bots en
// paralelo. El fallo de un bot nunca detiene a los demás.
type Scheduler struct {
	cfg      Config
	bots     BotLister
	eval     BotEvaluator
	notifier ports.Notifier
	statuses StatusSource
	halt     HaltReader
}

// Option configura el Scheduler.
type Option func(*Scheduler)

// WithNotifier muestra el estado de los bots tras cada ciclo.
func WithNotifier(n ports.Notifier, src StatusSource, halt HaltReader) Option {
	return func(s *Scheduler) {
		s.notifier, s.statuses, s.halt = n, src, halt
	}
}

// New crea un Scheduler con todas las dependencias inyectadas.
func New(cfg Config, bots BotLister, eval BotEvaluator, opts ...Option) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU() * 2
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	s := &Scheduler{cfg: cfg, bots: bots, eval: eval}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run ejecuta el loop hasta que el contexto se cancele.
// Si cfg.Once está activo, solo ejecuta un ciclo.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("scheduler starting",
		"interval", s.cfg.Interval,
		"workers", s.cfg.Workers,
		"once", s.cfg.Once,
	)

	if err := s.runCycle(ctx); err != nil {
		slog.Error("evaluation cycle failed", "err", err)
		if s.cfg.Once {
			return err
		}
	}
	if s.cfg.Once {
		return nil
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			if err := s.runCycle(ctx); err != nil {
				slog.Error("evaluation cycle failed", "err", err)
			}
		}
	}
}

// RunOnce evalúa todos los bots exactamente una vez. El error agrupa los
// bots que fallaron; el report contiene igualmente todos los resultados.
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	return s.cycle(ctx)
}

func (s *Scheduler) runCycle(ctx context.Context) error {
	rep, err := s.cycle(ctx)
	slog.Info("evaluation cycle complete",
		"bots", len(rep.Results),
		"evaluated", rep.Evaluated,
		"no_signal", rep.NoSignal,
		"trades", rep.Trades,
		"skipped", rep.Skipped,
		"failed", rep.Failed,
		"duration", rep.Duration.Round(time.Millisecond),
	)
	s.notify(ctx)
	return err
}

func (s *Scheduler) notify(ctx context.Context) {
	if s.notifier == nil || s.statuses == nil {
		return
	}
	statuses, err := s.statuses.Statuses(ctx)
	if err != nil {
		slog.Warn("status read failed", "err", err)
		return
	}
	halted := false
	if s.halt != nil {
		if halted, err = s.halt.Engaged(ctx); err != nil {
			halted = true
		}
	}
	if err := s.notifier.NotifyStatus(ctx, halted, statuses); err != nil {
		slog.Warn("notifier error", "err", err)
	}
}

// cycle lista los bots y los evalúa en paralelo con un límite de workers.
func (s *Scheduler) cycle(ctx context.Context) (Report, error) {
	start := time.Now()

	bots, err := s.bots.ListBots(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("scheduler.cycle: list bots: %w", err)
	}

	results := make([]evaluator.Result, len(bots))
	errs := make([]error, len(bots))

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, b := range bots {
		g.Go(func() error {
			results[i], errs[i] = s.eval.Evaluate(ctx, b.ID)
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{Results: results}
	var failures []error
	for i, res := range results {
		err := errs[i]
		switch {
		case errors.Is(err, domain.ErrEvaluationInProgress):
			rep.Skipped++
			slog.Debug("evaluation skipped, previous still running", "bot", bots[i].ID)
		case err != nil:
			rep.Failed++
			failures = append(failures, fmt.Errorf("%s: %w", bots[i].ID, err))
			slog.Error("evaluation failed", "bot", bots[i].ID, "err", err)
		default:
			rep.Evaluated++
			if res.NoSignal {
				rep.NoSignal++
			}
			if res.Execution != nil && res.Execution.Execution != nil {
				rep.Trades++
			}
		}
	}
	rep.Duration = time.Since(start)

	if len(failures) > 0 {
		return rep, fmt.Errorf("scheduler.cycle: %d of %d bots failed: %w", len(failures), len(bots), errors.Join(failures...))
	}
	return rep, nil
}
