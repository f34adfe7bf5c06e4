// Package evaluator runs one decision cycle per bot: market data, indicators,
// aggregation, temperature, confirmation, safety gate and execution.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alejandrodnm/signalbot/internal/domain"
	"github.com/alejandrodnm/signalbot/internal/domain/confirmation"
	"github.com/alejandrodnm/signalbot/internal/domain/safety"
	"github.com/alejandrodnm/signalbot/internal/domain/signal"
	"github.com/alejandrodnm/signalbot/internal/ports"
)

const (
	defaultFetchTimeout   = 10 * time.Second
	defaultExecuteTimeout = 15 * time.Second
)

// Config contiene los timeouts del ciclo.
type Config struct {
	FetchTimeout   time.Duration
	ExecuteTimeout time.Duration
}

// Deps agrupa los colaboradores del evaluador.
type Deps struct {
	Bots      ports.BotStore
	Market    ports.MarketData
	Tracker   *confirmation.Tracker
	Gate      *safety.Gate
	Book      *safety.Book
	Ledger    ports.LedgerStore
	Portfolio ports.PortfolioProvider
	Executor  ports.Executor
	Metrics   ports.Metrics
	Profiles  signal.Profiles
}

// ExecutionReport describes what happened after a trade was approved.
type ExecutionReport struct {
	AttemptID      string
	Execution      *domain.Execution
	Failure        *domain.ExecutionError
	Reconciliation bool
}

// Result is the outcome of one Evaluate call.
type Result struct {
	BotID         string
	Score         float64
	Action        domain.Action
	Temperature   domain.Temperature
	Reading       signal.Reading
	NoSignal      bool
	Contributions []signal.Contribution
	Unavailable   []string
	Confirmation  domain.ConfirmationState
	Verdict       *domain.SafetyVerdict
	Execution     *ExecutionReport
	Skipped       bool
	EvaluatedAt   time.Time
}

// Evaluator evaluates bots. Evaluations of different bots run concurrently;
// a bot never has two evaluations in flight.
type Evaluator struct {
	deps   Deps
	cfg    Config
	now    func() time.Time
	tracer trace.Tracer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configura el Evaluator.
type Option func(*Evaluator)

// WithClock sustituye time.Now. Útil en tests.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// New crea un Evaluator.
func New(deps Deps, cfg Config, opts ...Option) *Evaluator {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.ExecuteTimeout <= 0 {
		cfg.ExecuteTimeout = defaultExecuteTimeout
	}
	if deps.Metrics == nil {
		deps.Metrics = ports.NopMetrics{}
	}
	if deps.Profiles == nil {
		deps.Profiles = signal.DefaultProfiles()
	}
	e := &Evaluator{
		deps:   deps,
		cfg:    cfg,
		now:    time.Now,
		tracer: otel.Tracer("github.com/alejandrodnm/signalbot/evaluator"),
		locks:  make(map[string]*sync.Mutex),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Evaluator) lockFor(botID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[botID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[botID] = l
	}
	return l
}

// Evaluate runs one cycle for botID. A trigger that arrives while the bot is
// still being evaluated is dropped with domain.ErrEvaluationInProgress.
func (e *Evaluator) Evaluate(ctx context.Context, botID string) (Result, error) {
	lock := e.lockFor(botID)
	if !lock.TryLock() {
		slog.Debug("evaluator: evaluation in progress, trigger dropped", "bot", botID)
		return Result{BotID: botID, Skipped: true}, domain.ErrEvaluationInProgress
	}
	defer lock.Unlock()

	ctx, span := e.tracer.Start(ctx, "evaluator.Evaluate",
		trace.WithAttributes(attribute.String("bot.id", botID)))
	defer span.End()

	start := time.Now()
	res, err := e.evaluate(ctx, botID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}

	span.SetAttributes(
		attribute.Float64("signal.score", res.Score),
		attribute.String("signal.action", res.Action.String()),
		attribute.String("signal.temperature", res.Temperature.String()),
		attribute.Bool("signal.no_signal", res.NoSignal),
		attribute.Bool("confirmation.confirmed", res.Confirmation.Confirmed),
	)
	e.deps.Metrics.ObserveEvaluation(botID, res.Action, res.NoSignal, time.Since(start))
	if !res.NoSignal {
		e.deps.Metrics.SetScore(botID, res.Score)
	}
	return res, nil
}

func (e *Evaluator) evaluate(ctx context.Context, botID string) (Result, error) {
	bot, err := e.deps.Bots.GetBot(ctx, botID)
	if err != nil {
		return Result{BotID: botID}, fmt.Errorf("evaluator.Evaluate: load bot: %w", err)
	}
	profileName := bot.Profile
	if profileName == "" {
		profileName = domain.DefaultProfile
	}
	profile, err := e.deps.Profiles.Lookup(profileName)
	if err != nil {
		return Result{BotID: botID}, fmt.Errorf("evaluator.Evaluate: %s: %w", botID, err)
	}

	now := e.now()
	res := Result{BotID: bot.ID, Action: domain.ActionHold, EvaluatedAt: now}

	series, err := e.fetch(ctx, bot)
	switch {
	case errors.Is(err, domain.ErrUnknownAsset):
		return res, fmt.Errorf("evaluator.Evaluate: %w: %w",
			domain.NewConfigError("asset", "%q is not listed by the market data provider", bot.Asset), err)
	case errors.Is(err, domain.ErrMarketDataUnavailable):
		slog.Warn("evaluator: market data unavailable, holding without signal",
			"bot", bot.ID, "asset", bot.Asset, "err", err)
		return e.noSignal(ctx, res)
	case err != nil:
		return res, fmt.Errorf("evaluator.Evaluate: fetch: %w", err)
	}

	agg, err := signal.Combine(bot, series)
	switch {
	case errors.Is(err, domain.ErrInsufficientData):
		slog.Info("evaluator: no indicator produced a score, holding",
			"bot", bot.ID, "candles", series.Len(), "unavailable", agg.Unavailable)
		res.Unavailable = agg.Unavailable
		return e.noSignal(ctx, res)
	case err != nil:
		return res, fmt.Errorf("evaluator.Evaluate: %w", err)
	}

	res.Score = agg.Score
	res.Action = agg.Action
	res.Contributions = agg.Contributions
	res.Unavailable = agg.Unavailable
	res.Reading = signal.Classify(agg.Score, profile, bot.BuyThreshold, bot.SellThreshold)
	res.Temperature = res.Reading.Temperature

	conf, err := e.deps.Tracker.Observe(ctx, bot.ID, agg.Action, bot.ConfirmationWindow(), now)
	if err != nil {
		return res, fmt.Errorf("evaluator.Evaluate: %w", err)
	}
	res.Confirmation = conf

	if err := e.saveSnapshot(ctx, res); err != nil {
		return res, err
	}

	slog.Debug("evaluator: cycle evaluated",
		"bot", bot.ID,
		"score", fmt.Sprintf("%.4f", res.Score),
		"action", res.Action,
		"temperature", res.Reading.String(),
		"confirmed", conf.Confirmed,
	)

	if !agg.Action.Tradable() || !conf.ConfirmedFor(agg.Action) {
		return res, nil
	}

	verdict, report, err := e.trade(ctx, bot, res, now)
	res.Verdict, res.Execution = verdict, report
	return res, err
}

func (e *Evaluator) fetch(ctx context.Context, bot domain.Bot) (domain.PriceSeries, error) {
	ctx, span := e.tracer.Start(ctx, "evaluator.fetch", trace.WithAttributes(
		attribute.String("asset", bot.Asset),
		attribute.String("granularity", string(bot.Granularity)),
		attribute.Int("lookback", bot.Lookback),
	))
	defer span.End()

	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()
	series, err := e.deps.Market.PriceSeries(fetchCtx, bot.Asset, bot.Granularity, bot.Lookback)
	if err != nil {
		span.RecordError(err)
		// the fetch timed out but the caller is still alive
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return domain.PriceSeries{}, fmt.Errorf("%w: %w", domain.ErrMarketDataUnavailable, err)
		}
		return domain.PriceSeries{}, err
	}
	span.SetAttributes(attribute.Int("candles", series.Len()))
	return series, nil
}

// noSignal persists a HOLD without observing the confirmation tracker, so
// a data outage never advances or resets the timer.
func (e *Evaluator) noSignal(ctx context.Context, res Result) (Result, error) {
	res.NoSignal = true
	res.Action = domain.ActionHold
	res.Temperature = domain.Frozen
	conf, err := e.deps.Tracker.Snapshot(ctx, res.BotID)
	if err != nil {
		return res, fmt.Errorf("evaluator.Evaluate: %w", err)
	}
	res.Confirmation = conf
	if err := e.saveSnapshot(ctx, res); err != nil {
		return res, err
	}
	return res, nil
}

func (e *Evaluator) saveSnapshot(ctx context.Context, res Result) error {
	snap := domain.BotSnapshot{
		BotID:        res.BotID,
		Score:        res.Score,
		Action:       res.Action,
		Temperature:  res.Temperature,
		NoSignal:     res.NoSignal,
		Confirmation: res.Confirmation,
		EvaluatedAt:  res.EvaluatedAt,
	}
	if err := e.deps.Bots.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("evaluator.Evaluate: save snapshot: %w", err)
	}
	return nil
}

// RemoveBot deletes the bot's configuration and trading state. The audit
// ledger is kept.
func (e *Evaluator) RemoveBot(ctx context.Context, botID string) error {
	lock := e.lockFor(botID)
	lock.Lock()
	defer lock.Unlock()

	if err := e.deps.Bots.DeleteBot(ctx, botID); err != nil {
		return fmt.Errorf("evaluator.RemoveBot: %w", err)
	}
	if err := e.deps.Tracker.Reset(ctx, botID); err != nil {
		return fmt.Errorf("evaluator.RemoveBot: %w", err)
	}
	e.deps.Book.Forget(botID)
	slog.Info("evaluator: bot removed", "bot", botID)
	return nil
}
