package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alejandrodnm/signalbot/config"
	"github.com/alejandrodnm/signalbot/internal/adapters/exchange"
	"github.com/alejandrodnm/signalbot/internal/adapters/metrics"
	"github.com/alejandrodnm/signalbot/internal/adapters/notify"
	"github.com/alejandrodnm/signalbot/internal/adapters/paper"
	"github.com/alejandrodnm/signalbot/internal/adapters/rediscache"
	"github.com/alejandrodnm/signalbot/internal/adapters/storage"
	"github.com/alejandrodnm/signalbot/internal/adapters/tracing"
	"github.com/alejandrodnm/signalbot/internal/application/evaluator"
	"github.com/alejandrodnm/signalbot/internal/application/marketdata"
	"github.com/alejandrodnm/signalbot/internal/application/scheduler"
	"github.com/alejandrodnm/signalbot/internal/domain"
	"github.com/alejandrodnm/signalbot/internal/domain/confirmation"
	"github.com/alejandrodnm/signalbot/internal/domain/safety"
	"github.com/alejandrodnm/signalbot/internal/ports"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one evaluation cycle and exit")
	status := flag.Bool("status", false, "print the status of every bot and exit")
	halt := flag.Bool("halt", false, "engage the emergency stop and exit")
	resume := flag.Bool("resume", false, "release the emergency stop and exit")
	history := flag.String("history", "", "print the trade ledger of a bot and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print the full status table after each cycle (default: compact 1-line)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	kill := safety.NewSwitch(store)
	switch {
	case *halt:
		if err := kill.Engage(ctx); err != nil {
			slog.Error("failed to engage emergency stop", "err", err)
			os.Exit(1)
		}
		slog.Warn("EMERGENCY STOP engaged: no trade will be authorized until -resume")
		return
	case *resume:
		if err := kill.Release(ctx); err != nil {
			slog.Error("failed to release emergency stop", "err", err)
			os.Exit(1)
		}
		slog.Info("emergency stop released")
		return
	}

	notifier := notify.NewConsole(*table || *status)

	if *history != "" {
		attempts, err := store.ListAttempts(ctx, *history, 50)
		if err != nil {
			slog.Error("failed to read ledger", "err", err, "bot", *history)
			os.Exit(1)
		}
		if err := notifier.NotifyAttempts(ctx, *history, attempts); err != nil {
			slog.Warn("notifier error", "err", err)
		}
		return
	}

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.Init(os.Stderr, version)
		if err != nil {
			slog.Error("failed to start tracing", "err", err)
			os.Exit(1)
		}
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			if err := shutdown(sctx); err != nil {
				slog.Warn("tracing shutdown failed", "err", err)
			}
		}()
	}

	var recorder ports.Metrics = ports.NopMetrics{}
	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		recorder = metrics.New(reg)
		go serveMetrics(ctx, cfg.Metrics.Addr, reg)
	}

	client := exchange.NewClient(cfg.Exchange.BaseURL, cfg.Exchange.APIKey,
		exchange.WithSigningSecret(cfg.Exchange.APISecret))

	cacheOpts := []marketdata.Option{marketdata.WithMetrics(recorder)}
	if cfg.Redis.Addr != "" {
		shared, err := rediscache.New(ctx, rediscache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.CacheTTL(),
		})
		if err != nil {
			slog.Warn("redis unavailable, using in-process cache only", "err", err, "addr", cfg.Redis.Addr)
		} else {
			defer shared.Close()
			cacheOpts = append(cacheOpts, marketdata.WithSharedStore(shared))
		}
	}
	market := marketdata.New(client, marketdata.Config{TTL: cfg.CacheTTL(), FetchTimeout: cfg.FetchTimeout()}, cacheOpts...)

	var (
		executor  ports.Executor
		portfolio ports.PortfolioProvider
	)
	if cfg.Exchange.Live {
		executor, portfolio = client, client
	} else {
		sim := paper.New(market, domain.Granularity1m, cfg.Paper.StartBalance, cfg.Paper.FeeRate)
		executor, portfolio = sim, sim
	}

	profiles, err := cfg.TemperatureProfiles()
	if err != nil {
		slog.Error("invalid temperature profiles", "err", err)
		os.Exit(1)
	}

	book := safety.NewBook(store)
	ev := evaluator.New(evaluator.Deps{
		Bots:      store,
		Market:    market,
		Tracker:   confirmation.NewTracker(store),
		Gate:      safety.NewGate(kill, book),
		Book:      book,
		Ledger:    store,
		Portfolio: portfolio,
		Executor:  executor,
		Metrics:   recorder,
		Profiles:  profiles,
	}, evaluator.Config{
		FetchTimeout:   cfg.FetchTimeout(),
		ExecuteTimeout: cfg.ExecuteTimeout(),
	})

	if err := syncBots(ctx, cfg, store, ev); err != nil {
		slog.Error("failed to sync bots", "err", err)
		os.Exit(1)
	}

	if *status {
		if err := printStatus(ctx, ev, kill, notifier); err != nil {
			slog.Error("failed to read status", "err", err)
			os.Exit(1)
		}
		return
	}

	slog.Info("signalbot starting",
		"config", *configPath,
		"version", version,
		"interval", cfg.Interval(),
		"live", cfg.Exchange.Live,
		"once", *once,
		"redis", cfg.Redis.Addr != "",
		"metrics", cfg.Metrics.Addr,
	)

	s := scheduler.New(scheduler.Config{
		Interval: cfg.Interval(),
		Workers:  cfg.Scheduler.Workers,
		Once:     *once,
	}, store, ev, scheduler.WithNotifier(notifier, ev, kill))

	if err := s.Run(ctx); err != nil {
		slog.Error("scheduler exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("signalbot stopped cleanly")
}

func printStatus(ctx context.Context, ev *evaluator.Evaluator, kill *safety.Switch, notifier *notify.Console) error {
	statuses, err := ev.Statuses(ctx)
	if err != nil {
		return err
	}
	halted, err := kill.Engaged(ctx)
	if err != nil {
		halted = true
	}
	return notifier.NotifyStatus(ctx, halted, statuses)
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	slog.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics server failed", "err", err)
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
