package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"riskgate/internal/action"
	"riskgate/internal/anomaly"
	"riskgate/internal/api"
	"riskgate/internal/audit"
	"riskgate/internal/config"
	"riskgate/internal/engine"
	redisintake "riskgate/internal/intake/redis"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	cfgPath := flag.String("config", "configs/riskgate.yaml", "Path to YAML config")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}
	rules, err := cfg.Risk.Rules()
	if err != nil {
		slog.Error("invalid risk rules", "err", err)
		os.Exit(1)
	}

	// ── Audit trail ───────────────────────────────────────────────────────────
	store, err := audit.Open(cfg.Audit.Path)
	if err != nil {
		slog.Error("failed to open audit trail", "path", cfg.Audit.Path, "err", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("audit trail open", "path", cfg.Audit.Path, "records", store.Len())

	// ── Dispatch table ────────────────────────────────────────────────────────
	registry := action.NewDefaultRegistry()
	dispatcher := action.NewDispatcher(registry, store, logger)
	slog.Info("dispatch table registered", "actions", registry.Names())

	// ── Engine ────────────────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := engine.New(ctx, rules, anomaly.New(), dispatcher, store, logger, cfg.Engine)

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.Config) {
		if err := config.Validate(newCfg); err != nil {
			slog.Warn("hot-reload skipped: config invalid", "err", err)
			return
		}
		newRules, err := newCfg.Risk.Rules()
		if err != nil {
			slog.Warn("hot-reload skipped: invalid risk rules", "err", err)
			return
		}
		eng.SwapRules(newRules)
		slog.Info("risk rules hot-reloaded", "suspicious_events", len(newRules.SuspiciousEvents))
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── Optional Redis intake ─────────────────────────────────────────────────
	if cfg.Intake.Redis.Enabled {
		consumer, err := redisintake.NewConsumer(redisintake.Config{
			Addr:         cfg.Intake.Redis.Addr,
			Password:     cfg.Intake.Redis.Password,
			DB:           cfg.Intake.Redis.DB,
			Key:          cfg.Intake.Redis.Key,
			BlockTimeout: time.Duration(cfg.Intake.Redis.BlockTimeoutMs) * time.Millisecond,
		})
		if err != nil {
			slog.Error("failed to create redis intake", "err", err)
			os.Exit(1)
		}
		defer consumer.Close()
		go consumer.Run(ctx, eng.ProcessAsync, logger)
		slog.Info("redis intake started", "key", cfg.Intake.Redis.Key)
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	listenAddr := cfg.Server.Addr
	if *addr != "" {
		listenAddr = *addr
	}
	handler := api.New(eng, store, loader, registry)
	srv := &http.Server{
		Addr:         listenAddr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", listenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	cancel() // stop worker pool and intake
	eng.Shutdown()
	slog.Info("goodbye")
}
