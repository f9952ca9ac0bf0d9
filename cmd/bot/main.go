package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"highlight_bot/internal/bot"
	"highlight_bot/internal/config"
	"highlight_bot/internal/cooldown"
	"highlight_bot/internal/dispatch"
	"highlight_bot/internal/eligibility"
	"highlight_bot/internal/engine"
	"highlight_bot/internal/gateway"
	"highlight_bot/internal/index"
	"highlight_bot/internal/metrics"
	"highlight_bot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	idx := index.New(store, log)
	if err := idx.Load(ctx); err != nil {
		log.Error("load keyword index", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	transport := gateway.NewClient(http.DefaultClient, cfg.APIBaseURL, cfg.BotToken)
	tracker := cooldown.NewTracker(cfg.Cooldown)
	filter := eligibility.New(transport, log)
	dispatcher := dispatch.New(transport, tracker, cfg.ContextBefore, cfg.ContextAfter, log)
	eng := engine.New(idx, filter, tracker, dispatcher, m, cfg.BotUserID, log)
	b := bot.New(store, idx, transport, eng, cfg.CommandPrefix, cfg.MaxKeywords, log)
	sub := gateway.NewSubscriber(cfg.GatewayURL, cfg.BotToken, b, log)

	go tracker.RunSweeper(ctx, cfg.Cooldown)

	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr, log); err != nil {
				log.Error("metrics endpoint", "error", err)
			}
		}()
	} else {
		log.Warn("metrics address not provided; not starting metrics endpoint")
	}

	log.Info("starting bot")

	if err := sub.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("gateway subscriber", "error", err)
	}

	eng.Wait()
	log.Info("bot stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
