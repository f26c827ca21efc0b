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
	"time"

	"curator/internal/config"
	"curator/internal/web"
	"curator/internal/wiki"
)

func main() {
	setupLogging()

	cfg := config.Load()
	if cfg.DataPath == "" {
		slog.Error("CURATOR_DATA_PATH is required")
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.DataPath, 0o755); err != nil {
		slog.Error("create data dir", "path", cfg.DataPath, "err", err)
		os.Exit(1)
	}

	store, err := wiki.OpenWithOptions(filepath.Join(cfg.DataPath, "curator.sqlite"), wiki.OpenOptions{
		LockTimeout: cfg.LockTimeout,
		HistoryMax:  cfg.HistoryMax,
	})
	if err != nil {
		slog.Error("open store", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.Init(ctx); err != nil {
		slog.Error("init store", "err", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           web.NewServer(cfg, store).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("listening", "addr", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("serve", "err", err)
		os.Exit(1)
	}
}

func setupLogging() {
	level := parseLogLevel(os.Getenv("CURATOR_DEBUG_LEVEL"))
	pretty := strings.EqualFold(os.Getenv("CURATOR_LOG_PRETTY"), "1") || strings.EqualFold(os.Getenv("CURATOR_LOG_PRETTY"), "true")
	var handler slog.Handler
	if pretty {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
