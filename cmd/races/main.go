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

	"github.com/alejandrodnm/hipodromo/config"
	"github.com/alejandrodnm/hipodromo/internal/adapters/gateway"
	"github.com/alejandrodnm/hipodromo/internal/adapters/notify"
	"github.com/alejandrodnm/hipodromo/internal/adapters/oracle"
	"github.com/alejandrodnm/hipodromo/internal/adapters/storage"
	"github.com/alejandrodnm/hipodromo/internal/adapters/token"
	"github.com/alejandrodnm/hipodromo/internal/application/engine"
	"github.com/alejandrodnm/hipodromo/internal/domain"
	"github.com/alejandrodnm/hipodromo/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	board := flag.Bool("board", false, "print the runs board and exit")
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

	slog.Info("hipodromo starting",
		"config", *configPath,
		"listen", cfg.Gateway.Listen,
		"fee_bps", cfg.Engine.FeeBps,
		"board", *board,
	)

	store, err := storage.NewSQLiteStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	eng, err := engine.New(engine.Config{
		Owner:   domain.Address(cfg.Engine.Owner),
		Manager: domain.Address(cfg.Engine.Manager),
		Token:   domain.Address(cfg.Engine.Token),
		Oracle:  domain.Address(cfg.Engine.Oracle),
		Vault:   domain.Address(cfg.Engine.Vault),
		FeeBps:  cfg.Engine.FeeBps,
	}, token.NewClient(cfg.API.TokenBase), oracle.NewClient(cfg.API.OracleBase), store)
	if err != nil {
		slog.Error("failed to build engine", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		eng.Run(ctx)
	}()

	if *board {
		printBoard(ctx, eng, notify.NewConsole())
		cancel()
		<-engineDone
		return
	}

	srv := &http.Server{
		Addr:    cfg.Gateway.Listen,
		Handler: gateway.NewServer(slog.Default(), eng).Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("gateway shutdown", "err", err)
		}
	}()

	slog.Info("gateway listening", "addr", cfg.Gateway.Listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("gateway exited with error", "err", err)
		os.Exit(1)
	}

	<-engineDone
	slog.Info("hipodromo stopped cleanly")
}

// printBoard muestra el histórico de runs y las apuestas del run actual.
func printBoard(ctx context.Context, eng *engine.Engine, console ports.Board) {
	runs, err := eng.Runs(ctx)
	if err != nil {
		slog.Error("failed to list runs", "err", err)
		os.Exit(1)
	}
	if err := console.PrintRuns(ctx, runs); err != nil {
		slog.Error("failed to print runs", "err", err)
		os.Exit(1)
	}

	last, err := eng.LastRun(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return
		}
		slog.Error("failed to load current run", "err", err)
		os.Exit(1)
	}
	if err := console.PrintOdds(ctx, last); err != nil {
		slog.Error("failed to print odds", "err", err)
		os.Exit(1)
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
