package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/polymoly/config"
	"github.com/alejandrodnm/polymoly/internal/adapters/notify"
	"github.com/alejandrodnm/polymoly/internal/adapters/oddsapi"
	"github.com/alejandrodnm/polymoly/internal/adapters/polymarket"
	"github.com/alejandrodnm/polymoly/internal/adapters/storage"
	"github.com/alejandrodnm/polymoly/internal/application/engine"
	"github.com/alejandrodnm/polymoly/internal/matcher"
	"github.com/alejandrodnm/polymoly/internal/scanner"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one trading cycle and exit")
	stats := flag.Bool("stats", false, "print ledger report and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
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
	logger := slog.Default()

	ledger, err := storage.NewSQLiteLedger(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open ledger", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer ledger.Close()

	if *stats {
		runStats(ledger)
		return
	}

	slog.Info("polymoly starting",
		"config", *configPath,
		"sports", len(cfg.Sports),
		"once", *once,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Feed de cuotas (cada llamada gasta crédito: gobernador obligatorio)
	oddsKey := os.Getenv("ODDS_API_KEY")
	if oddsKey == "" {
		slog.Error("ODDS_API_KEY not set")
		os.Exit(1)
	}
	oddsClient, err := oddsapi.NewClient(cfg.API.OddsBase, oddsKey)
	if err != nil {
		slog.Error("failed to build odds client", "err", err)
		os.Exit(1)
	}
	credits, err := oddsapi.NewCreditStore(cfg.Credits.StatePath,
		cfg.Credits.MinReserve, cfg.Credits.DailyMaxCalls, cfg.Credits.WarnThreshold)
	if err != nil {
		slog.Error("failed to load credit state", "err", err, "path", cfg.Credits.StatePath)
		os.Exit(1)
	}
	odds := oddsapi.NewProvider(oddsClient, credits, cfg.Sports, cfg.API.Bookmakers, logger)

	// Polymarket: catálogo, libros y ejecución firmada
	pmClient := polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase)
	catalog := polymarket.NewCatalog(pmClient, logger)
	books := polymarket.NewBooks(pmClient)

	privateKey := os.Getenv("PRIVATE_KEY")
	if privateKey == "" {
		slog.Error("PRIVATE_KEY not set")
		os.Exit(1)
	}
	auth, err := polymarket.NewAuthClient(cfg.API.CLOBBase, cfg.API.GammaBase, privateKey)
	if err != nil {
		slog.Error("failed to build auth client", "err", err)
		os.Exit(1)
	}
	if err := auth.EnsureCreds(ctx); err != nil {
		slog.Error("failed to derive CLOB credentials", "err", err)
		os.Exit(1)
	}
	trading, err := polymarket.NewTradingClient(auth, cfg.API.PolygonRPC)
	if err != nil {
		slog.Error("failed to build trading client", "err", err)
		os.Exit(1)
	}
	logStartupBalance(ctx, trading, auth.Address())

	mapping, err := matcher.LoadTeamMapping(cfg.Storage.TeamMappingPath, logger)
	if err != nil {
		slog.Error("failed to load team mapping", "err", err)
		os.Exit(1)
	}
	m := matcher.New(mapping,
		time.Duration(cfg.Scanner.MatchToleranceHrs*float64(time.Hour)), logger)

	s := scanner.New(scanner.Config{
		EntryWindowHrs:   cfg.Scanner.EntryWindowHrs,
		EntryDeadlineHrs: cfg.Scanner.EntryDeadlineHrs,
		MaxPrice:         cfg.Scanner.MaxPrice,
		MinGap:           cfg.Scanner.MinGap,
		MinLiquidity:     cfg.Scanner.MinLiquidity,
		LiquidityLevels:  cfg.Scanner.LiquidityLevels,
		StakeTiers:       cfg.StakeTiers(),
	}, books, logger)

	notifier := notify.NewMulti(
		notify.NewConsole(),
		notify.NewTelegram(os.Getenv("TELEGRAM_BOT_TOKEN"), os.Getenv("TELEGRAM_CHAT_ID"), logger),
	)

	exec, err := engine.NewExecutor(ctx, trading, ledger, cfg.Executor.MaxPositions, logger)
	if err != nil {
		slog.Error("failed to build executor", "err", err)
		os.Exit(1)
	}

	eng := engine.New(cfg, odds, catalog, m, s, exec, ledger, notifier, credits, logger)
	monitor := engine.NewMonitor(ledger, books, notifier, exec, engine.MonitorConfig{
		Interval:             cfg.MonitorInterval(),
		WinThreshold:         cfg.Monitor.WinThreshold,
		LossThreshold:        cfg.Monitor.LossThreshold,
		MaxConsecutiveLosses: cfg.Monitor.MaxConsecutiveLosses,
	}, logger)

	if *once {
		if _, err := eng.RunOnce(ctx); err != nil {
			slog.Error("cycle failed", "err", err)
			os.Exit(1)
		}
		if err := monitor.RunOnce(ctx); err != nil && !errors.Is(err, engine.ErrAutoStopped) {
			slog.Error("settlement pass failed", "err", err)
			os.Exit(1)
		}
		return
	}

	// Si cualquiera de los dos loops termina (señal de parada, breaker),
	// el otro se cancela también.
	g, gctx := errgroup.WithContext(ctx)
	runCtx, stopAll := context.WithCancel(gctx)
	defer stopAll()
	g.Go(func() error { defer stopAll(); return eng.Run(runCtx) })
	g.Go(func() error { defer stopAll(); return monitor.Run(runCtx) })

	err = g.Wait()
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		slog.Info("polymoly stopped cleanly")
	case errors.Is(err, engine.ErrAutoStopped):
		slog.Warn("polymoly auto-stopped by circuit breaker")
	default:
		slog.Error("polymoly exited with error", "err", err)
		os.Exit(1)
	}
}

func logStartupBalance(ctx context.Context, trading *polymarket.TradingClient, address string) {
	balance, err := trading.USDCBalance(ctx)
	if err != nil {
		slog.Warn("could not read USDC balance", "err", err, "address", address)
		return
	}
	slog.Info("wallet funded", "address", address, "usdc_balance", balance)
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
