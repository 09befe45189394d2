package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"warehouse_bot/internal/bot"
	"warehouse_bot/internal/checker"
	"warehouse_bot/internal/config"
	"warehouse_bot/internal/metrics"
	"warehouse_bot/internal/moysklad"
	"warehouse_bot/internal/notify"
	"warehouse_bot/internal/scheduler"
	"warehouse_bot/internal/storage"
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

	var registry storage.Registry = store
	if cfg.RegistryBackend == config.RegistryRedis {
		redisReg, err := storage.NewRedisRegistry(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Error("connect redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer func() { _ = redisReg.Close() }()
		registry = redisReg
		log.Info("using redis registry", "addr", cfg.RedisAddr)
	}

	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, promReg, log)
	}

	tg, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Error("connect telegram", "error", err)
		os.Exit(1)
	}
	log.Info("telegram connected", "bot", tg.Self.UserName)

	warehouse := moysklad.New(&http.Client{Timeout: cfg.APITimeout}, moysklad.Config{
		BaseURL:             cfg.APIBaseURL,
		Token:               cfg.MoySkladToken,
		PageLimit:           cfg.APIPageLimit,
		PageDelay:           cfg.APIPageDelay,
		FetchAttempts:       cfg.FetchAttempts,
		ExpirationAttribute: cfg.ExpirationAttribute,
	}, log)

	notifier := notify.New(tg, cfg.AlertChatID, cfg.MessageLimit, cfg.SendRatePerSecond, cfg.GroupSendDelay, m, log)

	checkers := []scheduler.Checker{
		checker.NewStockChecker(store, notifier, cfg.StateMaxAge, m, log),
		checker.NewExpirationChecker(store, notifier, cfg.StateMaxAge, cfg.NearExpiry, m, log),
	}
	sched := scheduler.New(warehouse, checkers, cfg.CheckInterval, cfg.CycleTimeout, m, log)

	b := bot.New(tg, cfg, store, registry, warehouse, sched, m, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	warmUpRegistry(ctx, b, registry, log)

	log.Info("starting bot", "check_interval", cfg.CheckInterval)

	go sched.Run(ctx)

	b.Run(ctx)

	log.Info("bot stopped")
}

// warmUpRegistry fills an empty counterparty registry from the
// warehouse API so duplicate checks work from the first message.
// Failures are logged; the admin panel can resync later.
func warmUpRegistry(ctx context.Context, b *bot.Bot, registry storage.Registry, log *slog.Logger) {
	count, err := registry.CountCounterparties(ctx)
	if err != nil {
		log.Error("count counterparties", "error", err)
		return
	}
	if count > 0 {
		log.Info("counterparty registry ready", "count", count)
		return
	}

	log.Info("counterparty registry empty, syncing")
	fetched, stored, err := b.ResyncRegistry(ctx)
	if err != nil {
		log.Error("sync counterparty registry", "error", err)
		return
	}
	log.Info("counterparty registry synced", "fetched", fetched, "stored", stored)
}

func serveMetrics(addr string, reg *prometheus.Registry, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("metrics server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("metrics server", "error", err)
	}
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
