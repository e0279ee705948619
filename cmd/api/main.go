package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tablequeue/internal/api"
	"tablequeue/internal/config"
	"tablequeue/internal/database"
	"tablequeue/internal/domain"
	"tablequeue/internal/events"
	"tablequeue/internal/logging"
	"tablequeue/internal/metrics"
	"tablequeue/internal/models"
	"tablequeue/internal/mongo"
	"tablequeue/internal/notify"
	"tablequeue/internal/repository"
	"tablequeue/internal/service"
	"tablequeue/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, sqliteDB, err := initStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	loc, err := cfg.Queue.Location()
	if err != nil {
		return fmt.Errorf("queue timezone: %w", err)
	}
	clock := service.NewSystemClock(loc)

	hub := events.NewHub()
	fanout, closeNotifiers := initNotifiers(cfg, hub, redisClient, logger)
	defer closeNotifiers()

	var limiter domain.RateLimiter = repository.NewMemoryRateLimiter()
	if redisClient != nil {
		limiter = repository.NewFailoverRateLimiter(
			repository.NewRedisRateLimiter(redisClient, cfg.App.Name),
			limiter,
			logging.Component(logger, "rate-limiter"),
		)
	}

	otp := service.NewOtpService(
		store,
		limiter,
		service.NewLogOtpSender(logging.Component(logger, "otp-sender")),
		clock,
		service.OtpOptions{
			TTL:        time.Duration(cfg.OTP.TTL) * time.Second,
			SendLimit:  cfg.OTP.SendLimit,
			SendWindow: time.Duration(cfg.OTP.SendWindow) * time.Second,
		},
		logging.Component(logger, "otp"),
	)
	queues := service.NewQueueService(
		store, fanout, clock,
		cfg.Queue.AverageServiceTime, cfg.Queue.NearbyLimit,
		logging.Component(logger, "queue"),
	)
	shops := service.NewShopService(store, otp, clock, logging.Component(logger, "shops"))
	customers := service.NewCustomerService(store, otp, clock, logging.Component(logger, "customers"))
	catalog := service.NewCatalogService(store, clock, logging.Component(logger, "catalog"))

	if err := seedShopTypes(ctx, catalog, logger); err != nil {
		return err
	}

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	httpServer := api.NewHTTPServer(cfg.API, api.Services{
		Queues:    queues,
		Shops:     shops,
		Customers: customers,
		Catalog:   catalog,
		Otp:       otp,
		Hub:       hub,
		Health:    store,
		Location:  loc,
	}, logging.Component(logger, "http"))

	startMetrics(ctx, cfg, logger)

	if cfg.Queue.ReminderInterval > 0 {
		nearby := worker.NewNearbyWorker(
			queues, shops, fanout,
			time.Duration(cfg.Queue.ReminderInterval)*time.Second,
			worker.RetryPolicy{MaxRetries: cfg.Queue.ReminderRetries, InitialDelay: time.Second, MaxDelay: 30 * time.Second},
			logging.Component(logger, "nearby-worker"),
		)
		go nearby.Start(ctx)
	}

	if sqliteDB != nil && cfg.Backup.Enabled {
		backups := database.NewBackupService(sqliteDB, cfg.Backup, logging.Component(logger, "backup"))
		go backups.Start(ctx)
	}

	return startServer(ctx, httpServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, logging.Component(baseLogger, "api-main"), closer, nil
}

// initStore returns the sqlite handle as well when that driver is used, for backups.
func initStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.Store, *database.DB, error) {
	switch cfg.Database.Driver {
	case config.DriverMongo:
		store, err := mongo.NewStore(ctx, cfg.Database.Mongo, logging.Component(logger, "mongo"))
		if err != nil {
			logger.Error().Err(err).Str("db_name", cfg.Database.Mongo.Name).Msg("init mongo")
			return nil, nil, err
		}
		return store, nil, nil
	default:
		db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"))
		if err != nil {
			logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
			return nil, nil, err
		}
		return db, db, nil
	}
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initNotifiers(
	cfg *config.Config,
	hub *events.Hub,
	redisClient *redis.Client,
	logger *zerolog.Logger,
) (*notify.Fanout, func()) {
	fanout := notify.NewFanout(logging.Component(logger, "notify")).Add("sse", hub)
	closers := make([]func(), 0, 1)

	if cfg.Notifier.NATS.URL != "" {
		nc, err := notify.NewNATSNotifier(cfg.Notifier.NATS.URL, cfg.Notifier.NATS.SubjectPrefix)
		if err != nil {
			logger.Warn().Err(err).Msg("nats connection failed, continuing without nats")
		} else {
			fanout.Add("nats", nc)
			closers = append(closers, func() { _ = nc.Close() })
		}
	}

	if cfg.Notifier.PubNub.PublishKey != "" {
		pn, err := notify.NewPubNubNotifier(cfg.Notifier.PubNub)
		if err != nil {
			logger.Warn().Err(err).Msg("pubnub init failed, continuing without pubnub")
		} else {
			fanout.Add("pubnub", pn)
		}
	}

	if cfg.Notifier.Telegram.Token != "" {
		tg, err := notify.NewTelegramNotifier(cfg.Notifier.Telegram)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram init failed, continuing without telegram")
		} else {
			fanout.Add("telegram", tg)
		}
	}

	if cfg.Notifier.Redis.Enabled {
		if redisClient == nil {
			logger.Warn().Msg("redis notifier enabled but redis is unavailable")
		} else {
			fanout.Add("redis", notify.NewRedisNotifier(redisClient, cfg.Notifier.Redis.ChannelPrefix))
		}
	}

	logger.Info().Strs("transports", fanout.Transports()).Msg("notifiers ready")
	return fanout, func() {
		for _, c := range closers {
			c()
		}
	}
}

func seedShopTypes(ctx context.Context, catalog *service.CatalogService, logger *zerolog.Logger) error {
	seedPath := os.Getenv("SEED_PATH")
	if seedPath == "" {
		seedPath = "configs/seed.yaml"
	}
	data, err := os.ReadFile(seedPath)
	if errors.Is(err, os.ErrNotExist) {
		logger.Debug().Str("seed_path", seedPath).Msg("no seed file")
		return nil
	}
	if err != nil {
		logger.Error().Err(err).Str("seed_path", seedPath).Msg("read seed")
		return err
	}

	var seed struct {
		ShopTypes []models.ShopType `yaml:"shop_types"`
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		logger.Error().Err(err).Str("seed_path", seedPath).Msg("parse seed")
		return err
	}

	created, err := catalog.SeedShopTypes(ctx, seed.ShopTypes)
	if err != nil {
		return fmt.Errorf("seed shop types: %w", err)
	}
	logger.Info().Int("created", created).Int("total", len(seed.ShopTypes)).Msg("shop types seeded")
	return nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Str("driver", cfg.Database.Driver).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
