package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"storefront/internal/auth"
	"storefront/internal/cache"
	"storefront/internal/config"
	"storefront/internal/events"
	httpapi "storefront/internal/http"
	"storefront/internal/metrics"
	"storefront/internal/notify"
	"storefront/internal/payment"
	"storefront/internal/realtime"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/tasks"
	"storefront/internal/telemetry"

	_ "storefront/docs"
)

// @title Storefront API
// @version 1.0
// @description Orders, payments and deliveries for the storefront.
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("error loading .env: %v", err)
	}

	cfg := config.MustLoad()

	logger, err := config.NewLogger(config.LoggerConfig{Level: cfg.Log.Level, Env: cfg.Env})
	if err != nil {
		log.Fatalf("error creating logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.InitTracer(ctx, cfg.Tracing.ServiceName, cfg.Env, cfg.Tracing.Endpoint)
	if err != nil {
		logger.Fatal("Error initializing tracer", zap.Error(err))
	}

	m := metrics.New()

	repos, closeStore := mustOpenStore(ctx, cfg, logger)
	defer closeStore()

	checks := []httpapi.HealthCheck{{Name: "store", Ping: repos.Ping}}

	var (
		store  cache.Store
		broker realtime.Broker
	)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		store = cache.NewRedis(rdb, "storefront:")
		broker = realtime.NewRedis(rdb, logger)
		checks = append(checks, httpapi.HealthCheck{
			Name: "redis",
			Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
		logger.Info("Using redis for cache and realtime", zap.String("addr", cfg.Redis.Addr))
	} else {
		store = cache.NewMemory(time.Now)
		broker = realtime.NewHub()
	}

	var producer events.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaProducer(cfg.Kafka.Brokers)
		if err != nil {
			logger.Fatal("Error creating kafka producer", zap.Error(err))
		}
		producer = kp
	} else {
		producer = events.NewLogProducer(logger)
	}
	defer producer.Close()

	relay := events.NewRelay(repos.Tx, repos.Outbox, producer, m, logger, cfg.Kafka.BatchSize, cfg.Kafka.PollInterval)
	go relay.Start(ctx)

	provider, err := payment.New(cfg.Payment, logger)
	if err != nil {
		logger.Fatal("Error creating payment provider", zap.Error(err))
	}

	var (
		sms  notify.SMSSender
		push notify.PushSender
	)
	if cfg.SMS.AccountSID != "" {
		sms = notify.NewTwilio(cfg.SMS)
	}
	if cfg.Push.ServerKey != "" {
		push = notify.NewFCM(cfg.Push)
	}
	queue := tasks.NewQueue(cfg.Tasks.Workers, cfg.Tasks.Backlog, cfg.Tasks.Timeout, m, logger)

	dispatcher := notify.NewDispatcher(notify.Deps{
		Notifications: repos.Notifications,
		Users:         repos.Users,
		Devices:       repos.Devices,
		Email:         notify.NewMailerFromConfig(cfg.Email, cache.NewTTL[string](55*time.Minute, time.Now), logger),
		SMS:           sms,
		Push:          push,
		Tasks:         queue,
		Metrics:       m,
		Logger:        logger,
	})

	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	deliveries := service.NewDeliveryService(service.DeliveryDeps{
		Repos:    repos,
		Notifier: dispatcher,
		Broker:   broker,
		Tasks:    queue,
		Topic:    cfg.Kafka.Topic,
		Metrics:  m,
		Logger:   logger,
	})
	orders := service.NewOrderService(service.OrderDeps{
		Repos:      repos,
		Payments:   provider,
		Deliveries: deliveries,
		Notifier:   dispatcher,
		Tasks:      queue,
		URLs:       cfg.URLs,
		Currency:   cfg.Payment.Currency,
		Topic:      cfg.Kafka.Topic,
		Metrics:    m,
		Logger:     logger,
	})

	srv := httpapi.NewServer(httpapi.Deps{
		Catalog:       service.NewCachedCatalog(service.NewProductService(repos.Products), store, logger),
		Orders:        orders,
		Deliveries:    deliveries,
		Users:         service.NewUserService(repos.Users, issuer, logger),
		Dashboard:     service.NewDashboardService(repos, store, logger),
		Reviews:       service.NewReviewService(repos, logger),
		Wishlist:      service.NewWishlistService(repos, logger),
		Promotions:    service.NewPromotionService(repos.Promotions, logger),
		Notifications: dispatcher,
		Broker:        broker,
		Issuer:        issuer,
		Metrics:       m,
		Checks:        checks,
		Config:        cfg,
		Logger:        logger,
	})

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Port,
		Handler:      otelhttp.NewHandler(srv.Engine(), "storefront"),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", httpServer.Addr), zap.String("env", cfg.Env))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}
	queue.Wait()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error("Tracer shutdown error", zap.Error(err))
	}
}

// mustOpenStore выбирает хранилище по storage.driver
func mustOpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Repositories, func()) {
	switch cfg.Storage.Driver {
	case "postgres":
		if err := repository.Migrate(cfg.Postgres.Migrations, cfg.Postgres.URL); err != nil {
			logger.Fatal("Error applying migrations", zap.Error(err))
		}
		pool, err := repository.NewPostgresPool(ctx, cfg.Postgres.URL)
		if err != nil {
			logger.Fatal("Error connecting to postgres", zap.Error(err))
		}
		logger.Info("Using postgres storage")
		return repository.NewPostgresRepositories(pool, logger), pool.Close
	case "memory", "":
		logger.Info("Using in-memory storage")
		return repository.NewMemoryRepositories(repository.NewMemoryStore()), func() {}
	default:
		logger.Fatal("Unknown storage driver", zap.String("driver", cfg.Storage.Driver))
		return repository.Repositories{}, nil
	}
}
