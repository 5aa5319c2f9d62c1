package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	_ "github.com/golang-migrate/migrate/v4/source/file" // file:// migration source
	_ "github.com/lib/pq"                                // PostgreSQL driver

	"gateway/internal/adapter"
	"gateway/internal/adapter/email"
	"gateway/internal/adapter/sms"
	"gateway/internal/adapter/voice"
	"gateway/internal/adapter/whatsapp"
	"gateway/internal/config"
	"gateway/internal/constants"
	"gateway/internal/gateway"
	"gateway/internal/logger"
	"gateway/internal/optout"
	"gateway/internal/ratelimit"
	"gateway/internal/template"
	"gateway/internal/usage"
	"gateway/pkg/bootstrap"
	"gateway/pkg/circuitbreaker"
	"gateway/pkg/health"
	"gateway/pkg/metrics"
	"gateway/pkg/middleware"
	apiratelimit "gateway/pkg/ratelimit"
	"gateway/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redisClient    *redis.Client
	server         *http.Server
	router         *gin.Engine
	tracerProvider *tracing.TracerProvider
	optOutHandler  *optout.Handler
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("gateway-service")
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.InitBroker("gateway-service"); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initRouter(); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: a.router,
	}

	tp, err := tracing.Init(a.Config.Tracing, "gateway-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	if db == nil {
		return fmt.Errorf("postgres configuration is required")
	}
	a.db = db

	if a.Config.Database.RunMigrations {
		if err := a.runMigrations(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	redisClient, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redisClient = redisClient

	return nil
}

func (a *App) runMigrations() error {
	driver, err := migratepostgres.WithInstance(a.db, &migratepostgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations/postgres", "postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func (a *App) breakerConfig(channel string) circuitbreaker.Config {
	cfg := circuitbreaker.DefaultConfig(fmt.Sprintf("adapter-%s", channel))
	if a.Config.CircuitBreaker.MaxRequests > 0 {
		cfg.MaxRequests = a.Config.CircuitBreaker.MaxRequests
	}
	if a.Config.CircuitBreaker.Interval > 0 {
		cfg.Interval = a.Config.CircuitBreaker.Interval
	}
	if a.Config.CircuitBreaker.Timeout > 0 {
		cfg.Timeout = a.Config.CircuitBreaker.Timeout
	}
	if a.Config.CircuitBreaker.FailureRatio > 0 && a.Config.CircuitBreaker.MinRequests > 0 {
		ratio := a.Config.CircuitBreaker.FailureRatio
		minRequests := a.Config.CircuitBreaker.MinRequests
		cfg.ReadyToTrip = func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && failureRatio >= ratio
		}
	}
	return cfg
}

func (a *App) wrapAdapter(inner adapter.ChannelAdapter) adapter.ChannelAdapter {
	if !a.Config.CircuitBreaker.Enabled {
		return inner
	}
	return adapter.WithCircuitBreaker(inner, a.breakerConfig(string(inner.ChannelType())))
}

func (a *App) initRouter() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware("gateway-service"))
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())

	if a.Config.API.RateLimit.Enabled {
		rateLimitConfig := apiratelimit.RateLimitConfig{
			RPS:             a.Config.API.RateLimit.RPS,
			Burst:           a.Config.API.RateLimit.Burst,
			CleanupInterval: time.Duration(a.Config.API.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(a.Config.API.RateLimit.MaxAge) * time.Second,
		}
		router.Use(apiratelimit.RateLimitMiddleware(rateLimitConfig))
	}

	templateSvc := template.NewService(template.NewRepository(a.db), a.Logger)
	optOutSvc := optout.NewService(optout.NewRepository(a.redisClient), a.Logger)
	a.optOutHandler = optout.NewHandler(optOutSvc, a.Logger)
	limiterSvc := ratelimit.NewService(ratelimit.NewRepository(a.redisClient), a.Config.RateLimit, a.Logger)
	usageSvc := usage.NewService(usage.NewRepository(a.db), a.Logger)
	accountRepo := gateway.NewAccountRepository(a.db)

	registry := adapter.NewRegistry(
		a.wrapAdapter(sms.NewAdapter(sms.NewClient(a.Config.Providers.SMS), templateSvc, a.Logger)),
		a.wrapAdapter(whatsapp.NewAdapter(whatsapp.NewClient(a.Config.Providers.WhatsApp), a.Logger)),
		a.wrapAdapter(email.NewAdapter(email.NewClient(a.Config.Providers.Email), a.Logger)),
		a.wrapAdapter(voice.NewAdapter(a.Config.Providers.Voice, a.Logger)),
	)

	notifier := gateway.NewNotifier(
		a.Producer,
		a.Config.Broker.Kafka.InboundTopic,
		a.Config.Broker.Kafka.StatusTopic,
		a.Config.Broker.Kafka.EventsTopic,
		a.Logger,
	)

	gatewaySvc := gateway.NewService(accountRepo, registry, limiterSvc, usageSvc, optOutSvc, templateSvc, notifier, a.Logger)
	webhookSvc := gateway.NewWebhookService(accountRepo, registry, gateway.NewRedisDeduplicator(a.redisClient), notifier, a.Logger)

	handler := gateway.NewHandler(gatewaySvc, webhookSvc, accountRepo, templateSvc, optOutSvc, a.Logger)
	handler.RegisterRoutes(router)

	metrics.RegisterGatewayMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterAPIMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	healthRegistry.Register(health.NewRedisChecker(a.redisClient))

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.router = router
	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "Server listening", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// inbound messages feed the opt-out registry: STOP/START keywords from
	// customers take effect without a management API call
	if topic := a.Config.Broker.Kafka.InboundTopic; topic != "" {
		g.Go(func() error {
			a.Logger.InfowCtx(gCtx, "Starting inbound opt-out consumer", "topic", topic)
			return a.Consumer.Consume(gCtx, topic, a.optOutHandler.HandleInboundMessage)
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		return a.shutdown()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redisClient, a.db)...)

		return errs
	}

	return a.Shutdown(ctx, additionalShutdown)
}
