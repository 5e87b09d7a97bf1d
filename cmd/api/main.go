package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/pkg/cart"
	"github.com/Ramsey-B/clover/pkg/crm"
	"github.com/Ramsey-B/clover/pkg/cursor"
	"github.com/Ramsey-B/clover/pkg/fieldmap"
	"github.com/Ramsey-B/clover/pkg/httpclient"
	"github.com/Ramsey-B/clover/pkg/jobstatus"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/queue"
	"github.com/Ramsey-B/clover/pkg/reconcile"
	"github.com/Ramsey-B/clover/pkg/redis"
	cacheroutes "github.com/Ramsey-B/clover/pkg/routes/cache"
	dlqroutes "github.com/Ramsey-B/clover/pkg/routes/dlq"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	jobroutes "github.com/Ramsey-B/clover/pkg/routes/job"
	orderroutes "github.com/Ramsey-B/clover/pkg/routes/order"
	"github.com/Ramsey-B/clover/pkg/scheduler"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
	"github.com/Ramsey-B/clover/pkg/transfer"
)

const version = "1.0.0"

func main() {
	// Load .env if present. Real env vars win.
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := buildLogger(cfg)
	ctx := context.Background()

	// Tracing
	var exporter sdktrace.SpanExporter = &tracing.NoopExporter{}
	if cfg.OTLPEnabled {
		otlpCfg := exporters.DefaultOTLPConfig()
		otlpCfg.Endpoint = cfg.OTLPEndpoint
		otlp, err := exporters.NewOTLPExporter(ctx, otlpCfg)
		if err != nil {
			log.Fatalf("failed to create OTLP exporter: %v", err)
		}
		exporter = otlp
	}
	provider := tracing.InitProvider(exporter, cfg.AppName)
	defer provider.Shutdown(ctx)

	// Redis
	redisClient, err := connectRedis(cfg, logger)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	streams := redis.NewStreams(redisClient)
	locker := redis.NewLocker(redisClient, "clover:lock:")
	dlq := redis.NewDeadLetterQueue(redisClient, redis.DefaultDLQStream, logger)
	jobStore := redis.NewJobStore(redisClient, cfg.JobResultTTL)
	cursorStore := cursor.NewRedisStore(redisClient)

	// Kafka
	producer := kafka.NewProducer(kafka.ParseConfig(cfg.KafkaBrokers, cfg.KafkaSyncTopic, cfg.KafkaErrorTopic), logger)
	defer producer.Close()

	// Cart and CRM clients
	httpClient := httpclient.NewClient(httpclient.DefaultConfig(), logger)
	source := cart.NewClient(httpClient, cart.Config{
		BaseURL:    cfg.CartBaseURL,
		RestAdmin:  cfg.CartRestAdminID,
		SourceName: cfg.SourceName,
	}, logger)
	target := crm.NewGateway(httpClient, crm.Config{
		BaseURL:      cfg.CRMBaseURL,
		Email:        cfg.CRMEmail,
		APIKey:       cfg.CRMAPIKey,
		ShareToTeams: cfg.CRMShareToTeams,
	}, logger)

	fields, err := fieldmap.ForAccount(cfg.CRMAccountID)
	if err != nil {
		log.Fatalf("failed to load field map: %v", err)
	}

	builder := &reconcile.Builder{
		Fields:        fields,
		Source:        cfg.SourceName,
		AdminLinkBase: cfg.CartAdminLinkBaseURL,
		ShareTo:       target.ShareTo(),
	}

	engine := reconcile.NewEngine(source, target, builder, producer, reconcile.Config{
		ConfirmTimeout:      cfg.ConfirmTimeout,
		ConfirmPollInterval: cfg.ConfirmPollInterval,
	}, logger)

	coordinator := transfer.NewCoordinator(
		source,
		engine,
		transfer.NewEnqueuer(streams, jobStore, cfg.RedisStreamsJobQueue),
		cursorStore,
		locker,
		cfg.ReportMonths,
		logger,
	)

	reporter := jobstatus.NewReporter(jobStore)

	// Background job processor
	processorCfg := queue.DefaultProcessorConfig()
	processorCfg.Stream = cfg.RedisStreamsJobQueue
	processorCfg.ConsumerGroup = cfg.RedisStreamsConsumerGroup
	if cfg.RedisStreamsConsumerName != "" {
		processorCfg.ConsumerName = cfg.RedisStreamsConsumerName
	}
	processor := queue.NewProcessor(streams, dlq, jobStore, engine, processorCfg, logger)
	if err := processor.Start(ctx); err != nil {
		log.Fatalf("failed to start job processor: %v", err)
	}

	// Periodic pull scheduler
	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		schedCfg := scheduler.DefaultConfig()
		schedCfg.PollInterval = cfg.SchedulerPollInterval
		sched = scheduler.NewScheduler(coordinator, schedCfg, logger)
		if err := sched.Start(ctx); err != nil {
			log.Fatalf("failed to start scheduler: %v", err)
		}
	}

	// Dependency injection for route handlers
	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		log.Fatalf("failed to create DI container: %v", err)
	}
	ectoinject.RegisterInstance[*cart.Client](container, source)
	ectoinject.RegisterInstance[*crm.Gateway](container, target)
	ectoinject.RegisterInstance[*transfer.Coordinator](container, coordinator)
	ectoinject.RegisterInstance[*jobstatus.Reporter](container, reporter)
	ectoinject.RegisterInstance[*redis.Client](container, redisClient)
	ectoinject.RegisterInstance[cursor.Store](container, cursorStore)

	dlqHandler := dlqroutes.NewHandler(dlq, streams, cfg.RedisStreamsJobQueue, logger)

	e := buildServer(cfg, logger, redisClient, dlqHandler)

	// Graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if sched != nil {
			_ = sched.Stop(shutdownCtx)
		}
		_ = processor.Stop(shutdownCtx)
		_ = e.Shutdown(shutdownCtx)
	}()

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Infof("Starting %s on %s", cfg.AppName, addr)
	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server stopped: %v", err)
	}
}

func buildServer(cfg config.Config, logger ectologger.Logger, redisClient *redis.Client, dlqHandler *dlqroutes.Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes
	e.Server.ReadHeaderTimeout = time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second

	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	// Unauthenticated surfaces
	checker := health.NewChecker(redisClient, version)
	checker.RegisterRoutes(e)
	checker.SetReady(true)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/", welcome)

	api := e.Group("")
	if cfg.AuthEnabled {
		api.Use(middleware.Authentication(logger, cfg.AuthIssuerURL, cfg.AuthClientID))
	} else {
		api.Use(middleware.TestAuth())
	}

	orderroutes.Register(api)
	jobroutes.Register(api)
	cacheroutes.Register(api)
	dlqHandler.RegisterRoutes(api)

	return e
}

func welcome(c echo.Context) error {
	links := make([]string, 0, len(c.Echo().Routes()))
	for _, route := range c.Echo().Routes() {
		links = append(links, fmt.Sprintf("%s %s", route.Method, route.Path))
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": "Welcome to the Clover API!",
		"links":   links,
	})
}

// connectRedis retries the initial connection so the service survives
// starting before its dependencies in compose environments.
func connectRedis(cfg config.Config, logger ectologger.Logger) (*redis.Client, error) {
	redisCfg := redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	var client *redis.Client
	var err error
	for attempt := 1; attempt <= cfg.StartupMaxAttempts; attempt++ {
		client, err = redis.NewClient(redisCfg, logger)
		if err == nil {
			return client, nil
		}
		logger.WithError(err).Warnf("Redis connection attempt %d/%d failed", attempt, cfg.StartupMaxAttempts)
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	return nil, err
}

func buildLogger(cfg config.Config) ectologger.Logger {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.PrettyLogs {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	zapLogger, err := zapCfg.Build()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}
