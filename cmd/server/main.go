package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Ramsey-B/pollen/config"
	migrations "github.com/Ramsey-B/pollen/db"
	"github.com/Ramsey-B/pollen/internal/handlers"
	"github.com/Ramsey-B/pollen/pkg/connector"
	"github.com/Ramsey-B/pollen/pkg/database"
	"github.com/Ramsey-B/pollen/pkg/graph"
	"github.com/Ramsey-B/pollen/pkg/health"
	"github.com/Ramsey-B/pollen/pkg/httpclient"
	"github.com/Ramsey-B/pollen/pkg/kafka"
	"github.com/Ramsey-B/pollen/pkg/middleware"
	"github.com/Ramsey-B/pollen/pkg/redis"
	"github.com/Ramsey-B/pollen/pkg/repositories"
	"github.com/Ramsey-B/pollen/pkg/startup"
	"github.com/Ramsey-B/pollen/pkg/tracing"
	"github.com/Ramsey-B/pollen/pkg/tracing/exporters"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, sync, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer sync()

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("pollen exited with an error")
		sync()
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (ectologger.Logger, func(), error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapCfg = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	zapLogger, err := zapCfg.Build()
	if err != nil {
		return nil, nil, err
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil), func() { _ = zapLogger.Sync() }, nil
}

func run(cfg *config.Config, logger ectologger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.AppName, cfg.OTLPEnabled, exporters.OTLPConfig{
		Endpoint: cfg.OTLPEndpoint,
		Protocol: cfg.OTLPProtocol,
		Insecure: cfg.OTLPInsecure,
		Timeout:  cfg.OTLPTimeout,
	}, logger)
	if err != nil {
		return err
	}

	// dependencies
	deps := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	dbDep := startup.NewDatabaseDependency(database.ConnectConfig{
		Driver:          cfg.DatabaseDriver,
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		UserName:        cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, logger)
	deps.AddDependency(dbDep)
	deps.AddDependency(startup.NewMigrationDependency(dbDep, database.NewMigrator(database.MigrationConfig{
		FolderPath: cfg.DatabaseMigrationFolderPath,
		Version:    uint(cfg.DatabaseMigrationVersion),
		Force:      cfg.DatabaseMigrationForce,
	}, migrations.Postgres, migrations.PostgresDir, logger)))

	var events connector.ChannelEvents = connector.NopChannelEvents{}
	kafkaCfg := kafka.ParseConfig(cfg.KafkaBrokers, cfg.KafkaChannelTopic)
	if kafkaCfg.Enabled() {
		producer := kafka.NewProducer(kafkaCfg, logger)
		deps.AddDependency(startup.NewKafkaDependency(kafkaCfg.Brokers, producer))
		events = producer
	} else {
		logger.Info("KAFKA_BROKERS is empty; channel events are disabled")
	}

	syncOpts := []connector.SyncerOption{
		connector.WithFailurePolicy(connector.ParseFailurePolicy(cfg.SyncPageFailurePolicy)),
		connector.WithChannelEvents(events),
	}
	var redisClient *redis.Client
	redisCfg := redis.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	if redisCfg.Enabled() {
		redisClient = redis.NewClient(redisCfg, logger)
		deps.AddDependency(startup.NewRedisDependency(redisClient))
		syncOpts = append(syncOpts, connector.WithPageLocker(redis.NewLocker(redisClient, "pollen:lock:", cfg.PageLockTTL, cfg.PageLockWait)))
	} else {
		logger.Info("REDIS_ADDR is empty; page sync is not locked across instances")
	}

	if err := deps.Start(ctx); err != nil {
		return err
	}

	db := database.NewDatabaseInstance(dbDep.DB, logger)

	// domain
	settingsRepo := repositories.NewSettingsRepository(db, logger)
	logRepo := repositories.NewLogRepository(db, logger)
	channelRepo := repositories.NewChannelRepository(db, logger)

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.GraphHTTPTimeout
	graphClient := graph.NewClient(httpclient.NewClient(httpCfg, logger), cfg.GraphAPIBaseURL, logger)

	audit := connector.NewAuditor(logRepo, logger)
	syncer := connector.NewSyncer(graphClient, channelRepo, logger, append(syncOpts, connector.WithAuditor(audit))...)
	conn := connector.NewConnector(settingsRepo, graphClient, syncer, audit, cfg.CallbackPath, logger)

	// http
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Validator = handlers.NewRequestValidator()
	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context(!cfg.AuthEnabled))
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))

	checks := []health.Check{health.DatabaseCheck(db)}
	if kafkaCfg.Enabled() {
		checks = append(checks, health.Check{
			Name: "kafka",
			Probe: func(ctx context.Context) error {
				return kafka.Ping(ctx, kafkaCfg.Brokers)
			},
		})
	}
	if redisClient != nil {
		checks = append(checks, health.Check{Name: "redis", Probe: redisClient.Ping})
	}
	checker := health.NewChecker(version, checks...)
	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	handlers.NewFacebookHandler(conn, handlers.FacebookPaths{
		FallbackURL:   cfg.PublicURL,
		FrontendPath:  cfg.FrontendPath,
		ErrorPagePath: cfg.ErrorPagePath,
	}, cfg.FacebookOAuthScopes, logger).RegisterRoutes(api)

	admin := e.Group("/api/v1")
	if cfg.AuthEnabled {
		verifier, err := middleware.NewOIDCVerifier(ctx, cfg.AuthIssuerURL, cfg.AuthClientID)
		if err != nil {
			return err
		}
		admin.Use(middleware.Authentication(logger, verifier))
	}
	handlers.NewChannelHandler(channelRepo).RegisterRoutes(admin)
	handlers.NewLogHandler(logRepo).RegisterRoutes(admin)
	handlers.NewSettingsHandler(settingsRepo).RegisterRoutes(admin)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           e,
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("pollen listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()
	checker.SetReady(true)

	select {
	case err = <-serverErr:
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.WithError(shutdownErr).Error("failed to shut down http server")
	}
	if stopErr := deps.Stop(shutdownCtx); stopErr != nil {
		logger.WithError(stopErr).Error("failed to stop dependencies")
	}
	if traceErr := shutdownTracing(shutdownCtx); traceErr != nil {
		logger.WithError(traceErr).Error("failed to flush traces")
	}
	return err
}
