package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/credentials"

	"github.com/bibbank/loginrisk/internal/application/usecase"
	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/pipeline"
	"github.com/bibbank/loginrisk/internal/domain/port"
	"github.com/bibbank/loginrisk/internal/domain/safety"
	"github.com/bibbank/loginrisk/internal/infrastructure/audit"
	"github.com/bibbank/loginrisk/internal/infrastructure/config"
	"github.com/bibbank/loginrisk/internal/infrastructure/fingerprint"
	"github.com/bibbank/loginrisk/internal/infrastructure/flags"
	"github.com/bibbank/loginrisk/internal/infrastructure/geoip"
	riskkafka "github.com/bibbank/loginrisk/internal/infrastructure/kafka"
	infrapostgres "github.com/bibbank/loginrisk/internal/infrastructure/postgres"
	"github.com/bibbank/loginrisk/internal/infrastructure/provider"
	"github.com/bibbank/loginrisk/internal/infrastructure/telemetry"
	grpcpresentation "github.com/bibbank/loginrisk/internal/presentation/grpc"
	"github.com/bibbank/loginrisk/internal/presentation/rest"
	"github.com/bibbank/loginrisk/pkg/auth"
	pkgkafka "github.com/bibbank/loginrisk/pkg/kafka"
	"github.com/bibbank/loginrisk/pkg/observability"
	"github.com/bibbank/loginrisk/pkg/postgres"
	"github.com/bibbank/loginrisk/pkg/tlsutil"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logger via shared observability package.
	logger := observability.InitLogger(observability.LogConfig{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		Service:     "loginrisk",
		Environment: cfg.Environment,
	})

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("loginrisk stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("loginrisk stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting loginrisk",
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
		"failure_mode", string(cfg.FailureMode),
	)

	// Metrics.
	metrics, err := observability.InitMetrics(observability.MetricsConfig{ServiceName: "loginrisk", Global: true})
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metrics.Shutdown(shutdownCtx)
	}()

	// Rollout configuration.
	rollout, err := config.LoadRollout(cfg.RolloutFile)
	if err != nil {
		return fmt.Errorf("load rollout: %w", err)
	}
	if err := config.ValidateGuardInterval(cfg.GuardInterval, rollout); err != nil {
		return err
	}

	// Database connection and migrations.
	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	defer dbCancel()

	pgCfg := postgres.Config{URL: cfg.DatabaseURL}
	if cfg.MigrationsDir != "" {
		if err := postgres.RunMigrations(pgCfg.DSN(), cfg.MigrationsDir); err != nil {
			return err
		}
		logger.Info("database migrations applied", "dir", cfg.MigrationsDir)
	}

	pool, err := postgres.NewPool(dbCtx, pgCfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to database")

	guardRepo := infrapostgres.NewGuardStateRepository(pool, "rollout")
	auditRepo := infrapostgres.NewAuditRepository(pool)

	// Kafka producers. Comparisons and telemetry are fire-and-forget; guard
	// events are written synchronously.
	kafkaCfg := pkgkafka.Config{
		ClientID:      "loginrisk",
		ConsumerGroup: cfg.KafkaConsumerGroup,
		Brokers:       cfg.KafkaBrokers,
		SASLEnabled:   cfg.KafkaSASLMechanism != "",
		SASLMechanism: cfg.KafkaSASLMechanism,
		SASLUsername:  cfg.KafkaSASLUsername,
		SASLPassword:  cfg.KafkaSASLPassword,
		TLS:           cfg.KafkaTLSEnabled,
	}
	eventsProducer, err := pkgkafka.NewProducer(kafkaCfg, logger)
	if err != nil {
		return fmt.Errorf("create kafka producer: %w", err)
	}
	defer eventsProducer.Close()

	streamCfg := kafkaCfg
	streamCfg.Async = true
	streamProducer, err := pkgkafka.NewProducer(streamCfg, logger)
	if err != nil {
		return fmt.Errorf("create kafka stream producer: %w", err)
	}
	defer streamProducer.Close()

	eventPublisher := riskkafka.NewPublisher(eventsProducer, cfg.GuardEventsTopic, logger)

	// Audit: structured log plus the persistent audit log.
	auditWriter := audit.NewWriter(auditRepo, audit.WriterConfig{Logger: logger})
	defer auditWriter.Close()
	auditLogger := audit.Fanout{audit.NewSlogLogger(logger), auditWriter}

	// Telemetry: metrics plus the Kafka telemetry stream.
	meterSink, err := telemetry.NewMeterSink(metrics.Provider)
	if err != nil {
		return err
	}
	dispatcher := telemetry.NewDispatcher(cfg.TelemetryBufferSize, logger,
		meterSink,
		riskkafka.NewTelemetrySink(streamProducer, cfg.TelemetryTopic),
	)
	defer dispatcher.Close()

	// Safety guard and disagreement tracker. The tracker window follows the
	// guard's auto-rollback policy once the guard is initialized.
	tracker := safety.NewTracker(rollout.AutoRollback.Window, nil)
	guard := safety.NewGuard(
		safety.WithLogger(logger),
		safety.WithOnRollback(func(reason string, m model.DisagreementMetrics) {
			auditLogger.Log(model.NewAuditEntry(model.AuditKindRollbackTriggered, "", nil, map[string]string{
				"reason":               reason,
				"total_comparisons":    strconv.Itoa(m.TotalComparisons),
				"v2_weaker_percentage": fmt.Sprintf("%.2f", m.V2WeakerPercentage),
			}))
		}),
	)
	if _, err := telemetry.RegisterGuardGauges(metrics.Provider, guard); err != nil {
		return err
	}

	guardDeps := usecase.GuardDeps{
		Guard:     guard,
		Metrics:   tracker,
		Repo:      guardRepo,
		Publisher: eventPublisher,
		Logger:    logger,
		Interval:  cfg.GuardInterval,
	}
	initGuard := usecase.NewInitializeGuard(guardDeps)
	state, err := initGuard.Execute(ctx, rollout)
	if err != nil {
		return err
	}
	logger.Info("safety guard ready",
		"state", state.State,
		"v2_percentage", state.V2Percentage,
		"shadow_percentage", state.ShadowPercentage,
	)

	// Shadow comparisons reach the tracker directly, or through the Kafka
	// feed when this process runs the fleet-wide guard.
	var recorders comparisonFanout
	if cfg.ComparisonFeedEnable {
		recorders = append(recorders, riskkafka.NewComparisonFeed(streamProducer, cfg.ComparisonsTopic, logger))
	}
	if !cfg.GuardConsumeFeed {
		recorders = append(recorders, tracker)
	}

	// GeoIP enrichment.
	var locator port.GeoLocator
	if cfg.GeoIPDBPath != "" {
		l, err := geoip.Open(cfg.GeoIPDBPath)
		if err != nil {
			return err
		}
		defer l.Close()
		locator = l
		logger.Info("geoip enrichment enabled", "path", cfg.GeoIPDBPath)
	}

	// Remote risk provider.
	var remote port.RemoteRiskProvider
	if cfg.RemoteProviderURL != "" {
		var opts []provider.Option
		if cfg.RemoteProviderCAFile != "" {
			tlsCfg, err := tlsutil.ClientConfig(cfg.RemoteProviderCAFile, false)
			if err != nil {
				return err
			}
			opts = append(opts, provider.WithTLSConfig(tlsCfg))
		}
		remote = provider.NewHTTPClient(cfg.RemoteProviderURL, cfg.RemoteProviderAPIKey, opts...)
		logger.Info("remote risk provider enabled", "url", cfg.RemoteProviderURL)
	}

	// Risk pipeline.
	engine := pipeline.NewEngine(pipeline.EngineDeps{
		Registry:  pipeline.NewDefaultRegistry(),
		Collector: fingerprint.UserAgentCollector{},
		Resolver:  flags.NewBucketResolver("loginrisk"),
		Telemetry: dispatcher,
		Recorder:  recorders,
		Logger:    logger,
	})
	assessLogin := usecase.NewAssessLogin(engine, guard, locator, pipeline.Config{
		RemoteProvider:   remote,
		AuditLogger:      auditLogger,
		Logger:           logger,
		Environment:      cfg.Environment,
		FailureMode:      cfg.FailureMode,
		Policy:           model.Policy{MFAThreshold: cfg.MFAThreshold, BlockThreshold: cfg.BlockThreshold},
		AuditAssessments: cfg.AuditAssessments,
		Timeouts: pipeline.Timeouts{
			Fingerprint:    cfg.FingerprintTimeout,
			RiskAssessment: cfg.RiskAssessmentTimeout,
			RemoteProvider: cfg.RemoteProviderTimeout,
		},
	}, logger)

	// Caller authentication.
	jwtCfg := auth.JWTConfig{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}
	if cfg.JWTPublicKeyFile != "" {
		keyPEM, err := auth.LoadKeyFromFile(cfg.JWTPublicKeyFile)
		if err != nil {
			return err
		}
		jwtCfg.PublicKeyPEM = keyPEM
	}
	jwtService, err := auth.NewJWTService(jwtCfg)
	if err != nil {
		return fmt.Errorf("configure jwt: %w", err)
	}

	// gRPC server.
	var creds credentials.TransportCredentials
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		creds, err = tlsutil.ServerCredentials(cfg.TLSCertFile, cfg.TLSKeyFile, cfg.TLSClientCAFile)
		if err != nil {
			return err
		}
	} else if cfg.IsProduction() {
		return errors.New("TLS_CERT_FILE and TLS_KEY_FILE are required in production")
	}

	getGuardState := usecase.NewGetGuardState(guard)
	grpcHandler := grpcpresentation.NewLoginRiskHandler(
		assessLogin,
		getGuardState,
		usecase.NewResetGuard(guardDeps, rollout),
		usecase.NewListAuditEntries(auditRepo),
		logger,
	)
	grpcServer := grpcpresentation.NewServer(grpcHandler, cfg.GRPCAddress(), logger, jwtService, grpcpresentation.ServerOptions{
		Credentials:     creds,
		AssessRateLimit: cfg.AssessRateLimit,
		Reflection:      cfg.GRPCReflection,
	})

	// HTTP server (health checks, metrics, guard status).
	checks := map[string]rest.CheckFunc{
		"database": func(ctx context.Context) error { return postgres.HealthCheck(ctx, pool) },
	}
	httpMux := http.NewServeMux()
	rest.NewHealthHandler(logger, checks).RegisterRoutes(httpMux)
	rest.NewGuardHandler(getGuardState).RegisterRoutes(httpMux)
	httpMux.Handle("GET /metrics", metrics.Handler)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddress(),
		Handler:      rest.Logging(logger, "/healthz", "/readyz", "/metrics")(httpMux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start everything.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := grpcServer.Start(); err != nil {
			return fmt.Errorf("gRPC server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("HTTP server starting", "address", cfg.HTTPAddress())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		runGuard(gctx, usecase.NewEvaluateGuard(guardDeps), cfg.GuardInterval, logger)
		return nil
	})

	if cfg.GuardConsumeFeed {
		consumer, err := pkgkafka.NewConsumer(kafkaCfg, cfg.ComparisonsTopic, riskkafka.ComparisonHandler(tracker, logger), logger)
		if err != nil {
			return fmt.Errorf("create comparison consumer: %w", err)
		}
		defer consumer.Close()
		g.Go(func() error { return consumer.Start(gctx) })
	}

	logger.Info("loginrisk started",
		"grpc_address", cfg.GRPCAddress(),
		"http_address", cfg.HTTPAddress(),
		"environment", cfg.Environment,
	)

	// Wait for shutdown signal or the first failure, then stop the servers.
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down loginrisk")

		grpcServer.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
		return nil
	})

	return g.Wait()
}

// runGuard evaluates the safety guard on every tick until ctx ends.
func runGuard(ctx context.Context, evaluate *usecase.EvaluateGuard, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			resp, err := evaluate.Execute(ctx)
			if err != nil {
				logger.Error("safety guard evaluation failed", "error", err)
				continue
			}
			if resp.TriggeredRollback {
				logger.Warn("safety guard rolled back v2 traffic", "reason", resp.RollbackReason)
			}
		}
	}
}

// comparisonFanout hands each shadow comparison to every recorder.
type comparisonFanout []port.ComparisonRecorder

func (f comparisonFanout) Record(ctx context.Context, c model.ShadowComparison) error {
	var errs []error
	for _, r := range f {
		if err := r.Record(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
