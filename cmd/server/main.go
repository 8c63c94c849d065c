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

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"audioscribe/internal/api"
	"audioscribe/internal/config"
	"audioscribe/internal/logging"
	"audioscribe/internal/observe"
	"audioscribe/internal/repository"
	"audioscribe/internal/stt"
	"audioscribe/internal/transcribe"
)

const serviceName = "audioscribe"

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}, serviceName)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gin.SetMode(cfg.GinMode)

	var (
		mp             metric.MeterProvider = noop.NewMeterProvider()
		metricsHandler http.Handler
	)
	if cfg.MetricsEnabled {
		tel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: serviceName, ServiceVersion: version})
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tel.Shutdown(sctx); err != nil {
				logger.Warn().Err(err).Msg("metrics shutdown")
			}
		}()
		mp = tel.MeterProvider
		metricsHandler = tel.Handler
	}
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	store, closeStore, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	providers, err := stt.NewRegistryFromConfig(ctx, cfg.STT, logger)
	if err != nil {
		return fmt.Errorf("build providers: %w", err)
	}

	svc := transcribe.NewService(providers, store, metrics, transcribe.Limits{
		MaxSize:           cfg.Upload.MaxSize,
		AllowedExtensions: cfg.Upload.AllowedExtensions,
	}, logger)

	router := api.NewRouter(api.Deps{
		Service:        svc,
		Providers:      providers,
		Store:          store,
		Metrics:        metrics,
		Logger:         logger,
		MetricsHandler: metricsHandler,
		CORSOrigins:    cfg.CORSOrigins,
		MaxUploadSize:  cfg.Upload.MaxSize,
		ServiceName:    serviceName,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("provider", providers.Default()).
			Str("store", store.Driver()).
			Msg("audioscribe backend running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openStore picks the row store named by STORE_DRIVER.
func openStore(ctx context.Context, cfg config.StoreConfig, logger zerolog.Logger) (repository.Store, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		store := repository.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Msg("postgres store ready")
		return store, pool.Close, nil
	case config.DriverSupabase:
		store, err := repository.NewSupabaseStore(repository.SupabaseConfig{
			URL:   cfg.SupabaseURL,
			Key:   cfg.SupabaseKey,
			Table: cfg.SupabaseTable,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("supabase store: %w", err)
		}
		logger.Info().Str("table", cfg.SupabaseTable).Msg("supabase store ready")
		return store, func() {}, nil
	default:
		logger.Warn().Msg("using in-memory store; records are lost on restart")
		return repository.NewMemoryStore(), func() {}, nil
	}
}
