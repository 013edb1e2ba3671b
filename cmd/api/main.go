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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/TalentedProger/Preloader-Animate/internal/api"
	"github.com/TalentedProger/Preloader-Animate/internal/auth"
	"github.com/TalentedProger/Preloader-Animate/internal/config"
	"github.com/TalentedProger/Preloader-Animate/internal/domain"
	"github.com/TalentedProger/Preloader-Animate/internal/logging"
	"github.com/TalentedProger/Preloader-Animate/internal/middleware"
	"github.com/TalentedProger/Preloader-Animate/internal/outbox"
	httptransport "github.com/TalentedProger/Preloader-Animate/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "preloader-animate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, pool := buildStore(ctx, cfg, logger)
	if pool != nil {
		defer pool.Close()
	}

	var dispatcher *outbox.Dispatcher
	if pool != nil && len(cfg.KafkaBrokers) > 0 {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()

		dispatcher = outbox.NewDispatcher(pool, producer, cfg.OutboxPollInterval, cfg.OutboxBatchSize,
			outbox.WithLogger(logger.Named("outbox")))
		go dispatcher.Start(ctx)
		logger.Info("outbox dispatcher started", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	var limiter middleware.Limiter
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		limiter = middleware.NewRedisLimiter(rdb, cfg.SubscribeRateLimit, cfg.SubscribeRateWindow)
	}

	proxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid trusted proxies: %w", err)
	}

	service := domain.NewService(store, domain.WithLogger(logger.Named("intake")))
	handler := api.NewHandler(service,
		api.WithLogger(logger.Named("api")),
		api.WithIntroTiming(cfg.PreloaderDuration, cfg.PreloaderTick),
	)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	isSubscribe := func(r *http.Request) bool {
		return r.Method == http.MethodPost && r.URL.Path == "/v1/subscribers"
	}
	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, auth.AdminOnly)

	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), httptransport.Chain(mux,
		middleware.Logger(logger.Named("http")),
		middleware.CORS(cfg.AllowedOrigin),
		middleware.RateLimit(limiter, isSubscribe, cfg.SubscribeRateWindow, proxies, logger),
		authMiddleware.Wrap,
	))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("preloader-animate listening", zap.String("address", cfg.HTTPAddress))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		cancel()
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
	if dispatcher != nil {
		dispatcher.Wait()
	}
	logger.Info("preloader-animate stopped")
	return nil
}
