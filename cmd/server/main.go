package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/forgo/questline/api/internal/config"
	"github.com/forgo/questline/api/internal/events"
	"github.com/forgo/questline/api/internal/handler"
	"github.com/forgo/questline/api/internal/jobs"
	"github.com/forgo/questline/api/internal/logger"
	"github.com/forgo/questline/api/internal/middleware"
	"github.com/forgo/questline/api/internal/service"
	"github.com/forgo/questline/api/internal/tracing"
	"github.com/forgo/questline/api/pkg/jwt"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to build logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, cfg.Server.Env)
	if err != nil {
		log.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Initialize store
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect to database", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer func() { _ = st.close() }()

	// Initialize JWT service
	jwtService, err := jwt.NewService(jwt.Config{
		PrivateKeyPath: cfg.JWT.PrivateKeyPath,
		PublicKeyPath:  cfg.JWT.PublicKeyPath,
		Issuer:         cfg.JWT.Issuer,
		ExpirationMins: cfg.JWT.ExpirationMins,
	})
	if err != nil {
		log.Error("failed to initialize JWT service", "error", err)
		os.Exit(1)
	}

	// Events and idempotency share Redis when it is configured
	var publisher events.Publisher = events.NopPublisher{}
	var idempotencyStore middleware.IdempotencyStore
	idempotencyCfg := middleware.IdempotencyConfig{TTL: cfg.Server.IdempotencyTTL}
	if cfg.Redis.Enabled() {
		rdb, err := events.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Error("failed to connect to redis", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		defer func() { _ = rdb.Close() }()

		redisPublisher, err := events.NewRedisPublisher(rdb, cfg.Redis.Channel, log)
		if err != nil {
			log.Error("failed to initialize event publisher", "error", err)
			os.Exit(1)
		}
		publisher = redisPublisher
		idempotencyStore = middleware.NewRedisIdempotencyStore(rdb, idempotencyCfg)
		log.Info("connected to redis", "addr", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
	} else {
		memStore := middleware.NewMemoryIdempotencyStore(idempotencyCfg)
		defer memStore.Stop()
		idempotencyStore = memStore
	}

	// Initialize services
	progressionService := service.NewProgressionService(service.ProgressionServiceConfig{
		Store:              st.progress,
		Guilds:             st.directory,
		Guard:              service.ConcurrencyGuard(cfg.Progression.ConcurrencyGuard),
		MaxConflictRetries: cfg.Progression.MaxConflictRetries,
		Publisher:          publisher,
		Logger:             log,
	})
	rewardService := service.NewRewardService(service.RewardServiceConfig{
		Directory:         st.directory,
		Progress:          progressionService,
		FanOutConcurrency: cfg.Progression.FanOutConcurrency,
		Publisher:         publisher,
		Logger:            log,
	})
	auditService := service.NewAuditService(st.progress, log)

	if cfg.Progression.ConcurrencyGuard == config.GuardNone {
		log.Warn("concurrency guard disabled; racing writers can overshoot bounds until the next audit")
	}

	// Start background jobs
	boundsAuditor := jobs.NewBoundsAuditor(auditService, cfg.Jobs.BoundsAuditInterval, log)
	boundsAuditor.Start()
	defer boundsAuditor.Stop()

	// Routes
	mux := http.NewServeMux()
	handler.Routes{
		Health:      handler.NewHealthHandler(st.pinger, cfg.Store.Driver),
		Progression: handler.NewProgressionHandler(progressionService),
		Contracts:   handler.NewContractHandler(rewardService),
	}.Register(mux, func(next http.Handler) http.Handler {
		return middleware.Chain(next,
			middleware.Auth(jwtService),
			middleware.Idempotency(idempotencyStore, log),
		)
	})

	// Apply global middleware
	wrapped := middleware.Chain(
		mux,
		middleware.RequestID,
		middleware.Logger(log),
		middleware.Recovery(log),
		middleware.CORS(cfg.Server.AllowedOrigins),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      wrapped,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting server",
			"port", cfg.Server.Port,
			"env", cfg.Server.Env,
			"store", cfg.Store.Driver,
			"guard", cfg.Progression.ConcurrencyGuard,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		log.Error("server error", "error", err)
	}

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing shutdown", "error", err)
	}

	log.Info("server exited")
}
