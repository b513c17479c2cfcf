package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"livegate/internal/core/ports"
	"livegate/internal/core/services"
	httphandlers "livegate/internal/handlers/http"
	"livegate/internal/infrastructure/identity"
	"livegate/internal/infrastructure/middleware"
	"livegate/internal/infrastructure/monitoring"
	"livegate/internal/infrastructure/realtime"
	"livegate/internal/infrastructure/recording"
	"livegate/internal/infrastructure/repositories/memory"
	redisrepo "livegate/internal/infrastructure/repositories/redis"
	"livegate/pkg/config"
	"livegate/pkg/logger"
	"livegate/pkg/retry"
	"livegate/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	startTime := time.Now()

	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	// Tracing
	tracerCfg := tracing.DefaultConfig()
	tracerCfg.Enabled = cfg.Tracing.Enabled
	tracerCfg.JaegerURL = cfg.Tracing.JaegerURL
	tracerCfg.SampleRate = cfg.Tracing.SampleRate
	tracer, err := tracing.Init(tracerCfg)
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	// Storage: redis when enabled, in-memory otherwise
	var store ports.StreamStore
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redisrepo.NewClient(
			cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize, log)
		if err != nil {
			log.Fatalw("failed to connect to redis", "error", err)
		}
		store = redisrepo.NewStreamStore(redisClient)
	} else {
		store = memory.NewStreamStore()
	}

	registry := memory.NewSessionRegistry()
	rooms := memory.NewRoomRepository()
	directory := memory.NewUserDirectory()
	ids := identity.NewJWTProvider(cfg.Auth.JWTSecret, directory)

	// Metrics
	var collector ports.Collector
	if cfg.Monitoring.PrometheusEnabled {
		collector = monitoring.NewPrometheusCollector()
	} else {
		collector = monitoring.NopCollector{}
	}

	// Recording collaborator
	var recordingSvc ports.RecordingService
	if cfg.Recording.Enabled && cfg.Recording.Endpoint != "" {
		recordingSvc = recording.NewHTTPClient(cfg.Recording.Endpoint, cfg.Recording.Timeout)
	}
	recorder := services.NewRecordingCoordinator(recordingSvc, retry.Config{
		MaxAttempts:  cfg.Recording.MaxAttempts,
		InitialDelay: cfg.Recording.InitialDelay,
		MaxDelay:     cfg.Recording.MaxDelay,
		Multiplier:   2,
		Jitter:       true,
	}, collector, log)

	// The realtime server is the event sink, so it exists before the
	// services that fan out through it.
	rtServer := realtime.NewServer(ids, cfg.Realtime, cfg.Auth.AllowedOrigins, log)

	gate := services.NewAuthGate(ids, store, cfg.Auth.Timeout, cfg.Auth.IdentityTTL, log)
	broadcaster := services.NewBroadcaster(rooms, registry, rtServer, collector, log)
	states := services.NewStateMachine(store, recorder, broadcaster, collector, log)
	roomManager := services.NewRoomManager(rooms, gate, broadcaster, collector, log)
	coordinator := services.NewCoordinator(gate, registry, states, roomManager, recorder, collector, log)
	rtServer.Bind(coordinator, registry, roomManager, broadcaster, states)

	// Health checks
	health := monitoring.NewHealthChecker()
	if redisClient != nil {
		health.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}, 2*time.Second)
	}

	// HTTP surface
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.RateLimitMiddleware(50, 100))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	streamHandler := httphandlers.NewStreamHandler(states, rooms, store, gate, coordinator)
	streamHandler.SetupRoutes(router, ids)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"timestamp":   time.Now(),
			"uptime":      time.Since(startTime).String(),
			"connections": rtServer.ConnectedCount(),
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		status := health.CheckAll(c.Request.Context())
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("prometheus metrics enabled")
	}

	apiSrv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	rtMux := http.NewServeMux()
	rtMux.HandleFunc("/ws", rtServer.HandleWebSocket)
	rtSrv := &http.Server{
		Addr:        cfg.Realtime.Address,
		Handler:     rtMux,
		ReadTimeout: 0, // websocket connections manage their own deadlines
	}

	serverErr := make(chan error, 2)
	go func() {
		log.Infof("starting livegate API server on %s", cfg.Server.Address)
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()
	go func() {
		log.Infof("starting livegate realtime server on %s", cfg.Realtime.Address)
		if err := rtSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	log.Info("shutting down livegate...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections, then end every live stream so viewers
	// get stream-ended before their connections drop.
	if err := rtSrv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("realtime server shutdown error", "error", err)
	}
	coordinator.Shutdown(shutdownCtx)
	rtServer.Close()

	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("api server shutdown error", "error", err)
	}

	if redisClient != nil {
		if err := redisrepo.CloseClient(redisClient); err != nil {
			log.Errorw("redis close error", "error", err)
		}
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.Errorw("tracer shutdown error", "error", err)
	}

	log.Info("livegate stopped")
}
