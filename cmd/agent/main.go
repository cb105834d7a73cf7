package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/possync/backend/internal/application/syncer"
	"github.com/possync/backend/internal/domain/sync"
	"github.com/possync/backend/internal/infrastructure/config"
	"github.com/possync/backend/internal/infrastructure/logger"
	"github.com/possync/backend/internal/infrastructure/persistence"
	"github.com/possync/backend/internal/infrastructure/transport"
	"github.com/possync/backend/internal/interfaces/http/handler"
	"github.com/possync/backend/internal/interfaces/http/middleware"
	"github.com/possync/backend/internal/interfaces/http/router"
)

// The agent runs next to the till. It exposes the intake API on the main
// port and the operator console on the admin port, and keeps one reconciler
// draining the durable queue against the sync server in the background.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	storeID, err := uuid.Parse(cfg.App.StoreID)
	if err != nil {
		log.Fatal("app.store_id must be a UUID", zap.String("value", cfg.App.StoreID))
	}
	deviceID, err := uuid.Parse(cfg.App.DeviceID)
	if err != nil {
		log.Fatal("app.device_id must be a UUID", zap.String("value", cfg.App.DeviceID))
	}

	log.Info("Starting sync agent",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("store_id", storeID.String()),
		zap.String("device_id", deviceID.String()),
		zap.String("server_url", cfg.Sync.ServerURL),
	)

	store, err := persistence.NewLocalStore(&cfg.LocalStore)
	if err != nil {
		log.Fatal("Failed to open local store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing local store", zap.Error(err))
		}
	}()
	log.Info("Local store opened", zap.String("path", cfg.LocalStore.Path))

	queueRepo := persistence.NewGormQueueRepository(store.DB)
	cacheRepo := persistence.NewGormSaleCacheRepository(store.DB)

	client, err := transport.NewDeliveryClient(transport.ClientConfig{
		BaseURL:  cfg.Sync.ServerURL,
		StoreID:  storeID,
		DeviceID: deviceID,
		Timeout:  cfg.Sync.RequestTimeout,
	})
	if err != nil {
		log.Fatal("Failed to build delivery client", zap.Error(err))
	}

	backoff := sync.BackoffPolicy{
		BaseDelay:           cfg.Sync.BaseBackoff,
		MaxDelay:            cfg.Sync.MaxBackoff,
		EscalationThreshold: cfg.Sync.EscalationThreshold,
	}

	hub := syncer.NewTriggerHub(log)
	reconciler := syncer.NewReconciler(queueRepo, cacheRepo, client, hub, syncer.ReconcilerConfig{
		Interval:       cfg.Sync.Interval,
		BatchLimit:     cfg.Sync.BatchLimit,
		Backoff:        backoff,
		CacheRetention: cfg.LocalStore.CacheRetention,
		PruneInterval:  cfg.LocalStore.PruneInterval,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reconciler.Start(ctx)
	watcher := syncer.NewConnectivityWatcher(client, hub, cfg.Sync.Interval, log)
	go watcher.Run(ctx)

	intakeService := syncer.NewIntakeService(queueRepo, cacheRepo, hub, log)
	inspectionService := syncer.NewInspectionService(queueRepo, hub, backoff, log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Till-facing intake API
	intakeEngine := gin.New()
	intakeEngine.Use(middleware.RequestID())
	intakeEngine.Use(logger.Recovery(log))
	intakeEngine.Use(logger.GinMiddleware(log))
	intakeEngine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	intakeRouter := router.NewRouter(intakeEngine, router.WithAPIVersion("v1"))
	intakeRouter.Register(handler.NewIntakeHandler(intakeService))
	intakeRouter.Setup()

	// Operator console on a separate port
	adminEngine := gin.New()
	adminEngine.Use(middleware.RequestID())
	adminEngine.Use(logger.Recovery(log))
	adminEngine.Use(logger.GinMiddleware(log))
	adminEngine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.HTTP.CORSAllowOrigins,
		AllowMethods: cfg.HTTP.CORSAllowMethods,
		AllowHeaders: cfg.HTTP.CORSAllowHeaders,
	}))
	adminEngine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	admin := adminEngine.Group("/admin")
	handler.NewConsoleHandler(inspectionService).RegisterRoutes(admin)

	intakeSrv := newServer(cfg, ":"+cfg.App.Port, intakeEngine)
	adminSrv := newServer(cfg, ":"+cfg.App.AdminPort, adminEngine)

	go func() {
		log.Info("Intake API starting", zap.String("addr", intakeSrv.Addr))
		if err := intakeSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start intake API", zap.Error(err))
		}
	}()
	go func() {
		log.Info("Operator console starting", zap.String("addr", adminSrv.Addr))
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start operator console", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down agent...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := intakeSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("Intake API forced to shutdown", zap.Error(err))
	}
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("Operator console forced to shutdown", zap.Error(err))
	}

	cancel()
	if err := reconciler.Stop(shutdownCtx); err != nil {
		log.Error("Reconciler did not stop cleanly", zap.Error(err))
	}

	log.Info("Agent exited gracefully")
}

func newServer(cfg *config.Config, addr string, engine *gin.Engine) *http.Server {
	return &http.Server{
		Addr:           addr,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}
}
