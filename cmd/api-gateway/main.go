package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/synapsedt/synapsedt-api/api/swagger"
	"github.com/synapsedt/synapsedt-api/internal/handler"
	"github.com/synapsedt/synapsedt-api/internal/middleware"
	"github.com/synapsedt/synapsedt-api/internal/repository"
	"github.com/synapsedt/synapsedt-api/internal/service"
	"github.com/synapsedt/synapsedt-api/pkg/cache"
	"github.com/synapsedt/synapsedt-api/pkg/config"
	"github.com/synapsedt/synapsedt-api/pkg/database"
	"github.com/synapsedt/synapsedt-api/pkg/jobs"
	"github.com/synapsedt/synapsedt-api/pkg/logger"
	corsmiddleware "github.com/synapsedt/synapsedt-api/pkg/middleware/cors"
	reqidmiddleware "github.com/synapsedt/synapsedt-api/pkg/middleware/requestid"
	"github.com/synapsedt/synapsedt-api/pkg/storage"
)

// @title SynapseDT API
// @version 0.1.0
// @description Regulatory test cycle management with versioned phase deliverables
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	userRepo := repository.NewUserRepository(db)
	cycleRepo := repository.NewCycleRepository(db)
	versionRepo := repository.NewVersionRepository(db)
	itemRepo := repository.NewItemRepository(db)
	exportRepo := repository.NewExportJobRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, validator.New(), logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "synapsedt-api",
	})
	userSvc := service.NewUserService(userRepo, userRepo, logr)
	cycleSvc := service.NewCycleService(cycleRepo, versionRepo, userRepo, logr)

	var dashboardSvc *service.DashboardService
	if cfg.Dashboard.Enabled && redisClient != nil {
		dashboardSvc = service.NewDashboardService(versionRepo, itemRepo, cacheRepo, cfg.Dashboard.CacheTTL, logr,
			service.WithCacheMetrics(metricsSvc))
	} else {
		dashboardSvc = service.NewDashboardService(versionRepo, itemRepo, nil, cfg.Dashboard.CacheTTL, logr)
	}

	versionSvc := service.NewVersionService(versionRepo, itemRepo, cycleRepo, userRepo, logr,
		service.WithDashboardInvalidator(dashboardSvc),
		service.WithTransitionMetrics(metricsSvc))

	evaluator := service.NewApprovalRuleEvaluator(cfg.Approval)
	itemSvc := service.NewItemService(itemRepo, versionRepo, versionSvc, evaluator, userRepo, logr,
		service.WithDecisionMetrics(metricsSvc))

	exportHandler := handler.NewExportHandler(nil)
	var exportSvc *service.ExportService
	var exportQueue *jobs.Queue
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

		exportQueue = jobs.NewQueue("exports", func(ctx context.Context, job jobs.Job) error {
			return exportSvc.Process(ctx, job)
		}, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		exportSvc = service.NewExportService(exportRepo, versionRepo, itemRepo, exportQueue, store, signer, userRepo, logr)
		exportHandler = handler.NewExportHandler(exportSvc)

		exportQueue.Start(ctx)
		defer exportQueue.Stop()

		go func() {
			ticker := time.NewTicker(cfg.Exports.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					exportSvc.Cleanup(ctx, cfg.Exports.SignedURLTTL)
				}
			}
		}()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	handlers := handler.Handlers{
		Auth:      handler.NewAuthHandler(authSvc),
		User:      handler.NewUserHandler(userSvc),
		Cycle:     handler.NewCycleHandler(cycleSvc),
		Version:   handler.NewVersionHandler(versionSvc),
		Item:      handler.NewItemHandler(itemSvc),
		Dashboard: handler.NewDashboardHandler(dashboardSvc),
		Export:    exportHandler,
		Metrics:   handler.NewMetricsHandler(metricsSvc),
	}
	handler.Register(r, handlers, authSvc, userRepo)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
