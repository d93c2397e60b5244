package main

import (
	"context"
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
	"go.uber.org/zap"

	_ "github.com/mkawase/classtask-api/api/swagger"
	"github.com/mkawase/classtask-api/internal/handler"
	"github.com/mkawase/classtask-api/internal/middleware"
	"github.com/mkawase/classtask-api/internal/models"
	"github.com/mkawase/classtask-api/internal/repository"
	"github.com/mkawase/classtask-api/internal/service"
	"github.com/mkawase/classtask-api/pkg/cache"
	"github.com/mkawase/classtask-api/pkg/config"
	"github.com/mkawase/classtask-api/pkg/database"
	"github.com/mkawase/classtask-api/pkg/jobs"
	"github.com/mkawase/classtask-api/pkg/logger"
	corsmiddleware "github.com/mkawase/classtask-api/pkg/middleware/cors"
	reqidmiddleware "github.com/mkawase/classtask-api/pkg/middleware/requestid"
	"github.com/mkawase/classtask-api/pkg/sched"
	"github.com/mkawase/classtask-api/pkg/storage"
)

const downloadTokenTTL = 15 * time.Minute

// @title ClassTask API
// @version 1.0.0
// @description Task lifecycle service for classroom task management
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	taskRepo := repository.NewTaskRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	rosterRepo := repository.NewRosterRepository(db)
	userRepo := repository.NewUserRepository(db)

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, listing cache disabled", zap.Error(err))
		} else {
			repo := repository.NewCacheRepository(redisClient, logr)
			defer repo.Close() //nolint:errcheck
			cacheRepo = repo
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cacheRepo != nil)

	submissionStore, err := storage.NewLocalStorage(cfg.Submissions.StorageDir)
	if err != nil {
		logr.Fatal("failed to init submission storage", zap.Error(err))
	}
	purgeSvc := service.NewPurgeService(submissionStore, logr)
	purgeQueue := jobs.NewQueue("submission-purge", purgeSvc.Handle, jobs.QueueConfig{
		Workers:    cfg.Submissions.PurgeWorkers,
		MaxRetries: cfg.Submissions.PurgeRetries,
		Logger:     logr,
	})

	var exportSvc *service.HistoryExportService
	var retentionSvc *service.RetentionService
	if cfg.Exports.Enabled {
		exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Fatal("failed to init export storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.JWT.Secret, downloadTokenTTL)
		exportSvc = service.NewHistoryExportService(taskRepo, exportStore, signer, logr, cfg.APIPrefix)
		retentionSvc = service.NewRetentionService(taskRepo, rosterRepo, submissionRepo, purgeQueue, exportStore, metricsSvc, logr, cfg.Retention.Window)
	} else {
		exportSvc = service.NewHistoryExportService(taskRepo, nil, nil, logr, cfg.APIPrefix)
		retentionSvc = service.NewRetentionService(taskRepo, rosterRepo, submissionRepo, purgeQueue, nil, metricsSvc, logr, cfg.Retention.Window)
	}

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "classtask-api",
	})
	taskSvc := service.NewTaskService(taskRepo, cacheSvc, validate, logr, cfg.Retention.Window)
	lifecycleSvc := service.NewLifecycleService(taskRepo, submissionRepo, purgeQueue, cacheSvc, metricsSvc, logr)
	rosterSvc := service.NewRosterService(rosterRepo, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	purgeQueue.Start(ctx)
	defer purgeQueue.Stop()

	sweeper := sched.NewDaily("retention-sweep", func(ctx context.Context) {
		retentionSvc.Sweep(ctx)
	}, sched.DailyConfig{
		Hour:       cfg.Retention.SweepHour,
		RunOnStart: cfg.Retention.SweepOnStart,
		Logger:     logr,
	})
	sweeper.Start(ctx)
	defer sweeper.Stop()

	authHandler := handler.NewAuthHandler(authSvc)
	taskHandler := handler.NewTaskHandler(taskSvc)
	lifecycleHandler := handler.NewTaskLifecycleHandler(lifecycleSvc)
	rosterHandler := handler.NewRosterHandler(rosterSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/exports/download", exportHandler.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	tasks := authed.Group("/tasks")
	tasks.GET("", taskHandler.List)
	tasks.GET("/:id", taskHandler.Get)
	tasks.GET("/:id/history", taskHandler.History)

	teacherTasks := tasks.Group("")
	teacherTasks.Use(middleware.RequireRoles(models.RoleTeacher))
	teacherTasks.POST("", taskHandler.Create)
	teacherTasks.POST("/batch", lifecycleHandler.Batch)
	teacherTasks.POST("/:id/archive", lifecycleHandler.Archive)
	teacherTasks.POST("/:id/unarchive", lifecycleHandler.Unarchive)
	teacherTasks.PUT("/:id/student-permission", lifecycleHandler.UpdateStudentView)
	teacherTasks.DELETE("/:id", lifecycleHandler.SoftDelete)
	teacherTasks.POST("/:id/restore", lifecycleHandler.Restore)
	teacherTasks.DELETE("/:id/hard", lifecycleHandler.HardDelete)
	teacherTasks.GET("/:id/history/export", exportHandler.Export)

	classes := authed.Group("/classes")
	classes.Use(middleware.RequireRoles(models.RoleTeacher))
	classes.POST("/:id/students/:studentId/remove", rosterHandler.Remove)
	classes.POST("/:id/students/:studentId/restore", rosterHandler.Restore)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("server shutdown failed", zap.Error(err))
	}
}
