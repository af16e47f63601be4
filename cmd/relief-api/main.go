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

	_ "github.com/noah-isme/relief-api/api/swagger"
	"github.com/noah-isme/relief-api/internal/handler"
	"github.com/noah-isme/relief-api/internal/middleware"
	"github.com/noah-isme/relief-api/internal/models"
	"github.com/noah-isme/relief-api/internal/repository"
	"github.com/noah-isme/relief-api/internal/service"
	"github.com/noah-isme/relief-api/pkg/cache"
	"github.com/noah-isme/relief-api/pkg/config"
	"github.com/noah-isme/relief-api/pkg/database"
	"github.com/noah-isme/relief-api/pkg/jobs"
	"github.com/noah-isme/relief-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/relief-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/relief-api/pkg/middleware/requestid"
	"github.com/noah-isme/relief-api/pkg/storage"
)

// @title Relief API
// @version 0.1.0
// @description Substitute teacher assignment service
// @BasePath /
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	var cacheRepo *repository.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
			cfg.Cache.Enabled = false
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	store, err := storage.NewLocalStorage(cfg.Export.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export directory", "error", err)
	}

	teacherRepo := repository.NewTeacherRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	leaveRepo := repository.NewLeaveRepository(db)
	reliefLogRepo := repository.NewReliefLogRepository(db)
	userRepo := repository.NewUserRepository(db)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, cfg.JWT, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, timetableRepo, db, cacheRepo, userRepo, validate, logr, service.TeacherCacheConfig{
		Enabled:   cfg.Cache.Enabled,
		KeyPrefix: cfg.Cache.KeyPrefix,
		RosterTTL: cfg.Cache.RosterTTL,
	})
	timetableSvc := service.NewTimetableService(timetableRepo, validate, logr)
	leaveSvc := service.NewLeaveService(
		leaveRepo,
		teacherRepo,
		timetableRepo,
		reliefLogRepo,
		service.NewAssignmentEngine(),
		db,
		userRepo,
		metricsSvc,
		validate,
		logr,
		service.LeaveServiceConfig{
			PlaceholderClass:   cfg.Relief.PlaceholderClass,
			PlaceholderSubject: cfg.Relief.PlaceholderSubject,
		},
	)
	reliefLogSvc := service.NewReliefLogService(reliefLogRepo, logr)
	exportSvc := service.NewExportService(teacherRepo, timetableRepo, leaveRepo, reliefLogRepo, store, userRepo, logr, jobs.QueueConfig{
		Workers:    cfg.Export.WorkerConcurrency,
		MaxRetries: cfg.Export.WorkerRetries,
		Logger:     logr,
	}, service.ExportRetentionConfig{
		ResultTTL: cfg.Export.ResultTTL,
	})
	dashboardSvc := service.NewDashboardService(reliefLogRepo, teacherRepo, cacheRepo, metricsSvc, logr, service.DashboardCacheConfig{
		Enabled:    cfg.Cache.Enabled,
		KeyPrefix:  cfg.Cache.KeyPrefix,
		SummaryTTL: cfg.Cache.SummaryTTL,
	})

	authHandler := handler.NewAuthHandler(authSvc)
	teacherHandler := handler.NewTeacherHandler(teacherSvc)
	timetableHandler := handler.NewTimetableHandler(timetableSvc)
	leaveHandler := handler.NewLeaveHandler(leaveSvc, reliefLogSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	authed.GET("/auth/me", authHandler.Me)

	teachers := authed.Group("/teachers")
	{
		teachers.GET("", teacherHandler.List)
		teachers.GET("/workloads", teacherHandler.Workloads)
		teachers.GET("/:id", teacherHandler.Get)
		teachers.POST("", middleware.RequireRoles(models.RoleAdmin), teacherHandler.Create)
		teachers.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), teacherHandler.Update)
		teachers.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), teacherHandler.Delete)
		teachers.POST("/workloads/reset", middleware.RequireRoles(models.RoleAdmin), teacherHandler.ResetWorkloads)
	}

	timetable := authed.Group("/timetable")
	{
		timetable.GET("", timetableHandler.List)
		timetable.GET("/:id", timetableHandler.Get)
		timetable.POST("", middleware.RequireRoles(models.RoleAdmin), timetableHandler.Create)
		timetable.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), timetableHandler.Delete)
	}

	leaves := authed.Group("/leaves")
	{
		leaves.GET("", leaveHandler.List)
		leaves.GET("/:id", leaveHandler.Get)
		leaves.POST("", leaveHandler.Submit)
		leaves.POST("/:id/approve", middleware.RequireRoles(models.RoleAdmin), leaveHandler.Approve)
		leaves.POST("/:id/reject", middleware.RequireRoles(models.RoleAdmin), leaveHandler.Reject)
	}

	authed.GET("/relief-log", leaveHandler.ReliefLog)

	exports := authed.Group("/exports", middleware.RequireRoles(models.RoleAdmin))
	{
		exports.POST("/snapshot", exportHandler.Snapshot)
		exports.POST("/relief-report", exportHandler.EnqueueReport)
		exports.GET("/relief-report/:id", exportHandler.ReportStatus)
		exports.GET("/relief-report/:id/download",
			middleware.Audit(userRepo, models.AuditActionExport, "export"),
			exportHandler.DownloadReport)
	}

	dashboard := authed.Group("/dashboard")
	{
		dashboard.GET("/relief", dashboardHandler.ReliefSummary)
		dashboard.GET("/system", middleware.RequireRoles(models.RoleAdmin), dashboardHandler.SystemMetrics)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exportSvc.StartWorkers(ctx)
	defer exportSvc.StopWorkers()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}
