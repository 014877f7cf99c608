package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/hillcrest-arts/lessons-api/api/swagger"
	"github.com/hillcrest-arts/lessons-api/internal/handler"
	"github.com/hillcrest-arts/lessons-api/internal/middleware"
	"github.com/hillcrest-arts/lessons-api/internal/models"
	"github.com/hillcrest-arts/lessons-api/internal/repository"
	"github.com/hillcrest-arts/lessons-api/internal/service"
	"github.com/hillcrest-arts/lessons-api/pkg/cache"
	"github.com/hillcrest-arts/lessons-api/pkg/config"
	"github.com/hillcrest-arts/lessons-api/pkg/database"
	"github.com/hillcrest-arts/lessons-api/pkg/jobs"
	"github.com/hillcrest-arts/lessons-api/pkg/logger"
	corsmiddleware "github.com/hillcrest-arts/lessons-api/pkg/middleware/cors"
	reqidmiddleware "github.com/hillcrest-arts/lessons-api/pkg/middleware/requestid"
	"github.com/hillcrest-arts/lessons-api/pkg/storage"
)

// @title Hillcrest Lessons API
// @version 1.0.0
// @description Registration and administration API for the music lesson program
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	instructorRepo := repository.NewInstructorRepository(db)
	classRepo := repository.NewClassRepository(db)
	periodRepo := repository.NewPeriodRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)

	var cacheRepo *repository.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, registration list cache disabled", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}

	// Services.
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "lessons-api",
	})
	periodSvc := service.NewPeriodService(periodRepo, userRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	instructorSvc := service.NewInstructorService(instructorRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, instructorRepo, validate, logr)

	var registrationCache service.RegistrationCache
	if cacheRepo != nil {
		registrationCache = cacheRepo
	}
	registrationSvc := service.NewRegistrationService(registrationRepo, studentRepo, classRepo, periodSvc, registrationCache, cfg.Cache.TTL, validate, logr)
	registrationSvc.SetMetrics(metricsSvc)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, registrationRepo, validate, logr)
	importSvc := service.NewImportService(registrationRepo, userRepo, registrationCache, cfg.Imports.MaxFileSizeBytes, logr)

	var exportSvc *service.RosterExportService
	var exportQueue *jobs.Queue
	if cfg.Exports.Enabled {
		fileStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
		}
		signer, err := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		if err != nil {
			logr.Sugar().Fatalw("failed to build download signer", "error", err)
		}
		exportSvc = service.NewRosterExportService(exportJobRepo, registrationSvc, studentRepo, instructorRepo, fileStore, signer, userRepo, logr)
		exportSvc.SetMetrics(metricsSvc)
		exportQueue = jobs.NewQueue(exportSvc.Process, cfg.Exports.WorkerConcurrency, cfg.Exports.WorkerRetries, logr)
		exportSvc.SetQueue(exportQueue)
		exportQueue.Start()
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	periodHandler := handler.NewPeriodHandler(periodSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	instructorHandler := handler.NewInstructorHandler(instructorSvc)
	classHandler := handler.NewClassHandler(classSvc)
	registrationHandler := handler.NewRegistrationHandler(registrationSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	importHandler := handler.NewImportHandler(importSvc)

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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	staffOnly := middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor)

	protected.POST("/auth/logout", authHandler.Logout)
	protected.GET("/auth/me", authHandler.Me)

	protected.GET("/periods/current", periodHandler.Current)
	protected.GET("/periods", periodHandler.List)
	protected.POST("/periods", adminOnly, periodHandler.Create)
	protected.POST("/periods/advance", adminOnly, periodHandler.Advance)
	protected.PUT("/periods/:id/current", adminOnly, periodHandler.SetCurrent)

	protected.GET("/students", studentHandler.List)
	protected.GET("/students/:id", studentHandler.Get)
	protected.POST("/students", adminOnly, studentHandler.Create)
	protected.PUT("/students/:id", adminOnly, studentHandler.Update)

	protected.GET("/instructors", instructorHandler.List)
	protected.GET("/instructors/:id", instructorHandler.Get)
	protected.POST("/instructors", adminOnly, instructorHandler.Create)

	protected.GET("/classes", classHandler.List)
	protected.GET("/classes/:id", classHandler.Get)
	protected.POST("/classes", adminOnly, classHandler.Create)

	protected.POST("/registrations", registrationHandler.Create)
	protected.POST("/registrations/validate", registrationHandler.Validate)
	protected.GET("/registrations", registrationHandler.List)
	protected.GET("/registrations/:id", registrationHandler.Get)
	protected.POST("/registrations/:id/cancel", registrationHandler.Cancel)
	protected.DELETE("/registrations/:id", adminOnly, registrationHandler.Delete)
	protected.PUT("/registrations/:id/intent", registrationHandler.UpdateIntent)

	protected.POST("/attendance", staffOnly, attendanceHandler.Record)
	protected.GET("/registrations/:id/attendance", attendanceHandler.List)
	protected.GET("/registrations/:id/attendance/summary", attendanceHandler.Summary)

	if cfg.Imports.Enabled {
		protected.POST("/imports/sheet", adminOnly, importHandler.Import)
		protected.GET("/imports/sheet/export", adminOnly, importHandler.ExportSheet)
	}

	if exportSvc != nil {
		exportHandler := handler.NewExportHandler(exportSvc)
		protected.POST("/exports", staffOnly, exportHandler.Request)
		protected.GET("/exports/:id", exportHandler.Status)
		// Downloads authenticate with the signed token itself.
		api.GET("/exports/download/:token", exportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Sugar().Infow("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Sugar().Errorw("forced shutdown", "error", err)
	}
	if exportQueue != nil {
		exportQueue.Stop()
	}
}
