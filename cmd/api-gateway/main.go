package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/unipath/unipath-api/api/swagger"
	"github.com/unipath/unipath-api/internal/handler"
	"github.com/unipath/unipath-api/internal/middleware"
	"github.com/unipath/unipath-api/internal/models"
	"github.com/unipath/unipath-api/internal/repository"
	"github.com/unipath/unipath-api/internal/service"
	"github.com/unipath/unipath-api/pkg/cache"
	"github.com/unipath/unipath-api/pkg/config"
	"github.com/unipath/unipath-api/pkg/database"
	"github.com/unipath/unipath-api/pkg/export"
	"github.com/unipath/unipath-api/pkg/jobs"
	"github.com/unipath/unipath-api/pkg/logger"
	corsmiddleware "github.com/unipath/unipath-api/pkg/middleware/cors"
	reqidmiddleware "github.com/unipath/unipath-api/pkg/middleware/requestid"
	"github.com/unipath/unipath-api/pkg/storage"
)

// @title UniPath API
// @version 1.0.0
// @description University application platform backend
// @BasePath /api/v1
// @schemes http https

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
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	universityRepo := repository.NewUniversityRepository(db)
	programRepo := repository.NewProgramRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Core services.
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, true)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	profileSvc := service.NewProfileService(profileRepo, validate, logr)
	matchSvc := service.NewMatchService(profileRepo, universityRepo, logr)
	universitySvc := service.NewUniversityService(universityRepo, programRepo, cacheSvc, userRepo, cfg.Catalog.CacheTTL, validate, logr)
	programSvc := service.NewProgramService(programRepo, universityRepo, cacheSvc, userRepo, validate, logr)
	applicationSvc := service.NewApplicationService(applicationRepo, programRepo, userRepo, validate, logr)
	dashboardSvc := service.NewDashboardService(applicationRepo, matchSvc, cacheSvc, cfg.Dashboard.CacheTTL, cfg.Dashboard.Enabled, logr)
	applicationSvc.SetSummaryCache(dashboardSvc)
	profileSvc.SetSummaryCache(dashboardSvc)

	documentStorage, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init document storage", "error", err)
	}
	documentSigner := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)
	documentSvc := service.NewDocumentService(documentRepo, applicationRepo, documentStorage, documentSigner, userRepo, logr, service.DocumentServiceConfig{
		MaxFileSize:  cfg.Documents.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Documents.AllowedMIMEs,
		APIPrefix:    cfg.APIPrefix,
	})

	exportStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	exportSigner := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(exportJobRepo, applicationRepo, profileRepo, exportStorage, exportSigner, export.NewCSVExporter(), export.NewPDFExporter(), logr, service.ExportServiceConfig{
		APIPrefix:       cfg.APIPrefix,
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exportQueue := jobs.NewQueue("exports", exportSvc.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
	})
	exportSvc.SetQueue(exportQueue)
	if cfg.Exports.Enabled {
		exportQueue.Start(rootCtx)
		defer exportQueue.Stop()
		exportSvc.StartCleanup(rootCtx)
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	profileHandler := handler.NewProfileHandler(profileSvc)
	universityHandler := handler.NewUniversityHandler(universitySvc)
	programHandler := handler.NewProgramHandler(programSvc)
	applicationHandler := handler.NewApplicationHandler(applicationSvc)
	matchHandler := handler.NewMatchHandler(matchSvc)
	documentHandler := handler.NewDocumentHandler(documentSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/forgot-password", authHandler.ForgotPassword)
	auth.POST("/reset-password", authHandler.ResetPassword)

	// Signed token carries the authorization, no session required.
	api.GET("/exports/download/:token", exportHandler.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	{
		authed.POST("/auth/logout", authHandler.Logout)
		authed.POST("/auth/change-password", authHandler.ChangePassword)
		authed.GET("/auth/me", authHandler.Me)

		authed.GET("/profile/sections", profileHandler.List)
		authed.GET("/profile/sections/:sectionId", profileHandler.Get)
		authed.PUT("/profile/sections/:sectionId", profileHandler.Save)
		authed.PATCH("/profile/sections/:sectionId/completed", profileHandler.SetCompleted)
		authed.DELETE("/profile/sections/:sectionId", profileHandler.Delete)
		authed.GET("/profile/references", profileHandler.References)
		authed.PUT("/profile/references", profileHandler.SetReferences)

		authed.GET("/universities", universityHandler.List)
		authed.GET("/universities/:id", universityHandler.Get)
		authed.GET("/programs", programHandler.List)
		authed.GET("/programs/:id", programHandler.Get)

		authed.GET("/applications", applicationHandler.List)
		authed.GET("/applications/:id", applicationHandler.Get)
		authed.POST("/applications", applicationHandler.Create)
		authed.PATCH("/applications/:id/status", applicationHandler.Transition)
		authed.PUT("/applications/:id/notes", applicationHandler.UpdateNotes)
		authed.DELETE("/applications/:id", applicationHandler.Delete)

		authed.GET("/matches", matchHandler.List)
		authed.GET("/matches/profile-strength", matchHandler.ProfileStrength)

		authed.POST("/documents", documentHandler.Upload)
		authed.GET("/documents", documentHandler.List)
		authed.GET("/documents/:id", documentHandler.Get)
		authed.GET("/documents/:id/download", middleware.Audit(userRepo, "DOCUMENT_DOWNLOAD", "documents"), documentHandler.Download)
		authed.DELETE("/documents/:id", documentHandler.Delete)

		if cfg.Dashboard.Enabled {
			authed.GET("/dashboard", dashboardHandler.Summary)
		}

		if cfg.Exports.Enabled {
			authed.POST("/exports", exportHandler.Create)
			authed.GET("/exports", exportHandler.List)
			authed.GET("/exports/:id", exportHandler.Status)
		}
	}

	admin := api.Group("")
	admin.Use(middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/users", userHandler.List)
		admin.GET("/users/:id", userHandler.Get)
		admin.POST("/users", userHandler.Create)
		admin.PUT("/users/:id", userHandler.Update)
		admin.DELETE("/users/:id", userHandler.Delete)

		admin.POST("/universities", universityHandler.Create)
		admin.PUT("/universities/:id", universityHandler.Update)
		admin.DELETE("/universities/:id", universityHandler.Delete)

		admin.POST("/programs", programHandler.Create)
		admin.PUT("/programs/:id", programHandler.Update)
		admin.DELETE("/programs/:id", programHandler.Delete)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
