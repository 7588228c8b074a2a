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

	_ "github.com/campus-ops/invigil-api/api/swagger"
	"github.com/campus-ops/invigil-api/internal/handler"
	"github.com/campus-ops/invigil-api/internal/middleware"
	"github.com/campus-ops/invigil-api/internal/models"
	"github.com/campus-ops/invigil-api/internal/repository"
	"github.com/campus-ops/invigil-api/internal/service"
	"github.com/campus-ops/invigil-api/pkg/cache"
	"github.com/campus-ops/invigil-api/pkg/config"
	"github.com/campus-ops/invigil-api/pkg/database"
	"github.com/campus-ops/invigil-api/pkg/export"
	"github.com/campus-ops/invigil-api/pkg/jobs"
	"github.com/campus-ops/invigil-api/pkg/logger"
	corsmiddleware "github.com/campus-ops/invigil-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campus-ops/invigil-api/pkg/middleware/requestid"
	"github.com/campus-ops/invigil-api/pkg/storage"
)

// @title Invigilation Administration API
// @version 1.0.0
// @description Exam invigilation portal: roster, availability, assignment reconciliation, venue matching and exports.
// @BasePath /api/v1
// @schemes http https
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Roster.RosterCacheTTL, logr, true)
	}

	location, err := time.LoadLocation(cfg.Roster.Timezone)
	if err != nil {
		logr.Fatal("invalid roster timezone", zap.String("timezone", cfg.Roster.Timezone), zap.Error(err))
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	invigilatorRepo := repository.NewInvigilatorRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	venueRepo := repository.NewVenueRepository(db)
	examRepo := repository.NewExamRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	reportRepo := repository.NewReportRepository(db)

	notificationSvc := service.NewNotificationService(nil, cfg.Notifications, logr)
	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "invigil-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	invigilatorSvc := service.NewInvigilatorService(invigilatorRepo, cacheSvc, cfg.Roster.RosterCacheTTL, validate, logr)
	availabilitySvc := service.NewAvailabilityService(availabilityRepo, invigilatorRepo, validate, logr)
	venueSvc := service.NewVenueService(venueRepo, examRepo, cacheSvc, cfg.Roster.VenueCacheTTL, validate, logr)
	examSvc := service.NewExamService(examRepo, venueRepo, validate, logr)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, invigilatorRepo, examRepo, availabilityRepo, notificationSvc, location, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	invigilatorHandler := handler.NewInvigilatorHandler(invigilatorSvc)
	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc)
	venueHandler := handler.NewVenueHandler(venueSvc)
	examHandler := handler.NewExamHandler(examSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	var reportHandler *handler.ReportHandler
	if cfg.Reports.Enabled {
		fileStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Fatal("failed to init report storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exportSvc := service.NewExportService(reportRepo, examRepo, fileStore, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Reports.SignedURLTTL,
		}, logr, export.NewCSVExporter(), export.NewPDFExporter())

		reportWorker := service.NewReportWorker(reportRepo, exportSvc, cfg.Reports.WorkerRetries, logr)
		reportQueue := jobs.NewQueue("reports", reportWorker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		reportQueue.Start(ctx)
		defer reportQueue.Stop()

		reportSvc := service.NewReportService(reportRepo, examRepo, reportQueue, exportSvc, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
			MaxRetries:      cfg.Reports.WorkerRetries,
		})
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)

		reportHandler = handler.NewReportHandler(reportSvc, logr)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

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

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)

		authed := auth.Group("", middleware.JWT(authSvc))
		authed.POST("/logout", authHandler.Logout)
		authed.POST("/change-password", authHandler.ChangePassword)
		authed.GET("/me", authHandler.Me)
	}

	secured := api.Group("", middleware.JWT(authSvc))

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	coordinators := middleware.RequireRoles(models.RoleAdmin, models.RoleCoordinator)
	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleCoordinator, models.RoleInvigilator)

	users := secured.Group("/users", adminOnly)
	{
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.POST("", middleware.Audit(userRepo, models.AuditActionUserCreate, "users"), userHandler.Create)
		users.PUT("/:id", middleware.Audit(userRepo, models.AuditActionUserUpdate, "users"), userHandler.Update)
		users.DELETE("/:id", middleware.Audit(userRepo, models.AuditActionUserDelete, "users"), userHandler.Delete)
	}

	invigilators := secured.Group("/invigilators")
	{
		invigilators.GET("", coordinators, invigilatorHandler.List)
		invigilators.GET("/:id", anyRole, invigilatorHandler.Get)
		invigilators.POST("", coordinators, invigilatorHandler.Create)
		invigilators.PUT("/:id", coordinators, invigilatorHandler.Update)
		invigilators.POST("/:id/resign", coordinators, middleware.Audit(userRepo, models.AuditActionInvigilatorResign, "invigilators"), invigilatorHandler.Resign)

		invigilators.GET("/:id/availability", anyRole, availabilityHandler.List)
		invigilators.PUT("/:id/availability", anyRole, availabilityHandler.Declare)
		invigilators.PUT("/:id/availability/bulk", anyRole, availabilityHandler.DeclareRange)
		invigilators.DELETE("/:id/availability", anyRole, availabilityHandler.Clear)

		invigilators.GET("/:id/assignments", anyRole, assignmentHandler.ListForInvigilator)
	}

	venues := secured.Group("/venues", coordinators)
	{
		venues.GET("", venueHandler.List)
		venues.GET("/:id", venueHandler.Get)
		venues.POST("", venueHandler.Create)
		venues.PUT("/:id", venueHandler.Update)
		venues.POST("/requirements/normalize", venueHandler.NormalizeRequirement)
	}

	diets := secured.Group("/diets", coordinators)
	{
		diets.GET("", examHandler.ListDiets)
		diets.POST("", examHandler.CreateDiet)
	}

	exams := secured.Group("/exams", coordinators)
	{
		exams.GET("", examHandler.ListExams)
		exams.GET("/:id", examHandler.GetExam)
		exams.POST("", examHandler.CreateExam)
		exams.GET("/:id/provisions", examHandler.ListProvisions)
		exams.PUT("/:id/provisions", examHandler.SaveProvision)
	}

	examVenues := secured.Group("/exam-venues", coordinators)
	{
		examVenues.POST("", examHandler.ScheduleSitting)
		examVenues.PUT("/:id", examHandler.RescheduleSitting)
		examVenues.GET("/:id/roster", assignmentHandler.EligibleRoster)
		examVenues.GET("/:id/assignments", assignmentHandler.ListForVenue)
		examVenues.PUT("/:id/assignments", middleware.Audit(userRepo, models.AuditActionAssignmentChange, "exam-venues"), assignmentHandler.Reconcile)
		examVenues.POST("/:id/venue-matches", venueHandler.Match)
	}

	assignments := secured.Group("/assignments", anyRole)
	{
		assignments.POST("/:id/confirm", assignmentHandler.Confirm)
		assignments.POST("/:id/cancellation", assignmentHandler.RequestCancellation)
		assignments.DELETE("/:id/cancellation", assignmentHandler.WithdrawCancellation)
		assignments.POST("/:id/cancellation/resolve", coordinators, middleware.Audit(userRepo, models.AuditActionCancellationDecide, "assignments"), assignmentHandler.ResolveCancellation)
	}

	if reportHandler != nil {
		reports := secured.Group("/reports", anyRole)
		reports.POST("", reportHandler.GenerateReport)
		reports.GET("/:id", reportHandler.ReportStatus)
		// Downloads authenticate through the signed token, not the session.
		api.GET("/export/:token", reportHandler.DownloadReport)
	}

	secured.GET("/status", adminOnly, metricsHandler.Status)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
