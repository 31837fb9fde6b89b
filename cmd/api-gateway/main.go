package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/bienestar-dev/eventos-api/api/swagger"
	"github.com/bienestar-dev/eventos-api/internal/handler"
	"github.com/bienestar-dev/eventos-api/internal/middleware"
	"github.com/bienestar-dev/eventos-api/internal/repository"
	"github.com/bienestar-dev/eventos-api/internal/service"
	"github.com/bienestar-dev/eventos-api/pkg/cache"
	"github.com/bienestar-dev/eventos-api/pkg/config"
	"github.com/bienestar-dev/eventos-api/pkg/database"
	"github.com/bienestar-dev/eventos-api/pkg/export"
	"github.com/bienestar-dev/eventos-api/pkg/jobs"
	"github.com/bienestar-dev/eventos-api/pkg/logger"
	corsmiddleware "github.com/bienestar-dev/eventos-api/pkg/middleware/cors"
	reqidmiddleware "github.com/bienestar-dev/eventos-api/pkg/middleware/requestid"
	"github.com/bienestar-dev/eventos-api/pkg/storage"
)

// @title Eventos API
// @version 1.0.0
// @description Offering lifecycle, enrollment eligibility and approval workflows
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()

	var cacheSvc *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, projection cache disabled", "error", err)
		cacheSvc = service.NewCacheService(nil, metrics, cfg.Cache.TTL, logr, false)
	} else {
		defer redisClient.Close() //nolint:errcheck
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled)
	}

	evidenceStore, err := storage.NewLocalStorage(cfg.Evidence.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init evidence storage", "error", err)
	}
	certificateStore, err := storage.NewLocalStorage(cfg.Certificates.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init certificate storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Certificates.SignedURLSecret, cfg.Certificates.SignedURLTTL)
	renderer := export.NewCertificateRenderer("")

	sink := service.NewLogNotifier(logr)
	queue := jobs.NewQueue("notifications", service.DispatchHandler(sink), jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	queue.Start(context.Background())
	defer queue.Stop()
	notifier := service.NewQueueNotifier(queue, logr)

	validate := validator.New()

	eventRepo := repository.NewEventRepository(db)
	offeringRepo := repository.NewOfferingRepository(db)
	bindingRepo := repository.NewBindingRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	instructorRepo := repository.NewInstructorRepository(db)
	requirementRepo := repository.NewRequirementRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	authSvc := service.NewAuthService(participantRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	eventSvc := service.NewEventService(eventRepo, participantRepo, validate, logr)
	favoritesSvc := service.NewFavoritesService(eventRepo, cfg.Favorites.Limit, logr)
	offeringSvc := service.NewOfferingService(offeringRepo, eventRepo, bindingRepo, instructorRepo, requirementRepo, enrollmentRepo, participantRepo, cacheSvc, validate, logr)
	lifecycleSvc := service.NewLifecycleService(offeringRepo, enrollmentRepo, instructorRepo, cacheSvc, metrics, notifier, logr)
	eligibilitySvc := service.NewEligibilityService(enrollmentRepo, bindingRepo, offeringRepo, eventRepo, instructorRepo, participantRepo, metrics, notifier, logr)
	approvalSvc := service.NewApprovalService(requirementRepo, paymentRepo, enrollmentRepo, offeringRepo, eventRepo, evidenceStore, cfg.Evidence.MaxFileSizeBytes, validate, notifier, logr)
	certificateSvc := service.NewCertificateService(approvalSvc, enrollmentRepo, offeringRepo, eventRepo, renderer, certificateStore, signer, notifier, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	eventHandler := handler.NewEventHandler(eventSvc, favoritesSvc)
	offeringHandler := handler.NewOfferingHandler(offeringSvc, lifecycleSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(eligibilitySvc)
	approvalHandler := handler.NewApprovalHandler(approvalSvc, certificateSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/certificates/download", approvalHandler.DownloadCertificate)

	authed := api.Group("", middleware.JWT(authSvc))
	authed.GET("/auth/me", authHandler.Me)

	authed.GET("/events", eventHandler.List)
	authed.GET("/events/:id", eventHandler.Get)
	authed.GET("/events/:id/offerings", offeringHandler.ListByEvent)

	authed.GET("/offerings/:id", offeringHandler.Get)
	authed.GET("/offerings/:id/bindings", offeringHandler.ListBindings)
	authed.GET("/offerings/:id/requirements", offeringHandler.ListRequirements)

	authed.GET("/bindings/:bindingId/eligibility", enrollmentHandler.Evaluate)
	authed.POST("/bindings/:bindingId/enrollments", enrollmentHandler.Enroll)
	authed.DELETE("/enrollments/:id", enrollmentHandler.Cancel)

	authed.POST("/enrollments/:id/submissions", approvalHandler.SubmitRequirement)
	authed.GET("/enrollments/:id/completion", approvalHandler.Completion)
	authed.POST("/enrollments/:id/payments", approvalHandler.RegisterPayment)
	authed.POST("/enrollments/:id/certificate", approvalHandler.IssueCertificate)

	// Reviews admit the event responsible as well; the service enforces it.
	authed.POST("/submissions/:id/approve", approvalHandler.ApproveSubmission)
	authed.POST("/submissions/:id/reject", approvalHandler.RejectSubmission)
	authed.POST("/payments/:id/approve", approvalHandler.ApprovePayment)
	authed.POST("/payments/:id/reject", approvalHandler.RejectPayment)

	admin := authed.Group("", middleware.RequireAdmin())
	admin.POST("/events", eventHandler.Create)
	admin.PUT("/events/:id", eventHandler.Update)
	admin.POST("/events/:id/publish", eventHandler.Publish)
	admin.POST("/events/:id/archive", eventHandler.Archive)
	admin.PUT("/events/:id/responsible", eventHandler.AssignResponsible)
	admin.PUT("/events/:id/favorite", eventHandler.SetFavorite)
	admin.DELETE("/events/:id", eventHandler.Delete)

	admin.POST("/offerings", offeringHandler.Create)
	admin.POST("/offerings/:id/transition", offeringHandler.Transition)
	admin.DELETE("/offerings/:id", offeringHandler.Delete)
	admin.POST("/offerings/:id/bindings", offeringHandler.AddBinding)
	admin.DELETE("/offerings/:id/bindings/:bindingId", offeringHandler.RemoveBinding)
	admin.POST("/offerings/:id/instructors", offeringHandler.AssignInstructor)
	admin.POST("/offerings/:id/requirements", offeringHandler.AddRequirement)
	admin.POST("/offerings/:id/attendance", offeringHandler.RecordAttendance)
	admin.PUT("/offerings/:id/results/:enrollmentId", offeringHandler.RecordResults)

	admin.GET("/approvals/pending", approvalHandler.PendingDocuments)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
