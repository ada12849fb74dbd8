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

	_ "github.com/noah-isme/sma-fee-api/api/swagger"
	"github.com/noah-isme/sma-fee-api/internal/handler"
	"github.com/noah-isme/sma-fee-api/internal/middleware"
	"github.com/noah-isme/sma-fee-api/internal/models"
	"github.com/noah-isme/sma-fee-api/internal/repository"
	"github.com/noah-isme/sma-fee-api/internal/service"
	"github.com/noah-isme/sma-fee-api/pkg/cache"
	"github.com/noah-isme/sma-fee-api/pkg/config"
	"github.com/noah-isme/sma-fee-api/pkg/database"
	"github.com/noah-isme/sma-fee-api/pkg/export"
	"github.com/noah-isme/sma-fee-api/pkg/jobs"
	"github.com/noah-isme/sma-fee-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-fee-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-fee-api/pkg/middleware/requestid"
)

// @title SMA Fee API
// @version 0.1.0
// @description School fee structures, enrollment fees, payments and scholarships
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
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()
	metrics := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Reports.CacheTTL, logr, cfg.Reports.CacheEnabled)

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	yearRepo := repository.NewAcademicYearRepository(db)
	classRepo := repository.NewClassRepository(db)
	feeTemplateRepo := repository.NewFeeTemplateRepository(db)
	scholTemplateRepo := repository.NewScholarshipTemplateRepository(db)
	structureRepo := repository.NewFeeStructureRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	sequenceRepo := repository.NewReceiptSequenceRepository(db)

	locker := service.NewEnrollmentLocker()
	receipts := export.NewReceiptRenderer(cfg.Fees.SchoolName)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: cfg.JWT.Issuer,
	})
	templateSvc := service.NewTemplateService(feeTemplateRepo, scholTemplateRepo, validate, logr)
	structureSvc := service.NewStructureService(structureRepo, feeTemplateRepo, scholTemplateRepo, yearRepo, classRepo, cfg.Fees.AmountCeiling, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, structureRepo, studentRepo, yearRepo, classRepo, locker, cfg.Fees.AmountCeiling, validate, logr)
	paymentSvc := service.NewPaymentService(paymentRepo, enrollmentRepo, sequenceRepo, locker, metrics, receipts, cfg.Fees.ReceiptPrefix, validate, logr)
	recalcSvc := service.NewRecalcService(enrollmentRepo, enrollmentRepo, paymentRepo, cacheSvc, locker, metrics, cfg.Recalc.JobStatusTTL, logr)
	reportSvc := service.NewReportService(paymentRepo, cacheSvc, cfg.Reports.CacheTTL, logr)

	recalcSvc.StartWorkers(ctx, jobs.QueueConfig{
		Workers:    cfg.Recalc.WorkerConcurrency,
		MaxRetries: cfg.Recalc.WorkerRetries,
		RetryDelay: cfg.Recalc.RetryDelay,
		Logger:     logr,
	})
	defer recalcSvc.Stop()

	authHandler := handler.NewAuthHandler(authSvc)
	templateHandler := handler.NewTemplateHandler(templateSvc)
	structureHandler := handler.NewStructureHandler(structureSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	recalcHandler := handler.NewRecalcHandler(recalcSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, db)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	authed.GET("/auth/me", authHandler.Me)

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleAccountant)
	admin := middleware.RequireRoles(models.RoleAdmin)

	authed.GET("/fee-templates", templateHandler.ListFees)
	authed.POST("/fee-templates", admin, templateHandler.CreateFee)
	authed.PUT("/fee-templates/:id", admin, templateHandler.UpdateFee)
	authed.DELETE("/fee-templates/:id", admin, templateHandler.DeactivateFee)

	authed.GET("/scholarship-templates", templateHandler.ListScholarships)
	authed.POST("/scholarship-templates", admin, templateHandler.CreateScholarship)
	authed.PUT("/scholarship-templates/:id", admin, templateHandler.UpdateScholarship)
	authed.DELETE("/scholarship-templates/:id", admin, templateHandler.DeactivateScholarship)

	authed.GET("/fee-structures", structureHandler.List)
	authed.GET("/fee-structures/:id", structureHandler.Get)
	authed.POST("/fee-structures", admin, structureHandler.Create)
	authed.PUT("/fee-structures/:id", admin, structureHandler.Update)
	authed.POST("/fee-structures/:id/copy", admin, structureHandler.Copy)

	authed.GET("/enrollments", enrollmentHandler.List)
	authed.GET("/enrollments/:id", enrollmentHandler.Get)
	authed.POST("/enrollments", staff, enrollmentHandler.Create)
	authed.POST("/enrollments/:id/rematerialize", admin, enrollmentHandler.Rematerialize)
	authed.POST("/enrollments/:id/scholarships", staff, enrollmentHandler.ApplyScholarship)
	authed.DELETE("/enrollments/:id/scholarships", staff, enrollmentHandler.RemoveScholarship)
	authed.POST("/enrollments/:id/waive", admin, enrollmentHandler.Waive)
	authed.DELETE("/enrollments/:id/waive", admin, enrollmentHandler.Unwaive)
	authed.DELETE("/enrollments/:id", admin, enrollmentHandler.Deactivate)
	authed.GET("/enrollments/:id/payments", paymentHandler.Ledger)
	authed.POST("/enrollments/:id/recalculate", staff, recalcHandler.Recalculate)

	authed.GET("/payments", paymentHandler.List)
	authed.GET("/payments/:id", paymentHandler.Get)
	authed.POST("/payments", staff, paymentHandler.Collect)
	authed.POST("/payments/:id/reverse", admin, paymentHandler.Reverse)
	authed.GET("/payments/:id/receipt", paymentHandler.Receipt)

	authed.POST("/recalculations", admin, recalcHandler.All)
	authed.POST("/recalculations/batch", admin, recalcHandler.Batch)
	authed.GET("/recalculations/:id", recalcHandler.Status)

	authed.GET("/reports/collections", reportHandler.Collections)
	authed.GET("/reports/collections/export", reportHandler.CollectionsExport)
	authed.GET("/reports/outstanding", reportHandler.Outstanding)
	authed.GET("/reports/outstanding/export", reportHandler.OutstandingExport)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
