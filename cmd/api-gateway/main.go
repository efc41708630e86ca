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
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-billing-api/api/swagger"
	"github.com/noah-isme/sma-billing-api/internal/handler"
	"github.com/noah-isme/sma-billing-api/internal/middleware"
	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/internal/repository"
	"github.com/noah-isme/sma-billing-api/internal/service"
	"github.com/noah-isme/sma-billing-api/pkg/cache"
	"github.com/noah-isme/sma-billing-api/pkg/config"
	"github.com/noah-isme/sma-billing-api/pkg/database"
	"github.com/noah-isme/sma-billing-api/pkg/email"
	"github.com/noah-isme/sma-billing-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-billing-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-billing-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-billing-api/pkg/push"
	"github.com/noah-isme/sma-billing-api/pkg/storage"
)

// @title SMA Billing API
// @version 1.0.0
// @description School fee billing: students, bills, installment schedules, invoices and reminders.
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	billRepo := repository.NewBillRepository(db)
	emiRepo := repository.NewEMIRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)

	checks := map[string]handler.Pinger{"database": db}
	var cacheRepo service.CacheRepository
	if redisClient != nil {
		redisRepo := repository.NewCacheRepository(redisClient, logr)
		checks["cache"] = handler.PingFunc(redisRepo.Ping)
		cacheRepo = redisRepo
		defer redisRepo.Close() //nolint:errcheck
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled && redisClient != nil)

	notifications := newNotificationService(cfg, metrics, logr)
	logr.Info("notification channels", zap.Bool("push", notifications.PushEnabled()), zap.Bool("email", notifications.EmailEnabled()))
	notifications.Start(ctx)
	defer notifications.Stop()

	invoiceStore, err := storage.NewLocalStorage(cfg.Invoices.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare invoice storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Invoices.SignedURLSecret, cfg.Invoices.SignedURLTTL)

	currency := cfg.Billing.CurrencySymbol
	authSvc := service.NewAuthService(userRepo, cacheSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		ProfileTTL:         cfg.Dashboard.ProfileTTL,
		Issuer:             "sma-billing-api",
	})
	studentSvc := service.NewStudentService(userRepo, cacheSvc, validate, logr)
	billSvc := service.NewBillService(billRepo, userRepo, notifications, cacheSvc, metrics, validate, logr, currency)
	emiSvc := service.NewEMIService(emiRepo, userRepo, cacheSvc, metrics, validate, logr)
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Bills:    billRepo,
		Students: userRepo,
		Cache:    cacheSvc,
		Logger:   logr,
		Config: service.DashboardServiceConfig{
			CacheTTL:    cfg.Dashboard.CacheTTL,
			RecentLimit: cfg.Dashboard.RecentLimit,
		},
	})
	invoiceSvc := service.NewInvoiceService(billRepo, userRepo, invoiceStore, signer, logr, service.InvoiceServiceConfig{
		DownloadURL: cfg.APIPrefix + "/invoices/download",
		Currency:    currency,
	})
	ledgerSvc := service.NewLedgerService(ledgerRepo, userRepo, validate, logr, currency)

	scheduler, err := service.NewReminderScheduler(billRepo, notifications, invoiceSvc, logr, service.ReminderSchedulerConfig{
		ReminderCron:    cfg.Reminders.Cron,
		CleanupInterval: cfg.Invoices.CleanupInterval,
		InvoiceMaxAge:   cfg.Invoices.SignedURLTTL,
		RunTimeout:      cfg.BackendTimeout,
		Currency:        currency,
	})
	if err != nil {
		logr.Fatal("failed to configure reminder scheduler", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix, middleware.Timeout(cfg.BackendTimeout)), routeDeps{
		auth:      handler.NewAuthHandler(authSvc),
		students:  handler.NewStudentHandler(studentSvc),
		bills:     handler.NewBillHandler(billSvc),
		emi:       handler.NewEMIHandler(emiSvc),
		dashboard: handler.NewDashboardHandler(dashboardSvc),
		invoices:  handler.NewInvoiceHandler(invoiceSvc),
		ledger:    handler.NewLedgerHandler(ledgerSvc),
		metrics:   metricsHandler,
		tokens:    authSvc,
		audit:     userRepo,
		logger:    logr,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type routeDeps struct {
	auth      *handler.AuthHandler
	students  *handler.StudentHandler
	bills     *handler.BillHandler
	emi       *handler.EMIHandler
	dashboard *handler.DashboardHandler
	invoices  *handler.InvoiceHandler
	ledger    *handler.LedgerHandler
	metrics   *handler.MetricsHandler
	tokens    middleware.TokenValidator
	audit     middleware.AuditWriter
	logger    *zap.Logger
}

func registerRoutes(api *gin.RouterGroup, d routeDeps) {
	authn := middleware.JWT(d.tokens)

	auth := api.Group("/auth")
	auth.POST("/register", d.auth.Register)
	auth.POST("/login", d.auth.Login)
	auth.POST("/refresh", d.auth.Refresh)
	auth.POST("/logout", authn, d.auth.Logout)
	auth.POST("/change-password", authn, d.auth.ChangePassword)
	auth.GET("/me", authn, d.auth.Me)
	auth.PUT("/me", authn, d.auth.UpdateMe)
	auth.PUT("/me/push-token", authn, d.auth.PushToken)

	api.GET("/invoices/download", d.invoices.Download)

	admin := api.Group("", authn, middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/students", d.students.List)
	admin.POST("/students", d.students.Create)
	admin.GET("/students/:id", d.students.Get)
	admin.PATCH("/students/:id/status", d.students.UpdateStatus)
	admin.DELETE("/students/:id", d.students.Delete)

	admin.GET("/bills", d.bills.List)
	admin.POST("/bills", d.bills.Create)
	admin.GET("/bills/export", middleware.Audit(d.audit, d.logger, models.AuditActionBillExport, "bills"), d.bills.Export)
	admin.POST("/bills/:id/pay", d.bills.MarkPaid)
	admin.POST("/bills/:id/remind", d.bills.Remind)

	admin.GET("/emi-schedules", d.emi.List)
	admin.POST("/emi-schedules", d.emi.Create)
	admin.GET("/emi-schedules/:id", d.emi.Get)
	admin.PATCH("/emi-schedules/:id/status", d.emi.UpdateStatus)

	admin.GET("/dashboard/admin", d.dashboard.Admin)
	admin.GET("/metrics/summary", d.metrics.Snapshot)

	admin.GET("/ledger/accounts", d.ledger.List)
	admin.POST("/ledger/accounts", d.ledger.Create)
	admin.GET("/ledger/accounts/:id", d.ledger.Get)
	admin.POST("/ledger/accounts/:id/payments", d.ledger.RecordPayment)
	admin.GET("/ledger/accounts/:id/reminder", d.ledger.Reminder)

	student := api.Group("", authn, middleware.RequireRoles(models.RoleStudent))
	student.GET("/me/bills", d.bills.MyBills)
	student.POST("/me/bills/:id/invoice", d.invoices.Generate)
	student.GET("/dashboard/student", d.dashboard.Student)
}

// newNotificationService wires the push relay when enabled and the SendGrid channel when configured.
func newNotificationService(cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) *service.NotificationService {
	mail := email.NewSendGridSender(cfg.Email.SendGridAPIKey, cfg.Email.FromName, cfg.Email.FromEmail)
	nc := service.NotificationConfig{
		Workers:    cfg.Push.Workers,
		BufferSize: cfg.Push.BufferSize,
		Timeout:    cfg.Push.Timeout,
	}
	if !cfg.Push.Enabled {
		return service.NewNotificationService(nil, mail, metrics, logr, nc)
	}
	client := push.NewClient(cfg.Push.Endpoint, cfg.Push.AccessKey, cfg.Push.Timeout)
	return service.NewNotificationService(client, mail, metrics, logr, nc)
}
