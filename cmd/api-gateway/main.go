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
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/lms-call-api/api/swagger"
	"github.com/noah-isme/lms-call-api/internal/handler"
	"github.com/noah-isme/lms-call-api/internal/middleware"
	"github.com/noah-isme/lms-call-api/internal/models"
	"github.com/noah-isme/lms-call-api/internal/reminder"
	"github.com/noah-isme/lms-call-api/internal/repository"
	"github.com/noah-isme/lms-call-api/internal/service"
	"github.com/noah-isme/lms-call-api/pkg/cache"
	"github.com/noah-isme/lms-call-api/pkg/config"
	"github.com/noah-isme/lms-call-api/pkg/database"
	"github.com/noah-isme/lms-call-api/pkg/logger"
	"github.com/noah-isme/lms-call-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/lms-call-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lms-call-api/pkg/middleware/requestid"
	"github.com/noah-isme/lms-call-api/pkg/realtime"
)

// @title LMS Call Scheduling API
// @version 1.0.0
// @description Class session scheduling with push and email notification fan-out
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, preference cache and reminder de-duplication disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	app, err := build(cfg, db, redisClient, logr)
	if err != nil {
		logr.Fatal("failed to wire application", zap.Error(err))
	}

	if app.reminders != nil {
		if err := app.reminders.Start(ctx); err != nil {
			logr.Fatal("failed to start reminder scheduler", zap.Error(err))
		}
		defer app.reminders.Stop()
	}
	defer app.hub.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

type application struct {
	router    *gin.Engine
	hub       *realtime.Hub
	reminders *reminder.Scheduler
}

func build(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) (*application, error) {
	validate := validator.New()
	metrics := service.NewMetricsService()

	callRepo := repository.NewCallRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	preferenceRepo := repository.NewNotificationPreferenceRepository(db)
	reportCardRepo := repository.NewReportCardRepository(db)
	userRepo := repository.NewUserRepository(db)

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient)
	}
	preferenceCache := service.NewCacheService(cacheRepo, metrics, cfg.Notifications.PreferenceCacheTTL, logr, redisClient != nil && cfg.Notifications.PreferenceCache)
	reminderClaims := service.NewCacheService(cacheRepo, metrics, cfg.Reminders.DedupTTL, logr, redisClient != nil)

	preferences := service.NewPreferenceService(preferenceRepo, preferenceCache, cfg.Notifications.PreferenceCacheTTL, validate, logr)
	notifications := service.NewNotificationService(notificationRepo, validate, logr)
	auth := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	email, err := mailer.New(cfg.Email, logr)
	if err != nil {
		return nil, err
	}
	originSet := corsmiddleware.OriginSet(cfg.CORS.AllowedOrigins)
	hub := realtime.NewHub(realtime.Config{
		WriteTimeout: cfg.Push.WriteTimeout,
		PingInterval: cfg.Push.PingInterval,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || corsmiddleware.Allowed(originSet, origin)
		},
	}, logr)

	dispatcher := service.NewNotificationDispatcher(
		preferences,
		notificationRepo,
		hub,
		email,
		service.NewNotificationContent(cfg.Email.FrontendBaseURL),
		logr,
		service.DispatcherConfig{Concurrency: cfg.Notifications.Concurrency, AdapterTimeout: cfg.Notifications.AdapterTimeout},
		service.WithDispatcherMetrics(metrics),
	)
	scheduling := service.NewSchedulingService(callRepo, reportCardRepo, userRepo, dispatcher, validate, metrics, logr)

	var reminders *reminder.Scheduler
	if cfg.Reminders.Enabled {
		reminders, err = reminder.New(reminder.Config{
			CronSpec: cfg.Reminders.CronSpec,
			Workers:  cfg.Reminders.Workers,
			DedupTTL: cfg.Reminders.DedupTTL,
		}, callRepo, scheduling, reminderClaims, logr)
		if err != nil {
			return nil, err
		}
	}

	checks := map[string]handler.ReadinessCheck{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	router := newRouter(cfg, logr, metrics, routes{
		auth:        auth,
		metrics:     handler.NewMetricsHandler(metrics, checks),
		calls:       handler.NewCallHandler(scheduling),
		reportCards: handler.NewReportCardHandler(scheduling),
		inbox:       handler.NewNotificationHandler(notifications, preferences),
		realtime:    handler.NewRealtimeHandler(hub, logr),
	})

	return &application{router: router, hub: hub, reminders: reminders}, nil
}

type routes struct {
	auth        *service.AuthService
	metrics     *handler.MetricsHandler
	calls       *handler.CallHandler
	reportCards *handler.ReportCardHandler
	inbox       *handler.NotificationHandler
	realtime    *handler.RealtimeHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, h routes) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/ws", middleware.JWTWithQuery(h.auth), h.realtime.Connect)

	secured := api.Group("")
	secured.Use(middleware.JWT(h.auth))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin, models.RoleTeacher)

	calls := secured.Group("/calls")
	calls.POST("", staff, h.calls.Schedule)
	calls.GET("/:id", h.calls.Get)
	calls.GET("/:id/window", h.calls.Window)
	calls.PATCH("/:id/reschedule", staff, h.calls.Reschedule)
	calls.POST("/:id/cancel", staff, h.calls.Cancel)
	calls.POST("/:id/complete", staff, h.calls.Complete)

	secured.POST("/report-cards", staff, h.reportCards.Submit)

	secured.GET("/notifications", h.inbox.List)
	secured.PATCH("/notifications/:id/read", h.inbox.MarkRead)
	secured.GET("/notification-preferences", h.inbox.GetPreferences)
	secured.PUT("/notification-preferences", h.inbox.UpdatePreferences)

	return r
}
