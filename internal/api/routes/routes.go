package routes

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/staffdeck/staffdeck/internal/api/handlers"
	"github.com/staffdeck/staffdeck/internal/api/middleware"
	"github.com/staffdeck/staffdeck/internal/config"
	"github.com/staffdeck/staffdeck/internal/metrics"
	"github.com/staffdeck/staffdeck/internal/models"
	"github.com/staffdeck/staffdeck/internal/services"
)

// Deps holds the long-lived pieces wired during route registration so the
// caller can manage their lifecycles (drain the recorder, stop the cron).
type Deps struct {
	Recorder *services.AuditRecorder
	Cron     *cron.Cron
}

// Register wires up API routes, migrations and the audit pipeline.
func Register(router *gin.Engine, db *gorm.DB, cfg config.Config) (*Deps, error) {
	if err := db.AutoMigrate(
		&models.StaffUser{},
		&models.AuditEntry{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	alerts := services.NewAlertService(cfg.AlertURLs)
	recorder := services.NewAuditRecorder(db, alerts, cfg.AuditQueueSize, cfg.AuditRetentionDays)
	recorder.Start()

	retention := services.NewRetentionService(db)
	cr := cron.New()
	if err := retention.Schedule(cr); err != nil {
		return nil, fmt.Errorf("schedule retention sweep: %w", err)
	}
	cr.Start()

	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Recovery(cfg.Environment == "development"))
	router.Use(middleware.Principal(cfg.JWTSecret))
	router.Use(middleware.Capture(recorder))

	router.GET("/api/v1/health", handlers.HealthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")

	protected := api.Group("/")
	protected.Use(middleware.RequireAuth())
	{
		auditHandler := handlers.NewAuditHandler(
			services.NewAuditService(db),
			services.NewAnalyticsService(db),
			services.NewExportService(db),
			retention,
			recorder,
		)
		auditHandler.RegisterRoutes(protected)
	}

	return &Deps{Recorder: recorder, Cron: cr}, nil
}
