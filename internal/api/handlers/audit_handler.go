package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/staffdeck/staffdeck/internal/api/middleware"
	"github.com/staffdeck/staffdeck/internal/audit"
	"github.com/staffdeck/staffdeck/internal/models"
	"github.com/staffdeck/staffdeck/internal/services"
)

// AuditHandler exposes the forensic query, analytics, export and retention
// surface over the audit store.
type AuditHandler struct {
	Audit     *services.AuditService
	Analytics *services.AnalyticsService
	Export    *services.ExportService
	Retention *services.RetentionService
	Recorder  *services.AuditRecorder
}

func NewAuditHandler(audit *services.AuditService, analytics *services.AnalyticsService,
	export *services.ExportService, retention *services.RetentionService,
	recorder *services.AuditRecorder) *AuditHandler {
	return &AuditHandler{
		Audit:     audit,
		Analytics: analytics,
		Export:    export,
		Retention: retention,
		Recorder:  recorder,
	}
}

// RegisterRoutes wires the audit-log endpoints onto an authenticated group.
func (h *AuditHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/audit-logs", h.List)
	r.POST("/audit-logs/search", h.Search)
	r.GET("/audit-logs/analytics", h.Activity)
	r.GET("/audit-logs/summary", h.Summary)
	r.GET("/audit-logs/export", h.ExportLogs)
	r.POST("/audit-logs/cleanup", h.Cleanup)
	r.GET("/audit-logs/user/:userId", h.UserTrail)
	r.GET("/audit-logs/:id", h.Get)
}

// parseDate accepts date-only or RFC3339 instants.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, errors.New("invalid date: " + s)
}

func (h *AuditHandler) parseFilter(c *gin.Context) (services.ListFilter, bool) {
	var f services.ListFilter

	start, err := parseDate(c.Query("startDate"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return f, false
	}
	end, err := parseDate(c.Query("endDate"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return f, false
	}
	f.StartDate, f.EndDate = start, end

	if actor := c.Query("actor"); actor != "" {
		id, err := strconv.ParseUint(actor, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid actor id"})
			return f, false
		}
		uid := uint(id)
		f.ActorID = &uid
	}

	f.Action = c.Query("action")
	f.Entity = c.Query("entity")
	f.EntityID = c.Query("entityId")
	f.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	f.SortBy = c.DefaultQuery("sortBy", "timestamp")
	f.SortOrder = c.DefaultQuery("sortOrder", "desc")
	return f, true
}

// List returns a filtered, sorted, paginated page of entries with facets.
func (h *AuditHandler) List(c *gin.Context) {
	f, ok := h.parseFilter(c)
	if !ok {
		return
	}

	result, err := h.Audit.List(f)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Get returns one entry and up to ten related entries.
func (h *AuditHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid entry id"})
		return
	}

	ctx, err := h.Audit.Get(uint(id))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ctx)
}

// UserTrail returns one actor's entries and activity statistics.
func (h *AuditHandler) UserTrail(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	start, err := parseDate(c.Query("startDate"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	end, err := parseDate(c.Query("endDate"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	trail, err := h.Audit.Trail(uint(id), start, end, page, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, trail)
}

// SearchRequest is the free-text search body.
type SearchRequest struct {
	SearchTerm string   `json:"searchTerm" binding:"required"`
	Fields     []string `json:"fields"`
	StartDate  string   `json:"startDate"`
	EndDate    string   `json:"endDate"`
	Page       int      `json:"page"`
	Limit      int      `json:"limit"`
}

// Search matches a term of at least two characters over the target fields.
func (h *AuditHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.Audit.Search(services.SearchParams{
		Term:      req.SearchTerm,
		Fields:    req.Fields,
		StartDate: start,
		EndDate:   end,
		Page:      req.Page,
		Limit:     req.Limit,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Activity returns the time-bucketed activity series plus rankings.
// Buckets with no entries are omitted, not zero-filled; chart consumers
// densify client-side if they need a continuous axis.
func (h *AuditHandler) Activity(c *gin.Context) {
	start, err := parseDate(c.Query("startDate"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	end, err := parseDate(c.Query("endDate"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if start != nil && end != nil && start.After(*end) {
		c.JSON(http.StatusBadRequest, gin.H{"error": services.ErrInvalidDateRange.Error()})
		return
	}

	groupBy := c.DefaultQuery("groupBy", "day")

	timeline, err := h.Analytics.Timeline(start, end, groupBy)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	actions, err := h.Analytics.ActionDistribution(start, end, 0)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	entities, err := h.Analytics.EntityDistribution(start, end, 0)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	actors, err := h.Analytics.TopActors(start, end, 10)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"group_by":            groupBy,
		"timeline":            timeline,
		"action_distribution": actions,
		"entity_distribution": entities,
		"top_actors":          actors,
	})
}

// Summary returns the combined activity overview for a lookback window.
func (h *AuditHandler) Summary(c *gin.Context) {
	period := c.DefaultQuery("period", "24h")
	summary, err := h.Analytics.Summarize(period)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ExportLogs streams the filtered set in the requested format. The export
// itself is recorded as an audit entry; a partial stream is never sent as if
// complete because rendering happens fully in memory first.
func (h *AuditHandler) ExportLogs(c *gin.Context) {
	f, ok := h.parseFilter(c)
	if !ok {
		return
	}
	format := c.DefaultQuery("format", "json")

	result, err := h.Export.Export(f, format)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.recordExport(c, format)

	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

func (h *AuditHandler) recordExport(c *gin.Context, format string) {
	if h.Recorder == nil {
		return
	}
	entry := models.AuditEntry{
		Action:    models.ActionExport,
		Entity:    models.EntityAudit,
		Status:    models.StatusSuccess,
		Severity:  audit.Classify(models.ActionExport, models.EntityAudit, models.StatusSuccess),
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Resource:  c.Request.URL.String(),
		RequestID: c.GetString(middleware.RequestIDKey),
		Timestamp: time.Now(),
		Details:   datatypes.JSONMap{"format": format},
	}
	if v, ok := c.Get(middleware.UserIDKey); ok {
		if id, ok := v.(uint); ok {
			entry.ActorID = &id
		}
	}
	h.Recorder.Enqueue(entry)
}

// CleanupRequest is the retention cleanup body. DryRun defaults to true.
type CleanupRequest struct {
	RetentionDays int   `json:"retentionDays" binding:"required"`
	DryRun        *bool `json:"dryRun"`
}

// Cleanup computes, and in execute mode performs, deletion of entries older
// than the cutoff. The 30-day floor is enforced before any store access.
func (h *AuditHandler) Cleanup(c *gin.Context) {
	var req CleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dryRun := true
	if req.DryRun != nil {
		dryRun = *req.DryRun
	}

	var actorID *uint
	if v, ok := c.Get(middleware.UserIDKey); ok {
		if id, ok := v.(uint); ok {
			actorID = &id
		}
	}

	result, err := h.Retention.Cleanup(req.RetentionDays, dryRun, actorID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// respondServiceError maps service failures onto the HTTP taxonomy:
// validation failures are 400, unknown ids 404, everything else 500.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrSearchTermTooShort),
		errors.Is(err, services.ErrRetentionFloor),
		errors.Is(err, services.ErrInvalidDateRange),
		errors.Is(err, services.ErrUnsupportedFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrEntryNotFound),
		errors.Is(err, services.ErrActorNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
