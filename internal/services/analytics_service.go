package services

import (
	"time"

	"gorm.io/gorm"

	"github.com/staffdeck/staffdeck/internal/models"
)

// AnalyticsService computes aggregations over the audit store: time-bucketed
// activity, rankings, distributions and the heuristic risk summary.
type AnalyticsService struct {
	DB *gorm.DB
}

func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{DB: db}
}

// bucketFormats are sqlite strftime patterns per granularity.
var bucketFormats = map[string]string{
	"hour":  "%Y-%m-%d %H:00",
	"day":   "%Y-%m-%d",
	"month": "%Y-%m",
}

// BucketPoint is one time bucket and the count of entries falling in it.
type BucketPoint struct {
	Bucket string `json:"bucket"`
	Count  int64  `json:"count"`
}

// NameCount pairs a grouped value with its entry count.
type NameCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// ActorCount ranks one actor by entry count, annotated from the staff table.
type ActorCount struct {
	ActorID uint   `json:"actor_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	Count   int64  `json:"count"`
}

func (s *AnalyticsService) ranged(start, end *time.Time) *gorm.DB {
	q := s.DB.Model(&models.AuditEntry{})
	if start != nil {
		q = q.Where("timestamp >= ?", *start)
	}
	if end != nil {
		q = q.Where("timestamp <= ?", *end)
	}
	return q
}

// Timeline counts entries per hour/day/month bucket within the range,
// ordered by bucket. Buckets with zero entries are not synthesized: only
// buckets in which at least one entry fell appear in the series.
func (s *AnalyticsService) Timeline(start, end *time.Time, groupBy string) ([]BucketPoint, error) {
	format, ok := bucketFormats[groupBy]
	if !ok {
		format = bucketFormats["day"]
	}

	points := []BucketPoint{}
	err := s.ranged(start, end).
		Select("strftime(?, timestamp) AS bucket, COUNT(*) AS count", format).
		Group("bucket").
		Order("bucket").
		Scan(&points).Error
	return points, err
}

// TopActors ranks the n most active actors within the range.
func (s *AnalyticsService) TopActors(start, end *time.Time, n int) ([]ActorCount, error) {
	if n <= 0 {
		n = 10
	}
	actors := []ActorCount{}
	err := s.ranged(start, end).
		Select(`audit_entries.actor_id AS actor_id,
			staff_users.first_name || ' ' || staff_users.last_name AS name,
			staff_users.email AS email,
			staff_users.role AS role,
			COUNT(*) AS count`).
		Joins("JOIN staff_users ON staff_users.id = audit_entries.actor_id").
		Where("audit_entries.actor_id IS NOT NULL").
		Group("audit_entries.actor_id, staff_users.first_name, staff_users.last_name, staff_users.email, staff_users.role").
		Order("count DESC").
		Limit(n).
		Scan(&actors).Error
	return actors, err
}

// ActionDistribution counts entries per action, descending.
func (s *AnalyticsService) ActionDistribution(start, end *time.Time, limit int) ([]NameCount, error) {
	return s.distribution("action", start, end, limit)
}

// EntityDistribution counts entries per entity, descending.
func (s *AnalyticsService) EntityDistribution(start, end *time.Time, limit int) ([]NameCount, error) {
	return s.distribution("entity", start, end, limit)
}

func (s *AnalyticsService) distribution(column string, start, end *time.Time, limit int) ([]NameCount, error) {
	out := []NameCount{}
	q := s.ranged(start, end).
		Select(column + " AS name, COUNT(*) AS count").
		Where(column + " <> ''").
		Group(column).
		Order("count DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Scan(&out).Error
	return out, err
}

// RiskIndicator surfaces repeated sensitive mutations by one actor.
type RiskIndicator struct {
	ActorID uint               `json:"actor_id"`
	Name    string             `json:"name"`
	Action  models.AuditAction `json:"action"`
	Entity  models.AuditEntity `json:"entity"`
	Count   int64              `json:"count"`
}

// Summary is the combined activity overview for a relative lookback window.
type Summary struct {
	Period          string          `json:"period"`
	Since           time.Time       `json:"since"`
	HourlyActivity  []BucketPoint   `json:"hourly_activity"`
	TopActions      []NameCount     `json:"top_actions"`
	TopActors       []ActorCount    `json:"top_actors"`
	EntityBreakdown []NameCount     `json:"entity_breakdown"`
	RiskIndicators  []RiskIndicator `json:"risk_indicators"`
	RiskLevel       string          `json:"risk_level"`
}

// summaryPeriods maps the accepted lookback windows to durations.
var summaryPeriods = map[string]time.Duration{
	"1h":  time.Hour,
	"6h":  6 * time.Hour,
	"12h": 12 * time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// Summarize builds the activity summary for the window: hourly buckets,
// top-5 actions, top-5 actors, entity distribution and risk indicators with
// an overall risk level (sum > 50 high, > 20 medium, else low).
func (s *AnalyticsService) Summarize(period string) (*Summary, error) {
	window, ok := summaryPeriods[period]
	if !ok {
		period = "24h"
		window = summaryPeriods[period]
	}
	since := time.Now().Add(-window)

	hourly, err := s.Timeline(&since, nil, "hour")
	if err != nil {
		return nil, err
	}
	actions, err := s.ActionDistribution(&since, nil, 5)
	if err != nil {
		return nil, err
	}
	actors, err := s.TopActors(&since, nil, 5)
	if err != nil {
		return nil, err
	}
	entities, err := s.EntityDistribution(&since, nil, 0)
	if err != nil {
		return nil, err
	}
	indicators, err := s.riskIndicators(since)
	if err != nil {
		return nil, err
	}

	var sum int64
	for _, ind := range indicators {
		sum += ind.Count
	}
	level := "low"
	switch {
	case sum > 50:
		level = "high"
	case sum > 20:
		level = "medium"
	}

	return &Summary{
		Period:          period,
		Since:           since,
		HourlyActivity:  hourly,
		TopActions:      actions,
		TopActors:       actors,
		EntityBreakdown: entities,
		RiskIndicators:  indicators,
		RiskLevel:       level,
	}, nil
}

// riskIndicators groups delete/update mutations of sensitive entities by
// (actor, action, entity), top ten by count.
func (s *AnalyticsService) riskIndicators(since time.Time) ([]RiskIndicator, error) {
	indicators := []RiskIndicator{}
	err := s.DB.Model(&models.AuditEntry{}).
		Select(`audit_entries.actor_id AS actor_id,
			staff_users.first_name || ' ' || staff_users.last_name AS name,
			audit_entries.action AS action,
			audit_entries.entity AS entity,
			COUNT(*) AS count`).
		Joins("JOIN staff_users ON staff_users.id = audit_entries.actor_id").
		Where("audit_entries.timestamp >= ?", since).
		Where("audit_entries.action IN ?", []models.AuditAction{models.ActionDelete, models.ActionUpdate}).
		Where("audit_entries.entity IN ?", []models.AuditEntity{models.EntityUser, models.EntityDisciplinary, models.EntityAttendance}).
		Group("audit_entries.actor_id, staff_users.first_name, staff_users.last_name, audit_entries.action, audit_entries.entity").
		Order("count DESC").
		Limit(10).
		Scan(&indicators).Error
	return indicators, err
}
