package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/staffdeck/staffdeck/internal/models"
)

// AuditService answers forensic queries over the audit store. Every method
// is read-only; the store is only ever written by the recorder and the
// retention manager.
type AuditService struct {
	DB *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{DB: db}
}

// ListFilter is the shared filter vocabulary of List and Export.
type ListFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	ActorID   *uint
	Action    string
	Entity    string
	EntityID  string
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

// PageMeta describes the returned page of an offset-paginated listing.
// Offset pagination can skip or duplicate rows when entries arrive between
// page fetches; acceptable for a forensic log viewer.
type PageMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// Facets are the distinct values present under the active filter, used to
// populate the viewer's filter pickers.
type Facets struct {
	Actors   []models.StaffUser `json:"actors"`
	Actions  []string           `json:"actions"`
	Entities []string           `json:"entities"`
}

// ListResult bundles a page of entries with its metadata and facets.
type ListResult struct {
	Entries []models.AuditEntry `json:"entries"`
	Meta    PageMeta            `json:"meta"`
	Facets  Facets              `json:"facets"`
}

// sortColumns whitelists the stored fields a listing may sort by.
var sortColumns = map[string]string{
	"id":           "id",
	"uuid":         "uuid",
	"timestamp":    "timestamp",
	"action":       "action",
	"entity":       "entity",
	"entityId":     "entity_id",
	"actor":        "actor_id",
	"status":       "status",
	"severity":     "severity",
	"ipAddress":    "ip_address",
	"userAgent":    "user_agent",
	"sessionId":    "session_id",
	"requestId":    "request_id",
	"resource":     "resource",
	"responseTime": "response_time",
	"expiresAt":    "expires_at",
}

func (f *ListFilter) normalize() error {
	if f.StartDate != nil && f.EndDate != nil && f.StartDate.After(*f.EndDate) {
		return ErrInvalidDateRange
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		f.Limit = 500
	}
	if _, ok := sortColumns[f.SortBy]; !ok {
		f.SortBy = "timestamp"
	}
	if f.SortOrder != "asc" {
		f.SortOrder = "desc"
	}
	return nil
}

func (s *AuditService) filtered(f ListFilter) *gorm.DB {
	q := s.DB.Model(&models.AuditEntry{})
	if f.StartDate != nil {
		q = q.Where("timestamp >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		q = q.Where("timestamp <= ?", *f.EndDate)
	}
	if f.ActorID != nil {
		q = q.Where("actor_id = ?", *f.ActorID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.Entity != "" {
		q = q.Where("entity = ?", f.Entity)
	}
	if f.EntityID != "" {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	return q
}

// List returns one page of entries under the filter, plus totals and facets.
func (s *AuditService) List(f ListFilter) (*ListResult, error) {
	if err := f.normalize(); err != nil {
		return nil, err
	}

	var total int64
	if err := s.filtered(f).Count(&total).Error; err != nil {
		return nil, err
	}

	var entries []models.AuditEntry
	order := sortColumns[f.SortBy] + " " + f.SortOrder
	err := s.filtered(f).
		Preload("Actor").
		Order(order).
		Offset((f.Page - 1) * f.Limit).
		Limit(f.Limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	facets, err := s.facets(f)
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(f.Limit) - 1) / int64(f.Limit))
	return &ListResult{
		Entries: entries,
		Meta:    PageMeta{Page: f.Page, Limit: f.Limit, Total: total, TotalPages: totalPages},
		Facets:  *facets,
	}, nil
}

func (s *AuditService) facets(f ListFilter) (*Facets, error) {
	facets := &Facets{Actions: []string{}, Entities: []string{}, Actors: []models.StaffUser{}}

	if err := s.filtered(f).Distinct("action").Order("action").Pluck("action", &facets.Actions).Error; err != nil {
		return nil, err
	}
	if err := s.filtered(f).Where("entity <> ''").Distinct("entity").Order("entity").Pluck("entity", &facets.Entities).Error; err != nil {
		return nil, err
	}

	var actorIDs []uint
	if err := s.filtered(f).Where("actor_id IS NOT NULL").Distinct("actor_id").Pluck("actor_id", &actorIDs).Error; err != nil {
		return nil, err
	}
	if len(actorIDs) > 0 {
		if err := s.DB.Where("id IN ?", actorIDs).Order("last_name, first_name").Find(&facets.Actors).Error; err != nil {
			return nil, err
		}
	}
	return facets, nil
}

// EntryContext is a single entry with up to ten related entries: same actor
// within the preceding hour, or same (entity, entityId) pair.
type EntryContext struct {
	Entry   models.AuditEntry   `json:"entry"`
	Related []models.AuditEntry `json:"related"`
}

// Get fetches one entry by id together with its related context.
func (s *AuditService) Get(id uint) (*EntryContext, error) {
	var entry models.AuditEntry
	if err := s.DB.Preload("Actor").First(&entry, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}

	q := s.DB.Model(&models.AuditEntry{}).Where("id <> ?", entry.ID)
	var conds []string
	var args []interface{}
	if entry.ActorID != nil {
		conds = append(conds, "(actor_id = ? AND timestamp >= ? AND timestamp <= ?)")
		args = append(args, *entry.ActorID, entry.Timestamp.Add(-time.Hour), entry.Timestamp)
	}
	if entry.Entity != "" && entry.EntityID != "" {
		conds = append(conds, "(entity = ? AND entity_id = ?)")
		args = append(args, entry.Entity, entry.EntityID)
	}

	related := []models.AuditEntry{}
	if len(conds) > 0 {
		err := q.Where(strings.Join(conds, " OR "), args...).
			Preload("Actor").
			Order("timestamp desc").
			Limit(10).
			Find(&related).Error
		if err != nil {
			return nil, err
		}
	}

	return &EntryContext{Entry: entry, Related: related}, nil
}

// ActionStat summarizes one action within a user trail.
type ActionStat struct {
	Action    models.AuditAction `json:"action"`
	Count     int64              `json:"count"`
	ByEntity  map[string]int64   `json:"by_entity"`
	FirstSeen time.Time          `json:"first_seen"`
	LastSeen  time.Time          `json:"last_seen"`
}

// UserTrail is one actor's entries plus their derived activity statistics.
type UserTrail struct {
	Actor   models.StaffUser    `json:"actor"`
	Entries []models.AuditEntry `json:"entries"`
	Meta    PageMeta            `json:"meta"`
	Stats   []ActionStat        `json:"stats"`
}

// Trail returns every entry for one actor within an optional date range,
// paginated, with per-action statistics over the whole range.
func (s *AuditService) Trail(actorID uint, start, end *time.Time, page, limit int) (*UserTrail, error) {
	var actor models.StaffUser
	if err := s.DB.First(&actor, actorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrActorNotFound
		}
		return nil, err
	}

	f := ListFilter{StartDate: start, EndDate: end, ActorID: &actorID, Page: page, Limit: limit}
	if err := f.normalize(); err != nil {
		return nil, err
	}

	var total int64
	if err := s.filtered(f).Count(&total).Error; err != nil {
		return nil, err
	}

	var entries []models.AuditEntry
	err := s.filtered(f).
		Order("timestamp desc").
		Offset((f.Page - 1) * f.Limit).
		Limit(f.Limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	stats, err := s.trailStats(f)
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(f.Limit) - 1) / int64(f.Limit))
	return &UserTrail{
		Actor:   actor,
		Entries: entries,
		Meta:    PageMeta{Page: f.Page, Limit: f.Limit, Total: total, TotalPages: totalPages},
		Stats:   stats,
	}, nil
}

func (s *AuditService) trailStats(f ListFilter) ([]ActionStat, error) {
	type row struct {
		Action    models.AuditAction
		Entity    string
		Count     int64
		FirstSeen time.Time
		LastSeen  time.Time
	}
	var rows []row
	err := s.filtered(f).
		Select("action, entity, COUNT(*) AS count, MIN(timestamp) AS first_seen, MAX(timestamp) AS last_seen").
		Group("action, entity").
		Order("count DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	index := map[models.AuditAction]*ActionStat{}
	var order []models.AuditAction
	for _, r := range rows {
		stat, ok := index[r.Action]
		if !ok {
			stat = &ActionStat{Action: r.Action, ByEntity: map[string]int64{}, FirstSeen: r.FirstSeen, LastSeen: r.LastSeen}
			index[r.Action] = stat
			order = append(order, r.Action)
		}
		stat.Count += r.Count
		if r.Entity != "" {
			stat.ByEntity[r.Entity] += r.Count
		}
		if r.FirstSeen.Before(stat.FirstSeen) {
			stat.FirstSeen = r.FirstSeen
		}
		if r.LastSeen.After(stat.LastSeen) {
			stat.LastSeen = r.LastSeen
		}
	}

	stats := make([]ActionStat, 0, len(order))
	for _, a := range order {
		stats = append(stats, *index[a])
	}
	return stats, nil
}

// SearchParams describe a free-text search request.
type SearchParams struct {
	Term      string
	Fields    []string
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	Limit     int
}

// defaultSearchFields are probed when the caller names none.
var defaultSearchFields = []string{"action", "entity", "details", "ipAddress", "user"}

// Search matches the term case-insensitively as a substring over the target
// fields. The "user" field resolves staff by first name, last name or email
// first, then matches by actor id; an empty resolution contributes no
// matches rather than acting as a wildcard.
func (s *AuditService) Search(p SearchParams) (*ListResult, error) {
	term := strings.TrimSpace(p.Term)
	if len(term) < 2 {
		return nil, ErrSearchTermTooShort
	}

	fields := p.Fields
	if len(fields) == 0 {
		fields = defaultSearchFields
	}

	f := ListFilter{StartDate: p.StartDate, EndDate: p.EndDate, Page: p.Page, Limit: p.Limit}
	if err := f.normalize(); err != nil {
		return nil, err
	}

	pattern := "%" + strings.ToLower(term) + "%"
	var conds []string
	var args []interface{}
	for _, field := range fields {
		switch field {
		case "action":
			conds = append(conds, "LOWER(action) LIKE ?")
			args = append(args, pattern)
		case "entity":
			conds = append(conds, "LOWER(entity) LIKE ?")
			args = append(args, pattern)
		case "entityId":
			conds = append(conds, "LOWER(entity_id) LIKE ?")
			args = append(args, pattern)
		case "details":
			conds = append(conds, "LOWER(CAST(details AS TEXT)) LIKE ?")
			args = append(args, pattern)
		case "ipAddress":
			conds = append(conds, "ip_address LIKE ?")
			args = append(args, pattern)
		case "resource":
			conds = append(conds, "LOWER(resource) LIKE ?")
			args = append(args, pattern)
		case "user":
			ids, err := s.resolveActors(pattern)
			if err != nil {
				return nil, err
			}
			if len(ids) > 0 {
				conds = append(conds, "actor_id IN ?")
				args = append(args, ids)
			}
		}
	}

	empty := &ListResult{
		Entries: []models.AuditEntry{},
		Meta:    PageMeta{Page: f.Page, Limit: f.Limit},
		Facets:  Facets{Actors: []models.StaffUser{}, Actions: []string{}, Entities: []string{}},
	}
	if len(conds) == 0 {
		return empty, nil
	}

	match := "(" + strings.Join(conds, " OR ") + ")"

	var total int64
	if err := s.filtered(f).Where(match, args...).Count(&total).Error; err != nil {
		return nil, err
	}

	var entries []models.AuditEntry
	err := s.filtered(f).
		Where(match, args...).
		Preload("Actor").
		Order("timestamp desc").
		Offset((f.Page - 1) * f.Limit).
		Limit(f.Limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(f.Limit) - 1) / int64(f.Limit))
	return &ListResult{
		Entries: entries,
		Meta:    PageMeta{Page: f.Page, Limit: f.Limit, Total: total, TotalPages: totalPages},
		Facets:  empty.Facets,
	}, nil
}

func (s *AuditService) resolveActors(pattern string) ([]uint, error) {
	var ids []uint
	err := s.DB.Model(&models.StaffUser{}).
		Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern, pattern).
		Pluck("id", &ids).Error
	return ids, err
}
