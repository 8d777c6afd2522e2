package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffdeck/staffdeck/internal/models"
)

func TestAnalyticsService_TimelineDayBucketsAreSparse(t *testing.T) {
	db := setupAuditTestDB(t)
	svc := NewAnalyticsService(db)
	actor := seedActor(t, db, "Ana", "Ortiz", "ana@example.com", "admin")

	seedEntry(t, db, &actor.ID, models.ActionRead, models.EntityLeave, "", models.StatusSuccess, time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	seedEntry(t, db, &actor.ID, models.ActionRead, models.EntityLeave, "", models.StatusSuccess, time.Date(2024, 1, 1, 17, 0, 0, 0, time.UTC))
	seedEntry(t, db, &actor.ID, models.ActionRead, models.EntityLeave, "", models.StatusSuccess, time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC))

	points, err := svc.Timeline(nil, nil, "day")
	require.NoError(t, err)
	// 2024-01-02 saw no activity, so it does not appear
	require.Len(t, points, 2)
	assert.Equal(t, "2024-01-01", points[0].Bucket)
	assert.Equal(t, int64(2), points[0].Count)
	assert.Equal(t, "2024-01-03", points[1].Bucket)
	assert.Equal(t, int64(1), points[1].Count)
}

func TestAnalyticsService_TimelineHourAndMonthBuckets(t *testing.T) {
	db := setupAuditTestDB(t)
	svc := NewAnalyticsService(db)
	actor := seedActor(t, db, "Ana", "Ortiz", "ana@example.com", "admin")

	seedEntry(t, db, &actor.ID, models.ActionRead, models.EntityLeave, "", models.StatusSuccess, time.Date(2024, 1, 1, 9, 15, 0, 0, time.UTC))
	seedEntry(t, db, &actor.ID, models.ActionRead, models.EntityLeave, "", models.StatusSuccess, time.Date(2024, 1, 1, 9, 45, 0, 0, time.UTC))

	hourly, err := svc.Timeline(nil, nil, "hour")
	require.NoError(t, err)
	require.Len(t, hourly, 1)
	assert.Equal(t, "2024-01-01 09:00", hourly[0].Bucket)
	assert.Equal(t, int64(2), hourly[0].Count)

	monthly, err := svc.Timeline(nil, nil, "month")
	require.NoError(t, err)
	require.Len(t, monthly, 1)
	assert.Equal(t, "2024-01", monthly[0].Bucket)

	// an unknown granularity falls back to day buckets
	daily, err := svc.Timeline(nil, nil, "fortnight")
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, "2024-01-01", daily[0].Bucket)
}

func TestAnalyticsService_TopActors(t *testing.T) {
	db := setupAuditTestDB(t)
	svc := NewAnalyticsService(db)
	ana := seedActor(t, db, "Ana", "Ortiz", "ana@example.com", "admin")
	ben := seedActor(t, db, "Ben", "Huang", "ben@example.com", "hr")

	now := time.Now()
	for i := 0; i < 3; i++ {
		seedEntry(t, db, &ana.ID, models.ActionRead, models.EntityLeave, "", models.StatusSuccess, now)
	}
	seedEntry(t, db, &ben.ID, models.ActionRead, models.EntityLeave, "", models.StatusSuccess, now)

	actors, err := svc.TopActors(nil, nil, 10)
	require.NoError(t, err)
	require.Len(t, actors, 2)
	assert.Equal(t, ana.ID, actors[0].ActorID)
	assert.Equal(t, "Ana Ortiz", actors[0].Name)
	assert.Equal(t, int64(3), actors[0].Count)
	assert.Equal(t, ben.ID, actors[1].ActorID)
}

func TestAnalyticsService_DistributionsDescending(t *testing.T) {
	db := setupAuditTestDB(t)
	svc := NewAnalyticsService(db)
	actor := seedActor(t, db, "Ana", "Ortiz", "ana@example.com", "admin")

	now := time.Now()
	for i := 0; i < 4; i++ {
		seedEntry(t, db, &actor.ID, models.ActionUpdate, models.EntityLeave, "", models.StatusSuccess, now)
	}
	seedEntry(t, db, &actor.ID, models.ActionDelete, models.EntityUser, "1", models.StatusSuccess, now)

	actions, err := svc.ActionDistribution(nil, nil, 0)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, "update", actions[0].Name)
	assert.Equal(t, int64(4), actions[0].Count)

	entities, err := svc.EntityDistribution(nil, nil, 1)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "leave", entities[0].Name)
}

func TestAnalyticsService_SummarizeRiskLevels(t *testing.T) {
	cases := []struct {
		name      string
		mutations int
		level     string
	}{
		{"low", 5, "low"},
		{"medium", 25, "medium"},
		{"high", 55, "high"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := setupAuditTestDB(t)
			svc := NewAnalyticsService(db)
			actor := seedActor(t, db, "Ana", "Ortiz", "ana@example.com", "admin")

			now := time.Now()
			for i := 0; i < tc.mutations; i++ {
				seedEntry(t, db, &actor.ID, models.ActionUpdate, models.EntityUser, "1", models.StatusSuccess, now)
			}

			summary, err := svc.Summarize("24h")
			require.NoError(t, err)
			assert.Equal(t, tc.level, summary.RiskLevel)
			require.NotEmpty(t, summary.RiskIndicators)
			assert.Equal(t, int64(tc.mutations), summary.RiskIndicators[0].Count)
		})
	}
}

func TestAnalyticsService_SummarizeDefaultsPeriod(t *testing.T) {
	db := setupAuditTestDB(t)
	svc := NewAnalyticsService(db)
	actor := seedActor(t, db, "Ana", "Ortiz", "ana@example.com", "admin")

	seedEntry(t, db, &actor.ID, models.ActionRead, models.EntityLeave, "", models.StatusSuccess, time.Now())
	// outside any summary window
	seedEntry(t, db, &actor.ID, models.ActionRead, models.EntityLeave, "", models.StatusSuccess, time.Now().Add(-45*24*time.Hour))

	summary, err := svc.Summarize("next-tuesday")
	require.NoError(t, err)
	assert.Equal(t, "24h", summary.Period)
	require.Len(t, summary.TopActions, 1)
	assert.Equal(t, int64(1), summary.TopActions[0].Count)
}
