package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pqmap-analyzer/internal/config"
	"pqmap-analyzer/internal/models"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cfg := &config.Config{}
	cfg.Cache.RecentKeyPrefix = "pqmap:substation:"
	cfg.Cache.RecentSuffix = ":recent"
	cfg.Cache.RecentTTL = 60
	cfg.Cache.RulesKey = "pqmap:rules:active"
	cfg.Cache.RulesTTL = 300
	cfg.Cache.AnnotationPrefix = "pqmap:annotation:"
	cfg.Cache.AnnotationTTL = 30

	logger := zap.NewNop()
	manager := NewManager(cfg, redisClient, logger)

	return mr, manager
}

func TestRecentEvents_RoundTrip(t *testing.T) {
	mr, manager := setupTestRedis(t)

	ctx := context.Background()
	ts := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	events := []models.PQEvent{
		{
			EventID:      "evt-001",
			EventType:    models.EventTypeVoltageDip,
			SubstationID: "SUB-A",
			Timestamp:    ts,
			DurationMs:   500,
			Magnitude:    25,
		},
	}

	err := manager.SetRecentEvents(ctx, "SUB-A", events)
	require.NoError(t, err)

	// 键格式与 TTL
	key := "pqmap:substation:SUB-A:recent"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 60*time.Second, mr.TTL(key))

	cached, err := manager.GetRecentEvents(ctx, "SUB-A")
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "evt-001", cached[0].EventID)
	assert.True(t, ts.Equal(cached[0].Timestamp))
}

func TestGetRecentEvents_Miss(t *testing.T) {
	_, manager := setupTestRedis(t)

	cached, err := manager.GetRecentEvents(context.Background(), "SUB-UNKNOWN")

	// 未命中不是错误
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestGetRecentEvents_CorruptedPayload(t *testing.T) {
	mr, manager := setupTestRedis(t)

	require.NoError(t, mr.Set("pqmap:substation:SUB-A:recent", "not-json"))

	cached, err := manager.GetRecentEvents(context.Background(), "SUB-A")

	assert.Error(t, err)
	assert.Nil(t, cached)
}

func TestActiveRules_RoundTripAndInvalidate(t *testing.T) {
	mr, manager := setupTestRedis(t)

	ctx := context.Background()
	maxDuration := 20.0
	rules := []models.FalseEventRule{
		{
			RuleID:     "rule-001",
			RuleName:   "Short dip filter",
			IsActive:   true,
			Conditions: models.RuleConditions{MaxDuration: &maxDuration},
			Actions:    models.RuleActions{AutoMark: true},
		},
	}

	err := manager.SetActiveRules(ctx, rules)
	require.NoError(t, err)
	assert.Equal(t, 300*time.Second, mr.TTL("pqmap:rules:active"))

	cached, err := manager.GetActiveRules(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "rule-001", cached[0].RuleID)
	require.NotNil(t, cached[0].Conditions.MaxDuration)
	assert.InDelta(t, 20.0, *cached[0].Conditions.MaxDuration, 0.001)

	err = manager.InvalidateActiveRules(ctx)
	require.NoError(t, err)

	cached, err = manager.GetActiveRules(ctx)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestAnnotations_RoundTrip(t *testing.T) {
	mr, manager := setupTestRedis(t)

	ctx := context.Background()
	annotated := []models.AnnotatedEvent{
		{
			PQEvent:          models.PQEvent{EventID: "evt-001", EventType: models.EventTypeVoltageDip},
			FalseEventRules:  []string{"rule-001"},
			IsFlaggedAsFalse: true,
		},
	}

	err := manager.SetAnnotations(ctx, "digest-abc", annotated)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, mr.TTL("pqmap:annotation:digest-abc"))

	cached, err := manager.GetAnnotations(ctx, "digest-abc")
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "evt-001", cached[0].EventID)
	assert.Equal(t, []string{"rule-001"}, cached[0].FalseEventRules)
	assert.True(t, cached[0].IsFlaggedAsFalse)
}

func TestInvalidateAnnotations_ClearsAllEntries(t *testing.T) {
	mr, manager := setupTestRedis(t)

	ctx := context.Background()
	annotated := []models.AnnotatedEvent{
		{PQEvent: models.PQEvent{EventID: "evt-001"}, IsFlaggedAsFalse: true},
	}

	require.NoError(t, manager.SetAnnotations(ctx, "digest-abc", annotated))
	require.NoError(t, manager.SetAnnotations(ctx, "digest-def", annotated))
	// 非标注键不受影响
	require.NoError(t, mr.Set("pqmap:rules:active", "[]"))

	err := manager.InvalidateAnnotations(ctx)
	require.NoError(t, err)

	assert.False(t, mr.Exists("pqmap:annotation:digest-abc"))
	assert.False(t, mr.Exists("pqmap:annotation:digest-def"))
	assert.True(t, mr.Exists("pqmap:rules:active"))

	cached, err := manager.GetAnnotations(ctx, "digest-abc")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestGetAnnotations_Miss(t *testing.T) {
	_, manager := setupTestRedis(t)

	cached, err := manager.GetAnnotations(context.Background(), "digest-missing")

	require.NoError(t, err)
	assert.Nil(t, cached)
}
