package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pqmap-analyzer/internal/config"
	"pqmap-analyzer/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Manager Redis 缓存管理器
// 缓存近期事件（检测上下文热路径）、活跃规则快照和标注结果；
// 缓存永远不是权威数据源，未命中时调用方回退到仓库
type Manager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewManager 创建缓存管理器
func NewManager(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) *Manager {
	return &Manager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// recentKey 厂站近期事件缓存键
func (m *Manager) recentKey(substationID string) string {
	return fmt.Sprintf("%s%s%s",
		m.config.Cache.RecentKeyPrefix,
		substationID,
		m.config.Cache.RecentSuffix,
	)
}

// GetRecentEvents 读取厂站近期事件缓存；未命中返回 (nil, nil)
func (m *Manager) GetRecentEvents(ctx context.Context, substationID string) ([]models.PQEvent, error) {
	val, err := m.redisClient.Get(ctx, m.recentKey(substationID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get recent events cache: %w", err)
	}

	var events []models.PQEvent
	if err := json.Unmarshal([]byte(val), &events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recent events: %w", err)
	}

	return events, nil
}

// SetRecentEvents 写入厂站近期事件缓存（带 TTL）
func (m *Manager) SetRecentEvents(ctx context.Context, substationID string, events []models.PQEvent) error {
	jsonData, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("failed to marshal recent events: %w", err)
	}

	key := m.recentKey(substationID)
	err = m.redisClient.Set(ctx, key, jsonData,
		time.Duration(m.config.Cache.RecentTTL)*time.Second,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to set recent events cache: %w", err)
	}

	m.logger.Debug("Updated recent events cache",
		zap.String("substation_id", substationID),
		zap.String("key", key),
		zap.Int("event_count", len(events)),
	)

	return nil
}

// GetActiveRules 读取活跃规则快照；未命中返回 (nil, nil)
func (m *Manager) GetActiveRules(ctx context.Context) ([]models.FalseEventRule, error) {
	val, err := m.redisClient.Get(ctx, m.config.Cache.RulesKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get rules cache: %w", err)
	}

	var rules []models.FalseEventRule
	if err := json.Unmarshal([]byte(val), &rules); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached rules: %w", err)
	}

	return rules, nil
}

// SetActiveRules 写入活跃规则快照（带 TTL）
func (m *Manager) SetActiveRules(ctx context.Context, rules []models.FalseEventRule) error {
	jsonData, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}

	err = m.redisClient.Set(ctx, m.config.Cache.RulesKey, jsonData,
		time.Duration(m.config.Cache.RulesTTL)*time.Second,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to set rules cache: %w", err)
	}

	return nil
}

// InvalidateActiveRules 规则变更后使快照失效
func (m *Manager) InvalidateActiveRules(ctx context.Context) error {
	if err := m.redisClient.Del(ctx, m.config.Cache.RulesKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate rules cache: %w", err)
	}
	return nil
}

// InvalidateAnnotations 规则变更后清空全部标注结果缓存
// （标注结果由规则计算得出，规则一变旧标注即失效）
func (m *Manager) InvalidateAnnotations(ctx context.Context) error {
	pattern := m.config.Cache.AnnotationPrefix + "*"
	var cursor uint64
	for {
		keys, next, err := m.redisClient.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan annotation cache keys: %w", err)
		}
		if len(keys) > 0 {
			if err := m.redisClient.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete annotation cache keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// SetAnnotations 写入标注结果缓存（展示专用，短 TTL）
// key 由调用方提供（如请求事件ID集合的摘要）
func (m *Manager) SetAnnotations(ctx context.Context, key string, annotated []models.AnnotatedEvent) error {
	jsonData, err := json.Marshal(annotated)
	if err != nil {
		return fmt.Errorf("failed to marshal annotations: %w", err)
	}

	err = m.redisClient.Set(ctx, m.config.Cache.AnnotationPrefix+key, jsonData,
		time.Duration(m.config.Cache.AnnotationTTL)*time.Second,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to set annotation cache: %w", err)
	}

	return nil
}

// GetAnnotations 读取标注结果缓存；未命中返回 (nil, nil)
func (m *Manager) GetAnnotations(ctx context.Context, key string) ([]models.AnnotatedEvent, error) {
	val, err := m.redisClient.Get(ctx, m.config.Cache.AnnotationPrefix+key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get annotation cache: %w", err)
	}

	var annotated []models.AnnotatedEvent
	if err := json.Unmarshal([]byte(val), &annotated); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached annotations: %w", err)
	}

	return annotated, nil
}
