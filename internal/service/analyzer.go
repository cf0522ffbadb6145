package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"pqmap-analyzer/internal/adms"
	"pqmap-analyzer/internal/cache"
	"pqmap-analyzer/internal/config"
	"pqmap-analyzer/internal/detector"
	"pqmap-analyzer/internal/grouping"
	"pqmap-analyzer/internal/models"
	"pqmap-analyzer/internal/repository"
)

// AnalyzerService 业务编排层：
// 组合事件仓库、分组引擎、误报检测器、规则仓库与缓存，
// 对 HTTP 层提供完整的分析操作入口
type AnalyzerService struct {
	cfg      *config.Config
	logger   *zap.Logger
	events   *repository.EventRepository
	rules    *repository.RuleRepository
	cache    *cache.Manager
	adms     *adms.Client // 可为 nil（未配置 ADMS 时降级）
	grouping *grouping.Engine
	detector *detector.Detector
}

func NewAnalyzerService(
	cfg *config.Config,
	logger *zap.Logger,
	events *repository.EventRepository,
	rules *repository.RuleRepository,
	cacheManager *cache.Manager,
	admsClient *adms.Client,
	groupingEngine *grouping.Engine,
	det *detector.Detector,
) *AnalyzerService {
	return &AnalyzerService{
		cfg:      cfg,
		logger:   logger,
		events:   events,
		rules:    rules,
		cache:    cacheManager,
		adms:     admsClient,
		grouping: groupingEngine,
		detector: det,
	}
}

// Grouping 暴露分组引擎（HTTP 层直接调用分组操作）
func (s *AnalyzerService) Grouping() *grouping.Engine {
	return s.grouping
}

// Events 暴露事件仓库（HTTP 层查询用）
func (s *AnalyzerService) Events() *repository.EventRepository {
	return s.events
}

// Rules 暴露规则仓库
func (s *AnalyzerService) Rules() *repository.RuleRepository {
	return s.rules
}

// ============================================================
// 自动分组
// ============================================================

// RunAutomaticGrouping 对时间段内未分组的 dip/swell 候选事件执行自动分组
func (s *AnalyzerService) RunAutomaticGrouping(ctx context.Context, from, to time.Time) ([]models.GroupingResult, error) {
	candidates, err := s.events.FetchUngroupedCandidates(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch grouping candidates: %w", err)
	}
	if len(candidates) == 0 {
		return []models.GroupingResult{}, nil
	}
	return s.grouping.PerformAutomaticGrouping(ctx, candidates)
}

// ============================================================
// 误报检测
// ============================================================

// DetectFalseEvent 对单个事件执行七算法误报检测
func (s *AnalyzerService) DetectFalseEvent(ctx context.Context, eventID string) (*models.DetectionResult, error) {
	events, err := s.events.FetchEventsByIDs(ctx, []string{eventID})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("event not found: %s", eventID)
	}
	event := events[0]

	dctx := s.buildDetectionContext(ctx, &event)
	result := s.detector.DetectFalseEvents(&event, dctx)
	return &result, nil
}

// buildDetectionContext 组装检测上下文：
// 近期事件走缓存优先，ADMS 状态/检修窗口获取失败时降级为默认值
func (s *AnalyzerService) buildDetectionContext(ctx context.Context, event *models.PQEvent) *models.DetectionContext {
	window := time.Duration(s.cfg.Detection.RecentEventsWindowHours) * time.Hour

	recent, err := s.cache.GetRecentEvents(ctx, event.SubstationID)
	if err != nil {
		s.logger.Warn("Failed to read recent events cache",
			zap.String("substation_id", event.SubstationID), zap.Error(err))
		recent = nil
	}
	if recent == nil {
		recent, err = s.events.FetchRecentEvents(ctx, event.SubstationID, event.Timestamp, window)
		if err != nil {
			s.logger.Warn("Failed to fetch recent events",
				zap.String("substation_id", event.SubstationID), zap.Error(err))
			recent = []models.PQEvent{}
		} else if cacheErr := s.cache.SetRecentEvents(ctx, event.SubstationID, recent); cacheErr != nil {
			s.logger.Warn("Failed to cache recent events", zap.Error(cacheErr))
		}
	}

	dctx := &models.DetectionContext{
		RecentEvents:       recent,
		MaintenanceWindows: []models.MaintenanceWindow{},
		SystemStatus:       models.SystemStatusNormal,
	}

	if s.adms == nil {
		return dctx
	}

	status, err := s.adms.GetSystemStatus(ctx)
	if err != nil {
		s.logger.Warn("ADMS system status unavailable, assuming normal", zap.Error(err))
	} else {
		dctx.SystemStatus = status
	}

	windows, err := s.adms.GetMaintenanceWindows(ctx, event.Timestamp.Add(-window), event.Timestamp.Add(window))
	if err != nil {
		s.logger.Warn("ADMS maintenance windows unavailable", zap.Error(err))
	} else {
		dctx.MaintenanceWindows = windows
	}

	return dctx
}

// MarkFalseEvent 人工标记/取消标记误报（检测结果本身从不写库，标记是独立的显式操作）
func (s *AnalyzerService) MarkFalseEvent(ctx context.Context, eventID string, falseEvent bool, remark string) error {
	patch := map[string]interface{}{"false_event": falseEvent}
	if err := s.events.UpdateEvent(ctx, eventID, patch); err != nil {
		return err
	}
	if remark != "" {
		line := fmt.Sprintf("[%s] %s", time.Now().UTC().Format(time.RFC3339), remark)
		if err := s.events.AppendRemark(ctx, eventID, line); err != nil {
			return err
		}
	}
	s.logger.Info("Event false-positive mark updated",
		zap.String("event_id", eventID), zap.Bool("false_event", falseEvent))
	return nil
}

// ============================================================
// 规则标注
// ============================================================

// ActiveRules 读取启用中的规则（缓存优先）
func (s *AnalyzerService) ActiveRules(ctx context.Context) ([]models.FalseEventRule, error) {
	rules, err := s.cache.GetActiveRules(ctx)
	if err != nil {
		s.logger.Warn("Failed to read active rules cache", zap.Error(err))
	}
	if rules != nil {
		return rules, nil
	}

	rules, err = s.rules.ListRules(ctx, true)
	if err != nil {
		return nil, err
	}
	if cacheErr := s.cache.SetActiveRules(ctx, rules); cacheErr != nil {
		s.logger.Warn("Failed to cache active rules", zap.Error(cacheErr))
	}
	return rules, nil
}

// AnnotateEvents 按启用规则对一批事件做误报标注（只读，不修改事件）
func (s *AnalyzerService) AnnotateEvents(ctx context.Context, eventIDs []string) ([]models.AnnotatedEvent, error) {
	if len(eventIDs) == 0 {
		return []models.AnnotatedEvent{}, nil
	}

	key := annotationKey(eventIDs)
	cached, err := s.cache.GetAnnotations(ctx, key)
	if err != nil {
		s.logger.Warn("Failed to read annotation cache", zap.Error(err))
	}
	if cached != nil {
		return cached, nil
	}

	events, err := s.events.FetchEventsByIDs(ctx, eventIDs)
	if err != nil {
		return nil, err
	}
	if len(events) != len(eventIDs) {
		s.logger.Warn("Some events not found for annotation",
			zap.Int("requested", len(eventIDs)), zap.Int("found", len(events)))
	}

	rules, err := s.ActiveRules(ctx)
	if err != nil {
		return nil, err
	}

	annotated := s.detector.ApplyConfiguredRules(events, rules)
	if cacheErr := s.cache.SetAnnotations(ctx, key, annotated); cacheErr != nil {
		s.logger.Warn("Failed to cache annotations", zap.Error(cacheErr))
	}
	return annotated, nil
}

// annotationKey 对事件 ID 集合生成与顺序无关的缓存键
func annotationKey(eventIDs []string) string {
	ids := make([]string, len(eventIDs))
	copy(ids, eventIDs)
	sort.Strings(ids)
	sum := sha1.Sum([]byte(strings.Join(ids, ",")))
	return hex.EncodeToString(sum[:])
}

// RulePerformance 统计各规则在时间段内的命中/准确率/漏检率
func (s *AnalyzerService) RulePerformance(ctx context.Context, from, to time.Time) ([]models.RuleStat, error) {
	events, err := s.events.FetchEventsInRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	rules, err := s.rules.ListRules(ctx, false)
	if err != nil {
		return nil, err
	}
	return s.detector.AnalyzeRulePerformance(events, rules), nil
}

// ============================================================
// 规则管理（写操作同步失效缓存）
// ============================================================

func (s *AnalyzerService) CreateRule(ctx context.Context, rule *models.FalseEventRule) error {
	if err := s.rules.CreateRule(ctx, rule); err != nil {
		return err
	}
	s.invalidateRuleCache(ctx)
	return nil
}

func (s *AnalyzerService) UpdateRule(ctx context.Context, rule *models.FalseEventRule) error {
	if err := s.rules.UpdateRule(ctx, rule); err != nil {
		return err
	}
	s.invalidateRuleCache(ctx)
	return nil
}

func (s *AnalyzerService) DeleteRule(ctx context.Context, ruleID string) error {
	if err := s.rules.DeleteRule(ctx, ruleID); err != nil {
		return err
	}
	s.invalidateRuleCache(ctx)
	return nil
}

func (s *AnalyzerService) invalidateRuleCache(ctx context.Context) {
	if err := s.cache.InvalidateActiveRules(ctx); err != nil {
		s.logger.Warn("Failed to invalidate active rules cache", zap.Error(err))
	}
	// 标注结果依赖规则集，规则变更后一并清空
	if err := s.cache.InvalidateAnnotations(ctx); err != nil {
		s.logger.Warn("Failed to invalidate annotation cache", zap.Error(err))
	}
}
