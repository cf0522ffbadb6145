package grouping

import (
	"context"
	"fmt"
	"sort"
	"time"

	"pqmap-analyzer/internal/models"
	"pqmap-analyzer/internal/repository"

	"go.uber.org/zap"
)

// 校验失败原因（按优先级返回第一条命中的）
const (
	ReasonNotEnoughEvents    = "At least 2 events required for grouping."
	ReasonInvalidEventType   = "Only voltage_dip and voltage_swell events can be grouped together."
	ReasonAlreadyGrouped     = "Some events are already grouped."
	ReasonDifferentSubstation = "Events must be from the same substation for grouping."
)

// Engine 母子事件分组引擎
// 负责在同一厂站、时间窗口内把相关的暂态事件聚成一个"事故"，
// 并维护母/子两级树关系（子事件不会再嵌套子事件）
type Engine struct {
	events *repository.EventRepository
	window time.Duration // 自动分组时间窗口（从母事件起算，不链式延伸）
	logger *zap.Logger
}

// NewEngine 创建分组引擎
func NewEngine(events *repository.EventRepository, window time.Duration, logger *zap.Logger) *Engine {
	return &Engine{
		events: events,
		window: window,
		logger: logger,
	}
}

// CanGroupEvents 分组前置校验（纯函数，无副作用）
// 按优先级返回第一条不满足的原因
func (e *Engine) CanGroupEvents(events []models.PQEvent) models.GroupValidation {
	if len(events) < 2 {
		return models.GroupValidation{CanGroup: false, Reason: ReasonNotEnoughEvents}
	}

	for i := range events {
		if !events[i].IsGroupable() {
			return models.GroupValidation{CanGroup: false, Reason: ReasonInvalidEventType}
		}
	}

	for i := range events {
		if events[i].IsGrouped() {
			return models.GroupValidation{CanGroup: false, Reason: ReasonAlreadyGrouped}
		}
	}

	substationID := events[0].SubstationID
	for i := range events {
		if events[i].SubstationID != substationID {
			return models.GroupValidation{CanGroup: false, Reason: ReasonDifferentSubstation}
		}
	}

	return models.GroupValidation{CanGroup: true}
}

// PerformAutomaticGrouping 自动分组（确定性单遍扫描）
// 1. 过滤出未分组的 voltage_dip/voltage_swell 事件
// 2. 按时间升序排序，再按厂站稳定分片
// 3. 每个分片内做窗口贪心聚类：游标事件为候选母事件，向后收集
//    时间差 <= 窗口 的事件为子事件；分片按时间有序，首个越窗即可提前终止
// 4. 至少有一个子事件才提交分组；提交失败的分组记录日志后跳过，不中断其余分组
func (e *Engine) PerformAutomaticGrouping(ctx context.Context, events []models.PQEvent) ([]models.GroupingResult, error) {
	// 过滤：可分组类型且未分组（已分组事件不参与重聚类）
	candidates := make([]models.PQEvent, 0, len(events))
	for i := range events {
		if events[i].IsGroupable() && !events[i].IsGrouped() {
			candidates = append(candidates, events[i])
		}
	}

	// 时间升序（稳定排序：时间戳相同保持输入顺序）
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Timestamp.Before(candidates[j].Timestamp)
	})

	// 按厂站稳定分片（分片内时间序保留）
	partitionOrder := []string{}
	partitions := map[string][]models.PQEvent{}
	for i := range candidates {
		sub := candidates[i].SubstationID
		if _, ok := partitions[sub]; !ok {
			partitionOrder = append(partitionOrder, sub)
		}
		partitions[sub] = append(partitions[sub], candidates[i])
	}

	results := []models.GroupingResult{}
	for _, sub := range partitionOrder {
		partition := partitions[sub]

		i := 0
		for i < len(partition) {
			mother := partition[i]

			// 窗口从母事件起算；分片有序，越窗即 break
			children := []models.PQEvent{}
			for j := i + 1; j < len(partition); j++ {
				if partition[j].Timestamp.Sub(mother.Timestamp) > e.window {
					break
				}
				children = append(children, partition[j])
			}

			if len(children) == 0 {
				// 无子事件，保持独立，游标前移
				i++
				continue
			}

			childIDs := make([]string, len(children))
			for k := range children {
				childIDs[k] = children[k].EventID
			}

			groupedAt := time.Now().UTC()
			if err := e.events.CommitGroup(ctx, mother.EventID, childIDs, models.GroupingTypeAutomatic, groupedAt); err != nil {
				e.logger.Error("Failed to commit automatic group",
					zap.String("mother_event_id", mother.EventID),
					zap.Strings("child_event_ids", childIDs),
					zap.Error(err),
				)
			} else {
				results = append(results, models.GroupingResult{
					MotherEventID: mother.EventID,
					ChildEventIDs: childIDs,
					GroupingType:  models.GroupingTypeAutomatic,
					Timestamp:     groupedAt.Format(time.RFC3339),
				})
			}

			// 游标跳过母事件和全部子事件
			i += len(children) + 1
		}
	}

	return results, nil
}

// PerformManualGrouping 手动分组
// 重新从存储取事件（时间升序），时间最早的成为母事件，其余为子事件
// 手动分组不再复查窗口/厂站约束（调用方应先执行 CanGroupEvents）
func (e *Engine) PerformManualGrouping(ctx context.Context, eventIDs []string) (*models.GroupingResult, error) {
	if len(eventIDs) < 2 {
		return nil, fmt.Errorf("at least 2 events required for manual grouping, got %d", len(eventIDs))
	}

	events, err := e.events.FetchEventsByIDs(ctx, eventIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events for manual grouping: %w", err)
	}

	// 取到的数量和请求不一致说明有事件已被删除或ID失效
	if len(events) != len(eventIDs) {
		return nil, fmt.Errorf("expected %d events, found %d: some events are stale or missing", len(eventIDs), len(events))
	}

	mother := events[0]
	childIDs := make([]string, 0, len(events)-1)
	for i := 1; i < len(events); i++ {
		childIDs = append(childIDs, events[i].EventID)
	}

	groupedAt := time.Now().UTC()
	if err := e.events.CommitGroup(ctx, mother.EventID, childIDs, models.GroupingTypeManual, groupedAt); err != nil {
		e.logger.Error("Failed to commit manual group",
			zap.String("mother_event_id", mother.EventID),
			zap.Error(err),
		)
		return nil, err
	}

	return &models.GroupingResult{
		MotherEventID: mother.EventID,
		ChildEventIDs: childIDs,
		GroupingType:  models.GroupingTypeManual,
		Timestamp:     groupedAt.Format(time.RFC3339),
	}, nil
}

// AddChildrenToMotherEvent 向已有分组追加子事件
// 任一校验不通过则整体放弃（返回 false，无部分写入），不修改母事件的 grouped_at/grouping_type
func (e *Engine) AddChildrenToMotherEvent(ctx context.Context, motherEventID string, childEventIDs []string) bool {
	if motherEventID == "" || len(childEventIDs) == 0 {
		e.logger.Warn("AddChildrenToMotherEvent called with empty arguments")
		return false
	}

	mothers, err := e.events.FetchEventsByIDs(ctx, []string{motherEventID})
	if err != nil {
		e.logger.Error("Failed to fetch mother event",
			zap.String("mother_event_id", motherEventID),
			zap.Error(err),
		)
		return false
	}
	if len(mothers) == 0 || !mothers[0].IsMotherEvent {
		e.logger.Warn("Mother event not found or not a mother",
			zap.String("mother_event_id", motherEventID),
		)
		return false
	}
	mother := mothers[0]

	candidates, err := e.events.FetchEventsByIDs(ctx, childEventIDs)
	if err != nil {
		e.logger.Error("Failed to fetch candidate children",
			zap.Error(err),
		)
		return false
	}
	if len(candidates) != len(childEventIDs) {
		e.logger.Warn("Some candidate children are stale or missing",
			zap.Int("requested", len(childEventIDs)),
			zap.Int("found", len(candidates)),
		)
		return false
	}

	for i := range candidates {
		if !candidates[i].IsGroupable() {
			e.logger.Warn("Candidate child has non-groupable type",
				zap.String("event_id", candidates[i].EventID),
				zap.String("event_type", candidates[i].EventType),
			)
			return false
		}
		if candidates[i].IsGrouped() {
			e.logger.Warn("Candidate child is already grouped",
				zap.String("event_id", candidates[i].EventID),
			)
			return false
		}
		if candidates[i].SubstationID != mother.SubstationID {
			e.logger.Warn("Candidate child is from a different substation",
				zap.String("event_id", candidates[i].EventID),
				zap.String("substation_id", candidates[i].SubstationID),
				zap.String("mother_substation_id", mother.SubstationID),
			)
			return false
		}
	}

	patch := map[string]interface{}{
		"parent_event_id": motherEventID,
		"is_child_event":  true,
	}
	if err := e.events.UpdateEvents(ctx, childEventIDs, patch); err != nil {
		e.logger.Error("Failed to link new children",
			zap.String("mother_event_id", motherEventID),
			zap.Error(err),
		)
		return false
	}

	e.logger.Info("Children added to mother event",
		zap.String("mother_event_id", motherEventID),
		zap.Int("child_count", len(childEventIDs)),
	)

	return true
}

// UngroupEvents 解散整个分组
// 母事件降级、全部子事件脱钩，单事务提交；任一失败返回 false
func (e *Engine) UngroupEvents(ctx context.Context, motherEventID string) bool {
	if motherEventID == "" {
		e.logger.Warn("UngroupEvents called with empty mother_event_id")
		return false
	}

	children, err := e.events.FetchEventsByParent(ctx, motherEventID)
	if err != nil {
		e.logger.Error("Failed to fetch children for ungroup",
			zap.String("mother_event_id", motherEventID),
			zap.Error(err),
		)
		return false
	}

	childIDs := make([]string, len(children))
	for i := range children {
		childIDs[i] = children[i].EventID
	}

	if err := e.events.DissolveGroup(ctx, motherEventID, childIDs); err != nil {
		e.logger.Error("Failed to dissolve group",
			zap.String("mother_event_id", motherEventID),
			zap.Error(err),
		)
		return false
	}

	return true
}

// UngroupSpecificEvents 部分解组：仅摘除指定的子事件，其余分组关系保留
// 摘除后的 voltage_dip/voltage_swell 子事件提升为独立的母事件候选
// （is_mother_event=true，零子事件，可作为后续分组的锚点）；
// 其它类型属于数据完整性漂移，纠正为普通独立事件
// 摘除后母事件若不再有子事件则降级
func (e *Engine) UngroupSpecificEvents(ctx context.Context, childEventIDs []string) bool {
	if len(childEventIDs) == 0 {
		e.logger.Warn("UngroupSpecificEvents called with no child ids")
		return false
	}

	// 从第一个子事件解析母事件
	first, err := e.events.FetchEventsByIDs(ctx, []string{childEventIDs[0]})
	if err != nil {
		e.logger.Error("Failed to fetch first child",
			zap.String("event_id", childEventIDs[0]),
			zap.Error(err),
		)
		return false
	}
	if len(first) == 0 || first[0].ParentEventID == nil {
		e.logger.Warn("First child has no parent event",
			zap.String("event_id", childEventIDs[0]),
		)
		return false
	}
	motherEventID := *first[0].ParentEventID

	// 取全部待摘除子事件的类型
	children, err := e.events.FetchEventsByIDs(ctx, childEventIDs)
	if err != nil {
		e.logger.Error("Failed to fetch children for partial ungroup",
			zap.Error(err),
		)
		return false
	}

	promoteIDs := []string{}   // dip/swell：提升为母事件候选
	standaloneIDs := []string{} // 其它类型：纠正为普通独立事件
	for i := range children {
		if children[i].IsGroupable() {
			promoteIDs = append(promoteIDs, children[i].EventID)
		} else {
			standaloneIDs = append(standaloneIDs, children[i].EventID)
		}
	}

	if len(promoteIDs) > 0 {
		patch := map[string]interface{}{
			"parent_event_id": nil,
			"is_child_event":  false,
			"is_mother_event": true,
		}
		if err := e.events.UpdateEvents(ctx, promoteIDs, patch); err != nil {
			e.logger.Error("Failed to promote ungrouped children",
				zap.Strings("event_ids", promoteIDs),
				zap.Error(err),
			)
			return false
		}
	}

	if len(standaloneIDs) > 0 {
		patch := map[string]interface{}{
			"parent_event_id": nil,
			"is_child_event":  false,
			"is_mother_event": false,
		}
		if err := e.events.UpdateEvents(ctx, standaloneIDs, patch); err != nil {
			e.logger.Error("Failed to detach ungrouped children",
				zap.Strings("event_ids", standaloneIDs),
				zap.Error(err),
			)
			return false
		}
	}

	// 母事件零子事件时降级
	remaining, err := e.events.CountChildren(ctx, motherEventID)
	if err != nil {
		e.logger.Error("Failed to count remaining children",
			zap.String("mother_event_id", motherEventID),
			zap.Error(err),
		)
		return false
	}
	if remaining == 0 {
		patch := map[string]interface{}{
			"is_mother_event": false,
			"grouping_type":   nil,
			"grouped_at":      nil,
		}
		if err := e.events.UpdateEvent(ctx, motherEventID, patch); err != nil {
			e.logger.Error("Failed to demote childless mother",
				zap.String("mother_event_id", motherEventID),
				zap.Error(err),
			)
			return false
		}
	}

	e.logger.Info("Children ungrouped",
		zap.String("mother_event_id", motherEventID),
		zap.Int("ungrouped_count", len(childEventIDs)),
		zap.Int("remaining_children", remaining),
	)

	return true
}

// GroupStatistics 分组统计（供仪表盘）
func (e *Engine) GroupStatistics(ctx context.Context) (*models.GroupStatistics, error) {
	mothers, err := e.events.FetchAllMotherEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mother events: %w", err)
	}

	stats := &models.GroupStatistics{
		TotalMotherEvents: len(mothers),
		ChildrenPerGroup:  map[string]int{},
	}

	for i := range mothers {
		count, err := e.events.CountChildren(ctx, mothers[i].EventID)
		if err != nil {
			return nil, fmt.Errorf("failed to count children for %s: %w", mothers[i].EventID, err)
		}
		stats.ChildrenPerGroup[mothers[i].EventID] = count
		stats.TotalChildEvents += count

		if mothers[i].GroupingType != nil {
			switch *mothers[i].GroupingType {
			case models.GroupingTypeAutomatic:
				stats.AutomaticGroups++
			case models.GroupingTypeManual:
				stats.ManualGroups++
			}
		}
	}

	return stats, nil
}
