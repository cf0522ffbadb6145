package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pqmap-analyzer/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// EventRepository 电能质量事件仓库（对应 pq_events 表）
// 分组引擎通过本仓库读写事件的分组关系字段；特征字段由上游采集服务写入
type EventRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEventRepository 创建事件仓库
func NewEventRepository(db *sql.DB, logger *zap.Logger) *EventRepository {
	return &EventRepository{
		db:     db,
		logger: logger,
	}
}

// eventColumns 查询列（与 scanPQEvent 严格对应）
const eventColumns = `
	event_id,
	event_type,
	substation_id,
	timestamp,
	duration_ms,
	magnitude,
	remaining_voltage,
	affected_phases,
	customer_count,
	waveform_data,
	validated_by_adms,
	is_mother_event,
	is_child_event,
	parent_event_id,
	grouping_type,
	grouped_at,
	false_event,
	remarks,
	created_at,
	updated_at
`

// scanner 兼容 *sql.Row 和 *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanPQEvent 扫描单行事件（处理可空字段和 JSONB 字段）
func scanPQEvent(s scanner) (*models.PQEvent, error) {
	var event models.PQEvent
	var remainingVoltage sql.NullFloat64
	var parentEventID, groupingType, remarks sql.NullString
	var groupedAt sql.NullTime
	var affectedPhases, waveformData []byte

	err := s.Scan(
		&event.EventID,
		&event.EventType,
		&event.SubstationID,
		&event.Timestamp,
		&event.DurationMs,
		&event.Magnitude,
		&remainingVoltage,
		&affectedPhases,
		&event.CustomerCount,
		&waveformData,
		&event.ValidatedByADMS,
		&event.IsMotherEvent,
		&event.IsChildEvent,
		&parentEventID,
		&groupingType,
		&groupedAt,
		&event.FalseEvent,
		&remarks,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// 处理可空字段
	if remainingVoltage.Valid {
		event.RemainingVoltage = &remainingVoltage.Float64
	}
	if parentEventID.Valid {
		event.ParentEventID = &parentEventID.String
	}
	if groupingType.Valid {
		event.GroupingType = &groupingType.String
	}
	if groupedAt.Valid {
		event.GroupedAt = &groupedAt.Time
	}
	if remarks.Valid {
		event.Remarks = remarks.String
	}

	// 处理 JSONB 字段
	if len(affectedPhases) > 0 {
		if err := json.Unmarshal(affectedPhases, &event.AffectedPhases); err != nil {
			return nil, fmt.Errorf("failed to unmarshal affected_phases: %w", err)
		}
	}
	if len(waveformData) > 0 {
		var wf models.Waveform
		if err := json.Unmarshal(waveformData, &wf); err != nil {
			return nil, fmt.Errorf("failed to unmarshal waveform_data: %w", err)
		}
		event.WaveformData = &wf
	}

	return &event, nil
}

// scanPQEvents 扫描多行事件
func scanPQEvents(rows *sql.Rows) ([]models.PQEvent, error) {
	events := []models.PQEvent{}
	for rows.Next() {
		event, err := scanPQEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pq event: %w", err)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pq events: %w", err)
	}
	return events, nil
}

// ============================================
// 查询操作
// ============================================

// FetchEventsByIDs 按ID集合查询事件（按 timestamp 升序返回）
func (r *EventRepository) FetchEventsByIDs(ctx context.Context, eventIDs []string) ([]models.PQEvent, error) {
	if len(eventIDs) == 0 {
		return []models.PQEvent{}, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM pq_events
		WHERE event_id = ANY($1)
		ORDER BY timestamp ASC
	`, eventColumns)

	rows, err := r.db.QueryContext(ctx, query, pq.Array(eventIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query events by ids: %w", err)
	}
	defer rows.Close()

	return scanPQEvents(rows)
}

// FetchEventsByParent 查询某个母事件的全部子事件
func (r *EventRepository) FetchEventsByParent(ctx context.Context, motherEventID string) ([]models.PQEvent, error) {
	if motherEventID == "" {
		return nil, fmt.Errorf("mother_event_id is required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM pq_events
		WHERE parent_event_id = $1
		ORDER BY timestamp ASC
	`, eventColumns)

	rows, err := r.db.QueryContext(ctx, query, motherEventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events by parent: %w", err)
	}
	defer rows.Close()

	return scanPQEvents(rows)
}

// FetchAllMotherEvents 查询全部母事件（用于统计）
func (r *EventRepository) FetchAllMotherEvents(ctx context.Context) ([]models.PQEvent, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM pq_events
		WHERE is_mother_event = TRUE
		ORDER BY timestamp ASC
	`, eventColumns)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query mother events: %w", err)
	}
	defer rows.Close()

	return scanPQEvents(rows)
}

// FetchUngroupedCandidates 查询时间段内可参与自动分组的事件
// 仅 voltage_dip / voltage_swell，且未分组（既不是母事件也没有父事件）
func (r *EventRepository) FetchUngroupedCandidates(ctx context.Context, from, to time.Time) ([]models.PQEvent, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM pq_events
		WHERE event_type = ANY($1)
		  AND is_mother_event = FALSE
		  AND parent_event_id IS NULL
		  AND timestamp >= $2
		  AND timestamp <= $3
		ORDER BY timestamp ASC
	`, eventColumns)

	groupableTypes := []string{models.EventTypeVoltageDip, models.EventTypeVoltageSwell}

	rows, err := r.db.QueryContext(ctx, query, pq.Array(groupableTypes), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query ungrouped candidates: %w", err)
	}
	defer rows.Close()

	return scanPQEvents(rows)
}

// FetchRecentEvents 查询某厂站在指定时刻前后的事件（检测上下文取数）
func (r *EventRepository) FetchRecentEvents(ctx context.Context, substationID string, around time.Time, window time.Duration) ([]models.PQEvent, error) {
	if substationID == "" {
		return nil, fmt.Errorf("substation_id is required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM pq_events
		WHERE substation_id = $1
		  AND timestamp >= $2
		  AND timestamp <= $3
		ORDER BY timestamp ASC
	`, eventColumns)

	rows, err := r.db.QueryContext(ctx, query, substationID, around.Add(-window), around.Add(window))
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer rows.Close()

	return scanPQEvents(rows)
}

// FetchEventsInRange 查询时间段内的全部事件（规则准确率分析取数）
func (r *EventRepository) FetchEventsInRange(ctx context.Context, from, to time.Time) ([]models.PQEvent, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM pq_events
		WHERE timestamp >= $1
		  AND timestamp <= $2
		ORDER BY timestamp ASC
	`, eventColumns)

	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query events in range: %w", err)
	}
	defer rows.Close()

	return scanPQEvents(rows)
}

// CountChildren 统计母事件当前的子事件数量
func (r *EventRepository) CountChildren(ctx context.Context, motherEventID string) (int, error) {
	if motherEventID == "" {
		return 0, fmt.Errorf("mother_event_id is required")
	}

	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pq_events WHERE parent_event_id = $1`,
		motherEventID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count children: %w", err)
	}

	return count, nil
}

// ============================================
// 更新操作
// ============================================

// 允许通过 patch 更新的字段
// remarks 不在列表内：备注只能通过 AppendRemark 追加，不能覆盖
var allowedEventFields = map[string]bool{
	"is_mother_event": true,
	"is_child_event":  true,
	"parent_event_id": true,
	"grouping_type":   true,
	"grouped_at":      true,
	"false_event":     true,
}

// buildSetClause 构建 SET 子句（校验字段白名单）
func buildSetClause(patch map[string]interface{}, args *[]interface{}, argN *int) (string, error) {
	if len(patch) == 0 {
		return "", fmt.Errorf("patch cannot be empty")
	}

	setParts := []string{}
	for field, value := range patch {
		if !allowedEventFields[field] {
			return "", fmt.Errorf("field '%s' is not allowed to update", field)
		}
		setParts = append(setParts, fmt.Sprintf("%s = $%d", field, *argN))
		*args = append(*args, value)
		*argN++
	}

	// 自动更新 updated_at
	setParts = append(setParts, "updated_at = CURRENT_TIMESTAMP")

	return strings.Join(setParts, ", "), nil
}

// UpdateEvent 更新单个事件（部分更新，字段白名单校验）
func (r *EventRepository) UpdateEvent(ctx context.Context, eventID string, patch map[string]interface{}) error {
	if eventID == "" {
		return fmt.Errorf("event_id is required")
	}

	args := []interface{}{}
	argN := 1
	setClause, err := buildSetClause(patch, &args, &argN)
	if err != nil {
		return err
	}

	args = append(args, eventID)
	query := fmt.Sprintf(`
		UPDATE pq_events
		SET %s
		WHERE event_id = $%d
	`, setClause, argN)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("event not found: event_id=%s", eventID)
	}

	return nil
}

// UpdateEvents 批量更新事件（同一 patch 应用到全部ID）
func (r *EventRepository) UpdateEvents(ctx context.Context, eventIDs []string, patch map[string]interface{}) error {
	if len(eventIDs) == 0 {
		return fmt.Errorf("event_ids cannot be empty")
	}

	args := []interface{}{}
	argN := 1
	setClause, err := buildSetClause(patch, &args, &argN)
	if err != nil {
		return err
	}

	args = append(args, pq.Array(eventIDs))
	query := fmt.Sprintf(`
		UPDATE pq_events
		SET %s
		WHERE event_id = ANY($%d)
	`, setClause, argN)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update events: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if int(rowsAffected) != len(eventIDs) {
		return fmt.Errorf("expected %d events updated, got %d", len(eventIDs), rowsAffected)
	}

	return nil
}

// AppendRemark 追加审计备注（只追加，不覆盖）
func (r *EventRepository) AppendRemark(ctx context.Context, eventID, remark string) error {
	if eventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if remark == "" {
		return fmt.Errorf("remark is required")
	}

	query := `
		UPDATE pq_events
		SET remarks = CASE
				WHEN remarks IS NULL OR remarks = '' THEN $1
				ELSE remarks || E'\n' || $1
			END,
		    updated_at = CURRENT_TIMESTAMP
		WHERE event_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, remark, eventID)
	if err != nil {
		return fmt.Errorf("failed to append remark: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("event not found: event_id=%s", eventID)
	}

	return nil
}

// ============================================
// 分组事务操作
// ============================================

// CommitGroup 提交一个分组（母事件标记 + 子事件挂接，单事务）
// 事务内任一写入失败则整体回滚，不留下半成品分组
func (r *EventRepository) CommitGroup(ctx context.Context, motherEventID string, childEventIDs []string, groupingType string, groupedAt time.Time) error {
	if motherEventID == "" {
		return fmt.Errorf("mother_event_id is required")
	}
	if len(childEventIDs) == 0 {
		return fmt.Errorf("child_event_ids cannot be empty")
	}
	if groupingType != models.GroupingTypeAutomatic && groupingType != models.GroupingTypeManual {
		return fmt.Errorf("invalid grouping_type: %s", groupingType)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 母事件
	result, err := tx.ExecContext(ctx, `
		UPDATE pq_events
		SET is_mother_event = TRUE,
		    is_child_event = FALSE,
		    parent_event_id = NULL,
		    grouping_type = $1,
		    grouped_at = $2,
		    updated_at = CURRENT_TIMESTAMP
		WHERE event_id = $3
	`, groupingType, groupedAt, motherEventID)
	if err != nil {
		return fmt.Errorf("failed to mark mother event: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("mother event not found: event_id=%s", motherEventID)
	}

	// 子事件
	result, err = tx.ExecContext(ctx, `
		UPDATE pq_events
		SET parent_event_id = $1,
		    is_child_event = TRUE,
		    is_mother_event = FALSE,
		    updated_at = CURRENT_TIMESTAMP
		WHERE event_id = ANY($2)
	`, motherEventID, pq.Array(childEventIDs))
	if err != nil {
		return fmt.Errorf("failed to link child events: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	} else if int(n) != len(childEventIDs) {
		return fmt.Errorf("expected %d child events linked, got %d", len(childEventIDs), n)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit group transaction: %w", err)
	}

	r.logger.Info("Group committed",
		zap.String("mother_event_id", motherEventID),
		zap.Int("child_count", len(childEventIDs)),
		zap.String("grouping_type", groupingType),
	)

	return nil
}

// DissolveGroup 解散整个分组（母事件降级 + 子事件脱钩，单事务）
func (r *EventRepository) DissolveGroup(ctx context.Context, motherEventID string, childEventIDs []string) error {
	if motherEventID == "" {
		return fmt.Errorf("mother_event_id is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 母事件降级
	result, err := tx.ExecContext(ctx, `
		UPDATE pq_events
		SET is_mother_event = FALSE,
		    grouping_type = NULL,
		    grouped_at = NULL,
		    updated_at = CURRENT_TIMESTAMP
		WHERE event_id = $1
	`, motherEventID)
	if err != nil {
		return fmt.Errorf("failed to demote mother event: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("mother event not found: event_id=%s", motherEventID)
	}

	// 子事件脱钩（分组可能本来就没有子事件，不校验行数）
	if len(childEventIDs) > 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE pq_events
			SET parent_event_id = NULL,
			    is_child_event = FALSE,
			    updated_at = CURRENT_TIMESTAMP
			WHERE event_id = ANY($1)
		`, pq.Array(childEventIDs))
		if err != nil {
			return fmt.Errorf("failed to unlink child events: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dissolve transaction: %w", err)
	}

	r.logger.Info("Group dissolved",
		zap.String("mother_event_id", motherEventID),
		zap.Int("child_count", len(childEventIDs)),
	)

	return nil
}
