package models

import (
	"time"
)

// 事件类型（闭集，对应 pq_events.event_type）
const (
	EventTypeVoltageDip   = "voltage_dip"
	EventTypeVoltageSwell = "voltage_swell"
	EventTypeInterruption = "interruption"
	EventTypeHarmonic     = "harmonic"
	EventTypeTransient    = "transient"
	EventTypeFlicker      = "flicker"
)

// 分组类型
const (
	GroupingTypeAutomatic = "automatic"
	GroupingTypeManual    = "manual"
)

// PQEvent 电能质量事件（对应 pq_events 表）
// 由上游采集服务写入，本服务只修改分组关系字段和 remarks
type PQEvent struct {
	EventID          string     `json:"event_id" db:"event_id"`
	EventType        string     `json:"event_type" db:"event_type"` // voltage_dip, voltage_swell, interruption, harmonic, transient, flicker
	SubstationID     string     `json:"substation_id" db:"substation_id"`
	Timestamp        time.Time  `json:"timestamp" db:"timestamp"` // 事件开始时间
	DurationMs       float64    `json:"duration_ms" db:"duration_ms"`
	Magnitude        float64    `json:"magnitude" db:"magnitude"` // 百分比
	RemainingVoltage *float64   `json:"remaining_voltage,omitempty" db:"remaining_voltage"` // 剩余电压（%）
	AffectedPhases   []string   `json:"affected_phases" db:"affected_phases"` // A/B/C
	CustomerCount    int        `json:"customer_count" db:"customer_count"`
	WaveformData     *Waveform  `json:"waveform_data,omitempty" db:"waveform_data"` // JSONB，可空
	ValidatedByADMS  bool       `json:"validated_by_adms" db:"validated_by_adms"`

	// 分组关系字段（仅 Grouping Engine 修改）
	IsMotherEvent bool       `json:"is_mother_event" db:"is_mother_event"`
	IsChildEvent  bool       `json:"is_child_event" db:"is_child_event"`
	ParentEventID *string    `json:"parent_event_id,omitempty" db:"parent_event_id"`
	GroupingType  *string    `json:"grouping_type,omitempty" db:"grouping_type"` // automatic, manual
	GroupedAt     *time.Time `json:"grouped_at,omitempty" db:"grouped_at"`

	// 人工判定结果
	FalseEvent bool   `json:"false_event" db:"false_event"` // 已持久化的误报判定
	Remarks    string `json:"remarks" db:"remarks"`         // 审计备注（只追加，不覆盖）

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Waveform 波形采样（JSONB 结构）
type Waveform struct {
	Voltage    []float64 `json:"voltage"`               // 电压采样值
	SampleRate *float64  `json:"sample_rate,omitempty"` // 采样率（Hz）
}

// IsGroupable 是否是可分组类型（仅 voltage_dip / voltage_swell 可分组）
func (e *PQEvent) IsGroupable() bool {
	return e.EventType == EventTypeVoltageDip || e.EventType == EventTypeVoltageSwell
}

// IsGrouped 是否已经属于某个分组（母事件或子事件）
func (e *PQEvent) IsGrouped() bool {
	return e.IsMotherEvent || e.ParentEventID != nil
}

// GroupingResult 分组结果（返回给调用方）
type GroupingResult struct {
	MotherEventID string   `json:"mother_event_id"`
	ChildEventIDs []string `json:"child_event_ids"`
	GroupingType  string   `json:"grouping_type"` // automatic, manual
	Timestamp     string   `json:"timestamp"`     // ISO8601
}

// GroupValidation CanGroupEvents 的校验结果
type GroupValidation struct {
	CanGroup bool   `json:"can_group"`
	Reason   string `json:"reason,omitempty"`
}

// GroupStatistics 分组统计（供仪表盘展示）
type GroupStatistics struct {
	TotalMotherEvents int            `json:"total_mother_events"`
	TotalChildEvents  int            `json:"total_child_events"`
	AutomaticGroups   int            `json:"automatic_groups"`
	ManualGroups      int            `json:"manual_groups"`
	ChildrenPerGroup  map[string]int `json:"children_per_group"` // mother_event_id -> 子事件数
}
