package models

import (
	"time"
)

// 推荐处理动作（按置信度从高到低）
const (
	ActionAutoRemove = "auto-remove" // confidence > 90
	ActionFlag       = "flag"        // confidence > 70
	ActionReview     = "review"      // confidence > 50
	ActionIgnore     = "ignore"      // 其余
)

// 电网系统状态（来自 ADMS）
const (
	SystemStatusNormal      = "normal"
	SystemStatusMaintenance = "maintenance"
	SystemStatusEmergency   = "emergency"
)

// DetectionResult 误报检测结果
type DetectionResult struct {
	EventID           string   `json:"event_id"`
	IsFalsePositive   bool     `json:"is_false_positive"` // confidence > 70
	Confidence        float64  `json:"confidence"`        // 0-100
	Reasons           []string `json:"reasons"`
	TriggeredRules    []string `json:"triggered_rules"` // score > 0.5 的算法名
	RecommendedAction string   `json:"recommended_action"`
}

// HeuristicResult 单个启发式算法的评分结果
type HeuristicResult struct {
	Score   float64  `json:"score"` // 0-1
	Reasons []string `json:"reasons"`
}

// DetectionContext 检测上下文（由调用方组装，检测算法本身无存储依赖）
type DetectionContext struct {
	RecentEvents       []PQEvent           `json:"recent_events"`       // 同厂站附近时段的事件
	MaintenanceWindows []MaintenanceWindow `json:"maintenance_windows"` // 检修窗口
	SystemStatus       string              `json:"system_status"`       // normal, maintenance, emergency
}

// MaintenanceWindow 检修窗口（含边界）
type MaintenanceWindow struct {
	SubstationID string    `json:"substation_id"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Description  string    `json:"description,omitempty"`
}

// EventSignature 事件类型的典型物理包络（静态知识库条目）
type EventSignature struct {
	EventType               string     `json:"event_type"`
	TypicalDuration         RangeMs    `json:"typical_duration"`  // 毫秒
	TypicalMagnitude        RangePct   `json:"typical_magnitude"` // 百分比
	CommonCauses            []string   `json:"common_causes"`             // 仅文档用途
	FalsePositiveIndicators []string   `json:"false_positive_indicators"` // 仅文档用途
}

// RangeMs 毫秒范围
type RangeMs struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// RangePct 百分比范围
type RangePct struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}
