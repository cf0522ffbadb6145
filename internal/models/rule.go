package models

import (
	"time"
)

// FalseEventRule 用户配置的误报规则（对应 false_event_rules 表）
// 与加权启发式检测相互独立：规则是确定性阈值匹配，结果只用于展示标注
type FalseEventRule struct {
	RuleID      string         `json:"rule_id" db:"rule_id"`
	RuleName    string         `json:"rule_name" db:"rule_name"`
	Description string         `json:"description,omitempty" db:"description"`
	IsActive    bool           `json:"is_active" db:"is_active"`
	Conditions  RuleConditions `json:"conditions" db:"conditions"` // JSONB
	Actions     RuleActions    `json:"actions" db:"actions"`       // JSONB
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// RuleConditions 规则条件（缺省条件视为恒真）
type RuleConditions struct {
	MinDuration            *float64 `json:"min_duration,omitempty"` // 毫秒
	MaxDuration            *float64 `json:"max_duration,omitempty"`
	MinMagnitude           *float64 `json:"min_magnitude,omitempty"` // 百分比
	MaxMagnitude           *float64 `json:"max_magnitude,omitempty"`
	RequiresADMSValidation bool     `json:"requires_adms_validation,omitempty"`
	AllowedEventTypes      []string `json:"allowed_event_types,omitempty"`
	ExcludedEventTypes     []string `json:"excluded_event_types,omitempty"`
}

// RuleActions 规则命中后的标注动作
type RuleActions struct {
	AutoMark      bool `json:"auto_mark"`      // 标记为误报
	AutoHide      bool `json:"auto_hide"`      // 从列表隐藏
	RequireReview bool `json:"require_review"` // 需要人工复核
}

// AnnotatedEvent 规则匹配后的派生事件（仅用于展示，不落库）
type AnnotatedEvent struct {
	PQEvent
	FalseEventRules  []string `json:"false_event_rules"` // 命中的规则ID
	IsFlaggedAsFalse bool     `json:"is_flagged_as_false"`
	ShouldBeHidden   bool     `json:"should_be_hidden"`
	RequiresReview   bool     `json:"requires_review"`
}

// RuleStat 规则命中准确率统计（基于历史人工标注）
type RuleStat struct {
	RuleID        string  `json:"rule_id"`
	RuleName      string  `json:"rule_name"`
	TotalMatched  int     `json:"total_matched"`
	TruePositives int     `json:"true_positives"`
	Accuracy      float64 `json:"accuracy"`   // truePositives / totalMatched * 100
	Efficiency    float64 `json:"efficiency"` // truePositives / 全部真实误报数 * 100
}
