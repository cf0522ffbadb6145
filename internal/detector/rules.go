package detector

import (
	"pqmap-analyzer/internal/models"
)

// ruleMatches 判定单条规则是否命中事件
// 规则必须启用，且事件通过全部已配置的条件；缺省条件视为恒真
func ruleMatches(rule *models.FalseEventRule, event *models.PQEvent) bool {
	if !rule.IsActive {
		return false
	}

	cond := &rule.Conditions

	if cond.MinDuration != nil && event.DurationMs < *cond.MinDuration {
		return false
	}
	if cond.MaxDuration != nil && event.DurationMs > *cond.MaxDuration {
		return false
	}
	if cond.MinMagnitude != nil && event.Magnitude < *cond.MinMagnitude {
		return false
	}
	if cond.MaxMagnitude != nil && event.Magnitude > *cond.MaxMagnitude {
		return false
	}
	if cond.RequiresADMSValidation && !event.ValidatedByADMS {
		return false
	}
	if len(cond.AllowedEventTypes) > 0 && !containsString(cond.AllowedEventTypes, event.EventType) {
		return false
	}
	if containsString(cond.ExcludedEventTypes, event.EventType) {
		return false
	}

	return true
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

// ApplyConfiguredRules 用户规则匹配通道（与加权启发式检测相互独立）
// 为每个事件生成派生副本并标注命中的规则和三个展示标志；
// 不修改任何持久化字段
func (d *Detector) ApplyConfiguredRules(events []models.PQEvent, rules []models.FalseEventRule) []models.AnnotatedEvent {
	annotated := make([]models.AnnotatedEvent, 0, len(events))

	for i := range events {
		ae := models.AnnotatedEvent{
			PQEvent:         events[i],
			FalseEventRules: []string{},
		}

		for j := range rules {
			rule := &rules[j]
			if !ruleMatches(rule, &events[i]) {
				continue
			}

			ae.FalseEventRules = append(ae.FalseEventRules, rule.RuleID)
			if rule.Actions.AutoMark {
				ae.IsFlaggedAsFalse = true
			}
			if rule.Actions.AutoHide {
				ae.ShouldBeHidden = true
			}
			if rule.Actions.RequireReview {
				ae.RequiresReview = true
			}
		}

		annotated = append(annotated, ae)
	}

	return annotated
}

// AnalyzeRulePerformance 规则准确率分析（基于历史人工标注 false_event）
// accuracy = truePositives / totalMatched × 100（无命中时为 0）
// efficiency = truePositives / 全部真实误报数 × 100（分母最低取 1）
func (d *Detector) AnalyzeRulePerformance(events []models.PQEvent, rules []models.FalseEventRule) []models.RuleStat {
	totalActualFalsePositives := 0
	for i := range events {
		if events[i].FalseEvent {
			totalActualFalsePositives++
		}
	}
	efficiencyDenominator := totalActualFalsePositives
	if efficiencyDenominator == 0 {
		efficiencyDenominator = 1
	}

	stats := make([]models.RuleStat, 0, len(rules))
	for j := range rules {
		rule := &rules[j]

		stat := models.RuleStat{
			RuleID:   rule.RuleID,
			RuleName: rule.RuleName,
		}

		for i := range events {
			if !ruleMatches(rule, &events[i]) {
				continue
			}
			stat.TotalMatched++
			if events[i].FalseEvent {
				stat.TruePositives++
			}
		}

		if stat.TotalMatched > 0 {
			stat.Accuracy = float64(stat.TruePositives) / float64(stat.TotalMatched) * 100
		}
		stat.Efficiency = float64(stat.TruePositives) / float64(efficiencyDenominator) * 100

		stats = append(stats, stat)
	}

	return stats
}
