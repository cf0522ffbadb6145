package detector

import (
	"fmt"

	"pqmap-analyzer/internal/models"
)

// checkDuration 算法1：持续时间校验
// 把事件持续时间和该类型的典型范围对比：
// 过短（典型下限/实际 > 10 → 0.9；> 2 → 0.6），
// 过长（实际 > 典型上限 × 10 → 至少 0.7，与过短评分取最大值）
func (d *Detector) checkDuration(event *models.PQEvent, _ *models.DetectionContext) models.HeuristicResult {
	result := models.HeuristicResult{Reasons: []string{}}

	sig := SignatureFor(event.EventType)
	if sig == nil || event.DurationMs <= 0 {
		return result
	}

	// 过短
	ratio := sig.TypicalDuration.Min / event.DurationMs
	if ratio > 10 {
		result.Score = 0.9
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("duration %.2fms is far below the typical minimum %.2fms for %s", event.DurationMs, sig.TypicalDuration.Min, event.EventType))
	} else if ratio > 2 {
		result.Score = 0.6
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("duration %.2fms is below the typical range for %s", event.DurationMs, event.EventType))
	}

	// 过长（与过短评分取最大值）
	if event.DurationMs > sig.TypicalDuration.Max*10 {
		if result.Score < 0.7 {
			result.Score = 0.7
		}
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("duration %.2fms far exceeds the typical maximum %.2fms for %s", event.DurationMs, sig.TypicalDuration.Max, event.EventType))
	}

	return result
}
