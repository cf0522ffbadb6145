package detector

import (
	"fmt"

	"pqmap-analyzer/internal/models"
)

// checkMagnitude 算法2：幅值校验
// 幅值与典型下限对比（典型下限/实际 > 5 → 0.8；> 2 → 0.5）
// 特例覆盖：voltage_dip 幅值 < 5% → 0.9（不足以影响设备）；
// harmonic 幅值 < 2% → 0.7（低于 IEEE 519 关注水平）
// 幅值缺失或无类型包络时评分为 0
func (d *Detector) checkMagnitude(event *models.PQEvent, _ *models.DetectionContext) models.HeuristicResult {
	result := models.HeuristicResult{Reasons: []string{}}

	sig := SignatureFor(event.EventType)
	if sig == nil || event.Magnitude <= 0 {
		return result
	}

	ratio := sig.TypicalMagnitude.Min / event.Magnitude
	if ratio > 5 {
		result.Score = 0.8
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("magnitude %.2f%% is far below the typical minimum %.2f%% for %s", event.Magnitude, sig.TypicalMagnitude.Min, event.EventType))
	} else if ratio > 2 {
		result.Score = 0.5
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("magnitude %.2f%% is below the typical range for %s", event.Magnitude, event.EventType))
	}

	// 类型特例
	if event.EventType == models.EventTypeVoltageDip && event.Magnitude < 5 {
		if result.Score < 0.9 {
			result.Score = 0.9
		}
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("voltage dip of %.2f%% is too small to affect equipment", event.Magnitude))
	}
	if event.EventType == models.EventTypeHarmonic && event.Magnitude < 2 {
		if result.Score < 0.7 {
			result.Score = 0.7
		}
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("harmonic distortion of %.2f%% is below the IEEE 519 concern level", event.Magnitude))
	}

	return result
}
