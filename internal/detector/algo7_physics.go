package detector

import (
	"fmt"
	"math"

	"pqmap-analyzer/internal/models"
)

// 剩余电压与幅值的自洽容差（百分点）
const remainingVoltageTolerance = 10.0

// checkPhysicsConsistency 算法7：物理自洽性校验
// voltage_dip 幅值 > 100% → 0.9（物理上不可能）
// interruption 幅值 < 50% → 0.7（停电应接近全失压）
// voltage_dip 携带剩余电压时校验 |剩余电压 − (100 − 幅值)| > 10 → 至少 0.5
func (d *Detector) checkPhysicsConsistency(event *models.PQEvent, _ *models.DetectionContext) models.HeuristicResult {
	result := models.HeuristicResult{Reasons: []string{}}

	if event.EventType == models.EventTypeVoltageDip && event.Magnitude > 100 {
		result.Score = 0.9
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("voltage dip magnitude %.2f%% is physically impossible", event.Magnitude))
	}

	if event.EventType == models.EventTypeInterruption && event.Magnitude < 50 {
		if result.Score < 0.7 {
			result.Score = 0.7
		}
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("interruption magnitude %.2f%% should be near total voltage loss", event.Magnitude))
	}

	if event.EventType == models.EventTypeVoltageDip && event.RemainingVoltage != nil {
		expected := 100 - event.Magnitude
		if math.Abs(*event.RemainingVoltage-expected) > remainingVoltageTolerance {
			if result.Score < 0.5 {
				result.Score = 0.5
			}
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("remaining voltage %.2f%% is inconsistent with reported magnitude %.2f%%", *event.RemainingVoltage, event.Magnitude))
		}
	}

	return result
}
