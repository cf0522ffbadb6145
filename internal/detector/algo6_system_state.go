package detector

import (
	"fmt"
	"time"

	"pqmap-analyzer/internal/models"
)

// checkSystemState 算法6：系统状态分析
// 系统处于检修状态 → 0.4
// harmonic / voltage_dip 发生在周末 → 至少 0.3（与前者取最大值）
func (d *Detector) checkSystemState(event *models.PQEvent, ctx *models.DetectionContext) models.HeuristicResult {
	result := models.HeuristicResult{Reasons: []string{}}

	if ctx.SystemStatus == models.SystemStatusMaintenance {
		result.Score = 0.4
		result.Reasons = append(result.Reasons, "system is in maintenance state")
	}

	weekday := event.Timestamp.Weekday()
	if (weekday == time.Saturday || weekday == time.Sunday) &&
		(event.EventType == models.EventTypeHarmonic || event.EventType == models.EventTypeVoltageDip) {
		if result.Score < 0.3 {
			result.Score = 0.3
		}
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("%s occurred on a weekend under light load", event.EventType))
	}

	return result
}
