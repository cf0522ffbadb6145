package detector

import (
	"fmt"
	"time"

	"pqmap-analyzer/internal/models"
)

// interruption 关联事件检查窗口：前后各 5 分钟
const interruptionRelatedWindow = 5 * time.Minute

// checkTemporalCorrelation 算法5：时间相关性分析
// 事件落在任一检修窗口内（含边界）→ 0.6
// interruption 事件还检查同厂站 ±5 分钟内的关联事件：
// 窗口内只有自己 → 至少 0.5（停电应当伴随关联事件）
func (d *Detector) checkTemporalCorrelation(event *models.PQEvent, ctx *models.DetectionContext) models.HeuristicResult {
	result := models.HeuristicResult{Reasons: []string{}}

	for i := range ctx.MaintenanceWindows {
		mw := &ctx.MaintenanceWindows[i]
		if !event.Timestamp.Before(mw.StartTime) && !event.Timestamp.After(mw.EndTime) {
			result.Score = 0.6
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("event occurred during maintenance window %s - %s",
					mw.StartTime.Format(time.RFC3339), mw.EndTime.Format(time.RFC3339)))
			break
		}
	}

	if event.EventType == models.EventTypeInterruption {
		related := 0
		for i := range ctx.RecentEvents {
			other := &ctx.RecentEvents[i]
			if other.EventID == event.EventID {
				continue
			}
			if other.SubstationID != event.SubstationID {
				continue
			}
			diff := other.Timestamp.Sub(event.Timestamp)
			if diff >= -interruptionRelatedWindow && diff <= interruptionRelatedWindow {
				related++
			}
		}
		if related == 0 {
			if result.Score < 0.5 {
				result.Score = 0.5
			}
			result.Reasons = append(result.Reasons,
				"interruption lacks expected related events at the same substation")
		}
	}

	return result
}
