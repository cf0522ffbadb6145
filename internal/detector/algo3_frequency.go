package detector

import (
	"fmt"
	"math"
	"time"

	"pqmap-analyzer/internal/models"
)

// 频次分析窗口：事件前后各 1 小时
const frequencyWindow = time.Hour

// 近乎同一特征的判定容差
const (
	nearIdenticalMagnitudeTol = 0.1 // 幅值差
	nearIdenticalDurationTol  = 50  // 持续时间差（毫秒）
)

// checkFrequencyPattern 算法3：频次模式分析
// 统计上下文中 ±1 小时窗口内的其它事件（不含自身）：
// > 50 个 → 0.9（频次异常）；> 20 个 → 0.6
// 另统计"近乎同一特征"（同类型、幅值差 ≤ 0.1、持续时间差 ≤ 50ms）的事件，
// 超过 5 个 → 至少 0.8（表计故障信号），与频次评分取最大值
func (d *Detector) checkFrequencyPattern(event *models.PQEvent, ctx *models.DetectionContext) models.HeuristicResult {
	result := models.HeuristicResult{Reasons: []string{}}

	if len(ctx.RecentEvents) == 0 {
		return result
	}

	var windowCount, nearIdenticalCount int
	for i := range ctx.RecentEvents {
		other := &ctx.RecentEvents[i]
		if other.EventID == event.EventID {
			continue
		}

		diff := other.Timestamp.Sub(event.Timestamp)
		if diff < -frequencyWindow || diff > frequencyWindow {
			continue
		}
		windowCount++

		if other.EventType == event.EventType &&
			math.Abs(other.Magnitude-event.Magnitude) <= nearIdenticalMagnitudeTol &&
			math.Abs(other.DurationMs-event.DurationMs) <= nearIdenticalDurationTol {
			nearIdenticalCount++
		}
	}

	if windowCount > 50 {
		result.Score = 0.9
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("excessive event frequency: %d events within 1 hour", windowCount))
	} else if windowCount > 20 {
		result.Score = 0.6
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("high event frequency: %d events within 1 hour", windowCount))
	}

	if nearIdenticalCount > 5 {
		if result.Score < 0.8 {
			result.Score = 0.8
		}
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("%d near-identical events within 1 hour suggest meter malfunction", nearIdenticalCount))
	}

	return result
}
