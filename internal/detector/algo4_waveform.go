package detector

import (
	"fmt"
	"math"

	"pqmap-analyzer/internal/models"
)

// 波形质量判定参数
const (
	waveformMaxPlausible   = 400.0 // 物理上可信的电压上限
	waveformNoiseDeviation = 50.0  // 平均绝对偏差超过该值视为噪声
	waveformFreezeSamples  = 50    // 采样超过该数量
	waveformFreezeDistinct = 5     // 且去重后少于该数量 → 表计冻结
)

// checkWaveformQuality 算法4：波形质量分析
// 仅在事件携带波形采样时参与；各项异常通过取最大值合成，不累加：
// 采样值物理上不可信（> 400 或 < 0）→ 0.8
// 平均绝对偏差 > 50 → 至少 0.6（噪声）
// > 50 个采样但保留一位小数去重后不足 5 个 → 至少 0.7（表计冻结，波形平直）
func (d *Detector) checkWaveformQuality(event *models.PQEvent, _ *models.DetectionContext) models.HeuristicResult {
	result := models.HeuristicResult{Reasons: []string{}}

	if event.WaveformData == nil || len(event.WaveformData.Voltage) == 0 {
		return result
	}
	samples := event.WaveformData.Voltage

	// 物理上不可信的采样值
	for _, v := range samples {
		if v > waveformMaxPlausible || v < 0 {
			result.Score = 0.8
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("waveform contains implausible voltage sample %.2f", v))
			break
		}
	}

	// 平均绝对偏差（噪声）
	var sum float64
	for _, v := range samples {
		sum += v
	}
	mean := sum / float64(len(samples))

	var devSum float64
	for _, v := range samples {
		devSum += math.Abs(v - mean)
	}
	deviation := devSum / float64(len(samples))

	if deviation > waveformNoiseDeviation {
		if result.Score < 0.6 {
			result.Score = 0.6
		}
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("waveform deviation %.2f indicates measurement noise", deviation))
	}

	// 表计冻结（波形平直）
	if len(samples) > waveformFreezeSamples {
		distinct := map[float64]struct{}{}
		for _, v := range samples {
			distinct[math.Round(v*10)/10] = struct{}{}
		}
		if len(distinct) < waveformFreezeDistinct {
			if result.Score < 0.7 {
				result.Score = 0.7
			}
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("flat waveform: only %d distinct values across %d samples suggests meter freeze", len(distinct), len(samples)))
		}
	}

	return result
}
