package detector

import (
	"pqmap-analyzer/internal/models"

	"go.uber.org/zap"
)

// 各算法的固定权重（合计 1.0）
const (
	weightDuration    = 0.20
	weightMagnitude   = 0.15
	weightFrequency   = 0.20
	weightWaveform    = 0.15
	weightTemporal    = 0.10
	weightSystemState = 0.10
	weightPhysics     = 0.10
)

// 算法评分超过该阈值即视为"触发"（与权重无关）
const triggerThreshold = 0.5

// 置信度分类阈值（严格大于，从高到低判断）
const (
	confidenceAutoRemove    = 90.0
	confidenceFalsePositive = 70.0
	confidenceReview        = 50.0
)

// Detector 误报检测器
// 七个独立启发式算法加权平均出 0-100 的置信度；
// 全部算法都是 (event, context) 的纯函数，检测器自身无可变状态，
// 可以按需构造或注入，不依赖全局单例
type Detector struct {
	logger *zap.Logger
}

// NewDetector 创建检测器
func NewDetector(logger *zap.Logger) *Detector {
	return &Detector{
		logger: logger,
	}
}

// namedAlgorithm 参与加权的算法条目
type namedAlgorithm struct {
	name   string
	weight float64
	run    func(event *models.PQEvent, ctx *models.DetectionContext) models.HeuristicResult
}

// algorithms 七个算法的固定注册表
func (d *Detector) algorithms() []namedAlgorithm {
	return []namedAlgorithm{
		{name: "duration_analysis", weight: weightDuration, run: d.checkDuration},
		{name: "magnitude_analysis", weight: weightMagnitude, run: d.checkMagnitude},
		{name: "frequency_pattern", weight: weightFrequency, run: d.checkFrequencyPattern},
		{name: "waveform_quality", weight: weightWaveform, run: d.checkWaveformQuality},
		{name: "temporal_correlation", weight: weightTemporal, run: d.checkTemporalCorrelation},
		{name: "system_state", weight: weightSystemState, run: d.checkSystemState},
		{name: "physics_consistency", weight: weightPhysics, run: d.checkPhysicsConsistency},
	}
}

// DetectFalseEvents 对单个事件运行全部算法并加权合成置信度
// confidence = 100 × Σ(score_i × weight_i) / Σ(weight_i)
// 算法 score > 0.5 即触发（其原因和算法名进入结果），与权重无关
func (d *Detector) DetectFalseEvents(event *models.PQEvent, ctx *models.DetectionContext) models.DetectionResult {
	if ctx == nil {
		ctx = &models.DetectionContext{}
	}

	result := models.DetectionResult{
		EventID:        event.EventID,
		Reasons:        []string{},
		TriggeredRules: []string{},
	}

	var weightedSum, weightTotal float64
	for _, algo := range d.algorithms() {
		hr := algo.run(event, ctx)
		weightedSum += hr.Score * algo.weight
		weightTotal += algo.weight

		if hr.Score > triggerThreshold {
			result.TriggeredRules = append(result.TriggeredRules, algo.name)
			result.Reasons = append(result.Reasons, hr.Reasons...)
		}
	}

	result.Confidence = 100 * weightedSum / weightTotal
	result.IsFalsePositive = result.Confidence > confidenceFalsePositive
	result.RecommendedAction = recommendedAction(result.Confidence)

	d.logger.Debug("False event detection completed",
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.Float64("confidence", result.Confidence),
		zap.Bool("is_false_positive", result.IsFalsePositive),
		zap.Strings("triggered", result.TriggeredRules),
	)

	return result
}

// recommendedAction 按置信度从高到低映射推荐动作（阈值严格大于）
func recommendedAction(confidence float64) string {
	switch {
	case confidence > confidenceAutoRemove:
		return models.ActionAutoRemove
	case confidence > confidenceFalsePositive:
		return models.ActionFlag
	case confidence > confidenceReview:
		return models.ActionReview
	default:
		return models.ActionIgnore
	}
}
