package detector

import (
	"pqmap-analyzer/internal/models"
)

// 静态知识库：各事件类型的典型物理包络
// CommonCauses / FalsePositiveIndicators 仅作说明文档，算法不逐条评估
var eventSignatures = map[string]models.EventSignature{
	models.EventTypeVoltageDip: {
		EventType:        models.EventTypeVoltageDip,
		TypicalDuration:  models.RangeMs{Min: 10, Max: 60000},
		TypicalMagnitude: models.RangePct{Min: 10, Max: 90},
		CommonCauses: []string{
			"短路故障", "大电机启动", "变压器投切", "线路重合闸",
		},
		FalsePositiveIndicators: []string{
			"幅值过小不足以影响设备", "持续时间远离典型范围", "同厂站短时间高频重复",
		},
	},
	models.EventTypeVoltageSwell: {
		EventType:        models.EventTypeVoltageSwell,
		TypicalDuration:  models.RangeMs{Min: 10, Max: 60000},
		TypicalMagnitude: models.RangePct{Min: 10, Max: 80},
		CommonCauses: []string{
			"单相接地故障引起健全相升高", "大负荷切除", "电容器组投入",
		},
		FalsePositiveIndicators: []string{
			"波形平直（表计冻结）", "与检修窗口重合",
		},
	},
	models.EventTypeInterruption: {
		EventType:        models.EventTypeInterruption,
		TypicalDuration:  models.RangeMs{Min: 500, Max: 3600000},
		TypicalMagnitude: models.RangePct{Min: 90, Max: 100},
		CommonCauses: []string{
			"断路器跳闸", "熔断器熔断", "计划停电",
		},
		FalsePositiveIndicators: []string{
			"缺少同厂站关联事件", "幅值远低于全失压水平",
		},
	},
	models.EventTypeHarmonic: {
		EventType:        models.EventTypeHarmonic,
		TypicalDuration:  models.RangeMs{Min: 1000, Max: 3600000},
		TypicalMagnitude: models.RangePct{Min: 2, Max: 20},
		CommonCauses: []string{
			"电力电子负荷", "变频器", "电弧炉",
		},
		FalsePositiveIndicators: []string{
			"THD 低于 IEEE 519 关注水平", "周末轻载时段误触发",
		},
	},
	models.EventTypeTransient: {
		EventType:        models.EventTypeTransient,
		TypicalDuration:  models.RangeMs{Min: 0.05, Max: 50},
		TypicalMagnitude: models.RangePct{Min: 10, Max: 400},
		CommonCauses: []string{
			"雷击", "电容器投切", "感性负荷开断",
		},
		FalsePositiveIndicators: []string{
			"采样值物理上不可能", "计量噪声",
		},
	},
	models.EventTypeFlicker: {
		EventType:        models.EventTypeFlicker,
		TypicalDuration:  models.RangeMs{Min: 1000, Max: 600000},
		TypicalMagnitude: models.RangePct{Min: 0.5, Max: 10},
		CommonCauses: []string{
			"电弧炉", "电焊机", "周期性大负荷波动",
		},
		FalsePositiveIndicators: []string{
			"近乎同一特征的事件高频重复",
		},
	},
}

// SignatureFor 查询事件类型的典型包络；未知类型返回 nil
func SignatureFor(eventType string) *models.EventSignature {
	if sig, ok := eventSignatures[eventType]; ok {
		return &sig
	}
	return nil
}
