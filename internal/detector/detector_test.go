package detector

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pqmap-analyzer/internal/models"
)

// 2025-03-10 是周一，2025-03-08 是周六
var (
	weekday = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	weekend = time.Date(2025, 3, 8, 14, 0, 0, 0, time.UTC)
)

func newTestDetector() *Detector {
	return NewDetector(zap.NewNop())
}

func dipEvent(durationMs, magnitude float64) *models.PQEvent {
	return &models.PQEvent{
		EventID:      "evt-test",
		EventType:    models.EventTypeVoltageDip,
		SubstationID: "SUB-A",
		Timestamp:    weekday,
		DurationMs:   durationMs,
		Magnitude:    magnitude,
	}
}

// ============================================
// 算法1：持续时间
// ============================================

func TestCheckDuration(t *testing.T) {
	d := newTestDetector()

	tests := []struct {
		name      string
		event     *models.PQEvent
		wantScore float64
	}{
		{
			name:      "typical dip duration",
			event:     dipEvent(500, 25),
			wantScore: 0,
		},
		{
			name:      "far below typical minimum",
			event:     dipEvent(0.5, 25), // 10 / 0.5 = 20 > 10
			wantScore: 0.9,
		},
		{
			name:      "moderately short",
			event:     dipEvent(3, 25), // 10 / 3 ≈ 3.3 > 2
			wantScore: 0.6,
		},
		{
			name:      "far above typical maximum",
			event:     dipEvent(700000, 25), // > 60000 × 10
			wantScore: 0.7,
		},
		{
			name: "unknown event type",
			event: &models.PQEvent{
				EventType:  "unknown_type",
				DurationMs: 0.001,
			},
			wantScore: 0,
		},
		{
			name:      "missing duration",
			event:     dipEvent(0, 25),
			wantScore: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.checkDuration(tt.event, &models.DetectionContext{})
			assert.InDelta(t, tt.wantScore, got.Score, 0.001)
			if tt.wantScore > 0 {
				assert.NotEmpty(t, got.Reasons)
			}
		})
	}
}

// ============================================
// 算法2：幅值
// ============================================

func TestCheckMagnitude(t *testing.T) {
	d := newTestDetector()

	tests := []struct {
		name      string
		event     *models.PQEvent
		wantScore float64
	}{
		{
			name:      "typical dip magnitude",
			event:     dipEvent(500, 25),
			wantScore: 0,
		},
		{
			name:      "dip below equipment impact level",
			event:     dipEvent(500, 3), // dip < 5% 特例压过比例评分
			wantScore: 0.9,
		},
		{
			name:      "swell far below typical minimum",
			event:     &models.PQEvent{EventType: models.EventTypeVoltageSwell, DurationMs: 500, Magnitude: 1.5}, // 10/1.5 > 5
			wantScore: 0.8,
		},
		{
			name:      "swell moderately low",
			event:     &models.PQEvent{EventType: models.EventTypeVoltageSwell, DurationMs: 500, Magnitude: 4}, // 10/4 = 2.5
			wantScore: 0.5,
		},
		{
			name:      "harmonic below IEEE 519 level",
			event:     &models.PQEvent{EventType: models.EventTypeHarmonic, DurationMs: 5000, Magnitude: 1.5},
			wantScore: 0.7,
		},
		{
			name:      "missing magnitude",
			event:     dipEvent(500, 0),
			wantScore: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.checkMagnitude(tt.event, &models.DetectionContext{})
			assert.InDelta(t, tt.wantScore, got.Score, 0.001)
		})
	}
}

// ============================================
// 算法3：频次模式
// ============================================

func recentEvents(n int, base *models.PQEvent) []models.PQEvent {
	events := make([]models.PQEvent, 0, n)
	for i := 0; i < n; i++ {
		e := *base
		e.EventID = fmt.Sprintf("evt-recent-%03d", i)
		e.Timestamp = base.Timestamp.Add(time.Duration(i) * time.Second)
		events = append(events, e)
	}
	return events
}

func TestCheckFrequencyPattern(t *testing.T) {
	d := newTestDetector()
	event := dipEvent(500, 25)

	t.Run("no recent events", func(t *testing.T) {
		got := d.checkFrequencyPattern(event, &models.DetectionContext{})
		assert.Zero(t, got.Score)
	})

	t.Run("excessive frequency", func(t *testing.T) {
		other := dipEvent(300, 40) // 特征不同，只计入频次
		ctx := &models.DetectionContext{RecentEvents: recentEvents(51, other)}
		got := d.checkFrequencyPattern(event, ctx)
		assert.InDelta(t, 0.9, got.Score, 0.001)
	})

	t.Run("high frequency", func(t *testing.T) {
		other := dipEvent(300, 40)
		ctx := &models.DetectionContext{RecentEvents: recentEvents(21, other)}
		got := d.checkFrequencyPattern(event, ctx)
		assert.InDelta(t, 0.6, got.Score, 0.001)
	})

	t.Run("near-identical events suggest meter malfunction", func(t *testing.T) {
		clone := dipEvent(500, 25)
		ctx := &models.DetectionContext{RecentEvents: recentEvents(6, clone)}
		got := d.checkFrequencyPattern(event, ctx)
		assert.InDelta(t, 0.8, got.Score, 0.001)
		require.NotEmpty(t, got.Reasons)
		assert.Contains(t, got.Reasons[0], "meter malfunction")
	})

	t.Run("event itself is excluded", func(t *testing.T) {
		self := *event
		ctx := &models.DetectionContext{RecentEvents: []models.PQEvent{self}}
		got := d.checkFrequencyPattern(event, ctx)
		assert.Zero(t, got.Score)
	})

	t.Run("events outside the hour window are ignored", func(t *testing.T) {
		other := *dipEvent(300, 40)
		other.EventID = "evt-far"
		other.Timestamp = event.Timestamp.Add(2 * time.Hour)
		ctx := &models.DetectionContext{RecentEvents: []models.PQEvent{other}}
		got := d.checkFrequencyPattern(event, ctx)
		assert.Zero(t, got.Score)
	})
}

// ============================================
// 算法4：波形质量
// ============================================

func TestCheckWaveformQuality(t *testing.T) {
	d := newTestDetector()

	withWaveform := func(voltage []float64) *models.PQEvent {
		e := dipEvent(500, 25)
		e.WaveformData = &models.Waveform{Voltage: voltage}
		return e
	}

	t.Run("no waveform attached", func(t *testing.T) {
		got := d.checkWaveformQuality(dipEvent(500, 25), &models.DetectionContext{})
		assert.Zero(t, got.Score)
	})

	t.Run("implausible sample value", func(t *testing.T) {
		got := d.checkWaveformQuality(withWaveform([]float64{230, 950, 228}), &models.DetectionContext{})
		assert.InDelta(t, 0.8, got.Score, 0.001)
	})

	t.Run("negative sample value", func(t *testing.T) {
		got := d.checkWaveformQuality(withWaveform([]float64{230, -5, 228}), &models.DetectionContext{})
		assert.InDelta(t, 0.8, got.Score, 0.001)
	})

	t.Run("noisy waveform", func(t *testing.T) {
		got := d.checkWaveformQuality(withWaveform([]float64{10, 230, 15, 225, 5, 240}), &models.DetectionContext{})
		assert.InDelta(t, 0.6, got.Score, 0.001)
	})

	t.Run("flat waveform suggests meter freeze", func(t *testing.T) {
		flat := make([]float64, 60)
		for i := range flat {
			flat[i] = 230.0
		}
		got := d.checkWaveformQuality(withWaveform(flat), &models.DetectionContext{})
		assert.InDelta(t, 0.7, got.Score, 0.001)
		require.NotEmpty(t, got.Reasons)
		assert.Contains(t, got.Reasons[0], "meter freeze")
	})

	t.Run("plausible waveform", func(t *testing.T) {
		got := d.checkWaveformQuality(withWaveform([]float64{228, 230, 231, 229}), &models.DetectionContext{})
		assert.Zero(t, got.Score)
	})
}

// ============================================
// 算法5：时间相关性
// ============================================

func TestCheckTemporalCorrelation(t *testing.T) {
	d := newTestDetector()

	window := models.MaintenanceWindow{
		StartTime: weekday.Add(-time.Hour),
		EndTime:   weekday.Add(time.Hour),
	}

	t.Run("inside maintenance window", func(t *testing.T) {
		ctx := &models.DetectionContext{MaintenanceWindows: []models.MaintenanceWindow{window}}
		got := d.checkTemporalCorrelation(dipEvent(500, 25), ctx)
		assert.InDelta(t, 0.6, got.Score, 0.001)
	})

	t.Run("window boundary is inclusive", func(t *testing.T) {
		event := dipEvent(500, 25)
		event.Timestamp = window.EndTime
		ctx := &models.DetectionContext{MaintenanceWindows: []models.MaintenanceWindow{window}}
		got := d.checkTemporalCorrelation(event, ctx)
		assert.InDelta(t, 0.6, got.Score, 0.001)
	})

	t.Run("outside maintenance window", func(t *testing.T) {
		event := dipEvent(500, 25)
		event.Timestamp = window.EndTime.Add(time.Minute)
		ctx := &models.DetectionContext{MaintenanceWindows: []models.MaintenanceWindow{window}}
		got := d.checkTemporalCorrelation(event, ctx)
		assert.Zero(t, got.Score)
	})

	t.Run("isolated interruption", func(t *testing.T) {
		event := &models.PQEvent{
			EventID:      "evt-int",
			EventType:    models.EventTypeInterruption,
			SubstationID: "SUB-A",
			Timestamp:    weekday,
			DurationMs:   2000,
			Magnitude:    98,
		}
		got := d.checkTemporalCorrelation(event, &models.DetectionContext{})
		assert.InDelta(t, 0.5, got.Score, 0.001)
	})

	t.Run("interruption with related event", func(t *testing.T) {
		event := &models.PQEvent{
			EventID:      "evt-int",
			EventType:    models.EventTypeInterruption,
			SubstationID: "SUB-A",
			Timestamp:    weekday,
			DurationMs:   2000,
			Magnitude:    98,
		}
		related := dipEvent(500, 25)
		related.EventID = "evt-related"
		related.Timestamp = weekday.Add(2 * time.Minute)
		ctx := &models.DetectionContext{RecentEvents: []models.PQEvent{*related}}
		got := d.checkTemporalCorrelation(event, ctx)
		assert.Zero(t, got.Score)
	})
}

// ============================================
// 算法6：系统状态
// ============================================

func TestCheckSystemState(t *testing.T) {
	d := newTestDetector()

	t.Run("maintenance state", func(t *testing.T) {
		ctx := &models.DetectionContext{SystemStatus: models.SystemStatusMaintenance}
		got := d.checkSystemState(dipEvent(500, 25), ctx)
		assert.InDelta(t, 0.4, got.Score, 0.001)
	})

	t.Run("weekend dip", func(t *testing.T) {
		event := dipEvent(500, 25)
		event.Timestamp = weekend
		got := d.checkSystemState(event, &models.DetectionContext{SystemStatus: models.SystemStatusNormal})
		assert.InDelta(t, 0.3, got.Score, 0.001)
	})

	t.Run("maintenance takes precedence over weekend", func(t *testing.T) {
		event := dipEvent(500, 25)
		event.Timestamp = weekend
		ctx := &models.DetectionContext{SystemStatus: models.SystemStatusMaintenance}
		got := d.checkSystemState(event, ctx)
		assert.InDelta(t, 0.4, got.Score, 0.001)
	})

	t.Run("weekend swell is not suspicious", func(t *testing.T) {
		event := &models.PQEvent{EventType: models.EventTypeVoltageSwell, Timestamp: weekend, DurationMs: 500, Magnitude: 15}
		got := d.checkSystemState(event, &models.DetectionContext{SystemStatus: models.SystemStatusNormal})
		assert.Zero(t, got.Score)
	})

	t.Run("normal weekday", func(t *testing.T) {
		got := d.checkSystemState(dipEvent(500, 25), &models.DetectionContext{SystemStatus: models.SystemStatusNormal})
		assert.Zero(t, got.Score)
	})
}

// ============================================
// 算法7：物理自洽性
// ============================================

func TestCheckPhysicsConsistency(t *testing.T) {
	d := newTestDetector()

	t.Run("impossible dip magnitude", func(t *testing.T) {
		got := d.checkPhysicsConsistency(dipEvent(500, 120), &models.DetectionContext{})
		assert.InDelta(t, 0.9, got.Score, 0.001)
	})

	t.Run("shallow interruption", func(t *testing.T) {
		event := &models.PQEvent{EventType: models.EventTypeInterruption, DurationMs: 2000, Magnitude: 30}
		got := d.checkPhysicsConsistency(event, &models.DetectionContext{})
		assert.InDelta(t, 0.7, got.Score, 0.001)
	})

	t.Run("remaining voltage inconsistent with magnitude", func(t *testing.T) {
		rv := 40.0
		event := dipEvent(500, 30) // 期望剩余电压 ≈ 70
		event.RemainingVoltage = &rv
		got := d.checkPhysicsConsistency(event, &models.DetectionContext{})
		assert.InDelta(t, 0.5, got.Score, 0.001)
	})

	t.Run("remaining voltage within tolerance", func(t *testing.T) {
		rv := 72.0
		event := dipEvent(500, 30)
		event.RemainingVoltage = &rv
		got := d.checkPhysicsConsistency(event, &models.DetectionContext{})
		assert.Zero(t, got.Score)
	})
}

// ============================================
// 加权合成
// ============================================

func TestDetectFalseEvents_CleanEvent(t *testing.T) {
	d := newTestDetector()

	result := d.DetectFalseEvents(dipEvent(500, 25), &models.DetectionContext{
		SystemStatus: models.SystemStatusNormal,
	})

	assert.Equal(t, "evt-test", result.EventID)
	assert.Zero(t, result.Confidence)
	assert.False(t, result.IsFalsePositive)
	assert.Equal(t, models.ActionIgnore, result.RecommendedAction)
	assert.Empty(t, result.TriggeredRules)
	assert.Empty(t, result.Reasons)
}

func TestDetectFalseEvents_SuspiciousDip(t *testing.T) {
	d := newTestDetector()

	// 持续时间 0.5ms → duration 0.9；幅值 3% → magnitude 0.9；其余 0
	// confidence = 100 × (0.9×0.20 + 0.9×0.15) = 31.5
	result := d.DetectFalseEvents(dipEvent(0.5, 3), &models.DetectionContext{
		SystemStatus: models.SystemStatusNormal,
	})

	assert.InDelta(t, 31.5, result.Confidence, 0.001)
	assert.False(t, result.IsFalsePositive)
	assert.Equal(t, models.ActionIgnore, result.RecommendedAction)
	assert.Equal(t, []string{"duration_analysis", "magnitude_analysis"}, result.TriggeredRules)
	assert.NotEmpty(t, result.Reasons)
}

func TestDetectFalseEvents_NilContext(t *testing.T) {
	d := newTestDetector()

	result := d.DetectFalseEvents(dipEvent(500, 25), nil)

	assert.Zero(t, result.Confidence)
	assert.Equal(t, models.ActionIgnore, result.RecommendedAction)
}

func TestDetectFalseEvents_MoreAnomaliesRaiseConfidence(t *testing.T) {
	d := newTestDetector()
	ctx := &models.DetectionContext{SystemStatus: models.SystemStatusNormal}

	mild := d.DetectFalseEvents(dipEvent(3, 25), ctx)
	severe := d.DetectFalseEvents(dipEvent(0.5, 3), ctx)

	assert.Greater(t, severe.Confidence, mild.Confidence)
}

func TestRecommendedAction_Thresholds(t *testing.T) {
	tests := []struct {
		confidence float64
		want       string
	}{
		{confidence: 95, want: models.ActionAutoRemove},
		{confidence: 90, want: models.ActionFlag}, // 阈值严格大于
		{confidence: 75, want: models.ActionFlag},
		{confidence: 70, want: models.ActionReview},
		{confidence: 55, want: models.ActionReview},
		{confidence: 50, want: models.ActionIgnore},
		{confidence: 0, want: models.ActionIgnore},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, recommendedAction(tt.confidence), "confidence=%v", tt.confidence)
	}
}
