package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"pqmap-analyzer/internal/service"
)

// DetectionHandler 误报检测与规则标注接口
type DetectionHandler struct {
	svc    *service.AnalyzerService
	logger *zap.Logger
}

func NewDetectionHandler(svc *service.AnalyzerService, logger *zap.Logger) *DetectionHandler {
	return &DetectionHandler{svc: svc, logger: logger}
}

type markFalseRequest struct {
	FalseEvent bool   `json:"false_event"`
	Remark     string `json:"remark"`
}

// Detect 对单个事件执行误报检测（只返回结果，不写库）
func (h *DetectionHandler) Detect(w http.ResponseWriter, r *http.Request, eventID string) {
	result, err := h.svc.DetectFalseEvent(r.Context(), eventID)
	if err != nil {
		h.logger.Error("Detection failed", zap.String("event_id", eventID), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// Annotate 按启用规则标注一批事件
func (h *DetectionHandler) Annotate(w http.ResponseWriter, r *http.Request) {
	var req eventIDsRequest
	if err := readBodyJSON(r, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}

	annotated, err := h.svc.AnnotateEvents(r.Context(), req.EventIDs)
	if err != nil {
		h.logger.Error("Annotation failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("annotation failed"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(annotated))
}

// MarkFalse 人工标记/取消标记误报
func (h *DetectionHandler) MarkFalse(w http.ResponseWriter, r *http.Request, eventID string) {
	var req markFalseRequest
	if err := readBodyJSON(r, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}

	if err := h.svc.MarkFalseEvent(r.Context(), eventID, req.FalseEvent, req.Remark); err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true}))
}

// RulePerformance 规则命中与准确率统计（查询参数 from/to，RFC3339，默认最近 7 天）
func (h *DetectionHandler) RulePerformance(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	to, err := parseTimeParam(r.URL.Query().Get("to"), now)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid 'to' timestamp"))
		return
	}
	from, err := parseTimeParam(r.URL.Query().Get("from"), to.Add(-7*24*time.Hour))
	if err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid 'from' timestamp"))
		return
	}

	stats, err := h.svc.RulePerformance(r.Context(), from, to)
	if err != nil {
		h.logger.Error("Rule performance analysis failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("rule performance analysis failed"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(stats))
}
