package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"pqmap-analyzer/internal/service"
)

// GroupingHandler 母/子事件分组相关接口
type GroupingHandler struct {
	svc    *service.AnalyzerService
	logger *zap.Logger
}

func NewGroupingHandler(svc *service.AnalyzerService, logger *zap.Logger) *GroupingHandler {
	return &GroupingHandler{svc: svc, logger: logger}
}

type eventIDsRequest struct {
	EventIDs []string `json:"event_ids"`
}

type timeRangeRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type childrenRequest struct {
	ChildEventIDs []string `json:"child_event_ids"`
}

// Validate 校验一组事件是否满足分组前提（不落库）
func (h *GroupingHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req eventIDsRequest
	if err := readBodyJSON(r, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}

	events, err := h.svc.Events().FetchEventsByIDs(r.Context(), req.EventIDs)
	if err != nil {
		h.logger.Error("Failed to fetch events for validation", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("failed to fetch events"))
		return
	}
	if len(events) != len(req.EventIDs) {
		writeJSON(w, http.StatusOK, Fail("some events not found"))
		return
	}

	writeJSON(w, http.StatusOK, Ok(h.svc.Grouping().CanGroupEvents(events)))
}

// Automatic 对时间段内的候选事件执行自动分组（默认最近 24 小时）
func (h *GroupingHandler) Automatic(w http.ResponseWriter, r *http.Request) {
	var req timeRangeRequest
	if err := readBodyJSON(r, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}

	now := time.Now().UTC()
	to, err := parseTimeParam(req.To, now)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid 'to' timestamp"))
		return
	}
	from, err := parseTimeParam(req.From, to.Add(-24*time.Hour))
	if err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid 'from' timestamp"))
		return
	}

	results, err := h.svc.RunAutomaticGrouping(r.Context(), from, to)
	if err != nil {
		h.logger.Error("Automatic grouping failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("automatic grouping failed"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(results))
}

// Manual 手动分组：首个事件为母事件
func (h *GroupingHandler) Manual(w http.ResponseWriter, r *http.Request) {
	var req eventIDsRequest
	if err := readBodyJSON(r, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}

	result, err := h.svc.Grouping().PerformManualGrouping(r.Context(), req.EventIDs)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// AddChildren 向已有母事件追加子事件
func (h *GroupingHandler) AddChildren(w http.ResponseWriter, r *http.Request, motherEventID string) {
	var req childrenRequest
	if err := readBodyJSON(r, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}

	ok := h.svc.Grouping().AddChildrenToMotherEvent(r.Context(), motherEventID, req.ChildEventIDs)
	writeJSON(w, http.StatusOK, Ok(map[string]any{"success": ok}))
}

// Ungroup 解散整个事件组
func (h *GroupingHandler) Ungroup(w http.ResponseWriter, r *http.Request, motherEventID string) {
	ok := h.svc.Grouping().UngroupEvents(r.Context(), motherEventID)
	writeJSON(w, http.StatusOK, Ok(map[string]any{"success": ok}))
}

// UngroupSpecific 从组中摘除指定子事件（可分组类型会被提升为母事件）
func (h *GroupingHandler) UngroupSpecific(w http.ResponseWriter, r *http.Request) {
	var req eventIDsRequest
	if err := readBodyJSON(r, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}

	ok := h.svc.Grouping().UngroupSpecificEvents(r.Context(), req.EventIDs)
	writeJSON(w, http.StatusOK, Ok(map[string]any{"success": ok}))
}

// Statistics 分组总体统计
func (h *GroupingHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Grouping().GroupStatistics(r.Context())
	if err != nil {
		h.logger.Error("Failed to compute group statistics", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("failed to compute statistics"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(stats))
}
