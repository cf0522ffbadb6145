package httpapi

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pqmap-analyzer/internal/models"
	"pqmap-analyzer/internal/service"
)

// RuleHandler 误报规则管理接口
type RuleHandler struct {
	svc    *service.AnalyzerService
	logger *zap.Logger
}

func NewRuleHandler(svc *service.AnalyzerService, logger *zap.Logger) *RuleHandler {
	return &RuleHandler{svc: svc, logger: logger}
}

// List 规则列表（?active=true 时只返回启用规则）
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	onlyActive := r.URL.Query().Get("active") == "true"

	rules, err := h.svc.Rules().ListRules(r.Context(), onlyActive)
	if err != nil {
		h.logger.Error("Failed to list rules", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("failed to list rules"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(rules))
}

// Get 单条规则
func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request, ruleID string) {
	rule, err := h.svc.Rules().GetRule(r.Context(), ruleID)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(rule))
}

// Create 新建规则（rule_id 缺省时自动生成）
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var rule models.FalseEventRule
	if err := readBodyJSON(r, &rule); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}
	if rule.RuleID == "" {
		rule.RuleID = uuid.NewString()
	}

	if err := h.svc.CreateRule(r.Context(), &rule); err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(rule))
}

// Update 更新规则（路径中的 id 优先于 body）
func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request, ruleID string) {
	var rule models.FalseEventRule
	if err := readBodyJSON(r, &rule); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}
	rule.RuleID = ruleID

	if err := h.svc.UpdateRule(r.Context(), &rule); err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(rule))
}

// Delete 删除规则
func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request, ruleID string) {
	if err := h.svc.DeleteRule(r.Context(), ruleID); err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true}))
}
