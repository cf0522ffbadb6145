package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterGroupingRoutes 注册分组相关路由
func (r *Router) RegisterGroupingRoutes(g *GroupingHandler) {
	r.Handle("/pq/api/v1/groups/validate", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		g.Validate(w, req)
	})

	r.Handle("/pq/api/v1/groups/automatic", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		g.Automatic(w, req)
	})

	r.Handle("/pq/api/v1/groups/statistics", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		g.Statistics(w, req)
	})

	r.Handle("/pq/api/v1/groups/ungroup-events", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		g.UngroupSpecific(w, req)
	})

	// manual grouping
	r.Handle("/pq/api/v1/groups", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		g.Manual(w, req)
	})

	// groups/{motherId} 与 groups/{motherId}/children
	r.Handle("/pq/api/v1/groups/", func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, "/pq/api/v1/groups/")
		switch {
		case strings.HasSuffix(rest, "/children"):
			motherID := strings.TrimSuffix(rest, "/children")
			if motherID == "" || strings.Contains(motherID, "/") {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			if req.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			g.AddChildren(w, req, motherID)
		case rest != "" && !strings.Contains(rest, "/"):
			if req.Method != http.MethodDelete {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			g.Ungroup(w, req, rest)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

// RegisterDetectionRoutes 注册误报检测路由
func (r *Router) RegisterDetectionRoutes(d *DetectionHandler) {
	r.Handle("/pq/api/v1/detection/annotate", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		d.Annotate(w, req)
	})

	// detection/{eventId}
	r.Handle("/pq/api/v1/detection/", func(w http.ResponseWriter, req *http.Request) {
		eventID := strings.TrimPrefix(req.URL.Path, "/pq/api/v1/detection/")
		if eventID == "" || strings.Contains(eventID, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		d.Detect(w, req, eventID)
	})

	// events/{eventId}/false-mark
	r.Handle("/pq/api/v1/events/", func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, "/pq/api/v1/events/")
		if !strings.HasSuffix(rest, "/false-mark") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		eventID := strings.TrimSuffix(rest, "/false-mark")
		if eventID == "" || strings.Contains(eventID, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		d.MarkFalse(w, req, eventID)
	})
}

// RegisterRuleRoutes 注册规则管理路由
func (r *Router) RegisterRuleRoutes(rh *RuleHandler, d *DetectionHandler) {
	r.Handle("/pq/api/v1/rules", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			rh.List(w, req)
		case http.MethodPost:
			rh.Create(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	r.Handle("/pq/api/v1/rules/performance", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		d.RulePerformance(w, req)
	})

	// rules/{id}
	r.Handle("/pq/api/v1/rules/", func(w http.ResponseWriter, req *http.Request) {
		ruleID := strings.TrimPrefix(req.URL.Path, "/pq/api/v1/rules/")
		if ruleID == "" || strings.Contains(ruleID, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch req.Method {
		case http.MethodGet:
			rh.Get(w, req, ruleID)
		case http.MethodPut:
			rh.Update(w, req, ruleID)
		case http.MethodDelete:
			rh.Delete(w, req, ruleID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

// RegisterHealthRoutes 健康检查
func (r *Router) RegisterHealthRoutes() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, Ok(map[string]any{"status": "ok"}))
	})
}
