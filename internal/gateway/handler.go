package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/koopa0/drawboard/internal/board"
)

// Handler HTTP 請求處理器
//
// 同步引擎的主要入口是 WebSocket；HTTP 只承擔
// 健康檢查與統計這類運維表面。
type Handler struct {
	registry *board.Registry
	hub      *Hub
	logger   *slog.Logger
}

// NewHandler 創建 HTTP 處理器
func NewHandler(registry *board.Registry, hub *Hub, logger *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		hub:      hub,
		logger:   logger,
	}
}

// Routes 設定路由
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	wrap := func(handler http.HandlerFunc) http.HandlerFunc {
		return h.recoverer(h.loggerMiddleware(handler))
	}

	mux.HandleFunc("GET /ws", h.hub.ServeWS)
	mux.HandleFunc("GET /health", wrap(h.health))
	mux.HandleFunc("GET /stats", wrap(h.stats))

	return mux
}

// health 健康檢查
func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	h.jsonResponse(w, map[string]any{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	}, http.StatusOK)
}

// stats 統計資訊
func (h *Handler) stats(w http.ResponseWriter, _ *http.Request) {
	stats := h.registry.Stats()
	stats["connections"] = h.hub.ConnectionCount()
	h.jsonResponse(w, stats, http.StatusOK)
}

// jsonResponse 寫入 JSON 回應
func (h *Handler) jsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("寫入回應失敗", "error", err)
	}
}

// loggerMiddleware 請求日誌中間件
func (h *Handler) loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		h.logger.Debug("HTTP 請求",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	}
}

// recoverer panic 恢復中間件
func (h *Handler) recoverer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.logger.Error("處理器 panic",
					"error", err,
					"path", r.URL.Path)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}
