// admin-panel-handler.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Response represents the API response
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func (h *Handler) isAdmin(telegramID int64) bool {
	return h.cfg.AdminTelegramID == telegramID
}

// StartWebServer runs the admin panel API until the context is cancelled
func (h *Handler) StartWebServer(ctx context.Context) {
	r := mux.NewRouter()
	r.HandleFunc("/api/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/api/admin/summary", h.handleAdminSummary).Methods("GET")

	srv := &http.Server{
		Addr:         h.cfg.GetServerAddress(),
		Handler:      r,
		ReadTimeout:  h.cfg.ReadTimeout,
		WriteTimeout: h.cfg.WriteTimeout,
		IdleTimeout:  h.cfg.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			h.logger.Error("Web server shutdown failed", zap.Error(err))
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		h.logger.Error("Web server failed", zap.Error(err))
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.sendSuccessResponse(w, "ok", map[string]interface{}{
		"active_sessions": h.sessions.Active(),
	})
}

// Admin summary stats: registered users, stored records, active grants
func (h *Handler) handleAdminSummary(w http.ResponseWriter, r *http.Request) {
	var telegramID int64
	if v := r.URL.Query().Get("telegram_id"); v != "" {
		id, _ := strconv.ParseInt(v, 10, 64)
		telegramID = id
	}
	if !h.isAdmin(telegramID) {
		h.sendErrorResponse(w, "Not authorized", http.StatusForbidden)
		return
	}

	emails, records, grants, err := h.store.Counts(r.Context())
	if err != nil {
		h.logger.Error("Failed to collect summary counts", zap.Error(err))
		h.sendErrorResponse(w, "Server error", http.StatusInternalServerError)
		return
	}

	h.sendSuccessResponse(w, "Admin summary", map[string]interface{}{
		"registered_emails": emails,
		"receipt_records":   records,
		"access_grants":     grants,
		"active_sessions":   h.sessions.Active(),
	})
}

func (h *Handler) sendSuccessResponse(w http.ResponseWriter, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(Response{Success: true, Message: message, Data: data})
}

func (h *Handler) sendErrorResponse(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Success: false, Message: message})
}
