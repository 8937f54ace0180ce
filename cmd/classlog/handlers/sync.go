// Package handlers provides the REST surface consumed by the UI shell.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/yctsai/classlog/backend/internal/connectivity"
	apperrors "github.com/yctsai/classlog/backend/internal/errors"
	syncengine "github.com/yctsai/classlog/backend/internal/sync"
)

// SyncHandler exposes reconciliation status, manual retry, and the
// connectivity-signal ingress fed by the platform shell.
type SyncHandler struct {
	engine  *syncengine.Engine
	monitor *connectivity.Monitor
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(engine *syncengine.Engine, monitor *connectivity.Monitor) *SyncHandler {
	return &SyncHandler{engine: engine, monitor: monitor}
}

// Status handles GET /api/sync/status.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var lastReconcile *int64
	if t := h.engine.LastReconcile(); t != nil {
		unix := t.Unix()
		lastReconcile = &unix
	}
	var lastError string
	if err := h.engine.LastError(); err != nil {
		lastError = err.Error()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         string(h.engine.Status()),
		"online":         h.monitor.IsOnline(),
		"pending":        h.engine.PendingCount(),
		"last_reconcile": lastReconcile,
		"last_error":     lastError,
	})
}

// Reconcile handles POST /api/sync/reconcile, the manual retry.
func (h *SyncHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	result, err := h.engine.Reconcile(ctx)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrReconcileInProgress) {
			writeError(w, http.StatusConflict, apperrors.ErrReconcileInProgress,
				"a reconciliation pass is already running")
			return
		}
		writeError(w, http.StatusInternalServerError, apperrors.CodeOf(err), "reconciliation failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// connectivityRequest is the body of POST /api/connectivity.
type connectivityRequest struct {
	Online *bool `json:"online"`
}

// Connectivity handles POST /api/connectivity. The platform shell reports
// reachability changes here; an offline-to-online transition triggers one
// reconciliation pass before this handler returns.
func (h *SyncHandler) Connectivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req connectivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Online == nil {
		writeError(w, http.StatusBadRequest, apperrors.ErrInvalid, `body must be {"online": true|false}`)
		return
	}

	h.monitor.SetOnline(*req.Online)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"online": h.monitor.IsOnline(),
	})
}
