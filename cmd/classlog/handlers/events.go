// Package handlers provides the REST surface consumed by the UI shell.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	apperrors "github.com/yctsai/classlog/backend/internal/errors"
	"github.com/yctsai/classlog/backend/internal/models"
	syncengine "github.com/yctsai/classlog/backend/internal/sync"
)

// EventsHandler exposes event logging and the recent-activity view.
type EventsHandler struct {
	engine *syncengine.Engine
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(engine *syncengine.Engine) *EventsHandler {
	return &EventsHandler{engine: engine}
}

// createEventRequest is the body of POST /api/events.
type createEventRequest struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	Kind        string `json:"kind"`
	Category    string `json:"category"`
	Note        string `json:"note"`
}

// Create handles POST /api/events.
// The event is accepted the moment it is durably stored; delivery state is
// reported per record, never as a synchronous failure.
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, apperrors.ErrInvalid, "invalid request body")
		return
	}

	rec, err := h.engine.LogEvent(r.Context(), req.StudentID, req.StudentName,
		models.EventKind(req.Kind), req.Category, req.Note)
	if err != nil {
		switch {
		case apperrors.Is(err, apperrors.ErrValidation):
			writeError(w, http.StatusBadRequest, apperrors.ErrValidation, err.Error())
		case apperrors.Is(err, apperrors.ErrPersistence):
			// The event was NOT logged; the shell must prompt the user to
			// retry the action itself.
			writeError(w, http.StatusInsufficientStorage, apperrors.ErrPersistence,
				"event could not be stored, please retry")
		default:
			writeError(w, http.StatusInternalServerError, apperrors.CodeOf(err), "failed to log event")
		}
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// Recent handles GET /api/events/recent?limit=n[&student_id=...].
// Records are returned most recent first, each carrying its delivered flag
// for the synced/pending indicator.
func (h *EventsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, apperrors.ErrInvalid, "limit must be a positive integer")
			return
		}
		limit = n
	}

	var (
		records []*models.EventRecord
		err     error
	)
	if studentID := r.URL.Query().Get("student_id"); studentID != "" {
		records, err = h.engine.RecentByStudent(studentID, limit)
	} else {
		records, err = h.engine.Recent(limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, apperrors.ErrDatabase, "failed to read events")
		return
	}

	if records == nil {
		records = []*models.EventRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": records,
		"count":  len(records),
	})
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body carrying the shell-facing error code.
func writeError(w http.ResponseWriter, status int, code apperrors.ErrorCode, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": message,
		"code":  string(code),
	})
}
