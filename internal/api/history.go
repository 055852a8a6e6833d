package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/halalscan/halalscan/internal/model"
	"github.com/halalscan/halalscan/internal/scan"
)

// HistoryHandler serves the device's scan history.
type HistoryHandler struct {
	Sessions *SessionManager
}

func (h *HistoryHandler) session(w http.ResponseWriter, r *http.Request) *scan.Session {
	s, err := h.Sessions.Get(r.Context(), deviceID(r.Context()))
	if err != nil {
		slog.Error("loading device session", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to load device state")
		return nil
	}
	return s
}

// List handles GET /api/history.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	items := s.History().Items()
	if items == nil {
		items = []model.ScanHistoryItem{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Get handles GET /api/history/{id}.
func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	item, ok := s.History().Get(r.PathValue("id"))
	if !ok {
		jsonError(w, http.StatusNotFound, "history entry not found")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Restore handles POST /api/history/{id}/restore: loads a past scan back
// into the session as the current result.
func (h *HistoryHandler) Restore(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	switch err := s.LoadHistoryItem(r.PathValue("id")); {
	case errors.Is(err, scan.ErrNotFound):
		jsonError(w, http.StatusNotFound, "history entry not found")
		return
	case errors.Is(err, scan.ErrBusy):
		jsonError(w, http.StatusConflict, "analysis already in progress")
		return
	case err != nil:
		jsonError(w, http.StatusInternalServerError, "failed to restore history entry")
		return
	}

	jsonResponse(w, http.StatusOK, snapshot(s))
}

// Clear handles DELETE /api/history.
func (h *HistoryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	if err := s.History().Clear(r.Context()); err != nil {
		slog.Warn("clearing history", "device", deviceID(r.Context()), "error", err)
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "history cleared"})
}
