package api

import (
	"database/sql"
	"net/http"

	"github.com/halalscan/halalscan/internal/model"
	"github.com/halalscan/halalscan/internal/scan"
	"github.com/halalscan/halalscan/internal/store"
)

// ProfileHandler serves the device's preferences and quota status.
type ProfileHandler struct {
	DB       *sql.DB
	Sessions *SessionManager
}

type profileResponse struct {
	Theme          string `json:"theme"`
	TermsAccepted  bool   `json:"terms_accepted"`
	Premium        bool   `json:"premium"`
	ScansRemaining int    `json:"scans_remaining"`
	FreeScansLimit int    `json:"free_scans_limit"`
}

type themeRequest struct {
	Theme string `json:"theme"`
}

// Get handles GET /api/profile.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile := &store.Profile{DB: h.DB, DeviceID: deviceID(r.Context())}

	theme, err := profile.Theme(r.Context())
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if theme == "" {
		theme = model.ThemeLight
	}

	terms, err := profile.TermsAccepted(r.Context())
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	session, err := h.Sessions.Get(r.Context(), deviceID(r.Context()))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to load device state")
		return
	}

	jsonResponse(w, http.StatusOK, profileResponse{
		Theme:          theme,
		TermsAccepted:  terms,
		Premium:        session.Quota().Premium(),
		ScansRemaining: session.Quota().Remaining(),
		FreeScansLimit: scan.FreeScansLimit,
	})
}

// SetTheme handles PUT /api/profile/theme.
func (h *ProfileHandler) SetTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !model.ValidTheme(req.Theme) {
		jsonError(w, http.StatusBadRequest, "theme must be light or dark")
		return
	}

	profile := &store.Profile{DB: h.DB, DeviceID: deviceID(r.Context())}
	if err := profile.SetTheme(r.Context(), req.Theme); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to save theme")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"theme": req.Theme})
}

// AcceptTerms handles PUT /api/profile/terms. One-way: there is no
// un-accepting the terms.
func (h *ProfileHandler) AcceptTerms(w http.ResponseWriter, r *http.Request) {
	profile := &store.Profile{DB: h.DB, DeviceID: deviceID(r.Context())}
	if err := profile.SetTermsAccepted(r.Context(), true); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to save terms acceptance")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]bool{"terms_accepted": true})
}
