package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/halalscan/halalscan/internal/auth"
	"github.com/halalscan/halalscan/internal/store"
)

// DevicesHandler handles device registration and entitlement management.
type DevicesHandler struct {
	DB        *sql.DB
	JWTSecret string
	Sessions  *SessionManager
}

type registerRequest struct {
	Label string `json:"label"`
}

type registerResponse struct {
	DeviceID string `json:"device_id"`
	Token    string `json:"token"`
}

// Register handles POST /api/devices. It is the only public device endpoint:
// a device calls it once on first launch and keeps the returned token.
func (h *DevicesHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	device, err := store.CreateDevice(r.Context(), h.DB, req.Label)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to register device")
		return
	}

	token, err := auth.GenerateDeviceToken(h.JWTSecret, device.ID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	slog.Info("device registered", "device", device.ID, "label", device.Label)
	jsonResponse(w, http.StatusCreated, registerResponse{DeviceID: device.ID, Token: token})
}

// Get handles GET /api/devices/{id} (admin only).
func (h *DevicesHandler) Get(w http.ResponseWriter, r *http.Request) {
	device, err := store.GetDevice(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if device == nil {
		jsonError(w, http.StatusNotFound, "unknown device")
		return
	}
	jsonResponse(w, http.StatusOK, device)
}

// GrantEntitlement handles POST /api/devices/{id}/entitlement (admin only).
// The grant goes through the session manager so a live session sees it
// immediately, not just on the next restart.
func (h *DevicesHandler) GrantEntitlement(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	device, err := store.GetDevice(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if device == nil {
		jsonError(w, http.StatusNotFound, "unknown device")
		return
	}

	session, err := h.Sessions.Get(r.Context(), id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to load device state")
		return
	}

	if err := session.Quota().GrantEntitlement(r.Context()); err != nil {
		// The entitlement is active in memory; only durability failed.
		slog.Warn("entitlement grant not persisted", "device", id, "error", err)
	}

	claims := GetClaims(r.Context())
	slog.Info("entitlement granted", "device", id, "by", claims.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "entitlement granted"})
}
