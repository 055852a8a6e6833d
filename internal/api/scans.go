package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/halalscan/halalscan/internal/imaging"
	"github.com/halalscan/halalscan/internal/model"
	"github.com/halalscan/halalscan/internal/scan"
)

// ScansHandler drives the scan workflow for the authenticated device.
type ScansHandler struct {
	Sessions *SessionManager
}

// stateResponse is a snapshot of the device's scan session.
type stateResponse struct {
	State          scan.State        `json:"state"`
	Progress       int               `json:"progress"`
	Result         *model.ScanResult `json:"result,omitempty"`
	Error          string            `json:"error,omitempty"`
	ReducedQuality bool              `json:"reduced_quality"`
	Premium        bool              `json:"premium"`
	ScansRemaining int               `json:"scans_remaining"`
}

type exportResponse struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	Image []byte `json:"image,omitempty"`
}

func snapshot(s *scan.Session) stateResponse {
	return stateResponse{
		State:          s.State(),
		Progress:       s.Progress(),
		Result:         s.Result(),
		Error:          s.FailureMessage(),
		ReducedQuality: s.ReducedQuality(),
		Premium:        s.Quota().Premium(),
		ScansRemaining: s.Quota().Remaining(),
	}
}

func (h *ScansHandler) session(w http.ResponseWriter, r *http.Request) *scan.Session {
	s, err := h.Sessions.Get(r.Context(), deviceID(r.Context()))
	if err != nil {
		slog.Error("loading device session", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to load device state")
		return nil
	}
	return s
}

// UploadImage handles POST /api/scan/image: stages a photo for analysis.
// A device that has used up its free scans gets 402 with an upgrade hint.
func (h *ScansHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	// Limit to 10 MB; compression happens server-side during analysis.
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	mime := header.Header.Get("Content-Type")
	if mime != "image/jpeg" && mime != "image/png" {
		jsonError(w, http.StatusBadRequest, "image must be JPEG or PNG")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to read image")
		return
	}
	if !imaging.IsSupported(data) {
		jsonError(w, http.StatusBadRequest, "image could not be decoded")
		return
	}

	switch err := s.SelectImage(data); {
	case errors.Is(err, scan.ErrQuotaExhausted):
		jsonResponse(w, http.StatusPaymentRequired, map[string]any{
			"error":   "free scan limit reached",
			"upgrade": true,
		})
		return
	case errors.Is(err, scan.ErrBusy):
		jsonError(w, http.StatusConflict, "analysis already in progress")
		return
	case err != nil:
		jsonError(w, http.StatusInternalServerError, "failed to stage image")
		return
	}

	jsonResponse(w, http.StatusOK, snapshot(s))
}

// Analyze handles POST /api/scan/analyze: runs the staged image through the
// classifier. Classification failures are session state, not HTTP errors;
// the snapshot carries the user-facing message. Progress can be polled on
// GET /api/scan while this call is in flight.
func (h *ScansHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	_, err := s.Analyze(r.Context())
	switch {
	case err == nil:
	case errors.Is(err, scan.ErrQuotaExhausted):
		jsonResponse(w, http.StatusPaymentRequired, map[string]any{
			"error":   "free scan limit reached",
			"upgrade": true,
		})
		return
	case errors.Is(err, scan.ErrNoImage):
		jsonError(w, http.StatusBadRequest, "no image selected")
		return
	case errors.Is(err, scan.ErrBusy):
		jsonError(w, http.StatusConflict, "analysis already in progress")
		return
	case errors.Is(err, scan.ErrSuperseded):
		jsonError(w, http.StatusConflict, "scan was reset during analysis")
		return
	default:
		slog.Warn("analysis failed", "device", deviceID(r.Context()), "error", err)
	}

	jsonResponse(w, http.StatusOK, snapshot(s))
}

// GetState handles GET /api/scan.
func (h *ScansHandler) GetState(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	jsonResponse(w, http.StatusOK, snapshot(s))
}

// Reset handles DELETE /api/scan: returns the session to idle, discarding
// the outcome of any in-flight analysis.
func (h *ScansHandler) Reset(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	s.Reset()
	jsonResponse(w, http.StatusOK, snapshot(s))
}

// Export handles GET /api/scan/export: renders the current verdict as a
// shareable summary with a downsized image attachment.
func (h *ScansHandler) Export(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	result := s.Result()
	if result == nil {
		jsonError(w, http.StatusNotFound, "no result to share")
		return
	}

	resp := exportResponse{
		Title: "Halal scan result",
		Text:  scan.BuildShareText(result),
	}
	if img := s.Image(); len(img) > 0 && imaging.IsSupported(img) {
		resp.Image = imaging.Compress(img, imaging.ShareMaxWidth, imaging.ShareQuality)
	}

	jsonResponse(w, http.StatusOK, resp)
}
