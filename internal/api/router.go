package api

import (
	"database/sql"
	"net/http"

	"github.com/halalscan/halalscan/internal/classifier"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string, client classifier.Client) http.Handler {
	mux := http.NewServeMux()

	sessions := NewSessionManager(db, client)

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	devicesHandler := &DevicesHandler{DB: db, JWTSecret: jwtSecret, Sessions: sessions}
	scansHandler := &ScansHandler{Sessions: sessions}
	historyHandler := &HistoryHandler{Sessions: sessions}
	profileHandler := &ProfileHandler{DB: db, Sessions: sessions}

	authMW := AuthMiddleware(jwtSecret)
	device := func(h http.HandlerFunc) http.Handler { return authMW(RequireDevice(h)) }
	admin := func(h http.HandlerFunc) http.Handler { return authMW(RequireAdmin(h)) }

	// Public: device registration and admin login.
	mux.HandleFunc("POST /api/devices", devicesHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Admin.
	mux.Handle("PUT /api/auth/password", admin(authHandler.ChangePassword))
	mux.Handle("GET /api/devices/{id}", admin(devicesHandler.Get))
	mux.Handle("POST /api/devices/{id}/entitlement", admin(devicesHandler.GrantEntitlement))

	// Scan workflow (device only).
	mux.Handle("POST /api/scan/image", device(scansHandler.UploadImage))
	mux.Handle("POST /api/scan/analyze", device(scansHandler.Analyze))
	mux.Handle("GET /api/scan", device(scansHandler.GetState))
	mux.Handle("DELETE /api/scan", device(scansHandler.Reset))
	mux.Handle("GET /api/scan/export", device(scansHandler.Export))

	// History (device only).
	mux.Handle("GET /api/history", device(historyHandler.List))
	mux.Handle("GET /api/history/{id}", device(historyHandler.Get))
	mux.Handle("POST /api/history/{id}/restore", device(historyHandler.Restore))
	mux.Handle("DELETE /api/history", device(historyHandler.Clear))

	// Preferences (device only).
	mux.Handle("GET /api/profile", device(profileHandler.Get))
	mux.Handle("PUT /api/profile/theme", device(profileHandler.SetTheme))
	mux.Handle("PUT /api/profile/terms", device(profileHandler.AcceptTerms))

	return mux
}
