package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/halalscan/halalscan/internal/classifier"
	"github.com/halalscan/halalscan/internal/db"
	"github.com/halalscan/halalscan/internal/model"
	"github.com/halalscan/halalscan/internal/scan"
	"github.com/halalscan/halalscan/internal/store"
)

const testJWTSecret = "test-secret"

func setupTestServer(t *testing.T) (*httptest.Server, string, string) {
	t.Helper()
	database := db.NewTestDB(t)
	router := NewRouter(database, testJWTSecret, &classifier.Stub{})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	// Create admin user and log in.
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	store.CreateUser(ctx, database, "admin", string(hash), model.RoleAdmin)

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "password"})
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}
	var loginResp map[string]string
	json.NewDecoder(resp.Body).Decode(&loginResp)
	adminToken := loginResp["token"]

	// Register a device.
	body, _ = json.Marshal(map[string]string{"label": "test phone"})
	resp, err = http.Post(server.URL+"/api/devices", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("register request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("device registration failed: %d", resp.StatusCode)
	}
	var regResp map[string]string
	json.NewDecoder(resp.Body).Decode(&regResp)
	deviceToken := regResp["token"]
	if deviceToken == "" || regResp["device_id"] == "" {
		t.Fatal("empty device registration response")
	}

	return server, adminToken, deviceToken
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

func uploadImage(t *testing.T, serverURL, token string, data []byte) *http.Response {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {`form-data; name="image"; filename="scan.jpg"`},
		"Content-Type":        {"image/jpeg"},
	})
	if err != nil {
		t.Fatalf("creating multipart: %v", err)
	}
	part.Write(data)
	mw.Close()

	req, _ := http.NewRequest("POST", serverURL+"/api/scan/image", &body)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload request: %v", err)
	}
	return resp
}

func TestScanFlow(t *testing.T) {
	server, _, deviceToken := setupTestServer(t)
	img := testJPEG(t)

	resp := uploadImage(t, server.URL, deviceToken, img)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from upload, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	req, _ := authRequest("POST", server.URL+"/api/scan/analyze", deviceToken, nil)
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from analyze, got %d", resp.StatusCode)
	}
	var state struct {
		State          scan.State        `json:"state"`
		Progress       int               `json:"progress"`
		Result         *model.ScanResult `json:"result"`
		ScansRemaining int               `json:"scans_remaining"`
	}
	json.NewDecoder(resp.Body).Decode(&state)
	resp.Body.Close()

	if state.State != scan.StateSucceeded {
		t.Errorf("expected succeeded state, got %q", state.State)
	}
	if state.Result == nil || state.Result.Status != model.StatusHalal {
		t.Errorf("expected a halal verdict, got %+v", state.Result)
	}
	if state.Progress != 100 {
		t.Errorf("expected progress 100, got %d", state.Progress)
	}
	if state.ScansRemaining != scan.FreeScansLimit-1 {
		t.Errorf("expected %d scans remaining, got %d", scan.FreeScansLimit-1, state.ScansRemaining)
	}

	// The scan lands in history.
	req, _ = authRequest("GET", server.URL+"/api/history", deviceToken, nil)
	resp, _ = http.DefaultClient.Do(req)
	var items []model.ScanHistoryItem
	json.NewDecoder(resp.Body).Decode(&items)
	resp.Body.Close()
	if len(items) != 1 {
		t.Errorf("expected 1 history entry, got %d", len(items))
	}
}

func TestQuotaExhaustionAndEntitlement(t *testing.T) {
	server, adminToken, deviceToken := setupTestServer(t)
	img := testJPEG(t)

	for i := 0; i < scan.FreeScansLimit; i++ {
		resp := uploadImage(t, server.URL, deviceToken, img)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("upload %d: expected 200, got %d", i+1, resp.StatusCode)
		}
		resp.Body.Close()

		req, _ := authRequest("POST", server.URL+"/api/scan/analyze", deviceToken, nil)
		resp, _ = http.DefaultClient.Do(req)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("analyze %d: expected 200, got %d", i+1, resp.StatusCode)
		}
		resp.Body.Close()
	}

	// The free limit is spent; the next upload asks for an upgrade.
	resp := uploadImage(t, server.URL, deviceToken, img)
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("expected 402 after free limit, got %d", resp.StatusCode)
	}
	var upgrade struct {
		Upgrade bool `json:"upgrade"`
	}
	json.NewDecoder(resp.Body).Decode(&upgrade)
	resp.Body.Close()
	if !upgrade.Upgrade {
		t.Error("expected upgrade hint in the 402 response")
	}

	deviceID := deviceIDFromToken(t, deviceToken)

	req, _ := authRequest("POST", fmt.Sprintf("%s/api/devices/%s/entitlement", server.URL, deviceID), adminToken, nil)
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from entitlement grant, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Scanning works again, immediately.
	resp = uploadImage(t, server.URL, deviceToken, img)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 after entitlement, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// deviceIDFromToken decodes the JWT payload without verifying; tests only.
func deviceIDFromToken(t *testing.T, token string) string {
	t.Helper()
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatal("malformed token")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decoding token payload: %v", err)
	}
	var claims struct {
		DeviceID string `json:"device_id"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		t.Fatalf("unmarshaling claims: %v", err)
	}
	return claims.DeviceID
}

func TestUnauthenticatedAccess(t *testing.T) {
	server, _, _ := setupTestServer(t)

	resp, _ := http.Get(server.URL + "/api/scan")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated request, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRoleSeparation(t *testing.T) {
	server, adminToken, deviceToken := setupTestServer(t)

	// Admin tokens cannot drive the scan workflow.
	req, _ := authRequest("GET", server.URL+"/api/scan", adminToken, nil)
	resp, _ := http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for admin on device route, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Device tokens cannot grant entitlements.
	deviceID := deviceIDFromToken(t, deviceToken)
	req, _ = authRequest("POST", fmt.Sprintf("%s/api/devices/%s/entitlement", server.URL, deviceID), deviceToken, nil)
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for device granting entitlement, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestProfilePreferences(t *testing.T) {
	server, _, deviceToken := setupTestServer(t)

	req, _ := authRequest("GET", server.URL+"/api/profile", deviceToken, nil)
	resp, _ := http.DefaultClient.Do(req)
	var profile struct {
		Theme          string `json:"theme"`
		TermsAccepted  bool   `json:"terms_accepted"`
		ScansRemaining int    `json:"scans_remaining"`
	}
	json.NewDecoder(resp.Body).Decode(&profile)
	resp.Body.Close()

	if profile.Theme != model.ThemeLight {
		t.Errorf("expected light theme by default, got %q", profile.Theme)
	}
	if profile.TermsAccepted {
		t.Error("expected terms unaccepted by default")
	}
	if profile.ScansRemaining != scan.FreeScansLimit {
		t.Errorf("expected full quota, got %d", profile.ScansRemaining)
	}

	req, _ = authRequest("PUT", server.URL+"/api/profile/theme", deviceToken, map[string]string{"theme": model.ThemeDark})
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from theme update, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	req, _ = authRequest("PUT", server.URL+"/api/profile/theme", deviceToken, map[string]string{"theme": "neon"})
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid theme, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	req, _ = authRequest("PUT", server.URL+"/api/profile/terms", deviceToken, nil)
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from terms acceptance, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	req, _ = authRequest("GET", server.URL+"/api/profile", deviceToken, nil)
	resp, _ = http.DefaultClient.Do(req)
	json.NewDecoder(resp.Body).Decode(&profile)
	resp.Body.Close()
	if profile.Theme != model.ThemeDark || !profile.TermsAccepted {
		t.Errorf("expected preferences persisted, got %+v", profile)
	}
}

func TestExportAfterScan(t *testing.T) {
	server, _, deviceToken := setupTestServer(t)

	// No result yet.
	req, _ := authRequest("GET", server.URL+"/api/scan/export", deviceToken, nil)
	resp, _ := http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 before any scan, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = uploadImage(t, server.URL, deviceToken, testJPEG(t))
	resp.Body.Close()
	req, _ = authRequest("POST", server.URL+"/api/scan/analyze", deviceToken, nil)
	resp, _ = http.DefaultClient.Do(req)
	resp.Body.Close()

	req, _ = authRequest("GET", server.URL+"/api/scan/export", deviceToken, nil)
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from export, got %d", resp.StatusCode)
	}
	var export struct {
		Title string `json:"title"`
		Text  string `json:"text"`
	}
	json.NewDecoder(resp.Body).Decode(&export)
	resp.Body.Close()

	if export.Title == "" || export.Text == "" {
		t.Errorf("expected a share payload, got %+v", export)
	}
	if !bytes.Contains([]byte(export.Text), []byte("Halal")) {
		t.Errorf("expected the verdict in the share text:\n%s", export.Text)
	}
}

func TestHistoryRestore(t *testing.T) {
	server, _, deviceToken := setupTestServer(t)

	resp := uploadImage(t, server.URL, deviceToken, testJPEG(t))
	resp.Body.Close()
	req, _ := authRequest("POST", server.URL+"/api/scan/analyze", deviceToken, nil)
	resp, _ = http.DefaultClient.Do(req)
	resp.Body.Close()

	req, _ = authRequest("GET", server.URL+"/api/history", deviceToken, nil)
	resp, _ = http.DefaultClient.Do(req)
	var items []model.ScanHistoryItem
	json.NewDecoder(resp.Body).Decode(&items)
	resp.Body.Close()
	if len(items) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(items))
	}

	// Reset, then restore the past scan.
	req, _ = authRequest("DELETE", server.URL+"/api/scan", deviceToken, nil)
	resp, _ = http.DefaultClient.Do(req)
	resp.Body.Close()

	req, _ = authRequest("POST", server.URL+"/api/history/"+items[0].ID+"/restore", deviceToken, nil)
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from restore, got %d", resp.StatusCode)
	}
	var state struct {
		State  scan.State        `json:"state"`
		Result *model.ScanResult `json:"result"`
	}
	json.NewDecoder(resp.Body).Decode(&state)
	resp.Body.Close()

	if state.State != scan.StateSucceeded || state.Result == nil {
		t.Errorf("expected restored verdict, got %+v", state)
	}

	req, _ = authRequest("POST", server.URL+"/api/history/nope/restore", deviceToken, nil)
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown entry, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}
