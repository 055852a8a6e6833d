package api

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/halalscan/halalscan/internal/classifier"
	"github.com/halalscan/halalscan/internal/scan"
	"github.com/halalscan/halalscan/internal/store"
)

// SessionManager lazily builds and caches one scan session per device.
// A device's quota, history and workflow state are loaded from the store on
// first use and live in the session for the rest of the process lifetime.
type SessionManager struct {
	mu         sync.Mutex
	db         *sql.DB
	classifier classifier.Client
	sessions   map[string]*scan.Session
}

// NewSessionManager builds a manager over the store and classifier.
func NewSessionManager(db *sql.DB, client classifier.Client) *SessionManager {
	return &SessionManager{
		db:         db,
		classifier: client,
		sessions:   make(map[string]*scan.Session),
	}
}

// Get returns the device's session, creating and rehydrating it on first use.
func (m *SessionManager) Get(ctx context.Context, deviceID string) (*scan.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := store.TouchDevice(ctx, m.db, deviceID); err != nil {
		slog.Warn("updating device last-seen", "device", deviceID, "error", err)
	}

	if s, ok := m.sessions[deviceID]; ok {
		return s, nil
	}

	profile := &store.Profile{DB: m.db, DeviceID: deviceID}
	quota, err := scan.NewQuotaTracker(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("loading quota for device %s: %w", deviceID, err)
	}
	history, err := scan.NewHistoryManager(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("loading history for device %s: %w", deviceID, err)
	}

	s := scan.NewSession(m.classifier, quota, history)
	m.sessions[deviceID] = s
	return s, nil
}
