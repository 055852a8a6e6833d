package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/halalscan/halalscan/internal/model"
	"github.com/halalscan/halalscan/internal/store"
)

// HistoryLimit caps how many scans are kept, newest first.
const HistoryLimit = 30

// HistoryManager keeps a device's scan history. The in-memory list is the
// source of truth; every mutation is written through to the profile store as
// one JSON document, and a failed write is surfaced as a warning without
// rolling the list back.
type HistoryManager struct {
	mu      sync.Mutex
	profile *store.Profile
	items   []model.ScanHistoryItem
	lastID  int64
}

// NewHistoryManager loads the persisted history for the device. A malformed
// document is logged and replaced with an empty list rather than failing
// startup; only a store read error is fatal.
func NewHistoryManager(ctx context.Context, profile *store.Profile) (*HistoryManager, error) {
	m := &HistoryManager{profile: profile}

	raw, err := profile.HistoryJSON(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	if raw == "" {
		return m, nil
	}

	items, err := decodeHistory(raw)
	if err != nil {
		slog.Warn("discarding malformed scan history", "device", profile.DeviceID, "error", err)
		return m, nil
	}
	if len(items) > HistoryLimit {
		items = items[:HistoryLimit]
	}
	m.items = items
	return m, nil
}

// Items returns the history, newest first.
func (m *HistoryManager) Items() []model.ScanHistoryItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.ScanHistoryItem, len(m.items))
	copy(out, m.items)
	return out
}

// Get returns the entry with the given id.
func (m *HistoryManager) Get(id string) (model.ScanHistoryItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, item := range m.items {
		if item.ID == id {
			return item, true
		}
	}
	return model.ScanHistoryItem{}, false
}

// Append records a completed scan at the head of the list, trimming to
// HistoryLimit. If persisting fails it retries once with the new entry's
// thumbnail stripped; if that also fails the entry stays in memory and the
// error is returned as a warning.
func (m *HistoryManager) Append(ctx context.Context, result model.ScanResult, thumbnail []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := model.ScanHistoryItem{
		ID:        m.nextIDLocked(),
		Date:      time.Now().UnixMilli(),
		Result:    result,
		Thumbnail: thumbnail,
	}

	updated := make([]model.ScanHistoryItem, 0, len(m.items)+1)
	updated = append(updated, item)
	updated = append(updated, m.items...)
	if len(updated) > HistoryLimit {
		updated = updated[:HistoryLimit]
	}
	m.items = updated

	if err := m.persistLocked(ctx); err == nil {
		return nil
	} else if len(thumbnail) == 0 {
		return fmt.Errorf("persisting history: %w", err)
	}

	// Thumbnails dominate the document size; retry once without the new one.
	m.items[0].Thumbnail = nil
	if err := m.persistLocked(ctx); err != nil {
		return fmt.Errorf("persisting history without thumbnail: %w", err)
	}
	return nil
}

// Clear removes every entry.
func (m *HistoryManager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = nil
	if err := m.persistLocked(ctx); err != nil {
		return fmt.Errorf("persisting cleared history: %w", err)
	}
	return nil
}

func (m *HistoryManager) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(m.items)
	if err != nil {
		return err
	}
	return m.profile.SetHistoryJSON(ctx, string(data))
}

// nextIDLocked derives an id from the wall clock, nudged forward so two
// appends in the same millisecond stay distinct.
func (m *HistoryManager) nextIDLocked() string {
	now := time.Now().UnixMilli()
	if now <= m.lastID {
		now = m.lastID + 1
	}
	m.lastID = now
	return strconv.FormatInt(now, 10)
}

type storedResult struct {
	Status              model.HalalStatus `json:"status"`
	Reason              string            `json:"reason"`
	IngredientsDetected []json.RawMessage `json:"ingredientsDetected"`
	Confidence          int               `json:"confidence"`
}

type storedItem struct {
	ID        string       `json:"id"`
	Date      int64        `json:"date"`
	Result    storedResult `json:"result"`
	Thumbnail []byte       `json:"thumbnail"`
}

// decodeHistory reads a persisted history document. Older documents stored
// ingredients as bare name strings; those are upgraded to detail records with
// a halal status, since back then only halal ingredient names were recorded.
func decodeHistory(raw string) ([]model.ScanHistoryItem, error) {
	var stored []storedItem
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, err
	}

	items := make([]model.ScanHistoryItem, 0, len(stored))
	for _, s := range stored {
		item := model.ScanHistoryItem{
			ID:        s.ID,
			Date:      s.Date,
			Thumbnail: s.Thumbnail,
			Result: model.ScanResult{
				Status:     s.Result.Status,
				Reason:     s.Result.Reason,
				Confidence: s.Result.Confidence,
			},
		}

		for _, raw := range s.Result.IngredientsDetected {
			var name string
			if err := json.Unmarshal(raw, &name); err == nil {
				item.Result.IngredientsDetected = append(item.Result.IngredientsDetected,
					model.IngredientDetail{Name: name, Status: model.StatusHalal})
				continue
			}

			var detail model.IngredientDetail
			if err := json.Unmarshal(raw, &detail); err != nil {
				return nil, fmt.Errorf("unrecognized ingredient encoding: %w", err)
			}
			item.Result.IngredientsDetected = append(item.Result.IngredientsDetected, detail)
		}

		items = append(items, item)
	}
	return items, nil
}
