package scan

import (
	"context"
	"fmt"
	"sync"

	"github.com/halalscan/halalscan/internal/store"
)

// FreeScansLimit is how many scans a non-premium device gets.
const FreeScansLimit = 3

// QuotaTracker counts free scans against the limit and records the premium
// entitlement. In-memory state is authoritative during a session; every
// change is written through to the profile store, and a failed write is
// returned as a warning rather than rolling the change back.
type QuotaTracker struct {
	mu      sync.Mutex
	profile *store.Profile
	premium bool
	count   int
}

// NewQuotaTracker rehydrates a tracker from the device's persisted state.
func NewQuotaTracker(ctx context.Context, profile *store.Profile) (*QuotaTracker, error) {
	premium, err := profile.Premium(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading premium flag: %w", err)
	}
	count, err := profile.ScanCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading scan count: %w", err)
	}
	return &QuotaTracker{profile: profile, premium: premium, count: count}, nil
}

// CanScan reports whether another scan is permitted.
func (t *QuotaTracker) CanScan() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.premium || t.count < FreeScansLimit
}

// RecordScan counts one completed scan. Premium devices are not counted.
// A non-nil return means the new counter could not be persisted; the
// in-memory counter is advanced regardless.
func (t *QuotaTracker) RecordScan(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.premium {
		return nil
	}

	t.count++
	if err := t.profile.SetScanCount(ctx, t.count); err != nil {
		return fmt.Errorf("persisting scan count: %w", err)
	}
	return nil
}

// GrantEntitlement marks the device premium. Idempotent; there is no
// downgrade path. A non-nil return means the flag could not be persisted.
func (t *QuotaTracker) GrantEntitlement(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.premium {
		return nil
	}

	t.premium = true
	if err := t.profile.SetPremium(ctx, true); err != nil {
		return fmt.Errorf("persisting premium flag: %w", err)
	}
	return nil
}

// Premium reports the entitlement state.
func (t *QuotaTracker) Premium() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.premium
}

// Remaining returns how many free scans are left, zero when exhausted.
// Premium devices always report the full limit.
func (t *QuotaTracker) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.premium {
		return FreeScansLimit
	}
	if t.count >= FreeScansLimit {
		return 0
	}
	return FreeScansLimit - t.count
}
