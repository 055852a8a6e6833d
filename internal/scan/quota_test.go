package scan

import (
	"context"
	"testing"

	"github.com/halalscan/halalscan/internal/db"
	"github.com/halalscan/halalscan/internal/store"
)

func testProfile(t *testing.T) *store.Profile {
	t.Helper()
	database := db.NewTestDB(t)
	return &store.Profile{DB: database, DeviceID: "dev-1"}
}

func TestQuotaFreeLimit(t *testing.T) {
	profile := testProfile(t)
	ctx := context.Background()

	tracker, err := NewQuotaTracker(ctx, profile)
	if err != nil {
		t.Fatalf("NewQuotaTracker: %v", err)
	}

	for i := 0; i < FreeScansLimit; i++ {
		if !tracker.CanScan() {
			t.Fatalf("expected scan %d to be allowed", i+1)
		}
		if err := tracker.RecordScan(ctx); err != nil {
			t.Fatalf("RecordScan: %v", err)
		}
	}

	if tracker.CanScan() {
		t.Error("expected scans blocked after the free limit")
	}
	if tracker.Remaining() != 0 {
		t.Errorf("expected 0 remaining, got %d", tracker.Remaining())
	}
}

func TestQuotaPremiumBypassesLimit(t *testing.T) {
	profile := testProfile(t)
	ctx := context.Background()

	tracker, _ := NewQuotaTracker(ctx, profile)
	if err := tracker.GrantEntitlement(ctx); err != nil {
		t.Fatalf("GrantEntitlement: %v", err)
	}

	for i := 0; i < FreeScansLimit*3; i++ {
		if !tracker.CanScan() {
			t.Fatalf("expected premium scan %d to be allowed", i+1)
		}
		tracker.RecordScan(ctx)
	}

	// Premium scans must not consume the free counter.
	if count, _ := profile.ScanCount(ctx); count != 0 {
		t.Errorf("expected persisted scan count 0 for premium device, got %d", count)
	}
}

func TestQuotaGrantIsIdempotent(t *testing.T) {
	profile := testProfile(t)
	ctx := context.Background()

	tracker, _ := NewQuotaTracker(ctx, profile)
	tracker.GrantEntitlement(ctx)
	if err := tracker.GrantEntitlement(ctx); err != nil {
		t.Fatalf("second GrantEntitlement: %v", err)
	}
	if !tracker.Premium() {
		t.Error("expected premium after grant")
	}
}

func TestQuotaSurvivesRehydration(t *testing.T) {
	profile := testProfile(t)
	ctx := context.Background()

	tracker, _ := NewQuotaTracker(ctx, profile)
	tracker.RecordScan(ctx)
	tracker.RecordScan(ctx)

	reloaded, err := NewQuotaTracker(ctx, profile)
	if err != nil {
		t.Fatalf("NewQuotaTracker (reload): %v", err)
	}
	if reloaded.Remaining() != FreeScansLimit-2 {
		t.Errorf("expected %d remaining after reload, got %d", FreeScansLimit-2, reloaded.Remaining())
	}
}

func TestQuotaRecordScanSurvivesPersistFailure(t *testing.T) {
	database := db.NewTestDB(t)
	profile := &store.Profile{DB: database, DeviceID: "dev-1"}
	ctx := context.Background()

	tracker, _ := NewQuotaTracker(ctx, profile)

	database.Close()

	err := tracker.RecordScan(ctx)
	if err == nil {
		t.Fatal("expected a warning when the store is unavailable")
	}
	// The count still advances in memory.
	if tracker.Remaining() != FreeScansLimit-1 {
		t.Errorf("expected %d remaining despite persist failure, got %d",
			FreeScansLimit-1, tracker.Remaining())
	}
}
