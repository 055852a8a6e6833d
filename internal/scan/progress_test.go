package scan

import (
	"testing"
	"time"
)

func TestProgressSetIsMonotonic(t *testing.T) {
	p := newProgressTicker()

	p.set(progressPrepared)
	p.set(progressInitial)
	if p.value() != progressPrepared {
		t.Errorf("expected %d, lower set must be ignored, got %d", progressPrepared, p.value())
	}
}

func TestProgressCreepAdvancesAndCaps(t *testing.T) {
	p := newProgressTicker()
	p.set(progressCeiling - progressStep)
	p.creep()
	defer p.stop()

	deadline := time.Now().Add(2 * time.Second)
	for p.value() < progressCeiling {
		if time.Now().After(deadline) {
			t.Fatalf("progress never reached the ceiling, stuck at %d", p.value())
		}
		time.Sleep(50 * time.Millisecond)
	}

	// Give it a few more ticks; it must not pass the ceiling.
	time.Sleep(3 * progressTick)
	if p.value() != progressCeiling {
		t.Errorf("expected progress held at %d, got %d", progressCeiling, p.value())
	}
}

func TestProgressFinishForcesDone(t *testing.T) {
	p := newProgressTicker()
	p.set(progressSent)
	p.creep()

	p.finish()
	if p.value() != progressDone {
		t.Errorf("expected %d after finish, got %d", progressDone, p.value())
	}

	// No further movement after finish.
	time.Sleep(2 * progressTick)
	if p.value() != progressDone {
		t.Errorf("expected progress frozen at %d, got %d", progressDone, p.value())
	}
}

func TestProgressStopIsIdempotent(t *testing.T) {
	p := newProgressTicker()
	p.creep()
	p.stop()
	p.stop()
}
