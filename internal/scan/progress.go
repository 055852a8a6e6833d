package scan

import (
	"sync"
	"time"
)

// Progress milestones for one analysis. After the request is sent the value
// creeps toward the ceiling on a ticker and only reaches 100 on completion.
const (
	progressInitial  = 5
	progressPrepared = 30
	progressSent     = 40
	progressCeiling  = 90
	progressDone     = 100

	progressTick = 200 * time.Millisecond
	progressStep = 2
)

// progressTicker tracks a monotonically increasing progress percentage.
// creep() spawns a goroutine that must be released via stop() or finish()
// on every exit path.
type progressTicker struct {
	mu      sync.Mutex
	current int
	done    chan struct{}
	stopped bool
}

func newProgressTicker() *progressTicker {
	return &progressTicker{done: make(chan struct{})}
}

func (p *progressTicker) value() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// set raises the progress to v; lower values are ignored.
func (p *progressTicker) set(v int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v > p.current {
		p.current = v
	}
}

// creep advances the progress by one step per tick up to the ceiling, until
// stopped.
func (p *progressTicker) creep() {
	go func() {
		ticker := time.NewTicker(progressTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.mu.Lock()
				if p.current < progressCeiling {
					p.current += progressStep
					if p.current > progressCeiling {
						p.current = progressCeiling
					}
				}
				p.mu.Unlock()
			case <-p.done:
				return
			}
		}
	}()
}

// stop halts the creep goroutine, freezing the current value. Idempotent.
func (p *progressTicker) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stopped {
		p.stopped = true
		close(p.done)
	}
}

// finish stops the creep and forces the value to 100.
func (p *progressTicker) finish() {
	p.stop()
	p.mu.Lock()
	p.current = progressDone
	p.mu.Unlock()
}
