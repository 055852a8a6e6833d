package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/halalscan/halalscan/internal/classifier"
	"github.com/halalscan/halalscan/internal/imaging"
	"github.com/halalscan/halalscan/internal/model"
)

// State is the phase of a device's scan session.
type State string

const (
	StateIdle          State = "idle"
	StateImageSelected State = "image_selected"
	StateAnalyzing     State = "analyzing"
	StateSucceeded     State = "succeeded"
	StateFailed        State = "failed"
)

var (
	// ErrQuotaExhausted signals the upgrade prompt, not a scan failure.
	ErrQuotaExhausted = errors.New("free scan quota exhausted")

	// ErrNoImage means Analyze was called before an image was selected.
	ErrNoImage = errors.New("no image selected")

	// ErrBusy means an analysis is already in flight for this session.
	ErrBusy = errors.New("analysis already in progress")

	// ErrSuperseded means the session was reset while the analysis was in
	// flight, so its outcome was discarded.
	ErrSuperseded = errors.New("analysis superseded by reset")

	// ErrClassificationFailed wraps a verdict the model itself marked as
	// unusable (confidence zero).
	ErrClassificationFailed = errors.New("classification failed")

	// ErrNotFound means the requested history entry does not exist.
	ErrNotFound = errors.New("history entry not found")
)

// User-facing failure messages, keyed off the structured error kind.
const (
	msgNetwork    = "Could not reach the analysis service. Check your connection and try again."
	msgTooLarge   = "The image could not be analyzed at this size. Try again; it will be compressed further."
	msgUnexpected = "Something went wrong while analyzing the image. Please try again."
)

// Session is one device's scan workflow: select an image, analyze it, read
// the verdict, reset. All state transitions happen under the session lock,
// but the lock is released for the remote call itself; a generation counter
// discards responses that arrive after a reset.
type Session struct {
	mu         sync.Mutex
	classifier classifier.Client
	quota      *QuotaTracker
	history    *HistoryManager

	state          State
	image          []byte
	result         *model.ScanResult
	failureMsg     string
	reducedQuality bool
	generation     uint64
	progress       *progressTicker
}

// NewSession builds an idle session over the device's quota and history.
func NewSession(client classifier.Client, quota *QuotaTracker, history *HistoryManager) *Session {
	return &Session{
		classifier: client,
		quota:      quota,
		history:    history,
		state:      StateIdle,
	}
}

// SelectImage stages a new image for analysis, clearing any previous result
// or failure. The reduced-quality flag is cleared here and only here: a
// retry of the same image keeps it, a fresh image starts clean.
func (s *Session) SelectImage(image []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateAnalyzing {
		return ErrBusy
	}
	if !s.quota.CanScan() {
		return ErrQuotaExhausted
	}

	s.stopProgressLocked()
	s.image = image
	s.result = nil
	s.failureMsg = ""
	s.reducedQuality = false
	s.state = StateImageSelected
	return nil
}

// Analyze compresses the staged image, sends it for classification and
// applies the outcome. On success the scan is counted against the quota and
// appended to history with a thumbnail. Size-related failures arm the
// reduced compression tier for the next attempt on the same image.
func (s *Session) Analyze(ctx context.Context) (*model.ScanResult, error) {
	s.mu.Lock()
	if s.state == StateAnalyzing {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if len(s.image) == 0 {
		s.mu.Unlock()
		return nil, ErrNoImage
	}
	if !s.quota.CanScan() {
		s.mu.Unlock()
		return nil, ErrQuotaExhausted
	}

	gen := s.generation
	image := s.image
	maxWidth, quality := imaging.NormalMaxWidth, imaging.NormalQuality
	if s.reducedQuality {
		maxWidth, quality = imaging.ReducedMaxWidth, imaging.ReducedQuality
	}

	prog := newProgressTicker()
	s.progress = prog
	s.state = StateAnalyzing
	s.result = nil
	s.failureMsg = ""
	s.mu.Unlock()

	prog.set(progressInitial)
	prepared := imaging.Compress(image, maxWidth, quality)
	prog.set(progressPrepared)

	prog.set(progressSent)
	prog.creep()

	result, err := s.classifier.Classify(ctx, prepared)
	prog.finish()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		// Reset happened while the call was in flight. The outcome belongs
		// to a session that no longer exists.
		return nil, ErrSuperseded
	}

	if err != nil {
		kind := classifier.KindOf(err)
		s.failLocked(failureMessage(kind), kind == classifier.KindPayloadTooLarge)
		return nil, err
	}

	if result.Confidence == 0 {
		msg := result.Reason
		if msg == "" {
			msg = msgUnexpected
		}
		s.failLocked(msg, classifier.SizeHint(result.Reason))
		return nil, fmt.Errorf("%w: %s", ErrClassificationFailed, result.Reason)
	}

	s.state = StateSucceeded
	s.result = result

	if err := s.quota.RecordScan(ctx); err != nil {
		slog.Warn("recording scan against quota", "error", err)
	}

	var thumb []byte
	if imaging.IsSupported(prepared) {
		thumb = imaging.Compress(prepared, imaging.ThumbnailMaxWidth, imaging.ThumbnailQuality)
	}
	if err := s.history.Append(ctx, *result, thumb); err != nil {
		slog.Warn("saving scan to history", "error", err)
	}

	out := *result
	return &out, nil
}

// Reset returns the session to idle. An in-flight analysis is not waited
// for; bumping the generation makes its eventual outcome fall on the floor.
// The reduced-quality flag deliberately survives a reset.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.stopProgressLocked()
	s.state = StateIdle
	s.image = nil
	s.result = nil
	s.failureMsg = ""
}

// LoadHistoryItem restores a past scan as the session's current result, with
// its thumbnail standing in for the original image.
func (s *Session) LoadHistoryItem(id string) error {
	item, ok := s.history.Get(id)
	if !ok {
		return ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateAnalyzing {
		return ErrBusy
	}

	s.stopProgressLocked()
	result := item.Result
	s.result = &result
	s.image = item.Thumbnail
	s.failureMsg = ""
	s.state = StateSucceeded
	return nil
}

// State returns the current phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Progress returns the analysis progress percentage, zero when no analysis
// has started since the last select or reset.
func (s *Session) Progress() int {
	s.mu.Lock()
	prog := s.progress
	s.mu.Unlock()

	if prog == nil {
		return 0
	}
	return prog.value()
}

// Result returns a copy of the current verdict, nil when there is none.
func (s *Session) Result() *model.ScanResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.result == nil {
		return nil
	}
	out := *s.result
	return &out
}

// FailureMessage returns the user-facing message for the last failed
// analysis, empty otherwise.
func (s *Session) FailureMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failureMsg
}

// ReducedQuality reports whether the next attempt will use the reduced
// compression tier.
func (s *Session) ReducedQuality() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reducedQuality
}

// Image returns the currently staged image bytes, nil when idle.
func (s *Session) Image() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.image
}

// History exposes the session's history manager.
func (s *Session) History() *HistoryManager { return s.history }

// Quota exposes the session's quota tracker.
func (s *Session) Quota() *QuotaTracker { return s.quota }

func (s *Session) failLocked(msg string, reduced bool) {
	s.state = StateFailed
	s.failureMsg = msg
	if reduced {
		s.reducedQuality = true
	}
}

func (s *Session) stopProgressLocked() {
	if s.progress != nil {
		s.progress.stop()
		s.progress = nil
	}
}

func failureMessage(kind classifier.Kind) string {
	switch kind {
	case classifier.KindNetwork:
		return msgNetwork
	case classifier.KindPayloadTooLarge:
		return msgTooLarge
	default:
		return msgUnexpected
	}
}
