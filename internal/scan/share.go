package scan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/halalscan/halalscan/internal/imaging"
	"github.com/halalscan/halalscan/internal/model"
)

var (
	// ErrShareCancelled is returned by a ShareSink when the user dismissed
	// the share dialog. Treated as success by the exporter.
	ErrShareCancelled = errors.New("share cancelled by user")

	// ErrNoShareTarget means no sink or clipboard was available.
	ErrNoShareTarget = errors.New("no share target available")
)

// ShareSink delivers a scan summary to an external target, optionally with
// an image attachment.
type ShareSink interface {
	CanShareFiles() bool
	Share(title, text string, image []byte) error
}

// Clipboard is the last-resort share target.
type Clipboard interface {
	Copy(text string) error
}

const shareTitle = "Halal scan result"

// Exporter shares a verdict, degrading gracefully: share with image, then
// share text only, then copy to clipboard. A user cancelling the share
// dialog is not an error.
type Exporter struct {
	Sink      ShareSink
	Clipboard Clipboard
}

// Share exports the result through the best available channel.
func (e *Exporter) Share(result *model.ScanResult, image []byte) error {
	text := BuildShareText(result)

	if e.Sink != nil {
		var attachment []byte
		if len(image) > 0 && e.Sink.CanShareFiles() {
			attachment = imaging.Compress(image, imaging.ShareMaxWidth, imaging.ShareQuality)
		}

		err := e.Sink.Share(shareTitle, text, attachment)
		if err == nil || errors.Is(err, ErrShareCancelled) {
			return nil
		}
		if attachment != nil {
			// The attachment may be what the sink choked on; retry bare.
			err = e.Sink.Share(shareTitle, text, nil)
			if err == nil || errors.Is(err, ErrShareCancelled) {
				return nil
			}
		}
	}

	if e.Clipboard != nil {
		if err := e.Clipboard.Copy(text); err != nil {
			return fmt.Errorf("copying to clipboard: %w", err)
		}
		return nil
	}

	return ErrNoShareTarget
}

// BuildShareText renders a verdict as a plain-text summary.
func BuildShareText(result *model.ScanResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", shareTitle)
	fmt.Fprintf(&b, "Verdict: %s\n", StatusLabel(result.Status))
	if result.Confidence > 0 {
		fmt.Fprintf(&b, "Confidence: %d%%\n", result.Confidence)
	}
	if result.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", result.Reason)
	}
	if len(result.IngredientsDetected) > 0 {
		names := make([]string, len(result.IngredientsDetected))
		for i, ing := range result.IngredientsDetected {
			names[i] = ing.Name
		}
		fmt.Fprintf(&b, "Ingredients: %s\n", strings.Join(names, ", "))
	}
	b.WriteString("Scanned with Halal Scanner AI")

	return b.String()
}

// StatusLabel returns the human-readable name of a verdict status.
func StatusLabel(status model.HalalStatus) string {
	switch status {
	case model.StatusHalal:
		return "Halal"
	case model.StatusHaram:
		return "Haram"
	case model.StatusDoubtful:
		return "Doubtful"
	case model.StatusNonFood:
		return "Not a food product"
	default:
		return string(status)
	}
}
