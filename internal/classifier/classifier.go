// Package classifier is the boundary to the remote vision model that turns a
// product photo into a halal verdict. Implementations return structured error
// kinds so callers never have to sniff error message text.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/halalscan/halalscan/internal/model"
)

// Client classifies one preprocessed JPEG image.
type Client interface {
	// Classify sends the image and returns the parsed verdict. The verdict's
	// confidence may still be zero (the model's own soft-failure signal);
	// callers must treat that as a failed classification.
	Classify(ctx context.Context, image []byte) (*model.ScanResult, error)

	// Name identifies the provider in logs.
	Name() string
}

// Kind categorizes a classification failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNetwork covers connectivity and timeout failures.
	KindNetwork
	// KindPayloadTooLarge means the service refused the image for its size.
	KindPayloadTooLarge
	// KindBadResponse means the model replied but the reply was unusable.
	KindBadResponse
)

// Error is a classification failure with a structured kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from err, KindUnknown when err carries none.
func KindOf(err error) Kind {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return KindUnknown
}

// SizeHint reports whether a model-generated failure reason suggests the
// image was too large or the connection too slow, in which case a retry
// should use the reduced compression tier.
func SizeHint(reason string) bool {
	lower := strings.ToLower(reason)
	for _, kw := range []string{"image size", "too large", "payload", "network", "timed out", "timeout"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
