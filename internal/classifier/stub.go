package classifier

import (
	"context"
	"time"

	"github.com/halalscan/halalscan/internal/model"
)

// Stub is a canned classifier for development and tests. With no Result or
// Err configured it returns a fixed halal verdict after Delay.
type Stub struct {
	Result *model.ScanResult
	Err    error
	Delay  time.Duration
}

// Name identifies this provider in logs.
func (s *Stub) Name() string { return "stub" }

// Classify returns the configured verdict or error.
func (s *Stub) Classify(ctx context.Context, image []byte) (*model.ScanResult, error) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, &Error{Kind: KindNetwork, Message: "classification cancelled", Err: ctx.Err()}
		}
	}

	if s.Err != nil {
		return nil, s.Err
	}
	if s.Result != nil {
		out := *s.Result
		return &out, nil
	}

	return &model.ScanResult{
		Status: model.StatusHalal,
		Reason: "Stubbed verdict: no haram ingredients detected.",
		IngredientsDetected: []model.IngredientDetail{
			{Name: "Water", Status: model.StatusHalal},
			{Name: "Sugar", Status: model.StatusHalal},
		},
		Confidence: 92,
	}, nil
}
