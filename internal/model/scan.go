package model

// HalalStatus is the verdict for a scanned product or a single ingredient.
type HalalStatus string

// Classification outcomes.
const (
	StatusHalal    HalalStatus = "HALAL"
	StatusHaram    HalalStatus = "HARAM"
	StatusDoubtful HalalStatus = "DOUBTFUL"
	StatusNonFood  HalalStatus = "NON_FOOD"
)

// Valid reports whether s is one of the four known verdicts.
func (s HalalStatus) Valid() bool {
	switch s {
	case StatusHalal, StatusHaram, StatusDoubtful, StatusNonFood:
		return true
	}
	return false
}

// IngredientDetail is one detected ingredient with its own verdict.
type IngredientDetail struct {
	Name   string      `json:"name"`
	Status HalalStatus `json:"status"`
}

// ScanResult is the outcome of one classification. Ingredients keep
// detection order and are not deduplicated. A confidence of zero is the
// model's failure sentinel; callers must branch on it, not only on Status.
type ScanResult struct {
	Status              HalalStatus        `json:"status"`
	Reason              string             `json:"reason"`
	IngredientsDetected []IngredientDetail `json:"ingredientsDetected"`
	Confidence          int                `json:"confidence,omitempty"`
}

// ScanHistoryItem is one past successful scan. Items are immutable once
// created; the history list only prepends and evicts.
type ScanHistoryItem struct {
	ID        string     `json:"id"`
	Date      int64      `json:"date"`
	Result    ScanResult `json:"result"`
	Thumbnail []byte     `json:"thumbnail,omitempty"`
}
