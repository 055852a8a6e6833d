package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

// Profile wraps the settings store with typed accessors for one device's
// persisted state: quota counter, premium flag, theme, terms flag and the
// serialized history blob. Writes are synchronous and last-write-wins; there
// are no transactional guarantees across keys.
type Profile struct {
	DB       *sql.DB
	DeviceID string
}

// Settings keys, scoped per device.
const (
	keyScanCount     = "scan_count"
	keyPremium       = "premium"
	keyTheme         = "theme"
	keyTermsAccepted = "terms_accepted"
	keyHistory       = "history"
)

func (p *Profile) key(name string) string {
	return fmt.Sprintf("device:%s:%s", p.DeviceID, name)
}

// ScanCount returns the persisted free-scan counter, zero when unset or
// unparseable.
func (p *Profile) ScanCount(ctx context.Context) (int, error) {
	value, ok, err := GetValue(ctx, p.DB, p.key(keyScanCount))
	if err != nil || !ok {
		return 0, err
	}
	count, err := strconv.Atoi(value)
	if err != nil || count < 0 {
		return 0, nil
	}
	return count, nil
}

// SetScanCount persists the free-scan counter.
func (p *Profile) SetScanCount(ctx context.Context, count int) error {
	return SetValue(ctx, p.DB, p.key(keyScanCount), strconv.Itoa(count))
}

// Premium returns the persisted entitlement flag.
func (p *Profile) Premium(ctx context.Context) (bool, error) {
	value, ok, err := GetValue(ctx, p.DB, p.key(keyPremium))
	if err != nil || !ok {
		return false, err
	}
	return value == "true", nil
}

// SetPremium persists the entitlement flag.
func (p *Profile) SetPremium(ctx context.Context, premium bool) error {
	return SetValue(ctx, p.DB, p.key(keyPremium), strconv.FormatBool(premium))
}

// Theme returns the persisted theme name, empty when never set.
func (p *Profile) Theme(ctx context.Context) (string, error) {
	value, _, err := GetValue(ctx, p.DB, p.key(keyTheme))
	return value, err
}

// SetTheme persists the theme name.
func (p *Profile) SetTheme(ctx context.Context, theme string) error {
	return SetValue(ctx, p.DB, p.key(keyTheme), theme)
}

// TermsAccepted returns whether onboarding terms were accepted.
func (p *Profile) TermsAccepted(ctx context.Context) (bool, error) {
	value, ok, err := GetValue(ctx, p.DB, p.key(keyTermsAccepted))
	if err != nil || !ok {
		return false, err
	}
	return value == "true", nil
}

// SetTermsAccepted persists the terms flag.
func (p *Profile) SetTermsAccepted(ctx context.Context, accepted bool) error {
	return SetValue(ctx, p.DB, p.key(keyTermsAccepted), strconv.FormatBool(accepted))
}

// HistoryJSON returns the raw serialized history list, empty when unset.
func (p *Profile) HistoryJSON(ctx context.Context) (string, error) {
	value, _, err := GetValue(ctx, p.DB, p.key(keyHistory))
	return value, err
}

// SetHistoryJSON persists the serialized history list.
func (p *Profile) SetHistoryJSON(ctx context.Context, data string) error {
	return SetValue(ctx, p.DB, p.key(keyHistory), data)
}
