package model

import "time"

// Device is one registered app installation. All quota, history and
// preference state is scoped to a device.
type Device struct {
	ID        string    `json:"id"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// Themes.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// ValidTheme reports whether theme is a known theme name.
func ValidTheme(theme string) bool {
	return theme == ThemeLight || theme == ThemeDark
}
