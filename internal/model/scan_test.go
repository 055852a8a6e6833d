package model

import "testing"

func TestHalalStatusValid(t *testing.T) {
	for _, s := range []HalalStatus{StatusHalal, StatusHaram, StatusDoubtful, StatusNonFood} {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	for _, s := range []HalalStatus{"", "MAYBE", "halal"} {
		if s.Valid() {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestValidTheme(t *testing.T) {
	if !ValidTheme(ThemeLight) || !ValidTheme(ThemeDark) {
		t.Error("expected built-in themes to be valid")
	}
	if ValidTheme("neon") || ValidTheme("") {
		t.Error("expected unknown themes to be invalid")
	}
}
