package ui

import "testing"

func TestResolveTheme(t *testing.T) {
	if ResolveTheme("light").IsDark {
		t.Fatalf("expected light theme for mode light")
	}
	if !ResolveTheme("DARK").IsDark {
		t.Fatalf("expected dark theme for mode DARK")
	}

	t.Setenv("COLORFGBG", "15;0")
	if !ResolveTheme("auto").IsDark {
		t.Fatalf("expected dark theme for COLORFGBG=15;0")
	}

	t.Setenv("COLORFGBG", "0;15")
	if ResolveTheme("auto").IsDark {
		t.Fatalf("expected light theme for COLORFGBG=0;15")
	}

	t.Setenv("COLORFGBG", "")
	if !ResolveTheme("").IsDark {
		t.Fatalf("expected dark fallback without COLORFGBG")
	}
}

func TestNewStylesUsesTheme(t *testing.T) {
	s := NewStyles(LightTheme())
	if s.Theme.Primary != LightPrimary {
		t.Fatalf("expected light primary, got %v", s.Theme.Primary)
	}
	if got := s.Banner.Render("x"); got == "" {
		t.Fatalf("banner rendered empty")
	}
}
