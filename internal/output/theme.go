package output

import "github.com/charmbracelet/lipgloss"

// Theme defines the colors of status words in text output.
// Use DarkTheme() or LightTheme() to get a pre-built theme.
type Theme struct {
	Success   lipgloss.Color // OK, matched, idle
	Warning   lipgloss.Color // TIMEOUT
	Error     lipgloss.Color // FAILED
	TextMuted lipgloss.Color // elapsed times, detached sessions
}

// DarkTheme returns the default theme for dark terminal backgrounds.
func DarkTheme() Theme {
	return Theme{
		Success:   lipgloss.Color("#7fd88f"),
		Warning:   lipgloss.Color("#f5a742"),
		Error:     lipgloss.Color("#e06c75"),
		TextMuted: lipgloss.Color("#808080"),
	}
}

// LightTheme returns a theme for bright terminal backgrounds.
func LightTheme() Theme {
	return Theme{
		Success:   lipgloss.Color("#116329"),
		Warning:   lipgloss.Color("#bf8700"),
		Error:     lipgloss.Color("#cf222e"),
		TextMuted: lipgloss.Color("#656d76"),
	}
}

// ThemeFor picks the theme matching the renderer's background.
func ThemeFor(r *lipgloss.Renderer) Theme {
	if r != nil && !r.HasDarkBackground() {
		return LightTheme()
	}
	return DarkTheme()
}

// styles holds the lipgloss styles derived from a Theme for one renderer.
type styles struct {
	ok      lipgloss.Style
	warn    lipgloss.Style
	fail    lipgloss.Style
	muted   lipgloss.Style
	enabled bool
}

func newStyles(r *lipgloss.Renderer, t Theme) styles {
	if r == nil {
		return styles{}
	}
	return styles{
		ok:      r.NewStyle().Foreground(t.Success).Bold(true),
		warn:    r.NewStyle().Foreground(t.Warning).Bold(true),
		fail:    r.NewStyle().Foreground(t.Error).Bold(true),
		muted:   r.NewStyle().Foreground(t.TextMuted),
		enabled: true,
	}
}

func (s styles) render(st lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return st.Render(text)
}
