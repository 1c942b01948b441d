package tui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// EnvTheme selects the theme when --theme is not given.
const EnvTheme = "SHIPYARD_THEME"

// TermTheme holds all color values for a terminal theme.
type TermTheme struct {
	Name string

	Accent lipgloss.Color

	// Semantic
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color

	// Text
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Dim       lipgloss.Color

	Border lipgloss.Color
}

// DarkTheme is the default dark terminal theme.
var DarkTheme = TermTheme{
	Name:      "dark",
	Accent:    lipgloss.Color("#38bdf8"),
	Success:   lipgloss.Color("#22c55e"),
	Warning:   lipgloss.Color("#eab308"),
	Error:     lipgloss.Color("#ef4444"),
	Primary:   lipgloss.Color("#e0e0e8"),
	Secondary: lipgloss.Color("#888888"),
	Dim:       lipgloss.Color("#5a5a70"),
	Border:    lipgloss.Color("#2a2a3a"),
}

// LightTheme is the light terminal theme.
var LightTheme = TermTheme{
	Name:      "light",
	Accent:    lipgloss.Color("#0369a1"),
	Success:   lipgloss.Color("#15803d"),
	Warning:   lipgloss.Color("#a16207"),
	Error:     lipgloss.Color("#b91c1c"),
	Primary:   lipgloss.Color("#0f172a"),
	Secondary: lipgloss.Color("#374151"),
	Dim:       lipgloss.Color("#4b5563"),
	Border:    lipgloss.Color("#d1d5db"),
}

// DetectTheme returns the appropriate theme based on flag, env, or detection.
func DetectTheme(flagVal string) TermTheme {
	return detectTheme(flagVal, os.Getenv)
}

func detectTheme(flagVal string, getenv func(string) string) TermTheme {
	// 1. --theme flag
	if t, ok := themeByName(flagVal); ok {
		return t
	}

	// 2. SHIPYARD_THEME env
	if t, ok := themeByName(getenv(EnvTheme)); ok {
		return t
	}

	// 3. COLORFGBG heuristic (format: "fg;bg")
	if colorfgbg := getenv("COLORFGBG"); colorfgbg != "" {
		parts := strings.Split(colorfgbg, ";")
		if len(parts) >= 2 {
			bg := parts[len(parts)-1]
			// 7 and 15 are the light backgrounds
			if bg == "15" || bg == "7" {
				return LightTheme
			}
		}
	}

	// 4. Default to dark
	return DarkTheme
}

func themeByName(name string) (TermTheme, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "dark":
		return DarkTheme, true
	case "light":
		return LightTheme, true
	}
	return TermTheme{}, false
}

// StyleSet contains pre-computed lipgloss styles derived from a theme.
type StyleSet struct {
	Theme TermTheme

	Title        lipgloss.Style
	AccentTxt    lipgloss.Style
	DimTxt       lipgloss.Style
	SuccessTxt   lipgloss.Style
	WarningTxt   lipgloss.Style
	ErrorTxt     lipgloss.Style
	PrimaryTxt   lipgloss.Style
	SecondaryTxt lipgloss.Style

	SummaryKey   lipgloss.Style
	SummaryValue lipgloss.Style

	// Tail blocks under failed stages
	TailBox lipgloss.Style
}

// NewStyleSet creates a StyleSet from a theme.
func NewStyleSet(theme TermTheme) *StyleSet {
	return &StyleSet{
		Theme: theme,

		Title:        lipgloss.NewStyle().Foreground(theme.Accent).Bold(true),
		AccentTxt:    lipgloss.NewStyle().Foreground(theme.Accent),
		DimTxt:       lipgloss.NewStyle().Foreground(theme.Dim),
		SuccessTxt:   lipgloss.NewStyle().Foreground(theme.Success),
		WarningTxt:   lipgloss.NewStyle().Foreground(theme.Warning),
		ErrorTxt:     lipgloss.NewStyle().Foreground(theme.Error),
		PrimaryTxt:   lipgloss.NewStyle().Foreground(theme.Primary),
		SecondaryTxt: lipgloss.NewStyle().Foreground(theme.Secondary),

		SummaryKey: lipgloss.NewStyle().
			Foreground(theme.Secondary).
			Width(10),
		SummaryValue: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),

		TailBox: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(theme.Border).
			Foreground(theme.Secondary).
			PaddingLeft(1),
	}
}

// PlainStyleSet returns styles that render text unchanged, for output that
// is not a terminal.
func PlainStyleSet() *StyleSet {
	plain := lipgloss.NewStyle()
	return &StyleSet{
		Theme:        TermTheme{Name: "plain"},
		Title:        plain,
		AccentTxt:    plain,
		DimTxt:       plain,
		SuccessTxt:   plain,
		WarningTxt:   plain,
		ErrorTxt:     plain,
		PrimaryTxt:   plain,
		SecondaryTxt: plain,
		SummaryKey:   plain.Width(10),
		SummaryValue: plain,
		TailBox:      plain.PaddingLeft(4),
	}
}
