package utils

import (
	"fmt"
	"math"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

var (
	CriticalColor = lipgloss.Color("#CC3333") // Dark red
	WarningColor  = lipgloss.Color("#FF8800") // Orange
	GoodColor     = lipgloss.Color("#228B22") // Forest green
	InfoColor     = lipgloss.Color("#4682B4") // Steel blue
	TextColor     = lipgloss.Color("#CCCCCC") // Light gray
	MutedColor    = lipgloss.Color("#888888") // Medium gray
	BorderColor   = lipgloss.Color("#666666") // Dark gray

	CriticalLightColor = lipgloss.Color("#FF6666") // Lighter red
	WarningLightColor  = lipgloss.Color("#FFAA44") // Lighter orange
)

var (
	CriticalStyle = lipgloss.NewStyle().Foreground(CriticalColor).Bold(true)
	WarningStyle  = lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
	GoodStyle     = lipgloss.NewStyle().Foreground(GoodColor).Bold(true)
	InfoStyle     = lipgloss.NewStyle().Foreground(InfoColor)
	MutedStyle    = lipgloss.NewStyle().Foreground(MutedColor)
	TextStyle     = lipgloss.NewStyle().Foreground(TextColor)

	CriticalLightStyle = lipgloss.NewStyle().Foreground(CriticalLightColor)
	WarningLightStyle  = lipgloss.NewStyle().Foreground(WarningLightColor)
)

var (
	TabActiveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(InfoColor).
			Padding(0, 1).
			Bold(true)

	TabInactiveStyle = lipgloss.NewStyle().
				Foreground(MutedColor).
				Padding(0, 1)
)

var (
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true).
			Padding(0, 1)

	HeaderStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Background(lipgloss.Color("#1a1a1a")).
			Bold(true).
			Padding(0, 1)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Background(MutedColor).
			Padding(0, 1)

	HelpBarStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Background(lipgloss.Color("#1a1a1a")).
			Padding(0, 1)
)

type TerminalCapabilities struct {
	SupportsUnicode bool
	SupportsColor   bool
}

var termCaps *TerminalCapabilities

func init() {
	termCaps = detectTerminalCapabilities()
}

func detectTerminalCapabilities() *TerminalCapabilities {
	caps := &TerminalCapabilities{
		SupportsUnicode: true,
		SupportsColor:   true,
	}

	if term := os.Getenv("TERM"); term == "dumb" {
		caps.SupportsColor = false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		caps.SupportsColor = false
	}

	testStr := "█░"
	if utf8.RuneCountInString(testStr) != len([]rune(testStr)) {
		caps.SupportsUnicode = false
	}

	return caps
}

// CreateProgressBar renders percentage (0..1) as a bar of width cells
func CreateProgressBar(percentage float64, width int, color lipgloss.Color) string {
	if width < 4 {
		return fmt.Sprintf("%.0f%%", percentage*100)
	}

	fill, empty := "█", "░"
	if !termCaps.SupportsUnicode {
		fill, empty = "#", "-"
	}

	filled := int(math.Round(percentage * float64(width)))
	filled = min(max(filled, 0), width)

	bar := strings.Repeat(fill, filled) + strings.Repeat(empty, width-filled)
	if termCaps.SupportsColor && color != "" {
		bar = lipgloss.NewStyle().Foreground(color).Render(bar)
	}
	return bar
}

// GetSeverityStyle maps "error", "warning" and "ok" to their styles
func GetSeverityStyle(severity string) lipgloss.Style {
	switch strings.ToLower(severity) {
	case "error", "failed":
		return CriticalStyle
	case "warning":
		return WarningStyle
	case "info":
		return InfoStyle
	default:
		return GoodStyle
	}
}

func GetSeverityIcon(severity string) string {
	switch strings.ToLower(severity) {
	case "error":
		return "🔴"
	case "failed":
		return "❌"
	case "warning":
		return "⚠️"
	case "info":
		return "ℹ️"
	default:
		return "✅"
	}
}

func GetSeverityColor(severity string) lipgloss.Color {
	switch strings.ToLower(severity) {
	case "error", "failed":
		return CriticalColor
	case "warning":
		return WarningColor
	default:
		return GoodColor
	}
}

// TruncateString truncates a string to fit within maxWidth runes
func TruncateString(s string, maxWidth int) string {
	if utf8.RuneCountInString(s) <= maxWidth {
		return s
	}
	if maxWidth < 4 {
		return strings.Repeat(".", max(maxWidth, 0))
	}
	return string([]rune(s)[:maxWidth-3]) + "..."
}

// PadRight pads a string to the right to reach the specified width
func PadRight(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

// WrapText wraps text to fit within specified width
func WrapText(text string, width int) []string {
	if width < 10 {
		return []string{text}
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	var currentLine []string
	currentLength := 0

	for _, word := range words {
		if currentLength+len(word)+len(currentLine) > width && len(currentLine) > 0 {
			lines = append(lines, strings.Join(currentLine, " "))
			currentLine = []string{word}
			currentLength = len(word)
		} else {
			currentLine = append(currentLine, word)
			currentLength += len(word)
		}
	}

	if len(currentLine) > 0 {
		lines = append(lines, strings.Join(currentLine, " "))
	}

	return lines
}
