// Package cli renders predictions, memory and batch results for the terminal
// and drives interactive review.
package cli

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	PrimaryColor = lipgloss.Color("#7C6CF2")
	SuccessColor = lipgloss.Color("#4ECDC4")
	WarningColor = lipgloss.Color("#FFE66D")
	ErrorColor   = lipgloss.Color("#FF6B6B")
	InfoColor    = lipgloss.Color("#95E1D3")
	SubtleColor  = lipgloss.Color("#666666")
	borderColor  = lipgloss.Color("#333")
)

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

// Text styles.
var (
	TitleStyle   = fg(PrimaryColor).Bold(true).MarginBottom(1)
	PromptStyle  = fg(PrimaryColor).Bold(true)
	SuccessStyle = fg(SuccessColor)
	WarningStyle = fg(WarningColor)
	ErrorStyle   = fg(ErrorColor)
	InfoStyle    = fg(InfoColor)
	SubtleStyle  = fg(SubtleColor)
	BoldStyle    = lipgloss.NewStyle().Bold(true)

	// ConfidenceHighStyle marks scores at or above the auto-assign level,
	// ConfidenceLowStyle everything under it.
	ConfidenceHighStyle = fg(SuccessColor).Bold(true)
	ConfidenceLowStyle  = fg(WarningColor)
)

// Layout styles.
var (
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(1, 2)

	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(borderColor)

	TableCellStyle = lipgloss.NewStyle().PaddingRight(2)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	TagIcon     = "🏷️"
	MemoryIcon  = "🧠"
	ChartIcon   = "📊"
)

func iconLine(style lipgloss.Style, icon, message string) string {
	return style.Render(icon + " " + message)
}

// FormatSuccess prefixes message with a check mark.
func FormatSuccess(message string) string { return iconLine(SuccessStyle, SuccessIcon, message) }

// FormatError prefixes message with a cross.
func FormatError(message string) string { return iconLine(ErrorStyle, ErrorIcon, message) }

// FormatWarning prefixes message with a warning sign.
func FormatWarning(message string) string { return iconLine(WarningStyle, WarningIcon, message) }

// FormatInfo prefixes message with an info sign.
func FormatInfo(message string) string { return iconLine(InfoStyle, InfoIcon, message) }

// FormatPrompt renders a prompt followed by an arrow.
func FormatPrompt(prompt string) string {
	return PromptStyle.Render(prompt + " → ")
}

// RenderBox draws title and content inside a rounded border.
func RenderBox(title, content string) string {
	heading := TitleStyle.UnsetMargins().Render(title)
	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, heading, content))
}
