// Package styles contains the shared styles for the terminal output.
package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type RenderFunc func(string ...string) string

const (
	Check = "✔"
	Cross = "✘"
	Dot   = "•"
	Arrow = "→"
)

const (
	ColorSuccess = "#22c55e"
	ColorError   = "#d75f6b"
	ColorSubtle  = "#a3a3a3"
	ColorAccent  = "#7aa2f7"
)

var (
	Bold      = lipgloss.NewStyle().Bold(true).Render
	Padding   = lipgloss.NewStyle().PaddingLeft(1).Render
	Underline = lipgloss.NewStyle().Underline(true).Render

	Error   = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorError)).Render
	Success = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSuccess)).Render
	Subtle  = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSubtle)).Render
	Accent  = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent)).Bold(true).Render
)

// ErrorBox creates a bordered error box with title and message
func ErrorBox(title, message string) string {
	redStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorError))
	subtleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSubtle))

	lines := []string{redStyle.Render("╭ " + title)}
	for _, line := range strings.Split(message, "\n") {
		lines = append(lines, redStyle.Render("│")+" "+subtleStyle.Render(line))
	}
	lines = append(lines, redStyle.Render("╵"))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

