package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ingestor/internal/core/domain"
)

// Palette used by report output.
var (
	colourPrimary = lipgloss.Color("#7C3AED") // Purple
	colourMuted   = lipgloss.Color("#6C7086") // Medium gray
	colourSuccess = lipgloss.Color("#A6E3A1") // Green
	colourWarning = lipgloss.Color("#F9E2AF") // Yellow
	colourError   = lipgloss.Color("#F38BA8") // Red
	colourBorder  = lipgloss.Color("#45475A") // Border gray
)

// styles contains pre-configured lipgloss styles for command output.
type styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Header  lipgloss.Style
	Cell    lipgloss.Style
	Border  lipgloss.Style
}

func newStyles() *styles {
	return &styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(colourPrimary),

		Label: lipgloss.NewStyle().
			Bold(true).
			Width(12),

		Muted: lipgloss.NewStyle().
			Foreground(colourMuted),

		Success: lipgloss.NewStyle().
			Foreground(colourSuccess),

		Warning: lipgloss.NewStyle().
			Foreground(colourWarning),

		Error: lipgloss.NewStyle().
			Foreground(colourError),

		Header: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1),

		Cell: lipgloss.NewStyle().
			Padding(0, 1),

		Border: lipgloss.NewStyle().
			Foreground(colourBorder),
	}
}

// Status renders an entry status in its outcome colour.
func (s *styles) Status(status domain.EntryStatus) string {
	switch status {
	case domain.StatusProcessed:
		return s.Success.Render(status.String())
	case domain.StatusSkippedUnrecognized:
		return s.Warning.Render(status.String())
	case domain.StatusFailedCorrupt:
		return s.Error.Render(status.String())
	default:
		return status.String()
	}
}

// field renders one "Label: value" line.
func (s *styles) field(label, value string) string {
	return s.Label.Render(label+":") + " " + value
}
