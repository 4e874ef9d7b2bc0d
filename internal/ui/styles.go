package ui

import "github.com/charmbracelet/lipgloss"

// Styles is the immutable rendering configuration for operator-facing output.
// It is built once at startup and injected into the components that print,
// so there is no process-wide mutable style state.
type Styles struct {
	// Title styles the installation summary heading.
	Title lipgloss.Style
	// Item styles one listed file.
	Item lipgloss.Style
	// Warning styles overwrite warnings.
	Warning lipgloss.Style
	// Failure styles fatal error headlines.
	Failure lipgloss.Style
	// Hint styles remediation and next-step guidance.
	Hint lipgloss.Style
	// Success styles completion notices.
	Success lipgloss.Style
}

// DefaultStyles returns the standard color scheme.
func DefaultStyles() *Styles {
	return &Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Item:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Failure: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		Hint:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		Success: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
	}
}

// PlainStyles returns an uncolored scheme for non-interactive output.
func PlainStyles() *Styles {
	return &Styles{
		Title:   lipgloss.NewStyle(),
		Item:    lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
		Failure: lipgloss.NewStyle(),
		Hint:    lipgloss.NewStyle(),
		Success: lipgloss.NewStyle(),
	}
}
