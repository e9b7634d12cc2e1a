package ux

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles is the palette used for text output. The zero value renders
// plain text.
type Styles struct {
	Title   lipgloss.Style
	Key     lipgloss.Style
	Value   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
}

// NewStyles returns the color palette, or plain styles when noColor is set.
func NewStyles(noColor bool) Styles {
	if noColor {
		return Styles{
			Title:   lipgloss.NewStyle(),
			Key:     lipgloss.NewStyle(),
			Value:   lipgloss.NewStyle(),
			Success: lipgloss.NewStyle(),
			Warning: lipgloss.NewStyle(),
			Error:   lipgloss.NewStyle(),
			Muted:   lipgloss.NewStyle(),
		}
	}
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		Key:     lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true),
		Value:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// Row is one key/value line of a Table.
type Row struct {
	Key   string
	Value string
}

// Table renders rows as aligned "key: value" lines.
func (s Styles) Table(rows ...Row) string {
	width := 0
	for _, r := range rows {
		width = max(width, len(r.Key))
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		key := fmt.Sprintf("%-*s", width+1, r.Key+":")
		lines = append(lines, "  "+s.Key.Render(key)+" "+s.Value.Render(r.Value))
	}
	return strings.Join(lines, "\n")
}
