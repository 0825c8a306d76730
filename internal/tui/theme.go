package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme holds all color definitions for the terminal UI
type Theme struct {
	Muted   lipgloss.Color // status lines, metadata
	Accent  lipgloss.Color // suggestions, active markers
	Primary lipgloss.Color // user prompt, links
	AI      lipgloss.Color // bot header
	Thought lipgloss.Color // reasoning channel

	Success lipgloss.Color
	Error   lipgloss.Color
	Warning lipgloss.Color
}

// DarkTheme is the color palette for dark terminals
var DarkTheme = Theme{
	Muted:   lipgloss.Color("#6B7280"),
	Accent:  lipgloss.Color("#F59E0B"),
	Primary: lipgloss.Color("#60A5FA"),
	AI:      lipgloss.Color("#A78BFA"),
	Thought: lipgloss.Color("#9CA3AF"),

	Success: lipgloss.Color("#10B981"),
	Error:   lipgloss.Color("#EF4444"),
	Warning: lipgloss.Color("#FBBF24"),
}

// LightTheme is the color palette for light terminals
var LightTheme = Theme{
	Muted:   lipgloss.Color("#6B7280"),
	Accent:  lipgloss.Color("#D97706"),
	Primary: lipgloss.Color("#2563EB"),
	AI:      lipgloss.Color("#7C3AED"),
	Thought: lipgloss.Color("#4B5563"),

	Success: lipgloss.Color("#059669"),
	Error:   lipgloss.Color("#DC2626"),
	Warning: lipgloss.Color("#B45309"),
}

// CurrentTheme holds the active theme based on terminal background
var CurrentTheme Theme

var isDarkBackground bool

func init() {
	isDarkBackground = lipgloss.HasDarkBackground()
	if isDarkBackground {
		CurrentTheme = DarkTheme
	} else {
		CurrentTheme = LightTheme
	}
}

func mutedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(CurrentTheme.Muted)
}

func accentStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(CurrentTheme.Accent)
}

func botHeaderStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(CurrentTheme.AI).Bold(true)
}

func userStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(CurrentTheme.Primary).Bold(true)
}

func thoughtStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(CurrentTheme.Thought).Italic(true)
}

func errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(CurrentTheme.Error)
}

func successStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(CurrentTheme.Success)
}
