package ui

import "github.com/charmbracelet/lipgloss"

var (
	ColorPrimary   = lipgloss.Color("178") // Amber
	ColorNarrator  = lipgloss.Color("252") // Parchment
	ColorSuccess   = lipgloss.Color("35")  // Green
	ColorWarning   = lipgloss.Color("214") // Gold/yellow
	ColorError     = lipgloss.Color("196") // Red
	ColorDim       = lipgloss.Color("241") // Gray
	ColorAccent    = lipgloss.Color("39")  // Blue
	ColorHighlight = lipgloss.Color("212") // Light pink
	ColorMana      = lipgloss.Color("63")  // Indigo
)

const (
	SymbolPrompt     = "❯"
	SymbolBullet     = "●"
	SymbolTree       = "└"
	SymbolArrow      = "▸"
	SymbolExpanded   = "▾"
	SymbolCheck      = "✓"
	SymbolCross      = "✗"
	SymbolThinking   = "◐"
	SymbolTreeBranch = "├"
	SymbolTreePipe   = "│"
	SymbolEye        = "◉"
	SymbolWrench     = "⚒"
)

var (
	PromptStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	UserStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	NarratorStyle = lipgloss.NewStyle().
			Foreground(ColorNarrator)

	ToolCallStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	ToolResultStyle = lipgloss.NewStyle().
			Foreground(ColorDim)

	ObservationStyle = lipgloss.NewStyle().
				Foreground(ColorHighlight)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	SystemStyle = lipgloss.NewStyle().
			Foreground(ColorDim).
			Italic(true)

	SelectorCursor = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	SelectorItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))

	SelectorDim = lipgloss.NewStyle().
			Foreground(ColorDim)

	SelectorActive = lipgloss.NewStyle().
			Foreground(ColorHighlight).
			Bold(true)

	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorDim)

	StatLabelStyle = lipgloss.NewStyle().
			Foreground(ColorDim).
			Width(10)

	HealthStyle = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)

	ManaStyle = lipgloss.NewStyle().
			Foreground(ColorMana).
			Bold(true)

	SheetStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDim).
			Padding(0, 1)
)
