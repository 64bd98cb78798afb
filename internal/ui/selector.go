package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// SelectorItem represents an item in the selector
type SelectorItem struct {
	ID          string
	Label       string
	Description string
	Current     bool
}

// Selector is an interactive list selector. Only Height rows are shown at a
// time; the window follows the cursor.
type Selector struct {
	title    string
	items    []SelectorItem
	cursor   int
	offset   int
	selected int
	active   bool
	width    int
	height   int
}

// NewSelector creates a new selector
func NewSelector(title string, items []SelectorItem) Selector {
	selected := 0
	for i, item := range items {
		if item.Current {
			selected = i
			break
		}
	}

	s := Selector{
		title:    title,
		items:    items,
		cursor:   selected,
		selected: selected,
		active:   len(items) > 0,
		width:    80,
		height:   10,
	}
	if len(items) == 0 {
		s.selected = -1
	}
	s.follow()
	return s
}

// SetWidth sets the selector width
func (s *Selector) SetWidth(w int) {
	s.width = w
}

// SetHeight sets the number of visible rows.
func (s *Selector) SetHeight(h int) {
	if h < 1 {
		h = 1
	}
	s.height = h
	s.follow()
}

// Active returns whether the selector is active
func (s *Selector) Active() bool {
	return s.active
}

// Selected returns the selected item ID, or empty if cancelled
func (s *Selector) Selected() string {
	if s.selected >= 0 && s.selected < len(s.items) {
		return s.items[s.selected].ID
	}
	return ""
}

// Cancelled returns whether the selector was cancelled
func (s *Selector) Cancelled() bool {
	return !s.active && s.selected == -1
}

// Update handles selector input
func (s *Selector) Update(msg tea.Msg) (*Selector, tea.Cmd) {
	if !s.active {
		return s, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if s.cursor > 0 {
				s.cursor--
			}
		case "down", "j":
			if s.cursor < len(s.items)-1 {
				s.cursor++
			}
		case "pgup":
			s.cursor = max(s.cursor-s.height, 0)
		case "pgdown":
			s.cursor = min(s.cursor+s.height, len(s.items)-1)
		case "home", "g":
			s.cursor = 0
		case "end", "G":
			s.cursor = len(s.items) - 1
		case "enter":
			s.selected = s.cursor
			s.active = false
		case "esc", "q", "ctrl+c":
			s.selected = -1
			s.active = false
		}
		s.follow()
	}

	return s, nil
}

// follow scrolls the window so the cursor stays visible.
func (s *Selector) follow() {
	if s.cursor < s.offset {
		s.offset = s.cursor
	}
	if s.cursor >= s.offset+s.height {
		s.offset = s.cursor - s.height + 1
	}
	if s.offset < 0 {
		s.offset = 0
	}
}

// View renders the selector
func (s *Selector) View() string {
	if !s.active {
		return ""
	}

	var b strings.Builder

	b.WriteString(HelpStyle.Render(s.title + " (↑/↓ navigate, enter select, esc cancel)"))
	b.WriteString("\n\n")

	end := min(s.offset+s.height, len(s.items))
	labelW := min(35, max(s.width/3, 12))

	for i := s.offset; i < end; i++ {
		item := s.items[i]
		isCursor := i == s.cursor

		if isCursor {
			b.WriteString(SelectorCursor.Render(SymbolArrow) + " ")
		} else {
			b.WriteString("  ")
		}

		display := item.Label
		if display == "" {
			display = item.ID
		}
		label := fmt.Sprintf("%-*s", labelW, clip(display, labelW))
		if isCursor {
			b.WriteString(SelectorActive.Render(label))
		} else {
			b.WriteString(SelectorItemStyle.Render(label))
		}

		if item.Description != "" {
			desc := item.Description
			if item.Current {
				desc += " (current)"
			}
			b.WriteString(" " + SelectorDim.Render(clip(desc, s.width-labelW-4)))
		}

		b.WriteString("\n")
	}

	if len(s.items) > s.height {
		b.WriteString(SelectorDim.Render(fmt.Sprintf("  %d-%d of %d", s.offset+1, end, len(s.items))))
		b.WriteString("\n")
	}

	return b.String()
}

func clip(s string, w int) string {
	r := []rune(s)
	if w <= 0 || len(r) <= w {
		return s
	}
	if w <= 1 {
		return string(r[:w])
	}
	return string(r[:w-1]) + "…"
}
