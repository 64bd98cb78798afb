package ui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const maxHistory = 50

// Prompt is a single-line input with a styled prefix and recall of previously
// submitted lines (up/down).
type Prompt struct {
	input   textinput.Model
	width   int
	focused bool

	history []string
	// recall indexes history while browsing; len(history) means the draft.
	recall int
	draft  string
}

// NewPrompt creates a new prompt component
func NewPrompt() Prompt {
	ti := textinput.New()
	ti.CharLimit = 2000
	ti.Width = 80
	ti.Focus()

	return Prompt{
		input:   ti,
		width:   80,
		focused: true,
	}
}

// Focus sets focus on the prompt
func (p *Prompt) Focus() tea.Cmd {
	p.focused = true
	return p.input.Focus()
}

// Blur removes focus from the prompt
func (p *Prompt) Blur() {
	p.focused = false
	p.input.Blur()
}

// Focused returns whether the prompt has focus
func (p *Prompt) Focused() bool {
	return p.focused
}

// SetWidth sets the width of the input
func (p *Prompt) SetWidth(w int) {
	p.width = w
	p.input.Width = w - 4 // prompt symbol and spacing
}

// SetPlaceholder sets the text shown while the input is empty.
func (p *Prompt) SetPlaceholder(s string) {
	p.input.Placeholder = s
}

// Value returns the current input value
func (p *Prompt) Value() string {
	return p.input.Value()
}

// SetValue sets the input value
func (p *Prompt) SetValue(s string) {
	p.input.SetValue(s)
	p.input.CursorEnd()
}

// Submit returns the current value, records it for recall and clears the input.
func (p *Prompt) Submit() string {
	v := p.input.Value()
	if v != "" && (len(p.history) == 0 || p.history[len(p.history)-1] != v) {
		p.history = append(p.history, v)
		if len(p.history) > maxHistory {
			p.history = p.history[len(p.history)-maxHistory:]
		}
	}
	p.recall = len(p.history)
	p.draft = ""
	p.input.Reset()
	return v
}

// Reset clears the input
func (p *Prompt) Reset() {
	p.input.Reset()
	p.recall = len(p.history)
}

// Update handles input events
func (p *Prompt) Update(msg tea.Msg) (*Prompt, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && p.focused {
		switch key.Type {
		case tea.KeyUp:
			p.browse(-1)
			return p, nil
		case tea.KeyDown:
			p.browse(1)
			return p, nil
		}
	}

	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return p, cmd
}

func (p *Prompt) browse(delta int) {
	if len(p.history) == 0 {
		return
	}
	if p.recall == len(p.history) {
		p.draft = p.input.Value()
	}
	next := p.recall + delta
	if next < 0 || next > len(p.history) {
		return
	}
	p.recall = next
	if next == len(p.history) {
		p.SetValue(p.draft)
		return
	}
	p.SetValue(p.history[next])
}

// View renders the prompt
func (p *Prompt) View() string {
	style := SelectorDim
	if p.focused {
		style = PromptStyle
	}
	return style.Render(SymbolPrompt) + " " + p.input.View()
}
