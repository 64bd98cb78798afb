package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/yolodolo42/questline/internal/character"
	"github.com/yolodolo42/questline/internal/session"
	"github.com/yolodolo42/questline/internal/transcript"
	"github.com/yolodolo42/questline/internal/ui"
)

const (
	sendTimeout = 10 * time.Second
	chromeLines = 7

	placeholderCreate = "Describe your character..."
	placeholderPlay   = "What do you do?"
)

const helpText = `Available commands:
  /help, /?       - Show this help
  /sheet          - Show or hide the character sheet
  /quit, /exit    - Leave the story

While creating a character, describe who you want to play.
After that, type what your character does.`

// gameSession is what the chat screen needs from a session controller.
type gameSession interface {
	Snapshot() session.View
	Send(ctx context.Context, text string) error
	CreateCharacter(ctx context.Context, description string) error
	AddSystem(text string)
	Close()
}

type chatModel struct {
	sess    gameSession
	sheet   *character.Sheet
	changes <-chan struct{}
	title   string

	prompt   ui.Prompt
	viewport viewport.Model
	spinner  spinner.Model

	state     session.View
	showSheet bool
	notice    string
	width     int
	height    int
	ready     bool
	quitting  bool
}

// changedMsg is sent whenever the session reported a change.
type changedMsg struct{}

// sentMsg carries the result of a Send or CreateCharacter call.
type sentMsg struct {
	err error
}

func newChatModel(title string, sess gameSession, sheet *character.Sheet, changes <-chan struct{}) chatModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = ui.TitleStyle

	m := chatModel{
		sess:    sess,
		sheet:   sheet,
		changes: changes,
		title:   title,
		prompt:  ui.NewPrompt(),
		spinner: sp,
		state:   sess.Snapshot(),
	}
	m.updatePlaceholder()
	return m
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForChange(m.changes))
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		piCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m.quit()

		case tea.KeyEnter:
			input := strings.TrimSpace(m.prompt.Submit())
			if input == "" {
				return m, nil
			}
			m.notice = ""
			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}
			return m, m.submit(input)

		case tea.KeyPgUp, tea.KeyPgDown:
			m.viewport, vpCmd = m.viewport.Update(msg)
			return m, vpCmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		h := max(msg.Height-chromeLines, 3)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, h)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = h
		}
		m.prompt.SetWidth(msg.Width)
		m.refresh()
		return m, nil

	case changedMsg:
		m.refresh()
		return m, waitForChange(m.changes)

	case sentMsg:
		if msg.err != nil {
			m.notice = describeSendError(msg.err)
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var spCmd tea.Cmd
		m.spinner, spCmd = m.spinner.Update(msg)
		return m, spCmd
	}

	_, piCmd = m.prompt.Update(msg)
	return m, piCmd
}

// submit routes input by mode: a description while the character is being
// created, a player action afterwards.
func (m chatModel) submit(input string) tea.Cmd {
	sess := m.sess
	creating := m.state.Mode == session.ModeAwaitingCharacter
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if creating {
			return sentMsg{err: sess.CreateCharacter(ctx, input)}
		}
		return sentMsg{err: sess.Send(ctx, input)}
	}
}

func describeSendError(err error) string {
	switch {
	case errors.Is(err, session.ErrCharacterPending):
		return "Your character is still being created."
	case errors.Is(err, session.ErrEmptyDescription):
		return session.StatusNeedDescription
	case errors.Is(err, session.ErrNotConnected):
		return "Not connected. Waiting for the server..."
	default:
		return err.Error()
	}
}

func (m chatModel) handleCommand(input string) (tea.Model, tea.Cmd) {
	cmd := strings.ToLower(strings.Fields(input)[0])

	switch cmd {
	case "/quit", "/exit", "/q":
		return m.quit()

	case "/sheet":
		m.showSheet = !m.showSheet
		m.refresh()
		return m, nil

	case "/help", "/?":
		m.sess.AddSystem(helpText)
		m.refresh()
		return m, nil

	default:
		m.notice = fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd)
		return m, nil
	}
}

func (m chatModel) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.sess.Close()
	return m, tea.Quit
}

// refresh pulls the latest session state and re-renders the transcript.
func (m *chatModel) refresh() {
	m.state = m.sess.Snapshot()
	m.updatePlaceholder()
	if !m.ready {
		return
	}

	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(renderEntries(m.width, m.state.Entries))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *chatModel) updatePlaceholder() {
	if m.state.Mode == session.ModeAwaitingCharacter {
		m.prompt.SetPlaceholder(placeholderCreate)
	} else {
		m.prompt.SetPlaceholder(placeholderPlay)
	}
}

// busy reports whether the narrator is still writing or a character is being
// created.
func (m chatModel) busy() bool {
	if m.state.Mode == session.ModeAwaitingCharacter && m.state.Status != "" &&
		m.state.Status != session.StatusNeedDescription {
		return true
	}
	if n := len(m.state.Entries); n > 0 {
		last := m.state.Entries[n-1]
		if last.Kind == transcript.EntryAI && last.Open {
			return true
		}
		if last.Kind == transcript.EntryTool && last.Tool != nil && !last.Tool.Done {
			return true
		}
	}
	return false
}

func (m chatModel) View() string {
	if m.quitting {
		return "Farewell, adventurer.\n"
	}
	if !m.ready {
		return "Initializing...\n"
	}

	var b strings.Builder

	b.WriteString(ui.TitleStyle.Render("  " + m.title))
	b.WriteString("  ")
	b.WriteString(connBadge(m.state.Conn))
	b.WriteString("\n\n")

	if m.showSheet && m.sheet != nil {
		b.WriteString(m.sheet.Render(m.width))
		b.WriteString("\n")
	}

	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	switch {
	case m.notice != "":
		b.WriteString(ui.ErrorStyle.Render("  " + m.notice))
	case m.busy():
		status := m.state.Status
		if status == "" {
			status = "The story unfolds..."
		}
		b.WriteString(fmt.Sprintf("  %s %s", m.spinner.View(), ui.SystemStyle.Render(status)))
	case m.state.Status != "":
		b.WriteString(ui.SystemStyle.Render("  " + m.state.Status))
	}
	b.WriteString("\n")

	b.WriteString(m.prompt.View())
	b.WriteString("\n")
	b.WriteString(ui.HelpStyle.Render("  /help • /sheet • /quit • PgUp/PgDn scroll • Ctrl+C to exit"))

	return b.String()
}

func connBadge(s session.ConnState) string {
	switch s {
	case session.ConnConnected:
		return ui.HelpStyle.Render(ui.SymbolBullet + " connected")
	case session.ConnReconnecting:
		return ui.ToolCallStyle.Render(ui.SymbolThinking + " reconnecting")
	case session.ConnDisconnected:
		return ui.ErrorStyle.Render(ui.SymbolCross + " disconnected")
	default:
		return ui.HelpStyle.Render(ui.SymbolThinking + " connecting")
	}
}
