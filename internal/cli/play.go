package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/yolodolo42/questline/internal/api"
	"github.com/yolodolo42/questline/internal/character"
	"github.com/yolodolo42/questline/internal/config"
	"github.com/yolodolo42/questline/internal/session"
	"github.com/yolodolo42/questline/internal/ui"
	"github.com/yolodolo42/questline/internal/wsclient"
)

var errNotInteractive = errors.New("an interactive terminal is required")

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Start a new game and create a character",
	RunE:  runPlay,
}

var resumeCmd = &cobra.Command{
	Use:   "resume [story-id]",
	Short: "Continue a saved story",
	Long: `Replays the saved conversation of a story and continues it live.
Without an id, pick the story from a list.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResume,
}

func init() {
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(resumeCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	if !isInteractive() {
		return errNotInteractive
	}

	client := newAPIClient()
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
	id, err := client.CreateSession(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to start a game: %w", err)
	}
	logger.Info("session created", "session", id)

	return playSession(cmd.Context(), "questline", id, false, func(*session.Controller) {})
}

func runResume(cmd *cobra.Command, args []string) error {
	if !isInteractive() {
		return errNotInteractive
	}

	client := newAPIClient()
	id := ""
	if len(args) == 1 {
		id = args[0]
	} else {
		picked, err := pickStory(cmd.Context(), client)
		if err != nil {
			return err
		}
		if picked == "" {
			return nil
		}
		id = picked
	}

	return playSession(cmd.Context(), "questline • "+id, id, true, loadStory(cmd.Context(), client, id))
}

// loadStory fetches the saved history of a story and returns the step that
// replays it into a controller. A failed fetch is logged and the story
// continues live on an empty transcript.
func loadStory(parent context.Context, client *api.Client, id string) func(*session.Controller) {
	ctx, cancel := context.WithTimeout(parent, cfg.RequestTimeout)
	defer cancel()

	story, err := client.GetStory(ctx, id)
	if err != nil {
		logger.Warn("failed to load story history", "story", id, "error", err)
		return func(*session.Controller) {}
	}
	return func(c *session.Controller) {
		c.Replay(story.History)
		c.ShowCharacter(story.Character)
	}
}

// playSession wires a controller to the live channel and runs the chat screen
// until the player quits.
func playSession(parent context.Context, title, id string, resume bool, prepare func(*session.Controller)) error {
	if parent == nil {
		parent = context.Background()
	}

	changes := make(chan struct{}, 1)
	sheet := character.NewSheet()

	var eventLog *session.EventLog
	if dir, err := config.DataDir(); err == nil {
		if eventLog, err = session.OpenEventLog(dir, id); err != nil {
			logger.Warn("event log disabled", "error", err)
		}
	}

	ctrl := session.New(session.Options{
		SessionID: id,
		Dial:      dialFunc(wsclient.NewDialer(cfg.ServerURL, sessionCookie(), cfg.ReadLimit, logger)),
		Policy:    session.PolicyFromConfig(cfg.Reconnect),
		View:      sheet,
		EventLog:  eventLog,
		Logger:    logger,
		Resume:    resume,
		OnChange: func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		},
	})
	prepare(ctrl)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- ctrl.Run(ctx) }()

	p := tea.NewProgram(newChatModel(title, ctrl, sheet, changes), tea.WithAltScreen())
	_, err := p.Run()
	ctrl.Close()
	cancel()

	select {
	case rerr := <-runErr:
		if rerr != nil && !errors.Is(rerr, context.Canceled) {
			logger.Warn("live channel stopped", "error", rerr)
		}
	case <-time.After(2 * time.Second):
		logger.Warn("live channel did not stop in time")
	}
	return err
}

func dialFunc(d *wsclient.Dialer) session.DialFunc {
	return func(ctx context.Context, id string) (session.Conn, error) {
		conn, err := d.Dial(ctx, id)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// pickStory lists saved stories and lets the player choose one. An empty id
// means the player cancelled.
func pickStory(parent context.Context, client *api.Client) (string, error) {
	ctx, cancel := context.WithTimeout(parent, cfg.RequestTimeout)
	stories, err := client.ListStories(ctx)
	cancel()
	if err != nil {
		return "", fmt.Errorf("failed to list stories: %w", err)
	}
	if len(stories) == 0 {
		fmt.Println("No stories found.")
		fmt.Println("Use 'questline story new' or 'questline play' to start one.")
		return "", nil
	}

	items := make([]ui.SelectorItem, len(stories))
	for i, s := range stories {
		items[i] = ui.SelectorItem{
			ID:          s.ID,
			Label:       formatStamp(s.LastUpdated, s.CreatedAt),
			Description: oneLine(s.WorldDescription),
		}
	}

	res, err := tea.NewProgram(pickerModel{sel: ui.NewSelector("Choose a story", items)}).Run()
	if err != nil {
		return "", err
	}
	pm := res.(pickerModel)
	return pm.sel.Selected(), nil
}

type pickerModel struct {
	sel ui.Selector
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.sel.SetWidth(msg.Width)
		m.sel.SetHeight(msg.Height - 6)
		return m, nil
	}
	m.sel.Update(msg)
	if !m.sel.Active() {
		return m, tea.Quit
	}
	return m, nil
}

func (m pickerModel) View() string {
	return m.sel.View()
}
