package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/yolodolo42/questline/internal/character"
	"github.com/yolodolo42/questline/internal/event"
	"github.com/yolodolo42/questline/internal/transcript"
)

// Mode is the controller state. Incoming events are interpreted according to
// the current mode.
type Mode int

const (
	ModeAwaitingCharacter Mode = iota
	ModeActive
)

func (m Mode) String() string {
	switch m {
	case ModeAwaitingCharacter:
		return "awaiting_character"
	case ModeActive:
		return "active"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Server and status text shown during character creation.
const (
	StartedSentinel = "GAME STARTED!"

	StatusNeedDescription = "Please enter a character description."
	StatusCreating        = "Creating your character... Please wait."
	StatusFinalizing      = "Character details finalized..."

	NoticeActivated       = "Character creation successful! Your adventure begins..."
	NoticeConnectionLost  = "Connection lost. Your message was not sent."
	NoticeReconnectFailed = "Unable to reconnect to the game server."
	NoticeUnreadable      = "Error: received an unreadable message from the server"
)

var (
	ErrCharacterPending   = errors.New("character has not been created yet")
	ErrCharacterExists    = errors.New("character already created")
	ErrEmptyDescription   = errors.New("character description is empty")
	ErrNotConnected       = errors.New("not connected to the game server")
	ErrClosed             = errors.New("session closed")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

// Conn is one open live channel.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, text string) error
	Close() error
}

// DialFunc opens the live channel for a session.
type DialFunc func(ctx context.Context, sessionID string) (Conn, error)

// CharacterView receives every character snapshot pushed by the server.
type CharacterView interface {
	Show(snap *character.Snapshot)
}

// ConnState describes the live channel as seen by the user.
type ConnState string

const (
	ConnConnecting   ConnState = "connecting"
	ConnConnected    ConnState = "connected"
	ConnReconnecting ConnState = "reconnecting"
	ConnDisconnected ConnState = "disconnected"
)

// Options configures a Controller.
type Options struct {
	SessionID string
	Dial      DialFunc
	Policy    ReconnectPolicy
	View      CharacterView
	EventLog  *EventLog
	Logger    *slog.Logger

	// Resume starts the controller in ModeActive, for stories whose
	// character already exists.
	Resume bool

	// OnChange is called after any visible state changed. It must not call
	// back into the controller synchronously.
	OnChange func()
}

// Controller owns everything scoped to one game session: the transcript, the
// creation state machine and the live channel.
type Controller struct {
	mu         sync.Mutex
	sessionID  string
	mode       Mode
	status     string
	connState  ConnState
	transcript *transcript.Reconciler
	conn       Conn

	dial     DialFunc
	policy   ReconnectPolicy
	view     CharacterView
	eventLog *EventLog
	logger   *slog.Logger
	onChange func()

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Controller. Run must be called to open the live channel.
func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session", opts.SessionID)

	c := &Controller{
		sessionID: opts.SessionID,
		mode:      ModeAwaitingCharacter,
		connState: ConnConnecting,
		dial:      opts.Dial,
		policy:    opts.Policy,
		view:      opts.View,
		eventLog:  opts.EventLog,
		logger:    logger,
		onChange:  opts.OnChange,
		done:      make(chan struct{}),
	}
	if opts.Resume {
		c.mode = ModeActive
	}
	c.transcript = transcript.New(
		transcript.WithCharacterSink(c.forwardCharacter),
		transcript.WithLogger(logger),
	)
	return c
}

// View is a consistent copy of the controller state for rendering.
type View struct {
	SessionID string
	Mode      Mode
	Status    string
	Conn      ConnState
	Entries   []transcript.Entry
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		SessionID: c.sessionID,
		Mode:      c.mode,
		Status:    c.status,
		Conn:      c.connState,
		Entries:   c.transcript.Entries(),
	}
}

// Entries returns a copy of the transcript.
func (c *Controller) Entries() []transcript.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript.Entries()
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Status returns the character creation status line.
func (c *Controller) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SessionID returns the session id, or "" once the session was closed.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Replay rebuilds the transcript from a persisted history.
func (c *Controller) Replay(history []transcript.HistoryMessage) {
	c.mu.Lock()
	c.transcript.Replay(history)
	c.mu.Unlock()
	c.notify()
}

// ShowCharacter forwards a snapshot fetched outside the live channel.
func (c *Controller) ShowCharacter(snap *character.Snapshot) {
	if snap == nil || c.view == nil {
		return
	}
	c.view.Show(snap)
	c.notify()
}

// AddSystem appends a local notice to the transcript.
func (c *Controller) AddSystem(text string) {
	c.mu.Lock()
	c.transcript.AddSystem(text)
	c.mu.Unlock()
	c.notify()
}

// Dispatch handles one raw frame from the live channel.
func (c *Controller) Dispatch(raw []byte) {
	c.eventLog.Received(raw)

	ev, err := event.Decode(raw)

	c.mu.Lock()
	if err != nil {
		c.logger.Warn("unreadable event", "error", err, "bytes", len(raw))
		c.transcript.AddSystem(NoticeUnreadable)
	} else if c.mode == ModeAwaitingCharacter {
		c.dispatchCreating(ev)
	} else {
		c.transcript.Apply(ev)
	}
	c.mu.Unlock()

	c.notify()
}

// dispatchCreating handles events while the character is being created.
// Tool traffic drives the status line instead of the transcript.
func (c *Controller) dispatchCreating(ev event.ChatEvent) {
	switch ev.Type {
	case event.KindToolCall:
		c.status = fmt.Sprintf("Creating character... Setting up %s", ev.Name)
	case event.KindToolOutput:
		c.status = StatusFinalizing
	case event.KindSystem:
		c.transcript.Apply(ev)
		if strings.TrimSpace(ev.Text()) == StartedSentinel {
			c.activate()
		}
	case event.KindCharacterUpdate:
		c.activate()
		c.transcript.Apply(ev)
	default:
		c.transcript.Apply(ev)
	}
}

func (c *Controller) activate() {
	c.mode = ModeActive
	c.status = ""
	c.transcript.AddSystem(NoticeActivated)
	c.logger.Info("character created")
}

func (c *Controller) forwardCharacter(data json.RawMessage) {
	snap, err := character.Parse(data)
	if err != nil {
		c.logger.Warn("character update rejected", "error", err)
		return
	}
	if c.view != nil {
		c.view.Show(snap)
	}
}

// Send submits player input. Input is dropped until the character exists.
func (c *Controller) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	if c.mode != ModeActive {
		c.mu.Unlock()
		return ErrCharacterPending
	}
	c.transcript.AddUser(text)
	conn := c.conn
	c.mu.Unlock()

	err := c.write(ctx, conn, text)
	if err != nil {
		c.AddSystem(NoticeConnectionLost)
		return err
	}
	c.notify()
	return nil
}

// CreateCharacter sends the character description while awaiting creation.
func (c *Controller) CreateCharacter(ctx context.Context, description string) error {
	description = strings.TrimSpace(description)

	c.mu.Lock()
	if c.mode != ModeAwaitingCharacter {
		c.mu.Unlock()
		return ErrCharacterExists
	}
	if description == "" {
		c.status = StatusNeedDescription
		c.mu.Unlock()
		c.notify()
		return ErrEmptyDescription
	}
	c.status = StatusCreating
	conn := c.conn
	c.mu.Unlock()
	c.notify()

	if err := c.write(ctx, conn, description); err != nil {
		c.mu.Lock()
		c.status = StatusNeedDescription
		c.mu.Unlock()
		c.notify()
		return err
	}
	return nil
}

func (c *Controller) write(ctx context.Context, conn Conn, text string) error {
	if conn == nil {
		return ErrNotConnected
	}
	if err := conn.Write(ctx, text); err != nil {
		c.logger.Warn("send failed", "error", err)
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	c.eventLog.Sent(text)
	return nil
}

// Run keeps the live channel open until ctx is cancelled, the session is
// closed, or the reconnect policy gives up. A clean Close returns nil.
func (c *Controller) Run(ctx context.Context) error {
	if c.dial == nil {
		return errors.New("no dialer configured")
	}

	attempt := 0
	for {
		id := c.SessionID()
		if id == "" {
			return nil
		}

		conn, err := c.dial(ctx, id)
		if err == nil {
			attempt = 0
			if !c.attach(conn) {
				_ = conn.Close()
				return nil
			}
			err = c.readLoop(ctx, conn)
			c.detach(conn)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if c.closed() {
			return nil
		}

		if attempt >= c.policy.MaxRetries {
			c.setConnState(ConnDisconnected)
			c.AddSystem(NoticeReconnectFailed)
			return fmt.Errorf("%w after %d retries: %v", ErrReconnectExhausted, attempt, err)
		}

		delay := c.policy.Delay(attempt)
		attempt++
		c.logger.Warn("live channel down, retrying",
			"error", err, "attempt", attempt, "max_retries", c.policy.MaxRetries, "delay", delay)
		c.setConnState(ConnReconnecting)

		if err := c.sleep(ctx, delay); err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}
	}
}

func (c *Controller) readLoop(ctx context.Context, conn Conn) error {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		c.Dispatch(data)
	}
}

// attach installs conn unless the session was closed meanwhile.
func (c *Controller) attach(conn Conn) bool {
	c.mu.Lock()
	if c.sessionID == "" {
		c.mu.Unlock()
		return false
	}
	c.conn = conn
	c.connState = ConnConnected
	c.mu.Unlock()
	c.notify()
	return true
}

func (c *Controller) detach(conn Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
}

func (c *Controller) setConnState(s ConnState) {
	c.mu.Lock()
	c.connState = s
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the session: the id is cleared, the channel is closed and no
// further reconnect is attempted.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.sessionID = ""
		conn := c.conn
		c.conn = nil
		c.connState = ConnDisconnected
		c.mu.Unlock()

		close(c.done)
		if conn != nil {
			_ = conn.Close()
		}
		c.eventLog.Close()
		c.logger.Info("session closed")
	})
}

func (c *Controller) notify() {
	if c.onChange != nil {
		c.onChange()
	}
}
