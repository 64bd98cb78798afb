package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolodolo42/questline/internal/character"
	"github.com/yolodolo42/questline/internal/transcript"
)

var errFakeClosed = errors.New("fake conn closed")

type fakeConn struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu   sync.Mutex
	sent []string
	fail error
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (f *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case b, ok := <-f.in:
		if !ok {
			return nil, errFakeClosed
		}
		return b, nil
	case <-f.closed:
		return nil, errFakeClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeConn) Write(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type recordingView struct {
	mu    sync.Mutex
	snaps []*character.Snapshot
}

func (v *recordingView) Show(s *character.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snaps = append(v.snaps, s)
}

func (v *recordingView) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.snaps)
}

// attachConn installs conn directly, bypassing Run.
func attachConn(t *testing.T, c *Controller, conn Conn) {
	t.Helper()
	require.True(t, c.attach(conn))
}

func fastPolicy(retries int) ReconnectPolicy {
	return ReconnectPolicy{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, MaxRetries: retries}
}

func kinds(entries []transcript.Entry) []transcript.EntryKind {
	out := make([]transcript.EntryKind, len(entries))
	for i, e := range entries {
		out[i] = e.Kind
	}
	return out
}

func TestController_CreationFlow(t *testing.T) {
	t.Run("starts awaiting character", func(t *testing.T) {
		c := New(Options{SessionID: "s-1"})
		assert.Equal(t, ModeAwaitingCharacter, c.Mode())
	})

	t.Run("resume starts active", func(t *testing.T) {
		c := New(Options{SessionID: "s-1", Resume: true})
		assert.Equal(t, ModeActive, c.Mode())
	})

	t.Run("empty description sets prompt status", func(t *testing.T) {
		c := New(Options{SessionID: "s-1"})
		err := c.CreateCharacter(context.Background(), "   ")
		assert.ErrorIs(t, err, ErrEmptyDescription)
		assert.Equal(t, StatusNeedDescription, c.Status())
	})

	t.Run("description is sent and status updated", func(t *testing.T) {
		c := New(Options{SessionID: "s-1"})
		conn := newFakeConn()
		attachConn(t, c, conn)

		require.NoError(t, c.CreateCharacter(context.Background(), " a wandering bard "))
		assert.Equal(t, []string{"a wandering bard"}, conn.Sent())
		assert.Equal(t, StatusCreating, c.Status())
		assert.Empty(t, c.Entries())
	})

	t.Run("tool traffic drives status, not transcript", func(t *testing.T) {
		c := New(Options{SessionID: "s-1"})

		c.Dispatch([]byte(`{"type":"tool_call","name":"create_character","args":{}}`))
		assert.Equal(t, "Creating character... Setting up create_character", c.Status())

		c.Dispatch([]byte(`{"type":"tool_output","name":"create_character","content":"ok"}`))
		assert.Equal(t, StatusFinalizing, c.Status())
		assert.Empty(t, c.Entries())
	})

	t.Run("started sentinel is shown then activates", func(t *testing.T) {
		c := New(Options{SessionID: "s-1"})
		c.Dispatch([]byte(`{"type":"system","content":"GAME STARTED!"}`))

		assert.Equal(t, ModeActive, c.Mode())
		assert.Empty(t, c.Status())
		entries := c.Entries()
		require.Len(t, entries, 2)
		assert.Equal(t, StartedSentinel, entries[0].Text)
		assert.Equal(t, NoticeActivated, entries[1].Text)
	})

	t.Run("character update activates and reaches view", func(t *testing.T) {
		view := &recordingView{}
		c := New(Options{SessionID: "s-1", View: view})
		c.Dispatch([]byte(`{"type":"character_update","data":{"name":"Ayla"}}`))

		assert.Equal(t, ModeActive, c.Mode())
		require.Equal(t, 1, view.count())
		assert.Equal(t, "Ayla", view.snaps[0].Name)
	})

	t.Run("other system messages are shown while creating", func(t *testing.T) {
		c := New(Options{SessionID: "s-1"})
		c.Dispatch([]byte(`{"type":"system","content":"Welcome, traveller."}`))
		assert.Equal(t, ModeAwaitingCharacter, c.Mode())
		assert.Equal(t, []transcript.EntryKind{transcript.EntrySystem}, kinds(c.Entries()))
	})
}

func TestController_Send(t *testing.T) {
	t.Run("dropped while awaiting character", func(t *testing.T) {
		c := New(Options{SessionID: "s-1"})
		conn := newFakeConn()
		attachConn(t, c, conn)

		err := c.Send(context.Background(), "look around")
		assert.ErrorIs(t, err, ErrCharacterPending)
		assert.Empty(t, conn.Sent())
		assert.Empty(t, c.Entries())
	})

	t.Run("echoes locally and writes when active", func(t *testing.T) {
		c := New(Options{SessionID: "s-1", Resume: true})
		conn := newFakeConn()
		attachConn(t, c, conn)

		require.NoError(t, c.Send(context.Background(), "open the door"))
		assert.Equal(t, []string{"open the door"}, conn.Sent())
		entries := c.Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, transcript.EntryUser, entries[0].Kind)
		assert.Equal(t, "open the door", entries[0].Text)
	})

	t.Run("blank input is ignored", func(t *testing.T) {
		c := New(Options{SessionID: "s-1", Resume: true})
		require.NoError(t, c.Send(context.Background(), "  "))
		assert.Empty(t, c.Entries())
	})

	t.Run("no connection adds notice", func(t *testing.T) {
		c := New(Options{SessionID: "s-1", Resume: true})
		err := c.Send(context.Background(), "hello")
		assert.ErrorIs(t, err, ErrNotConnected)
		entries := c.Entries()
		require.Len(t, entries, 2)
		assert.Equal(t, NoticeConnectionLost, entries[1].Text)
	})

	t.Run("write failure is reported", func(t *testing.T) {
		c := New(Options{SessionID: "s-1", Resume: true})
		conn := newFakeConn()
		conn.fail = errors.New("broken pipe")
		attachConn(t, c, conn)

		err := c.Send(context.Background(), "hello")
		assert.ErrorIs(t, err, ErrNotConnected)
	})
}

func TestController_Dispatch(t *testing.T) {
	t.Run("malformed frame becomes system entry", func(t *testing.T) {
		c := New(Options{SessionID: "s-1", Resume: true})
		c.Dispatch([]byte(`{not json`))
		c.Dispatch([]byte(`{"type":"ai_chunk","content":"still here"}`))

		entries := c.Entries()
		require.Len(t, entries, 2)
		assert.Equal(t, NoticeUnreadable, entries[0].Text)
		assert.Equal(t, "still here", entries[1].Text)
	})

	t.Run("bad character payload is dropped", func(t *testing.T) {
		view := &recordingView{}
		c := New(Options{SessionID: "s-1", Resume: true, View: view})
		c.Dispatch([]byte(`{"type":"character_update","data":{"error":"Session not found"}}`))
		assert.Equal(t, 0, view.count())
	})

	t.Run("notifies on change", func(t *testing.T) {
		var n atomic.Int32
		c := New(Options{SessionID: "s-1", Resume: true, OnChange: func() { n.Add(1) }})
		c.Dispatch([]byte(`{"type":"ai_chunk","content":"a"}`))
		assert.Equal(t, int32(1), n.Load())
	})
}

func TestController_Run(t *testing.T) {
	t.Run("bounded retries then terminal notice", func(t *testing.T) {
		var dials atomic.Int32
		c := New(Options{
			SessionID: "s-1",
			Resume:    true,
			Policy:    fastPolicy(3),
			Dial: func(ctx context.Context, id string) (Conn, error) {
				dials.Add(1)
				return nil, errors.New("refused")
			},
		})

		err := c.Run(context.Background())
		require.ErrorIs(t, err, ErrReconnectExhausted)
		assert.Equal(t, int32(4), dials.Load())

		view := c.Snapshot()
		assert.Equal(t, ConnDisconnected, view.Conn)
		require.NotEmpty(t, view.Entries)
		assert.Equal(t, NoticeReconnectFailed, view.Entries[len(view.Entries)-1].Text)
	})

	t.Run("close stops reconnecting", func(t *testing.T) {
		var dials atomic.Int32
		var c *Controller
		c = New(Options{
			SessionID: "s-1",
			Policy:    fastPolicy(100),
			Dial: func(ctx context.Context, id string) (Conn, error) {
				if dials.Add(1) == 2 {
					c.Close()
				}
				return nil, errors.New("refused")
			},
		})

		require.NoError(t, c.Run(context.Background()))
		assert.Equal(t, int32(2), dials.Load())
		assert.Empty(t, c.SessionID())
	})

	t.Run("frames are dispatched and drops reconnect", func(t *testing.T) {
		first, second := newFakeConn(), newFakeConn()
		conns := make(chan *fakeConn, 2)
		conns <- first
		conns <- second

		c := New(Options{
			SessionID: "s-1",
			Resume:    true,
			Policy:    fastPolicy(1),
			Dial: func(ctx context.Context, id string) (Conn, error) {
				assert.Equal(t, "s-1", id)
				select {
				case fc := <-conns:
					return fc, nil
				default:
					return nil, errors.New("refused")
				}
			},
		})

		done := make(chan error, 1)
		go func() { done <- c.Run(context.Background()) }()

		first.in <- []byte(`{"type":"ai_chunk","content":"The gate "}`)
		first.in <- []byte(`{"type":"ai_chunk","content":"creaks."}`)
		close(first.in)

		second.in <- []byte(`{"type":"ai_complete"}`)

		require.Eventually(t, func() bool {
			return c.Snapshot().Conn == ConnConnected && len(second.in) == 0
		}, 2*time.Second, 5*time.Millisecond)

		entries := c.Entries()
		require.NotEmpty(t, entries)
		assert.Equal(t, "The gate creaks.", entries[0].Text)

		c.Close()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not stop after Close")
		}
	})

	t.Run("context cancel stops", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		c := New(Options{
			SessionID: "s-1",
			Policy:    ReconnectPolicy{BaseDelay: time.Hour, MaxRetries: 5},
			Dial: func(ctx context.Context, id string) (Conn, error) {
				cancel()
				return nil, errors.New("refused")
			},
		})
		assert.ErrorIs(t, c.Run(ctx), context.Canceled)
	})
}

func TestReconnectPolicy_Delay(t *testing.T) {
	t.Run("fixed", func(t *testing.T) {
		p := DefaultPolicy()
		assert.Equal(t, 3*time.Second, p.Delay(0))
		assert.Equal(t, 3*time.Second, p.Delay(7))
	})

	t.Run("exponential capped", func(t *testing.T) {
		p := ReconnectPolicy{Exponential: true, BaseDelay: time.Second, MaxDelay: 10 * time.Second}
		assert.Equal(t, time.Second, p.Delay(0))
		assert.Equal(t, 2*time.Second, p.Delay(1))
		assert.Equal(t, 8*time.Second, p.Delay(3))
		assert.Equal(t, 10*time.Second, p.Delay(4))
		assert.Equal(t, 10*time.Second, p.Delay(1000))
	})
}
