package session

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventLog appends every frame exchanged on the live channel to
// <dataDir>/sessions/<session>.jsonl.
type EventLog struct {
	mu      sync.Mutex
	path    string
	f       *os.File
	entropy *ulid.MonotonicEntropy
}

type logRecord struct {
	ID        string          `json:"id"`
	TS        string          `json:"ts"`
	Direction string          `json:"direction"`
	Raw       json.RawMessage `json:"raw,omitempty"`
	Text      string          `json:"text,omitempty"`
}

// OpenEventLog opens (or creates) the log for a session.
func OpenEventLog(dataDir, sessionID string) (*EventLog, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data dir not configured")
	}
	dir := filepath.Join(dataDir, "sessions")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, filepath.Base(sessionID)+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &EventLog{
		path:    path,
		f:       f,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(now.UnixNano())), 0),
	}, nil
}

// Path returns the log file location.
func (l *EventLog) Path() string {
	return l.path
}

// Close closes the underlying file. Later writes are dropped.
func (l *EventLog) Close() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f != nil {
		_ = l.f.Close()
		l.f = nil
	}
}

// Received records a raw server frame. Frames that are not valid JSON are kept
// as text.
func (l *EventLog) Received(raw []byte) {
	rec := logRecord{Direction: "in"}
	if json.Valid(raw) {
		rec.Raw = append(json.RawMessage(nil), raw...)
	} else {
		rec.Text = string(raw)
	}
	l.write(rec)
}

// Sent records text sent to the server.
func (l *EventLog) Sent(text string) {
	l.write(logRecord{Direction: "out", Text: text})
}

func (l *EventLog) write(rec logRecord) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return
	}

	now := time.Now()
	rec.ID = ulid.MustNew(ulid.Timestamp(now), l.entropy).String()
	rec.TS = now.UTC().Format(time.RFC3339Nano)

	// One JSON object per line to keep it append-only and streamable.
	b, err := json.Marshal(rec)
	if err != nil {
		return
	}
	b = append(b, '\n')
	_, _ = l.f.Write(b)
}
