package transcript

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/yolodolo42/questline/internal/event"
)

// Markers for boilerplate that is never shown when replaying history.
const (
	guidelinesMarker  = "Guidelines"
	worldSeedPrefix   = "World Description:"
	adventureSeedText = "Begin the adventure."
)

// Reconciler turns a persisted history and a live event stream into an ordered
// list of display entries. It is not safe for concurrent use; the session
// controller serializes access.
type Reconciler struct {
	entries []*Entry

	// openAI receives ai_chunk text until ai_complete.
	openAI *Entry
	// openBatch collects consecutive observation rows.
	openBatch *Entry

	// Live tool calls awaiting output, by name and in arrival order.
	pending      map[string]*pendingCall
	pendingOrder []*pendingCall

	onCharacter func(json.RawMessage)
	logger      *slog.Logger
}

type pendingCall struct {
	name  string
	entry *Entry
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithCharacterSink sets the collaborator that receives character_update
// payloads verbatim.
func WithCharacterSink(fn func(json.RawMessage)) Option {
	return func(r *Reconciler) { r.onCharacter = fn }
}

// WithLogger sets the logger used for ignored and unknown input.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// New creates an empty Reconciler.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{
		pending: make(map[string]*pendingCall),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Entries returns a copy of the current transcript.
func (r *Reconciler) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.clone()
	}
	return out
}

// Len returns the number of display entries.
func (r *Reconciler) Len() int {
	return len(r.entries)
}

// AddUser appends a user message.
func (r *Reconciler) AddUser(text string) {
	r.append(&Entry{Kind: EntryUser, Text: text})
}

// AddSystem appends a system message.
func (r *Reconciler) AddSystem(text string) {
	r.append(&Entry{Kind: EntrySystem, Text: text})
}

// append adds a non-observation entry, which ends any observation run.
func (r *Reconciler) append(e *Entry) {
	r.openBatch = nil
	r.entries = append(r.entries, e)
}

func (r *Reconciler) observe(rows ...event.Observation) {
	if r.openBatch == nil {
		r.openBatch = &Entry{Kind: EntryObservations, Observations: []event.Observation{}}
		r.entries = append(r.entries, r.openBatch)
	}
	r.openBatch.Observations = append(r.openBatch.Observations, rows...)
}

// Replay appends the display entries reconstructed from a persisted history.
// Tool calls are paired through a single pending slot; a call still unmatched
// at the end of the history is shown without output.
func (r *Reconciler) Replay(history []HistoryMessage) {
	var pending *ToolPanel
	flushPending := func() {
		if pending != nil {
			r.append(&Entry{Kind: EntryTool, Tool: pending})
			pending = nil
		}
	}

	for _, msg := range history {
		switch msg.Type {
		case string(event.KindToolCall):
			r.openBatch = nil
			flushPending()
			pending = &ToolPanel{Name: msg.Name, Args: event.IndentArgs(msg.Args)}
			continue
		case string(event.KindToolOutput):
			if pending == nil {
				r.append(&Entry{Kind: EntryToolOutput, Text: msg.Text()})
				continue
			}
			pending.Output = msg.Text()
			pending.Done = true
			flushPending()
			continue
		}

		text := msg.Text()
		role := strings.ToLower(msg.Role)
		switch {
		case strings.HasPrefix(role, "human"):
			if isSeedMessage(text) {
				continue
			}
			r.AddUser(text)

		case strings.HasPrefix(role, "system"):
			if strings.Contains(text, guidelinesMarker) {
				continue
			}
			r.AddSystem(text)

		case strings.HasPrefix(role, "ai"):
			if strings.TrimSpace(text) == "" {
				continue
			}
			switch {
			case isObservationText(text):
				r.observe(parseObservation(text))
			case isToolText(text):
				panel := parseToolText(text)
				r.append(&Entry{Kind: EntryTool, Tool: &panel})
			default:
				r.append(&Entry{Kind: EntryAI, Text: text})
			}

		default:
			r.logger.Debug("skipping history message", "role", msg.Role, "type", msg.Type)
		}
	}

	flushPending()
	r.openBatch = nil
}

func isSeedMessage(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), worldSeedPrefix) ||
		strings.Contains(text, adventureSeedText)
}

// Apply folds one live event into the transcript.
func (r *Reconciler) Apply(ev event.ChatEvent) {
	switch ev.Type {
	case event.KindUser:
		// Echoed locally when sent.

	case event.KindSystem:
		r.AddSystem(ev.Text())

	case event.KindError:
		r.AddSystem("Error: " + ev.Text())

	case event.KindAIChunk:
		r.appendChunk(ev.Text())

	case event.KindAIComplete:
		if r.openAI != nil {
			r.openAI.Open = false
			r.openAI = nil
		}

	case event.KindObservation:
		rows, err := ev.Observations()
		if err != nil {
			r.logger.Warn("bad observation payload", "error", err)
			r.AddSystem("Error: could not read observation results")
			return
		}
		r.observe(rows...)

	case event.KindToolCall:
		r.openToolCall(ev.Name, ev.ArgsText())

	case event.KindToolOutput:
		r.attachToolOutput(ev.Name, ev.Text())

	case event.KindCharacterUpdate:
		if r.onCharacter != nil {
			r.onCharacter(ev.Data)
		}

	default:
		r.logger.Info("ignoring unknown event", "type", ev.Type)
	}
}

func (r *Reconciler) appendChunk(text string) {
	if r.openAI == nil {
		r.openAI = &Entry{Kind: EntryAI, Open: true}
		r.append(r.openAI)
	} else {
		r.openBatch = nil
	}
	r.openAI.Text += text
}

func (r *Reconciler) openToolCall(name, args string) {
	e := &Entry{Kind: EntryTool, Tool: &ToolPanel{Name: name, Args: args}}
	r.append(e)

	pc := &pendingCall{name: name, entry: e}
	r.pending[name] = pc
	r.pendingOrder = append(r.pendingOrder, pc)
}

func (r *Reconciler) attachToolOutput(name, output string) {
	pc := r.matchPending(name)
	if pc == nil {
		r.append(&Entry{Kind: EntryToolOutput, Text: output})
		return
	}
	pc.entry.Tool.Output = output
	pc.entry.Tool.Done = true
	r.openBatch = nil
	r.dropPending(pc)
}

// matchPending finds the call an output belongs to. A named output matches that
// name; an unnamed one takes the oldest call still waiting.
func (r *Reconciler) matchPending(name string) *pendingCall {
	if name != "" {
		if pc, ok := r.pending[name]; ok {
			return pc
		}
	}
	if len(r.pendingOrder) == 0 {
		return nil
	}
	return r.pendingOrder[0]
}

func (r *Reconciler) dropPending(pc *pendingCall) {
	if cur, ok := r.pending[pc.name]; ok && cur == pc {
		delete(r.pending, pc.name)
	}
	for i, p := range r.pendingOrder {
		if p == pc {
			r.pendingOrder = append(r.pendingOrder[:i], r.pendingOrder[i+1:]...)
			break
		}
	}
}

// PendingCalls returns the names of live tool calls still waiting for output.
func (r *Reconciler) PendingCalls() []string {
	names := make([]string, len(r.pendingOrder))
	for i, pc := range r.pendingOrder {
		names[i] = pc.name
	}
	return names
}
