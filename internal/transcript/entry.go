package transcript

import (
	"encoding/json"

	"github.com/yolodolo42/questline/internal/event"
)

// EntryKind identifies how a display entry is rendered.
type EntryKind string

const (
	EntryUser         EntryKind = "user"
	EntrySystem       EntryKind = "system"
	EntryAI           EntryKind = "ai"
	EntryTool         EntryKind = "tool"
	EntryToolOutput   EntryKind = "tool_output"
	EntryObservations EntryKind = "observations"
)

// Entry is one display-ready unit of the transcript.
type Entry struct {
	Kind EntryKind `json:"kind"`

	// Text is set for user, system, ai and standalone tool output entries.
	Text string `json:"text,omitempty"`

	// Open is true while an AI entry is still receiving chunks.
	Open bool `json:"open,omitempty"`

	Tool         *ToolPanel          `json:"tool,omitempty"`
	Observations []event.Observation `json:"observations,omitempty"`
}

// ToolPanel pairs a tool invocation with its result.
type ToolPanel struct {
	Name   string `json:"name"`
	Args   string `json:"args,omitempty"`
	Output string `json:"output,omitempty"`
	// Done reports whether an output has been attached.
	Done bool `json:"done"`
}

func (e *Entry) clone() Entry {
	out := *e
	if e.Tool != nil {
		tp := *e.Tool
		out.Tool = &tp
	}
	if e.Observations != nil {
		out.Observations = append([]event.Observation(nil), e.Observations...)
	}
	return out
}

// HistoryMessage is one element of a persisted chat history array. Legacy
// entries carry Role; structured tool entries carry Type.
type HistoryMessage struct {
	Role    string          `json:"role,omitempty"`
	Type    string          `json:"type,omitempty"`
	Name    string          `json:"name,omitempty"`
	Args    json.RawMessage `json:"args,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// Text returns the message content as display text.
func (m HistoryMessage) Text() string {
	return event.RawText(m.Content)
}
