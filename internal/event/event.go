package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind identifies the variant of a ChatEvent.
type Kind string

const (
	KindUser            Kind = "user"
	KindSystem          Kind = "system"
	KindAIChunk         Kind = "ai_chunk"
	KindAIComplete      Kind = "ai_complete"
	KindObservation     Kind = "observation"
	KindToolCall        Kind = "tool_call"
	KindToolOutput      Kind = "tool_output"
	KindCharacterUpdate Kind = "character_update"
	KindError           Kind = "error"
)

// ErrMalformed is returned by Decode for payloads that are not a JSON event object.
var ErrMalformed = errors.New("malformed event")

// ChatEvent is one server-sent event on the live channel.
// Which fields are meaningful depends on Type.
type ChatEvent struct {
	Type    Kind            `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
	Name    string          `json:"name,omitempty"`
	Args    json.RawMessage `json:"args,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Observation is one tool invocation made by the observation agent.
type Observation struct {
	Tool   string `json:"tool"`
	Output string `json:"output"`
}

func (o *Observation) UnmarshalJSON(b []byte) error {
	var raw struct {
		Tool   json.RawMessage `json:"tool"`
		Output json.RawMessage `json:"output"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	o.Tool = RawText(raw.Tool)
	o.Output = RawText(raw.Output)
	return nil
}

// Decode parses a raw frame from the live channel.
//
// A bare {"error": "..."} object, which the server sends before it has a session
// to talk about, is decoded as a KindError event.
func Decode(raw []byte) (ChatEvent, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ChatEvent{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if probe == nil {
		return ChatEvent{}, fmt.Errorf("%w: not an object", ErrMalformed)
	}

	if _, ok := probe["type"]; !ok {
		if msg, ok := probe["error"]; ok {
			return ChatEvent{Type: KindError, Content: msg}, nil
		}
		return ChatEvent{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	var ev ChatEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return ChatEvent{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return ev, nil
}

// Text returns the content as display text.
func (e ChatEvent) Text() string {
	return RawText(e.Content)
}

// ArgsText returns the tool arguments pretty-printed with two-space indentation,
// or "" when the event carries none.
func (e ChatEvent) ArgsText() string {
	return IndentArgs(e.Args)
}

// Observations returns the rows carried by an observation event. The payload
// is a list of rows or a single row; a null or missing payload yields an
// empty slice.
func (e ChatEvent) Observations() ([]Observation, error) {
	if isNull(e.Content) {
		return []Observation{}, nil
	}
	if trimmed := bytes.TrimSpace(e.Content); len(trimmed) > 0 && trimmed[0] == '{' {
		var row Observation
		if err := json.Unmarshal(trimmed, &row); err != nil {
			return nil, fmt.Errorf("%w: observation content: %v", ErrMalformed, err)
		}
		return []Observation{row}, nil
	}
	var rows []Observation
	if err := json.Unmarshal(e.Content, &rows); err != nil {
		return nil, fmt.Errorf("%w: observation content: %v", ErrMalformed, err)
	}
	if rows == nil {
		rows = []Observation{}
	}
	return rows, nil
}

// RawText renders a JSON value as text: strings are unquoted, null is empty,
// anything else is kept as its JSON source.
func RawText(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// IndentArgs pretty-prints a JSON arguments value. Strings are returned as is.
func IndentArgs(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return strings.TrimSpace(string(raw))
	}
	return buf.String()
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
