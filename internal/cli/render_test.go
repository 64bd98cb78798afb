package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolodolo42/questline/internal/api"
	"github.com/yolodolo42/questline/internal/event"
	"github.com/yolodolo42/questline/internal/transcript"
)

func TestRenderEntries(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, renderEntries(80, nil))
	})

	t.Run("user and narrator", func(t *testing.T) {
		out := renderEntries(80, []transcript.Entry{
			{Kind: transcript.EntryUser, Text: "knock"},
			{Kind: transcript.EntryAI, Text: "Nobody answers."},
		})
		assert.Contains(t, out, "You: knock")
		assert.Contains(t, out, "Nobody answers.")
	})

	t.Run("system errors", func(t *testing.T) {
		out := renderEntries(80, []transcript.Entry{
			{Kind: transcript.EntrySystem, Text: "Error: could not read observation results"},
		})
		assert.Contains(t, out, "Error: could not read observation results")
	})

	t.Run("pending tool call", func(t *testing.T) {
		out := renderEntries(80, []transcript.Entry{
			{Kind: transcript.EntryTool, Tool: &transcript.ToolPanel{Name: "roll_dice", Args: "{\n  \"sides\": 20\n}"}},
		})
		assert.Contains(t, out, "roll_dice")
		assert.Contains(t, out, `"sides": 20`)
		assert.Contains(t, out, "waiting for result")
	})

	t.Run("completed tool call", func(t *testing.T) {
		out := renderEntries(80, []transcript.Entry{
			{Kind: transcript.EntryTool, Tool: &transcript.ToolPanel{Name: "roll_dice", Output: "17", Done: true}},
		})
		assert.Contains(t, out, "17")
		assert.NotContains(t, out, "waiting")
	})

	t.Run("long output is cut", func(t *testing.T) {
		output := strings.Repeat("line\n", 30)
		out := renderToolPanel(80, &transcript.ToolPanel{Name: "see_map", Output: output, Done: true})
		assert.Contains(t, out, "... 18 more lines")
	})

	t.Run("standalone output", func(t *testing.T) {
		out := renderEntries(80, []transcript.Entry{{Kind: transcript.EntryToolOutput, Text: "orphan"}})
		assert.Contains(t, out, "tool output")
		assert.Contains(t, out, "orphan")
	})

	t.Run("observation batch table", func(t *testing.T) {
		out := renderEntries(80, []transcript.Entry{{
			Kind: transcript.EntryObservations,
			Observations: []event.Observation{
				{Tool: "see_health", Output: "10/10 HP\nsecond line"},
				{Tool: "see_inventory", Output: "rope"},
			},
		}})
		assert.Contains(t, out, "Observations")
		assert.Contains(t, out, "Tool")
		assert.Contains(t, out, "see_health")
		assert.Contains(t, out, "10/10 HP")
		assert.NotContains(t, out, "second line")
		assert.Contains(t, out, "rope")
	})

	t.Run("empty observation batch", func(t *testing.T) {
		out := renderEntries(80, []transcript.Entry{{Kind: transcript.EntryObservations}})
		assert.Contains(t, out, "nothing observed")
	})
}

func TestRenderTable(t *testing.T) {
	t.Run("aligns columns", func(t *testing.T) {
		out := renderTable(80, &table{
			Headers: []string{"ID", "World"},
			Rows:    [][]string{{"a", "Frozen north"}, {"bbb", "Desert"}},
		})
		lines := strings.Split(out, "\n")
		require.Len(t, lines, 4)
		assert.Equal(t, "ID  | World", lines[0])
		assert.Equal(t, strings.Repeat("-", 18), lines[1])
		assert.Equal(t, "a   | Frozen north", lines[2])
		assert.Equal(t, "bbb | Desert", lines[3])
	})

	t.Run("shrinks to width", func(t *testing.T) {
		out := renderTable(20, &table{
			Headers: []string{"Tool", "Result"},
			Rows:    [][]string{{"see_health", strings.Repeat("x", 40)}},
		})
		for _, line := range strings.Split(out, "\n") {
			assert.LessOrEqual(t, len(line), 20)
		}
		assert.Contains(t, out, "...")
	})
}

func TestRenderStoryTable(t *testing.T) {
	out := renderStoryTable(120, []api.StorySummary{
		{ID: "st-1", LastUpdated: "2025-03-04T10:20:30", WorldDescription: "A drowned\n  kingdom"},
	})
	assert.Contains(t, out, "Found 1 story:")
	assert.Contains(t, out, "st-1")
	assert.Contains(t, out, "2025-03-04 10:20")
	assert.Contains(t, out, "A drowned kingdom")
}

func TestFormatStamp(t *testing.T) {
	tests := []struct {
		updated, created, want string
	}{
		{"2025-03-04T10:20:30.123456", "", "2025-03-04 10:20"},
		{"", "2025-01-01T00:00:00Z", "2025-01-01 00:00"},
		{"", "", "-"},
		{"yesterday", "", "yesterday"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatStamp(tt.updated, tt.created))
	}
}
