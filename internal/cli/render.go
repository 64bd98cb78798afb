package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/yolodolo42/questline/internal/event"
	"github.com/yolodolo42/questline/internal/transcript"
	"github.com/yolodolo42/questline/internal/ui"
)

const maxOutputLines = 12

func renderEntries(width int, entries []transcript.Entry) string {
	if len(entries) == 0 {
		return ""
	}

	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(renderEntry(width, e))
	}
	return b.String()
}

func renderEntry(width int, e transcript.Entry) string {
	wrap := lipgloss.NewStyle().Width(max(width-2, 20))

	switch e.Kind {
	case transcript.EntryUser:
		return ui.UserStyle.Render("You: ") + wrap.Render(e.Text)
	case transcript.EntryAI:
		text := e.Text
		if e.Open {
			text += " " + ui.SymbolThinking
		}
		return ui.NarratorStyle.Inherit(wrap).Render(text)
	case transcript.EntrySystem:
		if strings.HasPrefix(e.Text, "Error:") {
			return ui.ErrorStyle.Inherit(wrap).Render(e.Text)
		}
		return ui.SystemStyle.Inherit(wrap).Render(e.Text)
	case transcript.EntryTool:
		if e.Tool != nil {
			return renderToolPanel(width, e.Tool)
		}
	case transcript.EntryToolOutput:
		return renderToolPanel(width, &transcript.ToolPanel{Name: "tool output", Output: e.Text, Done: true})
	case transcript.EntryObservations:
		return renderObservations(width, e.Observations)
	}
	// Unknown entry: render nothing to keep the transcript readable.
	return ""
}

func renderToolPanel(width int, p *transcript.ToolPanel) string {
	var b strings.Builder
	b.WriteString(ui.ToolCallStyle.Render(ui.SymbolWrench + " " + p.Name))

	if p.Args != "" {
		for _, line := range strings.Split(p.Args, "\n") {
			b.WriteString("\n")
			b.WriteString(ui.ToolResultStyle.Render(ui.SymbolTreePipe + " " + truncate(line, width-4)))
		}
	}

	b.WriteString("\n")
	if !p.Done {
		b.WriteString(ui.ToolResultStyle.Render(ui.SymbolTree + " " + ui.SymbolThinking + " waiting for result"))
		return b.String()
	}

	lines := strings.Split(strings.TrimRight(p.Output, "\n"), "\n")
	if len(lines) > maxOutputLines {
		more := len(lines) - maxOutputLines
		lines = append(lines[:maxOutputLines], fmt.Sprintf("... %d more lines", more))
	}
	for i, line := range lines {
		sym := ui.SymbolTreeBranch
		if i == len(lines)-1 {
			sym = ui.SymbolTree
		}
		b.WriteString(ui.ToolResultStyle.Render(sym + " " + truncate(line, width-4)))
		if i < len(lines)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderObservations(width int, rows []event.Observation) string {
	title := ui.ObservationStyle.Render(ui.SymbolEye + " Observations")
	if len(rows) == 0 {
		return title + "\n" + ui.SystemStyle.Render("(nothing observed)")
	}

	t := &table{Headers: []string{"Tool", "Result"}}
	for _, r := range rows {
		// Only the first line of a result fits a table cell.
		out, _, _ := strings.Cut(strings.TrimSpace(r.Output), "\n")
		t.Rows = append(t.Rows, []string{r.Tool, out})
	}
	return title + "\n" + renderTable(width, t)
}

type table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

func renderTable(width int, t *table) string {
	cols := len(t.Headers)
	if cols == 0 {
		return ""
	}

	colW := make([]int, cols)
	for c := 0; c < cols; c++ {
		colW[c] = len(t.Headers[c])
	}
	for _, row := range t.Rows {
		for c := 0; c < cols && c < len(row); c++ {
			if l := len(row[c]); l > colW[c] {
				colW[c] = l
			}
		}
	}

	// Shrink the last columns first until the table fits.
	sep := 3 // " | "
	avail := width
	if avail < 20 {
		avail = 20
	}
	for totalWidth(colW, sep) > avail {
		shrunk := false
		for c := cols - 1; c >= 0; c-- {
			if colW[c] > 6 {
				colW[c]--
				shrunk = true
				break
			}
		}
		if !shrunk {
			break
		}
	}

	var b strings.Builder
	if t.Title != "" {
		b.WriteString(t.Title)
		b.WriteString("\n")
	}

	b.WriteString(renderTableRow(t.Headers, colW))
	b.WriteString("\n")
	b.WriteString(renderTableSep(colW, sep))
	b.WriteString("\n")
	for i, row := range t.Rows {
		b.WriteString(renderTableRow(row, colW))
		if i < len(t.Rows)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func totalWidth(colW []int, sep int) int {
	total := 0
	for _, w := range colW {
		total += w
	}
	total += sep * (len(colW) - 1)
	return total
}

func renderTableSep(colW []int, sep int) string {
	var b strings.Builder
	for c, w := range colW {
		if c > 0 {
			b.WriteString(strings.Repeat("-", sep))
		}
		b.WriteString(strings.Repeat("-", w))
	}
	return b.String()
}

func renderTableRow(cells []string, colW []int) string {
	var b strings.Builder
	for c, w := range colW {
		if c > 0 {
			b.WriteString(" | ")
		}
		val := ""
		if c < len(cells) {
			val = cells[c]
		}
		b.WriteString(padRight(truncate(val, w), w))
	}
	return strings.TrimRight(b.String(), " ")
}

func padRight(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}

func truncate(s string, w int) string {
	if w <= 0 || len(s) <= w {
		return s
	}
	if w <= 3 {
		return s[:w]
	}
	return s[:w-3] + "..."
}
