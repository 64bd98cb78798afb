package transcript

import (
	"regexp"
	"strings"

	"github.com/yolodolo42/questline/internal/event"
)

// Older transcripts stored tool activity as plain AI text.
const (
	observationSentinel = "Observation AI called Tool"
	toolSentinel        = "Tool AI called Tool"

	// fallbackObservationTool names rows whose text could not be parsed.
	fallbackObservationTool = "Observation"
	// fallbackToolName names panels whose text could not be parsed.
	fallbackToolName = "Tool"
)

var (
	observationPattern = regexp.MustCompile(`(?s)^Observation AI called Tool (\S+) and got response:\n ?(.*)$`)
	toolPattern        = regexp.MustCompile(`(?s)^Tool AI called Tool (\S+)(?: with arguments: (.*?))? and got response:\n ?(.*)$`)
)

func isObservationText(text string) bool {
	return strings.HasPrefix(strings.TrimLeft(text, " \t\r\n"), observationSentinel)
}

func isToolText(text string) bool {
	return strings.HasPrefix(strings.TrimLeft(text, " \t\r\n"), toolSentinel)
}

// parseObservation extracts the tool and output from a legacy observation
// message. Unparseable text becomes a single row holding the whole message.
func parseObservation(text string) event.Observation {
	m := observationPattern.FindStringSubmatch(strings.TrimLeft(text, " \t\r\n"))
	if m == nil {
		return event.Observation{Tool: fallbackObservationTool, Output: text}
	}
	return event.Observation{Tool: m[1], Output: m[2]}
}

// parseToolText extracts a combined panel from a legacy descriptive tool message.
// The arguments clause is optional. Unparseable text becomes a panel named
// "Tool" holding the whole message as output.
func parseToolText(text string) ToolPanel {
	m := toolPattern.FindStringSubmatch(strings.TrimLeft(text, " \t\r\n"))
	if m == nil {
		return ToolPanel{Name: fallbackToolName, Output: text, Done: true}
	}
	return ToolPanel{Name: m[1], Args: m[2], Output: m[3], Done: true}
}
