package watch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/ansible-actions/internal/events"
)

// visibleEvents is how many of the newest events the stream pane shows.
const visibleEvents = 6

// importSummary is the subset of an inventory.imported payload the pane shows.
type importSummary struct {
	Source  string `json:"source"`
	Skipped bool   `json:"skipped"`
	Servers int    `json:"servers"`
	Groups  int    `json:"groups"`
}

func renderEventStream(eventLog []events.Event, theme Theme, width int) string {
	body := theme.Muted.Render("  no events received")
	if n := len(eventLog); n > 0 {
		if n > visibleEvents {
			eventLog = eventLog[:visibleEvents]
		}
		rows := make([]string, 0, len(eventLog))
		for _, e := range eventLog {
			rows = append(rows, eventRow(e, theme))
		}
		body = lipgloss.NewStyle().PaddingLeft(1).Render(strings.Join(rows, "\n"))
	}
	return theme.Frame.Width(width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left, theme.Heading.Render("Events"), body))
}

// eventRow renders one line: clock, event type and a short description
// decoded from the payload.
func eventRow(e events.Event, theme Theme) string {
	style, text := theme.Muted, ""

	switch e.Type {
	case events.TypeInventoryImported:
		var s importSummary
		if err := json.Unmarshal(e.Data, &s); err != nil {
			text = rawPreview(e.Data)
			break
		}
		style = theme.Accent
		if s.Skipped {
			text = "seed unchanged, import skipped"
		} else {
			text = fmt.Sprintf("%d servers, %d groups", s.Servers, s.Groups)
		}
	default:
		var p events.JobPayload
		if err := json.Unmarshal(e.Data, &p); err != nil || p.JobID == "" {
			text = rawPreview(e.Data)
			break
		}
		style = jobEventStyle(e.Type, p, theme)
		text = describeJob(p)
	}

	return theme.Muted.Render(e.At.Format("15:04:05")) + " " +
		style.Render(fmt.Sprintf("%-18s", e.Type)) + " " + text
}

func jobEventStyle(eventType string, p events.JobPayload, theme Theme) lipgloss.Style {
	switch eventType {
	case events.TypeJobCompleted:
		if p.Status == "failed" || p.ResultStatus == "FAILURE" {
			return theme.Failed
		}
		return theme.OK
	case events.TypeJobStarted, events.TypeJobProgress:
		return theme.Changed
	}
	return theme.Pending
}

func describeJob(p events.JobPayload) string {
	fields := []string{"[" + shortID(p.JobID) + "]"}
	if p.Action != "" {
		fields = append(fields, p.Action)
	}
	switch {
	case p.ResultStatus != "":
		fields = append(fields, p.ResultStatus)
	case p.Status != "":
		fields = append(fields, p.Status)
	}
	msg := p.Message
	if p.Error != "" {
		msg = p.Error
	}
	if msg != "" {
		fields = append(fields, truncateLine(msg, 50))
	}
	return strings.Join(fields, " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func rawPreview(data json.RawMessage) string {
	if len(data) > 60 {
		return string(data[:60]) + "..."
	}
	return string(data)
}
