// Package watch implements the live job watcher TUI. It follows the service's
// SSE stream and shows each job's status and progress lines.
package watch

import "github.com/charmbracelet/lipgloss"

// Theme holds the watcher's styles. The status colours follow the
// ansible-playbook recap: green ok, yellow changed, red failed.
type Theme struct {
	OK      lipgloss.Style
	Changed lipgloss.Style
	Failed  lipgloss.Style
	Pending lipgloss.Style

	Frame   lipgloss.Style
	Heading lipgloss.Style
	Muted   lipgloss.Style
	Accent  lipgloss.Style
	Cursor  lipgloss.Style

	Pulse lipgloss.Style
	Idle  lipgloss.Style
}

const (
	colorOK      = lipgloss.Color("2")
	colorChanged = lipgloss.Color("3")
	colorFailed  = lipgloss.Color("1")
	colorMuted   = lipgloss.Color("245")
	colorFrame   = lipgloss.Color("63")
	colorAccent  = lipgloss.Color("6")
)

func NewDefaultTheme() Theme {
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

	return Theme{
		OK:      fg(colorOK),
		Changed: fg(colorChanged),
		Failed:  fg(colorFailed).Bold(true),
		Pending: fg(colorMuted),

		Frame:   lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(colorFrame),
		Heading: lipgloss.NewStyle().Bold(true).Underline(true).MarginLeft(1),
		Muted:   fg(colorMuted),
		Accent:  fg(colorAccent),
		Cursor:  fg(colorAccent).Bold(true),

		Pulse: fg(colorOK),
		Idle:  fg(lipgloss.Color("238")),
	}
}

// statusStyle maps a job status, or an ansible result status, to a style.
func (t Theme) statusStyle(status string) lipgloss.Style {
	switch status {
	case "succeeded", "SUCCESS":
		return t.OK
	case "failed", "FAILURE", "UNREACHABLE":
		return t.Failed
	case "running":
		return t.Changed
	default:
		return t.Pending
	}
}
