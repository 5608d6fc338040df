package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

// HealthState tracks service health from /healthz polling.
type HealthState struct {
	Status        string
	UptimeSeconds int64
	QueueDepth    int
	Connected     bool
	LastCheck     time.Time
}

// activity lights up on events and fades over ten seconds.
type activity struct {
	lastEvent time.Time
}

func (a *activity) mark(at time.Time) { a.lastEvent = at }

func (a activity) level(now time.Time) int {
	if a.lastEvent.IsZero() {
		return 0
	}
	lit := 5 - int(now.Sub(a.lastEvent)/(2*time.Second))
	return max(lit, 0)
}

func (a activity) render(theme Theme, now time.Time) string {
	lit := a.level(now)
	var b strings.Builder
	for i := range 5 {
		if i < lit {
			b.WriteString(theme.Pulse.Render("●"))
		} else {
			b.WriteString(theme.Idle.Render("○"))
		}
	}
	return b.String()
}

func renderHeader(health HealthState, act activity, spin spinner.Model, theme Theme, width int) string {
	innerWidth := width - 4
	now := time.Now()

	statusText := theme.OK.Render("HEALTHY")
	if !health.Connected {
		statusText = theme.Failed.Render("CONNECTING")
	} else if health.Status != "ok" && health.Status != "" {
		statusText = theme.Failed.Render("DEGRADED")
	}

	lastEventStr := "never"
	if !act.lastEvent.IsZero() {
		lastEventStr = fmt.Sprintf("%s ago", now.Sub(act.lastEvent).Round(time.Second))
	}

	titleText := fmt.Sprintf(" ANSIBLE ACTIONS %s", spin.View())
	clock := theme.Muted.Render(now.Format("15:04:05"))
	pad := max(innerWidth-lipgloss.Width(titleText)-lipgloss.Width(clock)-4, 1)
	titleLine := titleText + strings.Repeat(" ", pad) + clock + " "

	statsLine := fmt.Sprintf(" %s  up %s  Queue: %d",
		statusText,
		formatDuration(time.Duration(health.UptimeSeconds)*time.Second),
		health.QueueDepth,
	)
	activityLine := fmt.Sprintf(" Last event: %s %s", lastEventStr, act.render(theme, now))

	return theme.Frame.Width(innerWidth).Render(lipgloss.JoinVertical(lipgloss.Left,
		titleLine,
		statsLine,
		activityLine,
	))
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
