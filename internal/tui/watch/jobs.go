package watch

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/ansible-actions/internal/events"
)

// JobState tracks one job as seen through events.
type JobState struct {
	ID           string
	Action       string
	Status       string
	ResultStatus string
	Message      string
	Error        string
	Progress     []string
	StartTime    time.Time
	EndTime      time.Time
}

// Done reports whether the job reached a terminal status.
func (j *JobState) Done() bool {
	return j.Status == "succeeded" || j.Status == "failed"
}

// jobBook keeps jobs in arrival order, newest first.
type jobBook struct {
	byID  map[string]*JobState
	order []string
}

func newJobBook() *jobBook {
	return &jobBook{byID: make(map[string]*JobState)}
}

func (b *jobBook) get(id string) *JobState {
	if j, ok := b.byID[id]; ok {
		return j
	}
	j := &JobState{ID: id, Status: "queued"}
	b.byID[id] = j
	b.order = append([]string{id}, b.order...)
	return j
}

func (b *jobBook) at(i int) *JobState {
	if i < 0 || i >= len(b.order) {
		return nil
	}
	return b.byID[b.order[i]]
}

func (b *jobBook) len() int { return len(b.order) }

// apply folds one event into the book and returns the affected job, or nil
// for events that carry no job.
func (b *jobBook) apply(e events.Event) *JobState {
	var p events.JobPayload
	if err := json.Unmarshal(e.Data, &p); err != nil || p.JobID == "" {
		return nil
	}
	j := b.get(p.JobID)
	if p.Action != "" {
		j.Action = p.Action
	}

	switch e.Type {
	case events.TypeJobQueued:
	case events.TypeJobStarted:
		j.Status = "running"
		j.StartTime = e.At
	case events.TypeJobProgress:
		if j.Status == "queued" {
			j.Status = "running"
		}
		j.Progress = append(j.Progress, p.Message)
	case events.TypeJobCompleted:
		j.Status = p.Status
		j.ResultStatus = p.ResultStatus
		j.Message = p.Message
		j.Error = p.Error
		j.EndTime = e.At
	}
	return j
}

func renderJobs(book *jobBook, selected int, theme Theme, width int) string {
	innerWidth := width - 4
	title := theme.Heading.Render("JOBS")

	if book.len() == 0 {
		return theme.Frame.Width(innerWidth).Render(lipgloss.JoinVertical(lipgloss.Left,
			title,
			theme.Muted.Render("  No jobs yet..."),
		))
	}

	var lines []string
	for i := 0; i < book.len() && i < 8; i++ {
		j := book.at(i)
		id := j.ID
		if len(id) > 8 {
			id = id[:8]
		}
		marker := "  "
		if i == selected {
			marker = theme.Cursor.Render("▸ ")
		}
		status := theme.statusStyle(j.Status).Render(fmt.Sprintf("%-9s", j.Status))
		line := fmt.Sprintf("%s%s %-18s %s %s", marker, id, j.Action, status, elapsed(j))
		if j.Message != "" {
			line += "  " + theme.Muted.Render(truncateLine(j.Message, 40))
		}
		lines = append(lines, line)
	}

	return theme.Frame.Width(innerWidth).Render(lipgloss.JoinVertical(lipgloss.Left,
		title,
		strings.Join(lines, "\n"),
	))
}

func elapsed(j *JobState) string {
	if j.StartTime.IsZero() {
		return ""
	}
	end := j.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	return formatDuration(end.Sub(j.StartTime))
}

func truncateLine(s string, n int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
