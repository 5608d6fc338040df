package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/ansible-actions/internal/events"
)

// Options configures a watch session.
type Options struct {
	APIURL string
	APIKey string
	// JobID limits the session to one job. Empty watches every job.
	JobID string
	// ExitWhenDone quits once the watched job completes. Needs JobID.
	ExitWhenDone bool
}

// Model is the BubbleTea model for the watch TUI.
type Model struct {
	opts Options
	api  *apiClient

	width  int
	height int

	health   HealthState
	jobs     *jobBook
	eventLog []events.Event
	lastID   int64
	selected int

	theme    Theme
	spinner  spinner.Model
	progress viewport.Model
	activity activity

	hubEvents chan events.Event

	lastError string
}

// New creates a watch TUI model.
func New(opts Options) *Model {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(colorChanged)

	return &Model{
		opts:      opts,
		api:       newAPIClient(opts.APIURL, opts.APIKey),
		jobs:      newJobBook(),
		eventLog:  make([]events.Event, 0),
		hubEvents: make(chan events.Event, 100),
		theme:     NewDefaultTheme(),
		spinner:   sp,
		progress:  viewport.New(80, 10),
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.api.stream(m.opts.JobID, 0, m.hubEvents),
		nextEvent(m.hubEvents),
		m.api.health,
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		m.spinner.Tick,
		tea.EnterAltScreen,
	}
	if m.opts.JobID != "" {
		cmds = append(cmds, m.api.job(m.opts.JobID))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
				m.refreshProgress()
			}
			return m, nil
		case "down", "j":
			if m.selected < m.jobs.len()-1 {
				m.selected++
				m.refreshProgress()
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(msg.Width-8, 20)
		m.progress.Height = max(msg.Height-28, 5)
		m.refreshProgress()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case eventMsg:
		e := events.Event(msg)
		if e.ID > m.lastID {
			m.lastID = e.ID
		}

		m.eventLog = append([]events.Event{e}, m.eventLog...)
		if len(m.eventLog) > 50 {
			m.eventLog = m.eventLog[:50]
		}
		m.activity.mark(time.Now())
		m.health.Connected = true
		m.lastError = ""

		job := m.jobs.apply(e)
		m.refreshProgress()
		if job != nil && m.opts.ExitWhenDone && job.ID == m.opts.JobID && job.Done() {
			return m, tea.Quit
		}
		return m, nextEvent(m.hubEvents)

	case jobMsg:
		j := m.jobs.get(msg.JobID)
		j.Action = msg.Action
		j.Status = msg.Status
		if len(j.Progress) == 0 {
			for _, p := range msg.Progress {
				j.Progress = append(j.Progress, p.Message)
			}
		}
		if msg.ResultMessage != nil {
			j.Message = *msg.ResultMessage
		}
		if msg.StartedAt != nil {
			j.StartTime = *msg.StartedAt
		}
		if msg.CompletedAt != nil {
			j.EndTime = *msg.CompletedAt
		}
		m.refreshProgress()
		if m.opts.ExitWhenDone && j.Done() {
			return m, tea.Quit
		}

	case healthMsg:
		m.health.Status = msg.Status
		m.health.UptimeSeconds = msg.UptimeSeconds
		m.health.QueueDepth = msg.QueueDepth
		m.health.Connected = true
		m.health.LastCheck = time.Now()
		m.lastError = ""

		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return m.api.health()
		})

	case sseDisconnectedMsg:
		m.health.Connected = false
		m.lastError = "SSE disconnected, reconnecting..."
		return m, tea.Tick(3*time.Second, func(t time.Time) tea.Msg {
			return reconnectMsg{}
		})

	case reconnectMsg:
		// Resume after the last event seen so nothing is shown twice.
		return m, m.api.stream(m.opts.JobID, m.lastID, m.hubEvents)

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return m.api.health()
		})
	}

	return m, nil
}

// refreshProgress shows the selected job's progress lines, pinned to the
// bottom so new output stays visible.
func (m *Model) refreshProgress() {
	j := m.jobs.at(m.selected)
	if j == nil {
		m.progress.SetContent("")
		return
	}
	content := strings.Join(j.Progress, "\n")
	if j.Error != "" {
		content += "\n" + m.theme.Failed.Render("error: "+j.Error)
	}
	m.progress.SetContent(content)
	m.progress.GotoBottom()
}

func (m Model) View() string {
	if m.width == 0 {
		return "Connecting..."
	}

	header := renderHeader(m.health, m.activity, m.spinner, m.theme, m.width)
	jobs := renderJobs(m.jobs, m.selected, m.theme, m.width)

	progressTitle := "PROGRESS"
	if j := m.jobs.at(m.selected); j != nil {
		progressTitle = fmt.Sprintf("PROGRESS %s", j.ID)
	}
	progress := m.theme.Frame.Width(m.width - 4).Render(lipgloss.JoinVertical(lipgloss.Left,
		m.theme.Heading.Render(progressTitle),
		m.progress.View(),
	))
	eventStream := renderEventStream(m.eventLog, m.theme, m.width)

	parts := []string{header, jobs, progress, eventStream}
	if m.lastError != "" {
		parts = append(parts, m.theme.Failed.Render(" ! "+m.lastError))
	}
	parts = append(parts, m.theme.Muted.Render(" [q] Quit • [↑/↓] Select job • [pgup/pgdn] Scroll progress"))

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}
