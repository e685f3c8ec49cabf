package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"convoy/internal/events"
	"convoy/internal/job"
	"convoy/internal/orchestrator"
)

const (
	tuiQueueSize   = 1024
	tuiLabelWidth  = 36
	tuiDefaultSize = 30
)

var (
	tuiTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	tuiMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	tuiErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	tuiOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	tuiWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	tuiRunStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	tuiPanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// tuiView renders the batch with bubbletea. Events are queued so the
// emitting job never waits on the render loop; progress is dropped when the
// queue is full, lifecycle events are not.
type tuiView struct {
	orch  *orchestrator.Orchestrator
	queue chan events.Event
	done  chan struct{}
	once  sync.Once
}

func newTUIView(orch *orchestrator.Orchestrator, expected int) *tuiView {
	size := tuiQueueSize
	if expected*4 > size {
		size = expected * 4
	}
	return &tuiView{orch: orch, queue: make(chan events.Event, size), done: make(chan struct{})}
}

func (v *tuiView) OnEvent(evt events.Event) {
	if evt.Type == events.TypeProgress {
		select {
		case v.queue <- evt:
		case <-v.done:
		default:
		}
		return
	}
	select {
	case v.queue <- evt:
	case <-v.done:
	}
}

func (v *tuiView) Run(ctx context.Context, handle *orchestrator.BatchHandle) error {
	defer v.once.Do(func() { close(v.done) })
	model := newTUIModel(handle, v.queue, v.orch.CancelAll)
	program := tea.NewProgram(model, tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

type tuiEventMsg events.Event

func waitForEvent(queue <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		return tuiEventMsg(<-queue)
	}
}

type tuiRow struct {
	label   string
	state   job.State
	percent float64
	elapsed time.Duration
	total   time.Duration
	message string
}

type tuiModel struct {
	queue  <-chan events.Event
	cancel func()

	order []string
	rows  map[string]*tuiRow
	notes []string
	bar   progress.Model

	cancelling bool
	settled    bool
	started    time.Time
}

func newTUIModel(handle *orchestrator.BatchHandle, queue <-chan events.Event, cancel func()) tuiModel {
	m := tuiModel{
		queue:   queue,
		cancel:  cancel,
		rows:    make(map[string]*tuiRow),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(tuiDefaultSize), progress.WithoutPercentage()),
		started: time.Now(),
	}
	for _, snap := range handle.Jobs() {
		m.order = append(m.order, snap.ID)
		m.rows[snap.ID] = &tuiRow{label: snap.Descriptor.FileName(), state: snap.State}
	}
	for _, r := range handle.Rejected() {
		m.notes = append(m.notes, fmt.Sprintf("skipped %s: %v", r.Descriptor.FileName(), r.Err))
	}
	return m
}

func (m tuiModel) Init() tea.Cmd {
	return waitForEvent(m.queue)
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		width := msg.Width - tuiLabelWidth - 40
		if width < 10 {
			width = 10
		}
		if width > 60 {
			width = 60
		}
		m.bar.Width = width
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.cancelling {
				m.cancelling = true
				m.cancel()
			}
		}
		return m, nil
	case tuiEventMsg:
		m.apply(events.Event(msg))
		if m.settled {
			return m, tea.Quit
		}
		return m, waitForEvent(m.queue)
	}
	return m, nil
}

func (m *tuiModel) apply(evt events.Event) {
	if evt.Type == events.TypeBatchSettled {
		m.settled = true
		return
	}
	row, ok := m.rows[evt.Job.ID]
	if !ok {
		if evt.Type == events.TypeRejected {
			return
		}
		row = &tuiRow{label: evt.Job.Descriptor.FileName()}
		m.rows[evt.Job.ID] = row
		m.order = append(m.order, evt.Job.ID)
	}
	switch evt.Type {
	case events.TypeStarted:
		row.state = job.StateRunning
	case events.TypeProgress:
		row.percent = evt.Percent
		row.elapsed = evt.Elapsed
		row.total = evt.Total
	case events.TypeCompleted:
		row.state = job.StateCompleted
		row.percent = 100
		row.message = "done in " + formatDuration(evt.Elapsed)
	case events.TypeCancelled:
		row.state = job.StateCancelled
		row.message = "cancelled"
	case events.TypeFailed:
		row.state = job.StateFailed
		row.message = evt.Message
	}
}

func (m tuiModel) View() string {
	var counts [5]int
	for _, id := range m.order {
		switch m.rows[id].state {
		case job.StatePending:
			counts[0]++
		case job.StateRunning:
			counts[1]++
		case job.StateCompleted:
			counts[2]++
		case job.StateFailed:
			counts[3]++
		case job.StateCancelled:
			counts[4]++
		}
	}

	header := tuiTitleStyle.Render("convoy")
	summary := tuiMutedStyle.Render(fmt.Sprintf("%d queued · %d running · %d done · %d failed · %d cancelled · %s",
		counts[0], counts[1], counts[2], counts[3], counts[4], formatClock(time.Since(m.started))))

	lines := make([]string, 0, len(m.order))
	for _, id := range m.order {
		lines = append(lines, m.renderRow(m.rows[id]))
	}
	body := tuiPanelStyle.Render(strings.Join(lines, "\n"))

	footer := tuiMutedStyle.Render("q / ctrl+c: cancel batch")
	if m.cancelling {
		footer = tuiWarnStyle.Render("cancelling: waiting for running jobs to stop...")
	}

	parts := []string{header, summary, body}
	for _, note := range m.notes {
		parts = append(parts, tuiWarnStyle.Render(note))
	}
	parts = append(parts, footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n"
}

func (m tuiModel) renderRow(row *tuiRow) string {
	label := fmt.Sprintf("%-*s", tuiLabelWidth, truncateRunes(row.label, tuiLabelWidth))
	var state, detail string
	switch row.state {
	case job.StatePending:
		state = tuiMutedStyle.Render("queued   ")
	case job.StateRunning:
		state = tuiRunStyle.Render("running  ")
		detail = m.bar.ViewAs(row.percent/100) + " " + formatProgress(row.elapsed, row.total, row.percent)
	case job.StateCompleted:
		state = tuiOKStyle.Render("completed")
		detail = tuiMutedStyle.Render(row.message)
	case job.StateCancelled:
		state = tuiWarnStyle.Render("cancelled")
	case job.StateFailed:
		state = tuiErrorStyle.Render("failed   ")
		detail = tuiErrorStyle.Render(truncateRunes(row.message, 60))
	}
	return strings.TrimRight(label+" "+state+" "+detail, " ")
}

func truncateRunes(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
