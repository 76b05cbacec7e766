// Package tui renders the live task dashboard: in-flight pipeline tasks with
// progress, the product count, and the publish action for finished products.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zazzle-agent/taskwatch/guard"
	"github.com/zazzle-agent/taskwatch/internals/schemas"
	"github.com/zazzle-agent/taskwatch/internals/timeouts"
	"github.com/zazzle-agent/taskwatch/registry"
	"github.com/zazzle-agent/taskwatch/sdk"
	"github.com/zazzle-agent/taskwatch/watcher"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	bannerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle       = lipgloss.NewStyle().Faint(true)
	selectedStyle  = lipgloss.NewStyle().Bold(true)
)

type dashboardModel struct {
	watch *watcher.Watcher
	pub   *guard.Guard

	snapshot watcher.Snapshot
	bar      progress.Model
	cursor   int
	notice   string
	dryRun   bool
}

type syncMsg struct{}

type actionDoneMsg struct {
	notice string
}

// Run blocks until the dashboard exits. The watcher must already be running;
// the caller owns its lifecycle.
func Run(watch *watcher.Watcher, pub *guard.Guard, dryRun bool) error {
	model := dashboardModel{
		watch:    watch,
		pub:      pub,
		snapshot: watch.Snapshot(),
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(24)),
		dryRun:   dryRun,
	}
	program := tea.NewProgram(model)
	_, err := program.Run()
	return err
}

func waitForUpdate(watch *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		<-watch.Updates()
		return syncMsg{}
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return waitForUpdate(m.watch)
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case syncMsg:
		m.snapshot = m.watch.Snapshot()
		m.clampCursor()
		return m, waitForUpdate(m.watch)

	case actionDoneMsg:
		m.notice = msg.notice
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.snapshot.Tasks)-1 {
				m.cursor++
			}
		case "c":
			return m, m.cancelSelected()
		case "p":
			return m, m.publishLatest()
		}
	}
	return m, nil
}

func (m *dashboardModel) clampCursor() {
	if m.cursor >= len(m.snapshot.Tasks) {
		m.cursor = len(m.snapshot.Tasks) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m dashboardModel) cancelSelected() tea.Cmd {
	if m.cursor >= len(m.snapshot.Tasks) {
		return nil
	}
	task := m.snapshot.Tasks[m.cursor]
	watch := m.watch
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.SecondShort)
		defer cancel()
		if err := watch.Cancel(ctx, task.TaskID, task.TaskType); err != nil {
			return actionDoneMsg{notice: "cancel failed: " + err.Error()}
		}
		return actionDoneMsg{notice: "cancelled " + task.TaskID}
	}
}

func (m dashboardModel) publishLatest() tea.Cmd {
	if len(m.snapshot.Products) == 0 {
		return func() tea.Msg { return actionDoneMsg{notice: "no product to publish"} }
	}
	product := m.snapshot.Products[0]
	pub := m.pub
	dryRun := m.dryRun
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.SecondDefault)
		defer cancel()
		record, err := pub.Submit(ctx, product.ProductID, schemas.InteractionModeComment, sdk.SubmitOptions{DryRun: dryRun})
		if err != nil {
			return actionDoneMsg{notice: "publish failed: " + err.Error()}
		}
		return actionDoneMsg{notice: "published comment " + record.CommentID}
	}
}

func (m dashboardModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("taskwatch"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d products", len(m.snapshot.Products))))
	b.WriteString("\n\n")

	if m.snapshot.StreamErr != "" {
		b.WriteString(bannerStyle.Render("live updates unavailable: " + m.snapshot.StreamErr))
		b.WriteString("\n")
	}
	if m.snapshot.FetchErr != "" {
		b.WriteString(bannerStyle.Render("fetch error: " + m.snapshot.FetchErr))
		b.WriteString("\n")
	}

	if len(m.snapshot.Tasks) == 0 {
		b.WriteString(dimStyle.Render("no tasks"))
		b.WriteString("\n")
	}
	for i, task := range m.snapshot.Tasks {
		marker := "  "
		if i == m.cursor {
			marker = "> "
		}
		line := marker + m.taskLine(task)
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(m.notice))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("j/k: move  c: cancel  p: publish comment  q: quit"))
	b.WriteString("\n")
	return b.String()
}

func (m dashboardModel) taskLine(task registry.Entry) string {
	switch {
	case task.JustCompleted:
		return completedStyle.Render("✓ ") + task.TaskID + "  " + completedStyle.Render("completed")
	case task.Status == schemas.TaskStatusFailed:
		reason := task.Error
		if reason == "" {
			reason = "failed"
		}
		return failedStyle.Render("✗ ") + task.TaskID + "  " + failedStyle.Render(reason)
	case task.Status == schemas.TaskStatusInProgress:
		percent := 0.0
		if task.Progress != nil {
			percent = *task.Progress / 100
		}
		stage := task.Stage
		if stage == "" {
			stage = task.Message
		}
		return task.TaskID + "  " + m.bar.ViewAs(percent) + "  " + dimStyle.Render(stage)
	default:
		return task.TaskID + "  " + dimStyle.Render(string(task.Status))
	}
}
