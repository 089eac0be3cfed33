package tui

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"lifeforge/internal/engine"
	"lifeforge/internal/scheduler"
)

// RunDashboard opens the live progression dashboard. Terminal focus and
// blur are the foreground/background edges the scheduler reacts to.
func RunDashboard(ctx context.Context, eng *engine.Engine, sched *scheduler.Scheduler, out io.Writer) error {
	m := newDashModel(ctx, eng, sched)
	p := tea.NewProgram(m, tea.WithOutput(out), tea.WithReportFocus())
	_, err := p.Run()
	sched.Background()
	return err
}
