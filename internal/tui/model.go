package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"lifeforge/internal/engine"
	"lifeforge/internal/scheduler"
	"lifeforge/internal/storage"
	"lifeforge/internal/ui"
)

const refreshEvery = time.Second

type dashModel struct {
	ctx   context.Context
	eng   *engine.Engine
	sched *scheduler.Scheduler

	width  int
	height int

	global     storage.ProgressRecord
	passive    storage.PassiveState
	views      []engine.ActivityView
	multiplier float64
	suspended  bool

	selected int
	lastLog  string
}

type refreshMsg struct {
	global     storage.ProgressRecord
	passive    storage.PassiveState
	views      []engine.ActivityView
	multiplier float64
}

type tickMsg time.Time

type completedMsg struct {
	res *engine.CompletionResult
	err error
}

type collectedMsg struct {
	res *engine.CollectResult
	err error
}

func newDashModel(ctx context.Context, eng *engine.Engine, sched *scheduler.Scheduler) dashModel {
	return dashModel{
		ctx:     ctx,
		eng:     eng,
		sched:   sched,
		lastLog: "Loaded.",
	}
}

func (m dashModel) Init() tea.Cmd {
	m.sched.Foreground(m.ctx)
	return tea.Batch(m.refreshCmd(), m.tickCmd())
}

func (m dashModel) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		return refreshMsg{
			global:     m.eng.GlobalProgress(),
			passive:    m.eng.Passive(),
			views:      m.eng.Activities(),
			multiplier: m.eng.EffectiveMultiplier(),
		}
	}
}

func (m dashModel) tickCmd() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m dashModel) completeCmd(id string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.eng.RecordCompletion(m.ctx, id)
		return completedMsg{res: res, err: err}
	}
}

func (m dashModel) collectCmd() tea.Cmd {
	return func() tea.Msg {
		res, err := m.eng.CollectPassive(m.ctx)
		return collectedMsg{res: res, err: err}
	}
}

func (m dashModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.FocusMsg:
		m.suspended = false
		if res := m.sched.Foreground(m.ctx); res != nil && !res.Skipped {
			m.lastLog = fmt.Sprintf("Resumed: %.1fh offline, +%.0f XP banked.", res.ElapsedHours, res.XPAccrued)
		} else {
			m.lastLog = "Resumed."
		}
		return m, m.refreshCmd()

	case tea.BlurMsg:
		m.sched.Background()
		m.suspended = true
		m.lastLog = "Suspended (no ticks while in background)."
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.refreshCmd(), m.tickCmd())

	case refreshMsg:
		m.global = msg.global
		m.passive = msg.passive
		m.views = msg.views
		m.multiplier = msg.multiplier
		if m.selected >= len(m.views) {
			m.selected = len(m.views) - 1
		}
		if m.selected < 0 {
			m.selected = 0
		}
		return m, nil

	case completedMsg:
		if msg.err != nil {
			m.lastLog = "Complete failed: " + msg.err.Error()
			return m, nil
		}
		r := msg.res
		m.lastLog = fmt.Sprintf("%s: +%.0f XP (x%.2f), streak %d", r.ActivityID, r.XPAwarded, r.Multiplier, r.Streak.CurrentStreak)
		if r.LevelUp {
			m.lastLog += " " + ui.BadgeLevelUp
		}
		return m, m.refreshCmd()

	case collectedMsg:
		if msg.err != nil {
			m.lastLog = "Collect failed: " + msg.err.Error()
			return m, nil
		}
		if msg.res.Amount == 0 {
			m.lastLog = "Nothing stored to collect."
		} else {
			m.lastLog = fmt.Sprintf("Collected %.0f XP.", msg.res.Amount)
			if msg.res.LevelUp {
				m.lastLog += " " + ui.BadgeLevelUp
			}
		}
		return m, m.refreshCmd()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.sched.Background()
			return m, tea.Quit
		case "r":
			m.lastLog = "Refreshing…"
			return m, m.refreshCmd()
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
			return m, nil
		case "down", "j":
			if m.selected < len(m.views)-1 {
				m.selected++
			}
			return m, nil
		case "c":
			return m, m.collectCmd()
		case "enter", " ":
			if m.selected < 0 || m.selected >= len(m.views) {
				return m, nil
			}
			id := m.views[m.selected].Activity.ID
			m.lastLog = fmt.Sprintf("Completing %s…", id)
			return m, m.completeCmd(id)
		}
	}
	return m, nil
}

func (m dashModel) View() string {
	var b strings.Builder

	b.WriteString(ui.Heading(ui.IconSpark, "Lifeforge") + "\n\n")
	b.WriteString(m.characterPanel() + "\n")
	b.WriteString(m.passivePanel() + "\n")
	b.WriteString(m.activityPanel() + "\n")

	if m.suspended {
		b.WriteString(ui.Warn.Render("⏸ suspended") + "\n")
	}
	b.WriteString(ui.Muted.Render("enter/space complete · c collect · j/k move · r refresh · q quit") + "\n")
	b.WriteString(ui.Muted.Render(m.lastLog) + "\n")
	return b.String()
}

func (m dashModel) characterPanel() string {
	rec := m.global
	ratio := 0.0
	if rec.ExperienceToNext > 0 {
		ratio = rec.Experience / rec.ExperienceToNext
	}
	body := fmt.Sprintf("%s %s\n%s %.0f / %.0f  %s\n%s x%.2f",
		ui.IconLevel, ui.LabelValue("Level", rec.Level),
		ui.Key.Render("XP:"), rec.Experience, rec.ExperienceToNext, ui.Bar(ratio, 24),
		ui.Key.Render("Multiplier:"), m.multiplier)
	return ui.Panel.Render(ui.PanelTitle.Render("Character") + "\n" + body)
}

func (m dashModel) passivePanel() string {
	p := m.passive
	if !p.Unlocked {
		return ui.Panel.Render(ui.PanelTitle.Render("Idle forge") + "\n" +
			ui.Bad.Render("locked") + ui.Muted.Render(fmt.Sprintf(" (unlocks at level %d)", engine.LevelPassive)))
	}
	ratio := 0.0
	if p.Capacity > 0 {
		ratio = p.Stored / p.Capacity
	}
	body := fmt.Sprintf("%s %.0f / %.0f  %s\n%s %.1f XP/h",
		ui.IconIdle, p.Stored, p.Capacity, ui.Bar(ratio, 24),
		ui.Key.Render("Rate:"), p.RatePerHour)
	if p.Stored >= p.Capacity {
		body += "\n" + ui.Warn.Render("Full — collect or further accrual is lost.")
	}
	return ui.Panel.Render(ui.PanelTitle.Render("Idle forge") + "\n" + body)
}

func (m dashModel) activityPanel() string {
	if len(m.views) == 0 {
		return ui.Panel.Render(ui.PanelTitle.Render("Activities") + "\n" + ui.Muted.Render("none yet — `lf define` one"))
	}
	var rows []string
	for i, v := range m.views {
		cursor := "  "
		if i == m.selected {
			cursor = ui.Gold.Render("> ")
		}
		rows = append(rows, fmt.Sprintf("%s%s %-18s %s %s  lvl %d  %s",
			cursor,
			ui.IconLoop,
			v.Activity.Name,
			ui.IconStreak,
			ui.StreakText(v.Streak.CurrentStreak),
			v.Progress.Level,
			ui.Muted.Render(v.Activity.Cadence)))
	}
	return ui.Panel.Render(ui.PanelTitle.Render("Activities") + "\n" + strings.Join(rows, "\n"))
}
