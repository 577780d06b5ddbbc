// Package tui provides the Bubble Tea dashboard for driving a session.
package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/gitsession/internal/session"
)

// ── Styles ────────────

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178"))

	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	dirtyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)
)

// statusRows is the height of the state panel above the log.
const statusRows = 9

// Controller is the part of session.Manager the dashboard drives. Calls
// are never made concurrently.
type Controller interface {
	State() session.State
	Options() session.Options
	Refresh(ctx context.Context) error
	Start(ctx context.Context) (session.Result, error)
	Commit(ctx context.Context, final bool) (session.Result, error)
	ReturnToParent(ctx context.Context) (session.Result, error)
	SetSessionName(name string)
	SetManageSubmodules(enabled bool)
}

// opDoneMsg reports a finished operation along with a copy of the state
// taken right after it.
type opDoneMsg struct {
	op    string
	res   session.Result
	err   error
	state session.State
}

// ── Model ────────────────────

// Model is the root Bubble Tea model for the dashboard.
type Model struct {
	ctx   context.Context
	ctrl  Controller
	repo  string
	state session.State
	name  string
	subs  bool

	busy    string
	editing bool
	input   textinput.Model

	log    viewport.Model
	lines  []string
	width  int
	height int
	ready  bool
	now    func() time.Time
}

// New creates a dashboard model over ctrl. The model starts busy with the
// refresh Init dispatches, so no key reaches ctrl until it finishes.
func New(ctx context.Context, ctrl Controller) Model {
	opts := ctrl.Options()
	in := textinput.New()
	in.Placeholder = "session name"
	in.CharLimit = 80
	return Model{
		ctx:   ctx,
		ctrl:  ctrl,
		repo:  filepath.Base(opts.RepoPath),
		state: ctrl.State(),
		name:  opts.SessionName,
		subs:  opts.ManageSubmodules,
		busy:  "refresh",
		input: in,
		now:   time.Now,
	}
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd { return m.run("refresh") }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.editing {
			return m.updateInput(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "s":
			return m.dispatch(session.OpStart)
		case "c":
			return m.dispatch(session.OpCommit)
		case "f":
			return m.dispatch("final")
		case "r":
			return m.dispatch(session.OpReturn)
		case "R", "g":
			return m.dispatch("refresh")
		case "n":
			if m.busy == "" {
				m.editing = true
				m.input.SetValue(m.name)
				m.input.CursorEnd()
				return m, m.input.Focus()
			}
		case "m":
			if m.busy == "" {
				m.subs = !m.subs
				m.ctrl.SetManageSubmodules(m.subs)
				m.appendLog(fmt.Sprintf("submodule management %s", onOff(m.subs)), nil)
				m.state.ManageSubmodules = m.subs
				m.refreshStatus()
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return m, cmd

	case opDoneMsg:
		m.busy = ""
		m.state = msg.state
		m.appendResult(msg)
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		h := m.height - statusRows - 2
		if h < 1 {
			h = 1
		}
		if !m.ready {
			m.log = viewport.New(m.width, h)
			m.ready = true
		} else {
			m.log.Width = m.width
			m.log.Height = h
		}
		m.log.SetContent(strings.Join(m.lines, "\n"))
		m.log.GotoBottom()
		return m, nil
	}
	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.editing = false
		m.input.Blur()
		m.name = strings.TrimSpace(m.input.Value())
		m.ctrl.SetSessionName(m.name)
		if m.name == "" {
			m.appendLog("session name cleared", nil)
		} else {
			m.appendLog(fmt.Sprintf("next session will be named %q", session.CleanSessionName(m.name)), nil)
		}
		return m, nil
	case "esc":
		m.editing = false
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// dispatch starts op unless another one is still running.
func (m Model) dispatch(op string) (tea.Model, tea.Cmd) {
	if m.busy != "" {
		m.appendLog(fmt.Sprintf("%s still running, ignoring %s", m.busy, op), nil)
		return m, nil
	}
	m.busy = op
	return m, m.run(op)
}

// run returns a command executing op off the UI goroutine.
func (m Model) run(op string) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		var res session.Result
		var err error
		switch op {
		case session.OpStart:
			res, err = ctrl.Start(ctx)
		case session.OpCommit:
			res, err = ctrl.Commit(ctx, false)
		case "final":
			res, err = ctrl.Commit(ctx, true)
		case session.OpReturn:
			res, err = ctrl.ReturnToParent(ctx)
		default:
			err = ctrl.Refresh(ctx)
		}
		return opDoneMsg{op: op, res: res, err: err, state: ctrl.State()}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	title := titleStyle.Width(m.width).Render("  gitsession  " + m.repo)

	var sb strings.Builder
	sb.WriteString(sectionHeader.Render("  Repository") + "\n")
	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-14s", label)) + "  " + value + "\n")
	}
	phase := dimStyle.Render("idle")
	if m.state.IsActive {
		phase = activeStyle.Render("active")
	}
	row("Session:", phase)
	row("Branch:", orDash(m.state.CurrentBranch))
	commit := m.state.CurrentCommit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	row("Commit:", orDash(commit))
	row("Parent:", orDash(m.state.ParentBranch))
	changes := "clean"
	if m.state.HasUncommittedChanges {
		changes = dirtyStyle.Render("uncommitted changes")
	}
	row("Working tree:", changes)
	row("Submodules:", onOff(m.subs))
	if m.editing {
		row("Name:", m.input.View())
	} else {
		row("Name:", orDash(m.name))
	}
	sb.WriteString(sectionHeader.Render("  Activity"))
	panel := sb.String()

	hint := "  s start  c commit  f final  r return  R refresh  n name  m submodules  q quit"
	if m.editing {
		hint = "  enter save  esc cancel"
	} else if m.busy != "" {
		hint = "  running " + m.busy + "…"
	}
	statusBar := statusBarStyle.Width(m.width).Render(hint)

	return lipgloss.JoinVertical(lipgloss.Left, title, panel, m.log.View(), statusBar)
}

// ── Activity log ─────────────────

func (m *Model) appendResult(msg opDoneMsg) {
	if msg.err != nil {
		m.appendLog(msg.op+" failed", msg.err)
		return
	}
	switch msg.op {
	case "refresh":
		m.appendLog("status refreshed", nil)
	case session.OpStart:
		m.appendLog("started session on "+msg.res.Branch, nil)
	case session.OpCommit, "final":
		if msg.res.Committed {
			m.appendLog("committed changes on "+msg.res.Branch, nil)
		} else {
			m.appendLog("nothing to commit", nil)
		}
	case session.OpReturn:
		m.appendLog("returned to "+msg.res.Branch, nil)
	}
	for _, f := range msg.res.Excluded {
		m.lines = append(m.lines, warnStyle.Render(fmt.Sprintf("           excluded large file %s (%.2f MB)", f.Path, float64(f.Size)/(1024*1024))))
	}
	for _, w := range msg.res.Warnings {
		m.lines = append(m.lines, warnStyle.Render("           warning: "+w))
	}
	m.refreshStatus()
}

func (m *Model) appendLog(text string, err error) {
	line := timeStyle.Render(m.now().Format("15:04:05")) + "  " + text
	if err != nil {
		line += ": " + errorStyle.Render(err.Error())
	}
	m.lines = append(m.lines, line)
	m.refreshStatus()
}

func (m *Model) refreshStatus() {
	if !m.ready {
		return
	}
	m.log.SetContent(strings.Join(m.lines, "\n"))
	m.log.GotoBottom()
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func orDash(s string) string {
	if s == "" {
		return dimStyle.Render("—")
	}
	return s
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// Run starts the dashboard for ctrl.
func Run(ctx context.Context, ctrl Controller) error {
	p := tea.NewProgram(New(ctx, ctrl), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
