// Package tui renders the live debug screen: provider readings, classified state and
// in-memory block totals. Nothing it does is persisted.
package tui

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/evanschultz/idleledger/internal/domain"
)

// Provider is the snapshot source the screen polls.
type Provider interface {
	Snapshot(ctx context.Context) domain.Snapshot
	Diagnostics() map[string]any
}

// Config holds the classifier and poll settings shown and used by the screen.
type Config struct {
	Classifier domain.ClassifierConfig
	Poll       time.Duration
}

// historyRows bounds the block list.
const historyRows = 8

// snapshotMsg carries one provider reading.
type snapshotMsg struct {
	snap domain.Snapshot
}

// tickMsg schedules the next poll.
type tickMsg time.Time

// Model is the bubbletea model of the debug screen.
type Model struct {
	provider Provider
	cfg      Config

	day         domain.Day
	manager     *domain.BlockManager
	snap        domain.Snapshot
	haveSnap    bool
	transitions int
	polls       int

	paused   bool
	showDiag bool
	status   string

	width  int
	height int
	ready  bool

	help     help.Model
	keys     keyMap
	markdown *markdownRenderer
}

// NewModel constructs the debug model. A non-positive poll defaults to two seconds.
func NewModel(provider Provider, cfg Config) Model {
	if cfg.Poll <= 0 {
		cfg.Poll = 2 * time.Second
	}
	h := help.New()
	h.ShowAll = false
	return Model{
		provider: provider,
		cfg:      cfg,
		manager:  domain.NewBlockManager(),
		status:   "waiting for first snapshot",
		help:     h,
		keys:     newKeyMap(),
		markdown: &markdownRenderer{},
	}
}

// Init requests the first snapshot.
func (m Model) Init() tea.Cmd {
	return m.poll
}

// poll reads one snapshot.
func (m Model) poll() tea.Msg {
	return snapshotMsg{snap: m.provider.Snapshot(context.Background())}
}

// tick waits one poll interval.
func (m Model) tick() tea.Cmd {
	return tea.Tick(m.cfg.Poll, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case snapshotMsg:
		m.observe(msg.snap)
		return m, m.tick()

	case tickMsg:
		if m.paused {
			return m, m.tick()
		}
		return m, m.poll

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	default:
		return m, nil
	}
}

// handleKey applies one key binding.
func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.pause):
		m.paused = !m.paused
		if !m.paused {
			m.status = "resumed"
		}
	case key.Matches(msg, m.keys.diagnostics):
		m.showDiag = !m.showDiag
	case key.Matches(msg, m.keys.reset):
		m.manager = domain.NewBlockManager()
		m.transitions = 0
		m.status = "blocks reset"
	case key.Matches(msg, m.keys.refresh):
		return m, m.poll
	}
	return m, nil
}

// observe classifies snap into the in-memory ledger.
func (m *Model) observe(snap domain.Snapshot) {
	now := snap.WallTime
	if day := domain.DayOf(now); day != m.day {
		m.day = day
		m.manager = domain.NewBlockManager()
	}
	next := domain.Classify(snap, m.cfg.Classifier)
	prev, ok := m.manager.CurrentState()
	switch {
	case !ok:
		m.manager.Transition(next, now, nil)
	case prev != next:
		var override *time.Time
		if prev == domain.StateActivity && next == domain.StateBreak {
			if boundary, ok := domain.BreakBoundary(snap, m.cfg.Classifier); ok {
				override = &boundary
			}
		}
		m.manager.Transition(next, now, override)
		m.transitions++
		m.status = fmt.Sprintf("%s -> %s at %s", prev, next, now.Format(time.TimeOnly))
	}
	m.snap = snap
	m.haveSnap = true
	m.polls++
	if m.polls == 1 {
		m.status = "tracking"
	}
}

// View renders the screen.
func (m Model) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

// render builds the screen text.
func (m Model) render() string {
	if !m.ready {
		return "loading..."
	}

	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	labelStyle := lipgloss.NewStyle().Foreground(muted).Width(12)
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	sections := []string{titleStyle.Render("idle-ledger debug") + statusStyle.Render("  (not persisted)"), ""}
	if !m.haveSnap {
		sections = append(sections, statusStyle.Render(m.status))
	} else {
		row := func(label, value string) string {
			return labelStyle.Render(label) + value
		}
		now := m.snap.WallTime
		totals := m.manager.Totals(now)
		state := "none"
		if current, ok := m.manager.Current(); ok {
			state = stateStyle(current.Type).Render(strings.ToUpper(current.Type.String())) +
				fmt.Sprintf(" since %s (%s)", current.Start.Format(time.TimeOnly), formatDuration(current.Seconds(now)))
		}
		sections = append(sections,
			row("time", now.Format("2006-01-02 15:04:05 MST")),
			row("state", state),
			row("idle", formatIdle(m.snap.IdleSeconds)),
			row("locked", formatBool(m.snap.Locked)),
			row("inhibited", formatBool(m.snap.Inhibited)),
			row("provider", fmt.Sprintf("method=%s session_id=%s", orNone(m.snap.MetaString("method")), orNone(m.snap.MetaString("session_id")))),
			row("settings", fmt.Sprintf("threshold=%ds poll=%s treat_inhibitor_as_activity=%t",
				m.cfg.Classifier.ThresholdSeconds, m.cfg.Poll, m.cfg.Classifier.TreatInhibitorAsActivity)),
			row("totals", fmt.Sprintf("activity %s  break %s", formatDuration(totals.ActivitySeconds), formatDuration(totals.BreakSeconds))),
			row("switches", fmt.Sprintf("%d", m.transitions)),
			"",
			titleStyle.Render("blocks"),
		)
		sections = append(sections, m.blockRows(now)...)
		if reason := m.snap.MetaString("idle_reason"); reason != "" {
			sections = append(sections, "", statusStyle.Render("idle_reason: "+reason))
		}
		if m.paused {
			sections = append(sections, "", statusStyle.Render("paused"))
		} else if m.status != "" {
			sections = append(sections, "", statusStyle.Render(m.status))
		}
	}
	if m.showDiag {
		sections = append(sections, "", m.markdown.render(diagnosticsMarkdown(m.provider.Diagnostics()), m.width-2))
	}
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))
	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}
	return content + "\n" + helpLine
}

// blockRows renders the newest blocks first.
func (m Model) blockRows(now time.Time) []string {
	blocks := m.manager.History()
	if current, ok := m.manager.Current(); ok {
		blocks = append(blocks, current)
	}
	rows := make([]string, 0, historyRows)
	for i := len(blocks) - 1; i >= 0 && len(rows) < historyRows; i-- {
		b := blocks[i]
		end := "open"
		if b.End != nil {
			end = b.End.Format(time.TimeOnly)
		}
		rows = append(rows, fmt.Sprintf("  %s  %s - %-8s  %s",
			stateStyle(b.Type).Width(8).Render(b.Type.String()), b.Start.Format(time.TimeOnly), end, formatDuration(b.Seconds(now))))
	}
	if len(rows) == 0 {
		rows = append(rows, "  none")
	}
	return rows
}

// diagnosticsMarkdown renders provider diagnostics as a markdown list in key order.
func diagnosticsMarkdown(diag map[string]any) string {
	var b strings.Builder
	b.WriteString("## provider diagnostics\n\n")
	for _, k := range slices.Sorted(maps.Keys(diag)) {
		v := diag[k]
		if v == nil {
			v = "none"
		}
		fmt.Fprintf(&b, "- **%s**: `%v`\n", k, v)
	}
	return b.String()
}

// stateStyle colors a state label.
func stateStyle(s domain.State) lipgloss.Style {
	switch s {
	case domain.StateActivity:
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("78"))
	case domain.StateBreak:
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	default:
		return lipgloss.NewStyle()
	}
}

// formatDuration renders whole seconds as h:mm:ss.
func formatDuration(seconds int64) string {
	seconds = max(seconds, 0)
	return fmt.Sprintf("%d:%02d:%02d", seconds/3600, seconds/60%60, seconds%60)
}

func formatIdle(idle *int) string {
	if idle == nil {
		return "unknown"
	}
	return fmt.Sprintf("%ds", *idle)
}

func formatBool(v *bool) string {
	switch {
	case v == nil:
		return "unknown"
	case *v:
		return "yes"
	default:
		return "no"
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// fitLines pads or truncates content to maxLines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		lines = append(lines, make([]string, maxLines-len(lines))...)
	}
	return strings.Join(lines, "\n")
}
