package app

import (
	"fmt"
	"strings"

	"github.com/evanschultz/idleledger/internal/domain"
)

// eventProviderMode is the transition-log event holding provider diagnostics.
const eventProviderMode = "provider_mode"

// Setting is one key/value shown on the status settings line.
type Setting struct {
	Key   string
	Value string
}

// StatusInput carries the facts the reporter cannot discover itself.
type StatusInput struct {
	ConfigPath       string
	ConfigErr        error
	ConfigWarnings   []string
	JournalDir       string
	TransitionLogDir string
	Settings         []Setting
}

// StatusReport describes the current installation and today's ledger.
type StatusReport struct {
	StatusInput
	Day            domain.Day
	JournalPath    string
	TransitionPath string
	// ProviderMode is the newest provider_mode record of today, if any.
	ProviderMode map[string]any
	HasJournal   bool
	Totals       domain.Totals
	Current      *domain.Block
	CurrentOpen  bool
}

// Status gathers today's status.
func (r *Reporter) Status(in StatusInput) StatusReport {
	today := r.Today()
	report := StatusReport{
		StatusInput:    in,
		Day:            today,
		JournalPath:    r.journal.Path(today),
		TransitionPath: r.log.Path(today),
	}
	if record, ok := r.log.ReadLast(today, eventProviderMode); ok {
		report.ProviderMode = record
	}
	if record, ok := r.journal.ReadDay(today); ok {
		report.HasJournal = true
		report.Totals = record.Stored
		if last, ok := record.Last(); ok {
			report.Current = &last
			report.CurrentOpen = record.LastOpen
		}
	}
	return report
}

// Lines renders the report as plain text lines.
func (s StatusReport) Lines() []string {
	lines := []string{"idle-ledger status", "config: " + s.ConfigPath}
	if s.ConfigErr != nil {
		lines = append(lines, "config error: "+s.ConfigErr.Error())
	}
	for _, w := range s.ConfigWarnings {
		lines = append(lines, "config warning: "+w)
	}
	lines = append(lines,
		"data journal dir: "+s.JournalDir,
		"data logs dir: "+s.TransitionLogDir,
		"today journal: "+s.JournalPath,
		"today transitions: "+s.TransitionPath,
		"provider mode: "+s.providerModeLine(),
	)
	if env := s.providerEnvLine(); env != "" {
		lines = append(lines, "provider env: "+env)
	}
	lines = append(lines, "today totals: "+s.totalsLine(), "current block: "+s.currentLine())
	if settings := s.settingsLine(); settings != "" {
		lines = append(lines, "settings: "+settings)
	}
	return lines
}

// Markdown renders the report for a terminal markdown renderer.
func (s StatusReport) Markdown() string {
	var b strings.Builder
	b.WriteString("# idle-ledger status\n\n")
	b.WriteString("## Config\n\n")
	fmt.Fprintf(&b, "- path: `%s`\n", s.ConfigPath)
	if s.ConfigErr != nil {
		fmt.Fprintf(&b, "- **error:** %s\n", s.ConfigErr)
	}
	for _, w := range s.ConfigWarnings {
		fmt.Fprintf(&b, "- warning: %s\n", w)
	}
	if settings := s.settingsLine(); settings != "" {
		fmt.Fprintf(&b, "- settings: %s\n", settings)
	}
	b.WriteString("\n## Data\n\n")
	fmt.Fprintf(&b, "- journal dir: `%s`\n", s.JournalDir)
	fmt.Fprintf(&b, "- logs dir: `%s`\n", s.TransitionLogDir)
	fmt.Fprintf(&b, "- today journal: `%s`\n", s.JournalPath)
	fmt.Fprintf(&b, "- today transitions: `%s`\n", s.TransitionPath)
	b.WriteString("\n## Provider\n\n")
	fmt.Fprintf(&b, "- mode: %s\n", s.providerModeLine())
	if env := s.providerEnvLine(); env != "" {
		fmt.Fprintf(&b, "- env: %s\n", env)
	}
	fmt.Fprintf(&b, "\n## Today (%s)\n\n", s.Day)
	fmt.Fprintf(&b, "- totals: %s\n", s.totalsLine())
	fmt.Fprintf(&b, "- current block: %s\n", s.currentLine())
	return b.String()
}

// providerModeLine formats the provider section of the newest provider_mode record.
func (s StatusReport) providerModeLine() string {
	if s.ProviderMode == nil {
		return "unavailable"
	}
	provider, _ := s.ProviderMode["provider"].(map[string]any)
	keys := []string{"method", "session_id", "locked_method", "logind_idle_supported", "idle_reason"}
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, valueOrNone(provider[key])))
	}
	return strings.Join(parts, " ")
}

// providerEnvLine formats the env section of the newest provider_mode record.
func (s StatusReport) providerEnvLine() string {
	if s.ProviderMode == nil {
		return ""
	}
	env, _ := s.ProviderMode["env"].(map[string]any)
	parts := make([]string, 0, len(providerEnvKeys))
	for _, key := range providerEnvKeys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, valueOrNone(env[key])))
	}
	return strings.Join(parts, " ")
}

// totalsLine formats today's stored totals.
func (s StatusReport) totalsLine() string {
	if !s.HasJournal {
		return "unavailable (no journal yet)"
	}
	return fmt.Sprintf("activity=%ds break=%ds", s.Totals.ActivitySeconds, s.Totals.BreakSeconds)
}

// currentLine formats the last journal record.
func (s StatusReport) currentLine() string {
	if s.Current == nil {
		return "unavailable"
	}
	seconds := int64(0)
	if s.Current.End != nil {
		seconds = s.Current.Seconds(*s.Current.End)
	}
	return fmt.Sprintf("type=%s seconds=%d open=%t", s.Current.Type, seconds, s.CurrentOpen)
}

// settingsLine joins the configured settings.
func (s StatusReport) settingsLine() string {
	parts := make([]string, 0, len(s.Settings))
	for _, setting := range s.Settings {
		parts = append(parts, setting.Key+"="+setting.Value)
	}
	return strings.Join(parts, " ")
}

// valueOrNone renders a missing or empty diagnostic value.
func valueOrNone(v any) any {
	if v == nil || v == "" {
		return "none"
	}
	return v
}
