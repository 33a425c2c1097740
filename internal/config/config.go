package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanschultz/idleledger/internal/domain"
	toml "github.com/pelletier/go-toml/v2"
)

// Default values and guardrails.
const (
	DefaultThresholdSeconds        = 300
	DefaultPollSeconds             = 2.0
	DefaultJournalHeartbeatSeconds = 30
	MinJournalHeartbeatSeconds     = 30
	DefaultDailyTargetMinutes      = 480
	DefaultServerBind              = "127.0.0.1:7468"
)

// WeekStart selects the first day of a summary week.
type WeekStart string

// WeekStart values.
const (
	WeekStartISO    WeekStart = "iso"
	WeekStartSunday WeekStart = "sunday"
)

// Config holds the runtime settings loaded from config.toml.
type Config struct {
	ThresholdSeconds         int           `toml:"threshold_seconds" comment:"Idle seconds still counted as activity"`
	PollSeconds              float64       `toml:"poll_seconds" comment:"Seconds between provider polls"`
	JournalHeartbeatSeconds  int           `toml:"journal_heartbeat_seconds" comment:"Journal checkpoint interval (minimum 30)"`
	TreatInhibitorAsActivity bool          `toml:"treat_inhibitor_as_activity" comment:"Count idle time as activity while an idle inhibitor is held"`
	Summary                  SummaryConfig `toml:"summary"`
	Linux                    LinuxConfig   `toml:"linux"`
	Logging                  LoggingConfig `toml:"logging"`
	Index                    IndexConfig   `toml:"index"`
	Server                   ServerConfig  `toml:"server"`
}

// SummaryConfig holds report targets.
type SummaryConfig struct {
	DailyTargetMinutes int       `toml:"daily_target_minutes" comment:"Daily activity target (minutes)"`
	WeekStart          WeekStart `toml:"week_start" comment:"Week start: \"iso\" (Mon) or \"sunday\""`
}

// LinuxConfig holds provider preferences for Linux sessions.
type LinuxConfig struct {
	PreferHypridle bool `toml:"prefer_hypridle" comment:"Prefer hypridle (Hyprland) when installed"`
}

// LoggingConfig holds runtime log settings.
type LoggingConfig struct {
	Level   string        `toml:"level" comment:"debug, info, warn or error"`
	DevFile DevFileConfig `toml:"dev_file"`
}

// DevFileConfig controls the dev-mode logfmt file sink.
type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// IndexConfig controls the sqlite day-totals index.
type IndexConfig struct {
	Enabled bool `toml:"enabled" comment:"Mirror daily totals into a sqlite index"`
}

// ServerConfig controls the read-only serve command.
type ServerConfig struct {
	Bind string `toml:"bind"`
}

// Meta records how a config file was loaded, for diagnostics.
type Meta struct {
	Path     string
	Loaded   bool
	Created  bool
	Err      error
	Warnings []string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		ThresholdSeconds:         DefaultThresholdSeconds,
		PollSeconds:              DefaultPollSeconds,
		JournalHeartbeatSeconds:  DefaultJournalHeartbeatSeconds,
		TreatInhibitorAsActivity: true,
		Summary: SummaryConfig{
			DailyTargetMinutes: DefaultDailyTargetMinutes,
			WeekStart:          WeekStartISO,
		},
		Linux: LinuxConfig{
			PreferHypridle: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".idle-ledger/log",
			},
		},
		Index: IndexConfig{
			Enabled: true,
		},
		Server: ServerConfig{
			Bind: DefaultServerBind,
		},
	}
}

// Load reads path over defaults. Any field that is absent, mistyped or out of range keeps
// its default and, when present, adds a warning. Load never fails: an unreadable or
// undecodable file yields defaults with Meta.Err set.
func Load(path string, defaults Config) (Config, Meta) {
	cfg := defaults
	meta := Meta{Path: path}
	if strings.TrimSpace(path) == "" {
		return cfg, meta
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			meta.Err = fmt.Errorf("read config: %w", err)
		}
		return cfg, meta
	}
	if len(content) == 0 {
		meta.Loaded = true
		return cfg, meta
	}

	raw := map[string]any{}
	if err := toml.Unmarshal(content, &raw); err != nil {
		meta.Err = fmt.Errorf("decode toml: %w", err)
		return defaults, meta
	}

	a := applier{raw: raw, meta: &meta}
	a.setPositiveInt("threshold_seconds", &cfg.ThresholdSeconds)
	a.setPositiveFloat("poll_seconds", &cfg.PollSeconds)
	if heartbeat, ok := a.readInt("journal_heartbeat_seconds"); ok {
		cfg.JournalHeartbeatSeconds = max(heartbeat, MinJournalHeartbeatSeconds)
	}
	a.setBool("treat_inhibitor_as_activity", &cfg.TreatInhibitorAsActivity)

	if summary := a.readTable("summary"); summary != nil {
		s := applier{raw: summary, meta: &meta, prefix: "summary."}
		s.setPositiveInt("daily_target_minutes", &cfg.Summary.DailyTargetMinutes)
		if ws, ok := s.readString("week_start"); ok {
			switch normalized := WeekStart(strings.ToLower(strings.TrimSpace(ws))); normalized {
			case WeekStartISO, WeekStartSunday:
				cfg.Summary.WeekStart = normalized
			default:
				meta.Warnings = append(meta.Warnings, fmt.Sprintf("summary.week_start: unsupported value %q", ws))
			}
		}
	}
	if linux := a.readTable("linux"); linux != nil {
		l := applier{raw: linux, meta: &meta, prefix: "linux."}
		l.setBool("prefer_hypridle", &cfg.Linux.PreferHypridle)
	}
	if logging := a.readTable("logging"); logging != nil {
		l := applier{raw: logging, meta: &meta, prefix: "logging."}
		if level, ok := l.readString("level"); ok {
			switch normalized := strings.ToLower(strings.TrimSpace(level)); normalized {
			case "debug", "info", "warn", "error":
				cfg.Logging.Level = normalized
			default:
				meta.Warnings = append(meta.Warnings, fmt.Sprintf("logging.level: unsupported value %q", level))
			}
		}
		if devFile := l.readTable("dev_file"); devFile != nil {
			d := applier{raw: devFile, meta: &meta, prefix: "logging.dev_file."}
			d.setBool("enabled", &cfg.Logging.DevFile.Enabled)
			if dir, ok := d.readString("dir"); ok && strings.TrimSpace(dir) != "" {
				cfg.Logging.DevFile.Dir = strings.TrimSpace(dir)
			}
		}
	}
	if index := a.readTable("index"); index != nil {
		i := applier{raw: index, meta: &meta, prefix: "index."}
		i.setBool("enabled", &cfg.Index.Enabled)
	}
	if server := a.readTable("server"); server != nil {
		s := applier{raw: server, meta: &meta, prefix: "server."}
		if bind, ok := s.readString("bind"); ok && strings.TrimSpace(bind) != "" {
			cfg.Server.Bind = strings.TrimSpace(bind)
		}
	}

	meta.Loaded = true
	return cfg, meta
}

// Classifier returns the classifier view of the settings.
func (c Config) Classifier() domain.ClassifierConfig {
	return domain.ClassifierConfig{
		ThresholdSeconds:         c.ThresholdSeconds,
		TreatInhibitorAsActivity: c.TreatInhibitorAsActivity,
	}
}

// PollInterval returns poll_seconds as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollSeconds * float64(time.Second))
}

// HeartbeatInterval returns journal_heartbeat_seconds as a duration.
func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.JournalHeartbeatSeconds) * time.Second
}

// EnsureConfigDir creates the parent directory of path.
func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// EnsureDefaultFile writes a commented default config to path when none exists.
// It reports whether a file was created.
func EnsureDefaultFile(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat config: %w", err)
	}
	if err := EnsureConfigDir(path); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}
	encoded, err := toml.Marshal(Default())
	if err != nil {
		return false, fmt.Errorf("encode default config: %w", err)
	}
	content := append([]byte("# idle-ledger configuration\n\n"), encoded...)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return false, fmt.Errorf("write default config: %w", err)
	}
	return true, nil
}

// applier copies typed values out of a decoded TOML table.
type applier struct {
	raw    map[string]any
	meta   *Meta
	prefix string
}

// warn records one rejected field.
func (a applier) warn(key, reason string) {
	a.meta.Warnings = append(a.meta.Warnings, a.prefix+key+": "+reason)
}

// readInt reads an integer field.
func (a applier) readInt(key string) (int, bool) {
	v, ok := a.raw[key]
	if !ok {
		return 0, false
	}
	n, ok := v.(int64)
	if !ok {
		a.warn(key, fmt.Sprintf("expected integer, got %T", v))
		return 0, false
	}
	return int(n), true
}

// setPositiveInt sets dst from an integer field that must be > 0.
func (a applier) setPositiveInt(key string, dst *int) {
	n, ok := a.readInt(key)
	if !ok {
		return
	}
	if n <= 0 {
		a.warn(key, "must be > 0")
		return
	}
	*dst = n
}

// setPositiveFloat sets dst from an integer or float field that must be > 0.
func (a applier) setPositiveFloat(key string, dst *float64) {
	v, ok := a.raw[key]
	if !ok {
		return
	}
	var f float64
	switch n := v.(type) {
	case int64:
		f = float64(n)
	case float64:
		f = n
	default:
		a.warn(key, fmt.Sprintf("expected number, got %T", v))
		return
	}
	if f <= 0 {
		a.warn(key, "must be > 0")
		return
	}
	*dst = f
}

// setBool sets dst from a boolean field.
func (a applier) setBool(key string, dst *bool) {
	v, ok := a.raw[key]
	if !ok {
		return
	}
	b, ok := v.(bool)
	if !ok {
		a.warn(key, fmt.Sprintf("expected boolean, got %T", v))
		return
	}
	*dst = b
}

// readString reads a string field.
func (a applier) readString(key string) (string, bool) {
	v, ok := a.raw[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		a.warn(key, fmt.Sprintf("expected string, got %T", v))
		return "", false
	}
	return s, true
}

// readTable reads a nested table.
func (a applier) readTable(key string) map[string]any {
	v, ok := a.raw[key]
	if !ok {
		return nil
	}
	t, ok := v.(map[string]any)
	if !ok {
		a.warn(key, fmt.Sprintf("expected table, got %T", v))
		return nil
	}
	return t
}
