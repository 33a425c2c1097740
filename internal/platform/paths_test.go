package platform

import (
	"path/filepath"
	"testing"
)

// TestPathsForLinuxWithXDG verifies XDG overrides on linux.
func TestPathsForLinuxWithXDG(t *testing.T) {
	p, err := PathsFor("linux", map[string]string{
		"XDG_CONFIG_HOME": "/xdg/config",
		"XDG_DATA_HOME":   "/xdg/data",
	}, "/fallback/config", "/fallback/data", "idle-ledger")
	if err != nil {
		t.Fatalf("PathsFor() error = %v", err)
	}
	if want := filepath.Join("/xdg/config", "idle-ledger", "config.toml"); p.ConfigPath != want {
		t.Fatalf("unexpected config path %q", p.ConfigPath)
	}
	if want := filepath.Join("/xdg/data", "idle-ledger", "daily-journal"); p.JournalDir != want {
		t.Fatalf("unexpected journal dir %q", p.JournalDir)
	}
	if want := filepath.Join("/xdg/data", "idle-ledger", "transition-logs"); p.TransitionLogDir != want {
		t.Fatalf("unexpected transition log dir %q", p.TransitionLogDir)
	}
	if want := filepath.Join("/xdg/data", "idle-ledger", "index.db"); p.IndexDBPath != want {
		t.Fatalf("unexpected index path %q", p.IndexDBPath)
	}
}

// TestPathsForWindowsUsesAppData verifies APPDATA and LOCALAPPDATA on windows.
func TestPathsForWindowsUsesAppData(t *testing.T) {
	p, err := PathsFor("windows", map[string]string{
		"APPDATA":      `C:\Users\me\AppData\Roaming`,
		"LOCALAPPDATA": `C:\Users\me\AppData\Local`,
	}, `C:\fallback\config`, `C:\fallback\data`, "idle-ledger")
	if err != nil {
		t.Fatalf("PathsFor() error = %v", err)
	}
	if want := filepath.Join(`C:\Users\me\AppData\Roaming`, "idle-ledger", "config.toml"); p.ConfigPath != want {
		t.Fatalf("unexpected config path %q", p.ConfigPath)
	}
	if want := filepath.Join(`C:\Users\me\AppData\Local`, "idle-ledger"); p.DataDir != want {
		t.Fatalf("unexpected data dir %q", p.DataDir)
	}
}

func TestPathsForEmptyInputsFail(t *testing.T) {
	if _, err := PathsFor("darwin", nil, "", "/tmp/data", "idle-ledger"); err == nil {
		t.Fatal("expected error for empty dirs")
	}
	if _, err := PathsFor("linux", nil, "/cfg", "/data", "  "); err == nil {
		t.Fatal("expected error for empty app name")
	}
}

// TestPathsForDarwinFallback verifies XDG variables are ignored on macOS.
func TestPathsForDarwinFallback(t *testing.T) {
	base := "/Users/me/Library/Application Support"
	p, err := PathsFor("darwin", map[string]string{
		"XDG_CONFIG_HOME": "/ignored",
		"XDG_DATA_HOME":   "/ignored",
	}, base, base, "idle-ledger")
	if err != nil {
		t.Fatalf("PathsFor() error = %v", err)
	}
	if want := filepath.Join(base, "idle-ledger", "config.toml"); p.ConfigPath != want {
		t.Fatalf("unexpected config path %q", p.ConfigPath)
	}
	if want := filepath.Join(base, "idle-ledger"); p.DataDir != want {
		t.Fatalf("unexpected data dir %q", p.DataDir)
	}
}

func TestPathsWithDataDir(t *testing.T) {
	p, err := PathsFor("linux", map[string]string{}, "/home/me/.config", "/home/me/.local/share", "idle-ledger")
	if err != nil {
		t.Fatalf("PathsFor() error = %v", err)
	}
	moved := p.WithDataDir("/srv/ledger")
	if moved.ConfigPath != p.ConfigPath {
		t.Fatalf("expected config path unchanged, got %q", moved.ConfigPath)
	}
	if moved.JournalDir != filepath.Join("/srv/ledger", "daily-journal") {
		t.Fatalf("unexpected journal dir %q", moved.JournalDir)
	}
	if p.DataDir != filepath.Join("/home/me/.local/share", "idle-ledger") {
		t.Fatalf("expected original to be untouched, got %q", p.DataDir)
	}
}

func TestDefaultPathsWithOptions(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dataDir := t.TempDir()
	p, err := DefaultPathsWithOptions(Options{AppName: "idle-ledger", DevMode: true, DataDir: dataDir})
	if err != nil {
		t.Fatalf("DefaultPathsWithOptions() error = %v", err)
	}
	if filepath.Base(filepath.Dir(p.ConfigPath)) != "idle-ledger-dev" {
		t.Fatalf("expected dev config dir suffix, got %q", p.ConfigPath)
	}
	if p.DataDir != dataDir || p.TransitionLogDir != filepath.Join(dataDir, "transition-logs") {
		t.Fatalf("expected data dir override, got %#v", p)
	}
}
