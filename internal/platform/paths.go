package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// AppName is the default directory name for config and data.
const AppName = "idle-ledger"

// Paths holds the on-disk locations used by the ledger.
type Paths struct {
	ConfigPath       string
	DataDir          string
	JournalDir       string
	TransitionLogDir string
	IndexDBPath      string
}

// Options tunes DefaultPathsWithOptions.
type Options struct {
	AppName string
	DevMode bool
	// DataDir replaces the platform data directory when set.
	DataDir string
}

// DefaultPaths returns the platform paths for AppName.
func DefaultPaths() (Paths, error) {
	return DefaultPathsWithOptions(Options{AppName: AppName})
}

// DefaultPathsWithOptions resolves paths from the process environment.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	appName := strings.TrimSpace(opts.AppName)
	if appName == "" {
		appName = AppName
	}
	if opts.DevMode {
		appName += "-dev"
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("user config dir: %w", err)
	}
	dataDir := configDir
	if runtime.GOOS == "linux" {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return Paths{}, fmt.Errorf("user home dir: %w", homeErr)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	if runtime.GOOS == "windows" {
		if v := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); v != "" {
			dataDir = v
		}
	}

	env := map[string]string{
		"XDG_CONFIG_HOME": os.Getenv("XDG_CONFIG_HOME"),
		"XDG_DATA_HOME":   os.Getenv("XDG_DATA_HOME"),
		"APPDATA":         os.Getenv("APPDATA"),
		"LOCALAPPDATA":    os.Getenv("LOCALAPPDATA"),
	}
	paths, err := PathsFor(runtime.GOOS, env, configDir, dataDir, appName)
	if err != nil {
		return Paths{}, err
	}
	if dir := strings.TrimSpace(opts.DataDir); dir != "" {
		paths = paths.WithDataDir(dir)
	}
	return paths, nil
}

// PathsFor resolves paths for goos from explicit inputs. It reads no process state.
func PathsFor(goos string, env map[string]string, userConfigDir, userDataDir, appName string) (Paths, error) {
	if userConfigDir == "" || userDataDir == "" {
		return Paths{}, fmt.Errorf("empty base dirs")
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, fmt.Errorf("empty app name")
	}

	configBase := userConfigDir
	dataBase := userDataDir

	switch goos {
	case "linux":
		if v := env["XDG_CONFIG_HOME"]; v != "" {
			configBase = v
		}
		if v := env["XDG_DATA_HOME"]; v != "" {
			dataBase = v
		}
	case "windows":
		if v := env["APPDATA"]; v != "" {
			configBase = v
		}
		if v := env["LOCALAPPDATA"]; v != "" {
			dataBase = v
		}
	default:
		// macOS and others keep the os.UserConfigDir defaults.
	}

	paths := Paths{ConfigPath: filepath.Join(configBase, appName, "config.toml")}
	return paths.WithDataDir(filepath.Join(dataBase, appName)), nil
}

// WithDataDir returns a copy of p with every data path rooted at dir.
func (p Paths) WithDataDir(dir string) Paths {
	p.DataDir = dir
	p.JournalDir = filepath.Join(dir, "daily-journal")
	p.TransitionLogDir = filepath.Join(dir, "transition-logs")
	p.IndexDBPath = filepath.Join(dir, "index.db")
	return p
}
