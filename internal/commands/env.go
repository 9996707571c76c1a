// Package commands implements clipsift CLI commands.
package commands

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/NielsdaWheelz/clipsift/internal/config"
	"github.com/NielsdaWheelz/clipsift/internal/errors"
	"github.com/NielsdaWheelz/clipsift/internal/fs"
	"github.com/NielsdaWheelz/clipsift/internal/ledger"
	"github.com/NielsdaWheelz/clipsift/internal/logging"
	"github.com/NielsdaWheelz/clipsift/internal/paths"
	"github.com/NielsdaWheelz/clipsift/internal/semantic"
	"github.com/NielsdaWheelz/clipsift/internal/store"
	"github.com/NielsdaWheelz/clipsift/internal/tty"
)

// isInteractive is swappable in tests.
var isInteractive = tty.IsInteractive

// GlobalOpts holds the options shared by every command.
type GlobalOpts struct {
	// Namespace overrides CLIPSIFT_NAMESPACE.
	Namespace string

	// DataDir overrides CLIPSIFT_DATA_DIR.
	DataDir string

	// ConfigPath overrides CLIPSIFT_CONFIG and the cwd lookup.
	ConfigPath string

	// Color is auto, always or never.
	Color string

	Verbose bool
}

// Env is the resolved environment of one command invocation.
type Env struct {
	Layout     paths.Layout
	Config     config.Config
	ConfigPath string // empty when built-in defaults are in use
	FS         fs.FS
	Log        *logging.Logger
	Now        func() time.Time
}

// ResolveEnv resolves directories, the namespace and the pipeline config,
// and builds a logger writing to stdout/stderr.
//
// Config path precedence: --config, CLIPSIFT_CONFIG, then clipsift.{yaml,yml,json}
// in cwd. No config file at all means built-in defaults.
func ResolveEnv(env paths.Env, homeDir, cwd string, g GlobalOpts, stdout, stderr io.Writer) (*Env, error) {
	dirs := paths.ResolveDirs(env, homeDir)
	if g.DataDir != "" {
		dirs.DataDir = g.DataDir
	}
	ns, err := paths.ResolveNamespace(env, g.Namespace)
	if err != nil {
		return nil, err
	}

	fsys := fs.NewRealFS()
	cfgPath := g.ConfigPath
	if cfgPath == "" {
		cfgPath = dirs.ConfigPath
	}
	explicit := cfgPath != ""
	if cfgPath == "" {
		cfgPath = config.Find(fsys, cwd)
	}
	if cfgPath != "" && !filepath.IsAbs(cfgPath) {
		cfgPath = filepath.Join(cwd, cfgPath)
	}
	cfg, found, err := config.Load(fsys, cfgPath)
	if err != nil {
		return nil, err
	}
	if !found {
		if explicit {
			return nil, errors.NewWithDetails(errors.EInvalidConfig, "config file not found",
				map[string]string{"config": cfgPath})
		}
		cfgPath = ""
	}

	layout := paths.NewLayout(dirs.DataDir, ns)
	log, err := logging.New(logging.Options{
		Color:   g.Color,
		LogFile: layout.LogPath(),
		Verbose: g.Verbose,
		Out:     stdout,
		Err:     stderr,
	})
	if err != nil {
		return nil, errors.WrapWithDetails(errors.EPersistFailed, "failed to open log file", err,
			map[string]string{"path": layout.LogPath()})
	}

	return &Env{
		Layout:     layout,
		Config:     cfg,
		ConfigPath: cfgPath,
		FS:         fsys,
		Log:        log,
		Now:        time.Now,
	}, nil
}

// ResolveOSEnv resolves the environment of the running process.
func ResolveOSEnv(g GlobalOpts, stdout, stderr io.Writer) (*Env, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(errors.EInternal, "failed to get home directory", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(errors.EInternal, "failed to get working directory", err)
	}
	return ResolveEnv(paths.OSEnv{}, home, cwd, g, stdout, stderr)
}

// Close releases the log file.
func (e *Env) Close() error {
	return e.Log.Close()
}

// ProcessingDir returns the root scanned for units: flag, then config
// (relative to the config file), then the namespace default.
func (e *Env) ProcessingDir(flag string) string {
	return e.dir(flag, e.Config.ProcessingDir, e.Layout.ProcessingDir())
}

// OutputDir returns the root materialized units are copied under.
func (e *Env) OutputDir(flag string) string {
	return e.dir(flag, e.Config.OutputDir, e.Layout.OutputDir())
}

func (e *Env) dir(flag, configured, fallback string) string {
	switch {
	case flag != "":
		if abs, err := filepath.Abs(flag); err == nil {
			return abs
		}
		return flag
	case configured != "":
		if filepath.IsAbs(configured) || e.ConfigPath == "" {
			return configured
		}
		return filepath.Join(filepath.Dir(e.ConfigPath), configured)
	}
	return fallback
}

// openStore opens the namespace State Store with the configured backend.
func (e *Env) openStore() (store.Store, error) {
	return store.Open(e.Config.Backend, e.Layout, e.Config.StageNames(), e.Now, e.Log.Warn)
}

func (e *Env) openLedger() (ledger.Ledger, error) {
	return ledger.Open(e.Config.Backend, e.Layout, e.Log.Warn)
}

func (e *Env) labels() *semantic.Labels {
	l := semantic.NewLabels(e.FS, e.Layout.LabelsPath())
	l.Now = e.Now
	l.Warn = e.Log.Warn
	return l
}
