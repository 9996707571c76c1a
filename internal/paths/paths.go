// Package paths resolves clipsift directories and the per-namespace file layout.
package paths

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/NielsdaWheelz/clipsift/internal/errors"
)

// Environment variable names.
const (
	EnvDataDir   = "CLIPSIFT_DATA_DIR"
	EnvNamespace = "CLIPSIFT_NAMESPACE"
	EnvConfig    = "CLIPSIFT_CONFIG"

	// DefaultNamespace is used when neither --namespace nor CLIPSIFT_NAMESPACE is set.
	DefaultNamespace = "default_user"
)

// Env reads environment variables. Tests pass a map-backed stub.
type Env interface {
	Get(key string) string
}

// OSEnv reads the process environment.
type OSEnv struct{}

// Get returns os.Getenv(key).
func (OSEnv) Get(key string) string { return os.Getenv(key) }

// MapEnv is an Env backed by a map.
type MapEnv map[string]string

// Get returns the value for key, or "".
func (m MapEnv) Get(key string) string { return m[key] }

// Dirs holds resolved top-level directories.
type Dirs struct {
	DataDir    string
	ConfigPath string // empty when no config file was requested
}

// ResolveDirs resolves the data directory and config path.
//
// Data dir precedence: CLIPSIFT_DATA_DIR, $XDG_DATA_HOME/clipsift,
// ~/.local/share/clipsift.
func ResolveDirs(env Env, homeDir string) Dirs {
	var d Dirs
	switch {
	case env.Get(EnvDataDir) != "":
		d.DataDir = expandHome(env.Get(EnvDataDir), homeDir)
	case env.Get("XDG_DATA_HOME") != "":
		d.DataDir = filepath.Join(env.Get("XDG_DATA_HOME"), "clipsift")
	default:
		d.DataDir = filepath.Join(homeDir, ".local", "share", "clipsift")
	}
	if p := env.Get(EnvConfig); p != "" {
		d.ConfigPath = expandHome(p, homeDir)
	}
	return d
}

// ResolveNamespace returns flag if set, else CLIPSIFT_NAMESPACE, else the default.
func ResolveNamespace(env Env, flag string) (string, error) {
	ns := flag
	if ns == "" {
		ns = env.Get(EnvNamespace)
	}
	if ns == "" {
		ns = DefaultNamespace
	}
	if err := ValidateNamespace(ns); err != nil {
		return "", err
	}
	return ns, nil
}

var namespaceRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// ValidateNamespace rejects names that could escape the namespaces directory.
func ValidateNamespace(ns string) error {
	if !namespaceRe.MatchString(ns) || strings.Contains(ns, "..") {
		return errors.NewWithDetails(errors.EUsage, "invalid namespace: "+ns,
			map[string]string{"namespace": ns, "hint": "use letters, digits, '.', '_' or '-'"})
	}
	return nil
}

func expandHome(p, home string) string {
	if p == "~" {
		return home
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(home, p[2:])
	}
	return p
}
