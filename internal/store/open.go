package store

import (
	"time"

	"github.com/NielsdaWheelz/clipsift/internal/config"
	"github.com/NielsdaWheelz/clipsift/internal/fs"
	"github.com/NielsdaWheelz/clipsift/internal/paths"
)

// Open returns the store for layout using the configured backend.
func Open(backend string, layout paths.Layout, stages []string, now func() time.Time, warn func(string, ...any)) (Store, error) {
	if backend == config.BackendBolt {
		return OpenBolt(layout.StateBoltPath(), stages, now, warn)
	}
	s := NewJSONStore(fs.NewRealFS(), layout.StatePath(), stages, now)
	s.Warn = warn
	return s, nil
}

var (
	_ Store = (*JSONStore)(nil)
	_ Store = (*BoltStore)(nil)
)
