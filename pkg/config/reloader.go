package config

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Reconfigurable is implemented by components whose tunables can change
// while handshakes are running. Key material and station addresses are not
// reloadable.
type Reconfigurable interface {
	Reconfigure(cfg *Config) error
}

// Reloader re-reads the configuration file and pushes it to registered
// components.
type Reloader struct {
	mu         sync.Mutex
	components []Reconfigurable
	path       string
	logger     zerolog.Logger
}

func NewReloader(path string, logger zerolog.Logger) *Reloader {
	return &Reloader{
		path:   path,
		logger: logger.With().Str("component", "reloader").Logger(),
	}
}

func (r *Reloader) Register(c Reconfigurable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components = append(r.components, c)
}

// Reload loads the file and applies it. It returns the number of components
// that rejected the new configuration.
func (r *Reloader) Reload() (int, error) {
	cfg, err := Load(r.path)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to load configuration, keeping the current one")
		return 0, err
	}
	defer cfg.Destroy()
	return r.Apply(cfg), nil
}

// Apply pushes cfg to every registered component.
func (r *Reloader) Apply(cfg *Config) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	failed := 0
	for _, c := range r.components {
		name := fmt.Sprintf("%T", c)
		if err := c.Reconfigure(cfg); err != nil {
			failed++
			r.logger.Error().Err(err).Str("target", name).Msg("Failed to reconfigure component")
			continue
		}
		r.logger.Info().Str("target", name).Msg("Component reconfigured")
	}
	return failed
}
