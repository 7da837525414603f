package manager

import (
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding Config fields are unset. The
// readiness window is deliberately generous: loading the graph module
// adds a noticeable delay on first start.
const (
	defaultProbeInterval = 100 * time.Millisecond
	defaultStartDeadline = 10 * time.Second
	defaultStopGrace     = 5 * time.Second
)

// Config encapsulates all tunables for Manager construction.
type Config struct {
	// SearchDirs overrides where the embedded artifacts are looked up.
	// Empty means the package default search path.
	SearchDirs []string
	// ProbeInterval is the delay between readiness probe attempts.
	ProbeInterval time.Duration
	// StartDeadline bounds the whole readiness-polling phase.
	StartDeadline time.Duration
	// StopGrace bounds the graceful-termination wait before SIGKILL.
	StopGrace time.Duration
	// Probe replaces the default PING probe; used by tests.
	Probe ProbeFunc
	// Logger receives structured manager events; defaults to a no-op.
	Logger *zerolog.Logger
	// DisableSpawnLock skips the cross-process flock around spawn.
	DisableSpawnLock bool
}

func (c Config) withDefaults() Config {
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = defaultProbeInterval
	}
	if c.StartDeadline <= 0 {
		c.StartDeadline = defaultStartDeadline
	}
	if c.StopGrace <= 0 {
		c.StopGrace = defaultStopGrace
	}
	if c.Probe == nil {
		c.Probe = PingProbe
	}
	if c.Logger == nil {
		nop := zerolog.Nop()
		c.Logger = &nop
	}
	return c
}
