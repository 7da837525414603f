package types

import "time"

// InstanceState is the lifecycle state of a managed redis-server process.
type InstanceState string

const (
	// StateStarting means the process was spawned but has not answered a probe yet.
	StateStarting InstanceState = "starting"
	// StateReady means the server answered the readiness probe on its socket.
	StateReady InstanceState = "ready"
	// StateFailed means startup failed (early exit or readiness deadline exceeded).
	StateFailed InstanceState = "failed"
	// StateStopped means the process was terminated and its artifacts removed.
	StateStopped InstanceState = "stopped"
)

// InstanceInfo is a read-only snapshot of one managed instance.
type InstanceInfo struct {
	// Canonical path of the data file this instance serves.
	DBPath string `json:"db_path"`
	// Unix socket the server listens on.
	SocketPath string `json:"socket_path"`
	// Process ID of the redis-server child, 0 when not running.
	PID int `json:"pid"`
	// Current lifecycle state.
	State InstanceState `json:"state"`
	// True when the instance uses a private temp dir removed on shutdown.
	Ephemeral bool `json:"ephemeral"`
	// True when the graph extension module was passed to the server.
	ModuleLoaded bool `json:"module_loaded"`
	// Time the child process was spawned.
	StartedAt time.Time `json:"started_at"`
}
