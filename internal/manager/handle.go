package manager

import (
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"redlite/internal/serverconf"
	"redlite/pkg/types"
)

// Handle is the live reference to one managed server process. It is
// owned exclusively by the registry entry for its identity; the process
// reference's lifetime is exactly the handle's lifetime.
type Handle struct {
	// ID is the immutable runtime identity of this instance.
	ID serverconf.Identity

	mu           sync.Mutex
	cmd          *exec.Cmd
	pid          int
	state        types.InstanceState
	moduleLoaded bool
	startedAt    time.Time
	// waitDone is closed when cmd.Wait returns; waitErr holds its
	// result and may be read only after waitDone is closed.
	waitDone chan struct{}
	waitErr  error
	// spawnLock guards against a second host process starting a server
	// for the same data file; held from spawn until stop.
	spawnLock *flock.Flock
}

// State returns the current lifecycle state.
func (h *Handle) State() types.InstanceState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// PID returns the child process id, 0 when not running.
func (h *Handle) PID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pid
}

// SocketPath returns the unix socket a connection facade should dial.
func (h *Handle) SocketPath() string {
	return h.ID.SocketPath
}

// Info returns a read-only snapshot for status reporting.
func (h *Handle) Info() types.InstanceInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return types.InstanceInfo{
		DBPath:       h.ID.DBPath,
		SocketPath:   h.ID.SocketPath,
		PID:          h.pid,
		State:        h.state,
		Ephemeral:    h.ID.Ephemeral,
		ModuleLoaded: h.moduleLoaded,
		StartedAt:    h.startedAt,
	}
}

// setState transitions the handle. Starting -> Ready|Failed happens
// exactly once; terminal states never revert to Starting.
func (h *Handle) setState(s types.InstanceState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == s {
		return
	}
	if s == types.StateStarting && h.state != "" {
		return
	}
	h.state = s
	if s == types.StateStopped || s == types.StateFailed {
		h.pid = 0
	}
}

// removeArtifacts deletes the transient files named in the identity.
// The log file is kept for named instances so failures can be inspected;
// ephemeral instances lose their whole private directory.
func (h *Handle) removeArtifacts() {
	_ = os.Remove(h.ID.SocketPath)
	_ = os.Remove(h.ID.PidPath)
	_ = os.Remove(h.ID.ConfigPath)
	h.mu.Lock()
	lk := h.spawnLock
	h.spawnLock = nil
	h.mu.Unlock()
	if lk != nil {
		_ = lk.Unlock()
	}
	if h.ID.Ephemeral {
		_ = os.RemoveAll(h.ID.RunDir)
	}
}
