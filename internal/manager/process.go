package manager

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"redlite/internal/artifacts"
	"redlite/internal/common/fsutil"
	"redlite/internal/serverconf"
	"redlite/pkg/types"
)

// logTailBytes bounds how much of the server log is attached to a
// start-up failure.
const logTailBytes = 4096

// spawnLockName lives in the instance run dir and serializes spawns for
// the same data file across host processes.
const spawnLockName = "spawn.lock"

// startInstance renders the config, spawns the server, and polls for
// readiness. On any failure the partial process and its transient files
// are torn down before the error is returned, so a failed start never
// leaves a stale socket behind.
func (m *Manager) startInstance(ctx context.Context, id serverconf.Identity, overrides map[string]string) (*Handle, error) {
	if err := artifacts.CheckModuleExecutable(m.paths.Module); err != nil {
		return nil, err
	}
	cfg, err := serverconf.Build(id, m.paths.Module, overrides)
	if err != nil {
		return nil, err
	}

	var spawnLock *flock.Flock
	if !id.Ephemeral && !m.cfg.DisableSpawnLock {
		spawnLock = flock.New(filepath.Join(id.RunDir, spawnLockName))
		locked, err := spawnLock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquiring spawn lock: %w", err)
		}
		if !locked {
			return nil, fmt.Errorf("another process is starting a server for %s", id.DBPath)
		}
	}
	unlockOnErr := func() {
		if spawnLock != nil {
			_ = spawnLock.Unlock()
		}
	}

	// Clear leftovers from a previous unclean host exit. A live server
	// would hold the spawn lock, so anything here is stale.
	_ = os.Remove(id.SocketPath)
	_ = os.Remove(id.PidPath)

	if err := cfg.WriteFile(id.ConfigPath); err != nil {
		unlockOnErr()
		return nil, err
	}

	logFile, err := os.OpenFile(id.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		unlockOnErr()
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	cmd := exec.Command(m.paths.ServerBin, id.ConfigPath)
	cmd.Dir = id.DBDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		_ = os.Remove(id.ConfigPath)
		unlockOnErr()
		return nil, fmt.Errorf("starting server: %w", err)
	}
	// Child has its own handle on the log file.
	_ = logFile.Close()

	h := &Handle{
		ID:           id,
		cmd:          cmd,
		pid:          cmd.Process.Pid,
		state:        types.StateStarting,
		moduleLoaded: m.paths.Module != "",
		startedAt:    time.Now(),
		waitDone:     make(chan struct{}),
		spawnLock:    spawnLock,
	}
	go func() {
		h.waitErr = cmd.Wait()
		close(h.waitDone)
	}()

	spawnsTotal.Inc()
	m.log.Info().
		Str("db", id.DBPath).
		Int("pid", h.pid).
		Str("socket", id.SocketPath).
		Bool("ephemeral", id.Ephemeral).
		Msg("server spawned")

	// The coordinator tracks the handle from this point so a host exit
	// during the readiness window still reaps the child.
	m.coord.register(h)

	if err := m.awaitReady(ctx, h); err != nil {
		return nil, err
	}
	h.setState(types.StateReady)
	instancesReady.Inc()
	m.log.Info().Str("db", id.DBPath).Int("pid", h.PID()).Msg("server ready")
	return h, nil
}

// awaitReady polls the probe until it answers, the child exits, the
// deadline passes, or ctx is canceled. Every failure path tears the
// partial instance down and transitions the handle to Failed.
func (m *Manager) awaitReady(ctx context.Context, h *Handle) error {
	deadline := time.Now().Add(m.cfg.StartDeadline)
	for {
		select {
		case <-h.waitDone:
			tail := fsutil.Tail(h.ID.LogPath, logTailBytes)
			h.setState(types.StateFailed)
			h.removeArtifacts()
			spawnFailures.WithLabelValues("exited_early").Inc()
			m.log.Error().Str("db", h.ID.DBPath).Err(h.waitErr).Msg("server exited before ready")
			return exitedEarlyError{cause: h.waitErr, tail: tail}
		case <-ctx.Done():
			m.reapStartFailure(h, "canceled")
			return fmt.Errorf("waiting for readiness: %w", ctx.Err())
		default:
		}

		if time.Now().After(deadline) {
			tail := fsutil.Tail(h.ID.LogPath, logTailBytes)
			m.reapStartFailure(h, "timeout")
			return startTimeoutError{
				socket: h.ID.SocketPath,
				window: m.cfg.StartDeadline.String(),
				tail:   tail,
			}
		}

		probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeInterval*5)
		err := m.cfg.Probe(probeCtx, h.ID.SocketPath)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(m.cfg.ProbeInterval)
	}
}

// reapStartFailure kills a child that never became ready and removes
// its artifacts.
func (m *Manager) reapStartFailure(h *Handle, kind string) {
	_ = h.cmd.Process.Kill()
	<-h.waitDone
	h.setState(types.StateFailed)
	h.removeArtifacts()
	spawnFailures.WithLabelValues(kind).Inc()
	m.log.Error().Str("db", h.ID.DBPath).Str("kind", kind).Msg("start failed, partial instance reaped")
}

// Stop terminates the instance: SIGTERM, bounded grace, then SIGKILL.
// Stopping an already stopped or failed handle is a no-op.
func (m *Manager) Stop(h *Handle) error {
	h.mu.Lock()
	switch h.state {
	case types.StateStopped, types.StateFailed:
		h.mu.Unlock()
		return nil
	case types.StateReady, types.StateStarting:
	default:
		h.mu.Unlock()
		return nil
	}
	wasReady := h.state == types.StateReady
	cmd := h.cmd
	pid := h.pid
	// Mark stopped up front so concurrent Stop calls become no-ops;
	// the process teardown below runs exactly once.
	h.state = types.StateStopped
	h.pid = 0
	h.mu.Unlock()

	var stopErr error
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-h.waitDone:
		case <-time.After(m.cfg.StopGrace):
			killErr := cmd.Process.Kill()
			<-h.waitDone
			stopErr = shutdownFailedError{pid: pid, cause: fmt.Errorf("graceful stop exceeded %s, killed: %v", m.cfg.StopGrace, killErr)}
		}
	}

	h.removeArtifacts()
	stopsTotal.Inc()
	if wasReady {
		instancesReady.Dec()
	}
	if stopErr != nil {
		m.log.Warn().Str("db", h.ID.DBPath).Int("pid", pid).Err(stopErr).Msg("forced kill during stop")
	} else {
		m.log.Info().Str("db", h.ID.DBPath).Int("pid", pid).Msg("server stopped")
	}
	return stopErr
}
