package manager

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// coordinator tracks every handle ever spawned, including ones that
// failed before registration in the instance map, so an exiting host
// process can reap all children.
type coordinator struct {
	mu      sync.Mutex
	handles []*Handle
}

func newCoordinator() *coordinator {
	return &coordinator{}
}

func (c *coordinator) register(h *Handle) {
	c.mu.Lock()
	c.handles = append(c.handles, h)
	c.mu.Unlock()
}

func (c *coordinator) snapshot() []*Handle {
	c.mu.Lock()
	out := make([]*Handle, len(c.handles))
	copy(out, c.handles)
	c.mu.Unlock()
	return out
}

// RegisterExitHook installs a signal handler that shuts down every
// instance before the host process dies, then re-raises the signal so
// the process exits with the conventional status. Installing it more
// than once is a no-op. With no signals given it defaults to SIGINT
// and SIGTERM.
func (m *Manager) RegisterExitHook(sigs ...os.Signal) {
	m.hookOnce.Do(func() {
		if len(sigs) == 0 {
			sigs = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
		}
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, sigs...)
		go func() {
			sig := <-ch
			m.log.Info().Str("signal", sig.String()).Msg("exit signal, stopping instances")
			m.reapAll()
			signal.Stop(ch)
			if s, ok := sig.(syscall.Signal); ok {
				_ = syscall.Kill(os.Getpid(), s)
			} else {
				os.Exit(1)
			}
		}()
	})
}

// reapAll stops registered instances and then sweeps the coordinator
// for stragglers that never made it into the registry. Best effort:
// nothing here may panic on a torn-down handle.
func (m *Manager) reapAll() {
	_ = m.ShutdownAll()
	for _, h := range m.coord.snapshot() {
		_ = m.Stop(h)
	}
}
