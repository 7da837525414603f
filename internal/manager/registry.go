package manager

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"redlite/internal/artifacts"
	"redlite/internal/serverconf"
	"redlite/pkg/types"
)

// Manager owns the registry of running server instances, keyed by the
// canonical data-file path. All operations are safe for concurrent use.
type Manager struct {
	cfg   Config
	paths artifacts.Paths

	mu        sync.Mutex
	instances map[string]*Handle
	// keyLocks serializes spawns per data-file path without holding mu
	// across the whole (slow) start sequence.
	keyLocks sync.Map // string -> *sync.Mutex

	coord     *coordinator
	log       *zerolog.Logger
	startTime time.Time

	hookOnce sync.Once
}

// New resolves the embedded artifacts and returns a ready Manager. It
// fails fast when the server binary cannot be found, so callers learn
// about a broken installation before the first instance request.
func New(cfg Config) (*Manager, error) {
	cfg = cfg.withDefaults()
	paths, err := artifacts.NewLocator(cfg.SearchDirs...).Resolve()
	if err != nil {
		return nil, err
	}
	m := &Manager{
		cfg:       cfg,
		paths:     paths,
		instances: make(map[string]*Handle),
		coord:     newCoordinator(),
		log:       cfg.Logger,
		startTime: time.Now(),
	}
	m.log.Info().
		Str("server_bin", paths.ServerBin).
		Str("module", paths.Module).
		Msg("manager initialized")
	return m, nil
}

// Paths reports where the embedded artifacts were found.
func (m *Manager) Paths() artifacts.Paths { return m.paths }

// GetOrCreate returns the instance serving dbPath, spawning one if none
// is running. An empty dbPath provisions a fresh ephemeral instance on
// every call. Overrides are extra server config directives; keys the
// manager owns are rejected.
//
// Two concurrent calls for the same path race on a per-path mutex, so
// exactly one spawn happens and both callers receive the same handle.
func (m *Manager) GetOrCreate(ctx context.Context, dbPath string, overrides map[string]string) (*Handle, error) {
	id, err := serverconf.Derive(dbPath)
	if err != nil {
		return nil, err
	}

	if id.Ephemeral {
		h, err := m.startInstance(ctx, id, overrides)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.instances[id.DBPath] = h
		m.mu.Unlock()
		return h, nil
	}

	lk := m.keyLock(id.DBPath)
	lk.Lock()
	defer lk.Unlock()

	m.mu.Lock()
	existing := m.instances[id.DBPath]
	m.mu.Unlock()
	if existing != nil {
		switch existing.State() {
		case types.StateReady, types.StateStarting:
			return existing, nil
		}
		// Terminal handle: fall through and respawn under the same key.
	}

	h, err := m.startInstance(ctx, id, overrides)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.instances[id.DBPath] = h
	m.mu.Unlock()
	return h, nil
}

// Provision is GetOrCreate for callers that only need the instance
// snapshot, not the live handle. The HTTP surface is built on it.
func (m *Manager) Provision(ctx context.Context, dbPath string, overrides map[string]string) (types.InstanceInfo, error) {
	h, err := m.GetOrCreate(ctx, dbPath, overrides)
	if err != nil {
		return types.InstanceInfo{}, err
	}
	return h.Info(), nil
}

func (m *Manager) keyLock(key string) *sync.Mutex {
	v, _ := m.keyLocks.LoadOrStore(key, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Get returns the handle registered for dbPath, or an error when no
// instance serves it.
func (m *Manager) Get(dbPath string) (*Handle, error) {
	id, err := serverconf.Derive(dbPath)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	h := m.instances[id.DBPath]
	m.mu.Unlock()
	if h == nil {
		return nil, fmt.Errorf("no instance for %s", id.DBPath)
	}
	return h, nil
}

// Release stops the instance serving dbPath and drops it from the
// registry. Releasing an unknown path is a no-op.
func (m *Manager) Release(dbPath string) error {
	id, err := serverconf.Derive(dbPath)
	if err != nil {
		return err
	}
	m.mu.Lock()
	h := m.instances[id.DBPath]
	delete(m.instances, id.DBPath)
	m.mu.Unlock()
	if h == nil {
		return nil
	}
	return m.Stop(h)
}

// ReleaseHandle stops a handle obtained from GetOrCreate and drops it
// from the registry. Intended for ephemeral instances whose generated
// path the caller does not track.
func (m *Manager) ReleaseHandle(h *Handle) error {
	m.mu.Lock()
	if m.instances[h.ID.DBPath] == h {
		delete(m.instances, h.ID.DBPath)
	}
	m.mu.Unlock()
	return m.Stop(h)
}

// ShutdownAll stops every registered instance. It is idempotent and
// keeps going past individual stop failures, returning the first one.
func (m *Manager) ShutdownAll() error {
	m.mu.Lock()
	handles := make([]*Handle, 0, len(m.instances))
	for _, h := range m.instances {
		handles = append(handles, h)
	}
	m.instances = make(map[string]*Handle)
	m.mu.Unlock()

	var firstErr error
	for _, h := range handles {
		if err := m.Stop(h); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Instances returns a snapshot of all registered instances, sorted by
// data-file path for stable output.
func (m *Manager) Instances() []types.InstanceInfo {
	m.mu.Lock()
	infos := make([]types.InstanceInfo, 0, len(m.instances))
	for _, h := range m.instances {
		infos = append(infos, h.Info())
	}
	m.mu.Unlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].DBPath < infos[j].DBPath })
	return infos
}

// Ready reports whether at least one instance is serving, or no
// instances have been requested yet (an idle manager is healthy).
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.instances) == 0 {
		return true
	}
	for _, h := range m.instances {
		if h.State() == types.StateReady {
			return true
		}
	}
	return false
}

// Status assembles the full status report for the HTTP surface.
func (m *Manager) Status() types.StatusResponse {
	infos := m.Instances()
	ready := 0
	for _, in := range infos {
		if in.State == types.StateReady {
			ready++
		}
	}
	state := "idle"
	switch {
	case ready > 0:
		state = "serving"
	case len(infos) > 0:
		state = "degraded"
	}
	return types.StatusResponse{
		State:      state,
		Instances:  infos,
		ReadyCount: ready,
		UptimeSec:  int64(time.Since(m.startTime).Seconds()),
		ServerBin:  m.paths.ServerBin,
		ModulePath: m.paths.Module,
	}
}
