// Package serverconf derives per-instance runtime identities and renders
// redis-server configuration files for the instance manager.
package serverconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"redlite/internal/common/fsutil"
)

// Identity names every filesystem artifact belonging to one managed
// instance. It is derived deterministically from the data file path and
// immutable once created.
type Identity struct {
	// DBPath is the canonical absolute path of the data file.
	DBPath string
	// DBDir and DBFile split DBPath; DBDir is the server's working dir
	// so the dump file lands next to the caller's data file.
	DBDir  string
	DBFile string
	// RunDir holds the transient artifacts (socket, config, pid, log).
	RunDir string

	SocketPath string
	ConfigPath string
	PidPath    string
	LogPath    string

	// Ephemeral instances own a private temp directory removed entirely
	// on shutdown.
	Ephemeral bool
}

// File names inside RunDir. The socket path must stay short enough for
// sun_path (about 104 bytes on most platforms); very deep data file
// paths can exceed it, which surfaces as a bind error in the server log.
const (
	socketName = "redis.sock"
	configName = "redis.conf"
	pidName    = "redis.pid"
	logName    = "redis.log"
)

// ephemeralAttempts bounds retries when the random run dir name collides.
// The suffix is 8 hex chars from a v4 UUID, so a pair of instances
// collides with probability 2^-32; retrying three times is plenty.
const ephemeralAttempts = 3

// Derive builds the runtime identity for dbPath. An empty dbPath yields
// an ephemeral instance with a freshly generated private directory. A
// non-empty path is canonicalized so re-opening the same data file, from
// this process or a later one, maps to the same socket name.
func Derive(dbPath string) (Identity, error) {
	if strings.TrimSpace(dbPath) == "" {
		return deriveEphemeral()
	}
	canonical, err := fsutil.Canonical(dbPath)
	if err != nil {
		return Identity{}, fmt.Errorf("canonicalize %s: %w", dbPath, err)
	}
	dir, file := filepath.Split(canonical)
	dir = filepath.Clean(dir)
	runDir := filepath.Join(dir, "."+file+"-redlite")
	if err := os.MkdirAll(runDir, 0o700); err != nil {
		return Identity{}, fmt.Errorf("create run dir: %w", err)
	}
	return finish(Identity{
		DBPath: canonical,
		DBDir:  dir,
		DBFile: file,
		RunDir: runDir,
	}), nil
}

func deriveEphemeral() (Identity, error) {
	var lastErr error
	for i := 0; i < ephemeralAttempts; i++ {
		token := uuid.NewString()[:8]
		runDir := filepath.Join(os.TempDir(), "redlite-"+token)
		if err := os.Mkdir(runDir, 0o700); err != nil {
			if os.IsExist(err) {
				lastErr = err
				continue
			}
			return Identity{}, fmt.Errorf("create ephemeral dir: %w", err)
		}
		return finish(Identity{
			DBPath:    filepath.Join(runDir, "redis.db"),
			DBDir:     runDir,
			DBFile:    "redis.db",
			RunDir:    runDir,
			Ephemeral: true,
		}), nil
	}
	return Identity{}, fmt.Errorf("create ephemeral dir: %w", lastErr)
}

func finish(id Identity) Identity {
	id.SocketPath = filepath.Join(id.RunDir, socketName)
	id.ConfigPath = filepath.Join(id.RunDir, configName)
	id.PidPath = filepath.Join(id.RunDir, pidName)
	id.LogPath = filepath.Join(id.RunDir, logName)
	return id
}
