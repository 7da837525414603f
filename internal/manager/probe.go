package manager

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"redlite/pkg/types"
)

// ProbeFunc checks liveness of a server on its unix socket. It is used
// only for readiness detection, never for data operations, and must
// honor the context deadline.
type ProbeFunc func(ctx context.Context, socketPath string) error

// PingProbe is the default probe: a single PING over the unix socket.
func PingProbe(ctx context.Context, socketPath string) error {
	cli := redis.NewClient(&redis.Options{
		Network:      "unix",
		Addr:         socketPath,
		DialTimeout:  500 * time.Millisecond,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		PoolSize:     1,
		MaxRetries:   -1,
	})
	defer cli.Close()
	return cli.Ping(ctx).Err()
}

// ConnectionCount returns the number of clients currently connected to
// the instance, via CLIENT LIST on its socket.
func (m *Manager) ConnectionCount(ctx context.Context, h *Handle) (int, error) {
	if h.State() != types.StateReady {
		return 0, fmt.Errorf("instance for %s is not ready", h.ID.DBPath)
	}
	cli := redis.NewClient(&redis.Options{
		Network:  "unix",
		Addr:     h.ID.SocketPath,
		PoolSize: 1,
	})
	defer cli.Close()
	out, err := cli.ClientList(ctx).Result()
	if err != nil {
		return 0, fmt.Errorf("client list: %w", err)
	}
	n := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n, nil
}
