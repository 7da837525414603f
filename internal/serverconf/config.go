package serverconf

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// optionDef describes one recognized redis-server option.
type optionDef struct {
	// def is the seeded default; empty means no line is emitted unless
	// the caller overrides the option.
	def string
	// managed options are owned by the instance manager; caller
	// overrides are rejected to keep registry identities correct.
	managed bool
}

// recognized is the full set of options the builder accepts. Defaults
// lean secure: no TCP listener, loopback bind, protected mode on, debug
// and module admin commands disabled. Anything not listed here is a
// configuration error, not a silent pass-through.
var recognized = map[string]optionDef{
	// Manager-owned runtime identity fields.
	"unixsocket": {managed: true},
	"pidfile":    {managed: true},
	"dir":        {managed: true},
	"dbfilename": {managed: true},
	"logfile":    {managed: true},
	"daemonize":  {def: "no", managed: true},
	"loadmodule": {managed: true},

	// Security posture, overridable.
	"port":                  {def: "0"},
	"bind":                  {def: "127.0.0.1 -::1"},
	"protected-mode":        {def: "yes"},
	"unixsocketperm":        {def: "700"},
	"enable-debug-command":  {def: "no"},
	"enable-module-command": {def: "no"},

	// Persistence and tuning, overridable.
	"save":             {def: "900 1 300 10 60 10000"},
	"appendonly":       {def: "no"},
	"appendfsync":      {},
	"loglevel":         {def: "notice"},
	"maxmemory":        {},
	"maxmemory-policy": {},
	"timeout":          {},
	"databases":        {},
	"requirepass":      {},
	"masterauth":       {},

	// Replication: callers request a replica by pointing this at the
	// upstream's "host port"; topology correctness is the server's job.
	"replicaof":       {},
	"repl-diskless-sync": {},
}

// defaultOrder fixes the emission order of seeded defaults so rendered
// files are stable and diffable.
var defaultOrder = []string{
	"daemonize",
	"port",
	"bind",
	"protected-mode",
	"unixsocketperm",
	"enable-debug-command",
	"enable-module-command",
	"save",
	"appendonly",
	"loglevel",
}

// Config is an ordered option-name -> value mapping rendered to the
// server's key-value config grammar, one option per line.
type Config struct {
	entries []Entry
}

// Entry is a single rendered config line.
type Entry struct {
	Key   string
	Value string
}

// Build seeds secure defaults, overlays caller overrides (rejecting
// manager-owned and unrecognized keys), and appends the manager-owned
// identity fields last so they always win.
func Build(id Identity, modulePath string, overrides map[string]string) (*Config, error) {
	c := &Config{}
	for _, key := range defaultOrder {
		if def := recognized[key].def; def != "" {
			c.set(key, def)
		}
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		key := strings.ToLower(strings.TrimSpace(k))
		def, ok := recognized[key]
		if !ok {
			return nil, configRejectedError{key: k, reason: "unrecognized option"}
		}
		if def.managed {
			return nil, configRejectedError{key: k, reason: "option is managed by the instance manager"}
		}
		c.set(key, overrides[k])
	}

	if modulePath != "" {
		c.set("loadmodule", modulePath)
	}
	c.set("unixsocket", id.SocketPath)
	c.set("pidfile", id.PidPath)
	c.set("dir", id.DBDir)
	c.set("dbfilename", id.DBFile)
	c.set("logfile", id.LogPath)
	return c, nil
}

// set replaces an existing entry in place or appends a new one,
// preserving the overall ordering.
func (c *Config) set(key, value string) {
	for i := range c.entries {
		if c.entries[i].Key == key {
			c.entries[i].Value = value
			return
		}
	}
	c.entries = append(c.entries, Entry{Key: key, Value: value})
}

// Get returns the current value for key.
func (c *Config) Get(key string) (string, bool) {
	for _, e := range c.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// Entries returns a copy of the ordered entries.
func (c *Config) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Render produces the config file body, one "key value" line per entry.
func (c *Config) Render() string {
	var sb strings.Builder
	for _, e := range c.entries {
		sb.WriteString(e.Key)
		sb.WriteByte(' ')
		sb.WriteString(e.Value)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// WriteFile renders the config to path with owner-only permissions.
func (c *Config) WriteFile(path string) error {
	if err := os.WriteFile(path, []byte(c.Render()), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

type configRejectedError struct {
	key    string
	reason string
}

func (e configRejectedError) Error() string {
	return fmt.Sprintf("config rejected: %s: %s", e.key, e.reason)
}

// IsConfigRejected reports whether err indicates a caller override that
// touched a manager-owned field or an unrecognized option.
func IsConfigRejected(err error) bool {
	_, ok := err.(configRejectedError)
	return ok
}
