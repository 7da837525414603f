package serverconf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testIdentity(t *testing.T) Identity {
	t.Helper()
	id, err := Derive(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	return id
}

func TestBuildSeedsSecureDefaults(t *testing.T) {
	id := testIdentity(t)
	c, err := Build(id, "", nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for key, want := range map[string]string{
		"port":           "0",
		"bind":           "127.0.0.1 -::1",
		"protected-mode": "yes",
		"daemonize":      "no",
		"unixsocket":     id.SocketPath,
		"pidfile":        id.PidPath,
		"dir":            id.DBDir,
		"dbfilename":     id.DBFile,
		"logfile":        id.LogPath,
	} {
		got, ok := c.Get(key)
		if !ok || got != want {
			t.Fatalf("%s = %q (ok=%v), want %q", key, got, ok, want)
		}
	}
}

func TestBuildOverridesWin(t *testing.T) {
	id := testIdentity(t)
	c, err := Build(id, "", map[string]string{
		"port": "6401",
		"save": `""`,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got, _ := c.Get("port"); got != "6401" {
		t.Fatalf("port override lost: %q", got)
	}
	if got, _ := c.Get("save"); got != `""` {
		t.Fatalf("save override lost: %q", got)
	}
}

func TestBuildRejectsManagedFields(t *testing.T) {
	id := testIdentity(t)
	for _, key := range []string{"unixsocket", "pidfile", "dir", "dbfilename", "daemonize", "loadmodule"} {
		_, err := Build(id, "", map[string]string{key: "/elsewhere"})
		if err == nil || !IsConfigRejected(err) {
			t.Fatalf("override of %s: expected config-rejected, got %v", key, err)
		}
	}
}

func TestBuildRejectsUnrecognizedKeys(t *testing.T) {
	id := testIdentity(t)
	_, err := Build(id, "", map[string]string{"not-a-redis-option": "1"})
	if err == nil || !IsConfigRejected(err) {
		t.Fatalf("expected config-rejected, got %v", err)
	}
	if !strings.Contains(err.Error(), "not-a-redis-option") {
		t.Fatalf("error should name the key: %v", err)
	}
}

func TestBuildModuleAndReplica(t *testing.T) {
	id := testIdentity(t)
	c, err := Build(id, "/opt/redlite/falkordb.so", map[string]string{
		"replicaof": "127.0.0.1 6401",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got, _ := c.Get("loadmodule"); got != "/opt/redlite/falkordb.so" {
		t.Fatalf("loadmodule = %q", got)
	}
	if got, _ := c.Get("replicaof"); got != "127.0.0.1 6401" {
		t.Fatalf("replicaof = %q", got)
	}
}

func TestRenderOneOptionPerLine(t *testing.T) {
	id := testIdentity(t)
	c, err := Build(id, "", map[string]string{"port": "6500"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	body := c.Render()
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	if len(lines) != len(c.Entries()) {
		t.Fatalf("expected %d lines, got %d", len(c.Entries()), len(lines))
	}
	for _, line := range lines {
		if strings.TrimSpace(line) == "" || !strings.Contains(line, " ") {
			t.Fatalf("malformed config line %q", line)
		}
	}
	if !strings.Contains(body, "unixsocket "+id.SocketPath+"\n") {
		t.Fatalf("rendered config missing unixsocket line:\n%s", body)
	}
	// Manager-owned fields are emitted after defaults and overrides.
	if strings.Index(body, "port ") > strings.Index(body, "unixsocket ") {
		t.Fatalf("manager-owned fields should render last:\n%s", body)
	}
}

func TestWriteFile(t *testing.T) {
	id := testIdentity(t)
	c, err := Build(id, "", nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := c.WriteFile(id.ConfigPath); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(id.ConfigPath)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(b) != c.Render() {
		t.Fatalf("file content mismatch")
	}
	fi, err := os.Stat(id.ConfigPath)
	if err != nil || fi.Mode().Perm() != 0o600 {
		t.Fatalf("config file should be 0600: %v %v", fi, err)
	}
}
