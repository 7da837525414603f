// Package e2e drives the HTTP surface against a real Manager with a
// stand-in server binary, covering the full provision/inspect/release
// cycle the way an embedding application sees it.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"redlite/internal/artifacts"
	"redlite/internal/httpapi"
	"redlite/internal/manager"
	"redlite/pkg/types"
)

const fakeServer = `#!/bin/sh
cfg="$1"
sock=$(awk '/^unixsocket /{print $2}' "$cfg")
pidfile=$(awk '/^pidfile /{print $2}' "$cfg")
echo $$ > "$pidfile"
: > "$sock"
trap 'rm -f "$sock"; exit 0' TERM
while :; do sleep 0.05; done
`

func startAPI(t *testing.T) *httptest.Server {
	t.Helper()
	binDir := t.TempDir()
	bin := filepath.Join(binDir, artifacts.ServerBinaryName)
	if err := os.WriteFile(bin, []byte(fakeServer), 0o755); err != nil {
		t.Fatalf("writing fake server: %v", err)
	}
	mgr, err := manager.New(manager.Config{
		SearchDirs:    []string{binDir},
		ProbeInterval: 10 * time.Millisecond,
		StartDeadline: 3 * time.Second,
		StopGrace:     time.Second,
		Probe: func(_ context.Context, socketPath string) error {
			_, err := os.Stat(socketPath)
			return err
		},
	})
	if err != nil {
		t.Fatalf("manager.New: %v", err)
	}
	t.Cleanup(func() { _ = mgr.ShutdownAll() })

	srv := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestProvisionInspectReleaseCycle(t *testing.T) {
	srv := startAPI(t)
	db := filepath.Join(t.TempDir(), "app.db")

	// Provision.
	body, _ := json.Marshal(types.ProvisionRequest{DBPath: db})
	resp := postJSON(t, srv.URL+"/instances", string(body))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("provision status = %d", resp.StatusCode)
	}
	var info types.InstanceInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decoding provision response: %v", err)
	}
	if info.State != types.StateReady || info.SocketPath == "" || info.PID == 0 {
		t.Fatalf("unexpected instance: %+v", info)
	}
	if _, err := os.Stat(info.SocketPath); err != nil {
		t.Fatalf("advertised socket missing: %v", err)
	}

	// Provisioning the same path again reports the same instance.
	resp2 := postJSON(t, srv.URL+"/instances", string(body))
	defer resp2.Body.Close()
	var info2 types.InstanceInfo
	if err := json.NewDecoder(resp2.Body).Decode(&info2); err != nil {
		t.Fatalf("decoding second provision: %v", err)
	}
	if info2.PID != info.PID || info2.SocketPath != info.SocketPath {
		t.Fatalf("same path respawned: %+v vs %+v", info, info2)
	}

	// Status reflects the running instance.
	stResp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer stResp.Body.Close()
	var st types.StatusResponse
	if err := json.NewDecoder(stResp.Body).Decode(&st); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if st.State != "serving" || st.ReadyCount != 1 {
		t.Fatalf("status = %+v", st)
	}

	// Release tears the instance down along with its socket.
	relBody, _ := json.Marshal(types.ReleaseRequest{DBPath: db})
	relResp := postJSON(t, srv.URL+"/instances/release", string(relBody))
	defer relResp.Body.Close()
	if relResp.StatusCode != http.StatusNoContent {
		t.Fatalf("release status = %d", relResp.StatusCode)
	}
	if _, err := os.Stat(info.SocketPath); !os.IsNotExist(err) {
		t.Fatalf("socket survived release: %v", err)
	}
}

func TestProvisionRejectsManagedOverride(t *testing.T) {
	srv := startAPI(t)
	db := filepath.Join(t.TempDir(), "app.db")

	body, _ := json.Marshal(types.ProvisionRequest{
		DBPath:    db,
		Overrides: map[string]string{"dir": "/elsewhere"},
	})
	resp := postJSON(t, srv.URL+"/instances", string(body))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var er types.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		t.Fatalf("decoding error payload: %v", err)
	}
	if er.Code != http.StatusBadRequest {
		t.Fatalf("error payload = %+v", er)
	}
}

func TestEphemeralProvisioning(t *testing.T) {
	srv := startAPI(t)

	resp := postJSON(t, srv.URL+"/instances", `{"db_path":""}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var info types.InstanceInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if !info.Ephemeral {
		t.Fatalf("expected ephemeral instance: %+v", info)
	}

	resp2 := postJSON(t, srv.URL+"/instances", `{"db_path":""}`)
	defer resp2.Body.Close()
	var info2 types.InstanceInfo
	if err := json.NewDecoder(resp2.Body).Decode(&info2); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if info2.SocketPath == info.SocketPath {
		t.Fatal("ephemeral provisions must not share a socket")
	}
}
