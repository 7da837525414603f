package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"redlite/internal/artifacts"
	"redlite/internal/serverconf"
	"redlite/pkg/types"
)

type fakeService struct {
	provisionErr error
	releaseErr   error
	ready        bool
	released     []string
}

func (f *fakeService) Provision(_ context.Context, dbPath string, _ map[string]string) (types.InstanceInfo, error) {
	if f.provisionErr != nil {
		return types.InstanceInfo{}, f.provisionErr
	}
	return types.InstanceInfo{
		DBPath:     dbPath,
		SocketPath: "/tmp/fake/redis.sock",
		PID:        4242,
		State:      types.StateReady,
		StartedAt:  time.Now(),
	}, nil
}

func (f *fakeService) Release(dbPath string) error {
	f.released = append(f.released, dbPath)
	return f.releaseErr
}

func (f *fakeService) Instances() []types.InstanceInfo {
	return []types.InstanceInfo{{DBPath: "/data/a.db", State: types.StateReady}}
}

func (f *fakeService) Status() types.StatusResponse {
	return types.StatusResponse{State: "serving", ReadyCount: 1}
}

func (f *fakeService) Ready() bool { return f.ready }

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestStatusEndpoint(t *testing.T) {
	h := NewMux(&fakeService{ready: true})
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var st types.StatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &st); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if st.State != "serving" || st.ReadyCount != 1 {
		t.Fatalf("unexpected status payload: %+v", st)
	}
}

func TestProvisionSuccess(t *testing.T) {
	h := NewMux(&fakeService{ready: true})
	rr := postJSON(t, h, "/instances", `{"db_path":"/data/app.db"}`)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rr.Code, rr.Body.String())
	}
	var info types.InstanceInfo
	if err := json.Unmarshal(rr.Body.Bytes(), &info); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if info.DBPath != "/data/app.db" || info.SocketPath == "" {
		t.Fatalf("unexpected instance payload: %+v", info)
	}
}

func TestProvisionRequiresJSONContentType(t *testing.T) {
	h := NewMux(&fakeService{})
	req := httptest.NewRequest(http.MethodPost, "/instances", strings.NewReader("db=/data/app.db"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want 415", rr.Code)
	}
}

func TestProvisionRejectsMalformedBody(t *testing.T) {
	h := NewMux(&fakeService{})
	rr := postJSON(t, h, "/instances", `{"db_path":`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	var er types.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &er); err != nil {
		t.Fatalf("error payload not JSON: %v", err)
	}
	if er.Code != http.StatusBadRequest {
		t.Fatalf("error code = %d, want 400", er.Code)
	}
}

func TestProvisionErrorMapping(t *testing.T) {
	// Produce the real error kinds through their packages; the types
	// themselves are unexported.
	_, rejected := serverconf.Build(serverconf.Identity{}, "", map[string]string{"unixsocket": "/x"})
	missing := artifacts.CheckModuleExecutable(filepath.Join(t.TempDir(), "nope.so"))

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"opaque", errors.New("boom"), http.StatusInternalServerError},
		{"config rejected", rejected, http.StatusBadRequest},
		{"artifact missing", missing, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewMux(&fakeService{provisionErr: tc.err})
			rr := postJSON(t, h, "/instances", `{"db_path":"/data/app.db"}`)
			if rr.Code != tc.want {
				t.Fatalf("status = %d, want %d", rr.Code, tc.want)
			}
		})
	}
}

func TestReleaseEndpoint(t *testing.T) {
	svc := &fakeService{}
	h := NewMux(svc)
	rr := postJSON(t, h, "/instances/release", `{"db_path":"/data/app.db"}`)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204: %s", rr.Code, rr.Body.String())
	}
	if len(svc.released) != 1 || svc.released[0] != "/data/app.db" {
		t.Fatalf("released = %v", svc.released)
	}

	rr = postJSON(t, h, "/instances/release", `{"db_path":""}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty db_path status = %d, want 400", rr.Code)
	}
}

func TestListInstances(t *testing.T) {
	h := NewMux(&fakeService{})
	req := httptest.NewRequest(http.MethodGet, "/instances", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var out struct {
		Instances []types.InstanceInfo `json:"instances"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(out.Instances) != 1 {
		t.Fatalf("instances = %d, want 1", len(out.Instances))
	}
}

func TestHealthAndReadiness(t *testing.T) {
	h := NewMux(&fakeService{ready: false})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz = %d, want 200", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz = %d, want 503", rr.Code)
	}

	h = NewMux(&fakeService{ready: true})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz = %d, want 200", rr.Code)
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	h := NewMux(&fakeService{})
	// Drive one request through the middleware so the counter exists.
	warm := httptest.NewRecorder()
	h.ServeHTTP(warm, httptest.NewRequest(http.MethodGet, "/status", nil))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "redlite_http_requests_total") {
		t.Fatal("metrics output missing redlite_http_requests_total")
	}
}
