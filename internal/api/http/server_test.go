package httpapi

import (
	stdcontext "context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Paintersrp/procctl/internal/api"
	"github.com/Paintersrp/procctl/internal/metrics"
)

func TestNewServerRejectsNilController(t *testing.T) {
	if _, err := NewServer(Config{}); err == nil {
		t.Fatalf("expected error without controller")
	}
	var ctrl api.Controller = (*mockController)(nil)
	_, err := NewServer(Config{Controller: ctrl})
	if err == nil {
		t.Fatalf("expected error when controller is typed nil")
	}
	if !strings.Contains(err.Error(), "mockController") {
		t.Fatalf("expected error to describe typed nil controller, got %v", err)
	}
}

func TestNormalizeAddr(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":           defaultAddr,
		":80":        "127.0.0.1:80",
		"0.0.0.0:80": "0.0.0.0:80",
		"[::]:80":    "[::]:80",
		"host:9000":  "host:9000",
		"[::1]:443":  "[::1]:443",
	}

	for input, expected := range tests {
		input, expected := input, expected
		t.Run(fmt.Sprintf("%s->%s", input, expected), func(t *testing.T) {
			t.Parallel()
			if got := normalizeAddr(input); got != expected {
				t.Fatalf("normalizeAddr(%q)=%q, want %q", input, got, expected)
			}
		})
	}
}

func TestHandleStatus(t *testing.T) {
	code := 3
	ctrl := &mockController{
		statusFn: func(stdcontext.Context) (*api.StatusReport, error) {
			return &api.StatusReport{
				GeneratedAt: time.Unix(123, 0),
				Processes: map[string]api.ProcessReport{
					"worker": {Name: "worker", Pid: 42, State: "exited", ExitValue: &code},
				},
			}, nil
		},
	}
	server := newTestServer(t, ctrl)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	server.handleStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", rec.Code)
	}
	var body api.StatusReport
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed decoding response: %v", err)
	}
	report, ok := body.Processes["worker"]
	if !ok {
		t.Fatalf("expected worker in report, got %+v", body.Processes)
	}
	if report.Pid != 42 || report.ExitValue == nil || *report.ExitValue != 3 {
		t.Fatalf("unexpected worker report %+v", report)
	}
}

func TestHandleStatusRedactsCommandLines(t *testing.T) {
	ctrl := &mockController{
		statusFn: func(stdcontext.Context) (*api.StatusReport, error) {
			return &api.StatusReport{
				Processes: map[string]api.ProcessReport{
					"worker": {Name: "worker", State: "starting", Message: "/bin/worker --token=hunter2"},
				},
			}, nil
		},
	}
	server := newTestServer(t, ctrl)

	for _, path := range []string{"/api/v1/status", "/api/v1/status/worker"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if path == "/api/v1/status" {
			server.handleStatus(rec, req)
		} else {
			server.handleProcessStatus(rec, req)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 OK, got %d", path, rec.Code)
		}
		body := rec.Body.String()
		if strings.Contains(body, "hunter2") {
			t.Fatalf("%s: secret leaked in %s", path, body)
		}
		if !strings.Contains(body, "--token=[redacted]") {
			t.Fatalf("%s: expected redacted flag in %s", path, body)
		}
	}
}

func TestHandleStatusError(t *testing.T) {
	ctrl := &mockController{
		statusFn: func(stdcontext.Context) (*api.StatusReport, error) {
			return nil, errors.New("boom")
		},
	}
	server := newTestServer(t, ctrl)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	server.handleStatus(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body.Code != "internal_error" {
		t.Fatalf("expected internal_error code, got %q", body.Code)
	}
}

func TestHandleStatusMethodNotAllowed(t *testing.T) {
	server := newTestServer(t, &mockController{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	server.handleStatus(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodGet {
		t.Fatalf("expected Allow header %q, got %q", http.MethodGet, allow)
	}
}

func TestHandleProcessStatus(t *testing.T) {
	ctrl := &mockController{
		statusFn: func(stdcontext.Context) (*api.StatusReport, error) {
			return &api.StatusReport{
				Processes: map[string]api.ProcessReport{
					"worker": {Name: "worker", Pid: 42, State: "running"},
				},
			}, nil
		},
	}
	server := newTestServer(t, ctrl)

	rec := httptest.NewRecorder()
	server.handleProcessStatus(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status/worker", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", rec.Code)
	}
	var report api.ProcessReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("failed decoding response: %v", err)
	}
	if report.Name != "worker" || report.State != "running" {
		t.Fatalf("unexpected report %+v", report)
	}

	rec = httptest.NewRecorder()
	server.handleProcessStatus(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status/ghost", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown process, got %d", rec.Code)
	}
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body.Code != "unknown_process" {
		t.Fatalf("expected unknown_process code, got %q", body.Code)
	}
}

func TestHandleKill(t *testing.T) {
	ctrl := &mockController{
		killFn: func(_ stdcontext.Context, name string) (*api.KillResult, error) {
			if name != "worker" {
				t.Fatalf("unexpected process %q", name)
			}
			return &api.KillResult{Process: name, Pid: 42}, nil
		},
	}
	server := newTestServer(t, ctrl)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/kill/worker", nil)
	rec := httptest.NewRecorder()
	server.handleKill(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]api.KillResult
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	result, ok := body["kill"]
	if !ok {
		t.Fatalf("expected kill field in response")
	}
	if result.Pid != 42 {
		t.Fatalf("expected pid 42, got %d", result.Pid)
	}
}

func TestHandleKillInvalidProcess(t *testing.T) {
	server := newTestServer(t, &mockController{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/kill/", nil)
	rec := httptest.NewRecorder()
	server.handleKill(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body.Code != "unknown_process" {
		t.Fatalf("expected unknown_process code, got %q", body.Code)
	}
	details, ok := body.Details.(map[string]any)
	if !ok {
		t.Fatalf("expected map details, got %T", body.Details)
	}
	if _, ok := details["process"]; !ok {
		t.Fatalf("expected process key in details")
	}
	if _, ok := details["timestamp"]; !ok {
		t.Fatalf("expected timestamp key in details")
	}
}

func TestHandleKillNotRunning(t *testing.T) {
	ctrl := &mockController{
		killFn: func(stdcontext.Context, string) (*api.KillResult, error) {
			return nil, fmt.Errorf("worker: %w", api.ErrProcessNotRunning)
		},
	}
	server := newTestServer(t, ctrl)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/kill/worker", nil)
	rec := httptest.NewRecorder()
	server.handleKill(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body.Code != "process_not_running" {
		t.Fatalf("expected process_not_running code, got %q", body.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t, &mockController{})

	metrics.EmitBuildInfo()
	metrics.ObserveSpawn("http_metrics", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from metrics endpoint, got %d", rec.Code)
	}
	body := rec.Body.String()
	expected := `procctl_spawns_total{result="ok",variant="http_metrics"} 1`
	if !strings.Contains(body, expected) {
		t.Fatalf("expected body to contain %q, got:\n%s", expected, body)
	}
	if !strings.Contains(body, "procctl_build_info{") {
		t.Fatalf("expected metrics output to include build info, got:\n%s", body)
	}
}

type mockController struct {
	statusFn func(stdcontext.Context) (*api.StatusReport, error)
	killFn   func(stdcontext.Context, string) (*api.KillResult, error)
}

func (m *mockController) Status(ctx stdcontext.Context) (*api.StatusReport, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx)
	}
	return nil, nil
}

func (m *mockController) Kill(ctx stdcontext.Context, name string) (*api.KillResult, error) {
	if m.killFn != nil {
		return m.killFn(ctx, name)
	}
	return nil, nil
}

func newTestServer(t *testing.T, ctrl api.Controller) *Server {
	t.Helper()
	server, err := NewServer(Config{Controller: ctrl})
	if err != nil {
		t.Fatalf("failed creating server: %v", err)
	}
	return server
}
