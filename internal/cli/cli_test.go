package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type seenRequest struct {
	Method string
	Path   string
	Key    string
	Body   map[string]any
}

// fakeAPI records requests and answers with a canned endpoint.
type fakeAPI struct {
	mu     sync.Mutex
	seen   []seenRequest
	status int
	reply  string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(b, &body)
	f.mu.Lock()
	f.seen = append(f.seen, seenRequest{Method: r.Method, Path: r.URL.Path, Key: r.Header.Get("X-API-Key"), Body: body})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	code := f.status
	if code == 0 {
		code = http.StatusOK
	}
	w.WriteHeader(code)
	_, _ = w.Write([]byte(f.reply))
}

func (f *fakeAPI) last(t *testing.T) seenRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.seen) == 0 {
		t.Fatal("no request reached the API")
	}
	return f.seen[len(f.seen)-1]
}

const oneEndpoint = `{"endpoint":"127.0.0.1:10100","status":"UP","interval_ms":30000,"grace_period_ms":10000,"paused":false}`

func run(t *testing.T, api *fakeAPI, args ...string) (string, error) {
	t.Helper()
	ts := httptest.NewServer(api)
	t.Cleanup(ts.Close)

	root := NewRootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--api", ts.URL, "--key", "adm_test"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestList_Table(t *testing.T) {
	api := &fakeAPI{reply: "[" + oneEndpoint + "]"}
	out, err := run(t, api, "list")
	if err != nil {
		t.Fatal(err)
	}
	req := api.last(t)
	if req.Method != http.MethodGet || req.Path != "/api/endpoints" || req.Key != "adm_test" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if !strings.Contains(out, "ENDPOINT") || !strings.Contains(out, "127.0.0.1:10100") || !strings.Contains(out, "30s") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestAdd_SendsDurationsInMS(t *testing.T) {
	api := &fakeAPI{status: http.StatusCreated, reply: `{"endpoint":` + oneEndpoint + `,"probe":{"reachable":true,"latency_ms":3}}`}
	out, err := run(t, api, "add", "127.0.0.1", "10100", "--interval", "1m", "--grace", "0s")
	if err != nil {
		t.Fatal(err)
	}
	req := api.last(t)
	if req.Method != http.MethodPost || req.Body["interval_ms"] != float64(60000) || req.Body["grace_period_ms"] != float64(0) {
		t.Fatalf("unexpected request: %+v", req)
	}
	if !strings.Contains(out, "Added 127.0.0.1:10100 (reachable") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestAdd_OmitsUnsetDurations(t *testing.T) {
	api := &fakeAPI{status: http.StatusCreated, reply: `{"endpoint":` + oneEndpoint + `,"probe":{}}`}
	if _, err := run(t, api, "add", "db", "5432"); err != nil {
		t.Fatal(err)
	}
	body := api.last(t).Body
	if _, ok := body["interval_ms"]; ok {
		t.Fatalf("interval_ms should be omitted: %+v", body)
	}
	if _, ok := body["grace_period_ms"]; ok {
		t.Fatalf("grace_period_ms should be omitted: %+v", body)
	}
}

func TestIntervalAndGrace(t *testing.T) {
	api := &fakeAPI{reply: oneEndpoint}
	if _, err := run(t, api, "interval", "127.0.0.1:10100", "500ms"); err != nil {
		t.Fatal(err)
	}
	req := api.last(t)
	if req.Method != http.MethodPut || req.Path != "/api/endpoints/127.0.0.1:10100/interval" || req.Body["ms"] != float64(500) {
		t.Fatalf("unexpected request: %+v", req)
	}

	if _, err := run(t, api, "grace", "127.0.0.1:10100", "soon"); err == nil {
		t.Fatal("expected error for bad duration")
	}
}

func TestOutage(t *testing.T) {
	api := &fakeAPI{reply: oneEndpoint}
	_, err := run(t, api, "outage", "127.0.0.1:10100",
		"--start", "2025-08-18T22:00:00Z", "--for", "1h")
	if err != nil {
		t.Fatal(err)
	}
	req := api.last(t)
	if req.Method != http.MethodPut || req.Body["end_ms"].(float64)-req.Body["start_ms"].(float64) != 3_600_000 {
		t.Fatalf("unexpected request: %+v", req)
	}

	if _, err := run(t, api, "outage", "127.0.0.1:10100", "--clear"); err != nil {
		t.Fatal(err)
	}
	if req := api.last(t); req.Method != http.MethodDelete || req.Path != "/api/endpoints/127.0.0.1:10100/outage" {
		t.Fatalf("unexpected request: %+v", req)
	}

	_, err = run(t, api, "outage", "127.0.0.1:10100")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != exitUsage {
		t.Fatalf("want usage error, got %v", err)
	}
}

func TestAPIErrorsMapToExitCodes(t *testing.T) {
	api := &fakeAPI{status: http.StatusNotFound, reply: `{"error":"endpoint not found"}`}
	_, err := run(t, api, "remove", "nowhere:1")

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("want ExitError, got %T %v", err, err)
	}
	if exitErr.Code != exitNotFound || !strings.Contains(exitErr.Message, "endpoint not found") {
		t.Fatalf("unexpected exit error: %+v", exitErr)
	}
}

func TestCommandTree(t *testing.T) {
	root := NewRootCmd("test")
	want := []string{"list", "get", "add", "remove", "interval", "grace", "outage", "pause", "resume"}
	for _, name := range want {
		if c, _, err := root.Find([]string{name}); err != nil || c == root {
			t.Fatalf("missing subcommand %q", name)
		}
	}
}
