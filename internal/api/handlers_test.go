package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlindqvist/groundwork/internal/config"
	"github.com/mlindqvist/groundwork/internal/dispatch"
	"github.com/mlindqvist/groundwork/internal/events"
	"github.com/mlindqvist/groundwork/internal/provision"
)

const testAPIKey = "test-api-key"

// fakeDispatcher records dispatches; validation delegates to the real one so
// the handler tests exercise the same rules the server ships with.
type fakeDispatcher struct {
	real       *dispatch.Dispatcher
	dispatched chan string
}

func newFakeDispatcher(t *testing.T) *fakeDispatcher {
	t.Helper()
	cfg := config.Defaults()
	dir := t.TempDir()
	real := dispatch.New(func() *provision.Controller {
		return provision.NewController(provision.Deps{
			WorkspacesDir:  dir,
			Commands:       cfg.Commands,
			ToolingPackage: cfg.Tooling.Package,
			Timeouts:       cfg.Timeouts,
		})
	})
	return &fakeDispatcher{real: real, dispatched: make(chan string, 8)}
}

func (f *fakeDispatcher) Validate(name string, payload json.RawMessage) error {
	return f.real.Validate(name, payload)
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, name string, payload json.RawMessage) error {
	f.dispatched <- name
	return nil
}

func (f *fakeDispatcher) Controller(ctx context.Context, project string) (*provision.Controller, error) {
	return f.real.Controller(ctx, project)
}

func newTestServer(t *testing.T) (*Server, *fakeDispatcher) {
	t.Helper()
	fd := newFakeDispatcher(t)
	srv := New(Config{Listen: "127.0.0.1:0", APIKey: testAPIKey}, fd, events.NewHub(16), func(snap provision.Snapshot) string {
		return `<div data-stage="` + snap.Stage.String() + `"></div>`
	})
	return srv, fd
}

func doRequest(t *testing.T, srv *Server, method, target, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if authed {
		r.Header.Set("Authorization", "Bearer "+testAPIKey)
	}
	w := httptest.NewRecorder()
	srv.Routes().ServeHTTP(w, r)
	return w
}

func TestHealthzNeedsNoAuth(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, http.MethodGet, "/healthz", "", false)
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthzResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestProtectedEndpointsRequireAuth(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, target := range []string{"/v1/view?project=demo1", "/v1/record?project=demo1", "/v1/events"} {
		w := doRequest(t, srv, http.MethodGet, target, "", false)
		assert.Equal(t, http.StatusUnauthorized, w.Code, target)
	}
	w := doRequest(t, srv, http.MethodPost, "/v1/commands", `{"name":"build"}`, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestViewReturnsSnapshotAndMarkup(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, http.MethodGet, "/v1/view?project=demo1", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ViewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Markup, "data-stage")
}

func TestViewRejectsUnsafeProjectName(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, http.MethodGet, "/v1/view?project=..%2Fescape", "", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordNeverExposesToken(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, http.MethodGet, "/v1/record?project=demo1", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "accessToken")
	assert.Contains(t, w.Body.String(), "hasToken")
}

func TestCommandRejectedOnValidation(t *testing.T) {
	srv, fd := newTestServer(t)
	body := `{"name":"createProject","payload":{"repoUrl":"https://evil.example/x/y","commitHash":"abc1234","projectName":"demo1","leanVersion":"v1"}}`
	w := doRequest(t, srv, http.MethodPost, "/v1/commands", body, true)
	require.Equal(t, http.StatusBadRequest, w.Code)

	select {
	case name := <-fd.dispatched:
		t.Fatalf("invalid command %q was dispatched", name)
	default:
	}
}

func TestCommandAcceptedAndDispatched(t *testing.T) {
	srv, fd := newTestServer(t)
	body := `{"name":"installRuntime","payload":{"project":"demo1"}}`
	w := doRequest(t, srv, http.MethodPost, "/v1/commands", body, true)
	require.Equal(t, http.StatusAccepted, w.Code)

	select {
	case name := <-fd.dispatched:
		assert.Equal(t, "installRuntime", name)
	case <-time.After(5 * time.Second):
		t.Fatal("command was accepted but never dispatched")
	}
}

func TestEventsReplayFromRing(t *testing.T) {
	fd := newFakeDispatcher(t)
	hub := events.NewHub(16)
	srv := New(Config{APIKey: testAPIKey}, fd, hub, nil)

	hub.Publish(events.TypeStepStarted, map[string]string{"project": "demo1", "step": "build"})
	hub.Publish(events.TypeStepCompleted, map[string]string{"project": "demo1", "step": "build"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // handler streams the replay, then exits on the dead context
	r := httptest.NewRequest(http.MethodGet, "/v1/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	srv.handleEvents(w, r)

	body := w.Body.String()
	assert.Contains(t, body, "event: step.started")
	assert.Contains(t, body, "event: step.completed")
	assert.Contains(t, body, "id: 1")
	assert.Contains(t, body, "id: 2")
}

func TestParseLastEventID(t *testing.T) {
	assert.EqualValues(t, 0, parseLastEventID(""))
	assert.EqualValues(t, 0, parseLastEventID("nonsense"))
	assert.EqualValues(t, 0, parseLastEventID("-5"))
	assert.EqualValues(t, 42, parseLastEventID("42"))
}
