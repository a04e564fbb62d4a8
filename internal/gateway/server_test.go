package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/claybowl/taygency/internal/agent"
	"github.com/claybowl/taygency/internal/events"
	"github.com/claybowl/taygency/internal/storage"
	"github.com/claybowl/taygency/internal/storage/dirstore"
	"github.com/claybowl/taygency/internal/tasks"
	"github.com/claybowl/taygency/internal/trace"
)

// waitForEvents polls the bus history until at least n events are present.
func waitForEvents(bus *events.Bus, n int) {
	for i := 0; i < 200; i++ {
		if len(bus.History(100)) >= n {
			return
		}
		runtime.Gosched()
		time.Sleep(time.Millisecond)
	}
}

// stubRunner answers every message with a canned response.
type stubRunner struct {
	resp *agent.Response
	err  error
	got  []agent.Request
}

func (r *stubRunner) Run(_ context.Context, req agent.Request) (*agent.Response, error) {
	r.got = append(r.got, req)
	return r.resp, r.err
}

type testServer struct {
	*Server
	runner *stubRunner
	files  *storage.FileStore
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	bus := events.NewBus(64)
	t.Cleanup(func() { bus.Close() })

	files := storage.NewFileStore(dirstore.New(t.TempDir()), storage.Options{})
	runner := &stubRunner{resp: &agent.Response{Success: true, Message: "ok", TraceID: "trace_1"}}
	srv := NewServer(bus, runner, tasks.NewStore(files), trace.NewStore(files, ""), "localhost", 0)
	t.Cleanup(srv.hub.Close)
	return testServer{Server: srv, runner: runner, files: files}
}

func (s testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status %q, got %v", "ok", body["status"])
	}
}

func TestHandleMessage(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/api/message", `{"channel":"sms","message":"buy milk","context":{"from":"+15550100"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["success"] != true || body["message"] != "ok" || body["traceId"] != "trace_1" {
		t.Errorf("unexpected body %v", body)
	}
	if _, leaked := body["Trace"]; leaked {
		t.Error("trace document should not be inlined")
	}

	if len(srv.runner.got) != 1 {
		t.Fatalf("expected one run, got %d", len(srv.runner.got))
	}
	got := srv.runner.got[0]
	if got.Channel != "sms" || got.Message != "buy milk" || got.Context["from"] != "+15550100" {
		t.Errorf("unexpected request %+v", got)
	}
}

func TestHandleMessage_BadRequest(t *testing.T) {
	srv := newTestServer(t)
	for _, body := range []string{`not json`, `{"channel":"sms"}`} {
		if w := srv.do(t, http.MethodPost, "/api/message", body); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, w.Code)
		}
	}
	if len(srv.runner.got) != 0 {
		t.Error("runner should not be called")
	}
}

func TestHandleMessage_UpstreamFailure(t *testing.T) {
	srv := newTestServer(t)
	srv.runner.err = errors.Join(agent.ErrUpstream, errors.New("rate limited"))
	srv.runner.resp = &agent.Response{Success: false, Error: "rate limited", TraceID: "trace_2"}

	w := srv.do(t, http.MethodPost, "/api/message", `{"message":"hi"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	var body agent.Response
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Success || body.TraceID != "trace_2" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestHandleTasks(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	store := tasks.NewStore(srv.files)
	if _, err := store.Create(ctx, tasks.CreateInput{Title: "Pay rent", Category: "finance"}, "api"); err != nil {
		t.Fatal(err)
	}
	created, err := store.Create(ctx, tasks.CreateInput{Title: "Walk dog", Category: "home"}, "api")
	if err != nil {
		t.Fatal(err)
	}

	w := srv.do(t, http.MethodGet, "/api/tasks?status=active&category=home", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body taskList
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Count != 1 || body.Tasks[0].ID != created.ID {
		t.Errorf("unexpected tasks %+v", body)
	}

	if w := srv.do(t, http.MethodGet, "/api/tasks?status=archived", ""); w.Code != http.StatusBadRequest {
		t.Errorf("invalid status: expected 400, got %d", w.Code)
	}

	if w := srv.do(t, http.MethodGet, "/api/tasks/"+created.ID, ""); w.Code != http.StatusOK {
		t.Errorf("get task: expected 200, got %d", w.Code)
	}
	if w := srv.do(t, http.MethodGet, "/api/tasks/task_missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing task: expected 404, got %d", w.Code)
	}
}

func TestHandleTasks_Empty(t *testing.T) {
	srv := newTestServer(t)
	w := srv.do(t, http.MethodGet, "/api/tasks", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"tasks":[]`) {
		t.Errorf("expected empty array, got %s", w.Body.String())
	}
}

func TestHandleTrace(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	tr := trace.New(trace.WithID("trace_abc"))
	tr.Info(trace.EventRequestReceived, "request received", nil)
	if err := trace.NewStore(srv.files, "").Save(ctx, tr.Document()); err != nil {
		t.Fatal(err)
	}

	w := srv.do(t, http.MethodGet, "/api/traces/trace_abc", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var doc trace.Document
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if doc.TraceID != "trace_abc" || len(doc.Logs) != 1 {
		t.Errorf("unexpected document %+v", doc)
	}

	if w := srv.do(t, http.MethodGet, "/api/traces/trace_missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing trace: expected 404, got %d", w.Code)
	}
}

func TestHandleEvents_LimitParam(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 10; i++ {
		srv.bus.Publish(events.NewTypedEvent(events.SourceAgent, events.RunStartedPayload{Message: "hi"}, "trace_1"))
	}

	waitForEvents(srv.bus, 10)

	w := srv.do(t, http.MethodGet, "/api/events?limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var body []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body) != 5 {
		t.Fatalf("expected 5 events with limit=5, got %d", len(body))
	}
	if body[0]["trace_id"] != "trace_1" {
		t.Errorf("expected trace id, got %v", body[0])
	}
}
