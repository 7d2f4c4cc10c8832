package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anushkapunekar/agentops/internal/config"
	"github.com/anushkapunekar/agentops/internal/logging"
	"github.com/anushkapunekar/agentops/internal/provider"
	"github.com/anushkapunekar/agentops/internal/review"
	"github.com/anushkapunekar/agentops/internal/storage"
	"github.com/anushkapunekar/agentops/internal/vcs/gitlab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	mu     sync.Mutex
	events []review.Event
	err    error
}

func (q *fakeQueue) Enqueue(ev review.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.events = append(q.events, ev)
	return nil
}

func (q *fakeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

type fakeHistory struct {
	limit int
	items []storage.ReviewRecord
	err   error
}

func (h *fakeHistory) ListReviews(ctx context.Context, limit int) ([]storage.ReviewRecord, error) {
	h.limit = limit
	return h.items, h.err
}

func newTestServer(cfg Config, q Queue, h History) *Server {
	return New(cfg, q, h, logging.Discard())
}

func do(t *testing.T, s *Server, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

const validHook = `{
  "object_kind": "merge_request",
  "project": {"id": 1},
  "object_attributes": {"iid": 5, "source_branch": "feat", "target_branch": "main"},
  "changes": {"diff": "+print('x')"}
}`

func TestWebhook_ValidEventIsQueued(t *testing.T) {
	q := &fakeQueue{}
	s := newTestServer(Config{}, q, nil)

	rec, body := do(t, s, http.MethodPost, "/webhook/gitlab", validHook, map[string]string{headerEvent: mergeRequestHook})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"status": "ok"}, body)
	require.Len(t, q.events, 1)
	assert.Equal(t, review.Event{
		ProjectID:    "1",
		MRIID:        5,
		SourceBranch: "feat",
		TargetBranch: "main",
		Diff:         "+print('x')",
	}, q.events[0])
}

func TestWebhook_MalformedJSON(t *testing.T) {
	q := &fakeQueue{}
	s := newTestServer(Config{}, q, nil)

	for _, payload := range []string{"", "{", "not json", "[]", "null"} {
		rec, body := do(t, s, http.MethodPost, "/webhook/gitlab", payload, nil)
		assert.Equal(t, http.StatusOK, rec.Code, payload)
		assert.Equal(t, "ok", body["status"], payload)
		assert.Equal(t, NoticeInvalidJSON, body["message"], payload)
	}
	assert.Empty(t, q.events)
}

func TestWebhook_MissingFields(t *testing.T) {
	q := &fakeQueue{}
	s := newTestServer(Config{}, q, nil)

	rec, body := do(t, s, http.MethodPost, "/webhook/gitlab",
		`{"project":{"id":1},"object_attributes":{"source_branch":"feat"}}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"status": "ok", "message": "missing fields - review skipped"}, body)
	assert.Empty(t, q.events)
}

func TestWebhook_QueueFull(t *testing.T) {
	s := newTestServer(Config{}, &fakeQueue{err: review.ErrQueueFull}, nil)

	rec, body := do(t, s, http.MethodPost, "/webhook/gitlab", validHook, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, NoticeQueueFull, body["message"])
}

func TestWebhook_QueueClosed(t *testing.T) {
	s := newTestServer(Config{}, &fakeQueue{err: review.ErrQueueClosed}, nil)

	_, body := do(t, s, http.MethodPost, "/webhook/gitlab", validHook, nil)
	assert.Equal(t, NoticeQueueClosed, body["message"])
}

func TestWebhook_Secret(t *testing.T) {
	q := &fakeQueue{}
	s := newTestServer(Config{WebhookSecret: "s3cret"}, q, nil)

	rec, body := do(t, s, http.MethodPost, "/webhook/gitlab", validHook, map[string]string{headerToken: "wrong"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, NoticeInvalidToken, body["message"])
	assert.Empty(t, q.events)

	_, body = do(t, s, http.MethodPost, "/webhook/gitlab", validHook, map[string]string{headerToken: "s3cret"})
	assert.Equal(t, map[string]any{"status": "ok"}, body)
	assert.Len(t, q.events, 1)
}

func TestWebhook_IgnoresOtherEvents(t *testing.T) {
	q := &fakeQueue{}
	s := newTestServer(Config{}, q, nil)

	_, body := do(t, s, http.MethodPost, "/webhook/gitlab", validHook, map[string]string{headerEvent: "Push Hook"})
	assert.Equal(t, "ignored event: Push Hook", body["message"])
	assert.Empty(t, q.events)
}

func TestWebhook_UnsupportedHost(t *testing.T) {
	q := &fakeQueue{}
	s := newTestServer(Config{}, q, nil)

	rec, body := do(t, s, http.MethodPost, "/webhook/bitbucket", validHook, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "unsupported host: bitbucket", body["message"])
	assert.Empty(t, q.events)
}

func TestWebhook_BodyTooLarge(t *testing.T) {
	q := &fakeQueue{}
	s := newTestServer(Config{MaxBodyBytes: 16}, q, nil)

	rec, body := do(t, s, http.MethodPost, "/webhook/gitlab", validHook, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, NoticeInvalidJSON, body["message"])
	assert.Empty(t, q.events)
}

func TestTestWebhook(t *testing.T) {
	_, body := do(t, newTestServer(Config{}, &fakeQueue{}, nil), http.MethodGet, "/test/webhook", "", nil)
	assert.Equal(t, map[string]any{"status": "success", "message": "webhook working"}, body)
}

func TestManualWebhook(t *testing.T) {
	q := &fakeQueue{}
	s := newTestServer(Config{}, q, nil)

	_, body := do(t, s, http.MethodPost, "/test/webhook/manual", validHook, nil)

	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "background task scheduled", body["message"])
	assert.Equal(t, "1", body["project_id"])
	assert.EqualValues(t, 5, body["mr_iid"])
	require.Len(t, q.events, 1)
	assert.Equal(t, "", q.events[0].Diff)
}

func TestManualWebhook_Missing(t *testing.T) {
	q := &fakeQueue{}
	s := newTestServer(Config{}, q, nil)

	_, body := do(t, s, http.MethodPost, "/test/webhook/manual", `{"project":{"id":3}}`, nil)

	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "missing project_id or mr_iid", body["message"])
	assert.Equal(t, map[string]any{"project_id": "3", "mr_iid": nil}, body["received"])
	assert.Empty(t, q.events)
}

func TestRootAndHealth(t *testing.T) {
	s := newTestServer(Config{}, &fakeQueue{}, nil)

	_, body := do(t, s, http.MethodGet, "/", "", nil)
	assert.Equal(t, map[string]any{"status": "running"}, body)

	_, body = do(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["queued"])
}

func TestHealthEnv_NeverLeaksSecrets(t *testing.T) {
	conf := config.Config{
		HostBaseURL:   "https://gitlab.example.com/api/v4",
		HostToken:     "glpat-supersecret",
		HostedAPIKey:  "sk-supersecret",
		WebhookSecret: "hook-supersecret",
		Model:         "mistral",
	}
	s := newTestServer(Config{Settings: conf.Redacted()}, &fakeQueue{}, nil)

	rec, body := do(t, s, http.MethodGet, "/health/env", "", nil)

	assert.NotContains(t, rec.Body.String(), "supersecret")
	assert.Equal(t, "https://gitlab.example.com/api/v4", body["base_url"])
	assert.Equal(t, true, body["has_token"])
	assert.Equal(t, true, body["has_hosted_api_key"])
	assert.Equal(t, true, body["has_webhook_secret"])
}

func TestOverview(t *testing.T) {
	_, body := do(t, newTestServer(Config{}, &fakeQueue{}, nil), http.MethodGet, "/mr/overview", "", nil)
	assert.Equal(t, map[string]any{"items": []any{}}, body)

	h := &fakeHistory{items: []storage.ReviewRecord{{ReviewID: "01J", ProjectID: "1", MRIID: 5}}}
	_, body = do(t, newTestServer(Config{}, &fakeQueue{}, h), http.MethodGet, "/mr/overview?limit=7", "", nil)
	assert.Equal(t, 7, h.limit)
	items, ok := body["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, "01J", items[0].(map[string]any)["review_id"])

	h.err = errors.New("db closed")
	rec, _ := do(t, newTestServer(Config{}, &fakeQueue{}, h), http.MethodGet, "/mr/overview", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// stubReviewer answers every prompt with a fixed text.
type stubReviewer struct {
	text    string
	prompts atomic.Int32
}

func (r *stubReviewer) Review(ctx context.Context, prompt string) provider.Result {
	r.prompts.Add(1)
	return provider.Result{Text: r.text, Backend: provider.KindLocal}
}

// pipelineStack wires the real queue, orchestrator and GitLab client to an
// httptest host that counts requests.
func pipelineStack(t *testing.T, reply string) (*Server, *review.Queue, *atomic.Int32, *[]string) {
	t.Helper()
	var calls atomic.Int32
	var mu sync.Mutex
	var paths []string
	host := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		switch {
		case strings.HasSuffix(r.URL.Path, "/changes"):
			_ = json.NewEncoder(w).Encode(map[string]any{"changes": []any{}})
		default:
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":1}`))
		}
	}))
	t.Cleanup(host.Close)

	client := gitlab.New(config.Config{HostBaseURL: host.URL, HostToken: "t", HostTimeout: 5 * time.Second})
	orch := review.NewOrchestrator(client, &stubReviewer{text: reply}, review.Options{
		PipelineEnabled: true,
		Logger:          logging.Discard(),
	})
	q := review.NewQueue(orch, 10, 1, logging.Discard())
	return newTestServer(Config{}, q, nil), q, &calls, &paths
}

func TestEndToEnd_MalformedJSONMakesNoOutboundCalls(t *testing.T) {
	s, q, calls, _ := pipelineStack(t, "review")

	rec, _ := do(t, s, http.MethodPost, "/webhook/gitlab", "{{{", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, q.Drain(context.Background()))
	assert.Equal(t, int32(0), calls.Load())
}

func TestEndToEnd_MissingIIDMakesNoOutboundCalls(t *testing.T) {
	s, q, calls, _ := pipelineStack(t, "review")

	_, body := do(t, s, http.MethodPost, "/webhook/gitlab", `{"project":{"id":1},"object_attributes":{}}`, nil)
	assert.Equal(t, "missing fields - review skipped", body["message"])
	assert.Equal(t, 0, q.Drain(context.Background()))
	assert.Equal(t, int32(0), calls.Load())
}

func TestEndToEnd_EmptyDiffEmptyReview(t *testing.T) {
	s, q, _, paths := pipelineStack(t, "")

	_, body := do(t, s, http.MethodPost, "/webhook/gitlab",
		`{"project":{"id":1},"object_attributes":{"iid":5,"target_branch":"main"}}`, nil)
	assert.Equal(t, map[string]any{"status": "ok"}, body)
	require.Equal(t, 1, q.Drain(context.Background()))

	assert.Equal(t, []string{
		"GET /projects/1/merge_requests/5/changes",
		"POST /projects/1/pipeline",
	}, *paths)
}

func TestEndToEnd_ReviewPostedAndPipelineTriggered(t *testing.T) {
	s, q, _, paths := pipelineStack(t, "Use logging.")

	long := strings.Repeat("+line\\n", 20)
	_, body := do(t, s, http.MethodPost, "/webhook/gitlab",
		`{"project":{"id":1},"object_attributes":{"iid":5,"target_branch":"main"},"changes":{"diff":"`+long+`"}}`, nil)
	assert.Equal(t, map[string]any{"status": "ok"}, body)
	require.Equal(t, 1, q.Drain(context.Background()))

	assert.Equal(t, []string{
		"POST /projects/1/merge_requests/5/notes",
		"POST /projects/1/pipeline",
	}, *paths)
}
