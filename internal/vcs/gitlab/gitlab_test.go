package gitlab

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/anushkapunekar/agentops/internal/config"
	"github.com/anushkapunekar/agentops/internal/vcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return New(config.Config{
		HostBaseURL: server.URL,
		HostToken:   "test-token",
		HostTimeout: 5 * time.Second,
	})
}

func TestFetchMRDiff(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/projects/1/merge_requests/5/changes", r.URL.Path)
		assert.Equal(t, "test-token", r.Header.Get("PRIVATE-TOKEN"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"iid": 5,
			"changes": []map[string]interface{}{
				{"old_path": "a.py", "new_path": "a.py", "diff": "@@ -1 +1 @@\n-x\n+y"},
				{"old_path": "b.py", "new_path": "b.py", "diff": "+print('x')", "new_file": true},
			},
		})
	}))

	payload, err := c.FetchMRDiff(context.Background(), "1", 5)
	require.NoError(t, err)
	require.Len(t, payload.Files, 2)
	assert.Equal(t, http.StatusOK, payload.Status)
	assert.True(t, payload.Files[1].NewFile)
	assert.Equal(t, "@@ -1 +1 @@\n-x\n+y\n+print('x')", payload.Text())
}

func TestFetchMRDiff_NonSuccessIsEmpty(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"404 Not found"}`))
	}))

	payload, err := c.FetchMRDiff(context.Background(), "1", 5)
	require.NoError(t, err)
	assert.Empty(t, payload.Files)
	assert.Equal(t, "", payload.Text())
	assert.Equal(t, http.StatusNotFound, payload.Status)
}

func TestFetchMRDiff_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := New(config.Config{HostBaseURL: url, HostToken: "t", HostTimeout: time.Second})
	_, err := c.FetchMRDiff(context.Background(), "1", 5)
	require.Error(t, err)
	assert.False(t, errors.Is(err, vcs.ErrNotConfigured))
}

func TestMissingSettingsAreConfigErrors(t *testing.T) {
	ctx := context.Background()

	noURL := New(config.Config{HostToken: "t"})
	_, err := noURL.FetchMRDiff(ctx, "1", 5)
	require.ErrorIs(t, err, vcs.ErrNotConfigured)
	assert.Contains(t, err.Error(), "BASE_URL")

	noToken := New(config.Config{HostBaseURL: "http://localhost"})
	_, err = noToken.PostMRNote(ctx, "1", 5, "hi")
	require.ErrorIs(t, err, vcs.ErrNotConfigured)
	assert.Contains(t, err.Error(), "GITLAB_TOKEN")

	_, err = noToken.TriggerPipeline(ctx, "1", "main")
	require.ErrorIs(t, err, vcs.ErrNotConfigured)
}

func TestPostMRNote(t *testing.T) {
	var gotBody string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/1/merge_requests/5/notes", r.URL.Path)
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		gotBody, _ = req["body"].(string)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": 1})
	}))

	status, err := c.PostMRNote(context.Background(), "1", 5, "Looks good!")
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Looks good!", gotBody)
}

func TestPostMRNote_NonSuccessIsNotAnError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	status, err := c.PostMRNote(context.Background(), "1", 5, "body")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestTriggerPipeline(t *testing.T) {
	var gotRef string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/1/pipeline", r.URL.Path)
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		gotRef, _ = req["ref"].(string)
		w.WriteHeader(http.StatusCreated)
	}))

	status, err := c.TriggerPipeline(context.Background(), "1", "main")
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "main", gotRef)
}

func TestTriggerPipeline_WithTriggerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/1/trigger/pipeline", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "trig-token", r.PostForm.Get("token"))
		assert.Equal(t, "develop", r.PostForm.Get("ref"))
		assert.Equal(t, "true", r.PostForm.Get("variables[AGENT_REVIEW]"))
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(server.Close)

	c := New(config.Config{
		HostBaseURL:          server.URL,
		HostToken:            "test-token",
		PipelineTriggerToken: "trig-token",
	})

	status, err := c.TriggerPipeline(context.Background(), "1", "develop")
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
}

// fakeHost stores notes so that a posted comment can be read back.
type fakeHost struct {
	mu    sync.Mutex
	notes []map[string]interface{}
}

func (f *fakeHost) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPost:
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		note := map[string]interface{}{
			"id":     len(f.notes) + 1,
			"body":   req["body"],
			"author": map[string]interface{}{"username": "agentops-bot"},
		}
		f.notes = append(f.notes, note)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(note)
	case http.MethodGet:
		json.NewEncoder(w).Encode(f.notes)
	}
}

func TestPostMRNote_RoundTrip(t *testing.T) {
	c := newTestClient(t, &fakeHost{})
	body := "## Review\n\n- `x` is unused\n- consider **logging** instead of print()\n\nUnicode: ✓ é"

	status, err := c.PostMRNote(context.Background(), "1", 5, body)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, status)

	notes, err := c.ListMRNotes(context.Background(), "1", 5)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, body, notes[0].Body)
	assert.Equal(t, "agentops-bot", notes[0].Author)
}

func TestNewProvider_Registered(t *testing.T) {
	p, err := vcs.Get("gitlab", config.Config{HostBaseURL: "https://gitlab.example.com/api/v4"})
	require.NoError(t, err)
	assert.Equal(t, "gitlab", p.Info().Name)
	assert.Equal(t, "https://gitlab.example.com/api/v4", p.Info().BaseURL)
	assert.ErrorIs(t, p.Validate(), vcs.ErrNotConfigured)
}
