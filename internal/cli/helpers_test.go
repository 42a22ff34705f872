package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wfkeeper/internal/gitsync"
)

// fakeN8N serves the liveness and workflow endpoints from memory.
type fakeN8N struct {
	mu        sync.Mutex
	healthy   bool
	order     []string
	names     map[string]string
	documents map[string]string
}

func newFakeN8N(t *testing.T) (*fakeN8N, string) {
	t.Helper()
	f := &fakeN8N{
		healthy:   true,
		names:     map[string]string{},
		documents: map[string]string{},
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv.URL
}

func (f *fakeN8N) put(id, name, nodes string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.names[id]; !ok {
		f.order = append(f.order, id)
	}
	f.names[id] = name
	f.documents[id] = fmt.Sprintf(`{"id": %q, "name": %q, "nodes": [%s], "connections": {}, "active": false}`, id, name, nodes)
}

func (f *fakeN8N) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.names, id)
	delete(f.documents, id)
	for i, v := range f.order {
		if v == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

func (f *fakeN8N) setHealthy(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthy = ok
}

func (f *fakeN8N) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.URL.Path == "/healthz":
		if !f.healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"status":"ok"}`)
	case r.URL.Path == "/api/v1/workflows":
		type entry struct {
			ID     string `json:"id"`
			Name   string `json:"name"`
			Active bool   `json:"active"`
		}
		data := []entry{}
		for _, id := range f.order {
			data = append(data, entry{ID: id, Name: f.names[id]})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data, "nextCursor": nil})
	case strings.HasPrefix(r.URL.Path, "/api/v1/workflows/"):
		doc, ok := f.documents[strings.TrimPrefix(r.URL.Path, "/api/v1/workflows/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, doc)
	default:
		http.NotFound(w, r)
	}
}

const (
	startNode = `{"id": "n1", "name": "Start", "type": "n8n-nodes-base.manualTrigger", "position": [0, 0], "parameters": {}}`
	slackNode = `{"id": "n2", "name": "Notify", "type": "n8n-nodes-base.slack", "position": [200, 0], "parameters": {"channel": "#ops"}}`
)

// testEnv is a config file pointing at a fake server and a temp repo.
type testEnv struct {
	n8n        *fakeN8N
	configPath string
	repo       string
	historyDB  string
}

func newTestEnv(t *testing.T, extra string) *testEnv {
	t.Helper()
	server, url := newFakeN8N(t)
	dir := t.TempDir()
	env := &testEnv{
		n8n:        server,
		configPath: filepath.Join(dir, "config.yaml"),
		repo:       filepath.Join(dir, "repo"),
		historyDB:  filepath.Join(dir, "history.db"),
	}
	require.NoError(t, os.MkdirAll(env.repo, 0755))

	content := fmt.Sprintf(`n8n:
  url: %s
  api_key: test-key
git:
  repo_path: %s
timeout: 5
max_retries: 1
history:
  path: %s
%s`, url, env.repo, env.historyDB, extra)
	require.NoError(t, os.WriteFile(env.configPath, []byte(content), 0600))
	return env
}

// fakeSyncer stands in for git.
type fakeSyncer struct {
	mu    sync.Mutex
	calls [][]string
}

func (s *fakeSyncer) Sync(_ context.Context, changed []string) (gitsync.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, append([]string(nil), changed...))
	return gitsync.Result{State: gitsync.Pushed, Outcome: gitsync.Success}, nil
}

// execute runs cmd with args and returns stdout, stderr and the error.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}
