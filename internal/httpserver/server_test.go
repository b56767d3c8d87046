package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/blackmichael/creator-tasks/internal/config"
	"github.com/blackmichael/creator-tasks/internal/domain"
	"github.com/blackmichael/creator-tasks/internal/storage"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	repo   *storage.Repository
	clock  *testClock
	server *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	repo, err := storage.NewSQLite(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if _, err := repo.ImportArticles(ctx, []domain.Article{
		{ID: "a1", Title: "First", TrackCategory: 1},
	}); err != nil {
		t.Fatalf("import: %v", err)
	}
	if err := repo.PutUser(ctx, &domain.User{ID: "u1", Accounts: []domain.Account{
		{AccountID: "acc", TrackCategory: 1, Status: domain.AccountEnabled},
		{AccountID: "off", TrackCategory: 1, Status: domain.AccountDisabled},
	}}); err != nil {
		t.Fatalf("put user: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := &testClock{now: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)}
	svc, err := domain.NewTaskService(repo, repo, repo, logger, domain.Options{Clock: clock})
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	srv := NewServer(&config.Config{Port: 0}, svc, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &fixture{repo: repo, clock: clock, server: ts}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodGet, "/health", nil)
	if status != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", status, body)
	}
}

func TestTaskFlow(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/v1/users/u1/assign", nil)
	if status != http.StatusOK {
		t.Fatalf("assign = %d %v", status, body)
	}
	if body["created"] != float64(2) {
		t.Errorf("created = %v, want 2", body["created"])
	}

	status, body = f.do(t, http.MethodPost, "/v1/users/u1/accounts/acc/tasks/a1/claim", nil)
	if status != http.StatusOK {
		t.Fatalf("claim = %d %v", status, body)
	}
	task := body["task"].(map[string]any)
	if task["isClaimed"] != true || task["state"] != "claimed" {
		t.Errorf("claimed task = %v", task)
	}

	status, body = f.do(t, http.MethodPost, "/v1/users/u1/accounts/acc/completions", map[string]any{
		"articleId":   "a1",
		"callbackUrl": "https://example.com/p/1",
		"views":       120,
		"likes":       7,
		"earnings":    "1.50",
	})
	if status != http.StatusOK {
		t.Fatalf("completion = %d %v", status, body)
	}
	if body["taskSyncedCount"] != float64(1) {
		t.Errorf("taskSyncedCount = %v, want 1", body["taskSyncedCount"])
	}
	post := body["post"].(map[string]any)
	metrics := post["metrics"].(map[string]any)
	if metrics["earnings"] != "1.5" || metrics["views"] != float64(120) {
		t.Errorf("metrics = %v", metrics)
	}
}

func TestExpiredAndSweep(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/v1/users/u1/assign", nil)
	f.do(t, http.MethodPost, "/v1/users/u1/accounts/acc/tasks/a1/claim", nil)
	f.clock.Advance(24 * time.Hour)

	status, body := f.do(t, http.MethodGet, "/v1/admin/expired-tasks?trackCategory=1", nil)
	if status != http.StatusOK {
		t.Fatalf("expired = %d %v", status, body)
	}
	if body["totalCount"] != float64(1) {
		t.Fatalf("totalCount = %v, want 1", body["totalCount"])
	}

	status, body = f.do(t, http.MethodPost, "/v1/admin/sweep", map[string]any{
		"items": []map[string]string{{"userId": "u1", "accountId": "acc", "articleId": "a1"}},
	})
	if status != http.StatusOK {
		t.Fatalf("sweep = %d %v", status, body)
	}
	if body["clearedTasks"] != float64(1) || body["updatedArticles"] != float64(1) {
		t.Errorf("sweep = %v", body)
	}
	if body["runId"] == "" {
		t.Error("sweep result has no run id")
	}

	article, err := f.repo.GetArticle(context.Background(), "a1")
	if err != nil {
		t.Fatal(err)
	}
	if article.Status != domain.ArticleNeedsRevision {
		t.Errorf("article status = %s, want needs-revision", article.Status)
	}
}

func TestAssignAll(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/v1/admin/assign-all", nil)
	if status != http.StatusOK {
		t.Fatalf("assign-all = %d %v", status, body)
	}
	if body["users"] != float64(1) || body["created"] != float64(2) {
		t.Errorf("assign-all = %v", body)
	}
}

func TestErrorMapping(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/v1/users/u1/assign", nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		errTyp string
	}{
		{"unknown user", http.MethodPost, "/v1/users/nobody/assign", nil, http.StatusNotFound, "NotFound"},
		{"unknown account", http.MethodPost, "/v1/users/u1/accounts/zzz/tasks/a1/claim", nil, http.StatusNotFound, "NotFound"},
		{"disabled account", http.MethodPost, "/v1/users/u1/accounts/off/tasks/a1/claim", nil, http.StatusForbidden, "Forbidden"},
		{"malformed body", http.MethodPost, "/v1/users/u1/accounts/acc/completions", "{", http.StatusBadRequest, "InvalidRequest"},
		{"missing article id", http.MethodPost, "/v1/users/u1/accounts/acc/completions", map[string]any{}, http.StatusBadRequest, "InvalidRequest"},
		{"bad limit", http.MethodGet, "/v1/admin/expired-tasks?limit=0", nil, http.StatusBadRequest, "InvalidRequest"},
		{"bad category", http.MethodGet, "/v1/admin/expired-tasks?trackCategory=x", nil, http.StatusBadRequest, "InvalidRequest"},
		{"empty sweep", http.MethodPost, "/v1/admin/sweep", map[string]any{"items": []any{}}, http.StatusBadRequest, "InvalidRequest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := f.do(t, tt.method, tt.path, tt.body)
			if status != tt.status || body["error"] != tt.errTyp {
				t.Errorf("got %d %v, want %d %s", status, body, tt.status, tt.errTyp)
			}
			if body["message"] == "" {
				t.Error("error response has no message")
			}
		})
	}
}

func TestDependencyFailureIsInternalError(t *testing.T) {
	f := newFixture(t)
	f.repo.Close()

	status, body := f.do(t, http.MethodPost, "/v1/users/u1/assign", nil)
	if status != http.StatusInternalServerError || body["error"] != "InternalError" {
		t.Errorf("got %d %v", status, body)
	}
	if body["message"] != "internal error" {
		t.Errorf("message = %v, internal details must not leak", body["message"])
	}
}
