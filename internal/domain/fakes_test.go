package domain

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"
)

var testZone = time.FixedZone("UTC+8", 8*60*60)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]*User

	getErr    map[string]error
	saveErr   error
	listErr   error
	conflicts int // number of upcoming saves that fail with a version mismatch
	saves     int
}

func newMemUsers(users ...User) *memUsers {
	m := &memUsers{users: map[string]*User{}, getErr: map[string]error{}}
	for _, u := range users {
		m.users[u.ID] = cloneUser(&u)
	}
	return m
}

func cloneUser(u *User) *User {
	data, err := json.Marshal(u.Accounts)
	if err != nil {
		panic(err)
	}
	out := &User{ID: u.ID, Version: u.Version}
	if err := json.Unmarshal(data, &out.Accounts); err != nil {
		panic(err)
	}
	return out
}

func (m *memUsers) GetUser(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.getErr[id]; err != nil {
		return nil, err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return cloneUser(u), nil
}

func (m *memUsers) ListUsers(_ context.Context, afterID string, limit int) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	ids := make([]string, 0, len(m.users))
	for id := range m.users {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]User, 0, len(ids))
	for _, id := range ids {
		out = append(out, *cloneUser(m.users[id]))
	}
	return out, nil
}

func (m *memUsers) SaveUser(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.conflicts > 0 {
		m.conflicts--
		m.users[user.ID].Version++
		return ErrVersionMismatch
	}
	stored, ok := m.users[user.ID]
	if !ok {
		return ErrRecordNotFound
	}
	if stored.Version != user.Version {
		return ErrVersionMismatch
	}
	user.Version++
	m.users[user.ID] = cloneUser(user)
	m.saves++
	return nil
}

func (m *memUsers) get(t *testing.T, id string) *User {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		t.Fatalf("user %s not stored", id)
	}
	return cloneUser(u)
}

type memArticles struct {
	mu       sync.Mutex
	articles map[string]Article

	findErr   error
	updateErr map[string]error
	updates   []string
	limits    []int
}

func newMemArticles(articles ...Article) *memArticles {
	m := &memArticles{articles: map[string]Article{}, updateErr: map[string]error{}}
	for _, a := range articles {
		m.articles[a.ID] = a
	}
	return m
}

func (m *memArticles) FindUnusedArticles(_ context.Context, trackCategory int, excluded []string, limit int) ([]Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []Article
	for _, a := range m.articles {
		if a.Status == ArticleUnused && a.TrackCategory == trackCategory && !slices.Contains(excluded, a.ID) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	m.limits = append(m.limits, limit)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memArticles) UpdateArticleStatus(_ context.Context, id string, status ArticleStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.updateErr[id]; err != nil {
		return err
	}
	a, ok := m.articles[id]
	if !ok {
		return ErrRecordNotFound
	}
	a.Status = status
	m.articles[id] = a
	m.updates = append(m.updates, id+"="+string(status))
	return nil
}

func (m *memArticles) TransitionArticleStatus(_ context.Context, id string, from, to ArticleStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.updateErr[id]; err != nil {
		return false, err
	}
	a, ok := m.articles[id]
	if !ok {
		return false, ErrRecordNotFound
	}
	if a.Status != from {
		return false, nil
	}
	a.Status = to
	m.articles[id] = a
	m.updates = append(m.updates, id+"="+string(to))
	return true, nil
}

func (m *memArticles) setStatus(id string, status ArticleStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.articles[id]
	a.Status = status
	m.articles[id] = a
}

func (m *memArticles) status(id string) ArticleStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.articles[id].Status
}

type harness struct {
	users    *memUsers
	articles *memArticles
	clock    *fixedClock
	service  *TaskService
}

func newHarness(t *testing.T, users *memUsers, articles *memArticles, now time.Time) *harness {
	t.Helper()
	clock := &fixedClock{now: now}
	var seq int
	var mu sync.Mutex
	svc, err := NewTaskService(users, articles, nil, discardLogger(), Options{
		Clock:    clock,
		Rand:     rand.New(rand.NewPCG(1, 2)),
		PageSize: 2,
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return "task-" + strconv.Itoa(seq)
		},
	})
	if err != nil {
		t.Fatalf("NewTaskService: %v", err)
	}
	return &harness{users: users, articles: articles, clock: clock, service: svc}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// day returns 10:00 local time on the given day of October 2026.
func day(d int) time.Time {
	return time.Date(2026, time.October, d, 10, 0, 0, 0, testZone)
}

func article(id string, category int, status ArticleStatus) Article {
	return Article{
		ID:            id,
		Title:         "Title " + id,
		TrackCategory: category,
		PlatformType:  "blog",
		DownloadURL:   "https://files.example.org/" + id,
		Status:        status,
	}
}

func taskFor(a Article, at time.Time, state TaskState) Task {
	t := newTask("seed-"+a.ID, a, at)
	switch state {
	case TaskClaimed:
		t.State = TaskClaimed
		t.ClaimedAt = &at
	case TaskCompleted:
		t.State = TaskCompleted
		t.ClaimedAt = &at
		t.CompletedAt = &at
	}
	return t
}

func postFor(articleID string, at time.Time) Post {
	return Post{ArticleID: articleID, Title: "Title " + articleID, TrackCategory: 1, PublishTime: at}
}

var errStore = errors.New("store unavailable")
