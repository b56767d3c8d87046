package domain

import (
	"context"
	"errors"
	"testing"
)

func sweepFixture(t *testing.T) *harness {
	t.Helper()
	a1 := article("A1", 1, ArticleUsed)
	a2 := article("A2", 1, ArticleUnused)
	a3 := article("A3", 1, ArticleUsed)
	a4 := article("A4", 2, ArticleUsed)
	a5 := article("A5", 2, ArticleUsed)
	users := newMemUsers(
		User{ID: "u1", Accounts: []Account{
			{AccountID: "stale", TrackCategory: 1, DailyTasks: []Task{taskFor(a1, day(12), TaskClaimed)}},
			{AccountID: "unclaimed", TrackCategory: 1, DailyTasks: []Task{taskFor(a2, day(10), TaskUnclaimed)}},
			{AccountID: "fresh", TrackCategory: 1, DailyTasks: []Task{taskFor(a3, day(14), TaskClaimed)}},
		}},
		User{ID: "u2", Accounts: []Account{
			{AccountID: "old", TrackCategory: 2, DailyTasks: []Task{taskFor(a4, day(13), TaskClaimed)}},
			{AccountID: "finished", TrackCategory: 2, DailyTasks: []Task{taskFor(a5, day(13), TaskCompleted)}},
		}},
		User{ID: "u3", Accounts: []Account{{AccountID: "idle", TrackCategory: 1}}},
	)
	return newHarness(t, users, newMemArticles(a1, a2, a3, a4, a5), day(14))
}

func TestListExpiredOnlyReportsClaimedStaleTasks(t *testing.T) {
	t.Parallel()

	h := sweepFixture(t)
	report, err := h.service.ListExpiredClaimedTasks(context.Background(), ExpiredFilter{})
	if err != nil {
		t.Fatalf("ListExpiredClaimedTasks: %v", err)
	}
	if report.TotalCount != 2 || len(report.Users) != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}

	got := map[string]string{}
	for _, item := range report.Items() {
		got[item.AccountID] = item.ArticleID
	}
	if got["stale"] != "A1" || got["old"] != "A4" || len(got) != 2 {
		t.Fatalf("unexpected expired tasks: %v", got)
	}
	for _, u := range report.Users {
		for _, a := range u.Accounts {
			for _, task := range a.Tasks {
				if !task.IsClaimed() {
					t.Fatalf("unclaimed task reported: %+v", task)
				}
			}
		}
	}
}

func TestListExpiredFilters(t *testing.T) {
	t.Parallel()

	h := sweepFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter ExpiredFilter
		want   int
	}{
		{"by user", ExpiredFilter{UserID: "u2"}, 1},
		{"by account", ExpiredFilter{AccountID: "stale"}, 1},
		{"by category", ExpiredFilter{TrackCategory: 2}, 1},
		{"limit", ExpiredFilter{Limit: 1}, 1},
		{"no match", ExpiredFilter{UserID: "u3"}, 0},
	}
	for _, tt := range tests {
		report, err := h.service.ListExpiredClaimedTasks(ctx, tt.filter)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if report.TotalCount != tt.want {
			t.Errorf("%s: total = %d, want %d", tt.name, report.TotalCount, tt.want)
		}
	}

	if _, err := h.service.ListExpiredClaimedTasks(ctx, ExpiredFilter{UserID: "ghost"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestSweepRejectsExpiredTasks(t *testing.T) {
	t.Parallel()

	h := sweepFixture(t)
	ctx := context.Background()
	items := []SweepItem{
		{UserID: "u1", AccountID: "stale", ArticleID: "A1"},
		{UserID: "u2", AccountID: "old", ArticleID: "A4"},
	}

	res, err := h.service.SweepExpiredTasks(ctx, items)
	if err != nil {
		t.Fatalf("SweepExpiredTasks: %v", err)
	}
	if res.ClearedTasks != 2 || res.AddedRejectPosts != 2 || res.UpdatedArticles != 2 || len(res.Errors) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.RunID == "" {
		t.Fatalf("missing run id")
	}

	stale := h.users.get(t, "u1").Account("stale")
	if len(stale.DailyTasks) != 0 {
		t.Fatalf("tasks not cleared: %+v", stale.DailyTasks)
	}
	if len(stale.RejectPosts) != 1 || stale.RejectPosts[0].ArticleID != "A1" || stale.RejectPosts[0].Title != "Title A1" {
		t.Fatalf("unexpected reject posts: %+v", stale.RejectPosts)
	}
	if !stale.RejectPosts[0].RejectTime.Equal(day(14)) {
		t.Fatalf("rejectTime = %v", stale.RejectPosts[0].RejectTime)
	}
	for _, id := range []string{"A1", "A4"} {
		if got := h.articles.status(id); got != ArticleNeedsRevision {
			t.Fatalf("article %s status = %s", id, got)
		}
	}

	again, err := h.service.SweepExpiredTasks(ctx, items)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if again.AddedRejectPosts != 0 || again.ClearedTasks != 0 || again.UpdatedArticles != 0 || len(again.Errors) != 0 {
		t.Fatalf("second sweep was not a no-op: %+v", again)
	}
	if got := len(h.users.get(t, "u1").Account("stale").RejectPosts); got != 1 {
		t.Fatalf("reject posts after second sweep = %d, want 1", got)
	}
}

func TestSweepRerunKeepsRevisedArticle(t *testing.T) {
	t.Parallel()

	h := sweepFixture(t)
	ctx := context.Background()
	items := []SweepItem{{UserID: "u1", AccountID: "stale", ArticleID: "A1"}}

	if _, err := h.service.SweepExpiredTasks(ctx, items); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	h.articles.setStatus("A1", ArticleUnused)

	again, err := h.service.SweepExpiredTasks(ctx, items)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if again.UpdatedArticles != 0 || len(again.Errors) != 0 {
		t.Fatalf("second sweep was not a no-op: %+v", again)
	}
	if got := h.articles.status("A1"); got != ArticleUnused {
		t.Fatalf("revised article status = %s, want unused", got)
	}
}

func TestSweepRerunRepairsFailedArticleUpdate(t *testing.T) {
	t.Parallel()

	h := sweepFixture(t)
	ctx := context.Background()
	items := []SweepItem{{UserID: "u1", AccountID: "stale", ArticleID: "A1"}}

	h.articles.mu.Lock()
	h.articles.updateErr["A1"] = errStore
	h.articles.mu.Unlock()

	first, err := h.service.SweepExpiredTasks(ctx, items)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if first.AddedRejectPosts != 1 || first.UpdatedArticles != 0 || len(first.Errors) != 1 {
		t.Fatalf("unexpected first result: %+v", first)
	}
	if got := h.articles.status("A1"); got != ArticleUsed {
		t.Fatalf("article status after failed update = %s", got)
	}

	h.articles.mu.Lock()
	delete(h.articles.updateErr, "A1")
	h.articles.mu.Unlock()

	again, err := h.service.SweepExpiredTasks(ctx, items)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if again.AddedRejectPosts != 0 || again.UpdatedArticles != 1 || len(again.Errors) != 0 {
		t.Fatalf("unexpected second result: %+v", again)
	}
	if got := h.articles.status("A1"); got != ArticleNeedsRevision {
		t.Fatalf("article status = %s, want needs-revision", got)
	}
}

func TestSweepLeavesNewlyAssignedTaskAlone(t *testing.T) {
	t.Parallel()

	h := sweepFixture(t)
	ctx := context.Background()
	item := SweepItem{UserID: "u1", AccountID: "stale", ArticleID: "A1"}

	if _, err := h.service.SweepExpiredTasks(ctx, []SweepItem{item}); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if _, err := h.service.AssignOrRotateTask(ctx, "u1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	before := h.users.get(t, "u1").Account("stale").DailyTasks
	if len(before) != 1 || before[0].ArticleID != "A2" {
		t.Fatalf("expected fresh task on A2, got %+v", before)
	}

	if _, err := h.service.SweepExpiredTasks(ctx, []SweepItem{item}); err != nil {
		t.Fatalf("repeat sweep: %v", err)
	}
	after := h.users.get(t, "u1").Account("stale").DailyTasks
	if len(after) != 1 || after[0].ArticleID != "A2" {
		t.Fatalf("repeat sweep cleared the new task: %+v", after)
	}
}

func TestSweepReportsItemFailuresWithoutAborting(t *testing.T) {
	t.Parallel()

	h := sweepFixture(t)
	h.articles.updateErr["A4"] = errStore
	h.users.getErr["u3"] = errStore

	res, err := h.service.SweepExpiredTasks(context.Background(), []SweepItem{
		{UserID: "u1", AccountID: "stale", ArticleID: "A1"},
		{UserID: "u1", AccountID: "unclaimed", ArticleID: "A2"},
		{UserID: "u2", AccountID: "old", ArticleID: "A4"},
		{UserID: "u2", AccountID: "finished", ArticleID: "A5"},
		{UserID: "u3", AccountID: "idle", ArticleID: "A9"},
		{UserID: "ghost", AccountID: "x", ArticleID: "A1"},
		{UserID: "u1", AccountID: "", ArticleID: "A1"},
	})
	if err != nil {
		t.Fatalf("SweepExpiredTasks: %v", err)
	}
	if res.AddedRejectPosts != 2 || res.UpdatedArticles != 1 {
		t.Fatalf("unexpected counts: %+v", res)
	}

	kinds := map[string]ErrorKind{}
	for _, e := range res.Errors {
		kinds[e.UserID+"/"+e.AccountID+"/"+e.Phase] = e.Kind
	}
	want := map[string]ErrorKind{
		"u1/unclaimed/account": KindValidation,
		"u2/finished/account":  KindValidation,
		"//article":            KindDependency,
		"u3/idle/account":      KindDependency,
		"ghost/x/account":      KindNotFound,
		"u1//account":          KindValidation,
	}
	if len(kinds) != len(want) {
		t.Fatalf("errors = %+v", res.Errors)
	}
	for key, kind := range want {
		if kinds[key] != kind {
			t.Errorf("error %s kind = %q, want %q (all: %+v)", key, kinds[key], kind, res.Errors)
		}
	}

	if got := h.articles.status("A5"); got != ArticleUsed {
		t.Fatalf("completed task's article flipped to %s", got)
	}
	if got := h.articles.status("A2"); got != ArticleUnused {
		t.Fatalf("unclaimed task's article flipped to %s", got)
	}
	if tasks := h.users.get(t, "u1").Account("unclaimed").DailyTasks; len(tasks) != 1 {
		t.Fatalf("unclaimed task was swept")
	}
}

func TestSweepRequiresItems(t *testing.T) {
	t.Parallel()

	h := sweepFixture(t)
	if _, err := h.service.SweepExpiredTasks(context.Background(), nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
