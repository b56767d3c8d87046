package domain

// AccountStatus controls whether an account may act on its tasks.
type AccountStatus string

const (
	AccountEnabled  AccountStatus = "enabled"
	AccountDisabled AccountStatus = "disabled"
)

// User is the aggregate that owns creator accounts. It is persisted as a
// single document and every write replaces the whole Accounts slice.
type User struct {
	// ID identifies the user document.
	ID string

	// Accounts are the creator accounts embedded in the document.
	Accounts []Account

	// Version is the optimistic concurrency token checked on every write.
	Version int64
}

// Account returns the account with the given id, or nil.
func (u *User) Account(accountID string) *Account {
	for i := range u.Accounts {
		if u.Accounts[i].AccountID == accountID {
			return &u.Accounts[i]
		}
	}
	return nil
}

// Account is a single creator account bound to one track category.
type Account struct {
	AccountID     string        `json:"accountId" yaml:"accountId"`
	TrackCategory int           `json:"trackCategory" yaml:"trackCategory"`
	Status        AccountStatus `json:"status" yaml:"status"`
	DailyTasks    []Task        `json:"dailyTasks" yaml:"dailyTasks"`
	Posts         []Post        `json:"posts" yaml:"posts"`
	RejectPosts   []RejectPost  `json:"rejectPosts" yaml:"rejectPosts"`
}

// Enabled reports whether the account may claim and complete tasks. An empty
// status is treated as enabled.
func (a *Account) Enabled() bool {
	return a.Status != AccountDisabled
}

// PublishedArticleIDs returns the set of article ids already published by
// this account.
func (a *Account) PublishedArticleIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(a.Posts))
	for _, p := range a.Posts {
		ids[p.ArticleID] = struct{}{}
	}
	return ids
}

// activeTask returns the first unclaimed or claimed task for articleID.
func (a *Account) activeTask(articleID string) *Task {
	for i := range a.DailyTasks {
		t := &a.DailyTasks[i]
		if t.ArticleID == articleID && t.Active() {
			return t
		}
	}
	return nil
}

func (a *Account) taskFor(articleID string) *Task {
	for i := range a.DailyTasks {
		if a.DailyTasks[i].ArticleID == articleID {
			return &a.DailyTasks[i]
		}
	}
	return nil
}

// upsertPost replaces the post with the same article id or appends it.
// It reports whether an existing post was replaced.
func (a *Account) upsertPost(post Post) bool {
	for i := range a.Posts {
		if a.Posts[i].ArticleID == post.ArticleID {
			a.Posts[i] = post
			return true
		}
	}
	a.Posts = append(a.Posts, post)
	return false
}

func (a *Account) hasRejectPost(articleID string) bool {
	for _, r := range a.RejectPosts {
		if r.ArticleID == articleID {
			return true
		}
	}
	return false
}

func cloneTasks(tasks []Task) []Task {
	if tasks == nil {
		return []Task{}
	}
	out := make([]Task, len(tasks))
	copy(out, tasks)
	return out
}
