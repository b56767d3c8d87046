package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// TaskState is the lifecycle position of a daily task.
type TaskState string

const (
	TaskUnclaimed TaskState = "unclaimed"
	TaskClaimed   TaskState = "claimed"
	TaskCompleted TaskState = "completed"
	TaskRejected  TaskState = "rejected"
)

// legalTransitions lists the forward moves allowed by the lifecycle.
// Unclaimed -> completed is permitted because a creator may publish without
// claiming first.
var legalTransitions = map[TaskState][]TaskState{
	TaskUnclaimed: {TaskClaimed, TaskCompleted},
	TaskClaimed:   {TaskCompleted, TaskRejected},
}

// TransitionError reports an illegal lifecycle move.
type TransitionError struct {
	From TaskState
	To   TaskState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal task transition %s -> %s", e.From, e.To)
}

// Task is the daily work item: publish one specific article.
type Task struct {
	TaskID        string     `json:"taskId" yaml:"taskId"`
	ArticleID     string     `json:"articleId" yaml:"articleId"`
	ArticleTitle  string     `json:"articleTitle" yaml:"articleTitle"`
	TrackCategory int        `json:"trackCategory" yaml:"trackCategory"`
	PlatformType  string     `json:"platformType" yaml:"platformType"`
	DownloadURL   string     `json:"downloadUrl" yaml:"downloadUrl"`
	TaskTime      time.Time  `json:"taskTime" yaml:"taskTime"`
	State         TaskState  `json:"state" yaml:"state"`
	ClaimedAt     *time.Time `json:"claimedAt,omitempty" yaml:"claimedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty" yaml:"completedAt,omitempty"`
}

// newTask builds an unclaimed task for article stamped at now.
func newTask(id string, article Article, now time.Time) Task {
	return Task{
		TaskID:        id,
		ArticleID:     article.ID,
		ArticleTitle:  article.Title,
		TrackCategory: article.TrackCategory,
		PlatformType:  article.PlatformType,
		DownloadURL:   article.DownloadURL,
		TaskTime:      now,
		State:         TaskUnclaimed,
	}
}

// IsClaimed reports whether the task was claimed at some point.
func (t *Task) IsClaimed() bool {
	return t.ClaimedAt != nil || t.State == TaskClaimed || t.State == TaskRejected
}

// IsCompleted reports whether the task has been matched to a published post.
func (t *Task) IsCompleted() bool {
	return t.State == TaskCompleted
}

// Active reports whether the task is still waiting for work.
func (t *Task) Active() bool {
	return t.State == TaskUnclaimed || t.State == TaskClaimed
}

// IsExpired reports whether a claimed, unfinished task was dated outside
// the given day.
func (t *Task) IsExpired(today DayWindow) bool {
	return t.State == TaskClaimed && !today.Contains(t.TaskTime)
}

// Claim moves the task to claimed. It reports false when the task was
// already claimed.
func (t *Task) Claim(at time.Time) (bool, error) {
	if err := t.transition(TaskClaimed); err != nil {
		return false, err
	}
	if t.ClaimedAt != nil {
		return false, nil
	}
	t.ClaimedAt = &at
	return true, nil
}

// Complete moves the task to completed. It reports false when the task was
// already completed.
func (t *Task) Complete(at time.Time) (bool, error) {
	if t.State == TaskCompleted {
		return false, nil
	}
	if err := t.transition(TaskCompleted); err != nil {
		return false, err
	}
	t.CompletedAt = &at
	return true, nil
}

// Reject moves a claimed task to rejected.
func (t *Task) Reject() error {
	return t.transition(TaskRejected)
}

// reopen undoes a completion whose post no longer exists, restoring the
// state the task had before it was completed.
func (t *Task) reopen() bool {
	if t.State != TaskCompleted {
		return false
	}
	t.CompletedAt = nil
	if t.ClaimedAt != nil {
		t.State = TaskClaimed
	} else {
		t.State = TaskUnclaimed
	}
	return true
}

func (t *Task) transition(to TaskState) error {
	if t.State == to {
		return nil
	}
	for _, next := range legalTransitions[t.State] {
		if next == to {
			t.State = to
			return nil
		}
	}
	return &TransitionError{From: t.State, To: to}
}

type taskAlias Task

type taskJSON struct {
	taskAlias
	IsClaimed   bool `json:"isClaimed"`
	IsCompleted bool `json:"isCompleted"`
}

// MarshalJSON adds the derived isClaimed and isCompleted flags.
func (t Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(taskJSON{
		taskAlias:   taskAlias(t),
		IsClaimed:   t.IsClaimed(),
		IsCompleted: t.IsCompleted(),
	})
}

// UnmarshalJSON accepts documents written with only the boolean flag pair
// and derives the state from them.
func (t *Task) UnmarshalJSON(data []byte) error {
	var raw taskJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Task(raw.taskAlias)
	if t.State != "" {
		return nil
	}

	switch {
	case raw.IsCompleted:
		t.State = TaskCompleted
	case raw.IsClaimed:
		t.State = TaskClaimed
	default:
		t.State = TaskUnclaimed
	}
	if raw.IsClaimed && t.ClaimedAt == nil {
		claimed := t.TaskTime
		t.ClaimedAt = &claimed
	}
	return nil
}
