package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a background download
type TaskStatus string

const (
	TaskPending  TaskStatus = "pending"
	TaskRunning  TaskStatus = "running"
	TaskFinished TaskStatus = "finished"
	TaskFailed   TaskStatus = "failed"
)

// IsTerminal reports whether no further transition is possible
func (s TaskStatus) IsTerminal() bool {
	return s == TaskFinished || s == TaskFailed
}

// Task represents one background download. It is never stored; its ID doubles
// as the progress subscription key.
type Task struct {
	ID         string     `json:"task_id"`
	URL        string     `json:"url"`
	Quality    *int       `json:"quality,omitempty"`
	Status     TaskStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
	Filename   string     `json:"filename,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewTask creates a pending task with a fresh random identifier
func NewTask(url string, quality *int) *Task {
	return &Task{
		ID:        uuid.New().String(),
		URL:       url,
		Quality:   quality,
		Status:    TaskPending,
		CreatedAt: time.Now(),
	}
}

// MarkRunning moves a pending task to running
func (t *Task) MarkRunning() error {
	if t.Status != TaskPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, TaskRunning)
	}
	now := time.Now()
	t.Status = TaskRunning
	t.StartedAt = &now
	return nil
}

// MarkFinished records a successful completion
func (t *Task) MarkFinished(filename string) error {
	if t.Status != TaskRunning {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, TaskFinished)
	}
	now := time.Now()
	t.Status = TaskFinished
	t.Filename = filename
	t.FinishedAt = &now
	return nil
}

// MarkFailed records a failure. A pending task may fail before it ever runs.
func (t *Task) MarkFailed(err error) error {
	if t.Status.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, TaskFailed)
	}
	now := time.Now()
	t.Status = TaskFailed
	if err != nil {
		t.Error = err.Error()
	}
	t.FinishedAt = &now
	return nil
}
