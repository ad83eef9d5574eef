package models

import (
	"time"
)

type TaskStatus string

const (
	TaskStatusOpen TaskStatus = "open"
	TaskStatusDone TaskStatus = "done"
)

// Valid reports whether s is one of the two known statuses.
func (s TaskStatus) Valid() bool {
	return s == TaskStatusOpen || s == TaskStatusDone
}

// Toggle flips open and done. Anything else becomes done.
func (s TaskStatus) Toggle() TaskStatus {
	if s == TaskStatusDone {
		return TaskStatusOpen
	}
	return TaskStatusDone
}

// Task is a to-do item. Images hold object URLs in the offline variant,
// and URLs returned by the collection once persisted.
type Task struct {
	ID        string     `json:"id"`
	Title     string     `json:"todoTitle"`
	Content   string     `json:"todoContent"`
	Status    TaskStatus `json:"status"`
	Images    []string   `json:"todoImages,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Clone returns a copy that shares no slices with t.
func (t Task) Clone() Task {
	if t.Images != nil {
		t.Images = append([]string(nil), t.Images...)
	}
	return t
}

// NewTask is the create payload. The collection assigns id and timestamps.
type NewTask struct {
	Title   string
	Content string
	// Images are encoded payloads (base64 or data: URLs).
	Images []string
}

// TaskPatch is a partial update. nil means "no change".
type TaskPatch struct {
	Title   *string     `json:"todoTitle,omitempty"`
	Content *string     `json:"todoContent,omitempty"`
	Status  *TaskStatus `json:"status,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.Status == nil
}
