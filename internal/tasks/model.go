package tasks

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

type Task struct {
	ID             string     `json:"id"`
	WorkspaceID    string     `json:"workspaceId"`
	Title          string     `json:"title"`
	Status         Status     `json:"status"`
	Due            *time.Time `json:"due,omitempty"`
	CreatedByID    string     `json:"createdById"`
	CreatedByEmail string     `json:"createdByEmail,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type CreateTaskRequest struct {
	Title  string     `json:"title" validate:"required,min=1"`
	Status Status     `json:"status"`
	Due    *time.Time `json:"due"`
}

type UpdateTaskRequest struct {
	Title  *string      `json:"title" validate:"omitempty,min=1"`
	Status *Status      `json:"status"`
	Due    NullableTime `json:"due"`
}

// NullableTime distinguishes "absent" from an explicit null so PATCH can
// clear a due date.
type NullableTime struct {
	Set   bool
	Value *time.Time
}

func (t *NullableTime) UnmarshalJSON(data []byte) error {
	t.Set = true
	if string(data) == "null" {
		t.Value = nil
		return nil
	}
	return json.Unmarshal(data, &t.Value)
}
