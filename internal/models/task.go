package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
)

// Toggled returns the other status.
func (s TaskStatus) Toggled() TaskStatus {
	if s == TaskStatusCompleted {
		return TaskStatusPending
	}
	return TaskStatusCompleted
}

func (s TaskStatus) IsValid() bool {
	return s == TaskStatusPending || s == TaskStatusCompleted
}

// ParseTaskStatus accepts the canonical values and the legacy Spanish labels,
// case-insensitively.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "pendiente":
		return TaskStatusPending, nil
	case "completed", "completada":
		return TaskStatusCompleted, nil
	}
	return "", NewValidationError("status", fmt.Sprintf("unknown status %q", raw))
}

type TaskPriority string

const (
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityLow    TaskPriority = "low"
)

func (p TaskPriority) IsValid() bool {
	switch p {
	case TaskPriorityHigh, TaskPriorityMedium, TaskPriorityLow:
		return true
	}
	return false
}

// ParseTaskPriority maps an empty string to medium.
func ParseTaskPriority(raw string) (TaskPriority, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return TaskPriorityMedium, nil
	case "high", "alta":
		return TaskPriorityHigh, nil
	case "medium", "media":
		return TaskPriorityMedium, nil
	case "low", "baja":
		return TaskPriorityLow, nil
	}
	return "", NewValidationError("priority", fmt.Sprintf("unknown priority %q", raw))
}

// NoDueDate is how a task without a due date is rendered.
const NoDueDate = "no date"

type Task struct {
	ID          uuid.UUID    `json:"id"`
	OwnerID     uuid.UUID    `json:"owner_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	DueDate     string       `json:"due_date"`
	Priority    TaskPriority `json:"priority"`
	Status      TaskStatus   `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (t *Task) HasDueDate() bool {
	return t.DueDate != ""
}

func (t *Task) DueDateLabel() string {
	if !t.HasDueDate() {
		return NoDueDate
	}
	return t.DueDate
}

// MarshalJSON adds due_date_label next to the stored fields.
func (t Task) MarshalJSON() ([]byte, error) {
	type plain Task
	return json.Marshal(struct {
		plain
		DueDateLabel string `json:"due_date_label"`
	}{plain(t), t.DueDateLabel()})
}

// TaskInput carries the user-editable fields of a task.
type TaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
	Priority    string `json:"priority"`
}
