// Package tasks holds the task operations. Every call is scoped to the owner
// id passed in by the caller, and tasks of other owners behave as missing.
package tasks

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chepyr/go-task-tracker/internal/db"
	"github.com/chepyr/go-task-tracker/internal/models"
	"github.com/google/uuid"
)

const MaxTitleLength = 200

type Service struct {
	store *db.Store
	now   func() time.Time
}

func NewService(store *db.Store) *Service {
	return &Service{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, in models.TaskInput) (models.Task, error) {
	fields, err := normalizeInput(in)
	if err != nil {
		return models.Task{}, err
	}

	now := s.now()
	task := &models.Task{
		OwnerID:     ownerID,
		Title:       fields.Title,
		Description: fields.Description,
		DueDate:     fields.DueDate,
		Priority:    fields.Priority,
		Status:      models.TaskStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.store.WithTx(ctx, func(repos db.Repos) error {
		return repos.Tasks.Create(ctx, task)
	})
	if err != nil {
		return models.Task{}, mapError("create task", err)
	}
	return *task, nil
}

// List returns the owner's tasks in creation order.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID) ([]models.Task, error) {
	tasks, err := s.store.Tasks.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, mapError("list tasks", err)
	}
	return tasks, nil
}

func (s *Service) Get(ctx context.Context, ownerID, taskID uuid.UUID) (models.Task, error) {
	task, err := s.store.Tasks.GetByID(ctx, ownerID, taskID)
	if err != nil {
		return models.Task{}, mapError("get task", err)
	}
	return *task, nil
}

// Edit replaces title, description, due date and priority. Status only
// changes through ToggleCompletion.
func (s *Service) Edit(ctx context.Context, ownerID, taskID uuid.UUID, in models.TaskInput) (models.Task, error) {
	fields, err := normalizeInput(in)
	if err != nil {
		return models.Task{}, err
	}

	var updated *models.Task
	err = s.store.WithTx(ctx, func(repos db.Repos) error {
		err := repos.Tasks.Update(ctx, &models.Task{
			ID:          taskID,
			OwnerID:     ownerID,
			Title:       fields.Title,
			Description: fields.Description,
			DueDate:     fields.DueDate,
			Priority:    fields.Priority,
			UpdatedAt:   s.now(),
		})
		if err != nil {
			return err
		}
		updated, err = repos.Tasks.GetByID(ctx, ownerID, taskID)
		return err
	})
	if err != nil {
		return models.Task{}, mapError("edit task", err)
	}
	return *updated, nil
}

func (s *Service) Delete(ctx context.Context, ownerID, taskID uuid.UUID) error {
	err := s.store.WithTx(ctx, func(repos db.Repos) error {
		return repos.Tasks.Delete(ctx, ownerID, taskID)
	})
	if err != nil {
		return mapError("delete task", err)
	}
	return nil
}

// ToggleCompletion flips pending and completed. Two calls restore the
// original status.
func (s *Service) ToggleCompletion(ctx context.Context, ownerID, taskID uuid.UUID) (models.Task, error) {
	var toggled *models.Task
	err := s.store.WithTx(ctx, func(repos db.Repos) error {
		if err := repos.Tasks.ToggleStatus(ctx, ownerID, taskID, s.now()); err != nil {
			return err
		}
		var err error
		toggled, err = repos.Tasks.GetByID(ctx, ownerID, taskID)
		return err
	})
	if err != nil {
		return models.Task{}, mapError("toggle task", err)
	}
	return *toggled, nil
}

// Search matches text against titles and due dates, ignoring case. Blank
// text returns the full list.
func (s *Service) Search(ctx context.Context, ownerID uuid.UUID, text string) ([]models.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return s.List(ctx, ownerID)
	}
	tasks, err := s.store.Tasks.Search(ctx, ownerID, text)
	if err != nil {
		return nil, mapError("search tasks", err)
	}
	return tasks, nil
}

// FilterByStatus returns all tasks when status is nil.
func (s *Service) FilterByStatus(ctx context.Context, ownerID uuid.UUID, status *models.TaskStatus) ([]models.Task, error) {
	if status == nil {
		return s.List(ctx, ownerID)
	}
	if !status.IsValid() {
		return nil, models.NewValidationError("status", "must be pending or completed")
	}
	tasks, err := s.store.Tasks.ListByOwnerAndStatus(ctx, ownerID, *status)
	if err != nil {
		return nil, mapError("filter tasks", err)
	}
	return tasks, nil
}

type taskFields struct {
	Title       string
	Description string
	DueDate     string
	Priority    models.TaskPriority
}

func normalizeInput(in models.TaskInput) (taskFields, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return taskFields{}, models.NewValidationError("title", "is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return taskFields{}, models.NewValidationError("title", "is too long")
	}
	priority, err := models.ParseTaskPriority(in.Priority)
	if err != nil {
		return taskFields{}, err
	}
	return taskFields{
		Title:       title,
		Description: in.Description,
		DueDate:     strings.TrimSpace(in.DueDate),
		Priority:    priority,
	}, nil
}

// mapError turns store errors into the domain taxonomy. A missing owner on
// insert is reported as not found, like a missing task.
func mapError(op string, err error) error {
	switch {
	case errors.Is(err, db.ErrNotFound), errors.Is(err, db.ErrForeignKeyViolation):
		return models.ErrNotFound
	default:
		log.Printf("Failed to %s: %v", op, err)
		return models.StorageError(op, err)
	}
}
