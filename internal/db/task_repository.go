package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/chepyr/go-task-tracker/internal/models"
	"github.com/google/uuid"
)

// Every query below is scoped by owner_id; a task owned by someone else is
// indistinguishable from a missing one.
type TaskRepositoryInterface interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Task, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Task, error)
	ListByOwnerAndStatus(ctx context.Context, ownerID uuid.UUID, status models.TaskStatus) ([]models.Task, error)
	Search(ctx context.Context, ownerID uuid.UUID, text string) ([]models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	ToggleStatus(ctx context.Context, ownerID, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}

type TaskRepository struct {
	db    DBTX
	lower string
}

var _ TaskRepositoryInterface = (*TaskRepository)(nil)

func NewTaskRepository(db DBTX, driverName string) *TaskRepository {
	return &TaskRepository{db: db, lower: lowerFunc(driverName)}
}

const taskColumns = `id, owner_id, title, description, due_date, priority, status, created_at, updated_at`

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		task.ID = id
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}

	query := `INSERT INTO tasks (` + taskColumns + `)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(
		ctx, query, task.ID, task.OwnerID, task.Title, task.Description,
		nullableString(task.DueDate), task.Priority, task.Status,
		task.CreatedAt, task.UpdatedAt)
	return translateError(err)
}

func (r *TaskRepository) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND owner_id = $2`
	task, err := scanTask(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		return nil, translateError(err)
	}
	return task, nil
}

// ListByOwner returns tasks in creation order (ids are time ordered).
func (r *TaskRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1 ORDER BY id`
	return r.list(ctx, query, ownerID)
}

func (r *TaskRepository) ListByOwnerAndStatus(
	ctx context.Context, ownerID uuid.UUID, status models.TaskStatus,
) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
	 WHERE owner_id = $1 AND status = $2 ORDER BY id`
	return r.list(ctx, query, ownerID, status)
}

// Search matches text case-insensitively as a substring of the title or the
// due date. Wildcards in text are matched literally.
func (r *TaskRepository) Search(ctx context.Context, ownerID uuid.UUID, text string) ([]models.Task, error) {
	pattern := "%" + escapeLike(strings.ToLower(text)) + "%"
	query := `SELECT ` + taskColumns + ` FROM tasks
	 WHERE owner_id = $1
	   AND (` + r.lower + `(title) LIKE $2 ESCAPE '\' OR ` + r.lower + `(COALESCE(due_date, '')) LIKE $2 ESCAPE '\')
	 ORDER BY id`
	return r.list(ctx, query, ownerID, pattern)
}

// Update replaces title, description, due date and priority. Status is not touched.
func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	query := `UPDATE tasks SET title = $1, description = $2, due_date = $3, priority = $4, updated_at = $5
	 WHERE id = $6 AND owner_id = $7`
	result, err := r.db.ExecContext(
		ctx, query, task.Title, task.Description, nullableString(task.DueDate),
		task.Priority, task.UpdatedAt, task.ID, task.OwnerID)
	return checkAffected(result, err)
}

// ToggleStatus flips pending and completed in a single statement.
func (r *TaskRepository) ToggleStatus(ctx context.Context, ownerID, id uuid.UUID, at time.Time) error {
	query := `UPDATE tasks
	 SET status = CASE status WHEN 'pending' THEN 'completed' ELSE 'pending' END, updated_at = $1
	 WHERE id = $2 AND owner_id = $3`
	result, err := r.db.ExecContext(ctx, query, at, id, ownerID)
	return checkAffected(result, err)
}

func (r *TaskRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	query := `DELETE FROM tasks WHERE id = $1 AND owner_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, ownerID)
	return checkAffected(result, err)
}

func (r *TaskRepository) list(ctx context.Context, query string, args ...any) ([]models.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	tasks := make([]models.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	task := &models.Task{}
	var dueDate sql.NullString
	err := row.Scan(
		&task.ID, &task.OwnerID, &task.Title, &task.Description, &dueDate,
		&task.Priority, &task.Status, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	task.DueDate = dueDate.String
	return task, nil
}

func checkAffected(result sql.Result, err error) error {
	if err != nil {
		return translateError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
