// Package manager is the single entry point for callers of the tracker. It
// owns the store lifecycle and delegates to the account and task services.
package manager

import (
	"context"
	"fmt"
	"log"

	"github.com/chepyr/go-task-tracker/internal/auth"
	"github.com/chepyr/go-task-tracker/internal/db"
	"github.com/chepyr/go-task-tracker/internal/models"
	"github.com/chepyr/go-task-tracker/internal/tasks"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Driver string
	DSN    string
	// Hasher defaults to bcrypt when nil.
	Hasher auth.Hasher
}

type Manager struct {
	store    *db.Store
	accounts *auth.AccountService
	tasks    *tasks.Service
}

// Open connects to the store and creates the schema if it is missing.
func Open(ctx context.Context, cfg Config) (*Manager, error) {
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = auth.NewBcryptHasher(bcrypt.DefaultCost)
	}

	store, err := db.Open(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	log.Printf("Store ready (driver %s)", store.Driver())

	return &Manager{
		store:    store,
		accounts: auth.NewAccountService(store, hasher),
		tasks:    tasks.NewService(store),
	}, nil
}

func (m *Manager) Close() error {
	return m.store.Close()
}

func (m *Manager) Register(ctx context.Context, email, password, displayName string) (models.PublicUser, error) {
	return m.accounts.Register(ctx, email, password, displayName)
}

func (m *Manager) Login(ctx context.Context, email, password string) (models.PublicUser, error) {
	return m.accounts.Login(ctx, email, password)
}

func (m *Manager) CreateTask(ctx context.Context, ownerID uuid.UUID, in models.TaskInput) (models.Task, error) {
	return m.tasks.Create(ctx, ownerID, in)
}

func (m *Manager) ListTasks(ctx context.Context, ownerID uuid.UUID) ([]models.Task, error) {
	return m.tasks.List(ctx, ownerID)
}

func (m *Manager) GetTask(ctx context.Context, ownerID, taskID uuid.UUID) (models.Task, error) {
	return m.tasks.Get(ctx, ownerID, taskID)
}

func (m *Manager) EditTask(ctx context.Context, ownerID, taskID uuid.UUID, in models.TaskInput) (models.Task, error) {
	return m.tasks.Edit(ctx, ownerID, taskID, in)
}

func (m *Manager) DeleteTask(ctx context.Context, ownerID, taskID uuid.UUID) error {
	return m.tasks.Delete(ctx, ownerID, taskID)
}

func (m *Manager) ToggleCompletion(ctx context.Context, ownerID, taskID uuid.UUID) (models.Task, error) {
	return m.tasks.ToggleCompletion(ctx, ownerID, taskID)
}

func (m *Manager) SearchTasks(ctx context.Context, ownerID uuid.UUID, text string) ([]models.Task, error) {
	return m.tasks.Search(ctx, ownerID, text)
}

func (m *Manager) FilterByStatus(ctx context.Context, ownerID uuid.UUID, status *models.TaskStatus) ([]models.Task, error) {
	return m.tasks.FilterByStatus(ctx, ownerID, status)
}
