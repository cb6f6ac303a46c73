// Package handlers exposes the tracker over HTTP with JSON bodies, JWT
// sessions and a websocket stream of task events.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"mime"
	"net/http"
	"time"

	"github.com/chepyr/go-task-tracker/internal/auth"
	"github.com/chepyr/go-task-tracker/internal/models"
	"github.com/google/uuid"
)

const (
	requestTimeout = 5 * time.Second
	maxBodyBytes   = 1 << 20
)

// Tracker is the set of operations the handlers need; *manager.Manager
// satisfies it.
type Tracker interface {
	Register(ctx context.Context, email, password, displayName string) (models.PublicUser, error)
	Login(ctx context.Context, email, password string) (models.PublicUser, error)
	CreateTask(ctx context.Context, ownerID uuid.UUID, in models.TaskInput) (models.Task, error)
	ListTasks(ctx context.Context, ownerID uuid.UUID) ([]models.Task, error)
	GetTask(ctx context.Context, ownerID, taskID uuid.UUID) (models.Task, error)
	EditTask(ctx context.Context, ownerID, taskID uuid.UUID, in models.TaskInput) (models.Task, error)
	DeleteTask(ctx context.Context, ownerID, taskID uuid.UUID) error
	ToggleCompletion(ctx context.Context, ownerID, taskID uuid.UUID) (models.Task, error)
	SearchTasks(ctx context.Context, ownerID uuid.UUID, text string) ([]models.Task, error)
	FilterByStatus(ctx context.Context, ownerID uuid.UUID, status *models.TaskStatus) ([]models.Task, error)
}

type Handler struct {
	Tracker     Tracker
	Sessions    *auth.SessionManager
	RateLimiter *RateLimiter
	WSHub       *WSHub
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/register", h.Register)
	mux.HandleFunc("/login", h.Login)
	mux.HandleFunc("/tasks", h.AuthMiddleware(h.HandleTasks))
	mux.HandleFunc("/tasks/", h.AuthMiddleware(h.HandleTaskByID))
	mux.HandleFunc("/ws", h.AuthMiddleware(h.HandleWebSocket))
}

type errorResponse struct {
	Error string `json:"error"`
}

func sendError(w http.ResponseWriter, message string, status int) {
	sendJSON(w, status, errorResponse{Error: message})
}

func sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// sendDomainError maps tracker errors onto status codes. Storage failures
// are logged and reported without detail.
func sendDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		sendError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrDuplicateEmail):
		sendError(w, "Email already registered", http.StatusConflict)
	case errors.Is(err, models.ErrInvalidCredentials):
		sendError(w, "Invalid email or password", http.StatusUnauthorized)
	case errors.Is(err, models.ErrNotFound):
		sendError(w, "Task not found", http.StatusNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		sendError(w, "Request timed out", http.StatusServiceUnavailable)
	default:
		log.Printf("Internal error: %v", err)
		sendError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !isJSONContentType(r) {
		sendError(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		log.Printf("Error decoding JSON: %v", err)
		sendError(w, "Bad JSON", http.StatusBadRequest)
		return false
	}
	return true
}

// isJSONContentType accepts a missing Content-Type so plain curl calls work.
func isJSONContentType(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	return err == nil && mediaType == "application/json"
}
