package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/chepyr/go-task-tracker/internal/models"
	"github.com/google/uuid"
)

/*
handles routes:
- GET /tasks?q={text}&status={status} - list, search or filter the caller's tasks
- POST /tasks - create a new task
*/
func (h *Handler) HandleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listTasks(w, r)
	case http.MethodPost:
		h.createTask(w, r)
	default:
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

/*
routes:
- GET /tasks/{id}
- PUT /tasks/{id}
- DELETE /tasks/{id}
- POST /tasks/{id}/toggle
*/
func (h *Handler) HandleTaskByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/tasks/"), "/")
	idPart, action, _ := strings.Cut(rest, "/")
	if idPart == "" {
		sendError(w, "task_id is required", http.StatusBadRequest)
		return
	}
	taskID, err := uuid.Parse(idPart)
	if err != nil {
		sendError(w, "task_id must be a valid uuid", http.StatusBadRequest)
		return
	}

	switch {
	case action == "toggle" && r.Method == http.MethodPost:
		h.toggleTask(w, r, taskID)
	case action == "toggle":
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	case action != "":
		sendError(w, "Not found", http.StatusNotFound)
	case r.Method == http.MethodGet:
		h.getTask(w, r, taskID)
	case r.Method == http.MethodPut:
		h.updateTask(w, r, taskID)
	case r.Method == http.MethodDelete:
		h.deleteTask(w, r, taskID)
	default:
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	query := r.URL.Query()
	text := query.Get("q")
	var status *models.TaskStatus
	if raw := query.Get("status"); raw != "" {
		parsed, err := models.ParseTaskStatus(raw)
		if err != nil {
			sendDomainError(w, err)
			return
		}
		status = &parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var (
		tasks []models.Task
		err   error
	)
	if strings.TrimSpace(text) != "" {
		tasks, err = h.Tracker.SearchTasks(ctx, userID, text)
		if err == nil && status != nil {
			tasks = withStatus(tasks, *status)
		}
	} else {
		tasks, err = h.Tracker.FilterByStatus(ctx, userID, status)
	}
	if err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, tasks)
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var input models.TaskInput
	if !decodeJSON(w, r, &input) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	task, err := h.Tracker.CreateTask(ctx, userID, input)
	if err != nil {
		sendDomainError(w, err)
		return
	}
	h.WSHub.Broadcast(EventTaskCreated, task)
	w.Header().Set("Location", "/tasks/"+task.ID.String())
	sendJSON(w, http.StatusCreated, task)
}

func (h *Handler) getTask(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	task, err := h.Tracker.GetTask(ctx, userID, taskID)
	if err != nil {
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, task)
}

// updateTask replaces title, description, due date and priority.
func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var input models.TaskInput
	if !decodeJSON(w, r, &input) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	task, err := h.Tracker.EditTask(ctx, userID, taskID, input)
	if err != nil {
		sendDomainError(w, err)
		return
	}
	h.WSHub.Broadcast(EventTaskUpdated, task)
	sendJSON(w, http.StatusOK, task)
}

func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.Tracker.DeleteTask(ctx, userID, taskID); err != nil {
		sendDomainError(w, err)
		return
	}
	h.WSHub.Broadcast(EventTaskDeleted, models.Task{ID: taskID, OwnerID: userID})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) toggleTask(w http.ResponseWriter, r *http.Request, taskID uuid.UUID) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		sendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	task, err := h.Tracker.ToggleCompletion(ctx, userID, taskID)
	if err != nil {
		sendDomainError(w, err)
		return
	}
	h.WSHub.Broadcast(EventTaskToggled, task)
	sendJSON(w, http.StatusOK, task)
}

func withStatus(tasks []models.Task, status models.TaskStatus) []models.Task {
	filtered := make([]models.Task, 0, len(tasks))
	for _, task := range tasks {
		if task.Status == status {
			filtered = append(filtered, task)
		}
	}
	return filtered
}
