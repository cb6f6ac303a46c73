package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chepyr/go-task-tracker/internal/auth"
	"github.com/chepyr/go-task-tracker/internal/db"
	"github.com/chepyr/go-task-tracker/internal/manager"
	"github.com/chepyr/go-task-tracker/internal/models"
	"github.com/google/uuid"
)

const testSecret = "handlers-test-secret-0123456789abcdef"

// setupHTTP wires a Handler to a real tracker on a temporary sqlite file.
func setupHTTP(t *testing.T) (*Handler, *http.ServeMux) {
	t.Helper()

	m, err := manager.Open(context.Background(), manager.Config{
		Driver: db.DriverSQLite,
		DSN:    db.SQLiteDSN(filepath.Join(t.TempDir(), "handlers.db")),
		Hasher: auth.SHA256Hasher{},
	})
	if err != nil {
		t.Fatalf("open manager: %v", err)
	}
	t.Cleanup(func() { m.Close() })

	h := &Handler{
		Tracker:     m,
		Sessions:    auth.NewSessionManager(testSecret, time.Hour),
		RateLimiter: NewRateLimiter(100, time.Minute),
		WSHub:       NewWSHub(),
	}
	mux := http.NewServeMux()
	h.Routes(mux)
	return h, mux
}

func doJSON(t *testing.T, mux http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

// registerAndLogin returns the user and a session token.
func registerAndLogin(t *testing.T, mux http.Handler, email, password, name string) (models.PublicUser, string) {
	t.Helper()

	rec := doJSON(t, mux, http.MethodPost, "/register", "", registerRequest{
		Email: email, Password: password, DisplayName: name,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /register status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, mux, http.MethodPost, "/login", "", loginRequest{Email: email, Password: password})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /login status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		User  models.PublicUser `json:"user"`
		Token string            `json:"token"`
	}
	decodeBody(t, rec, &resp)
	if resp.Token == "" {
		t.Fatal("login returned no token")
	}
	return resp.User, resp.Token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}

func createTask(t *testing.T, mux http.Handler, token string, input models.TaskInput) models.Task {
	t.Helper()
	rec := doJSON(t, mux, http.MethodPost, "/tasks", token, input)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /tasks status=%d body=%s", rec.Code, rec.Body.String())
	}
	var task models.Task
	decodeBody(t, rec, &task)
	return task
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	decodeBody(t, rec, &resp)
	return resp.Error
}

// failingTracker returns err from every call.
type failingTracker struct {
	err error
}

func (f failingTracker) Register(context.Context, string, string, string) (models.PublicUser, error) {
	return models.PublicUser{}, f.err
}

func (f failingTracker) Login(context.Context, string, string) (models.PublicUser, error) {
	return models.PublicUser{}, f.err
}

func (f failingTracker) CreateTask(context.Context, uuid.UUID, models.TaskInput) (models.Task, error) {
	return models.Task{}, f.err
}

func (f failingTracker) ListTasks(context.Context, uuid.UUID) ([]models.Task, error) {
	return nil, f.err
}

func (f failingTracker) GetTask(context.Context, uuid.UUID, uuid.UUID) (models.Task, error) {
	return models.Task{}, f.err
}

func (f failingTracker) EditTask(context.Context, uuid.UUID, uuid.UUID, models.TaskInput) (models.Task, error) {
	return models.Task{}, f.err
}

func (f failingTracker) DeleteTask(context.Context, uuid.UUID, uuid.UUID) error {
	return f.err
}

func (f failingTracker) ToggleCompletion(context.Context, uuid.UUID, uuid.UUID) (models.Task, error) {
	return models.Task{}, f.err
}

func (f failingTracker) SearchTasks(context.Context, uuid.UUID, string) ([]models.Task, error) {
	return nil, f.err
}

func (f failingTracker) FilterByStatus(context.Context, uuid.UUID, *models.TaskStatus) ([]models.Task, error) {
	return nil, f.err
}

var errDiskOnFire = errors.New("disk on fire")

func bearerForUser(t *testing.T, sessions *auth.SessionManager, userID uuid.UUID) string {
	t.Helper()
	token, err := sessions.Issue(models.PublicUser{ID: userID, Email: "user@example.com"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func wsURL(serverURL, token string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/ws?token=" + token
}
