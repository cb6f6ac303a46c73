package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chepyr/go-task-tracker/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

func dialWS(t *testing.T, serverURL, token string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(serverURL, token), nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial ws: %v (status %d)", err, status)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForConnections(t *testing.T, hub *WSHub, ownerID uuid.UUID, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ConnectionCount(ownerID) != want {
		if time.Now().After(deadline) {
			t.Fatalf("want %d connections for %s, got %d", want, ownerID, hub.ConnectionCount(ownerID))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) TaskEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read ws message: %v", err)
	}
	var event TaskEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("decode event %q: %v", data, err)
	}
	return event
}

func TestWebSocket_OwnerReceivesTaskEvents(t *testing.T) {
	h, mux := setupHTTP(t)
	server := httptest.NewServer(mux)
	defer server.Close()

	ana, anaToken := registerAndLogin(t, mux, "a@x.com", "pw1", "Ana")
	bob, bobToken := registerAndLogin(t, mux, "b@x.com", "pw2", "Bob")

	anaConn := dialWS(t, server.URL, anaToken)
	bobConn := dialWS(t, server.URL, bobToken)
	waitForConnections(t, h.WSHub, ana.ID, 1)
	waitForConnections(t, h.WSHub, bob.ID, 1)

	task := createTask(t, mux, anaToken, models.TaskInput{Title: "Buy milk"})
	event := readEvent(t, anaConn)
	if event.Event != EventTaskCreated || event.Task.ID != task.ID {
		t.Fatalf("unexpected event %+v", event)
	}

	rec := doJSON(t, mux, http.MethodPost, "/tasks/"+task.ID.String()+"/toggle", anaToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status=%d", rec.Code)
	}
	event = readEvent(t, anaConn)
	if event.Event != EventTaskToggled || event.Task.Status != models.TaskStatusCompleted {
		t.Fatalf("unexpected event %+v", event)
	}

	rec = doJSON(t, mux, http.MethodDelete, "/tasks/"+task.ID.String(), anaToken, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rec.Code)
	}
	event = readEvent(t, anaConn)
	if event.Event != EventTaskDeleted || event.Task.ID != task.ID {
		t.Fatalf("unexpected event %+v", event)
	}

	// Bob's socket must stay silent.
	bobConn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, data, err := bobConn.ReadMessage(); err == nil {
		t.Fatalf("Bob received another owner's event: %s", data)
	}
}

func TestWebSocket_RejectsMissingToken(t *testing.T) {
	_, mux := setupHTTP(t)
	server := httptest.NewServer(mux)
	defer server.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server.URL, ""), nil)
	if err == nil {
		t.Fatal("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want 401 handshake response, got %v", resp)
	}
}

func TestWebSocket_ClosedClientIsRemoved(t *testing.T) {
	h, mux := setupHTTP(t)
	server := httptest.NewServer(mux)
	defer server.Close()

	user, token := registerAndLogin(t, mux, "a@x.com", "pw1", "Ana")
	conn := dialWS(t, server.URL, token)
	waitForConnections(t, h.WSHub, user.ID, 1)

	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	conn.Close()
	waitForConnections(t, h.WSHub, user.ID, 0)
}

func TestWSHub_BroadcastWithoutListeners(t *testing.T) {
	hub := NewWSHub()
	hub.Broadcast(EventTaskCreated, models.Task{ID: uuid.New(), OwnerID: uuid.New()})

	var nilHub *WSHub
	nilHub.Broadcast(EventTaskCreated, models.Task{})
}

func TestWSHub_StalledClientDoesNotBlockOtherOwners(t *testing.T) {
	h, mux := setupHTTP(t)
	server := httptest.NewServer(mux)
	defer server.Close()

	ana, anaToken := registerAndLogin(t, mux, "a@x.com", "pw1", "Ana")
	bob, bobToken := registerAndLogin(t, mux, "b@x.com", "pw2", "Bob")
	anaConn := dialWS(t, server.URL, anaToken)
	bobConn := dialWS(t, server.URL, bobToken)
	waitForConnections(t, h.WSHub, ana.ID, 1)
	waitForConnections(t, h.WSHub, bob.ID, 1)

	// Hold Ana's writer as if her socket were stuck mid-write.
	stalled := h.WSHub.clientsOf(ana.ID)[0]
	stalled.writeMu.Lock()

	anaTask := models.Task{ID: uuid.New(), OwnerID: ana.ID, Title: "Buy milk"}
	anaDone := make(chan struct{})
	go func() {
		h.WSHub.Broadcast(EventTaskCreated, anaTask)
		close(anaDone)
	}()
	time.Sleep(50 * time.Millisecond)

	bobTask := models.Task{ID: uuid.New(), OwnerID: bob.ID, Title: "Walk dog"}
	bobDone := make(chan struct{})
	go func() {
		h.WSHub.Broadcast(EventTaskCreated, bobTask)
		close(bobDone)
	}()
	select {
	case <-bobDone:
	case <-time.After(time.Second):
		stalled.writeMu.Unlock()
		t.Fatal("broadcast to Bob waited on Ana's stalled socket")
	}
	if event := readEvent(t, bobConn); event.Task.ID != bobTask.ID {
		t.Fatalf("Bob got %+v", event)
	}
	if got := h.WSHub.ConnectionCount(ana.ID); got != 1 {
		t.Fatalf("want Ana's socket still registered, got %d", got)
	}

	stalled.writeMu.Unlock()
	<-anaDone
	if event := readEvent(t, anaConn); event.Task.ID != anaTask.ID {
		t.Fatalf("Ana got %+v", event)
	}
}

func TestWebSocket_WithoutHub(t *testing.T) {
	h, mux := setupHTTP(t)
	h.WSHub = nil
	user, token := registerAndLogin(t, mux, "a@x.com", "pw1", "Ana")

	rec := doJSON(t, mux, http.MethodGet, "/ws", token, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503, got %d body=%s", rec.Code, rec.Body.String())
	}

	// Task changes still succeed with nobody to notify.
	createTask(t, mux, token, models.TaskInput{Title: "Buy milk"})
	if got := listTitles(t, mux, token, ""); len(got) != 1 {
		t.Fatalf("want 1 task for %s, got %v", user.ID, got)
	}
}
