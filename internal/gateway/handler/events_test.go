package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"timemachine/internal/engine"
	"timemachine/internal/gateway/service/taskevent"
)

func dialEvents(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	return conn
}

func TestEventsDeliveredOverWebsocket(t *testing.T) {
	hub := taskevent.NewHub()
	h := NewEventsHandler(hub)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/events", h.HandleEvents)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn := dialEvents(t, srv)
	defer conn.Close()

	// The subscription is registered before Upgrade returns to the dialer,
	// but give the handler a moment on loaded machines.
	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.SubscriberCount() == 0 {
		t.Fatal("subscriber never registered")
	}

	hub.Publish(taskevent.Event{
		TaskID: "task-1",
		Kind:   engine.OpAnalyze,
		Phase:  taskevent.PhaseStarted,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got taskevent.Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if got.TaskID != "task-1" || got.Phase != taskevent.PhaseStarted {
		t.Fatalf("event = %+v", got)
	}
	if got.At.IsZero() {
		t.Fatal("event timestamp not stamped")
	}
}

func TestEventsSubscriberDetachesOnClose(t *testing.T) {
	hub := taskevent.NewHub()
	h := NewEventsHandler(hub)
	srv := httptest.NewServer(http.HandlerFunc(h.HandleEvents))
	defer srv.Close()

	conn := dialEvents(t, srv)

	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	conn.Close()

	deadline = time.Now().Add(2 * time.Second)
	for hub.SubscriberCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := hub.SubscriberCount(); got != 0 {
		t.Fatalf("subscriber still attached after close: %d", got)
	}
}
