package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"fleetguard/internal/inspection"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		q := r.URL.Query()
		NewClient(hub, conn, q.Get("worker"), q.Get("admin") == "1").Serve()
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("only %d of %d clients registered", hub.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubRoutesEventsByOwner(t *testing.T) {
	hub, srv := startHub(t)
	admin := dial(t, srv, "worker=A001&admin=1")
	w1 := dial(t, srv, "worker=W001")
	w2 := dial(t, srv, "worker=W002")
	waitForClients(t, hub, 3)

	hub.Publish(inspection.Event{Type: inspection.EventSessionStarted, Handle: "h1", OperatorID: "W001", VehicleID: "T001"})
	hub.Publish(inspection.Event{Type: inspection.EventCursorMoved, Handle: "h2", OperatorID: "W002", Cursor: 1})

	var e inspection.Event
	admin.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := admin.ReadJSON(&e); err != nil || e.Handle != "h1" {
		t.Fatalf("admin first event: %+v %v", e, err)
	}
	if err := admin.ReadJSON(&e); err != nil || e.Handle != "h2" {
		t.Fatalf("admin second event: %+v %v", e, err)
	}

	w1.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := w1.ReadJSON(&e); err != nil || e.Type != inspection.EventSessionStarted || e.VehicleID != "T001" {
		t.Fatalf("W001 event: %+v %v", e, err)
	}
	w1.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if err := w1.ReadJSON(&e); err == nil {
		t.Fatalf("W001 received another worker's event: %+v", e)
	}

	w2.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := w2.ReadJSON(&e); err != nil || e.Handle != "h2" || e.Cursor != 1 {
		t.Fatalf("W002 event: %+v %v", e, err)
	}
}

func TestHubForgetsClosedClients(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "worker=W001")
	waitForClients(t, hub, 1)

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("closed client still registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	hub.Publish(inspection.Event{Type: inspection.EventItemUpdated, OperatorID: "W001"})
}
