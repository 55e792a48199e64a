package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// waitForClients blocks until the hub has registered n clients.
func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.clientCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d clients", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func dialWebSocket(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	return conn
}

func TestHubBroadcastReachesClient(t *testing.T) {
	s := testServer()
	go s.hub.Run()
	defer s.hub.Close()

	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	conn := dialWebSocket(t, ts, s.config.Server.WebSocketPath)
	defer conn.Close()
	waitForClients(t, s.hub, 1)

	payload, _ := json.Marshal(map[string]string{"journalId": "j1"})
	s.hub.BroadcastEvent(MsgTypeJournalUpdate, "journal:j1", payload)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}

	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msg.Type != MsgTypeJournalUpdate {
		t.Errorf("expected %s, got %s", MsgTypeJournalUpdate, msg.Type)
	}
	if msg.Channel != "journal:j1" {
		t.Errorf("expected channel journal:j1, got %s", msg.Channel)
	}
}

func TestHubSubscriptionFiltering(t *testing.T) {
	s := testServer()
	go s.hub.Run()
	defer s.hub.Close()

	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	conn := dialWebSocket(t, ts, s.config.Server.WebSocketPath)
	defer conn.Close()
	waitForClients(t, s.hub, 1)

	sub, _ := json.Marshal(WSMessage{Type: MsgTypeSubscribe, Channel: "journal:a"})
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	// Give the read pump a moment to register the subscription.
	time.Sleep(100 * time.Millisecond)

	payload, _ := json.Marshal(map[string]string{"journalId": "b"})
	s.hub.BroadcastEvent(MsgTypeJournalUpdate, "journal:b", payload)
	payload, _ = json.Marshal(map[string]string{"journalId": "a"})
	s.hub.BroadcastEvent(MsgTypeJournalUpdate, "journal:a", payload)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}

	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msg.Channel != "journal:a" {
		t.Errorf("expected only the subscribed channel, got %s", msg.Channel)
	}
}

func TestCreateJournalBroadcastsUpdate(t *testing.T) {
	s := testServer()
	go s.hub.Run()
	defer s.hub.Close()

	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	conn := dialWebSocket(t, ts, s.config.Server.WebSocketPath)
	defer conn.Close()
	waitForClients(t, s.hub, 1)

	createJournal(t, s, nil)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}

	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msg.Type != MsgTypeJournalUpdate {
		t.Errorf("expected journal update, got %s", msg.Type)
	}
}
