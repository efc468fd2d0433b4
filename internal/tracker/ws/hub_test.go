package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_SubscribeAndBroadcast(t *testing.T) {
	h := NewHub(func(*http.Request) bool { return true })
	conn := dialHub(t, h)

	if err := conn.WriteJSON(ClientMsg{Type: "subscribe", BetID: "b1"}); err != nil {
		t.Fatal(err)
	}
	// Espera a assinatura assentar no loop de leitura do servidor
	deadline := time.Now().Add(time.Second)
	for {
		h.mu.RLock()
		n := len(h.subs["b1"])
		h.mu.RUnlock()
		if n == 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	h.Broadcast(BetUpdate{BetID: "b1", Payload: map[string]string{"prop_status": "won"}})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var got BetUpdate
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if got.BetID != "b1" {
		t.Errorf("broadcast must reach the subscribed client, got %+v", got)
	}
}

func TestHub_ConcurrentPingAndBroadcast(t *testing.T) {
	h := NewHub(func(*http.Request) bool { return true })
	conn := dialHub(t, h)

	if err := conn.WriteJSON(ClientMsg{Type: "subscribe", BetID: "b1"}); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(time.Second)
	for {
		h.mu.RLock()
		n := len(h.subs["b1"])
		h.mu.RUnlock()
		if n == 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Pongs (goroutine do reader) e broadcasts (goroutine do subscriber)
	// escrevem no mesmo conn; as escritas são serializadas por cliente.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			h.Broadcast(BetUpdate{BetID: "b1", Payload: i})
		}
	}()
	for i := 0; i < 20; i++ {
		if err := conn.WriteJSON(ClientMsg{Type: "ping"}); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()

	// Todas as 40 mensagens chegam íntegras (20 pongs + 20 broadcasts)
	pongs, updates := 0, 0
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for pongs+updates < 40 {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read after %d pongs / %d updates: %v", pongs, updates, err)
		}
		var frame struct {
			Type  string `json:"type"`
			BetID string `json:"betId"`
		}
		if err := json.Unmarshal(raw, &frame); err != nil {
			t.Fatalf("malformed frame: %s", raw)
		}
		switch {
		case frame.Type == "pong":
			pongs++
		case frame.BetID == "b1":
			updates++
		default:
			t.Fatalf("unexpected frame: %s", raw)
		}
	}
}
