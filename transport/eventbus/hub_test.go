package eventbus

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestClient(hub *Hub, puzzleID, username string) *Client {
	return &Client{
		hub:      hub,
		puzzleID: puzzleID,
		username: username,
		send:     make(chan []byte, sendBuffer),
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(nil, nil)

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.channels == nil {
		t.Error("Hub channels map is nil")
	}
}

func TestHubSubscribe(t *testing.T) {
	hub := NewHub(nil, nil)
	client := newTestClient(hub, "1", "alice")

	hub.Subscribe(SwapChannel("1"), client)

	if hub.SubscriberCount(SwapChannel("1")) != 1 {
		t.Errorf("Expected 1 subscriber, got %d", hub.SubscriberCount(SwapChannel("1")))
	}

	hub.Unsubscribe(SwapChannel("1"), client)

	if hub.SubscriberCount(SwapChannel("1")) != 0 {
		t.Errorf("Expected 0 subscribers, got %d", hub.SubscriberCount(SwapChannel("1")))
	}
}

func TestHubPublish(t *testing.T) {
	hub := NewHub(nil, nil)
	client := newTestClient(hub, "1", "alice")
	hub.Subscribe(SwapChannel("1"), client)

	hub.Publish(SwapChannel("1"), SwapEvent{Position0: 0, Position1: 5})

	select {
	case data := <-client.send:
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			t.Fatalf("Failed to unmarshal frame: %v", err)
		}
		if f.Type != "message" {
			t.Errorf("Expected frame type 'message', got '%s'", f.Type)
		}
		if f.Address != "global_puzzle.1" {
			t.Errorf("Expected address 'global_puzzle.1', got '%s'", f.Address)
		}
		var event SwapEvent
		if err := json.Unmarshal(f.Body, &event); err != nil {
			t.Fatalf("Failed to unmarshal body: %v", err)
		}
		if event.Position0 != 0 || event.Position1 != 5 {
			t.Errorf("Expected swap {0,5}, got %+v", event)
		}
	default:
		t.Fatal("Expected a frame in the client's send buffer")
	}
}

func TestHubPublishOrder(t *testing.T) {
	hub := NewHub(nil, nil)
	client := newTestClient(hub, "1", "alice")
	hub.Subscribe(SwapChannel("1"), client)

	for i := 0; i < 10; i++ {
		hub.Publish(SwapChannel("1"), SwapEvent{Position0: i, Position1: i + 1})
	}

	for i := 0; i < 10; i++ {
		select {
		case data := <-client.send:
			var f Frame
			json.Unmarshal(data, &f)
			var event SwapEvent
			json.Unmarshal(f.Body, &event)
			if event.Position0 != i {
				t.Fatalf("Out of order delivery: expected position0=%d, got %d", i, event.Position0)
			}
		default:
			t.Fatalf("Missing frame %d", i)
		}
	}
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub(nil, nil)

	// slow subscriber with no buffer space left
	slow := newTestClient(hub, "1", "slow")
	for len(slow.send) < cap(slow.send) {
		slow.send <- []byte("{}")
	}
	healthy := newTestClient(hub, "1", "healthy")

	hub.Subscribe(SwapChannel("1"), slow)
	hub.Subscribe(SwapChannel("1"), healthy)

	done := make(chan struct{})
	go func() {
		hub.Publish(SwapChannel("1"), SwapEvent{Position0: 1, Position1: 2})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	if len(healthy.send) != 1 {
		t.Errorf("Expected healthy subscriber to receive the event, got %d frames", len(healthy.send))
	}
}

func TestHubChannelIsolation(t *testing.T) {
	hub := NewHub(nil, nil)
	alice := newTestClient(hub, "1", "alice")
	bob := newTestClient(hub, "2", "bob")

	hub.Subscribe(SwapChannel("1"), alice)
	hub.Subscribe(SwapChannel("2"), bob)

	hub.Publish(SwapChannel("1"), SwapEvent{Position0: 0, Position1: 1})

	if len(alice.send) != 1 {
		t.Errorf("Expected alice to receive 1 frame, got %d", len(alice.send))
	}
	if len(bob.send) != 0 {
		t.Errorf("Expected bob to receive nothing, got %d frames", len(bob.send))
	}
}

func TestHandleFrame(t *testing.T) {
	t.Run("register scoped to own puzzle", func(t *testing.T) {
		hub := NewHub(nil, nil)
		client := newTestClient(hub, "1", "alice")

		hub.handleFrame(client, Frame{Type: "register", Address: SwapChannel("1")})
		if hub.SubscriberCount(SwapChannel("1")) != 1 {
			t.Error("Expected registration on own puzzle channel")
		}

		hub.handleFrame(client, Frame{Type: "register", Address: SwapChannel("2")})
		if hub.SubscriberCount(SwapChannel("2")) != 0 {
			t.Error("Expected registration on foreign puzzle channel to be rejected")
		}
	})

	t.Run("cursor publish relays with connection username", func(t *testing.T) {
		hub := NewHub(nil, nil)
		sender := newTestClient(hub, "1", "alice")
		receiver := newTestClient(hub, "1", "bob")
		hub.Subscribe(CursorChannel("1"), receiver)

		var recordedUser string
		var recordedX, recordedY int
		hub.SetCursorHandler(func(puzzleID, username string, x, y int) {
			recordedUser = username
			recordedX, recordedY = x, y
		})

		body, _ := json.Marshal(CursorEvent{PositionX: 10, PositionY: 20, Username: "spoofed"})
		hub.handleFrame(sender, Frame{Type: "publish", Address: CursorChannel("1"), Body: body})

		if recordedUser != "alice" || recordedX != 10 || recordedY != 20 {
			t.Errorf("Expected cursor handler (alice,10,20), got (%s,%d,%d)", recordedUser, recordedX, recordedY)
		}

		select {
		case data := <-receiver.send:
			var f Frame
			json.Unmarshal(data, &f)
			var cursor CursorEvent
			json.Unmarshal(f.Body, &cursor)
			if cursor.Username != "alice" {
				t.Errorf("Expected relayed username 'alice', got '%s'", cursor.Username)
			}
		default:
			t.Fatal("Expected relayed cursor frame")
		}
	})

	t.Run("publish rejected on command channels", func(t *testing.T) {
		hub := NewHub(nil, nil)
		sender := newTestClient(hub, "1", "alice")
		receiver := newTestClient(hub, "1", "bob")
		hub.Subscribe(SwapChannel("1"), receiver)

		body, _ := json.Marshal(SwapEvent{Position0: 0, Position1: 1})
		hub.handleFrame(sender, Frame{Type: "publish", Address: SwapChannel("1"), Body: body})

		if len(receiver.send) != 0 {
			t.Error("Expected client publish on the swap channel to be rejected")
		}
	})
}

func TestHubDrop(t *testing.T) {
	hub := NewHub(nil, nil)
	client := newTestClient(hub, "1", "alice")
	hub.Subscribe(SwapChannel("1"), client)
	hub.Subscribe(CursorChannel("1"), client)

	hub.drop(client)

	if hub.SubscriberCount(SwapChannel("1")) != 0 {
		t.Error("Expected client removed from swap channel")
	}
	if hub.SubscriberCount(CursorChannel("1")) != 0 {
		t.Error("Expected client removed from cursor channel")
	}

	// send channel must be closed
	if _, ok := <-client.send; ok {
		t.Error("Expected send channel to be closed")
	}
}

func TestServeBusEndToEnd(t *testing.T) {
	hub := NewHub(nil, nil)

	disconnected := make(chan string, 1)
	hub.SetDisconnectHandler(func(puzzleID, username string) {
		disconnected <- username
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeBus(w, r, "1", "alice")
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}

	// register for swaps, then receive a published event
	if err := conn.WriteJSON(Frame{Type: "register", Address: SwapChannel("1")}); err != nil {
		t.Fatalf("Failed to send register frame: %v", err)
	}

	// wait for the registration to land
	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount(SwapChannel("1")) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Registration never landed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish(SwapChannel("1"), SwapEvent{Position0: 3, Position1: 7})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}
	if f.Address != "global_puzzle.1" {
		t.Errorf("Expected address 'global_puzzle.1', got '%s'", f.Address)
	}

	// closing the connection must trigger the disconnect handler
	conn.Close()
	select {
	case username := <-disconnected:
		if username != "alice" {
			t.Errorf("Expected disconnect for 'alice', got '%s'", username)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Disconnect handler never fired")
	}
}
