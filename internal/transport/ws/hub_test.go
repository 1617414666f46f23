package ws

import (
	"encoding/json"
	"testing"
	"time"

	"stillmind/internal/model"
)

func recv(t *testing.T, ch chan []byte) *Message {
	t.Helper()
	select {
	case data := <-ch:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return &msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestHubBroadcastsCounts(t *testing.T) {
	hub := NewHub()
	conn := &Connection{Send: make(chan []byte, 8), Hub: hub}
	hub.Register(conn)

	hub.BroadcastCounts(model.PresenceCounts{ActiveCount: 4, TotalCount: 99})

	msg := recv(t, conn.Send)
	if msg.Type != MsgCountsUpdate {
		t.Errorf("type = %q", msg.Type)
	}
	var counts model.PresenceCounts
	if err := json.Unmarshal(msg.Payload, &counts); err != nil {
		t.Fatal(err)
	}
	if counts.ActiveCount != 4 || counts.TotalCount != 99 {
		t.Errorf("counts = %+v", counts)
	}
}

func TestHubReplaysLastCountsToNewWatcher(t *testing.T) {
	hub := NewHub()

	// First watcher observes the broadcast so we know the hub processed it.
	first := &Connection{Send: make(chan []byte, 8), Hub: hub}
	hub.Register(first)
	hub.BroadcastCounts(model.PresenceCounts{ActiveCount: 2, TotalCount: 10})
	recv(t, first.Send)

	// A watcher connecting afterwards gets the last counts immediately.
	late := &Connection{Send: make(chan []byte, 8), Hub: hub}
	hub.Register(late)

	msg := recv(t, late.Send)
	var counts model.PresenceCounts
	if err := json.Unmarshal(msg.Payload, &counts); err != nil {
		t.Fatal(err)
	}
	if counts.ActiveCount != 2 || counts.TotalCount != 10 {
		t.Errorf("replayed counts = %+v", counts)
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	hub := NewHub()
	conn := &Connection{Send: make(chan []byte, 8), Hub: hub}
	hub.Register(conn)
	hub.Unregister(conn)

	select {
	case _, ok := <-conn.Send:
		if ok {
			t.Error("expected the send channel to be closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send channel never closed")
	}
}
