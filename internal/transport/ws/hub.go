package ws

import (
	"encoding/json"
	"log"
	"sync"

	"stillmind/internal/model"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MsgCountsUpdate MessageType = "counts_update"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub manages the set of clients watching the live presence counts. Every
// connected client receives every counts update; there is no addressing.
type Hub struct {
	conns map[*Connection]bool

	mu sync.RWMutex

	// Channels for coordination
	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *Message

	// Last counts pushed; replayed to clients as they connect so nobody
	// stares at an empty screen until the next heartbeat.
	last []byte
}

// Connection represents a WebSocket connection
type Connection struct {
	Send chan []byte
	Hub  *Hub
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	h := &Hub{
		conns:      make(map[*Connection]bool),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan *Message, 256),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.conns[conn] = true
			if h.last != nil {
				select {
				case conn.Send <- h.last:
				default:
				}
			}
			h.mu.Unlock()
			log.Printf("presence watcher connected (%d total)", h.watcherCount())

		case conn := <-h.unregister:
			h.mu.Lock()
			if h.conns[conn] {
				delete(h.conns, conn)
				close(conn.Send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			data, _ := json.Marshal(msg)
			h.mu.Lock()
			h.last = data
			for conn := range h.conns {
				select {
				case conn.Send <- data:
				default:
					// Drop message if buffer full
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) watcherCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// BroadcastCounts pushes fresh presence counts to every watcher
// (implements service.Broadcaster)
func (h *Hub) BroadcastCounts(counts model.PresenceCounts) {
	data, _ := json.Marshal(counts)
	h.broadcast <- &Message{
		Type:    MsgCountsUpdate,
		Payload: data,
	}
}
