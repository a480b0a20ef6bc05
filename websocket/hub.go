package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"wavscribe/types"
)

// AllUploads is the subscription key of clients following every upload
const AllUploads = "all"

// Hub interface defines the methods for managing WebSocket connections
type Hub interface {
	Run(ctx context.Context)
	Broadcast(msg types.ProgressMessage)
	RegisterClient(client *Client)
	UnregisterClient(client *Client)
	ClientCount(uploadID string) int
}

// hub maintains the set of active clients and broadcasts messages to them
type hub struct {
	// Registered clients mapped by upload ID
	clients map[string]map[*Client]bool

	// Terminal message of each settled upload, replayed to late subscribers
	final map[string]types.ProgressMessage

	broadcast  chan types.ProgressMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub() Hub {
	return &hub{
		clients:    make(map[string]map[*Client]bool),
		final:      make(map[string]types.ProgressMessage),
		broadcast:  make(chan types.ProgressMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main event loop and returns when ctx is done
func (h *hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.uploadID] == nil {
				h.clients[client.uploadID] = make(map[*Client]bool)
			}
			h.clients[client.uploadID][client] = true
			if msg, ok := h.final[client.uploadID]; ok {
				h.sendFinal(client, msg)
			}
			h.mu.Unlock()
			slog.Debug("websocket client connected", "upload", client.uploadID)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			slog.Debug("websocket client disconnected", "upload", client.uploadID)

		case message := <-h.broadcast:
			h.mu.Lock()
			h.deliver(message.UploadID, message)
			h.deliver(AllUploads, message)
			h.mu.Unlock()
		}
	}
}

// deliver sends message to the clients subscribed under key, dropping
// clients whose buffers are full. Callers hold h.mu.
func (h *hub) deliver(key string, message types.ProgressMessage) {
	clients, ok := h.clients[key]
	if !ok {
		return
	}
	for client := range clients {
		if isTerminal(message) && key != AllUploads {
			h.sendFinal(client, message)
			continue
		}
		select {
		case client.send <- message:
		default:
			close(client.send)
			delete(clients, client)
		}
	}
	if len(clients) == 0 {
		delete(h.clients, key)
	}
}

// sendFinal delivers the terminal message of an upload at most once per
// client. Callers hold h.mu.
func (h *hub) sendFinal(client *Client, message types.ProgressMessage) {
	if client.finalSent {
		return
	}
	client.finalSent = true
	select {
	case client.send <- message:
	default:
		close(client.send)
		delete(h.clients[client.uploadID], client)
	}
}

func isTerminal(msg types.ProgressMessage) bool {
	return msg.Type == types.MessageTypeComplete || msg.Type == types.MessageTypeError
}

// remove drops client if still registered. Callers hold h.mu.
func (h *hub) remove(client *Client) {
	clients, ok := h.clients[client.uploadID]
	if !ok {
		return
	}
	if _, ok := clients[client]; ok {
		delete(clients, client)
		close(client.send)
		if len(clients) == 0 {
			delete(h.clients, client.uploadID)
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, clients := range h.clients {
		for client := range clients {
			close(client.send)
		}
		delete(h.clients, key)
	}
}

// Broadcast queues a progress message for the clients of its upload.
// Terminal messages are kept for clients that subscribe later and are never
// dropped.
func (h *hub) Broadcast(msg types.ProgressMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	if isTerminal(msg) {
		h.mu.Lock()
		h.final[msg.UploadID] = msg
		h.mu.Unlock()

		select {
		case h.broadcast <- msg:
		case <-h.done:
		}
		return
	}

	select {
	case h.broadcast <- msg:
	default:
		slog.Warn("websocket broadcast channel full, dropping message", "upload", msg.UploadID, "type", msg.Type)
	}
}

// RegisterClient registers a new client with the hub
func (h *hub) RegisterClient(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

// UnregisterClient unregisters a client from the hub
func (h *hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns how many clients follow uploadID
func (h *hub) ClientCount(uploadID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[uploadID])
}
