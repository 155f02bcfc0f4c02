package notification

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"nutrishaweb/src/internal/domain"
)

// clientBuffer is how many undelivered messages a slow client may queue
// before further broadcasts to it are dropped.
const clientBuffer = 4

// Hub fans reload messages out to connected live reload clients.
type Hub struct {
	log *logrus.Logger

	mu      sync.RWMutex
	clients map[string]chan domain.ReloadMessage
	closed  bool
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[string]chan domain.ReloadMessage),
	}
}

// Register adds a client. The returned channel is closed by Unregister or Close.
func (h *Hub) Register() (string, <-chan domain.ReloadMessage) {
	id := uuid.NewString()
	ch := make(chan domain.ReloadMessage, clientBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return id, ch
	}
	h.clients[id] = ch
	h.log.Debugf("Live reload client %s connected (%d total)", id, len(h.clients))
	return id, ch
}

func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(ch)
		h.log.Debugf("Live reload client %s disconnected (%d total)", id, len(h.clients))
	}
}

// Broadcast queues msg for every client and returns how many accepted it.
func (h *Hub) Broadcast(msg domain.ReloadMessage) int {
	if msg.Type == "" {
		msg.Type = "reload"
	}
	if msg.At == 0 {
		msg.At = time.Now().UnixMilli()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for id, ch := range h.clients {
		select {
		case ch <- msg:
			sent++
		default:
			h.log.Warnf("Live reload client %s is not keeping up, dropping message", id)
		}
	}
	if len(h.clients) > 0 {
		h.log.Infof("Notified %d live reload clients (%d changed paths)", sent, len(msg.Paths))
	}
	return sent
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client; later registrations get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.clients {
		delete(h.clients, id)
		close(ch)
	}
}
