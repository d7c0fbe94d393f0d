package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/caiga/companion/internal/engine"
)

const (
	subscriberBuffer = 16
	writeTimeout     = 5 * time.Second
)

// #region hub

// Hub fans committed decisions out to websocket subscribers. A subscriber that falls
// behind loses messages rather than stalling the engine.
type Hub struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan []byte]struct{})}
}

// Publish is registered with engine.Subscribe and runs under the engine lock, so it never blocks.
func (h *Hub) Publish(rec engine.DecisionRecord) {
	msg, err := json.Marshal(rec)
	if err != nil {
		log.Printf("[API] marshal decision %s: %v", rec.ID, err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) subscribe() (chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
}

// #endregion hub

// #region stream

// ServeHTTP upgrades to a websocket and streams decisions until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // local overlay clients only
	})
	if err != nil {
		log.Printf("[API] websocket accept failed: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ch, unsubscribe := h.subscribe()
	defer unsubscribe()
	log.Printf("[API] decision stream client connected (%d total)", h.Subscribers())

	// The stream is one-way; CloseRead handles control frames and cancels ctx on disconnect.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			if err := write(ctx, conn, msg); err != nil {
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, msg)
}

// #endregion stream
