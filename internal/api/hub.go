package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Timeouts following the Gorilla chat example.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second // must be less than pongWait

	// sendBuffer bounds how far a slow subscriber may lag before it is
	// dropped.
	sendBuffer = 8
)

// Hub fans run results out to websocket subscribers. Each subscriber owns a
// buffered send channel drained by its own writer goroutine, so a stalled
// connection never blocks broadcasts to the others. Subscribers are
// read-only; anything they send besides control frames is discarded.
type Hub struct {
	mu       sync.Mutex
	subs     map[*subscriber]struct{}
	log      *zap.SugaredLogger
	upgrader websocket.Upgrader
}

type subscriber struct {
	conn *websocket.Conn
	send chan any
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		subs: make(map[*subscriber]struct{}),
		log:  log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Subscribe upgrades the request and keeps the connection registered until
// the peer goes away or falls too far behind.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade failed", "err", err)
		return
	}

	sub := &subscriber{conn: conn, send: make(chan any, sendBuffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	h.log.Debugw("websocket subscriber connected", "remote", conn.RemoteAddr())

	go h.writeLoop(sub)
	go h.readLoop(sub)
}

// Broadcast queues one JSON message for every subscriber. A subscriber whose
// buffer is full is dropped rather than waited on.
func (h *Hub) Broadcast(v any) {
	h.mu.Lock()
	var lagging []*subscriber
	for sub := range h.subs {
		select {
		case sub.send <- v:
		default:
			lagging = append(lagging, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range lagging {
		h.log.Debugw("websocket subscriber lagging, dropping", "remote", sub.conn.RemoteAddr())
		h.drop(sub)
	}
}

// writeLoop owns all writes on the connection: queued broadcasts and the
// keepalive pings.
func (h *Hub) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case v, ok := <-sub.send:
			if !ok {
				// dropped by the hub
				sub.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeWait))
				return
			}
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteJSON(v); err != nil {
				h.log.Debugw("websocket write failed", "remote", sub.conn.RemoteAddr(), "err", err)
				h.drop(sub)
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(sub)
				return
			}
		}
	}
}

// readLoop consumes control frames and detects the peer going away.
func (h *Hub) readLoop(sub *subscriber) {
	defer h.drop(sub)
	sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// drop unregisters a subscriber and closes its connection. Safe to call more
// than once; only the first call closes the send channel.
func (h *Hub) drop(sub *subscriber) {
	h.mu.Lock()
	_, registered := h.subs[sub]
	if registered {
		delete(h.subs, sub)
		close(sub.send)
	}
	h.mu.Unlock()
	if registered {
		sub.conn.Close()
	}
}

// subscribers reports the current subscriber count.
func (h *Hub) subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
