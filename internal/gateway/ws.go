package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSHub serves renderer connections over websocket. Every connection gets
// the event stream and may send Input messages back.
type WSHub struct {
	upgrader websocket.Upgrader
	clients  map[*wsClient]struct{}
	handler  InputHandler
	queue    int
	closed   bool
	mu       sync.RWMutex
	logger   *zap.Logger
}

type wsClient struct {
	conn   *websocket.Conn
	out    chan []byte
	frames bool
}

// NewWSHub creates a hub whose clients buffer up to queue outgoing messages.
// Messages for a client with a full buffer are dropped.
func NewWSHub(queue int, logger *zap.Logger) *WSHub {
	if queue <= 0 {
		queue = 64
	}
	return &WSHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
		queue:   queue,
		logger:  logger,
	}
}

func (h *WSHub) Name() string { return "ws" }

func (h *WSHub) OnInput(fn InputHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = fn
}

// Clients returns the number of connected renderers.
func (h *WSHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues the event on every client.
func (h *WSHub) Publish(_ context.Context, ev *Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if ev.Type == EventFrame && !c.frames {
			continue
		}
		select {
		case c.out <- b:
		default:
		}
	}
	return nil
}

// ServeHTTP upgrades the request. Pass ?frames=0 to skip per-tick frames.
func (h *WSHub) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	c := &wsClient{
		conn:   conn,
		out:    make(chan []byte, h.queue),
		frames: r.URL.Query().Get("frames") != "0",
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("renderer connected", zap.String("remote", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case b := <-c.out:
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var in Input
		if err := json.Unmarshal(msg, &in); err != nil {
			h.reply(c, err)
			continue
		}
		in.Source = h.Name()
		h.mu.RLock()
		fn := h.handler
		h.mu.RUnlock()
		if fn == nil {
			continue
		}
		if err := fn(ctx, &in); err != nil {
			h.reply(c, err)
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	cancel()
	wg.Wait()
	h.logger.Info("renderer disconnected", zap.String("remote", r.RemoteAddr))
}

func (h *WSHub) reply(c *wsClient, err error) {
	b, _ := json.Marshal(map[string]string{"type": "error", "error": err.Error()})
	select {
	case c.out <- b:
	default:
	}
}

// Close disconnects every renderer and refuses new ones.
func (h *WSHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		c.conn.Close()
	}
	return nil
}
