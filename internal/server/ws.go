package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/karanbalaji/spatial-presenter/internal/app"
	"github.com/karanbalaji/spatial-presenter/internal/deck"
	"github.com/karanbalaji/spatial-presenter/internal/gesture"
	"github.com/karanbalaji/spatial-presenter/internal/nav"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Event is pushed to every connected presenter view.
type Event struct {
	Type     string      `json:"type"`
	Index    int         `json:"index"`
	Count    int         `json:"count"`
	From     *int        `json:"from,omitempty"`
	Source   string      `json:"source,omitempty"`
	Intent   string      `json:"intent,omitempty"`
	WindowMS int64       `json:"window_ms,omitempty"`
	Status   *app.Status `json:"status,omitempty"`
}

// inbound is a message from a view: a classifier result, a transcript or a
// direct intent.
type inbound struct {
	Type       string  `json:"type"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Transcript string  `json:"transcript"`
	Intent     string  `json:"intent"`
	Source     string  `json:"source"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans controller transitions, deck changes and status updates out to
// WebSocket clients, and feeds their input back into the session.
type Hub struct {
	app  *app.App
	deck *deck.Deck
	log  *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
	unsubs  []func()
}

// NewHub subscribes a Hub to a. d may be nil.
func NewHub(a *app.App, d *deck.Deck, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		app:     a,
		deck:    d,
		log:     logger,
		clients: make(map[*client]struct{}),
	}

	h.unsubs = append(h.unsubs,
		a.Controller().Subscribe(h.onTransition),
		a.WatchStatus(h.onStatus),
	)
	if d != nil {
		d.OnChange(h.onDeckChange)
	}
	return h
}

func (h *Hub) onTransition(t nav.Transition) {
	from := t.From
	h.broadcast(Event{
		Type:   "slide",
		Index:  t.To,
		Count:  t.Count,
		From:   &from,
		Source: string(t.Source),
		Intent: t.Intent.String(),
	})
}

func (h *Hub) onDeckChange() {
	st := h.app.Controller().Snapshot()
	h.broadcast(Event{Type: "deck", Index: st.Index, Count: st.Count})
}

func (h *Hub) onStatus(s app.Status) {
	h.broadcast(Event{Type: "status", Status: &s})
}

func (h *Hub) hello() Event {
	st := h.app.Controller().Snapshot()
	status := h.app.Status()
	return Event{
		Type:     "hello",
		Index:    st.Index,
		Count:    st.Count,
		WindowMS: st.Window.Milliseconds(),
		Status:   &status,
	}
}

// broadcast queues ev for every client. A client whose buffer is full is dropped.
func (h *Hub) broadcast(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("marshal event", slog.String("type", ev.Type), slog.String("error", err.Error()))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warn("dropping slow event client", slog.String("remote", c.conn.RemoteAddr().String()))
			delete(h.clients, c)
			c.close()
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close unsubscribes the hub and disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, unsub := range h.unsubs {
		unsub()
	}
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

// ServeHTTP upgrades the request and serves the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade", slog.String("error", err.Error()))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	hello, _ := json.Marshal(h.hello())
	c.send <- hello

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read", slog.String("error", err.Error()))
			}
			return
		}
		h.handleInbound(data)
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) handleInbound(data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		h.log.Warn("malformed event message", slog.String("error", err.Error()))
		return
	}

	switch msg.Type {
	case "gesture":
		h.app.HandleGesture(gesture.Event{Label: msg.Label, Confidence: msg.Confidence})
	case "transcript":
		h.app.HandleTranscript(strings.ToLower(strings.TrimSpace(msg.Transcript)))
	case "intent":
		source := nav.SourceManual
		if msg.Source != "" {
			var err error
			if source, err = nav.ParseSource(msg.Source); err != nil {
				h.log.Warn("malformed event message", slog.String("error", err.Error()))
				return
			}
		}
		intent, err := nav.ParseIntent(msg.Intent)
		if err != nil || !intent.Valid() {
			h.log.Warn("malformed event message", slog.String("intent", msg.Intent))
			return
		}
		h.app.Navigate(source, intent)
	default:
		h.log.Warn("unknown event message", slog.String("type", msg.Type))
	}
}
