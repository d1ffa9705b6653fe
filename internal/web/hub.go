package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"energydash/internal/dashboard"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard is served on the local network
	},
}

// Message types pushed to browsers
const (
	MessageView   = "view"
	MessageReload = "reload"
)

// Message is one websocket frame sent to the browser
type Message struct {
	Type    string          `json:"type"`
	View    *dashboard.View `json:"view,omitempty"`
	DelayMS int64           `json:"delay_ms,omitempty"`
}

// Hub keeps the connected browsers and pushes every view to all of them
type Hub struct {
	logger *zap.Logger

	clients    map[*wsClient]bool
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	mu         sync.RWMutex

	initial func() (dashboard.View, bool)

	// the reload notice bypasses the lossy broadcast queue
	reloadMu     sync.Mutex
	reloadFrame  []byte
	reloadSignal chan struct{}

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub. initial, if set, provides the view a browser gets
// right after connecting.
func NewHub(initial func() (dashboard.View, bool), logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:     logger,
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		initial:    initial,
		stopCh:     make(chan struct{}),

		reloadSignal: make(chan struct{}, 1),
	}
}

// Start runs the hub loop
func (h *Hub) Start() {
	h.wg.Add(1)
	go h.run()
	h.logger.Info("Websocket hub started")
}

// Stop disconnects all browsers and ends the hub loop
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
	})
	h.wg.Wait()
	h.logger.Info("Websocket hub stopped")
}

// ClientCount returns the number of connected browsers
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishView sends view to every browser. It never blocks; a frame is
// dropped when the hub is backed up.
func (h *Hub) PublishView(view dashboard.View) {
	h.publish(Message{Type: MessageView, View: &view})
}

// BroadcastReload tells every connected browser to reload after delay.
// Unlike views it is never dropped: queued views make room for it.
func (h *Hub) BroadcastReload(delay time.Duration) {
	data, err := json.Marshal(Message{Type: MessageReload, DelayMS: delay.Milliseconds()})
	if err != nil {
		h.logger.Error("Failed to encode reload message", zap.Error(err))
		return
	}
	h.reloadMu.Lock()
	h.reloadFrame = data
	h.reloadMu.Unlock()

	select {
	case h.reloadSignal <- struct{}{}:
	default: // already signalled, the loop picks up the latest frame
	}
}

func (h *Hub) publish(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode websocket message", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("Websocket broadcast queue full, dropping message",
			zap.String("type", msg.Type))
	}
}

func (h *Hub) run() {
	defer h.wg.Done()

	for {
		select {
		case <-h.stopCh:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.sendInitial(client)
			h.logger.Debug("Websocket client connected", zap.Int("clients", count))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Websocket client disconnected", zap.Int("clients", count))

		case <-h.reloadSignal:
			h.reloadMu.Lock()
			data := h.reloadFrame
			h.reloadFrame = nil
			h.reloadMu.Unlock()
			if data == nil {
				continue
			}
			h.mu.RLock()
			for client := range h.clients {
				client.sendControl(data)
			}
			count := len(h.clients)
			h.mu.RUnlock()
			h.logger.Info("Reload sent to browsers", zap.Int("clients", count))

		case data := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// slow browser, it gets the next view
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) sendInitial(client *wsClient) {
	if h.initial == nil {
		return
	}
	view, ok := h.initial()
	if !ok {
		return
	}
	data, err := json.Marshal(Message{Type: MessageView, View: &view})
	if err != nil {
		h.logger.Error("Failed to encode initial view", zap.Error(err))
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

// sendControl queues data for the browser, discarding the oldest queued
// frames when the buffer is full. Only the hub loop sends on c.send.
func (c *wsClient) sendControl(data []byte) {
	for {
		select {
		case c.send <- data:
			return
		default:
		}
		select {
		case <-c.send:
		default:
		}
	}
}

// ServeWS upgrades the request and registers the browser
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	select {
	case h.register <- client:
	case <-h.stopCh:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump only handles control frames; browsers send commands over HTTP
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopCh:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("Websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
