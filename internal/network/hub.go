// Package network exposes the engine to browser clients over WebSocket and HTTP.
// Clients send commands; every engine event is broadcast back.
package network

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/CookieClicker/server/internal/domain/economy"
	"github.com/MRamiBalles/CookieClicker/server/internal/engine"
	"github.com/MRamiBalles/CookieClicker/server/internal/events"
	"github.com/MRamiBalles/CookieClicker/server/internal/platform/logger"
	"github.com/MRamiBalles/CookieClicker/server/internal/platform/metrics"
)

// Commander is the slice of the engine that remote clients may drive.
type Commander interface {
	Click() float64
	Purchase(ctx context.Context, kind economy.Kind) error
	Prestige(ctx context.Context) (int, error)
	Save(ctx context.Context) error
	Load(ctx context.Context) error
	SetSoundEnabled(ctx context.Context, enabled bool)
	SetNumberFormat(ctx context.Context, mode economy.NumberFormat) error
	View() engine.View
}

// HubOptions sizes buffers and the per-client command rate.
type HubOptions struct {
	BroadcastBuffer      int
	ClientSendBuffer     int
	MaxMessagesPerSecond float64
	MessageBurst         int
}

// DefaultHubOptions matches the server defaults.
func DefaultHubOptions() HubOptions {
	return HubOptions{
		BroadcastBuffer:      256,
		ClientSendBuffer:     64,
		MaxMessagesPerSecond: 30,
		MessageBurst:         60,
	}
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	game       Commander
	opts       HubOptions
	clients    map[*Client]bool
	broadcast  chan []byte
	unregister chan *Client
	done       chan struct{} // closed when Run stops
	mu         sync.Mutex
	logger     *logger.Logger
	metrics    *metrics.Collector
}

// NewHub initializes a new WebSocket Hub.
func NewHub(game Commander, log *logger.Logger, m *metrics.Collector, opts HubOptions) *Hub {
	def := DefaultHubOptions()
	if opts.BroadcastBuffer <= 0 {
		opts.BroadcastBuffer = def.BroadcastBuffer
	}
	if opts.ClientSendBuffer <= 0 {
		opts.ClientSendBuffer = def.ClientSendBuffer
	}
	if opts.MaxMessagesPerSecond <= 0 {
		opts.MaxMessagesPerSecond = def.MaxMessagesPerSecond
	}
	if opts.MessageBurst <= 0 {
		opts.MessageBurst = def.MessageBurst
	}
	if m == nil {
		m = metrics.Get()
	}
	return &Hub{
		game:       game,
		opts:       opts,
		broadcast:  make(chan []byte, opts.BroadcastBuffer),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		logger:     log,
		metrics:    m,
	}
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			close(h.done)
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
				h.metrics.RecordWSConnection(-1)
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket Hub shutting down.")
			return
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.metrics.RecordWSConnection(-1)
				h.logger.Info("WebSocket client disconnected")
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
					h.metrics.RecordWSMessage(false)
				default:
					// Too slow to keep up; it can reconnect and SYNC.
					close(client.send)
					delete(h.clients, client)
					h.metrics.RecordWSConnection(-1)
					h.logger.Warn("Dropped slow WebSocket client")
				}
			}
			h.mu.Unlock()
		}
	}
}

// add registers client synchronously so replies and broadcasts reach it as
// soon as its pumps start. It reports false once the hub has stopped.
func (h *Hub) add(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
		return false
	default:
	}
	h.clients[client] = true
	h.metrics.RecordWSConnection(1)
	h.logger.Info("New WebSocket client connected")
	return true
}

// ClientCount reports connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Attach forwards every event published on eventLog to the clients.
// It returns a function that detaches the hub.
func (h *Hub) Attach(eventLog *events.EventLog) (detach func()) {
	return eventLog.Subscribe(h.BroadcastEvent)
}

// BroadcastEvent takes a GameEvent, serializes it to JSON, and queues it for all connected clients.
// It never blocks the engine: when the queue is full the event is dropped.
func (h *Hub) BroadcastEvent(event events.GameEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Errorf("Failed to serialize GameEvent for WebSocket broadcast: %v", err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.metrics.RecordWSError()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the browser build may be served from another origin
	},
}

// ServeWS upgrades the request and starts the client's pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.metrics.RecordWSError()
		h.logger.Error("Failed to upgrade websocket connection: " + err.Error())
		return
	}

	client := NewClient(h, conn)
	// Queued before registration so the view is always the first frame.
	client.enqueue(Message{Type: MessageTypeView, Payload: h.game.View()})
	if !client.Register() {
		conn.Close()
		return
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.WritePump()
	go client.ReadPump()
}
