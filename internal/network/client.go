package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/MRamiBalles/CookieClicker/server/internal/domain/economy"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
	// Upper bound for a command, including the save it may trigger.
	commandTimeout = 5 * time.Second
)

// Command types accepted from clients.
const (
	CommandClick           = "CLICK"
	CommandPurchase        = "PURCHASE"
	CommandPrestige        = "PRESTIGE"
	CommandSave            = "SAVE"
	CommandLoad            = "LOAD"
	CommandSetSound        = "SET_SOUND"
	CommandSetNumberFormat = "SET_NUMBER_FORMAT"
	CommandSync            = "SYNC"
)

// Reply types sent to a single client. Broadcast events use their own event type.
const (
	MessageTypeView  = "VIEW"
	MessageTypeError = "ERROR"
)

var errRateLimited = errors.New("rate limit exceeded")

// PlayerAction represents an incoming command from the frontend.
type PlayerAction struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message is a reply addressed to one client.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ErrorPayload explains why a command was refused.
type ErrorPayload struct {
	Command string `json:"command"`
	Error   string `json:"error"`
}

type purchasePayload struct {
	Kind string `json:"kind"`
}

type soundPayload struct {
	Enabled *bool `json:"enabled"`
}

type numberFormatPayload struct {
	Mode string `json:"mode"`
}

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
}

// NewClient creates a new WebSocket client and returns it.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, hub.opts.ClientSendBuffer),
		limiter: rate.NewLimiter(rate.Limit(hub.opts.MaxMessagesPerSecond), hub.opts.MessageBurst),
	}
}

// Register adds the client to the hub. It reports false if the hub has stopped.
func (c *Client) Register() bool {
	return c.hub.add(c)
}

func (c *Client) unregister() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

// enqueue writes straight to the send buffer. Only safe before Register.
func (c *Client) enqueue(m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		c.hub.logger.Errorf("Failed to serialize %s reply: %v", m.Type, err)
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// reply sends m to this client only, unless the hub already dropped it.
func (c *Client) reply(m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		c.hub.logger.Errorf("Failed to serialize %s reply: %v", m.Type, err)
		return
	}
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- data:
		c.hub.metrics.RecordWSMessage(false)
	default:
	}
}

func (c *Client) replyError(command string, err error) {
	c.reply(Message{Type: MessageTypeError, Payload: ErrorPayload{Command: command, Error: err.Error()}})
}

// ReadPump pumps messages from the websocket connection to the engine.
func (c *Client) ReadPump() {
	defer func() {
		c.unregister()
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.metrics.RecordWSError()
				c.hub.logger.Errorf("WebSocket read error: %v", err)
			}
			break
		}
		c.hub.metrics.RecordWSMessage(true)

		var action PlayerAction
		if err := json.Unmarshal(message, &action); err != nil {
			c.hub.logger.Warn("Failed to parse PlayerAction from WebSocket. err: " + err.Error())
			c.replyError("", fmt.Errorf("malformed command: %w", err))
			continue
		}

		c.handlePlayerAction(action)
	}
}

func (c *Client) handlePlayerAction(action PlayerAction) {
	if !c.limiter.Allow() {
		c.hub.metrics.RecordWSRateLimited()
		c.replyError(action.Type, errRateLimited)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := c.dispatch(ctx, action); err != nil {
		c.replyError(action.Type, err)
	}
}

// dispatch runs one command. Outcomes the engine already reports as events
// (rejections, save and load failures) return nil.
func (c *Client) dispatch(ctx context.Context, action PlayerAction) error {
	game := c.hub.game

	switch action.Type {
	case CommandClick:
		game.Click()
	case CommandPurchase:
		var p purchasePayload
		if err := decodePayload(action.Payload, &p); err != nil {
			return err
		}
		kind, err := economy.ParseKind(p.Kind)
		if err != nil {
			return err
		}
		if err := game.Purchase(ctx, kind); err != nil && !errors.Is(err, economy.ErrInsufficientFunds) {
			return err
		}
	case CommandPrestige:
		_, _ = game.Prestige(ctx)
	case CommandSave:
		_ = game.Save(ctx)
	case CommandLoad:
		_ = game.Load(ctx)
	case CommandSetSound:
		var p soundPayload
		if err := decodePayload(action.Payload, &p); err != nil {
			return err
		}
		if p.Enabled == nil {
			return errors.New("missing field: enabled")
		}
		game.SetSoundEnabled(ctx, *p.Enabled)
	case CommandSetNumberFormat:
		var p numberFormatPayload
		if err := decodePayload(action.Payload, &p); err != nil {
			return err
		}
		return game.SetNumberFormat(ctx, economy.NumberFormat(p.Mode))
	case CommandSync:
		c.reply(Message{Type: MessageTypeView, Payload: game.View()})
	default:
		c.hub.logger.Warn("Unknown PlayerAction type: " + action.Type)
		return fmt.Errorf("unknown command %q", action.Type)
	}
	return nil
}

func decodePayload(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return errors.New("missing payload")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	return nil
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
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
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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
