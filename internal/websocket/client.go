package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client one push subscriber watching a single campaign.
type Client struct {
	ID         string
	UserID     uint
	CampaignID uint

	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func NewClient(hub *Hub, conn *websocket.Conn, userID, campaignID uint) *Client {
	return &Client{
		ID:         uuid.NewString(),
		UserID:     userID,
		CampaignID: campaignID,
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, hub.opts.SendBuffer),
	}
}

// ReadPump consumes client frames until the connection drops. Subscribers
// only ever send pings.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	opts := c.hub.opts
	c.conn.SetReadLimit(opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(opts.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(opts.PongTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("WebSocket read error",
					zap.String("client_id", c.ID),
					zap.Error(err))
			}
			return
		}
		c.handleMessage(data)
	}
}

// WritePump drains the send queue and keeps the connection alive.
func (c *Client) WritePump() {
	opts := c.hub.opts
	ticker := time.NewTicker(opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		c.hub.deliver(c, &Message{Type: MessageTypeError, Data: json.RawMessage(`{"error":"invalid message"}`)})
		return
	}

	switch msg.Type {
	case MessageTypePing:
		c.hub.deliver(c, &Message{Type: MessageTypePong})
	case MessageTypePong:
	default:
		c.hub.logger.Debug("Ignoring client message",
			zap.String("client_id", c.ID),
			zap.String("type", msg.Type))
	}
}
