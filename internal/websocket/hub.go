package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/wfunc/initiative-tracker/internal/config"
	"github.com/wfunc/initiative-tracker/internal/logger"
	"go.uber.org/zap"
)

// Message types pushed to subscribers.
const (
	MessageTypeConnected         = "connected"
	MessageTypePing              = "ping"
	MessageTypePong              = "pong"
	MessageTypeError             = "error"
	MessageTypeInitiativeChanged = "initiative_changed"
)

// Message push envelope. Subscribers re-fetch status on initiative_changed.
type Message struct {
	Type       string          `json:"type"`
	CampaignID uint            `json:"campaign_id,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Options connection timings
type Options struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

// OptionsFrom maps the websocket configuration section.
func OptionsFrom(cfg config.WebSocketConfig) Options {
	opts := DefaultOptions()
	if cfg.PingInterval > 0 {
		opts.PingInterval = cfg.PingInterval
	}
	if cfg.PongTimeout > 0 {
		opts.PongTimeout = cfg.PongTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.MaxMessageSize > 0 {
		opts.MaxMessageSize = cfg.MaxMessageSize
	}
	return opts
}

func DefaultOptions() Options {
	return Options{
		PingInterval:   30 * time.Second,
		PongTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     32,
	}
}

// Hub tracks push subscribers by campaign. It implements
// initiative.Notifier.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]*Client
	campaigns map[uint]map[string]*Client

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	opts   Options
	logger *zap.Logger
}

func NewHub(opts Options, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultOptions().SendBuffer
	}
	return &Hub{
		clients:    make(map[string]*Client),
		campaigns:  make(map[uint]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		opts:       opts,
		logger:     log,
	}
}

// Run serves registrations until ctx is done, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	subs, ok := h.campaigns[client.CampaignID]
	if !ok {
		subs = make(map[string]*Client)
		h.campaigns[client.CampaignID] = subs
	}
	subs[client.ID] = client
	h.mu.Unlock()

	h.logger.Info("WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.Uint("user_id", client.UserID),
		zap.Uint("campaign_id", client.CampaignID))

	h.deliver(client, &Message{Type: MessageTypeConnected, CampaignID: client.CampaignID})
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		if subs := h.campaigns[client.CampaignID]; subs != nil {
			delete(subs, client.ID)
			if len(subs) == 0 {
				delete(h.campaigns, client.CampaignID)
			}
		}
		close(client.send)
	}
	h.mu.Unlock()

	h.logger.Info("WebSocket client disconnected",
		zap.String("client_id", client.ID),
		zap.Uint("user_id", client.UserID))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		close(client.send)
		delete(h.clients, id)
	}
	h.campaigns = make(map[uint]map[string]*Client)
}

// InitiativeChanged tells every subscriber of campaignID to re-fetch. Slow
// subscribers miss the push and catch up on their next poll.
func (h *Hub) InitiativeChanged(_ context.Context, campaignID uint) {
	msg := &Message{Type: MessageTypeInitiativeChanged, CampaignID: campaignID}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode push message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.campaigns[campaignID] {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("Client send buffer full",
				zap.String("client_id", client.ID),
				zap.Uint("campaign_id", campaignID))
		}
	}
	logger.LogWebSocketMessage("send", msg.Type, msg)
}

// deliver queues msg for a single client.
func (h *Hub) deliver(client *Client, msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	select {
	case client.send <- data:
	default:
		h.logger.Warn("Client send buffer full", zap.String("client_id", client.ID))
	}
}

// Register hands client to Run. It reports false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// OnlineCount number of connected clients.
func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriberCount number of clients watching campaignID.
func (h *Hub) SubscriberCount(campaignID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.campaigns[campaignID])
}
