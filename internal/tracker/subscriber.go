package tracker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	ws "github.com/wfunc/initiative-tracker/internal/websocket"
	"go.uber.org/zap"
)

// Subscriber listens on the push channel and triggers a poll on every
// change notice. Polling keeps running when the channel is down.
type Subscriber struct {
	url       string
	poller    *Poller
	dialer    *websocket.Dialer
	reconnect time.Duration
	logger    *zap.Logger
}

func NewSubscriber(url string, poller *Poller, reconnect time.Duration, log *zap.Logger) *Subscriber {
	if reconnect <= 0 {
		reconnect = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Subscriber{
		url:       url,
		poller:    poller,
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		reconnect: reconnect,
		logger:    log,
	}
}

// Run keeps a connection open until ctx is done, redialing after failures.
func (s *Subscriber) Run(ctx context.Context) {
	for {
		if err := s.listen(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("push channel lost", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.reconnect):
		}
	}
}

func (s *Subscriber) listen(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg ws.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case ws.MessageTypeConnected, ws.MessageTypeInitiativeChanged:
			s.poller.Refresh()
		case ws.MessageTypeError:
			s.logger.Warn("push channel error", zap.ByteString("data", msg.Data))
		}
	}
}
