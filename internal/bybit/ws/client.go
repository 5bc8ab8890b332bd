package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Client maintains one connection to the Bybit public v5 stream. Topic
// subscriptions are replayed after every reconnect.
type Client struct {
	url            string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	topics map[string]struct{}
}

func New(url string, reconnectDelay, pingInterval time.Duration, log *zap.Logger) *Client {
	return &Client{
		url:            url,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            log,
		topics:         make(map[string]struct{}),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

// Subscribe registers topics (e.g. "tickers.BTCUSDT") and sends the
// subscribe frame when connected.
func (c *Client) Subscribe(ctx context.Context, topics ...string) error {
	c.mu.Lock()
	fresh := make([]string, 0, len(topics))
	for _, topic := range topics {
		if _, ok := c.topics[topic]; ok {
			continue
		}
		c.topics[topic] = struct{}{}
		fresh = append(fresh, topic)
	}
	conn := c.conn
	c.mu.Unlock()
	if len(fresh) == 0 {
		return nil
	}
	if conn == nil {
		return errors.New("ws not connected")
	}
	return writeJSON(ctx, conn, subscribeFrame(fresh))
}

func (c *Client) Unsubscribe(ctx context.Context, topics ...string) error {
	c.mu.Lock()
	removed := make([]string, 0, len(topics))
	for _, topic := range topics {
		if _, ok := c.topics[topic]; !ok {
			continue
		}
		delete(c.topics, topic)
		removed = append(removed, topic)
	}
	conn := c.conn
	c.mu.Unlock()
	if len(removed) == 0 || conn == nil {
		return nil
	}
	return writeJSON(ctx, conn, map[string]any{"op": "unsubscribe", "args": removed})
}

func (c *Client) Run(ctx context.Context, handler func(json.RawMessage)) error {
	for {
		if err := c.ensureConnected(ctx); err != nil {
			return err
		}
		pingCtx, cancel := context.WithCancel(ctx)
		pingDone := make(chan struct{})
		go func() {
			defer close(pingDone)
			c.pingLoop(pingCtx)
		}()
		err := c.readLoop(ctx, handler)
		cancel()
		<-pingDone
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logReadLoopError(err)
			c.resetConn()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.reconnectDelay):
			}
			continue
		}
	}
}

func (c *Client) ensureConnected(ctx context.Context) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	topics := make([]string, 0, len(c.topics))
	for topic := range c.topics {
		topics = append(topics, topic)
	}
	c.mu.Unlock()
	if len(topics) == 0 {
		return nil
	}
	return writeJSON(ctx, conn, subscribeFrame(topics))
}

func (c *Client) readLoop(ctx context.Context, handler func(json.RawMessage)) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("ws not connected")
	}
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if handler != nil {
			handler(json.RawMessage(data))
		}
	}
}

func (c *Client) pingLoop(ctx context.Context) {
	c.mu.Lock()
	conn := c.conn
	interval := c.pingInterval
	c.mu.Unlock()
	if conn == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := writeJSON(ctx, conn, pingFrame); err != nil {
				return
			}
		}
	}
}

func (c *Client) logReadLoopError(err error) {
	if c.log == nil {
		return
	}
	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure {
		var closeErr websocket.CloseError
		if errors.As(err, &closeErr) {
			c.log.Info("ws read loop ended", zap.Int("status", int(closeErr.Code)), zap.String("reason", closeErr.Reason))
			return
		}
		c.log.Info("ws read loop ended", zap.Error(err))
		return
	}
	c.log.Warn("ws read loop ended", zap.Error(err))
}

func (c *Client) resetConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "reset")
		c.conn = nil
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func subscribeFrame(topics []string) map[string]any {
	return map[string]any{"op": "subscribe", "args": topics}
}

var pingFrame = map[string]any{"op": "ping"}
