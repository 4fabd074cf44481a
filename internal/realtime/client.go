// File: internal/realtime/client.go
package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Client is one authenticated websocket connection. A read pump feeds
// inbound events to the gateway; a write pump drains the send buffer and
// keeps the connection alive with pings.
type Client struct {
	userID  string
	conn    *websocket.Conn
	gateway *Gateway
	send    chan []byte
	limiter *rate.Limiter

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(g *Gateway, userID string, conn *websocket.Conn) *Client {
	return &Client{
		userID:  userID,
		conn:    conn,
		gateway: g,
		send:    make(chan []byte, g.cfg.SendBuffer),
		limiter: rate.NewLimiter(rate.Limit(g.cfg.EventRate), g.cfg.EventBurst),
		done:    make(chan struct{}),
	}
}

func (c *Client) UserID() string { return c.userID }

// enqueue hands msg to the write pump without blocking. A full buffer drops
// the frame; delivery is best effort and the store stays authoritative.
func (c *Client) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.gateway.metrics.EventDropped("buffer_full")
		c.gateway.logger.Warn("send buffer full, dropping frame", "user_id", c.userID)
		return false
	}
}

// close asks the write pump to say goodbye and shut the connection.
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) readPump() {
	defer func() {
		c.close()
		c.gateway.unregister(c)
		c.conn.Close()
	}()

	cfg := c.gateway.cfg
	c.conn.SetReadLimit(cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.gateway.logger.Warn("websocket closed unexpectedly", "user_id", c.userID, "error", err)
			}
			return
		}
		if !c.limiter.Allow() {
			c.gateway.metrics.EventDropped("rate_limited")
			c.sendError("", "", "too many events, slow down")
			continue
		}
		c.gateway.dispatch(c, data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.gateway.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	writeWait := c.gateway.cfg.WriteWait
	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.gateway.logger.Debug("write failed", "user_id", c.userID, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) sendError(event, chatID, message string) {
	frame, err := encode(EventError, ErrorEvent{Message: message, Event: event, ChatID: chatID})
	if err != nil {
		return
	}
	c.enqueue(frame)
}
