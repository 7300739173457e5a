package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weiawesome/ttv-relay/internal/config"
	"github.com/weiawesome/ttv-relay/pkg/log"
)

var (
	ErrClientClosed   = errors.New("client closed")
	ErrSendBufferFull = errors.New("client send buffer full")
)

type Client struct {
	Session Session
	Hub     *Hub
	Conn    *websocket.Conn

	ctx        context.Context
	send       chan []byte
	refill     chan struct{}
	registered chan struct{}
	config     config.WebSocketConfig

	mu     sync.Mutex
	closed bool
}

func NewClient(ctx context.Context, session Session, hub *Hub, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	size := cfg.SendBuffer
	if size <= 0 {
		size = 256
	}
	return &Client{
		Session:    session,
		Hub:        hub,
		Conn:       conn,
		ctx:        log.WithSession(ctx, session.ClientID, session.ContributorID, session.RoomID),
		send:       make(chan []byte, size),
		refill:     make(chan struct{}, 1),
		registered: make(chan struct{}),
		config:     cfg,
	}
}

func (c *Client) ID() string { return c.Session.ClientID }

// Context carries the session logger.
func (c *Client) Context() context.Context { return c.ctx }

// Send queues one encoded frame for the write pump without blocking.
func (c *Client) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		// The write pump asks the mailbox for the refused frames once
		// the buffer has drained.
		select {
		case c.refill <- struct{}{}:
		default:
		}
		return ErrSendBufferFull
	}
}

// close stops the write pump. Safe to call more than once.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				l := log.Ctx(c.ctx)
				l.Warn().Err(err).Msg("websocket read error")
			}
			break
		}

		handler(c, message)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	backlog := false
	for {
		select {
		case message, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

			if backlog && len(c.send) == 0 {
				backlog = false
				c.Hub.refill(c)
			}

		case <-c.refill:
			if len(c.send) == 0 {
				c.Hub.refill(c)
			} else {
				backlog = true
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
