package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
)

// Client is one waiting page's status socket.
type Client struct {
	hub    *Hub
	conn   *ws.Conn
	userID string
	send   chan []byte
	nudge  chan struct{}
}

func NewClient(hub *Hub, conn *ws.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, sendBufferSize),
		nudge:  make(chan struct{}, 1),
	}
}

// Run registers the client and runs watch alongside the read and write
// pumps. When watch returns, queued messages are flushed and the socket is
// closed normally. A client disconnect cancels the context watch gets.
func (c *Client) Run(ctx context.Context, watch func(ctx context.Context, nudge <-chan struct{}, emit func(Message) bool) error) error {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		c.readPump(ctx)
		cancel()
	}()

	errc := make(chan error, 1)
	go func() {
		errc <- watch(ctx, c.nudge, func(m Message) bool { return c.hub.Send(c, m) })
		c.hub.Unregister(c)
	}()

	c.writePump(ctx)
	c.conn.Close(ws.StatusNormalClosure, "")
	cancel()
	return <-errc
}

// readPump reads and discards all incoming messages. It returns on error
// (connection close), which triggers cleanup.
func (c *Client) readPump(ctx context.Context) {
	for {
		_, _, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
	}
}

// writePump drains the send channel and writes messages to the WebSocket.
// It also sends periodic pings to detect stale connections.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
