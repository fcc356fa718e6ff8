package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"collab-realtime/internal/domain"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Client is one WebSocket connection attached to the hub.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	socketID domain.SocketID
	send     chan []byte

	closeOnce sync.Once
}

// NewClient creates a Client for an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, socketID domain.SocketID) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		socketID: socketID,
		send:     make(chan []byte, 256),
	}
}

// SocketID returns the server-assigned socket id.
func (c *Client) SocketID() domain.SocketID { return c.socketID }

// Run starts the read and write pumps.
func (c *Client) Run() {
	go c.writePump()
	go c.readPump()
}

// readPump reads frames from the connection and dispatches them through the
// hub. Running dispatch on this goroutine keeps events from one socket in
// order; events from different sockets interleave freely.
func (c *Client) readPump() {
	defer func() {
		c.hub.Detach(c)
		c.conn.Close()
		logrus.WithField("socket_id", c.socketID).Debug("readPump exited")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			logCtx := logrus.WithField("socket_id", c.socketID)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed")
			}
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.hub.Dispatch(c, message)
	}
}

// writePump pumps frames from the send channel to the connection and keeps
// the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		logrus.WithField("socket_id", c.socketID).Debug("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithField("socket_id", c.socketID).WithError(err).Warn("Failed to write message to websocket")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue places a frame on the send queue without blocking. A slow client
// with a full queue drops frames; its write pump or ping failure will
// eventually take the connection down.
func (c *Client) enqueue(message []byte) {
	select {
	case c.send <- message:
	default:
		logrus.WithField("socket_id", c.socketID).Warn("Client send channel full, dropping frame")
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}
