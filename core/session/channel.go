// Package session is the websocket transport to the session server.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"SyncFM/logger"
	"SyncFM/model"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 1 << 20 // 歌词可能较长
	sendBuffer     = 64
)

// ErrClosed is returned by Send once the channel has shut down.
var ErrClosed = errors.New("session channel closed")

// Channel is a client websocket connection carrying session events in and
// commands out.
type Channel struct {
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to the session server at url.
func Dial(ctx context.Context, url string, header http.Header) (*Channel, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 15 * time.Second,
	}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	logger.Info("socket connected", logger.String("url", url))
	return NewChannel(conn), nil
}

// NewChannel wraps an established connection.
func NewChannel(conn *websocket.Conn) *Channel {
	return &Channel{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}
}

// Send queues a command without blocking.
func (c *Channel) Send(cmd model.Command) error {
	data, err := cmd.Encode()
	if err != nil {
		return err
	}
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.closed:
		return ErrClosed
	default:
		return fmt.Errorf("send buffer full, dropping %s", cmd.Key)
	}
}

// Close shuts the connection down; Run returns shortly after.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

// Run pumps frames until the connection fails or ctx is done. Every decoded
// event is handed to onEvent on the reading goroutine. The returned error is
// the reason the session ended; it is nil only when ctx was cancelled.
func (c *Channel) Run(ctx context.Context, onEvent func(model.Event)) error {
	go c.writePump()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			c.Close()
		case <-stop:
		}
	}()

	err := c.readPump(onEvent)
	c.Close()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Channel) readPump(onEvent func(model.Event)) error {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read error", logger.ErrorField(err))
			}
			return fmt.Errorf("connection closed: %w", err)
		}
		// 任何入站消息都说明连接仍然存活
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		ev, err := model.DecodeEvent(message)
		if err != nil {
			logger.Warn("invalid message format", logger.ErrorField(err))
			continue
		}
		onEvent(ev)
	}
}

func (c *Channel) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn("websocket write", logger.ErrorField(err))
				c.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
