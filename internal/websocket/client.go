package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"rag-chatbot-be/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
)

const (
	module         = "CHAT_STREAM"
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBuffer     = 256
)

var errStreamClosed = errors.New("stream closed")

// SendFunc queues one JSON frame for the peer.
type SendFunc func(frame interface{}) error

// RequestHandler serves one inbound frame. ctx is cancelled when the peer
// goes away.
type RequestHandler func(ctx context.Context, payload []byte, send SendFunc)

// Client is a middleman between the websocket connection and the chat handler.
// Requests are served one at a time in arrival order.
type Client struct {
	Conn *websocket.Conn

	// Buffered channel of outbound frames.
	Send chan []byte

	handler RequestHandler
	logger  logger.ILogger

	done     chan struct{}
	doneOnce sync.Once
}

// ServeWs blocks until the peer disconnects and every accepted request has
// been served.
func ServeWs(c *websocket.Conn, handler RequestHandler, log logger.ILogger) {
	client := &Client{
		Conn:    c,
		Send:    make(chan []byte, sendBuffer),
		handler: handler,
		logger:  log,
		done:    make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	requests := make(chan []byte, 1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		client.writePump()
	}()
	go func() {
		defer wg.Done()
		defer client.stop()
		for payload := range requests {
			client.handler(ctx, payload, client.sendJSON)
		}
	}()

	client.readPump(requests)
	cancel()
	wg.Wait()
}

func (c *Client) stop() {
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *Client) sendJSON(frame interface{}) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	select {
	case c.Send <- payload:
		return nil
	case <-c.done:
		return errStreamClosed
	}
}

// readPump pumps requests from the websocket connection to the handler.
func (c *Client) readPump(requests chan<- []byte) {
	defer close(requests)

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn(module, "Stream closed unexpectedly", map[string]interface{}{"error": err.Error()})
			}
			return
		}
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))

		select {
		case requests <- payload:
		case <-c.done:
			return
		}
	}
}

// writePump pumps frames to the websocket connection and keeps it alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Warn(module, "Stream write failed", map[string]interface{}{"error": err.Error()})
				c.stop()
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.stop()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// flush writes frames queued before the handler finished.
func (c *Client) flush() {
	for {
		select {
		case frame := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}
