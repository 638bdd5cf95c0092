package console

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"

	"mixing-extruder/pkg/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512 * 1024
	sendQueue      = 64
)

// wsClient is one websocket connection.
type wsClient struct {
	id     xid.ID
	conn   *websocket.Conn
	server *Server
	sendCh chan any
	done   chan struct{}

	mu   sync.Mutex
	name string
}

func (s *Server) newClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		id:     xid.New(),
		conn:   conn,
		server: s,
		sendCh: make(chan any, sendQueue),
		done:   make(chan struct{}),
	}
}

func (c *wsClient) setName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
}

// Send queues a message. It drops the message when the queue is full
// rather than stall the sender.
func (c *wsClient) Send(msg any) {
	select {
	case c.sendCh <- msg:
	case <-c.done:
	default:
		c.server.logger.WithField("client", c.id.String()).Warn("send queue full, message dropped")
	}
}

// Close closes the connection once.
func (c *wsClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
		return
	default:
		close(c.done)
	}
	c.conn.Close()
}

func (c *wsClient) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.server.logger.WithField("client", c.id.String()).WithError(err).Warn("websocket read failed")
			}
			return
		}
		c.handleMessage(message)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.server.logger.WithField("client", c.id.String()).WithError(err).Debug("websocket write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *wsClient) handleMessage(data []byte) {
	var req request
	if err := json.Unmarshal(data, &req); err != nil {
		c.Send(response{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: "Parse error"}})
		return
	}
	c.Send(c.server.call(req, c))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := s.newClient(conn)
	s.clientMu.Lock()
	s.clients[client.id.String()] = client
	s.clientMu.Unlock()

	s.logger.WithFields(log.Fields{"client": client.id.String(), "remote": r.RemoteAddr}).Info("websocket client connected")

	go client.writePump()
	client.Send(notification{
		JSONRPC: "2.0",
		Method:  "notify_console_connected",
		Params:  []any{map[string]any{"connection_id": client.id.String()}},
	})

	client.readPump()
}

func (s *Server) removeClient(c *wsClient) {
	s.clientMu.Lock()
	delete(s.clients, c.id.String())
	s.clientMu.Unlock()
	s.logger.WithField("client", c.id.String()).Info("websocket client disconnected")
}
