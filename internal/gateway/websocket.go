package gateway

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write an event to the peer.
	writeWait = 10 * time.Second

	// Transport-level ping interval, below typical proxy idle cutoffs.
	pingPeriod = 30 * time.Second

	// Maximum inbound frame size in bytes.
	maxMessageSize = 64 * 1024

	// Outbound event buffer per connection.
	sendBuffer = 32
)

var errSendBufferFull = errors.New("send buffer full")
var errClientClosed = errors.New("client closed")

// Server upgrades HTTP requests to WebSocket sessions and feeds decoded
// frames into the gateway.
type Server struct {
	gateway  *Gateway
	upgrader websocket.Upgrader
	logf     func(format string, args ...any)
}

func NewServer(gw *Gateway) *Server {
	return &Server{
		gateway: gw,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logf: log.Printf,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logf("gateway: websocket upgrade: %v", err)
		return
	}

	client := newWSClient(conn)
	id := s.gateway.Connect(client)
	go client.writePump()
	s.readPump(client, id)
}

// readPump owns all reads from the socket. It returns when the peer goes
// away, taking the registry entry down with it.
func (s *Server) readPump(client *wsClient, id string) {
	defer func() {
		s.gateway.Disconnect(id)
		_ = client.Close()
	}()

	client.conn.SetReadLimit(maxMessageSize)
	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logf("gateway: read on %s: %v", id, err)
			}
			return
		}
		frame, err := DecodeFrame(raw)
		if err != nil {
			s.gateway.sendTo(id, errorEvent("malformed frame"))
			continue
		}
		s.gateway.Dispatch(context.Background(), id, frame)
	}
}

// wsClient adapts a gorilla connection to the Sender interface. Events go
// through a buffered channel so broadcasters never block on a slow peer.
type wsClient struct {
	conn *websocket.Conn
	send chan Event
	done chan struct{}
	once sync.Once
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		conn: conn,
		send: make(chan Event, sendBuffer),
		done: make(chan struct{}),
	}
}

// Send queues an event for the write pump. A full buffer means the peer
// has stopped draining, which the caller treats as a dead transport.
func (c *wsClient) Send(ev Event) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}
	select {
	case c.send <- ev:
		return nil
	default:
		return errSendBufferFull
	}
}

// Close stops the write pump. Idempotent.
func (c *wsClient) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// writePump owns all writes to the socket, serializing queued events and
// transport pings onto one goroutine.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case ev := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
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
