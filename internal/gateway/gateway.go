// Package gateway implements the Session Multiplexer (spec.md §4.4's
// message channel, named "Gateway" in SPEC_FULL.md's component list): the
// WebSocket upgrade, JSON `{type, data}` dispatch onto Room Engine events,
// ping/pong keepalive, and WebRTC signaling pass-through.
package gateway

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"pokerroom/internal/metrics"
	"pokerroom/internal/registry"
	"pokerroom/internal/room"
)

const (
	readLimitBytes = 65536
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	writeWait      = 10 * time.Second
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Connection is one live WebSocket client, scoped to a single room.
type Connection struct {
	ID      uint64
	RoomID  string
	Name    string
	Conn    *websocket.Conn
	Send    chan []byte
	Gateway *Gateway
}

// Gateway owns every live connection and dispatches inbound envelopes to
// the Room Registry.
type Gateway struct {
	registry *registry.Registry
	log      *logrus.Entry

	mu         sync.RWMutex
	nextConnID uint64
	conns      map[uint64]*Connection            // connID -> conn, process-wide
	roomConns  map[string]map[uint64]*Connection // roomID -> connID -> conn
}

// New creates a Gateway bound to a Room Registry. Pass (*Gateway).Send as
// the registry's BroadcastFunc so room output reaches live connections.
func New(reg *registry.Registry) *Gateway {
	return &Gateway{
		registry:  reg,
		log:       logrus.WithField("component", "gateway"),
		conns:     make(map[uint64]*Connection),
		roomConns: make(map[string]map[uint64]*Connection),
	}
}

// Send delivers raw bytes to one connection, dropping the message if the
// connection's send buffer is full (a stalled reader should not stall the
// room's actor loop) or if the connection no longer exists.
func (g *Gateway) Send(roomID string, connID uint64, data []byte) {
	g.mu.RLock()
	c := g.conns[connID]
	g.mu.RUnlock()
	if c == nil {
		return
	}
	select {
	case c.Send <- data:
	default:
		g.log.WithField("conn", connID).Warn("send buffer full, dropping message")
	}
}

// HandleWebSocket upgrades the request and attaches the connection to the
// room named by the "room_id" chi URL param.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room_id")
	rm := g.registry.Get(roomID)
	if rm == nil {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	id := atomic.AddUint64(&g.nextConnID, 1)
	c := &Connection{
		ID:      id,
		RoomID:  roomID,
		Conn:    conn,
		Send:    make(chan []byte, sendBufferSize),
		Gateway: g,
	}

	g.mu.Lock()
	g.conns[id] = c
	if g.roomConns[roomID] == nil {
		g.roomConns[roomID] = make(map[uint64]*Connection)
	}
	g.roomConns[roomID][id] = c
	g.mu.Unlock()
	metrics.WebsocketConnections.Inc()

	g.log.WithFields(map[string]any{"conn": id, "room": roomID}).Info("client connected")

	go g.writePump(c)
	go g.readPump(c, rm)
}

func (g *Gateway) readPump(c *Connection, rm *room.Room) {
	defer func() {
		g.removeConnection(c, rm)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(readLimitBytes)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				g.log.WithError(err).WithField("conn", c.ID).Debug("read error")
			}
			return
		}
		g.dispatch(c, rm, message)
	}
}

func (g *Gateway) writePump(c *Connection) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) removeConnection(c *Connection, rm *room.Room) {
	g.mu.Lock()
	delete(g.conns, c.ID)
	if m := g.roomConns[c.RoomID]; m != nil {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(g.roomConns, c.RoomID)
		}
	}
	g.mu.Unlock()
	metrics.WebsocketConnections.Dec()

	if rm != nil {
		_ = rm.SubmitEvent(room.Event{Type: room.EventConnLost, ConnID: c.ID})
	}
	g.log.WithField("conn", c.ID).Info("client disconnected")
}

func (g *Gateway) sendError(c *Connection, message string) {
	data, err := json.Marshal(room.Envelope{Type: "error", Data: room.ErrorData{Message: message}})
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}
