package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pavelanni/classquiz/internal/classroom"
	"github.com/pavelanni/classquiz/internal/view"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Live message types.
const (
	liveTenant    = "tenant"
	liveDashboard = "dashboard"
	liveRemoved   = "removed"
)

type liveMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// handleLive streams tenant snapshots over a WebSocket. Admins receive the
// whole tenant; students receive only their own dashboard.
func (h *Handler) handleLive(w http.ResponseWriter, r *http.Request) {
	state := view.Decode(sessionFromContext(r.Context()).View)
	var tenantID, studentID string
	if a, ok := state.(view.Admin); ok {
		tenantID = a.TenantID
	} else {
		tenantID, studentID = studentOf(state)
	}

	tenant, err := h.svc.OpenTenant(r.Context(), tenantID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		tenant.Close()
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	slog.Debug("live feed opened", "tenant", tenantID, "student", studentID)

	c := newLiveClient(conn)
	go c.writePump()
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.forward(tenant.Updates(), studentID)
	}()
	c.readPump()
	tenant.Close()
	<-done
	slog.Debug("live feed closed", "tenant", tenantID, "student", studentID)
}

type liveClient struct {
	conn *websocket.Conn
	send chan []byte
}

func newLiveClient(conn *websocket.Conn) *liveClient {
	return &liveClient{conn: conn, send: make(chan []byte, 1)}
}

// forward turns snapshots into messages until updates closes, then closes send.
func (c *liveClient) forward(updates <-chan classroom.TenantSnapshot, studentID string) {
	defer close(c.send)
	for snap := range updates {
		msg := liveMessage{Type: liveTenant, Data: snap}
		if studentID != "" {
			if dash, ok := snap.Dashboard(studentID); ok {
				msg = liveMessage{Type: liveDashboard, Data: dash}
			} else {
				msg = liveMessage{Type: liveRemoved}
			}
		}
		data, err := json.Marshal(msg)
		if err != nil {
			slog.Error("encode live message", "error", err)
			continue
		}
		c.push(data)
	}
}

// push never blocks: a message the writer has not picked up yet is replaced.
func (c *liveClient) push(data []byte) {
	select {
	case c.send <- data:
		return
	default:
	}
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *liveClient) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *liveClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
