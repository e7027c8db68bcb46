package web

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type refreshMessage struct {
	Type       string `json:"type"`
	Generation uint64 `json:"generation"`
}

// liveRefresh pushes a refresh message whenever the session's controller
// applies a new collection
func (h *Handler) liveRefresh(c *gin.Context) {
	controller := controllerFrom(c)

	// Subscribe before the handshake completes so no refresh is missed.
	updates, unsubscribe := controller.Subscribe()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		unsubscribe()
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	go h.readPump(conn, unsubscribe)
	h.writePump(conn, updates)
}

// readPump discards client messages and ends the subscription when the peer goes away
func (h *Handler) readPump(conn *websocket.Conn, unsubscribe func()) {
	defer unsubscribe()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.WithError(err).Debug("WebSocket closed")
			}
			return
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, updates <-chan uint64) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case generation, ok := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(refreshMessage{Type: "refresh", Generation: generation}); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
