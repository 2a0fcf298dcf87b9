package main

import (
	"net/http"
	"time"

	"github.com/dougsko/automagic/pkg/logging"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPingPeriod = 30 * time.Second
)

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the API binds to localhost by default
	},
}

// handleWebSocket streams the engine state: the current snapshot on connect,
// then one snapshot per state change.
func (d *Daemon) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warnf("ws", "upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	logging.Debugf("ws", "client %s connected", conn.RemoteAddr())
	defer logging.Debugf("ws", "client %s disconnected", conn.RemoteAddr())

	updates, cancel := d.engine.Subscribe()
	defer cancel()

	quit := wsReadLoop(conn)
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	if err := writeJSON(conn, d.engine.Snapshot()); err != nil {
		return
	}

	for {
		select {
		case s, ok := <-updates:
			if !ok {
				return
			}
			if err := writeJSON(conn, s); err != nil {
				logging.Debugf("ws", "write error: %v", err)
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(wsWriteWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-quit:
			return
		case <-d.ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(wsWriteWait))
			return
		}
	}
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(v)
}

// wsReadLoop discards client messages and closes the returned channel when
// the connection fails or is closed by the client.
func wsReadLoop(c *websocket.Conn) <-chan struct{} {
	quit := make(chan struct{})
	go func() {
		defer close(quit)
		for {
			if _, _, err := c.NextReader(); err != nil {
				return
			}
		}
	}()
	return quit
}
