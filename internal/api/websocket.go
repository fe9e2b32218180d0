package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"souschef/internal/engine"
)

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second

	// Bounded by step count per recipe, so a modest buffer never drops
	// under normal narration load.
	eventBuffer = 256
)

// StreamSessionEvents upgrades the connection and forwards the session's
// event stream until either side goes away.
func (a *AssistantAPI) StreamSessionEvents(c *gin.Context) {
	eng, ok := a.Sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	events, unsubscribe := eng.SubscribeChan(eventBuffer)
	done := make(chan struct{})

	go readPump(conn, done)
	writePump(conn, events, done)
	unsubscribe()
}

// readPump drains the connection so close frames and pongs are processed.
func readPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	defer conn.Close()

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
	}
}

// writePump forwards engine events to the client and keeps the
// connection alive with pings.
func writePump(conn *websocket.Conn, events <-chan engine.Event, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Engine closed (session cleanup); tell the client.
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				data = errorFrame("failed to encode event")
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// errorFrame encodes an error as an event so subscribers see a single
// frame shape.
func errorFrame(msg string) []byte {
	data, _ := json.Marshal(engine.Event{
		Type:    engine.EventError,
		Payload: map[string]interface{}{"error": msg},
		At:      time.Now(),
	})
	return data
}
