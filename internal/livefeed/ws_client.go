package livefeed

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"incidenbot/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// WebSocketClient streams snapshots to a staff dashboard.
type WebSocketClient struct {
	ID      string
	StaffID string
	Conn    *websocket.Conn
	Hub     *Hub
	Send    chan *Snapshot

	once sync.Once
}

func NewWebSocketClient(hub *Hub, conn *websocket.Conn, staffID string) *WebSocketClient {
	return &WebSocketClient{
		ID:      uuid.New().String(),
		StaffID: staffID,
		Conn:    conn,
		Hub:     hub,
		Send:    make(chan *Snapshot, 8),
	}
}

func (c *WebSocketClient) GetID() string                    { return c.ID }
func (c *WebSocketClient) GetSendChannel() chan<- *Snapshot { return c.Send }

// Run запускає 'pumps' для WebSocket
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close закриває Send канал (що зупинить writePump)
func (c *WebSocketClient) Close() {
	c.once.Do(func() { close(c.Send) })
}

// EncodeSnapshot renders the frame sent to dashboards.
func EncodeSnapshot(snap *Snapshot) ([]byte, error) {
	return json.Marshal(models.SnapshotMessage{
		Type:      "snapshot",
		Version:   snap.Version,
		Incidents: snap.Incidents,
	})
}

// readPump only keeps the connection alive; dashboards never send data.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading message: %v", err)
			}
			break
		}
	}
}

// writePump пише знімки з каналу Send у WebSocket. Якщо в черзі кілька
// знімків, надсилається лише найновіший.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case snap, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Канал закрито хабом, закриваємо з'єднання WS
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			for n := len(c.Send); n > 0; n-- {
				next, ok := <-c.Send
				if !ok {
					break
				}
				snap = next
			}

			data, err := EncodeSnapshot(snap)
			if err != nil {
				log.Printf("Error encoding snapshot for client %s: %v", c.ID, err)
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
