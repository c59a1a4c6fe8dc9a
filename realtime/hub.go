package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 32 * 1024 // signaling envelopes carry full SDP offers
)

// Client is one websocket connection bound to a room. Inbound is invoked
// for every frame the peer sends; OnDisconnect runs exactly once when the
// read pump exits, whatever the reason (close, crash, tab gone). Hooks that
// must survive an unclean disconnect (presence release, signal inbox
// cleanup) are registered there at join time.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte
	Room string
	UID  string

	Inbound      func(data []byte)
	OnDisconnect func()

	mu       sync.Mutex
	isClosed bool
	once     sync.Once
}

type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	rooms      map[string]map[*Client]bool
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.rooms[client.Room]; !ok {
				h.rooms[client.Room] = make(map[*Client]bool)
			}
			h.rooms[client.Room][client] = true
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.Room]; ok {
				if _, okClient := clients[client]; okClient {
					client.closeSend()
					delete(clients, client)
					if len(clients) == 0 {
						delete(h.rooms, client.Room)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isClosed {
		close(c.Send)
		c.isClosed = true
	}
}

func (c *Client) trySend(message []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed {
		return
	}
	select {
	case c.Send <- message:
	default:
		// Slow consumer; drop rather than block the broadcaster.
		log.Printf("send buffer full for client %s in room %s, dropping message", c.UID, c.Room)
	}
}

// BroadcastToRoom delivers message to every client currently in the room.
func (h *Hub) BroadcastToRoom(roomID string, message interface{}) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		log.Printf("error marshalling message for room %s: %v", roomID, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[roomID] {
		client.trySend(messageBytes)
	}
}

// SendToUser delivers message to every connection the user has in the room
// (multiple tabs count as distinct connections under the same uid).
func (h *Hub) SendToUser(roomID, uid string, message interface{}) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		log.Printf("error marshalling message for %s in room %s: %v", uid, roomID, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[roomID] {
		if client.UID == uid {
			client.trySend(messageBytes)
		}
	}
}

// SendToClient queues a message on a single connection.
func (h *Hub) SendToClient(client *Client, message interface{}) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		log.Printf("error marshalling message for client %s: %v", client.UID, err)
		return
	}
	client.trySend(messageBytes)
}

func (c *Client) disconnect() {
	c.once.Do(func() {
		if c.OnDisconnect != nil {
			c.OnDisconnect()
		}
	})
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
		c.disconnect()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("client %s in room %s read error: %v", c.UID, c.Room, err)
			}
			break
		}
		if c.Inbound != nil {
			c.Inbound(message)
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
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
