package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"epicalib/ports"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	clientBuffer   = 64
	broadcastQueue = 256
)

// progressClient is one connected websocket, optionally narrowed to a suite
type progressClient struct {
	hub     *ProgressHub
	conn    *websocket.Conn
	suiteID string
	send    chan []byte
}

// ProgressHub streams suite progress events to websocket clients. It
// implements ports.ProgressReporter; Publish never blocks the suite.
type ProgressHub struct {
	clients    map[*progressClient]bool
	clientsMu  sync.RWMutex
	register   chan *progressClient
	unregister chan *progressClient
	broadcast  chan ports.ProgressEvent
	done       chan struct{}
	closeOnce  sync.Once
	upgrader   websocket.Upgrader
}

var _ ports.ProgressReporter = (*ProgressHub)(nil)

// NewProgressHub creates a hub and starts its dispatch loop
func NewProgressHub() *ProgressHub {
	hub := &ProgressHub{
		clients:    make(map[*progressClient]bool),
		register:   make(chan *progressClient),
		unregister: make(chan *progressClient),
		broadcast:  make(chan ports.ProgressEvent, broadcastQueue),
		done:       make(chan struct{}),
		upgrader:   websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}

	go hub.run()
	return hub
}

func (h *ProgressHub) run() {
	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			log.Printf("[Progress] client connected (total clients: %d)", len(h.clients))
			h.clientsMu.Unlock()

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("[Progress] client disconnected (remaining clients: %d)", len(h.clients))
			}
			h.clientsMu.Unlock()

		case event := <-h.broadcast:
			msg, err := json.Marshal(event)
			if err != nil {
				log.Printf("[Progress] failed to marshal event: %v", err)
				continue
			}
			h.clientsMu.Lock()
			for client := range h.clients {
				if client.suiteID != "" && client.suiteID != event.SuiteID.String() {
					continue
				}
				select {
				case client.send <- msg:
				default:
					// slow client
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.clientsMu.Unlock()

		case <-h.done:
			h.clientsMu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.clientsMu.Unlock()
			return
		}
	}
}

// Publish queues an event for every interested client
func (h *ProgressHub) Publish(event ports.ProgressEvent) {
	select {
	case h.broadcast <- event:
	default:
		log.Printf("[Progress] broadcast queue full, dropping %s event", event.Type)
	}
}

// ClientCount returns the number of connected clients
func (h *ProgressHub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and stops the hub
func (h *ProgressHub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// HandleWebSocket upgrades the request and streams events. The optional
// suite_id query parameter restricts the stream to one suite.
func (h *ProgressHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Progress] websocket upgrade failed: %v", err)
		return
	}

	client := &progressClient{
		hub:     h,
		conn:    conn,
		suiteID: r.URL.Query().Get("suite_id"),
		send:    make(chan []byte, clientBuffer),
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump discards client messages and notices disconnects
func (c *progressClient) readPump() {
	defer c.leave()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *progressClient) writePump() {
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
				c.leave()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.leave()
				return
			}
		}
	}
}

func (c *progressClient) leave() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}
