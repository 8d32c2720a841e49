package notefold

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/notefold/notefold/pkg/models"
	"github.com/notefold/notefold/pkg/store"
)

// ChangeMessage is the advisory event sent to websocket clients when a
// record changes. Clients reload the named collection; the payload
// carries no row data.
type ChangeMessage struct {
	Collection store.ChangeCollection `json:"collection"`
	Action     store.ChangeAction     `json:"action"`
	RecordID   string                 `json:"record_id,omitempty"`
}

type hubClient struct {
	conn   *websocket.Conn
	userID models.UserID
}

type hubBroadcast struct {
	userID models.UserID
	msg    ChangeMessage
}

// Hub fans change events out to each user's websocket connections.
type Hub struct {
	clients    map[*hubClient]bool
	broadcast  chan hubBroadcast
	register   chan *hubClient
	unregister chan *hubClient
	logger     zerolog.Logger
	mu         sync.RWMutex
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*hubClient]bool),
		broadcast:  make(chan hubBroadcast, 256),
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		logger:     logger,
	}
}

// Run processes registrations and broadcasts until the process exits.
// It is started once from the server setup.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.conn.Close()
			}
			h.mu.Unlock()

		case b := <-h.broadcast:
			h.mu.RLock()
			var failed []*hubClient
			for client := range h.clients {
				if client.userID != b.userID {
					continue
				}
				if err := client.conn.WriteJSON(b.msg); err != nil {
					h.logger.Warn().Err(err).Msg("websocket write failed")
					failed = append(failed, client)
				}
			}
			h.mu.RUnlock()
			// Drop failed clients here rather than through unregister:
			// Run is the only unregister receiver, so sending to it from
			// this branch would block forever.
			if len(failed) > 0 {
				h.mu.Lock()
				for _, client := range failed {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						client.conn.Close()
					}
				}
				h.mu.Unlock()
			}
		}
	}
}

// Broadcast queues a change event for every connection of userID.
func (h *Hub) Broadcast(userID models.UserID, msg ChangeMessage) {
	h.broadcast <- hubBroadcast{userID: userID, msg: msg}
}

// HandleConnection reads the connection until it closes, keeping it
// registered. Incoming frames are ignored; the channel is one-way.
func (h *Hub) HandleConnection(conn *websocket.Conn, userID models.UserID) {
	client := &hubClient{conn: conn, userID: userID}
	h.register <- client
	defer func() { h.unregister <- client }()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
