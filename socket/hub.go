package socket

import (
	"encoding/json"
	"sync"

	"naskah/internal/document/model"
	"naskah/pkg/logger"
)

const broadcastBuffer = 64

// Hub fans change events out to the connected clients of the user they concern.
// Each user has one room; a user with several clients open gets every event on
// each of them.
type Hub struct {
	Rooms      map[string]map[*Client]bool // userID -> clients
	Broadcast  chan model.ChangeEvent
	Register   chan *Client
	Unregister chan *Client
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		Rooms:      make(map[string]map[*Client]bool),
		Broadcast:  make(chan model.ChangeEvent, broadcastBuffer),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Publish queues e for delivery. It never blocks the write that produced e: when
// the queue is full the event is dropped.
func (h *Hub) Publish(e model.ChangeEvent) {
	select {
	case h.Broadcast <- e:
	default:
		logger.Sugar.Warnf("Change feed full, dropping %s for %s", e.Type, e.DocumentID)
	}
}

// Clients returns the number of clients connected for userID.
func (h *Hub) Clients(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.Rooms[userID])
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if h.Rooms[client.UserID] == nil {
				h.Rooms[client.UserID] = make(map[*Client]bool)
			}
			h.Rooms[client.UserID][client] = true
			h.mu.Unlock()
			logger.Sugar.Debugf("Change feed client joined for %s", client.UserID)

		case client := <-h.Unregister:
			h.dropClient(client)

		case event := <-h.Broadcast:
			payload, err := json.Marshal(event)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling change event: %v", err)
				continue
			}

			// Collect recipients first so no I/O happens under the lock.
			h.mu.Lock()
			clientsToSend := make([]*Client, 0, len(h.Rooms[event.UserID]))
			for client := range h.Rooms[event.UserID] {
				clientsToSend = append(clientsToSend, client)
			}
			h.mu.Unlock()

			for _, client := range clientsToSend {
				select {
				case client.Send <- payload:
				default:
					// A lagging client would stall every other one.
					logger.Sugar.Warnf("Client %s's send buffer is full. Unregistering.", client.UserID)
					h.dropClient(client)
				}
			}
		}
	}
}

// dropClient removes client from its room and closes its send channel. Run
// calls it directly since sending on Unregister from there would deadlock.
func (h *Hub) dropClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.Rooms[client.UserID][client]; ok {
		delete(h.Rooms[client.UserID], client)
		close(client.Send)
		if len(h.Rooms[client.UserID]) == 0 {
			delete(h.Rooms, client.UserID)
		}
	}
}
