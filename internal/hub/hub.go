// Package hub implements the in-process channel registry and the broadcast
// dispatcher. Channels are plain string keys; membership is per session.
package hub

import (
	"sync"

	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/logger"
)

// Subscriber is a live session attached to channels. Deliver must never
// block: delivery is fire and forget, with no acknowledgment and no retry.
type Subscriber interface {
	ID() string
	Deliver(data []byte)
}

type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Subscriber
}

var (
	instance *Hub
	once     sync.Once
)

// GetHub returns the process-wide hub instance.
func GetHub() *Hub {
	once.Do(func() {
		instance = NewHub()
	})
	return instance
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[string]Subscriber)}
}

func (h *Hub) Join(room string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]Subscriber)
		h.rooms[room] = members
	}
	members[sub.ID()] = sub
	logger.DebugF("[%s] Joined channel %s", sub.ID(), room)
}

func (h *Hub) Leave(room string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, sub.ID())
	if len(members) == 0 {
		delete(h.rooms, room)
	}
	logger.DebugF("[%s] Left channel %s", sub.ID(), room)
}

// Broadcast delivers one serialized payload to every current member of the
// channel.
func (h *Hub) Broadcast(room string, data []byte) {
	h.mu.RLock()
	members := make([]Subscriber, 0, len(h.rooms[room]))
	for _, sub := range h.rooms[room] {
		members = append(members, sub)
	}
	h.mu.RUnlock()

	for _, sub := range members {
		sub.Deliver(data)
	}
	logger.DebugF("Broadcast to channel %s reached %d subscribers", room, len(members))
}

// BroadcastExcept is Broadcast minus one subscriber, used for typing
// indicators where the typist already knows.
func (h *Hub) BroadcastExcept(room string, exceptID string, data []byte) {
	h.mu.RLock()
	members := make([]Subscriber, 0, len(h.rooms[room]))
	for id, sub := range h.rooms[room] {
		if id == exceptID {
			continue
		}
		members = append(members, sub)
	}
	h.mu.RUnlock()

	for _, sub := range members {
		sub.Deliver(data)
	}
}

// Members reports the current subscriber count of a channel.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
