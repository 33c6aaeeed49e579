package core

import (
	"sync"

	"github.com/talkrooms/talkrooms/internal/domain"
)

type RoomInfo struct {
	Code            domain.RoomCode `json:"code"`
	SubscriberCount int             `json:"subscriberCount"`
}

// RoomSet hands out broadcast rooms by code, creating them on demand.
type RoomSet struct {
	mu    sync.RWMutex
	rooms map[domain.RoomCode]*Room
}

func NewRoomSet() *RoomSet {
	return &RoomSet{rooms: make(map[domain.RoomCode]*Room)}
}

func (s *RoomSet) GetOrCreate(code domain.RoomCode) *Room {
	s.mu.RLock()
	room, ok := s.rooms[code]
	s.mu.RUnlock()
	if ok {
		return room
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok = s.rooms[code]; ok {
		return room
	}
	room = NewRoom(code)
	s.rooms[code] = room
	return room
}

func (s *RoomSet) List() []RoomInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RoomInfo, 0, len(s.rooms))
	for code, r := range s.rooms {
		out = append(out, RoomInfo{Code: code, SubscriberCount: r.SubscriberCount()})
	}
	return out
}

// Drop forgets an empty broadcast room. Subscribed connections keep their
// reference; dropping only stops new lookups from reviving state.
func (s *RoomSet) Drop(code domain.RoomCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
}
