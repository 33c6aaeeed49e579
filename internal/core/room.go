package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/talkrooms/talkrooms/internal/domain"
)

// Room is the broadcast channel for one room code: the set of live
// subscriber connections. It owns the subscription set but never closes
// adapter-owned transports.
//
// Fan-out holds the room lock for the whole pass, so per-room delivery
// order equals the order broadcasts were committed in.
type Room struct {
	code domain.RoomCode

	mu   sync.Mutex
	subs map[ConnID]SignalConnection
}

func NewRoom(code domain.RoomCode) *Room {
	return &Room{code: code, subs: make(map[ConnID]SignalConnection)}
}

func (r *Room) Code() domain.RoomCode { return r.code }

func (r *Room) SubscriberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

func (r *Room) Subscribe(id ConnID, conn SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[id] = conn
	log.Debug().Str("module", "core.room").Str("room", string(r.code)).Str("conn", string(id)).Msg("subscribed")
}

func (r *Room) Unsubscribe(id ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, id)
	log.Debug().Str("module", "core.room").Str("room", string(r.code)).Str("conn", string(id)).Msg("unsubscribed")
}

// Broadcast delivers data to every subscriber.
func (r *Room) Broadcast(data Frame) PublishResult {
	return r.fanOut("", data)
}

// BroadcastExcept delivers data to every subscriber but from.
func (r *Room) BroadcastExcept(from ConnID, data Frame) PublishResult {
	return r.fanOut(from, data)
}

func (r *Room) fanOut(skip ConnID, data Frame) PublishResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := PublishResult{}
	for id, conn := range r.subs {
		if id == skip {
			continue
		}
		if err := conn.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.code)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
