// Package presence is the authoritative in-memory view of who is
// connected, to which room, and whether they are in the voice channel.
// State lives for the process lifetime only; clients re-announce on
// reconnect.
package presence

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/talkrooms/talkrooms/internal/core"
	"github.com/talkrooms/talkrooms/internal/domain"
)

// Entry is a snapshot of one connection's presence record.
type Entry struct {
	Conn     core.ConnID
	UserID   domain.UserID
	Username string
	Room     domain.RoomCode
	InVoice  bool
}

// Member is the client-facing membership view row.
type Member struct {
	UserID   domain.UserID `json:"userId"`
	Username string        `json:"username"`
	InVoice  bool          `json:"inVoice"`
}

// Peer identifies a connection for voice signaling purposes.
type Peer struct {
	Conn     core.ConnID   `json:"connId"`
	UserID   domain.UserID `json:"userId"`
	Username string        `json:"username"`
}

type entry struct {
	userID   domain.UserID
	username string
	room     domain.RoomCode
	inVoice  bool
	sink     core.SignalConnection
	seq      uint64
}

// Registry keys live connections to presence entries. Every operation on a
// given connection id is atomic under one mutex; in particular
// TryJoinVoice reads occupancy and commits the voice flag without any
// suspension point in between, which is what keeps the capacity limit
// exact under concurrent joins.
type Registry struct {
	mu      sync.Mutex
	entries map[core.ConnID]*entry
	nextSeq uint64
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[core.ConnID]*entry)}
}

// Register creates (or overwrites) an unbound entry for a freshly
// authenticated connection.
func (r *Registry) Register(id core.ConnID, userID domain.UserID, username string, sink core.SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSeq++
	r.entries[id] = &entry{userID: userID, username: username, sink: sink, seq: r.nextSeq}
	log.Info().Str("module", "presence").Str("conn", string(id)).Str("user", string(userID)).Msg("registered")
}

// Bind sets the connection's room; it always clears the voice flag because
// voice membership never survives a room change.
func (r *Registry) Bind(id core.ConnID, code domain.RoomCode) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.room = code
	e.inVoice = false
	log.Info().Str("module", "presence").Str("conn", string(id)).Str("room", string(code)).Msg("bound")
	return true
}

// Unbind clears the room binding but keeps the entry alive, so the
// connection can join another room later.
func (r *Registry) Unbind(id core.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.room = ""
		e.inVoice = false
	}
	log.Info().Str("module", "presence").Str("conn", string(id)).Msg("unbound")
}

func (r *Registry) SetVoice(id core.ConnID, inVoice bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.inVoice = inVoice
	}
}

// Remove deletes the entry and returns its final state, so disconnect
// handling can infer the teardown obligations (room broadcast, voice
// leave) from what was true at removal time.
func (r *Registry) Remove(id core.ConnID) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, false
	}
	delete(r.entries, id)
	log.Info().Str("module", "presence").Str("conn", string(id)).Msg("removed")
	return r.snapshot(id, e), true
}

func (r *Registry) Get(id core.ConnID) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, false
	}
	return r.snapshot(id, e), true
}

// Sink returns the transport for a live connection, if any.
func (r *Registry) Sink(id core.ConnID) (core.SignalConnection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.sink, true
}

// MembersOf returns the room's membership view: one row per userId (first
// registered connection wins), ordered by registration sequence.
func (r *Registry) MembersOf(code domain.RoomCode) []Member {
	r.mu.Lock()
	defer r.mu.Unlock()

	type row struct {
		m   Member
		seq uint64
	}
	byUser := make(map[domain.UserID]*row)
	for _, e := range r.entries {
		if e.room != code {
			continue
		}
		if prev, ok := byUser[e.userID]; ok {
			// Any of the user's connections being in voice marks the
			// user as in voice for display.
			if e.inVoice {
				prev.m.InVoice = true
			}
			if e.seq < prev.seq {
				prev.seq = e.seq
			}
			continue
		}
		byUser[e.userID] = &row{
			m:   Member{UserID: e.userID, Username: e.username, InVoice: e.inVoice},
			seq: e.seq,
		}
	}

	rows := make([]*row, 0, len(byUser))
	for _, v := range byUser {
		rows = append(rows, v)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	out := make([]Member, len(rows))
	for i, v := range rows {
		out[i] = v.m
	}
	return out
}

// VoiceCount reports voice occupancy per connection, not per user: two
// tabs of one user take two seats.
func (r *Registry) VoiceCount(code domain.RoomCode) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.voiceCountLocked(code)
}

func (r *Registry) voiceCountLocked(code domain.RoomCode) int {
	n := 0
	for _, e := range r.entries {
		if e.room == code && e.inVoice {
			n++
		}
	}
	return n
}

// TryJoinVoice is the atomic check-then-commit guarding voice capacity.
// The occupancy read and the flag flip happen under one lock acquisition,
// so concurrent joins on the same room can never push occupancy past max.
// It reports full=true only for a capacity rejection; joins from
// connections not bound to code, or already seated, are no-ops.
func (r *Registry) TryJoinVoice(id core.ConnID, code domain.RoomCode, max int) (joined bool, full bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.room != code {
		return false, false
	}
	if e.inVoice {
		// Already seated; a duplicate join must not re-notify peers.
		return false, false
	}
	if r.voiceCountLocked(code) >= max {
		return false, true
	}
	e.inVoice = true
	log.Info().Str("module", "presence").Str("conn", string(id)).Str("room", string(code)).Msg("joined voice")
	return true, false
}

// VoicePeers lists the connections currently in voice for a room,
// excluding the given one. Unlike MembersOf this is per connection:
// signaling targets are transports, not users.
func (r *Registry) VoicePeers(code domain.RoomCode, except core.ConnID) []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Peer
	for id, e := range r.entries {
		if id == except || e.room != code || !e.inVoice {
			continue
		}
		out = append(out, Peer{Conn: id, UserID: e.userID, Username: e.username})
	}
	return out
}

func (r *Registry) snapshot(id core.ConnID, e *entry) Entry {
	return Entry{Conn: id, UserID: e.userID, Username: e.username, Room: e.room, InVoice: e.inVoice}
}
