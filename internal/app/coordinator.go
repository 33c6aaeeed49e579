// Package app routes inbound client commands to the presence registry and
// the room broadcast channels. It is the only writer of registry state:
// transport adapters parse events and call into the Coordinator, which
// performs external lookups first and registry mutation plus fan-out
// second, never suspending between a capacity check and its commit.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/talkrooms/talkrooms/internal/core"
	"github.com/talkrooms/talkrooms/internal/domain"
	"github.com/talkrooms/talkrooms/internal/presence"
)

const DefaultMaxVoiceUsers = 6

// Directory is the external lookup surface the coordinator needs: room
// resolution by invite code and durable message persistence. The sqlite
// datastore implements it; tests substitute fakes.
type Directory interface {
	RoomByCode(ctx context.Context, code domain.RoomCode) (*domain.Room, error)
	TouchRoom(ctx context.Context, id domain.RoomID) error
	SetLastRoom(ctx context.Context, user domain.UserID, room domain.RoomID) error
	CreateMessage(ctx context.Context, room domain.RoomID, sender domain.UserID, text string) (*domain.Message, error)
}

type Coordinator struct {
	Registry *presence.Registry
	Rooms    *core.RoomSet
	Dir      Directory

	// MaxVoiceUsers caps per-room voice occupancy; zero means the default.
	MaxVoiceUsers int
}

func NewCoordinator(reg *presence.Registry, rooms *core.RoomSet, dir Directory) *Coordinator {
	return &Coordinator{Registry: reg, Rooms: rooms, Dir: dir, MaxVoiceUsers: DefaultMaxVoiceUsers}
}

func (c *Coordinator) maxVoice() int {
	if c.MaxVoiceUsers > 0 {
		return c.MaxVoiceUsers
	}
	return DefaultMaxVoiceUsers
}

// Connect registers a freshly authenticated connection, unbound to any room.
func (c *Coordinator) Connect(id core.ConnID, user *domain.User, sink core.SignalConnection) {
	c.Registry.Register(id, user.ID, user.Username, sink)
}

// JoinRoom binds the connection to a room after resolving it by code.
// Re-joining the current room is a no-op; switching rooms tears down the
// previous binding and refreshes the old room's membership first.
func (c *Coordinator) JoinRoom(ctx context.Context, id core.ConnID, code domain.RoomCode) {
	entry, ok := c.Registry.Get(id)
	if !ok {
		return
	}

	room, err := c.Dir.RoomByCode(ctx, code)
	if err != nil {
		c.sendError(id, "Room not found or unauthorized")
		if !errors.Is(err, domain.ErrRoomNotFound) {
			log.Error().Err(err).Str("module", "app").Str("room", string(code)).Msg("room lookup")
		}
		return
	}

	// Bookkeeping the lookup implies; failures here must not block the join.
	if err := c.Dir.TouchRoom(ctx, room.ID); err != nil {
		log.Warn().Err(err).Str("module", "app").Str("room", string(code)).Msg("touch room")
	}
	if err := c.Dir.SetLastRoom(ctx, entry.UserID, room.ID); err != nil {
		log.Warn().Err(err).Str("module", "app").Str("user", string(entry.UserID)).Msg("set last room")
	}

	if entry.Room == code {
		return
	}

	if entry.Room != "" {
		prev := c.Rooms.GetOrCreate(entry.Room)
		prev.Unsubscribe(id)
		c.Registry.Unbind(id)
		c.broadcastRoomUsers(entry.Room)
	}

	sink, ok := c.Registry.Sink(id)
	if !ok {
		// Disconnected mid-join; nothing left to bind.
		return
	}
	c.Registry.Bind(id, code)
	ch := c.Rooms.GetOrCreate(code)
	ch.Subscribe(id, sink)

	if frame, ok := encode(userJoinedEvent{
		Type:     "userjoined",
		Username: entry.Username,
		Message:  fmt.Sprintf("%s has joined the room.", entry.Username),
	}); ok {
		ch.BroadcastExcept(id, frame)
	}
	c.broadcastRoomUsers(code)
}

// OnDisconnect removes the presence entry and synthesizes the leave the
// client never sends. The teardown obligations are inferred from registry
// state at removal time, so a voice participant's peers always get their
// userLeftVoice.
func (c *Coordinator) OnDisconnect(id core.ConnID) {
	entry, ok := c.Registry.Remove(id)
	if !ok || entry.Room == "" {
		return
	}
	ch := c.Rooms.GetOrCreate(entry.Room)
	ch.Unsubscribe(id)
	if entry.InVoice {
		if frame, ok := encode(userLeftVoiceEvent{Type: "userLeftVoice", ConnID: id}); ok {
			ch.Broadcast(frame)
		}
	}
	c.broadcastRoomUsers(entry.Room)
}

func (c *Coordinator) broadcastRoomUsers(code domain.RoomCode) {
	frame, ok := encode(roomUsersEvent{Type: "roomUsers", Users: c.Registry.MembersOf(code)})
	if !ok {
		return
	}
	c.Rooms.GetOrCreate(code).Broadcast(frame)
}

// sendError delivers a requester-scoped error; it is never broadcast.
func (c *Coordinator) sendError(id core.ConnID, msg string) {
	c.sendTo(id, errorEvent{Type: "error", Message: msg})
}

func (c *Coordinator) sendTo(id core.ConnID, v any) {
	sink, ok := c.Registry.Sink(id)
	if !ok {
		return
	}
	frame, ok := encode(v)
	if !ok {
		return
	}
	if err := sink.TrySend(frame); err != nil {
		log.Debug().Err(err).Str("module", "app").Str("conn", string(id)).Msg("direct send dropped")
	}
}
