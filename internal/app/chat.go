package app

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/talkrooms/talkrooms/internal/core"
	"github.com/talkrooms/talkrooms/internal/domain"
)

// SendMessage persists the message attributed to the registry-resolved
// sender and broadcasts the hydrated result to every subscriber of the
// room, sender included. Empty or whitespace-only text is dropped without
// error, persistence, or broadcast.
func (c *Coordinator) SendMessage(ctx context.Context, id core.ConnID, code domain.RoomCode, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	entry, ok := c.Registry.Get(id)
	if !ok {
		return
	}

	room, err := c.Dir.RoomByCode(ctx, code)
	if err != nil {
		c.sendError(id, "Room not found")
		if !errors.Is(err, domain.ErrRoomNotFound) {
			log.Error().Err(err).Str("module", "app").Str("room", string(code)).Msg("room lookup")
		}
		return
	}
	if err := c.Dir.TouchRoom(ctx, room.ID); err != nil {
		log.Warn().Err(err).Str("module", "app").Str("room", string(code)).Msg("touch room")
	}

	msg, err := c.Dir.CreateMessage(ctx, room.ID, entry.UserID, text)
	if err != nil {
		log.Error().Err(err).Str("module", "app").Str("room", string(code)).Msg("persist message")
		c.sendError(id, "Could not deliver message")
		return
	}

	ch := c.Rooms.GetOrCreate(code)
	if frame, ok := encode(newMessageEvent{Type: "newMessage", Message: msg}); ok {
		ch.Broadcast(frame)
	}
	if frame, ok := encode(scrollToBottomEvent{Type: "scrollToBottom"}); ok {
		ch.Broadcast(frame)
	}
}

// Typing forwards the indicator to everyone in the room but the sender.
// Nothing is stored; staleness is the client's problem.
func (c *Coordinator) Typing(id core.ConnID, code domain.RoomCode, isTyping bool) {
	entry, ok := c.Registry.Get(id)
	if !ok {
		return
	}
	frame, ok := encode(typingEvent{Type: "typing", Username: entry.Username, IsTyping: isTyping})
	if !ok {
		return
	}
	c.Rooms.GetOrCreate(code).BroadcastExcept(id, frame)
}
