package app

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/talkrooms/talkrooms/internal/core"
	"github.com/talkrooms/talkrooms/internal/domain"
)

// JoinVoice seats the connection in the room's voice channel. The
// occupancy check and the seat commit are one registry operation, so the
// capacity limit holds under concurrent joins. Only connections already
// bound to the room may join; anything else is ignored.
func (c *Coordinator) JoinVoice(id core.ConnID, code domain.RoomCode) {
	entry, ok := c.Registry.Get(id)
	if !ok {
		return
	}

	joined, full := c.Registry.TryJoinVoice(id, code, c.maxVoice())
	if full {
		c.sendTo(id, errorEvent{
			Type:    "voiceError",
			Message: fmt.Sprintf("Voice channel is full (max %d users).", c.maxVoice()),
		})
		return
	}
	if !joined {
		return
	}

	// Existing voice participants originate the negotiation offer toward
	// the newcomer, so only they learn the new peer's connection id.
	frame, ok := encode(userJoinedVoiceEvent{
		Type:     "userJoinedVoice",
		ConnID:   id,
		UserID:   entry.UserID,
		Username: entry.Username,
	})
	if ok {
		for _, peer := range c.Registry.VoicePeers(code, id) {
			if sink, ok := c.Registry.Sink(peer.Conn); ok {
				if err := sink.TrySend(frame); err != nil {
					log.Debug().Err(err).Str("module", "app").Str("conn", string(peer.Conn)).Msg("voice notify dropped")
				}
			}
		}
	}

	c.broadcastRoomUsers(code)
}

// LeaveVoice frees the seat and tells every other room subscriber to tear
// down their side of the peer link.
func (c *Coordinator) LeaveVoice(id core.ConnID, code domain.RoomCode) {
	c.Registry.SetVoice(id, false)
	if frame, ok := encode(userLeftVoiceEvent{Type: "userLeftVoice", ConnID: id}); ok {
		c.Rooms.GetOrCreate(code).BroadcastExcept(id, frame)
	}
	c.broadcastRoomUsers(code)
}

// RelaySignal forwards an opaque negotiation payload verbatim to the named
// target connection, re-keyed under field and tagged with the sender. No
// state is stored or validated; a vanished target means a silent drop and
// the sender's negotiation attempt simply times out.
func (c *Coordinator) RelaySignal(from core.ConnID, to core.ConnID, event, field string, payload json.RawMessage) {
	sink, ok := c.Registry.Sink(to)
	if !ok {
		log.Debug().Str("module", "app").Str("from", string(from)).Str("to", string(to)).Str("event", event).Msg("relay target gone")
		return
	}
	frame, ok := encode(rtcRelayEvent(event, field, payload, from))
	if !ok {
		return
	}
	if err := sink.TrySend(frame); err != nil {
		log.Debug().Err(err).Str("module", "app").Str("to", string(to)).Msg("relay send dropped")
	}
}
