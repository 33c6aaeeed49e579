package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/talkrooms/talkrooms/internal/core"
	"github.com/talkrooms/talkrooms/internal/domain"
	"github.com/talkrooms/talkrooms/internal/presence"
)

// Outbound event payloads. The Type field doubles as the client-side
// event name, so these match the wire protocol exactly.

type roomUsersEvent struct {
	Type  string            `json:"type"`
	Users []presence.Member `json:"users"`
}

type userJoinedEvent struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

type newMessageEvent struct {
	Type    string          `json:"type"`
	Message *domain.Message `json:"message"`
}

type scrollToBottomEvent struct {
	Type string `json:"type"`
}

type typingEvent struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type userJoinedVoiceEvent struct {
	Type     string        `json:"type"`
	ConnID   core.ConnID   `json:"connId"`
	UserID   domain.UserID `json:"userId"`
	Username string        `json:"username"`
}

type userLeftVoiceEvent struct {
	Type   string      `json:"type"`
	ConnID core.ConnID `json:"connId"`
}

// rtcRelayEvent builds the outbound negotiation envelope: the opaque
// payload re-emitted under the same per-event key it arrived with (offer,
// answer or candidate), tagged with the sender so the target can address
// its reply. The payload is never parsed.
func rtcRelayEvent(event, field string, payload json.RawMessage, from core.ConnID) map[string]any {
	return map[string]any{
		"type": event,
		field:  payload,
		"from": from,
	}
}

func encode(v any) (core.Frame, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app").Msg("encode event")
		return nil, false
	}
	return b, true
}
