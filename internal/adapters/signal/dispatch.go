package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/talkrooms/talkrooms/internal/core"
	"github.com/talkrooms/talkrooms/internal/domain"
)

// dispatch routes one inbound envelope to its handler. Each event is
// handled behind its own recover: a panic while handling one connection's
// event is logged and surfaced to that connection only, and never takes
// down the pump or touches anyone else.
func (ctl *Controller) dispatch(ctx context.Context, id core.ConnID, c *WsConn, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Any("panic", r).Str("module", "signal").Str("conn", string(id)).Msg("event handler panic")
			ctl.sendJSON(c, map[string]any{"type": "error", "message": "Something went wrong"})
		}
	}()

	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "joinRoom":
		ctl.handleJoinRoom(ctx, id, data)
	case "sendMessage":
		ctl.handleSendMessage(ctx, id, c, data)
	case "typing":
		ctl.handleTyping(id, data)
	case "joinVoice":
		ctl.handleJoinVoice(id, data)
	case "leaveVoice":
		ctl.handleLeaveVoice(id, data)
	case "webrtc-offer":
		ctl.handleRTC(id, "webrtc-offer", "offer", data)
	case "webrtc-answer":
		ctl.handleRTC(id, "webrtc-answer", "answer", data)
	case "webrtc-ice-candidate":
		ctl.handleRTC(id, "webrtc-ice-candidate", "candidate", data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown event")
	}
}

func (ctl *Controller) handleJoinRoom(ctx context.Context, id core.ConnID, data []byte) {
	var p struct {
		Room domain.RoomCode `json:"room"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" {
		log.Warn().Str("module", "signal").Msg("bad joinRoom payload")
		return
	}
	ctl.Coord.JoinRoom(ctx, id, p.Room)
}

func (ctl *Controller) handleSendMessage(ctx context.Context, id core.ConnID, c *WsConn, data []byte) {
	var p struct {
		Room    domain.RoomCode `json:"room"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" {
		log.Warn().Str("module", "signal").Msg("bad sendMessage payload")
		return
	}
	if !ctl.limiter.Allow(id) {
		ctl.sendJSON(c, map[string]any{"type": "error", "message": "You are sending messages too fast"})
		return
	}
	ctl.Coord.SendMessage(ctx, id, p.Room, p.Message)
}

func (ctl *Controller) handleTyping(id core.ConnID, data []byte) {
	var p struct {
		Room     domain.RoomCode `json:"room"`
		IsTyping bool            `json:"isTyping"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" {
		return
	}
	ctl.Coord.Typing(id, p.Room, p.IsTyping)
}

func (ctl *Controller) handleJoinVoice(id core.ConnID, data []byte) {
	var p struct {
		Room domain.RoomCode `json:"room"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" {
		return
	}
	ctl.Coord.JoinVoice(id, p.Room)
}

func (ctl *Controller) handleLeaveVoice(id core.ConnID, data []byte) {
	var p struct {
		Room domain.RoomCode `json:"room"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" {
		return
	}
	ctl.Coord.LeaveVoice(id, p.Room)
}

// handleRTC relays one negotiation message. The payload field differs per
// event name on the wire; all three travel through the coordinator as an
// opaque blob.
func (ctl *Controller) handleRTC(id core.ConnID, event, field string, data []byte) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return
	}
	var to core.ConnID
	if err := json.Unmarshal(raw["to"], &to); err != nil || to == "" {
		return
	}
	payload, ok := raw[field]
	if !ok {
		return
	}
	ctl.Coord.RelaySignal(id, to, event, field, payload)
}

func (ctl *Controller) sendJSON(c *WsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
