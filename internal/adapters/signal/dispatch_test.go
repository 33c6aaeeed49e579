package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/talkrooms/talkrooms/internal/app"
	"github.com/talkrooms/talkrooms/internal/core"
	"github.com/talkrooms/talkrooms/internal/domain"
	"github.com/talkrooms/talkrooms/internal/presence"
)

// memSink records frames the coordinator pushes at a connection.
type memSink struct {
	frames []core.Frame
}

func (s *memSink) TrySend(f core.Frame) error {
	s.frames = append(s.frames, f)
	return nil
}

func (s *memSink) Close() {}

func (s *memSink) typed(t *testing.T, want string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, f := range s.frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatalf("bad frame %q: %v", f, err)
		}
		if m["type"] == want {
			out = append(out, m)
		}
	}
	return out
}

type staticDir struct {
	room *domain.Room
}

func (d *staticDir) RoomByCode(_ context.Context, code domain.RoomCode) (*domain.Room, error) {
	if d.room != nil && d.room.Code == code {
		return d.room, nil
	}
	return nil, domain.ErrRoomNotFound
}

func (d *staticDir) TouchRoom(context.Context, domain.RoomID) error { return nil }

func (d *staticDir) SetLastRoom(context.Context, domain.UserID, domain.RoomID) error { return nil }

func (d *staticDir) CreateMessage(_ context.Context, room domain.RoomID, sender domain.UserID, text string) (*domain.Message, error) {
	return &domain.Message{ID: "m1", RoomID: room, SenderID: sender, Text: text, CreatedAt: time.Now()}, nil
}

func newDispatchFixture(t *testing.T) (*Controller, *presence.Registry) {
	t.Helper()
	reg := presence.NewRegistry()
	dir := &staticDir{room: &domain.Room{ID: "r1", Name: "General", Code: "AB12CD"}}
	coord := app.NewCoordinator(reg, core.NewRoomSet(), dir)
	ctl := NewController(coord, nil, nil, Options{MessageLimit: 2, MessageWindow: time.Hour})
	return ctl, reg
}

func seat(t *testing.T, ctl *Controller, reg *presence.Registry, id core.ConnID, user string) *memSink {
	t.Helper()
	sink := &memSink{}
	reg.Register(id, domain.UserID("u-"+user), user, sink)
	ctl.dispatch(context.Background(), id, nil, []byte(`{"type":"joinRoom","room":"AB12CD"}`))
	return sink
}

func TestDispatchJoinRoom(t *testing.T) {
	t.Parallel()
	ctl, reg := newDispatchFixture(t)
	sink := seat(t, ctl, reg, "c1", "alice")

	got := sink.typed(t, "roomUsers")
	if len(got) != 1 {
		t.Fatalf("roomUsers events = %d, want 1", len(got))
	}
	users := got[0]["users"].([]any)
	if len(users) != 1 {
		t.Fatalf("roster size = %d, want 1", len(users))
	}
}

func TestDispatchIgnoresMalformedInput(t *testing.T) {
	t.Parallel()
	ctl, reg := newDispatchFixture(t)
	sink := seat(t, ctl, reg, "c1", "alice")
	before := len(sink.frames)

	for _, raw := range []string{
		`not json at all`,
		`{"type":"noSuchEvent"}`,
		`{"type":"joinRoom"}`,
		`{"type":"sendMessage","message":"no room"}`,
		`{"type":"webrtc-offer","offer":{}}`,
	} {
		ctl.dispatch(context.Background(), "c1", nil, []byte(raw))
	}
	if len(sink.frames) != before {
		t.Errorf("malformed input produced %d frames", len(sink.frames)-before)
	}
}

func TestDispatchSendMessageRateLimited(t *testing.T) {
	t.Parallel()
	ctl, reg := newDispatchFixture(t)
	sink := seat(t, ctl, reg, "c1", "alice")

	// The limiter replies on the transport conn, not through the registry.
	wc := &WsConn{send: make(chan core.Frame, 8)}
	msg := []byte(`{"type":"sendMessage","room":"AB12CD","message":"hi"}`)
	ctl.dispatch(context.Background(), "c1", wc, msg)
	ctl.dispatch(context.Background(), "c1", wc, msg)
	ctl.dispatch(context.Background(), "c1", wc, msg)

	if got := len(sink.typed(t, "newMessage")); got != 2 {
		t.Errorf("delivered messages = %d, want 2", got)
	}
	select {
	case f := <-wc.send:
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatal(err)
		}
		if m["type"] != "error" {
			t.Errorf("throttle reply type = %v, want error", m["type"])
		}
	default:
		t.Error("no throttle reply on the connection")
	}
}

func TestDispatchRelaysOffer(t *testing.T) {
	t.Parallel()
	ctl, reg := newDispatchFixture(t)
	seat(t, ctl, reg, "c1", "alice")
	target := seat(t, ctl, reg, "c2", "bob")

	ctl.dispatch(context.Background(), "c1", nil,
		[]byte(`{"type":"webrtc-offer","to":"c2","offer":{"sdp":"v=0","type":"offer"}}`))

	got := target.typed(t, "webrtc-offer")
	if len(got) != 1 {
		t.Fatalf("offers relayed = %d, want 1", len(got))
	}
	if got[0]["from"] != "c1" {
		t.Errorf("from = %v, want c1", got[0]["from"])
	}
	offer, ok := got[0]["offer"].(map[string]any)
	if !ok {
		t.Fatalf("blob not re-emitted under the offer key: %v", got[0])
	}
	if offer["sdp"] != "v=0" {
		t.Errorf("offer not forwarded verbatim: %v", offer)
	}
}

func newOriginRequest(t *testing.T, origin string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/api/ws", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func TestOriginChecker(t *testing.T) {
	t.Parallel()

	check := originChecker([]string{"http://localhost:5173"})
	for origin, want := range map[string]bool{
		"http://localhost:5173": true,
		"http://evil.test":      false,
		"":                      true, // non-browser clients carry no Origin
	} {
		r := newOriginRequest(t, origin)
		if got := check(r); got != want {
			t.Errorf("origin %q allowed=%v, want %v", origin, got, want)
		}
	}

	wildcard := originChecker([]string{"*"})
	if !wildcard(newOriginRequest(t, "http://anywhere.test")) {
		t.Error("wildcard rejected an origin")
	}
}
