package core_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/talkrooms/talkrooms/internal/core"
)

type recordSink struct {
	mu     sync.Mutex
	frames []core.Frame
	fail   bool
}

func (s *recordSink) TrySend(f core.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("backpressure")
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *recordSink) Close() {}

func (s *recordSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	t.Parallel()
	room := core.NewRoom("R1")
	a, b := &recordSink{}, &recordSink{}
	room.Subscribe("a", a)
	room.Subscribe("b", b)

	res := room.Broadcast(core.Frame(`{"type":"x"}`))
	if res.SentTo != 2 || len(res.Dropped) != 0 {
		t.Fatalf("result = %+v, want 2 sent, 0 dropped", res)
	}
	if a.count() != 1 || b.count() != 1 {
		t.Errorf("deliveries: a=%d b=%d, want 1 each", a.count(), b.count())
	}
}

func TestBroadcastExceptSkipsSender(t *testing.T) {
	t.Parallel()
	room := core.NewRoom("R1")
	a, b := &recordSink{}, &recordSink{}
	room.Subscribe("a", a)
	room.Subscribe("b", b)

	room.BroadcastExcept("a", core.Frame(`{}`))
	if a.count() != 0 {
		t.Errorf("sender received its own broadcast")
	}
	if b.count() != 1 {
		t.Errorf("other subscriber deliveries = %d, want 1", b.count())
	}
}

func TestBroadcastReportsBackpressure(t *testing.T) {
	t.Parallel()
	room := core.NewRoom("R1")
	slow := &recordSink{fail: true}
	ok := &recordSink{}
	room.Subscribe("slow", slow)
	room.Subscribe("ok", ok)

	res := room.Broadcast(core.Frame(`{}`))
	if res.SentTo != 1 {
		t.Errorf("sent = %d, want 1", res.SentTo)
	}
	if len(res.Dropped) != 1 || res.Dropped[0] != "slow" {
		t.Errorf("dropped = %v, want [slow]", res.Dropped)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()
	room := core.NewRoom("R1")
	a := &recordSink{}
	room.Subscribe("a", a)
	room.Unsubscribe("a")

	room.Broadcast(core.Frame(`{}`))
	if a.count() != 0 {
		t.Errorf("unsubscribed sink still received frames")
	}
	if room.SubscriberCount() != 0 {
		t.Errorf("subscriber count = %d, want 0", room.SubscriberCount())
	}
}

func TestRoomSetListReportsSubscriberCounts(t *testing.T) {
	t.Parallel()
	set := core.NewRoomSet()
	r1 := set.GetOrCreate("R1")
	r1.Subscribe("a", &recordSink{})
	r1.Subscribe("b", &recordSink{})
	set.GetOrCreate("R2")

	got := map[string]int{}
	for _, info := range set.List() {
		got[string(info.Code)] = info.SubscriberCount
	}
	want := map[string]int{"R1": 2, "R2": 0}
	for code, n := range want {
		if got[code] != n {
			t.Errorf("room %s subscribers = %d, want %d", code, got[code], n)
		}
	}
	if len(got) != len(want) {
		t.Errorf("listed %d rooms, want %d", len(got), len(want))
	}
}

func TestRoomSetGetOrCreateIsStable(t *testing.T) {
	t.Parallel()
	set := core.NewRoomSet()
	r1 := set.GetOrCreate("R1")
	if set.GetOrCreate("R1") != r1 {
		t.Error("GetOrCreate returned a different room for the same code")
	}
	set.Drop("R1")
	if set.GetOrCreate("R1") == r1 {
		t.Error("Drop did not forget the room")
	}
}
