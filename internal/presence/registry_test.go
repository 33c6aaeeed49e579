package presence_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/talkrooms/talkrooms/internal/core"
	"github.com/talkrooms/talkrooms/internal/domain"
	"github.com/talkrooms/talkrooms/internal/presence"
)

type nullSink struct{}

func (nullSink) TrySend(core.Frame) error { return nil }
func (nullSink) Close()                   {}

func TestMembersOfDeduplicatesByUser(t *testing.T) {
	t.Parallel()
	r := presence.NewRegistry()

	// Two tabs of alice plus one bob, all in the same room.
	r.Register("c1", "u-alice", "alice", nullSink{})
	r.Register("c2", "u-alice", "alice", nullSink{})
	r.Register("c3", "u-bob", "bob", nullSink{})
	r.Bind("c1", "R1")
	r.Bind("c2", "R1")
	r.Bind("c3", "R1")

	got := r.MembersOf("R1")
	want := []presence.Member{
		{UserID: "u-alice", Username: "alice"},
		{UserID: "u-bob", Username: "bob"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MembersOf mismatch (-want +got):\n%s", diff)
	}
}

func TestMembersOfVoiceFlagAcrossTabs(t *testing.T) {
	t.Parallel()
	r := presence.NewRegistry()
	r.Register("c1", "u-alice", "alice", nullSink{})
	r.Register("c2", "u-alice", "alice", nullSink{})
	r.Bind("c1", "R1")
	r.Bind("c2", "R1")
	r.SetVoice("c2", true)

	got := r.MembersOf("R1")
	if len(got) != 1 {
		t.Fatalf("expected 1 member, got %d", len(got))
	}
	if !got[0].InVoice {
		t.Errorf("any in-voice connection should mark the user in voice")
	}
}

func TestBindClearsVoice(t *testing.T) {
	t.Parallel()
	r := presence.NewRegistry()
	r.Register("c1", "u1", "alice", nullSink{})
	r.Bind("c1", "R1")
	if joined, _ := r.TryJoinVoice("c1", "R1", 6); !joined {
		t.Fatal("expected voice join to succeed")
	}

	r.Bind("c1", "R2")
	if n := r.VoiceCount("R1"); n != 0 {
		t.Errorf("voice count for old room = %d, want 0", n)
	}
	entry, ok := r.Get("c1")
	if !ok || entry.InVoice {
		t.Errorf("rebinding must clear the voice flag, got %+v", entry)
	}
}

func TestTryJoinVoiceRequiresBinding(t *testing.T) {
	t.Parallel()
	r := presence.NewRegistry()
	r.Register("c1", "u1", "alice", nullSink{})

	joined, full := r.TryJoinVoice("c1", "R1", 6)
	if joined || full {
		t.Errorf("unbound join: joined=%v full=%v, want both false", joined, full)
	}

	r.Bind("c1", "R1")
	joined, full = r.TryJoinVoice("c1", "R2", 6)
	if joined || full {
		t.Errorf("wrong-room join: joined=%v full=%v, want both false", joined, full)
	}
}

func TestTryJoinVoiceDuplicateIsNoop(t *testing.T) {
	t.Parallel()
	r := presence.NewRegistry()
	r.Register("c1", "u1", "alice", nullSink{})
	r.Bind("c1", "R1")

	if joined, _ := r.TryJoinVoice("c1", "R1", 6); !joined {
		t.Fatal("first join should succeed")
	}
	joined, full := r.TryJoinVoice("c1", "R1", 6)
	if joined || full {
		t.Errorf("duplicate join: joined=%v full=%v, want both false", joined, full)
	}
	if n := r.VoiceCount("R1"); n != 1 {
		t.Errorf("voice count = %d, want 1", n)
	}
}

func TestVoiceCapacityUnderConcurrentJoins(t *testing.T) {
	t.Parallel()
	const (
		max     = 6
		racers  = 32
		roomKey = "R1"
	)
	r := presence.NewRegistry()
	for i := 0; i < racers; i++ {
		id := core.ConnID(fmt.Sprintf("c%d", i))
		r.Register(id, domain.UserID(fmt.Sprintf("u%d", i)), fmt.Sprintf("user%d", i), nullSink{})
		r.Bind(id, roomKey)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	joinedCount, fullCount := 0, 0
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			joined, full := r.TryJoinVoice(core.ConnID(fmt.Sprintf("c%d", i)), roomKey, max)
			mu.Lock()
			defer mu.Unlock()
			if joined {
				joinedCount++
			}
			if full {
				fullCount++
			}
		}(i)
	}
	wg.Wait()

	if joinedCount != max {
		t.Errorf("joined = %d, want exactly %d", joinedCount, max)
	}
	if fullCount != racers-max {
		t.Errorf("rejections = %d, want %d", fullCount, racers-max)
	}
	if n := r.VoiceCount(roomKey); n != max {
		t.Errorf("voice count = %d, want %d", n, max)
	}
}

func TestRemoveReturnsFinalState(t *testing.T) {
	t.Parallel()
	r := presence.NewRegistry()
	r.Register("c1", "u1", "alice", nullSink{})
	r.Bind("c1", "R1")
	r.SetVoice("c1", true)

	entry, ok := r.Remove("c1")
	if !ok {
		t.Fatal("expected removal to find the entry")
	}
	want := presence.Entry{Conn: "c1", UserID: "u1", Username: "alice", Room: "R1", InVoice: true}
	if diff := cmp.Diff(want, entry); diff != "" {
		t.Errorf("removed entry mismatch (-want +got):\n%s", diff)
	}

	if _, ok := r.Remove("c1"); ok {
		t.Error("second removal must report the entry gone")
	}
	if _, ok := r.Get("c1"); ok {
		t.Error("entry still visible after removal")
	}
}

func TestVoicePeersExcludesCaller(t *testing.T) {
	t.Parallel()
	r := presence.NewRegistry()
	for _, id := range []core.ConnID{"c1", "c2", "c3"} {
		r.Register(id, domain.UserID("u-"+string(id)), string(id), nullSink{})
		r.Bind(id, "R1")
	}
	r.SetVoice("c1", true)
	r.SetVoice("c2", true)

	peers := r.VoicePeers("R1", "c1")
	if len(peers) != 1 || peers[0].Conn != "c2" {
		t.Errorf("VoicePeers = %+v, want only c2", peers)
	}
}
