package presence

import (
	"sync"
	"testing"

	"github.com/gosuda/neutron/internal/wire"
)

type fakePeer struct {
	id      string
	mu      sync.Mutex
	deliver []wire.PacketType
}

func (f *fakePeer) UserID() string { return f.id }
func (f *fakePeer) Deliver(typ wire.PacketType, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliver = append(f.deliver, typ)
}

func TestConnectDisconnectRemovesFromBothMaps(t *testing.T) {
	reg := New()
	p := &fakePeer{id: "alice"}

	reg.Connect(p)
	reg.JoinRoom("room1", p)

	if !reg.OtherUserConnectionExists("room1", "alice", nil) {
		t.Fatalf("expected alice's connection to be visible in room1")
	}

	reg.Disconnect(p, "room1")

	if reg.OtherUserConnectionExists("room1", "alice", nil) {
		t.Fatalf("expected alice to be gone from room1 after disconnect")
	}
}

func TestNotifyGateSuppressedForSameUserMultiConnection(t *testing.T) {
	reg := New()
	a1 := &fakePeer{id: "alice"}
	a2 := &fakePeer{id: "alice"}

	reg.Connect(a1)
	reg.JoinRoom("room1", a1)

	// a1 already present; a2 joining the same room/user should see notify
	// suppressed per the §4.5 gate.
	if reg.OtherUserConnectionExists("room1", "alice", a2) == false {
		t.Fatalf("expected existing a1 connection to suppress notify for a2's join")
	}
}

func TestDistinctOtherUsersExcludesSelfAndOwnOtherConnections(t *testing.T) {
	reg := New()
	alice := &fakePeer{id: "alice"}
	aliceOther := &fakePeer{id: "alice"}
	bob := &fakePeer{id: "bob"}

	reg.JoinRoom("room1", alice)
	reg.JoinRoom("room1", aliceOther)
	reg.JoinRoom("room1", bob)

	others := reg.DistinctOtherUsers("room1", alice)
	if len(others) != 1 || others[0].UserID() != "bob" {
		t.Fatalf("expected only bob as distinct other user, got %+v", others)
	}
}

func TestBroadcastExcludesSenderAndDelivers(t *testing.T) {
	reg := New()
	alice := &fakePeer{id: "alice"}
	bob := &fakePeer{id: "bob"}

	reg.JoinRoom("room1", alice)
	reg.JoinRoom("room1", bob)

	reg.Broadcast("room1", alice, wire.TypeMessage, []byte("hi"))

	if len(alice.deliver) != 0 {
		t.Fatalf("sender should not receive its own broadcast")
	}
	if len(bob.deliver) != 1 || bob.deliver[0] != wire.TypeMessage {
		t.Fatalf("expected bob to receive one Message delivery, got %+v", bob.deliver)
	}
}

func TestBroadcastOtherUsersDeliversToEveryConnectionOfEveryOtherUser(t *testing.T) {
	reg := New()
	u1 := &fakePeer{id: "u1"}
	b1 := &fakePeer{id: "bob"}
	b2 := &fakePeer{id: "bob"}

	reg.JoinRoom("room1", u1)
	reg.JoinRoom("room1", b1)
	reg.JoinRoom("room1", b2)

	reg.BroadcastOtherUsers("room1", u1, wire.TypeUserState, []byte("joined"))

	if len(u1.deliver) != 0 {
		t.Fatalf("excl's own user should never receive its own join/leave notification")
	}
	if len(b1.deliver) != 1 || len(b2.deliver) != 1 {
		t.Fatalf("expected both of bob's connections to receive one delivery each, got b1=%+v b2=%+v", b1.deliver, b2.deliver)
	}
}
