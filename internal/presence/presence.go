// Package presence tracks which connections belong to which users and
// which rooms, and delivers packets across connections that may live on
// different goroutines (§3 PresenceRegistry, §4.5, §4.6).
package presence

import (
	"sync"

	"github.com/gosuda/neutron/internal/wire"
)

// Peer is the subset of connection behavior the registry needs: an
// identity and a thread-safe way to hand it an outbound packet. The Connection Engine's connection type implements it.
type Peer interface {
	UserID() string
	Deliver(typ wire.PacketType, payload []byte)
}

// Registry is the process-wide, concurrency-safe store of `connected`
// (user id -> live connections) and `participants` (room id -> live
// connections), following the sync.RWMutex-guarded map discipline used
// throughout the reference lease manager.
type Registry struct {
	mu           sync.RWMutex
	connected    map[string]map[Peer]struct{}
	participants map[string]map[Peer]struct{}
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		connected:    make(map[string]map[Peer]struct{}),
		participants: make(map[string]map[Peer]struct{}),
	}
}

// Connect registers p as a live connection of its user id. A user may have
// many concurrent connections.
func (reg *Registry) Connect(p Peer) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	set := reg.connected[p.UserID()]
	if set == nil {
		set = make(map[Peer]struct{})
		reg.connected[p.UserID()] = set
	}
	set[p] = struct{}{}
}

// Disconnect removes p from `connected` and, if it is a member of any
// room, from `participants` as well. It is the atomic counterpart to
// Connect and JoinRoom mandated by §3's destruction invariant.
func (reg *Registry) Disconnect(p Peer, roomID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.removeFromConnected(p)
	if roomID != "" {
		reg.removeFromParticipants(p, roomID)
	}
}

func (reg *Registry) removeFromConnected(p Peer) {
	set := reg.connected[p.UserID()]
	if set == nil {
		return
	}
	delete(set, p)
	if len(set) == 0 {
		delete(reg.connected, p.UserID())
	}
}

func (reg *Registry) removeFromParticipants(p Peer, roomID string) {
	set := reg.participants[roomID]
	if set == nil {
		return
	}
	delete(set, p)
	if len(set) == 0 {
		delete(reg.participants, roomID)
	}
}

// OtherUserConnectionExists reports whether some live connection of
// userID other than excl is present in roomID — the `notify` gate of
// §4.5.
func (reg *Registry) OtherUserConnectionExists(roomID, userID string, excl Peer) bool {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	set := reg.participants[roomID]
	for peer := range set {
		if peer == excl {
			continue
		}
		if peer.UserID() == userID {
			return true
		}
	}
	return false
}

// DistinctOtherUsers returns, for roomID, one representative Peer per
// distinct user id present, excluding excl itself and any other
// connection belonging to excl's own user.
func (reg *Registry) DistinctOtherUsers(roomID string, excl Peer) []Peer {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	seen := make(map[string]struct{})
	var result []Peer
	for peer := range reg.participants[roomID] {
		if peer == excl || peer.UserID() == excl.UserID() {
			continue
		}
		if _, ok := seen[peer.UserID()]; ok {
			continue
		}
		seen[peer.UserID()] = struct{}{}
		result = append(result, peer)
	}
	return result
}

// JoinRoom inserts p into participants[roomID].
func (reg *Registry) JoinRoom(roomID string, p Peer) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	set := reg.participants[roomID]
	if set == nil {
		set = make(map[Peer]struct{})
		reg.participants[roomID] = set
	}
	set[p] = struct{}{}
}

// LeaveRoom removes p from participants[roomID].
func (reg *Registry) LeaveRoom(roomID string, p Peer) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.removeFromParticipants(p, roomID)
}

// Broadcast enqueues (typ, payload) onto every connection in roomID except
// excl, per §4.6: delivery happens via each peer's own Deliver, never by
// touching peer-owned state directly from the caller's goroutine.
func (reg *Registry) Broadcast(roomID string, excl Peer, typ wire.PacketType, payload []byte) {
	reg.mu.RLock()
	peers := make([]Peer, 0, len(reg.participants[roomID]))
	for peer := range reg.participants[roomID] {
		if peer == excl {
			continue
		}
		peers = append(peers, peer)
	}
	reg.mu.RUnlock()

	for _, peer := range peers {
		peer.Deliver(typ, payload)
	}
}

// BroadcastOtherUsers enqueues (typ, payload) onto every connection in
// roomID that does not belong to excl's own user id — every participant
// connection of every *other* user, not one representative per user. This
// is the peer-notify target for join/leave (§4.5): a user with multiple
// live connections in the room must have every one of them learn about
// another user's join or leave, not just a single representative.
func (reg *Registry) BroadcastOtherUsers(roomID string, excl Peer, typ wire.PacketType, payload []byte) {
	reg.mu.RLock()
	userID := excl.UserID()
	peers := make([]Peer, 0, len(reg.participants[roomID]))
	for peer := range reg.participants[roomID] {
		if peer.UserID() == userID {
			continue
		}
		peers = append(peers, peer)
	}
	reg.mu.RUnlock()

	for _, peer := range peers {
		peer.Deliver(typ, payload)
	}
}
