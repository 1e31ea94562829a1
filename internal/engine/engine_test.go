package engine

import (
	"io"
	"net"
	"testing"

	"github.com/gosuda/neutron/internal/blobstore"
	"github.com/gosuda/neutron/internal/transfer"
	"github.com/gosuda/neutron/internal/wire"
)

func newBareConnection(t *testing.T, state State) *Connection {
	t.Helper()
	client, srv := net.Pipe()
	t.Cleanup(func() { client.Close(); srv.Close() })

	// Drain anything the connection writes so c.send never blocks on the
	// unbuffered net.Pipe when a handler replies in-band.
	go io.Copy(io.Discard, client)

	store, err := blobstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("new blobstore: %v", err)
	}

	return &Connection{
		netConn:   srv,
		reader:    wire.NewFrameReader(srv),
		writer:    wire.NewFrameWriter(srv),
		state:     state,
		transfers: transfer.NewTable(store),
		outbox:    make(chan outboundFrame, outboxBuffer),
		done:      make(chan struct{}),
	}
}

func TestDispatchRejectsPacketIllegalInAuthenticatingState(t *testing.T) {
	c := newBareConnection(t, Authenticating)
	err := c.dispatch(wire.TypePing, wire.Ping{Timestamp: 1}.Encode())
	if err == nil {
		t.Fatalf("expected error for Ping in Authenticating state")
	}
}

func TestDispatchRejectsUnknownPacketInAuthenticatedState(t *testing.T) {
	c := newBareConnection(t, Authenticated)
	err := c.dispatch(wire.TypeHandshake, nil)
	if err == nil {
		t.Fatalf("expected error for Handshake packet once Authenticated")
	}
}

func TestHandlePongMismatchIsFatal(t *testing.T) {
	c := newBareConnection(t, Authenticated)
	c.lastPingSent = 1000

	err := c.handlePong(wire.Ping{Timestamp: 999}.Encode())
	if err == nil {
		t.Fatalf("expected error for mismatched pong timestamp")
	}
}

func TestHandlePongMatchSucceeds(t *testing.T) {
	c := newBareConnection(t, Authenticated)
	c.lastPingSent = 1000

	if err := c.handlePong(wire.Ping{Timestamp: 1000}.Encode()); err != nil {
		t.Fatalf("expected matching pong to succeed: %v", err)
	}
}

func TestConstantTimeEqual(t *testing.T) {
	if !constantTimeEqual([]byte("abc"), []byte("abc")) {
		t.Fatalf("expected equal byte slices to compare equal")
	}
	if constantTimeEqual([]byte("abc"), []byte("abd")) {
		t.Fatalf("expected different byte slices to compare unequal")
	}
	if constantTimeEqual([]byte("ab"), []byte("abc")) {
		t.Fatalf("expected different-length byte slices to compare unequal")
	}
}

func TestHandleUploadDropsTableEntryOnCompletion(t *testing.T) {
	c := newBareConnection(t, Authenticated)
	transferID := []byte("xfer-1")

	if _, err := c.transfers.OpenTransmit(transferID, 4); err != nil {
		t.Fatalf("open transmit: %v", err)
	}
	if _, err := c.transfers.Get(transferID); err != nil {
		t.Fatalf("expected transfer to be active after open: %v", err)
	}

	if err := c.handleUpload(wire.Upload{TransferID: transferID, Chunk: []byte("data")}.Encode()); err != nil {
		t.Fatalf("handle upload: %v", err)
	}

	if _, err := c.transfers.Get(transferID); err == nil {
		t.Fatalf("expected completed transfer to be dropped from the table")
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		PreHandshake:   "pre-handshake",
		Authenticating: "authenticating",
		Authenticated:  "authenticated",
		Terminating:    "terminating",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
