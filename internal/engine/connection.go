// Package engine implements the per-connection protocol state machine
// (§4.3): handshake, authentication, room membership, message fan-out,
// file transfer control, and the ping/disconnect timer pair.
package engine

import (
	"context"
	"crypto/cipher"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/neutron/internal/cryptocore"
	"github.com/gosuda/neutron/internal/transfer"
	"github.com/gosuda/neutron/internal/wire"
)

const (
	pingInterval      = 30 * time.Second
	disconnectTimeout = 5 * time.Second
	outboxBuffer      = 64
)

type outboundFrame struct {
	typ     wire.PacketType
	payload []byte
}

// Connection is one accepted TCP peer and its full protocol state.
type Connection struct {
	server *Server
	ctx    context.Context

	netConn net.Conn
	reader  *wire.FrameReader
	writer  *wire.FrameWriter
	aead    cipher.AEAD

	mu      sync.Mutex
	state   State
	userID  string
	roomID  string

	transfers *transfer.Table

	outbox chan outboundFrame
	done   chan struct{}
	closed sync.Once

	lastPingSent int64
}

func newConnection(srv *Server, nc net.Conn) *Connection {
	return &Connection{
		server:    srv,
		ctx:       srv.ctx,
		netConn:   nc,
		reader:    wire.NewFrameReader(nc),
		writer:    wire.NewFrameWriter(nc),
		state:     PreHandshake,
		transfers: transfer.NewTable(srv.blobs),
		outbox:    make(chan outboundFrame, outboxBuffer),
		done:      make(chan struct{}),
	}
}

// UserID satisfies presence.Peer.
func (c *Connection) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Deliver satisfies presence.Peer: it enqueues a packet for this
// connection's own goroutine to encrypt and send, safe to call from any
// goroutine (§4.6).
func (c *Connection) Deliver(typ wire.PacketType, payload []byte) {
	select {
	case c.outbox <- outboundFrame{typ: typ, payload: payload}:
	case <-c.done:
	default:
		log.Warn().Str("remote", c.netConn.RemoteAddr().String()).
			Str("packet", typ.String()).Msg("outbox full, dropping delivery")
	}
}

// send writes typ/payload synchronously on the connection's own goroutine.
// Called only from run() and its callees, so no locking is required around
// the writer itself (§5: serial per-connection handling).
func (c *Connection) send(typ wire.PacketType, payload []byte) error {
	select {
	case <-c.done:
		return nil
	default:
	}
	return c.writer.Write(typ, payload, c.aead)
}

type readResult struct {
	typ     wire.PacketType
	payload []byte
	err     error
}

func (c *Connection) readLoop(out chan<- readResult) {
	for {
		typ, payload, err := c.reader.Next(c.aead)
		select {
		case out <- readResult{typ: typ, payload: payload, err: err}:
		case <-c.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// run drives the connection end to end: handshake, then the serial
// dispatch loop with ping/disconnect timers, until teardown.
func (c *Connection) run() {
	defer c.teardown()

	if err := c.handshake(); err != nil {
		log.Warn().Err(err).Str("remote", c.netConn.RemoteAddr().String()).Msg("handshake failed")
		return
	}

	readCh := make(chan readResult)
	go c.readLoop(readCh)

	pingTimer := time.NewTimer(pingInterval)
	defer pingTimer.Stop()
	var disconnectTimer *time.Timer
	var disconnectC <-chan time.Time

	for {
		select {
		case res := <-readCh:
			if res.err != nil {
				return
			}
			if err := c.dispatch(res.typ, res.payload); err != nil {
				log.Warn().Err(err).Str("remote", c.netConn.RemoteAddr().String()).
					Str("packet", res.typ.String()).Msg("protocol fault, closing connection")
				return
			}
			if res.typ == wire.TypePong {
				if disconnectTimer != nil {
					disconnectTimer.Stop()
					disconnectTimer = nil
					disconnectC = nil
				}
				pingTimer.Reset(pingInterval)
			}

		case out := <-c.outbox:
			if err := c.send(out.typ, out.payload); err != nil {
				return
			}

		case <-pingTimer.C:
			ts := time.Now().Unix()
			c.mu.Lock()
			c.lastPingSent = ts
			c.mu.Unlock()
			if err := c.send(wire.TypePing, wire.Ping{Timestamp: ts}.Encode()); err != nil {
				return
			}
			disconnectTimer = time.NewTimer(disconnectTimeout)
			disconnectC = disconnectTimer.C

		case <-disconnectC:
			log.Warn().Str("remote", c.netConn.RemoteAddr().String()).Msg("pong timeout, closing connection")
			return
		}
	}
}

func (c *Connection) teardown() {
	c.closed.Do(func() {
		close(c.done)
	})
	c.netConn.Close()
	c.transfers.CloseAll()

	c.mu.Lock()
	userID := c.userID
	roomID := c.roomID
	c.state = Terminating
	c.mu.Unlock()

	if userID != "" {
		c.server.registry.Disconnect(c, roomID)
	}
}

func (c *Connection) handshake() error {
	ephemeral, err := cryptocore.GenerateEphemeralKeyPair()
	if err != nil {
		return fmt.Errorf("engine: generate ephemeral keypair: %w", err)
	}
	ephemeralPub, err := ephemeral.PublicKeyBytes()
	if err != nil {
		return fmt.Errorf("engine: marshal ephemeral public key: %w", err)
	}
	serverPub, err := c.server.identity.PublicKeyBytes()
	if err != nil {
		return fmt.Errorf("engine: marshal server public key: %w", err)
	}
	signature := c.server.identity.Sign(ephemeralPub)

	ske := wire.ServerKeyExchange{
		ServerPublicKey:    serverPub,
		EphemeralPublicKey: ephemeralPub,
		Signature:          signature,
	}
	if err := c.send(wire.TypeHandshake, ske.Encode()); err != nil {
		return fmt.Errorf("engine: send server key exchange: %w", err)
	}

	typ, payload, err := c.reader.Next(nil)
	if err != nil {
		return fmt.Errorf("engine: read client key exchange: %w", err)
	}
	if typ != wire.TypeHandshake {
		return fmt.Errorf("engine: expected Handshake, got %s", typ)
	}
	cke, err := wire.DecodeClientKeyExchange(payload)
	if err != nil {
		return fmt.Errorf("engine: decode client key exchange: %w", err)
	}

	sharedSecret, err := ephemeral.Decapsulate(cke.Ciphertext)
	ephemeral.Wipe()
	if err != nil {
		return fmt.Errorf("engine: decapsulate: %w", err)
	}

	aead, err := cryptocore.NewSessionAEAD(sharedSecret)
	if err != nil {
		return fmt.Errorf("engine: build session aead: %w", err)
	}
	c.aead = aead

	c.mu.Lock()
	c.state = Authenticating
	c.mu.Unlock()
	return nil
}
