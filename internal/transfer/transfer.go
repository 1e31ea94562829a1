// Package transfer implements the per-connection chunked file transfer
// state machine (§4.4): one active transfer per id, Receive (server reads,
// client downloads) and Transmit (client uploads, server writes).
package transfer

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/gosuda/neutron/internal/blobstore"
	"github.com/gosuda/neutron/internal/wire"
)

// ErrTransferExists is returned by OpenReceive and OpenTransmit when a
// transfer id is already
// active on this connection — fatal to the connection per §4.4's
// concurrency note.
var ErrTransferExists = errors.New("transfer: id already active on this connection")

// ErrNoSuchTransfer is returned when a chunk or state packet names a
// transfer id with no active entry.
var ErrNoSuchTransfer = errors.New("transfer: no such active transfer")

// Direction distinguishes which side drives the byte flow.
type Direction uint8

const (
	// Receive: server reads the blob and streams it to the client.
	Receive Direction = iota
	// Transmit: client streams the blob and the server writes it.
	Transmit
)

// Transfer is one entry of a connection's active-transfer table.
type Transfer struct {
	ID        []byte
	Direction Direction
	handle    *blobstore.Handle
}

// Remaining returns the number of bytes left to move.
func (t *Transfer) Remaining() int64 { return t.handle.Remaining() }

// AtEnd reports whether the transfer has moved every byte.
func (t *Transfer) AtEnd() bool { return t.handle.AtEnd() }

// Table is the per-connection active-transfer map (§3 ActiveTransfer,
// §4.4). It is not safe for concurrent use by design: a single
// connection's packets are handled serially by its owning goroutine
// (§5), so Table needs no internal locking.
type Table struct {
	store     *blobstore.Store
	transfers map[string]*Transfer
}

// NewTable returns an empty transfer table backed by store.
func NewTable(store *blobstore.Store) *Table {
	return &Table{
		store:     store,
		transfers: make(map[string]*Transfer),
	}
}

func key(transferID []byte) string {
	return hex.EncodeToString(transferID)
}

// OpenReceive begins a server-to-client transfer (§4.4 Receive). On
// success it returns UploadErrNone and the caller should reply
// ReUpload{ReadyWrite, NoError}; on failure it returns the wire error
// code to surface in ReUpload.
func (t *Table) OpenReceive(transferID []byte, size int64) (uint8, error) {
	k := key(transferID)
	if _, exists := t.transfers[k]; exists {
		return wire.UploadErrInternal, ErrTransferExists
	}
	handle, err := t.store.OpenReceive(transferID, size)
	switch {
	case errors.Is(err, blobstore.ErrNotFound):
		return wire.UploadErrNotFound, err
	case errors.Is(err, blobstore.ErrSizeMismatch):
		return wire.UploadErrBadRequest, err
	case err != nil:
		return wire.UploadErrInternal, err
	}
	t.transfers[k] = &Transfer{ID: transferID, Direction: Receive, handle: handle}
	return wire.UploadErrNone, nil
}

// OpenTransmit begins a client-to-server transfer (§4.4 Transmit).
func (t *Table) OpenTransmit(transferID []byte, size int64) (uint8, error) {
	k := key(transferID)
	if _, exists := t.transfers[k]; exists {
		return wire.UploadErrInternal, ErrTransferExists
	}
	if size < 1 {
		return wire.UploadErrBadRequest, fmt.Errorf("transfer: size must be >= 1")
	}
	handle, err := t.store.OpenTransmit(transferID, size)
	switch {
	case errors.Is(err, blobstore.ErrAlreadyExists):
		return wire.UploadErrBadRequest, err
	case err != nil:
		return wire.UploadErrInternal, err
	}
	t.transfers[k] = &Transfer{ID: transferID, Direction: Transmit, handle: handle}
	return wire.UploadErrNone, nil
}

// Get returns the active transfer for transferID, or ErrNoSuchTransfer.
func (t *Table) Get(transferID []byte) (*Transfer, error) {
	tr, ok := t.transfers[key(transferID)]
	if !ok {
		return nil, ErrNoSuchTransfer
	}
	return tr, nil
}

// NextChunk reads the next outbound chunk for a Receive transfer, for the
// server's reply to UploadState{Next}.
func (t *Table) NextChunk(transferID []byte) ([]byte, error) {
	tr, err := t.Get(transferID)
	if err != nil {
		return nil, err
	}
	return tr.handle.ReadChunk()
}

// WriteChunk writes an inbound chunk for a Transmit transfer and reports
// whether the transfer is now complete.
func (t *Table) WriteChunk(transferID, chunk []byte) (completed bool, err error) {
	tr, err := t.Get(transferID)
	if err != nil {
		return false, err
	}
	if err := tr.handle.WriteChunk(chunk); err != nil {
		return false, err
	}
	return tr.handle.AtEnd(), nil
}

// Close drops transferID from the table and releases its blob handle. The
// blobstore.Handle itself deletes a partial write-side blob that never
// reached end-of-stream (§5 scoped-acquisition invariant).
func (t *Table) Close(transferID []byte) error {
	k := key(transferID)
	tr, ok := t.transfers[k]
	if !ok {
		return nil
	}
	delete(t.transfers, k)
	return tr.handle.Close()
}

// CloseAll releases every still-open transfer, for connection teardown.
func (t *Table) CloseAll() {
	for k, tr := range t.transfers {
		tr.handle.Close()
		delete(t.transfers, k)
	}
}
