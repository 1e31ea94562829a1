package transfer

import (
	"bytes"
	"io"
	"testing"

	"github.com/gosuda/neutron/internal/blobstore"
	"github.com/gosuda/neutron/internal/wire"
)

func newTestTable(t *testing.T) *Table {
	t.Helper()
	store, err := blobstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("new blobstore: %v", err)
	}
	return NewTable(store)
}

func TestTransmitThenReceiveFlow(t *testing.T) {
	table := newTestTable(t)
	id := []byte{0x01, 0x02}
	payload := bytes.Repeat([]byte("a"), blobstore.ChunkSize+1)

	code, err := table.OpenTransmit(id, int64(len(payload)))
	if err != nil || code != wire.UploadErrNone {
		t.Fatalf("open transmit: code=%d err=%v", code, err)
	}

	completed, err := table.WriteChunk(id, payload[:blobstore.ChunkSize])
	if err != nil {
		t.Fatalf("write chunk 1: %v", err)
	}
	if completed {
		t.Fatalf("should not be complete after first chunk")
	}

	completed, err = table.WriteChunk(id, payload[blobstore.ChunkSize:])
	if err != nil {
		t.Fatalf("write chunk 2: %v", err)
	}
	if !completed {
		t.Fatalf("expected completion after final chunk")
	}

	if err := table.Close(id); err != nil {
		t.Fatalf("close: %v", err)
	}

	code, err = table.OpenReceive(id, int64(len(payload)))
	if err != nil || code != wire.UploadErrNone {
		t.Fatalf("open receive: code=%d err=%v", code, err)
	}

	var got []byte
	for {
		chunk, err := table.NextChunk(id)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next chunk: %v", err)
		}
		got = append(got, chunk...)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round-trip mismatch")
	}
	table.Close(id)
}

func TestOpenTransmitDuplicateIDIsFatal(t *testing.T) {
	table := newTestTable(t)
	id := []byte{0x09}

	if code, err := table.OpenTransmit(id, 10); err != nil || code != wire.UploadErrNone {
		t.Fatalf("first open: code=%d err=%v", code, err)
	}
	if _, err := table.OpenTransmit(id, 10); err != ErrTransferExists {
		t.Fatalf("expected ErrTransferExists, got %v", err)
	}
	table.CloseAll()
}

func TestWriteChunkToUnknownTransferFails(t *testing.T) {
	table := newTestTable(t)
	if _, err := table.WriteChunk([]byte{0xFF}, []byte("x")); err != ErrNoSuchTransfer {
		t.Fatalf("expected ErrNoSuchTransfer, got %v", err)
	}
}

func TestCloseAllReleasesPartialTransmit(t *testing.T) {
	table := newTestTable(t)
	id := []byte{0x0A}

	if _, err := table.OpenTransmit(id, 100); err != nil {
		t.Fatalf("open transmit: %v", err)
	}
	if _, err := table.WriteChunk(id, []byte("only-a-few-bytes")); err != nil {
		t.Fatalf("write chunk: %v", err)
	}
	table.CloseAll()

	if _, err := table.OpenTransmit(id, 100); err != nil {
		t.Fatalf("expected to be able to reopen after partial cleanup: %v", err)
	}
}
