package wire

import (
	"crypto/cipher"
	"io"
)

// FrameWriter writes frames to an underlying connection. It is not safe for
// concurrent use; the engine only ever writes from the goroutine that owns
// the connection, so no locking is needed here.
type FrameWriter struct {
	w io.Writer
}

func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

func (fw *FrameWriter) Write(typ PacketType, payload []byte, aead cipher.AEAD) error {
	frame, err := EncodeFrame(typ, payload, aead)
	if err != nil {
		return err
	}
	_, err = fw.w.Write(frame)
	return err
}
