package wire

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
)

// tagSize and nonceSize are the XChaCha20-Poly1305 sizes named in §6. They
// are not carried in the frame's length field — length is always the
// plaintext payload size.
const (
	tagSize   = 16
	nonceSize = 24
)

// EncodeFrame renders one frame. aead is nil before the handshake completes;
// once non-nil it is used for every subsequent frame with a non-empty
// payload on this connection (an empty payload is written as a bare
// header, without tag or nonce),
// which is the single encryption gate this implementation uses on both the
// read and write path (see SPEC_FULL.md §10 on the Open Question).
func EncodeFrame(typ PacketType, payload []byte, aead cipher.AEAD) ([]byte, error) {
	if aead == nil || len(payload) == 0 {
		out := make([]byte, 0, 3+len(payload))
		out = append(out, byte(typ))
		var lb [2]byte
		binary.BigEndian.PutUint16(lb[:], uint16(len(payload)))
		out = append(out, lb[:]...)
		out = append(out, payload...)
		return out, nil
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("wire: generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, payload, nil)
	overhead := aead.Overhead()
	ciphertext := sealed[:len(sealed)-overhead]
	tag := sealed[len(sealed)-overhead:]

	if len(ciphertext) > 0xFFFF {
		return nil, fmt.Errorf("wire: payload too large for u16 length field")
	}

	out := make([]byte, 0, 3+len(tag)+len(nonce)+len(ciphertext))
	out = append(out, byte(typ))
	var lb [2]byte
	binary.BigEndian.PutUint16(lb[:], uint16(len(ciphertext)))
	out = append(out, lb[:]...)
	out = append(out, tag...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

// DecodeFrame decodes one frame from the front of buf without mutating it.
// It returns ErrIncomplete (with consumed == 0) when buf does not yet hold a
// full frame — callers must not advance past consumed until a nil error is
// returned, which is the transactional property invariant 5 requires.
func DecodeFrame(buf []byte, aead cipher.AEAD) (typ PacketType, payload []byte, consumed int, err error) {
	if len(buf) < 3 {
		return 0, nil, 0, ErrIncomplete
	}
	length := binary.BigEndian.Uint16(buf[1:3])

	hasOverhead := aead != nil && length > 0
	overheadLen := 0
	if hasOverhead {
		overheadLen = tagSize + nonceSize
	}
	total := 3 + overheadLen + int(length)
	if len(buf) < total {
		return 0, nil, 0, ErrIncomplete
	}

	typ = PacketType(buf[0])
	body := buf[3+overheadLen : total]

	if !hasOverhead {
		out := make([]byte, len(body))
		copy(out, body)
		return typ, out, total, nil
	}

	tag := buf[3 : 3+tagSize]
	nonce := buf[3+tagSize : 3+tagSize+nonceSize]

	sealed := make([]byte, 0, len(body)+len(tag))
	sealed = append(sealed, body...)
	sealed = append(sealed, tag...)

	plaintext, oerr := aead.Open(nil, nonce, sealed, nil)
	if oerr != nil {
		return 0, nil, total, fmt.Errorf("wire: decrypt frame: %w", oerr)
	}
	return typ, plaintext, total, nil
}

// FrameReader buffers partial reads from an underlying stream and yields
// whole frames one at a time, mirroring the original implementation's
// transactional QDataStream read loop.
type FrameReader struct {
	r   io.Reader
	buf []byte
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// Next blocks until a full frame is available, decodes it against aead (nil
// before the handshake completes) and advances the internal buffer past it.
func (fr *FrameReader) Next(aead cipher.AEAD) (PacketType, []byte, error) {
	chunk := make([]byte, 4096)
	for {
		typ, payload, consumed, err := DecodeFrame(fr.buf, aead)
		if err == nil {
			fr.buf = fr.buf[consumed:]
			return typ, payload, nil
		}
		if err != ErrIncomplete {
			// A frame failed to decrypt/decode: the buffer is left as it
			// is; the caller always tears down the connection on a
			// non-incomplete error, so buffer state no longer matters.
			return 0, nil, err
		}
		n, rerr := fr.r.Read(chunk)
		if n > 0 {
			fr.buf = append(fr.buf, chunk[:n]...)
		}
		if rerr != nil {
			return 0, nil, rerr
		}
	}
}
