package wire

import "encoding/binary"

// Encoder appends fields in the length-prefixed big-endian schema shared by
// every payload in §6 of the protocol: primitives are fixed-width big-endian,
// byte strings and text are u32-length-prefixed, sequences are
// u32-count-prefixed.
type Encoder struct {
	buf []byte
}

func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 64)}
}

func (e *Encoder) Bytes() []byte { return e.buf }

func (e *Encoder) PutUint8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *Encoder) PutUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) PutUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) PutInt64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) PutBytes(v []byte) {
	e.PutUint32(uint32(len(v)))
	e.buf = append(e.buf, v...)
}

func (e *Encoder) PutString(v string) {
	e.PutBytes([]byte(v))
}

// Decoder reads the same schema back out of a buffer without copying it,
// advancing an internal cursor and failing closed on any short read.
type Decoder struct {
	buf []byte
	pos int
}

func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Done reports whether every byte of the buffer has been consumed.
func (d *Decoder) Done() bool { return d.pos == len(d.buf) }

func (d *Decoder) remaining() int { return len(d.buf) - d.pos }

func (d *Decoder) Uint8() (uint8, error) {
	if d.remaining() < 1 {
		return 0, ErrTruncated
	}
	v := d.buf[d.pos]
	d.pos++
	return v, nil
}

func (d *Decoder) Uint16() (uint16, error) {
	if d.remaining() < 2 {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint16(d.buf[d.pos:])
	d.pos += 2
	return v, nil
}

func (d *Decoder) Uint32() (uint32, error) {
	if d.remaining() < 4 {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *Decoder) Int64() (int64, error) {
	if d.remaining() < 8 {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return int64(v), nil
}

// maxFieldLen bounds any single length-prefixed field so a corrupt or
// malicious length prefix cannot force a multi-gigabyte allocation.
const maxFieldLen = 1 << 26

func (d *Decoder) Bytes() ([]byte, error) {
	n, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	if n > maxFieldLen || d.remaining() < int(n) {
		return nil, ErrInvalidLength
	}
	v := make([]byte, n)
	copy(v, d.buf[d.pos:d.pos+int(n)])
	d.pos += int(n)
	return v, nil
}

func (d *Decoder) String() (string, error) {
	v, err := d.Bytes()
	if err != nil {
		return "", err
	}
	return string(v), nil
}
