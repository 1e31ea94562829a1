// Package wire implements the length-prefixed binary frame codec and the
// tagged payload encoding for every packet type on the connection.
package wire

import "errors"

var (
	// ErrIncomplete is returned by DecodeFrame when the buffer does not yet
	// hold a full frame. The caller must not treat any bytes as
	// consumed and should retry once more data is available.
	ErrIncomplete = errors.New("wire: incomplete frame")

	// ErrInvalidLength is returned when a length-prefixed field claims a size
	// that does not fit the remaining buffer.
	ErrInvalidLength = errors.New("wire: invalid length prefix")

	// ErrTruncated is returned by payload decoders when the buffer runs out
	// mid-field.
	ErrTruncated = errors.New("wire: truncated payload")

	// ErrUnknownType names a frame type byte with no known payload decoder.
	// No function in this package returns it: DecodeFrame accepts any type
	// byte and leaves rejecting it to the caller.
	ErrUnknownType = errors.New("wire: unknown packet type")
)
