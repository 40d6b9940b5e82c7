// Package wire implements the length-delimited frame codec the
// session engine uses to talk to a meter: a 16-bit unsigned
// big-endian length prefix followed by that many payload bytes, per
// spec.md §4.D.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxPayloadLen is the largest payload a 16-bit length prefix can address.
const MaxPayloadLen = 65535

// ErrPayloadTooLarge is returned by WriteFrame when the payload
// exceeds MaxPayloadLen.
var ErrPayloadTooLarge = errors.New("wire: payload exceeds 65535 bytes")

// ReadFrame reads one length-prefixed frame from r. A missing or
// partial length prefix surfaces the reader's error unchanged
// (typically io.EOF or io.ErrUnexpectedEOF); a payload shorter than
// its length prefix announces always surfaces io.ErrUnexpectedEOF, so
// callers can tell a clean close from a corrupt stream.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint16(lenBuf[:])
	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
	return payload, nil
}

// WriteFrame writes payload as a single length-prefixed frame to w.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxPayloadLen {
		return ErrPayloadTooLarge
	}
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("wire: writing length prefix: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("wire: writing payload: %w", err)
	}
	return nil
}
