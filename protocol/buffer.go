package protocol

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrPayloadOverflow is returned by Serialize when writing would exceed
// MaxPayloadLength. It never crosses the wire; callers translate it to
// ReturnBadPacketSize where appropriate.
var ErrPayloadOverflow = errors.New("protocol: payload buffer overflow")

// ErrPayloadUnderflow is returned by the Read* methods when a read would
// advance bytesRead past bytesWritten.
var ErrPayloadUnderflow = errors.New("protocol: read past end of payload")

// PayloadBuffer is the Payload Cursor: a fixed-size buffer shared by one
// in-flight command/reply exchange, indexed by two monotonic cursors.
// bytesWritten is advanced by Serialize (building an outgoing payload or
// staging a reply); bytesRead is advanced by the Read* methods (consuming
// an incoming payload). Both cursors reset to zero at packet boundaries —
// after dispatch completes on receive, and before the Packet Encoder runs
// on send.
//
// Multi-byte values are little-endian, read and written by explicit byte
// assembly (encoding/binary) rather than by aliasing the buffer as typed
// memory, per the re-architecture guidance against raw pointer casts.
type PayloadBuffer struct {
	data         [MaxPayloadLength]byte
	bytesWritten int
	bytesRead    int

	// readLen bounds the Read* methods. While a packet is being received,
	// the decoder drives bytesWritten directly and readLen tracks it (see
	// writeAt); Serialize likewise raises readLen whenever bytesWritten
	// passes it, so locally serialized values can be read back. At BeginDispatch, readLen is latched to the just-received
	// length and bytesWritten is rewound to zero, so a command handler can
	// still Read the request it was just handed while also Serializing a
	// reply into the same buffer from offset zero.
	readLen int
}

// Reset zeroes both cursors and the read bound. It does not clear the
// underlying bytes — nothing reads past readLen, so stale bytes beyond it
// are inert.
func (p *PayloadBuffer) Reset() {
	p.bytesWritten = 0
	p.bytesRead = 0
	p.readLen = 0
}

// BeginDispatch latches the buffer's current write position as the read
// bound and rewinds the write cursor to zero. Session calls this once, right
// after a packet completes and before invoking the application handler, so
// ProcessCommand/ProcessReply can read the just-arrived payload and (for
// ProcessCommand) serialize a reply into the same buffer without the two
// cursors colliding.
func (p *PayloadBuffer) BeginDispatch() {
	p.readLen = p.bytesWritten
	p.bytesWritten = 0
	p.bytesRead = 0
}

// Len reports the number of bytes written to the buffer (the payload
// length for an outgoing packet).
func (p *PayloadBuffer) Len() int {
	return p.bytesWritten
}

// Remaining reports how many unread bytes remain between bytesRead and the
// read bound.
func (p *PayloadBuffer) Remaining() int {
	return p.readLen - p.bytesRead
}

// Bytes returns the written portion of the buffer. The slice aliases the
// buffer's backing array and must not be retained past the current
// dispatch.
func (p *PayloadBuffer) Bytes() []byte {
	return p.data[:p.bytesWritten]
}

// Serialize appends b to the buffer at bytesWritten, advancing the cursor.
// It fails with ErrPayloadOverflow rather than exceeding MaxPayloadLength.
func (p *PayloadBuffer) Serialize(b []byte) error {
	if p.bytesWritten+len(b) > MaxPayloadLength {
		return ErrPayloadOverflow
	}
	copy(p.data[p.bytesWritten:], b)
	p.bytesWritten += len(b)
	if p.bytesWritten > p.readLen {
		p.readLen = p.bytesWritten
	}
	return nil
}

// PutU8 appends a single byte.
func (p *PayloadBuffer) PutU8(v uint8) error {
	return p.Serialize([]byte{v})
}

// PutU16 appends v as two little-endian bytes.
func (p *PayloadBuffer) PutU16(v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return p.Serialize(b[:])
}

// PutF32 appends v as four little-endian IEEE-754 bytes.
func (p *PayloadBuffer) PutF32(v float32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
	return p.Serialize(b[:])
}

// PutString appends s followed by a zero terminator.
func (p *PayloadBuffer) PutString(s string) error {
	if err := p.Serialize([]byte(s)); err != nil {
		return err
	}
	return p.Serialize([]byte{0})
}

// writeAt directly sets the cursor, used by the decoder to accumulate
// incoming payload bytes at their announced offset rather than appending.
func (p *PayloadBuffer) writeAt(offset int, b byte) {
	p.data[offset] = b
	if offset+1 > p.bytesWritten {
		p.bytesWritten = offset + 1
		p.readLen = p.bytesWritten
	}
}

// ReadU8 consumes one byte at bytesRead and advances the cursor.
func (p *PayloadBuffer) ReadU8() (uint8, error) {
	if p.bytesRead+1 > p.readLen {
		return 0, ErrPayloadUnderflow
	}
	v := p.data[p.bytesRead]
	p.bytesRead++
	return v, nil
}

// ReadU16 consumes two little-endian bytes at bytesRead and advances the
// cursor.
func (p *PayloadBuffer) ReadU16() (uint16, error) {
	if p.bytesRead+2 > p.readLen {
		return 0, ErrPayloadUnderflow
	}
	v := binary.LittleEndian.Uint16(p.data[p.bytesRead:])
	p.bytesRead += 2
	return v, nil
}

// ReadF32 consumes four little-endian IEEE-754 bytes at bytesRead and
// advances the cursor.
func (p *PayloadBuffer) ReadF32() (float32, error) {
	if p.bytesRead+4 > p.readLen {
		return 0, ErrPayloadUnderflow
	}
	bits := binary.LittleEndian.Uint32(p.data[p.bytesRead:])
	p.bytesRead += 4
	return math.Float32frombits(bits), nil
}

// ReadArray copies n bytes from bytesRead into dst and advances the cursor.
func (p *PayloadBuffer) ReadArray(dst []byte, n int) error {
	if p.bytesRead+n > p.readLen {
		return ErrPayloadUnderflow
	}
	copy(dst, p.data[p.bytesRead:p.bytesRead+n])
	p.bytesRead += n
	return nil
}

// ReadString reads a zero-terminated byte string starting at bytesRead and
// advances the cursor past the terminator.
func (p *PayloadBuffer) ReadString() (string, error) {
	for i := p.bytesRead; i < p.readLen; i++ {
		if p.data[i] == 0 {
			s := string(p.data[p.bytesRead:i])
			p.bytesRead = i + 1
			return s, nil
		}
	}
	return "", ErrPayloadUnderflow
}
