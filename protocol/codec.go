package protocol

// byteWriter is the narrow capability the Frame Codec needs on send: write
// one raw byte to the transport. Session.SendCommand and Session's reply
// path satisfy it directly with Transport.WriteByte.
type byteWriter interface {
	WriteByte(b byte) error
}

// encodeByte emits b through the escape transparency scheme: FrameBoundary
// and ControlEscape are replaced by ControlEscape followed by b^escapeXOR;
// every other byte passes through unchanged. FrameBoundary itself is never
// produced by encodeByte — the Packet Encoder writes it directly, once, at
// the start of a frame.
func encodeByte(w byteWriter, b byte) error {
	if b == FrameBoundary || b == ControlEscape {
		if err := w.WriteByte(ControlEscape); err != nil {
			return err
		}
		return w.WriteByte(b ^ escapeXOR)
	}
	return w.WriteByte(b)
}

// unescapeState is the Frame Codec's only per-byte state on receive: whether
// the previous byte was a ControlEscape awaiting its escaped partner.
type unescapeState struct {
	escaping bool
}

// decodeByte feeds one raw transport byte through the escape transparency
// scheme. It returns the logical byte and emitted=true if one was produced
// (ControlEscape itself consumes the byte and emits nothing). wasEscaped
// reports whether out was recovered by un-escaping the previous byte — a
// value of FrameBoundary with wasEscaped set is ordinary escaped payload
// data, not a real frame boundary; only the Packet Decoder, which knows
// about frame boundaries, should act on that distinction.
func (s *unescapeState) decodeByte(b byte) (out byte, emitted bool, wasEscaped bool) {
	if b == ControlEscape {
		s.escaping = true
		return 0, false, false
	}
	if s.escaping {
		s.escaping = false
		return b ^ escapeXOR, true, true
	}
	return b, true, false
}
