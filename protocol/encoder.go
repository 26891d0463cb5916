package protocol

// encodeFrame writes one complete frame for cmd/payload to w, per spec
// §4.2: a literal leading FrameBoundary, then command, length byte(s), and
// payload all folded into the transmit CRC and passed through the Frame
// Codec, then (if crcEnabled) the CRC itself, low byte first. No trailing
// FrameBoundary is written — the next frame's leading boundary delimits
// this one on the receiver.
func encodeFrame(w byteWriter, cmd byte, payload []byte, crcEnabled bool) error {
	if err := w.WriteByte(FrameBoundary); err != nil {
		return err
	}

	crc := uint16(0xFFFF)

	emit := func(b byte) error {
		if crcEnabled {
			crc = updateCRC(crc, b)
		}
		return encodeByte(w, b)
	}

	if err := emit(cmd); err != nil {
		return err
	}

	n := len(payload)
	if n < 128 {
		if err := emit(byte(n)); err != nil {
			return err
		}
	} else {
		if err := emit(byte(0x80 | (n >> 8))); err != nil {
			return err
		}
		if err := emit(byte(n & 0xFF)); err != nil {
			return err
		}
	}

	for _, b := range payload {
		if err := emit(b); err != nil {
			return err
		}
	}

	if crcEnabled {
		if err := encodeByte(w, byte(crc)); err != nil {
			return err
		}
		if err := encodeByte(w, byte(crc>>8)); err != nil {
			return err
		}
	}

	return nil
}
