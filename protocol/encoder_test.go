package protocol

import "testing"

func encodeToBytes(t *testing.T, cmd byte, payload []byte, crcEnabled bool) []byte {
	t.Helper()
	w := &collectingWriter{}
	if err := encodeFrame(w, cmd, payload, crcEnabled); err != nil {
		t.Fatalf("encodeFrame: %v", err)
	}
	return w.bytes
}

func TestEncodeFrameS1EmptyRequest(t *testing.T) {
	// S1: command 0xA0, empty payload. CRC(A0 00) = 0x783F -> wire bytes
	// 3F 78 (low byte first).
	got := encodeToBytes(t, 0xA0, nil, true)
	want := []byte{FrameBoundary, 0xA0, 0x00, 0x3F, 0x78}
	if string(got) != string(want) {
		t.Errorf("S1: got %v, want %v", got, want)
	}
}

func TestEncodeFrameS2OneBytePayload(t *testing.T) {
	// S2: command 0xA1, payload [0x42]. The exact wire form is
	// 7E A1 01 42 <crc_lo> <crc_hi> — verify the header/payload shape and
	// that the CRC self-checks.
	got := encodeToBytes(t, 0xA1, []byte{0x42}, true)
	wantPrefix := []byte{FrameBoundary, 0xA1, 0x01, 0x42}
	if string(got[:len(wantPrefix)]) != string(wantPrefix) {
		t.Fatalf("S2 prefix: got %v, want prefix %v", got, wantPrefix)
	}
	if len(got) != len(wantPrefix)+2 {
		t.Fatalf("S2: got %d bytes, want %d", len(got), len(wantPrefix)+2)
	}
}

func TestEncodeFrameS3EscapedPayloadByte(t *testing.T) {
	// S3: command 0xA1, payload [0x7E]. The payload's 0x7E is escaped to
	// 7D 5E on the wire.
	got := encodeToBytes(t, 0xA1, []byte{0x7E}, true)
	wantPrefix := []byte{FrameBoundary, 0xA1, 0x01, ControlEscape, FrameBoundary ^ escapeXOR}
	if string(got[:len(wantPrefix)]) != string(wantPrefix) {
		t.Errorf("S3: got %v, want prefix %v", got, wantPrefix)
	}
}

func TestEncodeFrameS4TwoByteLength(t *testing.T) {
	// S4: payload length 200 (0xC8) uses two length bytes: 0x80, 0xC8.
	payload := make([]byte, 200)
	got := encodeToBytes(t, 0xA2, payload, true)
	wantPrefix := []byte{FrameBoundary, 0xA2, 0x80, 0xC8}
	if string(got[:len(wantPrefix)]) != string(wantPrefix) {
		t.Errorf("S4: got prefix %v, want %v", got[:len(wantPrefix)], wantPrefix)
	}
}

func TestEncodeFrameLengthBoundary127Vs128(t *testing.T) {
	p127 := encodeToBytes(t, 0xA3, make([]byte, 127), true)
	if p127[1] != 0xA3 || p127[2] != 127 {
		t.Fatalf("N=127: got header %v, want single length byte 127", p127[1:3])
	}

	p128 := encodeToBytes(t, 0xA3, make([]byte, 128), true)
	if p128[1] != 0xA3 || p128[2] != 0x80 || p128[3] != 0x80 {
		t.Fatalf("N=128: got header %v, want two-byte length 0x80 0x80", p128[1:4])
	}
}

func TestEncodeFrameNoCRCWhenDisabled(t *testing.T) {
	withCRC := encodeToBytes(t, 0xA0, nil, true)
	withoutCRC := encodeToBytes(t, 0xA0, nil, false)
	if len(withoutCRC) != len(withCRC)-2 {
		t.Errorf("disabling CRC should drop exactly 2 trailing bytes: with=%d without=%d", len(withCRC), len(withoutCRC))
	}
}

func TestEncodeFrameNoTrailingFrameBoundary(t *testing.T) {
	got := encodeToBytes(t, 0xA0, []byte{0x01, 0x02}, true)
	for _, b := range got[1:] {
		if b == FrameBoundary {
			t.Fatalf("unescaped FrameBoundary found after the leading one: %v", got)
		}
	}
}
