package protocol

// ApplicationHandler is the extension point a concrete node (device or
// host) plugs into a Session. It replaces the reference implementation's
// pair of pure-virtual methods on RemoteObject with a Go interface, per the
// re-architecture guidance: application code reacts to commands and replies
// without subclassing any part of the core.
//
// Both methods run with the Session's PayloadBuffer already positioned for
// reading the incoming payload (bytesRead at zero, bounded by the number of
// bytes that arrived). ProcessCommand may also Serialize/PutXxx a reply
// payload into the same buffer before returning — the buffer's write cursor
// is rewound to zero for exactly this purpose. Reply writes overwrite the
// request bytes from offset zero onward; the read cursor and read bound are
// unaffected, so request bytes past the end of the reply written so far
// still read back unchanged.
type ApplicationHandler interface {
	// ProcessCommand handles one incoming request. cmd is the original
	// request byte, bit 7 set, exactly as the sender wrote it — the Session
	// clears bit 7 only in the packet it puts on the wire for the reply.
	// The returned ReturnCode is appended to whatever payload the handler
	// wrote and becomes the reply packet's last byte; ReturnOK means
	// success, ReturnUnknownCommand is the Session's own fallback for a cmd
	// no handler recognizes.
	ProcessCommand(cmd byte, payload *PayloadBuffer) ReturnCode

	// ProcessReply handles one incoming reply to a command this side sent
	// with SendCommand. cmd is the (bit-7-clear) command the reply answers.
	// The reply's return code has already been stripped from payload and is
	// available separately via Session.ReturnCode; payload holds whatever
	// the remote side serialized ahead of it.
	ProcessReply(cmd byte, payload *PayloadBuffer)
}

// HandlerFunc adapts a plain function to ApplicationHandler for nodes that
// only ever originate commands and never need to react to one — ProcessReply
// is a no-op.
type HandlerFunc func(cmd byte, payload *PayloadBuffer) ReturnCode

// ProcessCommand calls f.
func (f HandlerFunc) ProcessCommand(cmd byte, payload *PayloadBuffer) ReturnCode {
	return f(cmd, payload)
}

// ProcessReply does nothing.
func (f HandlerFunc) ProcessReply(cmd byte, payload *PayloadBuffer) {}
