package core

// Frame is a raw outbound payload, already encoded for the wire.
type Frame []byte

// Conn abstracts the addressable endpoint behind a participant.
// Owned by the adapter; the adapter must Close() it. TrySend must not
// block: implementations queue or drop, they never wait on the peer.
type Conn interface {
	TrySend(Frame) error
	Close()
}

// SendResult reports fan-out delivery stats/backpressure to the caller.
type SendResult struct {
	SentTo  int
	Dropped int
}
