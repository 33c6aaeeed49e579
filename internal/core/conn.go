package core

// Frame is a raw encoded payload ready for the wire.
type Frame []byte

// ConnID identifies one live transport connection. It is the unit of
// presence identity: two tabs of the same user are two ConnIDs.
type ConnID string

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// PublishResult reports delivery stats/backpressure to the caller.
type PublishResult struct {
	SentTo  int
	Dropped []ConnID
}
