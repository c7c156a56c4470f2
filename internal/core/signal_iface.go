package core

// Frame is one encoded outbound envelope.
type Frame []byte

// SignalConnection is the per-connection send side of a transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
