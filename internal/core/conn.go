package core

// Frame is a raw outbound payload (one JSON object per frame).
type Frame []byte

// SignalConn abstracts a system messaging transport endpoint.
// Owned by the adapter; the adapter must Close() it. The registry and
// broadcaster reference connections only through this handle and never
// copy socket state.
type SignalConn interface {
	// TrySend queues a frame without blocking. It reports backpressure or
	// a closed connection as an error; callers treat both as a skip.
	TrySend(Frame) error
	// Close tears down the transport. Idempotent.
	Close()
	// IsOpen reports whether the transport can still accept frames.
	IsOpen() bool
}
