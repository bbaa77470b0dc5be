package core

// Frame is one encoded message for a connection.
type Frame []byte

// SessionID identifies one live connection. A participant's identity is
// the SessionID it joined with.
type SessionID string

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
