package torrent

import "time"

// --------------------------------------------------------------------------------------------- //

/*
Config holds the tunables the original spec leaves as constants (§2a): dial
timeouts, retry budgets, and connection fan-out. Defaults mirror the
original's hardcoded behavior so the zero Config is never used directly;
callers should start from DefaultConfig.
*/
type Config struct {
	// DialTimeout bounds a single TCP connect attempt to a peer.
	DialTimeout time.Duration

	// HandshakeTimeout bounds the handshake read/write round trip.
	HandshakeTimeout time.Duration

	// ConnectAttempts is the total number of TCP dial attempts a peer
	// session makes before giving up on that peer permanently. Only the
	// dial is retried: a failed handshake ends the session at once.
	ConnectAttempts int

	// MaxPeerConnections caps how many peers a download connects to;
	// Download drops peers beyond the first MaxPeerConnections.
	MaxPeerConnections int

	// ReadTimeout bounds how long a peer session waits for the next
	// message before treating the connection as dead.
	ReadTimeout time.Duration
}

// DefaultConfig returns the tunables used when the caller supplies none.
func DefaultConfig() Config {
	return Config{
		DialTimeout:        5 * time.Second,
		HandshakeTimeout:   5 * time.Second,
		ConnectAttempts:    3,
		MaxPeerConnections: 30,
		ReadTimeout:        2 * time.Minute,
	}
}

// --------------------------------------------------------------------------------------------- //
