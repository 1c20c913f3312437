package torrent

import (
	"fmt"
	"net"
	"sync"
)

// --------------------------------------------------------------------------------------------- //

/*
PeerAddress is an immutable (ip, port) pair; two values are equal when both
the IP and the port match.
*/
type PeerAddress struct {
	IP   [4]byte
	Port uint16
}

// String renders the address as "a.b.c.d:port".
func (a PeerAddress) String() string {
	return fmt.Sprintf("%d.%d.%d.%d:%d", a.IP[0], a.IP[1], a.IP[2], a.IP[3], a.Port)
}

// --------------------------------------------------------------------------------------------- //

// InflightRequest identifies a block that has been requested from a peer
// and not yet received or cancelled.
type InflightRequest struct {
	PieceIndex int
	Begin      int
	Length     int
}

// --------------------------------------------------------------------------------------------- //

/*
PeerState holds the per-connection flags, remote bitfield, and in-flight
request bookkeeping for one peer, per §3. Fields are mutated only while the
owning Session's lock is held (§5's Go adaptation of the non-suspension
rule): Conn is set under that lock when the handshake completes and nilled
under it by closeSession. The peer's own session goroutine, the only one
that sets Conn, also reads it without the lock in readLoop; other senders
snapshot it under the lock, so they never see a torn value or a nil Conn,
though a snapshot taken just before closeSession can be a closed one whose
Write returns an error.
*/
type PeerState struct {
	Addr PeerAddress

	State PeerSessionState

	ChokedByRemote      bool
	ChokingRemote       bool
	InterestedInRemote  bool
	RemoteInterested    bool
	RemoteBitfieldReady bool

	RemoteBitfield Bitfield
	Inflight       []InflightRequest

	Conn net.Conn

	// writeMu serializes writes to Conn: the session's read loop sends
	// Interested/Cancel traffic while the orchestrator's driver loop sends
	// Request traffic concurrently, and net.Conn does not itself guarantee
	// safe interleaving of concurrent writers. Senders read Conn through
	// Session's lock (see Session.SendMessage and closeSession), since a
	// bare field read there would race against closeSession nilling Conn
	// out from under a concurrent sender.
	writeMu sync.Mutex
}

// --------------------------------------------------------------------------------------------- //

// NewPeerState constructs a PeerState with the initial flag values from §3:
// both choke flags true, both interest flags false, an all-zero bitfield.
func NewPeerState(addr PeerAddress, pieceCount int) *PeerState {
	return &PeerState{
		Addr:           addr,
		ChokedByRemote: true,
		ChokingRemote:  true,
		RemoteBitfield: NewBitfield(pieceCount),
	}
}

// --------------------------------------------------------------------------------------------- //

// SetBitfield replaces the remote bitfield wholesale. Per §4.4, a Bitfield
// message is only valid as the first message-carrying payload after the
// handshake; a later one is still accepted and overwrites, as specified.
func (p *PeerState) SetBitfield(b Bitfield) {
	p.RemoteBitfield = b
	p.RemoteBitfieldReady = true
}

// MarkHave sets bit index of the remote bitfield; bits only ever flip 0→1 (invariant 3).
func (p *PeerState) MarkHave(index int) {
	p.RemoteBitfield.SetPiece(index)
}

// --------------------------------------------------------------------------------------------- //

// HasInflight reports whether req is already in this peer's inflight list.
func (p *PeerState) HasInflight(req InflightRequest) bool {
	for _, r := range p.Inflight {
		if r == req {
			return true
		}
	}

	return false
}

// AddInflight appends req to the peer's inflight list. Callers (the
// scheduler) are responsible for the no-duplicates-across-peers invariant.
func (p *PeerState) AddInflight(req InflightRequest) {
	p.Inflight = append(p.Inflight, req)
}

// RemoveInflight removes the first occurrence of req, if present, and
// reports whether it was found.
func (p *PeerState) RemoveInflight(req InflightRequest) bool {
	for i, r := range p.Inflight {
		if r == req {
			p.Inflight = append(p.Inflight[:i], p.Inflight[i+1:]...)
			return true
		}
	}

	return false
}

// AbandonInflight clears every in-flight request for this peer, per the
// Choke dispatch rule (§4.4): entries will be reselected against another peer.
func (p *PeerState) AbandonInflight() []InflightRequest {
	abandoned := p.Inflight
	p.Inflight = nil

	return abandoned
}

// --------------------------------------------------------------------------------------------- //

// IsEligible reports whether this peer may be asked for piece index, per
// the eligibility rule in §4.5: unchoked, interested-in, and has the piece.
func (p *PeerState) IsEligible(pieceIndex int) bool {
	return p.Conn != nil &&
		!p.ChokedByRemote &&
		p.InterestedInRemote &&
		p.RemoteBitfield.HasPiece(pieceIndex)
}

// --------------------------------------------------------------------------------------------- //
