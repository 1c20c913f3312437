package torrent

import (
	"fmt"
	"sync"
)

// --------------------------------------------------------------------------------------------- //

/*
Session owns the piece vector, the peer vector, the scheduler cursor, and
the downloaded bitmap for one torrent download, per §3's "Download session".
Go runs peer sessions as concurrent goroutines rather than the spec's
cooperative tasks, so every field below is guarded by mu: the single coarse
mutex the §5/§9 Go adaptation calls for, covering pieces, peers, cursor, and
downloaded together.
*/
type Session struct {
	mu sync.Mutex

	Meta       *MetaInfo
	Pieces     []*Piece
	Peers      []*PeerState
	Downloaded []bool

	pieceCursor int
	blockCursor int

	// completed carries verified pieces out to the writer. It is buffered
	// to the piece count so a slow writer never blocks a peer session's
	// read loop mid-dispatch.
	completed chan *PieceResult
}

// --------------------------------------------------------------------------------------------- //

// NewSession constructs a Session for a torrent and its initial peer set.
func NewSession(meta *MetaInfo, addrs []PeerAddress) *Session {
	peers := make([]*PeerState, len(addrs))
	for i, a := range addrs {
		peers[i] = NewPeerState(a, meta.PieceCount())
	}

	return &Session{
		Meta:       meta,
		Pieces:     NewPieces(meta),
		Peers:      peers,
		Downloaded: make([]bool, meta.PieceCount()),
		completed:  make(chan *PieceResult, meta.PieceCount()),
	}
}

// --------------------------------------------------------------------------------------------- //

// DeliverPiece hands a verified piece to whoever is consuming Completed().
func (s *Session) DeliverPiece(result *PieceResult) {
	s.completed <- result
}

// Completed returns the channel of verified pieces ready to be written to
// disk, in arrival order (not piece-index order).
func (s *Session) Completed() <-chan *PieceResult {
	return s.completed
}

// --------------------------------------------------------------------------------------------- //

// IsComplete reports whether every piece has been downloaded and verified.
func (s *Session) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.isCompleteLocked()
}

func (s *Session) isCompleteLocked() bool {
	for _, done := range s.Downloaded {
		if !done {
			return false
		}
	}

	return true
}

// --------------------------------------------------------------------------------------------- //

// eligiblePeerLocked returns the first eligible peer for piece index, or nil.
// First-match across the peer list is intentional (§4.5): prioritization is
// a stated future extension, not a current contract.
func (s *Session) eligiblePeerLocked(pieceIndex int) *PeerState {
	for _, p := range s.Peers {
		if p.IsEligible(pieceIndex) {
			return p
		}
	}

	return nil
}

// --------------------------------------------------------------------------------------------- //

/*
SelectNext implements the §4.5 selection algorithm: walk the cursor forward
over pieces and, within the current piece, over blocks of the first eligible
peer, returning the first one not yet complete and not already in that
peer's inflight. It returns ok=false if nothing can be issued this call.

block_cursor always advances past whatever block index was examined, even
when that block is skipped because it was already complete or inflight —
this mirrors the original implementation's behavior exactly (§9): a block
unavailable on this sweep is not re-examined until the cursor wraps around.
*/
func (s *Session) SelectNext() (peer *PeerState, block *Block, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pieceCount := len(s.Pieces)

	for s.pieceCursor < pieceCount {
		piece := s.Pieces[s.pieceCursor]

		if !s.Downloaded[s.pieceCursor] {
			if p := s.eligiblePeerLocked(s.pieceCursor); p != nil {
				for s.blockCursor < len(piece.Blocks) {
					b := piece.Blocks[s.blockCursor]
					s.blockCursor++

					req := InflightRequest{PieceIndex: b.PieceIndex, Begin: b.Begin, Length: b.Length}
					if !b.Complete && !p.HasInflight(req) {
						return p, b, true
					}
				}
			}
		}

		s.pieceCursor++
		s.blockCursor = 0
	}

	s.pieceCursor, s.blockCursor = 0, 0

	return nil, nil, false
}

// --------------------------------------------------------------------------------------------- //

// IssueRequest records block as in-flight against peer. Callers send the
// corresponding Request message; this only updates bookkeeping.
func (s *Session) IssueRequest(peer *PeerState, block *Block) {
	s.mu.Lock()
	defer s.mu.Unlock()

	peer.AddInflight(InflightRequest{PieceIndex: block.PieceIndex, Begin: block.Begin, Length: block.Length})
}

// --------------------------------------------------------------------------------------------- //

// PieceResult describes a piece that just finished verifying, for handoff
// to the external writer.
type PieceResult struct {
	Index int
	Data  []byte
}

/*
OnPieceReceived applies an inbound Piece message from sender, per §4.4 and
§4.5: it copies the payload into the matching block, marks it complete,
removes it from sender's inflight, and — if the piece is now fully
received — verifies its hash. On success it marks the piece downloaded and
returns a PieceResult for the writer; on hash mismatch it resets the piece's
blocks so the scheduler reissues them.

It also performs cross-peer cancellation (§4.5): every other peer with a
matching (pieceIndex, begin) in its inflight gets that entry removed and is
returned in cancels so the caller can send a Cancel message to them.
*/
func (s *Session) OnPieceReceived(sender *PeerState, pieceIndex, begin int, data []byte) (result *PieceResult, cancels []CancelTo, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pieceIndex < 0 || pieceIndex >= len(s.Pieces) {
		return nil, nil, errPieceIndex(pieceIndex)
	}

	piece := s.Pieces[pieceIndex]
	block := piece.blockAt(begin)
	if block == nil {
		return nil, nil, errBlockBegin(pieceIndex, begin)
	}

	// A verified piece is delivered once; a late duplicate block for it only
	// clears the sender's inflight entry.
	if s.Downloaded[pieceIndex] {
		sender.RemoveInflight(InflightRequest{PieceIndex: pieceIndex, Begin: begin, Length: block.Length})
		return nil, nil, nil
	}

	block.Data = append([]byte(nil), data...)
	block.Complete = true

	req := InflightRequest{PieceIndex: pieceIndex, Begin: begin, Length: block.Length}
	sender.RemoveInflight(req)

	cancels = s.cancelOthersLocked(sender, req)

	if !piece.allBlocksComplete() {
		return nil, cancels, nil
	}

	assembled, ok := piece.Verify()
	if !ok {
		piece.Reset()
		s.Downloaded[pieceIndex] = false

		return nil, cancels, nil
	}

	s.Downloaded[pieceIndex] = true

	return &PieceResult{Index: pieceIndex, Data: assembled}, cancels, nil
}

// --------------------------------------------------------------------------------------------- //

// CancelTo pairs a peer with the in-flight request it must be told to cancel.
type CancelTo struct {
	Peer *PeerState
	Req  InflightRequest
}

// cancelOthersLocked scans every peer other than sender for req and removes
// at most one matching entry per peer (duplicates are forbidden by
// construction), per §4.5's cross-peer cancellation rule.
func (s *Session) cancelOthersLocked(sender *PeerState, req InflightRequest) []CancelTo {
	var cancels []CancelTo

	for _, p := range s.Peers {
		if p == sender {
			continue
		}

		if p.RemoveInflight(req) {
			cancels = append(cancels, CancelTo{Peer: p, Req: req})
		}
	}

	return cancels
}

// --------------------------------------------------------------------------------------------- //

// OnChoke applies the Choke dispatch rule (§4.4): mark the peer choked and
// abandon every in-flight request so the scheduler reissues them elsewhere.
func (s *Session) OnChoke(peer *PeerState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	peer.ChokedByRemote = true
	peer.AbandonInflight()
}

// OnUnchoke applies the Unchoke dispatch rule.
func (s *Session) OnUnchoke(peer *PeerState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	peer.ChokedByRemote = false
}

// --------------------------------------------------------------------------------------------- //

// WithLock runs fn while holding the session lock, for dispatch paths
// (Bitfield/Have/Interested) that need to mutate a single peer's state
// without the more specific helpers above.
func (s *Session) WithLock(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn()
}

// --------------------------------------------------------------------------------------------- //

/*
SendMessage serializes msg and writes it to peer's connection. It snapshots
peer.Conn under the session lock before writing: peer.Conn is nilled out by
closeSession under that same lock when a peer's read loop ends, and every
sender (the driver loop, the session's own loop, cross-peer cancel senders
in other peers' goroutines) calls this instead of touching peer.Conn
directly, so a peer disconnecting mid-download can never race a concurrent
write into a torn read or a nil-pointer Write.

peer.writeMu still serializes the Write call itself, since two senders can
legitimately observe the same non-nil Conn (e.g. the driver loop and a
cross-peer Cancel) and must not interleave their writes.
*/
func (s *Session) SendMessage(peer *PeerState, msg *Message) error {
	s.mu.Lock()
	conn := peer.Conn
	s.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("torrent: peer %s has no connection", peer.Addr)
	}

	peer.writeMu.Lock()
	defer peer.writeMu.Unlock()

	_, err := conn.Write(msg.Serialize())
	return err
}

// --------------------------------------------------------------------------------------------- //
