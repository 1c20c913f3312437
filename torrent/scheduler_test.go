package torrent

import (
	"crypto/sha1"
	"testing"
)

func makeSessionForTest(pieceCount int, blocksPerPiece int) (*Session, *MetaInfo) {
	pieceLength := int64(blocksPerPiece * BlockSize)
	total := pieceLength * int64(pieceCount)

	hashes := make([][20]byte, pieceCount)
	meta := testMeta(total, pieceLength, hashes)

	sess := NewSession(meta, nil)

	return sess, meta
}

func readyPeer(sess *Session, pieceCount int) *PeerState {
	p := NewPeerState(PeerAddress{}, pieceCount)
	p.Conn = fakeConn{}
	p.ChokedByRemote = false
	p.InterestedInRemote = true
	for i := 0; i < pieceCount; i++ {
		p.MarkHave(i)
	}
	sess.Peers = append(sess.Peers, p)

	return p
}

func TestSelectNextReturnsDistinctBlocksInOrder(t *testing.T) {
	sess, _ := makeSessionForTest(1, 3)
	peer := readyPeer(sess, 1)

	seen := map[int]bool{}
	for i := 0; i < 3; i++ {
		p, block, ok := sess.SelectNext()
		if !ok {
			t.Fatalf("SelectNext #%d: expected ok=true", i)
		}
		if p != peer {
			t.Fatalf("SelectNext #%d: expected the only peer", i)
		}
		if seen[block.Begin] {
			t.Fatalf("block at begin=%d returned twice", block.Begin)
		}
		if block.Begin != i*BlockSize {
			t.Fatalf("SelectNext #%d: begin = %d, want %d", i, block.Begin, i*BlockSize)
		}
		seen[block.Begin] = true

		sess.IssueRequest(p, block)
	}

	// Every block of the only piece is now inflight; nothing left to select
	// until something completes or is abandoned.
	if _, _, ok := sess.SelectNext(); ok {
		t.Fatal("expected SelectNext to report nothing selectable once everything is inflight")
	}
}

// TestSelectNextBlockCursorAdvancesBeforeCheck pins the resolved Open
// Question: block_cursor always advances past an examined block even when
// that exact block is what gets returned, so a returned block is not offered
// again until the cursor wraps around
// (original_source/downloadSession.py's __determineNextBlockToRequest).
func TestSelectNextBlockCursorAdvancesBeforeCheck(t *testing.T) {
	sess, _ := makeSessionForTest(1, 2)
	readyPeer(sess, 1)

	_, block0, ok := sess.SelectNext()
	if !ok || block0.Begin != 0 {
		t.Fatalf("expected first call to return block 0, got ok=%v block=%+v", ok, block0)
	}

	// block0 is deliberately not issued: it is neither complete nor inflight,
	// so only the advanced cursor keeps the next call from returning it again.
	_, block1, ok := sess.SelectNext()
	if !ok || block1.Begin != BlockSize {
		t.Fatalf("expected second call to return block at BlockSize, got ok=%v block=%+v", ok, block1)
	}
}

func TestSelectNextSkipsIneligiblePiece(t *testing.T) {
	sess, _ := makeSessionForTest(2, 1)
	peer := NewPeerState(PeerAddress{}, 2)
	peer.Conn = fakeConn{}
	peer.ChokedByRemote = false
	peer.InterestedInRemote = true
	peer.MarkHave(1) // only has piece 1, not piece 0
	sess.Peers = append(sess.Peers, peer)

	p, block, ok := sess.SelectNext()
	if !ok {
		t.Fatal("expected to select the block of piece 1")
	}
	if p != peer || block.PieceIndex != 1 {
		t.Fatalf("expected piece 1's block, got piece %d", block.PieceIndex)
	}
}

func TestOnPieceReceivedCompletesAndCancelsOthers(t *testing.T) {
	sess, meta := makeSessionForTest(1, 1)
	sender := readyPeer(sess, 1)
	other := readyPeer(sess, 1)

	req := InflightRequest{PieceIndex: 0, Begin: 0, Length: int(meta.PieceLength)}
	sender.AddInflight(req)
	other.AddInflight(req)

	data := make([]byte, meta.PieceLength)
	sess.Pieces[0].ExpectedHash = sha1.Sum(data)

	result, cancels, err := sess.OnPieceReceived(sender, 0, 0, data)
	if err != nil {
		t.Fatalf("OnPieceReceived: %v", err)
	}
	if result == nil || result.Index != 0 {
		t.Fatalf("expected a completed PieceResult for index 0, got %+v", result)
	}
	if !sess.Downloaded[0] {
		t.Error("expected piece 0 to be marked downloaded")
	}

	if len(cancels) != 1 || cancels[0].Peer != other {
		t.Fatalf("expected exactly one cancel targeting the other peer, got %+v", cancels)
	}
	if other.HasInflight(req) {
		t.Error("expected the other peer's matching inflight request to be removed")
	}
}

func TestOnPieceReceivedHashMismatchResets(t *testing.T) {
	sess, meta := makeSessionForTest(1, 1)
	sender := readyPeer(sess, 1)

	req := InflightRequest{PieceIndex: 0, Begin: 0, Length: int(meta.PieceLength)}
	sender.AddInflight(req)

	badData := make([]byte, meta.PieceLength)
	for i := range badData {
		badData[i] = 0xFF
	}

	result, _, err := sess.OnPieceReceived(sender, 0, 0, badData)
	if err != nil {
		t.Fatalf("OnPieceReceived: %v", err)
	}
	if result != nil {
		t.Fatal("expected no PieceResult on hash mismatch")
	}
	if sess.Downloaded[0] {
		t.Error("piece should not be marked downloaded after a hash mismatch")
	}
	if sess.Pieces[0].Blocks[0].Complete {
		t.Error("expected Reset to clear the block's Complete flag")
	}
}

func TestOnChokeAbandonsInflight(t *testing.T) {
	sess, _ := makeSessionForTest(1, 1)
	peer := readyPeer(sess, 1)
	peer.AddInflight(InflightRequest{PieceIndex: 0, Begin: 0, Length: BlockSize})

	sess.OnChoke(peer)

	if !peer.ChokedByRemote {
		t.Error("expected ChokedByRemote to be set")
	}
	if len(peer.Inflight) != 0 {
		t.Error("expected OnChoke to abandon inflight requests")
	}
}

func TestSendMessageWritesToConn(t *testing.T) {
	sess, _ := makeSessionForTest(1, 1)
	peer := readyPeer(sess, 1)

	if err := sess.SendMessage(peer, &Message{ID: Interested}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
}

// TestSendMessageErrorsOnClosedPeer pins the fix for sending to a peer whose
// connection has already been nilled by closeSession: SendMessage must
// return an error, never dereference a nil Conn.
func TestSendMessageErrorsOnClosedPeer(t *testing.T) {
	sess, _ := makeSessionForTest(1, 1)
	peer := readyPeer(sess, 1)

	closeSession(sess, peer)

	if err := sess.SendMessage(peer, &Message{ID: Interested}); err == nil {
		t.Fatal("expected SendMessage to error once the peer's connection is closed")
	}
}

func TestIsCompleteRequiresEveryPiece(t *testing.T) {
	sess, _ := makeSessionForTest(2, 1)
	if sess.IsComplete() {
		t.Fatal("fresh session should not be complete")
	}

	sess.Downloaded[0] = true
	if sess.IsComplete() {
		t.Fatal("session with one of two pieces should not be complete")
	}

	sess.Downloaded[1] = true
	if !sess.IsComplete() {
		t.Fatal("session with every piece downloaded should be complete")
	}
}
