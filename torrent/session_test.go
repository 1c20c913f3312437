package torrent

import (
	"context"
	"crypto/sha1"
	"net"
	"testing"
	"time"
)

func TestDispatchMessageChokeUnchoke(t *testing.T) {
	sess, _ := makeSessionForTest(1, 1)
	peer := readyPeer(sess, 1)

	if err := dispatchMessage(sess, peer, &Message{ID: Choke}); err != nil {
		t.Fatalf("dispatchMessage(Choke): %v", err)
	}
	if !peer.ChokedByRemote {
		t.Error("expected Choke to set ChokedByRemote")
	}

	if err := dispatchMessage(sess, peer, &Message{ID: Unchoke}); err != nil {
		t.Fatalf("dispatchMessage(Unchoke): %v", err)
	}
	if peer.ChokedByRemote {
		t.Error("expected Unchoke to clear ChokedByRemote")
	}
}

func TestDispatchMessageHaveAndBitfield(t *testing.T) {
	sess, _ := makeSessionForTest(1, 1)
	peer := NewPeerState(PeerAddress{}, 8)
	sess.Peers = append(sess.Peers, peer)

	haveMsg := EncodeHave(3)
	if err := dispatchMessage(sess, peer, haveMsg); err != nil {
		t.Fatalf("dispatchMessage(Have): %v", err)
	}
	if !peer.RemoteBitfield.HasPiece(3) {
		t.Error("expected Have to mark piece 3")
	}

	bf := NewBitfield(8)
	bf.SetPiece(0)
	bf.SetPiece(5)
	bfMsg := EncodeBitfield(bf)

	// Bitfield decode is checked against sess.Meta's piece count, not peer's.
	sess.Meta.PieceHashes = make([][20]byte, 8)

	if err := dispatchMessage(sess, peer, bfMsg); err != nil {
		t.Fatalf("dispatchMessage(Bitfield): %v", err)
	}
	if !peer.RemoteBitfieldReady {
		t.Error("expected RemoteBitfieldReady to be set")
	}
	if !peer.RemoteBitfield.HasPiece(0) || !peer.RemoteBitfield.HasPiece(5) {
		t.Error("expected the decoded bitfield's bits to be present")
	}
}

func TestDispatchMessagePieceDeliversToCompletedChannel(t *testing.T) {
	sess, meta := makeSessionForTest(1, 1)
	peer := readyPeer(sess, 1)

	data := make([]byte, meta.PieceLength)
	sess.Pieces[0].ExpectedHash = shaSum(data)

	pieceMsg := EncodePiece(0, 0, data)
	if err := dispatchMessage(sess, peer, pieceMsg); err != nil {
		t.Fatalf("dispatchMessage(Piece): %v", err)
	}

	select {
	case result := <-sess.Completed():
		if result.Index != 0 {
			t.Errorf("delivered result for index %d, want 0", result.Index)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a completed piece to be delivered")
	}
}

func TestReadLoopStopsWhenConnectionCloses(t *testing.T) {
	sess, _ := makeSessionForTest(1, 1)
	peer := readyPeer(sess, 1)

	clientConn, serverConn := net.Pipe()
	peer.Conn = serverConn

	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		readLoop(ctx, DefaultConfig(), sess, peer)
		close(done)
	}()

	clientConn.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected readLoop to return once the peer's connection closes")
	}
}

func shaSum(data []byte) [20]byte {
	return sha1.Sum(data)
}
