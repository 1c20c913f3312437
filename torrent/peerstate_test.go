package torrent

import "testing"

func TestNewPeerStateInitialFlags(t *testing.T) {
	p := NewPeerState(PeerAddress{IP: [4]byte{1, 2, 3, 4}, Port: 6881}, 10)

	if !p.ChokedByRemote {
		t.Error("ChokedByRemote should start true")
	}
	if !p.ChokingRemote {
		t.Error("ChokingRemote should start true")
	}
	if p.InterestedInRemote || p.RemoteInterested {
		t.Error("interest flags should start false")
	}
	if len(p.RemoteBitfield) != bitfieldByteLen(10) {
		t.Errorf("RemoteBitfield length = %d, want %d", len(p.RemoteBitfield), bitfieldByteLen(10))
	}
}

func TestPeerStateInflightLifecycle(t *testing.T) {
	p := NewPeerState(PeerAddress{}, 1)
	req := InflightRequest{PieceIndex: 0, Begin: 0, Length: BlockSize}

	if p.HasInflight(req) {
		t.Fatal("should not have the request yet")
	}

	p.AddInflight(req)
	if !p.HasInflight(req) {
		t.Fatal("expected the request to be inflight after AddInflight")
	}

	if !p.RemoveInflight(req) {
		t.Fatal("RemoveInflight should report true for a present request")
	}
	if p.HasInflight(req) {
		t.Fatal("request should no longer be inflight after removal")
	}
	if p.RemoveInflight(req) {
		t.Error("RemoveInflight should report false for an absent request")
	}
}

func TestPeerStateAbandonInflight(t *testing.T) {
	p := NewPeerState(PeerAddress{}, 1)
	p.AddInflight(InflightRequest{PieceIndex: 0, Begin: 0, Length: BlockSize})
	p.AddInflight(InflightRequest{PieceIndex: 0, Begin: BlockSize, Length: BlockSize})

	abandoned := p.AbandonInflight()
	if len(abandoned) != 2 {
		t.Fatalf("got %d abandoned requests, want 2", len(abandoned))
	}
	if len(p.Inflight) != 0 {
		t.Error("Inflight should be empty after AbandonInflight")
	}
}

func TestPeerStateIsEligible(t *testing.T) {
	p := NewPeerState(PeerAddress{}, 2)
	p.MarkHave(1)

	if p.IsEligible(1) {
		t.Fatal("should not be eligible without a connection")
	}

	p.Conn = fakeConn{}
	if p.IsEligible(1) {
		t.Fatal("should not be eligible while choked by remote")
	}

	p.ChokedByRemote = false
	if p.IsEligible(1) {
		t.Fatal("should not be eligible until interested in remote")
	}

	p.InterestedInRemote = true
	if !p.IsEligible(1) {
		t.Fatal("expected eligibility once connected, unchoked, interested, and piece available")
	}
	if p.IsEligible(0) {
		t.Error("should not be eligible for a piece the remote bitfield doesn't have")
	}
}

func TestPeerAddressString(t *testing.T) {
	a := PeerAddress{IP: [4]byte{192, 168, 1, 1}, Port: 6881}
	if got, want := a.String(), "192.168.1.1:6881"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
