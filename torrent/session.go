package torrent

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"
)

// --------------------------------------------------------------------------------------------- //

// PeerSessionState enumerates the lifecycle of one peer connection, per §4.3.
type PeerSessionState int

const (
	StateNew PeerSessionState = iota
	StateConnecting
	StateHandshaking
	StateReady
	StateClosed
)

// --------------------------------------------------------------------------------------------- //

/*
RunPeerSession drives the full lifecycle of one peer connection: dial (with
retry), handshake, send an initial Interested, then read and dispatch
messages until the connection closes or ctx is cancelled. It never returns
an error for a peer that simply didn't pan out — connect/handshake failure
is logged and the function returns nil, since one dead peer must never
bring down the rest of the download (§7).

Grounded in the teacher's PerformHandshake/ConnectToPeers/DownloadFromPeer
trio, reshaped into one goroutine-per-peer loop per the §5 Go adaptation.
*/
func RunPeerSession(ctx context.Context, cfg Config, sess *Session, peer *PeerState, infoHash, peerID [20]byte) error {
	sess.WithLock(func() { peer.State = StateConnecting })

	conn, err := dialWithRetry(ctx, cfg, peer.Addr)
	if err != nil {
		log.Printf("[FAIL]\tPeer %s: %v\n", peer.Addr, err)
		return nil
	}
	defer conn.Close()

	sess.WithLock(func() { peer.State = StateHandshaking })
	if err := performHandshake(conn, cfg, infoHash, peerID); err != nil {
		log.Printf("[FAIL]\tPeer %s handshake: %v\n", peer.Addr, err)
		return nil
	}

	sess.WithLock(func() {
		peer.Conn = conn
		peer.State = StateReady
	})
	log.Printf("[INFO]\tPeer %s ready\n", peer.Addr)

	if err := sess.SendMessage(peer, &Message{ID: Interested}); err != nil {
		log.Printf("[FAIL]\tPeer %s sending Interested: %v\n", peer.Addr, err)
		closeSession(sess, peer)
		return nil
	}
	sess.WithLock(func() {
		peer.InterestedInRemote = true
	})

	readLoop(ctx, cfg, sess, peer)

	closeSession(sess, peer)

	return nil
}

// --------------------------------------------------------------------------------------------- //

// dialWithRetry attempts to connect to addr up to cfg.ConnectAttempts times,
// per the original's 3-attempt connect policy. It covers the TCP dial only;
// the handshake that follows is made once and not retried.
func dialWithRetry(ctx context.Context, cfg Config, addr PeerAddress) (net.Conn, error) {
	var lastErr error

	dialer := net.Dialer{Timeout: cfg.DialTimeout}

	for attempt := 1; attempt <= cfg.ConnectAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		conn, err := dialer.DialContext(ctx, "tcp", addr.String())
		if err == nil {
			return conn, nil
		}

		lastErr = err
		log.Printf("[FAIL]\tDial attempt %d/%d to %s: %v\n", attempt, cfg.ConnectAttempts, addr, err)
	}

	return nil, fmt.Errorf("dialing %s failed after %d attempts: %w", addr, cfg.ConnectAttempts, lastErr)
}

// --------------------------------------------------------------------------------------------- //

// performHandshake exchanges and validates the fixed-length handshake frame.
func performHandshake(conn net.Conn, cfg Config, infoHash, peerID [20]byte) error {
	conn.SetDeadline(time.Now().Add(cfg.HandshakeTimeout))
	defer conn.SetDeadline(time.Time{})

	if _, err := conn.Write(NewHandshake(infoHash, peerID).Serialize()); err != nil {
		return fmt.Errorf("sending handshake: %w", err)
	}

	remote, err := ReadHandshake(conn)
	if err != nil {
		return fmt.Errorf("reading handshake: %w", err)
	}

	if err := remote.Validate(infoHash); err != nil {
		return newDecodeError(DecodeErrorHandshake, "peer handshake", err)
	}

	return nil
}

// --------------------------------------------------------------------------------------------- //

/*
readLoop reads and dispatches messages from peer's connection until the
connection closes, a framing error occurs, or ctx is cancelled. Dispatch
mutates shared Session/PeerState fields only through Session's locked
helpers, per §5.
*/
func readLoop(ctx context.Context, cfg Config, sess *Session, peer *PeerState) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		peer.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))

		msg, err := ReadMessage(peer.Conn)
		if err != nil {
			log.Printf("[INFO]\tPeer %s closed: %v\n", peer.Addr, err)
			return
		}
		if msg == nil {
			continue
		}

		if err := dispatchMessage(sess, peer, msg); err != nil {
			log.Printf("[FAIL]\tPeer %s message dispatch: %v\n", peer.Addr, err)
			return
		}
	}
}

// --------------------------------------------------------------------------------------------- //

// dispatchMessage applies one inbound message's effect to the session/peer
// state, per §4.4. Leech-only: Request and Cancel from the remote side are
// accepted but ignored, since this client never seeds (§9 Non-goals).
func dispatchMessage(sess *Session, peer *PeerState, msg *Message) error {
	switch msg.ID {
	case Choke:
		sess.OnChoke(peer)

	case Unchoke:
		sess.OnUnchoke(peer)

	case Interested:
		sess.WithLock(func() { peer.RemoteInterested = true })

	case NotInterested:
		sess.WithLock(func() { peer.RemoteInterested = false })

	case Have:
		index, err := DecodeHave(msg)
		if err != nil {
			return err
		}
		sess.WithLock(func() { peer.MarkHave(index) })

	case BitfieldMsg:
		bf, err := DecodeBitfield(msg, sess.Meta.PieceCount())
		if err != nil {
			return err
		}
		sess.WithLock(func() { peer.SetBitfield(bf) })

	case PieceMsg:
		index, begin, data, err := DecodePiece(msg)
		if err != nil {
			return err
		}

		result, cancels, err := sess.OnPieceReceived(peer, index, begin, data)
		if err != nil {
			return err
		}

		for _, c := range cancels {
			cancelMsg := EncodeCancel(c.Req.PieceIndex, c.Req.Begin, c.Req.Length)
			if err := sess.SendMessage(c.Peer, cancelMsg); err != nil {
				log.Printf("[FAIL]\tSending Cancel to %s: %v\n", c.Peer.Addr, err)
			}
		}

		if result != nil {
			sess.DeliverPiece(result)
		}

	case Request, Cancel, Extended:
		// ignored: no seeding, extension protocol unused (§9 Non-goals)

	default:
		log.Printf("[INFO]\tIgnoring unknown message id %d from %s\n", msg.ID, peer.Addr)
	}

	return nil
}

// --------------------------------------------------------------------------------------------- //

// closeSession marks peer's connection gone and abandons its in-flight
// requests so the scheduler reissues them against another peer.
func closeSession(sess *Session, peer *PeerState) {
	sess.WithLock(func() {
		peer.Conn = nil
		peer.State = StateClosed
		peer.AbandonInflight()
	})
}

// --------------------------------------------------------------------------------------------- //
