package torrent

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// --------------------------------------------------------------------------------------------- //

/*
Download owns one torrent's end-to-end leech: given the peers already
discovered by the caller, it spawns a session goroutine per peer, runs the driver loop that feeds the scheduler's
SelectNext into outbound Request messages, and writes verified pieces to
disk as they complete. Grounded in the teacher's StartDownload loop, split
across goroutines per the §5 Go adaptation instead of one blocking loop.
*/
func Download(ctx context.Context, cfg Config, meta *MetaInfo, peers []PeerAddress, outputDir string, peerID [20]byte, selfIP string) error {
	peers = dedupSelf(peers, selfIP)
	if len(peers) == 0 {
		return fmt.Errorf("torrent: no usable peers for %s", meta.Name)
	}
	if len(peers) > cfg.MaxPeerConnections {
		log.Printf("[INFO]\tCapping %d peers to MaxPeerConnections=%d\n", len(peers), cfg.MaxPeerConnections)
		peers = peers[:cfg.MaxPeerConnections]
	}

	sess := NewSession(meta, peers)

	writer, err := NewFileWriter(meta, outputDir)
	if err != nil {
		return fmt.Errorf("torrent: preparing output files: %w", err)
	}
	defer writer.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, peer := range sess.Peers {
		wg.Add(1)
		go func(p *PeerState) {
			defer wg.Done()
			if err := RunPeerSession(runCtx, cfg, sess, p, meta.InfoHash, peerID); err != nil {
				log.Printf("[FAIL]\tPeer session %s: %v\n", p.Addr, err)
			}
		}(peer)
	}

	go driverLoop(runCtx, sess)

	bar := progressbar.Default(int64(meta.PieceCount()), fmt.Sprintf("leeching %s", meta.Name))

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	written := 0
	for written < meta.PieceCount() {
		select {
		case <-runCtx.Done():
			return runCtx.Err()

		case <-done:
			if written < meta.PieceCount() {
				return fmt.Errorf("torrent: all peer sessions ended with %d/%d pieces", written, meta.PieceCount())
			}

		case result := <-sess.Completed():
			if err := writer.WritePiece(result); err != nil {
				return err
			}
			written++
			bar.Add(1)
		}
	}

	log.Printf("[INFO]\tDownload of %s complete\n", meta.Name)

	return nil
}

// --------------------------------------------------------------------------------------------- //

/*
driverLoop repeatedly asks the scheduler for the next (peer, block) pair
and sends the corresponding Request message, per §4.5. It polls at a short
interval rather than blocking, since SelectNext legitimately returns
ok=false whenever every eligible peer's pipeline is momentarily exhausted.
*/
func driverLoop(ctx context.Context, sess *Session) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if sess.IsComplete() {
			return
		}

		for {
			peer, block, ok := sess.SelectNext()
			if !ok {
				break
			}

			req := EncodeRequest(block.PieceIndex, block.Begin, block.Length)
			if err := sess.SendMessage(peer, req); err != nil {
				log.Printf("[FAIL]\tSending Request to %s: %v\n", peer.Addr, err)
				continue
			}

			sess.IssueRequest(peer, block)
		}
	}
}

// --------------------------------------------------------------------------------------------- //

// dedupSelf drops any peer address matching this client's own external IP,
// per §4.6: without it a tracker that includes this client in its own peer
// list causes a pointless self-dial.
func dedupSelf(peers []PeerAddress, selfIP string) []PeerAddress {
	if selfIP == "" {
		return peers
	}

	out := make([]PeerAddress, 0, len(peers))
	for _, p := range peers {
		if p.String() == selfIP {
			continue
		}
		addrStr := fmt.Sprintf("%d.%d.%d.%d", p.IP[0], p.IP[1], p.IP[2], p.IP[3])
		if addrStr == selfIP {
			continue
		}
		out = append(out, p)
	}

	return out
}

// --------------------------------------------------------------------------------------------- //
