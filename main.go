package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/colorstring"

	"leechtorrent/torrent"
)

// --------------------------------------------------------------------------------------------- //

func main() {
	outputDir := flag.String("o", ".", "directory to write downloaded files into")
	port := flag.Uint("p", 6881, "port advertised to the tracker")
	verbose := flag.Bool("v", false, "prefix log lines with date and time")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall download timeout")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: leechtorrent [-o dir] [-p port] [-v] <path-to-torrent-file>\n")
		os.Exit(1)
	}

	if !*verbose {
		log.SetOutput(os.Stderr)
		log.SetFlags(0)
	}

	runID := uuid.New().String()
	log.Printf("[INFO]\trun %s starting\n", runID)

	path := flag.Arg(0)

	meta, err := torrent.LoadTorrent(path)
	if err != nil {
		colorstring.Fprintln(os.Stderr, fmt.Sprintf("[red]failed to parse torrent: %v", err))
		os.Exit(1)
	}

	peerID, err := torrent.GeneratePeerID()
	if err != nil {
		colorstring.Fprintln(os.Stderr, fmt.Sprintf("[red]failed to generate peer id: %v", err))
		os.Exit(1)
	}

	peers, err := torrent.DiscoverPeers(meta, peerID, uint16(*port))
	if err != nil {
		colorstring.Fprintln(os.Stderr, fmt.Sprintf("[red]failed to discover peers: %v", err))
		os.Exit(1)
	}
	log.Printf("[INFO]\ttracker returned %d peers\n", len(peers))

	selfIP, err := torrent.GetExternalIP()
	if err != nil {
		log.Printf("[INFO]\tcould not determine external IP, skipping self-peer filter: %v\n", err)
		selfIP = ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg := torrent.DefaultConfig()

	if err := torrent.Download(ctx, cfg, meta, peers, *outputDir, peerID, selfIP); err != nil {
		colorstring.Fprintln(os.Stderr, fmt.Sprintf("[red]download failed: %v", err))
		os.Exit(1)
	}

	colorstring.Println("[green]download complete")
}

// --------------------------------------------------------------------------------------------- //
