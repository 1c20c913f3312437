package torrent

// --------------------------------------------------------------------------------------------- //

/*
LoadTorrent parses a .torrent file from disk into the flat MetaInfo shape
the rest of the package consumes, per §3a. It is the one entry point other
packages (cmd, tests) need to go from a file path to a ready-to-download
torrent description.
*/
func LoadTorrent(path string) (*MetaInfo, error) {
	return ParseMetaInfo(path)
}

// --------------------------------------------------------------------------------------------- //

/*
DiscoverPeers contacts meta's tracker and returns the peer address list it
decodes from the reply, per §4.2. Only the primary AnnounceURL is tried;
AnnounceList is not consulted, and the list is returned as the tracker sent
it, without deduplication.
*/
func DiscoverPeers(meta *MetaInfo, peerID [20]byte, port uint16) ([]PeerAddress, error) {
	raw, err := FetchTrackerResponse(meta.AnnounceURL, meta, peerID, port)
	if err != nil {
		return nil, err
	}

	_, peers, err := DecodeTrackerResponse(raw)
	if err != nil {
		return nil, err
	}

	return peers, nil
}

// --------------------------------------------------------------------------------------------- //
