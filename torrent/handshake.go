package torrent

import (
	"bytes"
	"fmt"
	"io"
)

// --------------------------------------------------------------------------------------------- //

const (
	// protocolName is the fixed protocol identifier exchanged in every
	// handshake, per BEP-3.
	protocolName = "BitTorrent protocol"

	// HandshakeLength is the fixed wire size of a handshake frame:
	// 1 (pstrlen) + 19 (pstr) + 8 (reserved) + 20 (info hash) + 20 (peer id).
	HandshakeLength = 1 + len(protocolName) + 8 + 20 + 20
)

/*
Handshake represents the structure of a BitTorrent protocol handshake message.
It is used to initiate a connection with a peer and verify compatibility.

Fields:
  - Pstrlen: Length of the protocol name (always 19 for "BitTorrent protocol").
  - Pstr: The protocol name itself.
  - Reserved: Reserved bytes for protocol extensions, zero on send.
  - InfoHash: 20-byte SHA-1 hash of the torrent's info dictionary.
  - PeerID: 20-byte identifier for the sending peer.
*/
type Handshake struct {
	Pstrlen  byte
	Pstr     [19]byte
	Reserved [8]byte
	InfoHash [20]byte
	PeerID   [20]byte
}

// --------------------------------------------------------------------------------------------- //

// NewHandshake builds a handshake frame for the given info hash and peer id.
func NewHandshake(infoHash, peerID [20]byte) *Handshake {
	hs := &Handshake{
		Pstrlen:  byte(len(protocolName)),
		InfoHash: infoHash,
		PeerID:   peerID,
	}
	copy(hs.Pstr[:], protocolName)

	return hs
}

// --------------------------------------------------------------------------------------------- //

// Serialize encodes the handshake to its fixed 68-byte wire representation.
func (h *Handshake) Serialize() []byte {
	buf := make([]byte, 0, HandshakeLength)
	buf = append(buf, h.Pstrlen)
	buf = append(buf, h.Pstr[:]...)
	buf = append(buf, h.Reserved[:]...)
	buf = append(buf, h.InfoHash[:]...)
	buf = append(buf, h.PeerID[:]...)

	return buf
}

// --------------------------------------------------------------------------------------------- //

/*
ReadHandshake reads exactly HandshakeLength bytes from r using the bounded
read helper and decodes them into a Handshake. It does not itself validate
pstr or info hash; callers perform that check (§4.1) so a mismatch can be
attributed to the right error kind.
*/
func ReadHandshake(r io.Reader) (*Handshake, error) {
	buf, err := readFull(r, HandshakeLength)
	if err != nil {
		return nil, fmt.Errorf("torrent: reading handshake: %w", err)
	}
	if len(buf) != HandshakeLength {
		return nil, fmt.Errorf("torrent: short handshake read, got %d of %d bytes", len(buf), HandshakeLength)
	}

	var h Handshake
	h.Pstrlen = buf[0]
	copy(h.Pstr[:], buf[1:20])
	copy(h.Reserved[:], buf[20:28])
	copy(h.InfoHash[:], buf[28:48])
	copy(h.PeerID[:], buf[48:68])

	return &h, nil
}

// --------------------------------------------------------------------------------------------- //

/*
Validate checks a received handshake against the local torrent's info hash,
per §4.1: pstrlen must be 19, pstr must match exactly, and the info hash
must match. Peer id is never checked.
*/
func (h *Handshake) Validate(wantInfoHash [20]byte) error {
	if int(h.Pstrlen) != len(protocolName) {
		return fmt.Errorf("torrent: unexpected pstrlen %d", h.Pstrlen)
	}
	if !bytes.Equal(h.Pstr[:], []byte(protocolName)) {
		return fmt.Errorf("torrent: unexpected protocol string %q", h.Pstr[:])
	}
	if !bytes.Equal(h.InfoHash[:], wantInfoHash[:]) {
		return fmt.Errorf("torrent: info hash mismatch: got %x want %x", h.InfoHash, wantInfoHash)
	}

	return nil
}

// --------------------------------------------------------------------------------------------- //
