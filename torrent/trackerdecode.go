package torrent

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/jackpal/bencode-go"
)

// --------------------------------------------------------------------------------------------- //

// dictModelIdentifier is the literal substring that distinguishes the
// dictionary peer-list encoding from the compact one (§4.2): pre-splitting
// on this sidesteps bencode decoders that refuse non-UTF8 string values,
// which the compact form's raw IP/port bytes can easily be.
const dictModelIdentifier = "5:peersld2:ip"

const peersKeyPrefix = "5:peers"

// --------------------------------------------------------------------------------------------- //

/*
DecodeTrackerResponse extracts the peer list from a bencoded tracker reply,
accepting either the compact (binary) or dictionary peer-list encoding
(§4.2). It returns the rest of the top-level dictionary with the "peers"
key removed, plus the decoded peer list.

A missing "peers" key, or a compact-mode byte count that isn't a multiple
of 6, is a decode error fatal for torrent startup (§7).
*/
func DecodeTrackerResponse(raw []byte) (rest map[string]interface{}, peers []PeerAddress, err error) {
	if bytes.Contains(raw, []byte(dictModelIdentifier)) {
		return decodeDictionaryModel(raw)
	}

	return decodeCompactModel(raw)
}

// --------------------------------------------------------------------------------------------- //

type dictModelPeer struct {
	IP   string `bencode:"ip"`
	Port int    `bencode:"port"`
}

type dictModelResponse struct {
	Peers []dictModelPeer `bencode:"peers"`
}

func decodeDictionaryModel(raw []byte) (rest map[string]interface{}, peers []PeerAddress, err error) {
	var typed dictModelResponse
	if err := bencode.Unmarshal(bytes.NewReader(raw), &typed); err != nil {
		return nil, nil, newDecodeError(DecodeErrorBencode, "dictionary model", err)
	}

	peers = make([]PeerAddress, 0, len(typed.Peers))
	for _, p := range typed.Peers {
		addr, err := parseDottedIP(p.IP)
		if err != nil {
			return nil, nil, newDecodeError(DecodeErrorBencode, "dictionary model peer ip", err)
		}

		peers = append(peers, PeerAddress{IP: addr, Port: uint16(p.Port)})
	}

	rest, err = decodeRestAsMap(raw)
	if err != nil {
		return nil, nil, err
	}
	delete(rest, "peers")

	return rest, peers, nil
}

// --------------------------------------------------------------------------------------------- //

func decodeCompactModel(raw []byte) (rest map[string]interface{}, peers []PeerAddress, err error) {
	keyStart := bytes.Index(raw, []byte(peersKeyPrefix))
	if keyStart < 0 {
		return nil, nil, newDecodeError(DecodeErrorBencode, "compact model", fmt.Errorf("missing \"peers\" key"))
	}

	digitsStart := keyStart + len(peersKeyPrefix)

	i := digitsStart
	for i < len(raw) && raw[i] >= '0' && raw[i] <= '9' {
		i++
	}
	if i == digitsStart || i >= len(raw) || raw[i] != ':' {
		return nil, nil, newDecodeError(DecodeErrorBencode, "compact model length", fmt.Errorf("malformed peers string header"))
	}

	byteCount, convErr := strconv.Atoi(string(raw[digitsStart:i]))
	if convErr != nil {
		return nil, nil, newDecodeError(DecodeErrorBencode, "compact model length", convErr)
	}
	if byteCount%6 != 0 {
		return nil, nil, newDecodeError(DecodeErrorBencode, "compact model length", fmt.Errorf("peers byte count %d not a multiple of 6", byteCount))
	}

	valueStart := i + 1
	valueEnd := valueStart + byteCount
	if valueEnd > len(raw) {
		return nil, nil, newDecodeError(DecodeErrorFraming, "compact model value", fmt.Errorf("peers value truncated"))
	}

	peerBytes := raw[valueStart:valueEnd]
	peers = parseCompactPeers(peerBytes)

	spliced := make([]byte, 0, len(raw)-(valueEnd-keyStart))
	spliced = append(spliced, raw[:keyStart]...)
	spliced = append(spliced, raw[valueEnd:]...)

	rest, err = decodeRestAsMap(spliced)
	if err != nil {
		return nil, nil, err
	}

	return rest, peers, nil
}

// --------------------------------------------------------------------------------------------- //

// parseCompactPeers decodes a byte string whose length is a known multiple
// of 6 into (ip, port) pairs, per the compact encoding in §4.2.
func parseCompactPeers(b []byte) []PeerAddress {
	n := len(b) / 6
	peers := make([]PeerAddress, n)

	for i := 0; i < n; i++ {
		off := i * 6
		var addr [4]byte
		copy(addr[:], b[off:off+4])
		peers[i] = PeerAddress{
			IP:   addr,
			Port: binary.BigEndian.Uint16(b[off+4 : off+6]),
		}
	}

	return peers
}

// --------------------------------------------------------------------------------------------- //

func decodeRestAsMap(raw []byte) (map[string]interface{}, error) {
	var m map[string]interface{}
	if err := bencode.Unmarshal(bytes.NewReader(raw), &m); err != nil {
		return nil, newDecodeError(DecodeErrorBencode, "rest of dictionary", err)
	}

	return m, nil
}

// --------------------------------------------------------------------------------------------- //

func parseDottedIP(s string) ([4]byte, error) {
	var out [4]byte

	var a, b, c, d int
	n, err := fmt.Sscanf(s, "%d.%d.%d.%d", &a, &b, &c, &d)
	if err != nil || n != 4 {
		return out, fmt.Errorf("invalid dotted IP %q", s)
	}

	out[0], out[1], out[2], out[3] = byte(a), byte(b), byte(c), byte(d)

	return out, nil
}

// --------------------------------------------------------------------------------------------- //
