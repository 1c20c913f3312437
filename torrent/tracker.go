package torrent

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	mrand "math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// --------------------------------------------------------------------------------------------- //

/*
FetchHTTPTrackerResponse sends an HTTP GET announce request to a tracker and
returns the raw bencoded response body. Decoding that body (either peer-list
encoding) is the tracker-response decoder's job (§4.2), not this
collaborator's: this function's only contract, per §6, is "raw bencoded
response bytes for a successful GET".
*/
func FetchHTTPTrackerResponse(announceURL string, meta *MetaInfo, peerID [20]byte, port uint16) ([]byte, error) {
	u, err := url.Parse(announceURL)
	if err != nil {
		return nil, fmt.Errorf("URL parsing error: %v\n", err)
	}

	params := url.Values{}
	params.Set("info_hash", string(meta.InfoHash[:]))
	params.Set("peer_id", string(peerID[:]))
	params.Set("port", fmt.Sprintf("%d", port))
	params.Set("uploaded", "0")
	params.Set("downloaded", "0")
	params.Set("left", fmt.Sprintf("%d", meta.TotalLength))
	params.Set("compact", "1")
	params.Set("event", "started")

	u.RawQuery = params.Encode()

	client := &http.Client{Timeout: 15 * time.Second}

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("Creating HTTP request error: %v\n", err)
	}
	req.Header.Set("User-Agent", "leechtorrent/1.0")

	log.Printf("[INFO]\tSending HTTP request to %s\n", u.String())

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Sending request error: %v\n", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Tracker status code error: %d\n", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("Reading tracker response error: %v\n", err)
	}

	return body, nil
}

// --------------------------------------------------------------------------------------------- //

const (
	udpProtocolID uint64 = 0x41727101980
	udpActionConn uint32 = 0
	udpActionAnn  uint32 = 1
	udpActionErr  uint32 = 3
	udpEventStart uint32 = 2
)

/*
FetchUDPTrackerResponse performs a BEP-15 connect + announce exchange with a
UDP tracker and returns a byte buffer shaped exactly like the body of a
compact-model HTTP tracker response ("d5:peers<N>:<...>e"), so it can be fed
to the same DecodeTrackerResponse the HTTP path uses. Up to 3 connect
attempts are made, growing the deadline each time; no further retry budget
is spent on the announce step itself.
*/
func FetchUDPTrackerResponse(announceURL string, meta *MetaInfo, peerID [20]byte, port uint16) ([]byte, error) {
	u, err := url.Parse(announceURL)
	if err != nil {
		return nil, fmt.Errorf("parsing UDP URL error: %v", err)
	}

	addr, err := net.ResolveUDPAddr("udp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("resolving UDP address error: %v", err)
	}

	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial UDP error: %v", err)
	}
	defer conn.Close()

	var transactionID uint32
	if err := binary.Read(crand.Reader, binary.BigEndian, &transactionID); err != nil {
		return nil, fmt.Errorf("generating transaction id error: %v", err)
	}

	connectReq := make([]byte, 16)
	binary.BigEndian.PutUint64(connectReq[0:8], udpProtocolID)
	binary.BigEndian.PutUint32(connectReq[8:12], udpActionConn)
	binary.BigEndian.PutUint32(connectReq[12:16], transactionID)

	var connectionID uint64

	for attempt := 0; attempt < 3; attempt++ {
		conn.SetDeadline(time.Now().Add(time.Duration(5+attempt*2) * time.Second))

		if _, err := conn.Write(connectReq); err != nil {
			log.Printf("[FAIL]\tAttempt %d failed to send connect: %v\n", attempt+1, err)
			continue
		}

		resp := make([]byte, 16)
		n, err := conn.Read(resp)
		if err != nil || n < 16 {
			log.Printf("[FAIL]\tAttempt %d failed to read connect response: %v\n", attempt+1, err)
			continue
		}

		if binary.BigEndian.Uint32(resp[0:4]) != udpActionConn {
			return nil, fmt.Errorf("invalid connect action")
		}
		if binary.BigEndian.Uint32(resp[4:8]) != transactionID {
			return nil, fmt.Errorf("transaction id mismatch")
		}

		connectionID = binary.BigEndian.Uint64(resp[8:16])

		break
	}

	if connectionID == 0 {
		return nil, fmt.Errorf("no connect response after 3 attempts")
	}

	announceReq := make([]byte, 98)
	binary.BigEndian.PutUint64(announceReq[0:8], connectionID)
	binary.BigEndian.PutUint32(announceReq[8:12], udpActionAnn)
	binary.BigEndian.PutUint32(announceReq[12:16], transactionID)
	copy(announceReq[16:36], meta.InfoHash[:])
	copy(announceReq[36:56], peerID[:])
	binary.BigEndian.PutUint64(announceReq[56:64], 0)                        // downloaded
	binary.BigEndian.PutUint64(announceReq[64:72], uint64(meta.TotalLength)) // left
	binary.BigEndian.PutUint64(announceReq[72:80], 0)                        // uploaded
	binary.BigEndian.PutUint32(announceReq[80:84], udpEventStart)
	binary.BigEndian.PutUint32(announceReq[88:92], mrand.Uint32()) // key
	binary.BigEndian.PutUint32(announceReq[92:96], ^uint32(0))     // num_want = -1
	binary.BigEndian.PutUint16(announceReq[96:98], port)

	conn.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Write(announceReq); err != nil {
		return nil, fmt.Errorf("sending announce request error: %v", err)
	}

	resp := make([]byte, 2048)
	n, err := conn.Read(resp)
	if err != nil {
		return nil, fmt.Errorf("reading announce response error: %v", err)
	}
	if n < 20 {
		return nil, fmt.Errorf("invalid announce response length: %d", n)
	}

	action := binary.BigEndian.Uint32(resp[0:4])
	if action == udpActionErr {
		return nil, fmt.Errorf("tracker error: %s", string(resp[8:n]))
	}
	if action != udpActionAnn {
		return nil, fmt.Errorf("invalid announce action: %d", action)
	}
	if binary.BigEndian.Uint32(resp[4:8]) != transactionID {
		return nil, fmt.Errorf("transaction id mismatch")
	}

	peers := resp[20:n]
	if len(peers)%6 != 0 {
		return nil, fmt.Errorf("invalid peers length: %d", len(peers))
	}

	return udpPeersToBencodedBody(peers), nil
}

// udpPeersToBencodedBody wraps a raw compact peer blob in the same bencode
// shape an HTTP tracker would have sent, so the one decoder in §4.2 serves
// both transports.
func udpPeersToBencodedBody(peers []byte) []byte {
	var buf strings.Builder
	buf.WriteString("d5:peers")
	fmt.Fprintf(&buf, "%d:", len(peers))
	buf.Write(peers)
	buf.WriteString("e")

	return []byte(buf.String())
}

// --------------------------------------------------------------------------------------------- //

// isHTTP reports whether an announce URL uses the HTTP(S) scheme.
func isHTTP(announce string) bool {
	return strings.HasPrefix(announce, "http://") || strings.HasPrefix(announce, "https://")
}

// isUDP reports whether an announce URL uses the UDP scheme.
func isUDP(announce string) bool {
	return strings.HasPrefix(announce, "udp://")
}

// --------------------------------------------------------------------------------------------- //

/*
FetchTrackerResponse dispatches to the HTTP or UDP tracker client based on
the announce URL's scheme and returns the raw response bytes, per §6.
*/
func FetchTrackerResponse(announceURL string, meta *MetaInfo, peerID [20]byte, port uint16) ([]byte, error) {
	switch {
	case isHTTP(announceURL):
		return FetchHTTPTrackerResponse(announceURL, meta, peerID, port)
	case isUDP(announceURL):
		return FetchUDPTrackerResponse(announceURL, meta, peerID, port)
	default:
		return nil, fmt.Errorf("unsupported announce URL scheme: %s", announceURL)
	}
}

// --------------------------------------------------------------------------------------------- //
