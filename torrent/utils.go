package torrent

import (
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
)

// --------------------------------------------------------------------------------------------- //

/*
GeneratePeerID creates this client's 20-byte peer ID (§2a), combining a
fixed client prefix with random bytes mapped onto an alphanumeric alphabet.
*/
func GeneratePeerID() ([20]byte, error) {
	const prefix = "-GT0001-"

	var id [20]byte
	copy(id[:], prefix)

	randomBytes := make([]byte, 20-len(prefix))
	if _, err := crand.Read(randomBytes); err != nil {
		return id, fmt.Errorf("Generating random bytes error: %v\n", err)
	}

	const chars = "0123456789abcdefghijklmnopqrstuvxyz"
	for i, b := range randomBytes {
		randomBytes[i] = chars[int(b)%len(chars)]
	}

	copy(id[len(prefix):], randomBytes)

	return id, nil
}

// --------------------------------------------------------------------------------------------- //

// joinPath joins a multi-file torrent's file-tree path components into an
// OS-native relative path, rooted at the torrent's name (§3a).
func joinPath(parts []string) string {
	return filepath.Join(parts...)
}

// --------------------------------------------------------------------------------------------- //

/*
GetExternalIP queries an external service to learn this host's public IP,
used by the orchestrator to filter a tracker's peer list for loopback
self-connections (§4.6 supplement). Failure here is non-fatal for the
caller: not knowing the external IP just disables that one filter.
*/
func GetExternalIP() (string, error) {
	resp, err := http.Get("http://httpbin.org/ip")
	if err != nil {
		return "", fmt.Errorf("[ERROR]\tFailed to get external IP: %v\n", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("[ERROR]\tFailed to read response body: %v\n", err)
	}

	var result struct {
		Origin string `json:"origin"`
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("[ERROR]\tFailed to parse JSON: %v\n", err)
	}

	return result.Origin, nil
}

// --------------------------------------------------------------------------------------------- //
