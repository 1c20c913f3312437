package torrent

import (
	"io"
)

// --------------------------------------------------------------------------------------------- //

// maxConsecutiveEmptyReads bounds the bounded read helper below: some peers
// produce zero-byte reads without closing the connection, and without a
// bound that livelocks the read loop.
const maxConsecutiveEmptyReads = 3

/*
readFull attempts to read exactly n bytes from r. It tolerates short reads,
retrying until n bytes have been accumulated, but gives up and returns
whatever has been read so far if three consecutive reads return zero bytes
with no error. Callers must check the length of the returned slice against
n; a short return that isn't a clean io.EOF on the first byte is a framing
error.
*/
func readFull(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	read := 0
	consecutiveEmpty := 0

	for read < n && consecutiveEmpty < maxConsecutiveEmptyReads {
		m, err := r.Read(buf[read:])
		read += m

		if m == 0 {
			consecutiveEmpty++
		} else {
			consecutiveEmpty = 0
		}

		if err != nil {
			if err == io.EOF && read == 0 {
				return buf[:read], io.EOF
			}
			if err == io.EOF {
				return buf[:read], nil
			}
			return buf[:read], err
		}
	}

	return buf[:read], nil
}

// --------------------------------------------------------------------------------------------- //
