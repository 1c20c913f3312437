package torrent

import (
	"net"
	"time"
)

// fakeConn is a minimal net.Conn stand-in for tests that only need a
// non-nil connection to satisfy eligibility/state checks, never actual I/O.
type fakeConn struct{}

func (fakeConn) Read(b []byte) (int, error)         { return 0, nil }
func (fakeConn) Write(b []byte) (int, error)        { return len(b), nil }
func (fakeConn) Close() error                       { return nil }
func (fakeConn) LocalAddr() net.Addr                { return nil }
func (fakeConn) RemoteAddr() net.Addr               { return nil }
func (fakeConn) SetDeadline(t time.Time) error      { return nil }
func (fakeConn) SetReadDeadline(t time.Time) error  { return nil }
func (fakeConn) SetWriteDeadline(t time.Time) error { return nil }
