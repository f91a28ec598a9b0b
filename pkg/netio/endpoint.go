// Package netio wraps a single UDP socket with the "unreliable datagram"
// semantics pkg/rudp builds reliability on top of: send to one pinned
// peer, and recv only from that peer once it has been established by the
// first inbound datagram.
package netio

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/datawire/dlib/dlog"
	"github.com/pkg/errors"

	"github.com/relaynet/rudp/internal/metrics"
	"github.com/relaynet/rudp/pkg/wire"
)

// recvPollInterval bounds how long a blocking read can hold the socket
// before Recv rechecks ctx for cancellation.
const recvPollInterval = 200 * time.Millisecond

// Endpoint is a UDP socket bound to at most one remote peer. A server
// endpoint pins its peer on the first datagram it receives; a client
// endpoint is pinned from construction.
type Endpoint struct {
	conn *net.UDPConn

	mu     sync.Mutex
	remote *net.UDPAddr
	pinned bool
}

// Listen opens a UDP socket bound to port on all interfaces, with no
// remote peer pinned yet — the first datagram received will pin one.
func Listen(port int) (*Endpoint, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, errors.Wrap(err, "listen udp")
	}
	return &Endpoint{conn: conn}, nil
}

// Dial opens a UDP socket and pins remote as its only peer.
func Dial(ip string, port int) (*Endpoint, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, errors.Wrap(err, "listen udp")
	}
	addr := &net.UDPAddr{IP: net.ParseIP(ip), Port: port}
	if addr.IP == nil {
		conn.Close()
		return nil, errors.Errorf("invalid remote address %q", ip)
	}
	return &Endpoint{conn: conn, remote: addr, pinned: true}, nil
}

// Send encodes and writes a packet to the pinned peer. It reports false
// on any socket error, mirroring the teacher's unreliable transport: a
// send failure here is something the caller's own retry policy handles,
// not a fatal condition.
func (e *Endpoint) Send(ctx context.Context, typ uint16, num uint32, data []byte) bool {
	e.mu.Lock()
	remote := e.remote
	e.mu.Unlock()
	if remote == nil {
		dlog.Errorf(ctx, "send attempted before remote peer is known")
		return false
	}
	buf := wire.Encode(typ, num, data)
	if _, err := e.conn.WriteToUDP(buf, remote); err != nil {
		dlog.Debugf(ctx, "sendto failed: %v", err)
		return false
	}
	return true
}

// Recv blocks for the next datagram from the pinned peer (or, if no peer
// is pinned yet, pins whichever peer sends first). It returns false if ctx
// is cancelled, the packet fails validation, or it arrives from a peer
// other than the pinned one.
func (e *Endpoint) Recv(ctx context.Context) (*wire.Packet, bool) {
	buf := make([]byte, wire.MaxPacket)
	for {
		if err := ctx.Err(); err != nil {
			return nil, false
		}
		e.conn.SetReadDeadline(time.Now().Add(recvPollInterval))
		n, from, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			dlog.Debugf(ctx, "recvfrom failed: %v", err)
			return nil, false
		}

		fromAddr := &net.UDPAddr{IP: from.IP, Port: from.Port}
		e.mu.Lock()
		if !e.pinned {
			e.remote = fromAddr
			e.pinned = true
			dlog.Debugf(ctx, "peer pinned: %s", fromAddr)
		} else if !addrEqual(e.remote, fromAddr) {
			e.mu.Unlock()
			dlog.Debugf(ctx, "dropping datagram from unpinned sender %s", fromAddr)
			return nil, false
		}
		e.mu.Unlock()

		pkt, ok := wire.Decode(buf[:n])
		if !ok {
			metrics.ChecksumFailures.Inc()
			dlog.Tracef(ctx, "dropping invalid packet (%d bytes)", n)
			return nil, false
		}
		return pkt, true
	}
}

// RemoteAddr reports the pinned peer, or nil if none has been pinned yet.
func (e *Endpoint) RemoteAddr() *net.UDPAddr {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remote
}

// LocalAddr reports the address this endpoint's socket is bound to.
func (e *Endpoint) LocalAddr() *net.UDPAddr {
	return e.conn.LocalAddr().(*net.UDPAddr)
}

// Close releases the underlying socket.
func (e *Endpoint) Close() error {
	return e.conn.Close()
}

func addrEqual(a, b *net.UDPAddr) bool {
	return a.IP.Equal(b.IP) && a.Port == b.Port
}

func (e *Endpoint) String() string {
	return fmt.Sprintf("netio.Endpoint{local=%s, remote=%s}", e.conn.LocalAddr(), e.RemoteAddr())
}
