// Package rudp implements reliable, ordered, in-sequence delivery of a
// byte buffer over UDP, in four interchangeable flavors: stop-and-wait,
// go-back-N, selective-repeat, and go-back-N with RENO congestion control.
package rudp

import (
	"context"
	"errors"
)

// Variant selects which sliding-window algorithm a Channel uses.
type Variant int

const (
	StopWait Variant = iota
	GBN
	SR
	RENO
)

func (v Variant) String() string {
	switch v {
	case StopWait:
		return "stopwait"
	case GBN:
		return "gbn"
	case SR:
		return "sr"
	case RENO:
		return "reno"
	default:
		return "unknown"
	}
}

// ErrBufferOverflow is returned by RecvAll when the sender transmits more
// data than fits in the receiver's buffer.
var ErrBufferOverflow = errors.New("rudp: receive buffer overflow")

// Channel is a single, already-connected reliable transfer endpoint. Every
// variant satisfies this contract identically; the caller picks the
// variant once, at Listen/Connect time, and is otherwise oblivious to it.
type Channel interface {
	// SendAll transmits the entirety of buf and waits for the peer's
	// teardown acknowledgement. It reports false if the FIN/FIN_ACK
	// teardown fails or ctx is cancelled before the transfer completes;
	// a slow or lossy peer is handled internally via retransmission,
	// never surfaced as failure.
	SendAll(ctx context.Context, buf []byte) bool

	// RecvAll reads a full transfer into buf, in order, and returns the
	// number of bytes written. It returns ErrBufferOverflow if the
	// sender's data exceeds len(buf).
	RecvAll(ctx context.Context, buf []byte) (int, error)

	// Close releases the channel's socket and background goroutines.
	Close() error
}
