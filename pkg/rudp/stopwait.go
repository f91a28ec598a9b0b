package rudp

import (
	"context"
	"time"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"

	"github.com/relaynet/rudp/internal/metrics"
	"github.com/relaynet/rudp/pkg/netio"
	"github.com/relaynet/rudp/pkg/wire"
)

// stopWaitRetransmitInterval is overridable via Configure.
var stopWaitRetransmitInterval = 50 * time.Millisecond

type stopWaitChannel struct {
	ep *netio.Endpoint
	id string
}

func newStopWaitChannel(ep *netio.Endpoint, id string) *stopWaitChannel {
	return &stopWaitChannel{ep: ep, id: id}
}

func (c *stopWaitChannel) Close() error { return c.ep.Close() }

// flipSeq implements the single-bit alternating sequence number.
func flipSeq(seq uint32) uint32 {
	return (^seq) & 1
}

func (c *stopWaitChannel) SendAll(ctx context.Context, buf []byte) bool {
	ctx = dlog.WithField(ctx, "conn", c.id)
	const sliceSize = wire.MaxPayload

	if len(buf) == 0 {
		return sendFin(ctx, c.ep)
	}

	var seq uint32
	for offset := 0; offset < len(buf); offset += sliceSize {
		end := offset + sliceSize
		if end > len(buf) {
			end = len(buf)
		}
		slice := buf[offset:end]

		if !c.sendSliceUntilAcked(ctx, seq, slice) {
			return false
		}
		seq = flipSeq(seq)
	}

	return sendFin(ctx, c.ep)
}

// sendSliceUntilAcked retransmits slice every stopWaitRetransmitInterval
// until an ACK carrying seq arrives. The two halves run concurrently: one
// goroutine resends on a timer, the other watches for the matching ACK and
// signals the first to stop, the direct translation of the teacher's
// paired sender/ackReceiver threads.
func (c *stopWaitChannel) sendSliceUntilAcked(ctx context.Context, seq uint32, slice []byte) bool {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	acked := make(chan struct{})
	g := dgroup.NewGroup(ctx, dgroup.GroupConfig{})

	g.Go("sender", func(ctx context.Context) error {
		ticker := time.NewTicker(stopWaitRetransmitInterval)
		defer ticker.Stop()
		dlog.Tracef(ctx, "sending slice %d", seq)
		c.ep.Send(ctx, wire.TypeData, seq, slice)
		metrics.PacketsSent.WithLabelValues("stopwait", "data").Inc()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-acked:
				return nil
			case <-ticker.C:
				dlog.Tracef(ctx, "retransmitting slice %d", seq)
				c.ep.Send(ctx, wire.TypeData, seq, slice)
				metrics.Retransmits.WithLabelValues("stopwait").Inc()
			}
		}
	})

	g.Go("ackReceiver", func(ctx context.Context) error {
		for {
			pkt, ok := c.ep.Recv(ctx)
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				continue
			}
			if pkt.Type == wire.TypeAck && pkt.Num == seq {
				metrics.PacketsReceived.WithLabelValues("stopwait", "ack").Inc()
				dlog.Tracef(ctx, "received ACK %d", seq)
				close(acked)
				cancel()
				return nil
			}
		}
	})

	_ = g.Wait()
	select {
	case <-acked:
		return true
	default:
		return false
	}
}

func (c *stopWaitChannel) RecvAll(ctx context.Context, buf []byte) (int, error) {
	ctx = dlog.WithField(ctx, "conn", c.id)
	var seq uint32
	curr := 0

	for {
		if curr >= len(buf) {
			return curr, ErrBufferOverflow
		}

		pkt, ok := c.ep.Recv(ctx)
		if !ok {
			if ctx.Err() != nil {
				return curr, ctx.Err()
			}
			continue
		}

		switch {
		case pkt.Type == wire.TypeData && pkt.Num == seq:
			if curr+len(pkt.Data) > len(buf) {
				return curr, ErrBufferOverflow
			}
			metrics.PacketsReceived.WithLabelValues("stopwait", "data").Inc()
			curr += copy(buf[curr:], pkt.Data)
			dlog.Tracef(ctx, "received slice %d, sending ACK", seq)
			c.ep.Send(ctx, wire.TypeAck, seq, nil)
			seq = flipSeq(seq)

		case pkt.Type == wire.TypeFin:
			recvFinAndAck(ctx, c.ep)
			return curr, nil

		default:
			// Unexpected or stale packet: re-ACK the other sequence bit,
			// exactly as the original stop-and-wait receiver does —
			// this is what lets a sender whose ACK was lost notice its
			// retransmission was actually redundant.
			dlog.Tracef(ctx, "received unexpected packet, re-ACKing %d", flipSeq(seq))
			c.ep.Send(ctx, wire.TypeAck, flipSeq(seq), nil)
		}
	}
}
