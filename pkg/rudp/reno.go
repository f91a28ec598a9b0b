package rudp

import (
	"context"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"

	"github.com/relaynet/rudp/internal/metrics"
	"github.com/relaynet/rudp/pkg/netio"
	"github.com/relaynet/rudp/pkg/wire"
)

// renoInitialThreshold is the slow-start threshold a new transfer starts
// with, before any loss has been observed. Overridable via Configure.
var renoInitialThreshold float64 = 16

// renoController implements TCP RENO's window dynamics on top of the
// shared cumulative-ack GBN window: slow start, congestion avoidance,
// fast retransmit on the third duplicate ack, and fast recovery while
// further duplicates arrive. Every method is called with the owning
// gbnWindow's mutex already held, so it needs none of its own.
type renoController struct {
	cwnd      float64
	threshold float64
	dup       int
	prevAck   uint32
	havePrev  bool
}

func newRenoController() *renoController {
	return &renoController{cwnd: 1, threshold: renoInitialThreshold}
}

// allows compares queueLen against cwnd directly as a float, matching the
// original's `queue.size() < cwnd`, so a fractional cwnd admits one more
// slice than its floor would (cwnd 2.5 lets a third slice in).
func (r *renoController) allows(queueLen int) bool {
	return float64(queueLen) < r.cwnd
}

func (r *renoController) onAck(ack uint32) (fastSeq uint32, doFastRetransmit bool) {
	if r.havePrev && ack == r.prevAck {
		r.dup++
		switch {
		case r.dup == 3:
			r.threshold = r.cwnd / 2
			r.cwnd = r.threshold + 3
			fastSeq, doFastRetransmit = ack, true
		case r.dup > 3:
			r.cwnd++
		}
	} else {
		r.dup = 0
		if r.cwnd < r.threshold {
			r.cwnd++
		} else {
			r.cwnd += 1 / r.cwnd
		}
	}
	r.prevAck = ack
	r.havePrev = true
	return fastSeq, doFastRetransmit
}

func (r *renoController) onTimeout() {
	r.threshold = r.cwnd / 2
	r.cwnd = 1
	r.dup = 0
	r.havePrev = false
}

func (r *renoController) snapshot() float64 { return r.cwnd }

type renoChannel struct {
	ep *netio.Endpoint
	id string
}

func newRenoChannel(ep *netio.Endpoint, id string) *renoChannel {
	return &renoChannel{ep: ep, id: id}
}

func (c *renoChannel) Close() error { return c.ep.Close() }

func (c *renoChannel) SendAll(parentCtx context.Context, buf []byte) bool {
	parentCtx = dlog.WithField(parentCtx, "conn", c.id)
	if len(buf) == 0 {
		return sendFin(parentCtx, c.ep)
	}

	ctx, cancel := context.WithCancel(parentCtx)
	w := newGBNWindow(ctx, c.ep, newRenoController(), "reno")

	const sliceSize = wire.MaxPayload
	total := (len(buf) + sliceSize - 1) / sliceSize
	end := uint32(total)

	g := dgroup.NewGroup(ctx, dgroup.GroupConfig{})
	g.Go("ackReceiver", func(ctx context.Context) error {
		for {
			pkt, ok := c.ep.Recv(ctx)
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				continue
			}
			if pkt.Type == wire.TypeAck {
				w.recvAck(ctx, pkt.Num)
				if pkt.Num == end {
					return nil
				}
			}
		}
	})

	var seq uint32
	ok := true
	for offset := 0; offset < len(buf); offset += sliceSize {
		sliceEnd := offset + sliceSize
		if sliceEnd > len(buf) {
			sliceEnd = len(buf)
		}
		if !w.push(ctx, seq, buf[offset:sliceEnd]) {
			ok = false
			break
		}
		seq++
	}

	if ok {
		g.Wait()
	} else {
		cancel()
		g.Wait()
	}
	w.stop()
	cancel()

	if !ok {
		return false
	}
	return sendFin(parentCtx, c.ep)
}

func (c *renoChannel) RecvAll(parentCtx context.Context, buf []byte) (int, error) {
	// RENO's receiver is the plain, non-delayed-ack GBN-style receiver
	// from the original: it ACKs every in-order slice immediately, and
	// repeats its current cumulative ack for every out-of-order or
	// duplicate slice, which is what lets the sender see duplicate acks
	// for fast retransmit.
	parentCtx = dlog.WithField(parentCtx, "conn", c.id)
	var seq uint32
	curr := 0

	for {
		pkt, ok := c.ep.Recv(parentCtx)
		if !ok {
			if parentCtx.Err() != nil {
				return curr, parentCtx.Err()
			}
			continue
		}

		switch {
		case pkt.Type == wire.TypeData && pkt.Num == seq:
			if curr+len(pkt.Data) > len(buf) {
				return curr, ErrBufferOverflow
			}
			metrics.PacketsReceived.WithLabelValues("reno", "data").Inc()
			curr += copy(buf[curr:], pkt.Data)
			seq++
			c.ep.Send(parentCtx, wire.TypeAck, seq, nil)
			metrics.PacketsSent.WithLabelValues("reno", "ack").Inc()

		case pkt.Type == wire.TypeData:
			dlog.Tracef(parentCtx, "reno: out-of-order slice %d, repeating ack %d", pkt.Num, seq)
			c.ep.Send(parentCtx, wire.TypeAck, seq, nil)
			metrics.PacketsSent.WithLabelValues("reno", "ack").Inc()

		case pkt.Type == wire.TypeFin:
			recvFinAndAck(parentCtx, c.ep)
			return curr, nil

		default:
			dlog.Tracef(parentCtx, "reno: dropping unexpected/out-of-order packet")
		}
	}
}
