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

// gbnWindowSize is the fixed number of unacknowledged slices GBN allows
// in flight at once. Overridable via Configure.
var gbnWindowSize = 3

// gbnAckEmitInterval is how often the receiver re-announces its current
// cumulative ack while waiting for the next in-order slice. Overridable
// via Configure.
var gbnAckEmitInterval = 10 * time.Millisecond

type fixedWindow struct{ n int }

func (f fixedWindow) allows(queueLen int) bool    { return queueLen < f.n }
func (f fixedWindow) onAck(uint32) (uint32, bool) { return 0, false }
func (f fixedWindow) onTimeout()                  {}
func (f fixedWindow) snapshot() float64           { return float64(f.n) }

type gbnChannel struct {
	ep *netio.Endpoint
	id string
}

func newGBNChannel(ep *netio.Endpoint, id string) *gbnChannel {
	return &gbnChannel{ep: ep, id: id}
}

func (c *gbnChannel) Close() error { return c.ep.Close() }

func (c *gbnChannel) SendAll(parentCtx context.Context, buf []byte) bool {
	parentCtx = dlog.WithField(parentCtx, "conn", c.id)
	if len(buf) == 0 {
		return sendFin(parentCtx, c.ep)
	}

	ctx, cancel := context.WithCancel(parentCtx)
	w := newGBNWindow(ctx, c.ep, fixedWindow{n: gbnWindowSize}, "gbn")

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
			}
		}
	})

	const sliceSize = wire.MaxPayload
	var seq uint32
	ok := true
	for offset := 0; offset < len(buf); offset += sliceSize {
		end := offset + sliceSize
		if end > len(buf) {
			end = len(buf)
		}
		if !w.push(ctx, seq, buf[offset:end]) {
			ok = false
			break
		}
		seq++
	}
	if ok {
		ok = w.waitEmpty(ctx)
	}

	cancel()
	w.stop()
	g.Wait()

	if !ok {
		return false
	}
	return sendFin(parentCtx, c.ep)
}

func (c *gbnChannel) RecvAll(parentCtx context.Context, buf []byte) (int, error) {
	parentCtx = dlog.WithField(parentCtx, "conn", c.id)
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	var seqMu sendMutexSeq
	seqMu.init()

	g := dgroup.NewGroup(ctx, dgroup.GroupConfig{})
	g.Go("ackEmitter", func(ctx context.Context) error {
		ticker := time.NewTicker(gbnAckEmitInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				seq := seqMu.get()
				dlog.Tracef(ctx, "gbn: re-announcing ack %d", seq)
				c.ep.Send(ctx, wire.TypeAck, seq, nil)
				metrics.PacketsSent.WithLabelValues("gbn", "ack").Inc()
			}
		}
	})

	curr := 0
	for {
		pkt, ok := c.ep.Recv(parentCtx)
		if !ok {
			if parentCtx.Err() != nil {
				cancel()
				g.Wait()
				return curr, parentCtx.Err()
			}
			continue
		}

		seq := seqMu.get()
		switch {
		case pkt.Type == wire.TypeData && pkt.Num == seq:
			if curr+len(pkt.Data) > len(buf) {
				cancel()
				g.Wait()
				return curr, ErrBufferOverflow
			}
			metrics.PacketsReceived.WithLabelValues("gbn", "data").Inc()
			curr += copy(buf[curr:], pkt.Data)
			seqMu.set(seq + 1)

		case pkt.Type == wire.TypeFin:
			recvFinAndAck(parentCtx, c.ep)
			cancel()
			g.Wait()
			return curr, nil

		default:
			dlog.Tracef(parentCtx, "gbn: dropping unexpected/out-of-order packet")
		}
	}
}
