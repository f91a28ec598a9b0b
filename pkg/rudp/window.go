package rudp

import (
	"context"
	"sync"
	"time"

	"github.com/datawire/dlib/dlog"

	"github.com/relaynet/rudp/internal/metrics"
	"github.com/relaynet/rudp/pkg/netio"
	"github.com/relaynet/rudp/pkg/wire"
)

// gbnRetransmitInterval is overridable via Configure. It backs both GBN's
// and RENO's shared window, since the two differ only in congestion
// policy, not in timeout behavior.
var gbnRetransmitInterval = 50 * time.Millisecond

// congestionController supplies the one policy difference between plain
// GBN (a fixed window) and RENO (a dynamic cwnd/threshold). Everything
// else about the two — queue bookkeeping, cumulative-ack handling, the
// retransmit timer — is identical, so gbnWindow implements it once for
// both.
type congestionController interface {
	// allows reports whether the window, currently holding queueLen
	// unacknowledged slices, may accept one more.
	allows(queueLen int) bool
	// onAck folds a newly-received cumulative ack into controller state.
	// It may request an immediate retransmission of fastSeq (RENO's fast
	// retransmit); GBN's controller never does.
	onAck(ack uint32) (fastSeq uint32, doFastRetransmit bool)
	// onTimeout reacts to a full-window retransmit firing.
	onTimeout()
	// snapshot reports the current window capacity for the metrics gauge.
	snapshot() float64
}

type queuedSlice struct {
	seq  uint32
	data []byte
}

// gbnWindow is the shared send-side window used by both the plain GBN and
// RENO channels: an ordered queue of in-flight slices, a cumulative-ack
// receiver, and a timer that resends the whole queue on silence.
type gbnWindow struct {
	ep      *netio.Endpoint
	cc      congestionController
	variant string

	mu    sync.Mutex
	cond  *sync.Cond
	base  uint32
	queue []queuedSlice

	resetTimer chan struct{}
	done       chan struct{}
}

func newGBNWindow(ctx context.Context, ep *netio.Endpoint, cc congestionController, variant string) *gbnWindow {
	w := &gbnWindow{
		ep:         ep,
		cc:         cc,
		variant:    variant,
		resetTimer: make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)

	// sync.Cond has no cancellable wait; a watcher goroutine translates
	// ctx cancellation into a broadcast so every blocked push()/waitEmpty()
	// wakes up and rechecks ctx.Err() instead of blocking forever.
	go func() {
		select {
		case <-ctx.Done():
			w.cond.Broadcast()
		case <-w.done:
		}
	}()

	go w.runTimeoutLoop(ctx)
	return w
}

func (w *gbnWindow) stop() {
	close(w.done)
}

func (w *gbnWindow) runTimeoutLoop(ctx context.Context) {
	timer := time.NewTimer(gbnRetransmitInterval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-w.resetTimer:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(gbnRetransmitInterval)
		case <-timer.C:
			w.mu.Lock()
			if len(w.queue) > 0 {
				dlog.Tracef(ctx, "%s: timeout, resending %d slices", w.variant, len(w.queue))
				for _, s := range w.queue {
					w.ep.Send(ctx, wire.TypeData, s.seq, s.data)
				}
				metrics.Retransmits.WithLabelValues(w.variant).Add(float64(len(w.queue)))
				w.cc.onTimeout()
				w.cond.Broadcast()
			}
			w.mu.Unlock()
			timer.Reset(gbnRetransmitInterval)
		}
	}
}

// push blocks until the congestion controller admits one more slice, sends
// it, and enqueues it for retransmission. It reports false if ctx is
// cancelled before the slice could be admitted.
func (w *gbnWindow) push(ctx context.Context, seq uint32, data []byte) bool {
	w.mu.Lock()
	for !w.cc.allows(len(w.queue)) {
		if ctx.Err() != nil {
			w.mu.Unlock()
			return false
		}
		w.cond.Wait()
	}
	if ctx.Err() != nil {
		w.mu.Unlock()
		return false
	}

	dlog.Tracef(ctx, "%s: sending slice %d", w.variant, seq)
	w.ep.Send(ctx, wire.TypeData, seq, data)
	w.queue = append(w.queue, queuedSlice{seq: seq, data: data})
	metrics.PacketsSent.WithLabelValues(w.variant, "data").Inc()
	metrics.WindowSize.WithLabelValues(w.variant).Set(w.cc.snapshot())
	w.mu.Unlock()
	return true
}

// recvAck applies a cumulative ack: slide the window forward to ack,
// reset the retransmit timer if it moved, and let the controller fire a
// fast retransmit if warranted.
func (w *gbnWindow) recvAck(ctx context.Context, ack uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()

	metrics.PacketsReceived.WithLabelValues(w.variant, "ack").Inc()
	dlog.Tracef(ctx, "%s: received ack %d", w.variant, ack)

	fastSeq, doFast := w.cc.onAck(ack)
	if doFast {
		for _, s := range w.queue {
			if s.seq == fastSeq {
				dlog.Tracef(ctx, "%s: fast retransmit of %d", w.variant, fastSeq)
				w.ep.Send(ctx, wire.TypeData, s.seq, s.data)
				metrics.Retransmits.WithLabelValues(w.variant).Inc()
				break
			}
		}
	}

	if w.base < ack {
		for w.base < ack && len(w.queue) > 0 {
			w.queue = w.queue[1:]
			w.base++
		}
		select {
		case w.resetTimer <- struct{}{}:
		default:
		}
	}
	metrics.WindowSize.WithLabelValues(w.variant).Set(w.cc.snapshot())
	w.cond.Broadcast()
}

// waitEmpty blocks until every pushed slice has been acknowledged.
func (w *gbnWindow) waitEmpty(ctx context.Context) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for len(w.queue) > 0 {
		if ctx.Err() != nil {
			return false
		}
		w.cond.Wait()
	}
	return true
}
