package rudp

import (
	"context"
	"sync"
	"time"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"

	"github.com/relaynet/rudp/internal/metrics"
	"github.com/relaynet/rudp/pkg/netio"
	"github.com/relaynet/rudp/pkg/wire"
)

// srWindowSize and srRetransmitInterval are overridable via Configure.
var (
	srWindowSize         = 3
	srRetransmitInterval = 50 * time.Millisecond
)

// srTask tracks one in-flight slice: its own retransmit goroutine and an
// idempotent "acked" signal, independent of every other slice in the
// window — the defining property of selective repeat.
type srTask struct {
	seq     uint32
	data    []byte
	ackedCh chan struct{}
	once    sync.Once
}

func newSRTask(seq uint32, data []byte) *srTask {
	return &srTask{seq: seq, data: data, ackedCh: make(chan struct{})}
}

func (t *srTask) markAcked() {
	t.once.Do(func() { close(t.ackedCh) })
}

func (t *srTask) isAcked() bool {
	select {
	case <-t.ackedCh:
		return true
	default:
		return false
	}
}

// srWindow holds up to srWindowSize in-flight tasks. Unlike gbnWindow it
// has no global retransmit timer; each task resends itself on its own
// ticker until acked.
type srWindow struct {
	ep    *netio.Endpoint
	n     int
	mu    sync.Mutex
	cond  *sync.Cond
	base  uint32
	tasks []*srTask
}

func newSRWindow(ctx context.Context, ep *netio.Endpoint, n int) *srWindow {
	w := &srWindow{ep: ep, n: n}
	w.cond = sync.NewCond(&w.mu)
	go func() {
		<-ctx.Done()
		w.cond.Broadcast()
	}()
	return w
}

func (w *srWindow) push(ctx context.Context, task *srTask) bool {
	w.mu.Lock()
	for len(w.tasks) >= w.n {
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
	w.tasks = append(w.tasks, task)
	metrics.WindowSize.WithLabelValues("sr").Set(float64(len(w.tasks)))
	w.mu.Unlock()

	go w.runSender(ctx, task)
	return true
}

func (w *srWindow) runSender(ctx context.Context, task *srTask) {
	dlog.Tracef(ctx, "sr: sending slice %d", task.seq)
	w.ep.Send(ctx, wire.TypeData, task.seq, task.data)
	metrics.PacketsSent.WithLabelValues("sr", "data").Inc()

	ticker := time.NewTicker(srRetransmitInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-task.ackedCh:
			dlog.Tracef(ctx, "sr: slice %d acked", task.seq)
			return
		case <-ticker.C:
			dlog.Tracef(ctx, "sr: retransmitting slice %d", task.seq)
			w.ep.Send(ctx, wire.TypeData, task.seq, task.data)
			metrics.Retransmits.WithLabelValues("sr").Inc()
		}
	}
}

// recvAck marks the task at ack, if any is currently in the window, as
// acknowledged, then slides the window past any now-contiguous run of
// acked tasks at its front.
func (w *srWindow) recvAck(ack uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ack < w.base || ack >= w.base+uint32(len(w.tasks)) {
		return
	}
	w.tasks[ack-w.base].markAcked()

	moving := 0
loop:
	for _, t := range w.tasks {
		if t.isAcked() {
			moving++
		} else {
			break loop
		}
	}
	if moving > 0 {
		w.tasks = w.tasks[moving:]
		w.base += uint32(moving)
		metrics.WindowSize.WithLabelValues("sr").Set(float64(len(w.tasks)))
		w.cond.Broadcast()
	}
}

type srChannel struct {
	ep *netio.Endpoint
	id string
}

func newSRChannel(ep *netio.Endpoint, id string) *srChannel {
	return &srChannel{ep: ep, id: id}
}

func (c *srChannel) Close() error { return c.ep.Close() }

func (c *srChannel) SendAll(parentCtx context.Context, buf []byte) bool {
	parentCtx = dlog.WithField(parentCtx, "conn", c.id)
	if len(buf) == 0 {
		return sendFin(parentCtx, c.ep)
	}

	const sliceSize = wire.MaxPayload
	total := uint32((len(buf) + sliceSize - 1) / sliceSize)

	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()
	w := newSRWindow(ctx, c.ep, srWindowSize)

	var remainMu sync.Mutex
	remaining := map[uint32]bool{}
	for i := uint32(0); i < total; i++ {
		remaining[i] = true
	}

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
			if pkt.Type != wire.TypeAck {
				continue
			}
			metrics.PacketsReceived.WithLabelValues("sr", "ack").Inc()
			w.recvAck(pkt.Num)

			remainMu.Lock()
			delete(remaining, pkt.Num)
			done := len(remaining) == 0
			remainMu.Unlock()
			if done {
				return nil
			}
		}
	})

	var seq uint32
	ok := true
	for offset := 0; offset < len(buf); offset += sliceSize {
		end := offset + sliceSize
		if end > len(buf) {
			end = len(buf)
		}
		task := newSRTask(seq, buf[offset:end])
		if !w.push(ctx, task) {
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

	if !ok {
		return false
	}
	return sendFin(parentCtx, c.ep)
}

func (c *srChannel) RecvAll(parentCtx context.Context, buf []byte) (int, error) {
	parentCtx = dlog.WithField(parentCtx, "conn", c.id)
	const sliceSize = wire.MaxPayload
	var recvSize int

	for {
		pkt, ok := c.ep.Recv(parentCtx)
		if !ok {
			if parentCtx.Err() != nil {
				return recvSize, parentCtx.Err()
			}
			continue
		}

		switch {
		case pkt.Type == wire.TypeData:
			offset := int(pkt.Num) * sliceSize
			if offset+len(pkt.Data) > len(buf) {
				return recvSize, ErrBufferOverflow
			}
			metrics.PacketsReceived.WithLabelValues("sr", "data").Inc()
			copy(buf[offset:], pkt.Data)
			if end := offset + len(pkt.Data); end > recvSize {
				recvSize = end
			}
			dlog.Tracef(parentCtx, "sr: received slice %d, sending ACK", pkt.Num)
			c.ep.Send(parentCtx, wire.TypeAck, pkt.Num, nil)
			metrics.PacketsSent.WithLabelValues("sr", "ack").Inc()

		case pkt.Type == wire.TypeFin:
			recvFinAndAck(parentCtx, c.ep)
			return recvSize, nil

		default:
			dlog.Tracef(parentCtx, "sr: dropping unexpected packet")
		}
	}
}
