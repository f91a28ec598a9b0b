package rudp

import "sync"

// sendMutexSeq is a mutex-guarded sequence counter shared between a
// receiver's main receive loop and its periodic ack-announcing goroutine.
type sendMutexSeq struct {
	mu  sync.Mutex
	seq uint32
}

func (s *sendMutexSeq) init() { s.seq = 0 }

func (s *sendMutexSeq) get() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

func (s *sendMutexSeq) set(v uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = v
}
