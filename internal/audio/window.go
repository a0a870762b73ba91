package audio

import (
	"errors"
	"sync"
)

var ErrSourceClosed = errors.New("audio: window source closed")

// WindowSource hands fixed-length sample windows from one producer to
// one consumer through a pair of alternating buffers. Depositing over
// an unconsumed window discards it and bumps the missed count; the
// consumer learns about the gap on its next read and substitutes one
// invalid symbol per lost window.
type WindowSource struct {
	mu     sync.Mutex
	slots  [2][]float32
	fill   int
	ready  int // slot holding the pending window, -1 when none
	missed uint64
	closed bool

	notify chan struct{}
	done   chan struct{}
}

func NewWindowSource(n int) *WindowSource {
	s := &WindowSource{
		ready:  -1,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	s.slots[0] = make([]float32, n)
	s.slots[1] = make([]float32, n)
	return s
}

// Deposit copies one window in. len(samples) must equal the source's
// window length.
func (s *WindowSource) Deposit(samples []float32) {
	s.mu.Lock()
	copy(s.slots[s.fill], samples)
	if s.ready >= 0 {
		s.missed++
	}
	s.ready = s.fill
	s.fill ^= 1
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next blocks until a window is available or the source is closed. The
// returned slice is valid until two further deposits; the consumer must
// finish with it by then. missed is the number of windows lost since
// the previous Next.
func (s *WindowSource) Next() (window []float32, missed uint64, err error) {
	for {
		s.mu.Lock()
		if s.ready >= 0 {
			window = s.slots[s.ready]
			missed = s.missed
			s.ready = -1
			s.missed = 0
			s.mu.Unlock()
			return window, missed, nil
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return nil, 0, ErrSourceClosed
		}
		select {
		case <-s.notify:
		case <-s.done:
		}
	}
}

// Close wakes a blocked consumer. Deposited but unconsumed data is
// still delivered before Next starts returning ErrSourceClosed.
func (s *WindowSource) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	s.mu.Unlock()
}
