package core

import (
	"context"
	"sync/atomic"
)

// SchedDepth is the number of deferred calls that can be pending at once.
// Must be a power of two.
const SchedDepth = 8

// Waker unblocks the main context when it is idle waiting for work.
// Wake is called from interrupt context and must not block.
type Waker interface {
	Wake()
}

type schedCell struct {
	seq atomic.Uint32
	cb  *Callback
	arg GPIOPin
}

// Scheduler queues callbacks from interrupt context and runs them later on
// the main context. Producers (ISRs) and the consumer never take a lock:
// each cell carries a sequence number that says whose turn it is.
type Scheduler struct {
	cells   [SchedDepth]schedCell
	enqueue atomic.Uint32
	dequeue atomic.Uint32

	pending atomic.Uint32 // set by WakeMainTask, cleared by TakeWake
	dropped atomic.Uint32
	waker   Waker
}

// NewScheduler creates an empty scheduler. waker may be nil.
func NewScheduler(waker Waker) *Scheduler {
	s := &Scheduler{waker: waker}
	for i := range s.cells {
		s.cells[i].seq.Store(uint32(i))
	}
	return s
}

// Schedule queues cb to be called with arg. It is safe to call from an ISR.
// Returns false, and counts a drop, when the queue is full.
func (s *Scheduler) Schedule(cb *Callback, arg GPIOPin) bool {
	pos := s.enqueue.Load()
	var cell *schedCell
	for {
		cell = &s.cells[pos&(SchedDepth-1)]
		diff := int32(cell.seq.Load() - pos)
		if diff == 0 {
			if s.enqueue.CompareAndSwap(pos, pos+1) {
				break
			}
		} else if diff < 0 {
			s.dropped.Add(1)
			return false
		} else {
			pos = s.enqueue.Load()
		}
	}
	cell.cb = cb
	cell.arg = arg
	cell.seq.Store(pos + 1)
	return true
}

// pop removes the oldest queued call. Only the main context calls this.
func (s *Scheduler) pop() (*Callback, GPIOPin, bool) {
	pos := s.dequeue.Load()
	var cell *schedCell
	for {
		cell = &s.cells[pos&(SchedDepth-1)]
		diff := int32(cell.seq.Load() - (pos + 1))
		if diff == 0 {
			if s.dequeue.CompareAndSwap(pos, pos+1) {
				break
			}
		} else if diff < 0 {
			return nil, 0, false
		} else {
			pos = s.dequeue.Load()
		}
	}
	cb, arg := cell.cb, cell.arg
	cell.cb = nil
	cell.seq.Store(pos + SchedDepth)
	return cb, arg, true
}

// RunPending runs every queued call on the caller's context and returns how
// many ran. Calls queued by the callbacks themselves run in the same pass.
// A callback whose slot was since cleared or re-armed still runs.
func (s *Scheduler) RunPending() int {
	n := 0
	for {
		cb, arg, ok := s.pop()
		if !ok {
			return n
		}
		cb.Call(arg)
		n++
	}
}

// Pending returns the number of queued calls
func (s *Scheduler) Pending() int {
	return int(s.enqueue.Load() - s.dequeue.Load())
}

// Dropped returns how many calls were refused because the queue was full
func (s *Scheduler) Dropped() uint32 {
	return s.dropped.Load()
}

// WakeMainTask flags that work is pending and pokes the waker.
// Safe from interrupt context.
func (s *Scheduler) WakeMainTask() {
	s.pending.Store(1)
	if s.waker != nil {
		s.waker.Wake()
	}
}

// TakeWake reports and clears the wake flag
func (s *Scheduler) TakeWake() bool {
	return s.pending.Swap(0) != 0
}

// ChanWaker is a Waker backed by a one-slot channel, for hosts where the
// main context can block on a channel.
type ChanWaker struct {
	ch chan struct{}
}

func NewChanWaker() *ChanWaker {
	return &ChanWaker{ch: make(chan struct{}, 1)}
}

func (w *ChanWaker) Wake() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// C returns the channel that receives a value after Wake
func (w *ChanWaker) C() <-chan struct{} {
	return w.ch
}

// Wait blocks until Wake is called or ctx is done
func (w *ChanWaker) Wait(ctx context.Context) error {
	select {
	case <-w.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
