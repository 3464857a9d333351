package execution

import (
	"context"
	"sync"
)

// requestSlot keeps at most one outstanding request context.
//
// Begin cancels the previous request (if still running) and hands out a
// fresh context. Abort cancels the current one without starting a new one.
//
// It is safe for concurrent use.
type requestSlot struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	seq    uint64
}

// Begin aborts any outstanding request and opens a new slot.
// The returned seq identifies this request; callers pass it to Done so a
// late Done from an aborted request cannot release a newer slot.
func (s *requestSlot) Begin(parent context.Context) (context.Context, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.seq++
	return ctx, s.seq
}

// Done releases the slot if seq still owns it.
func (s *requestSlot) Done(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq || s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
}

// Abort cancels the outstanding request, if any.
func (s *requestSlot) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
