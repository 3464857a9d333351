package quote

import "sync"

// inFlightLimiter limits concurrent "in-flight" polls.
//
// max:
// - max <= 0 means unlimited.
//
// It is safe for concurrent use.
type inFlightLimiter struct {
	mu       sync.Mutex
	inFlight int
	max      int
}

func newInFlightLimiter(max int) *inFlightLimiter {
	return &inFlightLimiter{max: max}
}

// TryAcquire increments in-flight counter if under the limit.
// Returns true if acquired.
func (l *inFlightLimiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.max > 0 && l.inFlight >= l.max {
		return false
	}
	l.inFlight++
	return true
}

// Release decrements in-flight counter if possible.
// It is safe to call Release more times than Acquire; it will clamp at 0.
func (l *inFlightLimiter) Release() {
	l.mu.Lock()
	if l.inFlight > 0 {
		l.inFlight--
	}
	l.mu.Unlock()
}
