package core

import (
	"errors"
	"fmt"
	"sync"
)

// ErrCallLimitExceeded is returned by CallLimiter.Acquire once the configured
// number of calls has been used up.
var ErrCallLimitExceeded = errors.New("call limit exceeded")

// CallLimiter bounds the number of model calls made within one responder
// invocation (tool loops can otherwise ping-pong indefinitely).
type CallLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewCallLimiter creates a limiter allowing max calls. If max <= 0, calls are
// unlimited.
func NewCallLimiter(max int) *CallLimiter {
	return &CallLimiter{max: max}
}

// Acquire records one call and fails with ErrCallLimitExceeded when the limit
// has been passed.
func (l *CallLimiter) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max > 0 && l.count >= l.max {
		return fmt.Errorf("%w: max %d", ErrCallLimitExceeded, l.max)
	}
	l.count++

	return nil
}

// Count returns the number of calls acquired so far.
func (l *CallLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.count
}

// Remaining returns how many calls are left, or -1 when unlimited.
func (l *CallLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max <= 0 {
		return -1
	}

	return l.max - l.count
}
