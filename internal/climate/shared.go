package climate

import (
	"context"
	"time"

	"github.com/nerrad567/fujitsu-bridge/internal/heatpump"
)

// SharedState is the single heatpump.State jointly owned by the pump and the
// controller. The value is only reachable while the lock is held.
//
// sync.Mutex has no timed acquire, so the lock is a one-slot semaphore.
type SharedState struct {
	sem   chan struct{}
	value heatpump.State
}

// NewSharedState returns an unlocked SharedState holding initial.
func NewSharedState(initial heatpump.State) *SharedState {
	return &SharedState{
		sem:   make(chan struct{}, 1),
		value: initial,
	}
}

// TryLock waits up to timeout for the lock. It returns false if the timeout
// expires or ctx is cancelled first. A zero timeout only tries once.
func (s *SharedState) TryLock(ctx context.Context, timeout time.Duration) bool {
	return s.acquire(ctx, timeout) == nil
}

// Unlock releases the lock. Calling it without holding the lock panics.
func (s *SharedState) Unlock() {
	select {
	case <-s.sem:
	default:
		panic("climate: unlock of unlocked SharedState")
	}
}

// With runs fn with exclusive access to the shared value.
//
// Returns:
//   - ErrLockTimeout if the lock was not acquired within timeout
//   - ctx.Err() if ctx was cancelled while waiting
//   - nil once fn has run and the lock is released
func (s *SharedState) With(ctx context.Context, timeout time.Duration, fn func(*heatpump.State)) error {
	if err := s.acquire(ctx, timeout); err != nil {
		return err
	}
	defer s.Unlock()

	fn(&s.value)
	return nil
}

func (s *SharedState) acquire(ctx context.Context, timeout time.Duration) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	default:
	}
	if timeout <= 0 {
		return ErrLockTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s.sem <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrLockTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
