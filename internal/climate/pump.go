package climate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/fujitsu-bridge/internal/heatpump"
)

// PumpStats holds pump counters.
type PumpStats struct {
	Cycles     uint64 `json:"cycles"`
	Frames     uint64 `json:"frames"`
	LockSkips  uint64 `json:"lock_skips"`
	SendErrors uint64 `json:"send_errors"`
}

// Pump drives the protocol in the background and mirrors its decoded state
// into the shared buffer. It is the only writer of inbound device state.
type Pump struct {
	proto  Protocol
	shared *SharedState
	timing Timing
	logger Logger

	cancel   context.CancelFunc
	done     chan struct{}
	wg       sync.WaitGroup
	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once

	cycles     atomic.Uint64
	frames     atomic.Uint64
	lockSkips  atomic.Uint64
	sendErrors atomic.Uint64
}

// NewPump creates a pump. It does nothing until Start.
func NewPump(proto Protocol, shared *SharedState, timing Timing, logger Logger) *Pump {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Pump{
		proto:  proto,
		shared: shared,
		timing: timing.withDefaults(),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start launches the pump goroutine. It runs until ctx is cancelled or Stop
// is called. Calling Start more than once, or after Stop, has no effect.
func (p *Pump) Start(ctx context.Context) {
	_ = p.startWith(ctx, nil)
}

// startWith runs seed and launches the pump goroutine under the start lock,
// so no other Start or Stop can interleave. A seed error leaves the pump
// unstarted.
//
// Returns ErrAlreadyStarted if the pump was started or stopped before.
func (p *Pump) startWith(ctx context.Context, seed func() error) error {
	p.startMu.Lock()
	defer p.startMu.Unlock()
	if p.started {
		return ErrAlreadyStarted
	}
	if seed != nil {
		if err := seed(); err != nil {
			return err
		}
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(p.done)
		p.run(ctx)
	}()
	return nil
}

// Stop cancels the pump and waits for it to exit. Stopping a pump that was
// never started closes Done and prevents a later Start.
//
// A blocked WaitForFrame returns only when the transport's read times out
// or the transport is closed.
func (p *Pump) Stop() {
	p.stopOnce.Do(func() {
		p.startMu.Lock()
		defer p.startMu.Unlock()
		if !p.started {
			p.started = true
			close(p.done)
			return
		}
		p.cancel()
	})
	p.wg.Wait()
}

// Done is closed when the pump goroutine has exited.
func (p *Pump) Done() <-chan struct{} {
	return p.done
}

// Stats returns a snapshot of the pump counters.
func (p *Pump) Stats() PumpStats {
	return PumpStats{
		Cycles:     p.cycles.Load(),
		Frames:     p.frames.Load(),
		LockSkips:  p.lockSkips.Load(),
		SendErrors: p.sendErrors.Load(),
	}
}

func (p *Pump) run(ctx context.Context) {
	p.logger.Debug("protocol pump started")
	defer p.logger.Debug("protocol pump stopped")

	for ctx.Err() == nil {
		p.runOnce(ctx)
	}
}

// runOnce performs one receive/answer/publish cycle.
func (p *Pump) runOnce(ctx context.Context) {
	p.cycles.Add(1)

	if p.proto.WaitForFrame() {
		p.frames.Add(1)
		if !sleepCtx(ctx, p.timing.SettleDelay) {
			return
		}
		if err := p.proto.SendPendingFrame(); err != nil {
			p.sendErrors.Add(1)
			p.logger.Warn("sending frame failed", "error", err)
		}
	}

	err := p.shared.With(ctx, p.timing.PumpLockTimeout, func(s *heatpump.State) {
		*s = p.proto.CurrentState()
	})
	if errors.Is(err, ErrLockTimeout) {
		p.lockSkips.Add(1)
		p.logger.Debug("shared state busy, skipping publish")
	}
}

// sleepCtx sleeps for d or until ctx is done. It returns false if ctx ended
// first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
