package history

import (
	"context"
	"time"

	"github.com/nerrad567/fujitsu-bridge/internal/climate"
)

const (
	recorderQueue = 64
	writeTimeout  = 5 * time.Second
	pruneInterval = time.Hour
)

type snapshot struct {
	state  climate.State
	source string
}

// Recorder writes snapshots to a Store from its own goroutine.
type Recorder struct {
	store     *Store
	bridgeID  string
	retention time.Duration
	logger    climate.Logger

	queue chan snapshot
}

// NewRecorder returns a Recorder for one bridge. A positive retention
// prunes older entries hourly while Run is active.
func NewRecorder(store *Store, bridgeID string, retention time.Duration, logger climate.Logger) *Recorder {
	if logger == nil {
		logger = climate.NopLogger()
	}
	return &Recorder{
		store:     store,
		bridgeID:  bridgeID,
		retention: retention,
		logger:    logger,
		queue:     make(chan snapshot, recorderQueue),
	}
}

// Observe queues a snapshot. It never blocks; when the queue is full the
// snapshot is dropped and logged.
func (r *Recorder) Observe(state climate.State, source string) {
	select {
	case r.queue <- snapshot{state: state, source: source}:
	default:
		r.logger.Warn("history queue full, dropping snapshot", "bridge_id", r.bridgeID)
	}
}

// Run drains the queue until ctx is cancelled, then writes whatever is
// still queued.
func (r *Recorder) Run(ctx context.Context) error {
	r.prune(ctx)

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case s := <-r.queue:
			r.write(ctx, s)
		case <-ticker.C:
			r.prune(ctx)
		case <-ctx.Done():
			r.drain()
			return nil
		}
	}
}

func (r *Recorder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	for {
		select {
		case s := <-r.queue:
			r.write(ctx, s)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, s snapshot) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := r.store.Record(ctx, r.bridgeID, s.state, s.source); err != nil {
		r.logger.Error("recording climate history", "bridge_id", r.bridgeID, "error", err)
	}
}

func (r *Recorder) prune(ctx context.Context) {
	if r.retention <= 0 {
		return
	}
	n, err := r.store.Prune(ctx, r.retention)
	if err != nil {
		r.logger.Error("pruning climate history", "error", err)
		return
	}
	if n > 0 {
		r.logger.Info("pruned climate history", "deleted", n)
	}
}
