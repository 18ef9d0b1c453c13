package fujitsu

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/fujitsu-bridge/internal/heatpump"
)

// DefaultHealthInterval is how often health is published when no interval
// is configured.
const DefaultHealthInterval = 30 * time.Second

// HealthPublisher publishes health messages. Typically the MQTT client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	BridgeID string
	Version  string

	// Interval is how often to publish. Default: 30s.
	Interval time.Duration

	// StaleAfter marks the bridge degraded when no frame has been received
	// for this long. Zero disables the check.
	StaleAfter time.Duration

	// Topic is the retained health topic.
	Topic string

	Publisher HealthPublisher

	// ProtocolStats supplies bus counters. Optional.
	ProtocolStats func() heatpump.Stats

	// StatisticsFunc supplies the statistics block. Optional.
	StatisticsFunc func() *BridgeStatistics

	Logger Logger
}

// HealthReporter publishes retained health messages on a ticker.
type HealthReporter struct {
	cfg       HealthReporterConfig
	startTime time.Time
	now       func() time.Time

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewHealthReporter creates a health reporter. Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultHealthInterval
	}
	return &HealthReporter{
		cfg:       cfg,
		startTime: time.Now(),
		now:       time.Now,
		done:      make(chan struct{}),
	}
}

// Start begins periodic reporting until ctx is cancelled or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop stops reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown
		h.publishStatus(HealthStopping, "")
	})
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

// LWTPayload returns the Last Will and Testament payload.
func LWTPayload(bridgeID string) ([]byte, error) {
	return json.Marshal(NewLWTMessage(bridgeID))
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

// determineStatus evaluates the current bridge status.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.cfg.Publisher == nil || !h.cfg.Publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}

	if h.cfg.StaleAfter > 0 && h.cfg.ProtocolStats != nil {
		last := h.cfg.ProtocolStats().LastFrame
		// Give the unit one window after start-up to send its first frame.
		if last.IsZero() && h.now().Sub(h.startTime) > h.cfg.StaleAfter {
			return HealthDegraded, "no frames from indoor unit"
		}
		if !last.IsZero() && h.now().Sub(last) > h.cfg.StaleAfter {
			return HealthDegraded, "indoor unit silent"
		}
	}

	return HealthHealthy, ""
}

func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.cfg.Publisher == nil {
		return nil
	}

	msg := HealthMessage{
		Bridge:        h.cfg.BridgeID,
		Timestamp:     h.now().UTC(),
		Status:        status,
		Version:       h.cfg.Version,
		UptimeSeconds: int64(h.now().Sub(h.startTime).Seconds()),
		Reason:        reason,
	}
	if h.cfg.StatisticsFunc != nil {
		msg.Statistics = h.cfg.StatisticsFunc()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return h.cfg.Publisher.Publish(h.cfg.Topic, payload, 1, true)
}

func (h *HealthReporter) logError(msg string, err error) {
	if h.cfg.Logger != nil {
		h.cfg.Logger.Error(msg, "error", err)
	}
}
