package location

import (
	"context"
	"fmt"
	"time"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/geo"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/contracts"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/logger"
)

// DurableSink stores a sample server-side. Failures are logged, never
// surfaced: the loop keeps running on a flaky network.
type DurableSink interface {
	PatchLocation(ctx context.Context, driverID string, pt geo.Point, status string) error
}

// LiveSink is the best-effort realtime channel. Emitting while disconnected
// is a silent drop.
type LiveSink interface {
	Emit(ctx context.Context, event string, payload any)
}

// Config gates how often samples are forwarded.
type Config struct {
	MinInterval     time.Duration // forward when this much time passed since the last send
	MinDisplacement float64       // or when the driver moved at least this many meters
}

// Broadcaster consumes position fixes and forwards the ones that pass the
// interval-or-displacement gate to both sinks. Rejected samples are dropped
// on the floor, never queued. One Run per GoOnline; cancelling ctx stops the
// provider watch and the loop with no trailing sends.
type Broadcaster struct {
	cfg      Config
	log      *logger.Logger
	provider Provider
	durable  DurableSink
	live     LiveSink

	driverID string
	producer string

	// activeOrder returns the current active order id, or "" when idle. It
	// is sampled per send so the realtime payload always tags the order the
	// driver is working on right now.
	activeOrder func() string

	// status returns the driver availability attached to durable writes.
	status func() string
}

// NewBroadcaster wires a broadcast loop. activeOrder and status may be nil.
func NewBroadcaster(cfg Config, log *logger.Logger, provider Provider, durable DurableSink, live LiveSink,
	driverID, producer string, activeOrder, status func() string) *Broadcaster {
	if activeOrder == nil {
		activeOrder = func() string { return "" }
	}
	if status == nil {
		status = func() string { return "" }
	}
	return &Broadcaster{
		cfg:         cfg,
		log:         log,
		provider:    provider,
		durable:     durable,
		live:        live,
		driverID:    driverID,
		producer:    producer,
		activeOrder: activeOrder,
		status:      status,
	}
}

// Run blocks until ctx is cancelled or the provider closes its channel. The
// first fix is always forwarded.
func (b *Broadcaster) Run(ctx context.Context) error {
	samples, err := b.provider.Watch(ctx)
	if err != nil {
		return fmt.Errorf("start location watch: %w", err)
	}

	b.log.Info(ctx, "location_loop_started", "broadcasting driver location", map[string]any{
		"driver_id":        b.driverID,
		"min_interval_ms":  b.cfg.MinInterval.Milliseconds(),
		"min_displacement": b.cfg.MinDisplacement,
	})

	var (
		sentAny  bool
		lastPt   geo.Point
		lastSent time.Time
	)

	for {
		select {
		case <-ctx.Done():
			b.log.Info(context.Background(), "location_loop_stopped", "location broadcasting stopped", nil)
			return nil
		case s, ok := <-samples:
			if !ok {
				return nil
			}
			if sentAny && !b.pass(s, lastPt, lastSent) {
				continue // gated out: dropped, not deferred
			}
			b.forward(ctx, s)
			sentAny = true
			lastPt = s.Point
			lastSent = s.Time
		}
	}
}

// pass applies the interval-or-displacement gate.
func (b *Broadcaster) pass(s Sample, lastPt geo.Point, lastSent time.Time) bool {
	if s.Time.Sub(lastSent) >= b.cfg.MinInterval {
		return true
	}
	return geo.DistanceMeters(lastPt, s.Point) >= b.cfg.MinDisplacement
}

// forward writes one sample to both sinks. The durable write happens first;
// its failure never blocks the realtime emit.
func (b *Broadcaster) forward(ctx context.Context, s Sample) {
	if err := b.durable.PatchLocation(ctx, b.driverID, s.Point, b.status()); err != nil {
		b.log.Warn(ctx, "location_patch_failed", "durable location write failed", map[string]string{
			"error": err.Error(),
		})
	}

	b.live.Emit(ctx, contracts.MsgDriverLocationUpdate, contracts.DriverLocation{
		DriverID:  b.driverID,
		Latitude:  s.Point.Latitude,
		Longitude: s.Point.Longitude,
		OrderID:   b.activeOrder(),
		Timestamp: s.Time,
		Envelope:  contracts.SentNow(b.producer, logger.RequestID(ctx)),
	})
}
