package location

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/domain/geo"
)

// Sample is one position fix from a provider.
type Sample struct {
	Point geo.Point
	Time  time.Time
}

// Provider emits position fixes until ctx is cancelled. The returned channel
// is closed when the watch ends; no fixes are delivered after that.
type Provider interface {
	Watch(ctx context.Context) (<-chan Sample, error)
}

// Walker is a simulated GPS: a random walk from a start point, one fix per
// tick. It stands in for a real positioning device on dev machines and in
// tests.
type Walker struct {
	Start      geo.Point
	StepMeters float64       // distance covered per tick
	Interval   time.Duration // time between fixes
	Seed       int64         // 0 picks a time-based seed
}

const metersPerDegreeLat = 111_194.9

// Watch starts the walk. Fixes are dropped, not buffered, when the consumer
// lags.
func (w *Walker) Watch(ctx context.Context) (<-chan Sample, error) {
	if err := w.Start.Validate(); err != nil {
		return nil, err
	}
	interval := w.Interval
	if interval <= 0 {
		interval = time.Second
	}
	seed := w.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	out := make(chan Sample, 1)
	go func() {
		defer close(out)

		rnd := rand.New(rand.NewSource(seed))
		pos := w.Start
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				bearing := rnd.Float64() * 2 * math.Pi
				dLat := (w.StepMeters * math.Cos(bearing)) / metersPerDegreeLat
				lonScale := metersPerDegreeLat * math.Cos(pos.Latitude*math.Pi/180)
				dLon := (w.StepMeters * math.Sin(bearing)) / lonScale

				next := geo.Point{Latitude: pos.Latitude + dLat, Longitude: pos.Longitude + dLon}
				if next.Validate() != nil {
					continue // walked off the map, stay put this tick
				}
				pos = next

				select {
				case out <- Sample{Point: pos, Time: now}:
				default:
				}
			}
		}
	}()
	return out, nil
}
