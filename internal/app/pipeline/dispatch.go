package pipeline

import (
	"context"
	"time"

	"github.com/xueayi/HeartRate-to-VRC/internal/domain"
	"github.com/xueayi/HeartRate-to-VRC/internal/ports"
)

// RunStatusDispatch drains the event queue into every sink until ctx is done,
// then flushes what is left. A failing sink is logged and does not stop the
// others from receiving the batch.
func RunStatusDispatch(ctx context.Context, q ports.EventQueue, sinks []ports.EventSink, pol ports.Policy, obs ports.Observability) error {
	idle := pol.IdleSleep
	if idle <= 0 {
		idle = 5 * time.Millisecond
	}
	ticker := time.NewTicker(idle)
	defer ticker.Stop()

	for {
		if drainOnce(q, sinks, pol, obs) > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			for drainOnce(q, sinks, pol, obs) > 0 {
			}
			return nil
		case <-ticker.C:
		}
	}
}

func drainOnce(q ports.EventQueue, sinks []ports.EventSink, pol ports.Policy, obs ports.Observability) int {
	batch := q.DequeueBatch(pol.MaxBatchSize)
	if len(batch) == 0 {
		return 0
	}
	obs.SetGauge(ports.MetricStatusQueueLen, float64(q.Len()))
	writeAll(batch, sinks, obs)
	return len(batch)
}

func writeAll(batch []domain.StatusEvent, sinks []ports.EventSink, obs ports.Observability) {
	for _, sink := range sinks {
		if err := sink.WriteBatch(batch); err != nil {
			obs.LogError("status_sink_write_failed", err, ports.Field{Key: "sink", Value: sink.Name()})
		}
	}
}
