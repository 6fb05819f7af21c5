package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/xueayi/HeartRate-to-VRC/internal/domain"
	"github.com/xueayi/HeartRate-to-VRC/internal/ports"
)

// QueueSink is the StatusSink handed to the supervisor. It only enqueues, so
// a slow event consumer never stalls OSC output beyond the queue policy.
type QueueSink struct {
	q   ports.EventQueue
	pol ports.Policy
	obs ports.Observability

	closeOnce sync.Once
	done      chan struct{}
}

func NewQueueSink(q ports.EventQueue, pol ports.Policy, obs ports.Observability) *QueueSink {
	return &QueueSink{q: q, pol: pol, obs: obs, done: make(chan struct{})}
}

func (s *QueueSink) Publish(ev domain.StatusEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	if !enqueueWithPolicy(s.q, ev, s.pol, s.obs, s.done) {
		s.obs.IncCounter(ports.MetricStatusDropped, 1)
	}
	s.obs.SetGauge(ports.MetricStatusQueueLen, float64(s.q.Len()))
}

// Close releases publishers blocked under the "block" policy.
func (s *QueueSink) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func enqueueWithPolicy(q ports.EventQueue, ev domain.StatusEvent, pol ports.Policy, obs ports.Observability, done <-chan struct{}) bool {
	sleep := pol.IdleSleep
	if sleep <= 0 {
		sleep = 5 * time.Millisecond
	}

	for {
		if ok := q.Enqueue(ev); ok {
			return true
		}

		switch pol.OnQueueFull {
		case "block":
			select {
			case <-done:
				return false
			case <-time.After(sleep):
			}
		case "drop":
			obs.LogError("status_queue_full_drop", fmt.Errorf("queue length exceeded capacity %d", pol.MaxQueueLen),
				ports.Field{Key: "event", Value: string(ev.Kind)})
			return false
		default:
			obs.LogError("queue_policy_invalid", fmt.Errorf("policy=%s", pol.OnQueueFull))
			return false
		}
	}
}

var _ ports.StatusSink = (*QueueSink)(nil)
