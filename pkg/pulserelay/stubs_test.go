package pulserelay

import (
	"context"
	"sync"

	"github.com/xueayi/HeartRate-to-VRC/internal/adapters/feed"
	"github.com/xueayi/HeartRate-to-VRC/internal/domain"
)

type stubSource struct{}

func (s *stubSource) Kind() domain.TransportKind { return domain.TransportExternal }

func (s *stubSource) Prepare(context.Context) (domain.DeviceDescriptor, error) {
	return domain.DeviceDescriptor{Name: "stub"}, nil
}

func (s *stubSource) Open(context.Context) (Session, error) { return feed.New(0, nil), nil }

type recordingEmitter struct {
	mu     sync.Mutex
	values []int
	absent int
}

func (e *recordingEmitter) Emit(s Sample) (OscTriple, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.values = append(e.values, s.RawValue)
	return OscTriple{Presence: true, IntValue: s.RawValue, FloatValue: float64(s.RawValue) / 190}, nil
}

func (e *recordingEmitter) EmitAbsent() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.absent++
	return nil
}

func (e *recordingEmitter) emitted() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.values...)
}

func (e *recordingEmitter) absentCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.absent
}

type stubSidecar struct{}

func (s *stubSidecar) WriteValue(int) error { return nil }

type stubQueue struct{}

func (s *stubQueue) Enqueue(StatusEvent) bool { return true }

func (s *stubQueue) DequeueBatch(int) []StatusEvent { return nil }

func (s *stubQueue) Len() int { return 0 }

type stubObservability struct{}

func (s *stubObservability) LogInfo(string, ...Field) {}

func (s *stubObservability) LogError(string, error, ...Field) {}

func (s *stubObservability) LogCritical(string, error, ...Field) {}

func (s *stubObservability) IncCounter(string, float64) {}

func (s *stubObservability) ObserveLatency(string, float64) {}

func (s *stubObservability) SetGauge(string, float64) {}

type stubEventSink struct {
	mu     sync.Mutex
	events []StatusEvent
}

func (s *stubEventSink) WriteBatch(events []StatusEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *stubEventSink) Name() string { return "stub" }

func (s *stubEventSink) has(match func(StatusEvent) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if match(ev) {
			return true
		}
	}
	return false
}
