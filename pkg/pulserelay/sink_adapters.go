package pulserelay

import (
	"errors"
	"fmt"
	"sync"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("pulserelay: channel sink closed")

// EventBatchSink is invoked with ordered batches of status events.
type EventBatchSink func([]StatusEvent) error

// NewCallbackSink adapts an EventBatchSink into a full EventSink so callers
// can plug arbitrary functions without defining structs.
func NewCallbackSink(name string, fn EventBatchSink) EventSink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes batches via a channel; it returns the sink, the read-only channel,
// and a close function that the caller should invoke during shutdown.
func NewChannelSink(name string, buffer int) (EventSink, <-chan []StatusEvent, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan []StatusEvent, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

type callbackSink struct {
	name string
	fn   EventBatchSink
}

func (s *callbackSink) WriteBatch(events []StatusEvent) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	if len(events) == 0 {
		return nil
	}
	return s.fn(copyBatch(events))
}

func (s *callbackSink) Name() string { return s.name }

type channelSink struct {
	name   string
	ch     chan []StatusEvent
	closed chan struct{}
	once   sync.Once

	// held for reading while sending so close never races a send
	mu sync.RWMutex
}

func (s *channelSink) WriteBatch(events []StatusEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}

	if len(events) == 0 {
		return nil
	}

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case s.ch <- copyBatch(events):
		return nil
	}
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}

// copyBatch detaches the batch from the dispatcher's slice.
func copyBatch(events []StatusEvent) []StatusEvent {
	out := make([]StatusEvent, len(events))
	copy(out, events)
	return out
}
