// Package feed is the channel plumbing shared by push-style transport sessions.
package feed

import (
	"sync"

	"github.com/xueayi/HeartRate-to-VRC/internal/domain"
	"github.com/xueayi/HeartRate-to-VRC/internal/ports"
)

// Session adapts callback or reader-goroutine producers to ports.Session.
// The payload channel is closed exactly once, by Fail or Close.
type Session struct {
	ch   chan domain.RawPayload
	done chan struct{}

	mu    sync.Mutex
	ended bool
	err   error

	closeOnce sync.Once
	onClose   func() error
	closeErr  error
}

// New returns a session buffering up to buffer payloads. onClose, if set,
// runs once when the consumer closes the session.
func New(buffer int, onClose func() error) *Session {
	if buffer < 0 {
		buffer = 0
	}
	return &Session{
		ch:      make(chan domain.RawPayload, buffer),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

// Push hands p to the consumer, blocking while the buffer is full. It
// reports false once the session has ended.
func (s *Session) Push(p domain.RawPayload) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return false
	}
	select {
	case s.ch <- p:
		return true
	case <-s.done:
		return false
	}
}

// Fail ends the session from the producer side; err is reported by Err.
func (s *Session) Fail(err error) { s.end(err) }

// Done is closed when the consumer calls Close.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Payloads() <-chan domain.RawPayload { return s.ch }

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.end(nil)
		if s.onClose != nil {
			s.closeErr = s.onClose()
		}
	})
	return s.closeErr
}

func (s *Session) end(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	s.err = err
	close(s.ch)
}

var _ ports.Session = (*Session)(nil)
