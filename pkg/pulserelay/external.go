package pulserelay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xueayi/HeartRate-to-VRC/internal/adapters/feed"
	"github.com/xueayi/HeartRate-to-VRC/internal/domain"
	"github.com/xueayi/HeartRate-to-VRC/internal/ports"
)

// ErrNotStreaming is returned by ExternalSource.Publish while the relay has no
// open session (before the first Open, during a retry or after shutdown).
var ErrNotStreaming = errors.New("pulserelay: external source not streaming")

const externalBuffer = 64

type externalMessage struct {
	Data struct {
		HeartRate int `json:"heartRate"`
	} `json:"data"`
}

// ExternalSource lets an embedding program feed heart-rate values it obtained
// elsewhere (a serial strap, a test harness, another API). Values go through
// the same normalizer and watchdog as the built-in transports.
type ExternalSource struct {
	now func() time.Time

	mu      sync.Mutex
	current *feed.Session
	opened  chan struct{}
}

func NewExternalSource() *ExternalSource {
	return &ExternalSource{now: time.Now, opened: make(chan struct{})}
}

func (e *ExternalSource) Kind() domain.TransportKind { return domain.TransportExternal }

func (e *ExternalSource) Prepare(context.Context) (domain.DeviceDescriptor, error) {
	return domain.DeviceDescriptor{Name: "external"}, nil
}

// Open starts a new session. A session still open from a previous call is
// ended first.
func (e *ExternalSource) Open(ctx context.Context) (ports.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sess *feed.Session
	sess = feed.New(externalBuffer, func() error {
		e.mu.Lock()
		if e.current == sess {
			e.current = nil
		}
		e.mu.Unlock()
		return nil
	})

	e.mu.Lock()
	prev := e.current
	e.current = sess
	select {
	case <-e.opened:
	default:
		close(e.opened)
	}
	e.mu.Unlock()

	if prev != nil {
		prev.Fail(fmt.Errorf("%w: superseded by a new session", domain.ErrTransport))
	}
	return sess, nil
}

// Opened is closed the first time the relay opens a session.
func (e *ExternalSource) Opened() <-chan struct{} { return e.opened }

// Publish hands one reading to the relay. Non-positive values are passed
// through and rejected by the normalizer like any malformed payload.
func (e *ExternalSource) Publish(bpm int) error {
	var msg externalMessage
	msg.Data.HeartRate = bpm
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return e.PublishRaw(data)
}

// PublishRaw forwards an already encoded {"data":{"heartRate":N}} message.
func (e *ExternalSource) PublishRaw(data []byte) error {
	e.mu.Lock()
	sess := e.current
	e.mu.Unlock()
	if sess == nil {
		return ErrNotStreaming
	}
	ok := sess.Push(domain.RawPayload{
		Encoding:   domain.EncodingJSON,
		Data:       data,
		ReceivedAt: e.now(),
	})
	if !ok {
		return ErrNotStreaming
	}
	return nil
}

// Drop ends the current session as a transport failure, which makes the
// relay go through its retry path.
func (e *ExternalSource) Drop(reason error) {
	e.mu.Lock()
	sess := e.current
	e.current = nil
	e.mu.Unlock()
	if sess == nil {
		return
	}
	if reason == nil {
		reason = errors.New("dropped by caller")
	}
	sess.Fail(fmt.Errorf("%w: %v", domain.ErrTransport, reason))
}

var _ ports.TransportSource = (*ExternalSource)(nil)
