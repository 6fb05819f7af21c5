// Package supervisor owns the connection lifecycle of one heart-rate relay:
// discovery, session open, streaming, reconnect and final shutdown.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/xueayi/HeartRate-to-VRC/internal/app/watchdog"
	"github.com/xueayi/HeartRate-to-VRC/internal/domain"
	"github.com/xueayi/HeartRate-to-VRC/internal/ports"
)

var errAlreadyStarted = errors.New("supervisor already started")

// Options wires a Supervisor. Source, Normalizer, Emitter and Status are
// required; Sidecar is only set for output mode 1.
type Options struct {
	Source     ports.TransportSource
	Normalizer ports.Normalizer
	Emitter    ports.Emitter
	Sidecar    ports.SidecarWriter
	Status     ports.StatusSink
	Obs        ports.Observability

	RetryDelay   time.Duration
	PollInterval time.Duration
	StaleTimeout time.Duration

	Now   func() time.Time
	NewID func() string
}

type Supervisor struct {
	source     ports.TransportSource
	normalizer ports.Normalizer
	emitter    ports.Emitter
	sidecar    ports.SidecarWriter
	status     ports.StatusSink
	obs        ports.Observability
	watchdog   *watchdog.Watchdog

	retryDelay time.Duration
	poll       time.Duration
	now        func() time.Time
	newID      func() string

	state    atomic.Int32
	stopping atomic.Bool
	started  atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// touched only by the Run goroutine
	sessionID string
	lastAt    time.Time
}

func New(opts Options) (*Supervisor, error) {
	switch {
	case opts.Source == nil:
		return nil, fmt.Errorf("supervisor: source is required")
	case opts.Normalizer == nil:
		return nil, fmt.Errorf("supervisor: normalizer is required")
	case opts.Emitter == nil:
		return nil, fmt.Errorf("supervisor: emitter is required")
	case opts.Status == nil:
		return nil, fmt.Errorf("supervisor: status sink is required")
	case opts.Obs == nil:
		return nil, fmt.Errorf("supervisor: observability is required")
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = domain.SessionRetry.Delay
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.StaleTimeout <= 0 {
		opts.StaleTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	return &Supervisor{
		source:     opts.Source,
		normalizer: opts.Normalizer,
		emitter:    opts.Emitter,
		sidecar:    opts.Sidecar,
		status:     opts.Status,
		obs:        opts.Obs,
		watchdog:   watchdog.New(opts.StaleTimeout),
		retryDelay: opts.RetryDelay,
		poll:       opts.PollInterval,
		now:        opts.Now,
		newID:      opts.NewID,
		done:       make(chan struct{}),
	}, nil
}

// State is safe to call from any goroutine.
func (s *Supervisor) State() domain.ConnectionState {
	return domain.ConnectionState(s.state.Load())
}

// Done is closed once Run has returned and the final presence=false was sent.
func (s *Supervisor) Done() <-chan struct{} { return s.done }

// Stop requests shutdown. The run loop observes it at its next wait point;
// a payload already being handled is still emitted.
func (s *Supervisor) Stop() {
	s.stopping.Store(true)
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
}

// Run drives the lifecycle on the calling goroutine until Stop, ctx
// cancellation or a terminal discovery/resolution failure. It returns nil on
// a requested stop and the terminal error otherwise. A Supervisor runs once.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errAlreadyStarted
	}
	defer close(s.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	if s.stopping.Load() {
		cancel()
	}

	err := s.lifecycle(ctx)
	s.finish()
	return err
}

func (s *Supervisor) lifecycle(ctx context.Context) error {
	if s.source.Kind() == domain.TransportBLE {
		s.transition(domain.StateDiscovering)
	} else {
		s.transition(domain.StateConnecting)
	}

	dev, err := s.source.Prepare(ctx)
	if err != nil {
		if s.stopRequested(ctx) {
			return nil
		}
		return s.prepareFailed(err)
	}
	if dev != (domain.DeviceDescriptor{}) {
		d := dev
		s.publish(domain.StatusEvent{
			Kind:    domain.EventDeviceFound,
			Device:  &d,
			Message: fmt.Sprintf("found %s (%s)", dev.Name, dev.Address),
		})
		s.obs.LogInfo("device_found", ports.Field{Key: "name", Value: dev.Name}, ports.Field{Key: "address", Value: dev.Address})
	}

	for attempt := 0; ; attempt++ {
		if s.stopRequested(ctx) {
			return nil
		}
		if s.State() != domain.StateConnecting {
			s.transition(domain.StateConnecting)
		}
		if attempt > 0 {
			s.obs.IncCounter(ports.MetricSessionReconnects, 1)
		}

		err := s.stream(ctx)
		if s.stopRequested(ctx) {
			return nil
		}
		if err != nil {
			s.publish(domain.StatusEvent{Kind: domain.EventTransportError, Err: err, Message: err.Error()})
			s.obs.LogError("transport_error", err, ports.Field{Key: "transport", Value: string(s.source.Kind())})
		}

		s.transition(domain.StateRetrying)
		if err := sleep(ctx, s.retryDelay); err != nil {
			return nil
		}
	}
}

// stream runs one session. It returns with the state left at Disconnected,
// or still Streaming when a stop was requested (finish moves it to Stopped).
func (s *Supervisor) stream(ctx context.Context) error {
	sess, err := s.source.Open(ctx)
	if err != nil {
		s.transition(domain.StateDisconnected)
		if !errors.Is(err, domain.ErrTransport) {
			err = fmt.Errorf("%w: open: %v", domain.ErrTransport, err)
		}
		return err
	}
	defer sess.Close()

	s.sessionID = s.newID()
	s.lastAt = time.Time{}
	s.watchdog.Reset(s.now())
	s.transition(domain.StateStreaming)
	s.publishConnectivity(true)

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	payloads := sess.Payloads()
	var sessErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case p, ok := <-payloads:
			if !ok {
				sessErr = sess.Err()
				break loop
			}
			if s.stopping.Load() {
				break loop
			}
			s.accept(p)
		case <-ticker.C:
			s.checkStale()
		}
	}

	if s.stopRequested(ctx) {
		return nil
	}
	s.transition(domain.StateDisconnected)
	s.publishConnectivity(false)
	return sessErr
}

func (s *Supervisor) accept(p domain.RawPayload) {
	sample, err := s.normalizer.Normalize(p)
	if err != nil {
		s.obs.IncCounter(ports.MetricPayloadsDropped, 1)
		s.obs.LogError("payload_dropped", err, ports.Field{Key: "encoding", Value: p.Encoding.String()})
		s.publish(domain.StatusEvent{Kind: domain.EventMalformedPayload, Err: err, Message: err.Error()})
		return
	}

	if sample.ObservedAt.Before(s.lastAt) {
		sample.ObservedAt = s.lastAt
	}
	s.lastAt = sample.ObservedAt

	triple, err := s.emitter.Emit(sample)
	if err != nil {
		s.obs.LogError("osc_emit_failed", err)
		s.publish(domain.StatusEvent{Kind: domain.EventOutputError, Err: err, Message: err.Error()})
	}
	now := s.now()
	s.watchdog.Observe(now)
	if !p.ReceivedAt.IsZero() {
		s.obs.ObserveLatency(ports.MetricEmitLatency, now.Sub(p.ReceivedAt).Seconds())
	}

	if s.sidecar != nil {
		if err := s.sidecar.WriteValue(sample.RawValue); err != nil {
			s.obs.LogError("sidecar_write_failed", err)
			s.publish(domain.StatusEvent{Kind: domain.EventOutputError, Err: err, Message: err.Error()})
		}
	}

	s.obs.IncCounter(ports.MetricSamplesAccepted, 1)
	s.obs.SetGauge(ports.MetricHeartRate, float64(sample.RawValue))
	s.obs.LogInfo("heart_rate",
		ports.Field{Key: "bpm", Value: triple.IntValue},
		ports.Field{Key: "float", Value: fmt.Sprintf("%.2f", triple.FloatValue)},
	)
	s.publish(domain.StatusEvent{
		Kind:      domain.EventTelemetry,
		Connected: true,
		Sample:    &sample,
		Triple:    &triple,
	})
}

func (s *Supervisor) checkStale() {
	if !s.watchdog.Check(s.now()) {
		return
	}
	s.obs.IncCounter(ports.MetricStaleWindows, 1)
	msg := fmt.Sprintf("no heart rate for %s", s.watchdog.Timeout())
	s.obs.LogError("stale_stream", domain.ErrStaleStream, ports.Field{Key: "session", Value: s.sessionID})
	s.publish(domain.StatusEvent{Kind: domain.EventStaleStream, Connected: true, Err: domain.ErrStaleStream, Message: msg})
}

func (s *Supervisor) prepareFailed(err error) error {
	kind := domain.EventDiscoveryFailed
	switch {
	case errors.Is(err, domain.ErrResolutionFailed):
		kind = domain.EventResolutionFailed
	case errors.Is(err, domain.ErrDiscoveryFailed):
	case s.source.Kind() == domain.TransportWidget:
		kind = domain.EventResolutionFailed
		err = fmt.Errorf("%w: %v", domain.ErrResolutionFailed, err)
	default:
		err = fmt.Errorf("%w: %v", domain.ErrDiscoveryFailed, err)
	}
	s.obs.LogCritical(string(kind), err)
	s.publish(domain.StatusEvent{Kind: kind, Err: err, Message: err.Error()})
	return err
}

// finish enters Stopped and sends presence=false exactly once.
func (s *Supervisor) finish() {
	leftStreaming := s.State() == domain.StateStreaming
	s.transition(domain.StateStopped)
	if leftStreaming {
		s.publishConnectivity(false)
	}
	if err := s.emitter.EmitAbsent(); err != nil {
		s.obs.LogError("osc_emit_absent_failed", err)
		s.publish(domain.StatusEvent{Kind: domain.EventOutputError, Err: err, Message: err.Error()})
	}
}

func (s *Supervisor) transition(next domain.ConnectionState) {
	prev := domain.ConnectionState(s.state.Swap(int32(next)))
	s.obs.SetGauge(ports.MetricConnectionState, float64(next))
	s.obs.LogInfo("state",
		ports.Field{Key: "from", Value: prev.String()},
		ports.Field{Key: "to", Value: next.String()},
		ports.Field{Key: "transport", Value: string(s.source.Kind())},
	)
	s.publish(domain.StatusEvent{
		Kind:    domain.EventState,
		State:   next,
		Message: fmt.Sprintf("%s -> %s", prev, next),
	})
}

func (s *Supervisor) publishConnectivity(connected bool) {
	s.publish(domain.StatusEvent{Kind: domain.EventConnectivity, Connected: connected})
}

func (s *Supervisor) publish(ev domain.StatusEvent) {
	if ev.State == domain.StateIdle && ev.Kind != domain.EventState {
		ev.State = s.State()
	}
	if ev.SessionID == "" {
		ev.SessionID = s.sessionID
	}
	if ev.At.IsZero() {
		ev.At = s.now()
	}
	s.status.Publish(ev)
}

func (s *Supervisor) stopRequested(ctx context.Context) bool {
	return s.stopping.Load() || ctx.Err() != nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
