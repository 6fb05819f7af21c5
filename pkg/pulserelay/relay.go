package pulserelay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"tinygo.org/x/bluetooth"

	"github.com/xueayi/HeartRate-to-VRC/internal/adapters/ble"
	"github.com/xueayi/HeartRate-to-VRC/internal/adapters/observability"
	"github.com/xueayi/HeartRate-to-VRC/internal/adapters/osc"
	"github.com/xueayi/HeartRate-to-VRC/internal/adapters/queue"
	"github.com/xueayi/HeartRate-to-VRC/internal/adapters/sidecar"
	"github.com/xueayi/HeartRate-to-VRC/internal/adapters/statuslog"
	"github.com/xueayi/HeartRate-to-VRC/internal/adapters/widget"
	"github.com/xueayi/HeartRate-to-VRC/internal/app/config"
	"github.com/xueayi/HeartRate-to-VRC/internal/app/normalize"
	"github.com/xueayi/HeartRate-to-VRC/internal/app/pipeline"
	"github.com/xueayi/HeartRate-to-VRC/internal/app/supervisor"
	"github.com/xueayi/HeartRate-to-VRC/internal/domain"
	"github.com/xueayi/HeartRate-to-VRC/internal/ports"
)

var errRuntimeStarted = errors.New("pulserelay: runtime already started")

// RelayOption customizes the dependencies used by RelayRuntime.
type RelayOption func(*runtimeOverrides)

type runtimeOverrides struct {
	source        TransportSource
	emitter       Emitter
	sidecar       SidecarWriter
	queue         EventQueue
	observability Observability
	sinks         []EventSink
	logger        *logrus.Logger
	registry      *prometheus.Registry
	now           func() time.Time
}

// WithSource injects a custom transport (simulators, other heart-rate APIs).
func WithSource(src TransportSource) RelayOption {
	return func(o *runtimeOverrides) {
		o.source = src
	}
}

// WithEmitter replaces the UDP OSC emitter.
func WithEmitter(e Emitter) RelayOption {
	return func(o *runtimeOverrides) {
		o.emitter = e
	}
}

// WithSidecar replaces the sidecar file writer. It is used regardless of
// output.mode.
func WithSidecar(w SidecarWriter) RelayOption {
	return func(o *runtimeOverrides) {
		o.sidecar = w
	}
}

// WithEventQueue swaps the in-memory status queue.
func WithEventQueue(q EventQueue) RelayOption {
	return func(o *runtimeOverrides) {
		o.queue = q
	}
}

// WithObservability plugs in a custom metrics/log backend.
func WithObservability(obs Observability) RelayOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithEventSink adds a status event consumer next to the default log sink.
func WithEventSink(s EventSink) RelayOption {
	return func(o *runtimeOverrides) {
		if s != nil {
			o.sinks = append(o.sinks, s)
		}
	}
}

// WithLogger replaces the logger built from the log section.
func WithLogger(l *logrus.Logger) RelayOption {
	return func(o *runtimeOverrides) {
		o.logger = l
	}
}

// WithRegistry registers metrics on reg and serves it on /metrics.
func WithRegistry(reg *prometheus.Registry) RelayOption {
	return func(o *runtimeOverrides) {
		o.registry = reg
	}
}

// WithClock overrides the supervisor clock; tests use it to drive staleness.
func WithClock(now func() time.Time) RelayOption {
	return func(o *runtimeOverrides) {
		o.now = now
	}
}

// RelayRuntime wires transport → normalizer → OSC emitter under one
// supervisor and fans status events out to sinks.
type RelayRuntime struct {
	cfg      *Config
	log      *logrus.Logger
	obs      ports.Observability
	queue    ports.EventQueue
	status   *pipeline.QueueSink
	sinks    []ports.EventSink
	sup      *supervisor.Supervisor
	external *ExternalSource
	registry *prometheus.Registry

	mu         sync.Mutex
	metricsSrv *http.Server

	started  atomic.Bool
	finished chan struct{}
}

// NewRelayRuntime bootstraps the default adapters (transport by source.kind,
// UDP OSC emitter, optional sidecar file, in-memory status queue, logrus
// status sink, Prometheus observability). RelayOption values override any of
// them.
func NewRelayRuntime(cfg *Config, opts ...RelayOption) (*RelayRuntime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	if overrides.source != nil && cfg.Source.Kind == "" {
		cfg.Source.Kind = domain.TransportExternal
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}

	logger := overrides.logger
	if logger == nil {
		var err error
		logger, err = observability.NewLogger(cfg.Log.Level, cfg.Log.JSON)
		if err != nil {
			return nil, err
		}
	}

	reg := overrides.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	obs := overrides.observability
	if obs == nil {
		obs = observability.NewPromObs(reg, logger)
	}

	q := overrides.queue
	if q == nil {
		q = queue.NewMemQueue(cfg.Policy.MaxQueueLen)
	}

	emitter := overrides.emitter
	if emitter == nil {
		emitter = osc.NewEmitter(cfg.OSC.Host, cfg.OSC.Port, mappingFromConfig(cfg))
	}

	side := overrides.sidecar
	if side == nil && cfg.Output.Mode == config.OutputWithSidecar {
		side = sidecar.NewFileWriter(cfg.Output.SidecarPath)
	}

	rt := &RelayRuntime{
		cfg:      cfg,
		log:      logger,
		obs:      obs,
		queue:    q,
		registry: reg,
		finished: make(chan struct{}),
	}

	src := overrides.source
	if src == nil {
		var err error
		src, err = rt.defaultSource()
		if err != nil {
			return nil, err
		}
	}
	if ext, ok := src.(*ExternalSource); ok {
		rt.external = ext
	}

	rt.sinks = append([]ports.EventSink{statuslog.New(logger)}, overrides.sinks...)
	rt.status = pipeline.NewQueueSink(q, cfg.Policy, obs)

	sup, err := supervisor.New(supervisor.Options{
		Source:       src,
		Normalizer:   normalize.New(),
		Emitter:      emitter,
		Sidecar:      side,
		Status:       rt.status,
		Obs:          obs,
		RetryDelay:   cfg.Session.RetryDelay,
		PollInterval: cfg.Session.PollInterval,
		StaleTimeout: cfg.Session.StaleTimeout,
		Now:          overrides.now,
	})
	if err != nil {
		return nil, err
	}
	rt.sup = sup
	return rt, nil
}

func (r *RelayRuntime) defaultSource() (ports.TransportSource, error) {
	switch r.cfg.Source.Kind {
	case domain.TransportBLE:
		return ble.NewGattSource(bluetooth.DefaultAdapter, ble.Config{
			DeviceName:   r.cfg.BLE.DeviceName,
			ScanWindow:   r.cfg.BLE.ScanWindow,
			ScanAttempts: r.cfg.BLE.ScanAttempts,
			ScanPacing:   r.cfg.BLE.ScanPacing,
		}, r.log), nil
	case domain.TransportWidget:
		resolver := widget.NewDirectoryResolver(r.cfg.Widget.DirectoryURL, r.cfg.Widget.RequestTimeout, nil)
		return widget.NewSocketSource(widget.Config{
			ID:             r.cfg.Widget.ID,
			RequestTimeout: r.cfg.Widget.RequestTimeout,
			PingInterval:   r.cfg.Widget.PingInterval,
		}, resolver, r.log), nil
	case domain.TransportExternal:
		return NewExternalSource(), nil
	default:
		return nil, fmt.Errorf("unsupported source.kind %q", r.cfg.Source.Kind)
	}
}

func mappingFromConfig(cfg *Config) osc.Mapping {
	return osc.Mapping{
		AddrBool:  cfg.OSC.AddrBool,
		AddrInt:   cfg.OSC.AddrInt,
		AddrFloat: cfg.OSC.AddrFloat,
		Low:       cfg.HeartRate.Low,
		High:      cfg.HeartRate.High,
		Legacy:    cfg.HeartRate.FloatCeiling == config.CeilingLegacy,
	}
}

// External returns the ExternalSource when source.kind is external (or one
// was passed to WithSource), nil otherwise.
func (r *RelayRuntime) External() *ExternalSource { return r.external }

// State reports the supervisor's connection state.
func (r *RelayRuntime) State() ConnectionState { return r.sup.State() }

// Registry is the Prometheus registry served on /metrics.
func (r *RelayRuntime) Registry() *prometheus.Registry { return r.registry }

// Run blocks until ctx is cancelled, Stop is called or discovery/resolution
// fails terminally. Status events published before the supervisor stopped are
// flushed to every sink before Run returns.
func (r *RelayRuntime) Run(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return errRuntimeStarted
	}
	defer close(r.finished)

	g, gctx := errgroup.WithContext(ctx)
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())

	g.Go(func() error {
		defer stopDispatch()
		defer r.status.Close()
		return r.sup.Run(gctx)
	})
	g.Go(func() error {
		return pipeline.RunStatusDispatch(dispatchCtx, r.queue, r.sinks, r.cfg.Policy, r.obs)
	})

	if srv := r.newMetricsServer(); srv != nil {
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				r.log.WithError(err).WithField("addr", srv.Addr).Error("metrics server exited")
			}
			return nil
		})
		g.Go(func() error {
			<-r.sup.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

// Stop asks the supervisor to finish; Run returns once presence=false has
// been sent and status events are flushed.
func (r *RelayRuntime) Stop() {
	r.sup.Stop()
}

// Shutdown stops the relay and waits for Run to return or ctx to expire.
func (r *RelayRuntime) Shutdown(ctx context.Context) error {
	r.Stop()
	if !r.started.Load() {
		return nil
	}

	var errs []error
	select {
	case <-r.finished:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}

	r.mu.Lock()
	srv := r.metricsSrv
	r.mu.Unlock()
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MetricsHandler serves /metrics and /healthz for the runtime's registry.
func (r *RelayRuntime) MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(r.State().String()))
	})
	return mux
}

func (r *RelayRuntime) newMetricsServer() *http.Server {
	if r.cfg.Metrics.Addr == "" {
		return nil
	}
	srv := &http.Server{
		Addr:              r.cfg.Metrics.Addr,
		Handler:           r.MetricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.mu.Lock()
	r.metricsSrv = srv
	r.mu.Unlock()
	return srv
}
