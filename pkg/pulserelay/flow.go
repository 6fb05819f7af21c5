package pulserelay

import (
	"context"
	"fmt"
)

// Flow is a convenience builder that lets callers say Conf → StreamIN → StreamOUT
// without touching the underlying hexagonal wiring.
type Flow struct {
	cfg  *Config
	opts []RelayOption
}

// FlowOption mutates the Flow after configuration is loaded.
type FlowOption func(*Flow)

// StreamInOption configures the transport side (source, queue, observability).
type StreamInOption func(*Flow)

// StreamOutOption configures the output side (OSC emitter, sidecar, event sinks).
type StreamOutOption func(*Flow)

// Conf loads YAML or TOML from disk, applies FlowOption values, and returns a Flow builder.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig bootstraps a Flow from an in-memory Config.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	f := &Flow{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// Config returns the underlying configuration so callers can tweak it before building a runtime.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

// Options appends raw RelayOption values to the builder for advanced scenarios.
func (f *Flow) Options(opts ...RelayOption) *Flow {
	if f == nil {
		return nil
	}
	f.appendOptions(opts...)
	return f
}

// StreamIN records transport-side overrides.
func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f == nil {
		return nil
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// StreamOUT records output-side overrides and builds a RelayRuntime ready to run.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*RelayRuntime, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return NewRelayRuntime(f.cfg, f.opts...)
}

// Run is a shortcut for StreamOUT + runtime.Run.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	rt, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

// WithFlowOptions appends RelayOption values during Conf.
func WithFlowOptions(opts ...RelayOption) FlowOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(opts...)
		}
	}
}

// StreamInSource injects a custom transport.
func StreamInSource(src TransportSource) StreamInOption {
	return func(f *Flow) {
		if f != nil && src != nil {
			f.appendOptions(WithSource(src))
		}
	}
}

// StreamInQueue swaps the in-memory status queue for a caller-provided implementation.
func StreamInQueue(q EventQueue) StreamInOption {
	return func(f *Flow) {
		if f != nil && q != nil {
			f.appendOptions(WithEventQueue(q))
		}
	}
}

// StreamInObservability overrides the default Prometheus-based observability stack.
func StreamInObservability(obs Observability) StreamInOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// StreamOutEmitter replaces the UDP OSC emitter.
func StreamOutEmitter(e Emitter) StreamOutOption {
	return func(f *Flow) {
		if f != nil && e != nil {
			f.appendOptions(WithEmitter(e))
		}
	}
}

// StreamOutSidecar replaces the sidecar file writer.
func StreamOutSidecar(w SidecarWriter) StreamOutOption {
	return func(f *Flow) {
		if f != nil && w != nil {
			f.appendOptions(WithSidecar(w))
		}
	}
}

// StreamOutSink adds a status event sink.
func StreamOutSink(s EventSink) StreamOutOption {
	return func(f *Flow) {
		if f != nil && s != nil {
			f.appendOptions(WithEventSink(s))
		}
	}
}

// StreamOutCallback installs a status sink built from a simple callback function.
func StreamOutCallback(name string, fn EventBatchSink) StreamOutOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(WithEventSink(NewCallbackSink(name, fn)))
		}
	}
}

func (f *Flow) appendOptions(opts ...RelayOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
