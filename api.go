package pulserelay

import (
	base "github.com/xueayi/HeartRate-to-VRC/pkg/pulserelay"
)

// Re-exported errors for convenience.
var (
	ErrNotStreaming      = base.ErrNotStreaming
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
	ErrDiscoveryFailed   = base.ErrDiscoveryFailed
	ErrResolutionFailed  = base.ErrResolutionFailed
	ErrTransport         = base.ErrTransport
	ErrMalformedPayload  = base.ErrMalformedPayload
)

// Type aliases so consumers can import github.com/xueayi/HeartRate-to-VRC directly.
type (
	Config          = base.Config
	Policy          = base.Policy
	SourceConfig    = base.SourceConfig
	BLEConfig       = base.BLEConfig
	WidgetConfig    = base.WidgetConfig
	OSCConfig       = base.OSCConfig
	HeartRateConfig = base.HeartRateConfig
	OutputConfig    = base.OutputConfig
	SessionConfig   = base.SessionConfig
	MetricsConfig   = base.MetricsConfig
	LogConfig       = base.LogConfig
	Flow            = base.Flow
	FlowOption      = base.FlowOption
	StreamInOption  = base.StreamInOption
	StreamOutOption = base.StreamOutOption
	RelayRuntime    = base.RelayRuntime
	RelayOption     = base.RelayOption
	Sample          = base.Sample
	OscTriple       = base.OscTriple
	StatusEvent     = base.StatusEvent
	EventKind       = base.EventKind
	ConnectionState = base.ConnectionState
	RawPayload      = base.RawPayload
	EventBatchSink  = base.EventBatchSink
	TransportSource = base.TransportSource
	Session         = base.Session
	Emitter         = base.Emitter
	SidecarWriter   = base.SidecarWriter
	EventSink       = base.EventSink
	EventQueue      = base.EventQueue
	Observability   = base.Observability
	Field           = base.Field
	ExternalSource  = base.ExternalSource
)

// Connection states and status event kinds.
const (
	StateIdle         = base.StateIdle
	StateDiscovering  = base.StateDiscovering
	StateConnecting   = base.StateConnecting
	StateStreaming    = base.StateStreaming
	StateDisconnected = base.StateDisconnected
	StateRetrying     = base.StateRetrying
	StateStopped      = base.StateStopped

	EventState            = base.EventState
	EventConnectivity     = base.EventConnectivity
	EventTelemetry        = base.EventTelemetry
	EventDeviceFound      = base.EventDeviceFound
	EventMalformedPayload = base.EventMalformedPayload
	EventStaleStream      = base.EventStaleStream
	EventDiscoveryFailed  = base.EventDiscoveryFailed
	EventResolutionFailed = base.EventResolutionFailed
	EventTransportError   = base.EventTransportError
	EventOutputError      = base.EventOutputError
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RelayOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInSource(src TransportSource) StreamInOption {
	return base.StreamInSource(src)
}

func StreamInQueue(q EventQueue) StreamInOption {
	return base.StreamInQueue(q)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutEmitter(e Emitter) StreamOutOption {
	return base.StreamOutEmitter(e)
}

func StreamOutSidecar(w SidecarWriter) StreamOutOption {
	return base.StreamOutSidecar(w)
}

func StreamOutSink(s EventSink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutCallback(name string, fn EventBatchSink) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Relay runtime and options.
func NewRelayRuntime(cfg *Config, opts ...RelayOption) (*RelayRuntime, error) {
	return base.NewRelayRuntime(cfg, opts...)
}

func WithSource(src TransportSource) RelayOption {
	return base.WithSource(src)
}

func WithEmitter(e Emitter) RelayOption {
	return base.WithEmitter(e)
}

func WithSidecar(w SidecarWriter) RelayOption {
	return base.WithSidecar(w)
}

func WithEventQueue(q EventQueue) RelayOption {
	return base.WithEventQueue(q)
}

func WithObservability(obs Observability) RelayOption {
	return base.WithObservability(obs)
}

func WithEventSink(s EventSink) RelayOption {
	return base.WithEventSink(s)
}

// Sink adapters.
func NewCallbackSink(name string, fn EventBatchSink) EventSink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (EventSink, <-chan []StatusEvent, func()) {
	return base.NewChannelSink(name, buffer)
}

// External source.
func NewExternalSource() *ExternalSource {
	return base.NewExternalSource()
}
