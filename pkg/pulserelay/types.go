package pulserelay

import (
	"github.com/xueayi/HeartRate-to-VRC/internal/domain"
	"github.com/xueayi/HeartRate-to-VRC/internal/ports"
)

// Sample is one accepted heart-rate reading.
type Sample = domain.Sample

// OscTriple is the presence/int/float unit sent per sample.
type OscTriple = domain.OscTriple

// StatusEvent is what event sinks receive from the relay.
type StatusEvent = domain.StatusEvent

// EventKind distinguishes status events.
type EventKind = domain.EventKind

// ConnectionState is the supervisor lifecycle state.
type ConnectionState = domain.ConnectionState

// RawPayload is an unparsed transport message.
type RawPayload = domain.RawPayload

// TransportSource opens heart-rate sessions (BLE, widget socket, custom).
type TransportSource = ports.TransportSource

// Session yields raw payloads until closed or failed.
type Session = ports.Session

// Emitter sends OSC triples.
type Emitter = ports.Emitter

// SidecarWriter mirrors the latest value somewhere outside the relay.
type SidecarWriter = ports.SidecarWriter

// EventSink consumes batches of status events.
type EventSink = ports.EventSink

// EventQueue buffers status events between the supervisor and sinks.
type EventQueue = ports.EventQueue

// Observability emits metrics and logs.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

const (
	StateIdle         = domain.StateIdle
	StateDiscovering  = domain.StateDiscovering
	StateConnecting   = domain.StateConnecting
	StateStreaming    = domain.StateStreaming
	StateDisconnected = domain.StateDisconnected
	StateRetrying     = domain.StateRetrying
	StateStopped      = domain.StateStopped
)

const (
	EventState            = domain.EventState
	EventConnectivity     = domain.EventConnectivity
	EventTelemetry        = domain.EventTelemetry
	EventDeviceFound      = domain.EventDeviceFound
	EventMalformedPayload = domain.EventMalformedPayload
	EventStaleStream      = domain.EventStaleStream
	EventDiscoveryFailed  = domain.EventDiscoveryFailed
	EventResolutionFailed = domain.EventResolutionFailed
	EventTransportError   = domain.EventTransportError
	EventOutputError      = domain.EventOutputError
)

var (
	ErrDiscoveryFailed  = domain.ErrDiscoveryFailed
	ErrResolutionFailed = domain.ErrResolutionFailed
	ErrTransport        = domain.ErrTransport
	ErrMalformedPayload = domain.ErrMalformedPayload
)
