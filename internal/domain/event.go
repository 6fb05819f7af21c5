package domain

import "time"

// EventKind distinguishes the status events published by the supervisor.
type EventKind string

const (
	EventState            EventKind = "state"
	EventConnectivity     EventKind = "connectivity"
	EventTelemetry        EventKind = "telemetry"
	EventDeviceFound      EventKind = "device_found"
	EventMalformedPayload EventKind = "malformed_payload"
	EventStaleStream      EventKind = "stale_stream"
	EventDiscoveryFailed  EventKind = "discovery_failed"
	EventResolutionFailed EventKind = "resolution_failed"
	EventTransportError   EventKind = "transport_error"
	EventOutputError      EventKind = "output_error"
)

// StatusEvent is the unit written to status sinks (UI, logs, channels).
type StatusEvent struct {
	Kind      EventKind
	State     ConnectionState
	Connected bool
	Sample    *Sample
	Triple    *OscTriple
	Device    *DeviceDescriptor
	Message   string
	Err       error
	SessionID string
	At        time.Time
}
