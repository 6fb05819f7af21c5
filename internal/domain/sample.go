package domain

import "time"

// Sample is the canonical heart-rate reading produced by the normalizer.
type Sample struct {
	RawValue   int       `json:"raw_value"`
	ObservedAt time.Time `json:"observed_at"`
}

// DeviceDescriptor identifies a BLE peripheral found during discovery.
type DeviceDescriptor struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// OscTriple is the (presence, int, float) unit emitted per accepted sample.
type OscTriple struct {
	Presence   bool
	IntValue   int
	FloatValue float64
}

// PayloadEncoding tells the normalizer how to read RawPayload.Data.
type PayloadEncoding uint8

const (
	// EncodingGATT is a heart-rate measurement characteristic value.
	EncodingGATT PayloadEncoding = iota + 1
	// EncodingJSON is a push-socket message carrying data.heartRate.
	EncodingJSON
)

func (e PayloadEncoding) String() string {
	switch e {
	case EncodingGATT:
		return "gatt"
	case EncodingJSON:
		return "json"
	default:
		return "unknown"
	}
}

// RawPayload is one unparsed message yielded by a transport session.
type RawPayload struct {
	Encoding   PayloadEncoding
	Data       []byte
	ReceivedAt time.Time
}

// TransportKind names a TransportSource variant.
type TransportKind string

const (
	TransportBLE      TransportKind = "ble"
	TransportWidget   TransportKind = "widget"
	TransportExternal TransportKind = "external"
)

// RetryPolicy bounds a retry loop. Attempts == 0 means unbounded.
type RetryPolicy struct {
	Delay    time.Duration
	Attempts int
}

var (
	// SessionRetry governs reconnects after a streaming session ends.
	SessionRetry = RetryPolicy{Delay: 5 * time.Second}
	// DiscoveryRetry governs BLE scan passes.
	DiscoveryRetry = RetryPolicy{Delay: time.Second, Attempts: 5}
)
