package ports

type Observability interface {
	LogInfo(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)
	LogCritical(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	ObserveLatency(name string, seconds float64)

	SetGauge(name string, v float64)
}

type Field struct {
	Key   string
	Value any
}

// Metric names understood by Observability implementations.
const (
	MetricSamplesAccepted   = "hr_samples_accepted_total"
	MetricPayloadsDropped   = "hr_payloads_dropped_total"
	MetricSessionReconnects = "hr_session_reconnects_total"
	MetricStaleWindows      = "hr_stale_windows_total"
	MetricStatusDropped     = "hr_status_dropped_total"

	MetricHeartRate       = "hr_heart_rate_bpm"
	MetricConnectionState = "hr_connection_state"
	MetricStatusQueueLen  = "hr_status_queue_length"

	MetricEmitLatency = "hr_osc_emit_latency_seconds"
)
