package pulserelay

import (
	"github.com/xueayi/HeartRate-to-VRC/internal/app/config"
	"github.com/xueayi/HeartRate-to-VRC/internal/ports"
)

// Config re-exports the root configuration struct so embedding programs can
// construct or modify it programmatically.
type Config = config.Config

type (
	// Policy controls the status event queue.
	Policy = ports.Policy
	// SourceConfig selects the transport (ble, widget, external).
	SourceConfig = config.SourceConfig
	// BLEConfig selects the peripheral by advertised-name fragment.
	BLEConfig = config.BLEConfig
	// WidgetConfig identifies the broadcast widget.
	WidgetConfig = config.WidgetConfig
	// OSCConfig is the UDP destination and the three parameter addresses.
	OSCConfig = config.OSCConfig
	// HeartRateConfig holds the normalization bounds.
	HeartRateConfig = config.HeartRateConfig
	// OutputConfig toggles the sidecar file.
	OutputConfig = config.OutputConfig
	// SessionConfig tunes retry, polling and staleness.
	SessionConfig = config.SessionConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// LogConfig configures logrus.
	LogConfig = config.LogConfig
)

// LoadConfig loads YAML or TOML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}
