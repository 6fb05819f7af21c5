package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/xueayi/HeartRate-to-VRC/internal/domain"
	"github.com/xueayi/HeartRate-to-VRC/internal/ports"
)

// Float ceilings accepted by heart_rate.float_ceiling.
const (
	CeilingUnit   = "unit"
	CeilingLegacy = "legacy"
)

// Output modes accepted by output.mode.
const (
	OutputStatusOnly  = 0
	OutputWithSidecar = 1
)

const DefaultDirectoryURL = "https://api.stromno.com/v1/api/public/rpc"

type Config struct {
	Source    SourceConfig    `yaml:"source" toml:"source"`
	BLE       BLEConfig       `yaml:"ble" toml:"ble"`
	Widget    WidgetConfig    `yaml:"widget" toml:"widget"`
	OSC       OSCConfig       `yaml:"osc" toml:"osc"`
	HeartRate HeartRateConfig `yaml:"heart_rate" toml:"heart_rate"`
	Output    OutputConfig    `yaml:"output" toml:"output"`
	Session   SessionConfig   `yaml:"session" toml:"session"`
	Policy    ports.Policy    `yaml:"policy" toml:"policy"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
	Log       LogConfig       `yaml:"log" toml:"log"`
}

type SourceConfig struct {
	Kind domain.TransportKind `yaml:"kind" toml:"kind"`
}

type BLEConfig struct {
	DeviceName   string        `yaml:"device_name" toml:"device_name"`
	ScanWindow   time.Duration `yaml:"scan_window" toml:"scan_window"`
	ScanAttempts int           `yaml:"scan_attempts" toml:"scan_attempts"`
	ScanPacing   time.Duration `yaml:"scan_pacing" toml:"scan_pacing"`
}

type WidgetConfig struct {
	ID             string        `yaml:"id" toml:"id"`
	DirectoryURL   string        `yaml:"directory_url" toml:"directory_url"`
	RequestTimeout time.Duration `yaml:"request_timeout" toml:"request_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval" toml:"ping_interval"`
}

type OSCConfig struct {
	Host      string `yaml:"host" toml:"host"`
	Port      int    `yaml:"port" toml:"port"`
	AddrBool  string `yaml:"addr_bool" toml:"addr_bool"`
	AddrInt   string `yaml:"addr_int" toml:"addr_int"`
	AddrFloat string `yaml:"addr_float" toml:"addr_float"`
}

type HeartRateConfig struct {
	Low          int    `yaml:"low" toml:"low"`
	High         int    `yaml:"high" toml:"high"`
	FloatCeiling string `yaml:"float_ceiling" toml:"float_ceiling"`
}

type OutputConfig struct {
	Mode        int    `yaml:"mode" toml:"mode"`
	SidecarPath string `yaml:"sidecar_path" toml:"sidecar_path"`
}

type SessionConfig struct {
	RetryDelay   time.Duration `yaml:"retry_delay" toml:"retry_delay"`
	PollInterval time.Duration `yaml:"poll_interval" toml:"poll_interval"`
	StaleTimeout time.Duration `yaml:"stale_timeout" toml:"stale_timeout"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
	JSON  bool   `yaml:"json" toml:"json"`
}

// Load reads a YAML or TOML (by extension) config file, applies defaults and
// validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := decode(path, raw, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize applies defaults and validates an in-memory Config.
func (c *Config) Finalize() error {
	c.applyDefaults()
	return c.validate()
}

func decode(path string, raw []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err := toml.Decode(string(raw), cfg)
		return err
	default:
		return yaml.Unmarshal(raw, cfg)
	}
}

func (c *Config) applyDefaults() {
	if c.Source.Kind == "" {
		c.Source.Kind = domain.TransportBLE
	}
	c.Source.Kind = domain.TransportKind(strings.ToLower(string(c.Source.Kind)))

	if c.BLE.ScanWindow <= 0 {
		c.BLE.ScanWindow = 5 * time.Second
	}
	if c.BLE.ScanAttempts <= 0 {
		c.BLE.ScanAttempts = domain.DiscoveryRetry.Attempts
	}
	if c.BLE.ScanPacing <= 0 {
		c.BLE.ScanPacing = domain.DiscoveryRetry.Delay
	}

	if c.Widget.DirectoryURL == "" {
		c.Widget.DirectoryURL = DefaultDirectoryURL
	}
	if c.Widget.RequestTimeout <= 0 {
		c.Widget.RequestTimeout = 10 * time.Second
	}
	if c.Widget.PingInterval <= 0 {
		c.Widget.PingInterval = 15 * time.Second
	}

	if c.OSC.Host == "" {
		c.OSC.Host = "127.0.0.1"
	}
	if c.OSC.Port == 0 {
		c.OSC.Port = 9000
	}
	if c.OSC.AddrBool == "" {
		c.OSC.AddrBool = "/avatar/parameters/HeartRateConnected"
	}
	if c.OSC.AddrInt == "" {
		c.OSC.AddrInt = "/avatar/parameters/HeartRateInt"
	}
	if c.OSC.AddrFloat == "" {
		c.OSC.AddrFloat = "/avatar/parameters/HeartRateFloat"
	}

	if c.HeartRate.Low == 0 {
		c.HeartRate.Low = 40
	}
	if c.HeartRate.High == 0 {
		c.HeartRate.High = 190
	}
	if c.HeartRate.FloatCeiling == "" {
		c.HeartRate.FloatCeiling = CeilingUnit
	}
	c.HeartRate.FloatCeiling = strings.ToLower(c.HeartRate.FloatCeiling)

	if c.Output.SidecarPath == "" {
		c.Output.SidecarPath = "rate.txt"
	}

	if c.Session.RetryDelay <= 0 {
		c.Session.RetryDelay = domain.SessionRetry.Delay
	}
	if c.Session.PollInterval <= 0 {
		c.Session.PollInterval = time.Second
	}
	if c.Session.StaleTimeout <= 0 {
		c.Session.StaleTimeout = 10 * time.Second
	}

	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 1024
	}
	if c.Policy.MaxBatchSize == 0 {
		c.Policy.MaxBatchSize = 64
	}
	if c.Policy.IdleSleep == 0 {
		c.Policy.IdleSleep = 5 * time.Millisecond
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = "drop"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	switch c.Source.Kind {
	case domain.TransportBLE:
		if strings.TrimSpace(c.BLE.DeviceName) == "" {
			return fmt.Errorf("ble.device_name is required for source.kind=ble")
		}
	case domain.TransportWidget:
		if strings.TrimSpace(c.Widget.ID) == "" {
			return fmt.Errorf("widget.id is required for source.kind=widget")
		}
	case domain.TransportExternal:
	default:
		return fmt.Errorf("unsupported source.kind %q", c.Source.Kind)
	}

	if strings.TrimSpace(c.OSC.Host) == "" {
		return fmt.Errorf("osc.host is required")
	}
	if c.OSC.Port <= 0 || c.OSC.Port > 65535 {
		return fmt.Errorf("osc.port %d out of range", c.OSC.Port)
	}
	if c.OSC.AddrBool == "" || c.OSC.AddrInt == "" || c.OSC.AddrFloat == "" {
		return fmt.Errorf("osc.addr_bool, osc.addr_int and osc.addr_float are required")
	}

	if c.HeartRate.High <= 0 {
		return fmt.Errorf("heart_rate.high must be > 0")
	}
	if c.HeartRate.Low < 0 {
		return fmt.Errorf("heart_rate.low must be >= 0")
	}
	switch c.HeartRate.FloatCeiling {
	case CeilingUnit, CeilingLegacy:
	default:
		return fmt.Errorf("unsupported heart_rate.float_ceiling %q", c.HeartRate.FloatCeiling)
	}

	switch c.Output.Mode {
	case OutputStatusOnly:
	case OutputWithSidecar:
		if strings.TrimSpace(c.Output.SidecarPath) == "" {
			return fmt.Errorf("output.sidecar_path is required for output.mode=1")
		}
	default:
		return fmt.Errorf("unsupported output.mode %d", c.Output.Mode)
	}

	if c.Policy.MaxQueueLen <= 0 {
		return fmt.Errorf("policy.max_queue_len must be > 0")
	}
	if c.Policy.MaxBatchSize <= 0 {
		return fmt.Errorf("policy.max_batch_size must be > 0")
	}
	switch c.Policy.OnQueueFull {
	case "drop", "block":
	default:
		return fmt.Errorf("unsupported policy.on_queue_full %q", c.Policy.OnQueueFull)
	}
	return nil
}
