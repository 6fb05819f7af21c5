package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	pulserelay "github.com/xueayi/HeartRate-to-VRC"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:], os.Stdout)
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return
	default:
		printUsage(os.Stdout)
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		logrus.Fatalf("hr-relay %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to relay configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	flow, err := pulserelay.Conf(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return flow.Run(ctx)
}

func validateCommand(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := pulserelay.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "config %s looks good\n", *cfgPath)
	fmt.Fprintf(out, "  source: %s\n", describeSource(cfg))
	fmt.Fprintf(out, "  osc:    %s:%d (%s, %s, %s)\n", cfg.OSC.Host, cfg.OSC.Port, cfg.OSC.AddrBool, cfg.OSC.AddrInt, cfg.OSC.AddrFloat)
	fmt.Fprintf(out, "  range:  %d..%d float_ceiling=%s\n", cfg.HeartRate.Low, cfg.HeartRate.High, cfg.HeartRate.FloatCeiling)
	if cfg.Output.Mode == 1 {
		fmt.Fprintf(out, "  sidecar: %s\n", cfg.Output.SidecarPath)
	}
	return nil
}

func describeSource(cfg *pulserelay.Config) string {
	switch cfg.Source.Kind {
	case "ble":
		return fmt.Sprintf("ble device_name=%q", cfg.BLE.DeviceName)
	case "widget":
		id := cfg.Widget.ID
		if len(id) > 8 {
			id = id[:8] + "..."
		}
		return fmt.Sprintf("widget id=%s", id)
	default:
		return string(cfg.Source.Kind)
	}
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9464/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	client := &http.Client{Timeout: *interval}
	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(client, *url, os.Stdout); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

var statsTargets = []string{
	"hr_heart_rate_bpm",
	"hr_connection_state",
	"hr_samples_accepted_total",
	"hr_payloads_dropped_total",
	"hr_session_reconnects_total",
	"hr_stale_windows_total",
}

var stateNames = []string{"idle", "discovering", "connecting", "streaming", "disconnected", "retrying", "stopped"}

func printMetricsSnapshot(client *http.Client, url string, out io.Writer) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values, err := parseMetrics(resp.Body)
	if err != nil {
		return err
	}

	state := "unknown"
	if i := int(values["hr_connection_state"]); i >= 0 && i < len(stateNames) {
		state = stateNames[i]
	}
	fmt.Fprintf(out, "[%s] bpm=%.0f state=%s accepted=%.0f dropped=%.0f reconnects=%.0f stale=%.0f\n",
		time.Now().Format(time.RFC3339),
		values["hr_heart_rate_bpm"],
		state,
		values["hr_samples_accepted_total"],
		values["hr_payloads_dropped_total"],
		values["hr_session_reconnects_total"],
		values["hr_stale_windows_total"],
	)
	return nil
}

func parseMetrics(r io.Reader) (map[string]float64, error) {
	values := make(map[string]float64, len(statsTargets))
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for _, key := range statsTargets {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %g", &value); err == nil {
					values[key] = value
				}
			}
		}
	}
	return values, scanner.Err()
}

func printUsage(out io.Writer) {
	fmt.Fprint(out, `hr-relay: heart rate to OSC relay

Usage:
  hr-relay <command> [flags]

Commands:
  run        Start the relay using the provided config
  validate   Load and validate a config file without starting the relay
  stats      Poll the Prometheus metrics endpoint and print live values

Examples:
  hr-relay run -config ./data/config.yaml
  hr-relay validate -config ./data/config.toml
  hr-relay stats -url http://localhost:9464/metrics -interval 1s
`)
}
