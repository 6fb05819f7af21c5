package pulserelay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

func testConfig() *Config {
	return &Config{
		Source: SourceConfig{Kind: "external"},
		Policy: Policy{
			MaxQueueLen:  64,
			MaxBatchSize: 8,
			IdleSleep:    time.Millisecond,
			OnQueueFull:  "drop",
		},
		Session: SessionConfig{
			RetryDelay:   10 * time.Millisecond,
			PollInterval: 5 * time.Millisecond,
			StaleTimeout: time.Minute,
		},
	}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestNewRelayRuntimeWithCustomAdapters(t *testing.T) {
	src := &stubSource{}
	em := &recordingEmitter{}
	side := &stubSidecar{}
	q := &stubQueue{}
	obs := &stubObservability{}
	sink := &stubEventSink{}

	rt, err := NewRelayRuntime(
		&Config{},
		WithSource(src),
		WithEmitter(em),
		WithSidecar(side),
		WithEventQueue(q),
		WithObservability(obs),
		WithEventSink(sink),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("NewRelayRuntime returned error: %v", err)
	}
	if rt.cfg.Source.Kind != "external" {
		t.Fatalf("expected source kind to default to external, got %s", rt.cfg.Source.Kind)
	}
	if rt.queue != q {
		t.Fatalf("expected custom queue to be used")
	}
	if rt.obs != obs {
		t.Fatalf("expected custom observability to be used")
	}
	if len(rt.sinks) != 2 || rt.sinks[0].Name() != "statuslog" || rt.sinks[1] != sink {
		t.Fatalf("expected statuslog sink followed by custom sink, got %d sinks", len(rt.sinks))
	}
	if rt.External() != nil {
		t.Fatalf("expected no external source for a custom transport")
	}
	if rt.State() != StateIdle {
		t.Fatalf("expected idle runtime, got %s", rt.State())
	}
}

func TestNewRelayRuntimeRejectsInvalidConfig(t *testing.T) {
	if _, err := NewRelayRuntime(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
	cfg := &Config{Source: SourceConfig{Kind: "ble"}}
	if _, err := NewRelayRuntime(cfg, WithLogger(quietLogger())); err == nil {
		t.Fatalf("expected error for ble source without device name")
	}
}

func TestNewRelayRuntimeBuildsExternalSource(t *testing.T) {
	rt, err := NewRelayRuntime(testConfig(), WithLogger(quietLogger()), WithEmitter(&recordingEmitter{}))
	if err != nil {
		t.Fatalf("NewRelayRuntime returned error: %v", err)
	}
	if rt.External() == nil {
		t.Fatalf("expected external source for source.kind=external")
	}
}

func TestRelayRuntimeStreamsExternalSamples(t *testing.T) {
	em := &recordingEmitter{}
	events := &stubEventSink{}

	rt, err := NewRelayRuntime(testConfig(),
		WithLogger(quietLogger()),
		WithEmitter(em),
		WithObservability(&stubObservability{}),
		WithEventSink(events),
	)
	if err != nil {
		t.Fatalf("NewRelayRuntime returned error: %v", err)
	}
	ext := rt.External()

	errCh := make(chan error, 1)
	go func() { errCh <- rt.Run(context.Background()) }()

	select {
	case <-ext.Opened():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session open")
	}

	if err := ext.Publish(72); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	waitFor(t, func() bool { return len(em.emitted()) == 1 })

	ext.Drop(errors.New("strap removed"))
	waitFor(t, func() bool { return ext.Publish(80) == nil })
	waitFor(t, func() bool { return len(em.emitted()) == 2 })

	rt.Stop()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Run to return")
	}

	got := em.emitted()
	if got[0] != 72 || got[1] != 80 {
		t.Fatalf("unexpected emitted values %v", got)
	}
	if em.absentCount() != 1 {
		t.Fatalf("expected one presence=false on stop, got %d", em.absentCount())
	}
	if rt.State() != StateStopped {
		t.Fatalf("expected stopped state, got %s", rt.State())
	}
	if !events.has(func(ev StatusEvent) bool { return ev.Kind == EventTransportError }) {
		t.Fatalf("expected a transport_error event after Drop")
	}
	if !events.has(func(ev StatusEvent) bool { return ev.Kind == EventState && ev.State == StateStopped }) {
		t.Fatalf("expected the stopped state event to be flushed before Run returned")
	}
	if err := ext.Publish(90); !errors.Is(err, ErrNotStreaming) {
		t.Fatalf("expected ErrNotStreaming after stop, got %v", err)
	}
}

func TestRelayRuntimeRunsOnce(t *testing.T) {
	rt, err := NewRelayRuntime(testConfig(), WithLogger(quietLogger()), WithEmitter(&recordingEmitter{}))
	if err != nil {
		t.Fatalf("NewRelayRuntime returned error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rt.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if err := rt.Run(context.Background()); !errors.Is(err, errRuntimeStarted) {
		t.Fatalf("expected errRuntimeStarted, got %v", err)
	}
	if err := rt.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
}

func TestShutdownBeforeRun(t *testing.T) {
	rt, err := NewRelayRuntime(testConfig(), WithLogger(quietLogger()), WithEmitter(&recordingEmitter{}))
	if err != nil {
		t.Fatalf("NewRelayRuntime returned error: %v", err)
	}
	if err := rt.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	rt, err := NewRelayRuntime(testConfig(),
		WithLogger(quietLogger()),
		WithEmitter(&recordingEmitter{}),
		WithRegistry(reg),
	)
	if err != nil {
		t.Fatalf("NewRelayRuntime returned error: %v", err)
	}
	if rt.Registry() != reg {
		t.Fatalf("expected custom registry to be used")
	}

	rec := httptest.NewRecorder()
	rt.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "hr_connection_state") {
		t.Fatalf("expected relay metrics in exposition, got:\n%s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	rt.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "idle" {
		t.Fatalf("unexpected healthz response %d %q", rec.Code, rec.Body.String())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
