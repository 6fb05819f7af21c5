package statuslog

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/xueayi/HeartRate-to-VRC/internal/domain"
)

func TestSinkRendersEvents(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetLevel(logrus.DebugLevel)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})

	err := New(log).WriteBatch([]domain.StatusEvent{
		{Kind: domain.EventState, State: domain.StateStreaming, Message: "connecting -> streaming", SessionID: "s-1"},
		{Kind: domain.EventTelemetry, State: domain.StateStreaming, Triple: &domain.OscTriple{Presence: true, IntValue: 80, FloatValue: 80.0 / 190.0}},
		{Kind: domain.EventTransportError, Err: errors.New("reset by peer")},
	})
	if err != nil {
		t.Fatalf("write batch: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 log lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "level=info") || !strings.Contains(lines[0], "session=s-1") {
		t.Fatalf("unexpected state line %q", lines[0])
	}
	if !strings.Contains(lines[1], "bpm=80") || !strings.Contains(lines[1], "float=0.42") {
		t.Fatalf("unexpected telemetry line %q", lines[1])
	}
	if !strings.Contains(lines[2], "level=error") || !strings.Contains(lines[2], "reset by peer") {
		t.Fatalf("unexpected error line %q", lines[2])
	}
}
