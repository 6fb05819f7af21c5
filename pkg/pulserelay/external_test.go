package pulserelay

import (
	"context"
	"errors"
	"testing"

	"github.com/xueayi/HeartRate-to-VRC/internal/domain"
)

func TestExternalSourcePublishRequiresSession(t *testing.T) {
	ext := NewExternalSource()
	if err := ext.Publish(70); !errors.Is(err, ErrNotStreaming) {
		t.Fatalf("expected ErrNotStreaming before Open, got %v", err)
	}
	if ext.Kind() != domain.TransportExternal {
		t.Fatalf("unexpected kind %s", ext.Kind())
	}
}

func TestExternalSourcePublishesJSONPayloads(t *testing.T) {
	ext := NewExternalSource()
	sess, err := ext.Open(context.Background())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	select {
	case <-ext.Opened():
	default:
		t.Fatalf("expected Opened to be closed after Open")
	}

	if err := ext.Publish(64); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	p := <-sess.Payloads()
	if p.Encoding != domain.EncodingJSON {
		t.Fatalf("expected json encoding, got %s", p.Encoding)
	}
	if string(p.Data) != `{"data":{"heartRate":64}}` {
		t.Fatalf("unexpected payload %s", p.Data)
	}
	if p.ReceivedAt.IsZero() {
		t.Fatalf("expected receive timestamp")
	}

	if err := sess.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := ext.Publish(65); !errors.Is(err, ErrNotStreaming) {
		t.Fatalf("expected ErrNotStreaming after Close, got %v", err)
	}
}

func TestExternalSourceDropFailsSession(t *testing.T) {
	ext := NewExternalSource()
	sess, err := ext.Open(context.Background())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	ext.Drop(nil)
	if _, ok := <-sess.Payloads(); ok {
		t.Fatalf("expected payload channel to be closed")
	}
	if !errors.Is(sess.Err(), domain.ErrTransport) {
		t.Fatalf("expected transport error, got %v", sess.Err())
	}
	ext.Drop(nil)
}

func TestExternalSourceOpenSupersedesPrevious(t *testing.T) {
	ext := NewExternalSource()
	first, _ := ext.Open(context.Background())
	second, err := ext.Open(context.Background())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if !errors.Is(first.Err(), domain.ErrTransport) {
		t.Fatalf("expected first session to fail, got %v", first.Err())
	}
	if err := ext.Publish(70); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if p := <-second.Payloads(); string(p.Data) != `{"data":{"heartRate":70}}` {
		t.Fatalf("unexpected payload %s", p.Data)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ext.Open(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
