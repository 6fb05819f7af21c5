package ports

import (
	"context"
	"time"

	"github.com/xueayi/HeartRate-to-VRC/internal/domain"
)

// TransportSource opens heart-rate sessions on one kind of transport.
// Prepare runs once per supervisor run (BLE discovery, widget resolution) and
// its failure is terminal; Open is retried after every session loss.
type TransportSource interface {
	Kind() domain.TransportKind
	Prepare(ctx context.Context) (domain.DeviceDescriptor, error)
	Open(ctx context.Context) (Session, error)
}

// Session yields raw payloads until it is closed or fails. Payloads is closed
// when the session ends; Err then reports nil for a clean close or an error
// wrapping domain.ErrTransport.
type Session interface {
	Payloads() <-chan domain.RawPayload
	Err() error
	Close() error
}

// Scanner is the platform scan primitive used by discovery. One call is one
// pass: it returns the devices seen during window in discovery order.
type Scanner interface {
	Scan(ctx context.Context, window time.Duration) ([]domain.DeviceDescriptor, error)
}

// WidgetResolver maps a widget identifier to a push-socket URL.
type WidgetResolver interface {
	Resolve(ctx context.Context, widgetID string) (string, error)
}
