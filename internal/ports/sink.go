package ports

import "github.com/xueayi/HeartRate-to-VRC/internal/domain"

// StatusSink receives lifecycle and telemetry events from the supervisor.
// Publish must not block the session for longer than its queue policy allows.
type StatusSink interface {
	Publish(ev domain.StatusEvent)
}

// EventSink consumes batches of status events drained from the queue.
type EventSink interface {
	WriteBatch(events []domain.StatusEvent) error
	Name() string
}
