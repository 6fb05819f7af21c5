package ports

import "github.com/xueayi/HeartRate-to-VRC/internal/domain"

// EventQueue is the bounded buffer between the supervisor and event sinks.
type EventQueue interface {
	Enqueue(ev domain.StatusEvent) bool
	DequeueBatch(max int) []domain.StatusEvent
	Len() int
}
