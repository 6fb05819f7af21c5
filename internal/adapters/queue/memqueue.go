package queue

import (
	"sync"

	"github.com/xueayi/HeartRate-to-VRC/internal/domain"
	"github.com/xueayi/HeartRate-to-VRC/internal/ports"
)

// MemQueue is a bounded in-memory FIFO of status events.
type MemQueue struct {
	mu   sync.Mutex
	data []domain.StatusEvent
	cap  int
}

func NewMemQueue(capacity int) *MemQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemQueue{
		data: make([]domain.StatusEvent, 0, capacity),
		cap:  capacity,
	}
}

func (q *MemQueue) Enqueue(ev domain.StatusEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) >= q.cap {
		return false
	}
	q.data = append(q.data, ev)
	return true
}

func (q *MemQueue) DequeueBatch(max int) []domain.StatusEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	if max <= 0 || max > len(q.data) {
		max = len(q.data)
	}
	out := make([]domain.StatusEvent, max)
	copy(out, q.data[:max])
	// drop references held by the backing array
	n := copy(q.data, q.data[max:])
	for i := n; i < len(q.data); i++ {
		q.data[i] = domain.StatusEvent{}
	}
	q.data = q.data[:n]
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

var _ ports.EventQueue = (*MemQueue)(nil)
