package events

import (
	"log"
	"sync"

	"github.com/homesentry/frigate-bridge/internal/metrics"
)

// Queue is the bounded handoff between the bus I/O task and pipeline workers.
// When full, the oldest undelivered events are dropped so the freshest
// detections survive a detection storm.
type Queue struct {
	mu     sync.Mutex
	items  []*DetectionEvent
	limit  int
	signal chan struct{}
	closed bool
}

func NewQueue(limit int) *Queue {
	if limit <= 0 {
		limit = 64
	}
	return &Queue{
		limit:  limit,
		signal: make(chan struct{}, 1),
	}
}

// Push enqueues an event, evicting the oldest entry on overflow.
func (q *Queue) Push(evt *DetectionEvent) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if len(q.items) >= q.limit {
		dropped := q.items[0]
		q.items = q.items[1:]
		metrics.EventsTotal.WithLabelValues("overflow").Inc()
		log.Printf("[WARN] Intake: queue overflow, dropped event %s (%s)", dropped.EventID, dropped.Camera)
	}
	q.items = append(q.items, evt)
	metrics.QueueDepth.Set(float64(len(q.items)))
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Pop blocks until an event is available or the queue is closed. A nil return
// means the queue was closed and drained.
func (q *Queue) Pop() *DetectionEvent {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			evt := q.items[0]
			q.items = q.items[1:]
			metrics.QueueDepth.Set(float64(len(q.items)))
			// Keep the wakeup pending if more work remains. After Close the
			// signal channel is closed and must not be sent on; drain relies
			// on the closed channel waking every consumer immediately.
			if len(q.items) > 0 && !q.closed {
				select {
				case q.signal <- struct{}{}:
				default:
				}
			}
			q.mu.Unlock()
			return evt
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil
		}
		<-q.signal
	}
}

// Close wakes all blocked consumers once remaining items are drained.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	close(q.signal)
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
