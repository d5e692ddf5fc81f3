package audio

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultQueueSize is the phrase backlog kept while the worker is busy or paused.
const DefaultQueueSize = 64

// PhraseQueue is a bounded FIFO handoff between the capture loop and the
// transcription worker. Push never blocks: when the queue is full the oldest
// phrase is dropped so capture keeps up with the microphone. Designed for a
// single producer and a single consumer.
type PhraseQueue struct {
	mu    sync.Mutex
	items []Phrase
	max   int
	ready chan struct{}
}

// NewPhraseQueue creates a queue holding at most max phrases.
// A max of zero or less uses DefaultQueueSize.
func NewPhraseQueue(max int) *PhraseQueue {
	if max <= 0 {
		max = DefaultQueueSize
	}
	return &PhraseQueue{
		max:   max,
		ready: make(chan struct{}, 1),
	}
}

// Push appends a phrase without blocking. If the queue is full the oldest
// phrase is dropped and a warning is logged.
func (q *PhraseQueue) Push(p Phrase) {
	q.mu.Lock()
	if len(q.items) >= q.max {
		slog.Warn("phrase queue full, dropping oldest", "seq", q.items[0].Seq, "max", q.max)
		q.items = q.items[1:]
	}
	q.items = append(q.items, p)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Pop removes and returns the oldest phrase, blocking up to timeout for one
// to arrive. The bool is false if the queue stayed empty, which the worker
// uses to re-check session state between waits.
func (q *PhraseQueue) Pop(timeout time.Duration) (Phrase, bool) {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			p := q.items[0]
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				// Keep the signal set for the next Pop.
				select {
				case q.ready <- struct{}{}:
				default:
				}
			}
			return p, true
		}
		q.mu.Unlock()

		remain := time.Until(deadline)
		if remain <= 0 {
			return Phrase{}, false
		}
		timer := time.NewTimer(remain)
		select {
		case <-q.ready:
			timer.Stop()
		case <-timer.C:
			return Phrase{}, false
		}
	}
}

// Len returns the number of queued phrases.
func (q *PhraseQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
