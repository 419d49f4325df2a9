package intention

import (
	"log"
	"sync"

	"gridcourier/internal/domain"
)

// Queue holds pending intentions. The head is the current commitment;
// pushing a strictly different predicate appends it and stops the
// previous tail so the runner switches at the next tick. Duplicate
// predicates (utility aside) are dropped.
type Queue struct {
	mu     sync.Mutex
	items  []*Intention
	logger *log.Logger

	onEmpty func()
	wake    chan struct{}
}

func NewQueue(logger *log.Logger) *Queue {
	if logger == nil {
		logger = log.Default()
	}
	return &Queue{
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// OnEmpty registers the queue-drain callback, fired by the runner when
// the last intention is consumed.
func (q *Queue) OnEmpty(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onEmpty = fn
}

// Push appends the intention for pred. Returns false for duplicate
// no-ops.
func (q *Queue) Push(pred domain.Predicate) bool {
	q.mu.Lock()
	for _, it := range q.items {
		if it.Predicate.Same(pred) {
			q.mu.Unlock()
			return false
		}
	}
	var preempted *Intention
	if n := len(q.items); n > 0 {
		preempted = q.items[n-1]
	}
	q.items = append(q.items, New(pred))
	q.mu.Unlock()

	if preempted != nil {
		preempted.Stop()
		q.logger.Printf("intention preempted type=%s dest=%s by type=%s dest=%s utility=%.4f",
			preempted.Predicate.Type, preempted.Predicate.Destination.Key(),
			pred.Type, pred.Destination.Key(), pred.Utility)
	}
	q.signal()
	return true
}

// Head returns the current intention without removing it.
func (q *Queue) Head() *Intention {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// Current exposes the head predicate to the option generator so it can
// compare utilities before pushing.
func (q *Queue) Current() (domain.Predicate, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return domain.Predicate{}, false
	}
	return q.items[0].Predicate, true
}

// Pop removes the given intention if it is still the head.
func (q *Queue) Pop(it *Intention) {
	q.mu.Lock()
	if len(q.items) > 0 && q.items[0] == it {
		q.items[0] = nil
		q.items = q.items[1:]
	}
	empty := len(q.items) == 0
	callback := q.onEmpty
	q.mu.Unlock()

	if empty && callback != nil {
		callback()
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Wake returns the channel signalled on every push; the runner selects
// on it to react to revisions without waiting out the tick.
func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}
