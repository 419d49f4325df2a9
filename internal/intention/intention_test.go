package intention

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gridcourier/internal/domain"
)

type scriptedPlan struct {
	err     error
	ran     *int32
	stopped *int32
	block   chan struct{}
}

func (p *scriptedPlan) Execute(ctx context.Context, pred domain.Predicate) error {
	atomic.AddInt32(p.ran, 1)
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return p.err
}

func (p *scriptedPlan) Stop() {
	if p.stopped != nil {
		atomic.AddInt32(p.stopped, 1)
	}
	if p.block != nil {
		close(p.block)
	}
}

func alwaysApplies(domain.DesireType) bool { return true }

func singlePlanLibrary(err error, ran *int32) Library {
	return Library{{
		AppliesTo: alwaysApplies,
		New:       func(*Intention) Plan { return &scriptedPlan{err: err, ran: ran} },
	}}
}

func TestQueueDuplicatePushIsNoOp(t *testing.T) {
	q := NewQueue(nil)
	pred := domain.Predicate{Type: domain.DesirePickup, Destination: domain.Point{X: 1}, ParcelID: "p1", Utility: 1}

	if !q.Push(pred) {
		t.Fatalf("first push must succeed")
	}
	dup := pred
	dup.Utility = 99 // utility is ignored by duplicate detection
	if q.Push(dup) {
		t.Fatalf("duplicate push must be a no-op")
	}
	if q.Len() != 1 {
		t.Fatalf("queue length = %d", q.Len())
	}
}

func TestQueuePushStopsPreviousTail(t *testing.T) {
	q := NewQueue(nil)
	q.Push(domain.Predicate{Type: domain.DesireExploration, Destination: domain.Point{X: 1}})
	head := q.Head()

	q.Push(domain.Predicate{Type: domain.DesirePickup, Destination: domain.Point{X: 2}, ParcelID: "p"})
	if !head.Stopped() {
		t.Fatalf("previous tail must be stopped on push")
	}
	if q.Len() != 2 {
		t.Fatalf("queue length = %d", q.Len())
	}
}

func TestAchieveRunsFirstApplicablePlan(t *testing.T) {
	var ran int32
	it := New(domain.Predicate{Type: domain.DesireGoTo})
	if err := it.Achieve(context.Background(), singlePlanLibrary(nil, &ran)); err != nil {
		t.Fatalf("achieve: %v", err)
	}
	if ran != 1 {
		t.Fatalf("plan ran %d times", ran)
	}
	if !it.Finished() {
		t.Fatalf("intention must be finished")
	}
}

func TestAchieveTriesNextPlanOnError(t *testing.T) {
	var first, second int32
	lib := Library{
		{AppliesTo: alwaysApplies, New: func(*Intention) Plan {
			return &scriptedPlan{err: domain.ErrStateMismatch, ran: &first}
		}},
		{AppliesTo: alwaysApplies, New: func(*Intention) Plan {
			return &scriptedPlan{ran: &second}
		}},
	}
	it := New(domain.Predicate{Type: domain.DesireGoTo})
	if err := it.Achieve(context.Background(), lib); err != nil {
		t.Fatalf("achieve: %v", err)
	}
	if first != 1 || second != 1 {
		t.Fatalf("plan attempts = %d, %d", first, second)
	}
}

func TestAchieveNoApplicablePlan(t *testing.T) {
	lib := Library{{
		AppliesTo: func(tp domain.DesireType) bool { return tp == domain.DesireDeliver },
		New:       func(*Intention) Plan { return &scriptedPlan{ran: new(int32)} },
	}}
	it := New(domain.Predicate{Type: domain.DesirePickup, ParcelID: "p"})
	if err := it.Achieve(context.Background(), lib); !errors.Is(err, domain.ErrNoApplicablePlan) {
		t.Fatalf("err = %v, want ErrNoApplicablePlan", err)
	}
}

func TestAchieveObservesStopBeforeStart(t *testing.T) {
	var ran int32
	it := New(domain.Predicate{Type: domain.DesireGoTo})
	it.Stop()
	if err := it.Achieve(context.Background(), singlePlanLibrary(nil, &ran)); !errors.Is(err, domain.ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
	if ran != 0 {
		t.Fatalf("stopped intention must not run plans")
	}
}

func TestStopPropagatesToRunningPlan(t *testing.T) {
	var ran, stopped int32
	block := make(chan struct{})
	lib := Library{{
		AppliesTo: alwaysApplies,
		New: func(*Intention) Plan {
			return &scriptedPlan{err: domain.ErrStopped, ran: &ran, stopped: &stopped, block: block}
		},
	}}
	it := New(domain.Predicate{Type: domain.DesireGoTo})

	done := make(chan error, 1)
	go func() { done <- it.Achieve(context.Background(), lib) }()

	for atomic.LoadInt32(&ran) == 0 {
		time.Sleep(time.Millisecond)
	}
	it.Stop()
	if atomic.LoadInt32(&stopped) == 0 {
		t.Fatalf("stop must reach the running plan")
	}
	if err := <-done; !errors.Is(err, domain.ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
}

func TestRunnerDropsInvalidHeadAndFiresEmptyCallback(t *testing.T) {
	q := NewQueue(nil)
	var ran int32
	lib := singlePlanLibrary(nil, &ran)

	var emptyFired int32
	q.OnEmpty(func() { atomic.AddInt32(&emptyFired, 1) })

	validate := func(p domain.Predicate) bool { return p.Type != domain.DesireDeliver }
	r := NewRunner(q, lib, validate, 5*time.Millisecond, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() { defer wg.Done(); r.Run(ctx) }()

	q.Push(domain.Predicate{Type: domain.DesireDeliver, Destination: domain.Point{X: 1}})
	q.Push(domain.Predicate{Type: domain.DesireGoTo, Destination: domain.Point{X: 2}})

	deadline := time.After(time.Second)
	for atomic.LoadInt32(&emptyFired) == 0 {
		select {
		case <-deadline:
			t.Fatalf("queue never drained: len=%d ran=%d", q.Len(), atomic.LoadInt32(&ran))
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	wg.Wait()

	if atomic.LoadInt32(&ran) == 0 {
		t.Fatalf("valid goto intention never executed")
	}
	if q.Len() != 0 {
		t.Fatalf("queue not drained, len=%d", q.Len())
	}
}

func TestRunnerSingleExecutingInvariant(t *testing.T) {
	q := NewQueue(nil)
	var executing, maxExecuting int32
	lib := Library{{
		AppliesTo: alwaysApplies,
		New: func(*Intention) Plan {
			return planFunc(func(ctx context.Context, pred domain.Predicate) error {
				cur := atomic.AddInt32(&executing, 1)
				for {
					prev := atomic.LoadInt32(&maxExecuting)
					if cur <= prev || atomic.CompareAndSwapInt32(&maxExecuting, prev, cur) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&executing, -1)
				return nil
			})
		},
	}}
	r := NewRunner(q, lib, nil, time.Millisecond, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() { defer wg.Done(); r.Run(ctx) }()

	for i := 0; i < 5; i++ {
		q.Push(domain.Predicate{Type: domain.DesireGoTo, Destination: domain.Point{X: i}})
	}
	time.Sleep(100 * time.Millisecond)
	cancel()
	wg.Wait()

	if got := atomic.LoadInt32(&maxExecuting); got != 1 {
		t.Fatalf("max concurrently executing intentions = %d, want 1", got)
	}
}

type planFunc func(ctx context.Context, pred domain.Predicate) error

func (f planFunc) Execute(ctx context.Context, pred domain.Predicate) error { return f(ctx, pred) }
func (planFunc) Stop()                                                      {}
