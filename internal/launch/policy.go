// Package launch decides where resolver work runs.
//
// A Policy receives tasks through Schedule. The resolution engine only ever
// schedules tasks owned by a Future, and a Future which has not been started
// by the time it is awaited runs on the awaiting goroutine. Policies may
// therefore leave work queued without risking a deadlock when tasks await
// each other.
package launch

import (
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Policy schedules tasks.
type Policy interface {
	Schedule(run func())
}

type syncPolicy struct{}

func (syncPolicy) Schedule(run func()) { run() }

// Sync runs every task inline, before Schedule returns.
var Sync Policy = syncPolicy{}

type goroutinePolicy struct{}

func (goroutinePolicy) Schedule(run func()) { go run() }

// Goroutine runs every task on a goroutine of its own.
var Goroutine Policy = goroutinePolicy{}

// IsSync reports whether p runs tasks inline. A nil policy counts as Sync.
func IsSync(p Policy) bool {
	if p == nil {
		return true
	}
	_, ok := p.(syncPolicy)
	return ok
}

// Or returns p, or Sync when p is nil.
func Or(p Policy) Policy {
	if p == nil {
		return Sync
	}
	return p
}

// Queue runs tasks on a fixed set of worker goroutines draining a shared
// queue.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []func()
	closed bool
	wg     sync.WaitGroup
}

// NewQueue starts workers goroutines. Close must be called to stop them.
func NewQueue(workers int) *Queue {
	if workers < 1 {
		workers = 1
	}
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.work()
	}
	return q
}

// Schedule appends run to the queue. After Close, run executes inline.
func (q *Queue) Schedule(run func()) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		run()
		return
	}
	q.tasks = append(q.tasks, run)
	q.mu.Unlock()
	q.cond.Signal()
}

func (q *Queue) work() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return
		}
		run := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()
		run()
	}
}

// Close drains the queue and waits for the workers to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
	q.wg.Wait()
}

// Bounded runs at most n tasks on goroutines at once. Tasks which find no
// free slot stay pending until their Future is awaited.
type Bounded struct {
	sem *semaphore.Weighted
}

func NewBounded(n int64) *Bounded {
	if n < 1 {
		n = 1
	}
	return &Bounded{sem: semaphore.NewWeighted(n)}
}

func (b *Bounded) Schedule(run func()) {
	if !b.sem.TryAcquire(1) {
		return
	}
	go func() {
		defer b.sem.Release(1)
		run()
	}()
}

// deadlinePolicy runs every task on its own goroutine and fails its Future
// once the timeout elapses.
type deadlinePolicy struct {
	timeout time.Duration
}

// WithDeadline returns a policy whose tasks fail with ErrDeadlineExceeded
// when they run longer than timeout. The task itself keeps running.
func WithDeadline(timeout time.Duration) Policy {
	return deadlinePolicy{timeout: timeout}
}

func (deadlinePolicy) Schedule(run func()) { go run() }
