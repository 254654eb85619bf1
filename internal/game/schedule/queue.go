package schedule

import (
	"container/heap"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskID identifies a scheduled task. The zero value is never issued.
type TaskID uint64

// Scheduler is the deferred-callback contract consumed by the loot engine.
type Scheduler interface {
	// Schedule runs fn once after delay, or every delay when repeat is set.
	Schedule(fn func(), delay time.Duration, repeat bool) TaskID
	// Cancel removes a pending task; it reports whether one was removed.
	Cancel(id TaskID) bool
	// Now returns the scheduler's current time.
	Now() time.Time
}

type task struct {
	id     TaskID
	fn     func()
	due    time.Time
	period time.Duration
	seq    uint64
	index  int
}

type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}
func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *taskHeap) Push(x any) {
	t := x.(*task)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Queue is a Scheduler whose tasks run only inside RunDue. Tasks due at the
// same instant run in scheduling order.
//
// Schedule, Cancel and Post are safe from any goroutine. RunDue must be
// called from one goroutine at a time; every task runs on that goroutine.
type Queue struct {
	mu     sync.Mutex
	clock  Clock
	tasks  taskHeap
	byID   map[TaskID]*task
	posted []func()
	nextID TaskID
	seq    uint64
	logger *zap.Logger
}

// NewQueue returns an empty Queue driven by clock.
//
// Precondition: clock and logger must be non-nil.
func NewQueue(clock Clock, logger *zap.Logger) *Queue {
	return &Queue{
		clock:  clock,
		byID:   make(map[TaskID]*task),
		logger: logger,
	}
}

// Now returns the queue clock's time.
func (q *Queue) Now() time.Time {
	return q.clock.Now()
}

// Schedule implements Scheduler. A negative delay is treated as zero.
//
// Precondition: fn must be non-nil; a repeating task needs delay > 0.
// Postcondition: Returns a new non-zero TaskID.
func (q *Queue) Schedule(fn func(), delay time.Duration, repeat bool) TaskID {
	if fn == nil {
		panic("schedule.Queue.Schedule: fn must be non-nil")
	}
	if repeat && delay <= 0 {
		panic(fmt.Sprintf("schedule.Queue.Schedule: repeating task needs a positive period, got %s", delay))
	}
	if delay < 0 {
		delay = 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	q.seq++
	t := &task{id: q.nextID, fn: fn, due: q.clock.Now().Add(delay), seq: q.seq}
	if repeat {
		t.period = delay
	}
	heap.Push(&q.tasks, t)
	q.byID[t.id] = t
	return t.id
}

// Cancel implements Scheduler.
func (q *Queue) Cancel(id TaskID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.byID[id]
	if !ok {
		return false
	}
	delete(q.byID, id)
	if t.index >= 0 {
		heap.Remove(&q.tasks, t.index)
	}
	return true
}

// Post queues fn to run at the start of the next RunDue. It is how other
// goroutines hand work to the tick goroutine.
func (q *Queue) Post(fn func()) {
	q.mu.Lock()
	q.posted = append(q.posted, fn)
	q.mu.Unlock()
}

// Len returns the number of pending scheduled tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// NextDue returns the due time of the earliest pending task.
func (q *Queue) NextDue() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return time.Time{}, false
	}
	return q.tasks[0].due, true
}

// RunDue runs posted functions, then every task due at the current clock
// time in due order. A repeating task is re-armed one period after its
// previous due time before it runs, so a lagging clock catches up.
// Tasks scheduled while draining run in the same call if already due.
//
// Postcondition: Returns the number of functions run.
func (q *Queue) RunDue() int {
	q.mu.Lock()
	posted := q.posted
	q.posted = nil
	q.mu.Unlock()

	ran := 0
	for _, fn := range posted {
		q.run(0, fn)
		ran++
	}

	now := q.clock.Now()
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 || q.tasks[0].due.After(now) {
			q.mu.Unlock()
			return ran
		}
		t := q.tasks[0]
		if t.period > 0 {
			t.due = t.due.Add(t.period)
			q.seq++
			t.seq = q.seq
			heap.Fix(&q.tasks, 0)
		} else {
			heap.Pop(&q.tasks)
			delete(q.byID, t.id)
		}
		q.mu.Unlock()

		q.run(t.id, t.fn)
		ran++
	}
}

func (q *Queue) run(id TaskID, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("scheduled task panicked",
				zap.Uint64("task_id", uint64(id)),
				zap.Any("panic", r),
			)
		}
	}()
	fn()
}

// Advance moves clock forward by d, stopping at every intermediate due time
// so tasks observe the clock reading they were scheduled for.
//
// Postcondition: clock reads its previous time plus d; returns the number
// of functions run.
func Advance(q *Queue, clock *VirtualClock, d time.Duration) int {
	target := clock.Now().Add(d)
	ran := q.RunDue()
	for {
		due, ok := q.NextDue()
		if !ok || due.After(target) {
			break
		}
		clock.Set(due)
		ran += q.RunDue()
	}
	clock.Set(target)
	return ran + q.RunDue()
}
