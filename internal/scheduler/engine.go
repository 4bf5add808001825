// Package scheduler runs state-changing jobs on a single goroutine, in due
// time order, so completions that arrive concurrently are applied one at a
// time.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrInvalidRunTime = errors.New("scheduler: invalid run time")
	ErrStopped        = errors.New("scheduler: engine stopped")
	ErrSuperseded     = errors.New("scheduler: job superseded")
)

// Applied is emitted after a job has run.
type Applied struct {
	Seq   uint64
	Name  string
	Key   string
	RanAt time.Time
	Err   error
}

type job struct {
	seq      uint64
	name     string
	key      string
	runAt    time.Time
	fn       func() error
	done     chan error
	canceled atomic.Bool
}

type priorityQueue []*job

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].runAt.Equal(pq[j].runAt) {
		return pq[i].seq < pq[j].seq
	}
	return pq[i].runAt.Before(pq[j].runAt)
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
}

func (pq *priorityQueue) Push(x any) {
	*pq = append(*pq, x.(*job))
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[0 : n-1]
	return item
}

type Engine struct {
	mu      sync.Mutex
	queue   priorityQueue
	latest  map[string]uint64
	seq     uint64
	out     chan Applied
	wakeup  chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool
	dropped uint64
	logger  *slog.Logger
	now     func() time.Time
}

func NewEngine(bufferSize int, logger *slog.Logger) *Engine {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		queue:  make(priorityQueue, 0),
		latest: make(map[string]uint64),
		out:    make(chan Applied, bufferSize),
		wakeup: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		logger: logger.With("component", "scheduler"),
		now:    time.Now,
	}
}

// C delivers a notice per applied job. Notices are dropped, not queued,
// when the reader falls behind.
func (e *Engine) C() <-chan Applied {
	return e.out
}

func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true
	heap.Init(&e.queue)
	go e.loop()
}

// Stop halts the loop. Jobs still pending are discarded and their waiters
// get ErrStopped.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.stopped = true
		e.mu.Unlock()
		return
	}
	e.stopped = true
	close(e.stopCh)
	e.mu.Unlock()
	<-e.doneCh

	e.mu.Lock()
	pending := e.queue
	e.queue = nil
	e.mu.Unlock()
	for _, j := range pending {
		j.finish(ErrStopped)
	}
}

// Submit queues fn to run as soon as the loop is free.
func (e *Engine) Submit(name string, fn func() error) error {
	_, err := e.enqueue(name, "", e.now(), fn)
	return err
}

// SubmitAt queues fn to run at or after at.
func (e *Engine) SubmitAt(name string, at time.Time, fn func() error) error {
	_, err := e.enqueue(name, "", at, fn)
	return err
}

// Debounce queues fn after delay. A later Debounce with the same key
// replaces a pending one, so a burst of calls runs fn once.
func (e *Engine) Debounce(key string, delay time.Duration, fn func() error) error {
	if key == "" {
		return fmt.Errorf("scheduler: debounce key is required")
	}
	_, err := e.enqueue(key, key, e.now().Add(delay), fn)
	return err
}

// Do runs fn on the loop and waits for it. If ctx ends first the job is
// canceled when it has not started yet.
func (e *Engine) Do(ctx context.Context, name string, fn func() error) error {
	j, err := e.enqueue(name, "", e.now(), fn)
	if err != nil {
		return err
	}
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		j.canceled.Store(true)
		return ctx.Err()
	}
}

func (e *Engine) Dropped() uint64 {
	return atomic.LoadUint64(&e.dropped)
}

// Pending reports how many jobs are waiting.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

func (e *Engine) enqueue(name, key string, at time.Time, fn func() error) (*job, error) {
	if at.IsZero() {
		return nil, ErrInvalidRunTime
	}
	if fn == nil {
		return nil, fmt.Errorf("scheduler: nil job %q", name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return nil, ErrStopped
	}
	e.seq++
	j := &job{seq: e.seq, name: name, key: key, runAt: at, fn: fn, done: make(chan error, 1)}
	if key != "" {
		e.latest[key] = j.seq
	}
	heap.Push(&e.queue, j)
	e.signalWakeup()
	return j, nil
}

func (e *Engine) loop() {
	defer close(e.doneCh)
	defer close(e.out)

	var timer *time.Timer
	for {
		next, hasNext := e.peek()
		if !hasNext {
			select {
			case <-e.wakeup:
				continue
			case <-e.stopCh:
				return
			}
		}

		wait := next.Sub(e.now())
		if wait < 0 {
			wait = 0
		}
		timer = resetTimer(timer, wait)

		select {
		case <-timer.C:
			for _, j := range e.popDue(e.now()) {
				e.run(j)
			}
		case <-e.wakeup:
			continue
		case <-e.stopCh:
			if timer != nil {
				stopTimer(timer)
			}
			return
		}
	}
}

func (e *Engine) run(j *job) {
	if j.canceled.Load() {
		j.finish(context.Canceled)
		return
	}
	if j.key != "" && !e.isLatest(j) {
		j.finish(ErrSuperseded)
		return
	}

	err := e.call(j)
	if err != nil {
		e.logger.Warn("job failed", "job", j.name, "seq", j.seq, "error", err)
	}
	j.finish(err)

	select {
	case e.out <- Applied{Seq: j.seq, Name: j.name, Key: j.key, RanAt: e.now(), Err: err}:
	default:
		atomic.AddUint64(&e.dropped, 1)
	}
}

func (e *Engine) call(j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler: job %q panicked: %v", j.name, r)
		}
	}()
	return j.fn()
}

func (e *Engine) isLatest(j *job) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.latest[j.key] != j.seq {
		return false
	}
	delete(e.latest, j.key)
	return true
}

func (j *job) finish(err error) {
	select {
	case j.done <- err:
	default:
	}
}

func (e *Engine) signalWakeup() {
	select {
	case e.wakeup <- struct{}{}:
	default:
	}
}

func (e *Engine) peek() (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return time.Time{}, false
	}
	return e.queue[0].runAt, true
}

func (e *Engine) popDue(now time.Time) []*job {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*job, 0)
	for len(e.queue) > 0 {
		next := e.queue[0]
		if next.runAt.After(now) {
			break
		}
		out = append(out, heap.Pop(&e.queue).(*job))
	}
	return out
}

func resetTimer(timer *time.Timer, d time.Duration) *time.Timer {
	if timer == nil {
		return time.NewTimer(d)
	}
	stopTimer(timer)
	timer.Reset(d)
	return timer
}

func stopTimer(timer *time.Timer) {
	if timer == nil {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
