// Package reminders turns open alerts into timed deliveries.
package reminders

import (
	"container/heap"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xvierd/cadence/internal/domain"
	"github.com/xvierd/cadence/internal/ports"
)

var (
	ErrInvalidFireTime = errors.New("reminders: invalid fire time")
	ErrEngineStopped   = errors.New("reminders: engine stopped")
)

// alertKey identifies an alert regardless of when it fires.
func alertKey(r ports.Reminder) string {
	return r.InstanceID + "/" + r.AlertID
}

// slot is the queued firing of one alert.
type slot struct {
	reminder ports.Reminder
	index    int
}

// fireQueue orders slots by fire time; each slot tracks its own index so a
// moved or withdrawn alert can be fixed in place.
type fireQueue []*slot

func (q fireQueue) Len() int { return len(q) }

func (q fireQueue) Less(i, j int) bool {
	return q[i].reminder.FireAt.Before(q[j].reminder.FireAt)
}

func (q fireQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *fireQueue) Push(x any) {
	s := x.(*slot)
	s.index = len(*q)
	*q = append(*q, s)
}

func (q *fireQueue) Pop() any {
	old := *q
	n := len(old)
	s := old[n-1]
	old[n-1] = nil
	s.index = -1
	*q = old[:n-1]
	return s
}

// timerFunc arms a one-shot wake-up after d and returns its channel and a
// stop function.
type timerFunc func(d time.Duration) (<-chan time.Time, func() bool)

func realTimer(d time.Duration) (<-chan time.Time, func() bool) {
	t := time.NewTimer(d)
	return t.C, t.Stop
}

// Engine keeps at most one queued firing per alert, ordered by fire time,
// and emits each on C() once the clock reaches it. Scheduling an alert that
// is already queued at another time moves it, so snoozes and reschedules
// replace the earlier firing. Emission never blocks: when the consumer lags,
// reminders are dropped and counted.
type Engine struct {
	clock domain.Clock
	timer timerFunc

	mu      sync.Mutex
	queue   fireQueue
	slots   map[string]*slot
	out     chan ports.Reminder
	wakeup  chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool
	dropped atomic.Uint64
}

// NewEngine creates an engine reading the time from clock whose output
// channel buffers bufferSize reminders.
func NewEngine(clock domain.Clock, bufferSize int) *Engine {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Engine{
		clock:  clock,
		timer:  realTimer,
		slots:  make(map[string]*slot),
		out:    make(chan ports.Reminder, bufferSize),
		wakeup: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// C returns the channel due reminders are sent on. It is closed by Stop.
func (e *Engine) C() <-chan ports.Reminder {
	return e.out
}

// Start launches the wait loop.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true
	go e.loop()
}

// Stop ends the wait loop and waits for it to exit.
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
}

// Schedule queues r. It reports whether the queue changed: false means the
// alert was already queued for the same firing.
func (e *Engine) Schedule(r ports.Reminder) (bool, error) {
	if r.FireAt.IsZero() {
		return false, ErrInvalidFireTime
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return false, ErrEngineStopped
	}

	if s, ok := e.slots[alertKey(r)]; ok {
		if s.reminder.Key() == r.Key() {
			return false, nil
		}
		s.reminder = r
		heap.Fix(&e.queue, s.index)
	} else {
		s := &slot{reminder: r}
		e.slots[alertKey(r)] = s
		heap.Push(&e.queue, s)
	}
	e.signalWakeup()
	return true, nil
}

// Retain withdraws every queued alert missing from open and returns how many
// were withdrawn. Alerts dismissed or completed elsewhere leave the queue
// this way.
func (e *Engine) Retain(open []ports.Reminder) int {
	keep := make(map[string]bool, len(open))
	for _, r := range open {
		keep[alertKey(r)] = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	removed := 0
	for key, s := range e.slots {
		if keep[key] {
			continue
		}
		heap.Remove(&e.queue, s.index)
		delete(e.slots, key)
		removed++
	}
	if removed > 0 {
		e.signalWakeup()
	}
	return removed
}

// Next returns the earliest queued firing.
func (e *Engine) Next() (ports.Reminder, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return ports.Reminder{}, false
	}
	return e.queue[0].reminder, true
}

// Pending returns the number of queued alerts.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Dropped returns the number of reminders discarded because C() was full.
func (e *Engine) Dropped() uint64 {
	return e.dropped.Load()
}

// Flush emits every firing due at now and returns how many were due.
func (e *Engine) Flush(now domain.Moment) int {
	due := e.popDue(now)
	for _, r := range due {
		select {
		case e.out <- r:
		default:
			e.dropped.Add(1)
		}
	}
	return len(due)
}

func (e *Engine) loop() {
	defer close(e.doneCh)
	defer close(e.out)

	for {
		e.Flush(e.clock.Now())

		next, ok := e.Next()
		if !ok {
			select {
			case <-e.wakeup:
				continue
			case <-e.stopCh:
				return
			}
		}

		fire, stop := e.timer(next.FireAt.Sub(e.clock.Now()))
		select {
		case <-fire:
		case <-e.wakeup:
			stop()
		case <-e.stopCh:
			stop()
			return
		}
	}
}

func (e *Engine) signalWakeup() {
	select {
	case e.wakeup <- struct{}{}:
	default:
	}
}

func (e *Engine) popDue(now domain.Moment) []ports.Reminder {
	e.mu.Lock()
	defer e.mu.Unlock()

	var due []ports.Reminder
	for len(e.queue) > 0 && !e.queue[0].reminder.FireAt.After(now) {
		s := heap.Pop(&e.queue).(*slot)
		delete(e.slots, alertKey(s.reminder))
		due = append(due, s.reminder)
	}
	return due
}
