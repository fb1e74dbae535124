package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Resolver maps an event addressee to the entity that handles it.
type Resolver interface {
	Lookup(h Handle) (Actor, error)
}

// Loop is the discrete-event kernel: a clock, the pending EventQueue and
// the dispatcher that delivers events to their addressees in
// (tick, bucket position) order.
//
// Not thread-safe. All inserts and simulate calls must happen on one goroutine.
type Loop struct {
	queue    *EventQueue
	now      int64
	resolver Resolver
	logger   *logrus.Logger
	onTick   func(ts int64)
	metrics  *Metrics

	// last tick counted in TicksCompleted; valid when counted is set
	completed int64
	counted   bool
}

// NewLoop creates a Loop at tick 0. Bind must be called before simulating.
func NewLoop(logger *logrus.Logger) *Loop {
	return &Loop{
		queue:   NewEventQueue(),
		logger:  logger,
		metrics: newMetrics(),
	}
}

// Bind sets the resolver used to find event addressees.
func (l *Loop) Bind(r Resolver) {
	l.resolver = r
}

// OnTickComplete registers the hook run whenever the bucket of the current
// tick drains. Events the hook inserts at the current tick are dispatched
// before the clock advances, and the hook runs again once they drain, so it
// may see the same tick more than once. Metrics.TicksCompleted counts each
// tick once.
func (l *Loop) OnTickComplete(fn func(ts int64)) {
	l.onTick = fn
}

// Now returns the current simulated tick.
func (l *Loop) Now() int64 {
	return l.now
}

// Len returns the number of pending events.
func (l *Loop) Len() int {
	return l.queue.Len()
}

// Metrics returns the loop's run statistics.
func (l *Loop) Metrics() *Metrics {
	return l.metrics
}

// Insert schedules e. With immediate set, e runs before every event already
// queued at e.Time. An event stamped before the current tick is logged and
// discarded.
func (l *Loop) Insert(e *Event, immediate bool) error {
	if e == nil {
		panic("Loop.Insert: event must not be nil")
	}
	if e.Time < l.now {
		l.log().Errorf("discarding %s: tick %d is before current tick %d", e, e.Time, l.now)
		l.metrics.EventsRejected++
		return fmt.Errorf("%w: %d < %d", ErrPastEvent, e.Time, l.now)
	}
	l.queue.Push(e, immediate)
	return nil
}

// SimulateAll dispatches until the queue is empty.
// Returns the number of events popped.
func (l *Loop) SimulateAll() int {
	n := 0
	for l.queue.Len() > 0 {
		l.step()
		n++
	}
	return n
}

// SimulateSteps pops at most n events, cancelled ones included.
// Returns the number of events popped.
func (l *Loop) SimulateSteps(n int) int {
	done := 0
	for done < n && l.queue.Len() > 0 {
		l.step()
		done++
	}
	return done
}

// SimulateUntil dispatches every event stamped at or before ts, then moves
// the clock to ts if it is still behind. Returns the number of events popped.
func (l *Loop) SimulateUntil(ts int64) int {
	n := 0
	for {
		next, ok := l.queue.PeekTime()
		if !ok || next > ts {
			break
		}
		l.step()
		n++
	}
	if l.now < ts {
		l.now = ts
	}
	return n
}

func (l *Loop) step() {
	e := l.queue.Pop()
	l.now = e.Time
	l.metrics.LastTick = e.Time
	if e.cancelled() {
		l.metrics.EventsCancelled++
	} else {
		l.dispatch(e)
	}
	if !l.queue.Pending(l.now) {
		if !l.counted || l.completed != l.now {
			l.metrics.TicksCompleted++
			l.completed, l.counted = l.now, true
		}
		if l.onTick != nil {
			l.onTick(l.now)
		}
	}
}

// dispatch delivers e. A handle that resolves to nothing, or an addressee
// that does not accept the event kind, is a programming error.
func (l *Loop) dispatch(e *Event) {
	if l.resolver == nil {
		panic("Loop.dispatch: no resolver bound")
	}
	actor, err := l.resolver.Lookup(e.Addressee)
	if err != nil {
		panic(fmt.Sprintf("Loop.dispatch: %s: %v", e, err))
	}
	if !actor.Accepts(e.Kind) {
		panic(fmt.Sprintf("Loop.dispatch: %s %q does not accept %s events", actor.Kind(), actor.Name(), e.Kind))
	}
	l.logger.WithField(fieldTick, l.now).Tracef("dispatching %s to %s", e, actor.Name())
	l.metrics.EventsDispatched++
	l.metrics.DispatchedByKind[e.Kind]++
	actor.HandleEvent(e)
}

func (l *Loop) log() *logrus.Entry {
	return entityLog(l.logger, l.now, KindEventLoop, "event-loop")
}
