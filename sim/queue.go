// Implements the EventQueue, which holds all pending events keyed by tick.
// Events sharing a tick are kept in a FIFO bucket; immediate insertion
// prepends to that bucket.

package sim

import (
	"container/heap"
	"fmt"
	"strings"
)

// bucket is the FIFO of events pending at a single tick.
type bucket struct {
	events []*Event
}

// Enqueue adds an event to the back of the bucket.
func (b *bucket) Enqueue(e *Event) {
	b.events = append(b.events, e)
}

// PrependFront inserts an event at the front of the bucket.
// Used for immediate insertion: a causally triggered reaction runs before
// siblings already queued at the same tick.
func (b *bucket) PrependFront(e *Event) {
	b.events = append([]*Event{e}, b.events...)
}

// DequeueFront removes and returns the front event. Returns nil if empty.
func (b *bucket) DequeueFront() *Event {
	if len(b.events) == 0 {
		return nil
	}
	e := b.events[0]
	b.events[0] = nil
	b.events = b.events[1:]
	return e
}

func (b *bucket) Len() int {
	return len(b.events)
}

// tickHeap is a min-heap of the distinct ticks that own a bucket.
// Implements heap.Interface.
type tickHeap []int64

func (h tickHeap) Len() int           { return len(h) }
func (h tickHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h tickHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *tickHeap) Push(x any) {
	*h = append(*h, x.(int64))
}

func (h *tickHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// EventQueue orders events by (tick, position in the tick's bucket).
// It does not validate timestamps; Loop.Insert does.
type EventQueue struct {
	ticks   tickHeap
	buckets map[int64]*bucket
	size    int
}

// NewEventQueue creates an empty EventQueue.
func NewEventQueue() *EventQueue {
	return &EventQueue{buckets: make(map[int64]*bucket)}
}

// Push adds e to the bucket for e.Time, at the front when immediate is set.
func (q *EventQueue) Push(e *Event, immediate bool) {
	if e == nil {
		panic("EventQueue.Push: event must not be nil")
	}
	b, ok := q.buckets[e.Time]
	if !ok {
		b = &bucket{}
		q.buckets[e.Time] = b
		heap.Push(&q.ticks, e.Time)
	}
	if immediate {
		b.PrependFront(e)
	} else {
		b.Enqueue(e)
	}
	q.size++
}

// PeekTime returns the earliest pending tick. ok is false when the queue is empty.
func (q *EventQueue) PeekTime() (ts int64, ok bool) {
	if len(q.ticks) == 0 {
		return 0, false
	}
	return q.ticks[0], true
}

// Pop removes the front event of the earliest bucket, releasing the bucket
// once it is empty. Returns nil if the queue is empty.
func (q *EventQueue) Pop() *Event {
	if len(q.ticks) == 0 {
		return nil
	}
	ts := q.ticks[0]
	b := q.buckets[ts]
	e := b.DequeueFront()
	q.size--
	if b.Len() == 0 {
		heap.Pop(&q.ticks)
		delete(q.buckets, ts)
	}
	return e
}

// Pending reports whether a bucket exists for ts.
func (q *EventQueue) Pending(ts int64) bool {
	_, ok := q.buckets[ts]
	return ok
}

// Len returns the number of pending events.
func (q *EventQueue) Len() int {
	return q.size
}

func (q *EventQueue) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, ts := range q.ticks {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(fmt.Sprintf("%d:%d", ts, q.buckets[ts].Len()))
	}
	sb.WriteString("]")
	return sb.String()
}
