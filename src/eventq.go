package dfs

/*------------------------------------------------------------------
 *
 * Purpose:	Fixed pool of radar events shared between the PHY error
 *		path (producer) and the sweep (consumer).
 *
 * Description:	Events live in one arena and are linked by index.  A
 *		handle is on exactly one of the free or pending lists,
 *		or held by the goroutine that took it off a list.  Each
 *		list has its own lock so the producer only ever contends
 *		with the consumer for a moment.
 *
 *		Nothing is allocated after construction.
 *
 *---------------------------------------------------------------*/

import "sync"

// EventHandle indexes the event arena.
type EventHandle int32

const noEvent EventHandle = -1

type eventList struct {
	head, tail EventHandle
	n          int
}

type EventQueue struct {
	events [MaxEvents]radarEvent

	freeMu sync.Mutex
	free   eventList

	pendingMu sync.Mutex
	pending   eventList
}

func NewEventQueue() *EventQueue {
	var q = new(EventQueue)

	q.free = eventList{head: noEvent, tail: noEvent}
	q.pending = eventList{head: noEvent, tail: noEvent}

	for i := range q.events {
		q.push(&q.free, EventHandle(i))
	}

	return q
}

// Caller holds the list lock and owns h.
func (q *EventQueue) push(l *eventList, h EventHandle) {
	q.events[h].next = noEvent

	if l.tail == noEvent {
		l.head = h
	} else {
		q.events[l.tail].next = h
	}

	l.tail = h
	l.n++
}

func (q *EventQueue) pop(l *eventList) (EventHandle, bool) {
	var h = l.head
	if h == noEvent {
		return noEvent, false
	}

	l.head = q.events[h].next
	if l.head == noEvent {
		l.tail = noEvent
	}

	q.events[h].next = noEvent
	l.n--

	return h, true
}

// AcquireFree takes an event from the pool.  False means the pool is
// exhausted.
func (q *EventQueue) AcquireFree() (EventHandle, bool) {
	q.freeMu.Lock()
	defer q.freeMu.Unlock()

	return q.pop(&q.free)
}

// EnqueuePending appends an acquired and filled event for the sweep.
func (q *EventQueue) EnqueuePending(h EventHandle) {
	q.pendingMu.Lock()
	defer q.pendingMu.Unlock()

	q.push(&q.pending, h)
}

// DequeuePending takes the oldest pending event.
func (q *EventQueue) DequeuePending() (EventHandle, bool) {
	q.pendingMu.Lock()
	defer q.pendingMu.Unlock()

	return q.pop(&q.pending)
}

// Release clears an event and returns it to the pool.
func (q *EventQueue) Release(h EventHandle) {
	q.events[h] = radarEvent{}

	q.freeMu.Lock()
	defer q.freeMu.Unlock()

	q.push(&q.free, h)
}

// ResetPending moves every pending event back to the pool.
func (q *EventQueue) ResetPending() {
	for {
		var h, ok = q.DequeuePending()
		if !ok {
			return
		}
		q.Release(h)
	}
}

func (q *EventQueue) event(h EventHandle) *radarEvent {
	return &q.events[h]
}

// Pending is the number of events waiting for the sweep.
func (q *EventQueue) Pending() int {
	q.pendingMu.Lock()
	defer q.pendingMu.Unlock()

	return q.pending.n
}

func (q *EventQueue) Free() int {
	q.freeMu.Lock()
	defer q.freeMu.Unlock()

	return q.free.n
}
