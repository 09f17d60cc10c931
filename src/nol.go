package dfs

/*------------------------------------------------------------------
 *
 * Purpose:	Non-Occupancy List: channels where radar was seen and
 *		which must not be used until their timeout passes.
 *
 * Description:	A fixed number of slots, kept in the order channels were
 *		added.  Each entry owns one timer.  Adding a channel that
 *		is already listed restarts its timeout.
 *
 *		Every timer carries the generation of the entry it was
 *		started for, so a timer that fires after its entry was
 *		refreshed or removed does nothing.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"sync"
	"time"
)

type NOLEntry struct {
	Freq    uint16        `yaml:"freq"`  // MHz
	ChWidth uint16        `yaml:"width"` // MHz
	Start   time.Time     `yaml:"start"`
	Timeout time.Duration `yaml:"timeout"`
}

// Remaining is how long the channel stays blocked after now.
func (ne NOLEntry) Remaining(now time.Time) time.Duration {
	var left = ne.Timeout - now.Sub(ne.Start)
	if left < 0 {
		return 0
	}

	return left
}

type nolSlot struct {
	entry NOLEntry
	gen   uint64
	timer Timer
}

type NOL struct {
	mu       sync.Mutex
	clock    Clock
	slots    []nolSlot // Insertion order.  len is the entry count.
	gen      uint64
	onExpire func(NOLEntry)
}

// NewNOL makes a list holding at most capacity channels.  onExpire is
// called, without the list lock, when an entry times out.
func NewNOL(capacity int, clock Clock, onExpire func(NOLEntry)) *NOL {
	return &NOL{
		clock:    clock,
		slots:    make([]nolSlot, 0, capacity),
		onExpire: onExpire,
	}
}

func (n *NOL) find(freq, width uint16) int {
	for i := range n.slots {
		if n.slots[i].entry.Freq == freq && n.slots[i].entry.ChWidth == width {
			return i
		}
	}

	return -1
}

// AddChannel lists a channel for timeout, or restarts its timeout if it
// is already listed.  ErrNOLFull means there was no room.
func (n *NOL) AddChannel(freq, width uint16, timeout time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	var i = n.find(freq, width)
	if i < 0 {
		if len(n.slots) == cap(n.slots) {
			return fmt.Errorf("%w: %d entries, cannot add %d MHz", ErrNOLFull, len(n.slots), freq)
		}

		n.slots = append(n.slots, nolSlot{})
		i = len(n.slots) - 1
	} else if n.slots[i].timer != nil {
		n.slots[i].timer.Stop()
	}

	n.gen++
	var gen = n.gen

	n.slots[i].entry = NOLEntry{
		Freq:    freq,
		ChWidth: width,
		Start:   n.clock.Now(),
		Timeout: timeout,
	}
	n.slots[i].gen = gen
	n.slots[i].timer = n.clock.AfterFunc(timeout, func() {
		n.expire(freq, width, gen)
	})

	return nil
}

func (n *NOL) expire(freq, width uint16, gen uint64) {
	n.mu.Lock()

	var i = n.find(freq, width)
	if i < 0 || n.slots[i].gen != gen {
		n.mu.Unlock()
		return
	}

	var ent = n.slots[i].entry
	n.removeLocked(i)

	var cb = n.onExpire
	n.mu.Unlock()

	if cb != nil {
		cb(ent)
	}
}

// removeLocked deletes slot i keeping the order of the rest.
func (n *NOL) removeLocked(i int) {
	if n.slots[i].timer != nil {
		n.slots[i].timer.Stop()
	}

	copy(n.slots[i:], n.slots[i+1:])
	n.slots[len(n.slots)-1] = nolSlot{}
	n.slots = n.slots[:len(n.slots)-1]
}

// RemoveChannel drops a channel without calling onExpire.
func (n *NOL) RemoveChannel(freq, width uint16) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	var i = n.find(freq, width)
	if i < 0 {
		return false
	}

	n.removeLocked(i)

	return true
}

// Clear drops every entry without calling onExpire.
func (n *NOL) Clear() []NOLEntry {
	n.mu.Lock()
	defer n.mu.Unlock()

	var dropped = make([]NOLEntry, 0, len(n.slots))
	for len(n.slots) > 0 {
		dropped = append(dropped, n.slots[0].entry)
		n.removeLocked(0)
	}

	return dropped
}

func (n *NOL) Contains(freq uint16) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i := range n.slots {
		if n.slots[i].entry.Freq == freq {
			return true
		}
	}

	return false
}

func (n *NOL) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return len(n.slots)
}

// Snapshot copies the entries in insertion order.
func (n *NOL) Snapshot() []NOLEntry {
	n.mu.Lock()
	defer n.mu.Unlock()

	var out = make([]NOLEntry, len(n.slots))
	for i := range n.slots {
		out[i] = n.slots[i].entry
	}

	return out
}
