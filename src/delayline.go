package dfs

import (
	"fmt"
	"strings"
)

// delayElem is one pulse as seen by a single filter.
type delayElem struct {
	pri  uint32 // Time since the previous pulse on this filter, µs.
	dur  uint32
	rssi uint8
	ts   uint64 // Pulse start.
}

// DelayLine is a per-filter ring of recent pulses.  Entries older than the
// filter window, measured from the newest entry, are dropped on insert.
type DelayLine struct {
	elems       [MaxDelayLineSize]delayElem
	first, last int
	num         int
	lastTS      uint64 // Start of the last pulse this filter looked at.
}

func (dl *DelayLine) reset() {
	dl.elems = [MaxDelayLineSize]delayElem{}
	dl.first = 0
	dl.last = maxDelayLineMask
	dl.num = 0
	dl.lastTS = 0
}

func (dl *DelayLine) Len() int { return dl.num }

// at returns the n-th oldest entry.
func (dl *DelayLine) at(n int) *delayElem {
	return &dl.elems[(dl.first+n)&maxDelayLineMask]
}

// add appends a pulse then trims the line to the window.
func (dl *DelayLine) add(pri, dur uint32, rssi uint8, ts uint64, window uint32) {
	dl.last = (dl.last + 1) & maxDelayLineMask

	if dl.num == MaxDelayLineSize {
		dl.first = (dl.first + 1) & maxDelayLineMask
	} else {
		dl.num++
	}

	dl.elems[dl.last] = delayElem{pri: pri, dur: dur, rssi: rssi, ts: ts}

	for n := 1; n < dl.num; n++ {
		var older = &dl.elems[(dl.last-n)&maxDelayLineMask]
		if ts-older.ts > uint64(window) {
			dl.first = (dl.last - n + 1) & maxDelayLineMask
			dl.num = n
			break
		}
	}
}

func (dl *DelayLine) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "delay line: %d entries, last ts %d:", dl.num, dl.lastTS)
	for n := 0; n < dl.num; n++ {
		var de = dl.at(n)
		fmt.Fprintf(&sb, " [pri %d dur %d rssi %d]", de.pri, de.dur, de.rssi)
	}

	return sb.String()
}
