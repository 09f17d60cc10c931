package dfs

// pulseElem is one pulse in the global pulse history.
type pulseElem struct {
	ts        uint64 // Pulse start, reconstructed 64 bit µs.
	dur       uint32
	rssi      uint8
	sidx      int16
	deltaPeak int8
}

// pulseLine is a ring of the most recent pulses on any filter.
type pulseLine struct {
	elems       [MaxPulseBufferSize]pulseElem
	first, last int
	num         int
}

func (pl *pulseLine) reset() {
	pl.first = 0
	pl.last = maxPulseLineMask
	pl.num = 0
}

func (pl *pulseLine) add(p pulseElem) {
	pl.last = (pl.last + 1) & maxPulseLineMask

	if pl.num == MaxPulseBufferSize {
		pl.first = (pl.first + 1) & maxPulseLineMask
	} else {
		pl.num++
	}

	pl.elems[pl.last] = p
}

// at returns the n-th oldest pulse.
func (pl *pulseLine) at(n int) *pulseElem {
	return &pl.elems[(pl.first+n)&maxPulseLineMask]
}

// back returns the n-th newest pulse, 0 being the latest.
func (pl *pulseLine) back(n int) *pulseElem {
	return &pl.elems[(pl.last-n)&maxPulseLineMask]
}
