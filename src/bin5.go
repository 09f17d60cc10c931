package dfs

/*------------------------------------------------------------------
 *
 * Purpose:	Long pulse (FCC bin 5) radar detection.
 *
 * Description:	Bin 5 radars send bursts of one to three chirped pulses
 *		of 50-100µs, a few bursts spread over a 12 second window.
 *		Pulses are far too sparse for the delay line filters, so
 *		each bin5 detector keeps its own history and counts
 *		bursts: runs of pulses an intra-burst PRI apart, down
 *		to a single pulse, with consistent width and RSSI.
 *
 *---------------------------------------------------------------*/

const (
	bin5MinPRI     = 990
	bin5MaxPRI     = 2010
	bin5MinBRI     = 300000
	bin5MaxBRI     = 12000000
	bin5WidthMarg  = 4
	bin5RSSIMarg   = 5
	bin5MinSpanUS  = 3000000
	bin5RetainDur  = 60 // µs given to a burst pulse clipped by the hardware.
	bin5MinDurClip = 10
)

type bin5Elem struct {
	ts   uint64
	dur  uint32
	rssi uint8
}

type Bin5Radar struct {
	pulse    Bin5Pulse
	windowUS uint64

	elems       [MaxBin5Size]bin5Elem
	first, last int
	num         int
}

func (br *Bin5Radar) reset() {
	br.first = 0
	br.last = maxBin5Mask
	br.num = 0
}

func (br *Bin5Radar) at(n int) *bin5Elem {
	return &br.elems[(br.first+n)&maxBin5Mask]
}

// bin5CheckPulse decides whether a pulse looks like a bin5 pulse.
func (e *Engine) bin5CheckPulse(re *radarEvent, br *Bin5Radar, ch Channel) bool {
	if re.flags&evCheckChirp != 0 && re.flags&(evHWChirp|evSWChirp) == 0 {
		if e.debugEnabled(DebugBin5Pulse) {
			e.log.Debug("bin5 pulse rejected, not a chirp", "dur", re.dur)
		}
		return false
	}

	var thresh = br.pulse.RSSIThresh
	if !ch.IsTurbo() {
		thresh += br.pulse.RSSIMargin
	}

	if re.dur < br.pulse.MinDur || re.dur > br.pulse.MaxDur || uint32(re.rssi) < thresh {
		return false
	}

	if e.debugEnabled(DebugBin5Pulse) {
		e.log.Debug("bin5 pulse", "dur", re.dur, "rssi", re.rssi)
	}

	return true
}

// addPulse records a bin5 pulse.  A pulse too close to the previous one
// to be either an intra-burst or an inter-burst gap is dropped.  Pulses
// older than the time window fall out.
func (br *Bin5Radar) addPulse(ts uint64, dur uint32, rssi uint8) bool {
	if br.num > 0 {
		var prev = br.elems[br.last].ts
		if ts < prev {
			return false
		}

		var gap = ts - prev
		if gap < bin5MinPRI || (gap > bin5MaxPRI && gap < bin5MinBRI) {
			return false
		}
	}

	br.last = (br.last + 1) & maxBin5Mask
	if br.num == MaxBin5Size {
		br.first = (br.first + 1) & maxBin5Mask
	} else {
		br.num++
	}
	br.elems[br.last] = bin5Elem{ts: ts, dur: dur, rssi: rssi}

	for br.num > 1 && ts-br.at(0).ts > br.windowUS {
		br.first = (br.first + 1) & maxBin5Mask
		br.num--
	}

	return true
}

// check counts bursts in the window.  Pulses an intra-burst PRI apart
// form one burst, which may be a lone pulse.  A burst whose pulses
// disagree in width or RSSI is not counted.  The bursts must also span
// enough time to rule out a single noisy event.
func (br *Bin5Radar) check() (bool, int) {
	var bursts = 0
	var firstTS, lastTS uint64

	var n = 0
	for n < br.num {
		var start = br.at(n)
		var end = start
		var consistent = true

		for n++; n < br.num; n++ {
			var next = br.at(n)
			if next.ts-end.ts > bin5MaxPRI {
				break
			}

			if absDiff(end.dur, next.dur) > bin5WidthMarg ||
				absDiff(uint32(end.rssi), uint32(next.rssi)) > bin5RSSIMarg {
				consistent = false
			}
			end = next
		}

		if !consistent {
			continue
		}

		if bursts == 0 {
			firstTS = start.ts
		}
		bursts++
		lastTS = end.ts
	}

	if bursts < int(br.pulse.Threshold) {
		return false, bursts
	}

	if lastTS-firstTS < bin5MinSpanUS {
		return false, bursts
	}

	return true, bursts
}

// retainBin5BurstPattern keeps the second pulse of a burst when the
// hardware clipped its duration.
func (e *Engine) retainBin5BurstPattern(diffTS, dur uint32) uint32 {
	if diffTS >= bin5MinPRI && diffTS <= bin5MaxPRI && dur < bin5MinDurClip &&
		e.rinfo.lastBin5Dur >= bin5RetainDur {
		return e.rinfo.lastBin5Dur
	}

	return dur
}
