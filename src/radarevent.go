package dfs

/*------------------------------------------------------------------
 *
 * Purpose:	Sweep queued pulses through the bin5 detectors and the
 *		filter bank.
 *
 * Description:	Per pulse:
 *
 *		  - rebuild a 64 bit start time from the hardware stamp
 *		  - record it in the pulse line
 *		  - apply the domain specific duration fixes
 *		  - offer it to bin5 (FCC and MKK4)
 *		  - offer it to every filter type registered for its
 *		    duration
 *
 *		The sweep stops at the first detection.  The channel then
 *		goes on the NOL and all pulse history is discarded.
 *
 *---------------------------------------------------------------*/

const (
	fccFalseSidx       = -4
	fccFalseMinDur     = 11
	fccFalseMaxDur     = 20
	fccFalseMinDiff    = 305
	fccFalseMaxDiff    = 500
	vht80Type4MinDur   = 11
	vht80Type4MaxDur   = 33
	vht80Type4MinPRI   = 200
	vht80Type4MaxPRI   = 500
	vht80Type4Dur      = 12
	etsiCorrMinDur     = 15
	etsiCorrMaxDur     = 33
	etsiCorrDur        = 15
	etsiCorrShortMin   = 250
	etsiCorrShortMax   = 435
	etsiCorrLongMin    = 625
	etsiCorrLongMax    = 5000
	rssiGateMinDur     = 4
	extChanBusyInvalid = -1
)

// detection is what a sweep found, handed to the provider after e.mu is
// released.
type detection struct {
	channel    Channel
	nolChanged bool
}

// ProcessRadarEvents handles up to MaxEventsPerSweep queued pulses and
// reports whether radar was found.
func (e *Engine) ProcessRadarEvents() bool {
	e.mu.Lock()
	var det, found = e.processRadarEventsLocked()
	e.mu.Unlock()

	if !found {
		return false
	}

	e.provider.RadarFound(det.channel)
	if det.nolChanged {
		e.provider.UpdateChannelList(e.nol.Snapshot())
	}

	return true
}

func (e *Engine) processRadarEventsLocked() (detection, bool) {
	if !e.bangRadar && e.queue.Pending() == 0 {
		return detection{}, false
	}

	var ch = e.provider.CurrentChannel()

	if !ch.IsDFS() {
		e.dprintf(DebugDFS2, "radar events on non-DFS channel", "channel", ch)
		e.queue.ResetPending()
		e.resetAllDelayLines()
		e.bangRadar = false
		return detection{}, false
	}

	if e.bangRadar {
		e.bangRadar = false
		e.log.Warn("simulated radar", "channel", ch)
		e.stats.bangRadars.Add(1)
		return e.radarFoundLocked(ch), true
	}

	e.refreshExtChanBusy(ch)

	var found = false
	for n := 0; n < MaxEventsPerSweep && !found; n++ {
		var h, ok = e.queue.DequeuePending()
		if !ok {
			break
		}

		// Copy out so the slot goes straight back to the pool.
		var re = *e.queue.event(h)
		e.queue.Release(h)
		e.stats.processed.Add(1)

		found = e.processEvent(&re, ch)
	}

	if !found {
		return detection{}, false
	}

	return e.radarFoundLocked(ch), true
}

// refreshExtChanBusy reads the extension channel load once per sweep.  An
// invalid reading keeps the last good one.
func (e *Engine) refreshExtChanBusy(ch Channel) {
	if !ch.IsHT40() {
		e.rinfo.extChanBusy = 0
		return
	}

	var busy = e.provider.ExtChannelBusy()
	if busy == extChanBusyInvalid {
		return
	}

	e.rinfo.extChanBusy = min(max(busy, 0), 100)
}

// extendTimestamp rebuilds a monotonic 64 bit time from the low order
// hardware stamp, using the full TSF to count wraps of the low field.
func (ri *radarInfo) extendTimestamp(raw uint32, fullTSF uint64) uint64 {
	var thisTS uint64

	if !ri.haveTS {
		thisTS = uint64(raw)
	} else {
		var elapsed uint64
		if fullTSF > ri.lastFullTS {
			elapsed = fullTSF - ri.lastFullTS
		}

		var estimate = ri.lastThisTS + elapsed
		thisTS = (estimate &^ tsMask) | uint64(raw)

		if thisTS > estimate && thisTS-estimate > tsHalfRange && thisTS > tsMask {
			thisTS -= 1 << tsShift
		} else if estimate > thisTS && estimate-thisTS > tsHalfRange {
			thisTS += 1 << tsShift
		}

		for thisTS < ri.lastThisTS {
			thisTS += 1 << tsShift
		}
	}

	ri.haveTS = true
	ri.lastRawTS = raw
	ri.lastFullTS = fullTSF
	ri.lastThisTS = thisTS

	return thisTS
}

// isFCCFalseTrigger matches a known false trigger: a mid length pulse at
// FFT bin -4 whose spacing is not that of FCC type 4.
func isFCCFalseTrigger(domain Domain, re *radarEvent, diffTS uint32) bool {
	if domain != DomainFCC && domain != DomainMKK4 {
		return false
	}

	return re.dur >= fccFalseMinDur && re.dur <= fccFalseMaxDur &&
		(diffTS > fccFalseMaxDiff || diffTS <= fccFalseMinDiff) &&
		re.sidx == fccFalseSidx
}

// correctDuration undoes known duration distortions.
func correctDuration(domain Domain, ch Channel, re *radarEvent, diffTS uint32) {
	switch domain {
	case DomainFCC, DomainMKK4:
		// Short FCC type 4 pulses at the edge of a VHT80 segment are
		// stretched.
		if ch.IsVHT80() && re.sidx == 0 &&
			(ch.PriCenterSeparation == vht80ClampSeparation || ch.PriCenterSeparation == -vht80ClampSeparation) &&
			re.dur > vht80Type4MinDur && re.dur < vht80Type4MaxDur &&
			diffTS > vht80Type4MinPRI && diffTS < vht80Type4MaxPRI {
			re.dur = vht80Type4Dur
		}
	case DomainETSI:
		if re.dur > etsiCorrMinDur && re.dur < etsiCorrMaxDur &&
			((diffTS >= etsiCorrLongMin && diffTS <= etsiCorrLongMax) ||
				(diffTS >= etsiCorrShortMin && diffTS <= etsiCorrShortMax)) {
			re.dur = etsiCorrDur
		}
	}
}

func (e *Engine) processEvent(re *radarEvent, ch Channel) bool {
	if re.chanIndex < 0 || re.chanIndex >= NumRadarStates {
		return false
	}

	if e.states[re.chanIndex].interference.Load() {
		e.dprintf(DebugDFS2, "pulse on channel already marked for radar")
		return false
	}

	var thisTS = e.rinfo.extendTimestamp(re.ts, re.fullTS)
	if thisTS >= uint64(re.dur) {
		thisTS -= uint64(re.dur)
	}

	e.pulses.add(pulseElem{
		ts:        thisTS,
		dur:       re.dur,
		rssi:      re.rssi,
		sidx:      re.sidx,
		deltaPeak: re.deltaPeak,
	})

	var diffTS = uint32(min(thisTS-e.rinfo.lastPulseTS, math32))
	e.rinfo.lastPulseTS = thisTS

	if diffTS < InvalidPRILimit {
		// Too close to be radar.  The history is no longer trusted.
		e.resetFilterDelayLines()
	}

	if isFCCFalseTrigger(e.domain, re, diffTS) {
		e.stats.falseTriggers.Add(1)
		return false
	}

	correctDuration(e.domain, ch, re, diffTS)

	if (e.domain == DomainFCC || e.domain == DomainMKK4) && e.checkBin5(re, ch, thisTS, diffTS) {
		return true
	}

	if re.dur > MaxDuration {
		return false
	}

	return e.scoreFilters(re, thisTS)
}

const math32 = 1<<32 - 1

func (e *Engine) checkBin5(re *radarEvent, ch Channel, thisTS uint64, diffTS uint32) bool {
	for i := 0; i < e.numBin5; i++ {
		var br = &e.bin5[i]

		var dur = e.retainBin5BurstPattern(diffTS, re.dur)
		var probe = *re
		probe.dur = dur

		if !e.bin5CheckPulse(&probe, br, ch) {
			continue
		}

		e.rinfo.lastBin5Dur = dur

		if !br.addPulse(thisTS, dur, re.rssi) {
			continue
		}

		var found, bursts = br.check()
		if e.debugEnabled(DebugBin5) {
			e.log.Debug("bin5 check", "radar", i, "bursts", bursts, "found", found)
		}

		if found {
			e.stats.bin5Detects.Add(1)
			e.log.Info("bin5 radar found", "bursts", bursts)
			return true
		}
	}

	return false
}

// scoreFilters offers a pulse to every filter type for its duration.
func (e *Engine) scoreFilters(re *radarEvent, thisTS uint64) bool {
	for depth := 0; depth < MaxRadarOverlap; depth++ {
		var ftIndex = e.radarTable[re.dur][depth]
		if ftIndex < 0 {
			break
		}

		var ft = &e.filterTypes[ftIndex]

		if uint32(re.rssi) < ft.RSSIThresh && re.dur > rssiGateMinDur {
			continue
		}

		var ftDelta = thisTS - ft.lastTS
		if ftDelta < uint64(ft.MinPRI) && ftDelta != 0 {
			continue
		}

		var found = false
		for p := 0; p < ft.numFilters && !found; p++ {
			found = e.offerToFilter(&ft.filters[p], re, thisTS)
			if found {
				e.stats.filterDetects.Add(1)
				e.log.Info("radar filter matched", "filter", ft.filters[p].ID,
					"pattern", ft.filters[p].PatternType, "dur", re.dur, "rssi", re.rssi)
			}
		}

		ft.lastTS = thisTS

		if found {
			return true
		}
	}

	return false
}

func (e *Engine) offerToFilter(rf *RadarFilter, re *radarEvent, thisTS uint64) bool {
	if re.dur < rf.MinDur || re.dur > rf.MaxDur {
		return false
	}

	var delta = thisTS - rf.dl.lastTS

	if rf.IgnorePRIWindow > 0 {
		if delta < uint64(rf.MinPRI) {
			rf.dl.lastTS = thisTS
			return false
		}
	} else {
		if delta < uint64(rf.MinPRI) && delta != 0 {
			return false
		}

		if delta > uint64(e.priMultiplier)*uint64(rf.MaxPRI) || delta < uint64(rf.MinPRI) {
			// Too far from the previous pulse to be part of its
			// burst.  Start again from this one.
			rf.dl.lastTS = thisTS
			return false
		}
	}

	var deltaT = uint32(min(delta, math32))
	rf.dl.add(deltaT, re.dur, re.rssi, thisTS, rf.FilterLen)

	var found bool
	if rf.PatternType == PatternStaggered {
		found = e.staggeredCheck(rf, deltaT, re.dur)
	} else {
		found = e.binCheck(rf, deltaT, re.dur)
	}

	if e.debugEnabled(DebugDFS3) {
		e.log.Debug(rf.dl.String(), "filter", rf.ID)
	}

	rf.dl.lastTS = thisTS

	return found
}

// radarFoundLocked records a detection: counters, NOL, and a clean slate
// for the pulse history.
func (e *Engine) radarFoundLocked(ch Channel) detection {
	var n = e.stats.radarDetects.Add(1)

	e.log.Warn("radar detected", "channel", ch, "detects", n, "domain", e.domain)

	var det = detection{channel: ch}

	if e.useNOL {
		det.nolChanged = e.addToNOLLocked(ch.Freq)
		if ch.IsHT40() {
			det.nolChanged = e.addToNOLLocked(ch.ExtFreq()) || det.nolChanged
		}
	} else {
		e.markInterference(ch.Freq, true)
		if ch.IsHT40() {
			e.markInterference(ch.ExtFreq(), true)
		}
	}

	e.resetAllDelayLines()
	e.queue.ResetPending()

	return det
}

func (e *Engine) addToNOLLocked(freq uint16) bool {
	e.markInterference(freq, true)

	var err = e.nol.AddChannel(freq, defaultNOLWidth, e.nolTimeout)
	if err == nil {
		e.dprintf(DebugNOL, "channel added to NOL", "freq", freq, "timeout", e.nolTimeout)
		return true
	}

	e.stats.nolFull.Add(1)

	if e.nolPolicy == NOLFailClosed {
		e.log.Error("NOL full, channel stays blocked until restart", "freq", freq, "err", err)
		return false
	}

	e.log.Error("NOL full, channel left usable", "freq", freq, "err", err)
	e.markInterference(freq, false)

	return false
}

// nolExpired runs when a channel's non-occupancy period ends.
func (e *Engine) nolExpired(ent NOLEntry) {
	e.mu.Lock()
	e.markInterference(ent.Freq, false)
	e.mu.Unlock()

	e.log.Info("channel left NOL", "freq", ent.Freq, "width", ent.ChWidth)

	e.provider.UpdateChannelList(e.nol.Snapshot())
}
