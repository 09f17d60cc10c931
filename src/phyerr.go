package dfs

/*------------------------------------------------------------------
 *
 * Purpose:	Turn raw radar PHY error reports into queued pulses.
 *
 * Description:	Runs in the driver's receive path, possibly at the same
 *		time as a sweep.  It only touches atomics and the event
 *		queue, never the filter state.
 *
 *		Report layouts:
 *
 *		Owl	byte 0 is the duration in ticks.  Primary only.
 *			An empty report is a zero length pulse, unless
 *			extension channel detection is on.
 *
 *		Sowl, Merlin
 *			the last three bytes are
 *			  [primary duration, extension duration, flags]
 *			flags bit 0 primary found, bit 1 extension found,
 *			bit 2 DC.  Anything before them is FFT data.
 *
 *		TLV	see phyerr_tlv.go.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
)

const (
	trailerLen       = 3
	trailerPriFound  = 0x01
	trailerExtFound  = 0x02
	trailerDCFound   = 0x04
	minBin5ChirpDur  = 50
	procRadarEnabled = 0x01
	// Extension channel detection is active.
	procExtChanEnabled = 0x02
)

// ProcessPhyErr decodes one radar PHY error and queues it for the next
// sweep.  A nil error means the pulse was queued, or silently dropped
// because the event pool was exhausted.
func (e *Engine) ProcessPhyErr(r *PhyErrReport) error {
	if e.ignoreDFS.Load() {
		return ErrDetectionDisabled
	}

	var proc = e.procPhyErr.Load()
	if proc&procRadarEnabled == 0 {
		return ErrDetectionDisabled
	}

	var cur = e.curChanIndex.Load()
	if cur >= 0 && e.states[cur].interference.Load() {
		return ErrChannelInterference
	}

	e.stats.phyErrors.Add(1)

	var ch = e.provider.CurrentChannel()
	var ev PhyErrEvent
	var err error

	switch e.caps.Generation {
	case HwOwl:
		err = e.decodeOwl(r, proc, &ev)
	case HwSowl, HwMerlin:
		err = e.decodeTrailer(r, ch, &ev)
	case HwTLV:
		err = e.decodeTLV(r, ch, &ev)
	default:
		err = fmt.Errorf("%w: hardware generation %s", ErrBadArgument, e.caps.Generation)
	}

	if err != nil {
		e.stats.rejected.Add(1)
		if e.debugEnabled(DebugPhyErr) {
			e.log.Debug("phy error rejected", "err", err, "len", len(r.Data))
		}
		return err
	}

	ev.Duration = ev.Duration.Normalize(e.durMultiplier)
	if ev.IsExtension {
		e.stats.extPhyErrors.Add(1)
	} else {
		e.stats.priPhyErrors.Add(1)
	}
	if ev.IsDC {
		e.stats.dcPhyErrors.Add(1)
	}

	if len(ev.FFT) > 0 && ev.Duration.Value >= minBin5ChirpDur {
		ev.CheckChirp = true
		ev.IsSWChirp, ev.ChirpSlope = e.IsChirping(ev.FFT, ev.IsPrimary, ev.IsExtension, ch.IsHT40())
	}

	if int32(ev.RSSI) < e.minRSSIThresh.Load() {
		e.stats.rssiDiscards.Add(1)
		if e.debugEnabled(DebugDFS3) {
			e.log.Debug("pulse rssi below every filter", "rssi", ev.RSSI)
		}
		return ErrRSSITooLow
	}

	if ev.Duration.Value > e.maxPulseDur.Load() {
		e.stats.durDiscards.Add(1)
		if e.debugEnabled(DebugDFS3) {
			e.log.Debug("pulse longer than every filter", "dur", ev.Duration.Value)
		}
		return ErrDurationOutOfRange
	}

	var chanIndex = cur
	if ev.IsExtension && !ev.IsPrimary {
		chanIndex = e.extChanIndex.Load()
	}

	if chanIndex < 0 {
		e.stats.rejected.Add(1)
		return ErrNoChannelState
	}

	e.logPhyErr(&ev)

	var h, ok = e.queue.AcquireFree()
	if !ok {
		e.stats.queueDrops.Add(1)
		if e.debugEnabled(DebugDFS) {
			e.log.Debug("no free radar events, pulse dropped")
		}
		return nil
	}

	var re = e.queue.event(h)
	*re = radarEvent{
		ts:        ev.TS,
		fullTS:    ev.FullTS,
		dur:       ev.Duration.Value,
		rssi:      ev.RSSI,
		chanIndex: chanIndex,
		sidx:      ev.Sidx,
		deltaPeak: ev.DeltaPeak,
		deltaDiff: ev.DeltaDiff,
		next:      noEvent,
	}

	if ev.IsExtension && !ev.IsPrimary {
		re.flags |= evExtension
	}
	if ev.IsDC {
		re.flags |= evDC
	}
	if ev.IsHWChirp {
		re.flags |= evHWChirp
	}
	if ev.IsSWChirp {
		re.flags |= evSWChirp
	}
	if ev.CheckChirp {
		re.flags |= evCheckChirp
	}

	e.queue.EnqueuePending(h)
	e.stats.queued.Add(1)
	e.signal()

	return nil
}

func (e *Engine) decodeOwl(r *PhyErrReport, proc uint32, ev *PhyErrEvent) error {
	var dur uint32
	if len(r.Data) == 0 {
		if proc&procExtChanEnabled != 0 {
			// Extension channel reports come through with no data.
			e.stats.earlyExt.Add(1)
			return ErrShortReport
		}
	} else {
		dur = uint32(r.Data[0])
	}

	if r.RSSI == 0 && dur == 0 {
		return ErrSpuriousReport
	}

	*ev = PhyErrEvent{
		Duration:  HwDuration{Value: dur, Unit: DurTicks},
		RSSI:      r.RSSI,
		TS:        r.RxTS,
		FullTS:    r.FullTSF,
		IsPrimary: true,
	}

	return nil
}

func (e *Engine) decodeTrailer(r *PhyErrReport, ch Channel, ev *PhyErrEvent) error {
	if len(r.Data) < trailerLen {
		return ErrShortReport
	}

	var tr = r.Data[len(r.Data)-trailerLen:]
	var priDur, extDur, flags = tr[0], tr[1], tr[2]

	var priFound = flags&trailerPriFound != 0
	var extFound = flags&trailerExtFound != 0
	if !ch.IsHT40() {
		extFound = false
	}

	*ev = PhyErrEvent{
		TS:     r.RxTS,
		FullTS: r.FullTSF,
		IsDC:   flags&trailerDCFound != 0,
		FFT:    r.Data[:len(r.Data)-trailerLen],
	}

	switch {
	case priFound && extFound:
		// Both halves saw it.  Believe the stronger.
		if r.ExtRSSI > r.RSSI {
			ev.IsExtension = true
			ev.Duration = HwDuration{Value: uint32(extDur), Unit: DurTicks}
			ev.RSSI = r.ExtRSSI
		} else {
			ev.IsPrimary = true
			ev.Duration = HwDuration{Value: uint32(priDur), Unit: DurTicks}
			ev.RSSI = r.RSSI
		}
	case priFound:
		ev.IsPrimary = true
		ev.Duration = HwDuration{Value: uint32(priDur), Unit: DurTicks}
		ev.RSSI = r.RSSI
	case extFound:
		ev.IsExtension = true
		ev.Duration = HwDuration{Value: uint32(extDur), Unit: DurTicks}
		ev.RSSI = r.ExtRSSI
	default:
		return ErrNoRadarIndication
	}

	if ev.IsDC {
		// A DC pulse sits on the boundary and is seen by both halves.
		ev.IsPrimary = true
		ev.IsExtension = ch.IsHT40()
	}

	return nil
}

func (e *Engine) logPhyErr(ev *PhyErrEvent) {
	if !e.debugEnabled(DebugPhyErr) {
		return
	}

	e.log.Debug("phy error", "ts", ev.TS, "full_ts", ev.FullTS, "dur", ev.Duration.Value,
		"rssi", ev.RSSI, "pri", ev.IsPrimary, "ext", ev.IsExtension, "dc", ev.IsDC,
		"hw_chirp", ev.IsHWChirp, "sw_chirp", ev.IsSWChirp, "slope", ev.ChirpSlope,
		"sidx", ev.Sidx, "freq_offset", ev.FreqOffset, "chirp_span", ev.ChirpSpan)
}
