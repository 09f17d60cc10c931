package dfs

import (
	"fmt"
	"math"
)

// RadarFilter matches one radar waveform.
type RadarFilter struct {
	ID              uint32
	NumPulses       uint32
	Threshold       uint32
	MinPRI, MaxPRI  uint32 // µs
	MinDur, MaxDur  uint32 // µs
	RSSIThresh      uint32
	PatternType     PatternType
	IgnorePRIWindow uint32
	FixedPRI        bool   // MinPRI and MaxPRI come from the same PRF.
	FilterLen       uint32 // µs of history the filter looks at.

	dl DelayLine
}

// FilterType groups filters that share a duration class.  Every filter in
// a type sees the same pulses.
type FilterType struct {
	filters    [MaxFiltersPerType]RadarFilter
	numFilters int

	FilterDur  uint32
	NumPulses  uint32
	MinDur     uint32
	MaxDur     uint32
	RSSIThresh uint32
	RSSIMargin int32
	MinPRI     uint32

	lastTS uint64
}

func (ft *FilterType) Filters() []RadarFilter {
	return ft.filters[:ft.numFilters]
}

// initRadarFiltersLocked builds the filter bank, the duration lookup
// table and the bin5 detectors for a domain.  Caller holds e.mu.
// Any failure leaves the engine with no domain, so detection stays off.
func (e *Engine) initRadarFiltersLocked(table *DomainTable) (err error) {
	e.domain = DomainUninit
	e.setProcFlags(0, procRadarEnabled|procExtChanEnabled)
	e.numFilterTypes = 0
	e.numBin5 = 0

	for d := range e.radarTable {
		for k := range e.radarTable[d] {
			e.radarTable[d][k] = -1
		}
	}

	defer func() {
		if err != nil {
			e.numFilterTypes = 0
			e.numBin5 = 0
			e.log.Error("radar detection disabled", "err", err)
		}
	}()

	if table == nil || table.Domain == DomainUninit {
		return fmt.Errorf("%w: no radar table", ErrUnknownDomain)
	}

	var validateErr = table.Validate()
	if validateErr != nil {
		return validateErr
	}

	var minRSSI uint32 = math.MaxUint32
	var maxDur uint32

	for i := range table.Radars {
		var p = &table.Radars[i]

		var ftIndex = -1
		for j := 0; j < e.numFilterTypes; j++ {
			var ft = &e.filterTypes[j]
			if ft.FilterDur == p.PulseDur && ft.NumPulses == p.NumPulses &&
				ft.MinDur == p.MinDur && ft.MaxDur == p.MaxDur {
				ftIndex = j
				break
			}
		}

		if ftIndex < 0 {
			if e.numFilterTypes >= MaxRadarTypes {
				return fmt.Errorf("%w: radar %d", ErrTooManyRadarTypes, p.ID)
			}

			ftIndex = e.numFilterTypes
			e.numFilterTypes++

			var ft = &e.filterTypes[ftIndex]
			ft.numFilters = 0
			ft.FilterDur = p.PulseDur
			ft.NumPulses = p.NumPulses
			ft.MinDur = p.MinDur
			ft.MaxDur = p.MaxDur
			ft.RSSIThresh = p.RSSIThresh
			ft.RSSIMargin = p.RSSIMargin
			ft.MinPRI = math.MaxUint32
			ft.lastTS = 0

			for dur := p.MinDur; dur <= p.MaxDur; dur++ {
				var slot = -1
				for k := 0; k < MaxRadarOverlap; k++ {
					if e.radarTable[dur][k] == -1 {
						slot = k
						break
					}
				}

				if slot < 0 {
					return fmt.Errorf("%w: duration %d", ErrTooManyOverlaps, dur)
				}

				e.radarTable[dur][slot] = int8(ftIndex)
			}
		}

		var ft = &e.filterTypes[ftIndex]
		if ft.numFilters >= MaxFiltersPerType {
			return fmt.Errorf("%w: more than %d filters for duration %d", ErrBadRadarTable, MaxFiltersPerType, p.PulseDur)
		}

		var rf = &ft.filters[ft.numFilters]
		ft.numFilters++

		rf.ID = p.ID
		rf.NumPulses = p.NumPulses
		rf.Threshold = p.Threshold
		rf.MinDur = p.MinDur
		rf.MaxDur = p.MaxDur
		rf.RSSIThresh = p.RSSIThresh
		rf.PatternType = p.Pattern
		rf.IgnorePRIWindow = p.IgnorePRIWindow
		rf.dl.reset()

		// PRIs are worked out in hundredths of a µs, then rounded.
		var t = int32(100000000/p.MaxPulseFreq) - 100*int32(p.MeanOffset)
		rf.MinPRI = uint32(max(round100(t-100*int32(p.PulseVar)), 1))

		var tmax = int32(100000000/p.PulseFreq) - 100*int32(p.MeanOffset)
		rf.MaxPRI = uint32(max(round100(tmax+100*int32(p.PulseVar)), 1))

		rf.FixedPRI = p.PulseFreq == p.MaxPulseFreq
		rf.FilterLen = rf.MaxPRI * rf.NumPulses

		ft.MinPRI = min(ft.MinPRI, rf.MinPRI)
		ft.RSSIThresh = min(ft.RSSIThresh, p.RSSIThresh)
		minRSSI = min(minRSSI, p.RSSIThresh)
		maxDur = max(maxDur, p.MaxDur)

		e.dprintf(DebugDFS2, "radar filter", "id", rf.ID, "type", ftIndex,
			"min_pri", rf.MinPRI, "max_pri", rf.MaxPRI, "pattern", rf.PatternType, "len", rf.FilterLen)
	}

	for i := range table.Bin5 {
		var b = table.Bin5[i]
		var br = &e.bin5[i]

		br.pulse = b
		br.windowUS = uint64(b.TimeWindow) * 1000000
		br.reset()

		minRSSI = min(minRSSI, b.RSSIThresh)
		maxDur = max(maxDur, b.MaxDur)
	}
	e.numBin5 = len(table.Bin5)

	e.minRSSIThresh.Store(int32(min(minRSSI, math.MaxInt32)))
	e.maxPulseDur.Store(maxDur + maxPulseDurMargin)

	e.domain = table.Domain
	e.defaultParams = table.DefaultParams
	e.priMultiplier = table.PRIMultiplier
	if e.priMultiplier == 0 {
		e.priMultiplier = defaultPRIMultiplier
	}

	if table.NOLTimeout > 0 && !e.nolTimeoutSet {
		e.nolTimeout = table.NOLTimeout
	}

	for i := range e.states {
		if e.states[i].ch.Freq != 0 {
			e.states[i].params = e.defaultParams
		}
	}

	e.curChanIndex.Store(-1)
	e.extChanIndex.Store(-1)
	e.resetAllDelayLines()
	e.queue.ResetPending()

	e.log.Info("radar filters ready", "domain", e.domain, "types", e.numFilterTypes,
		"filters", len(table.Radars), "bin5", e.numBin5,
		"min_rssi", minRSSI, "max_dur", maxDur+maxPulseDurMargin)

	return nil
}

func (e *Engine) resetFilterDelayLines() {
	for i := 0; i < e.numFilterTypes; i++ {
		var ft = &e.filterTypes[i]
		for j := 0; j < ft.numFilters; j++ {
			ft.filters[j].dl.reset()
		}
		ft.lastTS = 0
	}
}

// resetAllDelayLines clears every piece of pulse history.
func (e *Engine) resetAllDelayLines() {
	e.resetFilterDelayLines()

	for i := 0; i < e.numBin5; i++ {
		e.bin5[i].reset()
	}

	e.pulses.reset()
	e.rinfo.lastPulseTS = 0
}
