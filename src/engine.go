package dfs

/*------------------------------------------------------------------
 *
 * Purpose:	The radar detector for one radio.
 *
 * Description:	Two paths meet here.
 *
 *		ProcessPhyErr is called from the driver's receive path
 *		for every radar PHY error.  It decodes, filters and
 *		queues the pulse.
 *
 *		ProcessRadarEvents (usually driven by Run) drains the
 *		queue through the filter bank.  e.mu serializes it with
 *		the control operations that touch filter state.
 *
 *		Lock order is e.mu then the NOL lock.  The provider is
 *		never called with e.mu held when it could call back in.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

const (
	defaultPRIMultiplier = 2
	defaultSweepInterval = 100 * time.Millisecond
)

// radarInfo is the sweep's running view of the pulse stream.
type radarInfo struct {
	haveTS     bool
	lastRawTS  uint32
	lastFullTS uint64
	lastThisTS uint64

	lastPulseTS uint64 // Start of the previous pulse, for diff_ts.
	lastBin5Dur uint32

	extChanBusy int
}

type Engine struct {
	log           *log.Logger
	baseLevel     log.Level
	provider      ChannelProvider
	caps          Capabilities
	clock         Clock
	queue         *EventQueue
	nol           *NOL
	wake          chan struct{}
	sweepInterval time.Duration
	nolPolicy     NOLAllocPolicy
	chirpCfg      ChirpConfig
	durMultiplier uint32

	// Read by the ingestion path without e.mu.
	procPhyErr      atomic.Uint32
	ignoreDFS       atomic.Bool
	falseRSSIThresh atomic.Uint32
	peakMag         atomic.Uint32
	minRSSIThresh   atomic.Int32
	maxPulseDur     atomic.Uint32
	curChanIndex    atomic.Int32
	extChanIndex    atomic.Int32
	debugMask       atomic.Uint32
	stats           counters

	mu             sync.Mutex
	domain         Domain
	defaultParams  PhyErrParams
	priMultiplier  uint32
	useNOL         bool
	nolTimeout     time.Duration
	nolTimeoutSet  bool
	bangRadar      bool
	filterTypes    [MaxRadarTypes]FilterType
	numFilterTypes int
	radarTable     [MaxDuration + 1][MaxRadarOverlap]int8
	bin5           [MaxBin5Radars]Bin5Radar
	numBin5        int
	pulses         pulseLine
	rinfo          radarInfo
	states         [NumRadarStates]channelState
}

// NewEngine builds an engine with no radar filters.  Detection starts once
// InitRadarFilters and RadarEnable have both succeeded.
func NewEngine(provider ChannelProvider, cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var e = new(Engine)

	var logger = cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	}
	e.log = logger.WithPrefix("dfs")
	e.baseLevel = e.log.GetLevel()

	e.provider = provider
	e.caps = provider.Capabilities()

	e.clock = cfg.Clock
	if e.clock == nil {
		e.clock = systemClock{}
	}

	e.queue = NewEventQueue()
	e.wake = make(chan struct{}, 1)

	e.sweepInterval = cfg.SweepInterval
	if e.sweepInterval <= 0 {
		e.sweepInterval = defaultSweepInterval
	}

	e.nolPolicy = cfg.NOLAllocPolicy
	e.chirpCfg = cfg.Chirp.withDefaults()

	e.durMultiplier = durMultiplierNormal
	if e.caps.FastClock {
		e.durMultiplier = durMultiplierFastClck
	}

	var capacity = cfg.NOLCapacity
	if capacity <= 0 {
		capacity = DefaultNOLCapacity
	}
	e.nol = NewNOL(capacity, e.clock, e.nolExpired)

	e.useNOL = cfg.UseNOL
	e.nolTimeout = DefaultNOLTimeout
	if cfg.NOLTimeout > 0 {
		e.nolTimeout = cfg.NOLTimeout
		e.nolTimeoutSet = true
	}

	e.falseRSSIThresh.Store(uint32(cfg.FalseRSSIThresh))
	e.peakMag.Store(uint32(cfg.PeakMag))
	e.minRSSIThresh.Store(math.MaxInt32)
	e.curChanIndex.Store(-1)
	e.extChanIndex.Store(-1)
	e.SetDebugMask(cfg.DebugMask)

	for d := range e.radarTable {
		for k := range e.radarTable[d] {
			e.radarTable[d][k] = -1
		}
	}
	e.pulses.reset()

	return e
}

// InitRadarFilters loads the radar signatures for a domain.  A nil table
// or unknown domain leaves detection off and returns ErrUnknownDomain.
func (e *Engine) InitRadarFilters(table *DomainTable) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.initRadarFiltersLocked(table)
}

// Domain is the domain of the loaded filters.
func (e *Engine) Domain() Domain {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.domain
}

// RadarEnable turns detection on for the provider's current channel.
// Call it again after every channel change.
func (e *Engine) RadarEnable() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.radarEnableLocked()
}

func (e *Engine) radarEnableLocked() error {
	e.setProcFlags(0, procRadarEnabled|procExtChanEnabled)
	e.curChanIndex.Store(-1)
	e.extChanIndex.Store(-1)

	if e.domain == DomainUninit {
		return ErrUnknownDomain
	}

	var ch = e.provider.CurrentChannel()
	if !ch.IsDFS() {
		e.log.Info("not a DFS channel, radar detection off", "channel", ch)
		return nil
	}

	var cur, ok = e.getChanState(ch)
	if !ok {
		return ErrNoChannelState
	}
	e.curChanIndex.Store(cur)

	var extDetect = false
	if ch.IsHT40() && e.caps.ExtChanOK {
		var extCh = Channel{Freq: ch.ExtFreq(), Flags: ch.Flags}
		var ext, extOK = e.getChanState(extCh)
		if extOK {
			e.extChanIndex.Store(ext)
			extDetect = true
		}
	}

	e.resetAllDelayLines()
	e.queue.ResetPending()
	e.rinfo.extChanBusy = 0

	var params = e.states[cur].params
	var enableErr = e.provider.EnableRadar(params, extDetect)
	if enableErr != nil {
		e.curChanIndex.Store(-1)
		e.extChanIndex.Store(-1)
		return enableErr
	}

	var flags uint32 = procRadarEnabled
	if extDetect {
		flags |= procExtChanEnabled
	}
	e.setProcFlags(flags, 0)

	e.log.Info("radar detection on", "channel", ch, "domain", e.domain, "ext", extDetect, "params", params)

	return nil
}

// setProcFlags is only called with e.mu held.
func (e *Engine) setProcFlags(set, clear uint32) {
	e.procPhyErr.Store((e.procPhyErr.Load() &^ clear) | set)
}

func (e *Engine) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Run sweeps the queue whenever pulses arrive, and on a timer, until ctx
// is done.
func (e *Engine) Run(ctx context.Context) error {
	var ticker = time.NewTicker(e.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.wake:
		case <-ticker.C:
		}

		e.Drain()
	}
}

// Drain sweeps until the queue is empty.
func (e *Engine) Drain() {
	for {
		e.ProcessRadarEvents()

		if e.queue.Pending() == 0 {
			return
		}
	}
}

// PendingEvents is the number of queued pulses.
func (e *Engine) PendingEvents() int {
	return e.queue.Pending()
}
