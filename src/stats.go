package dfs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

type counters struct {
	phyErrors     atomic.Uint64
	priPhyErrors  atomic.Uint64
	extPhyErrors  atomic.Uint64
	dcPhyErrors   atomic.Uint64
	earlyExt      atomic.Uint64
	rejected      atomic.Uint64
	falseDetects  atomic.Uint64
	rssiDiscards  atomic.Uint64
	durDiscards   atomic.Uint64
	queued        atomic.Uint64
	queueDrops    atomic.Uint64
	processed     atomic.Uint64
	falseTriggers atomic.Uint64
	bin5Detects   atomic.Uint64
	filterDetects atomic.Uint64
	radarDetects  atomic.Uint64
	bangRadars    atomic.Uint64
	nolFull       atomic.Uint64
}

// Stats is a snapshot of the engine counters.
type Stats struct {
	PhyErrors     uint64 `yaml:"phy_errors"`
	PriPhyErrors  uint64 `yaml:"pri_phy_errors"`
	ExtPhyErrors  uint64 `yaml:"ext_phy_errors"`
	DCPhyErrors   uint64 `yaml:"dc_phy_errors"`
	EarlyExt      uint64 `yaml:"early_ext"`
	Rejected      uint64 `yaml:"rejected"`
	FalseDetects  uint64 `yaml:"false_detects"`
	RSSIDiscards  uint64 `yaml:"rssi_discards"`
	DurDiscards   uint64 `yaml:"dur_discards"`
	Queued        uint64 `yaml:"queued"`
	QueueDrops    uint64 `yaml:"queue_drops"`
	Processed     uint64 `yaml:"processed"`
	FalseTriggers uint64 `yaml:"false_triggers"`
	Bin5Detects   uint64 `yaml:"bin5_detects"`
	FilterDetects uint64 `yaml:"filter_detects"`
	RadarDetects  uint64 `yaml:"radar_detects"`
	BangRadars    uint64 `yaml:"bang_radars"`
	NOLFull       uint64 `yaml:"nol_full"`
	Pending       int    `yaml:"pending"`
	FreeEvents    int    `yaml:"free_events"`
	NOLEntries    int    `yaml:"nol_entries"`
}

func (e *Engine) Stats() Stats {
	var c = &e.stats

	return Stats{
		PhyErrors:     c.phyErrors.Load(),
		PriPhyErrors:  c.priPhyErrors.Load(),
		ExtPhyErrors:  c.extPhyErrors.Load(),
		DCPhyErrors:   c.dcPhyErrors.Load(),
		EarlyExt:      c.earlyExt.Load(),
		Rejected:      c.rejected.Load(),
		FalseDetects:  c.falseDetects.Load(),
		RSSIDiscards:  c.rssiDiscards.Load(),
		DurDiscards:   c.durDiscards.Load(),
		Queued:        c.queued.Load(),
		QueueDrops:    c.queueDrops.Load(),
		Processed:     c.processed.Load(),
		FalseTriggers: c.falseTriggers.Load(),
		Bin5Detects:   c.bin5Detects.Load(),
		FilterDetects: c.filterDetects.Load(),
		RadarDetects:  c.radarDetects.Load(),
		BangRadars:    c.bangRadars.Load(),
		NOLFull:       c.nolFull.Load(),
		Pending:       e.queue.Pending(),
		FreeEvents:    e.queue.Free(),
		NOLEntries:    e.nol.Len(),
	}
}

// RadarDetects counts detections since start, simulated ones included.
func (e *Engine) RadarDetects() uint64 {
	return e.stats.radarDetects.Load()
}

// LogStats writes the counters every interval until ctx is done.  Quiet
// intervals, with no new PHY errors, are skipped.
func (e *Engine) LogStats(ctx context.Context, interval time.Duration) {
	var ticker = time.NewTicker(interval)
	defer ticker.Stop()

	var last uint64

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var s = e.Stats()
		if s.PhyErrors == last {
			continue
		}
		last = s.PhyErrors

		e.log.Log(log.InfoLevel, "phy error summary",
			"phy_errors", s.PhyErrors, "queued", s.Queued, "dropped", s.QueueDrops,
			"rejected", s.Rejected, "false_detects", s.FalseDetects,
			"rssi_discards", s.RSSIDiscards, "dur_discards", s.DurDiscards,
			"detects", s.RadarDetects, "nol", s.NOLEntries)
	}
}
