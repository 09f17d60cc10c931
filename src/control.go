package dfs

/*------------------------------------------------------------------
 *
 * Purpose:	Operator controls: thresholds, debug, NOL, simulated
 *		radar.
 *
 * Description:	Each control is a method.  ExecControl maps one line of
 *		text onto them for the control socket and console.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// SetThreshold changes one PHY error threshold for the current channel and
// the domain default, and reprograms the radio.
func (e *Engine) SetThreshold(p Param, v int32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var err = e.defaultParams.Set(p, v)
	if err != nil {
		return err
	}

	var cur = e.curChanIndex.Load()
	if cur < 0 {
		return nil
	}

	var rs = &e.states[cur]
	if err = rs.params.Set(p, v); err != nil {
		return err
	}

	var ext = e.extChanIndex.Load() >= 0
	return e.provider.EnableRadar(rs.params, ext)
}

// Thresholds are those of the current channel, or the domain defaults.
func (e *Engine) Thresholds() PhyErrParams {
	e.mu.Lock()
	defer e.mu.Unlock()

	var cur = e.curChanIndex.Load()
	if cur >= 0 {
		return e.states[cur].params
	}

	return e.defaultParams
}

func (e *Engine) EnableDetection() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.radarEnableLocked()
}

func (e *Engine) DisableDetection() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.setProcFlags(0, procRadarEnabled|procExtChanEnabled)
	e.queue.ResetPending()
	e.log.Info("radar detection disabled")
}

func (e *Engine) DetectionEnabled() bool {
	return e.procPhyErr.Load()&procRadarEnabled != 0
}

func (e *Engine) SetDebugMask(m DebugMask) {
	e.debugMask.Store(uint32(m))

	if m != 0 {
		e.log.SetLevel(log.DebugLevel)
	} else {
		e.log.SetLevel(e.baseLevel)
	}
}

func (e *Engine) DebugMask() DebugMask {
	return DebugMask(e.debugMask.Load())
}

// BangRadar makes the next sweep report radar on the current channel.
func (e *Engine) BangRadar() {
	e.mu.Lock()
	e.bangRadar = true
	e.mu.Unlock()

	e.signal()
}

func (e *Engine) NOL() []NOLEntry {
	return e.nol.Snapshot()
}

// SetNOL restores saved entries with whatever time they have left.
// Entries already past their timeout are skipped.
func (e *Engine) SetNOL(entries []NOLEntry) error {
	var now = e.clock.Now()
	var added = 0
	var firstErr error

	e.mu.Lock()
	for _, ent := range entries {
		var left = ent.Remaining(now)
		if left <= 0 {
			continue
		}

		var width = ent.ChWidth
		if width == 0 {
			width = defaultNOLWidth
		}

		var err = e.nol.AddChannel(ent.Freq, width, left)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		e.markInterference(ent.Freq, true)
		added++
	}
	e.mu.Unlock()

	e.log.Info("NOL restored", "entries", added, "skipped", len(entries)-added)

	if added > 0 {
		e.provider.UpdateChannelList(e.nol.Snapshot())
	}

	return firstErr
}

// ClearNOL empties the NOL and makes its channels usable again.
func (e *Engine) ClearNOL() {
	e.mu.Lock()
	var dropped = e.nol.Clear()
	for _, ent := range dropped {
		e.markInterference(ent.Freq, false)
	}
	e.mu.Unlock()

	e.log.Info("NOL cleared", "entries", len(dropped))
	e.provider.UpdateChannelList(e.nol.Snapshot())
}

func (e *Engine) SetFalseRSSIThreshold(v uint8) { e.falseRSSIThresh.Store(uint32(v)) }
func (e *Engine) FalseRSSIThreshold() uint8    { return uint8(e.falseRSSIThresh.Load()) }
func (e *Engine) SetPeakMag(v uint8)           { e.peakMag.Store(uint32(v)) }
func (e *Engine) PeakMag() uint8               { return uint8(e.peakMag.Load()) }

// SetNOLTimeout applies to channels added from now on.
func (e *Engine) SetNOLTimeout(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: NOL timeout %s", ErrBadArgument, d)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.nolTimeout = d
	e.nolTimeoutSet = true

	return nil
}

func (e *Engine) NOLTimeout() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.nolTimeout
}

func (e *Engine) SetUseNOL(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.useNOL = on
}

// SetIgnoreDFS makes ProcessPhyErr drop everything.  For testing the rest
// of the driver on a DFS channel.
func (e *Engine) SetIgnoreDFS(on bool) {
	e.ignoreDFS.Store(on)
}

func (e *Engine) SetPRIMultiplier(m uint32) error {
	if m == 0 {
		return fmt.Errorf("%w: PRI multiplier 0", ErrBadArgument)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.priMultiplier = m

	return nil
}

func (e *Engine) PRIMultiplier() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.priMultiplier
}

const controlHelp = `commands:
  thresh [get]                  show thresholds
  thresh set <name> <value>     set a threshold (firpwr rrssi height prssi inband relpwr relstep maxlen)
  detect on|off                 enable or disable detection
  debug [mask]                  show or set the debug mask (number or names)
  bangradar                     simulate a radar on the current channel
  nol [get]                     show the NOL
  nol clear                     empty the NOL
  nol add <freq> [minutes]      put a channel on the NOL
  falserssi [n]                 false detect RSSI threshold
  peakmag [n]                   false detect peak magnitude
  noltimeout [duration]         NOL timeout for new entries
  usenol on|off                 use the NOL at all
  ignoredfs on|off              drop every PHY error
  primult [n]                   PRI multiplier
  stats                         counters
  detects                       radar detections
  help                          this text`

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "1", "true", "yes":
		return true, nil
	case "off", "0", "false", "no":
		return false, nil
	}

	return false, fmt.Errorf("%w: want on or off, got %q", ErrBadArgument, s)
}

func parseUint8(s string) (uint8, error) {
	var v, err = strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadArgument, s)
	}

	return uint8(v), nil
}

func formatNOL(now time.Time, entries []NOLEntry) string {
	if len(entries) == 0 {
		return "NOL empty"
	}

	var sb strings.Builder
	for i, ent := range entries {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%d MHz width %d remaining %s", ent.Freq, ent.ChWidth,
			ent.Remaining(now).Round(time.Second))
	}

	return sb.String()
}

// ExecControl runs one text command and returns its reply.
func (e *Engine) ExecControl(line string) (string, error) {
	var f = strings.Fields(line)
	if len(f) == 0 {
		return "", nil
	}

	var arg = func(i int) string {
		if i < len(f) {
			return f[i]
		}
		return ""
	}

	switch strings.ToLower(f[0]) {
	case "help", "?":
		return controlHelp, nil

	case "thresh":
		switch arg(1) {
		case "", "get":
			return e.Thresholds().String(), nil
		case "set":
			var p, err = ParseParam(arg(2))
			if err != nil {
				return "", err
			}
			var v, convErr = strconv.ParseInt(arg(3), 0, 32)
			if convErr != nil {
				return "", fmt.Errorf("%w: threshold value %q", ErrBadArgument, arg(3))
			}
			if err = e.SetThreshold(p, int32(v)); err != nil {
				return "", err
			}
			return e.Thresholds().String(), nil
		}

	case "detect":
		var on, err = parseOnOff(arg(1))
		if err != nil {
			return "", err
		}
		if !on {
			e.DisableDetection()
			return "detection off", nil
		}
		if err = e.EnableDetection(); err != nil {
			return "", err
		}
		return "detection on", nil

	case "debug":
		if arg(1) != "" {
			var m, err = ParseDebugMask(arg(1))
			if err != nil {
				return "", err
			}
			e.SetDebugMask(m)
		}
		return fmt.Sprintf("debug 0x%x %s", uint32(e.DebugMask()), e.DebugMask()), nil

	case "bangradar":
		e.BangRadar()
		return "radar simulated", nil

	case "nol":
		switch arg(1) {
		case "", "get":
			return formatNOL(e.clock.Now(), e.NOL()), nil
		case "clear":
			e.ClearNOL()
			return "NOL cleared", nil
		case "add":
			var freq, err = strconv.ParseUint(arg(2), 10, 16)
			if err != nil {
				return "", fmt.Errorf("%w: frequency %q", ErrBadArgument, arg(2))
			}
			var timeout = e.NOLTimeout()
			if arg(3) != "" {
				var mins, minsErr = strconv.ParseUint(arg(3), 10, 32)
				if minsErr != nil || mins == 0 {
					return "", fmt.Errorf("%w: minutes %q", ErrBadArgument, arg(3))
				}
				timeout = time.Duration(mins) * time.Minute
			}
			err = e.SetNOL([]NOLEntry{{
				Freq:    uint16(freq),
				ChWidth: defaultNOLWidth,
				Start:   e.clock.Now(),
				Timeout: timeout,
			}})
			if err != nil {
				return "", err
			}
			return formatNOL(e.clock.Now(), e.NOL()), nil
		}

	case "falserssi":
		if arg(1) != "" {
			var v, err = parseUint8(arg(1))
			if err != nil {
				return "", err
			}
			e.SetFalseRSSIThreshold(v)
		}
		return fmt.Sprintf("falserssi %d", e.FalseRSSIThreshold()), nil

	case "peakmag":
		if arg(1) != "" {
			var v, err = parseUint8(arg(1))
			if err != nil {
				return "", err
			}
			e.SetPeakMag(v)
		}
		return fmt.Sprintf("peakmag %d", e.PeakMag()), nil

	case "noltimeout":
		if arg(1) != "" {
			var d, err = time.ParseDuration(arg(1))
			if err != nil {
				return "", fmt.Errorf("%w: duration %q", ErrBadArgument, arg(1))
			}
			if err = e.SetNOLTimeout(d); err != nil {
				return "", err
			}
		}
		return fmt.Sprintf("noltimeout %s", e.NOLTimeout()), nil

	case "usenol":
		var on, err = parseOnOff(arg(1))
		if err != nil {
			return "", err
		}
		e.SetUseNOL(on)
		return fmt.Sprintf("usenol %t", on), nil

	case "ignoredfs":
		var on, err = parseOnOff(arg(1))
		if err != nil {
			return "", err
		}
		e.SetIgnoreDFS(on)
		return fmt.Sprintf("ignoredfs %t", on), nil

	case "primult":
		if arg(1) != "" {
			var v, err = strconv.ParseUint(arg(1), 0, 32)
			if err != nil {
				return "", fmt.Errorf("%w: %q", ErrBadArgument, arg(1))
			}
			if err = e.SetPRIMultiplier(uint32(v)); err != nil {
				return "", err
			}
		}
		return fmt.Sprintf("primult %d", e.PRIMultiplier()), nil

	case "stats":
		var s = e.Stats()
		return fmt.Sprintf("phy_errors %d queued %d dropped %d rejected %d false_detects %d "+
			"rssi_discards %d dur_discards %d processed %d detects %d bin5 %d pending %d free %d nol %d",
			s.PhyErrors, s.Queued, s.QueueDrops, s.Rejected, s.FalseDetects,
			s.RSSIDiscards, s.DurDiscards, s.Processed, s.RadarDetects, s.Bin5Detects,
			s.Pending, s.FreeEvents, s.NOLEntries), nil

	case "detects":
		return fmt.Sprintf("detects %d", e.RadarDetects()), nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, line)
}
