package dfs

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// ChanFlags describe the width and regulatory status of a channel.
type ChanFlags uint32

const (
	ChanHT20 ChanFlags = 1 << iota
	ChanHT40Plus
	ChanHT40Minus
	ChanVHT80
	ChanDFS
	ChanTurbo
)

var chanFlagNames = []struct {
	flag ChanFlags
	name string
}{
	{ChanHT20, "ht20"},
	{ChanHT40Plus, "ht40+"},
	{ChanHT40Minus, "ht40-"},
	{ChanVHT80, "vht80"},
	{ChanDFS, "dfs"},
	{ChanTurbo, "turbo"},
}

// ParseChanFlags turns names such as "ht40+" and "dfs" into flags.
func ParseChanFlags(names []string) (ChanFlags, error) {
	var flags ChanFlags

next:
	for _, n := range names {
		var want = strings.ToLower(strings.TrimSpace(n))
		for _, f := range chanFlagNames {
			if f.name == want {
				flags |= f.flag
				continue next
			}
		}

		return 0, fmt.Errorf("%w: channel flag %q", ErrBadArgument, n)
	}

	return flags, nil
}

func (f ChanFlags) String() string {
	var parts []string
	for _, cf := range chanFlagNames {
		if f&cf.flag != 0 {
			parts = append(parts, cf.name)
		}
	}

	return strings.Join(parts, ",")
}

// Channel is the operating channel as the driver sees it.
type Channel struct {
	Freq       uint16 // Primary 20MHz channel, MHz.
	Flags      ChanFlags
	CenterFreq uint16 // Segment centre, MHz.  Zero means derive from Freq and Flags.

	// Primary minus segment centre, MHz.  Used for VHT80 corrections.
	PriCenterSeparation int
}

func (c Channel) IsDFS() bool   { return c.Flags&ChanDFS != 0 }
func (c Channel) IsHT40() bool  { return c.Flags&(ChanHT40Plus|ChanHT40Minus) != 0 }
func (c Channel) IsVHT80() bool { return c.Flags&ChanVHT80 != 0 }
func (c Channel) IsTurbo() bool { return c.Flags&ChanTurbo != 0 }

// ExtFreq is the HT40 extension channel, or zero.
func (c Channel) ExtFreq() uint16 {
	switch {
	case c.Flags&ChanHT40Plus != 0:
		return c.Freq + 20
	case c.Flags&ChanHT40Minus != 0:
		return c.Freq - 20
	}

	return 0
}

// Centre is the centre of the occupied bandwidth.
func (c Channel) Centre() uint16 {
	if c.CenterFreq != 0 {
		return c.CenterFreq
	}

	switch {
	case c.Flags&ChanHT40Plus != 0:
		return c.Freq + 10
	case c.Flags&ChanHT40Minus != 0:
		return c.Freq - 10
	}

	return c.Freq
}

func (c Channel) Width() uint16 {
	switch {
	case c.IsVHT80():
		return 80
	case c.IsHT40():
		return 40
	}

	return 20
}

func (c Channel) String() string {
	return fmt.Sprintf("%dMHz[%s]", c.Freq, c.Flags)
}

// ChannelProvider is the driver layer seen from the detector.
// Implementations must be safe for concurrent use: ingestion and the
// sweep may run on different goroutines.
type ChannelProvider interface {
	CurrentChannel() Channel
	Capabilities() Capabilities
	// EnableRadar programs the PHY error thresholds.
	EnableRadar(params PhyErrParams, extChan bool) error
	// ExtChannelBusy returns the extension channel busy percentage, or
	// -1 when no fresh measurement is available.
	ExtChannelBusy() int
	RadarFound(ch Channel)
	UpdateChannelList(nol []NOLEntry)
}

// channelState is the per-channel radar bookkeeping.
type channelState struct {
	ch           Channel
	params       PhyErrParams
	interference atomic.Bool
}

// getChanState finds the state slot for a channel, claiming a free slot
// the first time a channel is seen.  Caller holds e.mu.
func (e *Engine) getChanState(ch Channel) (int32, bool) {
	for i := range e.states {
		var rs = &e.states[i]
		if rs.ch.Freq == ch.Freq && rs.ch.Flags == ch.Flags {
			return int32(i), true
		}
	}

	for i := range e.states {
		var rs = &e.states[i]
		if rs.ch.Freq == 0 {
			rs.ch = ch
			rs.params = e.defaultParams
			rs.interference.Store(e.nol.Contains(ch.Freq))
			return int32(i), true
		}
	}

	e.log.Error("no radar state slots left", "freq", ch.Freq)

	return -1, false
}

// markInterference flags every state slot that uses freq.
func (e *Engine) markInterference(freq uint16, on bool) {
	for i := range e.states {
		if e.states[i].ch.Freq == freq {
			e.states[i].interference.Store(on)
		}
	}
}
