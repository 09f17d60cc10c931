package dfs

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type expiryRecorder struct {
	mu      sync.Mutex
	expired []NOLEntry
}

func (r *expiryRecorder) record(ent NOLEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.expired = append(r.expired, ent)
}

func (r *expiryRecorder) freqs() []uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []uint16
	for _, ent := range r.expired {
		out = append(out, ent.Freq)
	}

	return out
}

func nolFreqs(entries []NOLEntry) []uint16 {
	var out []uint16
	for _, ent := range entries {
		out = append(out, ent.Freq)
	}

	return out
}

func TestNOLAddAndExpire(t *testing.T) {
	var clock = newFakeClock()
	var rec expiryRecorder
	var n = NewNOL(2, clock, rec.record)

	require.NoError(t, n.AddChannel(5260, 20, 30*time.Minute))
	clock.Advance(time.Minute)
	require.NoError(t, n.AddChannel(5280, 20, 30*time.Minute))

	assert.Equal(t, []uint16{5260, 5280}, nolFreqs(n.Snapshot()))
	assert.True(t, n.Contains(5280))
	assert.False(t, n.Contains(5300))

	assert.ErrorIs(t, n.AddChannel(5300, 20, 30*time.Minute), ErrNOLFull)

	clock.Advance(29 * time.Minute)
	assert.Equal(t, []uint16{5260}, rec.freqs())
	assert.Equal(t, []uint16{5280}, nolFreqs(n.Snapshot()))

	clock.Advance(time.Minute)
	assert.Equal(t, []uint16{5260, 5280}, rec.freqs())
	assert.Zero(t, n.Len())
	assert.Zero(t, clock.Active())
}

func TestNOLRefresh(t *testing.T) {
	var clock = newFakeClock()
	var rec expiryRecorder
	var n = NewNOL(4, clock, rec.record)

	require.NoError(t, n.AddChannel(5260, 20, 30*time.Minute))
	clock.Advance(20 * time.Minute)

	require.NoError(t, n.AddChannel(5260, 20, 30*time.Minute))
	assert.Equal(t, 1, n.Len(), "refreshed, not added twice")
	assert.Equal(t, 1, clock.Active(), "old timer stopped")

	clock.Advance(15 * time.Minute)
	assert.Empty(t, rec.freqs(), "timeout restarted")

	clock.Advance(15 * time.Minute)
	assert.Equal(t, []uint16{5260}, rec.freqs())
}

func TestNOLStaleTimer(t *testing.T) {
	var clock = newFakeClock()
	var rec expiryRecorder
	var n = NewNOL(4, clock, rec.record)

	require.NoError(t, n.AddChannel(5500, 20, time.Minute))

	n.expire(5500, 20, 0)
	assert.Equal(t, 1, n.Len(), "generation mismatch")
	assert.Empty(t, rec.freqs())
}

func TestNOLRemoveAndClear(t *testing.T) {
	var clock = newFakeClock()
	var rec expiryRecorder
	var n = NewNOL(4, clock, rec.record)

	for _, f := range []uint16{5260, 5280, 5300} {
		require.NoError(t, n.AddChannel(f, 20, 30*time.Minute))
	}

	assert.True(t, n.RemoveChannel(5280, 20))
	assert.False(t, n.RemoveChannel(5280, 20))
	assert.False(t, n.RemoveChannel(5260, 40), "width must match")
	assert.Equal(t, []uint16{5260, 5300}, nolFreqs(n.Snapshot()))

	var dropped = n.Clear()
	assert.Equal(t, []uint16{5260, 5300}, nolFreqs(dropped))
	assert.Zero(t, n.Len())

	clock.Advance(time.Hour)
	assert.Empty(t, rec.freqs(), "removal is not expiry")
}

func TestNOLEntryRemaining(t *testing.T) {
	var start = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	var ent = NOLEntry{Freq: 5260, ChWidth: 20, Start: start, Timeout: 30 * time.Minute}

	assert.Equal(t, 30*time.Minute, ent.Remaining(start))
	assert.Equal(t, 20*time.Minute, ent.Remaining(start.Add(10*time.Minute)))
	assert.Zero(t, ent.Remaining(start.Add(40*time.Minute)))
}

func TestEngineNOLExpiry(t *testing.T) {
	var rig = newTestRig(t, defaultTable(t, DomainFCC), chan5260, tlvCaps, nil)
	var e = rig.engine
	var r = EncodeReport(tlvCaps, false, PulseSpec{TS: testTSFBase, Dur: 5, RSSI: 30})

	e.BangRadar()
	require.True(t, e.ProcessRadarEvents())
	require.ErrorIs(t, e.ProcessPhyErr(r), ErrChannelInterference)

	rig.clock.Advance(DefaultNOLTimeout)

	var nol, ok = rig.LastNOL()
	require.True(t, ok)
	assert.Empty(t, nol)
	assert.NoError(t, e.ProcessPhyErr(r), "usable again")
}

func TestEngineNOLTimeout(t *testing.T) {
	var rig = newTestRig(t, defaultTable(t, DomainFCC), chan5260, tlvCaps, nil)
	var e = rig.engine

	require.NoError(t, e.SetNOLTimeout(5*time.Minute))
	assert.ErrorIs(t, e.SetNOLTimeout(0), ErrBadArgument)

	e.BangRadar()
	require.True(t, e.ProcessRadarEvents())
	require.Len(t, e.NOL(), 1)
	assert.Equal(t, 5*time.Minute, e.NOL()[0].Timeout)

	rig.clock.Advance(5 * time.Minute)
	assert.Empty(t, e.NOL())
}

func TestEngineSetNOL(t *testing.T) {
	var rig = newTestRig(t, defaultTable(t, DomainFCC), chan5260, tlvCaps, nil)
	var e = rig.engine
	var now = rig.clock.Now()

	require.NoError(t, e.SetNOL([]NOLEntry{
		{Freq: 5260, Start: now.Add(-10 * time.Minute), Timeout: 30 * time.Minute},
		{Freq: 5300, ChWidth: 20, Start: now.Add(-time.Hour), Timeout: 30 * time.Minute},
	}))

	var nol = e.NOL()
	require.Len(t, nol, 1, "expired entries are skipped")
	assert.Equal(t, uint16(defaultNOLWidth), nol[0].ChWidth)
	assert.Equal(t, 20*time.Minute, nol[0].Timeout)

	var r = EncodeReport(tlvCaps, false, PulseSpec{TS: testTSFBase, Dur: 5, RSSI: 30})
	assert.ErrorIs(t, e.ProcessPhyErr(r), ErrChannelInterference)

	e.ClearNOL()
	assert.Empty(t, e.NOL())
	assert.NoError(t, e.ProcessPhyErr(r))
	assert.Zero(t, rig.clock.Active())
}

func TestNOLFullFailOpen(t *testing.T) {
	var rig = newTestRig(t, defaultTable(t, DomainFCC), chan5260, tlvCaps, func(c *Config) {
		c.NOLCapacity = 1
	})
	var e = rig.engine

	require.NoError(t, e.SetNOL([]NOLEntry{{Freq: 5500, Start: rig.clock.Now(), Timeout: time.Hour}}))

	e.BangRadar()
	require.True(t, e.ProcessRadarEvents())

	assert.Equal(t, []Channel{chan5260}, rig.Radars(), "still reported")
	assert.Equal(t, []uint16{5500}, nolFreqs(e.NOL()))
	assert.Equal(t, uint64(1), e.Stats().NOLFull)

	var r = EncodeReport(tlvCaps, false, PulseSpec{TS: testTSFBase, Dur: 5, RSSI: 30})
	assert.NoError(t, e.ProcessPhyErr(r))
}

func TestNOLFullFailClosed(t *testing.T) {
	var rig = newTestRig(t, defaultTable(t, DomainFCC), chan5260, tlvCaps, func(c *Config) {
		c.NOLCapacity = 1
		c.NOLAllocPolicy = NOLFailClosed
	})
	var e = rig.engine

	require.NoError(t, e.SetNOL([]NOLEntry{{Freq: 5500, Start: rig.clock.Now(), Timeout: time.Hour}}))

	e.BangRadar()
	require.True(t, e.ProcessRadarEvents())

	assert.Equal(t, uint64(1), e.Stats().NOLFull)

	var r = EncodeReport(tlvCaps, false, PulseSpec{TS: testTSFBase, Dur: 5, RSSI: 30})
	assert.ErrorIs(t, e.ProcessPhyErr(r), ErrChannelInterference, "blocked with no timeout")

	rig.clock.Advance(2 * time.Hour)
	assert.ErrorIs(t, e.ProcessPhyErr(r), ErrChannelInterference)
}
