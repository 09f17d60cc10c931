package dfs

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
)

// fakeClock only moves when Advance is called.  Timers due by then fire
// on the calling goroutine, without the clock lock held.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	c       *fakeClock
	when    time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	var t = &fakeTimer{c: c, when: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)

	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)

	var due []*fakeTimer
	var keep = c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.stopped:
		case !t.when.After(c.now):
			t.fired = true
			due = append(due, t)
		default:
			keep = append(keep, t)
		}
	}
	c.timers = keep
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

// Active is the number of timers still waiting.
func (c *fakeClock) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n = 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}

	return n
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}

	t.stopped = true

	return true
}

var (
	chan5260    = Channel{Freq: 5260, Flags: ChanHT20 | ChanDFS}
	chan5260P   = Channel{Freq: 5260, Flags: ChanHT40Plus | ChanDFS}
	chan5180    = Channel{Freq: 5180, Flags: ChanHT20}
	tlvCaps     = Capabilities{Generation: HwTLV}
	merlinCaps  = Capabilities{Generation: HwMerlin, ExtChanOK: true}
	owlCaps     = Capabilities{Generation: HwOwl}
	testTSFBase = uint64(1000000)
)

// testRig is an engine on a StaticProvider that remembers what the
// engine told it.
type testRig struct {
	engine   *Engine
	provider *StaticProvider
	clock    *fakeClock

	mu     sync.Mutex
	radars []Channel
	nols   [][]NOLEntry
}

func (r *testRig) Radars() []Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Channel(nil), r.radars...)
}

// LastNOL is the most recent channel list update, and whether there was
// one.
func (r *testRig) LastNOL() ([]NOLEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.nols) == 0 {
		return nil, false
	}

	return r.nols[len(r.nols)-1], true
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

// newTestRig builds, loads and enables an engine.  tweak may adjust the
// configuration first.
func newTestRig(t *testing.T, table *DomainTable, ch Channel, caps Capabilities, tweak func(*Config)) *testRig {
	t.Helper()

	var rig = &testRig{clock: newFakeClock()}

	rig.provider = NewStaticProvider(ch, caps)
	rig.provider.OnRadar = func(ch Channel) {
		rig.mu.Lock()
		defer rig.mu.Unlock()
		rig.radars = append(rig.radars, ch)
	}
	rig.provider.OnNOL = func(nol []NOLEntry) {
		rig.mu.Lock()
		defer rig.mu.Unlock()
		rig.nols = append(rig.nols, nol)
	}

	var cfg = DefaultConfig()
	cfg.Logger = quietLogger()
	cfg.Clock = rig.clock
	if tweak != nil {
		tweak(cfg)
	}

	rig.engine = NewEngine(rig.provider, cfg)
	require.NoError(t, rig.engine.InitRadarFilters(table))
	require.NoError(t, rig.engine.RadarEnable())

	return rig
}

// domainTable loads one domain from a radar table document.
func domainTable(t *testing.T, doc string, d Domain) *DomainTable {
	t.Helper()

	var tables, err = LoadRadarTables([]byte(doc))
	require.NoError(t, err)

	var dt, lookupErr = tables.Lookup(d)
	require.NoError(t, lookupErr)

	return dt
}

func defaultTable(t *testing.T, d Domain) *DomainTable {
	t.Helper()

	var tables, err = DefaultRadarTables()
	require.NoError(t, err)

	var dt, lookupErr = tables.Lookup(d)
	require.NoError(t, lookupErr)

	return dt
}

// One filter each, so a scenario exercises exactly one matcher.

const variableTableYAML = `
domains:
  fcc:
    pri_multiplier: 2
    radars:
      - {id: 1, name: var-test, num_pulses: 10, pulse_dur: 5, pulse_freq: 2000, max_pulse_freq: 5000,
         pattern: variable, pulse_var: 4, threshold: 6, min_dur: 3, max_dur: 8, rssi_thresh: 20}
`

const fixedTableYAML = `
domains:
  fcc:
    pri_multiplier: 2
    radars:
      - {id: 2, name: fixed-test, num_pulses: 18, pulse_dur: 1, pulse_freq: 700, max_pulse_freq: 700,
         pattern: fixed, pulse_var: 4, threshold: 10, min_dur: 0, max_dur: 4, rssi_thresh: 18}
`

// strict-test needs every window of the comb.
const strictFixedTableYAML = `
domains:
  fcc:
    pri_multiplier: 2
    radars:
      - {id: 3, name: strict-test, num_pulses: 18, pulse_dur: 1, pulse_freq: 700, max_pulse_freq: 700,
         pattern: fixed, pulse_var: 4, threshold: 18, min_dur: 0, max_dur: 4, rssi_thresh: 18}
`

// burst-test: 1000µs PRI, 10µs pulses, 17 of 18 windows.
const burstTableYAML = `
domains:
  fcc:
    pri_multiplier: 2
    radars:
      - {id: 4, name: burst-test, num_pulses: 18, pulse_dur: 10, pulse_freq: 1000, max_pulse_freq: 1000,
         pattern: fixed, pulse_var: 4, threshold: 17, min_dur: 8, max_dur: 12, rssi_thresh: 20}
`

const staggeredTableYAML = `
domains:
  etsi:
    pri_multiplier: 2
    radars:
      - {id: 5, name: stagger-test, num_pulses: 10, pulse_dur: 2, pulse_freq: 300, max_pulse_freq: 400,
         pattern: staggered, pulse_var: 6, threshold: 4, min_dur: 0, max_dur: 5, rssi_thresh: 24}
`

// pulseTrain spaces pulses by the given PRIs in turn.
func pulseTrain(start uint64, n int, dur uint32, rssi uint8, pris ...uint32) []PulseSpec {
	var train = make([]PulseSpec, n)
	var ts = start
	for i := range train {
		train[i] = PulseSpec{TS: ts, Dur: dur, RSSI: rssi}
		ts += uint64(pris[i%len(pris)])
	}

	return train
}

// feed queues every pulse, failing the test on any rejection.
func (r *testRig) feed(t *testing.T, train []PulseSpec) {
	t.Helper()

	var ht40 = r.provider.CurrentChannel().IsHT40()
	for i, p := range train {
		require.NoError(t, r.engine.ProcessPhyErr(EncodeReport(r.provider.Capabilities(), ht40, p)), "pulse %d", i)
	}
}

// feedAndSweep queues pulses one at a time, sweeping after each, and
// returns the index of the pulse that was detected, or -1.
func (r *testRig) feedAndSweep(t *testing.T, train []PulseSpec) int {
	t.Helper()

	var ht40 = r.provider.CurrentChannel().IsHT40()
	for i, p := range train {
		var err = r.engine.ProcessPhyErr(EncodeReport(r.provider.Capabilities(), ht40, p))
		if err != nil {
			require.ErrorIs(t, err, ErrChannelInterference, "pulse %d", i)
			continue
		}
		if r.engine.ProcessRadarEvents() {
			return i
		}
	}

	return -1
}
