package dfs

/*------------------------------------------------------------------
 *
 * Purpose:	Radar signature tables for each regulatory domain.
 *
 * Description:	The tables are YAML.  A default set is compiled in and
 *		can be replaced from a file for lab work.
 *
 *		Each radar entry describes one waveform:
 *
 *		  num_pulses	pulses in a burst
 *		  pulse_dur	nominal duration, µs, also the grouping key
 *		  pulse_freq	lowest PRF, Hz
 *		  max_pulse_freq	highest PRF, Hz.  Equal to pulse_freq for
 *				a single fixed PRI.
 *		  pattern	variable, fixed or staggered
 *		  pulse_var	PRI tolerance, µs
 *		  threshold	matching pulses needed
 *		  min_dur, max_dur	accepted durations, µs
 *		  rssi_thresh	minimum RSSI
 *		  mean_offset	PRI bias, µs
 *		  rssi_margin	extra RSSI margin for the filter type
 *		  ignore_pri_window	accept missing pulses (multiples of
 *				the PRI) and short PRIs
 *
 *---------------------------------------------------------------*/

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed radar_tables.yaml
var defaultRadarTablesYAML []byte

type RadarPulse struct {
	ID              uint32      `yaml:"id"`
	Name            string      `yaml:"name"`
	NumPulses       uint32      `yaml:"num_pulses"`
	PulseDur        uint32      `yaml:"pulse_dur"`
	PulseFreq       uint32      `yaml:"pulse_freq"`
	MaxPulseFreq    uint32      `yaml:"max_pulse_freq"`
	Pattern         PatternType `yaml:"pattern"`
	PulseVar        uint32      `yaml:"pulse_var"`
	Threshold       uint32      `yaml:"threshold"`
	MinDur          uint32      `yaml:"min_dur"`
	MaxDur          uint32      `yaml:"max_dur"`
	RSSIThresh      uint32      `yaml:"rssi_thresh"`
	MeanOffset      uint32      `yaml:"mean_offset"`
	RSSIMargin      int32       `yaml:"rssi_margin"`
	IgnorePRIWindow uint32      `yaml:"ignore_pri_window"`
}

// Bin5Pulse describes a long pulse (FCC bin 5) radar.
type Bin5Pulse struct {
	Threshold  uint32 `yaml:"threshold"`   // Bursts needed.
	MinDur     uint32 `yaml:"min_dur"`     // µs
	MaxDur     uint32 `yaml:"max_dur"`     // µs
	TimeWindow uint32 `yaml:"time_window"` // Seconds.
	RSSIThresh uint32 `yaml:"rssi_thresh"`
	RSSIMargin uint32 `yaml:"rssi_margin"`
}

type DomainTable struct {
	Domain        Domain        `yaml:"-"`
	DefaultParams PhyErrParams  `yaml:"default_params"`
	PRIMultiplier uint32        `yaml:"pri_multiplier"`
	NOLTimeout    time.Duration `yaml:"nol_timeout"`
	Radars        []RadarPulse  `yaml:"radars"`
	Bin5          []Bin5Pulse   `yaml:"bin5"`
}

type RadarTables struct {
	Domains map[string]*DomainTable `yaml:"domains"`
}

func LoadRadarTables(data []byte) (*RadarTables, error) {
	var tables RadarTables

	var err = yaml.Unmarshal(data, &tables)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadRadarTable, err)
	}

	for name, dt := range tables.Domains {
		var d, parseErr = ParseDomain(name)
		if parseErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadRadarTable, parseErr)
		}

		if dt == nil {
			return nil, fmt.Errorf("%w: domain %s is empty", ErrBadRadarTable, name)
		}

		dt.Domain = d

		var validateErr = dt.Validate()
		if validateErr != nil {
			return nil, fmt.Errorf("domain %s: %w", name, validateErr)
		}
	}

	return &tables, nil
}

func LoadRadarTablesFile(path string) (*RadarTables, error) {
	var data, readErr = os.ReadFile(path)
	if readErr != nil {
		return nil, fmt.Errorf("reading radar tables: %w", readErr)
	}

	return LoadRadarTables(data)
}

// DefaultRadarTables returns a fresh copy of the compiled in tables.
func DefaultRadarTables() (*RadarTables, error) {
	return LoadRadarTables(defaultRadarTablesYAML)
}

func (t *RadarTables) Lookup(d Domain) (*DomainTable, error) {
	var dt, ok = t.Domains[d.String()]
	if !ok || d == DomainUninit {
		return nil, fmt.Errorf("%w: no radar table for %s", ErrUnknownDomain, d)
	}

	return dt, nil
}

func (dt *DomainTable) Validate() error {
	if len(dt.Radars) == 0 && len(dt.Bin5) == 0 {
		return fmt.Errorf("%w: no radars", ErrBadRadarTable)
	}

	if len(dt.Bin5) > MaxBin5Radars {
		return fmt.Errorf("%w: %d bin5 radars, at most %d", ErrBadRadarTable, len(dt.Bin5), MaxBin5Radars)
	}

	for i := range dt.Radars {
		var p = &dt.Radars[i]

		switch {
		case p.NumPulses == 0 || p.NumPulses > MaxDelayLineSize:
			return fmt.Errorf("%w: radar %d num_pulses %d", ErrBadRadarTable, p.ID, p.NumPulses)
		case p.PulseFreq == 0 || p.MaxPulseFreq < p.PulseFreq:
			return fmt.Errorf("%w: radar %d pulse_freq %d..%d", ErrBadRadarTable, p.ID, p.PulseFreq, p.MaxPulseFreq)
		case p.MinDur > p.MaxDur || p.MaxDur > MaxDuration:
			return fmt.Errorf("%w: radar %d duration %d..%d", ErrBadRadarTable, p.ID, p.MinDur, p.MaxDur)
		case p.Threshold == 0 || p.Threshold > p.NumPulses:
			return fmt.Errorf("%w: radar %d threshold %d", ErrBadRadarTable, p.ID, p.Threshold)
		}
	}

	for i := range dt.Bin5 {
		var b = &dt.Bin5[i]
		if b.Threshold == 0 || b.MinDur > b.MaxDur || b.TimeWindow == 0 {
			return fmt.Errorf("%w: bin5 radar %d", ErrBadRadarTable, i)
		}
	}

	return nil
}
