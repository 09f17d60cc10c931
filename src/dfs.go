// Package dfs implements Dynamic Frequency Selection radar detection for a
// 5GHz Wi-Fi radio.  Hardware PHY error reports are decoded into pulses,
// queued, and swept through a bank of radar signature filters.  A match
// puts the channel on the Non-Occupancy List and tells the driver layer.
package dfs

/*------------------------------------------------------------------
 *
 * Purpose:	Sizes, limits and the small enumerations shared by
 *		every part of the detector.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	MaxEvents          = 1024 // Event pool size.
	MaxEventsPerSweep  = 100  // Events handled per ProcessRadarEvents call.
	MaxDelayLineSize   = 64   // Must be a power of 2.
	MaxPulseBufferSize = 1024 // Must be a power of 2.
	MaxBin5Size        = 128  // Must be a power of 2.
	MaxBin5Radars      = 4
	MaxRadarTypes      = 32
	MaxFiltersPerType  = 10
	MaxRadarOverlap    = 16
	MaxDuration        = 255 // Largest duration, in µs, indexed by the radar table.
	NumRadarStates     = 64

	DefaultNOLCapacity = 64
	DefaultNOLTimeout  = 30 * time.Minute

	DefaultFalseRSSIThresh = 50
	DefaultPeakMag         = 40

	maxDelayLineMask  = MaxDelayLineSize - 1
	maxPulseLineMask  = MaxPulseBufferSize - 1
	maxBin5Mask       = MaxBin5Size - 1
	defaultNOLWidth   = 20 // MHz.  Every event is assumed to be 20MHz wide.
	maxPulseDurMargin = 20 // µs of slack on the longest filter duration, for chirps.
)

// Hardware timestamp field.
const (
	tsMask      uint64 = 0xFFFFFFFF
	tsShift            = 32
	tsHalfRange uint64 = 1 << (tsShift - 1)
)

// Duration multipliers in hundredths of a µs per hardware tick.
const (
	durMultiplierNormal   = 80       // 0.8 µs ticks.
	durMultiplierFastClck = 800 / 11 // 44MHz fast clock.
)

// Pattern matching constants.
const (
	DefaultPRIMargin      = 10
	FixedPatternPRIMargin = 6
	StaggeredPRIMargin    = 6
	ExtChanLoadingThresh  = 30 // % busy before adaptation starts.
	InvalidPRILimit       = 100

	staggeredMinPRIDistance = 20
	priMultipleTolerance    = 5
	maxAllowedMissed        = 3
)

// Domain is a DFS regulatory domain.
type Domain int

const (
	DomainUninit Domain = iota
	DomainFCC
	DomainETSI
	DomainMKK4
)

var domainNames = map[Domain]string{
	DomainUninit: "uninit",
	DomainFCC:    "fcc",
	DomainETSI:   "etsi",
	DomainMKK4:   "mkk4",
}

func (d Domain) String() string {
	var name, ok = domainNames[d]
	if !ok {
		return fmt.Sprintf("domain(%d)", int(d))
	}

	return name
}

// ParseDomain accepts the lower or upper case domain name.
func ParseDomain(s string) (Domain, error) {
	var want = strings.ToLower(strings.TrimSpace(s))
	for d, name := range domainNames {
		if name == want {
			return d, nil
		}
	}

	return DomainUninit, fmt.Errorf("%w: %q", ErrUnknownDomain, s)
}

func (d *Domain) UnmarshalYAML(value *yaml.Node) error {
	var parsed, parseErr = ParseDomain(value.Value)
	if parseErr != nil {
		return parseErr
	}

	*d = parsed

	return nil
}

func (d Domain) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// PatternType selects the matching algorithm of a radar filter.
type PatternType int

const (
	PatternVariable  PatternType = 0
	PatternFixed     PatternType = 1
	PatternStaggered PatternType = 2
)

func (p PatternType) String() string {
	switch p {
	case PatternVariable:
		return "variable"
	case PatternFixed:
		return "fixed"
	case PatternStaggered:
		return "staggered"
	}

	return fmt.Sprintf("pattern(%d)", int(p))
}

func (p *PatternType) UnmarshalYAML(value *yaml.Node) error {
	switch strings.ToLower(value.Value) {
	case "variable", "0", "":
		*p = PatternVariable
	case "fixed", "1":
		*p = PatternFixed
	case "staggered", "2":
		*p = PatternStaggered
	default:
		return fmt.Errorf("%w: pattern %q", ErrBadRadarTable, value.Value)
	}

	return nil
}

// HwGeneration identifies the PHY error report layout of the radio.
type HwGeneration int

const (
	HwOwl    HwGeneration = iota // Single duration byte, no chirp data.
	HwSowl                       // Pri/ext trailer, coarse chirp check.
	HwMerlin                     // Pri/ext trailer, FFT slope chirp check.
	HwTLV                        // Tagged radar summary and FFT reports.
)

var generationNames = map[HwGeneration]string{
	HwOwl:    "owl",
	HwSowl:   "sowl",
	HwMerlin: "merlin",
	HwTLV:    "tlv",
}

func (g HwGeneration) String() string {
	var name, ok = generationNames[g]
	if !ok {
		return fmt.Sprintf("generation(%d)", int(g))
	}

	return name
}

func ParseHwGeneration(s string) (HwGeneration, error) {
	var want = strings.ToLower(strings.TrimSpace(s))
	for g, name := range generationNames {
		if name == want {
			return g, nil
		}
	}

	return HwOwl, fmt.Errorf("%w: hardware generation %q", ErrBadArgument, s)
}

func (g *HwGeneration) UnmarshalYAML(value *yaml.Node) error {
	var parsed, parseErr = ParseHwGeneration(value.Value)
	if parseErr != nil {
		return parseErr
	}

	*g = parsed

	return nil
}

// Capabilities describes what the radio can report.
type Capabilities struct {
	Generation   HwGeneration `yaml:"generation"`
	ExtChanOK    bool         `yaml:"ext_chan_ok"`  // Reports pulses on the HT40 extension channel.
	FastClock    bool         `yaml:"fast_clock"`   // Durations are in 44MHz-derived ticks.
	Oversampling bool         `yaml:"oversampling"` // TLV FFT bins are 44MHz/128 wide.
}

func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}

	return b - a
}

// round100 rounds a value in hundredths to the nearest unit.
func round100(val int32) int32 {
	var ival = val / 100
	var rem = val - ival*100

	if rem < 50 {
		return ival
	}

	return ival + 1
}
