package dfs

// PhyErrReport is one raw radar PHY error as delivered by the driver.
type PhyErrReport struct {
	Data    []byte // Report payload, layout depends on the hardware generation.
	FullTSF uint64 // 64 bit TSF read when the report was received.
	RxTS    uint32 // Low order hardware timestamp of the pulse.
	RSSI    uint8  // Primary (control) channel RSSI.
	ExtRSSI uint8  // Extension channel RSSI, HT40 only.
}

// DurUnit says how a pulse duration was measured.
type DurUnit uint8

const (
	DurTicks  DurUnit = iota // Hardware clock ticks.
	DurMicros                // Already µs.
)

// HwDuration is a pulse duration that remembers its unit, so it is only
// ever converted once.
type HwDuration struct {
	Value uint32
	Unit  DurUnit
}

// Normalize converts to µs.  A zero duration becomes 1 so a pulse is never
// lost to rounding.  Normalizing an already normalized value is a no-op.
func (d HwDuration) Normalize(multiplier uint32) HwDuration {
	var us = d.Value
	if d.Unit == DurTicks {
		us = uint32((uint64(multiplier)*uint64(d.Value) + 50) / 100)
	}

	if us == 0 {
		us = 1
	}

	return HwDuration{Value: us, Unit: DurMicros}
}

// PhyErrEvent is a decoded PHY error, before it is queued.
type PhyErrEvent struct {
	Duration    HwDuration
	RSSI        uint8
	TS          uint32
	FullTS      uint64
	IsPrimary   bool
	IsExtension bool
	IsDC        bool
	IsHWChirp   bool
	IsSWChirp   bool
	CheckChirp  bool // Chirp state is known, bin5 should insist on it.
	ChirpSlope  int
	Sidx        int16 // Signed FFT bin of the peak.
	DeltaPeak   int8
	DeltaDiff   uint8
	FreqOffset  int32 // kHz from channel centre.
	ChirpSpan   int32 // kHz swept over the pulse.
	FFT         []byte
}

type eventFlags uint8

const (
	evExtension eventFlags = 1 << iota
	evDC
	evHWChirp
	evSWChirp
	evCheckChirp
)

// radarEvent is a pooled queue entry.
type radarEvent struct {
	ts        uint32
	fullTS    uint64
	dur       uint32 // µs
	rssi      uint8
	chanIndex int32
	flags     eventFlags
	sidx      int16
	deltaPeak int8
	deltaDiff uint8

	next EventHandle
}
