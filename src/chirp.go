package dfs

// Chirp detection from the FFT packets that follow a long pulse report.
//
// Each FFT packet is 3 bytes per 20MHz half:
//
//	byte 0	bits 5:0 peak bin index
//	byte 1	peak magnitude
//	byte 2	bitmap of strong bins
//
// HT40 packets carry the lower (primary) half then the upper half.

const (
	fftPacketHT20     = 3
	fftPacketHT40     = 6
	fftIndexMask      = 0x3f
	sowlChirpMinSlope = 4
	chirpMaxDeltaDiff = 2
	maxStrongBins     = 6
	chirpSweepMinBins = 16
	chirpSweepMaxBins = 64

	defaultChirpNumDiffs  = 3
	defaultChirpDeltaStep = 1
)

// ChirpConfig tunes the FFT slope chirp check.
type ChirpConfig struct {
	NumDiffs  int `yaml:"num_diffs"`  // Consecutive peak deltas examined.
	DeltaStep int `yaml:"delta_step"` // Packets between the two ends of a delta.
}

func (c ChirpConfig) withDefaults() ChirpConfig {
	if c.NumDiffs <= 0 {
		c.NumDiffs = defaultChirpNumDiffs
	}
	if c.DeltaStep <= 0 {
		c.DeltaStep = defaultChirpDeltaStep
	}

	return c
}

// fftHalf picks which half of an HT40 packet to look at.
func fftHalf(isPrimary, isExtension, ht40 bool) (pktLen, offset int) {
	if !ht40 {
		return fftPacketHT20, 0
	}

	if isExtension && !isPrimary {
		return fftPacketHT40, fftPacketHT20
	}

	return fftPacketHT40, 0
}

func fftPeakIndex(fft []byte, pkt, pktLen, offset int) int {
	return int(fft[pkt*pktLen+offset] & fftIndexMask)
}

func popcount8(b byte) int {
	var n = 0
	for ; b != 0; b &= b - 1 {
		n++
	}

	return n
}

// IsChirpingSowl compares the peak bins at the start and end of the
// pulse.  A sweep of sowlChirpMinSlope bins or more is a chirp.
func IsChirpingSowl(fft []byte, isPrimary, isExtension, ht40 bool) (bool, int) {
	var pktLen, offset = fftHalf(isPrimary, isExtension, ht40)
	var n = len(fft) / pktLen

	if n < 4 {
		return false, 0
	}

	var first = fftPeakIndex(fft, 0, pktLen, offset) + fftPeakIndex(fft, 1, pktLen, offset)
	var last = fftPeakIndex(fft, n-2, pktLen, offset) + fftPeakIndex(fft, n-1, pktLen, offset)

	var slope = last - first
	if slope < 0 {
		slope = -slope
	}
	slope /= 2

	return slope >= sowlChirpMinSlope, slope
}

// IsChirpingMerlin follows the peak bin packet by packet.  A chirp moves
// the peak steadily in one direction; wideband noise lights up too many
// bins at once.  The hardware sends one FFT packet per fixed slice of the
// pulse, so the packet count stands in for the pulse duration when sizing
// the expected movement per step.
func IsChirpingMerlin(fft []byte, isPrimary, isExtension, ht40 bool, cfg ChirpConfig) (bool, int) {
	cfg = cfg.withDefaults()

	var pktLen, offset = fftHalf(isPrimary, isExtension, ht40)
	var n = len(fft) / pktLen

	if n < cfg.NumDiffs*cfg.DeltaStep+1 {
		return false, 0
	}

	for p := 0; p < n; p++ {
		if popcount8(fft[p*pktLen+offset+2]) > maxStrongBins {
			return false, 0
		}
	}

	// Bins the peak should move per step for a linear sweep across
	// the band over the length of the pulse, n packets long.
	var minDelta = max(1, chirpSweepMinBins*cfg.DeltaStep/n)
	var maxDelta = max(minDelta, (chirpSweepMaxBins*cfg.DeltaStep+n-1)/n)

	var sum = 0
	var prevDelta = 0

	for i := 0; i < cfg.NumDiffs; i++ {
		var a = fftPeakIndex(fft, i*cfg.DeltaStep, pktLen, offset)
		var b = fftPeakIndex(fft, (i+1)*cfg.DeltaStep, pktLen, offset)
		var delta = b - a

		var mag = delta
		if mag < 0 {
			mag = -mag
		}

		if mag < minDelta || mag > maxDelta {
			return false, 0
		}

		if i > 0 {
			if (delta > 0) != (prevDelta > 0) {
				return false, 0
			}

			var dd = delta - prevDelta
			if dd < 0 {
				dd = -dd
			}
			if dd > chirpMaxDeltaDiff {
				return false, 0
			}
		}

		sum += delta
		prevDelta = delta
	}

	return true, sum / cfg.NumDiffs
}

// IsChirping runs the chirp check that matches the radio.
func (e *Engine) IsChirping(fft []byte, isPrimary, isExtension, ht40 bool) (bool, int) {
	var chirp bool
	var slope int

	switch e.caps.Generation {
	case HwSowl:
		chirp, slope = IsChirpingSowl(fft, isPrimary, isExtension, ht40)
	case HwMerlin:
		chirp, slope = IsChirpingMerlin(fft, isPrimary, isExtension, ht40, e.chirpCfg)
	default:
		return false, 0
	}

	if e.debugEnabled(DebugBin5FFT) {
		e.log.Debug("chirp check", "packets", len(fft), "chirp", chirp, "slope", slope)
	}

	return chirp, slope
}
