package dfs

/*------------------------------------------------------------------
 *
 * Purpose:	Decode tagged (TLV) radar PHY error reports.
 *
 * Description:	A report is a sequence of TLVs.  Every TLV starts with a
 *		little endian 32 bit header:
 *
 *		  bits 15:0	payload length in bytes
 *		  bits 23:16	signature
 *		  bits 31:24	tag
 *
 *		Radar pulse summary (tag 0xf8), two words:
 *
 *		  word 0	31 chirp, 30 max width, 29:20 agc total gain,
 *				19:16 delta diff, 15:10 delta peak (signed),
 *				9:0 sidx (signed)
 *		  word 1	31 fft valid, 30:24 mb gain, 23:16 subchannel
 *				mask, 15:8 tsf offset, 7:0 pulse duration µs
 *
 *		Search FFT report (tag 0xfb), two words:
 *
 *		  word 0	31:23 total gain, 22:14 base power,
 *				13:12 fft chain, 11:0 peak sidx
 *		  word 1	31:26 relative power, 25:18 average power,
 *				17:8 peak magnitude, 7:0 strong bins
 *
 *---------------------------------------------------------------*/

import (
	"encoding/binary"
	"fmt"
)

const (
	tlvHeaderLen        = 4
	tlvTagPulseSummary  = 0xf8
	tlvTagSearchFFT     = 0xfb
	tlvPulseSummaryLen  = 8
	tlvSearchFFTLen     = 8
	binWidthOversampled = 44000 * 1000 / 128 // Hz per FFT bin.
	binWidthNormal      = 40000 * 1000 / 128

	vht80ClampSeparation = 30
	vht80ClampDur        = 20
)

type tlv struct {
	tag   uint8
	sig   uint8
	value []byte
}

// tlvIterator walks a TLV buffer without allocating.
type tlvIterator struct {
	buf []byte
	err error
}

func (it *tlvIterator) next() (tlv, bool) {
	if len(it.buf) == 0 {
		return tlv{}, false
	}

	if len(it.buf) < tlvHeaderLen {
		it.err = fmt.Errorf("%w: %d byte TLV header", ErrShortReport, len(it.buf))
		return tlv{}, false
	}

	var hdr = binary.LittleEndian.Uint32(it.buf)
	var length = int(hdr & 0xffff)

	if len(it.buf) < tlvHeaderLen+length {
		it.err = fmt.Errorf("%w: TLV wants %d bytes, %d left", ErrShortReport, length, len(it.buf)-tlvHeaderLen)
		return tlv{}, false
	}

	var t = tlv{
		tag:   uint8(hdr >> 24),
		sig:   uint8(hdr >> 16),
		value: it.buf[tlvHeaderLen : tlvHeaderLen+length],
	}
	it.buf = it.buf[tlvHeaderLen+length:]

	return t, true
}

// signExtend treats the low bits of v as a two's complement number.
func signExtend(v uint32, bits uint) int32 {
	var shift = 32 - bits
	return int32(v<<shift) >> shift
}

type pulseSummary struct {
	isChirp   bool
	maxWidth  bool
	agcGain   uint16
	deltaDiff uint8
	deltaPeak int8
	sidx      int16
	fftValid  bool
	mbGain    uint8
	subchan   uint8
	tsfOffset uint8
	dur       uint8
}

func parsePulseSummary(v []byte) (pulseSummary, error) {
	if len(v) < tlvPulseSummaryLen {
		return pulseSummary{}, fmt.Errorf("%w: %d byte pulse summary", ErrShortReport, len(v))
	}

	var w0 = binary.LittleEndian.Uint32(v[0:])
	var w1 = binary.LittleEndian.Uint32(v[4:])

	return pulseSummary{
		isChirp:   w0&(1<<31) != 0,
		maxWidth:  w0&(1<<30) != 0,
		agcGain:   uint16((w0 >> 20) & 0x3ff),
		deltaDiff: uint8((w0 >> 16) & 0xf),
		deltaPeak: int8(signExtend((w0>>10)&0x3f, 6)),
		sidx:      int16(signExtend(w0&0x3ff, 10)),
		fftValid:  w1&(1<<31) != 0,
		mbGain:    uint8((w1 >> 24) & 0x7f),
		subchan:   uint8(w1 >> 16),
		tsfOffset: uint8(w1 >> 8),
		dur:       uint8(w1),
	}, nil
}

type searchFFTReport struct {
	totalGain uint16
	basePwr   uint16
	chain     uint8
	peakSidx  int16
	relPwr    uint8
	avgPwr    uint8
	peakMag   uint16
	strongBin uint8
}

func parseSearchFFT(v []byte) (searchFFTReport, error) {
	if len(v) < tlvSearchFFTLen {
		return searchFFTReport{}, fmt.Errorf("%w: %d byte FFT report", ErrShortReport, len(v))
	}

	var w0 = binary.LittleEndian.Uint32(v[0:])
	var w1 = binary.LittleEndian.Uint32(v[4:])

	return searchFFTReport{
		totalGain: uint16(w0 >> 23),
		basePwr:   uint16((w0 >> 14) & 0x1ff),
		chain:     uint8((w0 >> 12) & 0x3),
		peakSidx:  int16(signExtend(w0&0xfff, 12)),
		relPwr:    uint8(w1 >> 26),
		avgPwr:    uint8((w1 >> 18) & 0xff),
		peakMag:   uint16((w1 >> 8) & 0x3ff),
		strongBin: uint8(w1),
	}, nil
}

// isFalseDetect spots the signature of an FFT report that is really a
// strong packet, not radar: high RSSI with a weak FFT peak.
func (e *Engine) isFalseDetect(rssi uint8, fft searchFFTReport) bool {
	var falseRSSI = e.falseRSSIThresh.Load()
	var peakMag = e.peakMag.Load()

	return uint32(rssi) > falseRSSI && uint32(fft.peakMag) < 2*peakMag
}

func (e *Engine) decodeTLV(r *PhyErrReport, ch Channel, ev *PhyErrEvent) error {
	var it = tlvIterator{buf: r.Data}
	var first = true
	var haveSummary = false
	var ps pulseSummary

	for {
		var t, ok = it.next()
		if !ok {
			break
		}

		switch t.tag {
		case tlvTagSearchFFT:
			var fft, err = parseSearchFFT(t.value)
			if err != nil {
				return err
			}
			if first && e.isFalseDetect(r.RSSI, fft) {
				e.stats.falseDetects.Add(1)
				if e.debugEnabled(DebugFalseDet) {
					e.log.Debug("false detect", "rssi", r.RSSI, "peak_mag", fft.peakMag)
				}
				return ErrFalseDetect
			}
		case tlvTagPulseSummary:
			var err error
			ps, err = parsePulseSummary(t.value)
			if err != nil {
				return err
			}
			haveSummary = true
		default:
			if e.debugEnabled(DebugPhyErr) {
				e.log.Debug("unknown TLV", "tag", t.tag, "sig", t.sig, "len", len(t.value))
			}
		}

		first = false
	}

	if it.err != nil {
		return it.err
	}

	if !haveSummary {
		return ErrNoRadarIndication
	}

	var dur = uint32(ps.dur)

	if ch.IsVHT80() && !ps.isChirp && dur > vht80ClampDur &&
		(ch.PriCenterSeparation == vht80ClampSeparation || ch.PriCenterSeparation == -vht80ClampSeparation) &&
		ps.sidx >= -1 && ps.sidx <= 1 {
		// The edge of the 80MHz segment stretches short pulses.
		dur = vht80ClampDur
	}

	var binWidth int64 = binWidthNormal
	if e.caps.Oversampling {
		binWidth = binWidthOversampled
	}

	var freqOffset = int64(ps.sidx) * binWidth / 1000

	var chirpSpan int64
	if ps.isChirp {
		var dp = int64(ps.deltaPeak)
		if dp < 0 {
			dp = -dp
		}
		chirpSpan = dp * binWidth / 1000 * int64(dur) / int64(max(ps.deltaDiff, 1))
	}

	var ts = r.RxTS - uint32(ps.tsfOffset)

	*ev = PhyErrEvent{
		Duration:   HwDuration{Value: dur, Unit: DurMicros},
		RSSI:       r.RSSI,
		TS:         ts,
		FullTS:     r.FullTSF,
		IsPrimary:  true,
		IsHWChirp:  ps.isChirp,
		CheckChirp: dur >= minBin5ChirpDur,
		Sidx:       ps.sidx,
		DeltaPeak:  ps.deltaPeak,
		DeltaDiff:  ps.deltaDiff,
		FreqOffset: int32(freqOffset),
		ChirpSpan:  int32(chirpSpan),
	}

	return nil
}
