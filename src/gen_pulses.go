package dfs

/*------------------------------------------------------------------
 *
 * Name:	dfs-gen
 *
 * Purpose:	Test program for generating radar PHY error captures.
 *
 * Description:	Pulse trains are built from the radar signature table,
 *		encoded the way a given radio reports them, and written
 *		in the capture format that dfsd replays.
 *
 * Examples:	Every FCC waveform, TLV encoding:
 *
 *			dfs-gen -o fcc.csv
 *			dfsd --replay fcc.csv
 *
 *		ETSI staggered type 5 from a Merlin:
 *
 *			dfs-gen -D etsi -t etsi-5 -g merlin -o etsi5.csv
 *
 *		FCC bin5 (long chirps):
 *
 *			dfs-gen -t bin5 -o bin5.csv
 *
 *		With random noise pulses mixed in:
 *
 *			dfs-gen -N 20 -o noisy.csv
 *
 *------------------------------------------------------------------*/

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"slices"
	"strings"

	"github.com/spf13/pflag"
)

// PulseSpec is one simulated radar pulse.
type PulseSpec struct {
	TS        uint64 // Start, µs of TSF.
	Dur       uint32 // µs
	RSSI      uint8
	Ext       bool // Seen by the extension half only.
	DC        bool
	Chirp     bool
	Sidx      int16
	DeltaPeak int8
	DeltaDiff uint8
	PeakMag   uint16 // If set, a search FFT report goes first (TLV).
}

const (
	genChirpPackets   = 8
	genChirpStartBin  = 10
	genChirpSlope     = 4
	genStrongBins     = 0x0f
	genPeakMagnitude  = 100
	genRSSIAboveFloor = 10
	genBin5PulseGap   = 1500     // µs between pulses in a burst.
	genBin5BurstGap   = 2000000  // µs between bursts.
	genTrainGap       = 500000   // µs between trains.
	genBin5BurstSize  = 3
	genDefaultRSSI    = 30
	genMaxRaw         = 1<<8 - 1
	genHeaderTagShift = 24
)

func durMultiplierFor(fastClock bool) uint32 {
	if fastClock {
		return durMultiplierFastClck
	}

	return durMultiplierNormal
}

// toTicks is the inverse of HwDuration.Normalize.
func toTicks(us uint32, multiplier uint32) uint8 {
	var ticks = (us*100 + multiplier/2) / multiplier
	return uint8(min(ticks, genMaxRaw))
}

// ChirpFFT makes FFT packets whose peak bin moves slope bins per packet.
// A slope of 0 is a flat, non-chirping pulse.
func ChirpFFT(packets int, ht40 bool, ext bool, slope int) []byte {
	var pktLen = fftPacketHT20
	var offset = 0
	if ht40 {
		pktLen = fftPacketHT40
		if ext {
			offset = fftPacketHT20
		}
	}

	var fft = make([]byte, packets*pktLen)
	for p := 0; p < packets; p++ {
		var b = fft[p*pktLen+offset:]
		b[0] = byte((genChirpStartBin + p*slope) & fftIndexMask)
		b[1] = genPeakMagnitude
		b[2] = genStrongBins
	}

	return fft
}

func encodeOwl(p PulseSpec, multiplier uint32) []byte {
	return []byte{toTicks(p.Dur, multiplier)}
}

func encodeTrailer(p PulseSpec, multiplier uint32, ht40 bool) []byte {
	var data []byte

	if p.Dur >= minBin5ChirpDur {
		var slope = 0
		if p.Chirp {
			slope = genChirpSlope
		}
		data = ChirpFFT(genChirpPackets, ht40, p.Ext, slope)
	}

	var ticks = toTicks(p.Dur, multiplier)
	var priDur, extDur uint8
	var flags uint8

	if p.Ext {
		extDur = ticks
		flags |= trailerExtFound
	} else {
		priDur = ticks
		flags |= trailerPriFound
	}
	if p.DC {
		flags |= trailerDCFound
	}

	return append(data, priDur, extDur, flags)
}

func appendTLV(buf []byte, tag uint8, w0, w1 uint32) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(tag)<<genHeaderTagShift|8)
	buf = binary.LittleEndian.AppendUint32(buf, w0)
	return binary.LittleEndian.AppendUint32(buf, w1)
}

func encodeTLV(p PulseSpec) []byte {
	var buf = make([]byte, 0, 2*(tlvHeaderLen+tlvPulseSummaryLen))

	if p.PeakMag != 0 {
		buf = appendTLV(buf, tlvTagSearchFFT,
			uint32(p.Sidx)&0xfff,
			uint32(p.PeakMag&0x3ff)<<8)
	}

	var w0 = uint32(p.Sidx)&0x3ff |
		(uint32(p.DeltaPeak)&0x3f)<<10 |
		(uint32(p.DeltaDiff)&0xf)<<16
	if p.Chirp {
		w0 |= 1 << 31
	}

	var w1 = min(p.Dur, genMaxRaw)

	return appendTLV(buf, tlvTagPulseSummary, w0, w1)
}

// EncodeReport packs a pulse as the given radio would report it.  The
// report is stamped at the end of the pulse.
func EncodeReport(caps Capabilities, ht40 bool, p PulseSpec) *PhyErrReport {
	var end = p.TS + uint64(p.Dur)
	var multiplier = durMultiplierFor(caps.FastClock)

	var r = &PhyErrReport{
		FullTSF: end,
		RxTS:    uint32(end),
		RSSI:    p.RSSI,
	}

	switch caps.Generation {
	case HwOwl:
		r.Data = encodeOwl(p, multiplier)
	case HwSowl, HwMerlin:
		r.Data = encodeTrailer(p, multiplier, ht40)
		if p.Ext {
			r.RSSI, r.ExtRSSI = 0, p.RSSI
		}
	default:
		r.Data = encodeTLV(p)
	}

	return r
}

// SignatureTrain is one burst of the waveform rp, starting at start.  A
// zero rssi means comfortably above the signature's threshold.
func SignatureTrain(rp RadarPulse, start uint64, rssi uint8) []PulseSpec {
	if rssi == 0 {
		rssi = uint8(min(rp.RSSIThresh+genRSSIAboveFloor, genMaxRaw))
	}

	var dur = min(max(rp.PulseDur, rp.MinDur, 1), rp.MaxDur)

	var pris []uint32
	switch rp.Pattern {
	case PatternFixed:
		pris = []uint32{1000000 / rp.PulseFreq}
	case PatternStaggered:
		pris = []uint32{1000000 / rp.PulseFreq, 1000000 / rp.MaxPulseFreq}
	default:
		pris = []uint32{2000000 / (rp.PulseFreq + rp.MaxPulseFreq)}
	}

	var n = int(rp.NumPulses)
	if rp.Pattern == PatternStaggered {
		n *= len(pris)
	}

	var train = make([]PulseSpec, n)
	var ts = start
	for i := range train {
		train[i] = PulseSpec{TS: ts, Dur: dur, RSSI: rssi}
		ts += uint64(pris[i%len(pris)])
	}

	return train
}

// Bin5Train is threshold+1 bursts of long chirps.
func Bin5Train(b Bin5Pulse, start uint64, rssi uint8) []PulseSpec {
	if rssi == 0 {
		rssi = uint8(min(b.RSSIThresh+b.RSSIMargin+genRSSIAboveFloor, genMaxRaw))
	}

	var dur = (b.MinDur + b.MaxDur) / 2
	var bursts = int(b.Threshold) + 1

	var train = make([]PulseSpec, 0, bursts*genBin5BurstSize)
	for k := 0; k < bursts; k++ {
		var ts = start + uint64(k)*genBin5BurstGap
		for i := 0; i < genBin5BurstSize; i++ {
			train = append(train, PulseSpec{TS: ts, Dur: dur, RSSI: rssi, Chirp: true})
			ts += genBin5PulseGap
		}
	}

	return train
}

// TrainEnd is when the last pulse of a train finishes.
func TrainEnd(train []PulseSpec) uint64 {
	if len(train) == 0 {
		return 0
	}

	var last = train[len(train)-1]

	return last.TS + uint64(last.Dur)
}

// addNoise mixes count random pulses into a train, keeping it in time
// order.
func addNoise(rng *rand.Rand, train []PulseSpec, count int) []PulseSpec {
	if len(train) == 0 || count == 0 {
		return train
	}

	var start = train[0].TS
	var span = TrainEnd(train) - start + 1

	for i := 0; i < count; i++ {
		train = append(train, PulseSpec{
			TS:   start + rng.Uint64N(span),
			Dur:  1 + rng.Uint32N(MaxDuration),
			RSSI: uint8(rng.UintN(genMaxRaw)),
		})
	}

	slices.SortStableFunc(train, func(a, b PulseSpec) int {
		switch {
		case a.TS < b.TS:
			return -1
		case a.TS > b.TS:
			return 1
		}
		return 0
	})

	return train
}

func genPulsesUsage(fs *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: dfs-gen [options]\n\n")
	fmt.Fprintf(os.Stderr, "Writes simulated radar PHY errors in the capture format.\n\n")
	fs.PrintDefaults()
}

func GenPulsesMain() {
	var outFile = pflag.StringP("out", "o", "-", "Output capture file, - for stdout.")
	var domainStr = pflag.StringP("domain", "D", "fcc", "Regulatory domain: fcc, etsi or mkk4.")
	var types = pflag.StringSliceP("type", "t", []string{"all"}, "Waveforms by name, all, or bin5.")
	var genStr = pflag.StringP("generation", "g", "tlv", "Radio: owl, sowl, merlin or tlv.")
	var fastClock = pflag.BoolP("fast-clock", "f", false, "Radio uses the fast duration clock.")
	var ht40 = pflag.BoolP("ht40", "x", false, "HT40 FFT packet layout.")
	var ext = pflag.BoolP("ext", "e", false, "Report pulses on the extension channel.")
	var rssi = pflag.Uint8P("rssi", "r", 0, "Pulse RSSI, 0 for just above each threshold.")
	var repeat = pflag.IntP("repeat", "n", 1, "Times to repeat each waveform.")
	var start = pflag.Uint64P("start", "s", 0, "First TSF, µs. 0 for the host clock.")
	var noise = pflag.IntP("noise", "N", 0, "Random pulses mixed into each train.")
	var seed = pflag.Uint64("seed", 1, "Noise random seed.")
	var tablesFile = pflag.String("radar-tables", "", "Radar table file instead of the built in one.")
	var version = pflag.BoolP("version", "v", false, "Print version and exit.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Parse()

	if *help {
		genPulsesUsage(pflag.CommandLine)
		os.Exit(0)
	}

	if *version {
		PrintVersion("dfs-gen", false)
		os.Exit(0)
	}

	var err = genPulses(genPulsesOptions{
		outFile:    *outFile,
		domain:     *domainStr,
		types:      *types,
		generation: *genStr,
		fastClock:  *fastClock,
		ht40:       *ht40,
		ext:        *ext,
		rssi:       *rssi,
		repeat:     *repeat,
		start:      *start,
		noise:      *noise,
		seed:       *seed,
		tablesFile: *tablesFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "dfs-gen: %s\n", err)
		os.Exit(1)
	}
}

type genPulsesOptions struct {
	outFile    string
	domain     string
	types      []string
	generation string
	fastClock  bool
	ht40       bool
	ext        bool
	rssi       uint8
	repeat     int
	start      uint64
	noise      int
	seed       uint64
	tablesFile string
}

// selectSignatures picks the waveforms named in types.
func selectSignatures(dt *DomainTable, types []string) ([]RadarPulse, bool, error) {
	var radars []RadarPulse
	var bin5 = false

	for _, t := range types {
		switch t = strings.ToLower(t); t {
		case "all":
			radars = append(radars, dt.Radars...)
			bin5 = bin5 || len(dt.Bin5) > 0
		case "bin5":
			if len(dt.Bin5) == 0 {
				return nil, false, fmt.Errorf("%w: no bin5 radar in %s", ErrBadArgument, dt.Domain)
			}
			bin5 = true
		default:
			var i = slices.IndexFunc(dt.Radars, func(rp RadarPulse) bool { return rp.Name == t })
			if i < 0 {
				return nil, false, fmt.Errorf("%w: no waveform %q in %s", ErrBadArgument, t, dt.Domain)
			}
			radars = append(radars, dt.Radars[i])
		}
	}

	return radars, bin5, nil
}

func genPulses(opt genPulsesOptions) error {
	var domain, domainErr = ParseDomain(opt.domain)
	if domainErr != nil {
		return domainErr
	}

	var gen, genErr = ParseHwGeneration(opt.generation)
	if genErr != nil {
		return genErr
	}

	var cfg = DefaultConfig()
	cfg.Domain = domain
	cfg.RadarTables = opt.tablesFile

	var dt, tableErr = cfg.LoadTables()
	if tableErr != nil {
		return tableErr
	}

	var radars, bin5, selectErr = selectSignatures(dt, opt.types)
	if selectErr != nil {
		return selectErr
	}

	var out io.Writer = os.Stdout
	if opt.outFile != "-" {
		var f, createErr = os.Create(opt.outFile)
		if createErr != nil {
			return fmt.Errorf("can't create %s: %w", opt.outFile, createErr)
		}
		defer f.Close()
		out = f
	}

	var bw = bufio.NewWriter(out)
	var cw = NewCaptureWriter(bw)
	var rng = rand.New(rand.NewPCG(opt.seed, opt.seed)) //nolint:gosec

	var caps = Capabilities{Generation: gen, FastClock: opt.fastClock, ExtChanOK: opt.ext}

	var ts = opt.start
	if ts == 0 {
		ts = HostTSF()
	}

	var emit = func(name string, train []PulseSpec) error {
		train = addNoise(rng, train, opt.noise)

		fmt.Fprintf(bw, "# %s, %d pulses\n", name, len(train))
		for _, p := range train {
			p.Ext = opt.ext
			if err := cw.Write(EncodeReport(caps, opt.ht40, p)); err != nil {
				return err
			}
		}
		if err := cw.Flush(); err != nil {
			return err
		}

		ts = TrainEnd(train) + genTrainGap

		return nil
	}

	for r := 0; r < max(opt.repeat, 1); r++ {
		for _, rp := range radars {
			if err := emit(rp.Name, SignatureTrain(rp, ts, opt.rssi)); err != nil {
				return err
			}
		}

		if bin5 {
			for _, b := range dt.Bin5 {
				if err := emit("bin5", Bin5Train(b, ts, opt.rssi)); err != nil {
					return err
				}
			}
		}
	}

	return bw.Flush()
}
