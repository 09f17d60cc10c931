package dfs

/*------------------------------------------------------------------
 *
 * Name:	dfsd
 *
 * Purpose:	Radar detection daemon.
 *
 * Description:	Feeds PHY error reports to the engine, either replayed
 *		from a capture file or streamed from a serial port, and
 *		looks after everything around it:
 *
 *			Control commands over TCP and a pseudo terminal.
 *			DNS-SD announcement of the control port.
 *			The NOL, saved on every change and restored at start.
 *			A CSV log of detections.
 *			A GPIO line lit while any channel is on the NOL.
 *			Periodic statistics.
 *
 *		With --replay the capture is processed as fast as
 *		possible, a summary is printed and the program ends.
 *
 *---------------------------------------------------------------*/

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const defaultConfigFile = "dfsd.yaml"

// timestampWriter puts a strftime formatted time in front of each line.
type timestampWriter struct {
	w       io.Writer
	pattern *strftime.Strftime
	now     func() time.Time
	mu      sync.Mutex
	midLine bool
}

func (tw *timestampWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	var n = len(p)
	var buf bytes.Buffer
	for len(p) > 0 {
		if !tw.midLine {
			buf.WriteString(tw.pattern.FormatString(tw.now()))
			buf.WriteByte(' ')
		}

		var line, rest, found = bytes.Cut(p, []byte{'\n'})
		buf.Write(line)
		if found {
			buf.WriteByte('\n')
		}
		tw.midLine = !found
		p = rest
	}

	var _, err = tw.w.Write(buf.Bytes())

	return n, err
}

type dfsdOptions struct {
	configFile     string
	configExplicit bool
	domain         string
	debug          string
	logDir         string
	logFile        string
	timestamps     string
	replay         string
	serial         string
	baud           int
	record         string
	control        string
	pty            bool
	noDNSSD        bool
	nolFile        string
	radarGPIO      string
	freq           uint16
}

func dfsdUsage(fs *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: dfsd [options]\n\n")
	fmt.Fprintf(os.Stderr, "Radar detection daemon.\n\n")
	fs.PrintDefaults()
}

func DfsdMain() {
	var configFile = pflag.StringP("config-file", "c", defaultConfigFile, "Configuration file name.")
	var domain = pflag.StringP("domain", "D", "", "Regulatory domain, overriding the configuration.")
	var debug = pflag.StringP("debug", "d", "", "Debug mask, a number or names like dfs,bin5.")
	var logDir = pflag.StringP("log-dir", "l", "", "Directory for daily detection logs.")
	var logFile = pflag.StringP("log-file", "L", "", "Single detection log file.")
	var timestamps = pflag.StringP("timestamp-format", "T", "", "Precede log lines with a strftime timestamp, e.g. \"%Y-%m-%d %H:%M:%S\".")
	var replay = pflag.StringP("replay", "r", "", "Replay a capture file and exit.")
	var serial = pflag.StringP("serial", "s", "", "Read captures from a serial port.")
	var baud = pflag.IntP("baud", "b", 0, "Serial port speed.")
	var record = pflag.String("record", "", "Copy every report to a capture file.")
	var control = pflag.StringP("control", "p", "", "Control socket address, e.g. :8001.")
	var ptyConsole = pflag.BoolP("enable-pseudo-terminal", "P", false, "Offer the control commands on a pseudo terminal.")
	var noDNSSD = pflag.Bool("no-dns-sd", false, "Don't announce the control socket.")
	var nolFile = pflag.StringP("nol-file", "n", "", "Save and restore the NOL here.")
	var radarGPIO = pflag.String("radar-gpio", "", "GPIO chip:line lit while the NOL is not empty.")
	var freq = pflag.Uint16P("freq", "f", 0, "Channel frequency, MHz, overriding the configuration.")
	var version = pflag.BoolP("version", "v", false, "Print version and exit.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Parse()

	if *help {
		dfsdUsage(pflag.CommandLine)
		os.Exit(0)
	}

	if *version {
		PrintVersion("dfsd", true)
		os.Exit(0)
	}

	var opt = dfsdOptions{
		configFile:     *configFile,
		configExplicit: pflag.CommandLine.Changed("config-file"),
		domain:         *domain,
		debug:          *debug,
		logDir:         *logDir,
		logFile:        *logFile,
		timestamps:     *timestamps,
		replay:         *replay,
		serial:         *serial,
		baud:           *baud,
		record:         *record,
		control:        *control,
		pty:            *ptyConsole,
		noDNSSD:        *noDNSSD,
		nolFile:        *nolFile,
		radarGPIO:      *radarGPIO,
		freq:           *freq,
	}

	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runDfsd(ctx, opt); err != nil {
		fmt.Fprintf(os.Stderr, "dfsd: %s\n", err)
		os.Exit(1)
	}
}

// loadDfsdConfig reads the configuration file and applies the command
// line over it.  The default file may be missing.
func loadDfsdConfig(opt dfsdOptions) (*DaemonConfig, error) {
	var cfg = DefaultDaemonConfig()

	if opt.configFile != "" {
		var loaded, err = LoadDaemonConfig(opt.configFile)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, os.ErrNotExist) && !opt.configExplicit:
		default:
			return nil, err
		}
	}

	if opt.domain != "" {
		var d, err = ParseDomain(opt.domain)
		if err != nil {
			return nil, err
		}
		cfg.Engine.Domain = d
	}

	if opt.debug != "" {
		var m, err = ParseDebugMask(opt.debug)
		if err != nil {
			return nil, err
		}
		cfg.Engine.DebugMask = m
	}

	if opt.freq != 0 {
		cfg.Channel.Freq = opt.freq
	}

	switch {
	case opt.logFile != "":
		cfg.DetectLog = DetectLogConfig{Dir: opt.logFile}
	case opt.logDir != "":
		cfg.DetectLog.Dir = opt.logDir
	}

	if opt.replay != "" {
		cfg.Capture.File = opt.replay
		cfg.Capture.Serial = ""
	}
	if opt.serial != "" {
		cfg.Capture.Serial = opt.serial
		cfg.Capture.File = ""
	}
	if opt.baud != 0 {
		cfg.Capture.Baud = opt.baud
	}
	if opt.record != "" {
		cfg.Capture.Record = opt.record
	}
	if opt.control != "" {
		cfg.Control.Listen = opt.control
	}
	if opt.pty {
		cfg.Control.PseudoTerm = true
	}
	if opt.noDNSSD {
		cfg.Control.DNSSD = false
	}
	if opt.nolFile != "" {
		cfg.NOLFile = opt.nolFile
	}

	if opt.radarGPIO != "" {
		var chip, lineStr, ok = strings.Cut(opt.radarGPIO, ":")
		var line, lineErr = strconv.Atoi(lineStr)
		if !ok || chip == "" || lineErr != nil {
			return nil, fmt.Errorf("%w: radar GPIO %q, want chip:line", ErrBadArgument, opt.radarGPIO)
		}
		cfg.Indicator = IndicatorConfig{Chip: chip, Line: line}
	}

	return cfg, cfg.Validate()
}

func newDfsdLogger(cfg *DaemonConfig, tsFormat string) (*log.Logger, error) {
	if tsFormat == "" {
		return NewLogger(os.Stderr, cfg.LogLevel, false)
	}

	var p, err = strftime.New(tsFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp format %q: %w", ErrBadArgument, tsFormat, err)
	}

	return NewLogger(&timestampWriter{w: os.Stderr, pattern: p, now: time.Now}, cfg.LogLevel, false)
}

func runDfsd(ctx context.Context, opt dfsdOptions) error {
	var cfg, cfgErr = loadDfsdConfig(opt)
	if cfgErr != nil {
		return cfgErr
	}

	var logger, logErr = newDfsdLogger(cfg, opt.timestamps)
	if logErr != nil {
		return logErr
	}

	logger.Info(VersionString("dfsd"))

	var ch, chErr = cfg.Channel.Channel()
	if chErr != nil {
		return chErr
	}

	var provider = NewStaticProvider(ch, cfg.Hardware.Capabilities)
	provider.SetExtChannelBusy(cfg.Channel.ExtBusy)

	var engCfg = cfg.Engine
	engCfg.Logger = logger

	var engine = NewEngine(provider, &engCfg)

	var table, tableErr = engCfg.LoadTables()
	if tableErr != nil {
		return tableErr
	}

	if err := engine.InitRadarFilters(table); err != nil {
		return err
	}

	// Hooks go in before anything can detect radar or expire the NOL.
	var detectLog *DetectLog
	var indicator *Indicator
	var nolMu sync.Mutex

	if cfg.DetectLog.Dir != "" {
		var dl, err = NewDetectLog(cfg.DetectLog.Dir, cfg.DetectLog.Pattern, logger)
		if err != nil {
			return err
		}
		defer dl.Close()
		detectLog = dl
	}

	if cfg.Indicator.Chip != "" {
		var ind, err = OpenIndicator(cfg.Indicator.Chip, cfg.Indicator.Line, logger)
		if err != nil {
			return err
		}
		defer ind.Close() //nolint:errcheck
		indicator = ind
	}

	provider.OnRadar = func(ch Channel) {
		if detectLog == nil {
			return
		}

		var err = detectLog.Write(time.Now(), ch, engine.RadarDetects(), engine.NOL())
		if err != nil {
			logger.Error("detection log", "err", err)
		}
	}

	provider.OnNOL = func(nol []NOLEntry) {
		nolMu.Lock()
		defer nolMu.Unlock()

		if indicator != nil {
			indicator.Update(nol)
		}

		if cfg.NOLFile != "" {
			if err := SaveNOL(cfg.NOLFile, nol); err != nil {
				logger.Error("saving NOL", "err", err)
			}
		}
	}

	if cfg.NOLFile != "" {
		var saved, err = LoadNOL(cfg.NOLFile)
		if err != nil {
			return err
		}
		if len(saved) > 0 {
			if err = engine.SetNOL(saved); err != nil {
				logger.Warn("NOL only partly restored", "err", err)
			}
		}
	}

	if err := engine.RadarEnable(); err != nil {
		return err
	}

	var onReport func(*PhyErrReport)
	if cfg.Capture.Record != "" {
		var f, err = os.Create(cfg.Capture.Record)
		if err != nil {
			return fmt.Errorf("can't create %s: %w", cfg.Capture.Record, err)
		}
		defer f.Close()

		var cw = NewCaptureWriter(f)
		defer cw.Flush() //nolint:errcheck

		onReport = func(r *PhyErrReport) {
			if err := cw.Write(r); err != nil {
				logger.Error("recording capture", "err", err)
			}
		}
	}

	if cfg.Capture.File != "" {
		return replayCapture(ctx, engine, cfg.Capture.File, onReport)
	}

	return serveDfsd(ctx, engine, cfg, logger, onReport)
}

func replayCapture(ctx context.Context, engine *Engine, fname string, onReport func(*PhyErrReport)) error {
	var f, err = os.Open(fname)
	if err != nil {
		return fmt.Errorf("can't open capture: %w", err)
	}
	defer f.Close()

	var res, replayErr = engine.Replay(ctx, NewCaptureReader(f), onReport)

	var s = engine.Stats()
	fmt.Printf("%s: %d reports, %d rejected, %d queued, %d dropped\n",
		fname, res.Reports, res.Rejected, s.Queued, s.QueueDrops)
	fmt.Printf("radar detections: %d (bin5 %d, filters %d)\n",
		s.RadarDetects, s.Bin5Detects, s.FilterDetects)

	for _, ent := range engine.NOL() {
		fmt.Printf("NOL: %d MHz width %d for %s\n", ent.Freq, ent.ChWidth, ent.Timeout)
	}

	return replayErr
}

// serveDfsd runs until ctx is done or the capture source fails.
func serveDfsd(ctx context.Context, engine *Engine, cfg *DaemonConfig, logger *log.Logger, onReport func(*PhyErrReport)) error {
	var cs *ControlServer
	if cfg.Control.Listen != "" {
		var err error
		if cs, err = ListenControl(engine, cfg.Control.Listen); err != nil {
			return err
		}
	}

	var port io.ReadCloser
	if cfg.Capture.Serial != "" {
		var err error
		if port, err = OpenCaptureSerial(cfg.Capture.Serial, cfg.Capture.Baud); err != nil {
			if cs != nil {
				cs.listener.Close() //nolint:gosec
			}
			return err
		}
	}

	var console *Console
	if cfg.Control.PseudoTerm {
		var err error
		if console, err = OpenConsole(""); err != nil {
			logger.Error("control console", "err", err)
		}
	}

	var g, gctx = errgroup.WithContext(ctx)

	g.Go(func() error {
		var err = engine.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if cfg.StatsInterval > 0 {
		g.Go(func() error {
			engine.LogStats(gctx, cfg.StatsInterval)
			return nil
		})
	}

	if cs != nil {
		g.Go(func() error { return cs.Serve(gctx) })

		if cfg.Control.DNSSD {
			if err := AnnounceControl(gctx, cfg.Control.DNSSDName, cs.Port(), logger); err != nil {
				logger.Error("DNS-SD", "err", err)
			}
		}
	}

	if console != nil {
		g.Go(func() error {
			console.Serve(gctx, engine)
			return nil
		})
	}

	if port != nil {
		g.Go(func() error {
			var stop = context.AfterFunc(gctx, func() { port.Close() }) //nolint:errcheck
			defer stop()

			var ingestErr = engine.Ingest(gctx, NewCaptureReader(port), onReport)
			if gctx.Err() != nil {
				return nil
			}
			if ingestErr == nil {
				ingestErr = fmt.Errorf("serial port %s closed", cfg.Capture.Serial)
			}
			return ingestErr
		})
	}

	logger.Info("dfsd running", "domain", engine.Domain(), "channel", cfg.Channel.Freq)

	var err = g.Wait()

	engine.Drain()

	return err
}
