package dfs

/*------------------------------------------------------------------
 *
 * Purpose:	Read configuration from a YAML file.
 *
 * Description:	Config holds what the engine itself needs.
 *		DaemonConfig wraps it with the settings of the dfsd
 *		program: where pulses come from, the control port, the
 *		detection log and so on.
 *
 *		Anything missing from the file keeps its default.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// NOLAllocPolicy decides what happens to a radar channel when the NOL is
// full.
type NOLAllocPolicy int

const (
	NOLFailOpen   NOLAllocPolicy = iota // Log it and leave the channel usable.
	NOLFailClosed                       // Keep the channel blocked with no timeout.
)

func (p NOLAllocPolicy) String() string {
	if p == NOLFailClosed {
		return "fail-closed"
	}

	return "fail-open"
}

func (p *NOLAllocPolicy) UnmarshalYAML(value *yaml.Node) error {
	switch strings.ToLower(value.Value) {
	case "fail-open", "open", "":
		*p = NOLFailOpen
	case "fail-closed", "closed":
		*p = NOLFailClosed
	default:
		return fmt.Errorf("%w: nol_alloc_policy %q", ErrBadArgument, value.Value)
	}

	return nil
}

type Config struct {
	Domain          Domain         `yaml:"domain"`
	RadarTables     string         `yaml:"radar_tables"` // Empty for the built in tables.
	UseNOL          bool           `yaml:"use_nol"`
	NOLTimeout      time.Duration  `yaml:"nol_timeout"` // Zero for the domain default.
	NOLCapacity     int            `yaml:"nol_capacity"`
	NOLAllocPolicy  NOLAllocPolicy `yaml:"nol_alloc_policy"`
	FalseRSSIThresh uint8          `yaml:"false_rssi_thresh"`
	PeakMag         uint8          `yaml:"peak_mag"`
	Chirp           ChirpConfig    `yaml:"chirp"`
	DebugMask       DebugMask      `yaml:"debug_mask"`
	SweepInterval   time.Duration  `yaml:"sweep_interval"`

	Logger *log.Logger `yaml:"-"`
	Clock  Clock       `yaml:"-"`
}

func DefaultConfig() *Config {
	return &Config{
		Domain:          DomainFCC,
		UseNOL:          true,
		NOLCapacity:     DefaultNOLCapacity,
		NOLAllocPolicy:  NOLFailOpen,
		FalseRSSIThresh: DefaultFalseRSSIThresh,
		PeakMag:         DefaultPeakMag,
		Chirp: ChirpConfig{
			NumDiffs:  defaultChirpNumDiffs,
			DeltaStep: defaultChirpDeltaStep,
		},
		SweepInterval: defaultSweepInterval,
	}
}

func (c *Config) Validate() error {
	if c.NOLCapacity < 1 {
		return fmt.Errorf("%w: nol_capacity %d", ErrBadArgument, c.NOLCapacity)
	}

	if c.NOLTimeout < 0 || c.SweepInterval < 0 {
		return fmt.Errorf("%w: negative duration", ErrBadArgument)
	}

	return nil
}

// LoadTables returns the radar table for the configured domain.
func (c *Config) LoadTables() (*DomainTable, error) {
	var tables *RadarTables
	var err error

	if c.RadarTables == "" {
		tables, err = DefaultRadarTables()
	} else {
		tables, err = LoadRadarTablesFile(c.RadarTables)
	}

	if err != nil {
		return nil, err
	}

	return tables.Lookup(c.Domain)
}

type HardwareConfig struct {
	Capabilities `yaml:",inline"`
}

type ChannelConfig struct {
	Freq                uint16   `yaml:"freq"`
	Flags               []string `yaml:"flags"`
	CenterFreq          uint16   `yaml:"center_freq"`
	PriCenterSeparation int      `yaml:"pri_center_separation"`
	ExtBusy             int      `yaml:"ext_busy"`
}

func (cc ChannelConfig) Channel() (Channel, error) {
	var flags, err = ParseChanFlags(cc.Flags)
	if err != nil {
		return Channel{}, err
	}

	return Channel{
		Freq:                cc.Freq,
		Flags:               flags,
		CenterFreq:          cc.CenterFreq,
		PriCenterSeparation: cc.PriCenterSeparation,
	}, nil
}

type ControlConfig struct {
	Listen     string `yaml:"listen"` // host:port, empty for none.
	DNSSD      bool   `yaml:"dns_sd"`
	DNSSDName  string `yaml:"dns_sd_name"`
	PseudoTerm bool   `yaml:"pty"`
}

type CaptureConfig struct {
	File   string `yaml:"file"`   // Replay a capture file.
	Serial string `yaml:"serial"` // Or read one from a serial port.
	Baud   int    `yaml:"baud"`
	Record string `yaml:"record"` // Copy every report to this capture file.
}

type DetectLogConfig struct {
	Dir     string `yaml:"dir"`
	Pattern string `yaml:"pattern"` // strftime file name pattern.
}

type IndicatorConfig struct {
	Chip string `yaml:"chip"` // Empty for no indicator.
	Line int    `yaml:"line"`
}

type DaemonConfig struct {
	Engine        Config          `yaml:"engine"`
	Hardware      HardwareConfig  `yaml:"hardware"`
	Channel       ChannelConfig   `yaml:"channel"`
	Control       ControlConfig   `yaml:"control"`
	Capture       CaptureConfig   `yaml:"capture"`
	DetectLog     DetectLogConfig `yaml:"detect_log"`
	Indicator     IndicatorConfig `yaml:"indicator"`
	NOLFile       string          `yaml:"nol_file"`
	StatsInterval time.Duration   `yaml:"stats_interval"`
	LogLevel      string          `yaml:"log_level"`
}

func DefaultDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		Engine:   *DefaultConfig(),
		Hardware: HardwareConfig{Capabilities{Generation: HwTLV}},
		Channel: ChannelConfig{
			Freq:    5260,
			Flags:   []string{"ht20", "dfs"},
			ExtBusy: -1,
		},
		Control: ControlConfig{
			DNSSD: true,
		},
		Capture: CaptureConfig{
			Baud: 115200,
		},
		DetectLog: DetectLogConfig{
			Pattern: "radar-%Y-%m-%d.csv",
		},
		StatsInterval: time.Minute,
		LogLevel:      "info",
	}
}

// LoadDaemonConfig reads fname over the defaults.
func LoadDaemonConfig(fname string) (*DaemonConfig, error) {
	var cfg = DefaultDaemonConfig()

	var data, readErr = os.ReadFile(fname)
	if readErr != nil {
		return nil, fmt.Errorf("reading config: %w", readErr)
	}

	var decodeErr = yaml.Unmarshal(data, cfg)
	if decodeErr != nil {
		return nil, fmt.Errorf("parsing config %s: %w", fname, decodeErr)
	}

	var validateErr = cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("config %s: %w", fname, validateErr)
	}

	return cfg, nil
}

func (dc *DaemonConfig) Validate() error {
	var engineErr = dc.Engine.Validate()
	if engineErr != nil {
		return engineErr
	}

	var _, chanErr = dc.Channel.Channel()
	if chanErr != nil {
		return chanErr
	}

	if dc.Capture.File != "" && dc.Capture.Serial != "" {
		return fmt.Errorf("%w: capture file and serial port are exclusive", ErrBadArgument)
	}

	return nil
}
