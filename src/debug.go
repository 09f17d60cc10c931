package dfs

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// DebugMask selects which parts of the detector log their debug output.
type DebugMask uint32

const (
	DebugDFS DebugMask = 1 << iota
	DebugDFS1
	DebugDFS2
	DebugDFS3
	DebugPhyErr
	DebugNOL
	DebugPhyErrSum
	DebugBin5
	DebugBin5FFT
	DebugBin5Pulse
	DebugFalseDet

	DebugAll DebugMask = 1<<iota - 1
)

var debugNames = []struct {
	mask DebugMask
	name string
}{
	{DebugDFS, "dfs"},
	{DebugDFS1, "dfs1"},
	{DebugDFS2, "dfs2"},
	{DebugDFS3, "dfs3"},
	{DebugPhyErr, "phyerr"},
	{DebugNOL, "nol"},
	{DebugPhyErrSum, "phyerr-sum"},
	{DebugBin5, "bin5"},
	{DebugBin5FFT, "bin5-fft"},
	{DebugBin5Pulse, "bin5-pulse"},
	{DebugFalseDet, "false-det"},
	{DebugAll, "all"},
}

// ParseDebugMask accepts a number (0x.. allowed) or a comma separated
// list of names such as "dfs,bin5".
func ParseDebugMask(s string) (DebugMask, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	var n, numErr = strconv.ParseUint(s, 0, 32)
	if numErr == nil {
		return DebugMask(n), nil
	}

	var m DebugMask

next:
	for _, part := range strings.Split(s, ",") {
		var want = strings.ToLower(strings.TrimSpace(part))
		for _, dn := range debugNames {
			if dn.name == want {
				m |= dn.mask
				continue next
			}
		}

		return 0, fmt.Errorf("%w: debug flag %q", ErrBadArgument, part)
	}

	return m, nil
}

func (m DebugMask) String() string {
	if m == 0 {
		return "none"
	}

	var parts []string
	for _, dn := range debugNames {
		if dn.mask != DebugAll && m&dn.mask != 0 {
			parts = append(parts, dn.name)
		}
	}

	return strings.Join(parts, ",")
}

func (m *DebugMask) UnmarshalYAML(value *yaml.Node) error {
	var parsed, err = ParseDebugMask(value.Value)
	if err != nil {
		return err
	}

	*m = parsed

	return nil
}

// NewLogger is the logger the tools share.
func NewLogger(w io.Writer, level string, timestamps bool) (*log.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	var lvl = log.InfoLevel
	if level != "" {
		var parsed, err = log.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("%w: log level %q", ErrBadArgument, level)
		}
		lvl = parsed
	}

	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: timestamps,
	}), nil
}

func (e *Engine) debugEnabled(m DebugMask) bool {
	return DebugMask(e.debugMask.Load())&m != 0
}

// dprintf logs at debug level when any bit of m is enabled.
func (e *Engine) dprintf(m DebugMask, msg string, keyvals ...interface{}) {
	if !e.debugEnabled(m) {
		return
	}

	e.log.Debug(msg, keyvals...)
}
