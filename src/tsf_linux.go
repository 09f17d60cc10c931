//go:build linux

package dfs

import "golang.org/x/sys/unix"

// HostTSF stands in for the radio's TSF when none is available: the
// monotonic clock in µs.
func HostTSF() uint64 {
	var ts unix.Timespec

	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}

	return uint64(ts.Sec)*1000000 + uint64(ts.Nsec)/1000
}
