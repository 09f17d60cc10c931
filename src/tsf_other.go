//go:build !linux

package dfs

import "time"

var hostTSFStart = time.Now()

func HostTSF() uint64 {
	return uint64(time.Since(hostTSFStart) / time.Microsecond)
}
