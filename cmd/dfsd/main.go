package main

import (
	dfs "github.com/MotorolaMobilityLLC/kernel-msm-sub057/src"
)

/*-------------------------------------------------------------------
 *
 * Name:        main
 *
 * Purpose:     Radar detection daemon.  See src/dfsd.go.
 *
 *--------------------------------------------------------------------*/

func main() {
	dfs.DfsdMain()
}
