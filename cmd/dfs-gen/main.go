package main

import (
	dfs "github.com/MotorolaMobilityLLC/kernel-msm-sub057/src"
)

/*-------------------------------------------------------------------
 *
 * Name:        main
 *
 * Purpose:     Generate simulated radar captures.  See src/gen_pulses.go.
 *
 *--------------------------------------------------------------------*/

func main() {
	dfs.GenPulsesMain()
}
