package dfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

// pflag (not unreasonably) assumes it only ever gets called once. But lots of
// test infrastructure was built around "call this command then this command".
// Running it in Go tests (for coverage analysis and convenience etc.) means
// doing some slight bodges.
func setupPflag(args []string) {
	os.Args = args
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
}

func Test_GenAndReplayFCC(t *testing.T) {
	var tmpdir = t.TempDir()
	var file = filepath.Join(tmpdir, "fcc.csv")

	setupPflag([]string{"dfs-gen", "-D", "fcc", "-s", "1000000", "-o", file})
	GenPulsesMain()

	setupPflag([]string{"dfsd", "-D", "fcc", "-f", "5260", "--replay", file})
	AssertOutputContains(t, DfsdMain, "radar detections: 1 ")
}

func Test_GenAndReplayETSI(t *testing.T) {
	var tmpdir = t.TempDir()
	var file = filepath.Join(tmpdir, "etsi.csv")

	setupPflag([]string{"dfs-gen", "-D", "etsi", "-s", "1000000", "-o", file})
	GenPulsesMain()

	setupPflag([]string{"dfsd", "-D", "etsi", "-f", "5500", "--replay", file})
	AssertOutputContains(t, DfsdMain, "radar detections: 1 ")
}
