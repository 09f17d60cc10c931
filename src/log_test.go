package dfs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, fname string) []string {
	t.Helper()

	var data, err = os.ReadFile(fname)
	require.NoError(t, err)

	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestDetectLogDaily(t *testing.T) {
	var dir = filepath.Join(t.TempDir(), "radar")

	var dl, err = NewDetectLog(dir, "radar-%Y-%m-%d.csv", quietLogger())
	require.NoError(t, err)
	defer dl.Close()

	var day1 = time.Date(2024, time.March, 1, 23, 59, 0, 0, time.UTC)
	var nol = []NOLEntry{{Freq: 5260, ChWidth: 20}, {Freq: 5280, ChWidth: 20}}

	require.NoError(t, dl.Write(day1, chan5260P, 1, nol))
	require.NoError(t, dl.Write(day1.Add(30*time.Second), chan5260, 2, nol[:1]))
	require.NoError(t, dl.Write(day1.Add(2*time.Minute), chan5260, 3, nil))

	var lines = readLines(t, filepath.Join(dir, "radar-2024-03-01.csv"))
	require.Len(t, lines, 3)
	assert.Equal(t, "utime,isotime,freq,flags,width,detects,nol", lines[0])
	assert.Equal(t, "1709337540,2024-03-01T23:59:00Z,5260,\"ht40+,dfs\",40,1,5260 5280", lines[1])
	assert.Equal(t, "1709337570,2024-03-01T23:59:30Z,5260,\"ht20,dfs\",20,2,5260", lines[2])

	lines = readLines(t, filepath.Join(dir, "radar-2024-03-02.csv"))
	require.Len(t, lines, 2, "a new day gets a new file")
	assert.True(t, strings.HasSuffix(lines[1], ",20,3,"))
}

func TestDetectLogSingleFile(t *testing.T) {
	var fname = filepath.Join(t.TempDir(), "radar.csv")
	var now = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

	var dl, err = NewDetectLog(fname, "", quietLogger())
	require.NoError(t, err)
	require.NoError(t, dl.Write(now, chan5260, 1, nil))
	dl.Close()

	// Reopening appends without another header.
	dl, err = NewDetectLog(fname, "", quietLogger())
	require.NoError(t, err)
	require.NoError(t, dl.Write(now.Add(24*time.Hour), chan5260, 2, nil))
	dl.Close()

	var lines = readLines(t, fname)
	require.Len(t, lines, 3)
	assert.Equal(t, "utime,isotime,freq,flags,width,detects,nol", lines[0])
}

func TestDetectLogNotADirectory(t *testing.T) {
	var fname = filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(fname, nil, 0o644))

	var _, err = NewDetectLog(fname, "radar-%Y.csv", quietLogger())
	assert.ErrorIs(t, err, ErrBadArgument)
}
