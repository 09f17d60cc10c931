package dfs

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lestrrat-go/strftime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampWriter(t *testing.T) {
	var p, err = strftime.New("%H:%M:%S")
	require.NoError(t, err)

	var buf bytes.Buffer
	var tw = &timestampWriter{
		w:       &buf,
		pattern: p,
		now:     func() time.Time { return time.Date(2024, time.March, 1, 9, 8, 7, 0, time.UTC) },
	}

	var n, writeErr = tw.Write([]byte("one\ntwo"))
	require.NoError(t, writeErr)
	assert.Equal(t, 7, n)

	_, writeErr = tw.Write([]byte(" more\nthree\n"))
	require.NoError(t, writeErr)

	assert.Equal(t, "09:08:07 one\n09:08:07 two more\n09:08:07 three\n", buf.String())
}

func TestLoadDfsdConfigOverrides(t *testing.T) {
	var path = writeTempFile(t, "dfsd.yaml", "engine: {domain: etsi}\ncapture: {serial: /dev/ttyS0}\n")

	var cfg, err = loadDfsdConfig(dfsdOptions{
		configFile: path,
		domain:     "mkk4",
		debug:      "nol",
		freq:       5500,
		replay:     "x.csv",
		control:    ":8001",
		noDNSSD:    true,
		nolFile:    "/tmp/nol.yaml",
		radarGPIO:  "gpiochip0:17",
		logFile:    "/tmp/radar.csv",
	})
	require.NoError(t, err)

	assert.Equal(t, DomainMKK4, cfg.Engine.Domain)
	assert.Equal(t, DebugNOL, cfg.Engine.DebugMask)
	assert.Equal(t, uint16(5500), cfg.Channel.Freq)
	assert.Equal(t, "x.csv", cfg.Capture.File)
	assert.Empty(t, cfg.Capture.Serial, "replay wins over the configured port")
	assert.Equal(t, ":8001", cfg.Control.Listen)
	assert.False(t, cfg.Control.DNSSD)
	assert.Equal(t, "/tmp/nol.yaml", cfg.NOLFile)
	assert.Equal(t, IndicatorConfig{Chip: "gpiochip0", Line: 17}, cfg.Indicator)
	assert.Equal(t, DetectLogConfig{Dir: "/tmp/radar.csv"}, cfg.DetectLog, "single file, no pattern")
}

func TestLoadDfsdConfigMissingFile(t *testing.T) {
	var missing = filepath.Join(t.TempDir(), "dfsd.yaml")

	var cfg, err = loadDfsdConfig(dfsdOptions{configFile: missing})
	require.NoError(t, err, "the default file is optional")
	assert.Equal(t, DomainFCC, cfg.Engine.Domain)

	_, err = loadDfsdConfig(dfsdOptions{configFile: missing, configExplicit: true})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadDfsdConfigBadOptions(t *testing.T) {
	for _, opt := range []dfsdOptions{
		{domain: "mars"},
		{debug: "loud"},
		{radarGPIO: "gpiochip0"},
		{radarGPIO: ":4"},
		{radarGPIO: "gpiochip0:x"},
	} {
		var _, err = loadDfsdConfig(opt)
		assert.Error(t, err, "%+v", opt)
	}
}

func TestRunDfsdBadChannel(t *testing.T) {
	var path = writeTempFile(t, "dfsd.yaml", "channel: {freq: 5260, flags: [ht160]}\n")

	var err = runDfsd(context.Background(), dfsdOptions{configFile: path, configExplicit: true})
	assert.ErrorIs(t, err, ErrBadArgument)
}

func TestRunDfsdReplay(t *testing.T) {
	var dir = t.TempDir()

	var capture = filepath.Join(dir, "fcc.csv")
	require.NoError(t, os.WriteFile(capture, fccCapture(t).Bytes(), 0o644))

	var opt = dfsdOptions{
		replay:  capture,
		nolFile: filepath.Join(dir, "nol.yaml"),
		logFile: filepath.Join(dir, "radar.csv"),
		record:  filepath.Join(dir, "copy.csv"),
	}

	require.NoError(t, runDfsd(context.Background(), opt))

	var nol, err = LoadNOL(opt.nolFile)
	require.NoError(t, err)
	require.Len(t, nol, 1)
	assert.Equal(t, uint16(5260), nol[0].Freq)

	var lines = readLines(t, opt.logFile)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], ",5260,")

	var original, _ = os.ReadFile(capture)
	var copied, copyErr = os.ReadFile(opt.record)
	require.NoError(t, copyErr)
	assert.Equal(t, string(original), string(copied))
}
