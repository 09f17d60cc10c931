package dfs

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureRoundTrip(t *testing.T) {
	var reports = []*PhyErrReport{
		{Data: []byte{0x0a, 0x00, 0x01}, FullTSF: 1<<40 + 7, RxTS: 7, RSSI: 30, ExtRSSI: 2},
		EncodeReport(tlvCaps, false, PulseSpec{TS: testTSFBase, Dur: 77, RSSI: 37, Chirp: true}),
		{Data: []byte{}, FullTSF: 1, RxTS: 1},
	}

	var buf bytes.Buffer
	var cw = NewCaptureWriter(&buf)
	for _, r := range reports {
		require.NoError(t, cw.Write(r))
	}
	require.NoError(t, cw.Flush())

	assert.True(t, strings.HasPrefix(buf.String(), captureHeader))
	assert.Contains(t, buf.String(), "1099511627783,7,30,2,0a0001\n")

	var cr = NewCaptureReader(&buf)
	for i, want := range reports {
		var got, err = cr.Read()
		require.NoError(t, err, "record %d", i)
		assert.Equal(t, want.FullTSF, got.FullTSF)
		assert.Equal(t, want.RxTS, got.RxTS)
		assert.Equal(t, want.RSSI, got.RSSI)
		assert.Equal(t, want.ExtRSSI, got.ExtRSSI)
		assert.Equal(t, hex.EncodeToString(want.Data), hex.EncodeToString(got.Data))
	}

	var _, err = cr.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestCaptureReaderBadRecords(t *testing.T) {
	var cr = NewCaptureReader(strings.NewReader("# comment\n1,1,300,0,0a\n1,1,30,0,zz\n"))

	var _, err = cr.Read()
	assert.ErrorIs(t, err, ErrBadArgument, "rssi out of range")

	_, err = cr.Read()
	assert.ErrorIs(t, err, ErrBadArgument, "not hex")

	cr = NewCaptureReader(strings.NewReader("1,2,3\n"))
	_, err = cr.Read()
	assert.Error(t, err, "wrong field count")
}

// fccCapture is every FCC waveform, as dfs-gen writes it.
func fccCapture(t *testing.T) *bytes.Buffer {
	t.Helper()

	var dt = defaultTable(t, DomainFCC)
	var buf bytes.Buffer
	var cw = NewCaptureWriter(&buf)

	var ts = testTSFBase
	for _, rp := range dt.Radars {
		var train = SignatureTrain(rp, ts, 0)
		for _, p := range train {
			require.NoError(t, cw.Write(EncodeReport(tlvCaps, false, p)))
		}
		ts = TrainEnd(train) + genTrainGap
	}
	require.NoError(t, cw.Flush())

	return &buf
}

func TestReplayDetects(t *testing.T) {
	var rig = newTestRig(t, defaultTable(t, DomainFCC), chan5260, tlvCaps, nil)

	var seen = 0
	var res, err = rig.engine.Replay(context.Background(), NewCaptureReader(fccCapture(t)), func(*PhyErrReport) {
		seen++
	})
	require.NoError(t, err)

	assert.Equal(t, seen, res.Reports)
	assert.Positive(t, res.Reports)
	assert.Equal(t, 1, res.Detects, "the channel is on the NOL after the first")
	assert.Positive(t, res.Rejected, "pulses after the detection")
	assert.Equal(t, []Channel{chan5260}, rig.Radars())
	assert.Zero(t, rig.engine.Stats().QueueDrops)
}

func TestReplayStopsOnBadRecord(t *testing.T) {
	var rig = newTestRig(t, defaultTable(t, DomainFCC), chan5260, tlvCaps, nil)

	var _, err = rig.engine.Replay(context.Background(), NewCaptureReader(strings.NewReader("1,1,30,0,0a\nx,1,30,0,0a\n")), nil)
	assert.ErrorIs(t, err, ErrBadArgument)
}

func TestReplayCancelled(t *testing.T) {
	var rig = newTestRig(t, defaultTable(t, DomainFCC), chan5260, tlvCaps, nil)

	var ctx, cancel = context.WithCancel(context.Background())
	cancel()

	var res, err = rig.engine.Replay(ctx, NewCaptureReader(fccCapture(t)), nil)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, res.Reports)
}

func TestIngestSkipsBadRecords(t *testing.T) {
	var rig = newTestRig(t, defaultTable(t, DomainFCC), chan5260, tlvCaps, nil)

	var good = EncodeReport(tlvCaps, false, PulseSpec{TS: testTSFBase, Dur: 5, RSSI: 30})
	var buf bytes.Buffer
	buf.WriteString("garbage,1,2,3,4\n")
	var cw = NewCaptureWriter(&buf)
	require.NoError(t, cw.Write(good))
	require.NoError(t, cw.Flush())

	require.NoError(t, rig.engine.Ingest(context.Background(), NewCaptureReader(&buf), nil))
	assert.Equal(t, 1, rig.engine.PendingEvents())
}
