package dfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlThresholds(t *testing.T) {
	var rig = newTestRig(t, defaultTable(t, DomainFCC), chan5260, tlvCaps, nil)
	var e = rig.engine

	var reply, err = e.ExecControl("thresh")
	require.NoError(t, err)
	assert.Equal(t, "firpwr=-28 rrssi=20 height=10 prssi=6 inband=15 relpwr=8 relstep=12 maxlen=255", reply)

	reply, err = e.ExecControl("thresh set height 12")
	require.NoError(t, err)
	assert.Contains(t, reply, "height=12")

	var params, _, enables = rig.provider.Programmed()
	assert.Equal(t, int32(12), params.Height)
	assert.Equal(t, 2, enables, "radio reprogrammed")

	_, err = e.ExecControl("thresh set bogus 1")
	assert.ErrorIs(t, err, ErrBadArgument)

	_, err = e.ExecControl("thresh set height x")
	assert.ErrorIs(t, err, ErrBadArgument)

	_, err = e.ExecControl("thresh bogus")
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestControlDetect(t *testing.T) {
	var rig = newTestRig(t, defaultTable(t, DomainFCC), chan5260, tlvCaps, nil)
	var e = rig.engine

	var reply, err = e.ExecControl("detect off")
	require.NoError(t, err)
	assert.Equal(t, "detection off", reply)
	assert.False(t, e.DetectionEnabled())

	reply, err = e.ExecControl("detect on")
	require.NoError(t, err)
	assert.Equal(t, "detection on", reply)
	assert.True(t, e.DetectionEnabled())

	_, err = e.ExecControl("detect maybe")
	assert.ErrorIs(t, err, ErrBadArgument)
}

func TestControlDebug(t *testing.T) {
	var rig = newTestRig(t, defaultTable(t, DomainFCC), chan5260, tlvCaps, nil)
	var e = rig.engine

	var reply, err = e.ExecControl("debug")
	require.NoError(t, err)
	assert.Equal(t, "debug 0x0 none", reply)

	reply, err = e.ExecControl("debug dfs,bin5")
	require.NoError(t, err)
	assert.Equal(t, "debug 0x81 dfs,bin5", reply)
	assert.Equal(t, DebugDFS|DebugBin5, e.DebugMask())

	reply, err = e.ExecControl("debug 0")
	require.NoError(t, err)
	assert.Equal(t, "debug 0x0 none", reply)

	_, err = e.ExecControl("debug nope")
	assert.ErrorIs(t, err, ErrBadArgument)
}

func TestControlNOL(t *testing.T) {
	var rig = newTestRig(t, defaultTable(t, DomainFCC), chan5260, tlvCaps, nil)
	var e = rig.engine

	var reply, err = e.ExecControl("nol")
	require.NoError(t, err)
	assert.Equal(t, "NOL empty", reply)

	reply, err = e.ExecControl("nol add 5500 10")
	require.NoError(t, err)
	assert.Equal(t, "5500 MHz width 20 remaining 10m0s", reply)

	reply, err = e.ExecControl("nol add 5520")
	require.NoError(t, err)
	assert.Equal(t, "5500 MHz width 20 remaining 10m0s\n5520 MHz width 20 remaining 30m0s", reply)

	_, err = e.ExecControl("nol add x")
	assert.ErrorIs(t, err, ErrBadArgument)

	_, err = e.ExecControl("nol add 5540 0")
	assert.ErrorIs(t, err, ErrBadArgument)

	reply, err = e.ExecControl("nol clear")
	require.NoError(t, err)
	assert.Equal(t, "NOL cleared", reply)
	assert.Empty(t, e.NOL())
}

func TestControlBangRadar(t *testing.T) {
	var rig = newTestRig(t, defaultTable(t, DomainFCC), chan5260, tlvCaps, nil)
	var e = rig.engine

	var reply, err = e.ExecControl("bangradar")
	require.NoError(t, err)
	assert.Equal(t, "radar simulated", reply)

	require.True(t, e.ProcessRadarEvents())

	reply, err = e.ExecControl("detects")
	require.NoError(t, err)
	assert.Equal(t, "detects 1", reply)
}

func TestControlTunables(t *testing.T) {
	var rig = newTestRig(t, defaultTable(t, DomainFCC), chan5260, tlvCaps, nil)
	var e = rig.engine

	var cases = []struct {
		cmd   string
		reply string
	}{
		{"falserssi", "falserssi 50"},
		{"falserssi 70", "falserssi 70"},
		{"peakmag", "peakmag 40"},
		{"peakmag 0x20", "peakmag 32"},
		{"noltimeout", "noltimeout 30m0s"},
		{"noltimeout 10m", "noltimeout 10m0s"},
		{"usenol off", "usenol false"},
		{"usenol on", "usenol true"},
		{"primult", "primult 2"},
		{"primult 3", "primult 3"},
		{"ignoredfs off", "ignoredfs false"},
	}

	for _, tc := range cases {
		var reply, err = e.ExecControl(tc.cmd)
		require.NoError(t, err, tc.cmd)
		assert.Equal(t, tc.reply, reply, tc.cmd)
	}

	for _, bad := range []string{"falserssi 300", "peakmag -1", "noltimeout -1m", "noltimeout soon",
		"usenol", "ignoredfs maybe", "primult 0", "primult x"} {
		var _, err = e.ExecControl(bad)
		assert.ErrorIs(t, err, ErrBadArgument, bad)
	}
}

func TestControlIgnoreDFS(t *testing.T) {
	var rig = newTestRig(t, defaultTable(t, DomainFCC), chan5260, tlvCaps, nil)
	var e = rig.engine

	var reply, err = e.ExecControl("ignoredfs on")
	require.NoError(t, err)
	assert.Equal(t, "ignoredfs true", reply)

	var r = EncodeReport(tlvCaps, false, PulseSpec{TS: testTSFBase, Dur: 5, RSSI: 30})
	assert.ErrorIs(t, e.ProcessPhyErr(r), ErrDetectionDisabled)
}

func TestControlMisc(t *testing.T) {
	var rig = newTestRig(t, defaultTable(t, DomainFCC), chan5260, tlvCaps, nil)
	var e = rig.engine

	var reply, err = e.ExecControl("help")
	require.NoError(t, err)
	assert.Contains(t, reply, "commands:")

	reply, err = e.ExecControl("   ")
	require.NoError(t, err)
	assert.Empty(t, reply)

	reply, err = e.ExecControl("STATS")
	require.NoError(t, err)
	assert.Contains(t, reply, "phy_errors 0 queued 0 dropped 0")

	_, err = e.ExecControl("frobnicate")
	assert.ErrorIs(t, err, ErrUnknownCommand)
}
