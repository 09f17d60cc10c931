package dfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestIsPRIMultiple(t *testing.T) {
	assert.True(t, isPRIMultiple(1000, 1000))
	assert.True(t, isPRIMultiple(2004, 1000))
	assert.True(t, isPRIMultiple(3995, 1000))
	assert.True(t, isPRIMultiple(4000, 1000))
	assert.False(t, isPRIMultiple(2006, 1000))
	assert.False(t, isPRIMultiple(5000, 1000), "more than three missed pulses")
	assert.False(t, isPRIMultiple(999, 1000))
	assert.False(t, isPRIMultiple(1000, 0))
}

func TestIsUniquePRI(t *testing.T) {
	assert.True(t, isUniquePRI(0, 0, 0, 2500))
	assert.True(t, isUniquePRI(3333, 0, 0, 2500))
	assert.True(t, isUniquePRI(1000, 0, 0, 1500))

	assert.False(t, isUniquePRI(1000, 0, 0, 1010), "too close")
	assert.False(t, isUniquePRI(1000, 0, 0, 2000), "a multiple")
	assert.False(t, isUniquePRI(1000, 2500, 0, 2510), "close to the middle cluster")
	assert.False(t, isUniquePRI(1000, 2500, 700, 1403), "twice the lowest")
}

func TestMultiplesAreNotUnique(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var ref = rapid.Uint32Range(100, 10000).Draw(t, "ref")
		var k = rapid.Uint32Range(1, maxAllowedMissed+1).Draw(t, "k")
		var jitter = rapid.Uint32Range(0, priMultipleTolerance).Draw(t, "jitter")

		var sample = k*ref + jitter

		assert.True(t, isPRIMultiple(sample, ref))
		assert.False(t, isUniquePRI(ref, 0, 0, sample))
	})
}

// stagger-test: PRIs 2494..3339µs, 4 matches per cluster.
func TestStaggeredMatch(t *testing.T) {
	var rig = newTestRig(t, domainTable(t, staggeredTableYAML, DomainETSI), chan5260, tlvCaps, nil)

	var train = pulseTrain(testTSFBase, 12, 2, 34, 3333, 2500)

	assert.Equal(t, 7, rig.feedAndSweep(t, train))
	assert.Equal(t, []Channel{chan5260}, rig.Radars())
	assert.Equal(t, uint64(1), rig.engine.Stats().FilterDetects)
}

func TestStaggeredNeedsBothClusters(t *testing.T) {
	var rig = newTestRig(t, domainTable(t, staggeredTableYAML, DomainETSI), chan5260, tlvCaps, nil)

	assert.Equal(t, -1, rig.feedAndSweep(t, pulseTrain(testTSFBase, 7, 2, 34, 3333, 2500)))

	// One PRI only is a fixed radar, not a staggered one.
	rig = newTestRig(t, domainTable(t, staggeredTableYAML, DomainETSI), chan5260, tlvCaps, nil)

	assert.Equal(t, -1, rig.feedAndSweep(t, pulseTrain(testTSFBase, 20, 2, 34, 3000)))
	assert.Empty(t, rig.Radars())
}
