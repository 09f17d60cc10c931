package dfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNormalizeTicks(t *testing.T) {
	var d = HwDuration{Value: 10, Unit: DurTicks}.Normalize(durMultiplierNormal)

	assert.Equal(t, HwDuration{Value: 8, Unit: DurMicros}, d)
}

func TestNormalizeZeroIsOne(t *testing.T) {
	assert.Equal(t, uint32(1), HwDuration{Value: 0, Unit: DurTicks}.Normalize(durMultiplierNormal).Value)
	assert.Equal(t, uint32(1), HwDuration{Value: 0, Unit: DurMicros}.Normalize(durMultiplierNormal).Value)
}

func TestNormalizeOnce(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var d = HwDuration{
			Value: rapid.Uint32Range(0, 255).Draw(t, "value"),
			Unit:  DurUnit(rapid.IntRange(0, 1).Draw(t, "unit")),
		}
		var multiplier = rapid.Uint32Range(1, 1000).Draw(t, "multiplier")

		var once = d.Normalize(multiplier)
		var twice = once.Normalize(multiplier)

		assert.Equal(t, DurMicros, once.Unit)
		assert.Equal(t, once, twice)
		assert.NotZero(t, once.Value)
	})
}

func TestEventQueueNew(t *testing.T) {
	var q = NewEventQueue()

	assert.Equal(t, MaxEvents, q.Free())
	assert.Equal(t, 0, q.Pending())

	var _, ok = q.DequeuePending()
	assert.False(t, ok)
}

func TestEventQueueFIFO(t *testing.T) {
	var q = NewEventQueue()

	for i := 0; i < 5; i++ {
		var h, ok = q.AcquireFree()
		require.True(t, ok)
		q.event(h).ts = uint32(100 + i)
		q.EnqueuePending(h)
	}

	assert.Equal(t, 5, q.Pending())
	assert.Equal(t, MaxEvents-5, q.Free())

	for i := 0; i < 5; i++ {
		var h, ok = q.DequeuePending()
		require.True(t, ok)
		assert.Equal(t, uint32(100+i), q.event(h).ts)
		q.Release(h)
	}

	assert.Equal(t, MaxEvents, q.Free())
}

func TestEventQueueExhaustion(t *testing.T) {
	var q = NewEventQueue()

	var held []EventHandle
	for i := 0; i < MaxEvents; i++ {
		var h, ok = q.AcquireFree()
		require.True(t, ok, "event %d", i)
		held = append(held, h)
	}

	var _, ok = q.AcquireFree()
	assert.False(t, ok, "pool should be empty")

	q.Release(held[0])

	_, ok = q.AcquireFree()
	assert.True(t, ok)
}

func TestEventQueueReleaseClears(t *testing.T) {
	var q = NewEventQueue()

	var h, _ = q.AcquireFree()
	q.event(h).dur = 50
	q.event(h).rssi = 30
	q.Release(h)

	assert.Equal(t, radarEvent{next: noEvent}, *q.event(h))
}

func TestEventQueueResetPending(t *testing.T) {
	var q = NewEventQueue()

	for i := 0; i < 10; i++ {
		var h, _ = q.AcquireFree()
		q.EnqueuePending(h)
	}

	q.ResetPending()

	assert.Equal(t, 0, q.Pending())
	assert.Equal(t, MaxEvents, q.Free())
}

// Every event is always either free, pending, or held by someone.
func TestEventQueueConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var q = NewEventQueue()
		var held []EventHandle

		var ops = rapid.SliceOfN(rapid.IntRange(0, 3), 1, 300).Draw(t, "ops")
		for _, op := range ops {
			switch op {
			case 0:
				if h, ok := q.AcquireFree(); ok {
					held = append(held, h)
				}
			case 1:
				if len(held) > 0 {
					q.EnqueuePending(held[0])
					held = held[1:]
				}
			case 2:
				if h, ok := q.DequeuePending(); ok {
					q.Release(h)
				}
			case 3:
				if len(held) > 0 {
					q.Release(held[len(held)-1])
					held = held[:len(held)-1]
				}
			}

			assert.Equal(t, MaxEvents, q.Free()+q.Pending()+len(held))
		}
	})
}
