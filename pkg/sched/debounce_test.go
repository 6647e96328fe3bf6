package sched

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiresOnceAfterQuietPeriod(t *testing.T) {
	var fires atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { fires.Add(1) })

	d.Touch()
	require.True(t, d.Pending())

	require.Eventually(t, func() bool {
		return fires.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.False(t, d.Pending())

	// No spurious second fire.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), fires.Load())
}

func TestTouchResetsTheTimer(t *testing.T) {
	var fires atomic.Int32
	d := NewDebouncer(40*time.Millisecond, func() { fires.Add(1) })

	// Touches closer together than the interval collapse into one
	// trailing fire.
	for i := 0; i < 5; i++ {
		d.Touch()
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, int32(0), fires.Load())

	require.Eventually(t, func() bool {
		return fires.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStopCancelsPendingFire(t *testing.T) {
	var fires atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { fires.Add(1) })

	d.Touch()
	d.Stop()
	assert.False(t, d.Pending())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), fires.Load())
}

func TestFlushFiresImmediately(t *testing.T) {
	var fires atomic.Int32
	d := NewDebouncer(time.Hour, func() { fires.Add(1) })

	d.Touch()
	d.Flush()
	assert.Equal(t, int32(1), fires.Load())
	assert.False(t, d.Pending())

	// Flush with nothing pending is a no-op.
	d.Flush()
	assert.Equal(t, int32(1), fires.Load())
}

func TestReusableAfterFire(t *testing.T) {
	var fires atomic.Int32
	d := NewDebouncer(10*time.Millisecond, func() { fires.Add(1) })

	d.Touch()
	require.Eventually(t, func() bool { return fires.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	d.Touch()
	require.Eventually(t, func() bool { return fires.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
}
