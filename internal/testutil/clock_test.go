package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualClock_DefaultsToEpoch(t *testing.T) {
	clock := NewManualClock(time.Time{})
	assert.Equal(t, Epoch, clock.Now())
}

func TestManualClock_FrozenUntilAdvanced(t *testing.T) {
	clock := NewManualClock(time.Time{})

	assert.Equal(t, clock.Now(), clock.Now())

	got := clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, Epoch.Add(1500*time.Millisecond), got)
	assert.Equal(t, got, clock.Now())
}

func TestManualClock_SetBackwards(t *testing.T) {
	clock := NewManualClock(time.Time{})
	clock.Advance(time.Hour)

	clock.Set(Epoch.Add(time.Minute))
	assert.Equal(t, Epoch.Add(time.Minute), clock.Now())
}

func TestManualClock_ConcurrentAdvance(t *testing.T) {
	clock := NewManualClock(time.Time{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clock.Advance(time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, Epoch.Add(50*time.Millisecond), clock.Now())
}

func TestStamp(t *testing.T) {
	ts := Stamp(6, 2, ReplicaA)
	assert.Equal(t, "2024-01-01T00:00:00.006Z-0002-00000000000000aa", ts.String())
	assert.Equal(t, ReplicaA, ts.Origin())
}

func TestNewReplicaClock(t *testing.T) {
	wall := NewManualClock(time.Time{})
	clock := NewReplicaClock(ReplicaB, wall)

	ts, err := clock.Now()
	require.NoError(t, err)
	assert.Equal(t, Stamp(0, 0, ReplicaB), ts)

	wall.Advance(10 * time.Millisecond)
	ts, err = clock.Now()
	require.NoError(t, err)
	assert.Equal(t, Stamp(10, 0, ReplicaB), ts)
}

func TestNewReplicaClock_PanicsOnBadNode(t *testing.T) {
	assert.Panics(t, func() { NewReplicaClock("bad", NewManualClock(time.Time{})) })
}
