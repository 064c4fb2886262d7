package matchmaking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaper_SweepEvictsAndHeals(t *testing.T) {
	h := newHarness(t, WithWaitingTTL(time.Minute), lenient)
	h.connect(t, "a", "b", "c")
	h.join("a", "")
	h.clock.advance(2 * time.Minute)

	h.engine.mu.Lock()
	h.engine.rooms.create("room_bogus", "b", "c", h.clock.now())
	h.engine.mu.Unlock()

	NewReaper(h.engine, time.Minute, testLogger()).Sweep()

	assert.Empty(t, h.engine.Waiting(GlobalTag))
	require.NoError(t, h.engine.CheckInvariants())
	_, ok := h.engine.Room("room_bogus")
	assert.True(t, ok, "a room between two live clients is kept and their states repaired")
	b, _ := h.engine.Client("b")
	assert.Equal(t, StatePaired, b.State)
}

func TestReaper_RunStopsOnCancel(t *testing.T) {
	h := newHarness(t, WithWaitingTTL(time.Nanosecond))
	h.connect(t, "a")
	h.join("a", "")
	h.clock.advance(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		NewReaper(h.engine, 5*time.Millisecond, testLogger()).Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		return len(h.engine.Waiting(GlobalTag)) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	wg.Wait()
}

func TestNewReaper_DefaultInterval(t *testing.T) {
	r := NewReaper(New(NotifierFunc(func(string, Event) error { return nil }), testLogger()), 0, testLogger())
	assert.Equal(t, DefaultReapInterval, r.interval)
}
