package matchmaking

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTag(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: GlobalTag},
		{name: "blank", in: "   ", want: GlobalTag},
		{name: "lower case", in: "us", want: "US"},
		{name: "padded", in: "  eu-west ", want: "EU-WEST"},
		{name: "explicit global", in: "global", want: GlobalTag},
		{name: "too long", in: strings.Repeat("a", 40), want: strings.Repeat("A", maxTagLength)},
		{name: "cut inside rune", in: "abcdefghijklmnopqrstuvwxyzabcdeé", want: "ABCDEFGHIJKLMNOPQRSTUVWXYZABCDE"},
		{name: "multibyte within limit", in: "zürich", want: "ZÜRICH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTag(tt.in)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestPool_EnqueueDualMembership(t *testing.T) {
	p := newPool()
	now := time.Now()

	p.enqueue("a", "US", now)
	p.enqueue("b", GlobalTag, now)

	assert.Equal(t, []string{"a"}, p.queues["US"].ids())
	assert.Equal(t, []string{"a", "b"}, p.queues[GlobalTag].ids())
	assert.True(t, p.contains("a"))
	assert.True(t, p.contains("b"))
}

func TestPool_EnqueueReplacesPriorEntry(t *testing.T) {
	p := newPool()
	now := time.Now()

	p.enqueue("a", "US", now)
	p.enqueue("a", "EU", now.Add(time.Second))

	_, stillUS := p.queues["US"]
	assert.False(t, stillUS, "empty tier queue should be dropped")
	assert.Equal(t, []string{"a"}, p.queues["EU"].ids())
	assert.Equal(t, []string{"a"}, p.queues[GlobalTag].ids())
}

func TestPool_RemoveClearsEveryQueue(t *testing.T) {
	p := newPool()
	p.enqueue("a", "US", time.Now())

	require.True(t, p.remove("a"))
	assert.False(t, p.remove("a"))
	assert.False(t, p.contains("a"))
	assert.Zero(t, p.queues[GlobalTag].len())
	assert.NotContains(t, p.queues, "US")
}

func TestPool_NextPrefersOwnTier(t *testing.T) {
	p := newPool()
	now := time.Now()

	p.enqueue("g1", GlobalTag, now)
	p.enqueue("eu1", "EU", now.Add(time.Second))
	p.enqueue("us1", "US", now.Add(2*time.Second))

	match := p.next("US", "requester")
	require.NotNil(t, match)
	assert.Equal(t, "us1", match.clientID)
	assert.False(t, p.contains("us1"))
	assert.Equal(t, []string{"g1", "eu1"}, p.queues[GlobalTag].ids())
}

func TestPool_NextFallsBackToGlobal(t *testing.T) {
	p := newPool()
	now := time.Now()

	p.enqueue("eu1", "EU", now)
	p.enqueue("g1", GlobalTag, now.Add(time.Second))

	match := p.next("US", "requester")
	require.NotNil(t, match)
	assert.Equal(t, "eu1", match.clientID, "global fallback takes the oldest waiter of any tier")
	assert.NotContains(t, p.queues, "EU")
	assert.Equal(t, []string{"g1"}, p.queues[GlobalTag].ids())
}

func TestPool_NextIsFIFOWithinTier(t *testing.T) {
	p := newPool()
	now := time.Now()
	for i, id := range []string{"u1", "u2", "u3"} {
		p.enqueue(id, "US", now.Add(time.Duration(i)*time.Second))
	}

	var got []string
	for match := p.next("US", "x"); match != nil; match = p.next("US", "x") {
		got = append(got, match.clientID)
	}
	assert.Equal(t, []string{"u1", "u2", "u3"}, got)
}

func TestPool_NextSkipsRequester(t *testing.T) {
	p := newPool()
	now := time.Now()

	p.enqueue("self", "US", now)
	p.enqueue("other", "US", now.Add(time.Second))

	match := p.next("US", "self")
	require.NotNil(t, match)
	assert.Equal(t, "other", match.clientID)
	assert.False(t, p.contains("self"), "stale self entry is discarded")
}

func TestPool_NextOnlySelfReturnsNil(t *testing.T) {
	p := newPool()
	p.enqueue("self", GlobalTag, time.Now())

	assert.Nil(t, p.next(GlobalTag, "self"))
	assert.False(t, p.contains("self"))
}

func TestPool_Expired(t *testing.T) {
	p := newPool()
	base := time.Now()

	p.enqueue("old", "US", base)
	p.enqueue("edge", GlobalTag, base.Add(time.Minute))
	p.enqueue("new", GlobalTag, base.Add(2*time.Minute))

	expired := p.expired(base.Add(time.Minute))
	require.Len(t, expired, 1)
	assert.Equal(t, "old", expired[0].clientID)
}

func TestPool_RebuildRestoresLostMembership(t *testing.T) {
	p := newPool()
	base := time.Now()

	p.enqueue("a", "US", base)
	p.enqueue("b", GlobalTag, base.Add(time.Second))
	p.enqueue("c", "US", base.Add(2*time.Second))

	// Corrupt: "a" disappears from the global queue, "c" from its tier.
	p.queues[GlobalTag].remove("a")
	p.queues["US"].remove("c")

	p.rebuild(func(e *waitingEntry) bool { return e.clientID != "b" })

	assert.Equal(t, []string{"c", "a"}, p.queues[GlobalTag].ids())
	assert.ElementsMatch(t, []string{"a", "c"}, p.queues["US"].ids())
	assert.False(t, p.contains("b"))
}

func TestPool_Sizes(t *testing.T) {
	p := newPool()
	assert.Equal(t, map[string]int{GlobalTag: 0}, p.sizes())

	p.enqueue("a", "US", time.Now())
	assert.Equal(t, map[string]int{GlobalTag: 1, "US": 1}, p.sizes())
}
