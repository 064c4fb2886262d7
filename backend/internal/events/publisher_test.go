package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/Warpchat/backend/internal/matchmaking"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sent struct {
	kind string
	data []byte
}

type fakeSink struct {
	mu     sync.Mutex
	sent   []sent
	gate   chan struct{}
	err    error
	closed bool
}

func (s *fakeSink) Send(ctx context.Context, kind string, data []byte) error {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sent{kind: kind, data: data})
	return s.err
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSink) snapshot() []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sent(nil), s.sent...)
}

func TestPublisher_DeliversInOrder(t *testing.T) {
	sink := &fakeSink{}
	p := NewPublisher(sink, 8, testLogger())

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.Observe(matchmaking.Lifecycle{Kind: matchmaking.RoomCreated, RoomID: "room_1", Members: []string{"a", "b"}, At: at})
	p.Observe(matchmaking.Lifecycle{Kind: matchmaking.RoomClosed, RoomID: "room_1", Reason: matchmaking.ReasonLeft, At: at})

	require.NoError(t, p.Close(context.Background()))

	got := sink.snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, "room.created", got[0].kind)
	assert.Equal(t, "room.closed", got[1].kind)

	var ev matchmaking.Lifecycle
	require.NoError(t, json.Unmarshal(got[1].data, &ev))
	assert.Equal(t, "room_1", ev.RoomID)
	assert.Equal(t, matchmaking.ReasonLeft, ev.Reason)
	assert.True(t, sink.closed)
}

func TestPublisher_DropsWhenFull(t *testing.T) {
	sink := &fakeSink{gate: make(chan struct{})}
	p := NewPublisher(sink, 1, testLogger())

	// One event is held by the worker, one fills the queue, the rest drop.
	for range 10 {
		p.Observe(matchmaking.Lifecycle{Kind: matchmaking.WaiterEvicted})
	}
	close(sink.gate)
	require.NoError(t, p.Close(context.Background()))

	got := sink.snapshot()
	assert.GreaterOrEqual(t, len(got), 1)
	assert.LessOrEqual(t, len(got), 2)
}

func TestPublisher_CloseRespectsDeadline(t *testing.T) {
	sink := &fakeSink{gate: make(chan struct{})}
	p := NewPublisher(sink, 4, testLogger())
	p.Observe(matchmaking.Lifecycle{Kind: matchmaking.RoomCreated})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Close(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	close(sink.gate)
}

func TestPublisher_ObserveAfterClose(t *testing.T) {
	sink := &fakeSink{}
	p := NewPublisher(sink, 4, testLogger())
	require.NoError(t, p.Close(context.Background()))
	require.NoError(t, p.Close(context.Background()))

	assert.NotPanics(t, func() {
		p.Observe(matchmaking.Lifecycle{Kind: matchmaking.RoomCreated})
	})
	assert.Empty(t, sink.snapshot())
}

func TestPublisher_SinkErrorsDoNotStopWorker(t *testing.T) {
	sink := &fakeSink{err: errors.New("broker down")}
	p := NewPublisher(sink, 4, testLogger())

	p.Observe(matchmaking.Lifecycle{Kind: matchmaking.RoomCreated})
	p.Observe(matchmaking.Lifecycle{Kind: matchmaking.RoomClosed})
	require.NoError(t, p.Close(context.Background()))

	assert.Len(t, sink.snapshot(), 2)
}

func TestNewSink(t *testing.T) {
	sink, err := NewSink(context.Background(), Config{Type: BackendNone})
	require.NoError(t, err)
	assert.IsType(t, NopSink{}, sink)

	sink, err = NewSink(context.Background(), Config{})
	require.NoError(t, err)
	assert.IsType(t, NopSink{}, sink)

	_, err = NewSink(context.Background(), Config{Type: "kafka"})
	assert.Error(t, err)
}

func TestSubjectNaming(t *testing.T) {
	assert.Equal(t, "warpchat.room.created", natsSubject("warpchat", string(matchmaking.RoomCreated)))
	assert.Equal(t, "warpchat:waiter.evicted", redisChannel("warpchat", string(matchmaking.WaiterEvicted)))
}
