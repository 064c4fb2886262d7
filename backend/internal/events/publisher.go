// Package events publishes room and waiting-pool lifecycle transitions to an
// external broker so other services can follow matchmaking activity.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BioHazard786/Warpchat/backend/internal/matchmaking"
)

const (
	defaultBuffer      = 1024
	defaultSendTimeout = 5 * time.Second
)

// Sink delivers one encoded event to a broker.
type Sink interface {
	Send(ctx context.Context, kind string, data []byte) error
	Close() error
}

// Publisher is a matchmaking.Observer that forwards lifecycle events to a
// Sink from a background worker. Observe never blocks; when the queue is full
// the event is dropped and logged.
type Publisher struct {
	sink        Sink
	queue       chan matchmaking.Lifecycle
	sendTimeout time.Duration
	logger      *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewPublisher starts the worker draining into sink. buffer <= 0 picks the
// default queue size.
func NewPublisher(sink Sink, buffer int, logger *slog.Logger) *Publisher {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	p := &Publisher{
		sink:        sink,
		queue:       make(chan matchmaking.Lifecycle, buffer),
		sendTimeout: defaultSendTimeout,
		logger:      logger,
		done:        make(chan struct{}),
	}
	go p.run()
	return p
}

// Observe queues ev for publishing.
func (p *Publisher) Observe(ev matchmaking.Lifecycle) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return
	}
	select {
	case p.queue <- ev:
	default:
		p.logger.Warn("Event queue full, dropping event", "kind", ev.Kind, "room_id", ev.RoomID)
	}
}

func (p *Publisher) run() {
	defer close(p.done)

	for ev := range p.queue {
		data, err := json.Marshal(ev)
		if err != nil {
			p.logger.Error("Failed to encode event", "kind", ev.Kind, "error", err)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), p.sendTimeout)
		err = p.sink.Send(ctx, string(ev.Kind), data)
		cancel()
		if err != nil {
			p.logger.Warn("Failed to publish event", "kind", ev.Kind, "error", err)
		}
	}
}

// Close stops accepting events, waits for the queue to drain or ctx to
// expire, and closes the sink.
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	var drainErr error
	select {
	case <-p.done:
	case <-ctx.Done():
		drainErr = fmt.Errorf("drain event queue: %w", ctx.Err())
	}

	if err := p.sink.Close(); err != nil {
		return fmt.Errorf("close sink: %w", err)
	}
	return drainErr
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Send(context.Context, string, []byte) error { return nil }
func (NopSink) Close() error                               { return nil }
