package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSSink publishes each event on the core NATS subject <prefix>.<kind>.
type NATSSink struct {
	conn   *nats.Conn
	prefix string
}

func NewNATSSink(url, prefix string) (*NATSSink, error) {
	conn, err := nats.Connect(url,
		nats.Name("warpchat-signaling"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return &NATSSink{conn: conn, prefix: prefix}, nil
}

func (s *NATSSink) Send(_ context.Context, kind string, data []byte) error {
	return s.conn.Publish(natsSubject(s.prefix, kind), data)
}

// Close flushes buffered publishes before closing the connection.
func (s *NATSSink) Close() error {
	err := s.conn.FlushTimeout(2 * time.Second)
	s.conn.Close()
	if err != nil {
		return fmt.Errorf("flush nats: %w", err)
	}
	return nil
}

func natsSubject(prefix, kind string) string {
	return prefix + "." + kind
}
