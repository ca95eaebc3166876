package notify

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
)

// NATSListener publishes every event as JSON on "<prefix>.<event name>".
type NATSListener struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSListener creates a listener publishing on conn. An empty prefix
// defaults to "quill".
func NewNATSListener(conn *nats.Conn, prefix string) (*NATSListener, error) {
	if conn == nil {
		return nil, fmt.Errorf("nats connection is required")
	}
	if prefix == "" {
		prefix = "quill"
	}
	return &NATSListener{conn: conn, prefix: prefix}, nil
}

// Subject returns the subject an event is published on.
func (n *NATSListener) Subject(e Event) string {
	return n.prefix + "." + e.Name
}

func (n *NATSListener) Handle(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := n.conn.Publish(n.Subject(e), b); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	if _, ok := ctx.Deadline(); !ok {
		return n.conn.Flush()
	}
	return n.conn.FlushWithContext(ctx)
}
