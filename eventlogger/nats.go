package eventlogger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

type publisher interface {
	Publish(subject string, data []byte) error
}

// NatsLogger publishes every event on "<prefix>.<event type>".
type NatsLogger struct {
	conn   publisher
	prefix string
	close  func()
}

// DialNats connects to url and returns a logger publishing under prefix.
func DialNats(url, prefix string) (*NatsLogger, error) {
	nc, err := nats.Connect(url, nats.Name("acasinha-chores"))
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return &NatsLogger{conn: nc, prefix: prefix, close: nc.Close}, nil
}

func (n *NatsLogger) Save(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	subject := e.Type
	if n.prefix != "" {
		subject = n.prefix + "." + e.Type
	}
	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing to nats: %w", err)
	}
	return nil
}

func (n *NatsLogger) Close() error {
	if n.close != nil {
		n.close()
	}
	return nil
}
