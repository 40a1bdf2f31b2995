// Package kafka publishes engine events. Two clients are supported, picked
// by configuration; both deliver synchronously with all-replica acks.
package kafka

import "context"

type Message struct {
	Key   []byte
	Value []byte
}

// Publisher delivers a batch in order. A nil error means every message was
// acknowledged.
type Publisher interface {
	Publish(ctx context.Context, msgs ...Message) error
	Close() error
}
