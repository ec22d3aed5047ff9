package mq

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// MemoryBroker is an in-process Backend. Each channel is a buffered queue;
// a message whose handler fails is re-queued until maxAttempts is reached.
type MemoryBroker struct {
	mu          sync.Mutex
	queues      map[string]chan Message
	closed      bool
	size        int
	maxAttempts int
}

// NewMemoryBroker returns a broker with per-channel buffers of size.
func NewMemoryBroker(size int) *MemoryBroker {
	if size <= 0 {
		size = 64
	}
	return &MemoryBroker{queues: make(map[string]chan Message), size: size, maxAttempts: 3}
}

func (b *MemoryBroker) queue(channel string) (chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New("mq: broker closed")
	}
	q, ok := b.queues[channel]
	if !ok {
		q = make(chan Message, b.size)
		b.queues[channel] = q
	}
	return q, nil
}

func (b *MemoryBroker) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	q, err := b.queue(channel)
	if err != nil {
		return "", err
	}
	msg := Message{ID: uuid.NewString(), Data: data, Attributes: attrs}
	select {
	case q <- msg:
		return msg.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Subscribe blocks delivering messages to handler until ctx is cancelled.
func (b *MemoryBroker) Subscribe(ctx context.Context, channel string, handler Handler) error {
	q, err := b.queue(channel)
	if err != nil {
		return err
	}
	attempts := make(map[string]int)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-q:
			if err := handler(ctx, msg); err != nil {
				attempts[msg.ID]++
				if attempts[msg.ID] < b.maxAttempts {
					select {
					case q <- msg:
					default:
					}
				}
				continue
			}
			delete(attempts, msg.ID)
		}
	}
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
