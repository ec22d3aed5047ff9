package mq

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/projectplus/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBroker_DeliversAndRetries(t *testing.T) {
	broker := NewMemoryBroker(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	delivered := make(chan Message, 1)
	go func() {
		_ = broker.Subscribe(ctx, "mail", func(_ context.Context, msg Message) error {
			if atomic.AddInt32(&calls, 1) == 1 {
				return errors.New("transient")
			}
			delivered <- msg
			return nil
		})
	}()

	id, err := broker.Publish(ctx, "mail", []byte(`{"kind":"reset"}`), map[string]string{"kind": "reset"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	select {
	case msg := <-delivered:
		assert.Equal(t, id, msg.ID)
		assert.Equal(t, "reset", msg.Attributes["kind"])
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	case <-time.After(time.Second):
		t.Fatal("message was not redelivered")
	}
}

func TestMemoryBroker_SubscribeStopsWithContext(t *testing.T) {
	broker := NewMemoryBroker(1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- broker.Subscribe(ctx, "mail", func(context.Context, Message) error { return nil })
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("subscribe did not return")
	}
}

func TestMemoryBroker_Closed(t *testing.T) {
	broker := NewMemoryBroker(1)
	require.NoError(t, broker.Close())
	_, err := broker.Publish(context.Background(), "mail", nil, nil)
	assert.Error(t, err)
}

func TestNewBackend(t *testing.T) {
	_, err := NewBackend(context.Background(), config.MQConfig{Backend: "none"})
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = NewBackend(context.Background(), config.MQConfig{Backend: "kafka"})
	assert.Error(t, err)

	_, err = NewBackend(context.Background(), config.MQConfig{Backend: "rabbitmq"})
	assert.EqualError(t, err, "rabbitmq url is required")

	_, err = NewBackend(context.Background(), config.MQConfig{Backend: "pubsub"})
	assert.EqualError(t, err, "pubsub project id is required")
}
