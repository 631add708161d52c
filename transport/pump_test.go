package transport

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kavodo/streamrelay/body"
	"github.com/kavodo/streamrelay/buffer"
)

type collectingSubscriber struct {
	mu        sync.Mutex
	data      []byte
	completed bool
	err       error
	done      chan struct{}
}

func newCollectingSubscriber() *collectingSubscriber {
	return &collectingSubscriber{done: make(chan struct{})}
}

func (s *collectingSubscriber) OnNext(c body.Chunk) {
	s.mu.Lock()
	s.data = append(s.data, c.Bytes()...)
	s.mu.Unlock()
	c.Release()
}

func (s *collectingSubscriber) OnComplete() {
	s.mu.Lock()
	s.completed = true
	s.mu.Unlock()
	close(s.done)
}

func (s *collectingSubscriber) OnError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.done)
}

func TestPumpDeliversFullBodyToSubscriber(t *testing.T) {
	payload := strings.Repeat("origin-response-bytes-", 4096)
	upstream := io.NopCloser(strings.NewReader(payload))

	origin := body.Origin{ID: "o1", Host: "backend:8080"}
	pump := NewPump(origin, upstream, nil, nil)
	producer := body.NewProducer(origin, "pump-test", pump.Collaborators(), nil)
	pump.Attach(producer)

	sub := newCollectingSubscriber()
	producer.OnSubscribed(sub)
	producer.Request(1 << 30)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		pump.Run(ctx)
		close(done)
	}()

	select {
	case <-sub.done:
	case <-ctx.Done():
		t.Fatal("timed out waiting for subscriber completion")
	}
	<-done

	require.NoError(t, sub.err)
	assert.True(t, sub.completed)
	assert.Equal(t, payload, string(sub.data))
	assert.Equal(t, body.Completed, producer.CurrentState())
}

func TestPumpUsesConfiguredBufferPool(t *testing.T) {
	payload := "configured-pool-bytes"
	upstream := io.NopCloser(strings.NewReader(payload))

	origin := body.Origin{ID: "o2", Host: "backend:8080"}
	pump := NewPump(origin, upstream, nil, nil)
	pump.SetBufferPool(buffer.NewPool(4))
	pump.SetPermitChannelCapacity(8)

	producer := body.NewProducer(origin, "pump-pool-test", pump.Collaborators(), nil)
	pump.Attach(producer)

	sub := newCollectingSubscriber()
	producer.OnSubscribed(sub)
	producer.Request(1 << 30)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		pump.Run(ctx)
		close(done)
	}()

	select {
	case <-sub.done:
	case <-ctx.Done():
		t.Fatal("timed out waiting for subscriber completion")
	}
	<-done

	require.NoError(t, sub.err)
	assert.Equal(t, payload, string(sub.data))
}
