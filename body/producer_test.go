package body

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChunk is a Chunk that records whether it was released, and how
// many times — a double release is a test failure in itself.
type fakeChunk struct {
	size     int
	released int
}

func newFakeChunk(size int) *fakeChunk { return &fakeChunk{size: size} }

func (c *fakeChunk) Bytes() []byte      { return make([]byte, c.size) }
func (c *fakeChunk) ReadableBytes() int { return c.size }

func (c *fakeChunk) Release() bool {
	c.released++
	return c.released == 1
}

// fakeSubscriber records every signal it receives, in order, guarded by
// a mutex so it stays safe if transitions originate from more than one
// goroutine.
type fakeSubscriber struct {
	mu        sync.Mutex
	chunks    []Chunk
	completed bool
	err       error
}

func (s *fakeSubscriber) OnNext(c Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, c)
}

func (s *fakeSubscriber) OnComplete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = true
}

func (s *fakeSubscriber) OnError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *fakeSubscriber) snapshot() (chunks []Chunk, completed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Chunk(nil), s.chunks...), s.completed, s.err
}

// fakeCollaborators records collaborator invocations for assertion and
// lets tests drive DelayedTearDown manually rather than on a timer.
type fakeCollaborators struct {
	mu              sync.Mutex
	askForMoreCount int
	completeCount   int
	terminateCause  error
	terminated      bool
	tearDownArmed   bool
}

func newFakeCollaborators() (*fakeCollaborators, Collaborators) {
	f := &fakeCollaborators{}
	return f, Collaborators{
		AskForMore: func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.askForMoreCount++
		},
		OnComplete: func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.completeCount++
		},
		OnTerminate: func(cause error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.terminated = true
			f.terminateCause = cause
		},
		DelayedTearDown: func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.tearDownArmed = true
		},
	}
}

func testOrigin() Origin { return Origin{ID: "origin-1", Host: "backend.internal:8443"} }

func TestNewProducerStartsInBuffering(t *testing.T) {
	_, collab := newFakeCollaborators()
	p := NewProducer(testOrigin(), "", collab, nil)
	assert.Equal(t, Buffering, p.CurrentState())
}

// S1: buffer then stream — chunks arrive before subscription, then a
// subscriber attaches and immediately starts receiving what was queued.
func TestScenarioBufferThenStream(t *testing.T) {
	_, collab := newFakeCollaborators()
	p := NewProducer(testOrigin(), "s1", collab, nil)

	c1, c2 := newFakeChunk(10), newFakeChunk(20)
	p.NewChunk(c1)
	p.NewChunk(c2)
	require.Equal(t, Buffering, p.CurrentState())

	sub := &fakeSubscriber{}
	p.OnSubscribed(sub)
	require.Equal(t, Streaming, p.CurrentState())

	p.Request(2)

	chunks, completed, err := sub.snapshot()
	assert.Equal(t, []Chunk{c1, c2}, chunks)
	assert.False(t, completed)
	assert.Nil(t, err)
}

// S2: fully buffered before subscription, subscriber drains everything
// and reaches COMPLETED without ever seeing STREAMING.
func TestScenarioFullyBufferedBeforeSubscription(t *testing.T) {
	_, collab := newFakeCollaborators()
	p := NewProducer(testOrigin(), "s2", collab, nil)

	c1 := newFakeChunk(5)
	p.NewChunk(c1)
	p.LastHTTPContent()
	require.Equal(t, BufferingCompleted, p.CurrentState())

	sub := &fakeSubscriber{}
	p.OnSubscribed(sub)
	p.Request(1)

	chunks, completed, _ := sub.snapshot()
	assert.Equal(t, []Chunk{c1}, chunks)
	assert.True(t, completed)
	assert.Equal(t, Completed, p.CurrentState())
}

// S3: end-of-body arrives while a subscriber is mid-stream with unmet
// demand still queued; the residual must drain via
// EMITTING_BUFFERED_CONTENT before completion.
func TestScenarioEndOfBodyWhileStreamingWithBacklog(t *testing.T) {
	_, collab := newFakeCollaborators()
	p := NewProducer(testOrigin(), "s3", collab, nil)

	sub := &fakeSubscriber{}
	p.OnSubscribed(sub)

	c1, c2 := newFakeChunk(1), newFakeChunk(2)
	p.NewChunk(c1)
	p.NewChunk(c2)
	// No demand granted yet: both chunks remain queued.
	p.LastHTTPContent()
	require.Equal(t, EmittingBufferedContent, p.CurrentState())

	p.Request(1)
	chunks, completed, _ := sub.snapshot()
	assert.Equal(t, []Chunk{c1}, chunks)
	assert.False(t, completed)
	assert.Equal(t, EmittingBufferedContent, p.CurrentState())

	p.Request(1)
	chunks, completed, _ = sub.snapshot()
	assert.Equal(t, []Chunk{c1, c2}, chunks)
	assert.True(t, completed)
	assert.Equal(t, Completed, p.CurrentState())
}

// S5: the consumer unsubscribes mid-stream; this is a failure path, not
// a clean stop, and every queued chunk is released.
func TestScenarioPrematureUnsubscribe(t *testing.T) {
	fc, collab := newFakeCollaborators()
	p := NewProducer(testOrigin(), "s5", collab, nil)

	sub := &fakeSubscriber{}
	p.OnSubscribed(sub)

	c1 := newFakeChunk(3)
	p.NewChunk(c1)
	p.Unsubscribe()

	_, _, err := sub.snapshot()
	require.Error(t, err)
	var disc *ConsumerDisconnectedError
	assert.ErrorAs(t, err, &disc)
	assert.Equal(t, Terminated, p.CurrentState())
	assert.Equal(t, 1, c1.released)
	assert.True(t, fc.terminated)
}

// Channel exception with no subscriber attached (a no-subscriber
// variant of S3): releases every queued chunk and terminates without
// ever invoking a subscriber.
func TestScenarioChannelExceptionBeforeSubscription(t *testing.T) {
	fc, collab := newFakeCollaborators()
	p := NewProducer(testOrigin(), "s3b", collab, nil)

	c1 := newFakeChunk(3)
	p.NewChunk(c1)
	cause := errors.New("boom")
	p.ChannelException(cause)

	assert.Equal(t, Terminated, p.CurrentState())
	assert.Equal(t, 1, c1.released)
	assert.True(t, fc.terminated)
	assert.Equal(t, cause, fc.terminateCause)
}

// S6: a channel failure with no subscriber and content already fully
// received schedules a delayed tear-down rather than terminating
// immediately, giving a late subscriber one last chance to attach.
func TestScenarioDelayedTearDownGivesLastChanceToSubscribe(t *testing.T) {
	fc, collab := newFakeCollaborators()
	p := NewProducer(testOrigin(), "s6", collab, nil)

	c1 := newFakeChunk(4)
	p.NewChunk(c1)
	p.LastHTTPContent()
	require.Equal(t, BufferingCompleted, p.CurrentState())

	p.ChannelInactive(errors.New("closed"))
	assert.True(t, fc.tearDownArmed)
	assert.Equal(t, BufferingCompleted, p.CurrentState())

	sub := &fakeSubscriber{}
	p.OnSubscribed(sub)
	p.Request(1)
	_, completed, _ := sub.snapshot()
	assert.True(t, completed)
	assert.Equal(t, Completed, p.CurrentState())
}

func TestSecondarySubscriptionReceivesImmediateError(t *testing.T) {
	_, collab := newFakeCollaborators()
	p := NewProducer(testOrigin(), "sub2", collab, nil)

	first := &fakeSubscriber{}
	p.OnSubscribed(first)

	second := &fakeSubscriber{}
	p.OnSubscribed(second)

	_, _, err := second.snapshot()
	require.Error(t, err)
	var secondary *ErrSecondarySubscription
	assert.ErrorAs(t, err, &secondary)
	assert.Equal(t, Terminated, p.CurrentState())
}

func TestSpuriousChunkAfterCompletionIsReleasedNotQueued(t *testing.T) {
	_, collab := newFakeCollaborators()
	p := NewProducer(testOrigin(), "spurious", collab, nil)

	p.LastHTTPContent()
	sub := &fakeSubscriber{}
	p.OnSubscribed(sub)
	require.Equal(t, Completed, p.CurrentState())

	late := newFakeChunk(1)
	p.NewChunk(late)
	assert.Equal(t, 1, late.released)
	assert.Equal(t, Completed, p.CurrentState())
}

func TestAskForMoreFiresOnceQueueDropsBelowThreshold(t *testing.T) {
	fc, collab := newFakeCollaborators()
	p := NewProducer(testOrigin(), "askformore", collab, nil)

	// Queue depth 1 is at BackpressureThreshold: no signal yet.
	p.NewChunk(newFakeChunk(1))
	assert.Equal(t, 0, fc.askForMoreCount)

	// Draining it to zero via a subscriber must drop it below threshold.
	sub := &fakeSubscriber{}
	p.OnSubscribed(sub)
	p.Request(1)
	assert.Equal(t, 1, fc.askForMoreCount)
}
