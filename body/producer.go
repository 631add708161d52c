package body

import (
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kavodo/streamrelay/internal/fsm"
)

// Producer bridges an origin-facing transport connection to a reactive
// downstream subscriber. It is created per response, in state
// BUFFERING, and is discarded once it reaches COMPLETED or TERMINATED
// and every downstream signal has been delivered.
type Producer struct {
	machine *fsm.Machine[State]

	origin     Origin
	prefix     string
	collab     Collaborators
	logger     *zap.Logger
	subscriber Subscriber

	queue  chunkQueue
	demand demand

	receivedChunks      atomic.Int64
	receivedBytes       atomic.Int64
	emittedChunks       atomic.Int64
	emittedBytes        atomic.Int64
	maxQueueDepthChunks atomic.Int64
	maxQueueDepthBytes  atomic.Int64
}

// NewProducer creates a producer in state BUFFERING for the given
// origin. prefix identifies the connection in log lines; if empty, a
// random uuid is generated so concurrent producers remain distinguishable.
func NewProducer(origin Origin, prefix string, collab Collaborators, logger *zap.Logger) *Producer {
	if prefix == "" {
		prefix = uuid.NewString()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Producer{
		origin: origin,
		prefix: prefix,
		collab: collab,
		logger: logger.With(zap.String("component", "body_producer"), zap.String("prefix", prefix)),
	}
	p.machine = buildMachine(p)
	return p
}

// --- Input API: called by transport ---

// NewChunk enqueues one body fragment; the producer takes ownership.
func (p *Producer) NewChunk(chunk Chunk) {
	p.machine.Handle(contentChunkEvent{chunk: chunk})
}

// LastHTTPContent signals that the upstream body is complete.
func (p *Producer) LastHTTPContent() {
	p.machine.Handle(contentEndEvent{})
}

// ChannelException signals a fatal upstream channel error.
func (p *Producer) ChannelException(cause error) {
	p.machine.Handle(channelExceptionEvent{cause: cause})
}

// ChannelInactive signals that the upstream channel closed.
func (p *Producer) ChannelInactive(cause error) {
	p.machine.Handle(channelInactiveEvent{cause: cause})
}

// TearDownResources signals that the delayed tear-down grace window
// expired before the body was fully delivered.
func (p *Producer) TearDownResources() {
	p.machine.Handle(delayedTearDownEvent{
		cause: &ResponseTimeoutError{
			Origin:         p.origin,
			Reason:         "channelClosed",
			ReceivedBytes:  p.ReceivedBytes(),
			ReceivedChunks: p.ReceivedChunks(),
			EmittedBytes:   p.EmittedBytes(),
			EmittedChunks:  p.EmittedChunks(),
		},
	})
}

// --- Input API: called by subscriber ---

// OnSubscribed registers the sole subscriber. A subscriber arriving
// while one is already attached (or the producer is terminal) receives
// an immediate onError instead of being attached.
func (p *Producer) OnSubscribed(sub Subscriber) {
	if p.inSubscribedState() {
		p.warn("Secondary content subscription")
	}
	p.machine.Handle(contentSubscribedEvent{subscriber: sub})
}

func (p *Producer) inSubscribedState() bool {
	switch p.machine.State() {
	case Completed, Streaming, EmittingBufferedContent, Terminated:
		return true
	default:
		return false
	}
}

// Request adds n to demand, saturating at unbounded.
func (p *Producer) Request(n int64) {
	p.machine.Handle(backpressureRequestEvent{n: n})
}

// Unsubscribe cancels the subscription. The producer treats this as a
// consumer-initiated failure, not a clean stop.
func (p *Producer) Unsubscribe() {
	p.machine.Handle(unsubscribeEvent{})
}

// --- Observability ---

func (p *Producer) ReceivedBytes() int64       { return p.receivedBytes.Load() }
func (p *Producer) ReceivedChunks() int64      { return p.receivedChunks.Load() }
func (p *Producer) EmittedBytes() int64        { return p.emittedBytes.Load() }
func (p *Producer) EmittedChunks() int64       { return p.emittedChunks.Load() }
func (p *Producer) MaxQueueDepthChunks() int64 { return p.maxQueueDepthChunks.Load() }
func (p *Producer) MaxQueueDepthBytes() int64  { return p.maxQueueDepthBytes.Load() }

// CurrentState returns the producer's state. Safe to call from any
// goroutine; the result may be stale by the time it is used.
func (p *Producer) CurrentState() State {
	return p.machine.State()
}

// warn emits the compact diagnostic line specified for inappropriate
// events, spurious chunks, and secondary subscriptions.
func (p *Producer) warn(msg string) {
	p.logger.Warn(msg,
		zap.String("state", string(p.machine.State())),
		zap.Int64("receivedChunks", p.ReceivedChunks()),
		zap.Int64("receivedBytes", p.ReceivedBytes()),
		zap.Int64("emittedChunks", p.EmittedChunks()),
		zap.Int64("emittedBytes", p.EmittedBytes()),
		zap.Int64("maxQueueDepthChunks", p.MaxQueueDepthChunks()),
		zap.Int64("maxQueueDepthBytes", p.MaxQueueDepthBytes()),
	)
}

// warnAt is like warn but takes the state explicitly, for use inside a
// transition handler where calling p.machine.State() would deadlock on
// the machine's own lock.
func (p *Producer) warnAt(state State, msg string) {
	p.logger.Warn(msg,
		zap.String("state", string(state)),
		zap.Int64("receivedChunks", p.ReceivedChunks()),
		zap.Int64("receivedBytes", p.ReceivedBytes()),
		zap.Int64("emittedChunks", p.EmittedChunks()),
		zap.Int64("emittedBytes", p.EmittedBytes()),
		zap.Int64("maxQueueDepthChunks", p.MaxQueueDepthChunks()),
		zap.Int64("maxQueueDepthBytes", p.MaxQueueDepthBytes()),
	)
}
