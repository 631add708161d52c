package body

import (
	"github.com/kavodo/streamrelay/internal/fsm"
)

// buildMachine wires the exhaustive state x event transition table.
// Every cell present in the specification's table is registered here;
// everything else falls through to the inappropriate-event callback.
func buildMachine(p *Producer) *fsm.Machine[State] {
	return fsm.NewBuilder[State](Buffering).
		Transition(Buffering, kindBackpressureRequest, p.rxBackpressureRequestInBuffering).
		Transition(Buffering, kindContentChunk, p.contentChunkInBuffering).
		Transition(Buffering, kindChannelInactive, p.releaseAndTerminate).
		Transition(Buffering, kindChannelException, p.releaseAndTerminate).
		Transition(Buffering, kindContentSubscribed, p.contentSubscribedInBuffering).
		Transition(Buffering, kindContentEnd, p.contentEndWhileBuffering).

		Transition(BufferingCompleted, kindBackpressureRequest, p.rxBackpressureRequestInBufferingCompleted).
		Transition(BufferingCompleted, kindContentChunk, p.spuriousContentChunk).
		Transition(BufferingCompleted, kindChannelInactive, p.scheduleTearDown).
		Transition(BufferingCompleted, kindChannelException, p.swallowChannelException).
		Transition(BufferingCompleted, kindDelayedTearDown, p.releaseAndTerminate).
		Transition(BufferingCompleted, kindContentSubscribed, p.contentSubscribedInBufferingCompleted).
		Transition(BufferingCompleted, kindContentEnd, p.stayNoop).

		Transition(Streaming, kindBackpressureRequest, p.rxBackpressureRequestInStreaming).
		Transition(Streaming, kindContentChunk, p.contentChunkInStreaming).
		Transition(Streaming, kindChannelInactive, p.emitErrorAndTerminateEvent).
		Transition(Streaming, kindChannelException, p.emitErrorAndTerminateEvent).
		Transition(Streaming, kindContentSubscribed, p.secondarySubscriptionWhileAttached).
		Transition(Streaming, kindContentEnd, p.contentEndWhileStreaming).
		Transition(Streaming, kindUnsubscribe, p.prematureUnsubscribe).

		Transition(EmittingBufferedContent, kindBackpressureRequest, p.rxBackpressureRequestInEmittingBufferedContent).
		Transition(EmittingBufferedContent, kindContentChunk, p.spuriousContentChunk).
		Transition(EmittingBufferedContent, kindChannelInactive, p.scheduleTearDown).
		Transition(EmittingBufferedContent, kindChannelException, p.swallowChannelException).
		Transition(EmittingBufferedContent, kindDelayedTearDown, p.emitErrorAndTerminateEvent).
		Transition(EmittingBufferedContent, kindContentSubscribed, p.secondarySubscriptionWhileAttached).
		Transition(EmittingBufferedContent, kindContentEnd, p.stayNoop).
		Transition(EmittingBufferedContent, kindUnsubscribe, p.prematureUnsubscribe).

		Transition(Completed, kindContentChunk, p.spuriousContentChunk).
		Transition(Completed, kindContentEnd, p.stayNoop).
		Transition(Completed, kindUnsubscribe, p.stayNoop).
		Transition(Completed, kindBackpressureRequest, p.stayNoop).
		Transition(Completed, kindContentSubscribed, p.secondarySubscriptionTerminal).
		Transition(Completed, kindDelayedTearDown, p.stayNoop).

		Transition(Terminated, kindContentChunk, p.spuriousContentChunk).
		Transition(Terminated, kindContentSubscribed, p.secondarySubscriptionTerminal).
		Transition(Terminated, kindBackpressureRequest, p.stayNoop).

		OnInappropriateEvent(func(state State, event fsm.Event) {
			p.warnAt(state, "Inappropriate event")
		}).
		Build()
}

// stayNoop leaves the state unchanged. Used for cells whose spec entry
// is "stay" with no other side effect.
func (p *Producer) stayNoop(state State, _ fsm.Event) State {
	return state
}

/*
 * BUFFERING handlers
 */

func (p *Producer) rxBackpressureRequestInBuffering(state State, event fsm.Event) State {
	e := event.(backpressureRequestEvent)
	p.demand.request(e.n)
	p.maybeAskForMore()
	return state
}

func (p *Producer) contentChunkInBuffering(_ State, event fsm.Event) State {
	e := event.(contentChunkEvent)
	p.enqueue(e.chunk)
	p.maybeAskForMore()
	return Buffering
}

func (p *Producer) contentSubscribedInBuffering(_ State, event fsm.Event) State {
	e := event.(contentSubscribedEvent)
	p.subscriber = e.subscriber
	p.drain()
	p.maybeAskForMore()
	return Streaming
}

func (p *Producer) contentEndWhileBuffering(_ State, _ fsm.Event) State {
	return BufferingCompleted
}

/*
 * BUFFERING_COMPLETED handlers
 */

func (p *Producer) rxBackpressureRequestInBufferingCompleted(state State, event fsm.Event) State {
	e := event.(backpressureRequestEvent)
	p.demand.request(e.n)
	return state
}

func (p *Producer) contentSubscribedInBufferingCompleted(_ State, event fsm.Event) State {
	e := event.(contentSubscribedEvent)
	p.subscriber = e.subscriber

	if p.queue.len() == 0 {
		p.completeSubscriber()
		return Completed
	}

	p.drain()

	if p.queue.len() > 0 {
		return EmittingBufferedContent
	}
	p.completeSubscriber()
	return Completed
}

/*
 * STREAMING handlers
 */

func (p *Producer) rxBackpressureRequestInStreaming(_ State, event fsm.Event) State {
	e := event.(backpressureRequestEvent)
	p.demand.request(e.n)
	p.drain()
	p.maybeAskForMore()
	return Streaming
}

func (p *Producer) contentChunkInStreaming(_ State, event fsm.Event) State {
	e := event.(contentChunkEvent)
	p.enqueue(e.chunk)
	p.drain()
	p.maybeAskForMore()
	return Streaming
}

func (p *Producer) contentEndWhileStreaming(_ State, _ fsm.Event) State {
	if p.queue.len() > 0 {
		return EmittingBufferedContent
	}
	p.completeSubscriber()
	return Completed
}

func (p *Producer) prematureUnsubscribe(state State, _ fsm.Event) State {
	return p.emitErrorAndTerminate(&ConsumerDisconnectedError{
		Message:           "the consumer unsubscribed: connection=" + p.prefix,
		StateAtDisconnect: state,
	})
}

/*
 * EMITTING_BUFFERED_CONTENT handlers
 */

func (p *Producer) rxBackpressureRequestInEmittingBufferedContent(_ State, event fsm.Event) State {
	e := event.(backpressureRequestEvent)
	p.demand.request(e.n)
	p.drain()

	// No askForMore: the response is already fully received.
	if p.queue.len() == 0 {
		p.completeSubscriber()
		return Completed
	}
	return EmittingBufferedContent
}

/*
 * Shared secondary-subscription / termination handlers
 */

// secondarySubscriptionWhileAttached handles a second ContentSubscribed
// while STREAMING or EMITTING_BUFFERED_CONTENT: something has gone
// badly wrong, so everything is torn down.
func (p *Producer) secondarySubscriptionWhileAttached(state State, event fsm.Event) State {
	e := event.(contentSubscribedEvent)
	p.queue.drainAndRelease()

	cause := &ErrSecondarySubscription{State: state, Prefix: p.prefix}
	if p.subscriber != nil {
		p.subscriber.OnError(cause)
	}
	e.subscriber.OnError(cause)
	p.collab.OnTerminate(cause)
	return Terminated
}

func (p *Producer) secondarySubscriptionTerminal(state State, event fsm.Event) State {
	e := event.(contentSubscribedEvent)
	e.subscriber.OnError(&ErrSecondarySubscription{State: state, Prefix: p.prefix})
	return state
}

// spuriousContentChunk handles a ContentChunk arriving after the body
// already ended: log and release, state unchanged.
func (p *Producer) spuriousContentChunk(state State, event fsm.Event) State {
	e := event.(contentChunkEvent)
	p.warnAt(state, "Spurious content chunk")
	e.chunk.Release()
	return state
}

// scheduleTearDown asks the collaborator to arrange a DelayedTearDown
// event after a grace period, leaving the state unchanged in the
// meantime.
func (p *Producer) scheduleTearDown(state State, _ fsm.Event) State {
	p.collab.DelayedTearDown()
	return state
}

// swallowChannelException preserves the original's choice to ignore a
// ChannelException once the body has already fully arrived, avoiding a
// race against the subscriber's own termination path. See DESIGN.md.
func (p *Producer) swallowChannelException(state State, _ fsm.Event) State {
	return state
}

// releaseAndTerminate releases every queued buffer and fires
// OnTerminate without ever having had (or needing) a subscriber.
func (p *Producer) releaseAndTerminate(_ State, event fsm.Event) State {
	cause := causeOf(event)
	p.queue.drainAndRelease()
	p.collab.OnTerminate(cause)
	return Terminated
}

// emitErrorAndTerminateEvent extracts the cause from a causal event and
// delegates to emitErrorAndTerminate.
func (p *Producer) emitErrorAndTerminateEvent(_ State, event fsm.Event) State {
	return p.emitErrorAndTerminate(causeOf(event))
}

// emitErrorAndTerminate delivers onError to the attached subscriber,
// releases every queued buffer, fires OnTerminate, and moves to
// TERMINATED.
func (p *Producer) emitErrorAndTerminate(cause error) State {
	p.queue.drainAndRelease()
	if p.subscriber != nil {
		p.subscriber.OnError(cause)
	}
	p.collab.OnTerminate(cause)
	return Terminated
}

// completeSubscriber delivers the one-shot onComplete signal and fires
// OnCompleteAction. Callers are responsible for returning Completed.
func (p *Producer) completeSubscriber() {
	p.subscriber.OnComplete()
	p.collab.OnComplete()
}

func causeOf(event fsm.Event) error {
	switch e := event.(type) {
	case channelExceptionEvent:
		return e.cause
	case channelInactiveEvent:
		return e.cause
	case delayedTearDownEvent:
		return e.cause
	default:
		return nil
	}
}

/*
 * Enqueue, drain and upstream-demand gating
 */

// enqueue records a newly-arrived chunk in received counters, appends
// it to the queue, and updates the running max queue depth.
func (p *Producer) enqueue(c Chunk) {
	p.receivedBytes.Add(int64(c.ReadableBytes()))
	p.receivedChunks.Add(1)
	p.queue.push(c)
	p.updateMaxDepth()
}

func (p *Producer) updateMaxDepth() {
	if depth := p.receivedChunks.Load() - p.emittedChunks.Load(); depth > p.maxQueueDepthChunks.Load() {
		p.maxQueueDepthChunks.Store(depth)
	}
	if depth := p.receivedBytes.Load() - p.emittedBytes.Load(); depth > p.maxQueueDepthBytes.Load() {
		p.maxQueueDepthBytes.Store(depth)
	}
}

// maybeAskForMore invokes the upstream demand signal whenever the
// queue depth has dropped strictly below BackpressureThreshold.
func (p *Producer) maybeAskForMore() {
	if p.queue.len() < BackpressureThreshold {
		p.collab.AskForMore()
	}
}

// drain delivers queued chunks to the subscriber while demand allows,
// in strict FIFO order. It must never be called without a subscriber
// attached.
func (p *Producer) drain() {
	for {
		prev := p.demand.decrement()
		if prev <= 0 {
			return
		}
		chunk, ok := p.queue.pop()
		if !ok {
			p.demand.increment()
			return
		}
		p.emittedBytes.Add(int64(chunk.ReadableBytes()))
		p.emittedChunks.Add(1)
		p.subscriber.OnNext(chunk)
	}
}
