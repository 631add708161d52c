package body

import "github.com/kavodo/streamrelay/internal/fsm"

// The eight event kinds the producer's state machine accepts. Each maps
// to one concrete event type below; the set is closed — no other kind
// is ever registered in the transition table.
const (
	kindContentChunk        fsm.Kind = "content_chunk"
	kindContentEnd          fsm.Kind = "content_end"
	kindChannelException    fsm.Kind = "channel_exception"
	kindChannelInactive     fsm.Kind = "channel_inactive"
	kindContentSubscribed   fsm.Kind = "content_subscribed"
	kindBackpressureRequest fsm.Kind = "backpressure_request"
	kindUnsubscribe         fsm.Kind = "unsubscribe"
	kindDelayedTearDown     fsm.Kind = "delayed_tear_down"
)

// contentChunkEvent carries one arrived body fragment.
type contentChunkEvent struct {
	chunk Chunk
}

func (contentChunkEvent) Kind() fsm.Kind { return kindContentChunk }

// contentEndEvent signals that the upstream body is complete.
type contentEndEvent struct{}

func (contentEndEvent) Kind() fsm.Kind { return kindContentEnd }

// channelExceptionEvent signals a fatal upstream channel error.
type channelExceptionEvent struct {
	cause error
}

func (channelExceptionEvent) Kind() fsm.Kind { return kindChannelException }

// channelInactiveEvent signals that the upstream channel closed.
type channelInactiveEvent struct {
	cause error
}

func (channelInactiveEvent) Kind() fsm.Kind { return kindChannelInactive }

// contentSubscribedEvent signals that a downstream subscriber attached.
type contentSubscribedEvent struct {
	subscriber Subscriber
}

func (contentSubscribedEvent) Kind() fsm.Kind { return kindContentSubscribed }

// backpressureRequestEvent signals the subscriber requested n more items.
type backpressureRequestEvent struct {
	n int64
}

func (backpressureRequestEvent) Kind() fsm.Kind { return kindBackpressureRequest }

// unsubscribeEvent signals the subscriber detached before completion.
type unsubscribeEvent struct{}

func (unsubscribeEvent) Kind() fsm.Kind { return kindUnsubscribe }

// delayedTearDownEvent fires after the grace period following a
// channel failure with no subscriber attached.
type delayedTearDownEvent struct {
	cause error
}

func (delayedTearDownEvent) Kind() fsm.Kind { return kindDelayedTearDown }
