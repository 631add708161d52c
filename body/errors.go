package body

import "fmt"

// ConsumerDisconnectedError reports that the downstream subscriber
// unsubscribed before the body finished streaming. The producer treats
// this as a failure, not a clean stop.
type ConsumerDisconnectedError struct {
	Message           string
	StateAtDisconnect State
}

func (e *ConsumerDisconnectedError) Error() string {
	return fmt.Sprintf("%s (state=%s)", e.Message, e.StateAtDisconnect)
}

// ResponseTimeoutError reports that the delayed tear-down grace window
// expired before the body was fully delivered: either no subscriber
// attached, or an attached subscriber had not yet drained the buffered
// content.
type ResponseTimeoutError struct {
	Origin Origin
	Reason string

	ReceivedBytes  int64
	ReceivedChunks int64
	EmittedBytes   int64
	EmittedChunks  int64
}

func (e *ResponseTimeoutError) Error() string {
	return fmt.Sprintf(
		"response timeout: origin=%s reason=%s receivedBytes=%d receivedChunks=%d emittedBytes=%d emittedChunks=%d",
		e.Origin, e.Reason, e.ReceivedBytes, e.ReceivedChunks, e.EmittedBytes, e.EmittedChunks,
	)
}

// ErrSecondarySubscription reports that a second subscriber attempted
// to attach to a producer that already has one, or that a subscriber
// arrived after the producer reached a terminal state.
type ErrSecondarySubscription struct {
	State  State
	Prefix string
}

func (e *ErrSecondarySubscription) Error() string {
	return fmt.Sprintf("secondary subscription occurred: producerState=%s connection=%s", e.State, e.Prefix)
}
