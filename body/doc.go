/*
Package body implements the flow-controlled response-body producer that
sits between an origin-facing transport connection and a reactive
downstream subscriber.

It bridges two independently-clocked worlds: a transport goroutine
delivering content chunks, end-of-body, and channel-failure events as
they arrive off the wire, and a subscriber that pulls bytes on demand
via request(n). A six-state machine (BUFFERING, STREAMING,
BUFFERING_COMPLETED, EMITTING_BUFFERED_CONTENT, COMPLETED, TERMINATED)
serializes the two sides so that exactly one terminal signal is ever
delivered, buffers are never leaked or double-released, and bytes reach
the subscriber in strict arrival order.

The state machine itself lives in internal/fsm; this package supplies
the six states, the eight domain events, the transition table, and the
demand/queue/counter bookkeeping around it.
*/
package body
