// Package subscriber adapts the push-based body.Subscriber interface
// to the pull-based io.Reader an HTTP response writer expects,
// requesting exactly one buffered chunk of demand at a time.
package subscriber

import (
	"io"

	"github.com/kavodo/streamrelay/body"
)

// signal carries one event off the producer's callback threads onto a
// single ordered channel; a struct sum type rather than two separate
// channels, so OnNext followed immediately by OnComplete can never be
// observed out of order by the reading side.
type signal struct {
	chunk body.Chunk
	err   error // io.EOF on OnComplete, the cause on OnError
}

// Reader bridges a body.Producer to an io.Reader. It implements
// body.Subscriber; callers construct one per response, call Start
// against the producer they want to read from, and then treat the
// Reader itself as the response body.
type Reader struct {
	producer *body.Producer
	events   chan signal

	pending []byte
	current body.Chunk
	done    bool
}

// NewReader creates a Reader not yet subscribed to any producer.
func NewReader() *Reader {
	return &Reader{events: make(chan signal, 4)}
}

// Start subscribes to producer and requests the first chunk. It must
// be called at most once.
func (r *Reader) Start(producer *body.Producer) {
	r.producer = producer
	producer.OnSubscribed(r)
	producer.Request(1)
}

// OnNext implements body.Subscriber.
func (r *Reader) OnNext(c body.Chunk) { r.events <- signal{chunk: c} }

// OnComplete implements body.Subscriber.
func (r *Reader) OnComplete() { r.events <- signal{err: io.EOF} }

// OnError implements body.Subscriber.
func (r *Reader) OnError(err error) { r.events <- signal{err: err} }

// Read implements io.Reader, blocking until a chunk arrives, the body
// completes, or the producer reports an error.
func (r *Reader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.done {
			return 0, io.EOF
		}
		if r.current != nil {
			r.current.Release()
			r.current = nil
			r.producer.Request(1)
		}

		sig := <-r.events
		switch {
		case sig.chunk != nil:
			r.current = sig.chunk
			r.pending = sig.chunk.Bytes()
		case sig.err == io.EOF:
			r.done = true
			return 0, io.EOF
		default:
			r.done = true
			return 0, sig.err
		}
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}
