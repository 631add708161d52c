// Package buffer implements the reference-counted byte buffers the
// transport reads into and the body producer queues as body.Chunk.
package buffer

import (
	"sync/atomic"

	"github.com/kavodo/streamrelay/internal/pool"
)

// DefaultCapacity is the byte slice size the pool allocates when no
// pooled slice is available. Chosen to hold one typical TLS record.
const DefaultCapacity = 16 * 1024

// Pool hands out capacity-sized byte buffers backed by a generic slice
// pool. Its capacity is fixed at construction, so an operator-configured
// buffer_pool_capacity actually sizes the slices Acquire hands out
// instead of every caller sharing one hardcoded pool.
type Pool struct {
	slices *pool.SlicePool[byte]
}

// NewPool builds a Pool whose recycled slices default to capacity bytes.
// A non-positive capacity falls back to DefaultCapacity.
func NewPool(capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pool{slices: pool.NewSlicePool[byte](capacity)}
}

// Acquire takes a buffer from the pool with room for at least n bytes
// and a single reference already held by the caller.
func (p *Pool) Acquire(n int) *Buffer {
	b := &Buffer{data: p.slices.Get(), pool: p.slices}
	if cap(b.data) < n {
		b.data = make([]byte, 0, n)
	}
	b.data = b.data[:0]
	b.refs.Store(1)
	return b
}

var defaultPool = NewPool(DefaultCapacity)

// Buffer is a reference-counted, pooled byte buffer. It satisfies
// body.Chunk. The transport Acquire()s one buffer per read, fills it,
// and hands it to the producer; every subsequent Retain extends its
// lifetime across an additional owner, and the buffer only returns to
// the pool once every owner has Released it.
type Buffer struct {
	data []byte
	refs atomic.Int32
	pool *pool.SlicePool[byte]
}

// Acquire takes a buffer from the package's default pool, with room for
// at least n bytes and a single reference already held by the caller.
// Call sites with an operator-configured buffer.Pool should call
// Acquire on that pool instead.
func Acquire(n int) *Buffer {
	return defaultPool.Acquire(n)
}

// Wrap adopts an already-filled slice as a single-reference buffer
// without pool involvement, useful for tests and for adapting data
// that arrived from a source that isn't pool-aware.
func Wrap(data []byte) *Buffer {
	b := &Buffer{data: data}
	b.refs.Store(1)
	return b
}

// Bytes exposes the filled portion of the buffer. The slice is only
// valid while the caller holds a reference.
func (b *Buffer) Bytes() []byte { return b.data }

// ReadableBytes reports how many bytes are currently readable. Part of
// body.Chunk.
func (b *Buffer) ReadableBytes() int { return len(b.data) }

// Write appends p to the buffer's filled region, growing the backing
// slice if its pooled capacity is exhausted.
func (b *Buffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

// Retain adds one reference, returning the same buffer for chaining.
// Callers that hand a buffer to more than one owner (for example: a
// tee to a metrics sampler alongside the subscriber) must Retain
// before doing so.
func (b *Buffer) Retain() *Buffer {
	b.refs.Add(1)
	return b
}

// Release drops one reference and returns true if this call dropped
// the last one, returning a pooled buffer to its pool. Releasing an already-fully-released buffer
// is a caller bug; it is reported by returning false rather than
// panicking, since a wrongly-duplicated Release in a termination path
// must not itself crash the pipeline it is trying to unwind.
func (b *Buffer) Release() bool {
	remaining := b.refs.Add(-1)
	if remaining != 0 {
		return false
	}
	if b.pool != nil {
		b.pool.Put(b.data)
	}
	b.data = nil
	return true
}

// RefCount reports the current reference count, for tests and metrics.
func (b *Buffer) RefCount() int32 { return b.refs.Load() }
