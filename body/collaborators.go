package body

// Chunk is a reference-counted byte buffer as delivered by the
// transport. The producer takes ownership of a Chunk when it is
// enqueued and either transfers that ownership to the subscriber (on
// emission) or releases it itself (on termination or when spurious).
// Bytes must remain valid until Release is called.
type Chunk interface {
	Bytes() []byte
	ReadableBytes() int
	Release() bool
}

// Subscriber is the reactive downstream consumer. Once attached, it
// receives OnNext for every emitted chunk, followed by exactly one of
// OnComplete or OnError.
type Subscriber interface {
	OnNext(chunk Chunk)
	OnComplete()
	OnError(err error)
}

// Collaborators bundles the callbacks a Producer invokes on its host.
// AskForMore is idempotent and may be called more than once per
// enqueue; OnComplete and OnTerminate each fire at most once, mutually
// exclusively; DelayedTearDown fires at most once and is expected to
// schedule a DelayedTearDown event after a grace period.
type Collaborators struct {
	AskForMore      func()
	OnComplete      func()
	OnTerminate     func(cause error)
	DelayedTearDown func()
}
