package body

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Feature: streaming response body pipeline, Property 1: emission order
// never departs from arrival order regardless of how demand is doled
// out across the run.
func TestProperty_EmissionPreservesArrivalOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("chunks arrive at the subscriber in the order they were produced", prop.ForAll(
		func(sizes []int, grants []int64) bool {
			_, collab := newFakeCollaborators()
			p := NewProducer(testOrigin(), "prop-order", collab, nil)

			sub := &fakeSubscriber{}
			p.OnSubscribed(sub)

			chunks := make([]Chunk, len(sizes))
			for i, sz := range sizes {
				c := newFakeChunk(sz)
				chunks[i] = c
				p.NewChunk(c)
			}
			for _, g := range grants {
				p.Request(g)
			}
			p.LastHTTPContent()
			p.Request(int64(len(sizes)))

			got, _, _ := sub.snapshot()
			if len(got) != len(chunks) {
				return false
			}
			for i := range got {
				if got[i] != chunks[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(6, gen.IntRange(1, 512)),
		gen.SliceOfN(3, gen.Int64Range(0, 4)),
	))

	properties.TestingRun(t)
}

// Feature: streaming response body pipeline, Property 2: byte and chunk
// conservation — nothing emitted was never received, and nothing
// received is silently dropped once fully drained.
func TestProperty_EmittedNeverExceedsReceived(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("emitted bytes and chunks never exceed received bytes and chunks", prop.ForAll(
		func(sizes []int, grant int64) bool {
			_, collab := newFakeCollaborators()
			p := NewProducer(testOrigin(), "prop-conserve", collab, nil)

			sub := &fakeSubscriber{}
			p.OnSubscribed(sub)
			p.Request(grant)

			for _, sz := range sizes {
				p.NewChunk(newFakeChunk(sz))
				if p.EmittedBytes() > p.ReceivedBytes() {
					return false
				}
				if p.EmittedChunks() > p.ReceivedChunks() {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(8, gen.IntRange(1, 256)),
		gen.Int64Range(0, 10),
	))

	properties.TestingRun(t)
}

// Feature: streaming response body pipeline, Property 3: full drain on
// completion. Once every chunk has arrived, end-of-body has fired, and
// demand is granted without bound, every received byte is eventually
// emitted and the subscriber completes exactly once.
func TestProperty_UnboundedDemandFullyDrainsOnCompletion(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("unbounded demand after end-of-body drains everything exactly once", prop.ForAll(
		func(sizes []int) bool {
			_, collab := newFakeCollaborators()
			p := NewProducer(testOrigin(), "prop-drain", collab, nil)

			for _, sz := range sizes {
				p.NewChunk(newFakeChunk(sz))
			}
			p.LastHTTPContent()

			sub := &fakeSubscriber{}
			p.OnSubscribed(sub)
			p.Request(unboundedDemand)

			got, completed, err := sub.snapshot()
			if err != nil {
				return false
			}
			if !completed {
				return false
			}
			return len(got) == len(sizes) && p.CurrentState() == Completed
		},
		gen.SliceOfN(5, gen.IntRange(1, 128)),
	))

	properties.TestingRun(t)
}

// Feature: streaming response body pipeline, Property 4: released
// buffers are never released a second time, regardless of which
// termination path the run takes.
func TestProperty_EveryChunkReleasedAtMostOnce(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("no chunk is released more than once across buffering, draining or termination", prop.ForAll(
		func(sizes []int, abort bool) bool {
			_, collab := newFakeCollaborators()
			p := NewProducer(testOrigin(), "prop-release", collab, nil)

			chunks := make([]*fakeChunk, len(sizes))
			for i, sz := range sizes {
				c := newFakeChunk(sz)
				chunks[i] = c
				p.NewChunk(c)
			}

			if abort {
				p.ChannelException(assertErr)
			} else {
				p.LastHTTPContent()
				sub := &fakeSubscriber{}
				p.OnSubscribed(sub)
				p.Request(unboundedDemand)
			}

			for _, c := range chunks {
				if c.released > 1 {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(6, gen.IntRange(1, 64)),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// Feature: streaming response body pipeline, Property 5: demand never
// goes negative, even under a burst of small requests interleaved with
// arrivals.
func TestProperty_DemandNeverGoesNegative(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("recorded demand is never negative", prop.ForAll(
		func(grants []int64, chunkCount int) bool {
			_, collab := newFakeCollaborators()
			p := NewProducer(testOrigin(), "prop-demand", collab, nil)

			sub := &fakeSubscriber{}
			p.OnSubscribed(sub)

			for i, g := range grants {
				p.Request(g)
				if i < chunkCount {
					p.NewChunk(newFakeChunk(1))
				}
				if p.demand.load() < 0 {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(10, gen.Int64Range(0, 3)),
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}

var assertErr = &ConsumerDisconnectedError{Message: "synthetic", StateAtDisconnect: Buffering}
