package transport

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kavodo/streamrelay/body"
	"github.com/kavodo/streamrelay/buffer"
	"github.com/kavodo/streamrelay/internal/channel"
)

// ReadSize is the number of bytes requested from the origin body per
// underlying Read call.
const ReadSize = 32 * 1024

// TearDownGrace is how long a channel-inactive event that arrives after
// the whole body was received, but before it was delivered, waits
// before the producer actually tears down. This gives a client that has
// not yet subscribed, or has not yet drained the buffered body, one
// last chance to do so.
const TearDownGrace = 5 * time.Second

// Pump reads an origin response body and feeds it to a body.Producer
// one chunk at a time, blocking between reads until the producer's
// AskForMore collaborator signals that downstream has room again.
type Pump struct {
	origin   body.Origin
	upstream io.ReadCloser
	producer *body.Producer
	limiter  *rate.Limiter
	logger   *zap.Logger

	readSize      int
	tearDownGrace time.Duration

	permit    *channel.TunableChannel[struct{}]
	bufPool   *buffer.Pool
	onReceive func(n int)
}

// NewPump builds a Pump for the given origin body. Call Collaborators
// to obtain the body.Collaborators to construct the matching
// body.Producer with, then Attach that producer before starting Run —
// the producer and its pump are mutually referential by construction,
// so wiring happens in that fixed order.
//
// limiter may be nil to read as fast as the producer's demand allows.
func NewPump(origin body.Origin, upstream io.ReadCloser, limiter *rate.Limiter, logger *zap.Logger) *Pump {
	if logger == nil {
		logger = zap.NewNop()
	}

	permit := channel.NewTunableChannel[struct{}](channel.DefaultTunableConfig())
	permit.TrySend(struct{}{}) // first read needs no prior AskForMore

	return &Pump{
		origin:        origin,
		upstream:      upstream,
		limiter:       limiter,
		logger:        logger.With(zap.String("component", "transport_pump"), zap.String("origin", origin.String())),
		permit:        permit,
		readSize:      ReadSize,
		tearDownGrace: TearDownGrace,
	}
}

// Attach records the producer this pump feeds. Must be called before
// Run, and before the producer can possibly invoke any collaborator.
func (p *Pump) Attach(producer *body.Producer) { p.producer = producer }

// SetReceiveObserver registers a callback invoked with the byte count
// of every successful upstream Read, before the chunk reaches the
// producer. Intended for metrics; must be called before Run.
func (p *Pump) SetReceiveObserver(f func(n int)) { p.onReceive = f }

// SetReadSize overrides the per-Read buffer size. Must be called before Run.
func (p *Pump) SetReadSize(n int) {
	if n > 0 {
		p.readSize = n
	}
}

// SetTearDownGrace overrides the delay between a channel-inactive event
// and the producer's tear-down of undelivered content. Must be called
// before Run.
func (p *Pump) SetTearDownGrace(d time.Duration) {
	if d > 0 {
		p.tearDownGrace = d
	}
}

// SetBufferPool overrides the pool Run acquires read buffers from. Must
// be called before Run. Without it, Run falls back to the package's
// default buffer pool.
func (p *Pump) SetBufferPool(bp *buffer.Pool) {
	if bp != nil {
		p.bufPool = bp
	}
}

// SetPermitChannelCapacity overrides the initial size of the read-permit
// channel. Must be called before Run.
func (p *Pump) SetPermitChannelCapacity(n int) {
	if n <= 0 {
		return
	}
	cfg := channel.DefaultTunableConfig()
	cfg.InitialSize = n
	p.permit = channel.NewTunableChannel[struct{}](cfg)
	p.permit.TrySend(struct{}{}) // first read needs no prior AskForMore
}

// Collaborators returns the body.Collaborators wired to this pump's
// read-permission gate and upstream body lifecycle.
func (p *Pump) Collaborators() body.Collaborators {
	return body.Collaborators{
		AskForMore: func() { p.permit.TrySend(struct{}{}) },
		OnComplete: func() { _ = p.upstream.Close() },
		OnTerminate: func(cause error) {
			_ = p.upstream.Close()
			if cause != nil {
				p.logger.Debug("producer terminated", zap.Error(cause))
			}
		},
		DelayedTearDown: func() {
			time.AfterFunc(p.tearDownGrace, p.producer.TearDownResources)
		},
	}
}

// Run pumps chunks until the body is exhausted, the context is
// canceled, or a read fails. It must be called from its own goroutine;
// it returns once the producer has been driven to a terminal state.
func (p *Pump) Run(ctx context.Context) {
	tmp := make([]byte, p.readSize)

	for {
		select {
		case <-p.permit.Chan():
		case <-ctx.Done():
			p.producer.ChannelInactive(ctx.Err())
			return
		}

		if p.limiter != nil {
			if err := p.limiter.WaitN(ctx, p.readSize); err != nil {
				p.producer.ChannelInactive(err)
				return
			}
		}

		n, err := p.upstream.Read(tmp)
		if n > 0 {
			var buf *buffer.Buffer
			if p.bufPool != nil {
				buf = p.bufPool.Acquire(n)
			} else {
				buf = buffer.Acquire(n)
			}
			_, _ = buf.Write(tmp[:n])
			p.producer.NewChunk(buf)
			if p.onReceive != nil {
				p.onReceive(n)
			}
		}

		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			p.producer.LastHTTPContent()
			return
		}
		p.producer.ChannelException(err)
		return
	}
}
