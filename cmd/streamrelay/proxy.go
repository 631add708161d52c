package main

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kavodo/streamrelay/body"
	"github.com/kavodo/streamrelay/buffer"
	"github.com/kavodo/streamrelay/config"
	"github.com/kavodo/streamrelay/internal/ctxkeys"
	"github.com/kavodo/streamrelay/internal/metrics"
	"github.com/kavodo/streamrelay/internal/pool"
	"github.com/kavodo/streamrelay/subscriber"
	"github.com/kavodo/streamrelay/transport"
)

// hopByHopHeaders lists headers that describe a single hop and must not
// be forwarded verbatim to (or copied back from) the origin, per RFC 7230 §6.1.
var hopByHopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

// ProxyHandler forwards every request to a single upstream origin and
// streams the response body back through the flow-controlled body
// pipeline instead of buffering it.
type ProxyHandler struct {
	cfg    config.OriginConfig
	pcfg   config.PipelineConfig
	client *http.Client

	pool      *pool.GoroutinePool
	limiter   *rate.Limiter
	bufPool   *buffer.Pool
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewProxyHandler builds a ProxyHandler dialing origin per cfg. workers
// bounds the number of concurrent origin round trips in flight. The
// pump's read buffers are drawn from a buffer.Pool sized by
// pcfg.BufferPoolCapacity, so an operator-configured pool capacity
// actually reaches the transport instead of the package default.
func NewProxyHandler(cfg config.OriginConfig, pcfg config.PipelineConfig, client *http.Client, workers *pool.GoroutinePool, collector *metrics.Collector, logger *zap.Logger) *ProxyHandler {
	var limiter *rate.Limiter
	if pcfg.ReadRateLimitBytesPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(pcfg.ReadRateLimitBytesPerSec), pcfg.ReadChunkSize)
	}
	return &ProxyHandler{
		cfg:       cfg,
		pcfg:      pcfg,
		client:    client,
		pool:      workers,
		limiter:   limiter,
		bufPool:   buffer.NewPool(pcfg.BufferPoolCapacity),
		collector: collector,
		logger:    logger.With(zap.String("component", "proxy_handler")),
	}
}

// ServeHTTP implements http.Handler. Each request is bounded by the
// worker pool to cap the number of connections open against origin at
// once; once a slot is granted, the origin's response headers arrive
// synchronously but its body streams through the pipeline directly to w.
func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	connID := RequestIDFromContext(r.Context())
	if connID == "" {
		connID = uuid.NewString()
	}
	ctx := ctxkeys.WithConnectionID(r.Context(), connID)
	ctx = ctxkeys.WithOriginID(ctx, h.cfg.Address)

	err := h.pool.SubmitWait(ctx, func(ctx context.Context) error {
		h.forward(ctx, w, r, connID)
		return nil
	})
	if err != nil {
		h.logger.Warn("proxy request rejected", zap.Error(err), zap.String("connection_id", connID))
		http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
	}
}

// forward performs the origin round trip and, on success, wires the
// pipeline to stream the origin body back through w.
func (h *ProxyHandler) forward(ctx context.Context, w http.ResponseWriter, r *http.Request, connID string) {
	outbound, err := h.buildOutboundRequest(ctx, r)
	if err != nil {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	resp, err := h.client.Do(outbound)
	if err != nil {
		h.logger.Warn("origin request failed", zap.Error(err), zap.String("connection_id", connID))
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	copyResponseHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)

	origin := body.Origin{ID: connID, Host: h.cfg.Address}
	logger := h.logger.With(zap.String("connection_id", connID))

	pump := transport.NewPump(origin, resp.Body, h.limiter, logger)
	pump.SetReadSize(h.pcfg.ReadChunkSize)
	pump.SetTearDownGrace(h.pcfg.TearDownGrace)
	pump.SetBufferPool(h.bufPool)
	pump.SetPermitChannelCapacity(h.pcfg.PermitChannelCapacity)
	pump.SetReceiveObserver(func(n int) { h.collector.RecordChunkReceived(origin.String(), n) })

	producer := body.NewProducer(origin, connID, pump.Collaborators(), logger)
	pump.Attach(producer)

	reader := subscriber.NewReader()
	reader.Start(producer)

	go pump.Run(ctx)

	h.stream(w, reader, origin)

	h.collector.SetQueueDepth(origin.String(), producer.MaxQueueDepthChunks())
	h.collector.RecordTermination(origin.String(), terminationOutcome(producer.CurrentState()))
}

// terminationOutcome maps a producer's final state to a coarse outcome
// label for the termination counter.
func terminationOutcome(state body.State) string {
	if state == body.Completed {
		return "completed"
	}
	return "terminated"
}

// stream copies the pipeline's output to w one Read at a time, flushing
// after each write so a slow origin produces visible progress instead of
// buffering behind Go's default response buffering.
func (h *ProxyHandler) stream(w http.ResponseWriter, reader *subscriber.Reader, origin body.Origin) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, h.pcfg.ReadChunkSize)

	for {
		n, err := reader.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return
			}
			h.collector.RecordChunkEmitted(origin.String(), n)
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if err != io.EOF {
				h.logger.Debug("stream ended with error", zap.Error(err), zap.String("origin", origin.String()))
			}
			return
		}
	}
}

// buildOutboundRequest clones r into a request addressed at origin,
// stripping hop-by-hop headers.
func (h *ProxyHandler) buildOutboundRequest(ctx context.Context, r *http.Request) (*http.Request, error) {
	target := *r.URL
	target.Scheme = h.cfg.Scheme
	target.Host = h.cfg.Address

	outbound, err := http.NewRequestWithContext(ctx, r.Method, target.String(), r.Body)
	if err != nil {
		return nil, err
	}
	outbound.Header = r.Header.Clone()
	for _, header := range hopByHopHeaders {
		outbound.Header.Del(header)
	}
	outbound.Host = h.cfg.Address
	outbound.ContentLength = r.ContentLength
	return outbound, nil
}

// copyResponseHeaders copies every header from src to dst except
// hop-by-hop headers.
func copyResponseHeaders(dst, src http.Header) {
	skip := make(map[string]struct{}, len(hopByHopHeaders))
	for _, h := range hopByHopHeaders {
		skip[strings.ToLower(h)] = struct{}{}
	}
	for k, values := range src {
		if _, ok := skip[strings.ToLower(k)]; ok {
			continue
		}
		for _, v := range values {
			dst.Add(k, v)
		}
	}
}
