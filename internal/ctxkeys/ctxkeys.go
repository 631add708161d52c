package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	traceIDKey    contextKey = "trace_id"
	connectionKey contextKey = "connection_id"
	originIDKey   contextKey = "origin_id"
)

// WithTraceID 设置 TraceID
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID 获取 TraceID
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(traceIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithConnectionID attaches the client connection's correlation id — the
// same value used as a body.Producer's log prefix.
func WithConnectionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, connectionKey, id)
}

// ConnectionID retrieves the connection correlation id.
func ConnectionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(connectionKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithOriginID attaches the identifier of the origin a request was
// proxied to.
func WithOriginID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, originIDKey, id)
}

// OriginID retrieves the origin identifier.
func OriginID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(originIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
