package ctxutil

import "context"

type traceKey struct{}

// Trace is the correlation pair every log line reports: the W3C trace id
// (empty when tracing is off) and the per-request id minted or echoed by
// the router middleware. Unlike RequestData it is never absent, only zero.
type Trace struct {
	TraceID   string
	RequestID string
}

func WithTrace(ctx context.Context, t Trace) context.Context {
	return context.WithValue(ctx, traceKey{}, t)
}

func TraceFrom(ctx context.Context) Trace {
	t, _ := ctx.Value(traceKey{}).(Trace)
	return t
}
