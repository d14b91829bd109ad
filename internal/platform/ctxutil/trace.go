package ctxutil

import "context"

type traceDataKey struct{}

// TraceData identifies the request and, once known, the graph it operates on.
type TraceData struct {
	TraceID   string
	RequestID string
	GraphID   string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	val := ctx.Value(traceDataKey{})
	if td, ok := val.(*TraceData); ok {
		return td
	}
	return nil
}

// WithGraphID attaches graphID to a copy of the trace data already on ctx.
func WithGraphID(ctx context.Context, graphID string) context.Context {
	next := TraceData{}
	if cur := GetTraceData(ctx); cur != nil {
		next = *cur
	}
	next.GraphID = graphID
	return WithTraceData(ctx, &next)
}

// Fields returns the non-empty ids as key/value pairs for structured logs.
func (td *TraceData) Fields() []any {
	if td == nil {
		return nil
	}
	var out []any
	if td.TraceID != "" {
		out = append(out, "trace_id", td.TraceID)
	}
	if td.RequestID != "" {
		out = append(out, "request_id", td.RequestID)
	}
	if td.GraphID != "" {
		out = append(out, "graph_id", td.GraphID)
	}
	return out
}
