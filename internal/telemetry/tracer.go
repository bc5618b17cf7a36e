package telemetry

import "fmt"

// Tracer is the opaque span-emission boundary spec.md §1 scopes out of the
// core ("Telemetry span/metric sinks ... treated as an opaque tracer
// interface; the core emits span boundaries and attributes"). Callers
// inject their own sink-backed implementation; this package only computes
// what to name the span and what attributes to attach.
type Tracer interface {
	StartSpan(name string, attrs map[string]string) Span
}

// Span is ended exactly once with the error (nil on success) observed
// during the command exchange it wraps.
type Span interface {
	End(err error)
}

type noopTracer struct{}

func (noopTracer) StartSpan(string, map[string]string) Span { return noopSpan{} }

type noopSpan struct{}

func (noopSpan) End(error) {}

// NoopTracer discards every span; it is the default when a caller
// supplies no Tracer (spec §5 "Telemetry and logging handlers are shared
// across connections and MUST be internally safe under concurrent
// invocation" — a no-op trivially satisfies that).
func NoopTracer() Tracer { return noopTracer{} }

// EmitSpan derives the span name (priority order per spec §4.12) and its
// attributes from sql and the connection's peer address, then starts it
// on tracer. Passing a nil tracer is equivalent to NoopTracer.
func EmitSpan(tracer Tracer, sql, host string, port int) Span {
	if tracer == nil {
		tracer = NoopTracer()
	}
	sanitized := Sanitize(sql)
	attrs := map[string]string{
		"db.system":     "mysql",
		"db.statement":  sanitized,
		"net.peer.name": host,
		"net.peer.port": fmt.Sprintf("%d", port),
		"correlation.id": fmt.Sprintf("%x", CorrelationID(sanitized)),
	}
	if op := OperationName(sql); op != "" {
		attrs["db.operation"] = op
	}
	if coll := CollectionName(sql); coll != "" {
		attrs["db.sql.table"] = coll
	}
	return tracer.StartSpan(SpanName(sql, host, port), attrs)
}
