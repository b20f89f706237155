package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of application spans.
const TracerName = "provider-search"

// DBOperation names the kind of statement a database span covers.
type DBOperation string

const (
	DBOperationQuery  DBOperation = "query"
	DBOperationInsert DBOperation = "insert" // also upserts
)

// Attribute keys recorded on search spans.
const (
	AttrQueryLength = attribute.Key("search.query_length")
	AttrMethod      = attribute.Key("search.method")
	AttrPersona     = attribute.Key("search.persona")
	AttrK           = attribute.Key("search.k")
	AttrAlpha       = attribute.Key("search.alpha")
	AttrCandidates  = attribute.Key("search.candidates")
	AttrResults     = attribute.Key("search.results")
)

// StartSpan starts an internal span. Call the returned func exactly once
// with the operation's error; a non-nil error marks the span failed.
//
//	ctx, end := tracing.StartSpan(ctx, "rerank")
//	defer func() { end(err) }()
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := otel.Tracer(TracerName).Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, ender(span)
}

// StartDBSpan starts a client span for a PostgreSQL statement named
// "<operation> <table>".
func StartDBSpan(ctx context.Context, table string, op DBOperation) (context.Context, func(error)) {
	name := string(op)
	attrs := []attribute.KeyValue{
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", string(op)),
	}
	if table != "" {
		name += " " + table
		attrs = append(attrs, attribute.String("db.sql.table", table))
	}
	ctx, span := otel.Tracer(TracerName+"/db").Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	return ctx, ender(span)
}

func ender(span trace.Span) func(error) {
	return func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// SetAttributes annotates the span active in ctx, if any.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
