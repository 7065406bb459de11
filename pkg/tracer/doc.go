// Package tracer provides distributed tracing for screensim on top of
// OpenTelemetry.
//
// Every ingest and query run opens a root span with one child span per
// pipeline stage (fetch, preprocess, upload, embed, index). The trace
// context is forwarded to the embedding service as W3C headers, and the
// logger picks up trace_id/span_id from the active span.
//
// Basic Usage:
//
//	t := tracer.NewClient(tracer.Config{
//		ServiceName:  "screensim",
//		AppEnv:       "production",
//		EnableExport: true,
//		Endpoint:     "http://otel-collector:4318/v1/traces",
//	}, log)
//
//	ctx, span := t.StartSpan(ctx, "query.embed")
//	defer span.End()
//
//	if err != nil {
//		t.RecordErrorOnSpan(span, err)
//	}
//
//	for k, v := range t.GetCarrier(ctx) {
//		req.Header.Set(k, v)
//	}
//
// All methods on Tracer are safe for concurrent use.
package tracer
