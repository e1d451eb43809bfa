package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/templatemart/api/internal/platform/requestctx"
)

const cloudTraceHeader = "X-Cloud-Trace-Context"

var tracer = otel.Tracer("github.com/templatemart/api/internal/platform/observability")

// TraceMiddleware continues the Cloud Trace context from X-Cloud-Trace-Context,
// starts a server span and records trace metadata on the request context.
func TraceMiddleware(projectID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if remote, ok := parseCloudTraceContext(r.Header.Get(cloudTraceHeader)); ok {
				ctx = trace.ContextWithRemoteSpanContext(ctx, remote)
			}

			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(requestAttributes(r)...),
			)
			defer span.End()

			sc := span.SpanContext()
			info := requestctx.TraceInfo{
				TraceID:   sc.TraceID().String(),
				SpanID:    sc.SpanID().String(),
				Sampled:   sc.IsSampled(),
				ProjectID: projectID,
			}
			if sc.IsValid() {
				w.Header().Set(cloudTraceHeader, formatCloudTraceHeader(info))
			}

			next.ServeHTTP(w, r.WithContext(requestctx.WithTrace(ctx, info)))
		})
	}
}

// parseCloudTraceContext reads "TRACE_ID/SPAN_ID;o=OPTIONS" where SPAN_ID is decimal.
func parseCloudTraceContext(header string) (trace.SpanContext, bool) {
	header = strings.TrimSpace(header)
	traceHex, rest, found := strings.Cut(header, "/")
	if !found || len(traceHex) != 32 {
		return trace.SpanContext{}, false
	}
	traceID, err := trace.TraceIDFromHex(traceHex)
	if err != nil {
		return trace.SpanContext{}, false
	}

	spanPart, options, _ := strings.Cut(rest, ";")
	spanID, ok := parseSpanID(spanPart)
	if !ok {
		return trace.SpanContext{}, false
	}

	var flags trace.TraceFlags
	if strings.TrimSpace(options) == "o=1" {
		flags = trace.FlagsSampled
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: flags,
		Remote:     true,
	}), true
}

func parseSpanID(value string) (trace.SpanID, bool) {
	value = strings.TrimSpace(value)
	if n, err := strconv.ParseUint(value, 10, 64); err == nil && n != 0 {
		var id trace.SpanID
		for i := 7; i >= 0; i-- {
			id[i] = byte(n)
			n >>= 8
		}
		return id, true
	}
	if len(value) == 16 {
		if id, err := trace.SpanIDFromHex(value); err == nil {
			return id, true
		}
	}
	return trace.SpanID{}, false
}

func formatCloudTraceHeader(info requestctx.TraceInfo) string {
	option := 0
	if info.Sampled {
		option = 1
	}
	return fmt.Sprintf("%s/%s;o=%d", info.TraceID, info.SpanID, option)
}

func requestAttributes(r *http.Request) []attribute.KeyValue {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", r.Method),
		attribute.String("url.scheme", scheme),
		attribute.String("url.path", r.URL.Path),
	}
	if r.Host != "" {
		attrs = append(attrs, attribute.String("server.address", r.Host))
	}
	if ua := r.UserAgent(); ua != "" {
		attrs = append(attrs, attribute.String("user_agent.original", Sanitize(ua, 256)))
	}
	return attrs
}
