package observability

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/templatemart/api/internal/platform/auth"
	"github.com/templatemart/api/internal/platform/httpx"
	"github.com/templatemart/api/internal/platform/requestctx"
)

// InjectLoggerMiddleware stores logger on the request context.
func InjectLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestctx.WithLogger(r.Context(), logger)))
		})
	}
}

// RequestLoggerMiddleware logs request start and completion with fields understood by Cloud Logging.
func RequestLoggerMiddleware(projectID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			info, _ := requestctx.Trace(ctx)
			if info.ProjectID == "" {
				info.ProjectID = projectID
			}

			logger := requestctx.Logger(ctx).With(
				zap.String("request_id", middleware.GetReqID(ctx)),
				zap.String("method", Sanitize(r.Method, 10)),
				zap.String("path", Sanitize(r.URL.Path, 180)),
				zap.String("trace_id", info.TraceID),
			)
			if resource := traceResource(info); resource != "" {
				logger = logger.With(zap.String("logging.googleapis.com/trace", resource))
			}
			if ip := remoteIP(r); ip != "" {
				logger = logger.With(zap.String("remote_ip", ip))
			}

			ctx = requestctx.WithLogger(ctx, logger)
			r = r.WithContext(ctx)

			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			logger.Debug("request started")

			panicked := true
			defer func() {
				status := rec.Status()
				if panicked && status < http.StatusInternalServerError {
					status = http.StatusInternalServerError
				}
				route := routePattern(r)
				annotateSpan(trace.SpanFromContext(ctx), status, route)

				fields := []zap.Field{
					zap.String("route", route),
					zap.Int("status", status),
					zap.Duration("latency", time.Since(start)),
					zap.Int64("bytes", rec.bytes),
				}
				if uid := identityUID(r.Context()); uid != "" {
					fields = append(fields, zap.String("user_id", uid))
				}
				if sid := requestctx.SessionID(r.Context()); sid != "" {
					fields = append(fields, zap.String("session_id", Sanitize(sid, 64)))
				}

				switch {
				case status >= http.StatusInternalServerError:
					logger.Error("request completed", fields...)
				case status >= http.StatusBadRequest:
					logger.Warn("request completed", fields...)
				default:
					logger.Info("request completed", fields...)
				}
			}()

			next.ServeHTTP(rec, r)
			panicked = false
		})
	}
}

// RecoveryMiddleware turns panics into a JSON 500 and logs the stack.
func RecoveryMiddleware(fallback *zap.Logger) func(http.Handler) http.Handler {
	if fallback == nil {
		fallback = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				ctx := r.Context()
				logger := requestctx.Logger(ctx)
				if logger == requestctx.NoopLogger() {
					logger = fallback
				}
				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()),
				)
				httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func identityUID(ctx context.Context) string {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil {
		return ""
	}
	return Sanitize(identity.UID, 64)
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return Sanitize(pattern, 180)
		}
	}
	if r.URL != nil && r.URL.Path != "" {
		return Sanitize(r.URL.Path, 180)
	}
	return "/"
}

func remoteIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return Sanitize(addr, 64)
}

func traceResource(info requestctx.TraceInfo) string {
	if info.ProjectID == "" || info.TraceID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/traces/%s", info.ProjectID, info.TraceID)
}

func annotateSpan(span trace.Span, status int, route string) {
	if span == nil || !span.IsRecording() {
		return
	}
	span.SetAttributes(semconv.HTTPResponseStatusCode(status), semconv.HTTPRoute(route))
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
		return
	}
	span.SetStatus(codes.Ok, "")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += int64(n)
	return n, err
}

func (r *statusRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}
