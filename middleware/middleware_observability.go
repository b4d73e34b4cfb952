package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// LoggingMiddleware logs each request with its id and stores a request
// scoped logger in the context for handlers.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := getOrCreateRequestContext(r.Context())
			wrapped := newResponseWriter(w)

			requestLogger := logger.With(
				slog.String("request_id", rc.RequestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)

			ctx := context.WithValue(r.Context(), contextKeyLogger, requestLogger)

			requestLogger.DebugContext(ctx, "request_received",
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
			)

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			requestLogger.InfoContext(ctx, "request_completed",
				slog.Int("status", wrapped.Status()),
				slog.Duration("duration", time.Since(rc.StartTime)),
				slog.Int64("bytes", wrapped.BytesWritten()),
			)
		})
	}
}

// GetLogger returns the request logger, or slog.Default outside a request.
func GetLogger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextKeyLogger).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// TracingMiddleware starts a server span per request.
func TracingMiddleware(tracer trace.Tracer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(),
				fmt.Sprintf("%s %s", r.Method, r.URL.Path),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPMethodKey.String(r.Method),
					semconv.HTTPTargetKey.String(r.URL.Path),
				),
			)
			defer span.End()

			if rc, ok := getRequestContext(ctx); ok && span.SpanContext().IsValid() {
				rc.TraceID = span.SpanContext().TraceID().String()
			}

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			span.SetAttributes(semconv.HTTPStatusCodeKey.Int(wrapped.Status()))
			if wrapped.Status() >= 500 {
				span.SetStatus(codes.Error, http.StatusText(wrapped.Status()))
			}
		})
	}
}

// RecoveryMiddleware turns a handler panic into a 500.
func RecoveryMiddleware(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.ErrorContext(r.Context(), "panic recovered",
						slog.String("request_id", RequestID(r.Context())),
						slog.Any("panic", rec),
						slog.String("stack", string(debug.Stack())),
					)
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RequestSizeLimitMiddleware rejects bodies larger than maxSize bytes.
func RequestSizeLimitMiddleware(maxSize int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
				if r.ContentLength > maxSize {
					http.Error(w, fmt.Sprintf("Request body too large. Maximum size: %d bytes", maxSize),
						http.StatusRequestEntityTooLarge)
					return
				}
				r.Body = http.MaxBytesReader(w, r.Body, maxSize)
			}

			next.ServeHTTP(w, r)
		})
	}
}
