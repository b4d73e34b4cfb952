package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Middleware represents a standard HTTP middleware
type Middleware func(http.Handler) http.Handler

// Chain combines multiple middlewares into a single middleware
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a new middleware chain. The first middleware is the
// outermost.
func NewChain(middlewares ...Middleware) *Chain {
	return &Chain{middlewares: append([]Middleware{}, middlewares...)}
}

// Then chains the middlewares and returns the final handler
func (c *Chain) Then(h http.Handler) http.Handler {
	if h == nil {
		h = http.NotFoundHandler()
	}

	for i := len(c.middlewares) - 1; i >= 0; i-- {
		h = c.middlewares[i](h)
	}
	return h
}

// ThenFunc chains the middlewares and returns the final handler function
func (c *Chain) ThenFunc(fn http.HandlerFunc) http.Handler {
	if fn == nil {
		return c.Then(nil)
	}
	return c.Then(fn)
}

// Append creates a new chain with additional middlewares
func (c *Chain) Append(middlewares ...Middleware) *Chain {
	newMiddlewares := make([]Middleware, 0, len(c.middlewares)+len(middlewares))
	newMiddlewares = append(newMiddlewares, c.middlewares...)
	newMiddlewares = append(newMiddlewares, middlewares...)
	return &Chain{middlewares: newMiddlewares}
}

type contextKey string

const (
	contextKeyRequest contextKey = "tdformat.request"
	contextKeyLogger  contextKey = "tdformat.logger"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestContext holds request-scoped data
type RequestContext struct {
	RequestID string
	TraceID   string
	StartTime time.Time
}

func newRequestContext(id string) *RequestContext {
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.New().String()
	}
	return &RequestContext{
		RequestID: id,
		StartTime: time.Now(),
	}
}

func getRequestContext(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(contextKeyRequest).(*RequestContext)
	return rc, ok
}

func getOrCreateRequestContext(ctx context.Context) *RequestContext {
	if rc, ok := getRequestContext(ctx); ok {
		return rc
	}
	return newRequestContext("")
}

// RequestID returns the id assigned by RequestContextMiddleware, or "".
func RequestID(ctx context.Context) string {
	rc, ok := getRequestContext(ctx)
	if !ok {
		return ""
	}
	return rc.RequestID
}

// RequestContextMiddleware assigns every request an id. A well-formed
// incoming X-Request-ID is kept so ids line up across proxies.
func RequestContextMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := newRequestContext(r.Header.Get(RequestIDHeader))
			w.Header().Set(RequestIDHeader, rc.RequestID)

			ctx := context.WithValue(r.Context(), contextKeyRequest, rc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// responseWriter records the status and size of a response
type responseWriter struct {
	http.ResponseWriter
	status      int
	written     int64
	wroteHeader bool
	mu          sync.Mutex
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		status:         http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if !rw.wroteHeader {
		rw.status = status
		rw.ResponseWriter.WriteHeader(status)
		rw.wroteHeader = true
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.mu.Lock()
	rw.written += int64(n)
	rw.mu.Unlock()
	return n, err
}

func (rw *responseWriter) Status() int {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.status
}

func (rw *responseWriter) BytesWritten() int64 {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.written
}
