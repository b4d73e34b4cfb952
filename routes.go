package main

import (
	"net/http"

	"github.com/imeyer/tdformat/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all HTTP routes with their middleware chains
func SetupRoutes(svc *FormatService, limiter *RateLimiter) http.Handler {
	mux := http.NewServeMux()

	base := middleware.NewChain(
		middleware.RequestContextMiddleware(),
		middleware.LoggingMiddleware(svc.logger),
		middleware.TracingMiddleware(svc.telemetry.Tracer),
	)

	rendered := base.Append(middleware.SecurityHeadersMiddleware(nil))

	// Limit the form before it is parsed; each rune can be four bytes and
	// percent-encoding triples that.
	previewChain := rendered.Append(
		limiter.RateLimitMiddleware,
		middleware.RequestSizeLimitMiddleware(int64(svc.config.MaxPreviewLength)*12+4096),
	)

	mux.Handle("POST /preview", previewChain.ThenFunc(svc.Preview))
	mux.Handle("GET /comments", rendered.ThenFunc(svc.Comments))
	mux.Handle("GET /health", base.ThenFunc(svc.HealthCheck))
	mux.Handle("GET /metrics", promhttp.Handler())

	global := middleware.NewChain(
		middleware.RecoveryMiddleware(svc.logger),
	)

	return global.Then(HistogramHttpHandler(mux))
}
