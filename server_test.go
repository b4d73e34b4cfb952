package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/imeyer/tdformat/middleware"
	"github.com/imeyer/tdformat/pkg/discuss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTailscaleReady(t *testing.T) {
	tests := []struct {
		name    string
		client  *MockTailscaleClient
		wantErr bool
	}{
		{"running", &MockTailscaleClient{states: []string{"Running"}}, false},
		{"stopped", &MockTailscaleClient{states: []string{"Stopped"}}, false},
		{"status error", &MockTailscaleClient{err: errors.New("no socket")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkTailscaleReady(context.Background(), tt.client, newTestLogger())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	t.Run("gives up when context is done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		client := &MockTailscaleClient{states: []string{"Starting"}}
		err := checkTailscaleReady(ctx, client, newTestLogger())
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, client.calls)
	})
}

func TestNewTsNetServer(t *testing.T) {
	config := &Config{DataDir: "/var/lib/tdformat", Hostname: "fmt"}

	s := NewTsNetServer(config)

	assert.Equal(t, filepath.Join("/var/lib/tdformat", "tsnet"), s.Dir)
	assert.Equal(t, "fmt", s.Hostname)
}

func newTestRoutes(t *testing.T, store discuss.Store, config *Config) http.Handler {
	t.Helper()
	svc := newTestService(t, store, config)
	limiter := NewRateLimiter(config.PreviewRate, config.PreviewBurst, svc.logger, svc.telemetry.Metrics.RateLimitedReqs)
	return SetupRoutes(svc, limiter)
}

func TestSetupRoutes(t *testing.T) {
	store := NewMockStore()
	store.AddComment(discuss.Comment{ID: 1, TopicID: 1, Author: "alice"}, "hi", discuss.MarkupPlain)
	handler := newTestRoutes(t, store, newTestConfig())

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
	}{
		{"preview", "POST", "/preview", "body=hello", http.StatusOK},
		{"preview wrong method", "GET", "/preview", "", http.StatusMethodNotAllowed},
		{"comments", "GET", "/comments?id=1", "", http.StatusOK},
		{"health", "GET", "/health", "", http.StatusOK},
		{"metrics", "GET", "/metrics", "", http.StatusOK},
		{"unknown", "GET", "/thread/1", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestSetupRoutesRequestID(t *testing.T) {
	handler := newTestRoutes(t, NewMockStore(), newTestConfig())

	t.Run("generated", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))
		assert.Len(t, rr.Header().Get(middleware.RequestIDHeader), 36)
	})

	t.Run("propagated", func(t *testing.T) {
		id := "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
		req := httptest.NewRequest("GET", "/health", nil)
		req.Header.Set(middleware.RequestIDHeader, id)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, id, rr.Header().Get(middleware.RequestIDHeader))
	})
}

func TestSetupRoutesMetrics(t *testing.T) {
	handler := newTestRoutes(t, NewMockStore(), newTestConfig())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "tdformat_preview_input_runes")
}

func TestSetupRoutesPreviewLimits(t *testing.T) {
	t.Run("rate limited", func(t *testing.T) {
		config := newTestConfig()
		config.PreviewRate = 0.001
		config.PreviewBurst = 1
		handler := newTestRoutes(t, NewMockStore(), config)

		codes := make([]int, 0, 2)
		for i := 0; i < 2; i++ {
			req := postForm(url.Values{"body": {"hello"}})
			req.RemoteAddr = "10.1.1.1:4000"
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			codes = append(codes, rr.Code)
		}

		assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
	})

	t.Run("body too large", func(t *testing.T) {
		config := newTestConfig()
		config.MaxPreviewLength = 10
		handler := newTestRoutes(t, NewMockStore(), config)

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, postForm(url.Values{"body": {strings.Repeat("x", 5000)}}))

		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	})

	t.Run("recovers from store panic", func(t *testing.T) {
		store := NewMockStore()
		store.PingFunc = func(ctx context.Context) error { panic("boom") }
		handler := newTestRoutes(t, store, newTestConfig())

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestSetupRoutesSecurityHeaders(t *testing.T) {
	handler := newTestRoutes(t, NewMockStore(), newTestConfig())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, postForm(url.Values{"body": {"<script>"}}))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "&lt;script&gt;", rr.Body.String())
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rr.Header().Get("Content-Security-Policy"), "default-src 'none'")

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))
	assert.Empty(t, rr.Header().Get("Content-Security-Policy"))
}
