package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/imeyer/tdformat/pkg/discuss"
	"github.com/imeyer/tdformat/pkg/render"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"tailscale.com/ipn/ipnstate"
)

// MockStore is an in-memory discuss.Store whose calls can be overridden.
type MockStore struct {
	comments map[int64]discuss.Comment
	texts    map[int64]discuss.MessageText
	titles   map[int64]string

	CommentsFunc    func(ctx context.Context, ids []int64) ([]discuss.Comment, error)
	TopicTitlesFunc func(ctx context.Context, ids []int64) (map[int64]string, error)
	PingFunc        func(ctx context.Context) error
}

func NewMockStore() *MockStore {
	return &MockStore{
		comments: make(map[int64]discuss.Comment),
		texts:    make(map[int64]discuss.MessageText),
		titles:   make(map[int64]string),
	}
}

func (m *MockStore) AddTopic(id int64, title string) {
	m.titles[id] = title
}

func (m *MockStore) AddComment(c discuss.Comment, text string, markup discuss.Markup) {
	m.comments[c.ID] = c
	m.texts[c.ID] = discuss.MessageText{ID: c.ID, Text: text, Markup: markup}
}

func (m *MockStore) Comments(ctx context.Context, ids []int64) ([]discuss.Comment, error) {
	if m.CommentsFunc != nil {
		return m.CommentsFunc(ctx, ids)
	}

	var out []discuss.Comment
	for _, id := range ids {
		if c, ok := m.comments[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MockStore) MessageTexts(ctx context.Context, ids []int64) (map[int64]discuss.MessageText, error) {
	out := make(map[int64]discuss.MessageText)
	for _, id := range ids {
		if mt, ok := m.texts[id]; ok {
			out[id] = mt
		}
	}
	return out, nil
}

func (m *MockStore) TopicTitles(ctx context.Context, ids []int64) (map[int64]string, error) {
	if m.TopicTitlesFunc != nil {
		return m.TopicTitlesFunc(ctx, ids)
	}

	out := make(map[int64]string)
	for _, id := range ids {
		if title, ok := m.titles[id]; ok {
			out[id] = title
		}
	}
	return out, nil
}

func (m *MockStore) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

type MockTailscaleClient struct {
	states []string
	calls  int
	err    error
}

func (m *MockTailscaleClient) ExpandSNIName(ctx context.Context, name string) (string, bool) {
	return name + ".example.ts.net", true
}

func (m *MockTailscaleClient) Status(ctx context.Context) (*ipnstate.Status, error) {
	if m.err != nil {
		return nil, m.err
	}
	state := m.states[min(m.calls, len(m.states)-1)]
	m.calls++
	return &ipnstate.Status{BackendState: state}, nil
}

func (m *MockTailscaleClient) StatusWithoutPeers(ctx context.Context) (*ipnstate.Status, error) {
	return &ipnstate.Status{CertDomains: []string{"tdformat.example.ts.net"}}, nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestTelemetry returns instruments backed by noop providers so tests
// never touch the global prometheus registry.
func newTestTelemetry(t *testing.T) *TelemetryConfig {
	t.Helper()
	tc := &TelemetryConfig{
		Meter:  noop.NewMeterProvider().Meter("test"),
		Tracer: tracenoop.NewTracerProvider().Tracer("test"),
	}
	require.NoError(t, initializeMetrics(tc))
	return tc
}

func newTestConfig() *Config {
	return &Config{
		ServiceName:      "tdformat",
		Site:             "www.linux.org.ru",
		Language:         "en",
		PreviewRate:      100,
		PreviewBurst:     100,
		MaxPreviewLength: MaxBodyLength,
	}
}

func newTestService(t *testing.T, store discuss.Store, config *Config) *FormatService {
	t.Helper()
	logger := newTestLogger()

	site, err := render.ParseSite(config.Site, config.Secure)
	require.NoError(t, err)

	return NewFormatService(logger, render.New(site, render.WithLogger(logger)), store, newTestTelemetry(t), config, "test", "abc123")
}
