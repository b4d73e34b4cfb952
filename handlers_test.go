package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/imeyer/tdformat/pkg/discuss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postForm(values url.Values) *http.Request {
	req := httptest.NewRequest("POST", "/preview", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestPreview(t *testing.T) {
	store := NewMockStore()
	store.AddTopic(42, "Kernel <panic>")
	svc := newTestService(t, store, newTestConfig())

	tests := []struct {
		name        string
		form        url.Values
		contentType string
		want        string
		contains    []string
	}{
		{
			name:        "defaults break lines",
			form:        url.Values{"body": {"a\nb"}},
			contentType: "text/html; charset=utf-8",
			want:        "a<br>\nb",
		},
		{
			name:        "quote is wrapped",
			form:        url.Values{"body": {"> q\nr"}},
			contentType: "text/html; charset=utf-8",
			want:        "<i>&gt; q</i><br>\nr",
		},
		{
			name:        "markup is escaped",
			form:        url.Values{"body": {"a <b>"}, "mode": {"none"}},
			contentType: "text/html; charset=utf-8",
			want:        "a &lt;b&gt;",
		},
		{
			name:        "paragraphs without quoting",
			form:        url.Values{"body": {"a\n\nb"}, "mode": {"paragraphs"}, "quoting": {"false"}},
			contentType: "text/html; charset=utf-8",
			want:        "a<p>b",
		},
		{
			name:        "light markup",
			form:        url.Values{"body": {"a\nb"}, "markup": {"light"}, "quoting": {"0"}},
			contentType: "text/plain; charset=utf-8",
			want:        "a[br]\nb",
		},
		{
			name:        "external link",
			form:        url.Values{"body": {"see http://example.com/x"}},
			contentType: "text/html; charset=utf-8",
			want:        `see <a href="http://example.com/x">http://example.com/x</a>`,
		},
		{
			name:        "links off",
			form:        url.Values{"body": {"see http://example.com/x"}, "no_links": {"on"}},
			contentType: "text/html; charset=utf-8",
			want:        "see http://example.com/x",
		},
		{
			name:        "message link carries topic title",
			form:        url.Values{"body": {"http://www.linux.org.ru/forum/general/42"}},
			contentType: "text/html; charset=utf-8",
			contains: []string{
				`href="http://www.linux.org.ru/view-message.jsp?msgid=42"`,
				`title="Kernel &lt;panic&gt;"`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			svc.Preview(rr, postForm(tt.form))

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, tt.contentType, rr.Header().Get("Content-Type"))
			if tt.want != "" {
				assert.Equal(t, tt.want, rr.Body.String())
			}
			for _, s := range tt.contains {
				assert.Contains(t, rr.Body.String(), s)
			}
		})
	}
}

func TestPreviewValidation(t *testing.T) {
	config := newTestConfig()
	config.MaxPreviewLength = 5
	svc := newTestService(t, NewMockStore(), config)

	tests := []struct {
		name   string
		form   url.Values
		fields []string
	}{
		{"missing body", url.Values{}, []string{"body"}},
		{"blank body", url.Values{"body": {"  \n"}}, []string{"body"}},
		{"too long", url.Values{"body": {"абвгде"}}, []string{"body"}},
		{"bad mode", url.Values{"body": {"a"}, "mode": {"wrap"}}, []string{"mode"}},
		{"bad markup", url.Values{"body": {"a"}, "markup": {"bbcode"}}, []string{"markup"}},
		{"several", url.Values{"mode": {"x"}, "no_links": {"maybe"}}, []string{"body", "mode", "no_links"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			svc.Preview(rr, postForm(tt.form))

			require.Equal(t, http.StatusBadRequest, rr.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			var fields []string
			for _, f := range resp.Fields {
				fields = append(fields, f.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestComments(t *testing.T) {
	store := NewMockStore()
	store.AddTopic(7, "Topic")
	store.AddComment(discuss.Comment{ID: 1, TopicID: 7, Author: "alice"}, "hi", discuss.MarkupPlain)
	store.AddComment(discuss.Comment{ID: 2, TopicID: 7, Author: "bob"}, "*em*", discuss.MarkupMarkdown)
	store.AddComment(discuss.Comment{ID: 3, TopicID: 7, Author: "eve"}, "http://example.com/", discuss.MarkupPlain)

	svc := newTestService(t, store, newTestConfig())

	t.Run("prepares each comment", func(t *testing.T) {
		rr := httptest.NewRecorder()
		svc.Comments(rr, httptest.NewRequest("GET", "/comments?id=1&id=2&id=99", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

		var got []discuss.PreparedComment
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		require.Len(t, got, 2)

		assert.Equal(t, int64(1), got[0].ID)
		assert.Equal(t, "alice", got[0].Author)
		assert.Equal(t, "<p>hi</p>", got[0].HTML)
		assert.Equal(t, int64(2), got[1].ID)
		assert.Equal(t, "<p><em>em</em></p>\n", got[1].HTML)
	})

	t.Run("no_links leaves urls as text", func(t *testing.T) {
		rr := httptest.NewRecorder()
		svc.Comments(rr, httptest.NewRequest("GET", "/comments?id=3&no_links=true", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		var got []discuss.PreparedComment
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "<p>http://example.com/</p>", got[0].HTML)
	})
}

func TestCommentsErrors(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		setup      func(*MockStore)
		wantStatus int
	}{
		{
			name:       "missing id",
			query:      "",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "non numeric id",
			query:      "id=abc",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "zero id",
			query:      "id=0",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad no_links",
			query:      "id=1&no_links=maybe",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown id",
			query:      "id=404",
			wantStatus: http.StatusNotFound,
		},
		{
			name:  "comment without text",
			query: "id=5",
			setup: func(m *MockStore) {
				m.comments[5] = discuss.Comment{ID: 5, TopicID: 1}
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:  "store failure",
			query: "id=1",
			setup: func(m *MockStore) {
				m.CommentsFunc = func(ctx context.Context, ids []int64) ([]discuss.Comment, error) {
					return nil, errors.New("connection refused")
				}
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMockStore()
			if tt.setup != nil {
				tt.setup(store)
			}
			svc := newTestService(t, store, newTestConfig())

			rr := httptest.NewRecorder()
			svc.Comments(rr, httptest.NewRequest("GET", "/comments?"+tt.query, nil))

			assert.Equal(t, tt.wantStatus, rr.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		svc := newTestService(t, NewMockStore(), newTestConfig())

		rr := httptest.NewRecorder()
		svc.HealthCheck(rr, httptest.NewRequest("GET", "/health", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":"ok","version":"test","git_sha":"abc123"}`, rr.Body.String())
	})

	t.Run("store down", func(t *testing.T) {
		store := NewMockStore()
		store.PingFunc = func(ctx context.Context) error { return errors.New("down") }
		svc := newTestService(t, store, newTestConfig())

		rr := httptest.NewRecorder()
		svc.HealthCheck(rr, httptest.NewRequest("GET", "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}
