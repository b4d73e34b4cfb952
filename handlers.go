package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/imeyer/tdformat/middleware"
	"github.com/imeyer/tdformat/pkg/discuss"
	"github.com/imeyer/tdformat/pkg/render"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type errorResponse struct {
	Error  string           `json:"error"`
	Fields ValidationErrors `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func (s *FormatService) renderError(w http.ResponseWriter, statusCode int) {
	writeJSON(w, statusCode, errorResponse{Error: http.StatusText(statusCode)})
}

// Preview renders a submitted text the way it would appear once posted.
func (s *FormatService) Preview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	if err := r.ParseForm(); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			previewRejected.WithLabelValues("too_large").Inc()
			s.renderError(w, http.StatusRequestEntityTooLarge)
			return
		}
		logger.DebugContext(ctx, "bad preview form", slog.String("error", err.Error()))
		previewRejected.WithLabelValues("malformed").Inc()
		s.renderError(w, http.StatusBadRequest)
		return
	}

	form, verrs := ValidatePreviewForm(r.PostForm, s.config.MaxPreviewLength)
	if len(verrs) > 0 {
		previewRejected.WithLabelValues("invalid").Inc()
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verrs.Error(), Fields: verrs})
		return
	}

	cfg := render.Config{
		Dialect:             form.Dialect,
		Secure:              s.config.Secure,
		URLHighlight:        !form.NoLinks,
		MaxURLDisplayLength: render.DefaultMaxURLDisplayLength,
		Quoting:             form.Quoting,
		Breaks:              form.Breaks,
	}

	start := time.Now()
	out := s.preparer.Preview(ctx, form.Body, cfg)
	runes := utf8.RuneCountInString(form.Body)

	attrs := metric.WithAttributes(attribute.String("dialect", form.Dialect.String()))
	s.telemetry.Metrics.RenderDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	s.telemetry.Metrics.RenderedRunes.Add(ctx, int64(runes), attrs)
	previewLength.Observe(float64(runes))

	if form.Dialect == render.LightMarkup {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	w.Write([]byte(out))
}

// Comments returns the requested comments with their display HTML, ordered
// by id. Unknown ids are skipped.
func (s *FormatService) Comments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)
	query := r.URL.Query()

	ids, verrs := ValidateCommentIDs(query["id"])
	if len(verrs) > 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verrs.Error(), Fields: verrs})
		return
	}

	v := NewValidator()
	noLinks, _ := v.ValidateBool("no_links", query.Get("no_links"))
	if v.HasErrors() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: v.Errors().Error(), Fields: v.Errors()})
		return
	}

	comments, err := s.store.Comments(ctx, ids)
	if err != nil {
		logger.ErrorContext(ctx, "failed to load comments", slog.String("error", err.Error()))
		s.renderError(w, http.StatusInternalServerError)
		return
	}
	if len(comments) == 0 {
		s.renderError(w, http.StatusNotFound)
		return
	}

	prepared, err := s.preparer.PrepareComments(ctx, comments, discuss.PrepareOptions{
		Secure:  s.config.Secure,
		NoLinks: noLinks,
	})
	if err != nil {
		if errors.Is(err, discuss.ErrTextNotFound) {
			logger.WarnContext(ctx, "comment without text", slog.String("error", err.Error()))
			s.renderError(w, http.StatusNotFound)
			return
		}
		logger.ErrorContext(ctx, "failed to prepare comments", slog.String("error", err.Error()))
		s.renderError(w, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, prepared)
}

// HealthCheck reports whether the message store is reachable
func (s *FormatService) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "health check failed", slog.String("error", err.Error()))
		s.renderError(w, http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
		"git_sha": s.gitSha,
	})
}
