package main

import (
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/imeyer/tdformat/pkg/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator(t *testing.T) {
	t.Run("ValidateRequired", func(t *testing.T) {
		v := NewValidator()

		assert.False(t, v.ValidateRequired("field", ""))
		assert.False(t, v.ValidateRequired("field", "   "))
		assert.True(t, v.ValidateRequired("field", "value"))
		assert.True(t, v.HasErrors())
		assert.Len(t, v.Errors(), 2)
	})

	t.Run("ValidateMaxLength", func(t *testing.T) {
		v := NewValidator()

		assert.True(t, v.ValidateMaxLength("field", "hello", 10))
		assert.False(t, v.ValidateMaxLength("field", "hello world", 5))
		assert.True(t, v.ValidateMaxLength("field", "привет", 6)) // runes, not bytes
	})

	t.Run("ValidateUTF8", func(t *testing.T) {
		v := NewValidator()

		assert.True(t, v.ValidateUTF8("field", "ok"))
		assert.False(t, v.ValidateUTF8("field", "bad \xff"))
		assert.Equal(t, "field: must be valid UTF-8", v.Errors().Error())
	})

	t.Run("ValidateBool", func(t *testing.T) {
		tests := []struct {
			value  string
			want   bool
			wantOK bool
		}{
			{"", false, true},
			{"on", true, true},
			{"true", true, true},
			{"1", true, true},
			{"false", false, true},
			{"0", false, true},
			{"yes", false, false},
		}

		for _, tt := range tests {
			t.Run(strconv.Quote(tt.value), func(t *testing.T) {
				v := NewValidator()
				got, ok := v.ValidateBool("flag", tt.value)
				assert.Equal(t, tt.want, got)
				assert.Equal(t, tt.wantOK, ok)
				assert.Equal(t, !tt.wantOK, v.HasErrors())
			})
		}
	})

	t.Run("ValidateInteger", func(t *testing.T) {
		v := NewValidator()

		val, ok := v.ValidateInteger("num", "42", 0, 100)
		assert.True(t, ok)
		assert.Equal(t, int64(42), val)

		_, ok = v.ValidateInteger("num", "150", 0, 100)
		assert.False(t, ok)

		_, ok = v.ValidateInteger("num", "-5", 0, 100)
		assert.False(t, ok)

		_, ok = v.ValidateInteger("num", "12abc", 0, 100)
		assert.False(t, ok)

		assert.Len(t, v.Errors(), 3)
	})
}

func TestValidationErrors(t *testing.T) {
	errs := ValidationErrors{
		{Field: "body", Message: "is required"},
		{Field: "mode", Message: "must be one of lines, paragraphs, none"},
	}

	assert.Equal(t, "body: is required; mode: must be one of lines, paragraphs, none", errs.Error())
}

func TestValidatePreviewForm(t *testing.T) {
	tests := []struct {
		name      string
		form      url.Values
		maxLength int
		want      PreviewForm
		wantErrs  []string
	}{
		{
			name:      "defaults",
			form:      url.Values{"body": {"text"}},
			maxLength: 100,
			want:      PreviewForm{Body: "text", Dialect: render.HTML, Breaks: render.BreakLines, Quoting: true},
		},
		{
			name: "every option",
			form: url.Values{
				"body":     {"text"},
				"mode":     {"paragraphs"},
				"markup":   {"light"},
				"quoting":  {"false"},
				"no_links": {"on"},
			},
			maxLength: 100,
			want:      PreviewForm{Body: "text", Dialect: render.LightMarkup, Breaks: render.BreakParagraphs, NoLinks: true},
		},
		{
			name:      "no breaks",
			form:      url.Values{"body": {"text"}, "mode": {"none"}},
			maxLength: 100,
			want:      PreviewForm{Body: "text", Dialect: render.HTML, Breaks: render.BreakNone, Quoting: true},
		},
		{
			name:      "explicit empty quoting turns it off",
			form:      url.Values{"body": {"text"}, "quoting": {""}},
			maxLength: 100,
			want:      PreviewForm{Body: "text", Dialect: render.HTML, Breaks: render.BreakLines},
		},
		{
			name:      "body at limit",
			form:      url.Values{"body": {strings.Repeat("ж", 10)}},
			maxLength: 10,
			want:      PreviewForm{Body: strings.Repeat("ж", 10), Dialect: render.HTML, Breaks: render.BreakLines, Quoting: true},
		},
		{
			name:      "body over limit",
			form:      url.Values{"body": {strings.Repeat("ж", 11)}},
			maxLength: 10,
			wantErrs:  []string{"body"},
		},
		{
			name:      "invalid utf8",
			form:      url.Values{"body": {"\xfe\xff"}},
			maxLength: 10,
			wantErrs:  []string{"body"},
		},
		{
			name:      "bad options",
			form:      url.Values{"body": {"x"}, "mode": {"wrap"}, "markup": {"md"}, "quoting": {"maybe"}},
			maxLength: 10,
			wantErrs:  []string{"mode", "markup", "quoting"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, errs := ValidatePreviewForm(tt.form, tt.maxLength)

			if len(tt.wantErrs) > 0 {
				var fields []string
				for _, e := range errs {
					fields = append(fields, e.Field)
				}
				assert.Equal(t, tt.wantErrs, fields)
				return
			}

			require.Empty(t, errs)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateCommentIDs(t *testing.T) {
	tooMany := make([]string, MaxCommentsPerCall+1)
	for i := range tooMany {
		tooMany[i] = strconv.Itoa(i + 1)
	}

	tests := []struct {
		name    string
		values  []string
		want    []int64
		wantErr bool
	}{
		{"single", []string{"7"}, []int64{7}, false},
		{"several", []string{"3", " 1 ", "2"}, []int64{3, 1, 2}, false},
		{"none", nil, nil, true},
		{"negative", []string{"-1"}, nil, true},
		{"not a number", []string{"1", "x"}, nil, true},
		{"too many", tooMany, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, errs := ValidateCommentIDs(tt.values)
			if tt.wantErr {
				assert.NotEmpty(t, errs)
				return
			}
			assert.Empty(t, errs)
			assert.Equal(t, tt.want, got)
		})
	}
}
