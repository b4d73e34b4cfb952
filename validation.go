package main

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/imeyer/tdformat/pkg/render"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var messages []string
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// Validator collects validation errors for one form
type Validator struct {
	errors ValidationErrors
}

func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Message: message,
	})
}

// ValidateRequired validates that a field is not blank
func (v *Validator) ValidateRequired(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required")
		return false
	}
	return true
}

// ValidateMaxLength counts runes, not bytes
func (v *Validator) ValidateMaxLength(field, value string, maxLength int) bool {
	if utf8.RuneCountInString(value) > maxLength {
		v.AddError(field, fmt.Sprintf("must not exceed %d characters", maxLength))
		return false
	}
	return true
}

// ValidateUTF8 rejects byte sequences that are not valid UTF-8
func (v *Validator) ValidateUTF8(field, value string) bool {
	if !utf8.ValidString(value) {
		v.AddError(field, "must be valid UTF-8")
		return false
	}
	return true
}

// ValidateBool accepts the empty string as false and "on" as true, the way
// HTML checkboxes submit.
func (v *Validator) ValidateBool(field, value string) (bool, bool) {
	switch value {
	case "":
		return false, true
	case "on":
		return true, true
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		v.AddError(field, "must be a boolean")
		return false, false
	}
	return b, true
}

// ValidateInteger validates that a string is an integer within bounds
func (v *Validator) ValidateInteger(field, value string, min, max int64) (int64, bool) {
	num, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		v.AddError(field, "must be a valid number")
		return 0, false
	}

	if num < min {
		v.AddError(field, fmt.Sprintf("must be at least %d", min))
		return 0, false
	}

	if num > max {
		v.AddError(field, fmt.Sprintf("must not exceed %d", max))
		return 0, false
	}

	return num, true
}

// Form validation constants
const (
	MaxBodyLength      = 20000
	MaxCommentsPerCall = 100
)

// PreviewForm is a validated POST /preview submission.
type PreviewForm struct {
	Body    string
	Dialect render.Dialect
	Breaks  render.BreakMode
	Quoting bool
	NoLinks bool
}

// ValidatePreviewForm validates the preview form. Unset options default to
// HTML output with line breaks, quoting and links on.
func ValidatePreviewForm(form url.Values, maxLength int) (PreviewForm, ValidationErrors) {
	v := NewValidator()
	pf := PreviewForm{
		Body:    form.Get("body"),
		Dialect: render.HTML,
		Breaks:  render.BreakLines,
		Quoting: true,
	}

	if v.ValidateRequired("body", pf.Body) && v.ValidateUTF8("body", pf.Body) {
		v.ValidateMaxLength("body", pf.Body, maxLength)
	}

	switch form.Get("mode") {
	case "", "lines":
	case "paragraphs":
		pf.Breaks = render.BreakParagraphs
	case "none":
		pf.Breaks = render.BreakNone
	default:
		v.AddError("mode", "must be one of lines, paragraphs, none")
	}

	switch form.Get("markup") {
	case "", "html":
	case "light":
		pf.Dialect = render.LightMarkup
	default:
		v.AddError("markup", "must be html or light")
	}

	if form.Has("quoting") {
		if quoting, ok := v.ValidateBool("quoting", form.Get("quoting")); ok {
			pf.Quoting = quoting
		}
	}

	if noLinks, ok := v.ValidateBool("no_links", form.Get("no_links")); ok {
		pf.NoLinks = noLinks
	}

	return pf, v.Errors()
}

// ValidateCommentIDs parses the repeated id query parameter.
func ValidateCommentIDs(values []string) ([]int64, ValidationErrors) {
	v := NewValidator()

	if len(values) == 0 {
		v.AddError("id", "is required")
		return nil, v.Errors()
	}
	if len(values) > MaxCommentsPerCall {
		v.AddError("id", fmt.Sprintf("must not be repeated more than %d times", MaxCommentsPerCall))
		return nil, v.Errors()
	}

	ids := make([]int64, 0, len(values))
	for _, s := range values {
		if id, ok := v.ValidateInteger("id", s, 1, 1<<53); ok {
			ids = append(ids, id)
		}
	}

	return ids, v.Errors()
}
