package render

import "errors"

var (
	// ErrMalformedURL is returned when a URL-shaped span does not parse.
	ErrMalformedURL = errors.New("malformed url")
	// ErrEncoding is returned when a link target cannot be percent-encoded.
	ErrEncoding = errors.New("url encoding failed")
)
