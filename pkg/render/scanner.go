package render

import "regexp"

const (
	urlPrefix = `(?i)(?:(?:(?:(?:https?://)|(?:ftp://)|(?:www\.))|(?:ftp\.))[a-z0-9.-]+(?:\.[a-z]+)?(?::[0-9]+)?` +
		`(?:/(?:(?:[\w=?+/\[\]~%;,._@#'!\p{L}:-]|(?:\([^\)]*\)))*(?:[\p{L}:'\w=?+/~@%#-]|`
	urlSuffix = `|(?:\([^\)]*\))))?)?)` +
		`|(?:mailto: ?[a-z0-9+.]+@[a-z0-9.-]+.[a-z]+)|(?:news:(?:[\w+]\.?)+)`

	// Inside already escaped text a raw & can only be the start of &amp;.
	escapedAmp   = `(?:&amp;[\w:$_.+!*'#%(),@\p{L}=;/-]*)+`
	unescapedAmp = `(?:&[\w:$_.+!*'#%(),@\p{L}=;/-]+)+`
)

var (
	urlRE          = regexp.MustCompile(urlPrefix + escapedAmp + urlSuffix)
	urlREUnescaped = regexp.MustCompile(urlPrefix + unescapedAmp + urlSuffix)
)

// URLMatch is a half-open byte span of a token that looks like a URL.
type URLMatch struct {
	Start int
	End   int
	Raw   string
}

func patternFor(d Dialect) *regexp.Regexp {
	if d == LightMarkup {
		return urlREUnescaped
	}
	return urlRE
}

// ScanURLs returns every URL-like span of token in order. HTML dialect input
// is expected to be escaped already.
func ScanURLs(token string, d Dialect) []URLMatch {
	locs := patternFor(d).FindAllStringIndex(token, -1)
	if len(locs) == 0 {
		return nil
	}

	matches := make([]URLMatch, 0, len(locs))
	for _, loc := range locs {
		matches = append(matches, URLMatch{Start: loc[0], End: loc[1], Raw: token[loc[0]:loc[1]]})
	}
	return matches
}
