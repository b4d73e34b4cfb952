package render

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// Site describes the forum's own origin.
type Site struct {
	Host          string
	Port          string
	DefaultSecure bool
}

// ParseSite builds a Site from "host" or "host:port". Unicode host names are
// stored in their ASCII form.
func ParseSite(hostport string, defaultSecure bool) (Site, error) {
	host, port := hostport, ""
	if h, p, err := net.SplitHostPort(hostport); err == nil {
		host, port = h, p
	}

	ascii, err := normalizeHost(host)
	if err != nil {
		return Site{}, fmt.Errorf("invalid site host %q: %w", hostport, err)
	}
	if ascii == "" {
		return Site{}, fmt.Errorf("invalid site host %q: empty", hostport)
	}

	return Site{Host: ascii, Port: port, DefaultSecure: defaultSecure}, nil
}

func normalizeHost(host string) (string, error) {
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", err
	}
	return strings.ToLower(ascii), nil
}

func (s Site) hostport() string {
	if s.Port == "" {
		return s.Host
	}
	return net.JoinHostPort(s.Host, s.Port)
}

// sameOrigin reports whether host and port address this site. An empty site
// port accepts the default http and https ports.
func (s Site) sameOrigin(host, port string) bool {
	h, err := normalizeHost(host)
	if err != nil || h != s.Host {
		return false
	}

	if s.Port == "" {
		return port == "" || port == "80" || port == "443"
	}
	return port == s.Port
}

// MessageRef addresses a topic and, optionally, one of its comments.
type MessageRef struct {
	ID        int64
	CommentID int64
}

// JumpFormatter returns the canonical deep link for a message.
type JumpFormatter func(ref MessageRef, secure bool) string

// JumpURL is the default JumpFormatter for the site.
func (s Site) JumpURL(ref MessageRef, secure bool) string {
	scheme := "http"
	if secure {
		scheme = "https"
	}

	if ref.CommentID != 0 {
		return fmt.Sprintf("%s://%s/jump-message.jsp?msgid=%d&cid=%d", scheme, s.hostport(), ref.ID, ref.CommentID)
	}
	return fmt.Sprintf("%s://%s/view-message.jsp?msgid=%d", scheme, s.hostport(), ref.ID)
}

var (
	topicPathRE   = regexp.MustCompile(`^/[\w-]+/[\w-]+/(\d+)(?:/.*)?$`)
	msgidQueryRE  = regexp.MustCompile(`(?:^|&)msgid=(\d+)`)
	cidQueryRE    = regexp.MustCompile(`(?:^|&)cid=(\d+)`)
	commentFragRE = regexp.MustCompile(`^comment-(\d+)$`)
)

// messageRef extracts a message reference from the path, query and fragment
// of a same-origin URL.
func messageRef(path, query, fragment string) (MessageRef, bool) {
	var ref MessageRef

	switch path {
	case "/view-message.jsp", "/jump-message.jsp":
		m := msgidQueryRE.FindStringSubmatch(query)
		if m == nil {
			return ref, false
		}
		ref.ID = atoi(m[1])
	default:
		m := topicPathRE.FindStringSubmatch(path)
		if m == nil {
			return ref, false
		}
		ref.ID = atoi(m[1])
	}
	if ref.ID == 0 {
		return ref, false
	}

	if m := cidQueryRE.FindStringSubmatch(query); m != nil {
		ref.CommentID = atoi(m[1])
	} else if m := commentFragRE.FindStringSubmatch(fragment); m != nil {
		ref.CommentID = atoi(m[1])
	}

	return ref, true
}

func atoi(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
