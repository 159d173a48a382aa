// Package matcher decides whether a URL is allowed or blocked by the user's
// domain lists. Everything here is pure; no I/O and no logging.
package matcher

import (
	"net/url"
	"strings"
)

// ParseFailurePolicy controls how a candidate URL that cannot be parsed is treated.
type ParseFailurePolicy int

const (
	// FailOpen treats an unparseable URL as neither blocked nor allowed.
	FailOpen ParseFailurePolicy = iota
	// FailClosed treats an unparseable URL as blocked. Allow entries never match it.
	FailClosed
)

// DefaultParseFailurePolicy is used by the package-level functions.
const DefaultParseFailurePolicy = FailOpen

func (p ParseFailurePolicy) String() string {
	switch p {
	case FailOpen:
		return "fail-open"
	case FailClosed:
		return "fail-closed"
	default:
		return "unknown"
	}
}

// ParseParseFailurePolicy maps a config string to a policy.
func ParseParseFailurePolicy(s string) (ParseFailurePolicy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail-open", "open":
		return FailOpen, true
	case "fail-closed", "closed":
		return FailClosed, true
	default:
		return FailOpen, false
	}
}

// Matcher bundles the matching rules with an explicit parse-failure policy.
type Matcher struct {
	OnParseFailure ParseFailurePolicy
}

// New returns a Matcher with the given policy.
func New(policy ParseFailurePolicy) Matcher {
	return Matcher{OnParseFailure: policy}
}

var defaultMatcher = Matcher{OnParseFailure: DefaultParseFailurePolicy}

// parseURL accepts only absolute URLs, mirroring the browser URL parser.
func parseURL(raw string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" {
		return nil, false
	}
	return u, true
}

func stripWWW(host string) string {
	return strings.TrimPrefix(host, "www.")
}

func hostOf(u *url.URL) string {
	return stripWWW(strings.ToLower(u.Hostname()))
}

// NormalizeHost returns the lowercase hostname of rawURL without a leading "www.".
// ok is false when rawURL is not an absolute URL.
func NormalizeHost(rawURL string) (host string, ok bool) {
	u, ok := parseURL(rawURL)
	if !ok {
		return "", false
	}
	return hostOf(u), true
}

// hostMatches reports whether host equals domain or is a subdomain of it.
func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func isYouTubeHost(host string) bool {
	return strings.HasSuffix(host, "youtube.com")
}
