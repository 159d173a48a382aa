package matcher

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/eliteGoblin/focusd/focusguard/internal/domain"
)

// MatchKind says which allow rule matched.
type MatchKind string

const (
	MatchPrefix         MatchKind = "prefix"
	MatchVideoID        MatchKind = "video_id"
	MatchPlaylistID     MatchKind = "playlist_id"
	MatchShortLink      MatchKind = "short_link"
	MatchHost           MatchKind = "host"
	MatchBarePlaylist   MatchKind = "bare_playlist"
	MatchPathVideoID    MatchKind = "path_video_id"
	MatchPathPlaylistID MatchKind = "path_playlist_id"
)

// AllowMatch describes the first allow entry that matched.
type AllowMatch struct {
	Kind  MatchKind
	Entry string
	Index int
}

var (
	schemePattern       = regexp.MustCompile(`(?i)^https?://`)
	barePlaylistPattern = regexp.MustCompile(`^(RD|PL|LL|OL)[A-Za-z0-9_-]+$`)
)

// IsAllowedURL reports whether rawURL matches any allow entry, using FailOpen.
func IsAllowedURL(rawURL string, allow []domain.AllowEntry) bool {
	return defaultMatcher.IsAllowedURL(rawURL, allow)
}

// IsAllowedURL reports whether rawURL matches any allow entry.
func (m Matcher) IsAllowedURL(rawURL string, allow []domain.AllowEntry) bool {
	_, ok := m.MatchAllowed(rawURL, allow)
	return ok
}

// MatchAllowed scans allow in order and returns the first match.
// An unparseable candidate never matches. An entry that cannot be evaluated is skipped.
func (m Matcher) MatchAllowed(rawURL string, allow []domain.AllowEntry) (AllowMatch, bool) {
	if len(allow) == 0 {
		return AllowMatch{}, false
	}
	u, ok := parseURL(rawURL)
	if !ok {
		return AllowMatch{}, false
	}
	candidate := candidateURL{raw: rawURL, host: hostOf(u), query: u.Query()}

	for i, entry := range allow {
		e := strings.TrimSpace(entry.Raw())
		if e == "" {
			continue
		}
		var kind MatchKind
		var matched bool
		if schemePattern.MatchString(e) {
			kind, matched = candidate.matchURLEntry(e)
		} else {
			kind, matched = candidate.matchBareEntry(e)
		}
		if matched {
			return AllowMatch{Kind: kind, Entry: e, Index: i}, true
		}
	}
	return AllowMatch{}, false
}

type candidateURL struct {
	raw   string
	host  string
	query url.Values
}

// matchURLEntry handles entries written as full http(s) URLs.
func (c candidateURL) matchURLEntry(e string) (MatchKind, bool) {
	if strings.HasPrefix(c.raw, e) {
		return MatchPrefix, true
	}
	eu, ok := parseURL(e)
	if !ok {
		return "", false
	}
	entryHost := hostOf(eu)
	entryQuery := eu.Query()

	if ev := entryQuery.Get("v"); ev != "" && c.host == entryHost {
		if uv := c.query.Get("v"); uv != "" && uv == ev {
			return MatchVideoID, true
		}
	}
	if elist := entryQuery.Get("list"); elist != "" && c.host == entryHost {
		if ulist := c.query.Get("list"); ulist != "" && ulist == elist {
			return MatchPlaylistID, true
		}
	}
	if strings.EqualFold(eu.Hostname(), "youtu.be") {
		shortID := strings.TrimPrefix(eu.Path, "/")
		uv := c.query.Get("v")
		if shortID != "" && uv != "" && uv == shortID && isYouTubeHost(c.host) {
			return MatchShortLink, true
		}
	}
	return "", false
}

// matchBareEntry handles host, bare playlist id and scheme-less youtube entries.
func (c candidateURL) matchBareEntry(e string) (MatchKind, bool) {
	eh := stripWWW(e)
	if hostMatches(c.host, strings.ToLower(eh)) {
		return MatchHost, true
	}

	if barePlaylistPattern.MatchString(eh) && isYouTubeHost(c.host) {
		if ulist := c.query.Get("list"); ulist != "" && ulist == eh {
			return MatchBarePlaylist, true
		}
	}

	if strings.Contains(strings.ToLower(e), "youtube.com") && isYouTubeHost(c.host) {
		sp := parseEntryQuery(e)
		if ev, uv := sp.Get("v"), c.query.Get("v"); ev != "" && uv != "" && ev == uv {
			return MatchPathVideoID, true
		}
		if elist, ulist := sp.Get("list"), c.query.Get("list"); elist != "" && ulist != "" && elist == ulist {
			return MatchPathPlaylistID, true
		}
	}
	return "", false
}

// parseEntryQuery reads the segment between the first and second '?'.
func parseEntryQuery(e string) url.Values {
	parts := strings.Split(e, "?")
	if len(parts) < 2 {
		return url.Values{}
	}
	// ParseQuery keeps well-formed pairs even when it reports an error.
	sp, _ := url.ParseQuery(parts[1])
	return sp
}
