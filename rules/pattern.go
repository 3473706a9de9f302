package rules

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// MatchKind is the match strategy of a [Filter].
type MatchKind uint8

// MatchKind values.
const (
	// MatchContains matches URLs containing the pattern.  /banner/
	MatchContains MatchKind = iota
	// MatchStartsWith matches the pattern at a host label boundary.
	// ||example.org/ads
	MatchStartsWith
	// MatchEndsWith matches the pattern followed by a separator.  /ads^
	MatchEndsWith
	// MatchStartAndEnd is both [MatchStartsWith] and [MatchEndsWith].
	// ||ads.example.org^
	MatchStartAndEnd
	// MatchExactHost matches the pattern host and its subdomains.
	// ads.example.org
	MatchExactHost
	// MatchWildcard interprets '*', '^', and the '|' anchors.  ||ads.*/b^
	MatchWildcard
	// MatchRegex is a regular expression.  /banner\d+/
	MatchRegex
)

// kindNames are used by [MatchKind.String].
var kindNames = [...]string{
	MatchContains:    "contains",
	MatchStartsWith:  "startswith",
	MatchEndsWith:    "endswith",
	MatchStartAndEnd: "startandend",
	MatchExactHost:   "exacthost",
	MatchWildcard:    "wildcard",
	MatchRegex:       "regex",
}

// String implements the [fmt.Stringer] interface for MatchKind.
func (k MatchKind) String() (s string) {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return "unknown"
}

// ParsePattern classifies the pattern part of a network rule and returns the
// text the strategy matches against.  bare is true if the rule line consists of
// the pattern only, without options or the exception mask.  Only bare
// hostnames, like the lines of a hosts file, match by host.
func ParsePattern(text string, bare bool) (kind MatchKind, pattern string) {
	if len(text) > 2 && text[0] == '/' && text[len(text)-1] == '/' && mayBeRegex(text) {
		return MatchRegex, text[1 : len(text)-1]
	}

	hostAnchor := strings.HasPrefix(text, "||")
	sepAnchor := strings.HasSuffix(text, "^")

	content := text
	if hostAnchor {
		content = content[2:]
	}

	if sepAnchor {
		content = content[:len(content)-1]
	}

	if strings.ContainsAny(content, "*^|") {
		return MatchWildcard, text
	}

	switch {
	case hostAnchor && sepAnchor:
		return MatchStartAndEnd, content
	case hostAnchor:
		return MatchStartsWith, content
	case sepAnchor:
		return MatchEndsWith, content
	case bare && isHostname(strings.ToLower(content)):
		return MatchExactHost, content
	default:
		return MatchContains, content
	}
}

// isHostname returns true if p looks like a hostname under an ICANN public
// suffix, so that "ads.example.org" is a host while "popunder.js" is not.
func isHostname(p string) (ok bool) {
	if !isHostKey(p) {
		return false
	}

	suffix, icann := publicsuffix.PublicSuffix(p)

	return icann && suffix != p
}

// mayBeRegex returns false if text only has characters that are never special
// in a regular expression, so "/ads/" is a literal path segment.
func mayBeRegex(text string) (ok bool) {
	for i := range len(text) {
		c := text[i]
		switch {
		case
			c >= 'a' && c <= 'z',
			c >= 'A' && c <= 'Z',
			c >= '0' && c <= '9',
			c == '%', c == '/', c == '_', c == '-':
			// Go on.
		default:
			return true
		}
	}

	return false
}

// isSeparator returns true if c matches the '^' placeholder.
func isSeparator(c byte) (ok bool) {
	switch {
	case
		c >= 0x80,
		c >= 'a' && c <= 'z',
		c >= 'A' && c <= 'Z',
		c >= '0' && c <= '9',
		c == '_', c == '-', c == '.', c == '%':
		return false
	default:
		return true
	}
}

// isSeparatorAt returns true if s has a separator at i or ends at i.
func isSeparatorAt(s string, i int) (ok bool) {
	return i >= len(s) || isSeparator(s[i])
}

// hostBounds returns the bounds of the host part of url, including userinfo
// and port.
func hostBounds(url string) (start, end int) {
	start = strings.Index(url, "//")
	if start == -1 {
		start = 0
	} else {
		start += 2
	}

	end = strings.IndexAny(url[start:], "/?#")
	if end == -1 {
		return start, len(url)
	}

	return start, start + end
}

// matchHostAnchored returns true if pattern occurs at the start of a label of
// the host of url.  If sep is true, the occurrence must also be followed by a
// separator or the end of url.
func matchHostAnchored(url, pattern string, sep bool) (ok bool) {
	start, end := hostBounds(url)
	for i := start; i < end; {
		j := strings.Index(url[i:], pattern)
		if j == -1 {
			return false
		}

		j += i
		if j >= end {
			return false
		}

		if (j == start || url[j-1] == '.') && (!sep || isSeparatorAt(url, j+len(pattern))) {
			return true
		}

		i = j + 1
	}

	return false
}

// matchEndsWith returns true if pattern occurs in url followed by a separator
// or the end of url.
func matchEndsWith(url, pattern string) (ok bool) {
	for i := 0; i <= len(url); {
		j := strings.Index(url[i:], pattern)
		if j == -1 {
			return false
		}

		j += i
		if isSeparatorAt(url, j+len(pattern)) {
			return true
		}

		i = j + 1
	}

	return false
}

// matchExactHost returns true if host is pattern or its subdomain.
func matchExactHost(host, pattern string) (ok bool) {
	if !strings.HasSuffix(host, pattern) {
		return false
	}

	i := len(host) - len(pattern)

	return i == 0 || host[i-1] == '.'
}

// matchWildcard interprets pattern with its anchors against url.
func matchWildcard(url, pattern string) (ok bool) {
	if rest, found := strings.CutSuffix(pattern, "|"); found && !strings.HasSuffix(rest, "|") {
		pattern = rest
	} else {
		pattern += "*"
	}

	if rest, found := strings.CutPrefix(pattern, "||"); found {
		start, end := hostBounds(url)
		for i := start; i < end; i++ {
			if (i == start || url[i-1] == '.') && globMatch(rest, url[i:]) {
				return true
			}
		}

		return false
	}

	if rest, found := strings.CutPrefix(pattern, "|"); found {
		return globMatch(rest, url)
	}

	return globMatch("*"+pattern, url)
}

// globMatch matches s against p where '*' is any run of characters and '^' is
// a separator or, at the end of s, nothing.  It never backtracks more than one
// star at a time, so it runs in O(len(p)*len(s)).
func globMatch(p, s string) (ok bool) {
	pi, si := 0, 0
	star, mark := -1, 0
	for si < len(s) {
		if pi < len(p) {
			c := p[pi]
			switch {
			case c == '*':
				star, mark = pi, si
				pi++

				continue
			case c == '^' && isSeparator(s[si]), c != '^' && c == s[si]:
				pi++
				si++

				continue
			}
		}

		if star == -1 {
			return false
		}

		pi = star + 1
		mark++
		si = mark
	}

	for pi < len(p) && (p[pi] == '*' || p[pi] == '^') {
		pi++
	}

	return pi == len(p)
}
