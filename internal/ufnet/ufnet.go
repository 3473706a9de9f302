// Package ufnet contains utilities for hostname extraction and validation.
package ufnet

import (
	"strings"

	"golang.org/x/net/idna"
)

// ExtractHostname quickly retrieves the hostname from the given URL.  The
// result is lowercased, stripped of userinfo, and IDNA-encoded when it contains
// non-ASCII characters.
//
// NOTE: ExtractHostname is an optimized, best-effort function.  The result is
// not guaranteed to be correct for non-hierarchical URLs.
func ExtractHostname(url string) (hostname string) {
	start := strings.Index(url, "//")
	if start == -1 {
		return ""
	}

	start += 2
	rest := url[start:]
	end := strings.IndexAny(rest, "/?#")
	if end != -1 {
		rest = rest[:end]
	}

	if at := strings.LastIndexByte(rest, '@'); at != -1 {
		rest = rest[at+1:]
	}

	if strings.HasPrefix(rest, "[") {
		// IPv6 literal.
		if closing := strings.IndexByte(rest, ']'); closing != -1 {
			return strings.ToLower(rest[1:closing])
		}

		return ""
	}

	if colon := strings.IndexByte(rest, ':'); colon != -1 {
		rest = rest[:colon]
	}

	return NormalizeHost(rest)
}

// NormalizeHost lowercases host, strips a trailing dot, and converts
// internationalized names to their ASCII form.  Invalid names are returned
// lowercased as is.
func NormalizeHost(host string) (normalized string) {
	host = strings.TrimSuffix(host, ".")
	if isASCII(host) {
		return strings.ToLower(host)
	}

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return strings.ToLower(host)
	}

	return ascii
}

// isASCII returns true if s contains only ASCII characters.
func isASCII(s string) (ok bool) {
	for i := range len(s) {
		if s[i] >= 0x80 {
			return false
		}
	}

	return true
}

// IsDomainName checks if name is a valid domain name: dot-separated labels of
// 1 to 63 letters, digits, hyphens, and underscores, no label starting or
// ending with a hyphen, at most 253 characters in total.
func IsDomainName(name string) (ok bool) {
	if name == "" || len(name) > 253 {
		return false
	}

	for label := range strings.SplitSeq(name, ".") {
		if !isDomainLabel(label) {
			return false
		}
	}

	return true
}

// isDomainLabel checks a single label of a domain name.
func isDomainLabel(label string) (ok bool) {
	l := len(label)
	if l == 0 || l > 63 || label[0] == '-' || label[l-1] == '-' {
		return false
	}

	for i := range l {
		c := label[i]
		switch {
		case
			c >= 'a' && c <= 'z',
			c >= 'A' && c <= 'Z',
			c >= '0' && c <= '9',
			c == '-', c == '_':
			// Go on.
		default:
			return false
		}
	}

	return true
}

// Subdomains returns host and every parent domain of it that still contains a
// dot, from the most specific to the least specific one.  For "a.b.c" it
// returns "a.b.c" and "b.c".
func Subdomains(host string) (domains []string) {
	for strings.Contains(host, ".") {
		domains = append(domains, host)
		host = host[strings.IndexByte(host, '.')+1:]
	}

	return domains
}
