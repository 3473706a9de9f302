package rules

import "strings"

// minTagLength is the minimum length of a tag candidate.
const minTagLength = 3

// isTagChar returns true if c can be a part of a tag.
func isTagChar(c byte) (ok bool) {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '%'
}

// isPreventedTag returns true for candidates that appear in nearly every URL
// and are therefore useless as index keys.
func isPreventedTag(tag string) (ok bool) {
	switch tag {
	case "http", "https", "html", "jpg", "png":
		return true
	default:
		return false
	}
}

// RequestTags returns the tags of a lowercased URL: every maximal run of
// [a-z0-9%] at least three characters long, except the prevented ones, in
// order of appearance and without duplicates, followed by the empty tag.
func RequestTags(urlLower string) (tags []string) {
	start := -1
	for i := 0; i <= len(urlLower); i++ {
		if i < len(urlLower) && isTagChar(urlLower[i]) {
			if start == -1 {
				start = i
			}

			continue
		}

		if start != -1 && i-start >= minTagLength {
			tags = appendTag(tags, urlLower[start:i])
		}

		start = -1
	}

	return append(tags, "")
}

// appendTag appends tag to tags unless it is prevented or already present.
func appendTag(tags []string, tag string) (res []string) {
	if isPreventedTag(tag) {
		return tags
	}

	for _, t := range tags {
		if t == tag {
			return tags
		}
	}

	return append(tags, tag)
}

// BestTag returns the longest tag candidate of text, or an empty string if it
// has none.  Runs containing '*' are not candidates.
func BestTag(text string) (tag string) {
	return boundedTag(strings.ToLower(text), true, true)
}

// boundedTag returns the longest candidate of the lowercased text.  A run
// touching the start of text is only eligible if leftAnchored is true, and a
// run touching the end only if rightAnchored is true, since such runs may be a
// part of a longer token in a matching URL.
func boundedTag(text string, leftAnchored, rightAnchored bool) (tag string) {
	start := -1
	for i := 0; i <= len(text); i++ {
		if i < len(text) && (isTagChar(text[i]) || text[i] == '*') {
			if start == -1 {
				start = i
			}

			continue
		}

		if start == -1 {
			continue
		}

		candidate := text[start:i]
		switch {
		case
			len(candidate) <= len(tag),
			len(candidate) < minTagLength,
			start == 0 && !leftAnchored,
			i == len(text) && !rightAnchored,
			strings.Contains(candidate, "*"),
			isPreventedTag(candidate):
			// Not eligible.
		default:
			tag = candidate
		}

		start = -1
	}

	return tag
}

// filterTag returns the index key of a filter.  Host-like filters are keyed by
// their domain so that a container can find them by walking the request host.
func filterTag(kind MatchKind, pattern string) (tag string) {
	p := strings.ToLower(pattern)

	switch kind {
	case MatchRegex:
		return ""
	case MatchExactHost, MatchStartAndEnd:
		if isHostKey(p) {
			return p
		}

		return boundedTag(p, true, true)
	case MatchStartsWith:
		return boundedTag(p, true, false)
	case MatchEndsWith:
		return boundedTag(p, false, true)
	case MatchContains:
		return boundedTag(p, false, false)
	default:
		// MatchWildcard keeps its anchors and separators in the pattern, so
		// they bound the runs by themselves, except for the '||' and '|'
		// prefixes which are followed by a host or a scheme.
		return boundedTag(p, strings.HasPrefix(p, "|"), strings.HasSuffix(p, "|"))
	}
}

// isHostKey returns true if p can be used as a domain key: it must look like a
// hostname with at least one dot.
func isHostKey(p string) (ok bool) {
	if !strings.Contains(p, ".") {
		return false
	}

	for i := range len(p) {
		c := p[i]
		if !isTagChar(c) && c != '.' && c != '-' && c != '_' {
			return false
		}
	}

	return !strings.HasPrefix(p, ".") && !strings.HasSuffix(p, ".")
}
