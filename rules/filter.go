// Package rules contains the filter types and the request they match.
package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

// ErrTooWideRule is returned if the rule matches all URLs but has no domain,
// content type, or modify action to restrict it.
const ErrTooWideRule errors.Error = "the rule is too wide, add a domain, a content type, " +
	"or a more specific pattern"

// Party is the third-party scope of a filter.
type Party uint8

// Party values.
const (
	// PartyAny matches any request.
	PartyAny Party = iota
	// PartyFirst matches requests to the registrable domain of the page.
	// $1p
	PartyFirst
	// PartyThird matches requests to other registrable domains.  $3p
	PartyThird
	// PartyStrictFirst matches requests to the page host.  $strict1p
	PartyStrictFirst
	// PartyStrictThird matches requests to other hosts.  $strict3p
	PartyStrictThird
)

// Match returns true if r is within the scope of p.
func (p Party) Match(r *Request) (ok bool) {
	switch p {
	case PartyFirst:
		return !r.ThirdParty
	case PartyThird:
		return r.ThirdParty
	case PartyStrictFirst:
		return !r.StrictThirdParty
	case PartyStrictThird:
		return r.StrictThirdParty
	default:
		return true
	}
}

// FilterConfig is the configuration structure for a [Filter].
type FilterConfig struct {
	// Domains is the page scope of the filter.  nil means any page.
	Domains *DomainMap

	// Modify is the side effect of the filter, if any.
	Modify ModifyAction

	// Text is the source line of the filter.  It identifies the filter in
	// $badfilter records and in logs.
	Text string

	// Pattern is the text matched by Kind, as returned by [ParsePattern].
	Pattern string

	// Kind is the match strategy.
	Kind MatchKind

	// ContentType is the mask of request types the filter applies to.  Zero
	// means [TypeAllNetwork].
	ContentType ContentType

	// Party is the third-party scope.
	Party Party

	// MatchCase makes the pattern case-sensitive.
	MatchCase bool

	// Allow marks exception filters.
	Allow bool

	// Important marks filters that override ordinary exceptions.
	Important bool
}

// Filter is a single compiled filter.  It is immutable and safe for
// concurrent use.
type Filter struct {
	// Domains is the page scope of the filter.  nil means any page.
	Domains *DomainMap

	// Modify is the side effect of the filter, if any.
	Modify ModifyAction

	// re is the compiled pattern of regex filters.
	re *regexp.Regexp

	// Text is the source line of the filter.
	Text string

	// Pattern is the matched text, lowercased unless MatchCase is set.
	Pattern string

	Kind        MatchKind
	ContentType ContentType
	Party       Party

	MatchCase bool
	Allow     bool
	Important bool
}

// NewFilter returns a new filter built from c.
func NewFilter(c *FilterConfig) (f *Filter, err error) {
	f = &Filter{
		Domains:     c.Domains,
		Modify:      c.Modify,
		Text:        c.Text,
		Pattern:     c.Pattern,
		Kind:        c.Kind,
		ContentType: c.ContentType,
		Party:       c.Party,
		MatchCase:   c.MatchCase,
		Allow:       c.Allow,
		Important:   c.Important,
	}

	if f.ContentType == 0 {
		f.ContentType = TypeAllNetwork
	}

	switch f.Kind {
	case MatchRegex:
		expr := f.Pattern
		if !f.MatchCase {
			expr = "(?i)" + expr
		}

		f.re, err = regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compiling pattern: %w", err)
		}
	case
		MatchContains,
		MatchStartsWith,
		MatchEndsWith,
		MatchStartAndEnd,
		MatchExactHost,
		MatchWildcard:
		if !f.MatchCase || f.Kind == MatchExactHost {
			f.Pattern = strings.ToLower(f.Pattern)
		}
	default:
		return nil, fmt.Errorf("match kind: %w: %d", errors.ErrBadEnumValue, f.Kind)
	}

	return f, nil
}

// Tag returns the index key of the filter.  See [RequestTags].
func (f *Filter) Tag() (tag string) {
	return filterTag(f.Kind, f.Pattern)
}

// IsDocumentAllow returns true if f is an exception filter for whole
// documents, as opposed to one that simply applies to every type.
func (f *Filter) IsDocumentAllow() (ok bool) {
	return f.Allow && f.ContentType&TypeDocument != 0 && f.ContentType != TypeAllNetwork
}

// Match returns true if f matches r.
func (f *Filter) Match(r *Request) (ok bool) {
	switch {
	case
		r.Type&f.ContentType == 0,
		!f.Party.Match(r),
		f.Domains != nil && !f.Domains.Match(r.PageHost):
		return false
	default:
		return f.matchPattern(r)
	}
}

// matchPattern returns true if the URL of r matches the pattern of f.
func (f *Filter) matchPattern(r *Request) (ok bool) {
	url := r.URLLowerCase
	if f.MatchCase {
		url = r.URL
	}

	switch f.Kind {
	case MatchContains:
		return strings.Contains(url, f.Pattern)
	case MatchStartsWith:
		return matchHostAnchored(url, f.Pattern, false)
	case MatchEndsWith:
		return matchEndsWith(url, f.Pattern)
	case MatchStartAndEnd:
		return matchHostAnchored(url, f.Pattern, true)
	case MatchExactHost:
		return matchExactHost(r.Hostname, f.Pattern)
	case MatchWildcard:
		return matchWildcard(url, f.Pattern)
	case MatchRegex:
		return f.re.MatchString(r.URL)
	default:
		return false
	}
}

// String implements the [fmt.Stringer] interface for *Filter.
func (f *Filter) String() (s string) {
	return f.Text
}
