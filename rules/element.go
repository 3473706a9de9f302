package rules

import "strings"

// ElementFilter is a cosmetic filter: a CSS selector of page elements to
// remove, or an exception keeping them.
type ElementFilter struct {
	// Domains is the page scope.  nil means every page.
	Domains *DomainMap

	// Selector is the CSS selector.
	Selector string

	// Hide is true for "##" filters and false for "#@#" exceptions.
	Hide bool
}

// Generic returns true if the filter applies to every page not excluded by
// its scope.
func (e *ElementFilter) Generic() (ok bool) {
	return e.Domains == nil || !e.Domains.Include()
}

// Match returns true if the filter applies to the page with the given host.
func (e *ElementFilter) Match(host string) (ok bool) {
	return e.Domains == nil || e.Domains.Match(host)
}

// Tags returns the index keys of the filter: the empty tag for generic filters
// and the best tag of each included domain otherwise.
func (e *ElementFilter) Tags() (tags []string) {
	if e.Generic() {
		return []string{""}
	}

	for _, d := range e.Domains.Domains() {
		tags = appendTag(tags, BestTag(d))
	}

	return tags
}

// String implements the [fmt.Stringer] interface for *ElementFilter.
func (e *ElementFilter) String() (s string) {
	sep := "##"
	if !e.Hide {
		sep = "#@#"
	}

	if e.Domains == nil {
		return sep + e.Selector
	}

	return strings.ReplaceAll(e.Domains.String(), "|", ",") + sep + e.Selector
}
