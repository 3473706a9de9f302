package lookup_test

import (
	"testing"

	"github.com/abpkit/contentfilter/rules"
	"github.com/stretchr/testify/require"
)

// Common domains for tests.
const (
	testDomain    = "domain.example"
	testDomainSub = "sub.domain.example"
	testPage      = "page.example"
)

// Common URL strings for tests.
const (
	testURLStrWithDomain    = "https://" + testDomain + "/"
	testURLStrWithSubdomain = "https://" + testDomainSub + "/banner/x.png"
	testURLStrNoMatch       = "https://no-match.example/"
)

// newFilter is a helper that creates a block filter from the pattern part of
// a rule.
func newFilter(tb testing.TB, text string, c *rules.FilterConfig) (f *rules.Filter) {
	tb.Helper()

	if c == nil {
		c = &rules.FilterConfig{}
	}

	c.Text = text
	c.Kind, c.Pattern = rules.ParsePattern(text, true)

	f, err := rules.NewFilter(c)
	require.NoError(tb, err)

	return f
}

// newElement is a helper that creates an element filter.
func newElement(tb testing.TB, selector string, hide bool, domains ...string) (e *rules.ElementFilter) {
	tb.Helper()

	e = &rules.ElementFilter{
		Selector: selector,
		Hide:     hide,
	}

	if len(domains) > 0 {
		var err error
		e.Domains, err = rules.NewDomainMap(domains...)
		require.NoError(tb, err)
	}

	return e
}
