package lookup_test

import (
	"testing"

	"github.com/abpkit/contentfilter/internal/lookup"
	"github.com/abpkit/contentfilter/rules"
	"github.com/stretchr/testify/assert"
)

func TestElementContainer_Get(t *testing.T) {
	t.Parallel()

	generic := newElement(t, ".ad", true)
	scoped := newElement(t, ".banner", true, "example.org", "example.com")
	unhide := newElement(t, ".ad", false, "example.org")
	notOnSub := newElement(t, ".promo", true, "~sub.example.org")
	wildcard := newElement(t, "#top", true, "example.*")
	other := newElement(t, ".other", true, "other.org")
	idn := newElement(t, ".idn", true, "пример.рф")

	c := lookup.NewElementContainer()
	for _, e := range []*rules.ElementFilter{generic, scoped, unhide, notOnSub, wildcard, other, idn} {
		c.Add(e)
	}

	assert.Equal(t, 7, c.Len())

	testCases := []struct {
		name       string
		page       string
		want       []*rules.ElementFilter
		useGeneric bool
	}{{
		name:       "all",
		page:       "https://example.org/page",
		want:       []*rules.ElementFilter{scoped, unhide, wildcard, generic, notOnSub},
		useGeneric: true,
	}, {
		name:       "no_generic",
		page:       "https://example.org/page",
		want:       []*rules.ElementFilter{scoped, unhide, wildcard},
		useGeneric: false,
	}, {
		name:       "excluded",
		page:       "https://sub.example.org/",
		want:       []*rules.ElementFilter{scoped, unhide, wildcard, generic},
		useGeneric: true,
	}, {
		name:       "unrelated",
		page:       "https://news.example/",
		want:       []*rules.ElementFilter{generic, notOnSub},
		useGeneric: true,
	}, {
		name:       "idn_unicode",
		page:       "https://пример.рф/page",
		want:       []*rules.ElementFilter{idn, generic, notOnSub},
		useGeneric: true,
	}, {
		name:       "idn_punycode",
		page:       "https://xn--e1afmkfd.xn--p1ai/page",
		want:       []*rules.ElementFilter{idn},
		useGeneric: false,
	}, {
		name:       "path_is_not_domain",
		page:       "https://news.example/other/",
		want:       []*rules.ElementFilter{generic, notOnSub},
		useGeneric: true,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := rules.NewRequest(tc.page, tc.page, rules.TypeAllElement)
			assert.Equal(t, tc.want, c.Get(r, tc.useGeneric))
		})
	}
}
