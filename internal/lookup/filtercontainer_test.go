package lookup_test

import (
	"fmt"
	"testing"

	"github.com/abpkit/contentfilter/internal/lookup"
	"github.com/abpkit/contentfilter/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterContainer_Get(t *testing.T) {
	t.Parallel()

	c := lookup.NewFilterContainer()
	hostFilter := newFilter(t, "||"+testDomain+"^", nil)
	c.Add(hostFilter)

	bannerFilter := newFilter(t, "/banner/", nil)
	c.Add(bannerFilter)

	scriptFilter := newFilter(t, "/script/", &rules.FilterConfig{
		ContentType: rules.TypeScript,
	})
	c.Add(scriptFilter)

	require.Equal(t, 3, c.Len())

	testCases := []struct {
		want *rules.Filter
		name string
		url  string
		typ  rules.ContentType
	}{{
		want: hostFilter,
		name: "domain",
		url:  testURLStrWithDomain,
		typ:  rules.TypeImage,
	}, {
		want: hostFilter,
		name: "domain_walk",
		url:  testURLStrWithSubdomain,
		typ:  rules.TypeImage,
	}, {
		want: bannerFilter,
		name: "tag",
		url:  "https://other.example/banner/x.png",
		typ:  rules.TypeImage,
	}, {
		want: nil,
		name: "type_mismatch",
		url:  "https://other.example/script/x.png",
		typ:  rules.TypeImage,
	}, {
		want: scriptFilter,
		name: "type",
		url:  "https://other.example/script/x.js",
		typ:  rules.TypeScript,
	}, {
		want: nil,
		name: "no_match",
		url:  testURLStrNoMatch,
		typ:  rules.TypeImage,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := rules.NewRequest(tc.url, testPage, tc.typ)
			assert.Same(t, tc.want, c.Get(r))
		})
	}
}

func TestFilterContainer_Get_domainOnly(t *testing.T) {
	t.Parallel()

	c := lookup.NewFilterContainer()
	c.AddWithTag(testDomain, newFilter(t, "/banner/", nil))

	r := rules.NewRequest(testURLStrWithSubdomain, testPage, rules.TypeImage)
	assert.NotNil(t, c.Get(r))

	// The filter is only reachable through the domain walk.
	r = rules.NewRequest("https://other.example/banner/", testPage, rules.TypeImage)
	assert.Nil(t, c.Get(r))

	assert.Nil(t, lookup.NewFilterContainer().Get(r))
}

func TestFilterContainer_Get_order(t *testing.T) {
	t.Parallel()

	c := lookup.NewFilterContainer()
	first := newFilter(t, "/banner/", nil)
	second := newFilter(t, "/banner/x", nil)
	c.Add(first)
	c.Add(second)

	// Duplicates are ignored.
	c.Add(newFilter(t, "/banner/", nil))
	assert.Equal(t, 2, c.Len())

	r := rules.NewRequest(testURLStrWithSubdomain, testPage, rules.TypeImage)
	assert.Same(t, first, c.Get(r))
	assert.Equal(t, []*rules.Filter{first, second}, c.GetAll(r))
}

func TestFilterContainer_GetAll(t *testing.T) {
	t.Parallel()

	c := lookup.NewFilterContainer()
	host := newFilter(t, "||"+testDomain+"^", nil)
	sub := newFilter(t, "||"+testDomainSub+"^", nil)
	banner := newFilter(t, "/banner/", nil)
	other := newFilter(t, "/other/", nil)

	for _, f := range []*rules.Filter{host, sub, banner, other} {
		c.Add(f)
	}

	r := rules.NewRequest(testURLStrWithSubdomain, testPage, rules.TypeImage)
	assert.Equal(t, []*rules.Filter{sub, host, banner}, c.GetAll(r))
}

// TestFilterContainer_literal checks that an unscoped literal filter is found
// for every URL containing its pattern.
func TestFilterContainer_literal(t *testing.T) {
	t.Parallel()

	patterns := []string{"banner", "/ad/", "-ads-", "ad_", "%20ad"}
	urls := []string{
		"https://example.org/bigbanner.png",
		"https://example.org/ad/",
		"https://example.org/x-ads-y",
		"https://example.org/?ad_id=1",
		"https://example.org/q=%20ad",
	}

	c := lookup.NewFilterContainer()
	for _, p := range patterns {
		c.Add(newFilter(t, p, nil))
	}

	for i, u := range urls {
		r := rules.NewRequest(u, "https://any.example/", rules.TypeImage)
		f := c.Get(r)
		require.NotNil(t, f, u)

		assert.Equal(t, patterns[i], f.Text)
	}
}

func BenchmarkFilterContainer_Get(b *testing.B) {
	c := lookup.NewFilterContainer()
	for i := range 10_000 {
		c.Add(newFilter(b, fmt.Sprintf("||ads%d.example^", i), nil))
		c.Add(newFilter(b, fmt.Sprintf("/banner%d/", i), nil))
	}

	r := rules.NewRequest("https://www.example.org/img/banner9999/x.png", testPage, rules.TypeImage)

	b.ReportAllocs()

	var f *rules.Filter
	for b.Loop() {
		f = c.Get(r)
	}

	assert.NotNil(b, f)
}
