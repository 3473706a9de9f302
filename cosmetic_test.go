package contentfilter_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/abpkit/contentfilter/userrules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosmeticFiltering_LoadScript(t *testing.T) {
	t.Parallel()

	const wantBanner = `(function(){const b=['.banner'];b.forEach(a=>{document.querySelectorAll(a)` +
		`?.forEach(n=>{n.remove()})})})()`

	testCases := []struct {
		name     string
		list     string
		page     string
		want     string
		wantNone bool
	}{{
		name:     "hide",
		list:     "example.com##.banner\n",
		page:     "https://example.com/page",
		want:     wantBanner,
		wantNone: false,
	}, {
		name:     "exception",
		list:     "example.com##.banner\nexample.com#@#.banner\n",
		page:     "https://example.com/page",
		want:     "",
		wantNone: true,
	}, {
		name:     "generic_exception_by_domain",
		list:     "##.banner\nexample.com#@#.banner\n",
		page:     "https://example.com/page",
		want:     "",
		wantNone: true,
	}, {
		name:     "generic",
		list:     "##.banner\nexample.com#@#.banner\n",
		page:     "https://other.example/",
		want:     wantBanner,
		wantNone: false,
	}, {
		name:     "other_domain",
		list:     "example.com##.banner\n",
		page:     "https://other.example/",
		want:     "",
		wantNone: true,
	}, {
		name:     "elemhide",
		list:     "example.com##.banner\n@@||example.com^$elemhide\n",
		page:     "https://example.com/page",
		want:     "",
		wantNone: true,
	}, {
		name:     "generichide",
		list:     "##.ad\nexample.com##.banner\n@@||example.com^$generichide\n",
		page:     "https://example.com/page",
		want:     wantBanner,
		wantNone: false,
	}, {
		name: "escaping",
		list: `example.com##a[href='x\y']` + "\n",
		page: "https://example.com/",
		want: `(function(){const b=['a[href=\'x\\y\']'];b.forEach(a=>{document.querySelectorAll(a)` +
			`?.forEach(n=>{n.remove()})})})()`,
		wantNone: false,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := newSnapshot(t, tc.list, nil).Cosmetic()

			script, ok := c.LoadScript(tc.page)
			assert.Equal(t, !tc.wantNone, ok)
			assert.Equal(t, tc.want, script)

			// The cached result is the same.
			script, ok = c.LoadScript(tc.page)
			assert.Equal(t, !tc.wantNone, ok)
			assert.Equal(t, tc.want, script)
		})
	}
}

func TestCosmeticFiltering_Selectors(t *testing.T) {
	t.Parallel()

	list := "##.ad\nexample.com##.banner\nexample.com##.ad\n~shop.example.com,example.com##.popup\n"

	c := newSnapshot(t, list, []userrules.Rule{userrules.AllowPageRule("allowed.example")}).Cosmetic()

	assert.ElementsMatch(t, []string{".ad", ".banner", ".popup"}, c.Selectors("https://example.com/"))
	assert.ElementsMatch(t, []string{".ad", ".banner"}, c.Selectors("https://shop.example.com/"))
	assert.Equal(t, []string{".ad"}, c.Selectors("https://other.example/"))
	assert.Empty(t, c.Selectors("https://allowed.example/"))
}

func TestCosmeticFiltering_Selectors_idn(t *testing.T) {
	t.Parallel()

	c := newSnapshot(t, "пример.рф##.ad\n", nil).Cosmetic()

	assert.Equal(t, []string{".ad"}, c.Selectors("https://пример.рф/page"))
	assert.Equal(t, []string{".ad"}, c.Selectors("https://xn--e1afmkfd.xn--p1ai/page"))
	assert.Equal(t, []string{".ad"}, c.Selectors("https://www.ПРИМЕР.рф/"))
	assert.Empty(t, c.Selectors("https://пример.com/"))
}

func TestCosmeticFiltering_Selectors_manyGeneric(t *testing.T) {
	t.Parallel()

	const n = 1_000

	var sb strings.Builder
	for i := range n {
		fmt.Fprintf(&sb, "##.ad-generic-%d\n", i)
	}

	// Duplicates and exceptions must not be emitted.
	sb.WriteString("##.ad-generic-1\nexample.org#@#.ad-generic-2\n")

	c := newSnapshot(t, sb.String(), nil).Cosmetic()

	got := c.Selectors("https://example.org/page")
	assert.Len(t, got, n-1)
	assert.NotContains(t, got, ".ad-generic-2")
	assert.Equal(t, ".ad-generic-0", got[0])
}

func BenchmarkCosmeticFiltering_Selectors(b *testing.B) {
	var sb strings.Builder
	for i := range 20_000 {
		fmt.Fprintf(&sb, "##.ad-generic-%d\n", i)
	}

	c := newSnapshot(b, sb.String(), nil).Cosmetic()

	var selectors []string

	b.ReportAllocs()
	for b.Loop() {
		selectors = c.Selectors("https://example.org/page")
	}

	require.Len(b, selectors, 20_000)
}

func BenchmarkCosmeticFiltering_LoadScript(b *testing.B) {
	c := newSnapshot(b, syntheticList(10_000), nil).Cosmetic()
	pages := []string{
		"https://example3.org/",
		"https://example8.org/a",
		"https://nothing.example/",
	}

	var ok bool

	b.ReportAllocs()
	for i := 0; b.Loop(); i++ {
		_, ok = c.LoadScript(pages[i%len(pages)])
	}

	_ = ok
}
