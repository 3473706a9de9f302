package contentfilter_test

import (
	"testing"

	"github.com/abpkit/contentfilter"
	"github.com/abpkit/contentfilter/filterlist"
	"github.com/abpkit/contentfilter/internal/lookup"
	"github.com/abpkit/contentfilter/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newBlocker returns a blocker of the allow and block filters of the list.
func newBlocker(tb testing.TB, list string) (b *contentfilter.Blocker) {
	tb.Helper()

	res := decodeList(tb, list)

	allow, block := lookup.NewFilterContainer(), lookup.NewFilterContainer()
	for _, f := range res.Sets[filterlist.ClassAllow] {
		allow.Add(f)
	}

	for _, f := range res.Sets[filterlist.ClassBlock] {
		block.Add(f)
	}

	return contentfilter.NewBlocker(allow, block)
}

func TestBlocker_IsBlock(t *testing.T) {
	t.Parallel()

	b := newBlocker(t, "@@||cdn.example.com/safe/*\n/ads/\n||ads.example.com^$third-party\n")

	testCases := []struct {
		name      string
		url       string
		page      string
		wantBlock bool
	}{{
		name:      "exclusion_wins",
		url:       "https://cdn.example.com/safe/ads/banner.png",
		page:      "https://news.example/",
		wantBlock: false,
	}, {
		name:      "blocked_path",
		url:       "https://other.com/ads/banner.png",
		page:      "https://news.example/",
		wantBlock: true,
	}, {
		name:      "third_party",
		url:       "https://ads.example.com/x.js",
		page:      "https://news.example/",
		wantBlock: true,
	}, {
		name:      "first_party",
		url:       "https://ads.example.com/x.js",
		page:      "https://ads.example.com/",
		wantBlock: false,
	}, {
		name:      "no_match",
		url:       "https://cdn.example.com/lib.js",
		page:      "https://news.example/",
		wantBlock: false,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := b.IsBlock(rules.NewRequest(tc.url, tc.page, rules.TypeImage))
			if !tc.wantBlock {
				assert.Nil(t, f)

				return
			}

			require.NotNil(t, f)
			assert.False(t, f.Allow)
		})
	}
}
