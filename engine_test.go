package contentfilter_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/abpkit/contentfilter"
	"github.com/abpkit/contentfilter/filterlist"
	"github.com/abpkit/contentfilter/rules"
	"github.com/abpkit/contentfilter/userrules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEngineList is the list for the engine tests.
const testEngineList = `! Title: Engine test list
||ads.example.com^$third-party
@@||cdn.example.com/safe/*
/ads/
||tracker.example^$important
@@||tracker.example^
@@||tracker.example/ok.js$important
@@||tracker.example/page$document
||video.example^$redirect=noopjs
||video.example^$redirect=1x1.gif:10
||quiet.example^$redirect=noopjs
@@||quiet.example^$redirect
/track.gif$removeparam=uid
||shop.example^$removeparam
@@||shop.example^$removeparam=ref
||page.example^$csp=script-src 'none'
@@||page.example/open/*$csp
popunder.js$script
banner.gif
adserver.org
||media.example^$mp4
||media.example^
`

func TestEngine_Match(t *testing.T) {
	t.Parallel()

	e := newEngine(t, testEngineList)

	testCases := []struct {
		want *contentfilter.Result
		name string
		url  string
		page string
		typ  rules.ContentType
	}{{
		want: &contentfilter.Result{
			Class:   filterlist.ClassBlock,
			Verdict: contentfilter.VerdictBlock,
		},
		name: "third_party_block",
		url:  "https://ads.example.com/x.js",
		page: "https://news.example/",
		typ:  rules.TypeScript,
	}, {
		want: nil,
		name: "first_party",
		url:  "https://ads.example.com/x.js",
		page: "https://ads.example.com/",
		typ:  rules.TypeScript,
	}, {
		want: nil,
		name: "exclusion_wins",
		url:  "https://cdn.example.com/safe/ads/banner.png",
		page: "https://news.example/",
		typ:  rules.TypeImage,
	}, {
		want: &contentfilter.Result{
			Class:   filterlist.ClassBlock,
			Verdict: contentfilter.VerdictBlock,
		},
		name: "path_block",
		url:  "https://other.com/ads/banner.png",
		page: "https://news.example/",
		typ:  rules.TypeImage,
	}, {
		want: &contentfilter.Result{
			Class:   filterlist.ClassImportant,
			Verdict: contentfilter.VerdictBlock,
		},
		name: "important_beats_exception",
		url:  "https://tracker.example/a.js",
		page: "https://news.example/",
		typ:  rules.TypeScript,
	}, {
		want: nil,
		name: "important_exception",
		url:  "https://tracker.example/ok.js",
		page: "https://news.example/",
		typ:  rules.TypeScript,
	}, {
		want: nil,
		name: "document_exception",
		url:  "https://tracker.example/page",
		page: "",
		typ:  rules.TypeDocument,
	}, {
		want: &contentfilter.Result{
			Class:    filterlist.ClassBlock,
			Resource: rules.Resource1x1,
			Verdict:  contentfilter.VerdictRedirect,
		},
		name: "redirect_priority",
		url:  "https://video.example/a.js",
		page: "https://news.example/",
		typ:  rules.TypeScript,
	}, {
		want: &contentfilter.Result{
			Class:   filterlist.ClassBlock,
			Verdict: contentfilter.VerdictBlock,
		},
		name: "redirect_exception",
		url:  "https://quiet.example/a.js",
		page: "https://news.example/",
		typ:  rules.TypeScript,
	}, {
		want: &contentfilter.Result{
			Class:   filterlist.ClassModify,
			URL:     "https://x.com/track.gif?x=1",
			Verdict: contentfilter.VerdictModify,
		},
		name: "removeparam",
		url:  "https://x.com/track.gif?uid=5&x=1",
		page: "https://x.com/",
		typ:  rules.TypeImage,
	}, {
		want: &contentfilter.Result{
			Class:   filterlist.ClassModify,
			URL:     "https://x.com/track.gif?x=1#top",
			Verdict: contentfilter.VerdictModify,
		},
		name: "removeparam_fragment",
		url:  "https://x.com/track.gif?x=1&uid=5#top",
		page: "https://x.com/",
		typ:  rules.TypeImage,
	}, {
		want: &contentfilter.Result{
			Class:   filterlist.ClassModify,
			URL:     "https://x.com/track.gif",
			Verdict: contentfilter.VerdictModify,
		},
		name: "removeparam_last",
		url:  "https://x.com/track.gif?uid=5",
		page: "https://x.com/",
		typ:  rules.TypeImage,
	}, {
		want: nil,
		name: "removeparam_no_query",
		url:  "https://x.com/track.gif",
		page: "https://x.com/",
		typ:  rules.TypeImage,
	}, {
		want: nil,
		name: "removeparam_no_param",
		url:  "https://x.com/track.gif?x=1",
		page: "https://x.com/",
		typ:  rules.TypeImage,
	}, {
		want: &contentfilter.Result{
			Class:   filterlist.ClassModify,
			URL:     "https://shop.example/p?ref=a",
			Verdict: contentfilter.VerdictModify,
		},
		name: "removeparam_exempt",
		url:  "https://shop.example/p?utm=b&ref=a&id=1",
		page: "https://shop.example/",
		typ:  rules.TypeDocument,
	}, {
		want: &contentfilter.Result{
			Class:   filterlist.ClassModify,
			CSP:     []string{"script-src 'none'"},
			Verdict: contentfilter.VerdictModify,
		},
		name: "csp",
		url:  "https://page.example/",
		page: "",
		typ:  rules.TypeDocument,
	}, {
		want: nil,
		name: "csp_exception",
		url:  "https://page.example/open/x",
		page: "",
		typ:  rules.TypeDocument,
	}, {
		want: &contentfilter.Result{
			Class:   filterlist.ClassBlock,
			Verdict: contentfilter.VerdictBlock,
		},
		name: "file_name_with_options",
		url:  "https://cdn.example.org/popunder.js",
		page: "https://news.example/",
		typ:  rules.TypeScript,
	}, {
		want: nil,
		name: "file_name_other_type",
		url:  "https://cdn.example.org/popunder.js",
		page: "https://news.example/",
		typ:  rules.TypeImage,
	}, {
		want: &contentfilter.Result{
			Class:   filterlist.ClassBlock,
			Verdict: contentfilter.VerdictBlock,
		},
		name: "bare_file_name",
		url:  "https://x.example/img/banner.gif",
		page: "https://news.example/",
		typ:  rules.TypeImage,
	}, {
		want: &contentfilter.Result{
			Class:   filterlist.ClassBlock,
			Verdict: contentfilter.VerdictBlock,
		},
		name: "bare_host_subdomain",
		url:  "https://cdn.adserver.org/a.js",
		page: "https://news.example/",
		typ:  rules.TypeScript,
	}, {
		want: nil,
		name: "bare_host_other_label",
		url:  "https://myadserver.org/a.js",
		page: "https://news.example/",
		typ:  rules.TypeScript,
	}, {
		want: &contentfilter.Result{
			Class:   filterlist.ClassBlock,
			Verdict: contentfilter.VerdictBlock,
		},
		name: "plain_rule_after_mp4",
		url:  "https://media.example/player.js",
		page: "https://news.example/",
		typ:  rules.TypeScript,
	}, {
		want: &contentfilter.Result{
			Class:    filterlist.ClassBlock,
			Resource: rules.ResourceNoopMP4,
			Verdict:  contentfilter.VerdictRedirect,
		},
		name: "mp4_redirect",
		url:  "https://media.example/clip.mp4",
		page: "https://news.example/",
		typ:  rules.TypeMedia,
	}, {
		want: nil,
		name: "csp_not_document",
		url:  "https://page.example/a.js",
		page: "https://page.example/",
		typ:  rules.TypeScript,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := e.Match(rules.NewRequest(tc.url, tc.page, tc.typ))
			if tc.want == nil {
				assert.Nil(t, got)

				return
			}

			require.NotNil(t, got)
			require.NotNil(t, got.Filter)

			assert.Equal(t, tc.want.Verdict, got.Verdict)
			assert.Equal(t, tc.want.Class, got.Class)
			assert.Equal(t, tc.want.Resource, got.Resource)
			assert.Equal(t, tc.want.URL, got.URL)
			assert.Equal(t, tc.want.CSP, got.CSP)
		})
	}
}

func TestEngine_Match_userRules(t *testing.T) {
	t.Parallel()

	e := newEngine(
		t,
		"||ads.example.com^\n",
		userrules.Rule{
			RequestDomain: "tracker.example",
			Response:      userrules.ResponseBlock,
		},
		userrules.AllowPageRule("news.example"),
		userrules.Rule{
			PageDomain:    "blog.example",
			RequestDomain: "ads.example.com",
			Response:      userrules.ResponseNoop,
		},
	)

	testCases := []struct {
		name        string
		url         string
		page        string
		wantVerdict contentfilter.Verdict
		wantUser    bool
	}{{
		name:        "user_block",
		url:         "https://tracker.example/p.gif",
		page:        "https://blog.example/",
		wantVerdict: contentfilter.VerdictBlock,
		wantUser:    true,
	}, {
		name:        "user_allow_page",
		url:         "https://ads.example.com/x.js",
		page:        "https://www.news.example/",
		wantVerdict: contentfilter.VerdictAllow,
		wantUser:    false,
	}, {
		name:        "user_noop",
		url:         "https://ads.example.com/x.js",
		page:        "https://blog.example/",
		wantVerdict: contentfilter.VerdictBlock,
		wantUser:    false,
	}, {
		name:        "filters",
		url:         "https://ads.example.com/x.js",
		page:        "https://other.example/",
		wantVerdict: contentfilter.VerdictBlock,
		wantUser:    false,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := e.Match(rules.NewRequest(tc.url, tc.page, rules.TypeScript))
			if tc.wantVerdict == contentfilter.VerdictAllow {
				assert.Nil(t, got)

				return
			}

			require.NotNil(t, got)
			assert.Equal(t, tc.wantVerdict, got.Verdict)
			assert.Equal(t, tc.wantUser, got.UserRule != nil)

			if tc.wantUser {
				assert.Equal(t, contentfilter.ClassUser, got.Class)
				assert.Nil(t, got.Filter)
			}
		})
	}
}

func TestEngine_Match_truncated(t *testing.T) {
	t.Parallel()

	e := newEngine(t, "/track.gif$removeparam=uid\n")

	url := "https://x.com/track.gif?uid=5&pad=" + strings.Repeat("a", 8*1024)
	r := rules.NewRequest(url, "https://x.com/", rules.TypeImage)
	require.True(t, r.Truncated)

	assert.Nil(t, e.Match(r))
}

func TestEngine_Explain(t *testing.T) {
	t.Parallel()

	e := newEngine(t, testEngineList)
	require.Positive(t, e.Len())

	r := rules.NewRequest("https://video.example/a.js", "https://news.example/", rules.TypeScript)
	got := e.Explain(r)

	// Each redirect rule also blocks under its own text.
	assert.Len(t, got[filterlist.ClassBlock], 2)
	assert.Len(t, got[filterlist.ClassRedirect], 2)
	assert.NotContains(t, got, filterlist.ClassAllow)
}

func TestVerdict_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "allow", contentfilter.VerdictAllow.String())
	assert.Equal(t, "redirect", contentfilter.VerdictRedirect.String())
	assert.Equal(t, "!bad_verdict_42", contentfilter.Verdict(42).String())
}

// syntheticList returns a list of n generated rules of several kinds.
func syntheticList(n int) (list string) {
	var sb strings.Builder
	for i := range n {
		switch i % 5 {
		case 0:
			fmt.Fprintf(&sb, "||ads%d.example^$third-party\n", i)
		case 1:
			fmt.Fprintf(&sb, "/banner%d/*\n", i)
		case 2:
			fmt.Fprintf(&sb, "@@||cdn%d.example/safe/*\n", i)
		case 3:
			fmt.Fprintf(&sb, "example%d.org##.ad-%d\n", i, i)
		default:
			fmt.Fprintf(&sb, "||track%d.example^$removeparam=uid\n", i)
		}
	}

	return sb.String()
}

func BenchmarkEngine_Match(b *testing.B) {
	startHeap, startRSS := alloc(b)
	start := time.Now()
	e := newEngine(b, syntheticList(50_000))
	loadHeap, loadRSS := alloc(b)

	b.Logf("elapsed on loading rules: %s", time.Since(start))
	b.Logf(
		"allocated after loading rules (heap/RSS, kiB): %d/%d (%d/%d diff)",
		loadHeap,
		loadRSS,
		loadHeap-startHeap,
		loadRSS-startRSS,
	)

	reqs := []*rules.Request{
		rules.NewRequest("https://ads100.example/x.js", "https://news.example/", rules.TypeScript),
		rules.NewRequest("https://site.example/banner101/a.png", "https://news.example/", rules.TypeImage),
		rules.NewRequest("https://cdn102.example/safe/banner101/a.png", "https://news.example/", rules.TypeImage),
		rules.NewRequest("https://track104.example/p?uid=1&x=2", "https://news.example/", rules.TypeImage),
		rules.NewRequest("https://nothing.example/index.html", "https://news.example/", rules.TypeDocument),
	}

	var res *contentfilter.Result

	b.ReportAllocs()
	for i := 0; b.Loop(); i++ {
		res = e.Match(reqs[i%len(reqs)])
	}

	_ = res
}
