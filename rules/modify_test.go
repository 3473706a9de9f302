package rules_test

import (
	"testing"

	"github.com/AdguardTeam/golibs/testutil"
	"github.com/abpkit/contentfilter/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModifyAction(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		want       rules.ModifyAction
		name       string
		value      string
		wantParam  string
		wantErrMsg string
		kind       rules.ModifyKind
	}{{
		want:       &rules.CSPAction{Policy: "script-src 'self'"},
		name:       "csp",
		value:      "script-src 'self'",
		wantParam:  "script-src 'self'",
		wantErrMsg: "",
		kind:       rules.ModifyCSP,
	}, {
		want:       &rules.RedirectAction{Resource: rules.ResourceNoopJS},
		name:       "redirect_alias",
		value:      "noopjs",
		wantParam:  rules.ResourceNoopJS,
		wantErrMsg: "",
		kind:       rules.ModifyRedirect,
	}, {
		want:       &rules.RedirectAction{Resource: rules.ResourceNoopMP3, Priority: 10},
		name:       "redirect_priority",
		value:      "abp-resource:blank-mp3:10",
		wantParam:  rules.ResourceNoopMP3,
		wantErrMsg: "",
		kind:       rules.ModifyRedirect,
	}, {
		want:       &rules.RedirectAction{},
		name:       "redirect_exception",
		value:      "",
		wantParam:  "",
		wantErrMsg: "",
		kind:       rules.ModifyRedirect,
	}, {
		want:       nil,
		name:       "redirect_unknown",
		value:      "nope.js",
		wantParam:  "",
		wantErrMsg: `unknown redirect resource "nope.js"`,
		kind:       rules.ModifyRedirect,
	}, {
		want:       nil,
		name:       "bad_kind",
		value:      "",
		wantParam:  "",
		wantErrMsg: "modify kind: bad enum value: 42",
		kind:       42,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			a, err := rules.NewModifyAction(tc.kind, tc.value)
			if tc.wantErrMsg != "" {
				testutil.AssertErrorMsg(t, tc.wantErrMsg, err)

				return
			}

			require.NoError(t, err)

			assert.Equal(t, tc.want, a)
			assert.Equal(t, tc.wantParam, a.Param())
			assert.Equal(t, tc.kind, a.Kind())
		})
	}
}

func TestRemoveParamAction_MatchParam(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		value string
		match []string
		keep  []string
	}{{
		name:  "all",
		value: "",
		match: []string{"a", "utm_source"},
		keep:  nil,
	}, {
		name:  "name",
		value: "uid",
		match: []string{"uid"},
		keep:  []string{"x", "uidx"},
	}, {
		name:  "inverse",
		value: "~id",
		match: []string{"uid", "x"},
		keep:  []string{"id"},
	}, {
		name:  "regexp",
		value: "/^utm_/",
		match: []string{"utm_source", "utm_medium"},
		keep:  []string{"x_utm_"},
	}, {
		name:  "inverse_regexp",
		value: "~/^q$/",
		match: []string{"utm_source"},
		keep:  []string{"q"},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			a, err := rules.NewModifyAction(rules.ModifyRemoveParam, tc.value)
			require.NoError(t, err)

			rp := testutil.RequireTypeAssert[*rules.RemoveParamAction](t, a)
			assert.Equal(t, tc.value, rp.Value())

			for _, name := range tc.match {
				assert.Truef(t, rp.MatchParam(name), "param %q", name)
			}

			for _, name := range tc.keep {
				assert.Falsef(t, rp.MatchParam(name), "param %q", name)
			}
		})
	}
}

func TestStubFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, rules.Resource1x1, rules.StubFor(rules.TypeImage))
	assert.Equal(t, rules.ResourceNoopJS, rules.StubFor(rules.TypeScript))
	assert.Equal(t, rules.ResourceNoopHTML, rules.StubFor(rules.TypeSubdocument))
	assert.Equal(t, rules.ResourceNoopMP3, rules.StubFor(rules.TypeMedia))
	assert.Equal(t, rules.ResourceEmpty, rules.StubFor(rules.TypeXHR))
}
