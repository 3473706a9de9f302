package contentfilter

import (
	"net/url"
	"slices"
	"strings"

	"github.com/abpkit/contentfilter/rules"
)

// applyExceptions removes the filters of fs cancelled by the exception
// filters.  An exception without a parameter cancels every action of its
// kind, an exception with a parameter cancels the actions with the same kind
// and parameter.  The removeparam exceptions with a parameter are returned in
// exempt, since they also protect the parameters they select from broader
// actions.
func applyExceptions(fs, exceptions []*rules.Filter) (kept []*rules.Filter, exempt []*rules.RemoveParamAction) {
	if len(exceptions) == 0 {
		return fs, nil
	}

	kept = slices.Clone(fs)
	for _, ex := range exceptions {
		a := ex.Modify
		if a == nil {
			continue
		}

		kind, param := a.Kind(), a.Param()
		kept = slices.DeleteFunc(kept, func(f *rules.Filter) (ok bool) {
			return f.Modify != nil &&
				f.Modify.Kind() == kind &&
				(param == "" || f.Modify.Param() == param)
		})

		if rp, ok := a.(*rules.RemoveParamAction); ok && param != "" {
			exempt = append(exempt, rp)
		}
	}

	return kept, exempt
}

// withoutKind returns fs without the filters with modify actions of kind k.
func withoutKind(fs []*rules.Filter, k rules.ModifyKind) (res []*rules.Filter) {
	return slices.DeleteFunc(slices.Clone(fs), func(f *rules.Filter) (ok bool) {
		return f.Modify != nil && f.Modify.Kind() == k
	})
}

// removeParams strips the query parameters selected by the removeparam actions
// of fs and not protected by exempt.  The order of the remaining parameters
// and the fragment are kept as is.
func removeParams(
	rawURL string,
	fs []*rules.Filter,
	exempt []*rules.RemoveParamAction,
) (res string, changed bool) {
	var actions []*rules.RemoveParamAction
	for _, f := range fs {
		if a, ok := f.Modify.(*rules.RemoveParamAction); ok {
			actions = append(actions, a)
		}
	}

	if len(actions) == 0 {
		return rawURL, false
	}

	rest, fragment, hasFragment := strings.Cut(rawURL, "#")
	base, query, hasQuery := strings.Cut(rest, "?")
	if !hasQuery {
		return rawURL, false
	}

	pairs := strings.Split(query, "&")
	kept := pairs[:0:0]
	for _, pair := range pairs {
		if !mustRemove(paramName(pair), actions, exempt) {
			kept = append(kept, pair)
		}
	}

	if len(kept) == len(pairs) {
		return rawURL, false
	}

	var sb strings.Builder
	sb.WriteString(base)
	if len(kept) > 0 {
		sb.WriteByte('?')
		sb.WriteString(strings.Join(kept, "&"))
	}

	if hasFragment {
		sb.WriteByte('#')
		sb.WriteString(fragment)
	}

	return sb.String(), true
}

// paramName returns the decoded name of a raw query pair.
func paramName(pair string) (name string) {
	raw, _, _ := strings.Cut(pair, "=")
	name, err := url.QueryUnescape(raw)
	if err != nil {
		return raw
	}

	return name
}

// mustRemove returns true if the parameter name is selected by any of actions
// and by none of exempt.
func mustRemove(name string, actions, exempt []*rules.RemoveParamAction) (ok bool) {
	if name == "" {
		return false
	}

	for _, ex := range exempt {
		if ex.MatchParam(name) {
			return false
		}
	}

	for _, a := range actions {
		if a.MatchParam(name) {
			return true
		}
	}

	return false
}

// cspPolicies returns the distinct CSP policies of fs in order.
func cspPolicies(fs []*rules.Filter) (policies []string) {
	for _, f := range fs {
		a, ok := f.Modify.(*rules.CSPAction)
		if ok && a.Policy != "" && !slices.Contains(policies, a.Policy) {
			policies = append(policies, a.Policy)
		}
	}

	return policies
}
