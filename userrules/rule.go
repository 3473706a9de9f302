// Package userrules implements per-site block and allow rules set by the user.
// They work like the dynamic filtering of uBlock Origin: the most specific
// matching rule decides, so a narrow rule can override a broad one in either
// direction.
package userrules

import (
	"fmt"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/abpkit/contentfilter/internal/ufnet"
	"github.com/abpkit/contentfilter/rules"
)

// Response is the decision of a user rule.
type Response uint8

// Response values.
const (
	// ResponseNoop makes the request fall through to the filter lists.  It
	// overrides a broader block or allow rule.
	ResponseNoop Response = iota
	ResponseBlock
	ResponseAllow
)

// String implements the [fmt.Stringer] interface for Response.
func (r Response) String() (s string) {
	switch r {
	case ResponseNoop:
		return "noop"
	case ResponseBlock:
		return "block"
	case ResponseAllow:
		return "allow"
	default:
		return fmt.Sprintf("!bad_response_%d", r)
	}
}

// ParseResponse returns the response with the given name.
func ParseResponse(s string) (r Response, err error) {
	switch strings.ToLower(s) {
	case "noop":
		return ResponseNoop, nil
	case "block":
		return ResponseBlock, nil
	case "allow":
		return ResponseAllow, nil
	default:
		return 0, fmt.Errorf("response: %w: %q", errors.ErrBadEnumValue, s)
	}
}

// Rule is a single user rule.  Rule is comparable, two rules are the same
// rule if they are equal.
type Rule struct {
	// PageDomain is the domain of the pages the rule applies on, including
	// subdomains.  Empty means every page.
	PageDomain string

	// RequestDomain is the domain of the requests the rule applies to,
	// including subdomains.  Empty means every request.
	RequestDomain string

	// ContentType is the mask of request types.  Zero means every type.
	ContentType rules.ContentType

	// ThirdParty restricts the rule to third-party requests.
	ThirdParty bool

	Response Response
}

// AllowPageRule returns the rule that disables filtering on the pages of
// domain.
func AllowPageRule(domain string) (r Rule) {
	return Rule{
		PageDomain: domain,
		Response:   ResponseAllow,
	}
}

// Normalize returns r with the domains normalized and validates it.
func (r Rule) Normalize() (n Rule, err error) {
	n = r
	n.PageDomain = ufnet.NormalizeHost(r.PageDomain)
	n.RequestDomain = ufnet.NormalizeHost(r.RequestDomain)

	switch {
	case n.PageDomain != "" && !ufnet.IsDomainName(n.PageDomain):
		return Rule{}, fmt.Errorf("page domain %q: %w", r.PageDomain, errBadDomain)
	case n.RequestDomain != "" && !ufnet.IsDomainName(n.RequestDomain):
		return Rule{}, fmt.Errorf("request domain %q: %w", r.RequestDomain, errBadDomain)
	case n.Response > ResponseAllow:
		return Rule{}, fmt.Errorf("response: %w: %d", errors.ErrBadEnumValue, n.Response)
	default:
		return n, nil
	}
}

// errBadDomain is returned for rules with invalid domain names.
const errBadDomain errors.Error = "bad domain name"

// types returns the effective content type mask of r.
func (r *Rule) types() (t rules.ContentType) {
	if r.ContentType == 0 {
		return rules.TypeAllNetwork
	}

	return r.ContentType
}

// Match returns true if r applies to req.  The page domain is matched by the
// container.
func (r *Rule) Match(req *rules.Request) (ok bool) {
	switch {
	case
		req.Type&r.types() == 0,
		r.ThirdParty && !req.ThirdParty:
		return false
	case r.RequestDomain == "":
		return true
	default:
		return isSubdomain(req.Hostname, r.RequestDomain)
	}
}

// isSubdomain returns true if host is domain or a subdomain of it.
func isSubdomain(host, domain string) (ok bool) {
	rest, found := strings.CutSuffix(host, domain)

	return found && (rest == "" || strings.HasSuffix(rest, "."))
}

// moreSpecific returns true if a takes precedence over b when both match the
// same request.  The request domain is compared first, then the third-party
// flag, then the content type, and finally the page domain.
func moreSpecific(a, b *Rule) (ok bool) {
	switch {
	case len(a.RequestDomain) != len(b.RequestDomain):
		return len(a.RequestDomain) > len(b.RequestDomain)
	case a.ThirdParty != b.ThirdParty:
		return a.ThirdParty
	case a.types() != b.types():
		return a.types().Count() < b.types().Count()
	default:
		return len(a.PageDomain) > len(b.PageDomain)
	}
}

// String implements the [fmt.Stringer] interface for *Rule in a form similar
// to uBlock Origin dynamic rules.
func (r *Rule) String() (s string) {
	page, req, typ := r.PageDomain, r.RequestDomain, "*"
	if page == "" {
		page = "*"
	}

	if req == "" {
		req = "*"
	}

	if r.ContentType != 0 {
		typ = r.ContentType.String()
	}

	if r.ThirdParty {
		typ = "3p-" + typ
	}

	return strings.Join([]string{page, req, typ, r.Response.String()}, " ")
}
