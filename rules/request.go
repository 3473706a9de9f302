package rules

import (
	"net/http"
	"strings"

	"github.com/abpkit/contentfilter/internal/ufnet"
	"golang.org/x/net/publicsuffix"
)

// maxURLLength limits the URL length by 4 KiB.  It appears that there can be
// URLs longer than a megabyte, and it makes no sense to go through the whole
// URL.
const maxURLLength = 4 * 1024

// Request is the immutable match context built once per network request or
// per page.
type Request struct {
	// Header is the request header map, if known.
	Header http.Header

	// URL is the full request URL.
	URL string

	// URLLowerCase is the full request URL in lower case.
	URLLowerCase string

	// Hostname is the hostname of URL.
	Hostname string

	// Domain is the registrable domain of Hostname, or Hostname itself if it
	// has none.
	Domain string

	// PageHost is the hostname of the page that initiated the request.  It is
	// empty if the initiator is unknown.
	PageHost string

	// PageDomain is the registrable domain of PageHost.
	PageDomain string

	// Method is the HTTP method, if known.
	Method string

	// Tags are the lexical index keys of URL.  See [RequestTags].
	Tags []string

	// Type is the single content type bit of the request.
	Type ContentType

	// ThirdParty is true if Domain differs from PageDomain.
	ThirdParty bool

	// Truncated is true if URL was cut to the maximum length.  Such URLs must
	// not be rewritten.
	Truncated bool

	// StrictThirdParty is true if Hostname differs from PageHost.
	StrictThirdParty bool
}

// NewRequest creates a new request for url initiated by page.  page may be
// either a URL or a bare hostname; if it is empty, the request is considered
// first-party and only unscoped or exclusion-scoped filters can match it.
func NewRequest(url, page string, t ContentType) (r *Request) {
	truncated := len(url) > maxURLLength
	if truncated {
		url = url[:maxURLLength]
	}

	r = &Request{
		URL:          url,
		URLLowerCase: strings.ToLower(url),
		Hostname:     ufnet.ExtractHostname(url),
		PageHost:     pageHostname(page),
		Method:       http.MethodGet,
		Type:         t,
		Truncated:    truncated,
	}

	r.Domain = registrableDomain(r.Hostname)
	r.Tags = RequestTags(r.URLLowerCase)

	if r.PageHost != "" {
		r.PageDomain = registrableDomain(r.PageHost)
		r.ThirdParty = r.PageDomain != r.Domain
		r.StrictThirdParty = r.PageHost != r.Hostname
	}

	return r
}

// pageHostname returns the hostname of page, which is either a URL or a
// hostname.
func pageHostname(page string) (host string) {
	if page == "" {
		return ""
	}

	if strings.Contains(page, "//") {
		return ufnet.ExtractHostname(page)
	}

	return ufnet.NormalizeHost(page)
}

// HasQuery returns true if the request URL has a query string.
func (r *Request) HasQuery() (ok bool) {
	i := strings.IndexByte(r.URL, '?')
	if i == -1 {
		return false
	}

	hash := strings.IndexByte(r.URL, '#')

	return hash == -1 || hash > i
}

// registrableDomain returns the effective TLD plus one label of hostname, or
// hostname itself if it has no such domain.
func registrableDomain(hostname string) (domain string) {
	if domain = effectiveTLDPlusOne(hostname); domain != "" {
		return domain
	}

	return hostname
}

// effectiveTLDPlusOne is a faster version of publicsuffix.EffectiveTLDPlusOne
// that avoids using fmt.Errorf when the domain is less or equal the suffix.
func effectiveTLDPlusOne(hostname string) (domain string) {
	hostnameLen := len(hostname)
	if hostnameLen < 1 {
		return ""
	}

	if hostname[0] == '.' || hostname[hostnameLen-1] == '.' {
		return ""
	}

	suffix, _ := publicsuffix.PublicSuffix(hostname)

	i := hostnameLen - len(suffix) - 1
	if i < 0 || hostname[i] != '.' {
		return ""
	}

	return hostname[1+strings.LastIndex(hostname[:i], "."):]
}

// withoutPublicSuffix returns hostname without its public suffix and the dot
// before it.  ok is false if hostname is a public suffix itself.
func withoutPublicSuffix(hostname string) (rest string, ok bool) {
	suffix, _ := publicsuffix.PublicSuffix(hostname)

	i := len(hostname) - len(suffix) - 1
	if i <= 0 || hostname[i] != '.' {
		return "", false
	}

	return hostname[:i], true
}
