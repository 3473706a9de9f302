package rules

import (
	"fmt"
	"slices"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/abpkit/contentfilter/internal/ufnet"
)

// ErrEmptyDomains is returned when a domain list has no entries.
const ErrEmptyDomains errors.Error = "empty domain list"

// wildcardSuffix marks entries like "example.*" that match the name under any
// public suffix.
const wildcardSuffix = ".*"

// DomainMap is the domain scope of a filter: a mapping of domains to include
// or exclude flags.  If any entry includes, the scope only matches hosts under
// an included domain; otherwise it matches every host except the excluded
// ones.  The most specific entry for a host decides.
//
// A map with a single entry keeps it inline, which is the common case for
// cosmetic rules and $domain options.
type DomainMap struct {
	// entries is nil when the map has a single plain entry.
	entries map[string]bool

	// wildcards holds "name.*" entries by name.
	wildcards map[string]bool

	single      string
	singleValue bool

	include bool
}

// ParseDomainMap parses a sep-separated list of domains, each optionally
// prefixed with '~' to exclude it.  Entries are normalized to lower case and
// their ASCII form.
func ParseDomainMap(list string, sep byte) (m *DomainMap, err error) {
	if list == "" {
		return nil, ErrEmptyDomains
	}

	return NewDomainMap(strings.Split(list, string(sep))...)
}

// NewDomainMap returns a domain map of the given entries.  Every entry is a
// domain name, optionally prefixed with '~', or a "name.*" wildcard.
func NewDomainMap(domains ...string) (m *DomainMap, err error) {
	if len(domains) == 0 {
		return nil, ErrEmptyDomains
	}

	m = &DomainMap{}
	plain := make(map[string]bool, len(domains))
	for _, d := range domains {
		d = strings.TrimSpace(d)

		value := true
		if strings.HasPrefix(d, "~") {
			value = false
			d = d[1:]
		}

		if name, ok := strings.CutSuffix(d, wildcardSuffix); ok {
			name = ufnet.NormalizeHost(name)
			if !ufnet.IsDomainName(name) {
				return nil, fmt.Errorf("invalid wildcard domain %q", d)
			}

			if m.wildcards == nil {
				m.wildcards = map[string]bool{}
			}

			m.wildcards[name] = value
		} else {
			d = ufnet.NormalizeHost(d)
			if !ufnet.IsDomainName(d) {
				return nil, fmt.Errorf("invalid domain %q", d)
			}

			plain[d] = value
		}

		m.include = m.include || value
	}

	if len(plain) == 1 {
		for d, v := range plain {
			m.single, m.singleValue = d, v
		}
	} else if len(plain) > 1 {
		m.entries = plain
	}

	return m, nil
}

// Include returns true if the map has at least one including entry.
func (m *DomainMap) Include() (ok bool) {
	return m.include
}

// Match returns true if host is within the scope.  An empty host only matches
// maps without including entries.
func (m *DomainMap) Match(host string) (ok bool) {
	if host == "" {
		return !m.include
	}

	if v, found := m.lookupWalk(host, m.lookup); found {
		return v
	}

	if len(m.wildcards) > 0 {
		rest, hasSuffix := withoutPublicSuffix(host)
		if hasSuffix {
			if v, found := m.lookupWalk(rest, m.lookupWildcard); found {
				return v
			}
		}
	}

	return !m.include
}

// lookupWalk calls lookup for host and each of its parent domains, returning
// the first found value.
func (m *DomainMap) lookupWalk(
	host string,
	lookup func(d string) (v, ok bool),
) (v, found bool) {
	for {
		if v, found = lookup(host); found {
			return v, true
		}

		i := strings.IndexByte(host, '.')
		if i == -1 {
			return false, false
		}

		host = host[i+1:]
	}
}

// lookup returns the value of a plain entry.
func (m *DomainMap) lookup(d string) (v, ok bool) {
	if m.entries == nil {
		if m.single != "" && d == m.single {
			return m.singleValue, true
		}

		return false, false
	}

	v, ok = m.entries[d]

	return v, ok
}

// lookupWildcard returns the value of a wildcard entry.
func (m *DomainMap) lookupWildcard(name string) (v, ok bool) {
	v, ok = m.wildcards[name]

	return v, ok
}

// Domains returns the included entries, wildcards with their ".*" suffix, in
// sorted order.
func (m *DomainMap) Domains() (domains []string) {
	m.rangeEntries(func(d string, v bool) {
		if v {
			domains = append(domains, d)
		}
	})
	slices.Sort(domains)

	return domains
}

// rangeEntries calls f for every entry.
func (m *DomainMap) rangeEntries(f func(d string, v bool)) {
	if m.single != "" {
		f(m.single, m.singleValue)
	}

	for d, v := range m.entries {
		f(d, v)
	}

	for name, v := range m.wildcards {
		f(name+wildcardSuffix, v)
	}
}

// String implements the [fmt.Stringer] interface for *DomainMap.  The result
// is the canonical '|'-separated form accepted by [ParseDomainMap].
func (m *DomainMap) String() (s string) {
	var parts []string
	m.rangeEntries(func(d string, v bool) {
		if !v {
			d = "~" + d
		}

		parts = append(parts, d)
	})

	slices.SortFunc(parts, func(a, b string) (res int) {
		return strings.Compare(strings.TrimPrefix(a, "~"), strings.TrimPrefix(b, "~"))
	})

	return strings.Join(parts, "|")
}
