package userrules

import (
	"slices"
	"strings"

	"github.com/abpkit/contentfilter/rules"
	"github.com/armon/go-radix"
)

// Container is an immutable index of user rules by page domain.  It is safe
// for concurrent use.
type Container struct {
	// tree maps reversed page domains to []*Rule.  Global rules are under the
	// empty key.
	tree *radix.Tree
	n    int
}

// NewContainer returns a container of rs.  Rules must be normalized, see
// [Rule.Normalize].
func NewContainer(rs []Rule) (c *Container) {
	c = &Container{
		tree: radix.New(),
	}

	rs = slices.Clone(rs)
	for i := range rs {
		r := &rs[i]
		key := pageKey(r.PageDomain)

		var bucket []*Rule
		if v, ok := c.tree.Get(key); ok {
			bucket = v.([]*Rule)
		}

		if slices.ContainsFunc(bucket, func(other *Rule) (ok bool) { return *other == *r }) {
			continue
		}

		c.tree.Insert(key, append(bucket, r))
		c.n++
	}

	return c
}

// pageKey returns the tree key of a page domain: the labels in reverse order,
// each followed by a dot, so that only whole labels share a prefix.
func pageKey(domain string) (key string) {
	if domain == "" {
		return ""
	}

	labels := strings.Split(domain, ".")
	slices.Reverse(labels)

	return strings.Join(labels, ".") + "."
}

// Len returns the number of rules in c.
func (c *Container) Len() (n int) {
	return c.n
}

// Get returns the most specific rule matching r, or nil if there is none.
func (c *Container) Get(r *rules.Request) (rule *Rule) {
	if c == nil || c.n == 0 {
		return nil
	}

	c.tree.WalkPath(pageKey(r.PageHost), func(_ string, v any) (stop bool) {
		for _, cand := range v.([]*Rule) {
			if cand.Match(r) && (rule == nil || moreSpecific(cand, rule)) {
				rule = cand
			}
		}

		return false
	})

	return rule
}

// IsPageAllowed returns true if the user disabled filtering on the page with
// the given URL.
func (c *Container) IsPageAllowed(pageURL string) (ok bool) {
	r := rules.NewRequest(pageURL, pageURL, rules.TypeAllNetwork)
	rule := c.Get(r)

	return rule != nil && rule.Response == ResponseAllow && rule.RequestDomain == ""
}

// Rules returns every rule in c ordered by page domain.
func (c *Container) Rules() (rs []Rule) {
	if c == nil {
		return nil
	}

	c.tree.Walk(func(_ string, v any) (stop bool) {
		for _, r := range v.([]*Rule) {
			rs = append(rs, *r)
		}

		return false
	})

	return rs
}
