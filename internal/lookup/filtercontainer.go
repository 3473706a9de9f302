package lookup

import (
	"strings"

	"github.com/abpkit/contentfilter/rules"
)

// FilterContainer is a lookup table of network filters keyed by tags.  Filters
// anchored to a host are keyed by that host and are found by walking the
// request hostname and its parent domains, the rest are found through the
// request tags.
//
// A FilterContainer must not be modified after it has been published to
// readers.
type FilterContainer struct {
	// buckets maps tags to filters in the order of insertion.
	buckets map[string][]*rules.Filter

	// texts is used to ignore duplicate filters.
	texts map[string]struct{}

	// n is the number of filters.
	n int

	// domainOnly is true if every tag is a domain, so that requests which
	// fail the domain walk cannot match.
	domainOnly bool
}

// type check
var _ Table = (*FilterContainer)(nil)

// NewFilterContainer returns a new empty *FilterContainer.
func NewFilterContainer() (c *FilterContainer) {
	return &FilterContainer{
		buckets:    map[string][]*rules.Filter{},
		texts:      map[string]struct{}{},
		domainOnly: true,
	}
}

// Add implements the [Table] interface for *FilterContainer.
func (c *FilterContainer) Add(f *rules.Filter) {
	c.AddWithTag(f.Tag(), f)
}

// AddWithTag adds f to the bucket of tag.  Filters with a text that is already
// in the container are ignored.
func (c *FilterContainer) AddWithTag(tag string, f *rules.Filter) {
	key := tag + "\x00" + f.Text
	if _, ok := c.texts[key]; ok {
		return
	}

	c.texts[key] = struct{}{}
	c.buckets[tag] = append(c.buckets[tag], f)
	c.n++

	if !strings.Contains(tag, ".") {
		c.domainOnly = false
	}
}

// Len implements the [Table] interface for *FilterContainer.
func (c *FilterContainer) Len() (n int) {
	return c.n
}

// Get implements the [Table] interface for *FilterContainer.
func (c *FilterContainer) Get(r *rules.Request) (f *rules.Filter) {
	for host := r.Hostname; strings.Contains(host, "."); host = parentDomain(host) {
		if f = matchFirst(c.buckets[host], r); f != nil {
			return f
		}
	}

	if c.domainOnly {
		return nil
	}

	for _, tag := range r.Tags {
		if f = matchFirst(c.buckets[tag], r); f != nil {
			return f
		}
	}

	return nil
}

// GetAll implements the [Table] interface for *FilterContainer.
func (c *FilterContainer) GetAll(r *rules.Request) (result []*rules.Filter) {
	for host := r.Hostname; strings.Contains(host, "."); host = parentDomain(host) {
		result = appendMatching(result, c.buckets[host], r)
	}

	if c.domainOnly {
		return result
	}

	for _, tag := range r.Tags {
		result = appendMatching(result, c.buckets[tag], r)
	}

	return result
}

// parentDomain returns host without its leftmost label.
func parentDomain(host string) (parent string) {
	return host[strings.IndexByte(host, '.')+1:]
}

// matchFirst returns the first filter of bucket matching r.
func matchFirst(bucket []*rules.Filter, r *rules.Request) (f *rules.Filter) {
	for _, f = range bucket {
		if f.Match(r) {
			return f
		}
	}

	return nil
}

// appendMatching appends the filters of bucket matching r to result.
func appendMatching(
	result []*rules.Filter,
	bucket []*rules.Filter,
	r *rules.Request,
) (res []*rules.Filter) {
	for _, f := range bucket {
		if f.Match(r) {
			result = append(result, f)
		}
	}

	return result
}
