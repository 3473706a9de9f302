package lookup

import "github.com/abpkit/contentfilter/rules"

// ElementContainer is a lookup table of element filters keyed by the tags of
// their domains.  Generic filters use the empty tag.
type ElementContainer struct {
	buckets map[string][]*rules.ElementFilter
	n       int
}

// NewElementContainer returns a new empty *ElementContainer.
func NewElementContainer() (c *ElementContainer) {
	return &ElementContainer{
		buckets: map[string][]*rules.ElementFilter{},
	}
}

// Add adds e to the container.
func (c *ElementContainer) Add(e *rules.ElementFilter) {
	for _, tag := range e.Tags() {
		c.buckets[tag] = append(c.buckets[tag], e)
	}

	c.n++
}

// Len returns the number of filters in the container.
func (c *ElementContainer) Len() (n int) {
	return c.n
}

// Get returns the filters applying to the page of r, which must be a request
// for the page itself.  Generic filters are only returned if useGeneric is
// true.
func (c *ElementContainer) Get(r *rules.Request, useGeneric bool) (result []*rules.ElementFilter) {
	// The filters are keyed by their normalized domains, so the keys must come
	// from the normalized hostname and not from the URL text.
	var seen map[*rules.ElementFilter]struct{}
	for _, tag := range rules.RequestTags(r.Hostname) {
		for _, e := range c.buckets[tag] {
			if !e.Match(r.Hostname) || (!useGeneric && e.Generic()) {
				continue
			}

			// Only scoped filters can be in several buckets.
			if !e.Generic() {
				if seen == nil {
					seen = map[*rules.ElementFilter]struct{}{}
				}

				if _, ok := seen[e]; ok {
					continue
				}

				seen[e] = struct{}{}
			}

			result = append(result, e)
		}
	}

	return result
}
