package contentfilter

import (
	"strings"
	"sync/atomic"

	"github.com/abpkit/contentfilter/internal/lookup"
	"github.com/abpkit/contentfilter/rules"
	"github.com/abpkit/contentfilter/userrules"
)

// cosmeticEntry is the single cached result of [CosmeticFiltering.LoadScript].
type cosmeticEntry struct {
	pageURL string
	script  string
	ok      bool
}

// CosmeticFiltering builds the scripts that remove hidden page elements.  It
// is safe for concurrent use.
type CosmeticFiltering struct {
	disable  lookup.Table
	elements *lookup.ElementContainer
	user     *userrules.Container
	last     *atomic.Pointer[cosmeticEntry]
}

// NewCosmeticFiltering returns a new *CosmeticFiltering.  disable is the table
// of element-disable filters, elements is the selector index.  user may be
// nil.  Neither may be modified after the call.
func NewCosmeticFiltering(
	disable lookup.Table,
	elements *lookup.ElementContainer,
	user *userrules.Container,
) (c *CosmeticFiltering) {
	return &CosmeticFiltering{
		disable:  disable,
		elements: elements,
		user:     user,
		last:     &atomic.Pointer[cosmeticEntry]{},
	}
}

// LoadScript returns the element removal script for the page at pageURL.  ok
// is false if nothing on the page must be hidden.
func (c *CosmeticFiltering) LoadScript(pageURL string) (script string, ok bool) {
	if e := c.last.Load(); e != nil && e.pageURL == pageURL {
		return e.script, e.ok
	}

	script, ok = c.build(pageURL)
	c.last.Store(&cosmeticEntry{
		pageURL: pageURL,
		script:  script,
		ok:      ok,
	})

	return script, ok
}

// Selectors returns the selectors to hide on the page at pageURL in index
// order.
func (c *CosmeticFiltering) Selectors(pageURL string) (selectors []string) {
	if c.user.IsPageAllowed(pageURL) {
		return nil
	}

	r := rules.NewRequest(pageURL, pageURL, rules.TypeAllElement)

	useGeneric := true
	if f := c.disable.Get(r); f != nil {
		if f.ContentType&rules.TypeElementHide != 0 {
			return nil
		}

		useGeneric = false
	}

	filters := c.elements.Get(r, useGeneric)

	// skip holds the excepted selectors and the ones already emitted.
	skip := map[string]struct{}{}
	for _, f := range filters {
		if !f.Hide {
			skip[f.Selector] = struct{}{}
		}
	}

	for _, f := range filters {
		if !f.Hide {
			continue
		}

		if _, ok := skip[f.Selector]; !ok {
			skip[f.Selector] = struct{}{}
			selectors = append(selectors, f.Selector)
		}
	}

	return selectors
}

// build returns the removal script for the page at pageURL.
func (c *CosmeticFiltering) build(pageURL string) (script string, ok bool) {
	selectors := c.Selectors(pageURL)
	if len(selectors) == 0 {
		return "", false
	}

	var sb strings.Builder
	sb.WriteString("(function(){const b=[")
	for i, sel := range selectors {
		if i > 0 {
			sb.WriteByte(',')
		}

		writeJSString(&sb, sel)
	}

	sb.WriteString("];b.forEach(a=>{document.querySelectorAll(a)?.forEach(n=>{n.remove()})})})()")

	return sb.String(), true
}

// writeJSString writes s as a single-quoted javascript string literal.
func writeJSString(sb *strings.Builder, s string) {
	sb.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'':
			sb.WriteString(`\'`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '<':
			// Keeps "</script>" out of inline scripts.
			sb.WriteString(`\x3c`)
		case '\u2028':
			sb.WriteString(`\u2028`)
		case '\u2029':
			sb.WriteString(`\u2029`)
		default:
			sb.WriteRune(r)
		}
	}

	sb.WriteByte('\'')
}
