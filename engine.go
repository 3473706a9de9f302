// Package contentfilter matches network requests and pages against compiled
// filter lists and user rules.
package contentfilter

import (
	"fmt"

	"github.com/abpkit/contentfilter/filterlist"
	"github.com/abpkit/contentfilter/internal/lookup"
	"github.com/abpkit/contentfilter/rules"
	"github.com/abpkit/contentfilter/userrules"
)

// Verdict is the decision of the [Engine] about a request.
type Verdict uint8

// Verdict values.
const (
	// VerdictAllow means that the request goes through unchanged.  The
	// engine returns a nil *Result for it.
	VerdictAllow Verdict = iota
	// VerdictBlock means that the request must be cancelled.
	VerdictBlock
	// VerdictRedirect means that the request must be answered with a stub
	// resource.
	VerdictRedirect
	// VerdictModify means that the request goes through with a rewritten URL,
	// additional CSP policies, or both.
	VerdictModify
)

// String implements the [fmt.Stringer] interface for Verdict.
func (v Verdict) String() (s string) {
	switch v {
	case VerdictAllow:
		return "allow"
	case VerdictBlock:
		return "block"
	case VerdictRedirect:
		return "redirect"
	case VerdictModify:
		return "modify"
	default:
		return fmt.Sprintf("!bad_verdict_%d", v)
	}
}

// ClassUser is the class of results decided by user rules.
const ClassUser filterlist.Class = "user"

// Result is a non-allow decision of the [Engine].
type Result struct {
	// Filter is the filter that decided the request.  It is nil if the
	// decision comes from a user rule.
	Filter *rules.Filter

	// UserRule is the user rule that decided the request, if any.
	UserRule *userrules.Rule

	// Class is the class of the deciding filter or [ClassUser].
	Class filterlist.Class

	// Resource is the stub resource for [VerdictRedirect].
	Resource string

	// URL is the rewritten request URL for [VerdictModify].  It is empty if
	// the URL is not changed.
	URL string

	// CSP are the Content-Security-Policy values to add for [VerdictModify].
	CSP []string

	Verdict Verdict
}

// EngineConfig is the configuration structure for an [Engine].
type EngineConfig struct {
	// User is the container of user rules.  nil means no user rules.
	User *userrules.Container

	// Tables are the lookup tables of network filters by class.  A missing
	// class means no filters of that class.
	Tables map[filterlist.Class]lookup.Table
}

// Engine decides what happens to network requests.  It is immutable and safe
// for concurrent use.
type Engine struct {
	user      *userrules.Container
	important *Blocker
	normal    *Blocker

	redirect          lookup.Table
	redirectException lookup.Table
	modify            lookup.Table
	modifyException   lookup.Table

	tables map[filterlist.Class]lookup.Table
}

// NewEngine returns a new *Engine.  The tables of c must not be modified after
// the call.
func NewEngine(c *EngineConfig) (e *Engine) {
	tables := make(map[filterlist.Class]lookup.Table, len(filterlist.NetworkClasses))
	for _, class := range filterlist.NetworkClasses {
		t := c.Tables[class]
		if t == nil {
			t = lookup.NewFilterContainer()
		}

		tables[class] = t
	}

	user := c.User
	if user == nil {
		user = userrules.NewContainer(nil)
	}

	return &Engine{
		user:              user,
		important:         NewBlocker(tables[filterlist.ClassImportantAllow], tables[filterlist.ClassImportant]),
		normal:            NewBlocker(tables[filterlist.ClassAllow], tables[filterlist.ClassBlock]),
		redirect:          tables[filterlist.ClassRedirect],
		redirectException: tables[filterlist.ClassRedirectException],
		modify:            tables[filterlist.ClassModify],
		modifyException:   tables[filterlist.ClassModifyException],
		tables:            tables,
	}
}

// User returns the user rule container of e.
func (e *Engine) User() (c *userrules.Container) {
	return e.user
}

// WithUser returns a copy of e using the user rules of c.
func (e *Engine) WithUser(c *userrules.Container) (clone *Engine) {
	cloned := *e
	cloned.user = c

	return &cloned
}

// Len returns the number of network filters in e.
func (e *Engine) Len() (n int) {
	for _, t := range e.tables {
		n += t.Len()
	}

	return n
}

// Match returns the decision about r or nil if r must be allowed unchanged.
func (e *Engine) Match(r *rules.Request) (res *Result) {
	if rule := e.user.Get(r); rule != nil {
		switch rule.Response {
		case userrules.ResponseBlock:
			return &Result{
				UserRule: rule,
				Class:    ClassUser,
				Verdict:  VerdictBlock,
			}
		case userrules.ResponseAllow:
			return nil
		default:
			// Go on with the filters.
		}
	}

	allow, block := e.important.match(r)
	switch {
	case allow != nil:
		return e.allowOrModify(r)
	case block != nil:
		if e.isDocumentAllowed(r) {
			return nil
		}

		return e.blockOrRedirect(r, block, filterlist.ClassImportant)
	}

	_, block = e.normal.match(r)
	if block != nil {
		return e.blockOrRedirect(r, block, filterlist.ClassBlock)
	}

	return e.allowOrModify(r)
}

// isDocumentAllowed returns true if a document-level exception matches r.
func (e *Engine) isDocumentAllowed(r *rules.Request) (ok bool) {
	for _, f := range e.normal.allow.GetAll(r) {
		if f.IsDocumentAllow() {
			return true
		}
	}

	return false
}

// blockOrRedirect returns the result for r blocked by f of class.
func (e *Engine) blockOrRedirect(r *rules.Request, f *rules.Filter, class filterlist.Class) (res *Result) {
	redirects, _ := applyExceptions(e.redirect.GetAll(r), e.redirectException.GetAll(r))

	var best *rules.RedirectAction
	for _, rf := range redirects {
		a, ok := rf.Modify.(*rules.RedirectAction)
		if ok && a.Resource != "" && (best == nil || a.Priority > best.Priority) {
			best = a
		}
	}

	if best == nil {
		return &Result{
			Filter:  f,
			Class:   class,
			Verdict: VerdictBlock,
		}
	}

	return &Result{
		Filter:   f,
		Class:    class,
		Resource: best.Resource,
		Verdict:  VerdictRedirect,
	}
}

// allowOrModify returns the result for r not blocked by any filter.
func (e *Engine) allowOrModify(r *rules.Request) (res *Result) {
	mods := e.modify.GetAll(r)
	if len(mods) == 0 {
		return nil
	}

	if !r.HasQuery() || r.Truncated {
		mods = withoutKind(mods, rules.ModifyRemoveParam)
		if len(mods) == 0 {
			return nil
		}
	}

	mods, exempt := applyExceptions(mods, e.modifyException.GetAll(r))
	if len(mods) == 0 {
		return nil
	}

	url, changed := removeParams(r.URL, mods, exempt)
	csp := cspPolicies(mods)
	if !changed && len(csp) == 0 {
		return nil
	}

	res = &Result{
		Filter:  mods[0],
		Class:   filterlist.ClassModify,
		CSP:     csp,
		Verdict: VerdictModify,
	}

	if changed {
		res.URL = url
	}

	return res
}

// Explain returns every filter of every class matching r.  It is meant for
// debugging and is not used by [Engine.Match].
func (e *Engine) Explain(r *rules.Request) (matched map[filterlist.Class][]*rules.Filter) {
	matched = map[filterlist.Class][]*rules.Filter{}
	for class, t := range e.tables {
		if fs := t.GetAll(r); len(fs) > 0 {
			matched[class] = fs
		}
	}

	return matched
}
