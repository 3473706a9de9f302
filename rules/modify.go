package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

// ModifyKind is the kind of a [ModifyAction].
type ModifyKind uint8

// ModifyKind values.
const (
	ModifyCSP ModifyKind = iota + 1
	ModifyRedirect
	ModifyRemoveParam
)

// String implements the [fmt.Stringer] interface for ModifyKind.
func (k ModifyKind) String() (s string) {
	switch k {
	case ModifyCSP:
		return "csp"
	case ModifyRedirect:
		return "redirect"
	case ModifyRemoveParam:
		return "removeparam"
	default:
		return fmt.Sprintf("!bad_modify_kind_%d", k)
	}
}

// ModifyAction is a side effect attached to a filter: a CSP header to add, a
// stub resource to redirect to, or query parameters to strip.  Its
// implementations are [*CSPAction], [*RedirectAction], and
// [*RemoveParamAction].
type ModifyAction interface {
	// Kind returns the kind of the action.
	Kind() (k ModifyKind)

	// Param returns the parameter exception filters are compared by.  An
	// exception with an empty parameter cancels every action of its kind.
	Param() (p string)

	// Value returns the option value the action was parsed from.  It is
	// accepted by [NewModifyAction].
	Value() (v string)

	// isModifyAction seals the interface.
	isModifyAction()
}

// NewModifyAction parses the option value of a modify action of kind k.
func NewModifyAction(k ModifyKind, value string) (a ModifyAction, err error) {
	switch k {
	case ModifyCSP:
		return &CSPAction{Policy: value}, nil
	case ModifyRedirect:
		return newRedirectAction(value)
	case ModifyRemoveParam:
		return newRemoveParamAction(value)
	default:
		return nil, fmt.Errorf("modify kind: %w: %d", errors.ErrBadEnumValue, k)
	}
}

// CSPAction adds a Content-Security-Policy header to document responses.
type CSPAction struct {
	Policy string
}

// type check
var _ ModifyAction = (*CSPAction)(nil)

// Kind implements the [ModifyAction] interface for *CSPAction.
func (a *CSPAction) Kind() (k ModifyKind) { return ModifyCSP }

// Param implements the [ModifyAction] interface for *CSPAction.
func (a *CSPAction) Param() (p string) { return a.Policy }

// Value implements the [ModifyAction] interface for *CSPAction.
func (a *CSPAction) Value() (v string) { return a.Policy }

// isModifyAction implements the [ModifyAction] interface for *CSPAction.
func (a *CSPAction) isModifyAction() {}

// RedirectAction replaces a blocked response with a stub resource.  Among
// several matching actions the one with the highest priority wins.
type RedirectAction struct {
	// Resource is the canonical stub resource name, or empty for exceptions
	// that cancel every redirect.
	Resource string

	Priority int
}

// type check
var _ ModifyAction = (*RedirectAction)(nil)

// newRedirectAction parses values like "noopjs" and "noopjs:10".
func newRedirectAction(value string) (a *RedirectAction, err error) {
	a = &RedirectAction{}
	if value == "" {
		return a, nil
	}

	name := value
	if i := strings.LastIndexByte(value, ':'); i != -1 {
		prio, convErr := strconv.Atoi(value[i+1:])
		if convErr == nil {
			name, a.Priority = value[:i], prio
		}
	}

	res, ok := CanonicalResource(name)
	if !ok {
		return nil, fmt.Errorf("unknown redirect resource %q", name)
	}

	a.Resource = res

	return a, nil
}

// Kind implements the [ModifyAction] interface for *RedirectAction.
func (a *RedirectAction) Kind() (k ModifyKind) { return ModifyRedirect }

// Param implements the [ModifyAction] interface for *RedirectAction.
func (a *RedirectAction) Param() (p string) { return a.Resource }

// Value implements the [ModifyAction] interface for *RedirectAction.
func (a *RedirectAction) Value() (v string) {
	if a.Priority == 0 {
		return a.Resource
	}

	return a.Resource + ":" + strconv.Itoa(a.Priority)
}

// isModifyAction implements the [ModifyAction] interface for *RedirectAction.
func (a *RedirectAction) isModifyAction() {}

// RemoveParamAction strips query parameters from a request URL.
type RemoveParamAction struct {
	// Regexp, if not nil, selects parameters by name instead of Name.
	Regexp *regexp.Regexp

	// Name is the parameter to strip.  If both Name and Regexp are empty,
	// every parameter is stripped.
	Name string

	// Inverse makes the action strip every parameter except the selected
	// ones.
	Inverse bool

	value string
}

// type check
var _ ModifyAction = (*RemoveParamAction)(nil)

// newRemoveParamAction parses values like "", "utm_source", "~id", and
// "/^utm_/".
func newRemoveParamAction(value string) (a *RemoveParamAction, err error) {
	a = &RemoveParamAction{value: value}

	v := value
	if rest, ok := strings.CutPrefix(v, "~"); ok {
		a.Inverse, v = true, rest
	}

	if len(v) > 2 && v[0] == '/' && v[len(v)-1] == '/' {
		a.Regexp, err = regexp.Compile(v[1 : len(v)-1])
		if err != nil {
			return nil, fmt.Errorf("removeparam regexp: %w", err)
		}

		return a, nil
	}

	a.Name = v

	return a, nil
}

// Kind implements the [ModifyAction] interface for *RemoveParamAction.
func (a *RemoveParamAction) Kind() (k ModifyKind) { return ModifyRemoveParam }

// Param implements the [ModifyAction] interface for *RemoveParamAction.
func (a *RemoveParamAction) Param() (p string) { return a.value }

// Value implements the [ModifyAction] interface for *RemoveParamAction.
func (a *RemoveParamAction) Value() (v string) { return a.value }

// isModifyAction implements the [ModifyAction] interface for
// *RemoveParamAction.
func (a *RemoveParamAction) isModifyAction() {}

// MatchParam returns true if the query parameter name must be stripped.
func (a *RemoveParamAction) MatchParam(name string) (ok bool) {
	if a.Regexp == nil && a.Name == "" {
		return true
	}

	if a.Regexp != nil {
		ok = a.Regexp.MatchString(name)
	} else {
		ok = name == a.Name
	}

	return ok != a.Inverse
}
