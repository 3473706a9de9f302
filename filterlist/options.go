package filterlist

import (
	"fmt"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/abpkit/contentfilter/rules"
)

// Network rule syntax.
const (
	maskAllow         = "@@"
	optionsDelimiter  = '$'
	escapeCharacter   = '\\'
	optionsSeparator  = ','
	domainSeparator   = '|'
	regexDelimiter    = "/"
	denyallowOption   = "denyallow"
	badfilterOption   = "badfilter"
	redirectOption    = "redirect"
	modifyCSPTypes    = rules.TypeDocument | rules.TypeSubdocument
	maxDenyallowHosts = 64
)

// ruleOptions are the parsed options of a network rule.
type ruleOptions struct {
	// modify is the side effect set by csp, redirect, and removeparam
	// options.
	modify rules.ModifyAction

	// domains is the value of the domain option.
	domains string

	// denyallow is the value of the denyallow option.
	denyallow string

	// blockOption is the name of the redirect, empty, or mp4 option of a
	// blocking rule.  These options also block the request.
	blockOption string

	// rest are the raw options except denyallow, used to build the
	// exceptions denyallow expands to.
	rest []string

	contentType rules.ContentType
	elementType rules.ContentType
	party       rules.Party

	matchCase bool
	important bool
	badfilter bool
}

// splitRule splits a network rule into the pattern and the options.  The
// options start after the last unescaped '$' unless the whole rule is a
// regular expression.
func splitRule(text string) (pattern, options string, allow bool) {
	if rest, ok := strings.CutPrefix(text, maskAllow); ok {
		allow, text = true, rest
	}

	pattern = text
	if strings.HasPrefix(text, regexDelimiter) && strings.HasSuffix(text, regexDelimiter) {
		return pattern, "", allow
	}

	foundEscaped := false
	for i := len(text) - 1; i >= 0; i-- {
		if text[i] != optionsDelimiter {
			continue
		}

		if i > 0 && text[i-1] == escapeCharacter {
			foundEscaped = true

			continue
		}

		pattern, options = text[:i], text[i+1:]
		if foundEscaped {
			options = strings.ReplaceAll(options, `\$`, "$")
		}

		break
	}

	return pattern, options, allow
}

// splitWithEscapeCharacter splits string by the specified separator if it is
// not escaped.
func splitWithEscapeCharacter(str string, sep, escape byte) (parts []string) {
	if str == "" {
		return nil
	}

	var sb strings.Builder
	escaped := false
	for i := range len(str) {
		c := str[i]

		switch {
		case c == escape:
			if escaped {
				sb.WriteByte(escape)
			}

			escaped = true
		case c == sep:
			if escaped {
				sb.WriteByte(c)
				escaped = false
			} else {
				parts = append(parts, sb.String())
				sb.Reset()
			}
		default:
			if escaped {
				escaped = false
				sb.WriteByte(escape)
			}

			sb.WriteByte(c)
		}
	}

	if escaped {
		sb.WriteByte(escape)
	}

	return append(parts, sb.String())
}

// parseOptions parses the options of a network rule.  allow is true for
// exception rules.
func parseOptions(options string, allow bool) (o *ruleOptions, err error) {
	o = &ruleOptions{}
	for _, raw := range splitWithEscapeCharacter(options, optionsSeparator, escapeCharacter) {
		name, value, hasValue := strings.Cut(raw, "=")
		name = strings.TrimSpace(name)
		if name == "" || strings.Trim(name, "_") == "" {
			// Lists use "$_" and "$__" as no-op options to work around broken
			// parsers.
			continue
		}

		if strings.EqualFold(name, denyallowOption) {
			o.denyallow = value

			continue
		}

		o.rest = append(o.rest, raw)

		inverse := false
		if rest, ok := strings.CutPrefix(name, "~"); ok {
			inverse, name = true, rest
		}

		name = strings.ToLower(name)
		if t, ok := rules.ContentTypeByName(name); ok {
			err = o.setType(t, inverse)
		} else {
			err = o.setOption(name, value, hasValue, inverse, allow)
		}

		if err != nil {
			return nil, fmt.Errorf("option %q: %w", raw, err)
		}
	}

	err = o.finish(allow)
	if err != nil {
		return nil, err
	}

	return o, nil
}

// setType applies a content type option.
func (o *ruleOptions) setType(t rules.ContentType, inverse bool) (err error) {
	if t&rules.TypeAllElement != 0 {
		if inverse {
			return ErrUnsupportedRule
		}

		o.elementType |= t

		return nil
	}

	if inverse {
		if o.contentType == 0 {
			o.contentType = rules.TypeAllNetwork
		}

		o.contentType &^= t
	} else {
		o.contentType |= t
	}

	return nil
}

// setOption applies an option that is not a content type.
func (o *ruleOptions) setOption(name, value string, hasValue, inverse, allow bool) (err error) {
	switch name {
	case "match-case":
		o.matchCase = !inverse
	case "domain":
		if value == "" {
			return errors.ErrEmptyValue
		}

		o.domains = value
	case "third-party", "3p":
		o.party = pickParty(inverse, rules.PartyFirst, rules.PartyThird)
	case "first-party", "1p":
		o.party = pickParty(inverse, rules.PartyThird, rules.PartyFirst)
	case "strict3p":
		o.party = pickParty(inverse, rules.PartyStrictFirst, rules.PartyStrictThird)
	case "strict1p":
		o.party = pickParty(inverse, rules.PartyStrictThird, rules.PartyStrictFirst)
	case "sitekey":
		// Not applicable outside of the browser.
	case "important":
		o.important = true
	case "all":
		o.contentType |= rules.TypeAllNetwork
	case badfilterOption:
		o.badfilter = true
	case "genericblock":
		return ErrUnsupportedRule
	case "removeparam", "queryprune":
		return o.setModify(rules.ModifyRemoveParam, value)
	case "csp":
		if !hasValue && !allow {
			return errors.ErrEmptyValue
		}

		o.contentType |= modifyCSPTypes

		return o.setModify(rules.ModifyCSP, value)
	case "redirect-rule":
		return o.setRedirect(value, allow)
	case redirectOption:
		o.setBlockOption(name, allow)

		return o.setRedirect(value, allow)
	case "empty":
		o.setBlockOption(name, allow)

		return o.setRedirect(rules.ResourceEmpty, allow)
	case "mp4":
		o.setBlockOption(name, allow)
		o.contentType |= rules.TypeMedia

		return o.setRedirect(rules.ResourceNoopMP4, allow)
	default:
		return ErrUnknownOption
	}

	return nil
}

// setBlockOption remembers the name of an option that makes a blocking rule
// both block and redirect.
func (o *ruleOptions) setBlockOption(name string, allow bool) {
	if !allow {
		o.blockOption = name
	}
}

// pickParty returns inv if inverse is true and def otherwise.
func pickParty(inverse bool, inv, def rules.Party) (p rules.Party) {
	if inverse {
		return inv
	}

	return def
}

// setRedirect sets a redirect modify action.  Only exceptions may omit the
// resource.
func (o *ruleOptions) setRedirect(value string, allow bool) (err error) {
	if value == "" && !allow {
		return errors.ErrEmptyValue
	}

	return o.setModify(rules.ModifyRedirect, value)
}

// setModify sets the modify action of the rule.  A rule can only have one.
func (o *ruleOptions) setModify(k rules.ModifyKind, value string) (err error) {
	if o.modify != nil {
		return fmt.Errorf("%s conflicts with %s", k, o.modify.Kind())
	}

	o.modify, err = rules.NewModifyAction(k, value)

	return err
}

// finish validates the options after all of them are parsed.
func (o *ruleOptions) finish(allow bool) (err error) {
	if o.contentType&rules.TypePopup != 0 {
		if o.contentType == rules.TypePopup {
			return ErrUnsupportedRule
		}

		o.contentType &^= rules.TypePopup
	}

	if o.denyallow == "" {
		return nil
	}

	switch {
	case o.domains == "":
		return errors.Error("denyallow: requires the domain option")
	case strings.ContainsAny(o.denyallow, "*~"):
		return errors.Error("denyallow: wildcards and negation are not supported")
	case strings.Count(o.denyallow, string(domainSeparator)) >= maxDenyallowHosts:
		return errors.Error("denyallow: too many domains")
	case allow:
		return errors.Error("denyallow: not allowed in exceptions")
	default:
		return nil
	}
}
