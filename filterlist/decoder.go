// Package filterlist decodes filter lists and keeps them compiled on disk.
package filterlist

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/abpkit/contentfilter/internal/ufnet"
	"github.com/abpkit/contentfilter/rules"
)

const (
	// maxLineLength is the maximum length of a list line.  Longer lines fail
	// the whole list, since they are a sign of a wrong file.
	maxLineLength = 1024 * 1024

	// listHeader is the optional first line of ABP lists.
	listHeader = "[Adblock"

	// bom is the UTF-8 byte order mark.
	bom = "\ufeff"
)

// elementRe matches cosmetic rules: the domains, the type character, and the
// body.
var elementRe = regexp.MustCompile(`^([^/|@"!]*?)#([@?$])?#(.+)$`)

// Metadata is the information about a list from its comments.
type Metadata struct {
	Title       string
	Homepage    string
	LastUpdated string
	Version     string

	// Expires is the update period the list asks for, or zero.
	Expires time.Duration
}

// Moved signals that a list has moved to another URL and should be fetched
// from there.
type Moved struct {
	URL string
}

// Result is the decoded list.
type Result struct {
	// Moved is not nil if the list has a "! Redirect:" comment.
	Moved *Moved

	// Sets are the network filters by class.  $badfilter records are under
	// the [Class.Bad] classes.
	Sets map[Class][]*rules.Filter

	// Elements are the cosmetic filters.
	Elements []*rules.ElementFilter

	// Errors are the lines that could not be decoded.
	Errors []*RuleSyntaxError

	Metadata Metadata

	// Lines is the number of lines read.
	Lines int

	// Rules is the number of filters produced.
	Rules int

	// Unsupported is the number of valid rules the engine cannot apply.
	Unsupported int
}

// Filters returns the number of network filters in the result.
func (res *Result) Filters() (n int) {
	for _, fs := range res.Sets {
		n += len(fs)
	}

	return n
}

// DecoderConfig is the configuration structure for a [Decoder].
type DecoderConfig struct {
	// Logger is used to log the lines that cannot be decoded.  It must not be
	// nil.
	Logger *slog.Logger
}

// Decoder decodes filter lists in the Adblock Plus format with the uBlock
// Origin and AdGuard extensions, as well as hosts files.
type Decoder struct {
	logger *slog.Logger
}

// NewDecoder returns a new properly initialized *Decoder.
func NewDecoder(c *DecoderConfig) (d *Decoder) {
	return &Decoder{
		logger: c.Logger,
	}
}

// Decode decodes a list read from r.  Malformed lines are skipped and reported
// in res.Errors; err is only returned if r fails.
func (d *Decoder) Decode(r io.Reader) (res *Result, err error) {
	res = &Result{
		Sets: map[Class][]*rules.Filter{},
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	for sc.Scan() {
		res.Lines++

		line := sc.Text()
		if res.Lines == 1 {
			line = strings.TrimPrefix(line, bom)
			if strings.HasPrefix(line, listHeader) {
				continue
			}
		}

		err = d.decodeLine(res, strings.TrimSpace(line))
		if err == nil {
			continue
		}

		if errors.Is(err, ErrUnsupportedRule) {
			res.Unsupported++

			continue
		}

		d.logger.Debug("skipping rule", "line", res.Lines, slogutil.KeyError, err)
		res.Errors = append(res.Errors, &RuleSyntaxError{
			Err:  err,
			Text: line,
			Line: res.Lines,
		})
	}

	err = sc.Err()
	if err != nil {
		return nil, fmt.Errorf("reading list: %w", err)
	}

	return res, nil
}

// decodeLine decodes a single trimmed line.
func (d *Decoder) decodeLine(res *Result, line string) (err error) {
	if line == "" {
		return nil
	}

	if line[0] == '!' {
		decodeComment(&res.Metadata, &res.Moved, line)

		return nil
	}

	if m := elementRe.FindStringSubmatch(line); m != nil {
		return d.decodeElement(res, m[1], m[2], m[3])
	}

	if line[0] == '#' {
		// Hosts file comments.
		return nil
	}

	if hosts, ok := hostsLine(line); ok {
		return d.decodeHosts(res, hosts)
	}

	return d.decodeNetwork(res, line)
}

// decodeComment sets the metadata from a "! Key: value" comment.
func decodeComment(md *Metadata, moved **Moved, line string) {
	key, value, ok := strings.Cut(line[1:], ":")
	if !ok {
		return
	}

	value = strings.TrimSpace(value)
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "title":
		md.Title = value
	case "homepage":
		md.Homepage = value
	case "last updated", "last modified":
		md.LastUpdated = value
	case "version":
		md.Version = value
	case "expires":
		md.Expires = decodeExpires(value)
	case "redirect":
		if value != "" {
			*moved = &Moved{URL: value}
		}
	}
}

// decodeExpires parses values like "4 days (update frequency)" and "12 hours".
// It returns zero if value cannot be parsed.
func decodeExpires(value string) (d time.Duration) {
	fields := strings.Fields(value)
	if len(fields) < 2 {
		return 0
	}

	n, err := strconv.Atoi(fields[0])
	if err != nil || n <= 0 {
		return 0
	}

	switch unit := strings.ToLower(fields[1]); {
	case strings.HasPrefix(unit, "hour"):
		return time.Duration(n) * time.Hour
	case strings.HasPrefix(unit, "day"):
		return time.Duration(n) * 24 * time.Hour
	default:
		return 0
	}
}

// decodeElement decodes a cosmetic rule.
func (d *Decoder) decodeElement(res *Result, domains, typ, body string) (err error) {
	body = strings.TrimSpace(body)
	switch {
	case typ == "?", typ == "$":
		// Procedural and style injection rules.
		return ErrUnsupportedRule
	case strings.HasPrefix(body, "+js"), strings.HasPrefix(body, "^"):
		// Scriptlets and HTML filters.
		return ErrUnsupportedRule
	}

	hide := typ != "@"

	var list []string
	for dom := range strings.SplitSeq(domains, ",") {
		dom = strings.TrimSpace(dom)
		if dom != "" && dom != "*" {
			list = append(list, dom)
		}
	}

	e := &rules.ElementFilter{
		Selector: body,
		Hide:     hide,
	}

	if len(list) == 0 {
		if !hide {
			// Generic exceptions would disable a hiding rule everywhere.
			return ErrUnsupportedRule
		}
	} else {
		e.Domains, err = rules.NewDomainMap(list...)
		if err != nil {
			return fmt.Errorf("element domains: %w", err)
		}
	}

	res.Elements = append(res.Elements, e)
	res.Rules++

	return nil
}

// hostsLine returns the hostnames of a hosts file line like
// "0.0.0.0 ads.example.org".
func hostsLine(line string) (hosts []string, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil, false
	}

	if _, err := netip.ParseAddr(fields[0]); err != nil {
		return nil, false
	}

	for _, h := range fields[1:] {
		if strings.HasPrefix(h, "#") {
			break
		}

		hosts = append(hosts, h)
	}

	return hosts, true
}

// decodeHosts adds a block filter for every hostname of a hosts file line.
func (d *Decoder) decodeHosts(res *Result, hosts []string) (err error) {
	var errs []error
	for _, h := range hosts {
		h = ufnet.NormalizeHost(h)
		switch {
		case isLocalHostname(h):
			continue
		case !ufnet.IsDomainName(h) || !strings.Contains(h, "."):
			errs = append(errs, fmt.Errorf("bad hostname %q", h))

			continue
		}

		err = d.add(res, ClassBlock, &rules.FilterConfig{
			Text:    h,
			Pattern: h,
			Kind:    rules.MatchExactHost,
		})
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// isLocalHostname returns true for the names that hosts files map to the
// loopback address.
func isLocalHostname(h string) (ok bool) {
	switch h {
	case "localhost", "localhost.localdomain", "local", "broadcasthost", "ip6-localhost",
		"ip6-loopback", "0.0.0.0":
		return true
	default:
		return false
	}
}

// decodeNetwork decodes a network rule.
func (d *Decoder) decodeNetwork(res *Result, text string) (err error) {
	patternText, options, allow := splitRule(text)
	o, err := parseOptions(options, allow)
	if err != nil {
		return err
	}

	if o.badfilter {
		text = removeOption(text, badfilterOption)
	}

	if patternText == "*" {
		patternText = ""
	}

	var domains *rules.DomainMap
	if o.domains != "" {
		domains, err = rules.ParseDomainMap(o.domains, domainSeparator)
		if err != nil {
			return fmt.Errorf("domain option: %w", err)
		}
	}

	if patternText == "" &&
		domains == nil &&
		o.modify == nil &&
		o.elementType == 0 &&
		(o.contentType == 0 || o.contentType == rules.TypeAllNetwork) {
		return rules.ErrTooWideRule
	}

	denyallow, err := parseDenyallow(o.denyallow)
	if err != nil {
		return err
	}

	kind, pattern := rules.ParsePattern(patternText, text == patternText)
	conf := &rules.FilterConfig{
		Domains:     domains,
		Modify:      o.modify,
		Text:        text,
		Pattern:     pattern,
		Kind:        kind,
		ContentType: o.contentType,
		Party:       o.party,
		MatchCase:   o.matchCase,
		Allow:       allow,
		Important:   o.important,
	}

	if o.elementType != 0 {
		conf.ContentType = o.elementType
		conf.Modify = nil

		return d.addBad(res, ClassElementDisable, o.badfilter, conf)
	}

	if o.blockOption != "" {
		blockConf := *conf
		blockConf.Modify = nil

		err = d.addBad(res, classOf(&blockConf), o.badfilter, &blockConf)
		if err != nil {
			return err
		}

		conf.Important = false
	}

	err = d.addBad(res, classOf(conf), o.badfilter, conf)
	if err != nil {
		return err
	}

	suffix := ""
	if len(o.rest) > 0 {
		suffix = string(optionsDelimiter) + strings.Join(o.rest, string(optionsSeparator))
	}

	for _, host := range denyallow {
		err = d.decodeNetwork(res, maskAllow+"||"+host+"^"+suffix)
		if err != nil {
			return fmt.Errorf("denyallow exception for %q: %w", host, err)
		}
	}

	return nil
}

// parseDenyallow returns the validated hostnames of a denyallow option value.
func parseDenyallow(value string) (hosts []string, err error) {
	if value == "" {
		return nil, nil
	}

	for h := range strings.SplitSeq(value, string(domainSeparator)) {
		h = ufnet.NormalizeHost(h)
		if !ufnet.IsDomainName(h) {
			return nil, fmt.Errorf("denyallow: bad hostname %q", h)
		}

		hosts = append(hosts, h)
	}

	return hosts, nil
}

// classOf returns the class a network filter is routed to.
func classOf(c *rules.FilterConfig) (class Class) {
	_, isRedirect := c.Modify.(*rules.RedirectAction)

	switch {
	case !c.Allow && c.Modify != nil && isRedirect:
		return ClassRedirect
	case !c.Allow && c.Modify != nil:
		return ClassModify
	case !c.Allow && c.Important:
		return ClassImportant
	case !c.Allow:
		return ClassBlock
	case c.Modify != nil && isRedirect:
		return ClassRedirectException
	case c.Modify != nil:
		return ClassModifyException
	case c.Important:
		return ClassImportantAllow
	default:
		return ClassAllow
	}
}

// addBad adds a filter to class, or to its $badfilter class if bad is true.
func (d *Decoder) addBad(res *Result, class Class, bad bool, c *rules.FilterConfig) (err error) {
	if bad {
		class = class.Bad()
	}

	return d.add(res, class, c)
}

// add builds a filter and adds it to class.
func (d *Decoder) add(res *Result, class Class, c *rules.FilterConfig) (err error) {
	f, err := rules.NewFilter(c)
	if err != nil {
		return err
	}

	res.Sets[class] = append(res.Sets[class], f)
	res.Rules++

	return nil
}

// removeOption returns the rule text without the option with the given name.
func removeOption(text, name string) (res string) {
	pattern, options, allow := splitRule(text)
	if allow {
		pattern = maskAllow + pattern
	}

	var kept []string
	for _, raw := range splitWithEscapeCharacter(options, optionsSeparator, escapeCharacter) {
		optName, _, _ := strings.Cut(raw, "=")
		if !strings.EqualFold(strings.TrimSpace(optName), name) {
			kept = append(kept, raw)
		}
	}

	if len(kept) == 0 {
		return pattern
	}

	return pattern + string(optionsDelimiter) + strings.Join(kept, string(optionsSeparator))
}
