package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/abpkit/contentfilter"
	"github.com/abpkit/contentfilter/rules"
)

// check rebuilds the filters from the compiled lists and prints the verdict for
// the request of options.
func check(ctx context.Context, m *contentfilter.Manager, options *Options) (err error) {
	if options.URL == "" {
		return fmt.Errorf("url: %w", errors.ErrEmptyValue)
	}

	t, ok := rules.ContentTypeByName(options.Type)
	if !ok || t.Count() != 1 || t&rules.TypeAllNetwork == 0 {
		return fmt.Errorf("type: %w: %q", errors.ErrBadEnumValue, options.Type)
	}

	err = m.Rebuild(ctx)
	if err != nil {
		return err
	}

	r := rules.NewRequest(options.URL, options.Page, t)
	res := m.Engine().Match(r)

	_, err = fmt.Fprintln(os.Stdout, formatResult(res))
	if err != nil {
		return err
	}

	for class, fs := range m.Engine().Explain(r) {
		for _, f := range fs {
			_, _ = fmt.Fprintf(os.Stdout, "  %s: %s\n", class, f.Text)
		}
	}

	return nil
}

// formatResult returns the human-readable verdict of res.
func formatResult(res *contentfilter.Result) (s string) {
	if res == nil {
		return contentfilter.VerdictAllow.String()
	}

	parts := []string{res.Verdict.String(), "class=" + string(res.Class)}
	switch {
	case res.Filter != nil:
		parts = append(parts, "rule="+res.Filter.Text)
	case res.UserRule != nil:
		parts = append(parts, "user_rule="+res.UserRule.String())
	}

	if res.Resource != "" {
		parts = append(parts, "resource="+res.Resource)
	}

	if res.URL != "" {
		parts = append(parts, "url="+res.URL)
	}

	for _, p := range res.CSP {
		parts = append(parts, "csp="+p)
	}

	return strings.Join(parts, " ")
}
