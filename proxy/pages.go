package proxy

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/AdguardTeam/gomitmproxy/proxyutil"
	"github.com/abpkit/contentfilter"
	"github.com/abpkit/contentfilter/rules"
)

// blockedPageTmpl is the page shown instead of blocked documents.
var blockedPageTmpl = template.Must(template.New("blockedPage").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Blocked</title>
</head>
<body>
<h1>{{.Hostname}} is blocked</h1>
<p>The request to {{.URL}} was blocked by the {{.Class}} filters.</p>
{{if .RuleText}}<p>Rule: <code>{{.RuleText}}</code></p>{{end}}
</body>
</html>
`))

// blockedPageParameters are the parameters of blockedPageTmpl.
type blockedPageParameters struct {
	Hostname string
	URL      string
	Class    string
	RuleText string
}

// buildBlockedPage builds blocked page content.
func buildBlockedPage(session *Session, res *contentfilter.Result) (page []byte, err error) {
	params := &blockedPageParameters{
		Hostname: session.Request.Hostname,
		URL:      session.Request.URL,
		Class:    string(res.Class),
		RuleText: ruleText(res),
	}

	buf := &bytes.Buffer{}
	err = blockedPageTmpl.Execute(buf, params)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// newBlockedResponse creates an HTTP response for a blocked request.  Documents
// get the blocked page, other requests get a stub suitable for their type.
func newBlockedResponse(session *Session, res *contentfilter.Result) (resp *http.Response) {
	t := session.Request.Type
	if t != rules.TypeDocument {
		return newStubResponse(session.HTTPRequest, rules.StubFor(t))
	}

	page, err := buildBlockedPage(session, res)
	if err != nil {
		return proxyutil.NewErrorResponse(session.HTTPRequest, err)
	}

	resp = proxyutil.NewResponse(http.StatusForbidden, bytes.NewReader(page), session.HTTPRequest)
	resp.Close = true
	resp.ContentLength = int64(len(page))
	resp.Header.Set("Content-Type", "text/html; charset=utf-8")

	return resp
}

// newStubResponse creates an HTTP response serving the stub resource.  Unknown
// resources are served as empty responses.
func newStubResponse(r *http.Request, resource string) (resp *http.Response) {
	s, ok := stubs[resource]
	if !ok {
		s = stubs[rules.ResourceEmpty]
	}

	resp = proxyutil.NewResponse(http.StatusOK, bytes.NewReader(s.body), r)
	resp.ContentLength = int64(len(s.body))
	resp.Header.Set("Content-Type", s.contentType)
	enableCache(resp)

	return resp
}

// newRedirectResponse creates an HTTP response redirecting the client to u.
func newRedirectResponse(r *http.Request, u string) (resp *http.Response) {
	resp = proxyutil.NewResponse(http.StatusFound, nil, r)
	resp.Header.Set("Location", u)

	return resp
}
