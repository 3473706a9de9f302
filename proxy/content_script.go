package proxy

import (
	"bytes"
	"html/template"
	"io"
	"net/http"
	"strconv"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/gomitmproxy/proxyutil"
)

// contentScriptPath is the path of the content script on the injection host.
const contentScriptPath = "/content-script.js"

// injectionTmpl is the code injected into HTML pages.
var injectionTmpl = template.Must(template.New("injection").Parse(
	`<script src="//{{.InjectionHost}}/content-script.js?url={{.URL}}&ts={{.Timestamp}}"></script>`,
))

// injectionParameters are the parameters of injectionTmpl.
type injectionParameters struct {
	InjectionHost string
	URL           string

	// Timestamp is the proxy start time.  It only prevents the browsers from
	// using the scripts cached by the previous runs.
	Timestamp string
}

// buildInjectionCode creates HTML code for the content script injection into
// the page of session.
func (s *Server) buildInjectionCode(session *Session) (code string, err error) {
	params := &injectionParameters{
		InjectionHost: s.injectionHost,
		URL:           session.Request.URL,
		Timestamp:     strconv.FormatInt(s.createdAt.Unix(), 10),
	}

	buf := &bytes.Buffer{}
	err = injectionTmpl.Execute(buf, params)
	if err != nil {
		return "", err
	}

	return buf.String(), nil
}

// buildContentScript serves the content script for the page URL in the query.
func (s *Server) buildContentScript(session *Session) (resp *http.Response) {
	r := session.HTTPRequest
	if r.Method != http.MethodGet || r.URL.Path != contentScriptPath {
		return newNotFoundResponse(r)
	}

	pageURL := queryParameter(r, "url")
	ts := queryParameterInt64(r, "ts")
	if pageURL == "" || ts == 0 {
		return newNotFoundResponse(r)
	}

	if ts == s.createdAt.Unix() && r.Header.Get("If-Modified-Since") != "" {
		// Simply return a 304 Not-Modified response.
		resp = proxyutil.NewResponse(http.StatusNotModified, nil, r)
		resp.Header.Set("Content-Type", "text/javascript; charset=utf-8")

		// Re-enable the cache.
		enableCache(resp)

		return resp
	}

	script, _ := s.engines.Cosmetic().LoadScript(pageURL)
	body := []byte(script)
	contentLen := len(body)

	var bodyReader io.Reader
	if s.compressContentScript {
		b, err := compressGzip(body)
		if err != nil {
			s.logger.Error("compressing content script", slogutil.KeyError, err)

			return proxyutil.NewErrorResponse(r, err)
		}

		contentLen = b.Len()
		bodyReader = b
	} else {
		bodyReader = bytes.NewReader(body)
	}

	resp = proxyutil.NewResponse(http.StatusOK, bodyReader, r)
	resp.Header.Set("Content-Type", "text/javascript; charset=utf-8")
	resp.ContentLength = int64(contentLen)

	if s.compressContentScript {
		resp.Header.Set("Content-Encoding", "gzip")
	}

	// Make the browser cache the response.
	enableCache(resp)

	return resp
}
