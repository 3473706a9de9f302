package proxy

import (
	"net"
	"net/http"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/gomitmproxy"
	"github.com/AdguardTeam/gomitmproxy/proxyutil"
	"github.com/abpkit/contentfilter"
	"github.com/abpkit/contentfilter/rules"
)

// onRequest handles the outgoing HTTP requests.
func (s *Server) onRequest(sess *gomitmproxy.Session) (req *http.Request, res *http.Response) {
	r := sess.Request()
	if r.Method == http.MethodConnect {
		// Do nothing for CONNECT requests.
		return nil, nil
	}

	session := NewSession(sess.ID(), r)
	sess.SetProp(sessionPropKey, session)

	res = s.filterRequest(session)
	if res != nil {
		// Mark this request as handled so that we don't modify it in the
		// onResponse handler.
		sess.SetProp(requestBlockedKey, true)

		return nil, res
	}

	return r, nil
}

// filterRequest returns the response replacing the request of session, or nil
// if the request must go on.
func (s *Server) filterRequest(session *Session) (res *http.Response) {
	if session.Request.Hostname == s.injectionHost {
		return s.buildContentScript(session)
	}

	session.Result = s.engines.Engine().Match(session.Request)
	s.countVerdict(session.Result)

	result := session.Result
	switch {
	case result == nil:
		// Go on.
	case result.Verdict == contentfilter.VerdictBlock:
		s.logger.Debug("blocked", "id", session.ID, "rule", ruleText(result), "url", session.Request.URL)

		return newBlockedResponse(session, result)
	case result.Verdict == contentfilter.VerdictRedirect:
		s.logger.Debug("redirected", "id", session.ID, "resource", result.Resource, "url", session.Request.URL)

		return newStubResponse(session.HTTPRequest, result.Resource)
	case result.Verdict == contentfilter.VerdictModify && result.URL != "":
		s.logger.Debug("removed params", "id", session.ID, "url", session.Request.URL, "new_url", result.URL)

		return newRedirectResponse(session.HTTPRequest, result.URL)
	}

	if s.shouldSuppressCache(session) {
		suppressCache(session.HTTPRequest)
	}

	return nil
}

// onResponse handles all the responses.
func (s *Server) onResponse(sess *gomitmproxy.Session) (res *http.Response) {
	if _, ok := sess.GetProp(requestBlockedKey); ok {
		// The request was already answered.
		return nil
	}

	v, ok := sess.GetProp(sessionPropKey)
	if !ok {
		s.logger.Error("session not found", "id", sess.ID())

		return nil
	}

	session, ok := v.(*Session)
	if !ok {
		s.logger.Error("session not found", "id", sess.ID(), "type", v)

		return nil
	}

	return s.filterResponse(session, sess.Response())
}

// filterResponse returns the response to send instead of resp, or nil if resp
// must be sent as is.
func (s *Server) filterResponse(session *Session, resp *http.Response) (res *http.Response) {
	prevType := session.Request.Type

	// Update the session, this will cause the request type to be
	// re-calculated.
	session.SetResponse(resp)

	// Now once we received the response, we must re-calculate the result.
	if session.Request.Type != prevType {
		session.Result = s.engines.Engine().Match(session.Request)
	}

	result := session.Result
	if result != nil && result.Verdict == contentfilter.VerdictBlock {
		s.logger.Debug("blocked response", "id", session.ID, "rule", ruleText(result), "url", session.Request.URL)

		return newBlockedResponse(session, result)
	}

	modified := false
	if result != nil && len(result.CSP) > 0 {
		for _, policy := range result.CSP {
			resp.Header.Add("Content-Security-Policy", policy)
		}

		modified = true
	}

	if session.Request.Type == rules.TypeDocument && session.MediaType == "text/html" {
		injected, err := s.filterHTML(session)
		if err != nil {
			s.logger.Debug("filtering html", "id", session.ID, slogutil.KeyError, err)

			return proxyutil.NewErrorResponse(session.HTTPRequest, err)
		}

		modified = modified || injected
	}

	if modified {
		return resp
	}

	return nil
}

// onConnect intercepts and suppresses connections to the injection host.
func (s *Server) onConnect(_ *gomitmproxy.Session, _, addr string) (conn net.Conn) {
	host, _, err := net.SplitHostPort(addr)
	if err == nil && host == s.injectionHost {
		return &proxyutil.NoopConn{}
	}

	return nil
}

// countVerdict updates the request metrics with the result.
func (s *Server) countVerdict(res *contentfilter.Result) {
	v := contentfilter.VerdictAllow
	if res != nil {
		v = res.Verdict
	}

	s.metrics.RequestsTotal.WithLabelValues(v.String()).Inc()
}

// ruleText returns the text of the filter or user rule that decided res.
func ruleText(res *contentfilter.Result) (text string) {
	switch {
	case res.Filter != nil:
		return res.Filter.Text
	case res.UserRule != nil:
		return res.UserRule.String()
	default:
		return ""
	}
}
