package proxy

import (
	"fmt"
	"net/http"
	"time"

	"github.com/abpkit/contentfilter/rules"
)

// suppressCachePeriod is the time after the startup during which the HTTP
// cache is suppressed.
const suppressCachePeriod = 1 * time.Minute

// cacheExpiration is the cache lifetime of the responses served by the proxy
// itself.
const cacheExpiration = 1 * time.Hour

// staticTypes are the request types whose cache is never suppressed.
const staticTypes = rules.TypeImage | rules.TypeFont | rules.TypeScript |
	rules.TypeStylesheet | rules.TypeMedia

// shouldSuppressCache returns true if the HTTP cache must be suppressed for the
// request of session.  This makes sure that the current content script gets
// injected into the pages cached before the startup.
func (s *Server) shouldSuppressCache(session *Session) (ok bool) {
	if time.Since(s.createdAt) > suppressCachePeriod {
		return false
	}

	return session.Request.Type&staticTypes == 0
}

// suppressCache removes the conditional headers from the HTTP request.
func suppressCache(r *http.Request) {
	// Last modified time based caching.
	r.Header.Del("If-Modified-Since")
	r.Header.Del("If-Unmodified-Since")

	// ETag based caching.
	r.Header.Del("If-None-Match")
	r.Header.Del("If-Match")
	r.Header.Del("If-Range")
}

// enableCache sets the caching headers on an HTTP response.
func enableCache(r *http.Response) {
	expires := time.Now().Add(cacheExpiration)

	r.Header.Del("Pragma")
	r.Header.Set("Last-Modified", "Wed, 01 Jan 2010 01:00:00 GMT")
	r.Header.Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(cacheExpiration.Seconds())))
	r.Header.Set("Expires", expires.Format(http.TimeFormat))
}
