package proxy

import (
	"bytes"
	"compress/gzip"
	"net/http"
	"strconv"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/gomitmproxy/proxyutil"
)

// errNoEngines is returned when the server is created without engines.
const errNoEngines errors.Error = "no engines"

// compressGzip compresses b.
func compressGzip(b []byte) (buf *bytes.Buffer, err error) {
	buf = &bytes.Buffer{}
	gz := gzip.NewWriter(buf)
	if _, err = gz.Write(b); err != nil {
		return nil, err
	}

	if err = gz.Close(); err != nil {
		return nil, err
	}

	return buf, nil
}

// newNotFoundResponse returns an empty 404 response to r.
func newNotFoundResponse(r *http.Request) (resp *http.Response) {
	resp = proxyutil.NewResponse(http.StatusNotFound, nil, r)
	resp.Header.Set("Content-Type", "text/html")

	return resp
}

// queryParameter returns the single value of the query parameter name, or an
// empty string if there is none or more than one.
func queryParameter(r *http.Request, name string) (val string) {
	params, ok := r.URL.Query()[name]
	if !ok || len(params) != 1 {
		return ""
	}

	return params[0]
}

// queryParameterInt64 returns the query parameter name parsed as an integer,
// or zero if it is missing or invalid.
func queryParameterInt64(r *http.Request, name string) (val int64) {
	val, err := strconv.ParseInt(queryParameter(r, name), 10, 64)
	if err != nil {
		return 0
	}

	return val
}
