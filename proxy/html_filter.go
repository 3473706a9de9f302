package proxy

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxHTMLSize is the maximum size of HTML documents the content script is
// injected into.
const maxHTMLSize = 8 * 1024 * 1024

// filterHTML injects the content script into the HTML response of session.
// injected is false if the response was left untouched, in which case its body
// is still readable from the start.
func (s *Server) filterHTML(session *Session) (injected bool, err error) {
	resp := session.HTTPResponse
	if enc := resp.Header.Get("Content-Encoding"); enc != "" && enc != "identity" {
		// TODO: Decompress gzip and br bodies instead of skipping.
		return false, nil
	}

	if _, ok := s.engines.Cosmetic().LoadScript(session.Request.URL); !ok {
		return false, nil
	}

	enc, err := encodingFor(session.Charset)
	if err != nil {
		s.logger.Debug("skipping injection", "id", session.ID, "charset", session.Charset)

		return false, nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxHTMLSize+1))
	if err != nil {
		return false, fmt.Errorf("reading body: %w", err)
	}

	if len(raw) > maxHTMLSize {
		resp.Body = readCloser{
			Reader: io.MultiReader(bytes.NewReader(raw), resp.Body),
			Closer: resp.Body,
		}

		return false, nil
	}

	err = resp.Body.Close()
	if err != nil {
		return false, fmt.Errorf("closing body: %w", err)
	}

	body, err := decodeString(bytes.NewReader(raw), enc)
	if err != nil {
		return false, fmt.Errorf("decoding body: %w", err)
	}

	code, err := s.buildInjectionCode(session)
	if err != nil {
		return false, fmt.Errorf("building injection code: %w", err)
	}

	modified, err := encodeString(injectCode(body, code), enc)
	if err != nil {
		return false, fmt.Errorf("encoding body: %w", err)
	}

	resp.Body = io.NopCloser(bytes.NewReader(modified))
	resp.ContentLength = int64(len(modified))
	resp.Header.Set("Content-Length", strconv.Itoa(len(modified)))

	return true, nil
}

// injectCode inserts code before the closing head tag of the HTML document, or
// at the beginning if there is none.
func injectCode(html, code string) (res string) {
	i := indexFoldASCII(html, "</head>")
	if i == -1 {
		return code + html
	}

	return html[:i] + code + html[i:]
}

// indexFoldASCII returns the index of the first occurrence of the lowercase
// ASCII substr in s ignoring the ASCII case, or -1.
func indexFoldASCII(s, substr string) (i int) {
	for i = 0; i+len(substr) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(substr)], substr) {
			return i
		}
	}

	return -1
}

// readCloser combines a reader and a closer.
type readCloser struct {
	io.Reader
	io.Closer
}
