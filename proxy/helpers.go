package proxy

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// encodingFor returns the encoding of the charset.  An empty charset is
// UTF-8.
func encodingFor(charset string) (enc encoding.Encoding, err error) {
	switch strings.ToLower(charset) {
	case "":
		charset = "utf-8"
	case "iso-8859-1", "latin1":
		// htmlindex maps it to windows-1252, which can't round-trip the C1
		// control range.
		return charmap.ISO8859_1, nil
	}

	enc, err = htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("charset %q: %w", charset, err)
	}

	return enc, nil
}

// decodeString decodes the string from r in the encoding enc.
func decodeString(r io.Reader, enc encoding.Encoding) (s string, err error) {
	b, err := io.ReadAll(transform.NewReader(r, enc.NewDecoder()))
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// encodeString encodes s in the encoding enc.
func encodeString(s string, enc encoding.Encoding) (b []byte, err error) {
	return enc.NewEncoder().Bytes([]byte(s))
}
