package proxy

import (
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/abpkit/contentfilter"
	"github.com/abpkit/contentfilter/rules"
)

// Session contains all the necessary data to filter requests and responses.
// It also contains the current state of the request.  Throughout the HTTP
// request lifetime, session data is updated with new information.
//
// There are two main stages of the HTTP request lifetime:
//  1. Received the HTTP request headers.  At this point, we assume the
//     resource type by URL and "Accept" headers and match the request.  If it
//     must be blocked, redirected, or stripped of query parameters, the proxy
//     answers it itself.  Otherwise, the request goes on.
//  2. Received the HTTP response headers.  At this point we've got the
//     content-type header so we know for sure what type of resource we're
//     dealing with.  If the type changed, we match the request again.  The
//     possible outcomes are:
//     2.1. The request must be blocked.
//     2.2. The response must be modified with the CSP headers.
//     2.3. This is an HTML response so we need to inject the content script.
//     2.4. We should continue execution and do nothing with the response.
type Session struct {
	// Request is the match context.
	Request *rules.Request

	// HTTPRequest is the HTTP request data.
	HTTPRequest *http.Request

	// HTTPResponse is the HTTP response data.
	HTTPResponse *http.Response

	// Result is the filtering engine result.
	Result *contentfilter.Result

	// ID is the session identifier.
	ID string

	// MediaType is the MIME media type of the response.
	MediaType string

	// Charset is the response charset, if it's possible to parse it from the
	// content-type.
	Charset string
}

// NewSession creates a new instance of the Session struct and initializes it.
func NewSession(id string, req *http.Request) (s *Session) {
	r := rules.NewRequest(req.URL.String(), req.Referer(), assumeRequestType(req, nil))
	r.Header = req.Header
	r.Method = req.Method

	return &Session{
		ID:          id,
		Request:     r,
		HTTPRequest: req,
	}
}

// SetResponse sets the response of this session.  This can also end in
// changing the request type.
func (s *Session) SetResponse(res *http.Response) {
	s.HTTPResponse = res

	// Re-calculate the request type once we have the response headers.
	s.Request.Type = assumeRequestType(s.HTTPRequest, s.HTTPResponse)

	contentType := res.Header.Get("Content-Type")
	mediaType, params, _ := mime.ParseMediaType(contentType)

	s.MediaType = mediaType
	if charset, ok := params["charset"]; ok {
		s.Charset = charset
	}
}

// assumeRequestType assumes the request type from what we know at this point.
// res is nil if we don't know it at the moment.
func assumeRequestType(req *http.Request, res *http.Response) (t rules.ContentType) {
	if res != nil {
		mediaType, _, _ := mime.ParseMediaType(res.Header.Get("Content-Type"))
		t = assumeRequestTypeFromMediaType(mediaType)
		if t == rules.TypeDocument && req.Header.Get("Sec-Fetch-Dest") == "iframe" {
			return rules.TypeSubdocument
		}

		return t
	}

	switch req.Header.Get("Sec-Fetch-Dest") {
	case "iframe", "frame":
		return rules.TypeSubdocument
	case "websocket":
		return rules.TypeWebsocket
	}

	t = assumeRequestTypeFromMediaType(req.Header.Get("Accept"))
	if t == rules.TypeOther {
		// Try to get it from the URL.
		t = assumeRequestTypeFromURL(req.URL)
	}

	return t
}

// mediaTypePrefixes maps the media type prefixes to the request types, in the
// order of matching.
var mediaTypePrefixes = []struct {
	prefix string
	t      rules.ContentType
}{
	{"application/xhtml", rules.TypeDocument},
	// m3u playlists can contain references to video ads, so they are treated
	// like documents.
	{"audio/x-mpegurl", rules.TypeDocument},
	{"text/html", rules.TypeDocument},
	{"text/css", rules.TypeStylesheet},
	{"application/javascript", rules.TypeScript},
	{"application/x-javascript", rules.TypeScript},
	{"text/javascript", rules.TypeScript},
	{"image/", rules.TypeImage},
	{"application/font", rules.TypeFont},
	{"application/vnd.ms-fontobject", rules.TypeFont},
	{"application/x-font-", rules.TypeFont},
	{"font/", rules.TypeFont},
	{"audio/", rules.TypeMedia},
	{"video/", rules.TypeMedia},
	{"application/json", rules.TypeXHR},
}

// assumeRequestTypeFromMediaType tries to detect the content type from the
// specified media type.
func assumeRequestTypeFromMediaType(mediaType string) (t rules.ContentType) {
	mediaType = strings.ToLower(mediaType)
	for _, p := range mediaTypePrefixes {
		if strings.HasPrefix(mediaType, p.prefix) {
			return p.t
		}
	}

	return rules.TypeOther
}

// fileExtensions maps file extensions to the request types.
var fileExtensions = map[string]rules.ContentType{
	".js":     rules.TypeScript,
	".mjs":    rules.TypeScript,
	".vbs":    rules.TypeScript,
	".coffee": rules.TypeScript,

	".jpg":  rules.TypeImage,
	".jpeg": rules.TypeImage,
	".gif":  rules.TypeImage,
	".png":  rules.TypeImage,
	".webp": rules.TypeImage,
	".svg":  rules.TypeImage,
	".tiff": rules.TypeImage,
	".psd":  rules.TypeImage,
	".ico":  rules.TypeImage,

	".css":  rules.TypeStylesheet,
	".less": rules.TypeStylesheet,

	".wav":   rules.TypeMedia,
	".mp3":   rules.TypeMedia,
	".mp4":   rules.TypeMedia,
	".avi":   rules.TypeMedia,
	".flv":   rules.TypeMedia,
	".m3u":   rules.TypeMedia,
	".webm":  rules.TypeMedia,
	".mpeg":  rules.TypeMedia,
	".3gp":   rules.TypeMedia,
	".3g2":   rules.TypeMedia,
	".3gpp":  rules.TypeMedia,
	".3gpp2": rules.TypeMedia,
	".ogg":   rules.TypeMedia,
	".mov":   rules.TypeMedia,
	".qt":    rules.TypeMedia,
	".vbm":   rules.TypeMedia,
	".mkv":   rules.TypeMedia,
	".gifv":  rules.TypeMedia,

	".ttf":   rules.TypeFont,
	".otf":   rules.TypeFont,
	".woff":  rules.TypeFont,
	".woff2": rules.TypeFont,
	".eot":   rules.TypeFont,

	".json": rules.TypeXHR,
}

// assumeRequestTypeFromURL assumes the request type from the file extension.
func assumeRequestTypeFromURL(u *url.URL) (t rules.ContentType) {
	t, ok := fileExtensions[strings.ToLower(path.Ext(u.Path))]
	if !ok {
		return rules.TypeOther
	}

	return t
}
