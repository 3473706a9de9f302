package rules

// Stub resource names served in place of redirected or blocked requests.
const (
	ResourceEmpty     = "empty"
	Resource1x1       = "1x1.gif"
	Resource2x2       = "2x2.png"
	Resource3x2       = "3x2.png"
	Resource32x32     = "32x32.png"
	ResourceNoopMP3   = "noop-0.1s.mp3"
	ResourceNoopMP4   = "noop-1s.mp4"
	ResourceNoopHTML  = "noop.html"
	ResourceNoopJS    = "noop.js"
	ResourceNoopTXT   = "noop.txt"
	ResourceNoopVMAP  = "noop-vmap1.0.xml"
	ResourceNoEval    = "noeval.js"
	ResourceNoEvalS   = "noeval-silent.js"
	ResourceAnalytics = "google-analytics_analytics.js"
	ResourceGPT       = "googletagservices_gpt.js"
	ResourceAdsense   = "googlesyndication_adsbygoogle.js"
)

// resourceAliases maps the names filter lists use for stub resources to their
// canonical names.
var resourceAliases = map[string]string{
	ResourceEmpty:     ResourceEmpty,
	Resource1x1:       Resource1x1,
	Resource2x2:       Resource2x2,
	Resource3x2:       Resource3x2,
	Resource32x32:     Resource32x32,
	ResourceNoopMP3:   ResourceNoopMP3,
	ResourceNoopMP4:   ResourceNoopMP4,
	ResourceNoopHTML:  ResourceNoopHTML,
	ResourceNoopJS:    ResourceNoopJS,
	ResourceNoopTXT:   ResourceNoopTXT,
	ResourceNoopVMAP:  ResourceNoopVMAP,
	ResourceNoEval:    ResourceNoEval,
	ResourceNoEvalS:   ResourceNoEvalS,
	ResourceAnalytics: ResourceAnalytics,
	ResourceGPT:       ResourceGPT,
	ResourceAdsense:   ResourceAdsense,

	"1x1-transparent.gif":                  Resource1x1,
	"2x2-transparent.png":                  Resource2x2,
	"3x2-transparent.png":                  Resource3x2,
	"32x32-transparent.png":                Resource32x32,
	"noopmp3-0.1s":                         ResourceNoopMP3,
	"abp-resource:blank-mp3":               ResourceNoopMP3,
	"noopmp4-1s":                           ResourceNoopMP4,
	"noopframe":                            ResourceNoopHTML,
	"noopjs":                               ResourceNoopJS,
	"abp-resource:blank-js":                ResourceNoopJS,
	"nooptext":                             ResourceNoopTXT,
	"noopvmap-1.0":                         ResourceNoopVMAP,
	"silent-noeval.js":                     ResourceNoEvalS,
	"google-analytics.com/analytics.js":    ResourceAnalytics,
	"googletagmanager_gtm.js":              ResourceAnalytics,
	"googletagmanager.com/gtm.js":          ResourceAnalytics,
	"googletagservices.com/gpt.js":         ResourceGPT,
	"googlesyndication.com/adsbygoogle.js": ResourceAdsense,
}

// CanonicalResource returns the canonical name of a stub resource.  ok is
// false if name is unknown.
func CanonicalResource(name string) (res string, ok bool) {
	res, ok = resourceAliases[name]

	return res, ok
}

// StubFor returns the stub resource that can replace a blocked request of
// type t without breaking the page.
func StubFor(t ContentType) (res string) {
	switch t {
	case TypeImage:
		return Resource1x1
	case TypeScript:
		return ResourceNoopJS
	case TypeSubdocument:
		return ResourceNoopHTML
	case TypeMedia:
		return ResourceNoopMP3
	default:
		return ResourceEmpty
	}
}
