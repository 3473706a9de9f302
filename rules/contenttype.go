package rules

import (
	"math/bits"
	"strings"
)

// ContentType is a bitset of resource kinds.  A [Request] carries exactly one
// bit, a [Filter] carries the mask of kinds it applies to.
type ContentType uint32

// Network content types.
const (
	// TypeOther is any request that does not fit the other types.  $other
	TypeOther ContentType = 1 << iota
	// TypeScript is javascript.  $script
	TypeScript
	// TypeImage is any image.  $image
	TypeImage
	// TypeStylesheet is CSS.  $stylesheet
	TypeStylesheet
	// TypeSubdocument is a frame.  $subdocument
	TypeSubdocument
	// TypeDocument is the main frame.  $document
	TypeDocument
	// TypeMedia is audio or video.  $media
	TypeMedia
	// TypeFont is any custom font.  $font
	TypeFont
	// TypePopup marks options this engine cannot act upon, like $popup or
	// $webrtc.  Requests never carry it.
	TypePopup
	// TypeWebsocket is a websocket connection.  $websocket
	TypeWebsocket
	// TypeXHR is an ajax or fetch request.  $xmlhttprequest
	TypeXHR
)

// Cosmetic content types.  They are only carried by element-disable filters
// and by the synthetic page request of the cosmetic lookup.
const (
	// TypeElementGenericHide disables generic element hiding.  $generichide
	TypeElementGenericHide ContentType = 0x2000_0000
	// TypeElementHide disables all element hiding.  $elemhide
	TypeElementHide ContentType = 0x4000_0000
)

// Composite masks.
const (
	// TypeAllNetwork is the mask of every network type a request can have.
	TypeAllNetwork = TypeOther | TypeScript | TypeImage | TypeStylesheet |
		TypeSubdocument | TypeDocument | TypeMedia | TypeFont | TypeWebsocket |
		TypeXHR

	// TypeAllElement is the mask of both cosmetic types.
	TypeAllElement = TypeElementHide | TypeElementGenericHide
)

// Count returns the number of enabled bits.
func (t ContentType) Count() (n int) {
	return bits.OnesCount32(uint32(t))
}

// typeNames maps option names to content types.  Aliases map to the same bit.
var typeNames = map[string]ContentType{
	"other":             TypeOther,
	"xbl":               TypeOther,
	"dtd":               TypeOther,
	"script":            TypeScript,
	"image":             TypeImage,
	"background":        TypeImage,
	"stylesheet":        TypeStylesheet,
	"css":               TypeStylesheet,
	"subdocument":       TypeSubdocument,
	"frame":             TypeSubdocument,
	"document":          TypeDocument,
	"doc":               TypeDocument,
	"media":             TypeMedia,
	"font":              TypeFont,
	"websocket":         TypeWebsocket,
	"xmlhttprequest":    TypeXHR,
	"xhr":               TypeXHR,
	"popup":             TypePopup,
	"popunder":          TypePopup,
	"object":            TypePopup,
	"object-subrequest": TypePopup,
	"webrtc":            TypePopup,
	"ping":              TypePopup,
	"elemhide":          TypeElementHide,
	"ehide":             TypeElementHide,
	"generichide":       TypeElementGenericHide,
	"ghide":             TypeElementGenericHide,
}

// canonicalNames is used by [ContentType.String].
var canonicalNames = []struct {
	name string
	t    ContentType
}{
	{"other", TypeOther},
	{"script", TypeScript},
	{"image", TypeImage},
	{"stylesheet", TypeStylesheet},
	{"subdocument", TypeSubdocument},
	{"document", TypeDocument},
	{"media", TypeMedia},
	{"font", TypeFont},
	{"popup", TypePopup},
	{"websocket", TypeWebsocket},
	{"xmlhttprequest", TypeXHR},
	{"generichide", TypeElementGenericHide},
	{"elemhide", TypeElementHide},
}

// ContentTypeByName returns the content type for an option name, like
// "script" or its alias "css".  ok is false if name is unknown.
func ContentTypeByName(name string) (t ContentType, ok bool) {
	t, ok = typeNames[strings.ToLower(name)]

	return t, ok
}

// String implements the [fmt.Stringer] interface for ContentType.
func (t ContentType) String() (s string) {
	if t == 0 {
		return "none"
	}

	var names []string
	for _, n := range canonicalNames {
		if t&n.t != 0 {
			names = append(names, n.name)
		}
	}

	return strings.Join(names, "|")
}
