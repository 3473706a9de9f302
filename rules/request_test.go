package rules

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRequest(t *testing.T) {
	r := NewRequest("http://example.org/", "", TypeOther)
	assert.Equal(t, "example.org", r.Hostname)
	assert.Equal(t, "example.org", r.Domain)
	assert.Equal(t, "http://example.org/", r.URL)
	assert.Equal(t, "", r.PageHost)
	assert.Equal(t, "", r.PageDomain)
	assert.Equal(t, TypeOther, r.Type)
	assert.False(t, r.ThirdParty)
	assert.False(t, r.StrictThirdParty)

	r = NewRequest("http://example.org/", "http://sub.example.org", TypeOther)
	assert.Equal(t, "sub.example.org", r.PageHost)
	assert.Equal(t, "example.org", r.PageDomain)
	assert.False(t, r.ThirdParty)
	assert.True(t, r.StrictThirdParty)

	r = NewRequest("http://example.org.uk/", "sub.example.org.uk", TypeOther)
	assert.Equal(t, "example.org.uk", r.Domain)
	assert.Equal(t, "sub.example.org.uk", r.PageHost)
	assert.Equal(t, "example.org.uk", r.PageDomain)
	assert.False(t, r.ThirdParty)

	r = NewRequest("http://example.org.uk/", "http://sub.example.com", TypeOther)
	assert.Equal(t, "sub.example.com", r.PageHost)
	assert.Equal(t, "example.com", r.PageDomain)
	assert.True(t, r.ThirdParty)

	r = NewRequest("https://User@Ads.Example.COM:8443/X?y#z", "", TypeScript)
	assert.Equal(t, "ads.example.com", r.Hostname)
	assert.Equal(t, "https://user@ads.example.com:8443/x?y#z", r.URLLowerCase)
	assert.Equal(t, []string{"user", "ads", "example", "com", "8443", ""}, r.Tags)
}

func TestNewRequest_long(t *testing.T) {
	url := "https://example.org/" + strings.Repeat("a", 2*maxURLLength)
	r := NewRequest(url, "", TypeOther)

	assert.Len(t, r.URL, maxURLLength)
	assert.Equal(t, "example.org", r.Hostname)
}

func TestRequest_HasQuery(t *testing.T) {
	assert.True(t, NewRequest("https://a.org/?x=1", "", TypeOther).HasQuery())
	assert.False(t, NewRequest("https://a.org/", "", TypeOther).HasQuery())
	assert.False(t, NewRequest("https://a.org/#a?b", "", TypeOther).HasQuery())
}

func TestContentType(t *testing.T) {
	assert.Equal(t, 1, TypeDocument.Count())
	assert.Equal(t, 2, (TypeDocument | TypeOther).Count())
	assert.Equal(t, "script|image", (TypeScript | TypeImage).String())
	assert.Zero(t, TypeAllNetwork&TypePopup)

	ct, ok := ContentTypeByName("CSS")
	assert.True(t, ok)
	assert.Equal(t, TypeStylesheet, ct)

	_, ok = ContentTypeByName("unknown")
	assert.False(t, ok)
}
