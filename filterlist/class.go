package filterlist

import "strings"

// Class is a rule class of a decoded list.  Its value is the file name prefix
// of the class in a [Store].
type Class string

// Rule classes.
const (
	ClassBlock             Class = "b_"
	ClassAllow             Class = "w_"
	ClassImportant         Class = "i_"
	ClassImportantAllow    Class = "ia_"
	ClassModify            Class = "m_"
	ClassModifyException   Class = "me_"
	ClassRedirect          Class = "r_"
	ClassRedirectException Class = "re_"
	ClassElementDisable    Class = "ed_"
	ClassElement           Class = "e_"
)

// badfilterPrefix is the class prefix of $badfilter records.
const badfilterPrefix = "bf_"

// NetworkClasses are the classes of network filters, in the order of the
// decoder routing.
var NetworkClasses = []Class{
	ClassBlock,
	ClassAllow,
	ClassImportant,
	ClassImportantAllow,
	ClassModify,
	ClassModifyException,
	ClassRedirect,
	ClassRedirectException,
	ClassElementDisable,
}

// Bad returns the class of $badfilter records cancelling filters of c.
func (c Class) Bad() (bad Class) {
	if c.IsBad() {
		return c
	}

	return badfilterPrefix + c
}

// IsBad returns true if c is a class of $badfilter records.
func (c Class) IsBad() (ok bool) {
	return strings.HasPrefix(string(c), badfilterPrefix)
}

// fileName returns the store file name of class c of list id.
func (c Class) fileName(id string) (name string) {
	return string(c) + id
}
