package contentfilter

import (
	"github.com/abpkit/contentfilter/internal/lookup"
	"github.com/abpkit/contentfilter/rules"
)

// Blocker combines an exception table and a block table into a single
// decision.  Exceptions always win.
type Blocker struct {
	allow lookup.Table
	block lookup.Table
}

// NewBlocker returns a new *Blocker.  Both tables must not be modified after
// the call.
func NewBlocker(allow, block lookup.Table) (b *Blocker) {
	return &Blocker{
		allow: allow,
		block: block,
	}
}

// IsBlock returns the block filter matching r or nil if r is not blocked or
// is excepted.
func (b *Blocker) IsBlock(r *rules.Request) (f *rules.Filter) {
	if b.allow.Get(r) != nil {
		return nil
	}

	return b.block.Get(r)
}

// match returns the matching exception filter and, if there is none, the
// matching block filter.
func (b *Blocker) match(r *rules.Request) (allow, block *rules.Filter) {
	allow = b.allow.Get(r)
	if allow != nil {
		return allow, nil
	}

	return nil, b.block.Get(r)
}
